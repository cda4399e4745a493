// Package reputation implements the decaying recommendation score: decay with
// checkpoint floors, payouts and penalties, unlock-tier roles, and the rate
// limits on giving recommendations and pinging.
package reputation

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/foxseedlab/playhost/internal/config"
	"github.com/foxseedlab/playhost/internal/discord"
	"github.com/foxseedlab/playhost/internal/repository"
)

// GiveLedger records peer-given recommendations for rate limiting.
type GiveLedger interface {
	CountGivesSince(ctx context.Context, giverID string, since time.Time) (int, error)
	LastGiveTo(ctx context.Context, giverID, recipientID string) (time.Time, bool, error)
	RecordGive(ctx context.Context, giverID, recipientID string, at time.Time) error
}

// Awarder is notified of every positive score change.
type Awarder interface {
	RecommendationAwarded(amount float64)
}

type Engine struct {
	cfg     config.Recommendation
	store   repository.ReputationRepository
	members discord.MemberDirectory
	ledger  GiveLedger
	awarder Awarder
	now     func() time.Time
}

func NewEngine(cfg config.Recommendation, store repository.ReputationRepository, members discord.MemberDirectory, ledger GiveLedger, awarder Awarder) *Engine {
	return &Engine{
		cfg:     cfg,
		store:   store,
		members: members,
		ledger:  ledger,
		awarder: awarder,
		now:     time.Now,
	}
}

// GetRecommendationScore returns the decayed score. Decay never takes the
// score below the highest checkpoint already passed by the stored score.
func (e *Engine) GetRecommendationScore(ctx context.Context, userID string) (float64, error) {
	rep, err := e.store.GetReputation(ctx, userID)
	if err != nil {
		return 0, fmt.Errorf("get reputation %s: %w", userID, err)
	}
	return e.decayedScore(rep), nil
}

func (e *Engine) decayedScore(rep repository.UserReputation) float64 {
	stored := rep.RecommendationScore
	hours := e.now().Sub(rep.LastRecommendationScoreUpdate).Hours()
	if hours < 0 {
		hours = 0
	}
	score := math.Max(stored-hours*e.cfg.DecayPerHour, e.floorBelow(stored))
	if math.IsNaN(score) || math.IsInf(score, 0) {
		return 0
	}
	return score
}

// floorBelow is the highest checkpoint strictly below score. Without one,
// decay stops at zero, and a negative score stays where it is.
func (e *Engine) floorBelow(score float64) float64 {
	floor := math.Min(score, 0)
	for _, c := range e.cfg.Checkpoints {
		if c < score && c > floor {
			floor = c
		}
	}
	return floor
}

// AddRecommendationScore applies delta on top of the decayed score. With
// force the floor drops to the lowest checkpoint so penalties bite fully.
func (e *Engine) AddRecommendationScore(ctx context.Context, userID string, delta float64, force bool) error {
	if math.IsNaN(delta) || math.IsInf(delta, 0) {
		return nil
	}
	if err := e.storeScore(ctx, userID, delta, force); err != nil {
		return err
	}
	return e.UpdateRecommendationRole(ctx, userID)
}

func (e *Engine) storeScore(ctx context.Context, userID string, delta float64, force bool) error {
	rep, err := e.store.GetReputation(ctx, userID)
	if err != nil {
		return fmt.Errorf("get reputation %s: %w", userID, err)
	}
	current := e.decayedScore(rep)

	floor := e.floorBelow(current)
	if force {
		floor = math.Inf(-1)
		if len(e.cfg.Checkpoints) > 0 {
			floor = e.cfg.Checkpoints[0]
		}
	}
	next := math.Max(current+delta, floor)

	rep.UserID = userID
	rep.RecommendationScore = next
	rep.TotalRecommendationScore += math.Max(0, delta)
	rep.LastRecommendationScoreUpdate = e.now()
	if err := e.store.UpdateScoreFields(ctx, rep); err != nil {
		return fmt.Errorf("update reputation %s: %w", userID, err)
	}
	slog.Debug("recommendation score updated", "user_id", userID, "delta", delta, "score", next, "total", rep.TotalRecommendationScore, "forced", force)
	if delta > 0 && e.awarder != nil {
		e.awarder.RecommendationAwarded(delta)
	}
	return nil
}

// UpdateRecommendationRole keeps exactly the highest qualifying tier role.
func (e *Engine) UpdateRecommendationRole(ctx context.Context, userID string) error {
	if len(e.cfg.RoleTiers) == 0 {
		return nil
	}
	member, err := e.members.ResolveMember(ctx, userID)
	if err != nil {
		return fmt.Errorf("resolve member %s: %w", userID, err)
	}
	if member == nil {
		return nil
	}
	score, err := e.GetRecommendationScore(ctx, userID)
	if err != nil {
		return err
	}

	qualifying := -1
	for i, tier := range e.cfg.RoleTiers {
		if score < tier.Threshold {
			continue
		}
		if qualifying < 0 || tier.Threshold >= e.cfg.RoleTiers[qualifying].Threshold {
			qualifying = i
		}
	}

	for i, tier := range e.cfg.RoleTiers {
		if i == qualifying || !member.HasRole(tier.RoleID) {
			continue
		}
		if err := e.members.RemoveRole(ctx, userID, tier.RoleID); err != nil {
			return fmt.Errorf("remove tier role %s from %s: %w", tier.RoleID, userID, err)
		}
	}
	if qualifying >= 0 && !member.HasRole(e.cfg.RoleTiers[qualifying].RoleID) {
		if err := e.members.AddRole(ctx, userID, e.cfg.RoleTiers[qualifying].RoleID); err != nil {
			return fmt.Errorf("add tier role %s to %s: %w", e.cfg.RoleTiers[qualifying].RoleID, userID, err)
		}
	}
	return nil
}
