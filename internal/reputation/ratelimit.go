package reputation

import (
	"context"
	"fmt"
	"math"
	"time"
)

const giveWindow = 24 * time.Hour

// GiveDecision explains whether a peer recommendation may be given.
type GiveDecision struct {
	Allowed        bool
	DailyCap       int
	GivenToday     int
	CooldownEndsAt time.Time
	SelfGive       bool
}

// unlockProgress maps score onto [0, 1] between partial and full unlock.
// It returns false below the partial unlock.
func unlockProgress(score, partial, full float64) (float64, bool) {
	if score < partial {
		return 0, false
	}
	if score >= full || full <= partial {
		return 1, true
	}
	return (score - partial) / (full - partial), true
}

// DailyGiveCap interpolates the number of daily gives from a total score.
func (e *Engine) DailyGiveCap(totalScore float64) int {
	progress, ok := unlockProgress(totalScore, e.cfg.GivePartialUnlock, e.cfg.GiveFullUnlock)
	if !ok {
		return 0
	}
	span := float64(e.cfg.GiveMaxPerDay - e.cfg.GiveMinPerDay)
	return e.cfg.GiveMinPerDay + int(math.Floor(span*progress))
}

// PingDelay is the required gap between pings for a total score. allowed is
// false below the partial unlock, which is distinct from a zero delay.
func (e *Engine) PingDelay(totalScore float64) (delay time.Duration, allowed bool) {
	progress, ok := unlockProgress(totalScore, e.cfg.PingPartialUnlock, e.cfg.PingFullUnlock)
	if !ok {
		return 0, false
	}
	return time.Duration(float64(e.cfg.PingMaxDelay) * (1 - progress)), true
}

// CheckGive evaluates both the daily cap and the per-recipient cooldown.
func (e *Engine) CheckGive(ctx context.Context, giverID, recipientID string) (GiveDecision, error) {
	if giverID == recipientID {
		return GiveDecision{SelfGive: true}, nil
	}
	rep, err := e.store.GetReputation(ctx, giverID)
	if err != nil {
		return GiveDecision{}, fmt.Errorf("get reputation %s: %w", giverID, err)
	}
	now := e.now()
	decision := GiveDecision{DailyCap: e.DailyGiveCap(rep.TotalRecommendationScore)}

	decision.GivenToday, err = e.ledger.CountGivesSince(ctx, giverID, now.Add(-giveWindow))
	if err != nil {
		return GiveDecision{}, fmt.Errorf("count gives for %s: %w", giverID, err)
	}
	last, ok, err := e.ledger.LastGiveTo(ctx, giverID, recipientID)
	if err != nil {
		return GiveDecision{}, fmt.Errorf("last give %s -> %s: %w", giverID, recipientID, err)
	}
	if ok {
		decision.CooldownEndsAt = last.Add(e.cfg.GiveCooldown)
	}
	decision.Allowed = decision.GivenToday < decision.DailyCap && !now.Before(decision.CooldownEndsAt)
	return decision, nil
}

// GiveRecommendation lets giverID recommend recipientID when both limits pass.
func (e *Engine) GiveRecommendation(ctx context.Context, giverID, recipientID string) (GiveDecision, error) {
	decision, err := e.CheckGive(ctx, giverID, recipientID)
	if err != nil || !decision.Allowed {
		return decision, err
	}
	// A give counts against the giver only after the score write succeeds.
	if err := e.storeScore(ctx, recipientID, e.cfg.GiveAmount, false); err != nil {
		return decision, err
	}
	if err := e.ledger.RecordGive(ctx, giverID, recipientID, e.now()); err != nil {
		return decision, fmt.Errorf("record give %s -> %s: %w", giverID, recipientID, err)
	}
	decision.GivenToday++
	return decision, e.UpdateRecommendationRole(ctx, recipientID)
}

// CanPing reports whether userID may ping now and, if not, when they may.
func (e *Engine) CanPing(ctx context.Context, userID string) (bool, time.Time, error) {
	rep, err := e.store.GetReputation(ctx, userID)
	if err != nil {
		return false, time.Time{}, fmt.Errorf("get reputation %s: %w", userID, err)
	}
	delay, allowed := e.PingDelay(rep.TotalRecommendationScore)
	if !allowed {
		return false, time.Time{}, nil
	}
	if rep.LastPingAt == nil {
		return true, time.Time{}, nil
	}
	next := rep.LastPingAt.Add(delay)
	return !e.now().Before(next), next, nil
}

func (e *Engine) MarkPinged(ctx context.Context, userID string) error {
	if err := e.store.UpdateLastPing(ctx, userID, e.now()); err != nil {
		return fmt.Errorf("update last ping %s: %w", userID, err)
	}
	return nil
}
