package session

import (
	"context"
	"fmt"
	"time"

	"github.com/foxseedlab/playhost/internal/action"
	"github.com/foxseedlab/playhost/internal/discord"
	"github.com/foxseedlab/playhost/internal/repository"
	"github.com/foxseedlab/playhost/internal/reputation"
)

// Recommendations is the part of the reputation engine exposed to buttons.
type Recommendations interface {
	GiveRecommendation(ctx context.Context, giverID, recipientID string) (reputation.GiveDecision, error)
	CanPing(ctx context.Context, userID string) (bool, time.Time, error)
	MarkPinged(ctx context.Context, userID string) error
}

type actionHandlers struct {
	registry        *Registry
	recommendations Recommendations
	members         discord.MemberDirectory
	moderatorRoleID string
}

// RegisterActions binds every session button to router. Handlers enforce the
// rules sessions leave to their callers, such as capacity and single membership.
func RegisterActions(router *action.Router, registry *Registry, recommendations Recommendations, members discord.MemberDirectory, moderatorRoleID string) {
	h := &actionHandlers{
		registry:        registry,
		recommendations: recommendations,
		members:         members,
		moderatorRoleID: moderatorRoleID,
	}
	router.Handle(action.KindJoin, h.join)
	router.Handle(action.KindLeave, h.leave)
	router.Handle(action.KindStop, h.stop)
	router.Handle(action.KindForceStop, h.forceStop)
	router.Handle(action.KindKick, h.remove(repository.LeaveReasonKicked, messageEphemeralLeaveReasonKick))
	router.Handle(action.KindBan, h.remove(repository.LeaveReasonBanned, messageEphemeralLeaveReasonBan))
	router.Handle(action.KindRecommend, h.recommend)
	router.Handle(action.KindPing, h.ping)
}

func (h *actionHandlers) join(ctx context.Context, inv action.Invocation) (string, error) {
	s := h.registry.Get(inv.SessionID)
	if s == nil {
		return messageEphemeralUnknownSession, nil
	}
	if s.State() != repository.SessionStateRunning {
		return messageEphemeralNotRunning, nil
	}
	if s.IsJoined(inv.UserID) {
		return messageEphemeralAlreadyJoined, nil
	}
	if s.IsBanned(inv.UserID) {
		return messageEphemeralBanned, nil
	}
	if other := h.registry.ByJoinedUser(inv.UserID); other != nil {
		return messageEphemeralInOtherSession, nil
	}
	if hosted := h.registry.ByHost(inv.UserID); hosted != nil && hosted != s {
		return messageEphemeralInOtherSession, nil
	}
	if limit := s.MaxPlayers(); limit > 0 && s.PlayerCount() >= limit {
		return messageEphemeralSessionFull, nil
	}
	ok, err := s.Join(ctx, inv.UserID)
	if err != nil {
		return messageEphemeralJoinFailed, err
	}
	if !ok {
		return messageEphemeralJoinFailed, nil
	}
	return messageEphemeralJoined, nil
}

func (h *actionHandlers) leave(ctx context.Context, inv action.Invocation) (string, error) {
	s := h.registry.Get(inv.SessionID)
	if s == nil {
		return messageEphemeralUnknownSession, nil
	}
	ok, err := s.Leave(ctx, inv.UserID, repository.LeaveReasonLeft)
	if err != nil {
		return messageEphemeralLeaveFailed, err
	}
	if !ok {
		return messageEphemeralNotJoined, nil
	}
	return messageEphemeralLeft, nil
}

func (h *actionHandlers) stop(ctx context.Context, inv action.Invocation) (string, error) {
	s := h.registry.Get(inv.SessionID)
	if s == nil {
		return messageEphemeralUnknownSession, nil
	}
	ok, err := s.TryStopSession(ctx, inv.UserID)
	if err != nil {
		return messageEphemeralStopFailed, err
	}
	if !ok {
		if s.HostID() != inv.UserID {
			return messageEphemeralHostOnly, nil
		}
		return messageEphemeralNotRunning, nil
	}
	return messageEphemeralStopped, nil
}

func (h *actionHandlers) forceStop(ctx context.Context, inv action.Invocation) (string, error) {
	s := h.registry.Get(inv.SessionID)
	if s == nil {
		return messageEphemeralUnknownSession, nil
	}
	if s.HostID() != inv.UserID {
		allowed, err := h.isModerator(ctx, inv.UserID)
		if err != nil {
			return messageEphemeralStopFailed, err
		}
		if !allowed {
			return messageEphemeralModeratorOnly, nil
		}
	}
	ok, err := s.ForceStopSession(ctx, inv.UserID)
	if err != nil {
		return messageEphemeralStopFailed, err
	}
	if !ok {
		return messageEphemeralNotRunning, nil
	}
	return messageEphemeralStopped, nil
}

func (h *actionHandlers) isModerator(ctx context.Context, userID string) (bool, error) {
	if h.moderatorRoleID == "" {
		return false, nil
	}
	member, err := h.members.ResolveMember(ctx, userID)
	if err != nil {
		return false, fmt.Errorf("resolve member %s: %w", userID, err)
	}
	return member != nil && member.HasRole(h.moderatorRoleID), nil
}

func (h *actionHandlers) remove(reason repository.LeaveReason, label string) action.Handler {
	return func(ctx context.Context, inv action.Invocation) (string, error) {
		s := h.registry.Get(inv.SessionID)
		if s == nil {
			return messageEphemeralUnknownSession, nil
		}
		if s.HostID() != inv.UserID {
			return messageEphemeralHostOnly, nil
		}
		ok, err := s.Leave(ctx, inv.TargetUserID, reason)
		if err != nil {
			return messageEphemeralRemoveFailed, err
		}
		if !ok {
			return messageEphemeralTargetNotJoined, nil
		}
		return removed(inv.TargetUserID, label), nil
	}
}

func (h *actionHandlers) recommend(ctx context.Context, inv action.Invocation) (string, error) {
	decision, err := h.recommendations.GiveRecommendation(ctx, inv.UserID, inv.TargetUserID)
	if err != nil {
		return messageEphemeralRecommendFailed, err
	}
	switch {
	case decision.SelfGive:
		return messageEphemeralSelfRecommend, nil
	case decision.DailyCap == 0:
		return messageEphemeralRecommendLocked, nil
	case decision.GivenToday >= decision.DailyCap && !decision.Allowed:
		return giveCapReached(decision.DailyCap), nil
	case !decision.Allowed:
		return giveCooldown(decision.CooldownEndsAt), nil
	}
	return recommended(decision.GivenToday, decision.DailyCap), nil
}

func (h *actionHandlers) ping(ctx context.Context, inv action.Invocation) (string, error) {
	s := h.registry.Get(inv.SessionID)
	if s == nil {
		return messageEphemeralUnknownSession, nil
	}
	if s.HostID() != inv.UserID {
		return messageEphemeralHostOnly, nil
	}
	allowed, next, err := h.recommendations.CanPing(ctx, inv.UserID)
	if err != nil {
		return messageEphemeralPingFailed, err
	}
	if !allowed {
		if next.IsZero() {
			return messageEphemeralPingLocked, nil
		}
		return pingCooldown(next), nil
	}
	ok, err := s.Recruit(ctx, inv.UserID)
	if err != nil {
		return messageEphemeralPingFailed, err
	}
	if !ok {
		return messageEphemeralNotRunning, nil
	}
	if err := h.recommendations.MarkPinged(ctx, inv.UserID); err != nil {
		return messageEphemeralPinged, err
	}
	return messageEphemeralPinged, nil
}
