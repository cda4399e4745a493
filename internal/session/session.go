package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/sourcegraph/conc/iter"

	"github.com/foxseedlab/playhost/internal/config"
	"github.com/foxseedlab/playhost/internal/discord"
	"github.com/foxseedlab/playhost/internal/metrics"
	"github.com/foxseedlab/playhost/internal/playtime"
	"github.com/foxseedlab/playhost/internal/report"
	"github.com/foxseedlab/playhost/internal/repository"
	"github.com/foxseedlab/playhost/internal/webhook"
)

var reloadKinds = []discord.ResourceKind{
	discord.ResourceChannels,
	discord.ResourceRoles,
	discord.ResourceMessages,
}

var teardownSteps = []discord.TeardownStep{
	discord.TeardownHostRole,
	discord.TeardownSessionRole,
	discord.TeardownVoiceChannels,
	discord.TeardownAnnouncements,
	discord.TeardownTextChannels,
	discord.TeardownCategory,
}

// Recommender applies score changes for payouts and penalties.
type Recommender interface {
	AddRecommendationScore(ctx context.Context, userID string, delta float64, force bool) error
}

type Scheduler interface {
	Schedule(key string, at time.Time, fn func())
	Cancel(key string) bool
}

// Deps are the collaborators shared by every session.
type Deps struct {
	Config      *config.Config
	Store       repository.SessionRepository
	Members     discord.MemberDirectory
	Recommender Recommender
	Scheduler   Scheduler
	Reporter    report.Reporter
	Webhook     webhook.Sender
	Metrics     *metrics.Metrics
	Now         func() time.Time
}

func (d *Deps) now() time.Time {
	if d.Now != nil {
		return d.Now()
	}
	return time.Now()
}

// StateListener observes state transitions. It runs while the session is
// busy with the transition and must not call mutating session methods.
type StateListener func(s *Session, state repository.SessionState)

// ReloadError collects failures from several resource kinds.
type ReloadError struct {
	Errs []error
}

func (e *ReloadError) Error() string {
	msgs := make([]string, 0, len(e.Errs))
	for _, err := range e.Errs {
		msgs = append(msgs, err.Error())
	}
	return fmt.Sprintf("%d resource kinds failed to reload: %s", len(e.Errs), strings.Join(msgs, "; "))
}

func (e *ReloadError) Unwrap() []error {
	return e.Errs
}

// Session drives one SessionRecord through new -> running -> stopping -> ended.
// Mutating calls are serialized; accessors never wait on external calls.
type Session struct {
	deps      *Deps
	presenter discord.Presenter
	onState   StateListener

	opMu sync.Mutex

	mu  sync.RWMutex
	rec repository.SessionRecord
}

func newSession(deps *Deps, rec repository.SessionRecord, presenter discord.Presenter, onState StateListener) *Session {
	return &Session{
		deps:      deps,
		presenter: presenter,
		onState:   onState,
		rec:       rec,
	}
}

func (s *Session) ID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.rec.ID
}

func (s *Session) UniqueID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.rec.UniqueID
}

func (s *Session) State() repository.SessionState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.rec.State
}

func (s *Session) Blueprint() repository.Blueprint {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.rec.Blueprint
}

func (s *Session) HostID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.rec.HostID
}

func (s *Session) MaxPlayers() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.rec.Blueprint.MaxPlayers
}

func (s *Session) PlayerCount() int {
	return len(s.JoinedUserIDs())
}

func (s *Session) JoinedUserIDs() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return joinedIDs(s.rec.Players)
}

func (s *Session) IsJoined(userID string) bool {
	return slices.Contains(s.JoinedUserIDs(), userID)
}

// IsBanned reports whether userID was banned from this session.
func (s *Session) IsBanned(userID string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return isBanned(s.rec.Players, userID)
}

func isBanned(players []repository.Player, userID string) bool {
	return slices.ContainsFunc(players, func(p repository.Player) bool {
		return p.ID == userID && p.LeaveReason == repository.LeaveReasonBanned
	})
}

func (s *Session) OwnsChannel(channelID string) bool {
	if !s.State().Live() {
		return false
	}
	return s.presenter.OwnsChannel(channelID)
}

// Record returns a deep copy of the current record.
func (s *Session) Record() repository.SessionRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return cloneRecord(s.rec)
}

// Setup provisions a new session, or reconnects a reloaded one.
func (s *Session) Setup(ctx context.Context) error {
	s.opMu.Lock()
	defer s.opMu.Unlock()

	if s.State() == repository.SessionStateNew {
		return s.setupNew(ctx)
	}
	return s.reload(ctx)
}

func (s *Session) setupNew(ctx context.Context) error {
	rec := s.Record()
	now := s.deps.now()
	rec.State = repository.SessionStateRunning
	rec.StartTime = now
	rec.Players = []repository.Player{}
	rec.PlayTypeHistory = []repository.PlayTypeChange{{Type: rec.Blueprint.Type, From: now}}

	if err := s.presenter.Create(ctx, viewOf(rec)); err != nil {
		return fmt.Errorf("provision session %s: %w", rec.ID, err)
	}
	resources := s.presenter.Resources()
	rec.Resources = &resources

	if err := s.deps.Store.AddSession(ctx, rec); err != nil {
		s.teardown(ctx, rec)
		return fmt.Errorf("persist session %s: %w", rec.ID, err)
	}
	s.commit(rec)
	slog.Info("session started", "session_id", rec.ID, "unique_id", rec.UniqueID, "host_id", rec.HostID, "play_type", rec.Blueprint.Type)
	s.emit(repository.SessionStateRunning)
	return nil
}

func (s *Session) reload(ctx context.Context) error {
	rec := s.Record()
	results := iter.Map(reloadKinds, func(kind *discord.ResourceKind) error {
		if err := s.presenter.Reconnect(ctx, *kind); err != nil {
			return fmt.Errorf("reload %s for session %s: %w", *kind, rec.ID, err)
		}
		return nil
	})
	var errs []error
	for _, err := range results {
		if err != nil {
			errs = append(errs, err)
		}
	}
	switch len(errs) {
	case 0:
	case 1:
		return errs[0]
	default:
		return &ReloadError{Errs: errs}
	}

	if rec.State == repository.SessionStateStopping && rec.EndTime != nil {
		s.scheduleDestroy(*rec.EndTime)
	}
	slog.Info("session reloaded", "session_id", rec.ID, "unique_id", rec.UniqueID, "state", rec.State)
	return nil
}

// TryStopSession starts stopping when userID is the host and the session is running.
func (s *Session) TryStopSession(ctx context.Context, userID string) (bool, error) {
	s.opMu.Lock()
	defer s.opMu.Unlock()

	if s.State() != repository.SessionStateRunning || s.HostID() != userID {
		return false, nil
	}
	return true, s.stop(ctx, userID, false)
}

// ForceStopSession starts stopping on behalf of an authorized non-host.
func (s *Session) ForceStopSession(ctx context.Context, userID string) (bool, error) {
	s.opMu.Lock()
	defer s.opMu.Unlock()

	if s.State() != repository.SessionStateRunning {
		return false, nil
	}
	return true, s.stop(ctx, userID, true)
}

func (s *Session) stop(ctx context.Context, byUserID string, forced bool) error {
	rec := s.Record()
	now := s.deps.now()
	rec.State = repository.SessionStateStopping
	rec.EndTime = &now

	by := s.memberOrStub(ctx, byUserID)
	if err := s.presenter.Ending(ctx, viewOf(rec), by, forced); err != nil {
		s.deps.Reporter.Report(ctx, err, "failed to notify players of ending", "session_id", rec.ID)
	}
	if err := s.presenter.RemoveAnnouncements(ctx); err != nil {
		s.deps.Reporter.Report(ctx, err, "failed to remove announcements", "session_id", rec.ID)
	}
	resources := s.presenter.Resources()
	resources.Messages.Announcements = nil
	rec.Resources = &resources

	s.commit(rec)
	s.scheduleDestroy(now)
	slog.Info("session stopping", "session_id", rec.ID, "by_user_id", byUserID, "forced", forced)
	s.emit(repository.SessionStateStopping)

	if err := s.deps.Store.UpdateSession(ctx, rec); err != nil {
		return fmt.Errorf("persist stopping session %s: %w", rec.ID, err)
	}
	return nil
}

func (s *Session) scheduleDestroy(endTime time.Time) {
	at := endTime.Add(s.deps.Config.SessionEndingDelay)
	s.deps.Scheduler.Schedule(s.UniqueID(), at, func() {
		s.Destroy(context.Background())
	})
}

// Destroy tears the session down and pays out recommendations. It always
// ends in the ended state and does nothing when already ended.
func (s *Session) Destroy(ctx context.Context) {
	s.opMu.Lock()
	defer s.opMu.Unlock()

	rec := s.Record()
	if rec.State == repository.SessionStateEnded {
		return
	}
	s.deps.Scheduler.Cancel(rec.UniqueID)

	now := s.deps.now()
	players := make([]repository.Player, len(rec.Players))
	for i, p := range rec.Players {
		if p.Joined() {
			p.LeaveTime = &now
			p.LeaveReason = repository.LeaveReasonEnded
		}
		players[i] = p
	}
	rec.Players = players
	if rec.EndTime == nil {
		rec.EndTime = &now
	}

	if rec.State.Live() {
		s.teardown(ctx, rec)
	}
	rec.State = repository.SessionStateEnded
	rec.Resources = nil
	s.commit(rec)

	if err := s.deps.Store.UpdateSession(ctx, rec); err != nil {
		s.deps.Reporter.Report(ctx, err, "failed to persist ended session", "session_id", rec.ID)
	}
	payouts := s.payOut(ctx, rec)
	slog.Info("session ended", "session_id", rec.ID, "unique_id", rec.UniqueID, "players_paid", len(payouts.Players), "host_payout", payouts.Host)
	s.emit(repository.SessionStateEnded)
	s.sendSummary(ctx, rec, payouts)
}

// teardown runs every step concurrently and reports each failure.
func (s *Session) teardown(ctx context.Context, rec repository.SessionRecord) {
	iter.ForEach(teardownSteps, func(step *discord.TeardownStep) {
		if err := s.presenter.Teardown(ctx, *step); err != nil {
			if s.deps.Metrics != nil {
				s.deps.Metrics.TeardownFailed(string(*step))
			}
			s.deps.Reporter.Report(ctx, err, "session teardown step failed", "session_id", rec.ID, "step", *step)
		}
	})
}

func (s *Session) payOut(ctx context.Context, rec repository.SessionRecord) playtime.Payouts {
	payouts := playtime.Compute(rec, *rec.EndTime, s.deps.Config.Payout)
	for userID, amount := range payouts.Players {
		if err := s.deps.Recommender.AddRecommendationScore(ctx, userID, amount, false); err != nil {
			s.deps.Reporter.Report(ctx, err, "failed to pay out player", "session_id", rec.ID, "user_id", userID, "amount", amount)
		}
	}
	if payouts.Host > 0 {
		if err := s.deps.Recommender.AddRecommendationScore(ctx, rec.HostID, payouts.Host, false); err != nil {
			s.deps.Reporter.Report(ctx, err, "failed to pay out host", "session_id", rec.ID, "user_id", rec.HostID, "amount", payouts.Host)
		}
	}
	return payouts
}

func (s *Session) sendSummary(ctx context.Context, rec repository.SessionRecord, payouts playtime.Payouts) {
	if s.deps.Webhook == nil {
		return
	}
	payload := webhook.SessionSummaryPayload{
		SessionID:    rec.ID,
		UniqueID:     rec.UniqueID,
		Name:         rec.Blueprint.Name,
		PlayType:     rec.Blueprint.Type,
		HostID:       rec.HostID,
		ExperienceID: rec.ExperienceID,
		StartedAt:    rec.StartTime,
		EndedAt:      *rec.EndTime,
		PlayerCount:  len(distinctPlayerIDs(rec.Players)),
		HostPayout:   payouts.Host,
		Payouts:      make([]webhook.SessionSummaryPayout, 0, len(payouts.Players)),
	}
	for userID, amount := range payouts.Players {
		payload.Payouts = append(payload.Payouts, webhook.SessionSummaryPayout{UserID: userID, Amount: amount})
	}
	slices.SortFunc(payload.Payouts, func(a, b webhook.SessionSummaryPayout) int {
		return strings.Compare(a.UserID, b.UserID)
	})
	if err := s.deps.Webhook.SendSessionSummary(ctx, payload); err != nil {
		s.deps.Reporter.Report(ctx, err, "failed to send session summary webhook", "session_id", rec.ID)
	}
}

// ChangeBlueprint replaces the blueprint. It returns false once ended.
func (s *Session) ChangeBlueprint(ctx context.Context, bp repository.Blueprint) (bool, error) {
	s.opMu.Lock()
	defer s.opMu.Unlock()

	rec := s.Record()
	if rec.State == repository.SessionStateEnded {
		return false, nil
	}
	if bp.Type != rec.Blueprint.Type {
		rec.PlayTypeHistory = appendPlayType(rec.PlayTypeHistory, bp.Type, s.deps.now())
	}
	rec.Blueprint = bp

	var presentErr error
	if rec.State.Live() {
		presentErr = s.presenter.BlueprintChanged(ctx, viewOf(rec))
		resources := s.presenter.Resources()
		if rec.State == repository.SessionStateStopping {
			resources.Messages.Announcements = nil
		}
		rec.Resources = &resources
	}
	s.commit(rec)
	slog.Info("session blueprint changed", "session_id", rec.ID, "play_type", bp.Type, "name", bp.Name)

	if err := s.deps.Store.UpdateSession(ctx, rec); err != nil {
		return true, errors.Join(presentErr, fmt.Errorf("persist blueprint for session %s: %w", rec.ID, err))
	}
	if presentErr != nil {
		return true, fmt.Errorf("present blueprint for session %s: %w", rec.ID, presentErr)
	}
	return true, nil
}

// appendPlayType keeps From strictly increasing. A change at or before the
// last entry's start replaces that entry, which then covered no time.
func appendPlayType(history []repository.PlayTypeChange, playType string, at time.Time) []repository.PlayTypeChange {
	next := slices.Clone(history)
	if n := len(next); n > 0 && !at.After(next[n-1].From) {
		next[n-1].Type = playType
		if n > 1 && next[n-2].Type == playType {
			next = next[:n-1]
		}
		return next
	}
	return append(next, repository.PlayTypeChange{Type: playType, From: at})
}

// Join adds userID as a player. Capacity is the caller's responsibility.
// Users banned from this session are refused.
func (s *Session) Join(ctx context.Context, userID string) (bool, error) {
	s.opMu.Lock()
	defer s.opMu.Unlock()

	rec := s.Record()
	if rec.State != repository.SessionStateRunning || slices.Contains(joinedIDs(rec.Players), userID) || isBanned(rec.Players, userID) {
		return false, nil
	}
	member, err := s.deps.Members.ResolveMember(ctx, userID)
	if err != nil {
		return false, fmt.Errorf("resolve member %s: %w", userID, err)
	}
	if member == nil {
		return false, nil
	}

	rec.Players = append(slices.Clone(rec.Players), repository.Player{ID: userID, JoinTime: s.deps.now()})
	if err := s.deps.Store.UpdateSession(ctx, rec); err != nil {
		return false, fmt.Errorf("persist join for session %s: %w", rec.ID, err)
	}
	s.commit(rec)
	slog.Info("player joined", "session_id", rec.ID, "user_id", userID, "players", len(joinedIDs(rec.Players)))

	if err := s.presenter.PlayerJoined(ctx, viewOf(rec), *member); err != nil {
		s.deps.Reporter.Report(ctx, err, "failed to present player join", "session_id", rec.ID, "user_id", userID)
	}
	return true, nil
}

// Leave closes the open entry of userID. Kicks and bans cost reputation.
func (s *Session) Leave(ctx context.Context, userID string, reason repository.LeaveReason) (bool, error) {
	s.opMu.Lock()
	defer s.opMu.Unlock()

	rec := s.Record()
	idx := slices.IndexFunc(rec.Players, func(p repository.Player) bool {
		return p.ID == userID && p.Joined()
	})
	if idx < 0 {
		return false, nil
	}
	if reason == "" {
		reason = repository.LeaveReasonLeft
	}

	now := s.deps.now()
	updated := rec.Players[idx]
	updated.LeaveTime = &now
	updated.LeaveReason = reason
	players := slices.Clone(rec.Players)
	players[idx] = updated
	rec.Players = players

	if err := s.deps.Store.UpdateSession(ctx, rec); err != nil {
		return false, fmt.Errorf("persist leave for session %s: %w", rec.ID, err)
	}
	s.commit(rec)
	slog.Info("player left", "session_id", rec.ID, "user_id", userID, "reason", reason)

	if reason.Punitive() {
		penalty := -s.deps.Config.Recommendation.KickPenalty
		if err := s.deps.Recommender.AddRecommendationScore(ctx, userID, penalty, true); err != nil {
			s.deps.Reporter.Report(ctx, err, "failed to apply leave penalty", "session_id", rec.ID, "user_id", userID, "reason", reason)
		}
	}
	if rec.State.Live() {
		member := s.memberOrStub(ctx, userID)
		if err := s.presenter.PlayerLeft(ctx, viewOf(rec), member); err != nil {
			s.deps.Reporter.Report(ctx, err, "failed to present player leave", "session_id", rec.ID, "user_id", userID)
		}
	}
	return true, nil
}

// Recruit posts a recruiting announcement. Only the host of a running session may.
func (s *Session) Recruit(ctx context.Context, userID string) (bool, error) {
	s.opMu.Lock()
	defer s.opMu.Unlock()

	rec := s.Record()
	if rec.State != repository.SessionStateRunning || rec.HostID != userID {
		return false, nil
	}
	if err := s.presenter.Recruit(ctx, viewOf(rec)); err != nil {
		return false, fmt.Errorf("recruit for session %s: %w", rec.ID, err)
	}
	resources := s.presenter.Resources()
	rec.Resources = &resources
	s.commit(rec)
	if err := s.deps.Store.UpdateSession(ctx, rec); err != nil {
		return true, fmt.Errorf("persist announcements for session %s: %w", rec.ID, err)
	}
	return true, nil
}

func (s *Session) memberOrStub(ctx context.Context, userID string) discord.Member {
	member, err := s.deps.Members.ResolveMember(ctx, userID)
	if err != nil || member == nil {
		return discord.Member{ID: userID}
	}
	return *member
}

func (s *Session) commit(rec repository.SessionRecord) {
	s.mu.Lock()
	s.rec = rec
	s.mu.Unlock()
}

func (s *Session) emit(state repository.SessionState) {
	if s.onState != nil {
		s.onState(s, state)
	}
}

func viewOf(rec repository.SessionRecord) discord.SessionView {
	return discord.SessionView{
		ID:        rec.ID,
		UniqueID:  rec.UniqueID,
		HostID:    rec.HostID,
		State:     rec.State,
		Blueprint: rec.Blueprint,
		PlayerIDs: joinedIDs(rec.Players),
	}
}

func joinedIDs(players []repository.Player) []string {
	ids := make([]string, 0, len(players))
	for _, p := range players {
		if p.Joined() {
			ids = append(ids, p.ID)
		}
	}
	return ids
}

func distinctPlayerIDs(players []repository.Player) []string {
	seen := make(map[string]struct{}, len(players))
	ids := make([]string, 0, len(players))
	for _, p := range players {
		if _, ok := seen[p.ID]; ok {
			continue
		}
		seen[p.ID] = struct{}{}
		ids = append(ids, p.ID)
	}
	return ids
}

func cloneRecord(rec repository.SessionRecord) repository.SessionRecord {
	out := rec
	out.Players = slices.Clone(rec.Players)
	out.PlayTypeHistory = slices.Clone(rec.PlayTypeHistory)
	out.Blueprint.VoiceChannels = slices.Clone(rec.Blueprint.VoiceChannels)
	if rec.Blueprint.Preferences != nil {
		out.Blueprint.Preferences = make(map[string]string, len(rec.Blueprint.Preferences))
		for k, v := range rec.Blueprint.Preferences {
			out.Blueprint.Preferences[k] = v
		}
	}
	if rec.Resources != nil {
		res := *rec.Resources
		res.Channels.VoiceChannelIDs = slices.Clone(rec.Resources.Channels.VoiceChannelIDs)
		res.Messages.Announcements = slices.Clone(rec.Resources.Messages.Announcements)
		out.Resources = &res
	}
	return out
}
