package session

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"sync"

	"github.com/google/uuid"

	"github.com/foxseedlab/playhost/internal/discord"
	"github.com/foxseedlab/playhost/internal/repository"
)

// Registry indexes every live session of the process by unique id.
type Registry struct {
	deps       *Deps
	newPresent discord.PresenterFactory

	mu       sync.RWMutex
	sessions map[string]*Session
}

func NewRegistry(deps *Deps, newPresenter discord.PresenterFactory) *Registry {
	return &Registry{
		deps:       deps,
		newPresent: newPresenter,
		sessions:   make(map[string]*Session),
	}
}

// Load reloads every persisted live session. Sessions whose resources cannot
// be reconnected are destroyed and left out of the registry.
func (r *Registry) Load(ctx context.Context) error {
	records, err := r.deps.Store.ListLiveSessions(ctx)
	if err != nil {
		return fmt.Errorf("list live sessions: %w", err)
	}
	loaded := 0
	for _, rec := range records {
		s := newSession(r.deps, rec, r.newPresent(viewOf(rec), rec.Resources), r.onStateChange)
		if err := s.Setup(ctx); err != nil {
			r.deps.Reporter.Report(ctx, err, "failed to reload session; destroying", "session_id", rec.ID, "unique_id", rec.UniqueID)
			s.Destroy(ctx)
			continue
		}
		if r.add(s) {
			loaded++
		}
	}
	slog.Info("sessions loaded", "loaded", loaded, "persisted", len(records))
	return nil
}

// StartNewSession provisions a session hosted by hostID and registers it.
func (r *Registry) StartNewSession(ctx context.Context, hostID string, bp repository.Blueprint, experienceID string) (*Session, error) {
	rec := repository.SessionRecord{
		ID:           newShortID(),
		UniqueID:     uuid.NewString(),
		State:        repository.SessionStateNew,
		Blueprint:    bp,
		HostID:       hostID,
		ExperienceID: experienceID,
	}
	s := newSession(r.deps, rec, r.newPresent(viewOf(rec), nil), r.onStateChange)
	if err := s.Setup(ctx); err != nil {
		return nil, err
	}
	r.add(s)
	return s, nil
}

// newShortID renders a random 32-bit value as 8 hex characters. Collisions
// with live sessions are not checked.
func newShortID() string {
	return fmt.Sprintf("%08x", rand.Uint32())
}

// add registers s unless it already ended. The state is checked under r.mu
// so a concurrent ended event either sees the entry or finds nothing to add.
func (r *Registry) add(s *Session) bool {
	r.mu.Lock()
	if s.State() == repository.SessionStateEnded {
		r.mu.Unlock()
		return false
	}
	r.sessions[s.UniqueID()] = s
	count := len(r.sessions)
	r.mu.Unlock()
	if r.deps.Metrics != nil {
		r.deps.Metrics.SessionsActive.Set(float64(count))
	}
	return true
}

func (r *Registry) onStateChange(s *Session, state repository.SessionState) {
	if r.deps.Metrics != nil {
		switch state {
		case repository.SessionStateRunning:
			r.deps.Metrics.SessionsStarted.Inc()
		case repository.SessionStateEnded:
			r.deps.Metrics.SessionsEnded.Inc()
		}
	}
	if state != repository.SessionStateEnded {
		return
	}
	r.mu.Lock()
	delete(r.sessions, s.UniqueID())
	count := len(r.sessions)
	r.mu.Unlock()
	if r.deps.Metrics != nil {
		r.deps.Metrics.SessionsActive.Set(float64(count))
	}
}

// Sessions returns a snapshot of the registered sessions.
func (r *Registry) Sessions() []*Session {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		out = append(out, s)
	}
	return out
}

// Get finds a running or stopping session by short id or unique id.
func (r *Registry) Get(idOrUniqueID string) *Session {
	r.mu.RLock()
	s, ok := r.sessions[idOrUniqueID]
	r.mu.RUnlock()
	if ok && s.State().Live() {
		return s
	}
	return r.find(func(s *Session) bool {
		return s.ID() == idOrUniqueID
	})
}

func (r *Registry) ByHost(userID string) *Session {
	return r.find(func(s *Session) bool {
		return s.HostID() == userID
	})
}

func (r *Registry) ByJoinedUser(userID string) *Session {
	return r.find(func(s *Session) bool {
		return s.IsJoined(userID)
	})
}

func (r *Registry) ByChannel(channelID string) *Session {
	return r.find(func(s *Session) bool {
		return s.OwnsChannel(channelID)
	})
}

func (r *Registry) find(match func(*Session) bool) *Session {
	for _, s := range r.Sessions() {
		if s.State().Live() && match(s) {
			return s
		}
	}
	return nil
}
