package repository

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound indicates the requested record does not exist.
var ErrNotFound = errors.New("repository: not found")

type SessionRepository interface {
	AddSession(ctx context.Context, record SessionRecord) error
	// UpdateSession replaces the whole stored record.
	UpdateSession(ctx context.Context, record SessionRecord) error
	GetSession(ctx context.Context, uniqueID string) (*SessionRecord, error)
	ListLiveSessions(ctx context.Context) ([]SessionRecord, error)
}

type ReputationRepository interface {
	// GetReputation returns a zero-score reputation for unknown users.
	GetReputation(ctx context.Context, userID string) (UserReputation, error)
	UpdateScoreFields(ctx context.Context, rep UserReputation) error
	UpdateLastPing(ctx context.Context, userID string, at time.Time) error
}

type Repository interface {
	SessionRepository
	ReputationRepository
	Migrate(ctx context.Context) error
	Close()
}
