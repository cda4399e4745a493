package webhook

import (
	"context"
	"time"
)

type SessionSummaryPayout struct {
	UserID string  `json:"user_id"`
	Amount float64 `json:"amount"`
}

type SessionSummaryPayload struct {
	SessionID    string                 `json:"session_id"`
	UniqueID     string                 `json:"unique_id"`
	Name         string                 `json:"name"`
	PlayType     string                 `json:"play_type"`
	HostID       string                 `json:"host_id"`
	ExperienceID string                 `json:"experience_id,omitempty"`
	StartedAt    time.Time              `json:"started_at"`
	EndedAt      time.Time              `json:"ended_at"`
	PlayerCount  int                    `json:"player_count"`
	HostPayout   float64                `json:"host_payout"`
	Payouts      []SessionSummaryPayout `json:"payouts"`
}

type Sender interface {
	SendSessionSummary(ctx context.Context, payload SessionSummaryPayload) error
}
