package config

import (
	"fmt"
	"slices"
	"time"
)

const (
	StoreDriverPostgres = "postgres"
	StoreDriverSQLite   = "sqlite"
)

type Config struct {
	Env         string
	MetricsAddr string

	DiscordToken             string
	DiscordGuildID           string
	DiscordAnnounceChannelID string
	DiscordHostRoleID        string
	// DiscordModeratorRoleID may force-stop sessions hosted by others.
	DiscordModeratorRoleID string

	StoreDriver string
	DatabaseURL string
	SQLitePath  string
	RedisURL    string

	SessionWebhookURL  string
	SessionEndingDelay time.Duration

	Recommendation Recommendation
	Payout         Payout
}

// RoleTier is a role granted once a recommendation score reaches Threshold.
type RoleTier struct {
	Threshold float64
	RoleID    string
}

type Recommendation struct {
	DecayPerHour float64
	Checkpoints  []float64
	RoleTiers    []RoleTier
	KickPenalty  float64

	GiveAmount        float64
	GiveCooldown      time.Duration
	GiveMinPerDay     int
	GiveMaxPerDay     int
	GivePartialUnlock float64
	GiveFullUnlock    float64

	PingMaxDelay      time.Duration
	PingPartialUnlock float64
	PingFullUnlock    float64
}

type Payout struct {
	PlayerScorePerMinute float64
	PlayerJoinBonus      float64
	HostScorePerMinute   float64
	HostJoinBonus        float64
	MinimumMinutes       float64
	PlayTypeMultipliers  map[string]float64
}

// Multiplier returns the configured weight for a play type, 1 when unset.
func (p Payout) Multiplier(playType string) float64 {
	if m, ok := p.PlayTypeMultipliers[playType]; ok {
		return m
	}
	return 1
}

func (c *Config) Validate() error {
	for _, req := range c.requiredFieldChecks() {
		if req.value == "" {
			return fmt.Errorf("%s is required", req.name)
		}
	}
	switch c.StoreDriver {
	case StoreDriverPostgres:
		if c.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL is required when STORE_DRIVER=%s", StoreDriverPostgres)
		}
	case StoreDriverSQLite:
		if c.SQLitePath == "" {
			return fmt.Errorf("SQLITE_PATH is required when STORE_DRIVER=%s", StoreDriverSQLite)
		}
	default:
		return fmt.Errorf("STORE_DRIVER must be %q or %q, got %q", StoreDriverPostgres, StoreDriverSQLite, c.StoreDriver)
	}
	if c.SessionEndingDelay < 0 {
		return fmt.Errorf("SESSION_ENDING_DELAY must not be negative, got %s", c.SessionEndingDelay)
	}
	if err := c.Recommendation.validate(); err != nil {
		return err
	}
	return c.Payout.validate()
}

func (r Recommendation) validate() error {
	if r.DecayPerHour < 0 {
		return fmt.Errorf("RECOMMENDATION_DECAY_PER_HOUR must not be negative, got %v", r.DecayPerHour)
	}
	if !slices.IsSorted(r.Checkpoints) {
		return fmt.Errorf("RECOMMENDATION_CHECKPOINTS must be ascending, got %v", r.Checkpoints)
	}
	if r.GiveFullUnlock < r.GivePartialUnlock {
		return fmt.Errorf("RECOMMENDATION_GIVE_FULL_UNLOCK (%v) must be >= RECOMMENDATION_GIVE_PARTIAL_UNLOCK (%v)", r.GiveFullUnlock, r.GivePartialUnlock)
	}
	if r.GiveMaxPerDay < r.GiveMinPerDay || r.GiveMinPerDay < 0 {
		return fmt.Errorf("RECOMMENDATION_GIVE_MIN_PER_DAY (%d) and RECOMMENDATION_GIVE_MAX_PER_DAY (%d) are inconsistent", r.GiveMinPerDay, r.GiveMaxPerDay)
	}
	if r.PingFullUnlock < r.PingPartialUnlock {
		return fmt.Errorf("RECOMMENDATION_PING_FULL_UNLOCK (%v) must be >= RECOMMENDATION_PING_PARTIAL_UNLOCK (%v)", r.PingFullUnlock, r.PingPartialUnlock)
	}
	for _, tier := range r.RoleTiers {
		if tier.RoleID == "" {
			return fmt.Errorf("RECOMMENDATION_ROLE_TIERS has an empty role id for threshold %v", tier.Threshold)
		}
	}
	return nil
}

func (p Payout) validate() error {
	if p.MinimumMinutes < 0 {
		return fmt.Errorf("PAYOUT_MINIMUM_MINUTES must not be negative, got %v", p.MinimumMinutes)
	}
	for playType, m := range p.PlayTypeMultipliers {
		if m < 0 {
			return fmt.Errorf("PAYOUT_PLAY_TYPE_MULTIPLIERS[%s] must not be negative, got %v", playType, m)
		}
	}
	return nil
}

type requiredEnvField struct {
	name  string
	value string
}

func (c *Config) requiredFieldChecks() []requiredEnvField {
	return []requiredEnvField{
		{name: "DISCORD_TOKEN", value: c.DiscordToken},
		{name: "DISCORD_GUILD_ID", value: c.DiscordGuildID},
		{name: "REDIS_URL", value: c.RedisURL},
	}
}

func (c *Config) IsDevelopment() bool {
	return c.Env == "development"
}
