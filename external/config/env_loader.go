package config

import (
	"fmt"
	"log/slog"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	internalconfig "github.com/foxseedlab/playhost/internal/config"
	"github.com/joho/godotenv"
)

type envConfig struct {
	Env         string `env:"ENV" envDefault:"production"`
	MetricsAddr string `env:"METRICS_ADDR" envDefault:":9090"`

	DiscordToken             string `env:"DISCORD_TOKEN,required"`
	DiscordGuildID           string `env:"DISCORD_GUILD_ID,required"`
	DiscordAnnounceChannelID string `env:"DISCORD_ANNOUNCE_CHANNEL_ID"`
	DiscordHostRoleID        string `env:"DISCORD_HOST_ROLE_ID"`
	DiscordModeratorRoleID   string `env:"DISCORD_MODERATOR_ROLE_ID"`

	StoreDriver string `env:"STORE_DRIVER" envDefault:"postgres"`
	DatabaseURL string `env:"DATABASE_URL"`
	SQLitePath  string `env:"SQLITE_PATH" envDefault:"playhost.db"`
	RedisURL    string `env:"REDIS_URL,required"`

	SessionWebhookURL  string        `env:"SESSION_WEBHOOK_URL"`
	SessionEndingDelay time.Duration `env:"SESSION_ENDING_DELAY" envDefault:"5m"`

	RecommendationDecayPerHour float64   `env:"RECOMMENDATION_DECAY_PER_HOUR" envDefault:"0.1"`
	RecommendationCheckpoints  []float64 `env:"RECOMMENDATION_CHECKPOINTS" envDefault:"0,50,100,200,400"`
	// RecommendationRoleTiers is a comma separated list of threshold:role_id pairs.
	RecommendationRoleTiers    []string      `env:"RECOMMENDATION_ROLE_TIERS"`
	RecommendationKickPenalty  float64       `env:"RECOMMENDATION_KICK_PENALTY" envDefault:"20"`
	RecommendationGiveAmount   float64       `env:"RECOMMENDATION_GIVE_AMOUNT" envDefault:"5"`
	RecommendationGiveCooldown time.Duration `env:"RECOMMENDATION_GIVE_COOLDOWN" envDefault:"24h"`
	RecommendationGiveMinDay   int           `env:"RECOMMENDATION_GIVE_MIN_PER_DAY" envDefault:"1"`
	RecommendationGiveMaxDay   int           `env:"RECOMMENDATION_GIVE_MAX_PER_DAY" envDefault:"5"`
	RecommendationGivePartial  float64       `env:"RECOMMENDATION_GIVE_PARTIAL_UNLOCK" envDefault:"10"`
	RecommendationGiveFull     float64       `env:"RECOMMENDATION_GIVE_FULL_UNLOCK" envDefault:"200"`
	RecommendationPingMaxDelay time.Duration `env:"RECOMMENDATION_PING_MAX_DELAY" envDefault:"24h"`
	RecommendationPingPartial  float64       `env:"RECOMMENDATION_PING_PARTIAL_UNLOCK" envDefault:"50"`
	RecommendationPingFull     float64       `env:"RECOMMENDATION_PING_FULL_UNLOCK" envDefault:"400"`

	PayoutPlayerScorePerMinute float64            `env:"PAYOUT_PLAYER_SCORE_PER_MINUTE" envDefault:"0.1"`
	PayoutPlayerJoinBonus      float64            `env:"PAYOUT_PLAYER_JOIN_BONUS" envDefault:"1"`
	PayoutHostScorePerMinute   float64            `env:"PAYOUT_HOST_SCORE_PER_MINUTE" envDefault:"0.05"`
	PayoutHostJoinBonus        float64            `env:"PAYOUT_HOST_JOIN_BONUS" envDefault:"2"`
	PayoutMinimumMinutes       float64            `env:"PAYOUT_MINIMUM_MINUTES" envDefault:"10"`
	PayoutPlayTypeMultipliers  map[string]float64 `env:"PAYOUT_PLAY_TYPE_MULTIPLIERS" envKeyValSeparator:"="`
}

// Load reads an optional .env file and then the process environment.
func Load() (*internalconfig.Config, error) {
	if err := godotenv.Load(); err == nil {
		slog.Info("loaded environment from .env")
	}

	var raw envConfig
	if err := env.Parse(&raw); err != nil {
		return nil, fmt.Errorf("environment variables are invalid or missing: %w", err)
	}
	tiers, err := parseRoleTiers(raw.RecommendationRoleTiers)
	if err != nil {
		return nil, err
	}

	cfg := &internalconfig.Config{
		Env:                      raw.Env,
		MetricsAddr:              raw.MetricsAddr,
		DiscordToken:             raw.DiscordToken,
		DiscordGuildID:           raw.DiscordGuildID,
		DiscordAnnounceChannelID: raw.DiscordAnnounceChannelID,
		DiscordHostRoleID:        raw.DiscordHostRoleID,
		DiscordModeratorRoleID:   raw.DiscordModeratorRoleID,
		StoreDriver:              raw.StoreDriver,
		DatabaseURL:              raw.DatabaseURL,
		SQLitePath:               raw.SQLitePath,
		RedisURL:                 raw.RedisURL,
		SessionWebhookURL:        raw.SessionWebhookURL,
		SessionEndingDelay:       raw.SessionEndingDelay,
		Recommendation: internalconfig.Recommendation{
			DecayPerHour:      raw.RecommendationDecayPerHour,
			Checkpoints:       raw.RecommendationCheckpoints,
			RoleTiers:         tiers,
			KickPenalty:       raw.RecommendationKickPenalty,
			GiveAmount:        raw.RecommendationGiveAmount,
			GiveCooldown:      raw.RecommendationGiveCooldown,
			GiveMinPerDay:     raw.RecommendationGiveMinDay,
			GiveMaxPerDay:     raw.RecommendationGiveMaxDay,
			GivePartialUnlock: raw.RecommendationGivePartial,
			GiveFullUnlock:    raw.RecommendationGiveFull,
			PingMaxDelay:      raw.RecommendationPingMaxDelay,
			PingPartialUnlock: raw.RecommendationPingPartial,
			PingFullUnlock:    raw.RecommendationPingFull,
		},
		Payout: internalconfig.Payout{
			PlayerScorePerMinute: raw.PayoutPlayerScorePerMinute,
			PlayerJoinBonus:      raw.PayoutPlayerJoinBonus,
			HostScorePerMinute:   raw.PayoutHostScorePerMinute,
			HostJoinBonus:        raw.PayoutHostJoinBonus,
			MinimumMinutes:       raw.PayoutMinimumMinutes,
			PlayTypeMultipliers:  raw.PayoutPlayTypeMultipliers,
		},
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// parseRoleTiers reads threshold:role_id pairs sorted by ascending threshold.
func parseRoleTiers(entries []string) ([]internalconfig.RoleTier, error) {
	tiers := make([]internalconfig.RoleTier, 0, len(entries))
	for _, entry := range entries {
		threshold, roleID, ok := strings.Cut(strings.TrimSpace(entry), ":")
		if !ok {
			return nil, fmt.Errorf("RECOMMENDATION_ROLE_TIERS entry %q must be threshold:role_id", entry)
		}
		value, err := strconv.ParseFloat(threshold, 64)
		if err != nil {
			return nil, fmt.Errorf("RECOMMENDATION_ROLE_TIERS threshold %q: %w", threshold, err)
		}
		tiers = append(tiers, internalconfig.RoleTier{Threshold: value, RoleID: roleID})
	}
	slices.SortFunc(tiers, func(a, b internalconfig.RoleTier) int {
		switch {
		case a.Threshold < b.Threshold:
			return -1
		case a.Threshold > b.Threshold:
			return 1
		}
		return 0
	})
	return tiers, nil
}
