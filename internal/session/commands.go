package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/foxseedlab/playhost/internal/action"
	"github.com/foxseedlab/playhost/internal/discord"
	"github.com/foxseedlab/playhost/internal/report"
	"github.com/foxseedlab/playhost/internal/repository"
)

const (
	commandStart = "session"
	commandScore = "score"

	optionName       = "name"
	optionType       = "type"
	optionMaxPlayers = "max_players"
	optionServerInfo = "server_info"

	defaultPlayType  = "casual"
	voiceChannelName = "VC"
)

func SlashCommandDefinitions() []discord.SlashCommandDefinition {
	return []discord.SlashCommandDefinition{
		{
			Name:        commandStart,
			Description: "プレイセッションを開始します",
			Options: []discord.SlashCommandOption{
				{Name: optionName, Description: "ゲーム名", Type: discord.SlashCommandOptionString, Required: true},
				{Name: optionType, Description: "プレイタイプ", Type: discord.SlashCommandOptionString},
				{Name: optionMaxPlayers, Description: "最大参加人数 (0 で無制限)", Type: discord.SlashCommandOptionInteger},
				{Name: optionServerInfo, Description: "サーバー情報", Type: discord.SlashCommandOptionString},
			},
		},
		{
			Name:        commandScore,
			Description: "自分のおすすめスコアを表示します",
		},
	}
}

// ScoreReader reports a user's decayed recommendation score.
type ScoreReader interface {
	GetRecommendationScore(ctx context.Context, userID string) (float64, error)
}

// Interactions routes gateway interactions for the configured guild to the
// registry and the action router.
type Interactions struct {
	guildID  string
	registry *Registry
	router   *action.Router
	scores   ScoreReader
	reporter report.Reporter
}

func NewInteractions(guildID string, registry *Registry, router *action.Router, scores ScoreReader, reporter report.Reporter) *Interactions {
	return &Interactions{
		guildID:  guildID,
		registry: registry,
		router:   router,
		scores:   scores,
		reporter: reporter,
	}
}

func (in *Interactions) HandleComponent(event discord.ComponentEvent) {
	if event.GuildID != in.guildID {
		slog.Info("ignoring component for different guild", "event_guild_id", event.GuildID, "configured_guild_id", in.guildID)
		return
	}
	ctx := context.Background()
	reply, err := in.router.Dispatch(ctx, event.CustomID, event.UserID, event.ChannelID)
	switch {
	case errors.Is(err, action.ErrMalformedID), errors.Is(err, action.ErrUnknownAction), errors.Is(err, action.ErrNoHandler):
		slog.Warn("unroutable component interaction", "custom_id", event.CustomID, "error", err)
		reply = messageEphemeralUnknownSession
	case err != nil:
		in.reporter.Report(ctx, err, "component action failed", "custom_id", event.CustomID, "user_id", event.UserID)
	}
	in.respond(event.Respond, reply)
}

func (in *Interactions) HandleSlashCommand(event discord.SlashCommandEvent) {
	if event.GuildID != in.guildID {
		slog.Info("ignoring slash command for different guild", "event_guild_id", event.GuildID, "configured_guild_id", in.guildID)
		return
	}
	ctx := context.Background()
	var reply string
	switch event.CommandName {
	case commandStart:
		reply = in.start(ctx, event)
	case commandScore:
		reply = in.score(ctx, event.UserID)
	default:
		slog.Warn("unknown slash command", "command", event.CommandName)
		return
	}
	in.respond(event.Respond, reply)
}

func (in *Interactions) start(ctx context.Context, event discord.SlashCommandEvent) string {
	if in.registry.ByHost(event.UserID) != nil || in.registry.ByJoinedUser(event.UserID) != nil {
		return messageEphemeralInOtherSession
	}
	bp, err := blueprintFromOptions(event)
	if err != nil {
		return messageEphemeralInvalidOptions
	}
	s, err := in.registry.StartNewSession(ctx, event.UserID, bp, "")
	if err != nil {
		in.reporter.Report(ctx, err, "failed to start session", "host_id", event.UserID)
		return messageEphemeralStartFailed
	}
	return sessionStarted(s.ID())
}

func blueprintFromOptions(event discord.SlashCommandEvent) (repository.Blueprint, error) {
	name := strings.TrimSpace(event.StringOptions[optionName])
	if name == "" {
		return repository.Blueprint{}, fmt.Errorf("%s is required", optionName)
	}
	maxPlayers := event.IntegerOptions[optionMaxPlayers]
	if maxPlayers < 0 {
		return repository.Blueprint{}, fmt.Errorf("%s must not be negative", optionMaxPlayers)
	}
	playType := strings.TrimSpace(event.StringOptions[optionType])
	if playType == "" {
		playType = defaultPlayType
	}
	return repository.Blueprint{
		Name:       name,
		Type:       playType,
		ServerInfo: strings.TrimSpace(event.StringOptions[optionServerInfo]),
		MaxPlayers: int(maxPlayers),
		VoiceChannels: []repository.VoiceChannelSpec{
			{Name: voiceChannelName},
		},
	}, nil
}

func (in *Interactions) score(ctx context.Context, userID string) string {
	score, err := in.scores.GetRecommendationScore(ctx, userID)
	if err != nil {
		in.reporter.Report(ctx, err, "failed to read recommendation score", "user_id", userID)
		return messageEphemeralScoreFailed
	}
	return recommendationScore(score)
}

func (in *Interactions) respond(respond func(string) error, content string) {
	if respond == nil || content == "" {
		return
	}
	if err := respond(content); err != nil {
		slog.Error("failed to respond to interaction", "error", err)
	}
}
