package discord

import (
	"context"

	"github.com/foxseedlab/playhost/internal/repository"
)

type Member struct {
	ID          string
	DisplayName string
	RoleIDs     []string
}

func (m Member) HasRole(roleID string) bool {
	for _, id := range m.RoleIDs {
		if id == roleID {
			return true
		}
	}
	return false
}

type MemberDirectory interface {
	// ResolveMember returns nil when the user is not a member of the guild.
	ResolveMember(ctx context.Context, userID string) (*Member, error)
	AddRole(ctx context.Context, userID, roleID string) error
	RemoveRole(ctx context.Context, userID, roleID string) error
}

// ResourceKind groups the externally visible resources reconnected on reload.
type ResourceKind string

const (
	ResourceChannels ResourceKind = "channels"
	ResourceRoles    ResourceKind = "roles"
	ResourceMessages ResourceKind = "messages"
)

// TeardownStep is one independently destroyable resource category.
type TeardownStep string

const (
	TeardownHostRole      TeardownStep = "host_role"
	TeardownSessionRole   TeardownStep = "session_role"
	TeardownVoiceChannels TeardownStep = "voice_channels"
	TeardownAnnouncements TeardownStep = "announcements"
	TeardownTextChannels  TeardownStep = "text_channels"
	TeardownCategory      TeardownStep = "category"
)

// SessionView is the read-only slice of a session a presenter renders.
type SessionView struct {
	ID        string
	UniqueID  string
	HostID    string
	State     repository.SessionState
	Blueprint repository.Blueprint
	PlayerIDs []string
}

// Presenter owns the external resources of a single session. Every call either
// fully succeeds or returns an error.
type Presenter interface {
	Create(ctx context.Context, view SessionView) error
	Reconnect(ctx context.Context, kind ResourceKind) error
	Teardown(ctx context.Context, step TeardownStep) error
	RemoveAnnouncements(ctx context.Context) error
	BlueprintChanged(ctx context.Context, view SessionView) error
	PlayerJoined(ctx context.Context, view SessionView, member Member) error
	PlayerLeft(ctx context.Context, view SessionView, member Member) error
	Ending(ctx context.Context, view SessionView, by Member, forced bool) error
	// Recruit posts an announcement pinging for players.
	Recruit(ctx context.Context, view SessionView) error
	OwnsChannel(channelID string) bool
	// Resources returns the save data for the current handles.
	Resources() repository.Resources
}

// PresenterFactory builds a presenter for a session. saved is nil for new sessions.
type PresenterFactory func(view SessionView, saved *repository.Resources) Presenter

// ComponentEvent is a button press. Respond replaces the deferred ephemeral reply.
type ComponentEvent struct {
	GuildID   string
	ChannelID string
	CustomID  string
	UserID    string
	Respond   func(content string) error
}

type SlashCommandOptionType int

const (
	SlashCommandOptionString SlashCommandOptionType = iota
	SlashCommandOptionInteger
)

type SlashCommandOption struct {
	Name        string
	Description string
	Type        SlashCommandOptionType
	Required    bool
}

type SlashCommandDefinition struct {
	Name        string
	Description string
	Options     []SlashCommandOption
}

type SlashCommandEvent struct {
	GuildID        string
	ChannelID      string
	CommandName    string
	UserID         string
	StringOptions  map[string]string
	IntegerOptions map[string]int64
	Respond        func(content string) error
}

type Client interface {
	Connect(ctx context.Context) error
	Close() error
	RegisterComponentHandler(handler func(ComponentEvent))
	RegisterSlashCommandHandler(handler func(SlashCommandEvent))
	UpsertGuildSlashCommands(guildID string, defs []SlashCommandDefinition) error
	Run() error
}
