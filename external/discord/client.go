package discord

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/bwmarrin/discordgo"
	discordpkg "github.com/foxseedlab/playhost/internal/discord"
)

type Client struct {
	session *discordgo.Session
	done    chan struct{}
}

// NewClient prepares a gateway session without opening it. REST calls made
// through Session work before Connect.
func NewClient(token string) (*Client, error) {
	s, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, err
	}
	s.Identify.Intents = discordgo.MakeIntent(discordgo.IntentsGuilds | discordgo.IntentsGuildMembers)
	return &Client{session: s, done: make(chan struct{})}, nil
}

func (c *Client) Session() *discordgo.Session {
	return c.session
}

func (c *Client) Connect(ctx context.Context) error {
	_ = ctx
	if err := c.session.Open(); err != nil {
		return err
	}
	slog.Info("discord gateway connected", "user_id", c.botUserID())
	return nil
}

func (c *Client) Close() error {
	select {
	case <-c.done:
	default:
		close(c.done)
	}
	return c.session.Close()
}

// Run blocks until Close is called.
func (c *Client) Run() error {
	<-c.done
	return nil
}

// RegisterComponentHandler acknowledges every button press with a deferred
// ephemeral reply before invoking handler.
func (c *Client) RegisterComponentHandler(handler func(discordpkg.ComponentEvent)) {
	c.session.AddHandler(func(s *discordgo.Session, ic *discordgo.InteractionCreate) {
		if ic == nil || ic.Type != discordgo.InteractionMessageComponent {
			return
		}
		userID := interactionUserID(ic)
		customID := ic.MessageComponentData().CustomID
		if userID == "" || customID == "" {
			return
		}
		if err := deferEphemeral(s, ic); err != nil {
			slog.Error("failed to acknowledge component interaction", "custom_id", customID, "user_id", userID, "error", err)
			return
		}
		slog.Info("component interaction received", "guild_id", ic.GuildID, "channel_id", ic.ChannelID, "custom_id", customID, "user_id", userID)
		handler(discordpkg.ComponentEvent{
			GuildID:   ic.GuildID,
			ChannelID: ic.ChannelID,
			CustomID:  customID,
			UserID:    userID,
			Respond:   editResponse(s, ic),
		})
	})
}

func (c *Client) RegisterSlashCommandHandler(handler func(discordpkg.SlashCommandEvent)) {
	c.session.AddHandler(func(s *discordgo.Session, ic *discordgo.InteractionCreate) {
		if ic == nil || ic.Type != discordgo.InteractionApplicationCommand {
			return
		}
		data := ic.ApplicationCommandData()
		if data.Name == "" {
			return
		}
		userID := interactionUserID(ic)
		if userID == "" {
			return
		}
		if err := deferEphemeral(s, ic); err != nil {
			slog.Error("failed to acknowledge slash interaction", "command", data.Name, "user_id", userID, "error", err)
			return
		}
		slog.Info("slash command interaction received", "guild_id", ic.GuildID, "channel_id", ic.ChannelID, "command", data.Name, "user_id", userID)
		event := discordpkg.SlashCommandEvent{
			GuildID:        ic.GuildID,
			ChannelID:      ic.ChannelID,
			CommandName:    data.Name,
			UserID:         userID,
			StringOptions:  make(map[string]string),
			IntegerOptions: make(map[string]int64),
			Respond:        editResponse(s, ic),
		}
		for _, opt := range data.Options {
			switch opt.Type {
			case discordgo.ApplicationCommandOptionString:
				event.StringOptions[opt.Name] = opt.StringValue()
			case discordgo.ApplicationCommandOptionInteger:
				event.IntegerOptions[opt.Name] = opt.IntValue()
			}
		}
		handler(event)
	})
}

func deferEphemeral(s *discordgo.Session, ic *discordgo.InteractionCreate) error {
	return s.InteractionRespond(ic.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseDeferredChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Flags: discordgo.MessageFlagsEphemeral,
		},
	})
}

func editResponse(s *discordgo.Session, ic *discordgo.InteractionCreate) func(string) error {
	return func(content string) error {
		_, err := s.InteractionResponseEdit(ic.Interaction, &discordgo.WebhookEdit{Content: &content})
		return err
	}
}

func interactionUserID(ic *discordgo.InteractionCreate) string {
	if ic.Member != nil && ic.Member.User != nil {
		return ic.Member.User.ID
	}
	if ic.User != nil {
		return ic.User.ID
	}
	return ""
}

func (c *Client) UpsertGuildSlashCommands(guildID string, defs []discordpkg.SlashCommandDefinition) error {
	appID := c.applicationID()
	if appID == "" {
		return fmt.Errorf("discord application id is not available")
	}
	existing, err := c.session.ApplicationCommands(appID, guildID)
	if err != nil {
		return err
	}
	existingByName := make(map[string]*discordgo.ApplicationCommand, len(existing))
	for _, cmd := range existing {
		if cmd == nil || cmd.Name == "" {
			continue
		}
		existingByName[cmd.Name] = cmd
	}
	for _, def := range defs {
		if err := c.upsertGuildSlashCommand(appID, guildID, def, existingByName); err != nil {
			return fmt.Errorf("upsert /%s: %w", def.Name, err)
		}
	}
	return nil
}

func (c *Client) upsertGuildSlashCommand(appID, guildID string, def discordpkg.SlashCommandDefinition, existingByName map[string]*discordgo.ApplicationCommand) error {
	if def.Name == "" {
		return nil
	}
	payload := commandPayload(def)
	cmd, ok := existingByName[def.Name]
	if !ok {
		_, err := c.session.ApplicationCommandCreate(appID, guildID, payload)
		return err
	}
	if commandMatches(cmd, payload) {
		return nil
	}
	_, err := c.session.ApplicationCommandEdit(appID, guildID, cmd.ID, payload)
	return err
}

func commandPayload(def discordpkg.SlashCommandDefinition) *discordgo.ApplicationCommand {
	payload := &discordgo.ApplicationCommand{
		Name:        def.Name,
		Description: def.Description,
	}
	for _, opt := range def.Options {
		optType := discordgo.ApplicationCommandOptionString
		if opt.Type == discordpkg.SlashCommandOptionInteger {
			optType = discordgo.ApplicationCommandOptionInteger
		}
		payload.Options = append(payload.Options, &discordgo.ApplicationCommandOption{
			Name:        opt.Name,
			Description: opt.Description,
			Type:        optType,
			Required:    opt.Required,
		})
	}
	return payload
}

func commandMatches(existing, want *discordgo.ApplicationCommand) bool {
	if existing.Description != want.Description || len(existing.Options) != len(want.Options) {
		return false
	}
	for i, opt := range want.Options {
		got := existing.Options[i]
		if got == nil || got.Name != opt.Name || got.Description != opt.Description || got.Type != opt.Type || got.Required != opt.Required {
			return false
		}
	}
	return true
}

func isRESTNotFound(err error) bool {
	var restErr *discordgo.RESTError
	if !errors.As(err, &restErr) {
		return false
	}
	if restErr.Response == nil {
		return false
	}
	return restErr.Response.StatusCode == http.StatusNotFound
}

func (c *Client) botUserID() string {
	if c.session.State != nil && c.session.State.User != nil {
		return c.session.State.User.ID
	}
	return ""
}

func (c *Client) applicationID() string {
	if c.session == nil || c.session.State == nil {
		return ""
	}
	if c.session.State.Application != nil && c.session.State.Application.ID != "" {
		return c.session.State.Application.ID
	}
	return c.botUserID()
}

var _ discordpkg.Client = (*Client)(nil)
