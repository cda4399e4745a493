package discord

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"github.com/bwmarrin/discordgo"
	"github.com/foxseedlab/playhost/internal/action"
	discordpkg "github.com/foxseedlab/playhost/internal/discord"
	"github.com/foxseedlab/playhost/internal/repository"
)

type PresenterConfig struct {
	GuildID           string
	AnnounceChannelID string
	HostRoleID        string
}

// Presenter renders one session as a category with text and voice channels,
// a mentionable session role, a control message and announcements.
type Presenter struct {
	session *discordgo.Session
	cfg     PresenterConfig
	hostID  string

	mu        sync.Mutex
	resources repository.Resources
}

func NewPresenterFactory(s *discordgo.Session, cfg PresenterConfig) discordpkg.PresenterFactory {
	return func(view discordpkg.SessionView, saved *repository.Resources) discordpkg.Presenter {
		p := &Presenter{session: s, cfg: cfg, hostID: view.HostID}
		if saved != nil {
			p.resources = cloneResources(*saved)
		}
		return p
	}
}

func cloneResources(r repository.Resources) repository.Resources {
	r.Channels.VoiceChannelIDs = slices.Clone(r.Channels.VoiceChannelIDs)
	r.Messages.Announcements = slices.Clone(r.Messages.Announcements)
	return r
}

func (p *Presenter) Resources() repository.Resources {
	p.mu.Lock()
	defer p.mu.Unlock()
	return cloneResources(p.resources)
}

func (p *Presenter) OwnsChannel(channelID string) bool {
	if channelID == "" {
		return false
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	ch := p.resources.Channels
	return channelID == ch.CategoryID || channelID == ch.TextChannelID || slices.Contains(ch.VoiceChannelIDs, channelID)
}

func (p *Presenter) Create(ctx context.Context, view discordpkg.SessionView) error {
	if err := p.create(ctx, view); err != nil {
		p.rollback(ctx)
		return err
	}
	slog.Info("session resources created", "session_id", view.ID, "category_id", p.Resources().Channels.CategoryID)
	return nil
}

func (p *Presenter) create(ctx context.Context, view discordpkg.SessionView) error {
	opts := []discordgo.RequestOption{discordgo.WithContext(ctx)}

	role, err := p.session.GuildRoleCreate(p.cfg.GuildID, &discordgo.RoleParams{
		Name:        sessionRoleName(view),
		Mentionable: boolPtr(true),
	}, opts...)
	if err != nil {
		return fmt.Errorf("create session role: %w", err)
	}
	p.update(func(r *repository.Resources) { r.Roles.SessionRoleID = role.ID })

	category, err := p.session.GuildChannelCreateComplex(p.cfg.GuildID, discordgo.GuildChannelCreateData{
		Name: categoryName(view),
		Type: discordgo.ChannelTypeGuildCategory,
	}, opts...)
	if err != nil {
		return fmt.Errorf("create category: %w", err)
	}
	p.update(func(r *repository.Resources) { r.Channels.CategoryID = category.ID })

	text, err := p.session.GuildChannelCreateComplex(p.cfg.GuildID, discordgo.GuildChannelCreateData{
		Name:     textChannelName,
		Type:     discordgo.ChannelTypeGuildText,
		Topic:    view.Blueprint.ServerInfo,
		ParentID: category.ID,
	}, opts...)
	if err != nil {
		return fmt.Errorf("create text channel: %w", err)
	}
	p.update(func(r *repository.Resources) { r.Channels.TextChannelID = text.ID })

	if err := p.syncVoiceChannels(ctx, view); err != nil {
		return err
	}

	if err := p.session.GuildMemberRoleAdd(p.cfg.GuildID, view.HostID, role.ID, opts...); err != nil {
		return fmt.Errorf("grant session role to host: %w", err)
	}
	if p.cfg.HostRoleID != "" {
		if err := p.session.GuildMemberRoleAdd(p.cfg.GuildID, view.HostID, p.cfg.HostRoleID, opts...); err != nil {
			return fmt.Errorf("grant host role: %w", err)
		}
	}

	control, err := p.session.ChannelMessageSendComplex(text.ID, &discordgo.MessageSend{
		Content:    controlMessage(view),
		Components: controlComponents(view),
	}, opts...)
	if err != nil {
		return fmt.Errorf("send control message: %w", err)
	}
	p.update(func(r *repository.Resources) { r.Messages.ControlMessageID = control.ID })

	if p.cfg.AnnounceChannelID != "" {
		if err := p.announce(ctx, view, announcementMessage(view), false); err != nil {
			return err
		}
	}
	return nil
}

// rollback removes whatever a failed Create managed to provision.
func (p *Presenter) rollback(ctx context.Context) {
	for _, step := range []discordpkg.TeardownStep{
		discordpkg.TeardownHostRole,
		discordpkg.TeardownSessionRole,
		discordpkg.TeardownVoiceChannels,
		discordpkg.TeardownAnnouncements,
		discordpkg.TeardownTextChannels,
		discordpkg.TeardownCategory,
	} {
		if err := p.Teardown(ctx, step); err != nil {
			slog.Warn("failed to roll back session resource", "step", step, "error", err)
		}
	}
}

func (p *Presenter) announce(ctx context.Context, view discordpkg.SessionView, content string, ping bool) error {
	send := &discordgo.MessageSend{
		Content:    content,
		Components: announcementComponents(view),
	}
	if ping {
		send.AllowedMentions = &discordgo.MessageAllowedMentions{
			Parse: []discordgo.AllowedMentionType{discordgo.AllowedMentionTypeEveryone},
		}
	}
	msg, err := p.session.ChannelMessageSendComplex(p.cfg.AnnounceChannelID, send, discordgo.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("send announcement: %w", err)
	}
	p.update(func(r *repository.Resources) {
		r.Messages.Announcements = append(r.Messages.Announcements, repository.MessageRef{ChannelID: msg.ChannelID, MessageID: msg.ID})
	})
	return nil
}

// syncVoiceChannels creates or deletes voice channels until they match the blueprint.
func (p *Presenter) syncVoiceChannels(ctx context.Context, view discordpkg.SessionView) error {
	res := p.Resources()
	specs := view.Blueprint.VoiceChannels
	existing := res.Channels.VoiceChannelIDs

	for i := len(existing); i < len(specs); i++ {
		ch, err := p.session.GuildChannelCreateComplex(p.cfg.GuildID, discordgo.GuildChannelCreateData{
			Name:      specs[i].Name,
			Type:      discordgo.ChannelTypeGuildVoice,
			UserLimit: specs[i].UserLimit,
			ParentID:  res.Channels.CategoryID,
		}, discordgo.WithContext(ctx))
		if err != nil {
			return fmt.Errorf("create voice channel %q: %w", specs[i].Name, err)
		}
		p.update(func(r *repository.Resources) {
			r.Channels.VoiceChannelIDs = append(r.Channels.VoiceChannelIDs, ch.ID)
		})
	}
	for i := len(existing) - 1; i >= len(specs); i-- {
		if err := p.deleteChannel(ctx, existing[i]); err != nil {
			return fmt.Errorf("delete voice channel: %w", err)
		}
		p.update(func(r *repository.Resources) {
			r.Channels.VoiceChannelIDs = r.Channels.VoiceChannelIDs[:i]
		})
	}
	for i := 0; i < min(len(existing), len(specs)); i++ {
		_, err := p.session.ChannelEdit(existing[i], &discordgo.ChannelEdit{
			Name:      specs[i].Name,
			UserLimit: specs[i].UserLimit,
		}, discordgo.WithContext(ctx))
		if err != nil && !isRESTNotFound(err) {
			return fmt.Errorf("edit voice channel: %w", err)
		}
	}
	return nil
}

func (p *Presenter) update(fn func(r *repository.Resources)) {
	p.mu.Lock()
	fn(&p.resources)
	p.mu.Unlock()
}

func (p *Presenter) Reconnect(ctx context.Context, kind discordpkg.ResourceKind) error {
	res := p.Resources()
	opts := []discordgo.RequestOption{discordgo.WithContext(ctx)}
	switch kind {
	case discordpkg.ResourceChannels:
		ids := append([]string{res.Channels.CategoryID, res.Channels.TextChannelID}, res.Channels.VoiceChannelIDs...)
		for _, id := range ids {
			if id == "" {
				return errors.New("channel handle missing from saved resources")
			}
			if _, err := p.session.Channel(id, opts...); err != nil {
				return fmt.Errorf("fetch channel %s: %w", id, err)
			}
		}
	case discordpkg.ResourceRoles:
		roles, err := p.session.GuildRoles(p.cfg.GuildID, opts...)
		if err != nil {
			return fmt.Errorf("fetch guild roles: %w", err)
		}
		if !slices.ContainsFunc(roles, func(r *discordgo.Role) bool { return r.ID == res.Roles.SessionRoleID }) {
			return fmt.Errorf("session role %s no longer exists", res.Roles.SessionRoleID)
		}
	case discordpkg.ResourceMessages:
		if _, err := p.session.ChannelMessage(res.Channels.TextChannelID, res.Messages.ControlMessageID, opts...); err != nil {
			return fmt.Errorf("fetch control message: %w", err)
		}
		kept := make([]repository.MessageRef, 0, len(res.Messages.Announcements))
		for _, ref := range res.Messages.Announcements {
			_, err := p.session.ChannelMessage(ref.ChannelID, ref.MessageID, opts...)
			if isRESTNotFound(err) {
				continue
			}
			if err != nil {
				return fmt.Errorf("fetch announcement %s: %w", ref.MessageID, err)
			}
			kept = append(kept, ref)
		}
		p.update(func(r *repository.Resources) { r.Messages.Announcements = kept })
	default:
		return fmt.Errorf("unknown resource kind %q", kind)
	}
	return nil
}

// Teardown deletes one resource category. Resources already gone count as deleted.
func (p *Presenter) Teardown(ctx context.Context, step discordpkg.TeardownStep) error {
	res := p.Resources()
	opts := []discordgo.RequestOption{discordgo.WithContext(ctx)}
	switch step {
	case discordpkg.TeardownHostRole:
		if p.cfg.HostRoleID == "" || p.hostID == "" {
			return nil
		}
		return ignoreNotFound(p.session.GuildMemberRoleRemove(p.cfg.GuildID, p.hostID, p.cfg.HostRoleID, opts...))
	case discordpkg.TeardownSessionRole:
		if res.Roles.SessionRoleID == "" {
			return nil
		}
		if err := ignoreNotFound(p.session.GuildRoleDelete(p.cfg.GuildID, res.Roles.SessionRoleID, opts...)); err != nil {
			return err
		}
		p.update(func(r *repository.Resources) { r.Roles.SessionRoleID = "" })
	case discordpkg.TeardownVoiceChannels:
		var errs []error
		for _, id := range res.Channels.VoiceChannelIDs {
			errs = append(errs, p.deleteChannel(ctx, id))
		}
		if err := errors.Join(errs...); err != nil {
			return err
		}
		p.update(func(r *repository.Resources) { r.Channels.VoiceChannelIDs = nil })
	case discordpkg.TeardownAnnouncements:
		return p.RemoveAnnouncements(ctx)
	case discordpkg.TeardownTextChannels:
		if err := p.deleteChannel(ctx, res.Channels.TextChannelID); err != nil {
			return err
		}
		p.update(func(r *repository.Resources) {
			r.Channels.TextChannelID = ""
			r.Messages.ControlMessageID = ""
		})
	case discordpkg.TeardownCategory:
		if err := p.deleteChannel(ctx, res.Channels.CategoryID); err != nil {
			return err
		}
		p.update(func(r *repository.Resources) { r.Channels.CategoryID = "" })
	default:
		return fmt.Errorf("unknown teardown step %q", step)
	}
	return nil
}

func (p *Presenter) deleteChannel(ctx context.Context, channelID string) error {
	if channelID == "" {
		return nil
	}
	_, err := p.session.ChannelDelete(channelID, discordgo.WithContext(ctx))
	return ignoreNotFound(err)
}

func (p *Presenter) RemoveAnnouncements(ctx context.Context) error {
	res := p.Resources()
	var errs []error
	var remaining []repository.MessageRef
	for _, ref := range res.Messages.Announcements {
		if err := ignoreNotFound(p.session.ChannelMessageDelete(ref.ChannelID, ref.MessageID, discordgo.WithContext(ctx))); err != nil {
			errs = append(errs, err)
			remaining = append(remaining, ref)
		}
	}
	p.update(func(r *repository.Resources) { r.Messages.Announcements = remaining })
	return errors.Join(errs...)
}

func (p *Presenter) BlueprintChanged(ctx context.Context, view discordpkg.SessionView) error {
	res := p.Resources()
	opts := []discordgo.RequestOption{discordgo.WithContext(ctx)}
	var errs []error

	if _, err := p.session.ChannelEdit(res.Channels.CategoryID, &discordgo.ChannelEdit{Name: categoryName(view)}, opts...); err != nil {
		errs = append(errs, fmt.Errorf("rename category: %w", err))
	}
	if _, err := p.session.ChannelEdit(res.Channels.TextChannelID, &discordgo.ChannelEdit{Topic: view.Blueprint.ServerInfo}, opts...); err != nil {
		errs = append(errs, fmt.Errorf("edit topic: %w", err))
	}
	if view.State == repository.SessionStateRunning {
		if err := p.syncVoiceChannels(ctx, view); err != nil {
			errs = append(errs, err)
		}
	}
	if err := p.refreshControl(ctx, view); err != nil {
		errs = append(errs, err)
	}
	for _, ref := range res.Messages.Announcements {
		edit := discordgo.NewMessageEdit(ref.ChannelID, ref.MessageID).SetContent(announcementMessage(view))
		if _, err := p.session.ChannelMessageEditComplex(edit, opts...); err != nil && !isRESTNotFound(err) {
			errs = append(errs, fmt.Errorf("edit announcement: %w", err))
		}
	}
	return errors.Join(errs...)
}

func (p *Presenter) refreshControl(ctx context.Context, view discordpkg.SessionView) error {
	res := p.Resources()
	if res.Messages.ControlMessageID == "" {
		return nil
	}
	components := controlComponents(view)
	edit := discordgo.NewMessageEdit(res.Channels.TextChannelID, res.Messages.ControlMessageID).SetContent(controlMessage(view))
	edit.Components = &components
	if _, err := p.session.ChannelMessageEditComplex(edit, discordgo.WithContext(ctx)); err != nil {
		return fmt.Errorf("edit control message: %w", err)
	}
	return nil
}

func (p *Presenter) PlayerJoined(ctx context.Context, view discordpkg.SessionView, member discordpkg.Member) error {
	res := p.Resources()
	opts := []discordgo.RequestOption{discordgo.WithContext(ctx)}
	if err := p.session.GuildMemberRoleAdd(p.cfg.GuildID, member.ID, res.Roles.SessionRoleID, opts...); err != nil {
		return fmt.Errorf("grant session role: %w", err)
	}
	_, err := p.session.ChannelMessageSendComplex(res.Channels.TextChannelID, &discordgo.MessageSend{
		Content:    playerJoinedMessage(member),
		Components: playerComponents(view, member.ID),
	}, opts...)
	if err != nil {
		return fmt.Errorf("send join message: %w", err)
	}
	return p.refreshControl(ctx, view)
}

func (p *Presenter) PlayerLeft(ctx context.Context, view discordpkg.SessionView, member discordpkg.Member) error {
	res := p.Resources()
	opts := []discordgo.RequestOption{discordgo.WithContext(ctx)}
	if err := ignoreNotFound(p.session.GuildMemberRoleRemove(p.cfg.GuildID, member.ID, res.Roles.SessionRoleID, opts...)); err != nil {
		return fmt.Errorf("revoke session role: %w", err)
	}
	if _, err := p.session.ChannelMessageSend(res.Channels.TextChannelID, playerLeftMessage(member), opts...); err != nil {
		return fmt.Errorf("send leave message: %w", err)
	}
	return p.refreshControl(ctx, view)
}

func (p *Presenter) Ending(ctx context.Context, view discordpkg.SessionView, by discordpkg.Member, forced bool) error {
	res := p.Resources()
	_, err := p.session.ChannelMessageSendComplex(res.Channels.TextChannelID, &discordgo.MessageSend{
		Content: endingMessage(res.Roles.SessionRoleID, by, forced),
		AllowedMentions: &discordgo.MessageAllowedMentions{
			Roles: []string{res.Roles.SessionRoleID},
		},
	}, discordgo.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("send ending message: %w", err)
	}
	return p.refreshControl(ctx, view)
}

func (p *Presenter) Recruit(ctx context.Context, view discordpkg.SessionView) error {
	if p.cfg.AnnounceChannelID == "" {
		return errors.New("announce channel is not configured")
	}
	return p.announce(ctx, view, recruitMessage(view), true)
}

func ignoreNotFound(err error) error {
	if err == nil || isRESTNotFound(err) {
		return nil
	}
	return err
}

func boolPtr(v bool) *bool {
	return &v
}

func button(label string, style discordgo.ButtonStyle, a action.Action) discordgo.Button {
	return discordgo.Button{Label: label, Style: style, CustomID: a.CustomID()}
}

func controlComponents(view discordpkg.SessionView) []discordgo.MessageComponent {
	if view.State != repository.SessionStateRunning {
		return []discordgo.MessageComponent{}
	}
	return []discordgo.MessageComponent{
		discordgo.ActionsRow{Components: []discordgo.MessageComponent{
			button(buttonLabelJoin, discordgo.PrimaryButton, action.Action{Kind: action.KindJoin, SessionID: view.ID}),
			button(buttonLabelLeave, discordgo.SecondaryButton, action.Action{Kind: action.KindLeave, SessionID: view.ID}),
			button(buttonLabelPing, discordgo.SecondaryButton, action.Action{Kind: action.KindPing, SessionID: view.ID}),
			button(buttonLabelStop, discordgo.DangerButton, action.Action{Kind: action.KindStop, SessionID: view.ID}),
			button(buttonLabelForceStop, discordgo.DangerButton, action.Action{Kind: action.KindForceStop, SessionID: view.ID}),
		}},
	}
}

func announcementComponents(view discordpkg.SessionView) []discordgo.MessageComponent {
	return []discordgo.MessageComponent{
		discordgo.ActionsRow{Components: []discordgo.MessageComponent{
			button(buttonLabelJoin, discordgo.PrimaryButton, action.Action{Kind: action.KindJoin, SessionID: view.ID}),
		}},
	}
}

func playerComponents(view discordpkg.SessionView, userID string) []discordgo.MessageComponent {
	return []discordgo.MessageComponent{
		discordgo.ActionsRow{Components: []discordgo.MessageComponent{
			button(buttonLabelRecommend, discordgo.SuccessButton, action.Action{Kind: action.KindRecommend, SessionID: view.ID, TargetUserID: userID}),
			button(buttonLabelKick, discordgo.SecondaryButton, action.Action{Kind: action.KindKick, SessionID: view.ID, TargetUserID: userID}),
			button(buttonLabelBan, discordgo.DangerButton, action.Action{Kind: action.KindBan, SessionID: view.ID, TargetUserID: userID}),
		}},
	}
}

var _ discordpkg.Presenter = (*Presenter)(nil)
