package discord

import (
	"context"

	"github.com/bwmarrin/discordgo"
	discordpkg "github.com/foxseedlab/playhost/internal/discord"
)

type MemberDirectory struct {
	session *discordgo.Session
	guildID string
}

func NewMemberDirectory(s *discordgo.Session, guildID string) *MemberDirectory {
	return &MemberDirectory{session: s, guildID: guildID}
}

// ResolveMember reads the state cache first and falls back to REST when the
// cache is cold.
func (d *MemberDirectory) ResolveMember(ctx context.Context, userID string) (*discordpkg.Member, error) {
	if d.session.State != nil {
		member, err := d.session.State.Member(d.guildID, userID)
		if err == nil && member != nil {
			return toMember(userID, member), nil
		}
	}
	member, err := d.session.GuildMember(d.guildID, userID, discordgo.WithContext(ctx))
	if err != nil {
		if isRESTNotFound(err) {
			return nil, nil
		}
		return nil, err
	}
	return toMember(userID, member), nil
}

func (d *MemberDirectory) AddRole(ctx context.Context, userID, roleID string) error {
	return d.session.GuildMemberRoleAdd(d.guildID, userID, roleID, discordgo.WithContext(ctx))
}

func (d *MemberDirectory) RemoveRole(ctx context.Context, userID, roleID string) error {
	return ignoreNotFound(d.session.GuildMemberRoleRemove(d.guildID, userID, roleID, discordgo.WithContext(ctx)))
}

func toMember(userID string, m *discordgo.Member) *discordpkg.Member {
	name := m.Nick
	if name == "" && m.User != nil {
		name = preferredDiscordName(m.User.GlobalName, m.User.Username, userID)
	}
	if name == "" {
		name = userID
	}
	return &discordpkg.Member{
		ID:          userID,
		DisplayName: name,
		RoleIDs:     append([]string(nil), m.Roles...),
	}
}

func preferredDiscordName(globalName, username, fallback string) string {
	if globalName != "" {
		return globalName
	}
	if username != "" {
		return username
	}
	return fallback
}

var _ discordpkg.MemberDirectory = (*MemberDirectory)(nil)
