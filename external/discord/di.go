package discord

import (
	"github.com/foxseedlab/playhost/internal/config"
	discordpkg "github.com/foxseedlab/playhost/internal/discord"
	"github.com/samber/do/v2"
)

func RegisterDI(injector do.Injector) {
	do.Provide(injector, func(i do.Injector) (*Client, error) {
		c := do.MustInvoke[*config.Config](i)
		return NewClient(c.DiscordToken)
	})
	do.Provide(injector, func(i do.Injector) (discordpkg.Client, error) {
		return do.MustInvoke[*Client](i), nil
	})
	do.Provide(injector, func(i do.Injector) (discordpkg.MemberDirectory, error) {
		c := do.MustInvoke[*config.Config](i)
		return NewMemberDirectory(do.MustInvoke[*Client](i).Session(), c.DiscordGuildID), nil
	})
	do.Provide(injector, func(i do.Injector) (discordpkg.PresenterFactory, error) {
		c := do.MustInvoke[*config.Config](i)
		return NewPresenterFactory(do.MustInvoke[*Client](i).Session(), PresenterConfig{
			GuildID:           c.DiscordGuildID,
			AnnounceChannelID: c.DiscordAnnounceChannelID,
			HostRoleID:        c.DiscordHostRoleID,
		}), nil
	})
}
