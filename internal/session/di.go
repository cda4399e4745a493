package session

import (
	"time"

	"github.com/samber/do/v2"

	"github.com/foxseedlab/playhost/internal/action"
	"github.com/foxseedlab/playhost/internal/config"
	"github.com/foxseedlab/playhost/internal/discord"
	"github.com/foxseedlab/playhost/internal/metrics"
	"github.com/foxseedlab/playhost/internal/report"
	"github.com/foxseedlab/playhost/internal/repository"
	"github.com/foxseedlab/playhost/internal/reputation"
	"github.com/foxseedlab/playhost/internal/scheduler"
	"github.com/foxseedlab/playhost/internal/webhook"
)

func RegisterDI(injector do.Injector) {
	do.Provide(injector, func(i do.Injector) (*Registry, error) {
		engine := do.MustInvoke[*reputation.Engine](i)
		deps := &Deps{
			Config:      do.MustInvoke[*config.Config](i),
			Store:       do.MustInvoke[repository.Repository](i),
			Members:     do.MustInvoke[discord.MemberDirectory](i),
			Recommender: engine,
			Scheduler:   do.MustInvoke[*scheduler.Scheduler](i),
			Reporter:    do.MustInvoke[report.Reporter](i),
			Webhook:     do.MustInvoke[webhook.Sender](i),
			Metrics:     do.MustInvoke[*metrics.Metrics](i),
			Now:         time.Now,
		}
		return NewRegistry(deps, do.MustInvoke[discord.PresenterFactory](i)), nil
	})
	do.Provide(injector, func(i do.Injector) (*action.Router, error) {
		cfg := do.MustInvoke[*config.Config](i)
		router := action.NewRouter()
		RegisterActions(
			router,
			do.MustInvoke[*Registry](i),
			do.MustInvoke[*reputation.Engine](i),
			do.MustInvoke[discord.MemberDirectory](i),
			cfg.DiscordModeratorRoleID,
		)
		return router, nil
	})
	do.Provide(injector, func(i do.Injector) (*Interactions, error) {
		cfg := do.MustInvoke[*config.Config](i)
		return NewInteractions(
			cfg.DiscordGuildID,
			do.MustInvoke[*Registry](i),
			do.MustInvoke[*action.Router](i),
			do.MustInvoke[*reputation.Engine](i),
			do.MustInvoke[report.Reporter](i),
		), nil
	})
}
