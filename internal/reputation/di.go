package reputation

import (
	"github.com/samber/do/v2"

	"github.com/foxseedlab/playhost/internal/config"
	"github.com/foxseedlab/playhost/internal/discord"
	"github.com/foxseedlab/playhost/internal/metrics"
	"github.com/foxseedlab/playhost/internal/repository"
)

func RegisterDI(injector do.Injector) {
	do.Provide(injector, func(i do.Injector) (*Engine, error) {
		cfg := do.MustInvoke[*config.Config](i)
		return NewEngine(
			cfg.Recommendation,
			do.MustInvoke[repository.Repository](i),
			do.MustInvoke[discord.MemberDirectory](i),
			do.MustInvoke[GiveLedger](i),
			do.MustInvoke[*metrics.Metrics](i),
		), nil
	})
}
