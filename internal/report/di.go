package report

import (
	"log/slog"

	"github.com/samber/do/v2"

	"github.com/foxseedlab/playhost/internal/metrics"
)

func RegisterDI(injector do.Injector) {
	do.Provide(injector, func(i do.Injector) (Reporter, error) {
		m := do.MustInvoke[*metrics.Metrics](i)
		return NewSlogReporter(slog.Default(), m.ErrorsReported), nil
	})
}
