package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/samber/do/v2"
)

func RegisterDI(injector do.Injector) {
	do.Provide(injector, func(_ do.Injector) (*Metrics, error) {
		return New(prometheus.DefaultRegisterer)
	})
}
