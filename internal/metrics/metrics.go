package metrics

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "playhost"

// Metrics holds the collectors for session lifecycle and reputation events.
type Metrics struct {
	SessionsActive       prometheus.Gauge
	SessionsStarted      prometheus.Counter
	SessionsEnded        prometheus.Counter
	TeardownFailures     *prometheus.CounterVec
	RecommendationAwards prometheus.Counter
	ErrorsReported       prometheus.Counter
}

// New constructs the collectors and registers them with reg, reusing any
// collector that is already registered.
func New(reg prometheus.Registerer) (*Metrics, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	m := &Metrics{
		SessionsActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "sessions_active",
			Help:      "Number of sessions currently held by the registry.",
		}),
		SessionsStarted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_started_total",
			Help:      "Total number of sessions started.",
		}),
		SessionsEnded: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_ended_total",
			Help:      "Total number of sessions that reached the ended state.",
		}),
		TeardownFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "teardown_failures_total",
			Help:      "Session teardown steps that failed, partitioned by step.",
		}, []string{"step"}),
		RecommendationAwards: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "recommendation_awarded_total",
			Help:      "Sum of positive recommendation score awarded.",
		}),
		ErrorsReported: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "errors_reported_total",
			Help:      "Errors reported without being returned to a caller.",
		}),
	}

	var err error
	if m.SessionsActive, err = register(reg, m.SessionsActive); err != nil {
		return nil, err
	}
	if m.SessionsStarted, err = register(reg, m.SessionsStarted); err != nil {
		return nil, err
	}
	if m.SessionsEnded, err = register(reg, m.SessionsEnded); err != nil {
		return nil, err
	}
	if m.TeardownFailures, err = register(reg, m.TeardownFailures); err != nil {
		return nil, err
	}
	if m.RecommendationAwards, err = register(reg, m.RecommendationAwards); err != nil {
		return nil, err
	}
	if m.ErrorsReported, err = register(reg, m.ErrorsReported); err != nil {
		return nil, err
	}
	return m, nil
}

func register[C prometheus.Collector](reg prometheus.Registerer, c C) (C, error) {
	if err := reg.Register(c); err != nil {
		var already prometheus.AlreadyRegisteredError
		if errors.As(err, &already) {
			if existing, ok := already.ExistingCollector.(C); ok {
				return existing, nil
			}
		}
		return c, err
	}
	return c, nil
}

func (m *Metrics) RecommendationAwarded(amount float64) {
	m.RecommendationAwards.Add(amount)
}

func (m *Metrics) TeardownFailed(step string) {
	m.TeardownFailures.WithLabelValues(step).Inc()
}
