package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestNew_RegistersCollectors(t *testing.T) {
	reg := prometheus.NewRegistry()
	m, err := New(reg)
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}

	m.SessionsStarted.Inc()
	m.SessionsActive.Set(3)
	m.TeardownFailed("category")
	m.TeardownFailed("category")
	m.RecommendationAwarded(12.5)

	if got := testutil.ToFloat64(m.SessionsStarted); got != 1 {
		t.Fatalf("expected 1 started, got %v", got)
	}
	if got := testutil.ToFloat64(m.SessionsActive); got != 3 {
		t.Fatalf("expected 3 active, got %v", got)
	}
	if got := testutil.ToFloat64(m.TeardownFailures.WithLabelValues("category")); got != 2 {
		t.Fatalf("expected 2 category failures, got %v", got)
	}
	if got := testutil.ToFloat64(m.RecommendationAwards); got != 12.5 {
		t.Fatalf("expected 12.5 awarded, got %v", got)
	}
}

func TestNew_ReusesAlreadyRegistered(t *testing.T) {
	reg := prometheus.NewRegistry()
	first, err := New(reg)
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	second, err := New(reg)
	if err != nil {
		t.Fatalf("second New returned error: %v", err)
	}

	first.SessionsEnded.Inc()
	if got := testutil.ToFloat64(second.SessionsEnded); got != 1 {
		t.Fatalf("expected shared collector, got %v", got)
	}
}
