// Package report records failures that are handled by continuing rather than
// by returning an error to the caller.
package report

import (
	"context"
	"log/slog"
)

type Reporter interface {
	Report(ctx context.Context, err error, msg string, attrs ...any)
}

type Counter interface {
	Inc()
}

// SlogReporter logs at error level and bumps an optional counter.
type SlogReporter struct {
	logger  *slog.Logger
	counter Counter
}

func NewSlogReporter(logger *slog.Logger, counter Counter) *SlogReporter {
	if logger == nil {
		logger = slog.Default()
	}
	return &SlogReporter{logger: logger, counter: counter}
}

func (r *SlogReporter) Report(ctx context.Context, err error, msg string, attrs ...any) {
	if err == nil {
		return
	}
	if r.counter != nil {
		r.counter.Inc()
	}
	r.logger.ErrorContext(ctx, msg, append([]any{"error", err}, attrs...)...)
}
