package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/foxseedlab/playhost/internal/webhook"
)

const (
	requestTimeout   = 10 * time.Second
	maxAttempts      = 3
	defaultBackoff   = time.Second
	maxBackoff       = 30 * time.Second
	errorBodyExcerpt = 512
	userAgent        = "playhost-session-summary/1"
)

// HTTPSender posts session summaries as JSON. Rate limited and 5xx responses
// are retried; other non-2xx responses fail immediately.
type HTTPSender struct {
	webhookURL string
	client     *http.Client
	sleep      func(ctx context.Context, d time.Duration) error
}

func NewHTTPSender(webhookURL string) webhook.Sender {
	return newHTTPSender(webhookURL, &http.Client{Timeout: requestTimeout})
}

func newHTTPSender(webhookURL string, client *http.Client) *HTTPSender {
	return &HTTPSender{
		webhookURL: webhookURL,
		client:     client,
		sleep:      sleepContext,
	}
}

func (s *HTTPSender) SendSessionSummary(ctx context.Context, payload webhook.SessionSummaryPayload) error {
	if s.webhookURL == "" {
		return nil
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode session summary %s: %w", payload.SessionID, err)
	}

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		wait, err := s.post(ctx, body)
		if err == nil {
			slog.Info("session summary delivered", "session_id", payload.SessionID, "unique_id", payload.UniqueID, "attempt", attempt)
			return nil
		}
		lastErr = err
		if wait < 0 || attempt == maxAttempts {
			break
		}
		slog.Warn("session summary delivery failed, retrying", "session_id", payload.SessionID, "attempt", attempt, "retry_in", wait.String(), "error", err)
		if err := s.sleep(ctx, wait); err != nil {
			return err
		}
	}
	return fmt.Errorf("deliver session summary %s: %w", payload.SessionID, lastErr)
}

// post returns a negative wait when the failure is not worth retrying.
func (s *HTTPSender) post(ctx context.Context, body []byte) (time.Duration, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.webhookURL, bytes.NewReader(body))
	if err != nil {
		return -1, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", userAgent)

	resp, err := s.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return -1, err
		}
		return defaultBackoff, err
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	if isHTTPSuccessStatus(resp.StatusCode) {
		_, _ = io.Copy(io.Discard, resp.Body)
		return 0, nil
	}

	excerpt, _ := io.ReadAll(io.LimitReader(resp.Body, errorBodyExcerpt))
	statusErr := fmt.Errorf("webhook returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(excerpt)))
	if !isRetryableStatus(resp.StatusCode) {
		return -1, statusErr
	}
	return retryAfter(resp.Header.Get("Retry-After")), statusErr
}

func isHTTPSuccessStatus(statusCode int) bool {
	return statusCode >= 200 && statusCode < 300
}

func isRetryableStatus(statusCode int) bool {
	return statusCode == http.StatusTooManyRequests || statusCode >= 500
}

// retryAfter reads a delay in seconds, falling back to defaultBackoff.
func retryAfter(header string) time.Duration {
	seconds, err := strconv.Atoi(strings.TrimSpace(header))
	if err != nil || seconds < 0 {
		return defaultBackoff
	}
	return min(time.Duration(seconds)*time.Second, maxBackoff)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
