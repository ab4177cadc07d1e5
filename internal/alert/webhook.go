package alert

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"math"
	"net/http"
	"time"

	"github.com/tmoradi/kestrel/internal/config"
	"github.com/tmoradi/kestrel/internal/model"
)

const (
	notifyMaxAttempts  = 3
	notifyInitialDelay = 500 * time.Millisecond
	notifyMaxDelay     = 5 * time.Second
	notifyMultiplier   = 2.0
)

// Notifier posts alert events to a webhook with bounded exponential retry.
type Notifier struct {
	url  string
	http *http.Client
	log  *slog.Logger
}

// NewNotifier builds the notifier from configuration.
func NewNotifier(cfg *config.Config) *Notifier {
	return &Notifier{
		url:  cfg.AlertWebhookURL,
		http: &http.Client{Timeout: cfg.AlertWebhookTimeout},
		log:  config.Logger("alert"),
	}
}

// Send delivers one event. Transient failures (network, 5xx, 429) are
// retried with exponential backoff; client errors are not. Callers run
// Send on its own goroutine to keep delivery off the cycle path.
func (n *Notifier) Send(event model.AlertEvent) {
	body, err := json.Marshal(event)
	if err != nil {
		n.log.Error("Failed to encode alert payload", "rule", event.Rule, "error", err.Error())
		return
	}

	for attempt := 1; attempt <= notifyMaxAttempts; attempt++ {
		status, err := n.post(body)
		if err == nil && status >= 200 && status < 300 {
			n.log.Info("Alert delivered", "rule", event.Rule, "attempt", attempt)
			return
		}

		if !retryable(status, err) || attempt == notifyMaxAttempts {
			n.log.Error("Alert delivery failed",
				"rule", event.Rule,
				"attempt", attempt,
				"status", status,
				"error", errString(err),
			)
			return
		}

		delay := backoffDelay(attempt)
		n.log.Warn("Alert delivery failed, retrying",
			"rule", event.Rule,
			"attempt", attempt,
			"status", status,
			"delay", delay.String(),
			"error", errString(err),
		)
		time.Sleep(delay)
	}
}

func (n *Notifier) post(body []byte) (int, error) {
	ctx, cancel := context.WithTimeout(context.Background(), n.http.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.url, bytes.NewReader(body))
	if err != nil {
		return 0, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.http.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	return resp.StatusCode, nil
}

func retryable(status int, err error) bool {
	if err != nil {
		return true
	}
	return status >= 500 || status == http.StatusTooManyRequests
}

// backoffDelay grows the wait exponentially per attempt, capped.
func backoffDelay(attempt int) time.Duration {
	d := time.Duration(float64(notifyInitialDelay) * math.Pow(notifyMultiplier, float64(attempt-1)))
	if d > notifyMaxDelay {
		d = notifyMaxDelay
	}
	return d
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
