package alert

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"

	"github.com/sony/gobreaker/v2"
	"golang.org/x/time/rate"

	"github.com/prilive-com/vigil/internal/httpclient"
)

// WebhookPayload is the wire shape posted to a delivery channel.
type WebhookPayload struct {
	Text        string       `json:"text"`
	Username    string       `json:"username"`
	Attachments []Attachment `json:"attachments"`
}

// Attachment carries one alert's visual and diagnostic detail.
type Attachment struct {
	Color       string         `json:"color"`
	Title       string         `json:"title"`
	Description string         `json:"description"`
	Details     map[string]any `json:"details,omitempty"`
	Timestamp   int64          `json:"timestamp"`
}

// BuildPayload renders a record into the webhook wire shape.
func BuildPayload(rec *Record, username string) WebhookPayload {
	vis := rec.Severity.Visual()
	title := fmt.Sprintf("%s [%s] %s: %s", vis.Emoji, rec.Severity, rec.Category, rec.Type)
	desc := rec.Message
	if desc == "" {
		desc = fmt.Sprintf("service %s reported %s", rec.Service, rec.Type)
	}
	if rec.Count > 1 {
		desc = fmt.Sprintf("%s (%d occurrences since %s)",
			desc, rec.Count, rec.FirstOccurrence.UTC().Format("15:04:05"))
	}
	return WebhookPayload{
		Text:     title,
		Username: username,
		Attachments: []Attachment{{
			Color:       vis.Color,
			Title:       title,
			Description: desc,
			Details:     rec.Payload,
			Timestamp:   rec.LastOccurrence.Unix(),
		}},
	}
}

// Dispatcher posts alert payloads to webhook sinks. Each destination
// gets its own circuit breaker so a dead sink fast-fails without
// touching the others, and all posts share one rate limiter so an
// alert storm cannot flood the sinks.
type Dispatcher struct {
	logger   *slog.Logger
	client   *http.Client
	limiter  *rate.Limiter
	username string

	mu       sync.Mutex
	breakers map[string]*gobreaker.CircuitBreaker[any]

	settings gobreaker.Settings
}

// NewDispatcher creates a Dispatcher. A nil logger falls back to
// slog.Default; a nil client gets the tuned default.
func NewDispatcher(logger *slog.Logger, client *http.Client, cfg Config) *Dispatcher {
	cfg = cfg.withDefaults()
	if logger == nil {
		logger = slog.Default()
	}
	if client == nil {
		client = httpclient.NewDefault()
	}
	d := &Dispatcher{
		logger:   logger,
		client:   client,
		limiter:  rate.NewLimiter(rate.Limit(cfg.DeliveryRPS), cfg.DeliveryBurst),
		username: cfg.Username,
		breakers: make(map[string]*gobreaker.CircuitBreaker[any]),
	}
	d.settings = gobreaker.Settings{
		Timeout: cfg.BreakerTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.BreakerThreshold
		},
	}
	return d
}

// Send posts the record to url, naming the channel in logs. It returns
// whether delivery succeeded; failures are logged, never propagated.
func (d *Dispatcher) Send(ctx context.Context, rec *Record, channel string, url SecretURL) bool {
	if url.IsEmpty() {
		return false
	}

	if err := d.limiter.Wait(ctx); err != nil {
		d.logger.Error("alert delivery rate wait aborted", "channel", channel, "error", err)
		return false
	}

	body, err := json.Marshal(BuildPayload(rec, d.username))
	if err != nil {
		d.logger.Error("alert payload encoding failed", "channel", channel, "error", err)
		return false
	}

	_, err = d.breaker(channel).Execute(func() (any, error) {
		resp, err := httpclient.PostJSON(ctx, d.client, url.Value(), body)
		if err != nil {
			return nil, &DeliveryError{Channel: channel, Err: err}
		}
		defer resp.Body.Close()
		_, _ = io.Copy(io.Discard, resp.Body)
		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			return nil, &DeliveryError{Channel: channel, Status: resp.StatusCode}
		}
		return nil, nil
	})
	if err != nil {
		d.logger.Error("alert delivery failed",
			"channel", channel, "alert", rec.Key, "error", err)
		return false
	}

	d.logger.Info("alert delivered", "channel", channel, "alert", rec.Key, "severity", rec.Severity)
	return true
}

func (d *Dispatcher) breaker(channel string) *gobreaker.CircuitBreaker[any] {
	d.mu.Lock()
	defer d.mu.Unlock()
	if cb, ok := d.breakers[channel]; ok {
		return cb
	}
	settings := d.settings
	settings.Name = "alert-webhook-" + channel
	cb := gobreaker.NewCircuitBreaker[any](settings)
	d.breakers[channel] = cb
	return cb
}
