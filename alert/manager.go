package alert

import (
	"context"
	"log/slog"
	"net/http"
	"sync"

	"github.com/google/uuid"

	"github.com/prilive-com/vigil/internal/clock"
)

// Manager owns the deduplication/escalation state store and drives the
// alert pipeline.
type Manager struct {
	cfg        Config
	clock      clock.Clock
	logger     *slog.Logger
	client     *http.Client
	dispatcher *Dispatcher

	mu      sync.Mutex
	active  map[string]*Record
	history []*Record
}

// ManagerOption configures the Manager.
type ManagerOption func(*Manager)

// WithClock sets the time source. Defaults to the system clock.
func WithClock(c clock.Clock) ManagerOption {
	return func(m *Manager) { m.clock = c }
}

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) ManagerOption {
	return func(m *Manager) { m.logger = logger }
}

// WithHTTPClient sets the delivery HTTP client.
func WithHTTPClient(client *http.Client) ManagerOption {
	return func(m *Manager) { m.client = client }
}

// NewManager creates a Manager.
func NewManager(cfg Config, opts ...ManagerOption) *Manager {
	m := &Manager{
		cfg:    cfg.withDefaults(),
		clock:  clock.System{},
		logger: slog.Default(),
		active: make(map[string]*Record),
	}
	for _, opt := range opts {
		opt(m)
	}
	m.dispatcher = NewDispatcher(m.logger, m.client, m.cfg)
	return m
}

// ProcessResult reports the outcome of ProcessAlert.
//
// Sent is true when the alert passed every suppression tier and was
// handed to delivery; Channels lists the destinations that accepted it.
// Per-channel delivery failures are logged and do not flip Sent.
type ProcessResult struct {
	Sent     bool     `json:"sent"`
	Alert    *Record  `json:"alert,omitempty"`
	Channels []string `json:"channels,omitempty"`
	Reason   string   `json:"reason,omitempty"`
	Error    string   `json:"error,omitempty"`
}

// ProcessAlert runs classification, suppression, deduplication, and
// delivery for one event. Malformed input fails closed with an error
// result; alerting never panics the calling instrumentation.
func (m *Manager) ProcessAlert(ctx context.Context, ev *Event) ProcessResult {
	if ev == nil {
		m.logger.Error("alert dropped", "error", ErrNilEvent)
		return ProcessResult{Sent: false, Error: ErrNilEvent.Error()}
	}
	if ev.Category == "" || ev.Service == "" || ev.Type == "" {
		m.logger.Error("alert dropped", "error", ErrIncompleteEvent,
			"category", ev.Category, "service", ev.Service, "type", ev.Type)
		return ProcessResult{Sent: false, Error: ErrIncompleteEvent.Error()}
	}

	severity := ev.Severity
	if !severity.Valid() {
		severity = CalculateSeverity(ev, m.cfg.Thresholds)
	}
	key := GenerateKey(ev)

	if m.cfg.Disabled {
		return ProcessResult{Sent: false, Reason: ReasonDisabled}
	}
	if m.inMaintenance() {
		m.logger.Debug("alert silenced by maintenance window", "alert", key)
		return ProcessResult{Sent: false, Reason: ReasonMaintenance}
	}
	if m.cfg.MinSeverity.Valid() && severity.Rank() < m.cfg.MinSeverity.Rank() {
		m.logger.Debug("alert below severity floor",
			"alert", key, "severity", severity, "floor", m.cfg.MinSeverity)
		return ProcessResult{Sent: false, Reason: ReasonBelowMinimum}
	}

	if m.ShouldSuppress(key) {
		rec := m.RecordAlert(key, ev, severity)
		m.logger.Info("alert suppressed within aggregation window",
			"alert", key, "count", rec.Count)
		return ProcessResult{Sent: false, Alert: rec, Reason: ReasonSuppressed}
	}

	rec := m.RecordAlert(key, ev, severity)

	var delivered []string
	for _, ch := range m.cfg.Channels {
		if m.dispatcher.Send(ctx, rec, ch.Name, ch.URL) {
			delivered = append(delivered, ch.Name)
		}
	}
	return ProcessResult{Sent: true, Alert: rec, Channels: delivered}
}

// RecordAlert creates or increments the record for key and returns a
// snapshot of it. A repeat outside the aggregation window starts a
// fresh record rather than extending the old one.
func (m *Manager) RecordAlert(key string, ev *Event, severity Severity) *Record {
	now := m.clock.Now()

	m.mu.Lock()
	defer m.mu.Unlock()

	if rec, ok := m.active[key]; ok && now.Sub(rec.LastOccurrence) < m.cfg.AggregationWindow {
		rec.Count++
		rec.LastOccurrence = now
		if severity.Rank() > rec.Severity.Rank() {
			rec.Severity = severity
		}
		return rec.clone()
	}

	rec := &Record{
		ID:              uuid.NewString(),
		Key:             key,
		Category:        ev.Category,
		Service:         ev.Service,
		Type:            ev.Type,
		Message:         ev.Message,
		Severity:        severity,
		Count:           1,
		FirstOccurrence: now,
		LastOccurrence:  now,
		Payload:         ev.Details,
	}
	m.active[key] = rec
	m.history = append(m.history, rec)
	if len(m.history) > m.cfg.HistoryLimit {
		m.history = m.history[len(m.history)-m.cfg.HistoryLimit:]
	}
	return rec.clone()
}

// ShouldSuppress reports whether key is already recorded inside the
// aggregation window.
func (m *Manager) ShouldSuppress(key string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.active[key]
	return ok && m.clock.Now().Sub(rec.LastOccurrence) < m.cfg.AggregationWindow
}

// NeedsEscalation reports whether key is a CRITICAL alert that has
// stayed active past the escalation timeout without being escalated.
func (m *Manager) NeedsEscalation(key string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.active[key]
	return ok && m.needsEscalationLocked(rec)
}

func (m *Manager) needsEscalationLocked(rec *Record) bool {
	if rec.Escalated || rec.Severity != SeverityCritical {
		return false
	}
	return m.clock.Now().Sub(rec.FirstOccurrence) >= m.cfg.EscalationTimeout
}

// MarkEscalated flags key as escalated. Idempotent: a second call (or
// an unknown key) reports false, meaning no escalation was needed.
func (m *Manager) MarkEscalated(key string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.active[key]
	if !ok || rec.Escalated {
		return false
	}
	rec.Escalated = true
	return true
}

// Escalate delivers key to the escalation channel when escalation is
// due. It reports whether an escalation was performed. The decision
// and the escalated flag flip happen under one lock, so a concurrent
// sweep removing the key cannot race the delivery snapshot.
func (m *Manager) Escalate(ctx context.Context, key string) bool {
	m.mu.Lock()
	rec, ok := m.active[key]
	if !ok || !m.needsEscalationLocked(rec) {
		m.mu.Unlock()
		return false
	}
	rec.Escalated = true
	snapshot := rec.clone()
	m.mu.Unlock()

	if m.cfg.EscalationURL.IsEmpty() {
		m.logger.Warn("escalation due but no escalation channel configured", "alert", key)
	} else {
		m.dispatcher.Send(ctx, snapshot, "escalation", m.cfg.EscalationURL)
	}
	m.logger.Warn("alert escalated", "alert", key, "active_for", m.clock.Now().Sub(snapshot.FirstOccurrence))
	return true
}

// Statistics breaks down active alerts for dashboard consumption.
type Statistics struct {
	ActiveAlerts  int              `json:"active_alerts"`
	TotalRecorded int              `json:"total_recorded"`
	Escalated     int              `json:"escalated"`
	BySeverity    map[Severity]int `json:"by_severity"`
	ByCategory    map[string]int   `json:"by_category"`
}

// Statistics returns counts over alerts still inside the aggregation
// window.
func (m *Manager) Statistics() Statistics {
	now := m.clock.Now()

	m.mu.Lock()
	defer m.mu.Unlock()

	stats := Statistics{
		TotalRecorded: len(m.history),
		BySeverity:    make(map[Severity]int),
		ByCategory:    make(map[string]int),
	}
	for _, rec := range m.active {
		if now.Sub(rec.LastOccurrence) >= m.cfg.AggregationWindow {
			continue
		}
		stats.ActiveAlerts++
		stats.BySeverity[rec.Severity]++
		stats.ByCategory[rec.Category]++
		if rec.Escalated {
			stats.Escalated++
		}
	}
	return stats
}

// SweepInactive drops active records whose aggregation window has
// lapsed and returns the number removed. Like rate-limit sweeps, this
// is an explicit operation, not a background task.
func (m *Manager) SweepInactive() int {
	now := m.clock.Now()

	m.mu.Lock()
	defer m.mu.Unlock()

	removed := 0
	for key, rec := range m.active {
		if now.Sub(rec.LastOccurrence) >= m.cfg.AggregationWindow {
			delete(m.active, key)
			removed++
		}
	}
	return removed
}

// History returns a copy of the retained records, oldest first.
func (m *Manager) History() []*Record {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*Record, len(m.history))
	for i, rec := range m.history {
		out[i] = rec.clone()
	}
	return out
}

func (m *Manager) inMaintenance() bool {
	now := m.clock.Now()
	for _, w := range m.cfg.MaintenanceWindows {
		if w.Contains(now) {
			return true
		}
	}
	return false
}
