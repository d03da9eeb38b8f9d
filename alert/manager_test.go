package alert_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/prilive-com/vigil/alert"
	"github.com/prilive-com/vigil/internal/clock"
	"github.com/prilive-com/vigil/internal/testutil"
)

func newTestManager(t *testing.T, mutate func(*alert.Config)) (*alert.Manager, *clock.Fake, *testutil.WebhookSink) {
	t.Helper()

	sink := testutil.NewWebhookSink(t)
	cfg := alert.DefaultConfig()
	cfg.Channels = []alert.Channel{{Name: "ops", URL: alert.SecretURL(sink.URL)}}
	cfg.DeliveryRPS = 1000 // Tests should not wait on delivery smoothing
	cfg.DeliveryBurst = 1000
	if mutate != nil {
		mutate(&cfg)
	}

	fake := clock.NewFake(time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC))
	m := alert.NewManager(cfg, alert.WithClock(fake))
	return m, fake, sink
}

func TestProcessAlert_PaymentFailureDelivered(t *testing.T) {
	m, _, sink := newTestManager(t, nil)

	res := m.ProcessAlert(context.Background(), &alert.Event{
		Category: "payment",
		Service:  "billing",
		Type:     "failure_rate",
		Message:  "payment failures spiking",
		Metrics:  map[string]float64{"failure_rate": 0.05},
	})

	require.True(t, res.Sent)
	require.NotNil(t, res.Alert)
	assert.Equal(t, alert.SeverityCritical, res.Alert.Severity)
	assert.Equal(t, []string{"ops"}, res.Channels)
	assert.Equal(t, 1, res.Alert.Count)
	assert.NotEmpty(t, res.Alert.ID)

	require.Equal(t, 1, sink.Count())
	var payload alert.WebhookPayload
	cap := sink.Last(t)
	cap.DecodeJSON(t, &payload)
	assert.Equal(t, "vigil", payload.Username)
	require.Len(t, payload.Attachments, 1)
	assert.Equal(t, "#FF0000", payload.Attachments[0].Color)
	assert.Contains(t, payload.Attachments[0].Title, "CRITICAL")
}

func TestProcessAlert_RepeatSuppressedWithinWindow(t *testing.T) {
	m, fake, sink := newTestManager(t, nil)

	ev := &alert.Event{Category: "database", Service: "postgres", Type: "unavailable"}

	first := m.ProcessAlert(context.Background(), ev)
	require.True(t, first.Sent)

	fake.Advance(time.Minute)
	second := m.ProcessAlert(context.Background(), ev)

	assert.False(t, second.Sent)
	assert.Equal(t, "suppressed", second.Reason)
	require.NotNil(t, second.Alert)
	assert.Equal(t, 2, second.Alert.Count)
	assert.Equal(t, 1, sink.Count(), "suppressed repeat must not deliver")
}

func TestProcessAlert_RepeatOutsideWindowStartsFresh(t *testing.T) {
	m, fake, sink := newTestManager(t, nil)

	ev := &alert.Event{Category: "external", Service: "payments-api", Type: "timeout"}

	first := m.ProcessAlert(context.Background(), ev)
	require.True(t, first.Sent)

	fake.Advance(6 * time.Minute)
	second := m.ProcessAlert(context.Background(), ev)

	assert.True(t, second.Sent)
	assert.Equal(t, 1, second.Alert.Count, "new window starts a fresh record")
	assert.NotEqual(t, first.Alert.ID, second.Alert.ID)
	assert.Equal(t, 2, sink.Count())
}

func TestProcessAlert_WindowAnchoredOnLastOccurrence(t *testing.T) {
	m, fake, _ := newTestManager(t, nil)

	ev := &alert.Event{Category: "capacity", Service: "workers", Type: "usage"}

	m.ProcessAlert(context.Background(), ev)
	// Repeats every 4 minutes keep refreshing the window.
	for i := 0; i < 3; i++ {
		fake.Advance(4 * time.Minute)
		res := m.ProcessAlert(context.Background(), ev)
		assert.False(t, res.Sent)
		assert.Equal(t, i+2, res.Alert.Count)
	}
}

func TestProcessAlert_NilAndIncompleteFailClosed(t *testing.T) {
	m, _, sink := newTestManager(t, nil)

	res := m.ProcessAlert(context.Background(), nil)
	assert.False(t, res.Sent)
	assert.NotEmpty(t, res.Error)

	res = m.ProcessAlert(context.Background(), &alert.Event{Category: "payment"})
	assert.False(t, res.Sent)
	assert.NotEmpty(t, res.Error)

	assert.Zero(t, sink.Count())
}

func TestProcessAlert_Disabled(t *testing.T) {
	m, _, sink := newTestManager(t, func(c *alert.Config) { c.Disabled = true })

	res := m.ProcessAlert(context.Background(), &alert.Event{
		Category: "database", Service: "postgres", Type: "unavailable",
	})

	assert.False(t, res.Sent)
	assert.Equal(t, "disabled", res.Reason)
	assert.Zero(t, sink.Count())
}

func TestProcessAlert_LiteralConfigDeliversByDefault(t *testing.T) {
	sink := testutil.NewWebhookSink(t)

	// A Config built literally, without DefaultConfig or LoadConfig,
	// must still deliver: the zero value means enabled.
	m := alert.NewManager(alert.Config{
		Channels: []alert.Channel{{Name: "ops", URL: alert.SecretURL(sink.URL)}},
	})

	res := m.ProcessAlert(context.Background(), &alert.Event{
		Category: "database", Service: "postgres", Type: "unavailable",
	})

	assert.True(t, res.Sent)
	assert.Empty(t, res.Reason)
	assert.Equal(t, 1, sink.Count())
}

func TestProcessAlert_MaintenanceWindow(t *testing.T) {
	start := time.Date(2024, 6, 1, 11, 0, 0, 0, time.UTC)
	m, _, sink := newTestManager(t, func(c *alert.Config) {
		c.MaintenanceWindows = []alert.MaintenanceWindow{{Start: start, End: start.Add(2 * time.Hour)}}
	})

	res := m.ProcessAlert(context.Background(), &alert.Event{
		Category: "database", Service: "postgres", Type: "unavailable",
	})

	assert.False(t, res.Sent)
	assert.Equal(t, "maintenance", res.Reason)
	assert.Zero(t, sink.Count())
}

func TestProcessAlert_MinSeverityFloor(t *testing.T) {
	m, _, sink := newTestManager(t, func(c *alert.Config) { c.MinSeverity = alert.SeverityHigh })

	res := m.ProcessAlert(context.Background(), &alert.Event{
		Category: "misc", Service: "svc", Type: "noise",
	})
	assert.False(t, res.Sent)
	assert.Equal(t, "below_minimum_severity", res.Reason)
	assert.Zero(t, sink.Count())

	res = m.ProcessAlert(context.Background(), &alert.Event{
		Category: "database", Service: "postgres", Type: "unavailable",
	})
	assert.True(t, res.Sent)
	assert.Equal(t, 1, sink.Count())
}

func TestProcessAlert_SeverityOverrideRespected(t *testing.T) {
	m, _, _ := newTestManager(t, nil)

	res := m.ProcessAlert(context.Background(), &alert.Event{
		Category: "misc", Service: "svc", Type: "custom",
		Severity: alert.SeverityCritical,
	})

	require.True(t, res.Sent)
	assert.Equal(t, alert.SeverityCritical, res.Alert.Severity)
}

func TestProcessAlert_DeliveryFailureStillSent(t *testing.T) {
	m, _, sink := newTestManager(t, nil)
	sink.SetStatus(500)

	res := m.ProcessAlert(context.Background(), &alert.Event{
		Category: "database", Service: "postgres", Type: "unavailable",
	})

	assert.True(t, res.Sent, "delivery failure is per-channel, not a pipeline error")
	assert.Empty(t, res.Channels)
	assert.Empty(t, res.Error)
}

func TestEscalation_Lifecycle(t *testing.T) {
	sink := testutil.NewWebhookSink(t)
	escalation := testutil.NewWebhookSink(t)

	cfg := alert.DefaultConfig()
	cfg.Channels = []alert.Channel{{Name: "ops", URL: alert.SecretURL(sink.URL)}}
	cfg.EscalationURL = alert.SecretURL(escalation.URL)
	cfg.DeliveryRPS = 1000
	cfg.DeliveryBurst = 1000

	fake := clock.NewFake(time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC))
	m := alert.NewManager(cfg, alert.WithClock(fake))

	ev := &alert.Event{Category: "database", Service: "postgres", Type: "unavailable"}
	key := alert.GenerateKey(ev)
	m.ProcessAlert(context.Background(), ev)

	assert.False(t, m.NeedsEscalation(key), "not due before the timeout")

	fake.Advance(15 * time.Minute)
	assert.True(t, m.NeedsEscalation(key))

	assert.True(t, m.Escalate(context.Background(), key))
	assert.Equal(t, 1, escalation.Count())

	assert.False(t, m.NeedsEscalation(key), "escalation is once per record")
	assert.False(t, m.Escalate(context.Background(), key))
	assert.Equal(t, 1, escalation.Count())
}

func TestEscalation_OnlyCritical(t *testing.T) {
	m, fake, _ := newTestManager(t, nil)

	ev := &alert.Event{Category: "misc", Service: "svc", Type: "minor"}
	key := alert.GenerateKey(ev)
	m.ProcessAlert(context.Background(), ev)

	fake.Advance(time.Hour)
	assert.False(t, m.NeedsEscalation(key), "only CRITICAL alerts escalate")
}

func TestEscalate_SweptKeyIsNoOp(t *testing.T) {
	m, fake, _ := newTestManager(t, nil)

	ev := &alert.Event{Category: "database", Service: "postgres", Type: "unavailable"}
	key := alert.GenerateKey(ev)
	m.ProcessAlert(context.Background(), ev)

	// Past both the aggregation window and the escalation timeout.
	fake.Advance(16 * time.Minute)
	require.Equal(t, 1, m.SweepInactive())

	assert.False(t, m.Escalate(context.Background(), key))
	assert.False(t, m.NeedsEscalation(key))
}

func TestMarkEscalated_Idempotent(t *testing.T) {
	m, _, _ := newTestManager(t, nil)

	ev := &alert.Event{Category: "database", Service: "postgres", Type: "unavailable"}
	key := alert.GenerateKey(ev)
	m.ProcessAlert(context.Background(), ev)

	assert.True(t, m.MarkEscalated(key))
	assert.False(t, m.MarkEscalated(key))
	assert.False(t, m.MarkEscalated("no:such:key"))
}

func TestStatistics(t *testing.T) {
	m, fake, _ := newTestManager(t, nil)

	m.ProcessAlert(context.Background(), &alert.Event{Category: "database", Service: "postgres", Type: "unavailable"})
	m.ProcessAlert(context.Background(), &alert.Event{Category: "payment", Service: "billing", Type: "failure_rate",
		Metrics: map[string]float64{"failure_rate": 0.05}})
	m.ProcessAlert(context.Background(), &alert.Event{Category: "misc", Service: "svc", Type: "noise"})

	stats := m.Statistics()
	assert.Equal(t, 3, stats.ActiveAlerts)
	assert.Equal(t, 3, stats.TotalRecorded)
	assert.Equal(t, 2, stats.BySeverity[alert.SeverityCritical])
	assert.Equal(t, 1, stats.BySeverity[alert.SeverityLow])
	assert.Equal(t, 1, stats.ByCategory["payment"])

	fake.Advance(10 * time.Minute)
	stats = m.Statistics()
	assert.Zero(t, stats.ActiveAlerts, "lapsed windows drop out of active counts")
	assert.Equal(t, 3, stats.TotalRecorded)
}

func TestSweepInactive(t *testing.T) {
	m, fake, _ := newTestManager(t, nil)

	m.ProcessAlert(context.Background(), &alert.Event{Category: "a", Service: "s", Type: "t"})
	fake.Advance(4 * time.Minute)
	m.ProcessAlert(context.Background(), &alert.Event{Category: "b", Service: "s", Type: "t"})

	fake.Advance(2 * time.Minute)
	assert.Equal(t, 1, m.SweepInactive(), "only the lapsed record is removed")
	assert.Equal(t, 0, m.SweepInactive())
}

func TestHistory_EvictsOldestFirst(t *testing.T) {
	m, fake, _ := newTestManager(t, func(c *alert.Config) { c.HistoryLimit = 3 })

	for i := 0; i < 5; i++ {
		m.ProcessAlert(context.Background(), &alert.Event{
			Category: "misc", Service: "svc", Type: fmt.Sprintf("t%d", i),
		})
		fake.Advance(time.Second)
	}

	hist := m.History()
	require.Len(t, hist, 3)
	assert.Equal(t, "misc:svc:t2", hist[0].Key)
	assert.Equal(t, "misc:svc:t4", hist[2].Key)
}
