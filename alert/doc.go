// Package alert turns raw events into severity-classified, deduplicated,
// possibly-escalated notifications.
//
// # Pipeline
//
// ProcessAlert runs severity classification (unless the caller supplied
// one), the suppression policy (disabled manager, maintenance window,
// minimum-severity floor), deduplication against the aggregation
// window, and finally delivery to every configured webhook channel.
//
//	mgr := alert.NewManager(cfg)
//	result := mgr.ProcessAlert(ctx, &alert.Event{
//	    Category: "payment",
//	    Service:  "checkout",
//	    Type:     "failure_rate",
//	    Metrics:  map[string]float64{"failure_rate": 0.05},
//	})
//
// Alerting must never crash the calling instrumentation: malformed
// input fails closed with a {Sent: false, Error: ...} result, and
// delivery failures are logged per channel without aborting the others.
//
// Escalation is a lazy wall-clock comparison: a CRITICAL alert still
// active after the escalation timeout reports NeedsEscalation until it
// is marked escalated, which is idempotent.
package alert
