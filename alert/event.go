package alert

import (
	"fmt"
	"time"
)

// Event is a raw problem report handed in by instrumentation.
type Event struct {
	Category string             `json:"category"`
	Service  string             `json:"service"`
	Type     string             `json:"type"`
	Message  string             `json:"message,omitempty"`
	Severity Severity           `json:"severity,omitempty"` // Optional caller override
	Metrics  map[string]float64 `json:"metrics,omitempty"`
	Details  map[string]any     `json:"details,omitempty"`
}

// GenerateKey builds the deterministic deduplication key. Events with
// the same category, service, and type merge within the aggregation
// window regardless of field ordering in the input.
func GenerateKey(ev *Event) string {
	return fmt.Sprintf("%s:%s:%s", ev.Category, ev.Service, ev.Type)
}

// Record is the deduplication/escalation state for one alert key.
type Record struct {
	ID              string         `json:"id"`
	Key             string         `json:"key"`
	Category        string         `json:"category"`
	Service         string         `json:"service"`
	Type            string         `json:"type"`
	Message         string         `json:"message,omitempty"`
	Severity        Severity       `json:"severity"`
	Count           int            `json:"count"`
	FirstOccurrence time.Time      `json:"first_occurrence"`
	LastOccurrence  time.Time      `json:"last_occurrence"`
	Escalated       bool           `json:"escalated"`
	Payload         map[string]any `json:"payload,omitempty"`
}

func (r *Record) clone() *Record {
	c := *r
	return &c
}
