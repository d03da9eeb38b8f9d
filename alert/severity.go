package alert

// Severity orders alerts for suppression floors and escalation.
type Severity string

const (
	SeverityCritical Severity = "CRITICAL"
	SeverityHigh     Severity = "HIGH"
	SeverityMedium   Severity = "MEDIUM"
	SeverityLow      Severity = "LOW"
	SeverityInfo     Severity = "INFO"
)

// Rank maps severities to a comparable order; unknown values rank
// below everything.
func (s Severity) Rank() int {
	switch s {
	case SeverityCritical:
		return 4
	case SeverityHigh:
		return 3
	case SeverityMedium:
		return 2
	case SeverityLow:
		return 1
	case SeverityInfo:
		return 0
	default:
		return -1
	}
}

// Valid reports whether s is a known severity.
func (s Severity) Valid() bool { return s.Rank() >= 0 }

// Visual is the color/emoji pair consumers render for a severity.
type Visual struct {
	Color string `json:"color"`
	Emoji string `json:"emoji"`
}

// Visual returns the severity's visual mapping. Consumers depend on
// these exact values; do not reassign them.
func (s Severity) Visual() Visual {
	switch s {
	case SeverityCritical:
		return Visual{Color: "#FF0000", Emoji: ":rotating_light:"}
	case SeverityHigh:
		return Visual{Color: "#FF8C00", Emoji: ":warning:"}
	case SeverityMedium:
		return Visual{Color: "#FFD700", Emoji: ":exclamation:"}
	case SeverityLow:
		return Visual{Color: "#008080", Emoji: ":information_source:"}
	default:
		return Visual{Color: "#808080", Emoji: ":speech_balloon:"}
	}
}

// CalculateSeverity classifies an event against the configured
// thresholds, defaulting to LOW.
func CalculateSeverity(ev *Event, t Thresholds) Severity {
	t = t.withDefaults()
	switch ev.Category {
	case "payment":
		rate := ev.Metrics["failure_rate"]
		switch {
		case rate > 2*t.PaymentFailureRate:
			return SeverityCritical
		case rate > t.PaymentFailureRate:
			return SeverityHigh
		}
	case "database":
		if ev.Type == "unavailable" {
			return SeverityCritical
		}
	case "external":
		rate := ev.Metrics["error_rate"]
		switch {
		case rate > 2*t.ExternalErrorRate:
			return SeverityHigh
		case rate > t.ExternalErrorRate:
			return SeverityMedium
		}
	case "performance":
		rt := ev.Metrics["response_time"]
		switch {
		case rt > 2*t.ResponseTimeMS:
			return SeverityHigh
		case rt > t.ResponseTimeMS:
			return SeverityMedium
		}
	case "capacity":
		usage := ev.Metrics["usage"]
		switch {
		case usage >= t.CapacityHighPct:
			return SeverityHigh
		case usage >= t.CapacityMediumPct:
			return SeverityMedium
		}
	}
	return SeverityLow
}
