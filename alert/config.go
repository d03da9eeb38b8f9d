package alert

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Thresholds configure category-specific severity rules.
type Thresholds struct {
	PaymentFailureRate float64 // Failure-rate threshold, default 0.01
	ExternalErrorRate  float64 // Error-rate threshold, default 0.05
	ResponseTimeMS     float64 // Response-time threshold in ms, default 1000
	CapacityHighPct    float64 // Usage percent for HIGH, default 95
	CapacityMediumPct  float64 // Usage percent for MEDIUM, default 90
}

func (t Thresholds) withDefaults() Thresholds {
	if t.PaymentFailureRate <= 0 {
		t.PaymentFailureRate = 0.01
	}
	if t.ExternalErrorRate <= 0 {
		t.ExternalErrorRate = 0.05
	}
	if t.ResponseTimeMS <= 0 {
		t.ResponseTimeMS = 1000
	}
	if t.CapacityHighPct <= 0 {
		t.CapacityHighPct = 95
	}
	if t.CapacityMediumPct <= 0 {
		t.CapacityMediumPct = 90
	}
	return t
}

// MaintenanceWindow silences alerts between Start and End.
type MaintenanceWindow struct {
	Start time.Time
	End   time.Time
}

// Contains reports whether t falls inside the window.
func (w MaintenanceWindow) Contains(t time.Time) bool {
	return !t.Before(w.Start) && t.Before(w.End)
}

// Channel is a named webhook destination.
type Channel struct {
	Name string
	URL  SecretURL
}

// Config holds alert manager configuration.
type Config struct {
	// Disabled turns off all delivery. The zero value keeps alerting
	// on, so a literal Config{} behaves like DefaultConfig().
	Disabled bool

	// Username appears as the webhook sender. Default: "vigil".
	Username string

	// Channels receive every delivered alert.
	Channels []Channel

	// EscalationURL is the independently configured escalation channel.
	EscalationURL SecretURL

	// AggregationWindow merges repeats of the same alert key. Default: 5m.
	AggregationWindow time.Duration

	// EscalationTimeout is how long a CRITICAL alert may stay active
	// before it needs escalation. Default: 15m.
	EscalationTimeout time.Duration

	// HistoryLimit caps retained records, oldest evicted first. Default: 1000.
	HistoryLimit int

	// MinSeverity suppresses alerts below this floor. Empty disables the floor.
	MinSeverity Severity

	// MaintenanceWindows silence delivery while current time is inside any of them.
	MaintenanceWindows []MaintenanceWindow

	// Thresholds drive CalculateSeverity.
	Thresholds Thresholds

	// Delivery smoothing and fault containment.
	DeliveryRPS      float64       // Webhook posts per second, default 5
	DeliveryBurst    int           // Default 10
	BreakerThreshold uint32        // Consecutive delivery failures before opening, default 3
	BreakerTimeout   time.Duration // Default 60s
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Username:          "vigil",
		AggregationWindow: 5 * time.Minute,
		EscalationTimeout: 15 * time.Minute,
		HistoryLimit:      1000,
		Thresholds:        Thresholds{}.withDefaults(),
		DeliveryRPS:       5,
		DeliveryBurst:     10,
		BreakerThreshold:  3,
		BreakerTimeout:    60 * time.Second,
	}
}

func (c Config) withDefaults() Config {
	if c.Username == "" {
		c.Username = "vigil"
	}
	if c.AggregationWindow <= 0 {
		c.AggregationWindow = 5 * time.Minute
	}
	if c.EscalationTimeout <= 0 {
		c.EscalationTimeout = 15 * time.Minute
	}
	if c.HistoryLimit <= 0 {
		c.HistoryLimit = 1000
	}
	c.Thresholds = c.Thresholds.withDefaults()
	if c.DeliveryRPS <= 0 {
		c.DeliveryRPS = 5
	}
	if c.DeliveryBurst <= 0 {
		c.DeliveryBurst = 10
	}
	if c.BreakerThreshold == 0 {
		c.BreakerThreshold = 3
	}
	if c.BreakerTimeout <= 0 {
		c.BreakerTimeout = 60 * time.Second
	}
	return c
}

// LoadConfig loads configuration from environment variables.
func LoadConfig() (*Config, error) {
	cfg := DefaultConfig()

	cfg.Disabled = strings.ToLower(getEnv("ALERT_ENABLED", "true")) == "false"
	cfg.Username = getEnv("ALERT_USERNAME", "vigil")

	if url := getEnv("ALERT_WEBHOOK_URL", ""); url != "" {
		cfg.Channels = append(cfg.Channels, Channel{Name: "webhook", URL: SecretURL(url)})
	}
	cfg.EscalationURL = SecretURL(getEnv("ALERT_ESCALATION_WEBHOOK_URL", ""))

	if d, err := time.ParseDuration(getEnv("ALERT_AGGREGATION_WINDOW", "5m")); err == nil {
		cfg.AggregationWindow = d
	}
	if d, err := time.ParseDuration(getEnv("ALERT_ESCALATION_TIMEOUT", "15m")); err == nil {
		cfg.EscalationTimeout = d
	}
	if n, err := strconv.Atoi(getEnv("ALERT_HISTORY_LIMIT", "1000")); err == nil {
		cfg.HistoryLimit = n
	}

	if sev := getEnv("ALERT_MIN_SEVERITY", ""); sev != "" {
		s := Severity(strings.ToUpper(sev))
		if !s.Valid() {
			return nil, NewValidationError("ALERT_MIN_SEVERITY", "must be CRITICAL, HIGH, MEDIUM, LOW, or INFO")
		}
		cfg.MinSeverity = s
	}

	// Maintenance windows: comma-separated "start/end" RFC3339 pairs.
	if raw := getEnv("ALERT_MAINTENANCE_WINDOWS", ""); raw != "" {
		for _, pair := range strings.Split(raw, ",") {
			parts := strings.SplitN(strings.TrimSpace(pair), "/", 2)
			if len(parts) != 2 {
				return nil, NewValidationError("ALERT_MAINTENANCE_WINDOWS", "expected start/end pairs")
			}
			start, err := time.Parse(time.RFC3339, parts[0])
			if err != nil {
				return nil, NewValidationError("ALERT_MAINTENANCE_WINDOWS", "invalid start: "+err.Error())
			}
			end, err := time.Parse(time.RFC3339, parts[1])
			if err != nil {
				return nil, NewValidationError("ALERT_MAINTENANCE_WINDOWS", "invalid end: "+err.Error())
			}
			if !end.After(start) {
				return nil, NewValidationError("ALERT_MAINTENANCE_WINDOWS", "end must be after start")
			}
			cfg.MaintenanceWindows = append(cfg.MaintenanceWindows, MaintenanceWindow{Start: start, End: end})
		}
	}

	if f, err := strconv.ParseFloat(getEnv("ALERT_PAYMENT_FAILURE_RATE_THRESHOLD", "0.01"), 64); err == nil {
		cfg.Thresholds.PaymentFailureRate = f
	}
	if f, err := strconv.ParseFloat(getEnv("ALERT_EXTERNAL_ERROR_RATE_THRESHOLD", "0.05"), 64); err == nil {
		cfg.Thresholds.ExternalErrorRate = f
	}
	if f, err := strconv.ParseFloat(getEnv("ALERT_RESPONSE_TIME_THRESHOLD_MS", "1000"), 64); err == nil {
		cfg.Thresholds.ResponseTimeMS = f
	}
	if f, err := strconv.ParseFloat(getEnv("ALERT_CAPACITY_HIGH_PCT", "95"), 64); err == nil {
		cfg.Thresholds.CapacityHighPct = f
	}
	if f, err := strconv.ParseFloat(getEnv("ALERT_CAPACITY_MEDIUM_PCT", "90"), 64); err == nil {
		cfg.Thresholds.CapacityMediumPct = f
	}

	if f, err := strconv.ParseFloat(getEnv("ALERT_DELIVERY_RPS", "5"), 64); err == nil {
		cfg.DeliveryRPS = f
	}
	if n, err := strconv.Atoi(getEnv("ALERT_DELIVERY_BURST", "10")); err == nil {
		cfg.DeliveryBurst = n
	}
	if n, err := strconv.ParseUint(getEnv("ALERT_BREAKER_THRESHOLD", "3"), 10, 32); err == nil {
		cfg.BreakerThreshold = uint32(n)
	}
	if d, err := time.ParseDuration(getEnv("ALERT_BREAKER_TIMEOUT", "60s")); err == nil {
		cfg.BreakerTimeout = d
	}

	return &cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}
