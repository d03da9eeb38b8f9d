package health

import (
	"context"
	"log/slog"
	"os"
	"runtime"
	"sync"
	"time"

	"github.com/shirou/gopsutil/v4/process"
)

// MonitorConfig holds resource monitor configuration.
type MonitorConfig struct {
	// Interval between samples. Default: 10s.
	Interval time.Duration

	// MaxDuration bounds a monitoring session; the sampler stops on its
	// own once it elapses, so a forgotten Start cannot leak a timer
	// forever. Default: 1h.
	MaxDuration time.Duration

	// OnSample, when set, receives every sample.
	OnSample func(Sample)
}

// DefaultMonitorConfig returns sensible defaults.
func DefaultMonitorConfig() MonitorConfig {
	return MonitorConfig{
		Interval:    10 * time.Second,
		MaxDuration: time.Hour,
	}
}

func (c MonitorConfig) withDefaults() MonitorConfig {
	if c.Interval <= 0 {
		c.Interval = 10 * time.Second
	}
	if c.MaxDuration <= 0 {
		c.MaxDuration = time.Hour
	}
	return c
}

// Sample is one resource measurement of the current process.
type Sample struct {
	Timestamp     time.Time `json:"timestamp"`
	MemoryRSS     uint64    `json:"memory_rss"`
	MemoryPercent float32   `json:"memory_percent"`
	CPUPercent    float64   `json:"cpu_percent"`
	Goroutines    int       `json:"goroutines"`
}

// Monitor samples process resources on a fixed interval. It is the one
// deliberate background timer in this module; everything else evaluates
// time lazily.
type Monitor struct {
	cfg    MonitorConfig
	logger *slog.Logger
	proc   *process.Process

	mu      sync.Mutex
	cancel  context.CancelFunc
	done    chan struct{}
	latest  *Sample
	hasData bool
}

// NewMonitor creates a Monitor.
func NewMonitor(cfg MonitorConfig, logger *slog.Logger) *Monitor {
	if logger == nil {
		logger = slog.Default()
	}
	m := &Monitor{
		cfg:    cfg.withDefaults(),
		logger: logger,
	}
	if proc, err := process.NewProcess(int32(os.Getpid())); err == nil {
		m.proc = proc
	}
	return m
}

// Start begins sampling until Stop, context cancellation, or the
// session's MaxDuration, whichever comes first.
func (m *Monitor) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.cancel != nil {
		return ErrMonitorRunning
	}

	ctx, cancel := context.WithTimeout(ctx, m.cfg.MaxDuration)
	m.cancel = cancel
	m.done = make(chan struct{})

	go m.loop(ctx)
	m.logger.Info("resource monitor started",
		"interval", m.cfg.Interval, "max_duration", m.cfg.MaxDuration)
	return nil
}

func (m *Monitor) loop(ctx context.Context) {
	defer close(m.done)
	ticker := time.NewTicker(m.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s := m.sample()
			m.mu.Lock()
			m.latest = &s
			m.hasData = true
			m.mu.Unlock()
			if m.cfg.OnSample != nil {
				m.cfg.OnSample(s)
			}
		case <-ctx.Done():
			m.logger.Info("resource monitor stopped", "reason", ctx.Err())
			m.mu.Lock()
			if m.cancel != nil {
				m.cancel()
				m.cancel = nil
			}
			m.mu.Unlock()
			return
		}
	}
}

// Stop cancels the sampling session and waits for the loop to exit.
// Safe to call when not running.
func (m *Monitor) Stop() {
	m.mu.Lock()
	cancel := m.cancel
	done := m.done
	m.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	<-done
}

// Running reports whether a session is active.
func (m *Monitor) Running() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cancel != nil
}

// Latest returns the most recent sample, if any was taken.
func (m *Monitor) Latest() (Sample, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.hasData {
		return Sample{}, false
	}
	return *m.latest, true
}

func (m *Monitor) sample() Sample {
	s := Sample{
		Timestamp:  time.Now(),
		Goroutines: runtime.NumGoroutine(),
	}
	if m.proc != nil {
		if mi, err := m.proc.MemoryInfo(); err == nil {
			s.MemoryRSS = mi.RSS
		}
		if pct, err := m.proc.MemoryPercent(); err == nil {
			s.MemoryPercent = pct
		}
		if cpu, err := m.proc.CPUPercent(); err == nil {
			s.CPUPercent = cpu
		}
	}
	return s
}
