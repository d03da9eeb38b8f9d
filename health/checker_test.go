package health_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/prilive-com/vigil/health"
)

func healthyCheck(details map[string]any) health.CheckFunc {
	return func(ctx context.Context) (map[string]any, error) {
		return details, nil
	}
}

func failingCheck(msg string) health.CheckFunc {
	return func(ctx context.Context) (map[string]any, error) {
		return nil, errors.New(msg)
	}
}

func TestExecute_UnregisteredName(t *testing.T) {
	checker := health.NewChecker()

	_, err := checker.Execute(context.Background(), "nope")
	assert.ErrorIs(t, err, health.ErrCheckNotFound)
	assert.Contains(t, err.Error(), "nope")
}

func TestExecute_HealthyCheck(t *testing.T) {
	checker := health.NewChecker()
	checker.Register("database", healthyCheck(map[string]any{"pool": 4}), health.CheckOptions{})

	res, err := checker.Execute(context.Background(), "database")
	require.NoError(t, err)
	assert.Equal(t, health.StatusHealthy, res.Status)
	assert.Equal(t, map[string]any{"pool": 4}, res.Details)
	assert.Empty(t, res.Error)
	assert.Nil(t, res.Breaker, "breaker snapshot only appears once it has opened")
}

func TestExecute_FailingCheck(t *testing.T) {
	checker := health.NewChecker()
	checker.Register("cache", failingCheck("connection refused"), health.CheckOptions{})

	res, err := checker.Execute(context.Background(), "cache")
	require.NoError(t, err)
	assert.Equal(t, health.StatusUnhealthy, res.Status)
	assert.Equal(t, "connection refused", res.Error)
}

func TestExecute_TimeoutCountsAsFailure(t *testing.T) {
	checker := health.NewChecker()
	var cancelled atomic.Bool
	checker.Register("slow", func(ctx context.Context) (map[string]any, error) {
		<-ctx.Done()
		cancelled.Store(true)
		return nil, ctx.Err()
	}, health.CheckOptions{
		Timeout: 20 * time.Millisecond,
		Breaker: health.BreakerConfig{Threshold: 1, Timeout: time.Hour},
	})

	res, err := checker.Execute(context.Background(), "slow")
	require.NoError(t, err)
	assert.Equal(t, health.StatusUnhealthy, res.Status)
	assert.Contains(t, res.Error, "timed out")

	// The failure opened the threshold-1 breaker.
	states := checker.BreakerSnapshots()
	assert.Equal(t, health.StateOpen, states["slow"].State)

	assert.Eventually(t, cancelled.Load, time.Second, 5*time.Millisecond,
		"in-flight check should be cancelled on expiry")
}

func TestExecute_CallerCancelDoesNotChargeBreaker(t *testing.T) {
	checker := health.NewChecker()
	checker.Register("slow", func(ctx context.Context) (map[string]any, error) {
		time.Sleep(50 * time.Millisecond)
		return nil, nil
	}, health.CheckOptions{
		Timeout: time.Hour,
		Breaker: health.BreakerConfig{Threshold: 1, Timeout: time.Hour},
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res, err := checker.Execute(ctx, "slow")
	require.NoError(t, err)
	assert.Equal(t, health.StatusUnhealthy, res.Status)
	assert.Contains(t, res.Error, "cancelled")

	// An aborted caller says nothing about the dependency.
	states := checker.BreakerSnapshots()
	assert.Equal(t, health.StateClosed, states["slow"].State)
	assert.Zero(t, states["slow"].FailureCount)
}

func TestExecute_ShortCircuitsWhenBreakerOpen(t *testing.T) {
	checker := health.NewChecker()
	var calls atomic.Int32
	checker.Register("flaky", func(ctx context.Context) (map[string]any, error) {
		calls.Add(1)
		return nil, errors.New("boom")
	}, health.CheckOptions{
		Breaker: health.BreakerConfig{Threshold: 2, Timeout: time.Hour},
	})

	ctx := context.Background()
	for i := 0; i < 2; i++ {
		_, err := checker.Execute(ctx, "flaky")
		require.NoError(t, err)
	}
	require.Equal(t, int32(2), calls.Load())

	res, err := checker.Execute(ctx, "flaky")
	require.NoError(t, err)
	assert.Equal(t, health.StatusUnhealthy, res.Status)
	assert.Equal(t, "Circuit breaker open", res.Error)
	require.NotNil(t, res.Breaker)
	assert.Equal(t, health.StateOpen, res.Breaker.State)
	assert.Equal(t, int32(2), calls.Load(), "open breaker must not invoke the check")
}

func TestExecute_RecoversThroughHalfOpen(t *testing.T) {
	checker := health.NewChecker()
	var fail atomic.Bool
	fail.Store(true)
	checker.Register("dep", func(ctx context.Context) (map[string]any, error) {
		if fail.Load() {
			return nil, errors.New("down")
		}
		return nil, nil
	}, health.CheckOptions{
		Breaker: health.BreakerConfig{Threshold: 1, Timeout: 30 * time.Millisecond},
	})

	ctx := context.Background()
	_, err := checker.Execute(ctx, "dep")
	require.NoError(t, err)

	res, err := checker.Execute(ctx, "dep")
	require.NoError(t, err)
	require.Equal(t, "Circuit breaker open", res.Error)

	time.Sleep(40 * time.Millisecond)
	fail.Store(false)

	res, err = checker.Execute(ctx, "dep")
	require.NoError(t, err)
	assert.Equal(t, health.StatusHealthy, res.Status)
	assert.Equal(t, health.StateClosed, checker.BreakerSnapshots()["dep"].State)
}

func TestExecute_RecoversFromPanic(t *testing.T) {
	checker := health.NewChecker()
	checker.Register("panicky", func(ctx context.Context) (map[string]any, error) {
		panic("unexpected")
	}, health.CheckOptions{})

	res, err := checker.Execute(context.Background(), "panicky")
	require.NoError(t, err)
	assert.Equal(t, health.StatusUnhealthy, res.Status)
	assert.Contains(t, res.Error, "panicked")
}

func TestRegister_FirstRegistrationWins(t *testing.T) {
	checker := health.NewChecker()
	checker.Register("db", healthyCheck(map[string]any{"which": "first"}), health.CheckOptions{})
	checker.Register("db", healthyCheck(map[string]any{"which": "second"}), health.CheckOptions{})

	res, err := checker.Execute(context.Background(), "db")
	require.NoError(t, err)
	assert.Equal(t, "first", res.Details["which"])
}

func TestExecuteAll_EmptyRegistryIsHealthy(t *testing.T) {
	checker := health.NewChecker()

	report := checker.ExecuteAll(context.Background())
	assert.Equal(t, health.StatusHealthy, report.Status)
	assert.Empty(t, report.Services)
	assert.Equal(t, 100, report.Score)
}

func TestExecuteAll_AllHealthy(t *testing.T) {
	checker := health.NewChecker(health.WithVersion("2.1.0"))
	checker.Register("db", healthyCheck(nil), health.CheckOptions{Critical: true})
	checker.Register("cache", healthyCheck(nil), health.CheckOptions{})

	report := checker.ExecuteAll(context.Background())
	assert.Equal(t, health.StatusHealthy, report.Status)
	assert.Equal(t, "2.1.0", report.Version)
	assert.Len(t, report.Services, 2)
	assert.Zero(t, report.Performance.ErrorRate)
	assert.Equal(t, 100, report.Score)
}

func TestExecuteAll_NonCriticalFailureDegrades(t *testing.T) {
	checker := health.NewChecker()
	checker.Register("db", healthyCheck(nil), health.CheckOptions{Critical: true})
	checker.Register("emails", failingCheck("smtp down"), health.CheckOptions{})

	report := checker.ExecuteAll(context.Background())
	assert.Equal(t, health.StatusDegraded, report.Status)
	assert.InDelta(t, 0.5, report.Performance.ErrorRate, 1e-9)
}

func TestExecuteAll_CriticalFailureIsUnhealthy(t *testing.T) {
	checker := health.NewChecker()
	checker.Register("db", failingCheck("no route"), health.CheckOptions{Critical: true})
	checker.Register("emails", healthyCheck(nil), health.CheckOptions{})

	report := checker.ExecuteAll(context.Background())
	assert.Equal(t, health.StatusUnhealthy, report.Status)
}

func TestExecuteAll_WeightedScore(t *testing.T) {
	checker := health.NewChecker()
	checker.Register("db", healthyCheck(nil), health.CheckOptions{Weight: 3})
	checker.Register("emails", failingCheck("down"), health.CheckOptions{Weight: 1})

	report := checker.ExecuteAll(context.Background())
	assert.Equal(t, 75, report.Score)
}

func TestExecuteAll_RunsChecksConcurrently(t *testing.T) {
	checker := health.NewChecker(health.WithMaxConcurrent(4))
	block := make(chan struct{})
	for _, name := range []string{"a", "b", "c", "d"} {
		checker.Register(name, func(ctx context.Context) (map[string]any, error) {
			<-block
			return nil, nil
		}, health.CheckOptions{Timeout: time.Second})
	}

	done := make(chan health.Report, 1)
	go func() { done <- checker.ExecuteAll(context.Background()) }()

	// All four block simultaneously; releasing once unblocks them all.
	time.Sleep(20 * time.Millisecond)
	close(block)

	select {
	case report := <-done:
		assert.Equal(t, health.StatusHealthy, report.Status)
	case <-time.After(time.Second):
		t.Fatal("ExecuteAll did not fan out")
	}
}

func TestCheckService_ValidatesRegistration(t *testing.T) {
	checker := health.NewChecker()
	checker.Register("db", healthyCheck(nil), health.CheckOptions{})

	report, err := checker.CheckService(context.Background(), "db")
	require.NoError(t, err)
	assert.Equal(t, "db", report.Service)
	assert.False(t, report.Timestamp.IsZero())

	_, err = checker.CheckService(context.Background(), "ghost")
	assert.ErrorIs(t, err, health.ErrCheckNotFound)
}

func TestResetBreakers_ForcesRecovery(t *testing.T) {
	checker := health.NewChecker()
	checker.Register("dep", failingCheck("down"), health.CheckOptions{
		Breaker: health.BreakerConfig{Threshold: 1, Timeout: time.Hour},
	})

	_, err := checker.Execute(context.Background(), "dep")
	require.NoError(t, err)
	require.Equal(t, health.StateOpen, checker.BreakerSnapshots()["dep"].State)

	checker.ResetBreakers()
	assert.Equal(t, health.StateClosed, checker.BreakerSnapshots()["dep"].State)

	// The check is invoked again after reset.
	res, err := checker.Execute(context.Background(), "dep")
	require.NoError(t, err)
	assert.Equal(t, "down", res.Error)
}
