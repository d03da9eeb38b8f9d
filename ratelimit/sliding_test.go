package ratelimit_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/prilive-com/vigil/ratelimit"
)

func TestSliding_AdmissionMatchesRetainedCount(t *testing.T) {
	limiter, _, _ := newTestLimiter(t)
	ctx := context.Background()
	opts := ratelimit.Options{Window: time.Minute, MaxRequests: 3}

	for i := 0; i < 3; i++ {
		res, err := limiter.IncrementSliding(ctx, "client-1", opts)
		require.NoError(t, err)
		assert.True(t, res.Allowed, "request %d should be admitted", i+1)
	}

	res, err := limiter.IncrementSliding(ctx, "client-1", opts)
	require.NoError(t, err)
	assert.False(t, res.Allowed)
	assert.Equal(t, 0, res.Remaining)
}

func TestSliding_FillingRequestStillAdmitted(t *testing.T) {
	limiter, _, _ := newTestLimiter(t)
	ctx := context.Background()
	opts := ratelimit.Options{Window: time.Minute, MaxRequests: 2}

	_, err := limiter.IncrementSliding(ctx, "client-1", opts)
	require.NoError(t, err)

	// The request that fills the window to exactly MaxRequests consumes
	// quota and must be reported as admitted.
	res, err := limiter.IncrementSliding(ctx, "client-1", opts)
	require.NoError(t, err)
	assert.True(t, res.Allowed)
	assert.Equal(t, 0, res.Remaining)
	assert.Zero(t, res.RetryAfter)
}

func TestSliding_CapacityReleasesAsOldestAgesOut(t *testing.T) {
	limiter, _, clk := newTestLimiter(t)
	ctx := context.Background()
	opts := ratelimit.Options{Window: time.Minute, MaxRequests: 2}

	_, err := limiter.IncrementSliding(ctx, "client-1", opts)
	require.NoError(t, err)

	clk.Advance(30 * time.Second)
	_, err = limiter.IncrementSliding(ctx, "client-1", opts)
	require.NoError(t, err)

	blocked, err := limiter.IncrementSliding(ctx, "client-1", opts)
	require.NoError(t, err)
	require.False(t, blocked.Allowed)

	// 31s later the first timestamp has aged out; the second has not.
	// Capacity is released without waiting for the whole window.
	clk.Advance(31 * time.Second)

	res, err := limiter.IncrementSliding(ctx, "client-1", opts)
	require.NoError(t, err)
	assert.True(t, res.Allowed)
	assert.Equal(t, 0, res.Remaining, "second original timestamp still retained")
}

func TestSliding_RetryAfterFromOldestTimestamp(t *testing.T) {
	limiter, _, clk := newTestLimiter(t)
	ctx := context.Background()
	opts := ratelimit.Options{Window: time.Minute, MaxRequests: 1}

	_, err := limiter.IncrementSliding(ctx, "client-1", opts)
	require.NoError(t, err)

	clk.Advance(20 * time.Second)

	res, err := limiter.IncrementSliding(ctx, "client-1", opts)
	require.NoError(t, err)
	require.False(t, res.Allowed)
	assert.Equal(t, 40*time.Second, res.RetryAfter, "retry should expire with the oldest timestamp")
}

func TestCheckSliding_ReadOnly(t *testing.T) {
	limiter, _, _ := newTestLimiter(t)
	ctx := context.Background()
	opts := ratelimit.Options{Window: time.Minute, MaxRequests: 2}

	for i := 0; i < 5; i++ {
		res, err := limiter.CheckSliding(ctx, "client-1", opts)
		require.NoError(t, err)
		assert.True(t, res.Allowed)
		assert.Equal(t, 2, res.Remaining)
	}
}

func TestSliding_BlockedCallDoesNotRecordTimestamp(t *testing.T) {
	limiter, _, clk := newTestLimiter(t)
	ctx := context.Background()
	opts := ratelimit.Options{Window: time.Minute, MaxRequests: 1}

	_, err := limiter.IncrementSliding(ctx, "client-1", opts)
	require.NoError(t, err)

	// Hammer while blocked; rejected attempts must not extend the window.
	for i := 0; i < 3; i++ {
		clk.Advance(10 * time.Second)
		res, err := limiter.IncrementSliding(ctx, "client-1", opts)
		require.NoError(t, err)
		require.False(t, res.Allowed)
	}

	clk.Advance(31 * time.Second) // 61s past the only admitted request

	res, err := limiter.IncrementSliding(ctx, "client-1", opts)
	require.NoError(t, err)
	assert.True(t, res.Allowed)
}
