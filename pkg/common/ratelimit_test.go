package common

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRateLimiter_UpdateLimits(t *testing.T) {
	rl := NewRateLimiter(5, 2)
	assert.InDelta(t, 5.0, rl.Limit(), 0.0001)

	rl.UpdateLimits(1.5, 3)
	assert.InDelta(t, 1.5, rl.Limit(), 0.0001)

	// Invalid values are ignored.
	rl.UpdateLimits(0, 3)
	rl.UpdateLimits(2, 0)
	assert.InDelta(t, 1.5, rl.Limit(), 0.0001)
}

func TestRateLimiter_Unlimited(t *testing.T) {
	rl := NewRateLimiter(0, 0)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	for range 100 {
		require.NoError(t, rl.Wait(ctx))
	}
}

func TestRateLimiter_PauseFor(t *testing.T) {
	rl := NewRateLimiter(0, 1)
	rl.PauseFor(time.Hour)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, rl.Wait(ctx), context.DeadlineExceeded)
}

func TestRateLimiter_PauseKeepsLaterDeadline(t *testing.T) {
	rl := NewRateLimiter(0, 1)
	rl.PauseFor(30 * time.Millisecond)
	rl.PauseFor(time.Millisecond)

	start := time.Now()
	require.NoError(t, rl.Wait(context.Background()))
	assert.GreaterOrEqual(t, time.Since(start), 20*time.Millisecond)
}
