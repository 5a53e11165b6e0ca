package auth

import (
	"context"
	"testing"
	"time"

	"socialcore/application/ports"
	"socialcore/infrastructure/persistence/memory"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStoreRateLimiter_FixedWindow(t *testing.T) {
	now := time.Date(2024, 7, 1, 10, 0, 30, 0, time.UTC)
	clock := ports.ClockFunc(func() time.Time { return now })
	limiter := NewStoreRateLimiter(memory.NewStore(), 3, time.Minute, clock)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		d, err := limiter.Allow(ctx, "alice")
		require.NoError(t, err)
		assert.True(t, d.Allowed)
		assert.Equal(t, 2-i, d.Remaining)
	}

	d, err := limiter.Allow(ctx, "alice")
	require.NoError(t, err)
	assert.False(t, d.Allowed)
	assert.Equal(t, time.Date(2024, 7, 1, 10, 1, 0, 0, time.UTC), d.ResetAt)

	// other subjects have their own budget
	d, err = limiter.Allow(ctx, "bob")
	require.NoError(t, err)
	assert.True(t, d.Allowed)

	// next window starts fresh
	now = now.Add(time.Minute)
	d, err = limiter.Allow(ctx, "alice")
	require.NoError(t, err)
	assert.True(t, d.Allowed)
}
