package lock

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalLocker(t *testing.T) {
	ctx := context.Background()
	locker := NewLocalLocker()

	release, err := locker.Acquire(ctx, "sweep", time.Minute)
	require.NoError(t, err)

	_, err = locker.Acquire(ctx, "sweep", time.Minute)
	assert.ErrorIs(t, err, ErrNotAcquired)

	other, err := locker.Acquire(ctx, "other", time.Minute)
	require.NoError(t, err)
	require.NoError(t, other(ctx))

	require.NoError(t, release(ctx))
	require.NoError(t, release(ctx))

	again, err := locker.Acquire(ctx, "sweep", time.Minute)
	require.NoError(t, err)
	require.NoError(t, again(ctx))
}

func TestLocalLockerExpires(t *testing.T) {
	ctx := context.Background()
	locker := NewLocalLocker()

	stale, err := locker.Acquire(ctx, "sweep", 10*time.Millisecond)
	require.NoError(t, err)
	time.Sleep(20 * time.Millisecond)

	fresh, err := locker.Acquire(ctx, "sweep", time.Minute)
	require.NoError(t, err)

	// the expired holder must not free the new one
	require.NoError(t, stale(ctx))
	_, err = locker.Acquire(ctx, "sweep", time.Minute)
	assert.ErrorIs(t, err, ErrNotAcquired)
	require.NoError(t, fresh(ctx))
}
