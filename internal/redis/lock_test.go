package redisclient

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hackgods/practitioner-scheduling/internal/apperror"
	"github.com/hackgods/practitioner-scheduling/internal/lock"
)

// Runs against a real server; set REDIS_TEST_ADDR to enable.
func newTestLocker(t *testing.T) lock.Locker {
	t.Helper()
	addr := os.Getenv("REDIS_TEST_ADDR")
	if addr == "" {
		t.Skip("REDIS_TEST_ADDR not set")
	}
	client, err := NewRedisClient(context.Background(), Options{Addr: addr})
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })
	return NewRedisCalendarLocker(client, 2*time.Second)
}

func TestRedisLockerFailsFastWhenHeld(t *testing.T) {
	l := newTestLocker(t)
	key := "test:" + uuid.NewString()
	ctx := context.Background()

	err := l.WithLock(ctx, []string{key}, func(ctx context.Context) error {
		inner := lock.Run(ctx, l, []string{key}, func(context.Context) error { return nil })
		assert.ErrorIs(t, inner, lock.ErrNotAcquired)
		assert.Equal(t, apperror.KindConflict, apperror.KindOf(inner))
		return nil
	})
	require.NoError(t, err)

	ran := false
	require.NoError(t, l.WithLock(ctx, []string{key}, func(context.Context) error {
		ran = true
		return nil
	}))
	assert.True(t, ran, "lock is released after fn returns")
}
