package redisclient

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalLockerRejectsHeldKey(t *testing.T) {
	l := NewLocalLocker()
	ctx := context.Background()

	err := l.WithSlotLock(ctx, "7:2026-10-20:09:00-09:30", func(ctx context.Context) error {
		inner := l.WithSlotLock(ctx, "7:2026-10-20:09:00-09:30", func(context.Context) error { return nil })
		assert.ErrorIs(t, inner, ErrLockNotAcquired)

		other := l.WithSlotLock(ctx, "7:2026-10-20:09:30-10:00", func(context.Context) error { return nil })
		assert.NoError(t, other)
		return nil
	})
	require.NoError(t, err)

	// released after fn returns
	require.NoError(t, l.WithSlotLock(ctx, "7:2026-10-20:09:00-09:30", func(context.Context) error { return nil }))
}

func TestLocalLockerPropagatesError(t *testing.T) {
	l := NewLocalLocker()
	boom := errors.New("boom")

	err := l.WithSlotLock(context.Background(), "k", func(context.Context) error { return boom })
	assert.ErrorIs(t, err, boom)

	require.NoError(t, l.WithSlotLock(context.Background(), "k", func(context.Context) error { return nil }))
}
