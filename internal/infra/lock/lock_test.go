package lock

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/bsm/redislock"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bryanwahyu/auditor/internal/domain/jobs"
)

func TestLocalLock(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	l := NewLocal()
	l.now = func() time.Time { return now }

	u, err := l.Obtain(ctx, "sweep", time.Minute)
	require.NoError(t, err)

	_, err = l.Obtain(ctx, "sweep", time.Minute)
	assert.ErrorIs(t, err, jobs.ErrLockNotObtained)

	_, err = l.Obtain(ctx, "other", time.Minute)
	assert.NoError(t, err)

	require.NoError(t, u.Release(ctx))
	_, err = l.Obtain(ctx, "sweep", time.Minute)
	assert.NoError(t, err)

	// expired locks can be taken over
	now = now.Add(2 * time.Minute)
	_, err = l.Obtain(ctx, "sweep", time.Minute)
	assert.NoError(t, err)
}

func TestRedisLock(t *testing.T) {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		t.Skip("REDIS_ADDR not set")
	}
	ctx := context.Background()
	rdb := redis.NewClient(&redis.Options{Addr: addr})
	defer rdb.Close()

	l := NewRedis(redislock.New(rdb))
	key := "test:lock:" + uuid.NewString()

	u, err := l.Obtain(ctx, key, time.Minute)
	require.NoError(t, err)
	_, err = l.Obtain(ctx, key, time.Minute)
	assert.ErrorIs(t, err, jobs.ErrLockNotObtained)
	require.NoError(t, u.Release(ctx))
	require.NoError(t, u.Release(ctx))
}
