// Package lock provides jobs.Locker implementations.
package lock

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/bsm/redislock"

	"github.com/bryanwahyu/auditor/internal/domain/jobs"
)

// Redis obtains locks shared by every process using the same Redis.
type Redis struct {
	client *redislock.Client
}

func NewRedis(client *redislock.Client) *Redis { return &Redis{client: client} }

func (r *Redis) Obtain(ctx context.Context, key string, ttl time.Duration) (jobs.Unlocker, error) {
	l, err := r.client.Obtain(ctx, key, ttl, nil)
	if errors.Is(err, redislock.ErrNotObtained) {
		return nil, jobs.ErrLockNotObtained
	}
	if err != nil {
		return nil, err
	}
	return redisLock{l}, nil
}

type redisLock struct {
	l *redislock.Lock
}

func (r redisLock) Release(ctx context.Context) error {
	err := r.l.Release(ctx)
	if errors.Is(err, redislock.ErrLockNotHeld) {
		return nil
	}
	return err
}

// Local is an in-process Locker for single node deployments.
type Local struct {
	mu   sync.Mutex
	held map[string]time.Time
	now  func() time.Time
}

func NewLocal() *Local {
	return &Local{held: map[string]time.Time{}, now: time.Now}
}

func (l *Local) Obtain(_ context.Context, key string, ttl time.Duration) (jobs.Unlocker, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	now := l.now()
	if until, ok := l.held[key]; ok && now.Before(until) {
		return nil, jobs.ErrLockNotObtained
	}
	until := now.Add(ttl)
	l.held[key] = until
	return &localLock{owner: l, key: key, until: until}, nil
}

type localLock struct {
	owner *Local
	key   string
	until time.Time
}

func (ll *localLock) Release(context.Context) error {
	ll.owner.mu.Lock()
	defer ll.owner.mu.Unlock()
	// only drop the entry if it is still ours
	if ll.owner.held[ll.key].Equal(ll.until) {
		delete(ll.owner.held, ll.key)
	}
	return nil
}
