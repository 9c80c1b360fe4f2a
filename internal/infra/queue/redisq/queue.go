// Package redisq is a jobs.Queue on Redis.
//
// Layout under the configured prefix:
//
//	<prefix>:jobs     HASH   auditID -> job JSON
//	<prefix>:ready    LIST   auditIDs ready to lease
//	<prefix>:delayed  ZSET   auditIDs scored by availableAt (unix ms)
//	<prefix>:leased   ZSET   auditIDs scored by lease expiry (unix ms)
//	<prefix>:dead     LIST   dead job JSON
package redisq

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/bryanwahyu/auditor/internal/application"
	"github.com/bryanwahyu/auditor/internal/domain/jobs"
)

var ErrJobNotFound = errors.New("job not found")

var enqueueScript = redis.NewScript(`
if redis.call('HSETNX', KEYS[1], ARGV[1], ARGV[2]) == 1 then
  redis.call('ZADD', KEYS[2], ARGV[3], ARGV[1])
  return 1
end
return 0
`)

// claimScript promotes due delayed jobs and expired leases, then leases the
// head of the ready list and bumps its attempt.
var claimScript = redis.NewScript(`
local now = tonumber(ARGV[1])
local due = redis.call('ZRANGEBYSCORE', KEYS[2], '-inf', now, 'LIMIT', 0, 100)
for _, id in ipairs(due) do
  redis.call('ZREM', KEYS[2], id)
  redis.call('RPUSH', KEYS[1], id)
end
local expired = redis.call('ZRANGEBYSCORE', KEYS[3], '-inf', now, 'LIMIT', 0, 100)
for _, id in ipairs(expired) do
  redis.call('ZREM', KEYS[3], id)
  redis.call('RPUSH', KEYS[1], id)
end
while true do
  local id = redis.call('LPOP', KEYS[1])
  if not id then
    return false
  end
  local raw = redis.call('HGET', KEYS[4], id)
  if raw then
    local job = cjson.decode(raw)
    job['attempt'] = (tonumber(job['attempt']) or 0) + 1
    job['status'] = 'leased'
    raw = cjson.encode(job)
    redis.call('HSET', KEYS[4], id, raw)
    redis.call('ZADD', KEYS[3], now + tonumber(ARGV[2]), id)
    return raw
  end
end
`)

type Queue struct {
	rdb    redis.UniversalClient
	prefix string
	lease  time.Duration
	clock  application.Clock
}

func New(rdb redis.UniversalClient, prefix string, lease time.Duration) *Queue {
	if prefix == "" {
		prefix = "auditor:jobs"
	}
	if lease <= 0 {
		lease = 5 * time.Minute
	}
	return &Queue{rdb: rdb, prefix: prefix, lease: lease, clock: application.SystemClock{}}
}

// UseClock swaps the clock used for delays and leases.
func (q *Queue) UseClock(c application.Clock) { q.clock = c }

func (q *Queue) key(name string) string { return q.prefix + ":" + name }

func (q *Queue) Enqueue(ctx context.Context, j jobs.Job) error {
	now := q.clock.Now().UTC()
	if j.EnqueuedAt.IsZero() {
		j.EnqueuedAt = now
	}
	if j.AvailableAt.IsZero() {
		j.AvailableAt = j.EnqueuedAt
	}
	j.Attempt = 0
	j.Status = jobs.StatusQueued
	raw, err := json.Marshal(j)
	if err != nil {
		return err
	}
	err = enqueueScript.Run(ctx, q.rdb,
		[]string{q.key("jobs"), q.key("delayed")},
		j.AuditID, string(raw), j.AvailableAt.UnixMilli(),
	).Err()
	if err != nil {
		return fmt.Errorf("enqueue %s: %w", j.AuditID, err)
	}
	return nil
}

func (q *Queue) Dequeue(ctx context.Context) (*jobs.Job, error) {
	raw, err := claimScript.Run(ctx, q.rdb,
		[]string{q.key("ready"), q.key("delayed"), q.key("leased"), q.key("jobs")},
		q.clock.Now().UnixMilli(), q.lease.Milliseconds(),
	).Text()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("dequeue: %w", err)
	}
	var j jobs.Job
	if err := json.Unmarshal([]byte(raw), &j); err != nil {
		return nil, fmt.Errorf("decode job: %w", err)
	}
	return &j, nil
}

func (q *Queue) Ack(ctx context.Context, auditID string) error {
	pipe := q.rdb.TxPipeline()
	pipe.ZRem(ctx, q.key("leased"), auditID)
	del := pipe.HDel(ctx, q.key("jobs"), auditID)
	if _, err := pipe.Exec(ctx); err != nil {
		return err
	}
	if del.Val() == 0 {
		return fmt.Errorf("job %s: %w", auditID, ErrJobNotFound)
	}
	return nil
}

func (q *Queue) Retry(ctx context.Context, auditID string, availableAt time.Time, lastErr string) error {
	j, err := q.Get(ctx, auditID)
	if err != nil {
		return err
	}
	j.Status = jobs.StatusQueued
	j.AvailableAt = availableAt.UTC()
	j.LastError = lastErr
	raw, err := json.Marshal(j)
	if err != nil {
		return err
	}
	pipe := q.rdb.TxPipeline()
	pipe.HSet(ctx, q.key("jobs"), auditID, string(raw))
	pipe.ZRem(ctx, q.key("leased"), auditID)
	pipe.ZAdd(ctx, q.key("delayed"), redis.Z{Score: float64(availableAt.UnixMilli()), Member: auditID})
	_, err = pipe.Exec(ctx)
	return err
}

func (q *Queue) Dead(ctx context.Context, auditID string, lastErr string) error {
	j, err := q.Get(ctx, auditID)
	if err != nil {
		return err
	}
	j.Status = jobs.StatusDead
	j.LastError = lastErr
	raw, err := json.Marshal(j)
	if err != nil {
		return err
	}
	pipe := q.rdb.TxPipeline()
	pipe.ZRem(ctx, q.key("leased"), auditID)
	pipe.HDel(ctx, q.key("jobs"), auditID)
	pipe.RPush(ctx, q.key("dead"), string(raw))
	_, err = pipe.Exec(ctx)
	return err
}

// Get returns the stored job for an audit that is still queued or leased.
func (q *Queue) Get(ctx context.Context, auditID string) (*jobs.Job, error) {
	raw, err := q.rdb.HGet(ctx, q.key("jobs"), auditID).Result()
	if errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("job %s: %w", auditID, ErrJobNotFound)
	}
	if err != nil {
		return nil, err
	}
	var j jobs.Job
	if err := json.Unmarshal([]byte(raw), &j); err != nil {
		return nil, fmt.Errorf("decode job: %w", err)
	}
	return &j, nil
}

// DeadLetters returns up to limit dead jobs, oldest first.
func (q *Queue) DeadLetters(ctx context.Context, limit int64) ([]jobs.Job, error) {
	if limit <= 0 {
		limit = 100
	}
	raws, err := q.rdb.LRange(ctx, q.key("dead"), 0, limit-1).Result()
	if err != nil {
		return nil, err
	}
	out := make([]jobs.Job, 0, len(raws))
	for _, raw := range raws {
		var j jobs.Job
		if err := json.Unmarshal([]byte(raw), &j); err != nil {
			return nil, fmt.Errorf("decode dead job: %w", err)
		}
		out = append(out, j)
	}
	return out, nil
}

// Ping is used by the health endpoint.
func (q *Queue) Ping(ctx context.Context) error {
	return q.rdb.Ping(ctx).Err()
}
