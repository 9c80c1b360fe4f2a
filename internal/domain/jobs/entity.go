package jobs

import (
	"context"
	"time"
)

// Status of a queued job.
type Status string

const (
	StatusQueued Status = "queued"
	StatusLeased Status = "leased"
	StatusDone   Status = "done"
	StatusDead   Status = "dead"
)

// Job is the queued unit of work wrapping one audit's pipeline execution.
// AuditID doubles as the dedup key.
type Job struct {
	AuditID     string    `json:"auditID"`
	URL         string    `json:"url"`
	TenantID    string    `json:"tenantID"`
	Attempt     int       `json:"attempt"`
	Status      Status    `json:"status,omitempty"`
	LastError   string    `json:"lastError,omitempty"`
	EnqueuedAt  time.Time `json:"enqueuedAt"`
	AvailableAt time.Time `json:"availableAt"`
}

// Enqueuer adds a job. Enqueueing an audit that already has a live job is a no-op.
type Enqueuer interface {
	Enqueue(ctx context.Context, j Job) error
}

// Settler records the result of one delivery.
type Settler interface {
	Ack(ctx context.Context, auditID string) error
	Retry(ctx context.Context, auditID string, availableAt time.Time, lastErr string) error
	Dead(ctx context.Context, auditID string, lastErr string) error
}

// Queue is a durable at-least-once channel between intake and the workers.
//
// Dequeue leases one eligible job, increments its Attempt and hides it until
// the lease expires; an unacknowledged lease is delivered again. It returns
// nil, nil when nothing is ready.
type Queue interface {
	Enqueuer
	Settler
	Dequeue(ctx context.Context) (*Job, error)
}

// Locker hands out short-lived named locks shared across processes.
type Locker interface {
	Obtain(ctx context.Context, key string, ttl time.Duration) (Unlocker, error)
}

// Unlocker releases a lock obtained from a Locker.
type Unlocker interface {
	Release(ctx context.Context) error
}
