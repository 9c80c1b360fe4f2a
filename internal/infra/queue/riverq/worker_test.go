package riverq

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/riverqueue/river"
	"github.com/riverqueue/river/rivertype"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bryanwahyu/auditor/internal/domain/jobs"
)

type runFunc func(ctx context.Context, job *jobs.Job, s jobs.Settler) error

func (f runFunc) RunWith(ctx context.Context, job *jobs.Job, s jobs.Settler) error {
	return f(ctx, job, s)
}

type fixedClock struct{ t time.Time }

func (c fixedClock) Now() time.Time { return c.t }

func riverJob(attempt int) *river.Job[Args] {
	return &river.Job[Args]{
		JobRow: &rivertype.JobRow{ID: 7, Attempt: attempt},
		Args:   Args{AuditID: "a1", URL: "https://example.com", TenantID: "acme"},
	}
}

func newWorker(f runFunc) *Worker {
	w := NewWorker(f, jobs.DefaultRetryPolicy(), time.Minute)
	w.clock = fixedClock{time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	return w
}

func TestWorkAckCompletes(t *testing.T) {
	var got *jobs.Job
	w := newWorker(func(ctx context.Context, job *jobs.Job, s jobs.Settler) error {
		got = job
		return s.Ack(ctx, job.AuditID)
	})
	require.NoError(t, w.Work(context.Background(), riverJob(2)))
	assert.Equal(t, "a1", got.AuditID)
	assert.Equal(t, "acme", got.TenantID)
	assert.Equal(t, 2, got.Attempt)
}

func TestWorkRetryReturnsError(t *testing.T) {
	w := newWorker(func(ctx context.Context, job *jobs.Job, s jobs.Settler) error {
		cause := errors.New("stage analyze: timeout")
		_ = s.Retry(ctx, job.AuditID, time.Now(), cause.Error())
		return cause
	})
	err := w.Work(context.Background(), riverJob(1))
	assert.ErrorIs(t, err, errRetry)
	assert.NotErrorIs(t, err, errDead)
	assert.Contains(t, err.Error(), "timeout")
}

func TestWorkDeadCancels(t *testing.T) {
	w := newWorker(func(ctx context.Context, job *jobs.Job, s jobs.Settler) error {
		_ = s.Dead(ctx, job.AuditID, "retries exhausted")
		return errors.New("stage render: down")
	})
	err := w.Work(context.Background(), riverJob(3))
	assert.ErrorIs(t, err, errDead)
	assert.Contains(t, err.Error(), "retries exhausted")
}

func TestWorkUnsettledPassesErrorThrough(t *testing.T) {
	cause := context.Canceled
	w := newWorker(func(context.Context, *jobs.Job, jobs.Settler) error { return cause })
	assert.Equal(t, cause, w.Work(context.Background(), riverJob(1)))
}

func TestNextRetryFollowsPolicy(t *testing.T) {
	w := newWorker(nil)
	now := w.clock.Now()
	assert.Equal(t, now.Add(5*time.Second), w.NextRetry(riverJob(1)))
	assert.Equal(t, now.Add(10*time.Second), w.NextRetry(riverJob(2)))
	assert.Equal(t, time.Minute, w.Timeout(riverJob(1)))
}

func TestArgsKind(t *testing.T) {
	assert.Equal(t, "audit_pipeline", Args{}.Kind())
}
