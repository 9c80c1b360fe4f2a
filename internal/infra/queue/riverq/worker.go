package riverq

import (
	"context"
	"errors"
	"time"

	"github.com/riverqueue/river"

	"github.com/bryanwahyu/auditor/internal/application"
	"github.com/bryanwahyu/auditor/internal/domain/jobs"
)

var (
	errRetry = errors.New("attempt failed")
	errDead  = errors.New("job dead-lettered")
)

// Runner executes one delivery and reports its end on s.
type Runner interface {
	RunWith(ctx context.Context, job *jobs.Job, s jobs.Settler) error
}

type Worker struct {
	river.WorkerDefaults[Args]
	runner  Runner
	policy  jobs.RetryPolicy
	timeout time.Duration
	clock   application.Clock
}

func NewWorker(runner Runner, policy jobs.RetryPolicy, timeout time.Duration) *Worker {
	return &Worker{runner: runner, policy: policy, timeout: timeout, clock: application.SystemClock{}}
}

func (w *Worker) Timeout(*river.Job[Args]) time.Duration {
	return w.timeout
}

// NextRetry follows the retry policy: InitialBackoff * 2^(attempt-1).
func (w *Worker) NextRetry(job *river.Job[Args]) time.Time {
	return w.clock.Now().Add(w.policy.Backoff(job.Attempt))
}

func (w *Worker) Work(ctx context.Context, job *river.Job[Args]) error {
	var s settlement
	err := w.runner.RunWith(ctx, &jobs.Job{
		AuditID:     job.Args.AuditID,
		URL:         job.Args.URL,
		TenantID:    job.Args.TenantID,
		Attempt:     job.Attempt,
		EnqueuedAt:  job.CreatedAt,
		AvailableAt: job.ScheduledAt,
	}, &s)
	return s.result(err)
}

// settlement records what the runner decided for the delivery. River then
// applies it: completed, retryable (NextRetry) or cancelled.
type settlement struct {
	decision jobs.Status
	reason   string
}

func (s *settlement) Ack(context.Context, string) error {
	s.decision = jobs.StatusDone
	return nil
}

func (s *settlement) Retry(_ context.Context, _ string, _ time.Time, lastErr string) error {
	s.decision, s.reason = jobs.StatusQueued, lastErr
	return nil
}

func (s *settlement) Dead(_ context.Context, _ string, lastErr string) error {
	s.decision, s.reason = jobs.StatusDead, lastErr
	return nil
}

func (s *settlement) result(runErr error) error {
	switch s.decision {
	case jobs.StatusDone:
		return nil
	case jobs.StatusQueued:
		return errors.Join(errRetry, errors.New(s.reason))
	case jobs.StatusDead:
		return river.JobCancel(errors.Join(errDead, errors.New(s.reason)))
	}
	// unsettled, e.g. shutdown mid-job: river retries it
	return runErr
}
