package pipeline

import (
	"context"
	"sync"
	"time"

	"github.com/lthibault/jitterbug/v2"
	"github.com/sirupsen/logrus"

	"github.com/bryanwahyu/auditor/internal/domain/jobs"
	"github.com/bryanwahyu/auditor/internal/metrics"
)

// JobRunner executes one leased job.
type JobRunner interface {
	Run(ctx context.Context, job *jobs.Job) error
}

// Pool is a fixed set of workers pulling from one queue. Each worker runs a
// job to completion before asking for the next.
type Pool struct {
	Queue           jobs.Queue
	Runner          JobRunner
	Concurrency     int
	PollInterval    time.Duration
	ShutdownTimeout time.Duration
	Log             logrus.FieldLogger
}

// Run blocks until ctx is cancelled. In-flight jobs then get ShutdownTimeout
// to finish before their context is cancelled too.
func (p *Pool) Run(ctx context.Context) error {
	n := p.Concurrency
	if n <= 0 {
		n = 5
	}
	grace := p.ShutdownTimeout
	if grace <= 0 {
		grace = 30 * time.Second
	}

	jobCtx, cancelJobs := context.WithCancel(context.WithoutCancel(ctx))
	defer cancelJobs()

	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			p.work(ctx, jobCtx, worker)
		}(i)
	}
	p.Log.WithField("workers", n).Info("worker pool started")

	<-ctx.Done()
	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		p.Log.Info("worker pool stopped")
	case <-time.After(grace):
		p.Log.WithField("grace", grace).Warn("shutdown timeout, cancelling in-flight jobs")
		cancelJobs()
		<-done
	}
	return nil
}

func (p *Pool) work(ctx, jobCtx context.Context, worker int) {
	log := p.Log.WithField("worker", worker)
	interval := p.PollInterval
	if interval <= 0 {
		interval = time.Second
	}
	ticker := jitterbug.New(interval, &jitterbug.Norm{Stdev: interval / 10})
	defer ticker.Stop()

	for {
		if ctx.Err() != nil {
			return
		}
		// drain without waiting while jobs are available
		if p.next(jobCtx, log) {
			continue
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// next runs one job and reports whether one was available.
func (p *Pool) next(ctx context.Context, log logrus.FieldLogger) bool {
	job, err := p.Queue.Dequeue(ctx)
	if err != nil {
		log.WithError(err).Warn("dequeue failed")
		return false
	}
	if job == nil {
		return false
	}

	metrics.WorkerBusy()
	defer metrics.WorkerIdle()
	if err := p.Runner.Run(ctx, job); err != nil {
		log.WithError(err).WithField("audit_id", job.AuditID).Warn("job attempt failed")
	}
	return true
}
