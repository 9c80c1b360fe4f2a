package pipeline

import (
	"context"
	"errors"
	"time"

	"github.com/lthibault/jitterbug/v2"
	"github.com/sirupsen/logrus"

	"github.com/bryanwahyu/auditor/internal/application"
	"github.com/bryanwahyu/auditor/internal/domain/audits"
	"github.com/bryanwahyu/auditor/internal/domain/jobs"
	"github.com/bryanwahyu/auditor/internal/metrics"
)

const sweepLockKey = "auditor:sweep"

// Sweeper re-enqueues audits left in pending or processing for too long.
// Enqueue ignores audits that still have a live job.
type Sweeper struct {
	Audits     audits.Repository
	Queue      jobs.Enqueuer
	Locker     jobs.Locker
	Interval   time.Duration
	StuckAfter time.Duration
	Batch      int
	Clock      application.Clock
	Log        logrus.FieldLogger
}

func (s *Sweeper) Run(ctx context.Context) error {
	interval := s.Interval
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	ticker := jitterbug.New(interval, &jitterbug.Norm{Stdev: interval / 20})
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if _, err := s.SweepOnce(ctx); err != nil {
				s.Log.WithError(err).Warn("sweep failed")
			}
		}
	}
}

// SweepOnce runs one pass and returns how many audits were re-enqueued.
// Another holder of the sweep lock makes it a no-op.
func (s *Sweeper) SweepOnce(ctx context.Context) (int, error) {
	if s.Locker != nil {
		ttl := s.Interval
		if ttl <= 0 {
			ttl = time.Minute
		}
		l, err := s.Locker.Obtain(ctx, sweepLockKey, ttl)
		if errors.Is(err, jobs.ErrLockNotObtained) {
			s.Log.Debug("sweep lock held elsewhere")
			return 0, nil
		}
		if err != nil {
			return 0, err
		}
		defer func() {
			if err := l.Release(context.WithoutCancel(ctx)); err != nil {
				s.Log.WithError(err).Warn("release sweep lock")
			}
		}()
	}

	stuckAfter := s.StuckAfter
	if stuckAfter <= 0 {
		stuckAfter = 15 * time.Minute
	}
	now := s.Clock.Now().UTC()
	stuck, err := s.Audits.Stuck(ctx, now.Add(-stuckAfter), s.Batch)
	if err != nil {
		return 0, err
	}

	n := 0
	for _, a := range stuck {
		err := s.Queue.Enqueue(ctx, jobs.Job{
			AuditID:     string(a.ID),
			URL:         a.URL,
			TenantID:    a.TenantID,
			EnqueuedAt:  now,
			AvailableAt: now,
		})
		if err != nil {
			s.Log.WithError(err).WithField("audit_id", a.ID).Warn("re-enqueue stuck audit")
			continue
		}
		n++
	}
	if n > 0 {
		s.Log.WithField("count", n).Info("re-enqueued stuck audits")
		metrics.AddSwept(n)
	}
	return n, nil
}
