// Package riverq runs audit jobs on river, the Postgres job queue. Attempts,
// backoff and redelivery of jobs whose worker died are handled by river.
package riverq

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/riverqueue/river"
	"github.com/riverqueue/river/riverdriver/riverpgxv5"
	"github.com/riverqueue/river/rivermigrate"
	"github.com/sirupsen/logrus"

	"github.com/bryanwahyu/auditor/internal/domain/jobs"
)

const (
	DefaultQueue = "audits"
	JobKind      = "audit_pipeline"
)

// Args is the river payload of one audit job.
type Args struct {
	AuditID  string `json:"audit_id"`
	URL      string `json:"url"`
	TenantID string `json:"tenant_id"`
}

func (Args) Kind() string {
	return JobKind
}

// Options configures a working client.
type Options struct {
	Workers         int
	Policy          jobs.RetryPolicy
	Lease           time.Duration
	ShutdownTimeout time.Duration
}

type Client struct {
	*river.Client[pgx.Tx]
	maxAttempts int
	grace       time.Duration
	log         logrus.FieldLogger
}

// NewInsertOnly builds a client that only enqueues, for API processes.
func NewInsertOnly(pool *pgxpool.Pool, policy jobs.RetryPolicy, log logrus.FieldLogger) (*Client, error) {
	rc, err := river.NewClient(riverpgxv5.New(pool), &river.Config{})
	if err != nil {
		return nil, err
	}
	return &Client{Client: rc, maxAttempts: policy.MaxAttempts, log: log.WithField("component", "river")}, nil
}

// NewClient builds a client that also works the audits queue with runner.
// A job whose worker stops reporting is rescued after the lease.
func NewClient(pool *pgxpool.Pool, runner Runner, opts Options, log logrus.FieldLogger) (*Client, error) {
	if opts.Workers <= 0 {
		opts.Workers = 5
	}
	if opts.Lease <= 0 {
		opts.Lease = 5 * time.Minute
	}
	if opts.ShutdownTimeout <= 0 {
		opts.ShutdownTimeout = 30 * time.Second
	}

	workers := river.NewWorkers()
	river.AddWorker(workers, NewWorker(runner, opts.Policy, opts.Lease))

	rc, err := river.NewClient(riverpgxv5.New(pool), &river.Config{
		Queues: map[string]river.QueueConfig{
			DefaultQueue: {MaxWorkers: opts.Workers},
		},
		Workers:              workers,
		MaxAttempts:          opts.Policy.MaxAttempts,
		JobTimeout:           opts.Lease,
		RescueStuckJobsAfter: opts.Lease,
	})
	if err != nil {
		return nil, err
	}
	return &Client{
		Client:      rc,
		maxAttempts: opts.Policy.MaxAttempts,
		grace:       opts.ShutdownTimeout,
		log:         log.WithField("component", "river"),
	}, nil
}

// Enqueue inserts the audit job. An audit that already has a job is skipped.
func (c *Client) Enqueue(ctx context.Context, j jobs.Job) error {
	res, err := c.Insert(ctx, Args{AuditID: j.AuditID, URL: j.URL, TenantID: j.TenantID}, &river.InsertOpts{
		Queue:       DefaultQueue,
		MaxAttempts: c.maxAttempts,
		UniqueOpts:  river.UniqueOpts{ByArgs: true},
	})
	if err != nil {
		return fmt.Errorf("river insert: %w", err)
	}
	if res.UniqueSkippedAsDuplicate {
		c.log.WithField("audit_id", j.AuditID).Debug("job already queued")
	}
	return nil
}

// Run works jobs until ctx is cancelled, then gives in-flight jobs the
// shutdown timeout before cancelling them.
func (c *Client) Run(ctx context.Context) error {
	if err := c.Start(context.WithoutCancel(ctx)); err != nil {
		return fmt.Errorf("river start: %w", err)
	}
	c.log.Info("river workers started")
	<-ctx.Done()

	sctx, cancel := context.WithTimeout(context.Background(), c.grace)
	defer cancel()
	if err := c.Stop(sctx); err != nil {
		c.log.WithError(err).Warn("graceful stop timed out, cancelling jobs")
		if err := c.StopAndCancel(context.Background()); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
	}
	return nil
}

// Migrate applies river's own schema.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	migrator, err := rivermigrate.New(riverpgxv5.New(pool), nil)
	if err != nil {
		return err
	}
	if _, err := migrator.Migrate(ctx, rivermigrate.DirectionUp, nil); err != nil {
		return fmt.Errorf("river migrations: %w", err)
	}
	return nil
}
