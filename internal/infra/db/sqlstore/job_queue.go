package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/bryanwahyu/auditor/internal/domain/jobs"
)

// JobQueue is the table-backed jobs.Queue. A job is claimed with a
// conditional UPDATE, so concurrent workers never lease the same row.
type JobQueue struct {
	s     *Store
	lease time.Duration
	owner string
	batch int
}

func NewJobQueue(s *Store, lease time.Duration) *JobQueue {
	if lease <= 0 {
		lease = 5 * time.Minute
	}
	return &JobQueue{s: s, lease: lease, owner: uuid.NewString(), batch: 5}
}

// Enqueue ignores a second job for the same audit.
func (q *JobQueue) Enqueue(ctx context.Context, j jobs.Job) error {
	now := q.s.now()
	enqueued := j.EnqueuedAt
	if enqueued.IsZero() {
		enqueued = now
	}
	available := j.AvailableAt
	if available.IsZero() {
		available = enqueued
	}
	stmt := q.s.dialect.insertIgnore("pipeline_jobs",
		"audit_id, tenant_id, url, attempt, status, available_at, leased_by, last_error, enqueued_at, updated_at",
		"?,?,?,?,?,?,?,?,?,?",
		"audit_id")
	_, err := q.s.exec(ctx, stmt,
		j.AuditID, j.TenantID, j.URL, 0, string(jobs.StatusQueued), available.UTC(), "", "",
		enqueued.UTC(), now,
	)
	if err != nil {
		return fmt.Errorf("enqueue %s: %w", j.AuditID, err)
	}
	return nil
}

const eligible = `((status=? AND available_at<=?) OR (status=? AND leased_until<=?))`

func (q *JobQueue) Dequeue(ctx context.Context) (*jobs.Job, error) {
	now := q.s.now()
	rows, err := q.s.query(ctx,
		`SELECT audit_id FROM pipeline_jobs WHERE `+eligible+` ORDER BY available_at ASC LIMIT ?`,
		string(jobs.StatusQueued), now, string(jobs.StatusLeased), now, q.batch)
	if err != nil {
		return nil, err
	}
	var candidates []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return nil, err
		}
		candidates = append(candidates, id)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for _, id := range candidates {
		res, err := q.s.exec(ctx,
			`UPDATE pipeline_jobs SET status=?, attempt=attempt+1, leased_until=?, leased_by=?, updated_at=?
WHERE audit_id=? AND `+eligible,
			string(jobs.StatusLeased), now.Add(q.lease), q.owner, now,
			id, string(jobs.StatusQueued), now, string(jobs.StatusLeased), now)
		if err != nil {
			return nil, err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return nil, err
		}
		if n == 1 {
			return q.get(ctx, id)
		}
		// another worker won this row
	}
	return nil, nil
}

func (q *JobQueue) Ack(ctx context.Context, auditID string) error {
	return q.settle(ctx, auditID, jobs.StatusDone, nil, "")
}

func (q *JobQueue) Retry(ctx context.Context, auditID string, availableAt time.Time, lastErr string) error {
	return q.settle(ctx, auditID, jobs.StatusQueued, &availableAt, lastErr)
}

func (q *JobQueue) Dead(ctx context.Context, auditID string, lastErr string) error {
	return q.settle(ctx, auditID, jobs.StatusDead, nil, lastErr)
}

func (q *JobQueue) settle(ctx context.Context, auditID string, status jobs.Status, availableAt *time.Time, lastErr string) error {
	now := q.s.now()
	var (
		res sql.Result
		err error
	)
	if availableAt != nil {
		res, err = q.s.exec(ctx,
			`UPDATE pipeline_jobs SET status=?, available_at=?, leased_until=NULL, last_error=?, updated_at=? WHERE audit_id=?`,
			string(status), availableAt.UTC(), lastErr, now, auditID)
	} else {
		res, err = q.s.exec(ctx,
			`UPDATE pipeline_jobs SET status=?, leased_until=NULL, last_error=?, updated_at=? WHERE audit_id=?`,
			string(status), lastErr, now, auditID)
	}
	if err != nil {
		return fmt.Errorf("%s job %s: %w", status, auditID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("job %s: %w", auditID, ErrJobNotFound)
	}
	return nil
}

// Get returns the job row for an audit; used by tests and the admin CLI.
func (q *JobQueue) Get(ctx context.Context, auditID string) (*jobs.Job, error) {
	return q.get(ctx, auditID)
}

func (q *JobQueue) get(ctx context.Context, auditID string) (*jobs.Job, error) {
	var (
		j      jobs.Job
		status string
	)
	err := q.s.queryRow(ctx,
		`SELECT audit_id, tenant_id, url, attempt, status, last_error, enqueued_at, available_at
FROM pipeline_jobs WHERE audit_id=?`, auditID).
		Scan(&j.AuditID, &j.TenantID, &j.URL, &j.Attempt, &status, &j.LastError, &j.EnqueuedAt, &j.AvailableAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrJobNotFound
	}
	if err != nil {
		return nil, err
	}
	j.Status = jobs.Status(status)
	j.EnqueuedAt = j.EnqueuedAt.UTC()
	j.AvailableAt = j.AvailableAt.UTC()
	return &j, nil
}
