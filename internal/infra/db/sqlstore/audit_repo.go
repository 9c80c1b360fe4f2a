package sqlstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	domain "github.com/bryanwahyu/auditor/internal/domain/audits"
)

type AuditRepository struct {
	s *Store
}

func NewAuditRepository(s *Store) *AuditRepository {
	return &AuditRepository{s: s}
}

const auditColumns = `id, tenant_id, client_id, widget_id, url, lead_name, lead_email, notify_email,
       status, score, analysis, ai_summary, top_fixes, artifact_url, attempts,
       created_at, updated_at, completed_at`

// Create inserts a new pending audit.
func (r *AuditRepository) Create(ctx context.Context, a *domain.Audit) error {
	const q = `
INSERT INTO audits
(id, tenant_id, client_id, widget_id, url, lead_name, lead_email, notify_email,
 status, attempts, created_at, updated_at)
VALUES (?,?,?,?,?,?,?,?,?,?,?,?)`

	now := r.s.now()
	if a.CreatedAt.IsZero() {
		a.CreatedAt = now
	}
	a.UpdatedAt = a.CreatedAt
	if a.Status == "" {
		a.Status = domain.StatusPending
	}
	var leadName, leadEmail string
	if a.Lead != nil {
		leadName, leadEmail = a.Lead.Name, a.Lead.Email
	}
	_, err := r.s.exec(ctx, q,
		string(a.ID), a.TenantID, a.ClientID, a.WidgetID, a.URL, leadName, leadEmail, a.NotifyEmail,
		string(a.Status), a.Attempts, a.CreatedAt.UTC(), a.UpdatedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("insert audit: %w", err)
	}
	return nil
}

// Get by ID + Tenant
func (r *AuditRepository) Get(ctx context.Context, tenant string, id domain.AuditID) (*domain.Audit, error) {
	q := `SELECT ` + auditColumns + ` FROM audits WHERE tenant_id=? AND id=?`
	a, err := scanAudit(r.s.queryRow(ctx, q, tenant, string(id)))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrAuditNotFound
	}
	return a, err
}

// Find by ID only; used by workers that already trust the job payload.
func (r *AuditRepository) Find(ctx context.Context, id domain.AuditID) (*domain.Audit, error) {
	q := `SELECT ` + auditColumns + ` FROM audits WHERE id=?`
	a, err := scanAudit(r.s.queryRow(ctx, q, string(id)))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrAuditNotFound
	}
	return a, err
}

// Latest audits per tenant
func (r *AuditRepository) Latest(ctx context.Context, tenant string, limit int) ([]*domain.Audit, error) {
	if limit <= 0 {
		limit = 20
	}
	q := `SELECT ` + auditColumns + ` FROM audits WHERE tenant_id=? ORDER BY created_at DESC, id DESC LIMIT ?`
	rows, err := r.s.query(ctx, q, tenant, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*domain.Audit
	for rows.Next() {
		a, err := scanAudit(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (r *AuditRepository) MarkProcessing(ctx context.Context, id domain.AuditID) (bool, error) {
	const q = `
UPDATE audits SET status=?, attempts=attempts+1, updated_at=?
WHERE id=? AND status IN (?,?)`
	res, err := r.s.exec(ctx, q,
		string(domain.StatusProcessing), r.s.now(), string(id),
		string(domain.StatusPending), string(domain.StatusProcessing),
	)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	if n == 1 {
		return true, nil
	}
	return false, r.mustExist(ctx, id)
}

// Complete is safe to call more than once for the same audit. The first call
// flips processing to complete; later calls rewrite the same fields on the
// already complete row and report false.
func (r *AuditRepository) Complete(ctx context.Context, c domain.Completion) (bool, error) {
	analysis, err := jsonText(c.Analysis)
	if err != nil {
		return false, fmt.Errorf("encode analysis: %w", err)
	}
	var fixes sql.NullString
	if c.TopFixes != nil {
		if fixes, err = jsonText(c.TopFixes); err != nil {
			return false, fmt.Errorf("encode fixes: %w", err)
		}
	}
	completedAt := c.CompletedAt
	if completedAt.IsZero() {
		completedAt = r.s.now()
	}

	const q = `
UPDATE audits SET status=?, score=?, analysis=?, ai_summary=?, top_fixes=?,
       artifact_url=?, completed_at=?, updated_at=?
WHERE id=? AND status=?`
	args := func(from domain.Status) []any {
		return []any{
			string(domain.StatusComplete), c.Score, analysis, nullString(c.AISummary), fixes,
			c.ArtifactURL, completedAt.UTC(), r.s.now(),
			string(c.AuditID), string(from),
		}
	}

	first := false
	err = r.s.WithinTx(ctx, func(ctx context.Context) error {
		res, err := r.s.exec(ctx, q, args(domain.StatusProcessing)...)
		if err != nil {
			return err
		}
		if n, err := res.RowsAffected(); err != nil {
			return err
		} else if n == 1 {
			first = true
			return nil
		}

		status, err := r.status(ctx, c.AuditID)
		if err != nil {
			return err
		}
		if status != domain.StatusComplete {
			r.s.log.WithField("audit_id", c.AuditID).WithField("status", status).
				Warn("completion ignored for audit outside processing")
			return nil
		}
		_, err = r.s.exec(ctx, q, args(domain.StatusComplete)...)
		return err
	})
	return first, err
}

// MarkFailed never touches a complete audit, so a late dead-letter cannot
// undo a successful run.
func (r *AuditRepository) MarkFailed(ctx context.Context, id domain.AuditID, at time.Time) (bool, error) {
	const q = `
UPDATE audits SET status=?, artifact_url=NULL, completed_at=?, updated_at=?
WHERE id=? AND status IN (?,?)`
	if at.IsZero() {
		at = r.s.now()
	}
	res, err := r.s.exec(ctx, q,
		string(domain.StatusFailed), at.UTC(), r.s.now(), string(id),
		string(domain.StatusPending), string(domain.StatusProcessing),
	)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	if n == 1 {
		return true, nil
	}
	return false, r.mustExist(ctx, id)
}

func (r *AuditRepository) Stuck(ctx context.Context, before time.Time, limit int) ([]*domain.Audit, error) {
	if limit <= 0 {
		limit = 100
	}
	q := `SELECT ` + auditColumns + ` FROM audits
WHERE status IN (?,?) AND updated_at < ?
ORDER BY updated_at ASC LIMIT ?`
	rows, err := r.s.query(ctx, q,
		string(domain.StatusPending), string(domain.StatusProcessing), before.UTC(), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*domain.Audit
	for rows.Next() {
		a, err := scanAudit(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// CountByStatus returns how many audits sit in each status.
func (r *AuditRepository) CountByStatus(ctx context.Context) (map[domain.Status]int, error) {
	rows, err := r.s.query(ctx, `SELECT status, COUNT(*) FROM audits GROUP BY status`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := map[domain.Status]int{}
	for rows.Next() {
		var (
			status string
			n      int
		)
		if err := rows.Scan(&status, &n); err != nil {
			return nil, err
		}
		out[domain.Status(status)] = n
	}
	return out, rows.Err()
}

func (r *AuditRepository) status(ctx context.Context, id domain.AuditID) (domain.Status, error) {
	var status string
	err := r.s.queryRow(ctx, `SELECT status FROM audits WHERE id=?`, string(id)).Scan(&status)
	if errors.Is(err, sql.ErrNoRows) {
		return "", domain.ErrAuditNotFound
	}
	return domain.Status(status), err
}

func (r *AuditRepository) mustExist(ctx context.Context, id domain.AuditID) error {
	_, err := r.status(ctx, id)
	return err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAudit(row rowScanner) (*domain.Audit, error) {
	var (
		a                   domain.Audit
		id, status          string
		leadName, leadEmail string
		score               sql.NullInt64
		analysis, summary   sql.NullString
		fixes, artifactURL  sql.NullString
		completedAt         sql.NullTime
	)
	if err := row.Scan(
		&id, &a.TenantID, &a.ClientID, &a.WidgetID, &a.URL, &leadName, &leadEmail, &a.NotifyEmail,
		&status, &score, &analysis, &summary, &fixes, &artifactURL, &a.Attempts,
		&a.CreatedAt, &a.UpdatedAt, &completedAt,
	); err != nil {
		return nil, err
	}
	a.ID = domain.AuditID(id)
	a.Status = domain.Status(status)
	a.Score = ptrInt(score)
	a.AISummary = ptrString(summary)
	a.ArtifactURL = ptrString(artifactURL)
	a.CompletedAt = ptrTime(completedAt)
	a.CreatedAt = a.CreatedAt.UTC()
	a.UpdatedAt = a.UpdatedAt.UTC()
	if leadName != "" || leadEmail != "" {
		a.Lead = &domain.Lead{Name: leadName, Email: leadEmail}
	}
	if analysis.Valid && analysis.String != "" {
		var res domain.Analysis
		if err := json.Unmarshal([]byte(analysis.String), &res); err != nil {
			return nil, fmt.Errorf("decode analysis of %s: %w", id, err)
		}
		a.Analysis = &res
	}
	if fixes.Valid && fixes.String != "" {
		if err := json.Unmarshal([]byte(fixes.String), &a.TopFixes); err != nil {
			return nil, fmt.Errorf("decode fixes of %s: %w", id, err)
		}
	}
	return &a, nil
}
