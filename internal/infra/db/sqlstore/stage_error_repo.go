package sqlstore

import (
	"context"
	"strings"
	"unicode/utf8"

	domain "github.com/bryanwahyu/auditor/internal/domain/audits"
)

type StageErrorRepository struct {
	s *Store
}

func NewStageErrorRepository(s *Store) *StageErrorRepository { return &StageErrorRepository{s: s} }

func (r *StageErrorRepository) Save(ctx context.Context, e *domain.StageError) error {
	const q = `
INSERT INTO audit_stage_errors
  (audit_id, tenant_id, stage, attempt, message, absorbed, created_at)
VALUES (?,?,?,?,?,?,?)`
	msg := e.Message
	if strings.TrimSpace(msg) == "" {
		msg = "-"
	}
	// keep rows readable when a service echoes a whole page back
	msg = truncate(msg, maxMessageBytes)
	if e.CreatedAt.IsZero() {
		e.CreatedAt = r.s.now()
	}
	_, err := r.s.exec(ctx, q,
		string(e.AuditID), stringOrDash(e.TenantID), stringOrDash(string(e.Stage)),
		e.Attempt, msg, e.Absorbed, e.CreatedAt.UTC(),
	)
	return err
}

const maxMessageBytes = 2000

// truncate cuts s to at most n bytes without splitting a UTF-8 sequence.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}

func (r *StageErrorRepository) ListByAudit(ctx context.Context, tenant string, id domain.AuditID, limit int) ([]*domain.StageError, error) {
	if limit <= 0 {
		limit = 20
	}
	const q = `
SELECT id, audit_id, tenant_id, stage, attempt, message, absorbed, created_at
FROM audit_stage_errors
WHERE tenant_id = ? AND audit_id = ?
ORDER BY created_at DESC, id DESC
LIMIT ?`
	rows, err := r.s.query(ctx, q, tenant, string(id), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*domain.StageError
	for rows.Next() {
		var e domain.StageError
		var auditID, stage string
		if err := rows.Scan(&e.ID, &auditID, &e.TenantID, &stage, &e.Attempt, &e.Message, &e.Absorbed, &e.CreatedAt); err != nil {
			return nil, err
		}
		e.AuditID = domain.AuditID(auditID)
		e.Stage = domain.Stage(stage)
		e.CreatedAt = e.CreatedAt.UTC()
		out = append(out, &e)
	}
	return out, rows.Err()
}
