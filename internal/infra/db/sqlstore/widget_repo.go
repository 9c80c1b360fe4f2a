package sqlstore

import (
	"context"
	"database/sql"
	"errors"

	"github.com/bryanwahyu/auditor/internal/domain/widgets"
)

type WidgetRepository struct {
	s *Store
}

func NewWidgetRepository(s *Store) *WidgetRepository { return &WidgetRepository{s: s} }

func (r *WidgetRepository) Get(ctx context.Context, id string) (*widgets.Widget, error) {
	const q = `
SELECT id, tenant_id, require_email, require_name, webhook_url, webhook_secret, active
FROM widgets WHERE id=?`
	var w widgets.Widget
	err := r.s.queryRow(ctx, q, id).Scan(
		&w.ID, &w.TenantID, &w.RequireEmail, &w.RequireName, &w.WebhookURL, &w.WebhookSecret, &w.Active,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, widgets.ErrWidgetNotFound
	}
	if err != nil {
		return nil, err
	}
	return &w, nil
}

func (r *WidgetRepository) Save(ctx context.Context, w *widgets.Widget) error {
	now := r.s.now()
	q := `
INSERT INTO widgets
(id, tenant_id, require_email, require_name, webhook_url, webhook_secret, active, created_at, updated_at)
VALUES (?,?,?,?,?,?,?,?,?)
` + r.s.dialect.upsert("id",
		"tenant_id", "require_email", "require_name", "webhook_url", "webhook_secret", "active", "updated_at")
	_, err := r.s.exec(ctx, q,
		w.ID, w.TenantID, w.RequireEmail, w.RequireName, w.WebhookURL, w.WebhookSecret, w.Active, now, now,
	)
	return err
}
