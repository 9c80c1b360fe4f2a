package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/bryanwahyu/auditor/internal/domain/tenants"
)

type TenantRepository struct {
	s *Store
}

func NewTenantRepository(s *Store) *TenantRepository { return &TenantRepository{s: s} }

func (r *TenantRepository) Get(ctx context.Context, id string) (*tenants.Tenant, error) {
	const q = `
SELECT id, name, email, plan, audit_limit, consumed, brand_name, brand_color, brand_logo_url
FROM tenants WHERE id=?`
	var (
		t                     tenants.Tenant
		plan                  string
		limit                 sql.NullInt64
		brandName, brandColor string
		brandLogo             string
	)
	err := r.s.queryRow(ctx, q, id).Scan(
		&t.ID, &t.Name, &t.Email, &plan, &limit, &t.Consumed, &brandName, &brandColor, &brandLogo,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, tenants.ErrTenantNotFound
	}
	if err != nil {
		return nil, err
	}
	t.Plan = tenants.Plan(plan)
	t.AuditLimit = ptrInt(limit)
	if brandName != "" || brandColor != "" || brandLogo != "" {
		t.Branding = &tenants.Branding{Name: brandName, PrimaryColor: brandColor, LogoURL: brandLogo}
	}
	return &t, nil
}

// Save upserts the tenant profile. The consumed counter is only written on
// first insert; afterwards it moves through IncrementConsumed alone.
func (r *TenantRepository) Save(ctx context.Context, t *tenants.Tenant) error {
	if strings.TrimSpace(t.ID) == "" {
		return fmt.Errorf("tenant id is required")
	}
	plan := t.Plan
	if plan == "" {
		plan = tenants.PlanFree
	}
	var b tenants.Branding
	if t.Branding != nil {
		b = *t.Branding
	}
	now := r.s.now()
	q := `
INSERT INTO tenants
(id, name, email, plan, audit_limit, consumed, brand_name, brand_color, brand_logo_url, created_at, updated_at)
VALUES (?,?,?,?,?,?,?,?,?,?,?)
` + r.s.dialect.upsert("id",
		"name", "email", "plan", "audit_limit", "brand_name", "brand_color", "brand_logo_url", "updated_at")

	_, err := r.s.exec(ctx, q,
		t.ID, t.Name, t.Email, string(plan), nullInt(t.AuditLimit), t.Consumed,
		b.Name, b.PrimaryColor, b.LogoURL, now, now,
	)
	return err
}

func (r *TenantRepository) IncrementConsumed(ctx context.Context, id string) error {
	const q = `UPDATE tenants SET consumed=consumed+1, updated_at=? WHERE id=?`
	res, err := r.s.exec(ctx, q, r.s.now(), id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return tenants.ErrTenantNotFound
	}
	return nil
}
