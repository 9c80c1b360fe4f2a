// Package quota gates audit admission against the tenant's plan allowance.
package quota

import (
	"context"

	"github.com/bryanwahyu/auditor/internal/domain/tenants"
)

// Admission is the verdict of TryAdmit.
type Admission struct {
	Admitted  bool `json:"admitted"`
	Remaining *int `json:"remaining"`
}

// Usage is the read model behind GET /quota.
type Usage struct {
	TenantID  string       `json:"tenantId"`
	Plan      tenants.Plan `json:"plan"`
	Limit     *int         `json:"limit"`
	Consumed  int          `json:"consumed"`
	Remaining *int         `json:"remaining"`
}

type Ledger struct {
	tenants tenants.Repository
}

func NewLedger(repo tenants.Repository) *Ledger {
	return &Ledger{tenants: repo}
}

// TryAdmit checks whether one more audit fits the tenant's limit. It has no
// side effects; consumption is recorded by Consume at completion.
func (l *Ledger) TryAdmit(ctx context.Context, tenantID string) (Admission, error) {
	t, err := l.load(ctx, tenantID)
	if err != nil {
		return Admission{}, err
	}
	if !t.CanAdmit() {
		return Admission{Admitted: false, Remaining: t.Remaining()}, tenants.ErrQuotaExceeded
	}
	return Admission{Admitted: true, Remaining: t.Remaining()}, nil
}

// Consume adds one to the tenant's consumed counter. Callers run it inside
// the completion transaction so the increment and the transition commit together.
func (l *Ledger) Consume(ctx context.Context, tenantID string) error {
	return l.tenants.IncrementConsumed(ctx, tenantID)
}

func (l *Ledger) Usage(ctx context.Context, tenantID string) (Usage, error) {
	t, err := l.load(ctx, tenantID)
	if err != nil {
		return Usage{}, err
	}
	return Usage{
		TenantID:  t.ID,
		Plan:      t.Plan,
		Limit:     t.AuditLimit,
		Consumed:  t.Consumed,
		Remaining: t.Remaining(),
	}, nil
}

// load resolves the effective limit: an explicit limit wins, otherwise the
// plan default applies. No limit and no plan means unbounded.
func (l *Ledger) load(ctx context.Context, tenantID string) (*tenants.Tenant, error) {
	t, err := l.tenants.Get(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	if t == nil {
		return nil, tenants.ErrTenantNotFound
	}
	if t.AuditLimit == nil && t.Plan != "" {
		t.AuditLimit = tenants.DefaultLimit(t.Plan)
	}
	return t, nil
}
