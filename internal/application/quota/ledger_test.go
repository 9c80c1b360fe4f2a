package quota

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bryanwahyu/auditor/internal/domain/tenants"
)

type memTenants struct {
	rows map[string]*tenants.Tenant
}

func (m *memTenants) Get(_ context.Context, id string) (*tenants.Tenant, error) {
	t, ok := m.rows[id]
	if !ok {
		return nil, tenants.ErrTenantNotFound
	}
	cp := *t
	return &cp, nil
}

func (m *memTenants) Save(_ context.Context, t *tenants.Tenant) error {
	cp := *t
	m.rows[t.ID] = &cp
	return nil
}

func (m *memTenants) IncrementConsumed(_ context.Context, id string) error {
	t, ok := m.rows[id]
	if !ok {
		return tenants.ErrTenantNotFound
	}
	t.Consumed++
	return nil
}

func limit(n int) *int { return &n }

func TestTryAdmit(t *testing.T) {
	repo := &memTenants{rows: map[string]*tenants.Tenant{
		"under":     {ID: "under", AuditLimit: limit(10), Consumed: 9},
		"at":        {ID: "at", AuditLimit: limit(10), Consumed: 10},
		"zero":      {ID: "zero", AuditLimit: limit(0)},
		"negative":  {ID: "negative", AuditLimit: limit(-1)},
		"unbounded": {ID: "unbounded", Consumed: 1000},
		"free":      {ID: "free", Plan: tenants.PlanFree, Consumed: 3},
		"agency":    {ID: "agency", Plan: tenants.PlanAgency, Consumed: 5000},
	}}
	l := NewLedger(repo)
	ctx := context.Background()

	cases := []struct {
		tenant    string
		admitted  bool
		err       error
		remaining *int
	}{
		{"under", true, nil, limit(1)},
		{"at", false, tenants.ErrQuotaExceeded, limit(0)},
		{"zero", false, tenants.ErrQuotaExceeded, limit(0)},
		{"negative", false, tenants.ErrQuotaExceeded, limit(0)},
		{"unbounded", true, nil, nil},
		{"free", false, tenants.ErrQuotaExceeded, limit(0)},
		{"agency", true, nil, nil},
	}
	for _, tc := range cases {
		t.Run(tc.tenant, func(t *testing.T) {
			adm, err := l.TryAdmit(ctx, tc.tenant)
			if tc.err != nil {
				assert.ErrorIs(t, err, tc.err)
			} else {
				require.NoError(t, err)
			}
			assert.Equal(t, tc.admitted, adm.Admitted)
			assert.Equal(t, tc.remaining, adm.Remaining)
		})
	}
}

func TestTryAdmitHasNoSideEffects(t *testing.T) {
	repo := &memTenants{rows: map[string]*tenants.Tenant{"t1": {ID: "t1", AuditLimit: limit(2)}}}
	l := NewLedger(repo)
	for i := 0; i < 5; i++ {
		_, err := l.TryAdmit(context.Background(), "t1")
		require.NoError(t, err)
	}
	assert.Equal(t, 0, repo.rows["t1"].Consumed)
}

func TestTryAdmitUnknownTenant(t *testing.T) {
	l := NewLedger(&memTenants{rows: map[string]*tenants.Tenant{}})
	adm, err := l.TryAdmit(context.Background(), "ghost")
	assert.ErrorIs(t, err, tenants.ErrTenantNotFound)
	assert.False(t, adm.Admitted)
}

func TestConsumeAndUsage(t *testing.T) {
	repo := &memTenants{rows: map[string]*tenants.Tenant{"t1": {ID: "t1", Plan: tenants.PlanStarter}}}
	l := NewLedger(repo)
	ctx := context.Background()

	require.NoError(t, l.Consume(ctx, "t1"))
	require.NoError(t, l.Consume(ctx, "t1"))

	u, err := l.Usage(ctx, "t1")
	require.NoError(t, err)
	assert.Equal(t, 2, u.Consumed)
	assert.Equal(t, limit(50), u.Limit)
	assert.Equal(t, limit(48), u.Remaining)

	assert.ErrorIs(t, l.Consume(ctx, "ghost"), tenants.ErrTenantNotFound)
}
