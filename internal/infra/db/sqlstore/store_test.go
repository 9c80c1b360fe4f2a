package sqlstore_test

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/require"

	"github.com/bryanwahyu/auditor/internal/domain/tenants"
	"github.com/bryanwahyu/auditor/internal/infra/db/sqlite"
	"github.com/bryanwahyu/auditor/internal/infra/db/sqlstore"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

func newTestStore(t *testing.T) (*sqlstore.Store, *fakeClock) {
	t.Helper()
	ctx := context.Background()

	db, err := sqlite.Connect(ctx, filepath.Join(t.TempDir(), "auditor.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	log, _ := test.NewNullLogger()
	log.SetLevel(logrus.DebugLevel)
	require.NoError(t, sqlstore.Migrate(db, sqlstore.SQLite, log))

	s := sqlstore.New(db, sqlstore.SQLite, log)
	clock := &fakeClock{t: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	s.UseClock(clock)
	return s, clock
}

func seedTenant(t *testing.T, s *sqlstore.Store, id string, limit *int) *tenants.Tenant {
	t.Helper()
	tn := &tenants.Tenant{ID: id, Name: "Acme", Email: "owner@acme.test", Plan: tenants.PlanStarter, AuditLimit: limit}
	require.NoError(t, sqlstore.NewTenantRepository(s).Save(context.Background(), tn))
	return tn
}

func intPtr(v int) *int { return &v }

func strPtr(v string) *string { return &v }
