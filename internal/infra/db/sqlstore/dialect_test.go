package sqlstore

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRebind(t *testing.T) {
	q := `UPDATE t SET a=? WHERE id=? AND s IN (?,?)`
	assert.Equal(t, q, MySQL.rebind(q))
	assert.Equal(t, q, SQLite.rebind(q))
	assert.Equal(t, `UPDATE t SET a=$1 WHERE id=$2 AND s IN ($3,$4)`, Postgres.rebind(q))
}

func TestUpsertClause(t *testing.T) {
	assert.Equal(t, "ON DUPLICATE KEY UPDATE name=VALUES(name), plan=VALUES(plan)", MySQL.upsert("id", "name", "plan"))
	assert.Equal(t, "ON CONFLICT (id) DO UPDATE SET name=EXCLUDED.name, plan=EXCLUDED.plan", Postgres.upsert("id", "name", "plan"))
}

func TestInsertIgnore(t *testing.T) {
	assert.Equal(t, "INSERT IGNORE INTO j (a, b) VALUES (?,?)", MySQL.insertIgnore("j", "a, b", "?,?", "a"))
	assert.Equal(t, "INSERT INTO j (a, b) VALUES (?,?) ON CONFLICT (a) DO NOTHING", SQLite.insertIgnore("j", "a, b", "?,?", "a"))
}

func TestParseDialect(t *testing.T) {
	for in, want := range map[string]Dialect{"mysql": MySQL, "PostgreSQL": Postgres, "sqlite3": SQLite} {
		got, err := ParseDialect(in)
		assert.NoError(t, err)
		assert.Equal(t, want, got)
	}
	_, err := ParseDialect("oracle")
	assert.Error(t, err)
}
