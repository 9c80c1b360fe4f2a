package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)

	assert.Equal(t, "sqlite", cfg.Database.Driver)
	assert.Equal(t, "sql", cfg.Queue.Backend)
	assert.Equal(t, 3, cfg.Worker.MaxAttempts)
	assert.Equal(t, 5*time.Second, cfg.Worker.InitialBackoff)
	assert.Equal(t, 5, cfg.Worker.Concurrency)
	assert.False(t, cfg.AIEnabled())
	assert.False(t, cfg.SMTPEnabled())
	assert.False(t, cfg.StorageEnabled())
}

func TestLoadFileThenEnv(t *testing.T) {
	path := writeFile(t, `
server:
  port: 9090
database:
  driver: postgres
  host: db
  port: 5432
  user: auditor
  password: secret
  name: audits
worker:
  concurrency: 8
  initialBackoff: 2s
ai:
  apiKey: sk-test
`)
	t.Setenv("AUDITOR_SERVER_PORT", "7070")
	t.Setenv("AUDITOR_AUTH_API_KEYS", "k1:acme,k2:beta")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 7070, cfg.Server.Port)
	assert.Equal(t, "postgres", cfg.Database.Driver)
	assert.Equal(t, 8, cfg.Worker.Concurrency)
	assert.Equal(t, 2*time.Second, cfg.Worker.InitialBackoff)
	assert.Equal(t, 3, cfg.Worker.MaxAttempts)
	assert.True(t, cfg.AIEnabled())
	assert.Equal(t, map[string]string{"k1": "acme", "k2": "beta"}, cfg.Auth.APIKeys)
	assert.Equal(t, "postgres://auditor:secret@db:5432/audits?sslmode=disable", cfg.PostgresDSN())
}

func TestLoadRejectsInvalid(t *testing.T) {
	cases := map[string]string{
		"unknown driver":     "database:\n  driver: oracle\n",
		"redis without addr": "queue:\n  backend: redis\n",
		"river on sqlite":    "queue:\n  backend: river\n",
		"remote render":      "render:\n  mode: remote\n",
		"zero workers":       "worker:\n  concurrency: 0\n",
		"broken yaml":        "server: [",
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Load(writeFile(t, body))
			assert.Error(t, err)
		})
	}
}

func TestLoadRiverOnPostgres(t *testing.T) {
	cfg, err := Load(writeFile(t, "database:\n  driver: postgres\nqueue:\n  backend: river\n"))
	require.NoError(t, err)
	assert.Equal(t, "river", cfg.Queue.Backend)
}

func TestMySQLDSN(t *testing.T) {
	cfg := Default()
	cfg.Database.User = "root"
	cfg.Database.Password = "pw"
	cfg.Database.Host = "localhost"
	cfg.Database.Port = 3306
	cfg.Database.Name = "auditor"
	assert.Equal(t, "root:pw@tcp(localhost:3306)/auditor?parseTime=true&charset=utf8mb4&loc=UTC", cfg.MySQLDSN())
}

func TestNewLogger(t *testing.T) {
	cfg := Default()
	cfg.Log.Level = "debug"
	cfg.Log.Format = "text"
	l := NewLogger(cfg)
	assert.Equal(t, logrus.DebugLevel, l.GetLevel())
	assert.IsType(t, &logrus.TextFormatter{}, l.Formatter)

	cfg.Log.Level = "loud"
	assert.Equal(t, logrus.InfoLevel, NewLogger(cfg).GetLevel())
}
