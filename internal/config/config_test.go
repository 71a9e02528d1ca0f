package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warrenhq/warren/internal/backend"
	"github.com/warrenhq/warren/internal/warrenerr"
)

func writeConfig(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "warren.yaml")
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o600))
	return path
}

const validConfig = `
listen: ":9000"
backend:
  driver: sqlite3
  dsn: /var/lib/warren/warren.db
metrics:
  enabled: true
alarm_poll_interval: 250ms
namespaces:
  rooms:
    backend_url: http://node-1:9000
    request_timeout: 5s
  sessions:
    backend_url: http://node-2:9000
`

func TestLoad(t *testing.T) {
	cfg, err := Load(writeConfig(t, validConfig))
	require.NoError(t, err)

	assert.Equal(t, ":9000", cfg.Listen)
	assert.Equal(t, backend.DriverSQLite, cfg.Backend.Driver)
	assert.Equal(t, "/var/lib/warren/warren.db", cfg.Backend.DSN)
	assert.True(t, cfg.Metrics.Enabled)
	assert.Equal(t, 250*time.Millisecond, cfg.AlarmPoll)

	require.Len(t, cfg.Namespaces, 2)
	assert.Equal(t, 5*time.Second, cfg.Namespaces["rooms"].RequestTimeout)
	assert.Equal(t, "http://node-2:9000", cfg.Namespaces["sessions"].BackendURL)
	// request_timeout omitted: defaulted.
	assert.Equal(t, 30*time.Second, cfg.Namespaces["sessions"].RequestTimeout)
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, `
backend:
  dsn: warren.db
`))
	require.NoError(t, err)

	assert.Equal(t, ":8474", cfg.Listen)
	assert.Equal(t, backend.DriverSQLite, cfg.Backend.Driver)
	assert.False(t, cfg.Metrics.Enabled)
	assert.Equal(t, time.Second, cfg.AlarmPoll)
	assert.Empty(t, cfg.Namespaces)
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("WARREN_LISTEN", ":7777")
	t.Setenv("WARREN_BACKEND_DSN", "/tmp/override.db")

	cfg, err := Load(writeConfig(t, validConfig))
	require.NoError(t, err)
	assert.Equal(t, ":7777", cfg.Listen)
	assert.Equal(t, "/tmp/override.db", cfg.Backend.DSN)
}

func TestLoadRejectsBadDriver(t *testing.T) {
	_, err := Load(writeConfig(t, `
backend:
  driver: mongodb
  dsn: warren.db
`))
	require.Error(t, err)
	assert.True(t, warrenerr.Is(err, warrenerr.CodeValidation))
}

func TestLoadRejectsMissingDSN(t *testing.T) {
	_, err := Load(writeConfig(t, `
listen: ":9000"
`))
	require.Error(t, err)
	assert.True(t, warrenerr.Is(err, warrenerr.CodeValidation))
}

func TestLoadRejectsBadDuration(t *testing.T) {
	_, err := Load(writeConfig(t, `
backend:
  dsn: warren.db
alarm_poll_interval: soon
`))
	require.Error(t, err)
	assert.True(t, warrenerr.Is(err, warrenerr.CodeValidation))
}

func TestValidateReportsPosition(t *testing.T) {
	path := writeConfig(t, `
backend:
  driver: mongodb
  dsn: warren.db
`)
	err := Validate(path)
	require.Error(t, err)
	assert.True(t, warrenerr.Is(err, warrenerr.CodeValidation))
	assert.Contains(t, err.Error(), "driver")
}

func TestValidateAcceptsValidFile(t *testing.T) {
	assert.NoError(t, Validate(writeConfig(t, validConfig)))
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}
