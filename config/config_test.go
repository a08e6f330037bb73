package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoad_AppliesDefaults(t *testing.T) {
	path := writeConfig(t, "server:\n  port: 9090\n")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "sqlite", cfg.Database.Driver)
	assert.NotEmpty(t, cfg.Database.DSN)
	assert.Equal(t, 3, cfg.Queue.LateThresholdMinutes)
	assert.Equal(t, 2, cfg.Queue.GraceMinutes)
	assert.Equal(t, "self", cfg.Queue.LatePolicySource)
	assert.Equal(t, 2, cfg.Broadcast.Workers)
	assert.Equal(t, 30*time.Second, cfg.Server.CacheTTL())
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "*/10 * * * * *", cfg.Sweeper.Schedule)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	path := writeConfig(t, "queue:\n  late_threshold_minutes: 5\n")
	t.Setenv("GYMQ_QUEUE_LATE_THRESHOLD_MINUTES", "7")
	t.Setenv("GYMQ_QUEUE_LATE_POLICY_SOURCE", "successor")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 7, cfg.Queue.LateThresholdMinutes)
	assert.Equal(t, "successor", cfg.Queue.LatePolicySource)
}

func TestLoad_RejectsInvalidValues(t *testing.T) {
	testCases := []struct {
		name string
		body string
	}{
		{name: "unknown driver", body: "database:\n  driver: mysql\n  dsn: x\n"},
		{name: "postgres without dsn", body: "database:\n  driver: postgres\n"},
		{name: "unknown policy source", body: "queue:\n  late_policy_source: newest\n"},
		{name: "negative threshold", body: "queue:\n  late_threshold_minutes: -1\n"},
		{name: "unknown log format", body: "log:\n  format: xml\n"},
		{name: "catalog entry without gym", body: "catalog:\n  - name: Bench\n"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tc.body))
			assert.Error(t, err)
		})
	}
}

func TestLoad_Catalog(t *testing.T) {
	path := writeConfig(t, "catalog:\n  - name: Bench\n    type: bench\n    gym: Downtown\n")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, []EquipmentSeed{{Name: "Bench", Type: "bench", GymName: "Downtown"}}, cfg.Catalog)
}
