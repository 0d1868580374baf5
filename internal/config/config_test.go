package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/sethvargo/go-envconfig"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testConfig = `
[development]
addr = "127.0.0.1:8000"
log_level = "debug"
db_path = "dev.db"

[development.pose]
camera_index = 1

[development.session]
queue_size = 4

[development.session.counter]
min_rep_duration = "250ms"
position_aware = true

[production]
log_level = "warn"
log_format_json = true
hook_timeout = "3s"
`

func writeConfig(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(testConfig), 0o644))
	return path
}

func TestLoadDevelopment(t *testing.T) {
	cfg, err := load(context.Background(), writeConfig(t), "dev", envconfig.MapLookuper(nil))
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1:8000", cfg.Addr)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "dev.db", cfg.DBPath)
	assert.Equal(t, 1, cfg.Pose.CameraIndex)
	assert.Equal(t, 4, cfg.Session.QueueSize)
	assert.Equal(t, 250*time.Millisecond, cfg.Session.Counter.MinRepDuration)
	assert.True(t, cfg.Session.Counter.PositionAware)

	// untouched keys keep their defaults
	def := Default()
	assert.Equal(t, def.HookTimeout, cfg.HookTimeout)
	assert.Equal(t, def.Session.Counter.ConfirmFrames, cfg.Session.Counter.ConfirmFrames)
	assert.Equal(t, def.Session.Policy, cfg.Session.Policy)
	assert.Equal(t, def.Pose.ModelComplexity, cfg.Pose.ModelComplexity)
}

func TestLoadProduction(t *testing.T) {
	cfg, err := load(context.Background(), writeConfig(t), "production", envconfig.MapLookuper(nil))
	require.NoError(t, err)

	assert.Equal(t, "warn", cfg.LogLevel)
	assert.True(t, cfg.LogFormatJSON)
	assert.Equal(t, 3*time.Second, cfg.HookTimeout)
	assert.Equal(t, Default().Addr, cfg.Addr)
}

func TestEnvOverrides(t *testing.T) {
	lookuper := envconfig.MapLookuper(map[string]string{
		"FORMCOACH_ADDR":         ":9999",
		"FORMCOACH_LOG_LEVEL":    "trace",
		"FORMCOACH_HOOK_TIMEOUT": "1m",
		"ADDR":                   "ignored",
	})

	cfg, err := load(context.Background(), writeConfig(t), "dev", lookuper)
	require.NoError(t, err)

	assert.Equal(t, ":9999", cfg.Addr)
	assert.Equal(t, "trace", cfg.LogLevel)
	assert.Equal(t, time.Minute, cfg.HookTimeout)
	assert.Equal(t, "dev.db", cfg.DBPath)
}

func TestLoadWithoutFile(t *testing.T) {
	cfg, err := load(context.Background(), "", "dev", envconfig.MapLookuper(nil))
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoadErrors(t *testing.T) {
	_, err := load(context.Background(), "", "staging", envconfig.MapLookuper(nil))
	assert.EqualError(t, err, "unknown env: staging")

	_, err = load(context.Background(), filepath.Join(t.TempDir(), "missing.toml"), "dev", envconfig.MapLookuper(nil))
	assert.Error(t, err)

	bad := filepath.Join(t.TempDir(), "bad.toml")
	require.NoError(t, os.WriteFile(bad, []byte("[development\naddr="), 0o644))
	_, err = load(context.Background(), bad, "dev", envconfig.MapLookuper(nil))
	assert.Error(t, err)
}
