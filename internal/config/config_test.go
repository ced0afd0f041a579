package config

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/exp/slog"

	"fleetroute/internal/model"
)

func TestDefaultFleet(t *testing.T) {
	caps := Default().Fleet.Capacities()
	require.Len(t, caps, 55)
	assert.Equal(t, 20, caps[0])
	assert.Equal(t, 12, caps[30])
	assert.Equal(t, 4, caps[54])
	require.NoError(t, Default().Validate())
}

func TestLoadFileOverDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "fleetroute.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
fleet:
  classes:
    - count: 2
      capacity: 15
solver:
  timeBudgetMs: 1500
  strategy: PARALLEL_CHEAPEST_INSERTION
output:
  csv: out.csv
log:
  level: debug
`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, []int{15, 15}, cfg.Fleet.Capacities())
	assert.Equal(t, 1500, cfg.Solver.TimeBudgetMs)
	assert.Equal(t, int64(30000), cfg.Solver.Horizon)
	assert.Equal(t, "PARALLEL_CHEAPEST_INSERTION", cfg.Solver.Strategy)
	assert.Equal(t, "out.csv", cfg.Output.CSV)
	lvl, err := cfg.Log.SlogLevel()
	require.NoError(t, err)
	assert.Equal(t, slog.LevelDebug, lvl)
}

func TestLoadRejectsUnknownKeys(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("solver:\n  budget: 3\n"), 0o644))
	_, err := Load(path)
	assert.Error(t, err)
}

func TestApplyEnv(t *testing.T) {
	env := map[string]string{
		"PORT":                      "9090",
		"DATABASE_URL":              "postgres://localhost/fleet",
		"FLEETROUTE_TIME_BUDGET_MS": "250",
		"FLEETROUTE_HORIZON":        "1200",
		"RATE_LIMIT_RPS":            "0.5",
	}
	cfg := Default()
	require.NoError(t, cfg.ApplyEnv(func(k string) string { return env[k] }))
	assert.Equal(t, ":9090", cfg.Server.Addr)
	assert.Equal(t, "postgres://localhost/fleet", cfg.Server.DatabaseURL)
	assert.Equal(t, 250, cfg.Solver.TimeBudgetMs)
	assert.Equal(t, int64(1200), cfg.Solver.Horizon)
	assert.Equal(t, 0.5, cfg.Server.RateLimit)

	err := cfg.ApplyEnv(func(k string) string {
		if k == "FLEETROUTE_SEED" {
			return "abc"
		}
		return ""
	})
	assert.ErrorIs(t, err, model.ErrInvalidConfiguration)
}

func TestValidate(t *testing.T) {
	cases := map[string]func(*Config){
		"empty fleet":    func(c *Config) { c.Fleet.Classes = nil },
		"zero capacity":  func(c *Config) { c.Fleet.Classes = []VehicleClass{{Count: 1, Capacity: 0}} },
		"negative limit": func(c *Config) { c.Solver.Horizon = -1 },
		"bad log level":  func(c *Config) { c.Log.Level = "loud" },
		"hmac no secret": func(c *Config) { c.Server.AuthMode = "hmac" },
		"bad auth mode":  func(c *Config) { c.Server.AuthMode = "jwks" },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			cfg := Default()
			mutate(&cfg)
			assert.ErrorIs(t, cfg.Validate(), model.ErrInvalidConfiguration)
		})
	}
}

func TestNewLoggerFormat(t *testing.T) {
	var buf bytes.Buffer
	LogConfig{Level: "info", Format: "json"}.NewLogger(&buf).Info("plan solved", "units", 5)
	assert.Contains(t, buf.String(), `"units":5`)

	buf.Reset()
	LogConfig{Level: "warn"}.NewLogger(&buf).Info("hidden")
	assert.Empty(t, buf.String())
}
