// Package config loads the fleetroute YAML configuration and applies
// environment overrides.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"golang.org/x/exp/slog"
	"gopkg.in/yaml.v3"

	"fleetroute/internal/model"
)

type Config struct {
	Fleet  FleetConfig         `yaml:"fleet"`
	Solver model.SolverOptions `yaml:"solver"`
	Data   DataConfig          `yaml:"data"`
	Output OutputConfig        `yaml:"output"`
	Server ServerConfig        `yaml:"server"`
	Log    LogConfig           `yaml:"log"`
}

// VehicleClass is Count identical vehicles of the given Capacity.
type VehicleClass struct {
	Count    int `yaml:"count"`
	Capacity int `yaml:"capacity"`
}

type FleetConfig struct {
	Classes []VehicleClass `yaml:"classes"`
}

// Capacities expands the classes in order into one capacity per vehicle.
func (f FleetConfig) Capacities() []int {
	var out []int
	for _, c := range f.Classes {
		for i := 0; i < c.Count; i++ {
			out = append(out, c.Capacity)
		}
	}
	return out
}

// DataConfig points at the batch inputs. An empty Locations path selects the
// built-in location sheet.
type DataConfig struct {
	Locations string `yaml:"locations"`
	Distance  string `yaml:"distance"`
	Time      string `yaml:"time"`
}

type OutputConfig struct {
	CSV string `yaml:"csv"`
}

type ServerConfig struct {
	Addr               string  `yaml:"addr"`
	DatabaseURL        string  `yaml:"databaseUrl"`
	RedisURL           string  `yaml:"redisUrl"`
	RateLimit          float64 `yaml:"rateLimit"` // plans per second, 0 disables
	RateBurst          int     `yaml:"rateBurst"`
	WebhookMaxAttempts int     `yaml:"webhookMaxAttempts"`
	AuthMode           string  `yaml:"authMode"` // dev or hmac
	AuthSecret         string  `yaml:"authSecret"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // text or json
}

// Default reproduces the reference batch run.
func Default() Config {
	return Config{
		Fleet: FleetConfig{Classes: []VehicleClass{
			{Count: 30, Capacity: 20},
			{Count: 5, Capacity: 12},
			{Count: 20, Capacity: 4},
		}},
		Solver: model.SolverOptions{
			TimeBudgetMs: 10000,
			Horizon:      30000,
			Strategy:     "PATH_CHEAPEST_ARC",
		},
		Data: DataConfig{
			Distance: "data/master_distance_matrix_depot.csv",
			Time:     "data/master_time_matrix.csv",
		},
		Output: OutputConfig{CSV: "vehicle_data.csv"},
		Server: ServerConfig{
			Addr:               ":8080",
			RateLimit:          2,
			RateBurst:          4,
			WebhookMaxAttempts: 10,
			AuthMode:           "dev",
		},
		Log: LogConfig{Level: "info", Format: "text"},
	}
}

// Load reads path over the defaults, then applies environment overrides.
// An empty path skips the file.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("config: %w", err)
		}
		if err := decode(data, &cfg); err != nil {
			return cfg, fmt.Errorf("config: %s: %w", path, err)
		}
	}
	if err := cfg.ApplyEnv(os.Getenv); err != nil {
		return cfg, err
	}
	return cfg, cfg.Validate()
}

func decode(data []byte, cfg *Config) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

// ApplyEnv overrides fields from environment variables read through getenv.
func (c *Config) ApplyEnv(getenv func(string) string) error {
	if v := getenv("PORT"); v != "" {
		c.Server.Addr = ":" + v
	}
	if v := getenv("DATABASE_URL"); v != "" {
		c.Server.DatabaseURL = v
	}
	if v := getenv("REDIS_URL"); v != "" {
		c.Server.RedisURL = v
	}
	if v := getenv("AUTH_MODE"); v != "" {
		c.Server.AuthMode = v
	}
	if v := getenv("AUTH_HMAC_SECRET"); v != "" {
		c.Server.AuthSecret = v
	}
	if v := getenv("LOG_LEVEL"); v != "" {
		c.Log.Level = v
	}
	if v := getenv("FLEETROUTE_STRATEGY"); v != "" {
		c.Solver.Strategy = v
	}
	if v := getenv("FLEETROUTE_OUTPUT_CSV"); v != "" {
		c.Output.CSV = v
	}
	ints := []struct {
		key string
		dst *int
	}{
		{"FLEETROUTE_TIME_BUDGET_MS", &c.Solver.TimeBudgetMs},
		{"FLEETROUTE_MAX_ITERATIONS", &c.Solver.MaxIterations},
		{"WEBHOOK_MAX_ATTEMPTS", &c.Server.WebhookMaxAttempts},
	}
	for _, e := range ints {
		if v := getenv(e.key); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				return fmt.Errorf("config: %s=%q: %w", e.key, v, model.ErrInvalidConfiguration)
			}
			*e.dst = n
		}
	}
	int64s := []struct {
		key string
		dst *int64
	}{
		{"FLEETROUTE_HORIZON", &c.Solver.Horizon},
		{"FLEETROUTE_SEED", &c.Solver.Seed},
	}
	for _, e := range int64s {
		if v := getenv(e.key); v != "" {
			n, err := strconv.ParseInt(v, 10, 64)
			if err != nil {
				return fmt.Errorf("config: %s=%q: %w", e.key, v, model.ErrInvalidConfiguration)
			}
			*e.dst = n
		}
	}
	if v := getenv("RATE_LIMIT_RPS"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("config: RATE_LIMIT_RPS=%q: %w", v, model.ErrInvalidConfiguration)
		}
		c.Server.RateLimit = f
	}
	return nil
}

// Validate rejects configurations no run could use.
func (c Config) Validate() error {
	if len(c.Fleet.Capacities()) == 0 {
		return fmt.Errorf("config: empty fleet: %w", model.ErrInvalidConfiguration)
	}
	for i, cl := range c.Fleet.Classes {
		if cl.Count < 0 || cl.Capacity <= 0 {
			return fmt.Errorf("config: fleet class %d: count %d capacity %d: %w", i, cl.Count, cl.Capacity, model.ErrInvalidConfiguration)
		}
	}
	if c.Solver.TimeBudgetMs < 0 || c.Solver.Horizon < 0 {
		return fmt.Errorf("config: negative solver limits: %w", model.ErrInvalidConfiguration)
	}
	if c.Server.RateLimit < 0 {
		return fmt.Errorf("config: negative rate limit: %w", model.ErrInvalidConfiguration)
	}
	switch strings.ToLower(c.Server.AuthMode) {
	case "", "dev":
	case "hmac":
		if c.Server.AuthSecret == "" {
			return fmt.Errorf("config: hmac auth needs a secret: %w", model.ErrInvalidConfiguration)
		}
	default:
		return fmt.Errorf("config: auth mode %q: %w", c.Server.AuthMode, model.ErrInvalidConfiguration)
	}
	if _, err := c.Log.SlogLevel(); err != nil {
		return err
	}
	return nil
}

// SlogLevel parses Level; empty means info.
func (l LogConfig) SlogLevel() (slog.Level, error) {
	var lvl slog.Level
	if strings.TrimSpace(l.Level) == "" {
		return slog.LevelInfo, nil
	}
	if err := lvl.UnmarshalText([]byte(l.Level)); err != nil {
		return slog.LevelInfo, fmt.Errorf("config: log level %q: %w", l.Level, model.ErrInvalidConfiguration)
	}
	return lvl, nil
}

// NewLogger builds the process logger described by l.
func (l LogConfig) NewLogger(w io.Writer) *slog.Logger {
	lvl, _ := l.SlogLevel()
	opts := &slog.HandlerOptions{Level: lvl}
	if strings.EqualFold(l.Format, "json") {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}
