// Package config loads the service configuration from a TOML file with one
// section per environment, then applies FORMCOACH_* environment overrides.
package config

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/sethvargo/go-envconfig"

	"github.com/ayusman/formcoach/internal/pose"
	"github.com/ayusman/formcoach/internal/session"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "FORMCOACH_"

type Config struct {
	Addr string `toml:"addr" env:"ADDR, overwrite"`
	// logging
	LogLevel      string `toml:"log_level" env:"LOG_LEVEL, overwrite"`
	LogsPath      string `toml:"logs_path" env:"LOGS_PATH, overwrite"`
	LogToStdout   bool   `toml:"log_to_stdout" env:"LOG_TO_STDOUT, overwrite"`
	LogFormatJSON bool   `toml:"log_format_json" env:"LOG_FORMAT_JSON, overwrite"`
	// storage, empty disables repetition history
	DBPath string `toml:"db_path" env:"DB_PATH, overwrite"`
	// coaching hooks
	HooksDir    string        `toml:"hooks_dir" env:"HOOKS_DIR, overwrite"`
	HookTimeout time.Duration `toml:"hook_timeout" env:"HOOK_TIMEOUT, overwrite"`
	// metrics
	MetricsNamespace string `toml:"metrics_namespace" env:"METRICS_NAMESPACE, overwrite"`
	MetricsSubsystem string `toml:"metrics_subsystem" env:"METRICS_SUBSYSTEM, overwrite"`

	Pose    pose.Config    `toml:"pose"`
	Session session.Config `toml:"session"`
}

// Default returns the configuration used when a file omits a value.
func Default() *Config {
	return &Config{
		Addr:             "127.0.0.1:9470",
		LogLevel:         "info",
		HooksDir:         "hooks",
		HookTimeout:      10 * time.Second,
		MetricsNamespace: "formcoach",
		MetricsSubsystem: "engine",
		Pose:             pose.DefaultConfig(),
		Session:          session.DefaultConfig(),
	}
}

type Toml struct {
	Development *Config
	Production  *Config
}

func (t *Toml) Get(env string) (*Config, error) {
	switch strings.ToLower(env) {
	case "dev", "development":
		return t.Development, nil
	case "prod", "production":
		return t.Production, nil
	default:
		return nil, fmt.Errorf("unknown env: %s", env)
	}
}

// Load reads the env section of the TOML file at path. An empty path starts
// from the defaults. Environment overrides are applied last.
func Load(ctx context.Context, path, env string) (*Config, error) {
	return load(ctx, path, env, envconfig.OsLookuper())
}

func load(ctx context.Context, path, env string, lookuper envconfig.Lookuper) (*Config, error) {
	t := &Toml{
		Development: Default(),
		Production:  Default(),
	}
	if path != "" {
		if _, err := toml.DecodeFile(path, t); err != nil {
			return nil, fmt.Errorf("decode config %s: %w", path, err)
		}
	}

	cfg, err := t.Get(env)
	if err != nil {
		return nil, err
	}
	if cfg == nil {
		return nil, fmt.Errorf("config section for env %s is empty", env)
	}

	if err := envconfig.ProcessWith(ctx, &envconfig.Config{
		Target:   cfg,
		Lookuper: envconfig.PrefixLookuper(EnvPrefix, lookuper),
	}); err != nil {
		return nil, fmt.Errorf("apply env overrides: %w", err)
	}

	return cfg, nil
}
