// Package config handles loading and validating dispatch configuration.
// Supports YAML config files, a .env file, and DISPATCH_* environment
// variable overrides.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
	"github.com/spf13/viper"

	"github.com/marcus/dispatch/internal/logging"
	"github.com/marcus/dispatch/internal/tasks"
)

const (
	configName = "dispatch"
	envPrefix  = "DISPATCH"
)

// Store drivers.
const (
	StoreMemory   = "memory"
	StoreSQLite   = "sqlite"
	StorePostgres = "postgres"
)

// Lock drivers.
const (
	LockLocal = "local"
	LockRedis = "redis"
)

// Validation errors.
var (
	ErrInvalidStoreDriver = errors.New("store.driver must be memory, sqlite, or postgres")
	ErrMissingDSN         = errors.New("store.dsn is required for the postgres driver")
	ErrInvalidLockDriver  = errors.New("lock.driver must be local or redis")
	ErrInvalidLockTTL     = errors.New("lock.ttl must be positive")
	ErrInvalidLogLevel    = errors.New("logging.level must be debug, info, warn, or error")
	ErrInvalidLogFormat   = errors.New("logging.format must be json or text")
	ErrInvalidCron        = errors.New("digest.cron is not a valid cron expression")
	ErrInvalidHorizon     = errors.New("digest.horizon must be positive")
	ErrInvalidTimezone    = errors.New("digest.timezone is not a valid IANA zone")
	ErrInvalidRegistry    = errors.New("registry is invalid")
)

// Config holds all dispatch configuration.
type Config struct {
	Store     StoreConfig         `mapstructure:"store"`
	Lock      LockConfig          `mapstructure:"lock"`
	Logging   LoggingConfig       `mapstructure:"logging"`
	Reconcile ReconcileConfig     `mapstructure:"reconcile"`
	Digest    DigestConfig        `mapstructure:"digest"`
	Registry  map[string][]string `mapstructure:"registry"`
}

// StoreConfig selects the task store backend.
type StoreConfig struct {
	Driver string `mapstructure:"driver"`
	Path   string `mapstructure:"path"` // sqlite
	DSN    string `mapstructure:"dsn"`  // postgres
}

// LockConfig selects how reconciliation is serialized per reference.
type LockConfig struct {
	Driver    string        `mapstructure:"driver"`
	RedisAddr string        `mapstructure:"redis_addr"`
	TTL       time.Duration `mapstructure:"ttl"`
}

// LoggingConfig configures the logging subsystem.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Path   string `mapstructure:"path"`
	Format string `mapstructure:"format"`
}

// ReconcileConfig tunes assign-by-reference.
type ReconcileConfig struct {
	// SkipCancelled excludes CANCELLED tasks from the candidates for a slot.
	// Off by default, so a cancelled task can be revived as the survivor.
	SkipCancelled bool `mapstructure:"skip_cancelled"`
}

// DigestConfig schedules the periodic work-queue digest. An empty Cron
// disables it.
type DigestConfig struct {
	Cron      string        `mapstructure:"cron"`
	Assignees []int64       `mapstructure:"assignees"`
	Horizon   time.Duration `mapstructure:"horizon"`
	Timezone  string        `mapstructure:"timezone"`
}

// Enabled reports whether a digest schedule is configured.
func (d DigestConfig) Enabled() bool {
	return d.Cron != "" && len(d.Assignees) > 0
}

// Location resolves Timezone, defaulting to local time.
func (d DigestConfig) Location() (*time.Location, error) {
	if d.Timezone == "" {
		return time.Local, nil
	}
	return time.LoadLocation(d.Timezone)
}

// Loader wraps the viper instance a Config was read from so it can be
// watched for changes.
type Loader struct {
	v *viper.Viper
}

// DefaultConfigDir returns ~/.config/dispatch.
func DefaultConfigDir() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", configName)
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("store.driver", StoreMemory)
	v.SetDefault("store.path", filepath.Join("~", ".local", "share", "dispatch", "dispatch.db"))
	v.SetDefault("lock.driver", LockLocal)
	v.SetDefault("lock.redis_addr", "localhost:6379")
	v.SetDefault("lock.ttl", 30*time.Second)
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.path", "")
	v.SetDefault("reconcile.skip_cancelled", false)
	v.SetDefault("digest.horizon", 24*time.Hour)
}

// Load reads configuration from the current directory and the default
// config dir.
func Load() (*Config, error) {
	cfg, _, err := LoadFromPaths(".", DefaultConfigDir())
	return cfg, err
}

// LoadFromPaths reads dispatch.yaml from the first directory containing it.
// A missing file is not an error; defaults and environment still apply.
// A .env file in the first directory is loaded before the environment is
// read; existing environment variables win.
func LoadFromPaths(dirs ...string) (*Config, *Loader, error) {
	if len(dirs) > 0 && dirs[0] != "" {
		envFile := filepath.Join(expandPath(dirs[0]), ".env")
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, nil, fmt.Errorf("load %s: %w", envFile, err)
		}
	}

	v := viper.New()
	setDefaults(v)
	v.SetConfigName(configName)
	v.SetConfigType("yaml")
	for _, dir := range dirs {
		if dir != "" {
			v.AddConfigPath(expandPath(dir))
		}
	}
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, nil, fmt.Errorf("read config: %w", err)
		}
	}

	cfg, err := decode(v)
	if err != nil {
		return nil, nil, err
	}
	return cfg, &Loader{v: v}, nil
}

// LoadFile reads configuration from an explicit file path.
func LoadFile(path string) (*Config, *Loader, error) {
	v := viper.New()
	setDefaults(v)
	v.SetConfigFile(expandPath(path))
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return nil, nil, fmt.Errorf("read config %s: %w", path, err)
	}

	cfg, err := decode(v)
	if err != nil {
		return nil, nil, err
	}
	return cfg, &Loader{v: v}, nil
}

func decode(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := Validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Watch re-reads the config file on change and passes the new, validated
// config to fn. Invalid edits are reported through onErr and ignored.
func (l *Loader) Watch(fn func(*Config), onErr func(error)) {
	l.v.OnConfigChange(func(e fsnotify.Event) {
		if !e.Has(fsnotify.Write) && !e.Has(fsnotify.Create) {
			return
		}
		cfg, err := decode(l.v)
		if err != nil {
			if onErr != nil {
				onErr(err)
			}
			return
		}
		fn(cfg)
	})
	l.v.WatchConfig()
}

// ConfigFile returns the file the config was read from, if any.
func (l *Loader) ConfigFile() string {
	if l == nil {
		return ""
	}
	return l.v.ConfigFileUsed()
}

// Validate checks a config for invalid values. Empty fields are accepted
// and fall back to defaults.
func Validate(cfg *Config) error {
	switch cfg.Store.Driver {
	case "", StoreMemory, StoreSQLite:
	case StorePostgres:
		if cfg.Store.DSN == "" {
			return ErrMissingDSN
		}
	default:
		return ErrInvalidStoreDriver
	}

	switch cfg.Lock.Driver {
	case "", LockLocal, LockRedis:
	default:
		return ErrInvalidLockDriver
	}
	if cfg.Lock.TTL < 0 {
		return ErrInvalidLockTTL
	}

	if cfg.Logging.Level != "" {
		if _, err := logging.ParseLevel(cfg.Logging.Level); err != nil {
			return ErrInvalidLogLevel
		}
	}
	switch cfg.Logging.Format {
	case "", "json", "text":
	default:
		return ErrInvalidLogFormat
	}

	if cfg.Digest.Cron != "" {
		if _, err := cron.ParseStandard(cfg.Digest.Cron); err != nil {
			return ErrInvalidCron
		}
	}
	if cfg.Digest.Horizon < 0 {
		return ErrInvalidHorizon
	}
	if _, err := cfg.Digest.Location(); err != nil {
		return ErrInvalidTimezone
	}

	if len(cfg.Registry) > 0 {
		if _, err := tasks.RegistryFromStrings(cfg.Registry); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidRegistry, err)
		}
	}

	return nil
}

// TaskRegistry returns the configured slot table, or the built-in one.
func (c *Config) TaskRegistry() *tasks.Registry {
	if len(c.Registry) == 0 {
		return tasks.DefaultRegistry()
	}
	r, err := tasks.RegistryFromStrings(c.Registry)
	if err != nil {
		return tasks.DefaultRegistry()
	}
	return r
}

// ExpandedStorePath returns the sqlite path with ~ expanded.
func (c *Config) ExpandedStorePath() string {
	return expandPath(c.Store.Path)
}

// ExpandedLogPath returns the log directory with ~ expanded.
func (c *Config) ExpandedLogPath() string {
	return expandPath(c.Logging.Path)
}

func expandPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, path[2:])
	}
	return path
}
