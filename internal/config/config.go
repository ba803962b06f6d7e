// Package config loads stockcast settings from the TOML config file, the
// environment and an optional .env file.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

const (
	appName = "stockcast"

	// EnvAPIBase overrides the backend root from the environment or .env.
	EnvAPIBase = "STOCKCAST_API_BASE"

	DefaultAPIBase = "http://localhost:8000"
)

// Config holds all stockcast configuration.
type Config struct {
	Backend    BackendConfig    `toml:"backend"`
	Training   TrainingConfig   `toml:"training"`
	Appearance AppearanceConfig `toml:"appearance"`
	Logging    LoggingConfig    `toml:"logging"`
}

// BackendConfig locates the forecasting service.
type BackendConfig struct {
	APIBase           string   `toml:"api_base" validate:"required,url,startswith=http"`
	RequestTimeoutSec int      `toml:"request_timeout_sec" validate:"gte=1,lte=600"`
	IdleStatuses      []string `toml:"idle_statuses,omitempty"`
}

// TrainingConfig holds upload and training preferences.
type TrainingConfig struct {
	DefaultModel   string `toml:"default_model" validate:"oneof=SARIMA ARIMA"`
	DismissDelayMs int    `toml:"dismiss_delay_ms" validate:"gte=0,lte=60000"`
}

// AppearanceConfig holds theme settings.
type AppearanceConfig struct {
	Theme string `toml:"theme" validate:"oneof=flexoki-dark catppuccin-mocha tokyo-night terminal"`
}

// LoggingConfig controls the log file.
type LoggingConfig struct {
	Level string `toml:"level" validate:"oneof=debug info warn error"`
	File  string `toml:"file,omitempty"`
}

// DefaultIdleStatuses are the last_status values that mean no training is
// running: the backend's own wording and its English forms.
var DefaultIdleStatuses = []string{"Belum ada data", "Selesai", "No data yet", "Finished"}

// DefaultConfig returns the default configuration.
func DefaultConfig() Config {
	return Config{
		Backend: BackendConfig{
			APIBase:           DefaultAPIBase,
			RequestTimeoutSec: 15,
		},
		Training: TrainingConfig{
			DefaultModel:   "SARIMA",
			DismissDelayMs: 1500,
		},
		Appearance: AppearanceConfig{
			Theme: "flexoki-dark",
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// RequestTimeout returns the per-request timeout as a duration.
func (c Config) RequestTimeout() time.Duration {
	return time.Duration(c.Backend.RequestTimeoutSec) * time.Second
}

// DismissDelay returns how long the upload dialog lingers after training.
func (c Config) DismissDelay() time.Duration {
	return time.Duration(c.Training.DismissDelayMs) * time.Millisecond
}

// IdleStatuses returns the configured idle sentinels, or the defaults.
func (c Config) IdleStatuses() []string {
	if len(c.Backend.IdleStatuses) > 0 {
		return c.Backend.IdleStatuses
	}
	return DefaultIdleStatuses
}

var validate = validator.New()

// Validate checks field constraints and reports every violation at once.
func (c Config) Validate() error {
	err := validate.Struct(c)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, fmt.Sprintf("%s: failed %q (got %v)", fe.Namespace(), fe.Tag(), fe.Value()))
	}
	return fmt.Errorf("invalid config: %s", strings.Join(msgs, "; "))
}

// ConfigDir returns the XDG-compliant config directory.
func ConfigDir() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, appName)
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", appName)
}

// StateDir returns the XDG-compliant state directory for logs and the state db.
func StateDir() string {
	if xdg := os.Getenv("XDG_STATE_HOME"); xdg != "" {
		return filepath.Join(xdg, appName)
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".local", "state", appName)
}

// ConfigPath returns the full path to the config file.
func ConfigPath() string {
	return filepath.Join(ConfigDir(), "config.toml")
}

// StatePath returns the default path of the state database.
func StatePath() string {
	return filepath.Join(StateDir(), "state.db")
}

// LogPath returns the configured log file, or the default under StateDir.
func (c Config) LogPath() string {
	if c.Logging.File != "" {
		return c.Logging.File
	}
	return filepath.Join(StateDir(), appName+".log")
}

// Load reads the config file, returning defaults if it doesn't exist, then
// applies environment overrides. A .env file in the working directory is
// loaded first; variables already set in the environment win over it.
func Load() (Config, error) {
	_ = godotenv.Load() // optional

	cfg := DefaultConfig()

	data, err := os.ReadFile(ConfigPath())
	if err != nil && !os.IsNotExist(err) {
		return cfg, fmt.Errorf("reading config: %w", err)
	}
	if err == nil {
		if err := toml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parsing config: %w", err)
		}
	}

	if base := strings.TrimSpace(os.Getenv(EnvAPIBase)); base != "" {
		cfg.Backend.APIBase = base
	}

	return cfg, cfg.Validate()
}

// Save writes the config to disk.
func Save(cfg Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}

	dir := ConfigDir()
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating config dir: %w", err)
	}

	f, err := os.OpenFile(ConfigPath(), os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o600)
	if err != nil {
		return fmt.Errorf("creating config file: %w", err)
	}
	defer f.Close()

	enc := toml.NewEncoder(f)
	return enc.Encode(cfg)
}

// APIBaseSource describes where the effective API base came from.
func APIBaseSource(cfg Config) string {
	switch {
	case os.Getenv(EnvAPIBase) != "":
		return "env " + EnvAPIBase
	case Exists() && cfg.Backend.APIBase != DefaultAPIBase:
		return "config file"
	default:
		return "default"
	}
}

// Exists returns true if a config file exists on disk.
func Exists() bool {
	_, err := os.Stat(ConfigPath())
	return err == nil
}
