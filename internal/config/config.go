package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/Veraticus/receipt-review/internal/common"
	"github.com/Veraticus/receipt-review/internal/service"
	"github.com/spf13/viper"
)

// Config is the typed view of everything the CLI reads from viper.
type Config struct {
	DatabasePath string
	LogLevel     string
	LogFormat    string
	Retry        service.RetryOptions
	SaveWorkers  int
}

// SetDefaults registers default values on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("database.path", DefaultDatabasePath())
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "console")
	v.SetDefault("save.workers", 4)
	v.SetDefault("save.retry.max_attempts", 3)
	v.SetDefault("save.retry.initial_delay", 100*time.Millisecond)
	v.SetDefault("save.retry.max_delay", 2*time.Second)
	v.SetDefault("save.retry.multiplier", 2.0)
}

// DefaultDatabasePath returns the database location used when none is configured.
func DefaultDatabasePath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", "receipts.db")
	}
	return filepath.Join(home, ".local", "share", "receipts", "receipts.db")
}

// Load reads the configuration from v and validates it.
func Load(v *viper.Viper) (*Config, error) {
	cfg := &Config{
		DatabasePath: ExpandPath(v.GetString("database.path")),
		LogLevel:     v.GetString("logging.level"),
		LogFormat:    v.GetString("logging.format"),
		SaveWorkers:  v.GetInt("save.workers"),
		Retry: service.RetryOptions{
			MaxAttempts:  v.GetInt("save.retry.max_attempts"),
			InitialDelay: v.GetDuration("save.retry.initial_delay"),
			MaxDelay:     v.GetDuration("save.retry.max_delay"),
			Multiplier:   v.GetFloat64("save.retry.multiplier"),
		},
	}
	if cfg.DatabasePath == "" {
		cfg.DatabasePath = DefaultDatabasePath()
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the configuration for values the application cannot run with.
func (c *Config) Validate() error {
	if c.SaveWorkers < 1 {
		return fmt.Errorf("%w: save.workers must be at least 1, got %d", common.ErrInvalidConfig, c.SaveWorkers)
	}
	if c.Retry.MaxAttempts < 1 {
		return fmt.Errorf("%w: save.retry.max_attempts must be at least 1, got %d", common.ErrInvalidConfig, c.Retry.MaxAttempts)
	}
	if c.Retry.MaxDelay < c.Retry.InitialDelay {
		return fmt.Errorf("%w: save.retry.max_delay %v is below initial_delay %v",
			common.ErrInvalidConfig, c.Retry.MaxDelay, c.Retry.InitialDelay)
	}
	if _, err := common.ParseLevel(c.LogLevel); err != nil {
		return err
	}
	switch c.LogFormat {
	case "console", "json":
	default:
		return fmt.Errorf("%w: log format %q", common.ErrInvalidConfig, c.LogFormat)
	}
	return nil
}
