package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// DefaultPath is the well-known config file read when no path is given.
const DefaultPath = "backup.yaml"

// Config is the full daemon configuration. It is reloaded from disk before
// every scheduling decision, so edits take effect on the next cycle.
type Config struct {
	Log         LogConfig `mapstructure:"log"`
	Bin         BinConfig `mapstructure:"bin"`
	ErrorLogDir string    `mapstructure:"error_log_dir"`
	Jobs        []Job     `mapstructure:"jobs"`
}

// BinConfig holds the paths of the external tools the daemon drives.
type BinConfig struct {
	Restic string `mapstructure:"restic"`
	Rclone string `mapstructure:"rclone"`
}

// LogConfig represents the operator logging configuration. A Path of
// "stdout" logs to the terminal; any other value names a rotated log file,
// with MaxSize in megabytes and MaxAge in days.
type LogConfig struct {
	Level      string `mapstructure:"level"`
	Path       string `mapstructure:"path"`
	MaxSize    int    `mapstructure:"max_size"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAge     int    `mapstructure:"max_age"`
	Compress   bool   `mapstructure:"compress"`
}

// Load reads configuration from file and environment variables.
// configPath: path to the config file. If empty, DefaultPath in the current
// directory is used. Every field gets a default here and is validated once;
// nothing downstream re-interprets raw config.
func Load(configPath string) (*Config, error) {
	config := new(Config)

	v := viper.New()

	v.SetDefault("log.level", "info")
	v.SetDefault("log.path", "stdout")
	v.SetDefault("log.max_size", 10)
	v.SetDefault("log.max_backups", 3)
	v.SetDefault("log.max_age", 30)
	v.SetDefault("log.compress", false)

	v.SetDefault("bin.restic", "restic")
	v.SetDefault("bin.rclone", "rclone")

	v.SetDefault("error_log_dir", "logs")

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigFile(DefaultPath)
	}

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.Unmarshal(config); err != nil {
		return nil, err
	}

	for i := range config.Jobs {
		config.Jobs[i].applyDefaults()
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// Validate checks the whole job set, including jobname uniqueness.
func (c *Config) Validate() error {
	seen := make(map[string]bool, len(c.Jobs))
	for i := range c.Jobs {
		job := &c.Jobs[i]
		if err := job.Validate(); err != nil {
			return fmt.Errorf("job %q: %w", job.Name, err)
		}
		if seen[job.Name] {
			return fmt.Errorf("duplicate jobname %q", job.Name)
		}
		seen[job.Name] = true
	}
	if c.ErrorLogDir == "" {
		return errors.New("error_log_dir must not be empty")
	}
	return nil
}
