package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	// DefaultConnections is the number of parallel connections per download.
	DefaultConnections = 4

	// DefaultSplitThreshold is the minimum remaining byte count a segment
	// must carry before an idle connection is allowed to split it.
	DefaultSplitThreshold = 8192

	// DefaultProgressInterval is how often the CLI progress line refreshes.
	DefaultProgressInterval = 3 * time.Second

	// DefaultStreamRetries is how many times a connection re-issues a
	// range request after the server dropped the body mid-stream.
	DefaultStreamRetries = 3
)

type Config struct {
	Download DownloadConfig `mapstructure:"download" yaml:"download"`
	Log      LogConfig      `mapstructure:"log" yaml:"log"`
	Store    StoreConfig    `mapstructure:"store" yaml:"store"`

	Port string `mapstructure:"port" yaml:"port"`
}

type DownloadConfig struct {
	OutDir           string        `mapstructure:"out_dir" yaml:"out_dir"`
	Connections      int           `mapstructure:"connections" yaml:"connections"`
	SplitThreshold   int64         `mapstructure:"split_threshold" yaml:"split_threshold"`
	StreamRetries    int           `mapstructure:"stream_retries" yaml:"stream_retries"`
	ProgressInterval time.Duration `mapstructure:"progress_interval" yaml:"progress_interval"`
}

type LogConfig struct {
	Path          string `mapstructure:"path" yaml:"path"`
	Level         string `mapstructure:"level" yaml:"level"`
	IncludeStdout bool   `mapstructure:"include_stdout" yaml:"include_stdout"`
}

type StoreConfig struct {
	Driver      string `mapstructure:"driver" yaml:"driver"`
	SQLitePath  string `mapstructure:"sqlite_path" yaml:"sqlite_path"`
	PostgresDSN string `mapstructure:"postgres_dsn" yaml:"postgres_dsn"`
}

// Load reads the config file at path, or "splitget.yaml" when path is
// empty, layering environment variables (SPLITGET_*) on top.
func Load(path string) (*Config, error) {
	if path == "" {
		path = "splitget.yaml"
	}

	if _, err := os.Stat(path); os.IsNotExist(err) {
		// FALLBACK: If we are in Docker (or similar) and didn't provide a flag, check /config/splitget.yaml
		if path == "splitget.yaml" {
			if _, errEx := os.Stat("/config/splitget.yaml"); errEx == nil {
				path = "/config/splitget.yaml"
			} else {
				return nil, fmt.Errorf("config file not found: %s", path)
			}
		} else {
			return nil, fmt.Errorf("config file not found: %s", path)
		}
	}

	v := newViper()

	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("error reading config file %s: %w", path, err)
	}

	return finish(v)
}

// LoadOrDefault behaves like Load but falls back to pure defaults when no
// explicit path was given and no default config file exists. The one-shot
// CLI must work without any file on disk.
func LoadOrDefault(path string) (*Config, error) {
	if path != "" {
		return Load(path)
	}
	if _, err := os.Stat("splitget.yaml"); err == nil {
		return Load("splitget.yaml")
	}
	return finish(newViper())
}

func newViper() *viper.Viper {
	v := viper.New()

	// Set Defaults
	v.SetDefault("port", "8080")
	v.SetDefault("download.out_dir", ".")
	v.SetDefault("download.connections", DefaultConnections)
	v.SetDefault("download.split_threshold", DefaultSplitThreshold)
	v.SetDefault("download.stream_retries", DefaultStreamRetries)
	v.SetDefault("download.progress_interval", DefaultProgressInterval)
	v.SetDefault("log.path", "")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.include_stdout", true)
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.sqlite_path", "")
	v.SetDefault("store.postgres_dsn", "")

	// Support Environment Variables
	v.SetEnvPrefix("SPLITGET")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	return v
}

func finish(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) validate() error {
	if c.Download.OutDir == "" {
		c.Download.OutDir = "."
	}

	if c.Download.Connections <= 0 {
		// Default to a sane value
		c.Download.Connections = DefaultConnections
	}

	if c.Download.SplitThreshold <= 0 {
		c.Download.SplitThreshold = DefaultSplitThreshold
	}

	if c.Download.StreamRetries < 0 {
		c.Download.StreamRetries = DefaultStreamRetries
	}

	if c.Download.ProgressInterval <= 0 {
		c.Download.ProgressInterval = DefaultProgressInterval
	}

	switch c.Store.Driver {
	case "", "sqlite":
		c.Store.Driver = "sqlite"
	case "postgres":
		if c.Store.PostgresDSN == "" {
			return fmt.Errorf("store driver %q requires store.postgres_dsn", c.Store.Driver)
		}
	default:
		return fmt.Errorf("unknown store driver %q (want sqlite or postgres)", c.Store.Driver)
	}

	return nil
}
