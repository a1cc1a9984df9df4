package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// ClientConfig configures the notesync CLI and the sync engine it runs.
type ClientConfig struct {
	ServerURL      string        `mapstructure:"server_url"`
	DataDir        string        `mapstructure:"data_dir"`
	DeviceName     string        `mapstructure:"device_name"`
	BackoffBase    time.Duration `mapstructure:"backoff_base"`
	BackoffMax     time.Duration `mapstructure:"backoff_max"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
	PushBatch      int           `mapstructure:"push_batch"`
	PullLimit      int           `mapstructure:"pull_limit"`
	PollInterval   time.Duration `mapstructure:"poll_interval"`
}

// DBPath is the on-device database holding notes, the mutation log and the
// session.
func (c *ClientConfig) DBPath() string {
	return filepath.Join(c.DataDir, "notesync.db")
}

// LoadClientConfig reads defaults, then the config file, then NOTESYNC_*
// environment variables. With an empty path the file is looked up as
// config.yaml in the data directory and may be absent.
func LoadClientConfig(path string) (*ClientConfig, error) {
	v := viper.New()

	dataDir := ".notesync"
	if home, err := os.UserHomeDir(); err == nil {
		dataDir = filepath.Join(home, ".notesync")
	}
	hostname, _ := os.Hostname()

	v.SetDefault("server_url", "http://localhost:8080")
	v.SetDefault("data_dir", dataDir)
	v.SetDefault("device_name", hostname)
	v.SetDefault("backoff_base", time.Second)
	v.SetDefault("backoff_max", 5*time.Minute)
	v.SetDefault("request_timeout", 30*time.Second)
	v.SetDefault("push_batch", 100)
	v.SetDefault("pull_limit", 200)
	v.SetDefault("poll_interval", time.Duration(0))

	v.SetEnvPrefix("NOTESYNC")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config %s: %w", path, err)
		}
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(v.GetString("data_dir"))
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("failed to read config: %w", err)
			}
		}
	}

	var cfg ClientConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}

	if cfg.ServerURL == "" {
		return nil, errors.New("server_url must be set")
	}
	if cfg.BackoffBase <= 0 || cfg.BackoffMax < cfg.BackoffBase {
		return nil, fmt.Errorf("invalid backoff range %s..%s", cfg.BackoffBase, cfg.BackoffMax)
	}

	return &cfg, nil
}
