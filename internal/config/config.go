package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	DefaultConfigDir  = ".reconctl"
	DefaultConfigFile = "config.json"
	DefaultDBFile     = ".reconctl/reconctl.db"

	DefaultBaseURL      = "http://localhost:8000"
	DefaultPollInterval = 2 * time.Second
	DefaultMaxFailures  = 10
)

// Load reads the config file (falling back to defaults if absent) and returns
// a populated Config. The configPath flag may override the default location.
func Load(configPath string) (*Config, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("cannot determine home directory: %w", err)
	}

	v := viper.New()
	v.SetConfigType("json")
	v.SetEnvPrefix("RECONCTL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(filepath.Join(home, DefaultConfigDir))
	}

	setDefaults(v, home)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			// Config file exists but is malformed.
			if !isNotExist(err) {
				return nil, fmt.Errorf("reading config: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	expandPaths(&cfg, home)
	normalise(&cfg)
	return &cfg, nil
}

// Save writes the config to disk as JSON.
func Save(cfg *Config, configPath string) error {
	if configPath == "" {
		p, err := ConfigPath("")
		if err != nil {
			return fmt.Errorf("cannot determine home directory: %w", err)
		}
		configPath = p
	}

	if err := os.MkdirAll(filepath.Dir(configPath), 0o700); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("serialising config: %w", err)
	}

	return os.WriteFile(configPath, data, 0o600)
}

// ConfigPath returns the effective config file path.
func ConfigPath(override string) (string, error) {
	if override != "" {
		return override, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, DefaultConfigDir, DefaultConfigFile), nil
}

// setDefaults populates viper with out-of-the-box values.
func setDefaults(v *viper.Viper, home string) {
	v.SetDefault("api.base_url", DefaultBaseURL)
	v.SetDefault("api.timeout", "15s")
	v.SetDefault("api.rate_limit", 5.0)
	v.SetDefault("api.rate_burst", 5)

	v.SetDefault("poll.interval", DefaultPollInterval.String())
	v.SetDefault("poll.fetch_timeout", "10s")
	v.SetDefault("poll.max_failures", DefaultMaxFailures)
	v.SetDefault("poll.backoff", false)
	v.SetDefault("poll.max_interval", "30s")

	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.path", filepath.Join(home, DefaultDBFile))
	v.SetDefault("database.dsn", "")

	v.SetDefault("notify.events", []string{})
}

// normalise repairs values a hand-edited config may have zeroed out.
func normalise(cfg *Config) {
	cfg.API.BaseURL = strings.TrimRight(strings.TrimSpace(cfg.API.BaseURL), "/")
	if cfg.API.BaseURL == "" {
		cfg.API.BaseURL = DefaultBaseURL
	}
	if cfg.API.Timeout <= 0 {
		cfg.API.Timeout = 15 * time.Second
	}
	if cfg.Poll.Interval <= 0 {
		cfg.Poll.Interval = DefaultPollInterval
	}
	if cfg.Poll.FetchTimeout <= 0 {
		cfg.Poll.FetchTimeout = 10 * time.Second
	}
	if cfg.Poll.MaxFailures <= 0 {
		cfg.Poll.MaxFailures = DefaultMaxFailures
	}
	if cfg.Poll.MaxInterval < cfg.Poll.Interval {
		cfg.Poll.MaxInterval = cfg.Poll.Interval
	}
}

// expandPaths resolves ~ in configured paths.
func expandPaths(cfg *Config, home string) {
	cfg.Database.Path = expandHome(cfg.Database.Path, home)
}

func expandHome(path, home string) string {
	if strings.HasPrefix(path, "~/") {
		return filepath.Join(home, path[2:])
	}
	return path
}

func isNotExist(err error) bool {
	return os.IsNotExist(err) || strings.Contains(err.Error(), "no such file")
}
