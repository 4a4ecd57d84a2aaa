package config

import (
	"os"
	"path/filepath"
	"time"

	"github.com/mattsolo1/grove-core/logging"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

// Config holds the resolved grove-watch configuration.
type Config struct {
	API      APIConfig      `yaml:"api"`
	GitHub   GitHubConfig   `yaml:"github"`
	Ntfy     NtfyConfig     `yaml:"ntfy"`
	System   SystemConfig   `yaml:"system"`
	Polling  PollingConfig  `yaml:"polling"`
	Branches BranchesConfig `yaml:"branches"`
}

// APIConfig configures the Grove Cloud API client.
type APIConfig struct {
	URL   string `yaml:"url"`
	Token string `yaml:"token"`
}

// GitHubConfig configures pull-request status lookups.
type GitHubConfig struct {
	Token string `yaml:"token"`
}

// NtfyConfig configures push notifications via ntfy.
type NtfyConfig struct {
	Enabled bool   `yaml:"enabled"`
	URL     string `yaml:"url"`
	Topic   string `yaml:"topic"`
}

// SystemConfig configures desktop notifications.
type SystemConfig struct {
	Enabled bool     `yaml:"enabled"`
	Levels  []string `yaml:"levels"`
}

// PollingConfig configures the background refresh scheduler.
type PollingConfig struct {
	IntervalSeconds     int `yaml:"interval_seconds"`
	FastIntervalSeconds int `yaml:"fast_interval_seconds"`
}

// BranchesConfig configures branch metadata caching and default-branch
// resolution. DefaultBranch accepts "current", "main", or "source".
type BranchesConfig struct {
	DefaultBranch string `yaml:"default_branch"`
	RemoteName    string `yaml:"remote_name"`
}

func defaultConfig() *Config {
	return &Config{
		API: APIConfig{
			URL: "https://api.grove.dev/v1",
		},
		Ntfy: NtfyConfig{
			Enabled: false,
			URL:     "https://ntfy.sh",
		},
		System: SystemConfig{
			Enabled: true,
			Levels:  []string{"error", "warning"},
		},
		Polling: PollingConfig{
			IntervalSeconds:     30,
			FastIntervalSeconds: 5,
		},
		Branches: BranchesConfig{
			DefaultBranch: "current",
			RemoteName:    "origin",
		},
	}
}

// Load reads ~/.config/grove-watch/config.yaml, falling back to defaults
// when the file is missing or unparsable. Environment variables override
// file values.
func Load() *Config {
	cfg := defaultConfig()

	configPath := expandPath("~/.config/grove-watch/config.yaml")
	if data, err := os.ReadFile(configPath); err == nil {
		// Unmarshal over the defaults so absent keys keep their values
		if err := yaml.Unmarshal(data, cfg); err != nil {
			logging.NewLogger("watch.config").WithFields(logrus.Fields{
				"path":  configPath,
				"error": err.Error(),
			}).Warn("Ignoring unparsable config file")
			// A half-decoded file must not leave partial values behind.
			cfg = defaultConfig()
		}
	}

	applyEnvOverrides(cfg)
	return cfg
}

func applyEnvOverrides(cfg *Config) {
	if url := os.Getenv("GROVE_WATCH_API_URL"); url != "" {
		cfg.API.URL = url
	}
	if token := os.Getenv("GROVE_WATCH_API_TOKEN"); token != "" {
		cfg.API.Token = token
	}
	if token := os.Getenv("GROVE_WATCH_GITHUB_TOKEN"); token != "" {
		cfg.GitHub.Token = token
	}
	if topic := os.Getenv("GROVE_WATCH_NTFY_TOPIC"); topic != "" {
		cfg.Ntfy.Enabled = true
		cfg.Ntfy.Topic = topic
	}
}

// PollInterval returns the normal background polling interval.
func (c *Config) PollInterval() time.Duration {
	return time.Duration(c.Polling.IntervalSeconds) * time.Second
}

// FastPollInterval returns the interval used while a sensitive foreground
// operation is in flight.
func (c *Config) FastPollInterval() time.Duration {
	return time.Duration(c.Polling.FastIntervalSeconds) * time.Second
}

// expandPath expands ~ to home directory
func expandPath(path string) string {
	if len(path) > 1 && path[:2] == "~/" {
		home, err := os.UserHomeDir()
		if err == nil {
			return filepath.Join(home, path[2:])
		}
	}
	return path
}
