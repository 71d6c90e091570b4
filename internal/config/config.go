// Package config loads the optional strata configuration file.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/adrg/xdg"

	"github.com/adamancini/strata/internal/git"
	"github.com/adamancini/strata/internal/source"
	"github.com/adamancini/strata/internal/transport"
	"github.com/adamancini/strata/internal/update"
)

// EnvConfig names the environment variable that points at a config file.
const EnvConfig = "STRATA_CONFIG"

// searchPaths are tried, in order, below $XDG_CONFIG_HOME and then each
// of $XDG_CONFIG_DIRS.
var searchPaths = []string{
	"strata/config.yaml",
	"strata/config.yml",
	"strata/config.toml",
	"strata/config.json",
}

// Config is the parsed configuration file. Keys missing from the file keep
// their defaults.
type Config struct {
	Release ReleaseConfig `yaml:"release" toml:"release" json:"release"`
	HTTP    HTTPConfig    `yaml:"http" toml:"http" json:"http"`
	Git     GitConfig     `yaml:"git" toml:"git" json:"git"`
	Updater UpdaterConfig `yaml:"updater" toml:"updater" json:"updater"`
}

// ReleaseConfig locates the release metadata used by self-update.
type ReleaseConfig struct {
	URL string `yaml:"url" toml:"url" json:"url"`
}

// HTTPConfig configures the shared HTTP client.
type HTTPConfig struct {
	Timeout        Duration `yaml:"timeout" toml:"timeout" json:"timeout"`
	ConnectTimeout Duration `yaml:"connect_timeout" toml:"connect_timeout" json:"connect_timeout"`
	UserAgent      string   `yaml:"user_agent" toml:"user_agent" json:"user_agent"`
	// Token is sent as a bearer token on release metadata requests only.
	Token string `yaml:"token,omitempty" toml:"token,omitempty" json:"token,omitempty"`
}

// GitConfig configures repository acquisition.
type GitConfig struct {
	Branches     []string `yaml:"branches" toml:"branches" json:"branches"`
	Attempts     int      `yaml:"attempts" toml:"attempts" json:"attempts"`
	InitialDelay Duration `yaml:"initial_delay" toml:"initial_delay" json:"initial_delay"`
}

// UpdaterConfig configures the process that replaces the executable.
type UpdaterConfig struct {
	PollInterval Duration `yaml:"poll_interval" toml:"poll_interval" json:"poll_interval"`
	// MaxWait bounds the replacement loop; zero waits forever.
	MaxWait Duration `yaml:"max_wait" toml:"max_wait" json:"max_wait"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Release: ReleaseConfig{URL: source.DefaultReleaseURL},
		HTTP: HTTPConfig{
			Timeout:        Duration(transport.DefaultTimeout),
			ConnectTimeout: Duration(transport.DefaultConnectTimeout),
			UserAgent:      transport.DefaultUserAgent,
		},
		Git: GitConfig{
			Branches:     append([]string(nil), git.DefaultBranches...),
			Attempts:     source.DefaultAttempts,
			InitialDelay: Duration(source.DefaultInitialDelay),
		},
		Updater: UpdaterConfig{
			PollInterval: Duration(update.DefaultPollInterval),
			MaxWait:      Duration(update.DefaultMaxWait),
		},
	}
}

// TransportOptions converts the HTTP section for transport.Configure.
func (c *Config) TransportOptions() transport.Options {
	return transport.Options{
		Timeout:        c.HTTP.Timeout.Std(),
		ConnectTimeout: c.HTTP.ConnectTimeout.Std(),
		UserAgent:      c.HTTP.UserAgent,
		Token:          c.HTTP.Token,
	}
}

// Find returns the config file to load: explicitPath if given, then
// $STRATA_CONFIG, then the XDG config directories. It returns "" without
// error when no file exists.
func Find(explicitPath string) (string, error) {
	if explicitPath != "" {
		if _, err := os.Stat(explicitPath); err != nil {
			return "", fmt.Errorf("specified config file not found: %w", err)
		}
		return explicitPath, nil
	}

	if envPath := os.Getenv(EnvConfig); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath, nil
		}
	}

	for _, dir := range append([]string{xdg.ConfigHome}, xdg.ConfigDirs...) {
		if dir == "" {
			continue
		}
		for _, rel := range searchPaths {
			path := filepath.Join(dir, rel)
			if info, err := os.Stat(path); err == nil && info.Mode().IsRegular() {
				return path, nil
			}
		}
	}
	return "", nil
}

// Load reads, parses and validates the config file at path.
func Load(path string) (*Config, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	format := detectFormat(path, content)
	if format == FormatUnknown {
		return nil, fmt.Errorf("unable to detect file format for %s", path)
	}

	cfg := Default()
	if err := parse(content, format, cfg); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Resolve finds and loads the config file, falling back to Default when
// there is none. The returned path is "" in that case.
func Resolve(explicitPath string) (*Config, string, error) {
	path, err := Find(explicitPath)
	if err != nil {
		return nil, "", err
	}
	if path == "" {
		return Default(), "", nil
	}
	cfg, err := Load(path)
	if errors.Is(err, fs.ErrNotExist) && explicitPath == "" {
		return Default(), "", nil
	}
	if err != nil {
		return nil, path, err
	}
	return cfg, path, nil
}
