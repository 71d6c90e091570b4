package config

import (
	"strings"
	"testing"
	"time"
)

func TestDetectFormat(t *testing.T) {
	tests := []struct {
		name     string
		path     string
		content  string
		expected Format
	}{
		{"yaml extension", "config.yaml", "", FormatYAML},
		{"yml extension", "config.yml", "", FormatYAML},
		{"toml extension", "config.toml", "", FormatTOML},
		{"json extension", "config.json", "", FormatJSON},
		{"json content", "config", `{"git": {"attempts": 2}}`, FormatJSON},
		{"yaml content", "config", "# comment\ngit:\n  attempts: 2", FormatYAML},
		{"toml section", "config", "[git]\nattempts = 2", FormatTOML},
		{"toml key", "config", `attempts = 2`, FormatTOML},
		{"unknown", "config", "just words", FormatUnknown},
		{"empty", "config", "", FormatUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := detectFormat(tt.path, []byte(tt.content))
			if got != tt.expected {
				t.Errorf("detectFormat() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestExpandEnvVars(t *testing.T) {
	t.Setenv("TEST_VAR", "test_value")
	t.Setenv("EMPTY_VAR", "")

	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"simple var", "${TEST_VAR}", "test_value"},
		{"var with default", "${MISSING_VAR:-default_value}", "default_value"},
		{"existing var ignores default", "${TEST_VAR:-default_value}", "test_value"},
		{"empty var uses default", "${EMPTY_VAR:-default_value}", "default_value"},
		{"missing var without default", "${MISSING_VAR}", ""},
		{"no var", "plain text", "plain text"},
		{"mixed content", "prefix ${TEST_VAR} suffix", "prefix test_value suffix"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := string(expandEnvVars([]byte(tt.input)))
			if got != tt.expected {
				t.Errorf("expandEnvVars() = %q, want %q", got, tt.expected)
			}
		})
	}
}

func TestParse_AllFormats(t *testing.T) {
	t.Setenv("STRATA_TEST_TOKEN", "s3cret")

	tests := []struct {
		name    string
		format  Format
		content string
	}{
		{
			name:   "yaml",
			format: FormatYAML,
			content: `
http:
  timeout: 45s
  token: ${STRATA_TEST_TOKEN}
git:
  attempts: 5
  initial_delay: 500ms
updater:
  max_wait: 0s
`,
		},
		{
			name:   "toml",
			format: FormatTOML,
			content: `
[http]
timeout = "45s"
token = "${STRATA_TEST_TOKEN}"

[git]
attempts = 5
initial_delay = "500ms"

[updater]
max_wait = "0s"
`,
		},
		{
			name:    "json",
			format:  FormatJSON,
			content: `{"http": {"timeout": "45s", "token": "${STRATA_TEST_TOKEN}"}, "git": {"attempts": 5, "initial_delay": "500ms"}, "updater": {"max_wait": "0s"}}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			if err := parse([]byte(tt.content), tt.format, cfg); err != nil {
				t.Fatalf("parse() error = %v", err)
			}
			if cfg.HTTP.Timeout.Std() != 45*time.Second {
				t.Errorf("http.timeout = %v, want 45s", cfg.HTTP.Timeout)
			}
			if cfg.HTTP.Token != "s3cret" {
				t.Errorf("http.token = %q, want expanded value", cfg.HTTP.Token)
			}
			if cfg.Git.Attempts != 5 || cfg.Git.InitialDelay.Std() != 500*time.Millisecond {
				t.Errorf("git = %+v", cfg.Git)
			}
			if cfg.Updater.MaxWait != 0 {
				t.Errorf("updater.max_wait = %v, want 0", cfg.Updater.MaxWait)
			}
			// Untouched keys keep their defaults.
			def := Default()
			if cfg.HTTP.ConnectTimeout != def.HTTP.ConnectTimeout || cfg.Release.URL != def.Release.URL {
				t.Errorf("defaults lost: %+v", cfg)
			}
			if len(cfg.Git.Branches) != 2 || cfg.Git.Branches[0] != "master" {
				t.Errorf("git.branches = %v, want defaults", cfg.Git.Branches)
			}
		})
	}
}

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		name    string
		format  Format
		content string
		want    string
	}{
		{"unknown yaml key", FormatYAML, "gti:\n  attempts: 2\n", "YAML parse error"},
		{"bad duration", FormatYAML, "http:\n  timeout: soon\n", "invalid duration"},
		{"unknown json key", FormatJSON, `{"release": {"uri": "x"}}`, "JSON parse error"},
		{"bad toml", FormatTOML, "[http\n", "TOML parse error"},
		{"unknown format", FormatUnknown, "", "unknown file format"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := parse([]byte(tt.content), tt.format, Default())
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("parse() error = %v, want containing %q", err, tt.want)
			}
		})
	}
}

func TestParse_EmptyYAMLKeepsDefaults(t *testing.T) {
	cfg := Default()
	if err := parse([]byte("# nothing here\n"), FormatYAML, cfg); err != nil {
		t.Fatalf("parse() error = %v", err)
	}
	if cfg.Git.Attempts != Default().Git.Attempts {
		t.Errorf("attempts = %d", cfg.Git.Attempts)
	}
}

func TestDuration(t *testing.T) {
	var d Duration
	if err := d.UnmarshalText([]byte(" 2m ")); err != nil {
		t.Fatalf("UnmarshalText() error = %v", err)
	}
	if d.Std() != 2*time.Minute {
		t.Errorf("Std() = %v", d.Std())
	}
	text, _ := d.MarshalText()
	if string(text) != "2m0s" {
		t.Errorf("MarshalText() = %q", text)
	}
}
