package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"
)

const maxAttempts = 10

// ValidationError represents a config validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationErrors collects every problem found in a config file.
type ValidationErrors []ValidationError

func (e ValidationErrors) Error() string {
	msgs := make([]string, len(e))
	for i, v := range e {
		msgs[i] = v.Error()
	}
	return fmt.Sprintf("validation errors:\n  - %s", strings.Join(msgs, "\n  - "))
}

// Validate checks the config for values strata cannot use.
func Validate(c *Config) error {
	var errs ValidationErrors
	add := func(field, format string, args ...any) {
		errs = append(errs, ValidationError{Field: field, Message: fmt.Sprintf(format, args...)})
	}

	if u, err := url.Parse(c.Release.URL); err != nil || (u.Scheme != "https" && u.Scheme != "http") || u.Host == "" {
		add("release.url", "must be an http or https URL, got %q", c.Release.URL)
	}

	if c.HTTP.Timeout <= 0 {
		add("http.timeout", "must be positive")
	}
	if c.HTTP.ConnectTimeout <= 0 {
		add("http.connect_timeout", "must be positive")
	}
	if strings.TrimSpace(c.HTTP.UserAgent) == "" {
		add("http.user_agent", "is required")
	}

	if len(c.Git.Branches) == 0 {
		add("git.branches", "at least one branch is required")
	}
	for i, b := range c.Git.Branches {
		if strings.TrimSpace(b) == "" || strings.ContainsAny(b, " \t\n") {
			add(fmt.Sprintf("git.branches[%d]", i), "invalid branch name %q", b)
		}
	}
	if c.Git.Attempts < 1 || c.Git.Attempts > maxAttempts {
		add("git.attempts", "must be between 1 and %d", maxAttempts)
	}
	if c.Git.InitialDelay < 0 {
		add("git.initial_delay", "must not be negative")
	}

	if c.Updater.PollInterval <= 0 || c.Updater.PollInterval.Std() > time.Minute {
		add("updater.poll_interval", "must be between 0 and 1m")
	}
	if c.Updater.MaxWait < 0 {
		add("updater.max_wait", "must not be negative")
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}
