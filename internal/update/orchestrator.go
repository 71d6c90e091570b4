package update

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/adamancini/strata/internal/logging"
	"github.com/adamancini/strata/internal/platform"
	"github.com/adamancini/strata/internal/process"
)

const (
	DefaultPollInterval = 100 * time.Millisecond
	DefaultMaxWait      = 2 * time.Minute

	clearanceAttempts = 50
)

// Orchestrator runs one role of the update handshake.
type Orchestrator struct {
	platform     platform.Platform
	runner       process.Runner
	reporter     Reporter
	copyFile     func(src, dst string) error
	sleep        func(ctx context.Context, d time.Duration) error
	now          func() time.Time
	pollInterval time.Duration
	maxWait      time.Duration
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

func WithRunner(r process.Runner) Option {
	return func(o *Orchestrator) { o.runner = r }
}

// WithReporter sets where phase messages go. nil discards them.
func WithReporter(r Reporter) Option {
	return func(o *Orchestrator) {
		if r == nil {
			r = nopReporter{}
		}
		o.reporter = r
	}
}

// WithPollInterval sets the delay between attempts to replace the original.
func WithPollInterval(d time.Duration) Option {
	return func(o *Orchestrator) {
		if d > 0 {
			o.pollInterval = d
		}
	}
}

// WithMaxWait bounds the updater task. Zero waits forever.
func WithMaxWait(d time.Duration) Option {
	return func(o *Orchestrator) {
		if d >= 0 {
			o.maxWait = d
		}
	}
}

func WithCopyFunc(fn func(src, dst string) error) Option {
	return func(o *Orchestrator) { o.copyFile = fn }
}

func WithSleep(fn func(ctx context.Context, d time.Duration) error) Option {
	return func(o *Orchestrator) { o.sleep = fn }
}

func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) { o.now = now }
}

// NewOrchestrator creates an orchestrator for the given platform.
func NewOrchestrator(p platform.Platform, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		platform:     p,
		runner:       process.NewRunner(),
		reporter:     nopReporter{},
		copyFile:     copyExecutable,
		sleep:        sleepContext,
		now:          time.Now,
		pollInterval: DefaultPollInterval,
		maxWait:      DefaultMaxWait,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Run executes a non-initiating role.
func (o *Orchestrator) Run(ctx context.Context, role Role) error {
	switch role {
	case RoleUpdaterTask:
		return o.RunUpdaterTask(ctx)
	case RoleClearance:
		return o.RunClearance(ctx)
	case RoleNoop:
		logging.FromContext(ctx).Debug("internal update flag does not match executable name, ignoring",
			"executable", o.platform.ExecutableName)
		return nil
	default:
		return fmt.Errorf("role %s cannot be run directly", role)
	}
}

// Initiate acquires the latest release, stages it beside the running
// executable and starts it as the updater task. The source is cleared on
// every path.
func (o *Orchestrator) Initiate(ctx context.Context, src ReleaseSource) (Outcome, error) {
	defer src.Clear()
	log := logging.FromContext(ctx)

	if !src.IsValid() {
		return OutcomeAborted, ErrInvalidSource
	}
	staged := o.platform.StagedPath()
	if staged == "" {
		return OutcomeAborted, ErrNoExecutable
	}

	o.reporter.Info("Downloading latest release")
	binary, err := src.ProvideLatestAppRelease(ctx)
	if err != nil {
		return OutcomeAborted, fmt.Errorf("failed to acquire latest release: %w", err)
	}

	o.reporter.Info("Staging update")
	log.Debug("staging executable", "from", binary, "to", staged)
	if err := o.copyFile(binary, staged); err != nil {
		if platform.ClassifyError(err) == platform.ErrorClassAccessDenied {
			return OutcomeAborted, &ElevationError{Path: staged, Family: o.platform.Family, Err: err}
		}
		return OutcomeAborted, fmt.Errorf("failed to stage update: %w", err)
	}
	if _, err := os.Stat(staged); errors.Is(err, fs.ErrNotExist) {
		o.reporter.Done("No update available")
		return OutcomeNoUpdate, nil
	}

	o.reporter.Info("Starting updater")
	if err := o.runner.SpawnDetached(o.platform.ExecutableDir, staged, "--"+FlagUpdaterTask); err != nil {
		_ = os.Remove(staged)
		return OutcomeAborted, fmt.Errorf("failed to start updater: %w", err)
	}
	o.reporter.Done("Update started, strata will be replaced once this process exits")
	return OutcomeHandedOff, nil
}

// RunUpdaterTask copies the running staged binary over the original until
// the original is no longer busy, then starts the original to clean up.
func (o *Orchestrator) RunUpdaterTask(ctx context.Context) error {
	log := logging.FromContext(ctx)
	if !o.platform.IsStaged() {
		log.Debug("not a staged executable, skipping updater task", "executable", o.platform.ExecutableName)
		return nil
	}
	original := o.platform.OriginalPathFromStaged()

	var deadline time.Time
	if o.maxWait > 0 {
		deadline = o.now().Add(o.maxWait)
	}

	o.reporter.Info("Replacing " + original)
	for attempt := 1; ; attempt++ {
		err := o.copyFile(o.platform.ExecutablePath, original)
		if err == nil {
			break
		}
		log.Debug("original executable busy, retrying", "attempt", attempt, "err", err)
		if !deadline.IsZero() && !o.now().Before(deadline) {
			return fmt.Errorf("%w after %d attempts: %w", ErrUpdaterTimeout, attempt, err)
		}
		if err := o.sleep(ctx, o.pollInterval); err != nil {
			return err
		}
	}

	if err := o.runner.SpawnDetached(o.platform.ExecutableDir, original, "--"+FlagClearance); err != nil {
		return fmt.Errorf("failed to start %s: %w", original, err)
	}
	return nil
}

// RunClearance removes the staged binary left beside the original. The
// staged process may still be exiting, so removal is retried briefly.
func (o *Orchestrator) RunClearance(ctx context.Context) error {
	log := logging.FromContext(ctx)
	if o.platform.IsStaged() {
		log.Debug("staged executable, skipping clearance", "executable", o.platform.ExecutableName)
		return nil
	}
	staged := o.platform.StagedPath()
	if staged == "" {
		return nil
	}

	var err error
	for attempt := 1; attempt <= clearanceAttempts; attempt++ {
		err = os.Remove(staged)
		if err == nil || errors.Is(err, fs.ErrNotExist) {
			o.reporter.Done("Update complete")
			return nil
		}
		log.Debug("staged executable busy, retrying", "attempt", attempt, "err", err)
		if err := o.sleep(ctx, o.pollInterval); err != nil {
			return err
		}
	}
	return fmt.Errorf("failed to remove %s: %w", staged, err)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
