// Package source materializes content from a local directory, a git
// repository, or the latest published strata release.
package source

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/adamancini/strata/internal/git"
	"github.com/adamancini/strata/internal/platform"
	"github.com/adamancini/strata/internal/transport"
	"github.com/adamancini/strata/internal/types"
)

const (
	// TempDirPrefix starts the name of every temporary directory a Source
	// creates in its working directory.
	TempDirPrefix = ".strata-tmp"

	DefaultReleaseURL   = "https://api.github.com/repos/adamancini/strata/releases/latest"
	DefaultAttempts     = 3
	DefaultInitialDelay = time.Second

	purposeGit           = "source-git"
	purposeLatestRelease = "source-latest-app-release"
)

var (
	ErrInvalidSource    = errors.New("invalid source")
	ErrNotDirectory     = errors.New("local source must be a directory")
	ErrNoAssets         = errors.New("no release assets were found")
	ErrNoMatchingAsset  = errors.New("no matching release asset found for the current platform")
	ErrBinaryNotFound   = errors.New("binary not found after extraction")
	ErrNotLatestRelease = errors.New("source is not the latest release")
)

// Acquirer populates a directory from a repository URL.
type Acquirer interface {
	Acquire(ctx context.Context, url, outputDir string) error
}

// FetchJSONFunc decodes the JSON document at url into v.
type FetchJSONFunc func(ctx context.Context, url string, v any) error

// DownloadFunc downloads url into a new file at dest.
type DownloadFunc func(ctx context.Context, url, dest string) error

// Source describes where content comes from and owns any temporary
// directory created to hold it.
type Source struct {
	Kind types.SourceKind
	URL  string

	platform platform.Platform
	release  *Release
	dir      *tempDir
	cleanup  runtime.Cleanup

	workDir      string
	acquirer     Acquirer
	fetchJSON    FetchJSONFunc
	download     DownloadFunc
	progress     transport.ProgressFunc
	attempts     int
	initialDelay time.Duration
	timer        backoff.Timer
	now          func() time.Time
}

// Option configures a Source.
type Option func(*Source)

// WithWorkDir sets the directory temporary directories are created in.
// Defaults to the current working directory.
func WithWorkDir(dir string) Option {
	return func(s *Source) { s.workDir = dir }
}

// WithReleaseURL overrides the release metadata endpoint.
func WithReleaseURL(url string) Option {
	return func(s *Source) {
		if s.Kind == types.SourceKindLatestRelease && url != "" {
			s.URL = url
		}
	}
}

// WithAcquirer sets the repository acquirer used for git sources.
func WithAcquirer(a Acquirer) Option {
	return func(s *Source) { s.acquirer = a }
}

// WithFetchJSON replaces the release metadata fetcher.
func WithFetchJSON(fn FetchJSONFunc) Option {
	return func(s *Source) { s.fetchJSON = fn }
}

// WithDownloader replaces the release asset downloader.
func WithDownloader(fn DownloadFunc) Option {
	return func(s *Source) { s.download = fn }
}

// WithProgress reports release asset download progress.
func WithProgress(fn transport.ProgressFunc) Option {
	return func(s *Source) { s.progress = fn }
}

// WithRetry sets the number of git acquisition attempts and the delay
// before the second one. The delay doubles after every failure.
func WithRetry(attempts int, initialDelay time.Duration) Option {
	return func(s *Source) {
		if attempts > 0 {
			s.attempts = attempts
		}
		if initialDelay > 0 {
			s.initialDelay = initialDelay
		}
	}
}

// WithTimer sets the timer used between retry attempts (for testing).
func WithTimer(t backoff.Timer) Option {
	return func(s *Source) { s.timer = t }
}

// WithClock sets the time source used to name temporary directories.
func WithClock(now func() time.Time) Option {
	return func(s *Source) { s.now = now }
}

// Classify returns the kind of source a locator string describes.
func Classify(raw string) types.SourceKind {
	switch {
	case raw == "":
		return types.SourceKindUnknown
	case git.IsSSHURL(raw):
		return types.SourceKindGitSSH
	case git.IsHTTPSURL(raw):
		return types.SourceKindGitHTTPS
	case strings.HasPrefix(raw, "/"), strings.HasPrefix(raw, "."), strings.HasPrefix(raw, "~"), filepath.IsAbs(raw):
		return types.SourceKindLocalPath
	default:
		return types.SourceKindUnknown
	}
}

// New classifies raw and returns a Source for it.
func New(p platform.Platform, raw string, opts ...Option) *Source {
	raw = strings.TrimSpace(raw)
	return newSource(p, Classify(raw), raw, opts)
}

// NewLatestRelease returns a Source for the latest published strata release.
func NewLatestRelease(p platform.Platform, opts ...Option) *Source {
	return newSource(p, types.SourceKindLatestRelease, DefaultReleaseURL, opts)
}

func newSource(p platform.Platform, kind types.SourceKind, url string, opts []Option) *Source {
	s := &Source{
		Kind:         kind,
		URL:          url,
		platform:     p,
		dir:          &tempDir{},
		fetchJSON:    transport.FetchJSON,
		attempts:     DefaultAttempts,
		initialDelay: DefaultInitialDelay,
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.acquirer == nil {
		s.acquirer = git.NewAcquirer()
	}
	if s.download == nil {
		progress := s.progress
		s.download = func(ctx context.Context, url, dest string) error {
			return transport.DownloadToFile(ctx, url, dest, progress)
		}
	}
	// Removes a downloaded directory the caller forgot to Clear.
	s.cleanup = runtime.AddCleanup(s, func(d *tempDir) { d.clear() }, s.dir)
	return s
}

// IsValid returns true if the kind is known and the locator is not blank.
func (s *Source) IsValid() bool {
	return s.Kind.IsValid() && strings.TrimSpace(s.URL) != ""
}

// Dir returns the materialized directory, or "" before ProvideDir succeeds
// and after Clear.
func (s *Source) Dir() string {
	if s.dir.cleaned {
		return ""
	}
	return s.dir.path
}

// Release returns the release metadata fetched by ProvideDir for
// latest-release sources, or nil.
func (s *Source) Release() *Release {
	return s.release
}

// ProvideDir materializes the source and returns its directory. Local
// directories are returned as-is; remote content is placed in a new
// temporary directory owned by the Source until Clear.
func (s *Source) ProvideDir(ctx context.Context) (string, error) {
	if dir := s.Dir(); dir != "" {
		return dir, nil
	}
	if !s.IsValid() {
		return "", fmt.Errorf("%w: %q (%s)", ErrInvalidSource, s.URL, s.Kind)
	}

	switch s.Kind {
	case types.SourceKindLocalPath:
		return s.provideLocal()
	case types.SourceKindGitHTTPS, types.SourceKindGitSSH:
		return s.provideGit(ctx)
	case types.SourceKindLatestRelease:
		return s.provideLatestRelease(ctx)
	default:
		return "", fmt.Errorf("%w: %s", ErrInvalidSource, s.Kind)
	}
}

// Clear removes the temporary directory if the Source owns one. It is safe
// to call any number of times; local directories are never removed.
func (s *Source) Clear() {
	if s.dir.clear() {
		s.cleanup.Stop()
	}
}

func (s *Source) provideLocal() (string, error) {
	path, err := expandHome(s.URL)
	if err != nil {
		return "", err
	}
	info, err := os.Stat(path)
	if err != nil {
		return "", fmt.Errorf("local source does not exist: %s: %w", path, err)
	}
	if !info.IsDir() {
		return "", fmt.Errorf("%w: %s", ErrNotDirectory, path)
	}
	if abs, err := filepath.Abs(path); err == nil {
		path = abs
	}

	s.dir.set(path, false)
	return path, nil
}

func (s *Source) provideGit(ctx context.Context) (string, error) {
	dir, err := s.createTempDir(purposeGit)
	if err != nil {
		return "", err
	}

	if err := s.acquireWithRetry(ctx, dir); err != nil {
		_ = os.RemoveAll(dir)
		return "", fmt.Errorf("failed to download git source: %w", err)
	}
	if info, err := os.Stat(dir); err != nil || !info.IsDir() {
		_ = os.RemoveAll(dir)
		return "", fmt.Errorf("git source was not downloaded successfully: %w", git.ErrNotCloned)
	}

	s.dir.set(dir, true)
	return dir, nil
}

// createTempDir creates <workDir>/.strata-tmp-<purpose>-<unix>, appending
// -1, -2, ... if that name is taken.
func (s *Source) createTempDir(purpose string) (string, error) {
	workDir := s.workDir
	if workDir == "" {
		cwd, err := os.Getwd()
		if err != nil {
			return "", fmt.Errorf("failed to determine working directory: %w", err)
		}
		workDir = cwd
	}
	if abs, err := filepath.Abs(workDir); err == nil {
		workDir = abs
	}

	base := filepath.Join(workDir, fmt.Sprintf("%s-%s-%d", TempDirPrefix, purpose, s.now().Unix()))
	dir := base
	for i := 1; ; i++ {
		err := os.Mkdir(dir, 0o755)
		if err == nil {
			return dir, nil
		}
		if !errors.Is(err, fs.ErrExist) || i > 100 {
			return "", fmt.Errorf("failed to create temporary directory: %w", err)
		}
		dir = fmt.Sprintf("%s-%d", base, i)
	}
}

func expandHome(path string) (string, error) {
	if path != "~" && !strings.HasPrefix(path, "~/") && !strings.HasPrefix(path, `~\`) {
		return path, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to expand %s: %w", path, err)
	}
	return filepath.Join(home, path[1:]), nil
}

// tempDir is kept apart from Source so the cleanup registered on the
// Source can reach it without keeping the Source alive.
type tempDir struct {
	path    string
	owned   bool
	cleaned bool
}

func (d *tempDir) set(path string, owned bool) {
	d.path = path
	d.owned = owned
	d.cleaned = false
}

// clear removes an owned directory once. It reports whether it did.
func (d *tempDir) clear() bool {
	if d.cleaned || !d.owned || d.path == "" {
		return false
	}
	if _, err := os.Stat(d.path); err != nil {
		return false
	}
	if err := os.RemoveAll(d.path); err != nil {
		return false
	}
	d.cleaned = true
	return true
}
