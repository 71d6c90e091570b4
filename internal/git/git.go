// Package git acquires remote repositories, preferring a hosted branch
// archive and falling back to git clone.
package git

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/adamancini/strata/internal/archive"
	"github.com/adamancini/strata/internal/logging"
	"github.com/adamancini/strata/internal/process"
	"github.com/adamancini/strata/internal/transport"
)

// ArchiveFileName is the temporary file the branch archive is downloaded to,
// inside the output directory.
const ArchiveFileName = ".strata-tmp-downloaded-repo.zip"

// DefaultBranches are tried in order for archive downloads.
var DefaultBranches = []string{"master", "main"}

var (
	// ErrGitUnavailable means the git client is not installed or not on PATH.
	ErrGitUnavailable = errors.New("git is not installed or is not available in PATH")
	// ErrNotCloned means git reported success but no directory exists.
	ErrNotCloned = errors.New("git repository was not cloned")
	// ErrInvalidURL is returned for locators that are not repository URLs.
	ErrInvalidURL = errors.New("invalid git URL")

	errNoArchive = errors.New("no branch archive could be downloaded and extracted")
)

// CloneError wraps a failed git clone.
type CloneError struct {
	URL string
	Err error
}

func (e *CloneError) Error() string {
	return fmt.Sprintf("failed to clone git repository from %s: %v", e.URL, e.Err)
}

func (e *CloneError) Unwrap() error {
	return e.Err
}

// DownloadFunc downloads url into a new file at dest.
type DownloadFunc func(ctx context.Context, url, dest string) error

// ExtractFunc unpacks the archive at src into dest.
type ExtractFunc func(src, dest string) error

// Acquirer materializes a repository into a directory.
type Acquirer struct {
	runner   process.Runner
	download DownloadFunc
	extract  ExtractFunc
	branches []string
	workDir  string
}

// Option configures an Acquirer.
type Option func(*Acquirer)

// WithRunner sets the runner used for git commands (for testing).
func WithRunner(r process.Runner) Option {
	return func(a *Acquirer) { a.runner = r }
}

// WithDownloader replaces the archive download function.
func WithDownloader(fn DownloadFunc) Option {
	return func(a *Acquirer) { a.download = fn }
}

// WithExtractor replaces the archive extraction function.
func WithExtractor(fn ExtractFunc) Option {
	return func(a *Acquirer) { a.extract = fn }
}

// WithBranches sets the branches tried for archive downloads.
func WithBranches(branches ...string) Option {
	return func(a *Acquirer) { a.branches = branches }
}

// WithWorkDir sets the directory git commands run in.
func WithWorkDir(dir string) Option {
	return func(a *Acquirer) { a.workDir = dir }
}

// NewAcquirer creates an Acquirer using the shared HTTP client and the
// system git.
func NewAcquirer(opts ...Option) *Acquirer {
	a := &Acquirer{
		runner: process.NewRunner(),
		download: func(ctx context.Context, url, dest string) error {
			return transport.DownloadToFile(ctx, url, dest, nil)
		},
		extract: func(src, dest string) error {
			return archive.Extract(src, dest, archive.StripSingleRoot())
		},
		branches: DefaultBranches,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// GitAvailable checks if git is available on the system.
func (a *Acquirer) GitAvailable() bool {
	return process.Available(a.runner, a.workDir, "git")
}

// Acquire populates outputDir with the repository at repoURL. github.com
// repositories are fetched as branch archives first; anything else, or an
// archive failure, falls back to git clone.
func (a *Acquirer) Acquire(ctx context.Context, repoURL, outputDir string) error {
	if !IsValidURL(repoURL) {
		return fmt.Errorf("%w: %s", ErrInvalidURL, repoURL)
	}
	if strings.TrimSpace(outputDir) == "" {
		return errors.New("git repository output path cannot be empty")
	}

	log := logging.FromContext(ctx)

	err := a.acquireArchive(ctx, repoURL, outputDir)
	if err == nil {
		return nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	log.Debug("archive download unavailable, cloning", "url", repoURL, "reason", err)

	return a.clone(ctx, repoURL, outputDir)
}

func (a *Acquirer) acquireArchive(ctx context.Context, repoURL, outputDir string) error {
	if githubBase(repoURL) == "" {
		return fmt.Errorf("archive download is only supported for %s repositories", githubDomain)
	}

	log := logging.FromContext(ctx)
	archivePath := filepath.Join(outputDir, ArchiveFileName)

	var errs []error
	for _, branch := range a.branches {
		if err := ctx.Err(); err != nil {
			return err
		}
		archiveURL := ArchiveURL(repoURL, branch)
		if archiveURL == "" {
			continue
		}

		log.Debug("downloading branch archive", "branch", branch, "url", archiveURL)
		if err := a.download(ctx, archiveURL, archivePath); err != nil {
			_ = os.Remove(archivePath)
			errs = append(errs, fmt.Errorf("%s: %w", branch, err))
			continue
		}
		if info, err := os.Stat(archivePath); err != nil || !info.Mode().IsRegular() {
			errs = append(errs, fmt.Errorf("%s: archive file missing after download", branch))
			continue
		}

		extractErr := a.extract(archivePath, outputDir)
		_ = os.Remove(archivePath)
		if extractErr == nil {
			log.Debug("extracted branch archive", "branch", branch, "dir", outputDir)
			return nil
		}
		errs = append(errs, fmt.Errorf("%s: %w", branch, extractErr))
		if err := resetDir(outputDir); err != nil {
			return errors.Join(append(errs, err)...)
		}
	}

	return errors.Join(append([]error{errNoArchive}, errs...)...)
}

func (a *Acquirer) clone(ctx context.Context, repoURL, outputDir string) error {
	if !a.GitAvailable() {
		return ErrGitUnavailable
	}

	logging.FromContext(ctx).Debug("running git clone", "url", repoURL, "dir", outputDir)
	if err := a.runner.RunForeground(a.workDir, "git", "clone", repoURL, outputDir); err != nil {
		return &CloneError{URL: repoURL, Err: err}
	}

	if info, err := os.Stat(outputDir); err != nil || !info.IsDir() {
		return fmt.Errorf("%w to %s", ErrNotCloned, outputDir)
	}
	return nil
}

// resetDir empties dir, leaving it in place.
func resetDir(dir string) error {
	if err := os.RemoveAll(dir); err != nil {
		return fmt.Errorf("failed to reset %s: %w", dir, err)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to reset %s: %w", dir, err)
	}
	return nil
}
