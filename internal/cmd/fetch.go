package cmd

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/adamancini/strata/internal/fsutil"
	"github.com/adamancini/strata/internal/git"
	"github.com/adamancini/strata/internal/source"
	"github.com/adamancini/strata/internal/types"
)

// FetchResult is printed when strata fetch finishes.
type FetchResult struct {
	Source string `json:"source" yaml:"source"`
	Kind   string `json:"kind" yaml:"kind"`
	Target string `json:"target" yaml:"target"`
	Files  int    `json:"files" yaml:"files"`
}

func (r FetchResult) String() string {
	return fmt.Sprintf("Fetched %d files from %s into %s", r.Files, r.Source, r.Target)
}

func newFetchCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "fetch <source> [target]",
		Short: "Copy a local directory or git repository into a new directory",
		Long: `Materialize a project source into target.

The source is a local path (starting with /, . or ~) or a git URL
(https://host/owner/repo.git or git@host:owner/repo.git). GitHub
repositories are downloaded as branch archives when possible and cloned
with git otherwise. The target must not exist or must be empty; it defaults
to the repository or directory name.

Examples:
  strata fetch https://github.com/adamancini/strata.git
  strata fetch git@github.com:adamancini/strata.git ./strata-src
  strata fetch ~/templates/service ./my-service`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			target := ""
			if len(args) == 2 {
				target = args[1]
			}
			return a.runFetch(cmd.Context(), args[0], target)
		},
	}
}

func (a *app) runFetch(ctx context.Context, raw, target string) error {
	src := source.New(a.platform, raw,
		source.WithWorkDir(a.workDir),
		source.WithAcquirer(git.NewAcquirer(
			git.WithRunner(a.runner),
			git.WithBranches(a.cfg.Git.Branches...),
		)),
		source.WithRetry(a.cfg.Git.Attempts, a.cfg.Git.InitialDelay.Std()),
	)
	if !src.IsValid() {
		return fmt.Errorf("%w: %q is neither a git URL nor a local path", source.ErrInvalidSource, raw)
	}
	defer src.Clear()

	if target == "" {
		target = defaultTarget(src.URL)
		if target == "" {
			return errors.New("cannot derive a target directory name, pass one explicitly")
		}
	}
	target, err := filepath.Abs(target)
	if err != nil {
		return fmt.Errorf("invalid target: %w", err)
	}
	if err := fsutil.EnsureEmptyDir(target); err != nil {
		return err
	}

	a.status.Info(fmt.Sprintf("Fetching %s (%s)", raw, src.Kind))
	dir, err := src.ProvideDir(ctx)
	if err != nil {
		return err
	}
	if src.Kind == types.SourceKindLocalPath && isWithin(target, dir) {
		return fmt.Errorf("target %s is inside the source directory", target)
	}

	a.status.Info("Copying into " + target)
	files, err := fsutil.CopyDir(dir, target, ".git")
	if err != nil {
		return err
	}

	return a.writer.Write(FetchResult{
		Source: raw,
		Kind:   src.Kind.String(),
		Target: target,
		Files:  files,
	})
}

// defaultTarget derives a directory name from a git URL or local path.
func defaultTarget(locator string) string {
	name := strings.TrimRight(locator, `/\`)
	if i := strings.LastIndexAny(name, `/\:`); i >= 0 {
		name = name[i+1:]
	}
	name = strings.TrimSuffix(name, types.GitSuffix)
	switch name {
	case "", ".", "..", "~":
		return ""
	}
	return name
}

func isWithin(path, dir string) bool {
	rel, err := filepath.Rel(dir, path)
	if err != nil {
		return false
	}
	return rel == "." || (rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)))
}
