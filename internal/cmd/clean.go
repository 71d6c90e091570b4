package cmd

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/adamancini/strata/internal/source"
	"github.com/adamancini/strata/internal/update"
)

type cleanOptions struct {
	dir       string
	olderThan time.Duration
	dryRun    bool
}

// CleanResult is printed when strata clean finishes.
type CleanResult struct {
	Removed      []source.TempDirInfo `json:"removed" yaml:"removed"`
	Kept         int                  `json:"kept" yaml:"kept"`
	StagedBinary string               `json:"staged_binary,omitempty" yaml:"staged_binary,omitempty"`
	DryRun       bool                 `json:"dry_run" yaml:"dry_run"`
}

func (r CleanResult) String() string {
	verb := "Removed"
	if r.DryRun {
		verb = "Would remove"
	}
	if len(r.Removed) == 0 && r.StagedBinary == "" {
		return fmt.Sprintf("Nothing to clean (%d recent temporary directories kept)", r.Kept)
	}

	var b strings.Builder
	var total int64
	for _, d := range r.Removed {
		total += d.Size
		fmt.Fprintf(&b, "  %s (%s, %s)\n", d.Path, humanize.IBytes(uint64(d.Size)), humanize.Time(d.CreatedAt))
	}
	if r.StagedBinary != "" {
		fmt.Fprintf(&b, "  %s (staged update)\n", r.StagedBinary)
	}
	fmt.Fprintf(&b, "%s %d temporary directories, %s", verb, len(r.Removed), humanize.IBytes(uint64(total)))
	return b.String()
}

func newCleanCmd(a *app) *cobra.Command {
	opts := cleanOptions{dir: ".", olderThan: source.DefaultStaleAge}
	cmd := &cobra.Command{
		Use:   "clean",
		Short: "Remove temporary directories left by interrupted runs",
		Long: `Remove .strata-tmp-* directories that an interrupted fetch or update
left in a working directory, and a staged update binary that was never
cleared.

Examples:
  strata clean                    # Remove leftovers older than an hour
  strata clean --older-than 0s    # Remove all leftovers
  strata clean --dry-run          # Only list what would be removed`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runClean(cmd.Context(), opts)
		},
	}

	cmd.Flags().StringVar(&opts.dir, "dir", opts.dir, "Directory to clean")
	cmd.Flags().DurationVar(&opts.olderThan, "older-than", opts.olderThan, "Only remove directories older than this")
	cmd.Flags().BoolVar(&opts.dryRun, "dry-run", false, "List what would be removed without removing it")

	return cmd
}

func (a *app) runClean(ctx context.Context, opts cleanOptions) error {
	if opts.olderThan < 0 {
		return fmt.Errorf("--older-than must not be negative, got %s", opts.olderThan)
	}
	result := CleanResult{DryRun: opts.dryRun}

	if opts.dryRun {
		dirs, err := source.ListTempDirs(opts.dir)
		if err != nil {
			return err
		}
		cutoff := a.now().Add(-opts.olderThan)
		for _, d := range dirs {
			if d.CreatedAt.After(cutoff) {
				result.Kept++
				continue
			}
			result.Removed = append(result.Removed, d)
		}
	} else {
		pruned, err := source.Prune(opts.dir, opts.olderThan, a.now())
		if err != nil {
			return err
		}
		result.Removed = pruned.Deleted
		result.Kept = pruned.Kept
	}

	if staged := a.platform.StagedPath(); staged != "" && !a.platform.IsStaged() {
		if _, err := os.Stat(staged); err == nil {
			result.StagedBinary = staged
			if !opts.dryRun {
				// Leftover from an aborted handshake, not a finished update.
				if err := a.orchestrator(update.WithReporter(nil)).RunClearance(ctx); err != nil {
					return err
				}
			}
		} else if !errors.Is(err, fs.ErrNotExist) {
			a.log.Warn("cannot inspect staged binary", "path", staged, "err", err)
		}
	}

	return a.writer.Write(result)
}
