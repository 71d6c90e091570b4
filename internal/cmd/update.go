package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/adamancini/strata/internal/interactive"
	"github.com/adamancini/strata/internal/source"
	"github.com/adamancini/strata/internal/update"
)

type updateOptions struct {
	check bool
	yes   bool
	force bool
}

// UpdateResult is printed when strata update finishes.
type UpdateResult struct {
	update.UpdateInfo `yaml:",inline"`
	Outcome           string `json:"outcome" yaml:"outcome"`
}

func (r UpdateResult) String() string {
	switch r.Outcome {
	case update.OutcomeHandedOff.String():
		return fmt.Sprintf("Updating strata %s -> %s", r.CurrentVersion, r.LatestVersion)
	case "cancelled":
		return "Update cancelled"
	default:
		return r.UpdateInfo.String()
	}
}

func newUpdateCmd(a *app) *cobra.Command {
	var opts updateOptions
	cmd := &cobra.Command{
		Use:   "update",
		Short: "Update strata to the latest release",
		Long: `Download the latest strata release for this platform and replace the
running executable with it.

The new binary is staged next to the current one as latest-<name> and
finishes the replacement once this process has exited.

Examples:
  strata update            # Update if a newer release exists
  strata update --check    # Only report whether an update is available
  strata update --yes      # Do not ask for confirmation`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runUpdate(cmd.Context(), opts)
		},
	}

	cmd.Flags().BoolVar(&opts.check, "check", false, "Check for updates without installing")
	cmd.Flags().BoolVarP(&opts.yes, "yes", "y", false, "Do not ask for confirmation")
	cmd.Flags().BoolVar(&opts.force, "force", false, "Reinstall even if already up to date")

	return cmd
}

func (a *app) runUpdate(ctx context.Context, opts updateOptions) error {
	src := source.NewLatestRelease(a.platform,
		source.WithReleaseURL(a.cfg.Release.URL),
		source.WithWorkDir(a.workDir),
		source.WithProgress(a.status.Progress("Downloading")),
	)
	defer src.Clear()

	a.status.Info("Checking for updates")
	rel, err := src.FetchRelease(ctx)
	if err != nil {
		return err
	}
	info, err := update.Check(a.build.Version, rel.TagName, rel.HTMLURL)
	if err != nil {
		return err
	}

	if opts.check {
		return a.writer.Write(info)
	}
	if !info.Available && !opts.force {
		return a.writer.Write(UpdateResult{UpdateInfo: *info, Outcome: update.OutcomeNoUpdate.String()})
	}

	if !opts.yes && a.isTerminal() {
		prompter := interactive.NewPrompterWithIO(a.stdin, a.stderr)
		if !prompter.ConfirmUpdate(info.CurrentVersion, info.LatestVersion, a.platform.ExecutablePath) {
			return a.writer.Write(UpdateResult{UpdateInfo: *info, Outcome: "cancelled"})
		}
	}

	outcome, err := a.orchestrator().Initiate(ctx, src)
	if err != nil {
		var elevErr *update.ElevationError
		if errors.As(err, &elevErr) {
			a.status.Error("update", err)
			a.status.Hint(elevErr.Hint())
			return ErrReported
		}
		return err
	}
	return a.writer.Write(UpdateResult{UpdateInfo: *info, Outcome: outcome.String()})
}
