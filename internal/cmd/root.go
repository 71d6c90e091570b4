// Package cmd implements the strata command line.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"runtime"
	"time"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/adamancini/strata/internal/config"
	"github.com/adamancini/strata/internal/interactive"
	"github.com/adamancini/strata/internal/logging"
	"github.com/adamancini/strata/internal/output"
	"github.com/adamancini/strata/internal/platform"
	"github.com/adamancini/strata/internal/process"
	"github.com/adamancini/strata/internal/transport"
	"github.com/adamancini/strata/internal/update"
)

var (
	// ErrReported means the error has already been shown to the user.
	ErrReported = errors.New("error already reported")

	ErrUnsupportedPlatform = errors.New("unsupported platform")
)

// BuildInfo identifies the running binary.
type BuildInfo struct {
	Version string `json:"version" yaml:"version"`
	Commit  string `json:"commit" yaml:"commit"`
	Date    string `json:"date" yaml:"date"`
}

func (b BuildInfo) String() string {
	return fmt.Sprintf("strata version %s (commit %s, built %s)", b.Version, b.Commit, b.Date)
}

// app carries the flags and everything the root pre-run resolves from them.
type app struct {
	build  BuildInfo
	stdin  io.Reader
	stdout io.Writer
	stderr io.Writer

	// Global flags
	outputFormat string
	configPath   string
	verbose      bool
	quiet        bool
	noColor      bool

	// Internal re-invocation flags
	updaterTask bool
	clearance   bool

	cfg      *config.Config
	platform platform.Platform
	status   *output.Status
	writer   *output.Writer
	log      *log.Logger

	detectPlatform func() platform.Platform
	runner         process.Runner
	isTerminal     func() bool
	now            func() time.Time
	// workDir holds temporary acquisition directories; "" is the cwd.
	workDir string
}

func newApp(build BuildInfo, stdin io.Reader, stdout, stderr io.Writer) *app {
	return &app{
		build:          build,
		stdin:          stdin,
		stdout:         stdout,
		stderr:         stderr,
		detectPlatform: platform.Detect,
		runner:         &process.DefaultRunner{Stdout: stderr, Stderr: stderr},
		isTerminal:     interactive.IsTerminal,
		now:            time.Now,
	}
}

// Execute runs the strata command line.
func Execute(ctx context.Context, version, commit, date string) error {
	a := newApp(BuildInfo{Version: version, Commit: commit, Date: date}, os.Stdin, os.Stdout, os.Stderr)
	return a.rootCmd().ExecuteContext(ctx)
}

func (a *app) rootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "strata",
		Short: "Fetch project sources and keep strata up to date",
		Long: `strata materializes project sources from local directories or git
repositories, and updates itself in place from the latest release.`,
		Version:           a.build.Version,
		SilenceUsage:      true,
		SilenceErrors:     true,
		Args:              cobra.NoArgs,
		PersistentPreRunE: a.preRun,
		RunE:              a.runRoot,
	}
	rootCmd.SetIn(a.stdin)
	rootCmd.SetOut(a.stdout)
	rootCmd.SetErr(a.stderr)

	// Global flags
	rootCmd.PersistentFlags().StringVarP(&a.outputFormat, "output", "o", "text", "Output format: text, json, yaml")
	rootCmd.PersistentFlags().StringVar(&a.configPath, "config", "", "Path to config file")
	rootCmd.PersistentFlags().BoolVarP(&a.verbose, "verbose", "v", false, "Verbose output")
	rootCmd.PersistentFlags().BoolVarP(&a.quiet, "quiet", "q", false, "Quiet mode (errors only)")
	rootCmd.PersistentFlags().BoolVar(&a.noColor, "no-color", false, "Disable colored output")

	rootCmd.Flags().BoolVar(&a.updaterTask, update.FlagUpdaterTask, false, "Replace the original executable (internal)")
	rootCmd.Flags().BoolVar(&a.clearance, update.FlagClearance, false, "Remove the staged executable (internal)")
	_ = rootCmd.Flags().MarkHidden(update.FlagUpdaterTask)
	_ = rootCmd.Flags().MarkHidden(update.FlagClearance)

	rootCmd.AddCommand(newUpdateCmd(a))
	rootCmd.AddCommand(newFetchCmd(a))
	rootCmd.AddCommand(newCleanCmd(a))
	rootCmd.AddCommand(newVersionCmd(a))
	rootCmd.AddCommand(newCompletionCmd())

	_ = rootCmd.RegisterFlagCompletionFunc("output", func(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
		return []string{"text", "json", "yaml"}, cobra.ShellCompDirectiveNoFileComp
	})

	return rootCmd
}

// preRun resolves output, logging, platform and config. An unsupported
// platform stops every command before it does anything.
func (a *app) preRun(cmd *cobra.Command, args []string) error {
	format, err := output.ParseFormat(a.outputFormat)
	if err != nil {
		return err
	}

	a.log = logging.NewLogger(a.stderr)
	logging.Configure(a.log, logging.Flags{Verbose: a.verbose, Quiet: a.quiet, NoColor: a.noColor})
	cmd.SetContext(logging.WithLogger(cmd.Context(), a.log))

	statusOut := a.stdout
	if format.IsStructured() {
		statusOut = a.stderr
	}
	a.status = output.NewStatus(statusOut, a.stderr, a.quiet, a.noColor)
	a.writer = output.NewWriter(a.stdout, format)

	a.platform = a.detectPlatform()
	if !a.platform.IsValid() {
		return fmt.Errorf("%w: %s/%s (%s)", ErrUnsupportedPlatform, runtime.GOOS, runtime.GOARCH, a.platform.Family)
	}

	cfg, path, err := config.Resolve(a.configPath)
	if err != nil {
		return err
	}
	if path != "" {
		a.log.Debug("loaded config", "path", path)
	}
	a.cfg = cfg

	if err := transport.Configure(cfg.TransportOptions()); err != nil && !errors.Is(err, transport.ErrConfigured) {
		return err
	}
	return nil
}

// runRoot handles the internal re-invocations of the update handshake and
// shows help otherwise.
func (a *app) runRoot(cmd *cobra.Command, args []string) error {
	inv := update.InvocationFromFlags(a.updaterTask, a.clearance)
	if inv == update.InvocationNormal {
		return cmd.Help()
	}
	role := update.ResolveRole(a.platform.IsStaged(), inv)
	a.log.Debug("update handshake", "role", role, "executable", a.platform.ExecutablePath)
	return a.orchestrator().Run(cmd.Context(), role)
}

func (a *app) orchestrator(opts ...update.Option) *update.Orchestrator {
	return update.NewOrchestrator(a.platform, append([]update.Option{
		update.WithRunner(a.runner),
		update.WithReporter(a.status),
		update.WithPollInterval(a.cfg.Updater.PollInterval.Std()),
		update.WithMaxWait(a.cfg.Updater.MaxWait.Std()),
	}, opts...)...)
}
