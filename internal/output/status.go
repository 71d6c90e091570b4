package output

import (
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"
	"github.com/mattn/go-isatty"
	"github.com/muesli/termenv"
)

const (
	colorMuted   = lipgloss.Color("#6B7280")
	colorSuccess = lipgloss.Color("#10B981")
	colorError   = lipgloss.Color("#EF4444")
	colorWarning = lipgloss.Color("#F59E0B")
	colorAccent  = lipgloss.Color("#3B82F6")
)

// progressStep is how many bytes pass between progress lines when the
// output is not a terminal.
const progressStep = 4 << 20

// IsTerminal reports whether w is a terminal.
func IsTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// Status prints phase-labelled status lines for humans. Info, Done and
// Text are silenced by quiet; warnings and errors never are.
type Status struct {
	out   io.Writer
	err   io.Writer
	quiet bool
	tty   bool

	info    lipgloss.Style
	done    lipgloss.Style
	warn    lipgloss.Style
	fail    lipgloss.Style
	muted   lipgloss.Style
	pending string
}

// NewStatus creates a Status writing to out and errOut. Colors are used only
// when out is a terminal and noColor is false.
func NewStatus(out, errOut io.Writer, quiet, noColor bool) *Status {
	r := lipgloss.NewRenderer(out)
	tty := IsTerminal(out)
	if noColor || !tty {
		r.SetColorProfile(termenv.Ascii)
	}
	return &Status{
		out:   out,
		err:   errOut,
		quiet: quiet,
		tty:   tty,
		info:  r.NewStyle().Foreground(colorAccent).Bold(true),
		done:  r.NewStyle().Foreground(colorSuccess).Bold(true),
		warn:  r.NewStyle().Foreground(colorWarning).Bold(true),
		fail:  r.NewStyle().Foreground(colorError).Bold(true),
		muted: r.NewStyle().Foreground(colorMuted),
	}
}

// Info announces the next phase.
func (s *Status) Info(msg string) {
	if s.quiet {
		return
	}
	s.endProgress()
	_, _ = fmt.Fprintf(s.out, "%s %s\n", s.info.Render("==>"), msg)
}

// Done reports a finished operation.
func (s *Status) Done(msg string) {
	if s.quiet {
		return
	}
	s.endProgress()
	_, _ = fmt.Fprintf(s.out, "%s %s\n", s.done.Render("ok"), msg)
}

// Text prints a plain line.
func (s *Status) Text(msg string) {
	if s.quiet {
		return
	}
	s.endProgress()
	_, _ = fmt.Fprintln(s.out, msg)
}

func (s *Status) Warn(msg string) {
	s.endProgress()
	_, _ = fmt.Fprintf(s.err, "%s %s\n", s.warn.Render("warning:"), msg)
}

// Error reports a failed step with its cause.
func (s *Status) Error(step string, err error) {
	s.endProgress()
	_, _ = fmt.Fprintf(s.err, "%s %s: %v\n", s.fail.Render("error:"), step, err)
}

// Hint prints a remediation line under an error.
func (s *Status) Hint(msg string) {
	_, _ = fmt.Fprintf(s.err, "  %s\n", s.muted.Render(msg))
}

// Progress returns a callback that renders download progress for name.
// On a terminal the line is redrawn in place; otherwise a line is printed
// every few megabytes.
func (s *Status) Progress(name string) func(downloaded, total int64) {
	if s.quiet {
		return nil
	}
	var last int64
	return func(downloaded, total int64) {
		if !s.tty && downloaded-last < progressStep && (total == 0 || downloaded < total) {
			return
		}
		last = downloaded

		line := fmt.Sprintf("%s %s", name, humanize.IBytes(uint64(downloaded)))
		if total > 0 {
			line = fmt.Sprintf("%s / %s (%.0f%%)", line, humanize.IBytes(uint64(total)), float64(downloaded)*100/float64(total))
		}
		if s.tty {
			s.pending = "\r" + s.muted.Render(line) + "\x1b[K"
			_, _ = fmt.Fprint(s.out, s.pending)
			return
		}
		_, _ = fmt.Fprintln(s.out, s.muted.Render(line))
	}
}

func (s *Status) endProgress() {
	if s.pending == "" {
		return
	}
	s.pending = ""
	_, _ = fmt.Fprintln(s.out)
}
