// Package interactive provides interactive prompts for user confirmation.
package interactive

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"
)

// Response represents the user's response to a prompt.
type Response int

const (
	ResponseNo Response = iota
	ResponseYes
	ResponseQuit
)

// Prompter asks yes/no questions.
type Prompter struct {
	out     io.Writer
	scanner *bufio.Scanner
}

// NewPrompter creates a prompter with stdin/stdout.
func NewPrompter() *Prompter {
	return NewPrompterWithIO(os.Stdin, os.Stdout)
}

// NewPrompterWithIO creates a prompter with custom input/output (for testing).
func NewPrompterWithIO(in io.Reader, out io.Writer) *Prompter {
	return &Prompter{
		out:     out,
		scanner: bufio.NewScanner(in),
	}
}

// IsTerminal checks if stdin is a terminal (TTY).
func IsTerminal() bool {
	return term.IsTerminal(int(os.Stdin.Fd()))
}

// prompt displays a question and reads the response. An empty answer
// selects def; end of input quits.
func (p *Prompter) prompt(def Response, format string, args ...any) Response {
	choices := "[y/N]"
	if def == ResponseYes {
		choices = "[Y/n]"
	}
	_, _ = fmt.Fprintf(p.out, format, args...)
	_, _ = fmt.Fprintf(p.out, " %s ", choices)

	if !p.scanner.Scan() {
		_, _ = fmt.Fprintln(p.out)
		return ResponseQuit
	}

	switch strings.ToLower(strings.TrimSpace(p.scanner.Text())) {
	case "":
		return def
	case "y", "yes":
		return ResponseYes
	case "n", "no":
		return ResponseNo
	case "q", "quit":
		return ResponseQuit
	default:
		_, _ = fmt.Fprintln(p.out, "Invalid response, assuming no.")
		return ResponseNo
	}
}

// Confirm asks a yes/no question and reports whether the user agreed.
func (p *Prompter) Confirm(question string, defaultYes bool) bool {
	def := ResponseNo
	if defaultYes {
		def = ResponseYes
	}
	return p.prompt(def, "%s", question) == ResponseYes
}

// ConfirmUpdate asks before replacing the installed executable.
func (p *Prompter) ConfirmUpdate(current, latest, path string) bool {
	_, _ = fmt.Fprintf(p.out, "strata %s will be replaced by %s\n", current, latest)
	_, _ = fmt.Fprintf(p.out, "  %s\n", path)
	return p.Confirm("Proceed with update?", true)
}
