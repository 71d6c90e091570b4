// Package process launches child processes with a controlled working
// directory.
package process

import (
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

// ErrEmptyCommand is returned when the argument vector or program name is empty.
var ErrEmptyCommand = errors.New("command is empty")

// SpawnError means the program could not be started at all.
type SpawnError struct {
	Program string
	Err     error
}

func (e *SpawnError) Error() string {
	return fmt.Sprintf("failed to start %s: %v", e.Program, e.Err)
}

func (e *SpawnError) Unwrap() error {
	return e.Err
}

// ExitError means the program ran and exited with a non-zero status.
type ExitError struct {
	Program string
	Code    int
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("%s exited with status %d", e.Program, e.Code)
}

// ExitCode returns the exit status carried by err, 0 for nil and -1 if err
// is not an exit error.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	return -1
}

// Runner is an interface for running external commands.
// This allows for mocking in tests.
type Runner interface {
	// RunForeground blocks and inherits the standard streams.
	RunForeground(dir string, argv ...string) error
	// RunSilent blocks and discards all output.
	RunSilent(dir string, argv ...string) error
	// SpawnDetached starts the process and returns without waiting.
	SpawnDetached(dir string, argv ...string) error
}

// DefaultRunner uses os/exec to run commands.
type DefaultRunner struct {
	Stdout io.Writer
	Stderr io.Writer
}

// NewRunner creates a DefaultRunner wired to the process standard streams.
func NewRunner() *DefaultRunner {
	return &DefaultRunner{Stdout: os.Stdout, Stderr: os.Stderr}
}

// RunForeground executes a command and waits for it, streaming its output.
func (r *DefaultRunner) RunForeground(dir string, argv ...string) error {
	cmd, err := Command(dir, argv...)
	if err != nil {
		return err
	}
	cmd.Stdin = os.Stdin
	cmd.Stdout = r.Stdout
	cmd.Stderr = r.Stderr
	return wait(cmd, argv[0])
}

// RunSilent executes a command and waits for it with output discarded.
func (r *DefaultRunner) RunSilent(dir string, argv ...string) error {
	cmd, err := Command(dir, argv...)
	if err != nil {
		return err
	}
	cmd.Stdout = io.Discard
	cmd.Stderr = io.Discard
	return wait(cmd, argv[0])
}

// SpawnDetached starts a command in its own session and releases it.
func (r *DefaultRunner) SpawnDetached(dir string, argv ...string) error {
	cmd, err := Command(dir, argv...)
	if err != nil {
		return err
	}
	detach(cmd)
	if err := cmd.Start(); err != nil {
		return &SpawnError{Program: argv[0], Err: err}
	}
	return cmd.Process.Release()
}

// Command prepares an *exec.Cmd with a normalized working directory and a
// resolved program path.
func Command(dir string, argv ...string) (*exec.Cmd, error) {
	if len(argv) == 0 {
		return nil, ErrEmptyCommand
	}
	name := strings.TrimSpace(argv[0])
	if name == "" {
		return nil, ErrEmptyCommand
	}

	workDir := ResolveDir(dir)
	cmd := exec.Command(ResolveProgram(workDir, name), argv[1:]...)
	cmd.Dir = workDir
	return cmd, nil
}

// ResolveDir returns dir if it is a directory, the current working directory
// otherwise. The result is absolute and symlink-resolved where possible.
func ResolveDir(dir string) string {
	if info, err := os.Stat(dir); dir == "" || err != nil || !info.IsDir() {
		cwd, err := os.Getwd()
		if err != nil {
			cwd = "."
		}
		dir = cwd
	}
	if abs, err := filepath.Abs(dir); err == nil {
		dir = abs
	}
	if resolved, err := filepath.EvalSymlinks(dir); err == nil {
		dir = resolved
	}
	return dir
}

// ResolveProgram resolves a program name against dir. Absolute paths are
// used verbatim; relative paths with a separator are joined to dir only when
// that file exists; anything else is left to the OS search path.
func ResolveProgram(dir, name string) string {
	if filepath.IsAbs(name) {
		return name
	}
	// ./tool and bin/../tool count as relative paths, so look for the
	// separator before Join cleans them.
	if strings.ContainsAny(name, `/\`) {
		full := filepath.Join(dir, name)
		if _, err := os.Stat(full); err == nil {
			return full
		}
	}
	return name
}

func wait(cmd *exec.Cmd, program string) error {
	if err := cmd.Start(); err != nil {
		return &SpawnError{Program: program, Err: err}
	}
	if err := cmd.Wait(); err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return &ExitError{Program: program, Code: exitErr.ExitCode()}
		}
		return fmt.Errorf("waiting for %s: %w", program, err)
	}
	return nil
}
