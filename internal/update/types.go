// Package update replaces the running strata executable with the latest
// release. The work is split over three processes that hand off to each
// other through a staged copy of the binary placed beside the original.
package update

import (
	"context"
	"errors"
	"fmt"

	"github.com/adamancini/strata/internal/types"
)

var (
	ErrInvalidSource     = errors.New("update source is not valid")
	ErrNoExecutable      = errors.New("cannot determine the running executable")
	ErrElevationRequired = errors.New("elevated privileges are required to update")
	ErrUpdaterTimeout    = errors.New("timed out waiting to replace the original executable")
)

// ReleaseSource provides the executable of the latest release. It is
// implemented by *source.Source.
type ReleaseSource interface {
	IsValid() bool
	ProvideLatestAppRelease(ctx context.Context) (string, error)
	Clear()
}

// Reporter receives a status line before each phase.
type Reporter interface {
	Info(msg string)
	Done(msg string)
}

type nopReporter struct{}

func (nopReporter) Info(string) {}
func (nopReporter) Done(string) {}

// Outcome is the result of the initiating role.
type Outcome int

const (
	OutcomeAborted Outcome = iota
	// OutcomeNoUpdate means nothing was staged.
	OutcomeNoUpdate
	// OutcomeHandedOff means the staged binary was started and the current
	// process should exit.
	OutcomeHandedOff
)

func (o Outcome) String() string {
	switch o {
	case OutcomeNoUpdate:
		return "no-update"
	case OutcomeHandedOff:
		return "handed-off"
	default:
		return "aborted"
	}
}

// ElevationError is returned when the staged binary could not be written
// because of missing privileges.
type ElevationError struct {
	Path   string
	Family types.Family
	Err    error
}

func (e *ElevationError) Error() string {
	return fmt.Sprintf("cannot write %s: %v", e.Path, e.Err)
}

func (e *ElevationError) Unwrap() []error {
	return []error{ErrElevationRequired, e.Err}
}

// Hint returns the remediation for the user's platform.
func (e *ElevationError) Hint() string {
	if e.Family == types.FamilyWindows {
		return "Run strata update again from a terminal started with \"Run as administrator\"."
	}
	return "Run strata update again with sudo, or reinstall strata with the install script."
}
