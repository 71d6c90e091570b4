package platform

import (
	"errors"
	"io/fs"
)

// ErrorClass is a coarse classification of an OS error.
type ErrorClass int

const (
	// ErrorClassOther is any error that is not an access problem.
	ErrorClassOther ErrorClass = iota
	// ErrorClassAccessDenied means the operation needs elevated privileges.
	ErrorClassAccessDenied
)

// String returns a human-readable name for the class.
func (c ErrorClass) String() string {
	if c == ErrorClassAccessDenied {
		return "access-denied"
	}
	return "other"
}

// ClassifyError inspects the structured OS error code wrapped in err.
func ClassifyError(err error) ErrorClass {
	if err == nil {
		return ErrorClassOther
	}
	if errors.Is(err, fs.ErrPermission) || isAccessDenied(err) {
		return ErrorClassAccessDenied
	}
	return ErrorClassOther
}
