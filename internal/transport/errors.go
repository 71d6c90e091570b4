package transport

import (
	"errors"
	"fmt"
)

// Kind classifies transport failures.
type Kind int

const (
	// KindNetwork covers client construction, connection and read failures.
	KindNetwork Kind = iota
	// KindRequestFailed means the server answered with a non-2xx status.
	KindRequestFailed
	// KindInvalidResponse means the body could not be decoded.
	KindInvalidResponse
	// KindFileSystem covers local file creation and write failures.
	KindFileSystem
)

func (k Kind) String() string {
	switch k {
	case KindNetwork:
		return "network"
	case KindRequestFailed:
		return "request failed"
	case KindInvalidResponse:
		return "invalid response"
	case KindFileSystem:
		return "file system"
	default:
		return "unknown"
	}
}

// Error is returned by every transport operation.
type Error struct {
	Kind       Kind
	StatusCode int
	URL        string
	Path       string
	Err        error
}

func (e *Error) Error() string {
	switch {
	case e.Kind == KindRequestFailed:
		return fmt.Sprintf("HTTP request to %s failed with status code %d: %v", e.URL, e.StatusCode, e.Err)
	case e.Path != "":
		return fmt.Sprintf("%s error: %s: %v", e.Kind, e.Path, e.Err)
	case e.URL != "":
		return fmt.Sprintf("%s error: %s: %v", e.Kind, e.URL, e.Err)
	default:
		return fmt.Sprintf("%s error: %v", e.Kind, e.Err)
	}
}

func (e *Error) Unwrap() error {
	return e.Err
}

// IsKind reports whether err is a transport *Error of the given kind.
func IsKind(err error, kind Kind) bool {
	var te *Error
	return errors.As(err, &te) && te.Kind == kind
}

// StatusCode returns the HTTP status carried by err, or 0.
func StatusCode(err error) int {
	var te *Error
	if errors.As(err, &te) {
		return te.StatusCode
	}
	return 0
}
