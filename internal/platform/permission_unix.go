//go:build !windows

package platform

import (
	"errors"

	"golang.org/x/sys/unix"
)

func isAccessDenied(err error) bool {
	return errors.Is(err, unix.EACCES) || errors.Is(err, unix.EPERM)
}
