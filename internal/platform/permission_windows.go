//go:build windows

package platform

import (
	"errors"

	"golang.org/x/sys/windows"
)

func isAccessDenied(err error) bool {
	return errors.Is(err, windows.ERROR_ACCESS_DENIED) || errors.Is(err, windows.ERROR_PRIVILEGE_NOT_HELD)
}
