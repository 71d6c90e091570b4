//go:build !windows

package process

import (
	"os/exec"
	"syscall"
)

// detach starts the child in a new session so it outlives the parent.
func detach(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setsid: true}
}
