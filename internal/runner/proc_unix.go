//go:build !windows

// internal/runner/proc_unix.go
package runner

import (
	"context"
	"os/exec"
	"syscall"
)

// shellCommand builds a command executed through the POSIX shell.
func shellCommand(ctx context.Context, command string) *exec.Cmd {
	return exec.CommandContext(ctx, "sh", "-c", command)
}

// setProcessGroup places the child in its own process group so signals can
// reach the full tree.
func setProcessGroup(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
}

// signalTree signals the process group rooted at pid. force escalates from
// SIGTERM to SIGKILL.
func signalTree(pid int, force bool) error {
	sig := syscall.SIGTERM
	if force {
		sig = syscall.SIGKILL
	}
	return syscall.Kill(-pid, sig)
}
