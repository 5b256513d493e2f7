//go:build windows

// internal/runner/proc_windows.go
package runner

import (
	"context"
	"fmt"
	"os/exec"
)

func shellCommand(ctx context.Context, command string) *exec.Cmd {
	return exec.CommandContext(ctx, "cmd", "/C", command)
}

func setProcessGroup(cmd *exec.Cmd) {
	// Process trees on Windows are killed via taskkill; no attribute needed.
}

func signalTree(pid int, force bool) error {
	args := []string{"/T", "/PID", fmt.Sprintf("%d", pid)}
	if force {
		args = append(args, "/F")
	}
	return exec.Command("taskkill", args...).Run()
}
