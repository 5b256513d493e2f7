// internal/runner/server.go
package runner

import (
	"bufio"
	"context"
	"fmt"
	"net/http"
	"os/exec"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/xkilldash9x/suture-cli/api/schemas"
)

// ServerProcess supervises a long-running dev server started for one test
// execution. Terminate kills the whole process tree and confirms exit; it is
// safe to call more than once.
type ServerProcess struct {
	cmd    *exec.Cmd
	logger *zap.Logger

	done chan struct{} // closed once Wait returns

	mu         sync.Mutex
	terminated bool
}

// StartServer launches command through the shell in dir, with its own process
// group so the whole tree can be terminated later. Server output is drained
// at debug level to keep the pipes from filling.
func StartServer(ctx context.Context, command, dir string, logger *zap.Logger) (*ServerProcess, error) {
	logger = logger.Named("runner.server")

	cmd := shellCommand(ctx, command)
	cmd.Dir = dir
	setProcessGroup(cmd)

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("creating server stdout pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, fmt.Errorf("creating server stderr pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("starting server command %q: %w", command, err)
	}
	logger.Info("Dev server started.", zap.String("command", command), zap.Int("pid", cmd.Process.Pid))

	sp := &ServerProcess{cmd: cmd, logger: logger, done: make(chan struct{})}

	drain := func(name string, r *bufio.Scanner) {
		for r.Scan() {
			logger.Debug("server output", zap.String("stream", name), zap.String("line", r.Text()))
		}
	}
	go drain("stdout", bufio.NewScanner(stdout))
	go drain("stderr", bufio.NewScanner(stderr))

	go func() {
		_ = cmd.Wait()
		close(sp.done)
	}()

	return sp, nil
}

// Terminate stops the server's entire process tree: graceful signal first,
// then a forced kill if the process has not exited within grace. It waits for
// the process to actually exit before returning, so callers can rely on the
// server being gone.
func (s *ServerProcess) Terminate(grace time.Duration) error {
	s.mu.Lock()
	if s.terminated {
		s.mu.Unlock()
		return nil
	}
	s.terminated = true
	s.mu.Unlock()

	pid := s.cmd.Process.Pid
	s.logger.Info("Terminating dev server process tree.", zap.Int("pid", pid))

	if err := signalTree(pid, false); err != nil {
		s.logger.Debug("Graceful signal failed; escalating.", zap.Error(err))
	}

	select {
	case <-s.done:
		return nil
	case <-time.After(grace):
	}

	if err := signalTree(pid, true); err != nil {
		s.logger.Warn("Force kill failed.", zap.Int("pid", pid), zap.Error(err))
	}

	// Wait-and-confirm: a tree that survives SIGKILL is a real problem and
	// must be surfaced, not assumed dead.
	select {
	case <-s.done:
		return nil
	case <-time.After(grace):
		return fmt.Errorf("server process %d did not exit after force kill", pid)
	}
}

// WaitReady polls baseURL with short-timeout requests until any non-5xx
// response arrives or the overall timeout elapses. Timeout is a hard failure
// reported as *schemas.ServerStartupTimeoutError.
func WaitReady(ctx context.Context, baseURL string, timeout, interval time.Duration, logger *zap.Logger) error {
	client := &http.Client{Timeout: 2 * time.Second}
	deadline := time.Now().Add(timeout)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, baseURL, nil)
		if err != nil {
			return fmt.Errorf("building readiness request: %w", err)
		}
		resp, err := client.Do(req)
		if err == nil {
			code := resp.StatusCode
			resp.Body.Close()
			if code < 500 {
				logger.Info("Server ready.", zap.String("url", baseURL), zap.Int("status", code))
				return nil
			}
			logger.Debug("Server not ready yet.", zap.Int("status", code))
		} else {
			logger.Debug("Readiness probe failed.", zap.Error(err))
		}

		if time.Now().After(deadline) {
			return &schemas.ServerStartupTimeoutError{URL: baseURL, Timeout: timeout}
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}
