// internal/runner/executor.go
package runner

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/xkilldash9x/suture-cli/api/schemas"
	"github.com/xkilldash9x/suture-cli/internal/config"
)

// LineFunc receives one line of live test-runner output. stream is "stdout"
// or "stderr".
type LineFunc func(stream, line string)

// Executor runs the browser test process, optionally supervising the dev
// server it targets. One Executor is reused across sub-retries of an attempt;
// it holds no per-run state.
type Executor struct {
	runnerCfg config.RunnerConfig
	serverCfg config.ServerConfig
	workDir   string
	onLine    LineFunc
	logger    *zap.Logger
}

var _ schemas.TestRunner = (*Executor)(nil)

// NewExecutor creates a test executor. onLine may be nil.
func NewExecutor(runnerCfg config.RunnerConfig, serverCfg config.ServerConfig, workDir string, onLine LineFunc, logger *zap.Logger) *Executor {
	return &Executor{
		runnerCfg: runnerCfg,
		serverCfg: serverCfg,
		workDir:   workDir,
		onLine:    onLine,
		logger:    logger.Named("runner.executor"),
	}
}

// Run executes the test at testPath (or the whole generated-tests directory
// when testPath is empty) against baseURL. When startServer is set, the dev
// server is launched first and polled for readiness; its process tree is
// terminated on every exit path from this method, including error returns.
//
// A failing test is not an error: it returns a TestResult with Passed=false.
// The error return is reserved for infrastructure failures (server startup
// timeout, unstartable processes).
func (e *Executor) Run(ctx context.Context, testPath string, startServer bool, baseURL string) (result *schemas.TestResult, err error) {
	if startServer {
		server, startErr := StartServer(ctx, e.serverCfg.Command, e.workDir, e.logger)
		if startErr != nil {
			return nil, fmt.Errorf("starting dev server: %w", startErr)
		}
		// Scoped teardown: runs on success, failure, and error returns alike.
		defer func() {
			if termErr := server.Terminate(e.serverCfg.ShutdownGrace); termErr != nil {
				e.logger.Error("Dev server teardown failed.", zap.Error(termErr))
				if err == nil {
					err = termErr
				}
			}
		}()

		if readyErr := WaitReady(ctx, baseURL, e.serverCfg.StartupTimeout, e.serverCfg.PollInterval, e.logger); readyErr != nil {
			return nil, readyErr
		}
	}

	return e.runTestProcess(ctx, testPath, baseURL)
}

func (e *Executor) runTestProcess(ctx context.Context, testPath, baseURL string) (*schemas.TestResult, error) {
	target := testPath
	if target == "" {
		target = e.runnerCfg.TestDir
	}

	runCtx := ctx
	if e.runnerCfg.Timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, e.runnerCfg.Timeout)
		defer cancel()
	}

	cmd := shellCommand(runCtx, fmt.Sprintf("%s %s", e.runnerCfg.Command, target))
	cmd.Dir = e.workDir
	cmd.Env = append(os.Environ(), "BASE_URL="+baseURL)

	stdoutPipe, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("creating test stdout pipe: %w", err)
	}
	stderrPipe, err := cmd.StderrPipe()
	if err != nil {
		return nil, fmt.Errorf("creating test stderr pipe: %w", err)
	}

	start := time.Now()
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("starting test runner %q: %w", e.runnerCfg.Command, err)
	}
	e.logger.Info("Test runner started.", zap.String("target", target), zap.Int("pid", cmd.Process.Pid))

	var stdout, stderr bytes.Buffer
	var g errgroup.Group
	g.Go(func() error { return e.pump("stdout", stdoutPipe, &stdout) })
	g.Go(func() error { return e.pump("stderr", stderrPipe, &stderr) })

	pumpErr := g.Wait()
	waitErr := cmd.Wait()
	duration := time.Since(start)

	if pumpErr != nil {
		e.logger.Warn("Output capture ended early.", zap.Error(pumpErr))
	}

	result := &schemas.TestResult{
		Passed:   waitErr == nil,
		Duration: duration,
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
	}

	artifacts := CollectArtifacts(e.runnerCfg.OutputDir)
	result.Videos = artifacts.Videos
	result.Screenshots = artifacts.Screenshots
	result.Traces = artifacts.Traces

	if !result.Passed {
		result.ErrorMessage = e.failureMessage(&stdout, &stderr, waitErr)
		e.logger.Info("Test run failed.",
			zap.Duration("duration", duration),
			zap.String("error", firstLine(result.ErrorMessage)))
	} else {
		e.logger.Info("Test run passed.", zap.Duration("duration", duration))
	}

	return result, nil
}

// pump copies one output stream line by line into buf, notifying the live
// line callback as it goes.
func (e *Executor) pump(stream string, r io.Reader, buf *bytes.Buffer) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		buf.WriteString(line)
		buf.WriteByte('\n')
		if e.onLine != nil {
			e.onLine(stream, line)
		}
	}
	return scanner.Err()
}

// failureMessage prefers the structured report, then stderr, then stdout,
// then the bare exit error.
func (e *Executor) failureMessage(stdout, stderr *bytes.Buffer, waitErr error) string {
	if msg, ok := ExtractReportError(e.runnerCfg.ReportFile); ok {
		return msg
	}
	if stderr.Len() > 0 {
		return stderr.String()
	}
	if stdout.Len() > 0 {
		return stdout.String()
	}
	if waitErr != nil {
		return waitErr.Error()
	}
	return "test runner failed without output"
}

func firstLine(s string) string {
	for i, r := range s {
		if r == '\n' {
			return s[:i]
		}
	}
	return s
}
