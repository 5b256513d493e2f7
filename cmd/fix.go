// cmd/fix.go
package cmd

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/xkilldash9x/suture-cli/api/schemas"
	"github.com/xkilldash9x/suture-cli/internal/config"
	"github.com/xkilldash9x/suture-cli/internal/fixgen"
	"github.com/xkilldash9x/suture-cli/internal/llmclient"
	"github.com/xkilldash9x/suture-cli/internal/observability"
	"github.com/xkilldash9x/suture-cli/internal/pipeline"
	"github.com/xkilldash9x/suture-cli/internal/runner"
	"github.com/xkilldash9x/suture-cli/internal/testgen"
	"github.com/xkilldash9x/suture-cli/internal/vcs"
	"github.com/xkilldash9x/suture-cli/internal/verify"
	"github.com/xkilldash9x/suture-cli/internal/visual"
	"github.com/xkilldash9x/suture-cli/internal/workspace"
)

const visualCaptureTimeout = 30 * time.Second

type fixOptions struct {
	bug         string
	files       []string
	workdir     string
	baseURL     string
	retries     int
	attempts    int
	startServer bool
	ci          bool
}

func newFixCmd() *cobra.Command {
	opts := &fixOptions{}

	cmd := &cobra.Command{
		Use:   "fix",
		Short: "Generate a fix for a described bug and verify it with a browser test.",
		Long: `Fix runs the full pipeline: select relevant source files, ask the model for
a fix, apply it to the workspace, then generate and run a browser test to
prove the bug is gone. Failed attempts are rolled back and retried with the
failure folded into the next prompt. A verified fix is left applied.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.Get()
			logger := observability.GetLogger()
			applyOverrides(cfg, cmd, opts)
			return runFix(cmd.Context(), cfg, logger, opts, cmd.OutOrStdout())
		},
	}

	cmd.Flags().StringVarP(&opts.bug, "bug", "b", "", "description of the bug to fix (required)")
	cmd.Flags().StringSliceVarP(&opts.files, "files", "f", nil, "relevant files (defaults to files changed in git)")
	cmd.Flags().StringVarP(&opts.workdir, "workdir", "w", "", "workspace root (defaults to current directory)")
	cmd.Flags().StringVar(&opts.baseURL, "base-url", "", "URL the generated test runs against")
	cmd.Flags().IntVar(&opts.retries, "retries", 0, "max self-healing test regenerations per attempt")
	cmd.Flags().IntVar(&opts.attempts, "attempts", 0, "max fix attempts")
	cmd.Flags().BoolVar(&opts.startServer, "start-server", false, "start the dev server before each test run")
	cmd.Flags().BoolVar(&opts.ci, "ci", false, "plain-text progress output for CI logs")
	_ = cmd.MarkFlagRequired("bug")

	return cmd
}

// applyOverrides folds explicitly set flags over the loaded configuration.
// Unset flags leave the config file and environment values alone.
func applyOverrides(cfg *config.Config, cmd *cobra.Command, opts *fixOptions) {
	if cmd.Flags().Changed("workdir") {
		cfg.Workspace.Root = opts.workdir
	}
	if cmd.Flags().Changed("base-url") {
		cfg.Server.BaseURL = opts.baseURL
	}
	if cmd.Flags().Changed("retries") {
		cfg.Pipeline.MaxTestRetries = opts.retries
	}
	if cmd.Flags().Changed("attempts") {
		cfg.Pipeline.MaxAttempts = opts.attempts
	}
	if cmd.Flags().Changed("start-server") {
		cfg.Pipeline.StartServer = opts.startServer
	}
}

// runFix wires the pipeline from configuration and runs it to completion.
func runFix(ctx context.Context, cfg *config.Config, logger *zap.Logger, opts *fixOptions, out io.Writer) error {
	root, err := filepath.Abs(cfg.Workspace.Root)
	if err != nil {
		return fmt.Errorf("resolving workspace root: %w", err)
	}
	cfg.Workspace.Root = root
	anchorRunnerPaths(&cfg.Runner, root)

	hints := opts.files
	if len(hints) == 0 {
		// Best effort: a workspace without git history just starts with an
		// empty hint set.
		hints, err = vcs.ChangedFiles(root, logger)
		if err != nil {
			logger.Warn("Could not derive file hints from git.", zap.Error(err))
			hints = nil
		}
	}

	llm, err := llmclient.NewClient(ctx, cfg.LLM, logger)
	if err != nil {
		return fmt.Errorf("initializing generation client: %w", err)
	}
	defer func() {
		if closeErr := llm.Close(); closeErr != nil {
			logger.Warn("Closing generation client failed.", zap.Error(closeErr))
		}
	}()

	sink := pipeline.MultiSink{pipeline.NewLogSink(logger)}
	if opts.ci {
		sink = append(sink, pipeline.NewCISink(out))
	}

	var assessor schemas.VisualAssessor
	if cfg.Pipeline.VisualEnabled {
		assessor = visual.NewAssessor(llm, cfg.Server.BaseURL, visualCaptureTimeout, logger)
	}

	runID := pipeline.NewRunID()
	loop := verify.NewLoop(
		testgen.NewGenerator(llm, logger),
		runner.NewExecutor(cfg.Runner, cfg.Server, root, nil, logger),
		assessor,
		cfg.Pipeline,
		cfg.Runner.TestDir,
		cfg.Server.BaseURL,
		runID,
		sink,
		logger,
	)
	orch := pipeline.New(
		workspace.NewSelector(cfg.Workspace, llm, logger),
		fixgen.NewGenerator(root, llm, logger),
		workspace.NewApplier(logger),
		loop,
		cfg.Pipeline,
		runID,
		sink,
		logger,
	)

	result, err := orch.Run(ctx, opts.bug, hints)
	if err != nil {
		if result != nil && len(result.Attempts) > 0 {
			renderFailureSummary(out, result)
		}
		return err
	}

	if result.Succeeded {
		renderSuccess(out, result)
		return nil
	}

	renderFailureSummary(out, result)
	return fmt.Errorf("no verified fix after %d attempt(s)", len(result.Attempts))
}

// anchorRunnerPaths resolves the runner's relative paths against the
// workspace root, since the test and server processes run there.
func anchorRunnerPaths(rc *config.RunnerConfig, root string) {
	if !filepath.IsAbs(rc.TestDir) {
		rc.TestDir = filepath.Join(root, rc.TestDir)
	}
	if !filepath.IsAbs(rc.OutputDir) {
		rc.OutputDir = filepath.Join(root, rc.OutputDir)
	}
	if !filepath.IsAbs(rc.ReportFile) {
		rc.ReportFile = filepath.Join(root, rc.ReportFile)
	}
}

func renderSuccess(out io.Writer, result *schemas.FixAndVerifyResult) {
	attempt := result.Attempts[len(result.Attempts)-1]
	fmt.Fprintf(out, "\nFix verified on attempt %d (run %s).\n", attempt.AttemptNumber, result.RunID)
	if result.FinalFix != nil {
		fmt.Fprintf(out, "Approach: %s\n", result.FinalFix.Approach)
		for _, change := range result.FinalFix.Changes {
			fmt.Fprintf(out, "  modified %s\n", change.RelativePath)
		}
	}
	if v := result.FinalVerification; v != nil {
		fmt.Fprintf(out, "Test: %s (healed %d time(s))\n", v.TestPath, v.RetryCount)
		if v.VisualReport != nil {
			fmt.Fprintf(out, "Visual check (%s confidence): %s\n", v.VisualReport.Confidence, v.VisualReport.Assessment)
		}
	}
}

// renderFailureSummary prints the complete attempt history so a failed run
// can be diagnosed without re-running the pipeline.
func renderFailureSummary(out io.Writer, result *schemas.FixAndVerifyResult) {
	fmt.Fprintf(out, "\nNo verified fix (run %s). Attempt history:\n", result.RunID)
	for _, attempt := range result.Attempts {
		fmt.Fprintf(out, "\nAttempt %d:\n", attempt.AttemptNumber)
		if attempt.Fix != nil {
			fmt.Fprintf(out, "  approach: %s\n", attempt.Fix.Approach)
			for _, change := range attempt.Fix.Changes {
				fmt.Fprintf(out, "  modified %s\n", change.RelativePath)
			}
		}
		switch {
		case attempt.Error != "":
			fmt.Fprintf(out, "  error: %s\n", indentTail(attempt.Error))
		case attempt.Verification != nil && attempt.Verification.TestResult != nil:
			v := attempt.Verification
			fmt.Fprintf(out, "  test failed after %d heal(s): %s\n",
				v.RetryCount, indentTail(v.TestResult.ErrorMessage))
		}
	}
	fmt.Fprintln(out, "\nThe workspace has been restored to its original state.")
}

func indentTail(s string) string {
	return strings.ReplaceAll(strings.TrimSpace(s), "\n", "\n    ")
}
