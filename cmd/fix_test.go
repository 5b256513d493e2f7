// cmd/fix_test.go
package cmd

import (
	"bytes"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xkilldash9x/suture-cli/api/schemas"
	"github.com/xkilldash9x/suture-cli/internal/config"
)

func TestFixRequiresBugFlag(t *testing.T) {
	root := NewRootCommand()
	root.SetArgs([]string{"fix"})
	root.SetOut(new(bytes.Buffer))
	root.SetErr(new(bytes.Buffer))

	err := root.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bug")
}

func TestApplyOverrides(t *testing.T) {
	cfg := &config.Config{
		Workspace: config.WorkspaceConfig{Root: "."},
		Server:    config.ServerConfig{BaseURL: "http://localhost:3000"},
		Pipeline:  config.PipelineConfig{MaxAttempts: 3, MaxTestRetries: 2},
	}

	fixCmd := newFixCmd()
	require.NoError(t, fixCmd.Flags().Set("attempts", "5"))
	require.NoError(t, fixCmd.Flags().Set("base-url", "http://localhost:8080"))
	require.NoError(t, fixCmd.Flags().Set("start-server", "true"))

	opts := &fixOptions{attempts: 5, baseURL: "http://localhost:8080", startServer: true}
	applyOverrides(cfg, fixCmd, opts)

	assert.Equal(t, 5, cfg.Pipeline.MaxAttempts)
	assert.Equal(t, "http://localhost:8080", cfg.Server.BaseURL)
	assert.True(t, cfg.Pipeline.StartServer)

	// Untouched flags leave config alone.
	assert.Equal(t, 2, cfg.Pipeline.MaxTestRetries)
	assert.Equal(t, ".", cfg.Workspace.Root)
}

func TestAnchorRunnerPaths(t *testing.T) {
	rc := config.RunnerConfig{
		TestDir:    "generated-tests",
		OutputDir:  "test-results",
		ReportFile: "test-results/report.json",
	}
	anchorRunnerPaths(&rc, "/work/app")
	assert.Equal(t, filepath.Join("/work/app", "generated-tests"), rc.TestDir)
	assert.Equal(t, filepath.Join("/work/app", "test-results"), rc.OutputDir)
	assert.Equal(t, filepath.Join("/work/app", "test-results", "report.json"), rc.ReportFile)

	abs := config.RunnerConfig{TestDir: "/elsewhere/tests", OutputDir: "/o", ReportFile: "/r.json"}
	anchorRunnerPaths(&abs, "/work/app")
	assert.Equal(t, "/elsewhere/tests", abs.TestDir)
}

func TestRenderFailureSummary(t *testing.T) {
	result := &schemas.FixAndVerifyResult{
		RunID: "abc123",
		Attempts: []schemas.FixAttempt{
			{
				AttemptNumber: 1,
				Error:         "fix generation failed: no JSON object found",
			},
			{
				AttemptNumber: 2,
				Fix: &schemas.FixResult{
					Approach: "Guard the null dereference in the click handler",
					Changes:  []schemas.FileChange{{RelativePath: "src/app.js"}},
				},
				Verification: &schemas.VerificationResult{
					RetryCount: 2,
					TestResult: &schemas.TestResult{Passed: false, ErrorMessage: "expect(button).toBeEnabled() failed"},
				},
			},
		},
	}

	var buf bytes.Buffer
	renderFailureSummary(&buf, result)
	out := buf.String()

	assert.Contains(t, out, "run abc123")
	assert.Contains(t, out, "Attempt 1:")
	assert.Contains(t, out, "no JSON object found")
	assert.Contains(t, out, "Attempt 2:")
	assert.Contains(t, out, "Guard the null dereference")
	assert.Contains(t, out, "modified src/app.js")
	assert.Contains(t, out, "toBeEnabled() failed")
	assert.Contains(t, out, "restored to its original state")
}

func TestRenderSuccess(t *testing.T) {
	result := &schemas.FixAndVerifyResult{
		RunID:     "abc123",
		Succeeded: true,
		Attempts:  []schemas.FixAttempt{{AttemptNumber: 1}},
		FinalFix: &schemas.FixResult{
			Approach: "Reset the form state after submit",
			Changes:  []schemas.FileChange{{RelativePath: "src/form.js"}},
		},
		FinalVerification: &schemas.VerificationResult{
			TestPath:   "generated-tests/fix-verify-abc123-r1.spec.ts",
			RetryCount: 1,
			VisualReport: &schemas.VisualReport{
				Assessment: "UI renders correctly",
				Confidence: schemas.ConfidenceHigh,
			},
		},
	}

	var buf bytes.Buffer
	renderSuccess(&buf, result)
	out := buf.String()

	assert.Contains(t, out, "verified on attempt 1")
	assert.Contains(t, out, "Reset the form state")
	assert.Contains(t, out, "modified src/form.js")
	assert.Contains(t, out, "healed 1 time(s)")
	assert.Contains(t, out, "high confidence")
}

func TestVersionCommand(t *testing.T) {
	var buf bytes.Buffer
	cmd := newVersionCmd()
	cmd.SetOut(&buf)
	require.NoError(t, cmd.Execute())
	assert.Contains(t, buf.String(), Version)
}
