// internal/verify/loop.go

// Package verify drives the self-healing test loop for a single fix attempt:
// propose a browser test, run it, and on failure regenerate the test with the
// failure output folded into the prompt, up to a bounded number of heals.
package verify

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/xkilldash9x/suture-cli/api/schemas"
	"github.com/xkilldash9x/suture-cli/internal/config"
	"github.com/xkilldash9x/suture-cli/internal/testgen"
)

// Loop implements schemas.Verifier. One Loop instance serves the whole
// pipeline run; per-attempt state lives on the stack of Verify.
type Loop struct {
	proposer    schemas.TestProposer
	runner      schemas.TestRunner
	assessor    schemas.VisualAssessor
	pipelineCfg config.PipelineConfig
	testDir     string
	baseURL     string
	runID       string
	sink        schemas.EventSink
	logger      *zap.Logger
}

var _ schemas.Verifier = (*Loop)(nil)

// NewLoop wires the verification loop. assessor may be nil when visual
// assessment is disabled; sink may be nil.
func NewLoop(
	proposer schemas.TestProposer,
	runner schemas.TestRunner,
	assessor schemas.VisualAssessor,
	pipelineCfg config.PipelineConfig,
	testDir, baseURL, runID string,
	sink schemas.EventSink,
	logger *zap.Logger,
) *Loop {
	return &Loop{
		proposer:    proposer,
		runner:      runner,
		assessor:    assessor,
		pipelineCfg: pipelineCfg,
		testDir:     testDir,
		baseURL:     baseURL,
		runID:       runID,
		sink:        sink,
		logger:      logger.Named("verify"),
	}
}

// Verify runs the self-healing test loop against the currently applied fix.
//
// The loop executes the test at most MaxTestRetries+1 times; RetryCount on
// the result counts the heals performed, not the executions. A test that
// cannot be generated is healed under the same budget as a test that fails.
// Infrastructure errors (server startup, unstartable processes) abort the
// loop with a nil result; a test that still fails after the last heal is a
// normal result with OverallPassed=false.
func (l *Loop) Verify(ctx context.Context, bugDescription string, fix *schemas.FixResult, codebaseContext string) (*schemas.VerificationResult, error) {
	result := &schemas.VerificationResult{}
	priorError := ""

	for retry := 0; retry <= l.pipelineCfg.MaxTestRetries; retry++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		result.RetryCount = retry

		l.emit(schemas.PhaseTestGen, schemas.StatusStarted, retry, "")
		source, err := l.proposer.ProposeTest(ctx, bugDescription, fix.Changes, codebaseContext, l.baseURL, priorError)
		if err != nil {
			var genErr *schemas.GenerationError
			if errors.As(err, &genErr) && retry < l.pipelineCfg.MaxTestRetries {
				// Bad test source consumes a heal, same as a failing run.
				l.emit(schemas.PhaseTestGen, schemas.StatusRetry, retry, genErr.Error())
				priorError = fmt.Sprintf("The previous attempt to write this test produced unusable output: %v", genErr)
				continue
			}
			return nil, fmt.Errorf("proposing test: %w", err)
		}
		l.emit(schemas.PhaseTestGen, schemas.StatusOK, retry, "")

		specName := fmt.Sprintf("fix-verify-%s-r%d.spec.ts", l.runID, retry)
		testPath, err := testgen.WriteSpec(l.testDir, specName, source)
		if err != nil {
			return nil, fmt.Errorf("writing test spec: %w", err)
		}
		result.TestPath = testPath
		result.TestSource = source

		l.emit(schemas.PhaseTestRun, schemas.StatusStarted, retry, testPath)
		testResult, err := l.runner.Run(ctx, testPath, l.pipelineCfg.StartServer, l.baseURL)
		if err != nil {
			l.emit(schemas.PhaseTestRun, schemas.StatusFailed, retry, err.Error())
			return nil, fmt.Errorf("running test: %w", err)
		}
		result.TestResult = testResult

		if testResult.Passed {
			l.emit(schemas.PhaseTestRun, schemas.StatusOK, retry, "")
			result.OverallPassed = true
			l.assessVisual(ctx, bugDescription, result)
			return result, nil
		}

		l.logger.Info("Test failed.",
			zap.Int("retry", retry),
			zap.Int("remaining_heals", l.pipelineCfg.MaxTestRetries-retry))
		if retry < l.pipelineCfg.MaxTestRetries {
			l.emit(schemas.PhaseTestRun, schemas.StatusRetry, retry, testResult.ErrorMessage)
			priorError = healContext(testResult)
			continue
		}
		l.emit(schemas.PhaseTestRun, schemas.StatusFailed, retry, testResult.ErrorMessage)
	}

	// Retries exhausted with the last run failing. The failing TestResult is
	// on the result so the caller can build the next attempt's context.
	return result, nil
}

// assessVisual attaches an advisory visual report to a passed verification.
// Any failure leaves VisualReport nil and never disturbs the verdict.
func (l *Loop) assessVisual(ctx context.Context, bugDescription string, result *schemas.VerificationResult) {
	if l.assessor == nil || !l.pipelineCfg.VisualEnabled {
		return
	}
	l.emit(schemas.PhaseVisual, schemas.StatusStarted, result.RetryCount, "")
	report, err := l.assessor.Assess(ctx, bugDescription, result.TestResult.Screenshots)
	if err != nil {
		l.logger.Warn("Visual assessment unavailable.", zap.Error(err))
		l.emit(schemas.PhaseVisual, schemas.StatusFailed, result.RetryCount, err.Error())
		return
	}
	result.VisualReport = report
	l.emit(schemas.PhaseVisual, schemas.StatusOK, result.RetryCount, "")
}

// healContext condenses a failed run into the prior-error text for the next
// test generation. The structured report message leads; raw streams follow
// only when that message is missing.
func healContext(tr *schemas.TestResult) string {
	if tr.ErrorMessage != "" {
		return tr.ErrorMessage
	}
	if tr.Stderr != "" {
		return tr.Stderr
	}
	return tr.Stdout
}

func (l *Loop) emit(phase schemas.Phase, status schemas.EventStatus, retry int, detail string) {
	if l.sink == nil {
		return
	}
	l.sink.Publish(schemas.Event{
		Time:   time.Now(),
		Phase:  phase,
		Status: status,
		Retry:  retry,
		Detail: detail,
	})
}
