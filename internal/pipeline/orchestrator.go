// internal/pipeline/orchestrator.go

// Package pipeline runs the bounded fix-and-verify loop: select relevant
// files once, then per attempt generate a fix, apply it, and hand it to the
// verifier. Failed attempts are rolled back and their failure context is fed
// into the next generation; the workspace keeps only a successful fix.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/xkilldash9x/suture-cli/api/schemas"
	"github.com/xkilldash9x/suture-cli/internal/config"
)

// Orchestrator owns one pipeline run. Collaborators are injected as
// interfaces so every stage can be exercised in isolation.
type Orchestrator struct {
	selector  schemas.FileSelector
	generator schemas.FixGenerator
	applier   schemas.FixApplier
	verifier  schemas.Verifier
	cfg       config.PipelineConfig
	runID     string
	sink      schemas.EventSink
	logger    *zap.Logger
}

// New builds an orchestrator. runID ties the result, events and generated
// spec filenames together; NewRunID mints one. sink may be nil.
func New(
	selector schemas.FileSelector,
	generator schemas.FixGenerator,
	applier schemas.FixApplier,
	verifier schemas.Verifier,
	cfg config.PipelineConfig,
	runID string,
	sink schemas.EventSink,
	logger *zap.Logger,
) *Orchestrator {
	return &Orchestrator{
		selector:  selector,
		generator: generator,
		applier:   applier,
		verifier:  verifier,
		cfg:       cfg,
		runID:     runID,
		sink:      sink,
		logger:    logger.Named("pipeline"),
	}
}

// NewRunID returns a short unique identifier for one pipeline run.
func NewRunID() string {
	return uuid.NewString()[:8]
}

// RunID identifies this pipeline run in spec filenames and the final result.
func (o *Orchestrator) RunID() string { return o.runID }

// Run executes up to MaxAttempts fix attempts for the described bug.
//
// Every attempt is recorded in the result, including ones that died before
// verification. The method returns an error only for failures that make
// continuing unsafe or pointless: file selection failure, a non-recoverable
// generation transport error, a rollback failure (the workspace may be
// mutated), or context cancellation. Running out of attempts is a normal
// result with Succeeded=false.
func (o *Orchestrator) Run(ctx context.Context, bugDescription string, hintFiles []string) (*schemas.FixAndVerifyResult, error) {
	o.emit(schemas.PhasePipeline, schemas.StatusStarted, 0, o.runID)

	o.emit(schemas.PhaseSelect, schemas.StatusStarted, 0, "")
	files, codebaseContext, err := o.selector.Select(ctx, bugDescription, hintFiles)
	if err != nil {
		o.emit(schemas.PhaseSelect, schemas.StatusFailed, 0, err.Error())
		return nil, fmt.Errorf("selecting relevant files: %w", err)
	}
	o.emit(schemas.PhaseSelect, schemas.StatusOK, 0, fmt.Sprintf("%d files", len(files)))

	result := &schemas.FixAndVerifyResult{
		RunID:           o.runID,
		RelevantFiles:   files,
		CodebaseContext: codebaseContext,
	}

	var prior *schemas.PriorAttempt
	for attempt := 1; attempt <= o.cfg.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			o.emit(schemas.PhasePipeline, schemas.StatusFailed, attempt, "canceled")
			return result, err
		}

		o.logger.Info("Starting fix attempt.",
			zap.Int("attempt", attempt),
			zap.Int("max_attempts", o.cfg.MaxAttempts))

		attemptRec, done, err := o.runAttempt(ctx, attempt, bugDescription, result, prior)
		result.Attempts = append(result.Attempts, attemptRec)
		if err != nil {
			o.emit(schemas.PhasePipeline, schemas.StatusFailed, attempt, err.Error())
			return result, err
		}
		if done {
			result.Succeeded = true
			result.FinalFix = attemptRec.Fix
			result.FinalVerification = attemptRec.Verification
			o.emit(schemas.PhasePipeline, schemas.StatusOK, attempt, "")
			return result, nil
		}
		prior = nextPrior(attemptRec)
	}

	o.logger.Warn("All fix attempts exhausted.", zap.Int("attempts", o.cfg.MaxAttempts))
	o.emit(schemas.PhasePipeline, schemas.StatusFailed, o.cfg.MaxAttempts, "attempts exhausted")
	return result, nil
}

// runAttempt performs one generate/apply/verify cycle. done=true means the
// fix passed verification and remains applied. A returned error halts the
// pipeline; any other failure is folded into the attempt record.
func (o *Orchestrator) runAttempt(ctx context.Context, attempt int, bugDescription string, result *schemas.FixAndVerifyResult, prior *schemas.PriorAttempt) (schemas.FixAttempt, bool, error) {
	rec := schemas.FixAttempt{AttemptNumber: attempt}

	o.emit(schemas.PhaseGenerate, schemas.StatusStarted, attempt, "")
	fix, err := o.generator.Generate(ctx, bugDescription, result.RelevantFiles, result.CodebaseContext, prior)
	if err != nil {
		var genErr *schemas.GenerationError
		if errors.As(err, &genErr) {
			// Unusable proposal. Nothing touched disk, so the next attempt
			// can proceed directly.
			o.emit(schemas.PhaseGenerate, schemas.StatusRetry, attempt, genErr.Error())
			rec.Error = genErr.Error()
			return rec, false, nil
		}
		o.emit(schemas.PhaseGenerate, schemas.StatusFailed, attempt, err.Error())
		return rec, false, fmt.Errorf("generating fix: %w", err)
	}
	rec.Fix = fix
	o.emit(schemas.PhaseGenerate, schemas.StatusOK, attempt, fmt.Sprintf("%d files changed", len(fix.Changes)))

	o.emit(schemas.PhaseApply, schemas.StatusStarted, attempt, "")
	backup, err := o.applier.Apply(fix)
	if err != nil {
		o.emit(schemas.PhaseApply, schemas.StatusFailed, attempt, err.Error())
		rec.Error = err.Error()
		// The partial backup covers exactly the files touched before the
		// failure; restoring it leaves the workspace clean for the next
		// attempt.
		if backup != nil && len(backup.Files) > 0 {
			if rbErr := o.rollback(attempt, backup); rbErr != nil {
				return rec, false, rbErr
			}
		}
		return rec, false, nil
	}
	o.emit(schemas.PhaseApply, schemas.StatusOK, attempt, "")

	verification, err := o.verifier.Verify(ctx, bugDescription, fix, result.CodebaseContext)
	if err != nil {
		rec.Error = err.Error()
		if rbErr := o.rollback(attempt, backup); rbErr != nil {
			return rec, false, rbErr
		}
		if ctx.Err() != nil {
			return rec, false, ctx.Err()
		}
		// Infrastructure failure. The workspace is restored; later attempts
		// may still succeed (a flaky server start, a transient API error).
		o.logger.Warn("Verification aborted by infrastructure failure.",
			zap.Int("attempt", attempt), zap.Error(err))
		return rec, false, nil
	}
	rec.Verification = verification

	if verification.OverallPassed {
		o.logger.Info("Fix verified; leaving it applied.",
			zap.Int("attempt", attempt),
			zap.Int("test_retries", verification.RetryCount))
		return rec, true, nil
	}

	if rbErr := o.rollback(attempt, backup); rbErr != nil {
		return rec, false, rbErr
	}
	return rec, false, nil
}

// rollback restores a backup set. A rollback failure is fatal to the run:
// the workspace can no longer be trusted as a base for further attempts.
func (o *Orchestrator) rollback(attempt int, backup *schemas.BackupSet) error {
	o.emit(schemas.PhaseRollback, schemas.StatusStarted, attempt, "")
	if err := o.applier.Rollback(backup); err != nil {
		o.emit(schemas.PhaseRollback, schemas.StatusFailed, attempt, err.Error())
		return fmt.Errorf("restoring workspace: %w", err)
	}
	o.emit(schemas.PhaseRollback, schemas.StatusOK, attempt, "")
	return nil
}

// nextPrior condenses a finished attempt into context for the next
// generation call. Test failure output leads; advisory visual issues are
// appended when present.
func nextPrior(rec schemas.FixAttempt) *schemas.PriorAttempt {
	if rec.Fix == nil {
		return nil
	}

	var parts []string
	if v := rec.Verification; v != nil && v.TestResult != nil {
		tr := v.TestResult
		switch {
		case tr.ErrorMessage != "":
			parts = append(parts, tr.ErrorMessage)
		case tr.Stderr != "":
			parts = append(parts, tr.Stderr)
		case tr.Stdout != "":
			parts = append(parts, tr.Stdout)
		}
		if v.VisualReport != nil && len(v.VisualReport.Issues) > 0 {
			parts = append(parts, "Visual issues observed: "+strings.Join(v.VisualReport.Issues, "; "))
		}
	}
	if len(parts) == 0 && rec.Error != "" {
		parts = append(parts, rec.Error)
	}

	return &schemas.PriorAttempt{
		Fix:         rec.Fix,
		FailureText: strings.Join(parts, "\n"),
	}
}

func (o *Orchestrator) emit(phase schemas.Phase, status schemas.EventStatus, attempt int, detail string) {
	if o.sink == nil {
		return
	}
	o.sink.Publish(schemas.Event{
		Time:    time.Now(),
		Phase:   phase,
		Status:  status,
		Attempt: attempt,
		Detail:  detail,
	})
}
