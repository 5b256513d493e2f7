// api/schemas/interfaces.go
package schemas

import "context"

// LLMClient defines a standard interface for interacting with a Large Language
// Model, abstracting the specifics of the underlying provider (e.g., Gemini).
type LLMClient interface {
	// Generate produces a text completion based on the provided request.
	Generate(ctx context.Context, req GenerationRequest) (string, error)
	// Close cleans up any resources held by the client.
	Close() error
}

// FileSelector builds the deduplicated, size-bounded working set of files
// relevant to a bug, merging user hints with service suggestions. It returns
// the working set and the codebase context description used to obtain it.
// A malformed service response degrades to the hinted set alone; Select never
// fails hard on that account.
type FileSelector interface {
	Select(ctx context.Context, bugDescription string, hintFiles []string) ([]RelevantFile, string, error)
}

// FixGenerator turns a bug description and a working set into a structured
// multi-file patch. A response that cannot be parsed into the required shape
// yields a *GenerationError; retrying with different context is the caller's
// responsibility.
type FixGenerator interface {
	Generate(ctx context.Context, bugDescription string, files []RelevantFile, codebaseContext string, prior *PriorAttempt) (*FixResult, error)
}

// FixApplier writes proposed file contents to disk and restores them.
//
// Apply must capture each file's prior content before overwriting it. When a
// read or write fails mid-set, Apply returns the backup entries captured so
// far together with the error, so the caller can still roll back the subset
// applied. Rollback is idempotent; a failure to restore an entry is fatal and
// reported as a *RollbackError.
type FixApplier interface {
	Apply(fix *FixResult) (*BackupSet, error)
	Rollback(backup *BackupSet) error
}

// TestProposer generates runnable browser-test source for a bug and a set of
// changed files. PriorError carries the failure output of the previous test
// execution when the self-healing loop regenerates a test.
type TestProposer interface {
	ProposeTest(ctx context.Context, bugDescription string, changes []FileChange, codebaseContext, baseURL, priorError string) (string, error)
}

// TestRunner manages the external process lifecycle for one test execution:
// optional dev-server startup and readiness polling, the test-runner process,
// and artifact collection. Any started server process tree is terminated on
// every exit path, including error returns.
type TestRunner interface {
	Run(ctx context.Context, testPath string, startServer bool, baseURL string) (*TestResult, error)
}

// VisualAssessor renders an advisory pass/fail judgment from screenshots. Its
// result never gates the pipeline outcome.
type VisualAssessor interface {
	Assess(ctx context.Context, bugDescription string, screenshotPaths []string) (*VisualReport, error)
}

// Verifier drives the nested self-healing test loop for one fix attempt.
// An infrastructure error (service or process failure, as opposed to a failing
// test) is returned as a non-nil error with a nil result.
type Verifier interface {
	Verify(ctx context.Context, bugDescription string, fix *FixResult, codebaseContext string) (*VerificationResult, error)
}
