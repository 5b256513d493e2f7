// api/schemas/schemas.go
package schemas

import "time"

// Provenance records how a file entered the relevant-file working set.
type Provenance string

const (
	// ProvenanceUser marks a file the caller explicitly hinted at.
	ProvenanceUser Provenance = "user-specified"
	// ProvenanceService marks a file suggested by the fix-proposal service.
	ProvenanceService Provenance = "service-suggested"
)

// RelevantFile is a source file judged pertinent to the bug under repair.
// Files are unique by absolute path within a working set.
type RelevantFile struct {
	RelativePath string     `json:"relative_path"`
	AbsolutePath string     `json:"absolute_path"`
	Content      string     `json:"content"`
	Reason       string     `json:"reason,omitempty"`
	Provenance   Provenance `json:"provenance"`
}

// FileChange is one proposed edit to a single file. Diff is derived
// deterministically from OriginalContent and ModifiedContent; it is a view,
// never authoritative.
type FileChange struct {
	Path            string `json:"path"`
	RelativePath    string `json:"relative_path"`
	OriginalContent string `json:"original_content"`
	ModifiedContent string `json:"modified_content"`
	Diff            string `json:"diff"`
}

// FixResult is the output of one fix-generation call. Immutable once produced.
type FixResult struct {
	Changes     []FileChange `json:"changes"`
	Explanation string       `json:"explanation"`
	Approach    string       `json:"approach"`
}

// BackupEntry is the pre-change snapshot of a single file. An empty
// OriginalContent together with Existed=false marks "file did not exist",
// which instructs rollback to delete the file.
type BackupEntry struct {
	Path            string `json:"path"`
	OriginalContent string `json:"original_content"`
	Existed         bool   `json:"existed"`
}

// BackupSet is the minimal set of snapshots needed to exactly undo one fix
// attempt. Its lifetime is one attempt: created at apply time, consumed at
// rollback time or discarded on success.
type BackupSet struct {
	Timestamp time.Time     `json:"timestamp"`
	Files     []BackupEntry `json:"files"`
}

// TestResult is the outcome of one execution of the browser test.
type TestResult struct {
	Passed       bool          `json:"passed"`
	Videos       []string      `json:"videos"`
	Screenshots  []string      `json:"screenshots"`
	Traces       []string      `json:"traces"`
	ErrorMessage string        `json:"error_message,omitempty"`
	Duration     time.Duration `json:"duration"`
	Stdout       string        `json:"stdout"`
	Stderr       string        `json:"stderr"`
}

// Confidence grades a visual assessment.
type Confidence string

const (
	ConfidenceHigh   Confidence = "high"
	ConfidenceMedium Confidence = "medium"
	ConfidenceLow    Confidence = "low"
)

// VisualReport is the advisory judgment of the visual-assessment service.
// It never changes the pass/fail verdict of a verification.
type VisualReport struct {
	Assessment string     `json:"assessment"`
	Issues     []string   `json:"issues"`
	Confidence Confidence `json:"confidence"`
}

// VerificationResult is the outcome of the self-healing test loop for one fix
// attempt. OverallPassed is driven solely by TestResult.Passed; VisualReport
// is advisory.
type VerificationResult struct {
	TestPath      string        `json:"test_path"`
	TestSource    string        `json:"test_source"`
	TestResult    *TestResult   `json:"test_result,omitempty"`
	VisualReport  *VisualReport `json:"visual_report,omitempty"`
	RetryCount    int           `json:"retry_count"`
	OverallPassed bool          `json:"overall_passed"`
}

// FixAttempt is one iteration of the outer bounded loop. It is retained even
// on infrastructure failure (Verification nil, Error populated) so failures
// can be diagnosed without re-running the pipeline.
type FixAttempt struct {
	AttemptNumber int                 `json:"attempt_number"`
	Fix           *FixResult          `json:"fix,omitempty"`
	Verification  *VerificationResult `json:"verification,omitempty"`
	Error         string              `json:"error,omitempty"`
}

// FixAndVerifyResult is the terminal output of the pipeline. FinalFix and
// FinalVerification are non-nil iff Succeeded.
type FixAndVerifyResult struct {
	RunID             string              `json:"run_id"`
	Succeeded         bool                `json:"succeeded"`
	Attempts          []FixAttempt        `json:"attempts"`
	FinalFix          *FixResult          `json:"final_fix,omitempty"`
	FinalVerification *VerificationResult `json:"final_verification,omitempty"`
	RelevantFiles     []RelevantFile      `json:"relevant_files"`
	CodebaseContext   string              `json:"codebase_context"`
}

// PriorAttempt carries a failed fix forward into the next generation call so
// the service can avoid repeating the same change.
type PriorAttempt struct {
	Fix         *FixResult `json:"fix"`
	FailureText string     `json:"failure_text"`
}

// ModelTier selects the class of model used for a generation request.
type ModelTier string

const (
	// TierFast is for cheap, latency-sensitive calls (file selection).
	TierFast ModelTier = "fast"
	// TierPowerful is for precision-sensitive calls (fix and test generation).
	TierPowerful ModelTier = "powerful"
)

// GenerationOptions tunes a single LLM generation call.
type GenerationOptions struct {
	Temperature     float64 `json:"temperature"`
	ForceJSONFormat bool    `json:"force_json_format"`
	MaxOutputTokens int     `json:"max_output_tokens,omitempty"`
}

// InlineImage attaches raw image bytes to a generation request (used by the
// advisory visual assessment).
type InlineImage struct {
	MIMEType string `json:"mime_type"`
	Data     []byte `json:"data"`
}

// GenerationRequest is a provider-agnostic LLM request: system and user
// prompts, the desired model tier, optional inline images, and options.
type GenerationRequest struct {
	SystemPrompt string            `json:"system_prompt"`
	UserPrompt   string            `json:"user_prompt"`
	Tier         ModelTier         `json:"tier"`
	Images       []InlineImage     `json:"images,omitempty"`
	Options      GenerationOptions `json:"options"`
}
