// api/schemas/errors.go
package schemas

import (
	"fmt"
	"time"
)

// GenerationError reports a fix or test proposal that could not be parsed into
// the required shape. It carries the raw service response for diagnosis. The
// pipeline recovers by moving to the next attempt or sub-retry.
type GenerationError struct {
	Kind string // "fix" or "test"
	Raw  string
	Err  error
}

func (e *GenerationError) Error() string {
	return fmt.Sprintf("%s generation failed: %v", e.Kind, e.Err)
}

func (e *GenerationError) Unwrap() error { return e.Err }

// ApplyError reports a filesystem failure while applying a fix. The backup
// entries captured before the failure remain valid and must be rolled back.
type ApplyError struct {
	Path string
	Err  error
}

func (e *ApplyError) Error() string {
	return fmt.Sprintf("apply failed for %s: %v", e.Path, e.Err)
}

func (e *ApplyError) Unwrap() error { return e.Err }

// ServerStartupTimeoutError reports that the dev server did not become ready
// within the configured timeout. It is an infrastructure failure, never
// counted as a test failure.
type ServerStartupTimeoutError struct {
	URL     string
	Timeout time.Duration
}

func (e *ServerStartupTimeoutError) Error() string {
	return fmt.Sprintf("server at %s did not become ready within %s", e.URL, e.Timeout)
}

// RollbackError reports a failure to restore a backup entry. This is fatal:
// the workspace may be left mutated, so the pipeline halts further attempts
// rather than swallowing it.
type RollbackError struct {
	Path string
	Err  error
}

func (e *RollbackError) Error() string {
	return fmt.Sprintf("rollback failed for %s: %v", e.Path, e.Err)
}

func (e *RollbackError) Unwrap() error { return e.Err }
