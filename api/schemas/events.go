// api/schemas/events.go
package schemas

import "time"

// Phase identifies the pipeline stage that emitted an event.
type Phase string

const (
	PhaseSelect   Phase = "select"
	PhaseGenerate Phase = "generate"
	PhaseApply    Phase = "apply"
	PhaseTestGen  Phase = "testgen"
	PhaseTestRun  Phase = "testrun"
	PhaseVisual   Phase = "visual"
	PhaseRollback Phase = "rollback"
	PhasePipeline Phase = "pipeline"
)

// EventStatus is the coarse outcome of a phase transition.
type EventStatus string

const (
	StatusStarted EventStatus = "started"
	StatusOK      EventStatus = "ok"
	StatusFailed  EventStatus = "failed"
	StatusRetry   EventStatus = "retry"
)

// Event is one entry in the structured progress stream emitted by the
// pipeline. Presentation layers consume these instead of matching log lines.
type Event struct {
	Time    time.Time   `json:"time"`
	Phase   Phase       `json:"phase"`
	Status  EventStatus `json:"status"`
	Attempt int         `json:"attempt,omitempty"`
	Retry   int         `json:"retry,omitempty"`
	Detail  string      `json:"detail,omitempty"`
}

// EventSink receives pipeline events. Implementations must be safe for use
// from the single pipeline goroutine; Publish must not block on slow
// consumers.
type EventSink interface {
	Publish(ev Event)
}
