package models

import "time"

const (
	PageStatusPending    = "pending"
	PageStatusProcessing = "processing"
	PageStatusCompleted  = "completed"
	PageStatusFailed     = "failed"
)

// PageJob tracks the processing of a single page within a run. It is created
// when a run schedules the page and mutated only by the worker that owns it.
// Completed and failed are terminal; there are no further transitions.
type PageJob struct {
	Page         int        `json:"page"`
	Status       string     `json:"status"`
	ErrorMessage string     `json:"error_message,omitempty"`
	CompletedAt  *time.Time `json:"completed_at,omitempty"`
}

// Terminal reports whether the job has reached a final state.
func (j PageJob) Terminal() bool {
	return j.Status == PageStatusCompleted || j.Status == PageStatusFailed
}

const (
	RunStatusPending    = "pending"
	RunStatusProcessing = "processing"
	RunStatusCompleted  = "completed"
	RunStatusFailed     = "failed"
)
