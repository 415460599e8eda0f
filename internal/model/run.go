package model

import "time"

// CycleRun is one row in the cycle run log, recording an orchestrated
// reconciliation cycle from gate decision through apply.
type CycleRun struct {
	ID               string     `json:"id"`
	Mode             string     `json:"mode"`
	Status           string     `json:"status"`
	ValidationStatus Health     `json:"validation_status,omitempty"`
	ApplyStatus      Health     `json:"apply_status,omitempty"`
	RowsInserted     int        `json:"rows_inserted"`
	RowsUpdated      int        `json:"rows_updated"`
	SkipReason       string     `json:"skip_reason,omitempty"`
	StartedAt        time.Time  `json:"started_at"`
	CompletedAt      *time.Time `json:"completed_at,omitempty"`
}

// Cycle run statuses recorded in the run log.
const (
	CycleRunRunning  = "running"
	CycleRunComplete = "complete"
	CycleRunSkipped  = "skipped"
	CycleRunFailed   = "failed"
)
