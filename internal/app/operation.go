package app

import "time"

// Operation identifies one CLI invocation (serve, migrate, reconcile). Its ID
// tags every log line the invocation writes.
type Operation struct {
	ID        string
	Name      string
	StartedAt time.Time
	Status    string // "running", "success" or "error"
}

// NewOperation creates an operation started at now, with an ID derived from
// the start time.
func NewOperation(name string, now time.Time) *Operation {
	now = now.UTC()
	return &Operation{
		ID:        now.Format("20060102T150405Z"),
		Name:      name,
		StartedAt: now,
		Status:    "running",
	}
}

// Finish records the outcome and returns how long the operation ran.
func (op *Operation) Finish(err error, now time.Time) time.Duration {
	op.Status = "success"
	if err != nil {
		op.Status = "error"
	}
	return now.Sub(op.StartedAt)
}
