package app

import "time"

// Operation tracks one CLI command or daemon run. Its ID is stamped on
// every log line the operation produces.
type Operation struct {
	ID         string
	Name       string
	Parameters string
	Status     string // "success" or "error"
	StartedAt  time.Time
}

// NewOperation creates an operation that starts now.
func NewOperation(name, parameters string) *Operation {
	return &Operation{
		ID:         newOpID(),
		Name:       name,
		Parameters: parameters,
		Status:     "success",
		StartedAt:  time.Now(),
	}
}

// Track marks the operation failed if err is non-nil and returns err.
func (op *Operation) Track(err error) error {
	if err != nil {
		op.Status = "error"
	}
	return err
}

// Elapsed returns the time since the operation started.
func (op *Operation) Elapsed(now time.Time) time.Duration {
	return now.Sub(op.StartedAt)
}
