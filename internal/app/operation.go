package app

import (
	"time"

	"github.com/google/uuid"
)

// Operation tracks one CLI invocation. Its ID tags every log line the
// invocation writes so a single run can be pulled out of the shared log.
type Operation struct {
	ID        string
	Name      string
	Status    string // "success" or "error"
	StartedAt time.Time
}

// NewOperation creates an operation with a fresh random ID.
func NewOperation(name string, now time.Time) *Operation {
	return &Operation{
		ID:        uuid.NewString(),
		Name:      name,
		Status:    "success",
		StartedAt: now,
	}
}

// ShortID returns the first block of the ID, enough to grep a log by.
func (op *Operation) ShortID() string {
	if len(op.ID) >= 8 {
		return op.ID[:8]
	}
	return op.ID
}

// Fail marks the operation as failed. It stays failed once marked.
func (op *Operation) Fail() {
	op.Status = "error"
}

// Failed reports whether Fail was called.
func (op *Operation) Failed() bool {
	return op.Status == "error"
}
