package testutil

import (
	"sync"
	"time"

	"swvcs/internal/vcs"
)

// StubClock is a settable vcs.Clock. Safe for concurrent use.
type StubClock struct {
	mu  sync.Mutex
	now time.Time
}

var _ vcs.Clock = (*StubClock)(nil)

// NewStubClock creates a StubClock set to the given time.
func NewStubClock(t time.Time) *StubClock {
	return &StubClock{now: t}
}

// FixedClock returns a StubClock at 2024-01-15 10:30:00 UTC, which commits
// record as "2024-01-15T10:30:00Z".
func FixedClock() *StubClock {
	return NewStubClock(time.Date(2024, 1, 15, 10, 30, 0, 0, time.UTC))
}

func (c *StubClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Timestamp returns the current stub time in commit timestamp form.
func (c *StubClock) Timestamp() string {
	return vcs.FormatTimestamp(c.Now())
}

// Advance moves the clock forward by d. Commit timestamps have second
// resolution, so tests that need distinct ordering advance by at least that.
func (c *StubClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}
