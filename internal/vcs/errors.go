package vcs

import (
	"errors"
	"fmt"
)

// Error categories. Operations wrap one of these so callers can classify a
// failure with errors.Is while the message keeps the underlying cause.
var (
	ErrIO              = errors.New("i/o error")
	ErrNotFound        = errors.New("not found")
	ErrValidation      = errors.New("invalid input")
	ErrHostUnavailable = errors.New("document host unavailable")
	ErrHash            = errors.New("hash failed")
	ErrStorage         = errors.New("storage error")
	// ErrContentMismatch means bytes did not hash to the digest they were
	// stored or restored under, usually because a file changed mid-read.
	ErrContentMismatch = errors.New("content does not match its hash")

	// ErrInvalidRepository is returned by every Repository operation when
	// the repository failed to initialize.
	ErrInvalidRepository = fmt.Errorf("%w: repository is not valid", ErrStorage)
)

// Warning is a non-fatal step failure recorded during commit or revert.
type Warning struct {
	Step string
	Err  error
}

func (w Warning) String() string {
	return fmt.Sprintf("%s: %v", w.Step, w.Err)
}
