package ascents

import "github.com/pkg/errors"

// Sentinel kinds for ascent aggregation errors. These allow errors.Is from callers.
var (
	ErrInvalidSlice   = errors.New("invalid slice")
	ErrLengthMismatch = errors.New("array length mismatch")
	ErrInvalidIndex   = errors.New("subject index out of range")
	ErrInvalidOutcome = errors.New("ascent outcome must be 0 or 1")
)
