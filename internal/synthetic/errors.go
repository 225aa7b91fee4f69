package synthetic

import "errors"

// Sentinel error kinds for this package. These allow errors.Is/As from callers.
var (
	ErrInvalidConfig = errors.New("invalid synthetic config")
	ErrMismatch      = errors.New("estimates do not match the history")
)
