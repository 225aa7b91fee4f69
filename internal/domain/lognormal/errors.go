package lognormal

import "github.com/pkg/errors"

// Sentinel kinds for log-normal prior errors.
var (
	ErrNonPositiveVariance = errors.New("variance must be positive")
	ErrInvalidInput        = errors.New("invalid log-normal input")
)
