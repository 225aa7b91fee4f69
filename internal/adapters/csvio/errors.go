package csvio

import "errors"

// Sentinel error kinds for this package. These allow errors.Is/As from callers.
var (
	// ErrMalformed marks a file whose header, columns or values are unusable.
	ErrMalformed = errors.New("malformed csv")
	// ErrOrder marks rows out of the order the estimator requires.
	ErrOrder = errors.New("rows out of order")
	// ErrUnknownRef marks a reference to a route or page that does not exist.
	ErrUnknownRef = errors.New("unknown reference")
)
