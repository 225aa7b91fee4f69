package repository

import "errors"

// Sentinel kinds for ranking errors.
var (
	ErrNotFound     = errors.New("climber not found")
	ErrInvalidLimit = errors.New("invalid ranking limit")
	ErrInvalidEntry = errors.New("invalid standing")
)
