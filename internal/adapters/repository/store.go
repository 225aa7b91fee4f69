// Package repository holds climber rankings built from estimated page ratings.
package repository

import "context"

// Standing is one climber's rating as of one page.
type Standing struct {
	ClimberID string
	Rating    float64
	Variance  float64
	// Timestamp of the page, Unix seconds. Later pages replace earlier ones.
	Timestamp int64
}

// Entry represents a ranking row.
type Entry struct {
	Rank int
	Standing
}

// Store provides read/write access to the ranking state.
type Store interface {
	// Update records s if it is the climber's latest standing.
	// Returns true if the store changed, false otherwise.
	Update(ctx context.Context, s Standing) (bool, error)

	// Rank returns the current rank and standing for a climber.
	// Returns ErrNotFound if the climber is unknown.
	Rank(ctx context.Context, climberID string) (Entry, error)

	// TopN returns the top-N entries ordered by rating desc.
	TopN(ctx context.Context, n int) ([]Entry, error)

	// Count returns the number of climbers ranked.
	Count(ctx context.Context) int
}
