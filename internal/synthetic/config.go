package synthetic

import "time"

// Config describes a synthetic ascent history.
type Config struct {
	Climbers int // number of climbers
	Routes   int // number of routes
	// MaxSessions bounds each climber's pages; each climber gets 1..MaxSessions.
	MaxSessions       int
	AscentsPerSession int
	SessionGap        time.Duration // mean time between a climber's sessions
	Start             time.Time     // time of the earliest session

	RouteSpread   float64 // route ratings are uniform in [-RouteSpread, RouteSpread]
	GradeNoise    float64 // std dev of ln(grade) around the true route rating
	ClimberSpread float64 // std dev of climbers' first-page ratings
	Drift         float64 // std dev of the rating change between sessions

	Seed    int64
	Workers int
}

// DefaultConfig returns a small history that estimates in well under a second.
func DefaultConfig() Config {
	return Config{
		Climbers:          50,
		Routes:            40,
		MaxSessions:       4,
		AscentsPerSession: 12,
		SessionGap:        14 * 24 * time.Hour,
		Start:             time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		RouteSpread:       2,
		GradeNoise:        0.3,
		ClimberSpread:     1,
		Drift:             0.1,
		Seed:              1,
		Workers:           4,
	}
}

// Truth holds the ratings a synthetic history was drawn from.
type Truth struct {
	RouteRatings []float64
	PageRatings  []float64
}
