package repository

// Option applies a configuration option to the RankingStore.
type Option func(*RankingStore)

// WithMaxVariance drops standings less certain than v from the ranking.
func WithMaxVariance(v float64) Option {
	return func(s *RankingStore) {
		if v > 0 {
			s.maxVariance = v
		}
	}
}
