package repository

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"
	"sync/atomic"
)

// RankingStore is an in-memory Store.
//
// Ordering: rating DESC, then climberID ASC (deterministic). Climbers with
// equal ratings share a rank and the next rating takes the next rank.
// Reads are served from an immutable snapshot rebuilt after writes.
type RankingStore struct {
	mu          sync.RWMutex
	byID        map[string]Standing
	maxVariance float64

	snapshot atomic.Pointer[snapshot]
}

type snapshot struct {
	ordered []Entry
	byID    map[string]int // index into ordered
}

var _ Store = (*RankingStore)(nil)

// NewRankingStore creates an empty store.
func NewRankingStore(opts ...Option) *RankingStore {
	s := &RankingStore{
		byID:        make(map[string]Standing),
		maxVariance: math.Inf(1),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *RankingStore) Update(_ context.Context, st Standing) (bool, error) {
	if st.ClimberID == "" {
		return false, fmt.Errorf("%w: empty climber id", ErrInvalidEntry)
	}
	if math.IsNaN(st.Rating) || math.IsInf(st.Rating, 0) {
		return false, fmt.Errorf("%w: climber %s rating %g", ErrInvalidEntry, st.ClimberID, st.Rating)
	}
	if st.Variance > s.maxVariance {
		return false, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if old, ok := s.byID[st.ClimberID]; ok && st.Timestamp < old.Timestamp {
		return false, nil
	}
	s.byID[st.ClimberID] = st
	s.snapshot.Store(nil)
	return true, nil
}

func (s *RankingStore) Rank(_ context.Context, climberID string) (Entry, error) {
	snap := s.current()
	i, ok := snap.byID[climberID]
	if !ok {
		return Entry{}, fmt.Errorf("%w: %s", ErrNotFound, climberID)
	}
	return snap.ordered[i], nil
}

func (s *RankingStore) TopN(_ context.Context, n int) ([]Entry, error) {
	if n < 1 {
		return nil, ErrInvalidLimit
	}
	snap := s.current()
	if n > len(snap.ordered) {
		n = len(snap.ordered)
	}
	out := make([]Entry, n)
	copy(out, snap.ordered[:n])
	return out, nil
}

func (s *RankingStore) Count(_ context.Context) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.byID)
}

// current returns the snapshot, rebuilding it if a write invalidated it.
func (s *RankingStore) current() *snapshot {
	if snap := s.snapshot.Load(); snap != nil {
		return snap
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if snap := s.snapshot.Load(); snap != nil {
		return snap
	}

	ordered := make([]Entry, 0, len(s.byID))
	for _, st := range s.byID {
		ordered = append(ordered, Entry{Standing: st})
	}
	sortEntries(ordered)
	assignRanksWithTies(ordered)

	snap := &snapshot{ordered: ordered, byID: make(map[string]int, len(ordered))}
	for i, e := range ordered {
		snap.byID[e.ClimberID] = i
	}
	s.snapshot.Store(snap)
	return snap
}

func sortEntries(entries []Entry) {
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Rating != entries[j].Rating {
			return entries[i].Rating > entries[j].Rating
		}
		return entries[i].ClimberID < entries[j].ClimberID
	})
}

// assignRanksWithTies expects entries sorted by rating desc.
func assignRanksWithTies(entries []Entry) {
	rank := 0
	for i := range entries {
		if i == 0 || entries[i].Rating != entries[i-1].Rating {
			rank++
		}
		entries[i].Rank = rank
	}
}
