package voting

import (
	"context"
	"sync"
	"sync/atomic"
)

type ledgerKey struct {
	userID int
	target Target
}

// MemoryStore is an in-process Store. The ledger is guarded by a mutex and
// each target's score is an atomic counter, so concurrent votes on the same
// target never lose an increment.
type MemoryStore struct {
	mu     sync.Mutex
	votes  map[ledgerKey]Value
	scores sync.Map // Target -> *atomic.Int64
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{votes: make(map[ledgerKey]Value)}
}

// AddTarget registers a votable record with a starting score. Registering
// an existing target leaves its score untouched.
func (s *MemoryStore) AddTarget(target Target, score int) {
	counter := new(atomic.Int64)
	counter.Store(int64(score))
	s.scores.LoadOrStore(target, counter)
}

func (s *MemoryStore) Apply(_ context.Context, userID int, target Target, value Value) (Result, error) {
	raw, ok := s.scores.Load(target)
	if !ok {
		return Result{}, ErrTargetNotFound
	}
	counter := raw.(*atomic.Int64)

	res := Result{Target: target, Value: value}
	key := ledgerKey{userID: userID, target: target}

	s.mu.Lock()
	prev, exists := s.votes[key]
	switch {
	case !exists:
		s.votes[key] = value
		res.Outcome = Created
		res.Delta = int(value)
	case prev == value:
		res.Outcome = Unchanged
	default:
		s.votes[key] = value
		res.Outcome = Flipped
		res.Delta = int(value) - int(prev)
	}
	s.mu.Unlock()

	if res.Delta != 0 {
		res.Score = int(counter.Add(int64(res.Delta)))
	} else {
		res.Score = int(counter.Load())
	}
	return res, nil
}

// Score returns the current score of target.
func (s *MemoryStore) Score(target Target) (int, bool) {
	raw, ok := s.scores.Load(target)
	if !ok {
		return 0, false
	}
	return int(raw.(*atomic.Int64).Load()), true
}

// Vote returns userID's current vote on target.
func (s *MemoryStore) Vote(userID int, target Target) (Value, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.votes[ledgerKey{userID: userID, target: target}]
	return v, ok
}

// VoteCount returns the number of ledger entries referencing target.
func (s *MemoryStore) VoteCount(target Target) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for k := range s.votes {
		if k.target == target {
			n++
		}
	}
	return n
}
