package game

import (
	"math/rand"
	"sync"
)

// MoveSource supplies a synthesized move when a participant fails to
// reveal in time. last is the opponent's last revealed move, nil before
// any turn has concluded.
type MoveSource interface {
	Next(last *Move) Move
}

// RandomSource picks uniformly. The zero value is not usable; use
// NewRandomSource.
type RandomSource struct {
	mu  sync.Mutex
	rng *rand.Rand
}

func NewRandomSource(seed int64) *RandomSource {
	return &RandomSource{rng: rand.New(rand.NewSource(seed))}
}

func (s *RandomSource) Next(_ *Move) Move {
	s.mu.Lock()
	defer s.mu.Unlock()
	return allMoves[s.rng.Intn(len(allMoves))]
}

// PredictorSource counts the opponent's revealed history and plays the
// counter to their most frequent move. With no history it falls back to
// uniform random.
type PredictorSource struct {
	mu     sync.Mutex
	counts map[Move]int
	rng    *rand.Rand
}

func NewPredictorSource(seed int64) *PredictorSource {
	return &PredictorSource{
		counts: make(map[Move]int),
		rng:    rand.New(rand.NewSource(seed)),
	}
}

func (s *PredictorSource) Next(last *Move) Move {
	s.mu.Lock()
	defer s.mu.Unlock()

	if last != nil && last.Valid() {
		s.counts[*last]++
	}

	var predicted Move
	best := 0
	for _, m := range allMoves {
		if s.counts[m] > best {
			best = s.counts[m]
			predicted = m
		}
	}
	if best == 0 {
		return allMoves[s.rng.Intn(len(allMoves))]
	}
	return predicted.Beats()
}

// SourceFactory builds a fresh per-role source so that one match's
// history never leaks into another.
type SourceFactory func() MoveSource

// NewSourceFactory returns a factory for the named strategy. Unknown
// names fall back to "random".
func NewSourceFactory(strategy string, seed func() int64) SourceFactory {
	switch strategy {
	case "predictor":
		return func() MoveSource { return NewPredictorSource(seed()) }
	default:
		return func() MoveSource { return NewRandomSource(seed()) }
	}
}
