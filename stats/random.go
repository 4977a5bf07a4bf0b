// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package stats

import (
	"math"
	"math/rand"

	"github.com/seehuhn/mt19937"
)

// Independent random streams derived from one audit seed
const (
	StreamBallots uint64 = iota + 1
	StreamBatches
	StreamMonteCarlo
)

// NewSource returns a Mersenne Twister keyed by the seed and stream ids.
// The same key always yields the same sequence.
func NewSource(seed int64, stream ...uint64) *mt19937.MT19937 {
	key := make([]uint64, 0, len(stream)+1)
	key = append(key, uint64(seed))
	key = append(key, stream...)

	mt := mt19937.New()
	mt.SeedFromSlice(key)
	return mt
}

// NewRand wraps NewSource in a math/rand generator
func NewRand(seed int64, stream ...uint64) *rand.Rand {
	return rand.New(NewSource(seed, stream...))
}

// SeedFromFloat maps a seed that arrived as a float to an integer seed.
// Integral values map to themselves; anything else to its IEEE-754 bits.
func SeedFromFloat(f float64) int64 {
	if f == math.Trunc(f) && math.Abs(f) < 1<<62 {
		return int64(f)
	}
	return int64(math.Float64bits(f))
}

// BallotSelector draws 1-based ballot numbers with replacement
type BallotSelector struct {
	rng        *rand.Rand
	population int
	drawn      []int
}

func NewBallotSelector(seed int64, population int) *BallotSelector {
	return &BallotSelector{
		rng:        NewRand(seed, StreamBallots),
		population: population,
	}
}

// Positions returns draws from (0-based) index `from` up to count of them.
// Draw i is the same no matter how the calls are split.
func (s *BallotSelector) Positions(from, count int) []int {
	if count <= 0 || s.population <= 0 {
		return []int{}
	}
	for len(s.drawn) < from+count {
		s.drawn = append(s.drawn, int(s.rng.Int63n(int64(s.population)))+1)
	}
	return append([]int(nil), s.drawn[from:from+count]...)
}

// BallotOrder is a seeded random order of 1-based ballot numbers, drawn
// without replacement. The shuffle is generated lazily so only the ballots
// actually requested are materialised.
type BallotOrder struct {
	rng        *rand.Rand
	population int
	swapped    map[int]int // index -> ballot index moved there by an earlier swap
	drawn      []int
}

func NewBallotOrder(seed int64, population int) *BallotOrder {
	return &BallotOrder{
		rng:        NewRand(seed, StreamBallots),
		population: population,
		swapped:    make(map[int]int),
	}
}

// Positions returns up to count ballot numbers starting at index from. Draw i
// is the same no matter how the calls are split.
func (s *BallotOrder) Positions(from, count int) []int {
	if count <= 0 || from >= s.population {
		return []int{}
	}
	end := min(from+count, s.population)
	for len(s.drawn) < end {
		i := len(s.drawn)
		j := i + int(s.rng.Int63n(int64(s.population-i)))
		pick := s.at(j)
		s.swapped[j] = s.at(i)
		delete(s.swapped, i)
		s.drawn = append(s.drawn, pick+1)
	}
	return append([]int(nil), s.drawn[from:end]...)
}

func (s *BallotOrder) at(i int) int {
	if v, ok := s.swapped[i]; ok {
		return v
	}
	return i
}

// BatchSelector is a seeded random order of 1-based batch numbers, drawn
// without replacement
type BatchSelector struct {
	order []int
}

func NewBatchSelector(seed int64, numBatches int) *BatchSelector {
	perm := NewRand(seed, StreamBatches).Perm(numBatches)
	for i := range perm {
		perm[i]++
	}
	return &BatchSelector{order: perm}
}

// Positions returns up to count batch numbers starting at index from
func (s *BatchSelector) Positions(from, count int) []int {
	if from >= len(s.order) || count <= 0 {
		return []int{}
	}
	end := min(from+count, len(s.order))
	return append([]int(nil), s.order[from:end]...)
}

// Len is the number of batches in the order
func (s *BatchSelector) Len() int {
	return len(s.order)
}
