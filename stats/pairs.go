// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package stats

import "sort"

// Pair is one reported-winner/reported-loser pair, by candidate index
type Pair struct {
	Winner int
	Loser  int
}

// Winners returns the indices of the k candidates with the most votes.
// Ties are broken toward the lower index so the result is stable.
func Winners(votes []int, k int) []int {
	order := rankOrder(votes)
	if k > len(order) {
		k = len(order)
	}
	if k < 0 {
		k = 0
	}
	winners := append([]int(nil), order[:k]...)
	sort.Ints(winners)
	return winners
}

// Losers returns every candidate index not in Winners(votes, k)
func Losers(votes []int, k int) []int {
	isWinner := make(map[int]bool, k)
	for _, w := range Winners(votes, k) {
		isWinner[w] = true
	}

	losers := make([]int, 0, len(votes))
	for i := range votes {
		if !isWinner[i] {
			losers = append(losers, i)
		}
	}
	return losers
}

// Pairs returns every reported-winner/reported-loser pair
func Pairs(votes []int, k int) []Pair {
	winners := Winners(votes, k)
	losers := Losers(votes, k)

	pairs := make([]Pair, 0, len(winners)*len(losers))
	for _, w := range winners {
		for _, l := range losers {
			pairs = append(pairs, Pair{Winner: w, Loser: l})
		}
	}
	return pairs
}

// MarginPair returns the vote counts of the weakest reported winner and the
// strongest reported loser, the pair that drives sample sizes.
func MarginPair(votes []int, k int) (vw, vl int) {
	order := rankOrder(votes)
	if k <= 0 || k >= len(order) {
		return 0, 0
	}
	return votes[order[k-1]], votes[order[k]]
}

// SameWinners reports whether tally elects exactly the candidates in winners
func SameWinners(tally []float64, winners []int) bool {
	order := make([]int, len(tally))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(i, j int) bool {
		return tally[order[i]] > tally[order[j]]
	})

	k := len(winners)
	if k == 0 || k >= len(order) {
		return false
	}

	// a tie across the seat boundary does not elect the reported winners
	if tally[order[k-1]] == tally[order[k]] {
		return false
	}

	elected := make(map[int]bool, k)
	for _, c := range order[:k] {
		elected[c] = true
	}
	for _, w := range winners {
		if !elected[w] {
			return false
		}
	}
	return true
}

// rankOrder returns candidate indices sorted by votes, highest first
func rankOrder(votes []int) []int {
	order := make([]int, len(votes))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(i, j int) bool {
		return votes[order[i]] > votes[order[j]]
	})
	return order
}
