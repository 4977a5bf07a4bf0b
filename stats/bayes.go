// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package stats

import (
	"math/rand/v2"

	"gonum.org/v1/gonum/stat/distmv"
)

// priorFloor keeps every Dirichlet parameter positive
const priorFloor = 1e-3

// UpsetProbability estimates, by Monte Carlo, the posterior probability that
// the reported winners would not win once the unsampled votes are known.
//
// The prior spreads one pseudo-vote across candidates by reported share. Each
// trial draws candidate shares from the Dirichlet posterior and allocates the
// votes still outside the sample (population minus sampled votes) by those
// shares.
func UpsetProbability(src rand.Source, reported, sample []int, population, k, trials int) float64 {
	if trials <= 0 {
		return 1
	}

	total := 0
	for _, v := range reported {
		total += v
	}
	sampled := 0
	for _, v := range sample {
		sampled += v
	}
	remaining := float64(max(population-sampled, 0))

	alpha := make([]float64, len(reported))
	for i, v := range reported {
		prior := priorFloor
		if total > 0 {
			prior = max(float64(v)/float64(total), priorFloor)
		}
		alpha[i] = prior + float64(sample[i])
	}

	winners := Winners(reported, k)
	dirichlet := distmv.NewDirichlet(alpha, src)
	shares := make([]float64, len(alpha))
	final := make([]float64, len(alpha))

	upsets := 0
	for t := 0; t < trials; t++ {
		dirichlet.Rand(shares)
		for i := range final {
			final[i] = float64(sample[i]) + shares[i]*remaining
		}
		if !SameWinners(final, winners) {
			upsets++
		}
	}
	return float64(upsets) / float64(trials)
}
