// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package stats

import "math"

// kmFloor keeps Kaplan-Markov factors strictly positive
const kmFloor = 1e-9

// DilutedMargin is the pair's reported margin divided by ballots cast
func DilutedMargin(vw, vl, ballotsCast int) float64 {
	if ballotsCast <= 0 {
		return 0
	}
	return float64(vw-vl) / float64(ballotsCast)
}

// Overstatement is how far the recorded votes overstate the winner's lead
// over the loser compared to the hand-interpreted paper: positive values
// favor the reported outcome wrongly, negative values are understatements.
func Overstatement(paper, recorded []int, w, l int) int {
	return (recorded[w] - recorded[l]) - (paper[w] - paper[l])
}

// KaplanMarkovTerm is the log factor one ballot contributes to the running
// Kaplan-Markov statistic for a pair with diluted margin μ and error
// inflation γ. The factor (1 - ω/2γ) is clipped at a small positive floor.
func KaplanMarkovTerm(overstatement int, margin, gamma float64) float64 {
	taint := float64(overstatement) / (2 * gamma)
	return math.Log(math.Max(1-taint, kmFloor)) - math.Log(1-margin/(2*gamma))
}

// SuperSimpleRho is the SuperSimple sample-size constant
// ρ = -ln α / (1/(2γ) + λ·ln(1 - 1/(2γ))).
func SuperSimpleRho(riskLimit, gamma, tolerance float64) (float64, error) {
	denom := 1/(2*gamma) + tolerance*math.Log(1-1/(2*gamma))
	if denom <= 0 {
		return 0, ErrTolerance
	}
	return -math.Log(riskLimit) / denom, nil
}

// SuperSimpleSampleSize is the initial sample size ⌈ρ/μ⌉
func SuperSimpleSampleSize(riskLimit, gamma, tolerance, margin float64) (int, error) {
	if margin <= 0 {
		return 0, ErrZeroMargin
	}
	rho, err := SuperSimpleRho(riskLimit, gamma, tolerance)
	if err != nil {
		return 0, err
	}
	return int(math.Ceil(rho / margin)), nil
}

// KaplanMarkovRemaining estimates the ballots still needed to close a gap in
// the log statistic, assuming one-vote overstatements at rate λ·μ.
func KaplanMarkovRemaining(gap, margin, gamma, tolerance float64) int {
	if gap <= 0 {
		return 0
	}
	drift := -math.Log(1-margin/(2*gamma)) + tolerance*margin*math.Log(1-1/(2*gamma))
	if drift <= 0 {
		return math.MaxInt32
	}
	return int(math.Ceil(gap / drift))
}
