// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package stats

import "math"

// BravoPair holds the reported within-pair proportions for one
// winner/loser pair and the log-likelihood increments they imply.
type BravoPair struct {
	Pw    float64 // winner share of the pair's votes
	Pl    float64 // loser share of the pair's votes
	Zw    float64 // ln(2·Pw), added for a winner-only ballot
	Zl    float64 // ln(2·Pl), added for a loser-only ballot (0 when Pl = 0)
	Share float64 // fraction of all ballots that carry a vote for either candidate
}

// NewBravoPair builds the pair weights from reported counts
func NewBravoPair(vw, vl, ballotsCast int) (BravoPair, error) {
	if ballotsCast <= 0 {
		return BravoPair{}, ErrNoBallots
	}
	if vw <= vl {
		return BravoPair{}, ErrZeroMargin
	}

	n := float64(vw + vl)
	pw := float64(vw) / n
	pl := 1 - pw

	p := BravoPair{
		Pw:    pw,
		Pl:    pl,
		Zw:    math.Log(2 * pw),
		Share: n / float64(ballotsCast),
	}
	if pl > 0 {
		p.Zl = math.Log(2 * pl)
	}
	return p, nil
}

// BravoThreshold is the log-likelihood ratio a pair must reach: ln(1/α)
func BravoThreshold(riskLimit float64) float64 {
	return math.Log(1 / riskLimit)
}

// Increment returns the log-likelihood change for one ballot given whether it
// marks the pair's winner and loser. The second result is true when the
// ballot is impossible under the reported tally (a loser-only ballot for a
// loser reported with zero votes).
func (p BravoPair) Increment(winner, loser bool) (float64, bool) {
	switch {
	case winner && !loser:
		return p.Zw, false
	case loser && !winner:
		if p.Pl == 0 {
			return 0, true
		}
		return p.Zl, false
	}
	return 0, false
}

// Drift is the expected per-ballot increment when the reported tally is correct
func (p BravoPair) Drift() float64 {
	return p.Share * (p.Pw*p.Zw + p.Pl*p.Zl)
}

// Remaining estimates how many more ballots are needed to close a
// log-likelihood gap, using the SPRT average sample number approximation.
func (p BravoPair) Remaining(gap float64) int {
	if gap <= 0 {
		return 0
	}
	drift := p.Drift()
	if drift <= 0 {
		return math.MaxInt32
	}
	return int(math.Ceil((gap + p.Zw/2) / drift))
}

// BravoASN is the closed-form average sample number of a BRAVO audit for the
// pair (vw, vl). Returns 0 when the pair has no positive margin.
func BravoASN(ballotsCast int, riskLimit float64, vw, vl int) int {
	p, err := NewBravoPair(vw, vl, ballotsCast)
	if err != nil {
		return 0
	}
	return p.Remaining(BravoThreshold(riskLimit))
}
