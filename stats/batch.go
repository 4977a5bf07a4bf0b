// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package stats

import "math"

// StageRiskLimit splits a risk limit across stages: 1 - (1-α)^(1/S)
func StageRiskLimit(riskLimit float64, stages int) float64 {
	if stages <= 1 {
		return riskLimit
	}
	return 1 - math.Pow(1-riskLimit, 1/float64(stages))
}

// BatchErrorBound is the total error bound U, in units of the margin, when
// every batch can overstate the margin by at most 2·batchSize votes.
func BatchErrorBound(batchSize, numBatches, margin int) float64 {
	if margin <= 0 {
		return math.Inf(1)
	}
	return float64(numBatches) * 2 * float64(batchSize) / float64(margin)
}

// CastFraction is the smallest fraction of batches whose taint must exceed t
// if the reported outcome is wrong.
func CastFraction(threshold, bound float64) (float64, error) {
	if threshold*bound >= 1 {
		return 0, ErrThreshold
	}
	f := (1 - threshold*bound) / (bound * (1 - threshold))
	return math.Min(f, 1), nil
}

// CastSampleSize is the number of batches that must be drawn so that missing
// every tainted batch has probability at most stageRisk.
func CastSampleSize(stageRisk, fraction float64, numBatches int) int {
	n := 1
	if fraction < 1 {
		n = int(math.Ceil(math.Log(stageRisk) / math.Log(1-fraction)))
	}
	return min(max(n, 1), numBatches)
}

// CastStageRisk is the chance that n draws all miss a fraction f of batches
func CastStageRisk(fraction float64, n int) float64 {
	return math.Pow(1-fraction, float64(n))
}

// BatchTaint is a batch's overstatement of the pair margin relative to the
// largest overstatement the batch could carry.
func BatchTaint(reported, counted []int, w, l, batchSize int) float64 {
	return float64(Overstatement(counted, reported, w, l)) / float64(2*batchSize)
}
