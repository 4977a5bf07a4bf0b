// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package stats holds the statistics behind each audit method.

Everything here is a pure function of its inputs and, where randomness is
involved, of a seed. Package audit keeps the running state; this package only
computes increments, thresholds and sample sizes.

# Ballot Polling (BRAVO)

Each reported winner/loser pair carries a log-likelihood ratio. A ballot for
the winner only adds ln(2·pw), a ballot for the loser only adds ln(2·pl):

	pair, err := stats.NewBravoPair(650, 350, 1000)
	inc, refuted := pair.Increment(true, false)

The pair is confirmed once the ratio reaches BravoThreshold(α) = ln(1/α).
BravoASN gives the closed-form expected sample size.

# Ballot-Level Comparison (SuperSimple)

Overstatement compares a cast-vote record to its paper ballot.
KaplanMarkovTerm turns an overstatement into a log factor of the running
Kaplan-Markov statistic; the pair is confirmed when the statistic reaches 1/α.

# Batch Comparison (CAST)

StageRiskLimit splits α across stages, CastFraction and CastSampleSize size
each stage, and BatchTaint scores one hand-counted batch.

# Bayesian Polling

UpsetProbability draws Dirichlet posteriors (gonum) and reports how often the
reported winners lose.

# Randomness

NewSource seeds a Mersenne Twister from (seed, stream...). BallotSelector,
BallotOrder and BatchSelector turn a seed into the ballot or batch numbers an
auditor draws. BallotSelector draws with replacement; BallotOrder and
BatchSelector never repeat a number.
*/
package stats
