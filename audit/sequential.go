// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package audit

import (
	"fmt"

	"github.com/dustin/go-humanize"

	"github.com/danielhkuo/quickly-audit/stats"
)

// SequentialTest is one audit method's running statistic and decision.
//
// Start and Ingest are only ever called by the owning session's worker.
// Validate is stateless and safe to call from any goroutine.
type SequentialTest interface {
	Variant() Variant
	EstimatedSampleSize() int
	Validate(s Sample) error
	Start() Decision
	Ingest(samples []Sample) Decision
	State() State
}

// NewTest builds the test for a variant, validating its configuration
func NewTest(v Variant, tally Tally, cfg Config) (SequentialTest, error) {
	switch v {
	case VariantBallotPolling:
		return NewBallotPollingTest(tally, cfg)
	case VariantComparison:
		return NewComparisonTest(tally, cfg)
	case VariantBatchComparison:
		return NewBatchComparisonTest(tally, cfg)
	case VariantBayesianPolling:
		return NewBayesianPollingTest(tally, cfg)
	}
	return nil, configErr("variant", "%q is not an audit method", v)
}

// validateContest checks the configuration shared by every variant
func validateContest(tally Tally, cfg Config) error {
	if !(cfg.RiskLimit > 0 && cfg.RiskLimit < 1) {
		return configErr("risk_limit", "must be strictly between 0 and 1, got %v", cfg.RiskLimit)
	}

	k := len(tally.Votes)
	if k < 2 {
		return configErr("candidate_votes", "at least two candidates are required")
	}
	if len(tally.Candidates) > 0 && len(tally.Candidates) != k {
		return configErr("candidates", "%d names given for %d vote counts", len(tally.Candidates), k)
	}
	if cfg.NumWinners < 1 || cfg.NumWinners >= k {
		return configErr("num_winners", "must be between 1 and %d, got %d", k-1, cfg.NumWinners)
	}
	if tally.BallotsCast <= 0 {
		return configErr("num_ballots_cast", "must be positive, got %d", tally.BallotsCast)
	}

	sum := 0
	for i, v := range tally.Votes {
		if v < 0 {
			return configErr("candidate_votes", "count for %s is negative", tally.candidateName(i))
		}
		if v > tally.BallotsCast {
			return configErr("candidate_votes", "count for %s exceeds ballots cast", tally.candidateName(i))
		}
		sum += v
	}
	if sum > cfg.NumWinners*tally.BallotsCast {
		return configErr("candidate_votes", "%d votes reported for %d ballots cast", sum, tally.BallotsCast)
	}
	return nil
}

// validateMarks checks one 0/1 mark vector
func validateMarks(index int, field string, marks []int, k int) error {
	if marks == nil {
		return &SampleFormatError{Index: index, Reason: field + " is missing"}
	}
	if len(marks) != k {
		return &SampleFormatError{Index: index, Reason: fmt.Sprintf("%s has %d entries, expected %d", field, len(marks), k)}
	}
	for _, m := range marks {
		if m != 0 && m != 1 {
			return &SampleFormatError{Index: index, Reason: fmt.Sprintf("%s entries must be 0 or 1, got %d", field, m)}
		}
	}
	return nil
}

// wrongSample reports a sample of another variant's type
func wrongSample(v Variant, s Sample) error {
	return &SampleFormatError{Index: -1, Reason: fmt.Sprintf("%T cannot be used in a %s audit", s, v)}
}

// zeroMargin describes a pair the statistic cannot separate
func zeroMargin(tally Tally, p stats.Pair, err error) *InternalComputationError {
	return &InternalComputationError{
		Reason: fmt.Sprintf("no reported margin between %s and %s; the test statistic is undefined and a full hand count is required",
			tally.candidateName(p.Winner), tally.candidateName(p.Loser)),
		Err: err,
	}
}

// positions is a seeded ballot order: with replacement for the risk-limiting
// tests, without for the Bayesian test
type positions interface {
	Positions(from, count int) []int
}

// ballotRequest asks for count more ballots, listing their ballot numbers
func ballotRequest(sel positions, drawn, count int) SampleRequest {
	return SampleRequest{
		Count:    count,
		Sequence: sel.Positions(drawn, min(count, SequenceWindow)),
	}
}

func certified(format string, args ...any) Decision {
	return Decision{Kind: Certified, Message: fmt.Sprintf(format, args...)}
}

func failed(format string, args ...any) Decision {
	return Decision{Kind: Failed, Message: fmt.Sprintf(format, args...)}
}

func comma(n int) string {
	return humanize.Comma(int64(n))
}

func percent(p float64) string {
	return humanize.FtoaWithDigits(p*100, 4) + "%"
}

func minOf(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	m := values[0]
	for _, v := range values[1:] {
		m = min(m, v)
	}
	return m
}
