// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package audit

import (
	"errors"
	"math"

	"github.com/danielhkuo/quickly-audit/stats"
)

// ComparisonTest is a SuperSimple ballot-level comparison audit. Each pair
// keeps the log of a Kaplan-Markov statistic; the pair is confirmed when the
// statistic's reciprocal, a P-value, falls to the risk limit.
type ComparisonTest struct {
	tally      Tally
	cfg        Config
	pairs      []stats.Pair
	margins    []float64
	logStats   []float64
	confirmed  []bool
	threshold  float64
	maxSamples int
	estimate   int
	selector   *stats.BallotSelector
	computeErr error

	consumed int
	decision Decision
}

// NewComparisonTest checks the contest and computes the diluted margin
func NewComparisonTest(tally Tally, cfg Config) (*ComparisonTest, error) {
	if err := validateContest(tally, cfg); err != nil {
		return nil, err
	}
	if cfg.InflationRate < 1 {
		return nil, configErr("inflation_rate", "must be at least 1, got %v", cfg.InflationRate)
	}
	if cfg.Tolerance < 0 || cfg.Tolerance >= 1 {
		return nil, configErr("tolerance", "must be in [0, 1), got %v", cfg.Tolerance)
	}
	if _, err := stats.SuperSimpleRho(cfg.RiskLimit, cfg.InflationRate, cfg.Tolerance); err != nil {
		return nil, configErr("tolerance", "%v", err)
	}
	if cfg.MaxSamples < 0 {
		return nil, configErr("max_tests", "must not be negative, got %d", cfg.MaxSamples)
	}

	t := &ComparisonTest{
		tally:      tally.clone(),
		cfg:        cfg,
		pairs:      stats.Pairs(tally.Votes, cfg.NumWinners),
		threshold:  math.Log(1 / cfg.RiskLimit),
		maxSamples: cfg.MaxSamples,
		selector:   stats.NewBallotSelector(cfg.Seed, tally.BallotsCast),
	}
	if t.maxSamples == 0 {
		t.maxSamples = tally.BallotsCast
	}

	smallest := math.Inf(1)
	for _, p := range t.pairs {
		m := stats.DilutedMargin(tally.Votes[p.Winner], tally.Votes[p.Loser], tally.BallotsCast)
		if m <= 0 && t.computeErr == nil {
			t.computeErr = zeroMargin(t.tally, p, stats.ErrZeroMargin)
		}
		t.margins = append(t.margins, m)
		smallest = min(smallest, m)
	}
	t.logStats = make([]float64, len(t.pairs))
	t.confirmed = make([]bool, len(t.pairs))

	n, err := stats.SuperSimpleSampleSize(cfg.RiskLimit, cfg.InflationRate, cfg.Tolerance, smallest)
	if err != nil && !errors.Is(err, stats.ErrZeroMargin) {
		return nil, configErr("tolerance", "%v", err)
	}
	t.estimate = min(n, tally.BallotsCast)

	return t, nil
}

func (t *ComparisonTest) Variant() Variant {
	return VariantComparison
}

// EstimatedSampleSize is the SuperSimple ⌈ρ/μ⌉ for the smallest diluted margin
func (t *ComparisonTest) EstimatedSampleSize() int {
	return t.estimate
}

func (t *ComparisonTest) Validate(s Sample) error {
	c, ok := s.(ComparisonSample)
	if !ok {
		return wrongSample(t.Variant(), s)
	}
	k := len(t.tally.Votes)
	if err := validateMarks(-1, "paper_record", c.Paper, k); err != nil {
		return err
	}
	return validateMarks(-1, "cvr", c.CVR, k)
}

func (t *ComparisonTest) Start() Decision {
	if t.computeErr != nil {
		t.decision = failed("%s", t.computeErr.Error())
		return t.decision
	}
	t.decision = t.next()
	return t.decision
}

func (t *ComparisonTest) Ingest(samples []Sample) Decision {
	if t.decision.Kind.Terminal() {
		return t.decision
	}

	for _, s := range samples {
		c, ok := s.(ComparisonSample)
		if !ok {
			continue
		}
		t.consumed++
		t.observe(c.Paper, c.CVR)

		if d, done := t.stop(); done {
			t.decision = d
			return t.decision
		}
	}

	t.decision = t.next()
	return t.decision
}

func (t *ComparisonTest) observe(paper, cvr []int) {
	for i, p := range t.pairs {
		if t.confirmed[i] {
			continue
		}
		omega := stats.Overstatement(paper, cvr, p.Winner, p.Loser)
		t.logStats[i] += stats.KaplanMarkovTerm(omega, t.margins[i], t.cfg.InflationRate)
		if t.logStats[i] >= t.threshold {
			t.confirmed[i] = true
		}
	}
}

func (t *ComparisonTest) stop() (Decision, bool) {
	all := true
	for _, ok := range t.confirmed {
		all = all && ok
	}

	switch {
	case all:
		return certified("comparison audit confirmed the reported outcome after %s ballots (P-value %s, risk limit %s)",
			comma(t.consumed), percent(t.pValue()), percent(t.cfg.RiskLimit)), true
	case t.consumed >= t.maxSamples:
		return failed("sample limit of %s ballots reached with P-value %s above the %s risk limit; a full hand count is required",
			comma(t.maxSamples), percent(t.pValue()), percent(t.cfg.RiskLimit)), true
	}
	return Decision{}, false
}

func (t *ComparisonTest) next() Decision {
	remaining := 1
	for i := range t.pairs {
		if t.confirmed[i] {
			continue
		}
		gap := t.threshold - t.logStats[i]
		remaining = max(remaining, stats.KaplanMarkovRemaining(gap, t.margins[i], t.cfg.InflationRate, t.cfg.Tolerance))
	}
	remaining = min(remaining, t.maxSamples-t.consumed)

	return Decision{
		Kind:    Continue,
		Request: ballotRequest(t.selector, t.consumed, remaining),
	}
}

// pValue is the Kaplan-Markov P-value of the hardest pair
func (t *ComparisonTest) pValue() float64 {
	return math.Min(1, math.Exp(-minOf(t.logStats)))
}

func (t *ComparisonTest) State() State {
	return State{
		Variant:         t.Variant(),
		Statistic:       minOf(t.logStats),
		PairStatistics:  append([]float64(nil), t.logStats...),
		SamplesConsumed: t.consumed,
		Decision:        t.decision,
	}
}
