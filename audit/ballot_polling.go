// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package audit

import (
	"github.com/danielhkuo/quickly-audit/stats"
)

// BallotPollingTest is a BRAVO audit: one sequential probability ratio test
// per reported winner/loser pair.
type BallotPollingTest struct {
	tally      Tally
	cfg        Config
	pairs      []stats.Pair
	weights    []stats.BravoPair
	ratios     []float64
	confirmed  []bool
	threshold  float64
	maxSamples int
	estimate   int
	selector   *stats.BallotSelector
	computeErr error

	consumed int
	refuted  int // index of a refuted loser, or -1
	decision Decision
}

// NewBallotPollingTest checks the contest and sets up one BRAVO statistic per pair
func NewBallotPollingTest(tally Tally, cfg Config) (*BallotPollingTest, error) {
	if err := validateContest(tally, cfg); err != nil {
		return nil, err
	}
	if cfg.MaxSamples < 0 {
		return nil, configErr("max_tests", "must not be negative, got %d", cfg.MaxSamples)
	}

	t := &BallotPollingTest{
		tally:      tally.clone(),
		cfg:        cfg,
		pairs:      stats.Pairs(tally.Votes, cfg.NumWinners),
		threshold:  stats.BravoThreshold(cfg.RiskLimit),
		maxSamples: cfg.MaxSamples,
		selector:   stats.NewBallotSelector(cfg.Seed, tally.BallotsCast),
		refuted:    -1,
	}
	if t.maxSamples == 0 {
		t.maxSamples = tally.BallotsCast
	}

	for _, p := range t.pairs {
		w, err := stats.NewBravoPair(tally.Votes[p.Winner], tally.Votes[p.Loser], tally.BallotsCast)
		if err != nil && t.computeErr == nil {
			t.computeErr = zeroMargin(t.tally, p, err)
		}
		t.weights = append(t.weights, w)
	}
	t.ratios = make([]float64, len(t.pairs))
	t.confirmed = make([]bool, len(t.pairs))

	vw, vl := stats.MarginPair(tally.Votes, cfg.NumWinners)
	t.estimate = stats.BravoASN(tally.BallotsCast, cfg.RiskLimit, vw, vl)

	return t, nil
}

func (t *BallotPollingTest) Variant() Variant {
	return VariantBallotPolling
}

// EstimatedSampleSize is the closed-form average sample number for the
// closest winner/loser pair
func (t *BallotPollingTest) EstimatedSampleSize() int {
	return t.estimate
}

func (t *BallotPollingTest) Validate(s Sample) error {
	b, ok := s.(BallotSample)
	if !ok {
		return wrongSample(t.Variant(), s)
	}
	return validateMarks(-1, "votes", b.Votes, len(t.tally.Votes))
}

func (t *BallotPollingTest) Start() Decision {
	if t.computeErr != nil {
		t.decision = failed("%s", t.computeErr.Error())
		return t.decision
	}
	t.decision = t.next()
	return t.decision
}

func (t *BallotPollingTest) Ingest(samples []Sample) Decision {
	if t.decision.Kind.Terminal() {
		return t.decision
	}

	for _, s := range samples {
		b, ok := s.(BallotSample)
		if !ok {
			continue
		}
		t.consumed++
		t.observe(b.Votes)

		if d, done := t.stop(); done {
			t.decision = d
			return t.decision
		}
	}

	t.decision = t.next()
	return t.decision
}

// observe applies one ballot to every pair still under test
func (t *BallotPollingTest) observe(votes []int) {
	for i, p := range t.pairs {
		if t.confirmed[i] {
			continue
		}
		inc, refuted := t.weights[i].Increment(votes[p.Winner] > 0, votes[p.Loser] > 0)
		if refuted {
			t.refuted = p.Loser
			continue
		}
		t.ratios[i] += inc
		if t.ratios[i] >= t.threshold {
			t.confirmed[i] = true
		}
	}
}

// stop checks the stopping rule after a ballot
func (t *BallotPollingTest) stop() (Decision, bool) {
	all := true
	for _, ok := range t.confirmed {
		all = all && ok
	}

	switch {
	case all:
		return certified("BRAVO audit confirmed the reported outcome after %s ballots at a %s risk limit",
			comma(t.consumed), percent(t.cfg.RiskLimit)), true
	case t.refuted >= 0:
		return failed("a sampled ballot marks %s, who was reported with no votes; a full hand count is required",
			t.tally.candidateName(t.refuted)), true
	case t.consumed >= t.maxSamples:
		return failed("sample limit of %s ballots reached without confirming the outcome; a full hand count is required",
			comma(t.maxSamples)), true
	}
	return Decision{}, false
}

// next refines the number of ballots still needed from the widest gap
func (t *BallotPollingTest) next() Decision {
	remaining := 1
	for i, w := range t.weights {
		if t.confirmed[i] {
			continue
		}
		remaining = max(remaining, w.Remaining(t.threshold-t.ratios[i]))
	}
	remaining = min(remaining, t.maxSamples-t.consumed)

	return Decision{
		Kind:    Continue,
		Request: ballotRequest(t.selector, t.consumed, remaining),
	}
}

func (t *BallotPollingTest) State() State {
	return State{
		Variant:         t.Variant(),
		Statistic:       minOf(t.ratios),
		PairStatistics:  append([]float64(nil), t.ratios...),
		SamplesConsumed: t.consumed,
		Decision:        t.decision,
	}
}
