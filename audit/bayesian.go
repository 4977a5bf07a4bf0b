// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package audit

import (
	"github.com/danielhkuo/quickly-audit/stats"
)

// BayesianPollingTest estimates the posterior probability that the reported
// winners lost. The probability is re-estimated at doubling checkpoints, each
// with a Monte Carlo stream keyed by the number of ballots seen, so the result
// depends only on the ballots consumed and not on how they were submitted.
type BayesianPollingTest struct {
	tally      Tally
	cfg        Config
	winners    []int
	population int
	estimate   int
	selector   *stats.BallotOrder
	computeErr error

	sample     []int // initial tallies plus ballots drawn here
	counted    []int // ballots drawn here only
	consumed   int
	checkpoint int
	upset      float64
	decision   Decision
}

// NewBayesianPollingTest checks the contest and the initial sample tallies
func NewBayesianPollingTest(tally Tally, cfg Config) (*BayesianPollingTest, error) {
	if err := validateContest(tally, cfg); err != nil {
		return nil, err
	}
	if cfg.NumTrials < 1 {
		return nil, configErr("num_trials", "must be at least 1, got %d", cfg.NumTrials)
	}

	k := len(tally.Votes)
	sample := make([]int, k)
	if cfg.SampleTallies != nil {
		if len(cfg.SampleTallies) != k {
			return nil, configErr("sample_tallies", "%d tallies given for %d candidates", len(cfg.SampleTallies), k)
		}
		for i, v := range cfg.SampleTallies {
			if v < 0 {
				return nil, configErr("sample_tallies", "tally for %s is negative", tally.candidateName(i))
			}
			sample[i] = v
		}
	}

	t := &BayesianPollingTest{
		tally:    tally.clone(),
		cfg:      cfg,
		winners:  stats.Winners(tally.Votes, cfg.NumWinners),
		selector: stats.NewBallotOrder(cfg.Seed, tally.BallotsCast),
		sample:   sample,
		counted:  make([]int, k),
		upset:    1,
	}
	for _, v := range tally.Votes {
		t.population += v
	}

	for _, p := range stats.Pairs(tally.Votes, cfg.NumWinners) {
		if tally.Votes[p.Winner] <= tally.Votes[p.Loser] {
			t.computeErr = zeroMargin(t.tally, p, stats.ErrZeroMargin)
			break
		}
	}

	vw, vl := stats.MarginPair(tally.Votes, cfg.NumWinners)
	t.estimate = stats.BravoASN(tally.BallotsCast, cfg.RiskLimit, vw, vl)

	return t, nil
}

func (t *BayesianPollingTest) Variant() Variant {
	return VariantBayesianPolling
}

// EstimatedSampleSize is the BRAVO average sample number, used as the first
// checkpoint
func (t *BayesianPollingTest) EstimatedSampleSize() int {
	return t.estimate
}

func (t *BayesianPollingTest) Validate(s Sample) error {
	b, ok := s.(BallotSample)
	if !ok {
		return wrongSample(t.Variant(), s)
	}
	return validateMarks(-1, "votes", b.Votes, len(t.tally.Votes))
}

func (t *BayesianPollingTest) Start() Decision {
	if t.computeErr != nil {
		t.decision = failed("%s", t.computeErr.Error())
		return t.decision
	}

	t.checkpoint = min(max(t.estimate, 1), t.tally.BallotsCast)
	for _, v := range t.sample {
		if v > 0 {
			if d, done := t.evaluate(); done {
				t.decision = d
				return t.decision
			}
			break
		}
	}
	t.decision = t.next()
	return t.decision
}

func (t *BayesianPollingTest) Ingest(samples []Sample) Decision {
	if t.decision.Kind.Terminal() {
		return t.decision
	}

	for _, s := range samples {
		b, ok := s.(BallotSample)
		if !ok {
			continue
		}
		t.consumed++
		for i, m := range b.Votes {
			t.sample[i] += m
			t.counted[i] += m
		}

		switch {
		case t.consumed >= t.tally.BallotsCast:
			t.decision = t.fullCount()
			return t.decision
		case t.consumed >= t.checkpoint:
			if d, done := t.evaluate(); done {
				t.decision = d
				return t.decision
			}
			t.checkpoint = min(t.tally.BallotsCast, max(t.consumed+1, 2*t.consumed))
		}
	}

	t.decision = t.next()
	return t.decision
}

// evaluate runs the Monte Carlo estimate for the ballots consumed so far
func (t *BayesianPollingTest) evaluate() (Decision, bool) {
	src := stats.NewSource(t.cfg.Seed, stats.StreamMonteCarlo, uint64(t.consumed))
	t.upset = stats.UpsetProbability(src, t.tally.Votes, t.sample, t.population, t.cfg.NumWinners, t.cfg.NumTrials)

	if t.upset < t.cfg.RiskLimit {
		return certified("Bayesian audit confirmed the reported outcome after %s ballots (upset probability %s, risk limit %s)",
			comma(t.consumed), percent(t.upset), percent(t.cfg.RiskLimit)), true
	}
	return Decision{}, false
}

// fullCount decides once the ballot order has been drawn to the end, so the
// ballots drawn here are every ballot cast. Initial sample tallies may repeat
// those ballots and are left out.
func (t *BayesianPollingTest) fullCount() Decision {
	counts := make([]float64, len(t.counted))
	for i, v := range t.counted {
		counts[i] = float64(v)
	}
	if stats.SameWinners(counts, t.winners) {
		t.upset = 0
		return certified("sample of %s ballots covers every ballot cast and confirms the reported outcome", comma(t.consumed))
	}
	t.upset = 1
	return failed("sample of %s ballots covers every ballot cast and does not confirm the reported outcome; a full hand count is required",
		comma(t.consumed))
}

func (t *BayesianPollingTest) next() Decision {
	remaining := max(t.checkpoint-t.consumed, 1)
	return Decision{
		Kind:    Continue,
		Request: ballotRequest(t.selector, t.consumed, remaining),
	}
}

func (t *BayesianPollingTest) State() State {
	tallies := make([]float64, len(t.sample))
	for i, v := range t.sample {
		tallies[i] = float64(v)
	}
	return State{
		Variant:         t.Variant(),
		Statistic:       t.upset,
		PairStatistics:  tallies,
		SamplesConsumed: t.consumed,
		Decision:        t.decision,
	}
}
