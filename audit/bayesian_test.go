// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package audit

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func bayesianConfig() Config {
	return Config{RiskLimit: 0.1, NumWinners: 1, Seed: 424242, NumTrials: 1000}
}

func TestBayesianScaledSampleCertifies(t *testing.T) {
	cfg := bayesianConfig()
	cfg.SampleTallies = []int{65, 35}

	test, err := NewBayesianPollingTest(twoCandidateTally(), cfg)
	require.NoError(t, err)

	d := test.Start()
	assert.Equal(t, Certified, d.Kind)
	assert.Less(t, test.State().Statistic, 0.1)
}

func TestBayesianNoSampleContinues(t *testing.T) {
	test, err := NewBayesianPollingTest(twoCandidateTally(), bayesianConfig())
	require.NoError(t, err)

	d := test.Start()
	assert.Equal(t, Continue, d.Kind)
	assert.Equal(t, test.EstimatedSampleSize(), d.Request.Count)
	assert.Equal(t, 1.0, test.State().Statistic)
}

func TestBayesianCheckpoints(t *testing.T) {
	test, err := NewBayesianPollingTest(twoCandidateTally(), bayesianConfig())
	require.NoError(t, err)
	first := test.Start().Request.Count

	// nothing is evaluated before the first checkpoint
	d := test.Ingest(repeatBallot([]int{1, 0}, first-1))
	assert.Equal(t, Continue, d.Kind)
	assert.Equal(t, 1, d.Request.Count)
	assert.Equal(t, 1.0, test.State().Statistic)

	d = test.Ingest(repeatBallot([]int{1, 0}, 1))
	assert.Equal(t, Certified, d.Kind)
	assert.Equal(t, first, test.State().SamplesConsumed)
}

func TestBayesianFullCount(t *testing.T) {
	tally := Tally{Votes: []int{6, 4}, BallotsCast: 10}

	tests := []struct {
		name    string
		samples []Sample
		want    DecisionKind
	}{
		{"confirms", append(repeatBallot([]int{1, 0}, 7), repeatBallot([]int{0, 1}, 3)...), Certified},
		{"overturns", append(repeatBallot([]int{1, 0}, 4), repeatBallot([]int{0, 1}, 6)...), Failed},
		{"tie", append(repeatBallot([]int{1, 0}, 5), repeatBallot([]int{0, 1}, 5)...), Failed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			test, err := NewBayesianPollingTest(tally, bayesianConfig())
			require.NoError(t, err)

			d := test.Start()
			assert.Equal(t, 10, d.Request.Count)

			d = test.Ingest(tt.samples)
			assert.Equal(t, tt.want, d.Kind)
			assert.Contains(t, d.Message, "covers every ballot cast")
		})
	}
}

func TestBayesianRequestsDistinctBallots(t *testing.T) {
	test, err := NewBayesianPollingTest(Tally{Votes: []int{7, 3}, BallotsCast: 10}, Config{
		RiskLimit: 0.1, NumWinners: 1, Seed: 7, NumTrials: 1000,
	})
	require.NoError(t, err)

	d := test.Start()
	require.Equal(t, 10, d.Request.Count)
	assert.ElementsMatch(t, []int{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}, d.Request.Sequence)
}

func TestBayesianFullCountExcludesInitialTallies(t *testing.T) {
	cfg := bayesianConfig()
	cfg.RiskLimit = 0.001
	cfg.SampleTallies = []int{1, 0}

	test, err := NewBayesianPollingTest(Tally{Votes: []int{6, 4}, BallotsCast: 10}, cfg)
	require.NoError(t, err)

	d := test.Start()
	require.Equal(t, Continue, d.Kind)
	require.Equal(t, 10, d.Request.Count)

	// the drawn ballots tie; the earlier sample would have broken it
	d = test.Ingest(append(repeatBallot([]int{0, 1}, 5), repeatBallot([]int{1, 0}, 5)...))
	assert.Equal(t, Failed, d.Kind)
	assert.Contains(t, d.Message, "covers every ballot cast")
	assert.Equal(t, []float64{6, 5}, test.State().PairStatistics)
}

func TestBayesianReproducible(t *testing.T) {
	cfg := bayesianConfig()
	tally := Tally{Votes: []int{600, 400}, BallotsCast: 1000}

	run := func() State {
		test, err := NewBayesianPollingTest(tally, cfg)
		require.NoError(t, err)
		test.Start()
		test.Ingest(mixedBallots(300))
		return test.State()
	}

	if diff := cmp.Diff(run(), run()); diff != "" {
		t.Errorf("same seed gave different states (-first +second):\n%s", diff)
	}
}

func TestBayesianSplitInvariance(t *testing.T) {
	cfg := bayesianConfig()
	tally := Tally{Votes: []int{600, 400}, BallotsCast: 1000}
	samples := mixedBallots(300)

	whole, err := NewBayesianPollingTest(tally, cfg)
	require.NoError(t, err)
	whole.Start()
	whole.Ingest(samples)

	split, err := NewBayesianPollingTest(tally, cfg)
	require.NoError(t, err)
	split.Start()
	for start := 0; start < len(samples); start += 37 {
		split.Ingest(samples[start:min(start+37, len(samples))])
	}

	if diff := cmp.Diff(whole.State(), split.State()); diff != "" {
		t.Errorf("state differs between whole and split submissions (-whole +split):\n%s", diff)
	}
}

func TestBayesianZeroMargin(t *testing.T) {
	test, err := NewBayesianPollingTest(Tally{Votes: []int{5, 5}, BallotsCast: 10}, bayesianConfig())
	require.NoError(t, err)
	assert.Equal(t, Failed, test.Start().Kind)
}

func TestBayesianConfigurationErrors(t *testing.T) {
	tests := []struct {
		name  string
		cfg   Config
		field string
	}{
		{"no trials", Config{RiskLimit: 0.1, NumWinners: 1}, "num_trials"},
		{"short sample tallies", Config{RiskLimit: 0.1, NumWinners: 1, NumTrials: 10, SampleTallies: []int{1}}, "sample_tallies"},
		{"negative sample tally", Config{RiskLimit: 0.1, NumWinners: 1, NumTrials: 10, SampleTallies: []int{1, -1}}, "sample_tallies"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewBayesianPollingTest(twoCandidateTally(), tt.cfg)
			var cfgErr *ConfigurationError
			require.True(t, errors.As(err, &cfgErr), "got %v", err)
			assert.Equal(t, tt.field, cfgErr.Field)
		})
	}
}
