// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package audit

import (
	"fmt"
	"math"

	"github.com/danielhkuo/quickly-audit/stats"
)

// BatchComparisonTest is a staged CAST audit. Each stage hand counts a fresh
// random set of batches and passes when no batch's taint exceeds the
// threshold; a stage that fails escalates to a larger one until the stages
// run out or every batch has been counted.
type BatchComparisonTest struct {
	tally      Tally
	cfg        Config
	pairs      []stats.Pair
	margins    []int
	fraction   float64
	stageRisk  float64
	firstStage int
	selector   *stats.BatchSelector
	position   map[int]int // batch number -> index in the selection order
	computeErr error

	consumed      int
	audited       map[int]bool
	early         map[int]float64 // taints of batches counted before their stage
	overstatement []int           // per pair, summed over audited batches
	maxTaint      float64

	stage         int
	stageStart    int
	stageEnd      int
	stageCount    int
	stageMaxTaint float64
	decision      Decision
}

// NewBatchComparisonTest derives totals from the batches and sizes the first stage
func NewBatchComparisonTest(tally Tally, cfg Config) (*BatchComparisonTest, error) {
	tally, err := batchTotals(tally, cfg)
	if err != nil {
		return nil, err
	}
	if err := validateContest(tally, cfg); err != nil {
		return nil, err
	}
	if cfg.Threshold < 0 || cfg.Threshold >= 1 {
		return nil, configErr("threshold", "must be in [0, 1), got %v", cfg.Threshold)
	}
	if cfg.NumStages < 1 {
		return nil, configErr("num_stages", "must be at least 1, got %d", cfg.NumStages)
	}
	if cfg.NumBatches < 0 {
		return nil, configErr("num_batches", "must not be negative, got %d", cfg.NumBatches)
	}

	nb := len(tally.Batches)
	t := &BatchComparisonTest{
		tally:         tally,
		cfg:           cfg,
		pairs:         stats.Pairs(tally.Votes, cfg.NumWinners),
		fraction:      1,
		stageRisk:     stats.StageRiskLimit(cfg.RiskLimit, cfg.NumStages),
		selector:      stats.NewBatchSelector(cfg.Seed, nb),
		position:      make(map[int]int, nb),
		audited:       make(map[int]bool),
		early:         make(map[int]float64),
		stageMaxTaint: math.Inf(-1),
	}
	for i, b := range t.selector.Positions(0, nb) {
		t.position[b] = i
	}

	for _, p := range t.pairs {
		margin := tally.Votes[p.Winner] - tally.Votes[p.Loser]
		t.margins = append(t.margins, margin)
		if margin <= 0 {
			if t.computeErr == nil {
				t.computeErr = zeroMargin(t.tally, p, stats.ErrZeroMargin)
			}
			continue
		}
		bound := stats.BatchErrorBound(cfg.BatchSize, nb, margin)
		f, err := stats.CastFraction(cfg.Threshold, bound)
		if err != nil {
			return nil, configErr("threshold", "%v between %s and %s (error bound %.2f)",
				err, t.tally.candidateName(p.Winner), t.tally.candidateName(p.Loser), bound)
		}
		t.fraction = min(t.fraction, f)
	}
	t.overstatement = make([]int, len(t.pairs))

	n := stats.CastSampleSize(t.stageRisk, t.fraction, nb)
	t.firstStage = min(max(n, cfg.NumBatches), nb)

	return t, nil
}

// batchTotals derives contest totals from the batch tallies and checks that
// every batch fits the configured batch size
func batchTotals(tally Tally, cfg Config) (Tally, error) {
	tally = tally.clone()
	if len(tally.Batches) == 0 {
		return tally, configErr("batches", "a batch comparison audit needs reported batch tallies")
	}
	if cfg.BatchSize <= 0 {
		return tally, configErr("batch_size", "must be positive, got %d", cfg.BatchSize)
	}

	k := len(tally.Votes)
	if k == 0 {
		k = len(tally.Batches[0].Votes)
	}
	votes := make([]int, k)
	ballots := 0
	for i, b := range tally.Batches {
		if len(b.Votes) != k {
			return tally, configErr("batches", "batch %d has %d counts, expected %d", i+1, len(b.Votes), k)
		}
		if b.Ballots < 0 || b.Ballots > cfg.BatchSize {
			return tally, configErr("batches", "batch %d holds %d ballots, batch size is %d", i+1, b.Ballots, cfg.BatchSize)
		}
		for c, v := range b.Votes {
			if v < 0 {
				return tally, configErr("batches", "batch %d has a negative count", i+1)
			}
			votes[c] += v
		}
		ballots += b.Ballots
	}

	if len(tally.Votes) > 0 {
		for c := range votes {
			if votes[c] != tally.Votes[c] {
				return tally, configErr("candidate_votes", "total for %s disagrees with its batch tallies", tally.candidateName(c))
			}
		}
	}
	tally.Votes = votes
	if tally.BallotsCast == 0 {
		tally.BallotsCast = ballots
	}
	return tally, nil
}

func (t *BatchComparisonTest) Variant() Variant {
	return VariantBatchComparison
}

// EstimatedSampleSize is the number of batches in the first stage
func (t *BatchComparisonTest) EstimatedSampleSize() int {
	return t.firstStage
}

func (t *BatchComparisonTest) Validate(s Sample) error {
	b, ok := s.(BatchSample)
	if !ok {
		return wrongSample(t.Variant(), s)
	}
	if b.Batch < 1 || b.Batch > len(t.tally.Batches) {
		return &SampleFormatError{Index: -1, Reason: fmt.Sprintf("batch %d does not exist (1-%d)", b.Batch, len(t.tally.Batches))}
	}
	if b.Counts == nil {
		return &SampleFormatError{Index: -1, Reason: "counts is missing"}
	}
	if len(b.Counts) != len(t.tally.Votes) {
		return &SampleFormatError{Index: -1, Reason: fmt.Sprintf("counts has %d entries, expected %d", len(b.Counts), len(t.tally.Votes))}
	}
	sum := 0
	for _, c := range b.Counts {
		if c < 0 {
			return &SampleFormatError{Index: -1, Reason: "counts must not be negative"}
		}
		sum += c
	}
	if sum > t.cfg.BatchSize*t.cfg.NumWinners {
		return &SampleFormatError{Index: -1, Reason: fmt.Sprintf("%d votes counted in a batch of at most %d ballots", sum, t.cfg.BatchSize)}
	}
	return nil
}

func (t *BatchComparisonTest) Start() Decision {
	if t.computeErr != nil {
		t.decision = failed("%s", t.computeErr.Error())
		return t.decision
	}
	t.stage = 1
	t.stageStart = 0
	t.stageEnd = t.firstStage
	t.decision = t.pending(Continue, "")
	return t.decision
}

func (t *BatchComparisonTest) Ingest(samples []Sample) Decision {
	if t.decision.Kind.Terminal() {
		return t.decision
	}

	for _, s := range samples {
		b, ok := s.(BatchSample)
		if !ok || t.audited[b.Batch] {
			continue
		}
		t.audited[b.Batch] = true
		t.consumed++

		taint := t.observe(b)
		if pos := t.position[b.Batch]; pos >= t.stageEnd {
			t.early[b.Batch] = taint
			continue
		}
		t.stageCount++
		t.stageMaxTaint = max(t.stageMaxTaint, taint)

		if t.stageComplete() {
			t.decision = t.closeStage()
			if t.decision.Kind.Terminal() {
				return t.decision
			}
		}
	}

	// an escalation keeps its kind and message until the stage closes
	if t.decision.Kind == Escalate {
		t.decision = t.pending(Escalate, t.decision.Message)
	} else {
		t.decision = t.pending(Continue, "")
	}
	return t.decision
}

// observe records a batch's overstatements and returns its taint
func (t *BatchComparisonTest) observe(b BatchSample) float64 {
	reported := t.tally.Batches[b.Batch-1].Votes
	taint := math.Inf(-1)
	for i, p := range t.pairs {
		t.overstatement[i] += stats.Overstatement(b.Counts, reported, p.Winner, p.Loser)
		taint = max(taint, stats.BatchTaint(reported, b.Counts, p.Winner, p.Loser, t.cfg.BatchSize))
	}
	t.maxTaint = max(t.maxTaint, taint)
	return taint
}

func (t *BatchComparisonTest) stageComplete() bool {
	return t.stageCount >= t.stageEnd-t.stageStart
}

// closeStage judges a completed stage, escalating until a stage is still
// waiting for batches or a terminal decision is reached
func (t *BatchComparisonTest) closeStage() Decision {
	for {
		if len(t.audited) == len(t.tally.Batches) {
			return t.fullCount()
		}

		n := t.stageEnd - t.stageStart
		risk := stats.CastStageRisk(t.fraction, n)
		if t.stageMaxTaint <= t.cfg.Threshold && risk <= t.stageRisk {
			return certified("CAST stage %d confirmed the reported outcome: largest taint %.4f in %s batches (stage risk %s)",
				t.stage, t.stageMaxTaint, comma(n), percent(risk))
		}
		if t.stage >= t.cfg.NumStages {
			return failed("stage %d found a batch taint of %.4f above the %.4f threshold and no stages remain; a full hand count is required",
				t.stage, t.stageMaxTaint, t.cfg.Threshold)
		}

		prevTaint := t.stageMaxTaint
		t.stage++
		t.stageStart = t.stageEnd
		t.stageEnd = min(t.stageStart+2*n, len(t.tally.Batches))
		t.stageCount = 0
		t.stageMaxTaint = math.Inf(-1)

		for _, b := range t.selector.Positions(t.stageStart, t.stageEnd-t.stageStart) {
			if taint, ok := t.early[b]; ok {
				delete(t.early, b)
				t.stageCount++
				t.stageMaxTaint = max(t.stageMaxTaint, taint)
			}
		}

		if !t.stageComplete() {
			return t.pending(Escalate, fmt.Sprintf("stage %d found a batch taint of %.4f above the %.4f threshold; escalating to stage %d with %s batches",
				t.stage-1, prevTaint, t.cfg.Threshold, t.stage, comma(t.stageEnd-t.stageStart)))
		}
	}
}

// fullCount decides the contest once every batch has been hand counted
func (t *BatchComparisonTest) fullCount() Decision {
	for i, p := range t.pairs {
		if t.margins[i]-t.overstatement[i] <= 0 {
			return failed("hand count of all %s batches does not confirm %s over %s",
				comma(len(t.tally.Batches)), t.tally.candidateName(p.Winner), t.tally.candidateName(p.Loser))
		}
	}
	return certified("hand count of all %s batches confirmed the reported outcome", comma(len(t.tally.Batches)))
}

// pending requests the batches of the current stage not yet counted
func (t *BatchComparisonTest) pending(kind DecisionKind, message string) Decision {
	var sequence []int
	for _, b := range t.selector.Positions(t.stageStart, t.stageEnd-t.stageStart) {
		if !t.audited[b] && len(sequence) < SequenceWindow {
			sequence = append(sequence, b)
		}
	}
	if sequence == nil {
		sequence = []int{}
	}
	return Decision{
		Kind:    kind,
		Stage:   t.stage,
		Message: message,
		Request: SampleRequest{
			Count:    t.stageEnd - t.stageStart - t.stageCount,
			Sequence: sequence,
		},
	}
}

func (t *BatchComparisonTest) State() State {
	relative := make([]float64, len(t.pairs))
	for i := range t.pairs {
		if t.margins[i] > 0 {
			relative[i] = float64(t.overstatement[i]) / float64(t.margins[i])
		}
	}
	statistic := t.maxTaint
	if t.consumed == 0 {
		statistic = 0
	}
	return State{
		Variant:         t.Variant(),
		Statistic:       statistic,
		PairStatistics:  relative,
		SamplesConsumed: t.consumed,
		Stage:           t.stage,
		Decision:        t.decision,
	}
}
