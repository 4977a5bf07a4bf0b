// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package audit

import (
	"fmt"
	"strings"
	"time"
)

// Variant selects the audit method
type Variant string

const (
	VariantBallotPolling   Variant = "ballot_polling"
	VariantComparison      Variant = "comparison"
	VariantBatchComparison Variant = "batch_comparison"
	VariantBayesianPolling Variant = "bayesian_polling"
)

// ParseVariant accepts the variant names and the short method names
// (bravo, super_simple, cast) used by older clients.
func ParseVariant(s string) (Variant, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "ballot_polling", "bravo":
		return VariantBallotPolling, nil
	case "comparison", "super_simple":
		return VariantComparison, nil
	case "batch_comparison", "cast":
		return VariantBatchComparison, nil
	case "bayesian_polling", "bayesian":
		return VariantBayesianPolling, nil
	}
	return "", configErr("variant", "%q is not an audit method", s)
}

// SequenceWindow caps how many ballot or batch numbers one request lists
const SequenceWindow = 256

// Tally is the reported result of one contest
type Tally struct {
	Candidates  []string
	Votes       []int
	BallotsCast int
	Batches     []BatchTally
}

// BatchTally is the reported result of one physical batch of ballots
type BatchTally struct {
	Name    string
	Ballots int
	Votes   []int
}

func (t Tally) clone() Tally {
	c := Tally{
		Candidates:  append([]string(nil), t.Candidates...),
		Votes:       append([]int(nil), t.Votes...),
		BallotsCast: t.BallotsCast,
	}
	for _, b := range t.Batches {
		c.Batches = append(c.Batches, BatchTally{
			Name:    b.Name,
			Ballots: b.Ballots,
			Votes:   append([]int(nil), b.Votes...),
		})
	}
	return c
}

// candidateName returns a display name for candidate i
func (t Tally) candidateName(i int) string {
	if i < len(t.Candidates) && t.Candidates[i] != "" {
		return t.Candidates[i]
	}
	return fmt.Sprintf("candidate %d", i+1)
}

// Config holds the audit parameters. Fields a variant does not use are ignored.
type Config struct {
	RiskLimit  float64
	NumWinners int
	Seed       int64

	// Ballot polling and comparison: stop and fail after this many samples.
	// Zero means BallotsCast.
	MaxSamples int

	// Comparison
	InflationRate float64
	Tolerance     float64

	// Batch comparison
	Threshold  float64
	BatchSize  int
	NumBatches int
	NumStages  int

	// Bayesian polling
	NumTrials     int
	SampleTallies []int
}

// Sample is one observed unit. The concrete type must match the variant.
type Sample interface {
	isSample()
}

// BallotSample is one polled ballot: a 0/1 mark per candidate
type BallotSample struct {
	Votes []int
}

// ComparisonSample pairs a hand-interpreted paper ballot with its cast vote record
type ComparisonSample struct {
	Paper []int
	CVR   []int
}

// BatchSample is the hand count of one batch, by 1-based batch number
type BatchSample struct {
	Batch  int
	Counts []int
}

func (BallotSample) isSample()     {}
func (ComparisonSample) isSample() {}
func (BatchSample) isSample()      {}

// DecisionKind is the outcome of the latest update
type DecisionKind int

const (
	Continue DecisionKind = iota
	Escalate
	Certified
	Failed
)

func (k DecisionKind) String() string {
	switch k {
	case Continue:
		return "continue"
	case Escalate:
		return "escalate"
	case Certified:
		return "certified"
	case Failed:
		return "failed"
	}
	return "unknown"
}

// Terminal reports whether no further samples can change the decision
func (k DecisionKind) Terminal() bool {
	return k == Certified || k == Failed
}

// SampleRequest asks the auditor for more samples. Sequence lists the next
// ballot (or batch) numbers to draw, at most SequenceWindow of them.
type SampleRequest struct {
	Count    int
	Sequence []int
}

// Decision is published after every update
type Decision struct {
	Kind    DecisionKind
	Request SampleRequest
	Stage   int
	Message string
}

// State is a copy of a test's accumulated statistic
type State struct {
	Variant         Variant
	Statistic       float64
	PairStatistics  []float64
	SamplesConsumed int
	Stage           int
	Decision        Decision
}

// Status is what callers see of a session
type Status struct {
	Token               string
	Variant             Variant
	Running             bool
	Done                bool
	Verdict             bool
	Message             string
	State               State
	EstimatedSampleSize int
	Pending             int
	CreatedAt           time.Time
	UpdatedAt           time.Time
}
