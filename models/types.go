// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package models

import (
	"encoding/json"
	"time"
)

// Defaults applied when a request leaves a parameter out
const (
	DefaultNumWinners    = 1
	DefaultInflationRate = 1.03905
	DefaultNumStages     = 1
	DefaultNumTrials     = 10000
)

// Request types

type BatchTally struct {
	Name    string `json:"name"`
	Ballots int    `json:"ballots" validate:"gte=0"`
	Votes   []int  `json:"votes" validate:"required,dive,gte=0"`
}

// CreateAuditRequest starts an audit from an inline tally or a stored contest.
// Fields for other audit types are ignored.
type CreateAuditRequest struct {
	AuditType string `json:"audit_type" validate:"required"`

	// Either contest_id, or the tally inline
	ContestID      string       `json:"contest_id,omitempty"`
	Candidates     []string     `json:"candidates,omitempty"`
	CandidateVotes []int        `json:"candidate_votes,omitempty" validate:"omitempty,min=2,dive,gte=0"`
	NumBallotsCast int          `json:"num_ballots_cast" validate:"gte=0"`
	Batches        []BatchTally `json:"batches,omitempty" validate:"omitempty,dive"`

	NumWinners int         `json:"num_winners" validate:"gte=0"`
	RiskLimit  float64     `json:"risk_limit" validate:"probability"`
	RandomSeed json.Number `json:"random_seed"`

	// ballot_polling, comparison
	MaxTests int `json:"max_tests" validate:"gte=0"`

	// comparison
	InflationRate float64 `json:"inflation_rate" validate:"omitempty,gte=1"`
	Tolerance     float64 `json:"tolerance" validate:"gte=0,lt=1"`

	// batch_comparison
	Threshold  float64 `json:"threshold" validate:"gte=0,lt=1"`
	BatchSize  int     `json:"batch_size" validate:"gte=0"`
	NumBatches int     `json:"num_batches" validate:"gte=0"`
	NumStages  int     `json:"num_stages" validate:"gte=0"`

	// bayesian_polling
	NumTrials     int   `json:"num_trials" validate:"gte=0,lte=1000000"`
	SampleTallies []int `json:"sample_tallies,omitempty" validate:"omitempty,dive,gte=0"`
}

type PaperRecordAndCVR struct {
	PaperRecord []int `json:"paper_record"`
	CVR         []int `json:"cvr"`
}

type BatchCount struct {
	Batch  int   `json:"batch"`
	Counts []int `json:"counts"`
}

// SubmitSamplesRequest carries one kind of sample, matching audit_type.
// Sample shapes are checked by the audit itself so that errors name the
// offending sample.
type SubmitSamplesRequest struct {
	AuditType   string              `json:"audit_type" validate:"required"`
	Ballots     [][]int             `json:"ballots,omitempty"`
	Comparisons []PaperRecordAndCVR `json:"comparisons,omitempty"`
	Batches     []BatchCount        `json:"batches,omitempty"`
}

type CreateContestRequest struct {
	Office         string       `json:"office" validate:"required,max=200"`
	Candidates     []string     `json:"candidates" validate:"required,min=2,dive,required,max=200"`
	CandidateVotes []int        `json:"candidate_votes" validate:"required,min=2,dive,gte=0"`
	NumBallotsCast int          `json:"num_ballots_cast" validate:"gte=0"`
	NumWinners     int          `json:"num_winners" validate:"gte=0"`
	Batches        []BatchTally `json:"batches,omitempty" validate:"omitempty,dive"`
}

// SampleSizeRequest estimates sample sizes before an audit starts
type SampleSizeRequest struct {
	ContestID      string  `json:"contest_id,omitempty"`
	CandidateVotes []int   `json:"candidate_votes,omitempty" validate:"required_without=ContestID,omitempty,min=2,dive,gte=0"`
	NumBallotsCast int     `json:"num_ballots_cast" validate:"gte=0"`
	NumWinners     int     `json:"num_winners" validate:"gte=0"`
	RiskLimit      float64 `json:"risk_limit" validate:"probability"`
	InflationRate  float64 `json:"inflation_rate" validate:"omitempty,gte=1"`
	Tolerance      float64 `json:"tolerance" validate:"gte=0,lt=1"`
}

// Response types

type SampleRequest struct {
	Count                int   `json:"count"`
	SequenceNumberToDraw []int `json:"sequence_number_to_draw"`
}

type AuditStatus struct {
	SessionID           string         `json:"session_id"`
	AuditType           string         `json:"audit_type"`
	AuditComplete       bool           `json:"audit_complete"`
	Running             bool           `json:"running"`
	CompletionMessage   string         `json:"completion_message"`
	Flag                bool           `json:"flag"`
	Decision            string         `json:"decision"`
	Stage               int            `json:"stage,omitempty"`
	Statistic           float64        `json:"statistic"`
	PairStatistics      []float64      `json:"pair_statistics"`
	SamplesConsumed     int            `json:"samples_consumed"`
	Pending             int            `json:"pending"`
	EstimatedSampleSize int            `json:"estimated_sample_size"`
	NextSampleRequest   *SampleRequest `json:"next_sample_request,omitempty"`
	CreatedAt           time.Time      `json:"created_at"`
	UpdatedAt           time.Time      `json:"updated_at"`
}

type CreateAuditResponse struct {
	SessionID           string        `json:"session_id"`
	FirstSampleRequest  SampleRequest `json:"first_sample_request"`
	EstimatedSampleSize int           `json:"estimated_sample_size"`
	Status              AuditStatus   `json:"status"`
}

type EndAuditResponse struct {
	Message string `json:"message"`
}

type Contest struct {
	ID             string       `json:"id"`
	Office         string       `json:"office"`
	Candidates     []string     `json:"candidates"`
	CandidateVotes []int        `json:"candidate_votes"`
	NumBallotsCast int          `json:"num_ballots_cast"`
	NumWinners     int          `json:"num_winners"`
	Batches        []BatchTally `json:"batches,omitempty"`
	CreatedAt      time.Time    `json:"created_at"`
}

type CreateContestResponse struct {
	ContestID string `json:"contest_id"`
}

type SampleSizeResponse struct {
	VW                    int    `json:"v_w"`
	VL                    int    `json:"v_l"`
	TotalVotes            int    `json:"total_votes"`
	OfficeChosen          string `json:"office_chosen,omitempty"`
	BallotPollingEstimate int    `json:"ballot_polling_estimate"`
	ComparisonEstimate    int    `json:"comparison_estimate"`
}

// Error response

type ErrorResponse struct {
	Error     string `json:"error"`
	Message   string `json:"message,omitempty"`
	Field     string `json:"field,omitempty"`
	Index     *int   `json:"index,omitempty"`
	RequestID string `json:"request_id,omitempty"`
}
