// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package models

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validAuditRequest() CreateAuditRequest {
	return CreateAuditRequest{
		AuditType:      "ballot_polling",
		CandidateVotes: []int{650, 350},
		NumBallotsCast: 1000,
		RiskLimit:      0.1,
	}
}

func TestValidateCreateAuditRequest(t *testing.T) {
	testCases := []struct {
		name  string
		edit  func(r *CreateAuditRequest)
		field string
		rule  string
	}{
		{"valid", func(r *CreateAuditRequest) {}, "", ""},
		{"missing audit type", func(r *CreateAuditRequest) { r.AuditType = "" }, "audit_type", "required"},
		{"zero risk limit", func(r *CreateAuditRequest) { r.RiskLimit = 0 }, "risk_limit", "probability"},
		{"risk limit of one", func(r *CreateAuditRequest) { r.RiskLimit = 1 }, "risk_limit", "probability"},
		{"one candidate", func(r *CreateAuditRequest) { r.CandidateVotes = []int{5} }, "candidate_votes", "min"},
		{"negative votes", func(r *CreateAuditRequest) { r.CandidateVotes = []int{5, -1} }, "candidate_votes[1]", "gte"},
		{"inflation below one", func(r *CreateAuditRequest) { r.InflationRate = 0.5 }, "inflation_rate", "gte"},
		{"negative batch votes", func(r *CreateAuditRequest) {
			r.Batches = []BatchTally{{Name: "a", Ballots: 3, Votes: []int{1, -2}}}
		}, "batches[0].votes[1]", "gte"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			req := validAuditRequest()
			tc.edit(&req)

			err := Validate(&req)
			if tc.field == "" {
				require.NoError(t, err)
				return
			}

			var fe *FieldError
			require.True(t, errors.As(err, &fe), "expected *FieldError, got %v", err)
			assert.Equal(t, tc.field, fe.Field)
			assert.Equal(t, tc.rule, fe.Rule)
		})
	}
}

func TestValidateSampleSizeRequest(t *testing.T) {
	req := SampleSizeRequest{RiskLimit: 0.05}
	err := Validate(&req)
	var fe *FieldError
	require.True(t, errors.As(err, &fe))
	assert.Equal(t, "candidate_votes", fe.Field)
	assert.Equal(t, "required_without", fe.Rule)

	req.ContestID = "abc"
	assert.NoError(t, Validate(&req))
}

func TestFieldErrorMessage(t *testing.T) {
	err := &FieldError{Field: "risk_limit", Rule: "probability"}
	assert.Equal(t, "risk_limit must be between 0 and 1", err.Error())

	err = &FieldError{Field: "office", Rule: "required"}
	assert.Equal(t, "office is required", err.Error())
}

func TestApplyDefaults(t *testing.T) {
	req := validAuditRequest()
	req.ApplyDefaults()
	assert.Equal(t, DefaultNumWinners, req.NumWinners)
	assert.Equal(t, DefaultInflationRate, req.InflationRate)
	assert.Equal(t, DefaultNumStages, req.NumStages)
	assert.Equal(t, DefaultNumTrials, req.NumTrials)

	req = validAuditRequest()
	req.NumWinners = 2
	req.NumTrials = 50
	req.ApplyDefaults()
	assert.Equal(t, 2, req.NumWinners)
	assert.Equal(t, 50, req.NumTrials)
}
