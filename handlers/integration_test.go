// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package handlers

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/danielhkuo/quickly-audit/models"
	"github.com/danielhkuo/quickly-audit/testutil"
)

// TestFullAuditWorkflow tests the complete end-to-end workflow:
// 1. Store a contest
// 2. Estimate sample sizes
// 3. Start a comparison audit from the stored contest
// 4. Submit samples in two rounds
// 5. Read the verdict
// 6. End the session
func TestFullAuditWorkflow(t *testing.T) {
	db := testutil.SetupTestDB(t)
	cfg := testutil.GetTestConfig()

	contestHandler := NewContestHandler(db, cfg)
	sampleSizeHandler := NewSampleSizeHandler(contestHandler)
	auditHandler := NewAuditHandler(testutil.NewTestRegistry(t), contestHandler)

	// Step 1: Store the reported result
	contestID := createContest(t, contestHandler, models.CreateContestRequest{
		Office:         "County Commissioner",
		Candidates:     []string{"Alice", "Bob"},
		CandidateVotes: []int{650, 350},
		NumBallotsCast: 1000,
	})
	t.Logf("Step 1 - Stored contest: %s", contestID)

	// Step 2: Estimate
	w := httptest.NewRecorder()
	sampleSizeHandler.Estimate(w, testutil.MakeRequest("POST", "/sample-sizes", models.SampleSizeRequest{
		ContestID:     contestID,
		RiskLimit:     0.05,
		InflationRate: 1.03,
	}, nil))
	testutil.AssertStatus(t, w, http.StatusOK)

	var estimate models.SampleSizeResponse
	testutil.AssertJSON(t, w, &estimate)
	if estimate.ComparisonEstimate != 21 {
		t.Fatalf("Step 2 - Expected comparison estimate 21, got %d", estimate.ComparisonEstimate)
	}

	// Step 3: Start the audit
	created := createAudit(t, auditHandler, models.CreateAuditRequest{
		AuditType:     "comparison",
		ContestID:     contestID,
		RiskLimit:     0.05,
		InflationRate: 1.03,
		RandomSeed:    "8675309",
	})
	if created.EstimatedSampleSize != estimate.ComparisonEstimate {
		t.Errorf("Step 3 - Session estimate %d disagrees with sample-size estimate %d",
			created.EstimatedSampleSize, estimate.ComparisonEstimate)
	}
	token := created.SessionID

	clean := func(n int) []models.PaperRecordAndCVR {
		out := make([]models.PaperRecordAndCVR, n)
		for i := range out {
			out[i] = models.PaperRecordAndCVR{PaperRecord: []int{1, 0}, CVR: []int{1, 0}}
		}
		return out
	}

	// Step 4a: First round is not enough
	w = submitSamples(auditHandler, token, "?wait=true", models.SubmitSamplesRequest{
		AuditType:   "comparison",
		Comparisons: clean(12),
	})
	testutil.AssertStatus(t, w, http.StatusOK)

	var st models.AuditStatus
	testutil.AssertJSON(t, w, &st)
	if st.AuditComplete {
		t.Fatalf("Step 4a - Audit finished early: %s", st.CompletionMessage)
	}
	if st.SamplesConsumed != 12 {
		t.Errorf("Step 4a - Expected 12 samples consumed, got %d", st.SamplesConsumed)
	}
	if st.NextSampleRequest == nil || st.NextSampleRequest.Count != 8 {
		t.Errorf("Step 4a - Expected a request for 8 more ballots, got %+v", st.NextSampleRequest)
	}

	// Step 4b: Second round certifies
	w = submitSamples(auditHandler, token, "", models.SubmitSamplesRequest{
		AuditType:   "comparison",
		Comparisons: clean(8),
	})
	testutil.AssertStatus(t, w, http.StatusOK)

	// Step 5: Read the verdict
	w = getStatus(auditHandler, token, "?wait=true")
	testutil.AssertStatus(t, w, http.StatusOK)
	st = models.AuditStatus{}
	testutil.AssertJSON(t, w, &st)
	if !st.AuditComplete || !st.Flag {
		t.Fatalf("Step 5 - Expected certification: %s", st.CompletionMessage)
	}
	if st.SamplesConsumed != 20 {
		t.Errorf("Step 5 - Expected 20 samples consumed, got %d", st.SamplesConsumed)
	}
	t.Logf("Step 5 - %s", st.CompletionMessage)

	// Step 6: The session was removed with its verdict; ending it is still fine
	req := testutil.MakeRequest("DELETE", "/audits/"+token, nil, nil)
	req.SetPathValue("id", token)
	w = httptest.NewRecorder()
	auditHandler.EndAudit(w, req)
	testutil.AssertStatus(t, w, http.StatusOK)

	testutil.AssertStatus(t, getStatus(auditHandler, token, ""), http.StatusNotFound)
}

// TestOverstatementsFailAudit checks that a run of two-vote overstatements
// ends a comparison audit at its sample limit
func TestOverstatementsFailAudit(t *testing.T) {
	h, _ := setupAuditHandler(t)

	token := createAudit(t, h, models.CreateAuditRequest{
		AuditType:      "comparison",
		CandidateVotes: []int{650, 350},
		NumBallotsCast: 1000,
		RiskLimit:      0.05,
		InflationRate:  1.03,
		MaxTests:       10,
	}).SessionID

	flipped := make([]models.PaperRecordAndCVR, 10)
	for i := range flipped {
		flipped[i] = models.PaperRecordAndCVR{PaperRecord: []int{0, 1}, CVR: []int{1, 0}}
	}
	w := submitSamples(h, token, "?wait=true", models.SubmitSamplesRequest{
		AuditType:   "comparison",
		Comparisons: flipped,
	})
	testutil.AssertStatus(t, w, http.StatusOK)

	var st models.AuditStatus
	testutil.AssertJSON(t, w, &st)
	if !st.AuditComplete || st.Flag {
		t.Errorf("Expected a failed audit, got complete=%v flag=%v", st.AuditComplete, st.Flag)
	}
	if st.Decision != "failed" {
		t.Errorf("Expected decision 'failed', got '%s'", st.Decision)
	}
}
