// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package handlers

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/danielhkuo/quickly-audit/models"
	"github.com/danielhkuo/quickly-audit/testutil"
)

func createContest(t *testing.T, h *ContestHandler, body models.CreateContestRequest) string {
	t.Helper()
	w := httptest.NewRecorder()
	h.CreateContest(w, testutil.MakeRequest("POST", "/contests", body, nil))
	if w.Code != http.StatusCreated {
		t.Fatalf("Create contest failed: %d - %s", w.Code, w.Body.String())
	}
	var resp models.CreateContestResponse
	testutil.AssertJSON(t, w, &resp)
	if resp.ContestID == "" {
		t.Fatal("Expected a contest_id")
	}
	return resp.ContestID
}

func TestCreateContest(t *testing.T) {
	db := testutil.SetupTestDB(t)
	h := NewContestHandler(db, testutil.GetTestConfig())

	contestID := createContest(t, h, models.CreateContestRequest{
		Office:         "Mayor",
		Candidates:     []string{"Alice", "Bob", "Carol"},
		CandidateVotes: []int{500, 300, 200},
		NumBallotsCast: 1050,
	})

	var office string
	var ballots, winners int
	err := db.QueryRow(`SELECT office, ballots_cast, num_winners FROM contest WHERE id = $1`, contestID).
		Scan(&office, &ballots, &winners)
	if err != nil {
		t.Fatalf("Failed to query contest: %v", err)
	}
	if office != "Mayor" || ballots != 1050 || winners != 1 {
		t.Errorf("Unexpected contest row: office=%s ballots=%d winners=%d", office, ballots, winners)
	}

	var candidates int
	db.QueryRow(`SELECT COUNT(*) FROM contest_candidate WHERE contest_id = $1`, contestID).Scan(&candidates)
	if candidates != 3 {
		t.Errorf("Expected 3 candidates, got %d", candidates)
	}
}

func TestCreateContestDerivesBallotsCast(t *testing.T) {
	db := testutil.SetupTestDB(t)
	h := NewContestHandler(db, testutil.GetTestConfig())

	contestID := createContest(t, h, models.CreateContestRequest{
		Office:         "Sheriff",
		Candidates:     []string{"Dana", "Eli"},
		CandidateVotes: []int{160, 40},
		Batches: []models.BatchTally{
			{Name: "north", Ballots: 100, Votes: []int{80, 20}},
			{Name: "south", Ballots: 100, Votes: []int{80, 20}},
		},
	})

	c, err := h.Load(context.Background(), contestID)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if c.NumBallotsCast != 200 {
		t.Errorf("Expected ballots cast from batches, got %d", c.NumBallotsCast)
	}
	if len(c.Batches) != 2 || c.Batches[1].Name != "south" || c.Batches[1].Votes[0] != 80 {
		t.Errorf("Unexpected batches: %+v", c.Batches)
	}
}

func TestCreateContestValidation(t *testing.T) {
	db := testutil.SetupTestDB(t)
	h := NewContestHandler(db, testutil.GetTestConfig())

	testCases := []struct {
		name string
		body models.CreateContestRequest
	}{
		{"missing office", models.CreateContestRequest{
			Candidates: []string{"A", "B"}, CandidateVotes: []int{1, 2},
		}},
		{"one candidate", models.CreateContestRequest{
			Office: "Mayor", Candidates: []string{"A"}, CandidateVotes: []int{1},
		}},
		{"mismatched lengths", models.CreateContestRequest{
			Office: "Mayor", Candidates: []string{"A", "B", "C"}, CandidateVotes: []int{1, 2},
		}},
		{"negative votes", models.CreateContestRequest{
			Office: "Mayor", Candidates: []string{"A", "B"}, CandidateVotes: []int{1, -2},
		}},
		{"short batch", models.CreateContestRequest{
			Office: "Mayor", Candidates: []string{"A", "B"}, CandidateVotes: []int{1, 2},
			Batches: []models.BatchTally{{Name: "x", Ballots: 3, Votes: []int{3}}},
		}},
		{"no ballots", models.CreateContestRequest{
			Office: "Mayor", Candidates: []string{"A", "B"}, CandidateVotes: []int{0, 0},
		}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			h.CreateContest(w, testutil.MakeRequest("POST", "/contests", tc.body, nil))
			testutil.AssertStatus(t, w, http.StatusBadRequest)
		})
	}

	var n int
	db.QueryRow(`SELECT COUNT(*) FROM contest`).Scan(&n)
	if n != 0 {
		t.Errorf("Expected no contests stored, got %d", n)
	}
}

func TestGetContest(t *testing.T) {
	db := testutil.SetupTestDB(t)
	h := NewContestHandler(db, testutil.GetTestConfig())
	contestID := testutil.CreateTestContest(t, db, "Mayor", []int{650, 350}, 1000)

	req := testutil.MakeRequest("GET", "/contests/"+contestID, nil, nil)
	req.SetPathValue("id", contestID)
	w := httptest.NewRecorder()
	h.GetContest(w, req)
	testutil.AssertStatus(t, w, http.StatusOK)

	var c models.Contest
	testutil.AssertJSON(t, w, &c)
	if c.ID != contestID || c.Office != "Mayor" {
		t.Errorf("Unexpected contest: %+v", c)
	}
	if len(c.CandidateVotes) != 2 || c.CandidateVotes[0] != 650 || c.Candidates[1] != "Candidate B" {
		t.Errorf("Unexpected candidates: %v %v", c.Candidates, c.CandidateVotes)
	}

	req = testutil.MakeRequest("GET", "/contests/missing", nil, nil)
	req.SetPathValue("id", "missing")
	w = httptest.NewRecorder()
	h.GetContest(w, req)
	testutil.AssertStatus(t, w, http.StatusNotFound)
}

func TestContestCache(t *testing.T) {
	db := testutil.SetupTestDB(t)
	h := NewContestHandler(db, testutil.GetTestConfig())
	contestID := testutil.CreateTestContest(t, db, "Mayor", []int{650, 350}, 1000)

	if _, err := h.Load(context.Background(), contestID); err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	// a second read is served from the cache even if the row changes underneath
	if _, err := db.Exec(`UPDATE contest SET office = 'Changed' WHERE id = $1`, contestID); err != nil {
		t.Fatal(err)
	}
	c, err := h.Load(context.Background(), contestID)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if c.Office != "Mayor" {
		t.Errorf("Expected cached office 'Mayor', got '%s'", c.Office)
	}

	// deleting evicts
	req := testutil.MakeRequest("DELETE", "/contests/"+contestID, nil, nil)
	req.SetPathValue("id", contestID)
	w := httptest.NewRecorder()
	h.DeleteContest(w, req)
	testutil.AssertStatus(t, w, http.StatusNoContent)

	if _, err := h.Load(context.Background(), contestID); !errors.Is(err, ErrContestNotFound) {
		t.Errorf("Expected ErrContestNotFound after delete, got %v", err)
	}

	w = httptest.NewRecorder()
	h.DeleteContest(w, req)
	testutil.AssertStatus(t, w, http.StatusNotFound)
}
