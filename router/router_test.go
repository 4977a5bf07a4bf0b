// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package router

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/danielhkuo/quickly-audit/audit"
	"github.com/danielhkuo/quickly-audit/models"
	"github.com/danielhkuo/quickly-audit/testutil"
)

func setupRouter(t *testing.T) *http.ServeMux {
	t.Helper()
	db := testutil.SetupTestDB(t)
	reg := prometheus.NewRegistry()
	registry := testutil.NewTestRegistry(t, audit.WithMetrics(audit.NewMetrics(reg)))
	return NewRouter(db, testutil.GetTestConfig(), registry, reg)
}

func TestHealthEndpoint(t *testing.T) {
	mux := setupRouter(t)

	req := httptest.NewRequest("GET", "/health", nil)
	w := httptest.NewRecorder()

	mux.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("Expected status 200, got %d", w.Code)
	}

	if w.Body.String() != "OK" {
		t.Errorf("Expected body 'OK', got '%s'", w.Body.String())
	}
}

func TestRootEndpoint(t *testing.T) {
	mux := setupRouter(t)

	req := httptest.NewRequest("GET", "/", nil)
	w := httptest.NewRecorder()

	mux.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("Expected status 200, got %d", w.Code)
	}

	expected := "quickly-audit API v1"
	if w.Body.String() != expected {
		t.Errorf("Expected body '%s', got '%s'", expected, w.Body.String())
	}
}

func TestRouteExistence(t *testing.T) {
	mux := setupRouter(t)

	// 400 and 404 are valid answers here; only 405 means the route is missing
	testCases := []struct {
		method string
		path   string
	}{
		{"GET", "/health"},
		{"GET", "/metrics"},
		{"GET", "/"},

		{"POST", "/audits"},
		{"POST", "/audits/test-id/samples"},
		{"GET", "/audits/test-id"},
		{"DELETE", "/audits/test-id"},

		{"POST", "/contests"},
		{"GET", "/contests/test-id"},
		{"DELETE", "/contests/test-id"},

		{"POST", "/sample-sizes"},
	}

	for _, tc := range testCases {
		t.Run(tc.method+" "+tc.path, func(t *testing.T) {
			req := httptest.NewRequest(tc.method, tc.path, strings.NewReader("{}"))
			w := httptest.NewRecorder()

			mux.ServeHTTP(w, req)

			if w.Code == http.StatusMethodNotAllowed {
				t.Errorf("Route %s %s returned 405, expected route handler to exist", tc.method, tc.path)
			}
		})
	}
}

func TestMethodNotAllowed(t *testing.T) {
	mux := setupRouter(t)

	testCases := []struct {
		method string
		path   string
	}{
		{"POST", "/health"},            // Only GET is defined
		{"PUT", "/audits/test-id"},     // GET and DELETE are defined
		{"PATCH", "/contests/test-id"}, // GET and DELETE are defined
	}

	for _, tc := range testCases {
		t.Run(tc.method+" "+tc.path, func(t *testing.T) {
			req := httptest.NewRequest(tc.method, tc.path, nil)
			w := httptest.NewRecorder()

			mux.ServeHTTP(w, req)

			if w.Code != http.StatusMethodNotAllowed {
				t.Errorf("Expected 405 for %s %s, got %d", tc.method, tc.path, w.Code)
			}
		})
	}
}

func TestPathParameterExtraction(t *testing.T) {
	db := testutil.SetupTestDB(t)
	contestID := testutil.CreateTestContest(t, db, "Mayor", []int{650, 350}, 1000)

	reg := prometheus.NewRegistry()
	mux := NewRouter(db, testutil.GetTestConfig(), testutil.NewTestRegistry(t), reg)

	req := httptest.NewRequest("GET", "/contests/"+contestID, nil)
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200 for stored contest, got %d. Body: %s", w.Code, w.Body.String())
	}
	var c models.Contest
	testutil.AssertJSON(t, w, &c)
	if c.ID != contestID {
		t.Errorf("Expected contest %s, got %s", contestID, c.ID)
	}
}

func TestAuditThroughRouter(t *testing.T) {
	mux := setupRouter(t)

	w := httptest.NewRecorder()
	mux.ServeHTTP(w, testutil.MakeRequest("POST", "/audits", models.CreateAuditRequest{
		AuditType:      "ballot_polling",
		CandidateVotes: []int{650, 350},
		NumBallotsCast: 1000,
		RiskLimit:      0.1,
	}, nil))
	testutil.AssertStatus(t, w, http.StatusCreated)
	if w.Header().Get("X-Request-ID") == "" {
		t.Error("Expected an X-Request-ID header")
	}

	var created models.CreateAuditResponse
	testutil.AssertJSON(t, w, &created)

	ballots := make([][]int, 9)
	for i := range ballots {
		ballots[i] = []int{1, 0}
	}
	w = httptest.NewRecorder()
	mux.ServeHTTP(w, testutil.MakeRequest("POST", "/audits/"+created.SessionID+"/samples?wait=true",
		models.SubmitSamplesRequest{AuditType: "ballot_polling", Ballots: ballots}, nil))
	testutil.AssertStatus(t, w, http.StatusOK)

	var st models.AuditStatus
	testutil.AssertJSON(t, w, &st)
	if !st.AuditComplete || !st.Flag {
		t.Errorf("Expected certification: %s", st.CompletionMessage)
	}

	// metrics reflect the session
	w = httptest.NewRecorder()
	mux.ServeHTTP(w, httptest.NewRequest("GET", "/metrics", nil))
	testutil.AssertStatus(t, w, http.StatusOK)

	body := w.Body.String()
	for _, want := range []string{
		`quickly_audit_sessions_created_total{variant="ballot_polling"} 1`,
		`quickly_audit_samples_accepted_total{variant="ballot_polling"} 9`,
		`quickly_audit_sessions_verdicts_total{outcome="certified",variant="ballot_polling"} 1`,
	} {
		if !strings.Contains(body, want) {
			t.Errorf("Expected metrics to contain %q", want)
		}
	}
}
