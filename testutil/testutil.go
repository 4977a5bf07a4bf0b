// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package testutil

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/danielhkuo/quickly-audit/audit"
	"github.com/danielhkuo/quickly-audit/auth"
	"github.com/danielhkuo/quickly-audit/cliparse"
	"github.com/danielhkuo/quickly-audit/db"
)

// SetupTestDB opens a private in-memory SQLite database with the full schema.
// It is closed when the test ends.
func SetupTestDB(t *testing.T) *sql.DB {
	t.Helper()

	conn, err := db.Open(context.Background(), db.SQLite, ":memory:")
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}
	t.Cleanup(func() { conn.Close() })

	if err := db.CreateSchema(conn); err != nil {
		t.Fatalf("Failed to create schema: %v", err)
	}

	return conn
}

// GetTestConfig returns a standard test configuration
func GetTestConfig() cliparse.Config {
	return cliparse.Config{
		Port:           3318,
		DatabaseType:   db.SQLite,
		DatabaseURL:    ":memory:",
		LogLevel:       slog.LevelError,
		AllowedOrigins: []string{"*"},
		TallyCacheSize: 16,
	}
}

// NewTestRegistry returns a registry with a silent logger that is closed
// when the test ends
func NewTestRegistry(t *testing.T, opts ...audit.Opt) *audit.Registry {
	t.Helper()

	opts = append([]audit.Opt{audit.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))}, opts...)
	reg := audit.NewRegistry(opts...)
	t.Cleanup(reg.Close)
	return reg
}

// TestBatch is one reported batch for CreateTestContest
type TestBatch struct {
	Name    string
	Ballots int
	Votes   []int
}

// CreateTestContest stores a contest and returns its ID. Candidates are named
// "Candidate A", "Candidate B", and so on.
func CreateTestContest(t *testing.T, conn *sql.DB, office string, votes []int, ballotsCast int, batches ...TestBatch) string {
	t.Helper()

	contestID, _ := auth.GenerateID(12)
	_, err := conn.Exec(`
		INSERT INTO contest (id, office, ballots_cast, num_winners, created_at)
		VALUES ($1, $2, $3, 1, $4)
	`, contestID, office, ballotsCast, time.Now().UTC())
	if err != nil {
		t.Fatalf("Failed to create test contest: %v", err)
	}

	for i, v := range votes {
		_, err := conn.Exec(`
			INSERT INTO contest_candidate (contest_id, position, name, votes)
			VALUES ($1, $2, $3, $4)
		`, contestID, i, "Candidate "+string(rune('A'+i)), v)
		if err != nil {
			t.Fatalf("Failed to create test candidate: %v", err)
		}
	}

	for i, b := range batches {
		encoded, _ := json.Marshal(b.Votes)
		_, err := conn.Exec(`
			INSERT INTO contest_batch (contest_id, position, name, ballots, votes)
			VALUES ($1, $2, $3, $4, $5)
		`, contestID, i, b.Name, b.Ballots, string(encoded))
		if err != nil {
			t.Fatalf("Failed to create test batch: %v", err)
		}
	}

	return contestID
}

// MakeRequest creates an HTTP test request
func MakeRequest(method, path string, body interface{}, headers map[string]string) *http.Request {
	var req *http.Request
	if body != nil {
		jsonBody, _ := json.Marshal(body)
		req = httptest.NewRequest(method, path, bytes.NewReader(jsonBody))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}

	for k, v := range headers {
		req.Header.Set(k, v)
	}

	return req
}

// AssertStatus checks that the response has the expected status code
func AssertStatus(t *testing.T, w *httptest.ResponseRecorder, expected int) {
	t.Helper()
	if w.Code != expected {
		t.Errorf("Expected status %d, got %d. Body: %s", expected, w.Code, w.Body.String())
	}
}

// AssertJSON decodes the response body into the provided struct
func AssertJSON(t *testing.T, w *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	if err := json.NewDecoder(w.Body).Decode(v); err != nil {
		t.Fatalf("Failed to decode JSON response: %v", err)
	}
}
