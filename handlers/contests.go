// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package handlers

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/danielhkuo/quickly-audit/auth"
	"github.com/danielhkuo/quickly-audit/cliparse"
	"github.com/danielhkuo/quickly-audit/middleware"
	"github.com/danielhkuo/quickly-audit/models"
)

var ErrContestNotFound = errors.New("contest not found")

type ContestHandler struct {
	db    *sql.DB
	cfg   cliparse.Config
	cache *lru.Cache[string, models.Contest]
}

func NewContestHandler(db *sql.DB, cfg cliparse.Config) *ContestHandler {
	size := cfg.TallyCacheSize
	if size <= 0 {
		size = 1
	}
	// lru.New only fails for a non-positive size
	cache, _ := lru.New[string, models.Contest](size)
	return &ContestHandler{db: db, cfg: cfg, cache: cache}
}

// CreateContest handles POST /contests
func (h *ContestHandler) CreateContest(w http.ResponseWriter, r *http.Request) {
	var req models.CreateContestRequest
	if err := middleware.ParseJSONBody(r, &req); err != nil {
		middleware.ErrorResponse(w, http.StatusBadRequest, "Invalid JSON")
		return
	}
	if err := models.Validate(&req); err != nil {
		middleware.ErrorResponse(w, http.StatusBadRequest, err.Error())
		return
	}
	req.ApplyDefaults()

	if len(req.Candidates) != len(req.CandidateVotes) {
		middleware.ErrorResponse(w, http.StatusBadRequest, "candidates and candidate_votes must have the same length")
		return
	}
	for i, b := range req.Batches {
		if len(b.Votes) != len(req.CandidateVotes) {
			middleware.ErrorResponse(w, http.StatusBadRequest,
				fmt.Sprintf("batch %d has %d vote counts, want %d", i, len(b.Votes), len(req.CandidateVotes)))
			return
		}
	}

	ballotsCast := req.NumBallotsCast
	if ballotsCast == 0 {
		ballotsCast = reportedBallots(req.CandidateVotes, req.Batches)
	}
	if ballotsCast <= 0 {
		middleware.ErrorResponse(w, http.StatusBadRequest, "num_ballots_cast must be positive")
		return
	}

	contestID, err := auth.GenerateID(12)
	if err != nil {
		slog.Error("failed to generate contest ID", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Failed to create contest")
		return
	}

	tx, err := h.db.BeginTx(r.Context(), nil)
	if err != nil {
		slog.Error("failed to begin transaction", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
		return
	}
	defer tx.Rollback()

	_, err = tx.Exec(`
		INSERT INTO contest (id, office, ballots_cast, num_winners, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`, contestID, req.Office, ballotsCast, req.NumWinners, time.Now().UTC())
	if err != nil {
		slog.Error("failed to insert contest", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Failed to create contest")
		return
	}

	for i, name := range req.Candidates {
		_, err = tx.Exec(`
			INSERT INTO contest_candidate (contest_id, position, name, votes)
			VALUES ($1, $2, $3, $4)
		`, contestID, i, name, req.CandidateVotes[i])
		if err != nil {
			slog.Error("failed to insert candidate", "error", err)
			middleware.ErrorResponse(w, http.StatusInternalServerError, "Failed to create contest")
			return
		}
	}

	for i, b := range req.Batches {
		votes, err := json.Marshal(b.Votes)
		if err != nil {
			middleware.ErrorResponse(w, http.StatusInternalServerError, "Failed to create contest")
			return
		}
		name := b.Name
		if name == "" {
			name = fmt.Sprintf("batch %d", i+1)
		}
		_, err = tx.Exec(`
			INSERT INTO contest_batch (contest_id, position, name, ballots, votes)
			VALUES ($1, $2, $3, $4, $5)
		`, contestID, i, name, b.Ballots, string(votes))
		if err != nil {
			slog.Error("failed to insert batch", "error", err)
			middleware.ErrorResponse(w, http.StatusInternalServerError, "Failed to create contest")
			return
		}
	}

	if err := tx.Commit(); err != nil {
		slog.Error("failed to commit contest", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Failed to create contest")
		return
	}

	slog.Info("contest created",
		"contest_id", contestID,
		"office", req.Office,
		"candidates", len(req.Candidates),
		"batches", len(req.Batches),
		"request_id", middleware.RequestID(r.Context()))

	middleware.JSONResponse(w, http.StatusCreated, models.CreateContestResponse{
		ContestID: contestID,
	})
}

// GetContest handles GET /contests/{id}
func (h *ContestHandler) GetContest(w http.ResponseWriter, r *http.Request) {
	contestID := r.PathValue("id")
	if contestID == "" {
		middleware.ErrorResponse(w, http.StatusBadRequest, "contest_id is required")
		return
	}

	contest, err := h.Load(r.Context(), contestID)
	if errors.Is(err, ErrContestNotFound) {
		middleware.ErrorResponse(w, http.StatusNotFound, "Contest not found")
		return
	}
	if err != nil {
		slog.Error("failed to load contest", "contest_id", contestID, "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
		return
	}

	middleware.JSONResponse(w, http.StatusOK, contest)
}

// DeleteContest handles DELETE /contests/{id}
func (h *ContestHandler) DeleteContest(w http.ResponseWriter, r *http.Request) {
	contestID := r.PathValue("id")

	res, err := h.db.ExecContext(r.Context(), `DELETE FROM contest WHERE id = $1`, contestID)
	if err != nil {
		slog.Error("failed to delete contest", "contest_id", contestID, "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
		return
	}
	h.cache.Remove(contestID)

	if n, _ := res.RowsAffected(); n == 0 {
		middleware.ErrorResponse(w, http.StatusNotFound, "Contest not found")
		return
	}

	slog.Info("contest deleted", "contest_id", contestID)
	w.WriteHeader(http.StatusNoContent)
}

// Load reads a stored contest, serving repeat reads from the tally cache.
// Stored contests never change, so cached entries only leave on delete or
// eviction.
func (h *ContestHandler) Load(ctx context.Context, contestID string) (models.Contest, error) {
	if c, ok := h.cache.Get(contestID); ok {
		return c, nil
	}

	var c models.Contest
	err := h.db.QueryRowContext(ctx, `
		SELECT id, office, ballots_cast, num_winners, created_at
		FROM contest
		WHERE id = $1
	`, contestID).Scan(&c.ID, &c.Office, &c.NumBallotsCast, &c.NumWinners, &c.CreatedAt)
	if err == sql.ErrNoRows {
		return models.Contest{}, ErrContestNotFound
	}
	if err != nil {
		return models.Contest{}, fmt.Errorf("query contest: %w", err)
	}

	rows, err := h.db.QueryContext(ctx, `
		SELECT name, votes
		FROM contest_candidate
		WHERE contest_id = $1
		ORDER BY position
	`, contestID)
	if err != nil {
		return models.Contest{}, fmt.Errorf("query candidates: %w", err)
	}
	for rows.Next() {
		var name string
		var votes int
		if err := rows.Scan(&name, &votes); err != nil {
			rows.Close()
			return models.Contest{}, fmt.Errorf("scan candidate: %w", err)
		}
		c.Candidates = append(c.Candidates, name)
		c.CandidateVotes = append(c.CandidateVotes, votes)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return models.Contest{}, fmt.Errorf("read candidates: %w", err)
	}

	rows, err = h.db.QueryContext(ctx, `
		SELECT name, ballots, votes
		FROM contest_batch
		WHERE contest_id = $1
		ORDER BY position
	`, contestID)
	if err != nil {
		return models.Contest{}, fmt.Errorf("query batches: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var b models.BatchTally
		var votes string
		if err := rows.Scan(&b.Name, &b.Ballots, &votes); err != nil {
			return models.Contest{}, fmt.Errorf("scan batch: %w", err)
		}
		if err := json.Unmarshal([]byte(votes), &b.Votes); err != nil {
			return models.Contest{}, fmt.Errorf("decode batch %q votes: %w", b.Name, err)
		}
		c.Batches = append(c.Batches, b)
	}
	if err := rows.Err(); err != nil {
		return models.Contest{}, fmt.Errorf("read batches: %w", err)
	}

	h.cache.Add(contestID, c)
	return c, nil
}

// reportedBallots is the ballot count implied by a tally with no explicit
// num_ballots_cast: the batch ballots when batches are given, else the votes
func reportedBallots(votes []int, batches []models.BatchTally) int {
	total := 0
	if len(batches) > 0 {
		for _, b := range batches {
			total += b.Ballots
		}
		return total
	}
	for _, v := range votes {
		total += v
	}
	return total
}
