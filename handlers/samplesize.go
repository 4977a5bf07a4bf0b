// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/danielhkuo/quickly-audit/middleware"
	"github.com/danielhkuo/quickly-audit/models"
	"github.com/danielhkuo/quickly-audit/stats"
)

type SampleSizeHandler struct {
	contests *ContestHandler
}

func NewSampleSizeHandler(contests *ContestHandler) *SampleSizeHandler {
	return &SampleSizeHandler{contests: contests}
}

// Estimate handles POST /sample-sizes. It reports the margin pair and the
// expected sample sizes of a ballot polling and a comparison audit.
func (h *SampleSizeHandler) Estimate(w http.ResponseWriter, r *http.Request) {
	var req models.SampleSizeRequest
	if err := middleware.ParseJSONBody(r, &req); err != nil {
		middleware.ErrorResponse(w, http.StatusBadRequest, "Invalid JSON")
		return
	}
	if err := models.Validate(&req); err != nil {
		writeValidationError(w, err)
		return
	}
	req.ApplyDefaults()

	votes := req.CandidateVotes
	ballotsCast := req.NumBallotsCast
	numWinners := req.NumWinners
	var office string

	if req.ContestID != "" {
		c, err := h.contests.Load(r.Context(), req.ContestID)
		if errors.Is(err, ErrContestNotFound) {
			middleware.ErrorResponse(w, http.StatusNotFound, "Contest not found")
			return
		}
		if err != nil {
			slog.Error("failed to load contest", "contest_id", req.ContestID, "error", err)
			middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
			return
		}
		votes = c.CandidateVotes
		ballotsCast = c.NumBallotsCast
		numWinners = c.NumWinners
		office = c.Office
	}

	total := 0
	for _, v := range votes {
		total += v
	}
	if ballotsCast == 0 {
		ballotsCast = total
	}
	if numWinners >= len(votes) {
		middleware.FieldErrorResponse(w, http.StatusBadRequest,
			"num_winners must be less than the number of candidates", "num_winners", -1)
		return
	}
	if ballotsCast <= 0 {
		middleware.FieldErrorResponse(w, http.StatusBadRequest,
			"num_ballots_cast must be positive", "num_ballots_cast", -1)
		return
	}

	vw, vl := stats.MarginPair(votes, numWinners)
	resp := models.SampleSizeResponse{
		VW:                    vw,
		VL:                    vl,
		TotalVotes:            total,
		OfficeChosen:          office,
		BallotPollingEstimate: stats.BravoASN(ballotsCast, req.RiskLimit, vw, vl),
	}

	margin := stats.DilutedMargin(vw, vl, ballotsCast)
	n, err := stats.SuperSimpleSampleSize(req.RiskLimit, req.InflationRate, req.Tolerance, margin)
	switch {
	case errors.Is(err, stats.ErrZeroMargin):
		// no comparison audit can confirm a tie; report 0 like the polling estimate
	case errors.Is(err, stats.ErrTolerance):
		middleware.FieldErrorResponse(w, http.StatusBadRequest, err.Error(), "tolerance", -1)
		return
	case err != nil:
		slog.Error("sample size estimate failed", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Internal error")
		return
	default:
		if n > ballotsCast {
			n = ballotsCast
		}
		resp.ComparisonEstimate = n
	}

	middleware.JSONResponse(w, http.StatusOK, resp)
}
