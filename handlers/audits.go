// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/danielhkuo/quickly-audit/audit"
	"github.com/danielhkuo/quickly-audit/auth"
	"github.com/danielhkuo/quickly-audit/middleware"
	"github.com/danielhkuo/quickly-audit/models"
	"github.com/danielhkuo/quickly-audit/stats"
)

// maxSyncWait bounds how long ?wait=true holds a request open
const maxSyncWait = 30 * time.Second

type AuditHandler struct {
	registry *audit.Registry
	contests *ContestHandler
}

func NewAuditHandler(registry *audit.Registry, contests *ContestHandler) *AuditHandler {
	return &AuditHandler{registry: registry, contests: contests}
}

// CreateAudit handles POST /audits
func (h *AuditHandler) CreateAudit(w http.ResponseWriter, r *http.Request) {
	var req models.CreateAuditRequest
	if err := middleware.ParseJSONBody(r, &req); err != nil {
		middleware.ErrorResponse(w, http.StatusBadRequest, "Invalid JSON")
		return
	}
	if err := models.Validate(&req); err != nil {
		writeValidationError(w, err)
		return
	}
	req.ApplyDefaults()

	variant, err := audit.ParseVariant(req.AuditType)
	if err != nil {
		writeAuditError(w, r, err)
		return
	}

	tally, err := h.tally(r.Context(), &req)
	if errors.Is(err, ErrContestNotFound) {
		middleware.ErrorResponse(w, http.StatusNotFound, "Contest not found")
		return
	}
	if err != nil {
		writeAuditError(w, r, err)
		return
	}

	seed, err := parseSeed(req.RandomSeed)
	if err != nil {
		middleware.FieldErrorResponse(w, http.StatusBadRequest, err.Error(), "random_seed", -1)
		return
	}

	cfg := audit.Config{
		RiskLimit:     req.RiskLimit,
		NumWinners:    req.NumWinners,
		Seed:          seed,
		MaxSamples:    req.MaxTests,
		InflationRate: req.InflationRate,
		Tolerance:     req.Tolerance,
		Threshold:     req.Threshold,
		BatchSize:     req.BatchSize,
		NumBatches:    req.NumBatches,
		NumStages:     req.NumStages,
		NumTrials:     req.NumTrials,
		SampleTallies: req.SampleTallies,
	}

	created, err := h.registry.Create(r.Context(), variant, tally, cfg)
	if err != nil {
		writeAuditError(w, r, err)
		return
	}

	middleware.JSONResponse(w, http.StatusCreated, models.CreateAuditResponse{
		SessionID:           created.Token,
		FirstSampleRequest:  toSampleRequest(created.Request),
		EstimatedSampleSize: created.EstimatedSampleSize,
		Status:              toAuditStatus(created.Status),
	})
}

// SubmitSamples handles POST /audits/{id}/samples.
// With ?wait=true the response reflects every sample in this submission.
func (h *AuditHandler) SubmitSamples(w http.ResponseWriter, r *http.Request) {
	token := r.PathValue("id")
	if err := auth.ValidateSessionToken(token); err != nil {
		middleware.ErrorResponse(w, http.StatusNotFound, "Audit session not found")
		return
	}

	var req models.SubmitSamplesRequest
	if err := middleware.ParseJSONBody(r, &req); err != nil {
		middleware.ErrorResponse(w, http.StatusBadRequest, "Invalid JSON")
		return
	}
	if err := models.Validate(&req); err != nil {
		writeValidationError(w, err)
		return
	}

	variant, err := audit.ParseVariant(req.AuditType)
	if err != nil {
		writeAuditError(w, r, err)
		return
	}

	samples, err := toSamples(variant, &req)
	if err != nil {
		writeAuditError(w, r, err)
		return
	}

	st, err := h.registry.Submit(r.Context(), token, variant, samples)
	if err != nil {
		writeAuditError(w, r, err)
		return
	}

	if wantWait(r) && !st.Done {
		ctx, cancel := context.WithTimeout(r.Context(), maxSyncWait)
		defer cancel()
		st, err = h.registry.Sync(ctx, token)
		if err != nil {
			writeAuditError(w, r, err)
			return
		}
	}

	middleware.JSONResponse(w, http.StatusOK, toAuditStatus(st))
}

// GetStatus handles GET /audits/{id}. A finished session is removed after
// its verdict is returned.
func (h *AuditHandler) GetStatus(w http.ResponseWriter, r *http.Request) {
	token := r.PathValue("id")
	if err := auth.ValidateSessionToken(token); err != nil {
		middleware.ErrorResponse(w, http.StatusNotFound, "Audit session not found")
		return
	}

	if wantWait(r) {
		ctx, cancel := context.WithTimeout(r.Context(), maxSyncWait)
		defer cancel()
		if _, err := h.registry.Sync(ctx, token); err != nil {
			writeAuditError(w, r, err)
			return
		}
	}

	st, err := h.registry.Status(token)
	if err != nil {
		writeAuditError(w, r, err)
		return
	}

	middleware.JSONResponse(w, http.StatusOK, toAuditStatus(st))
}

// EndAudit handles DELETE /audits/{id}. Ending an unknown or finished session
// succeeds.
func (h *AuditHandler) EndAudit(w http.ResponseWriter, r *http.Request) {
	h.registry.End(r.PathValue("id"))
	middleware.JSONResponse(w, http.StatusOK, models.EndAuditResponse{
		Message: "Audit session ended",
	})
}

// tally builds the reported result from the stored contest or the request
func (h *AuditHandler) tally(ctx context.Context, req *models.CreateAuditRequest) (audit.Tally, error) {
	if req.ContestID != "" {
		c, err := h.contests.Load(ctx, req.ContestID)
		if err != nil {
			return audit.Tally{}, err
		}
		return audit.Tally{
			Candidates:  c.Candidates,
			Votes:       c.CandidateVotes,
			BallotsCast: c.NumBallotsCast,
			Batches:     toBatchTallies(c.Batches),
		}, nil
	}

	if len(req.CandidateVotes) == 0 && len(req.Batches) == 0 {
		return audit.Tally{}, &audit.ConfigurationError{
			Field:  "candidate_votes",
			Reason: "either contest_id or candidate_votes is required",
		}
	}

	ballotsCast := req.NumBallotsCast
	if ballotsCast == 0 && len(req.Batches) == 0 {
		ballotsCast = reportedBallots(req.CandidateVotes, nil)
	}
	return audit.Tally{
		Candidates:  req.Candidates,
		Votes:       req.CandidateVotes,
		BallotsCast: ballotsCast,
		Batches:     toBatchTallies(req.Batches),
	}, nil
}

// parseSeed accepts integer seeds exactly and maps fractional ones through
// stats.SeedFromFloat. A missing seed is 0.
func parseSeed(n json.Number) (int64, error) {
	if n == "" {
		return 0, nil
	}
	if i, err := n.Int64(); err == nil {
		return i, nil
	}
	f, err := n.Float64()
	if err != nil {
		return 0, fmt.Errorf("random_seed %q is not a number", n.String())
	}
	return stats.SeedFromFloat(f), nil
}

func wantWait(r *http.Request) bool {
	ok, _ := strconv.ParseBool(r.URL.Query().Get("wait"))
	return ok
}

func toBatchTallies(batches []models.BatchTally) []audit.BatchTally {
	if len(batches) == 0 {
		return nil
	}
	out := make([]audit.BatchTally, len(batches))
	for i, b := range batches {
		out[i] = audit.BatchTally{Name: b.Name, Ballots: b.Ballots, Votes: b.Votes}
	}
	return out
}

// toSamples picks the sample list that matches the declared audit type. The
// list for that type must be present and no other list may be.
func toSamples(v audit.Variant, req *models.SubmitSamplesRequest) ([]audit.Sample, error) {
	fields := []struct {
		name string
		n    int
	}{
		{"ballots", len(req.Ballots)},
		{"comparisons", len(req.Comparisons)},
		{"batches", len(req.Batches)},
	}
	want := sampleField(v)
	for _, f := range fields {
		if f.name != want && f.n > 0 {
			return nil, &audit.SampleFormatError{
				Index:  -1,
				Reason: fmt.Sprintf("a %s audit takes %s, got %s", v, want, f.name),
			}
		}
	}

	var samples []audit.Sample
	switch v {
	case audit.VariantBallotPolling, audit.VariantBayesianPolling:
		for _, b := range req.Ballots {
			samples = append(samples, audit.BallotSample{Votes: b})
		}
	case audit.VariantComparison:
		for _, c := range req.Comparisons {
			samples = append(samples, audit.ComparisonSample{Paper: c.PaperRecord, CVR: c.CVR})
		}
	case audit.VariantBatchComparison:
		for _, b := range req.Batches {
			samples = append(samples, audit.BatchSample{Batch: b.Batch, Counts: b.Counts})
		}
	}
	if len(samples) == 0 {
		return nil, &audit.SampleFormatError{Index: -1, Reason: fmt.Sprintf("no %s in submission", want)}
	}
	return samples, nil
}

// sampleField is the request field that carries a variant's samples
func sampleField(v audit.Variant) string {
	switch v {
	case audit.VariantComparison:
		return "comparisons"
	case audit.VariantBatchComparison:
		return "batches"
	default:
		return "ballots"
	}
}

func toSampleRequest(req audit.SampleRequest) models.SampleRequest {
	seq := req.Sequence
	if seq == nil {
		seq = []int{}
	}
	return models.SampleRequest{Count: req.Count, SequenceNumberToDraw: seq}
}

func toAuditStatus(st audit.Status) models.AuditStatus {
	out := models.AuditStatus{
		SessionID:           st.Token,
		AuditType:           string(st.Variant),
		AuditComplete:       st.Done,
		Running:             st.Running,
		CompletionMessage:   st.Message,
		Flag:                st.Verdict,
		Decision:            st.State.Decision.Kind.String(),
		Stage:               st.State.Stage,
		Statistic:           st.State.Statistic,
		PairStatistics:      st.State.PairStatistics,
		SamplesConsumed:     st.State.SamplesConsumed,
		Pending:             st.Pending,
		EstimatedSampleSize: st.EstimatedSampleSize,
		CreatedAt:           st.CreatedAt,
		UpdatedAt:           st.UpdatedAt,
	}
	if out.PairStatistics == nil {
		out.PairStatistics = []float64{}
	}
	if !st.Done {
		req := toSampleRequest(st.State.Decision.Request)
		out.NextSampleRequest = &req
	}
	return out
}

func writeValidationError(w http.ResponseWriter, err error) {
	var fe *models.FieldError
	if errors.As(err, &fe) {
		middleware.FieldErrorResponse(w, http.StatusBadRequest, fe.Error(), fe.Field, -1)
		return
	}
	middleware.ErrorResponse(w, http.StatusBadRequest, err.Error())
}

// writeAuditError maps audit errors to status codes: bad configuration 400,
// bad samples 422, unknown sessions 404, anything else 500
func writeAuditError(w http.ResponseWriter, r *http.Request, err error) {
	var cfgErr *audit.ConfigurationError
	var sampleErr *audit.SampleFormatError
	switch {
	case errors.As(err, &cfgErr):
		middleware.FieldErrorResponse(w, http.StatusBadRequest, cfgErr.Error(), cfgErr.Field, -1)
	case errors.As(err, &sampleErr):
		middleware.FieldErrorResponse(w, http.StatusUnprocessableEntity, sampleErr.Error(), "", sampleErr.Index)
	case errors.Is(err, audit.ErrSessionNotFound):
		middleware.ErrorResponse(w, http.StatusNotFound, "Audit session not found")
	case errors.Is(err, audit.ErrRegistryClosed):
		middleware.ErrorResponse(w, http.StatusServiceUnavailable, "Server is shutting down")
	case errors.Is(err, context.DeadlineExceeded):
		middleware.ErrorResponse(w, http.StatusGatewayTimeout, "Timed out waiting for the audit to catch up")
	default:
		slog.Error("audit request failed",
			"path", r.URL.Path,
			"error", err,
			"request_id", middleware.RequestID(r.Context()))
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Internal error")
	}
}
