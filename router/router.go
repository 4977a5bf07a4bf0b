// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package router

import (
	"database/sql"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/danielhkuo/quickly-audit/audit"
	"github.com/danielhkuo/quickly-audit/cliparse"
	"github.com/danielhkuo/quickly-audit/handlers"
	"github.com/danielhkuo/quickly-audit/middleware"
)

// NewRouter registers every endpoint. metrics is served on /metrics.
func NewRouter(db *sql.DB, cfg cliparse.Config, registry *audit.Registry, metrics prometheus.Gatherer) *http.ServeMux {
	mux := http.NewServeMux()

	// Initialize handlers
	contestHandler := handlers.NewContestHandler(db, cfg)
	auditHandler := handlers.NewAuditHandler(registry, contestHandler)
	sampleSizeHandler := handlers.NewSampleSizeHandler(contestHandler)

	// Health check
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	// Prometheus
	mux.Handle("GET /metrics", promhttp.HandlerFor(metrics, promhttp.HandlerOpts{}))

	// Audit sessions (the session ID is the credential)
	mux.HandleFunc("POST /audits", middleware.WithLogging(auditHandler.CreateAudit))
	mux.HandleFunc("POST /audits/{id}/samples", middleware.WithLogging(auditHandler.SubmitSamples))
	mux.HandleFunc("GET /audits/{id}", middleware.WithLogging(auditHandler.GetStatus))
	mux.HandleFunc("DELETE /audits/{id}", middleware.WithLogging(auditHandler.EndAudit))

	// Stored contests
	mux.HandleFunc("POST /contests", middleware.WithLogging(contestHandler.CreateContest))
	mux.HandleFunc("GET /contests/{id}", middleware.WithLogging(contestHandler.GetContest))
	mux.HandleFunc("DELETE /contests/{id}", middleware.WithLogging(contestHandler.DeleteContest))

	// Estimates
	mux.HandleFunc("POST /sample-sizes", middleware.WithLogging(sampleSizeHandler.Estimate))

	// Root endpoint
	mux.HandleFunc("GET /", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("quickly-audit API v1"))
	})

	return mux
}
