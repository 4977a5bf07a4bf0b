// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package router defines HTTP routes for the Quickly Audit API.

# Route Registration

NewRouter creates a configured http.ServeMux with all endpoints:

	mux := router.NewRouter(db, cfg, registry, prometheus.DefaultGatherer)

# Endpoints

Health and metrics:

	GET /health
	GET /metrics

Audit sessions (the session_id in the path is the credential):

	POST   /audits              - Start an audit, returns the first sample request
	POST   /audits/{id}/samples - Submit ballots, comparisons or batch counts
	GET    /audits/{id}         - Current status; a finished session is removed
	DELETE /audits/{id}         - End a session

Stored contests:

	POST   /contests      - Store a reported tally
	GET    /contests/{id} - Read it back
	DELETE /contests/{id} - Remove it

Estimates:

	POST /sample-sizes - BRAVO and SuperSimple sample sizes for a tally

# Handler Initialization

The router creates handler instances with dependency injection. Contest
lookups are shared so audits and estimates read through the same cache:

	contestHandler := handlers.NewContestHandler(db, cfg)
	auditHandler := handlers.NewAuditHandler(registry, contestHandler)
	sampleSizeHandler := handlers.NewSampleSizeHandler(contestHandler)
*/
package router
