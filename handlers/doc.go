// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package handlers contains HTTP request handlers for the Quickly Audit API.

# Handler Types

  - AuditHandler: audit sessions (create, submit samples, status, end)
  - ContestHandler: stored contest tallies
  - SampleSizeHandler: sample-size estimates before an audit

	contests := handlers.NewContestHandler(db, cfg)
	audits := handlers.NewAuditHandler(registry, contests)
	sizes := handlers.NewSampleSizeHandler(contests)

# Audit Sessions

	POST   /audits               → CreateAudit (returns session_id, first_sample_request)
	POST   /audits/{id}/samples  → SubmitSamples
	GET    /audits/{id}          → GetStatus
	DELETE /audits/{id}          → EndAudit

The session_id is the only credential for a session. Samples are queued and
processed in the background; pass ?wait=true to SubmitSamples or GetStatus to
get a status that reflects every sample submitted so far. Once a verdict is
read through GetStatus the session is removed.

An audit starts either from an inline tally (candidate_votes,
num_ballots_cast, batches) or from a stored contest_id.

# Contests

	POST   /contests       → CreateContest
	GET    /contests/{id}  → GetContest
	DELETE /contests/{id}  → DeleteContest

Stored contests are read through an LRU cache sized by the tally-cache option.

# Error Mapping

	400  invalid JSON, failed validation, bad audit configuration
	404  unknown session or contest
	422  a submitted sample does not fit the session (index names the sample)
	500  anything else, with a generic message

Every error body is a models.ErrorResponse.
*/
package handlers
