// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package models defines request, response, and domain types for the API.

# Request Types

Types for parsing incoming JSON:

  - CreateAuditRequest: audit_type, contest_id or candidate_votes, and the
    method parameters (risk_limit, random_seed, inflation_rate, ...)
  - SubmitSamplesRequest: audit_type plus ballots, comparisons or batches
  - CreateContestRequest: office, candidates, candidate_votes, batches
  - SampleSizeRequest: contest_id or candidate_votes, risk_limit

# Response Types

  - CreateAuditResponse: session_id, first_sample_request, estimated_sample_size
  - AuditStatus: audit_complete, completion_message, flag, statistic, ...
  - SampleRequest: count, sequence_number_to_draw
  - SampleSizeResponse: v_w, v_l, total_votes, office_chosen
  - ErrorResponse: error, message, field, index

# Validation

Requests carry validator struct tags. Validate reports the first broken
rule as a *FieldError named by its JSON path:

	if err := models.Validate(&req); err != nil {
		// err.Error() == "risk_limit must be between 0 and 1"
	}

The custom "probability" rule accepts values strictly between 0 and 1.
ApplyDefaults fills in num_winners, inflation_rate, num_stages and
num_trials when they are left at zero.
*/
package models
