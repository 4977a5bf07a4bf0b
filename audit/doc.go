// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package audit runs sequential risk-limiting audits.

An audit session owns one SequentialTest, a SampleBuffer and a worker
goroutine. Callers append samples to the buffer; the worker drains it, feeds
the test and publishes a Status after every batch. The Registry maps opaque
tokens to sessions.

# Creating a Session

	reg := audit.NewRegistry(audit.WithLogger(logger), audit.WithMetrics(metrics))
	created, err := reg.Create(ctx, audit.VariantBallotPolling, audit.Tally{
		Candidates:  []string{"Alice", "Bob"},
		Votes:       []int{650, 350},
		BallotsCast: 1000,
	}, audit.Config{RiskLimit: 0.1, NumWinners: 1, Seed: 12345})

Create validates the configuration (a *ConfigurationError on failure), starts
the worker and returns the first SampleRequest with the ballot numbers to
pull.

# Submitting Samples

	_, err := reg.Submit(ctx, created.Token, audit.VariantBallotPolling, []audit.Sample{
		audit.BallotSample{Votes: []int{1, 0}},
	})
	status, err := reg.Sync(ctx, created.Token)

Submit checks every sample before any is queued; a bad one rejects the whole
submission with a *SampleFormatError naming its index. Submit returns as soon
as the samples are queued. Sync waits for the worker to catch up.

Samples are processed one at a time and the stopping rule is checked after
each, so the verdict does not depend on how samples are split across
submissions.

# Methods

  - ballot_polling: BRAVO, one SPRT per winner/loser pair
  - comparison: SuperSimple with Kaplan-Markov P-values
  - batch_comparison: staged CAST over hand-counted batches
  - bayesian_polling: Monte Carlo upset probability from a Dirichlet posterior

# Ending

Reading the status of a finished session removes it. End removes a session
at any time and may be called repeatedly. Close ends every session at
shutdown.
*/
package audit
