// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package main provides the entry point for the Quickly Audit API server.

Quickly Audit runs risk-limiting audits of election results. An auditor
starts a session from a reported tally, draws the ballots (or batches) the
server asks for, and submits what was found on paper until the server either
confirms the reported outcome or calls for a full hand count. Four methods
are supported: BRAVO ballot polling, SuperSimple ballot comparison, CAST
batch comparison and Bayesian ballot polling.

# Starting the Server

With no configuration the server uses a local SQLite file:

	go run .

Or with flags:

	go run . -p 3318 -t postgres -d "postgres://..."

# Configuration

Every flag has an environment fallback, and an optional .env file is read
first:

  - PORT (-p): Server port (default: 3318)
  - DATABASE_TYPE (-t): sqlite or postgres (default: sqlite)
  - DATABASE_URL (-d): connection string (default: file:quickly-audit.db)
  - LOG_LEVEL (--log-level): debug, info, warn or error
  - ALLOWED_ORIGINS (--origins): comma-separated CORS origins (default: *)
  - TALLY_CACHE_SIZE (--tally-cache): stored contests kept in memory
  - ENV_FILE (--env-file): path of the .env file

# Architecture

  - audit: sequential tests, sample buffers, sessions and the registry
  - stats: the statistics behind each method
  - handlers: HTTP request handlers (audits, contests, sample sizes)
  - router: Route definitions using Go 1.22+ routing
  - middleware: CORS, logging, JSON helpers
  - models: Request/response types and validation
  - auth: Session tokens and IDs
  - db: Connection and schema creation
  - cliparse: Configuration parsing

Audit sessions live in memory and are lost on restart. On SIGINT or SIGTERM
the server stops accepting requests, drains in-flight ones and ends every
session.

See package documentation for each component.
*/
package main
