// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package db

import (
	"database/sql"
	"fmt"
)

// CreateSchema creates all tables needed for the application.
// Safe to call multiple times - uses IF NOT EXISTS.
func CreateSchema(db *sql.DB) error {
	_, err := db.Exec(schema)
	if err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}

	return nil
}

// The schema sticks to SQL both SQLite and PostgreSQL accept.
const schema = `
-- Contests: the reported result an audit checks
CREATE TABLE IF NOT EXISTS contest (
    id TEXT PRIMARY KEY,
    office TEXT NOT NULL,
    ballots_cast INTEGER NOT NULL CHECK (ballots_cast > 0),
    num_winners INTEGER NOT NULL DEFAULT 1 CHECK (num_winners > 0),
    created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);

-- Candidates, in reported order
CREATE TABLE IF NOT EXISTS contest_candidate (
    contest_id TEXT NOT NULL REFERENCES contest(id) ON DELETE CASCADE,
    position INTEGER NOT NULL,
    name TEXT NOT NULL,
    votes INTEGER NOT NULL CHECK (votes >= 0),
    PRIMARY KEY (contest_id, position)
);

-- Reported batch tallies for batch comparison audits
CREATE TABLE IF NOT EXISTS contest_batch (
    contest_id TEXT NOT NULL REFERENCES contest(id) ON DELETE CASCADE,
    position INTEGER NOT NULL,
    name TEXT NOT NULL,
    ballots INTEGER NOT NULL CHECK (ballots >= 0),
    votes TEXT NOT NULL,
    PRIMARY KEY (contest_id, position)
);

CREATE INDEX IF NOT EXISTS idx_contest_office ON contest(office);
`
