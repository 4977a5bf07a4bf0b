// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package db opens the contest store and creates its schema.

Audit sessions live in memory; the database only holds reported contest
tallies so that an audit can be started from a stored contest_id instead of
an inline tally.

# Opening

	conn, err := db.Open(ctx, db.SQLite, "file:quickly-audit.db")
	conn, err := db.Open(ctx, db.Postgres, "postgres://...")

SQLite uses modernc.org/sqlite (pure Go, no cgo) and PostgreSQL uses lib/pq.
SQLite connections are limited to one so ":memory:" databases work in tests.

# Schema Creation

	if err := db.CreateSchema(conn); err != nil {
		log.Fatal(err)
	}

Safe to call multiple times - uses IF NOT EXISTS for all tables and indexes.

# Tables

  - contest: office, ballots cast and number of winners
  - contest_candidate: candidate names and reported votes, by position
  - contest_batch: reported batch tallies, votes stored as a JSON array

# Relationships

	contest 1──* contest_candidate
	contest 1──* contest_batch

All foreign keys use ON DELETE CASCADE.
*/
package db
