// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package cliparse handles command-line argument parsing and configuration.

# Configuration

ParseFlags returns a Config struct with all settings:

	cfg, err := cliparse.ParseFlags(os.Args[1:])

# Config Fields

  - Port: Server listen port (default: 3318)
  - DatabaseURL: Contest store connection string (default: file:quickly-audit.db)
  - DatabaseType: sqlite or postgres (default: sqlite)
  - LogLevel: slog level (default: info)
  - AllowedOrigins: CORS origins (default: *)
  - TallyCacheSize: stored tallies kept in memory (default: 128)

# CLI Flags

	-p            Server port
	-d            Database URL
	-t            Database type
	-log-level    Log level
	-origins      Comma-separated CORS origins
	-tally-cache  Tally cache size
	-env-file     Load variables from a .env file

# Environment Variables

Flags fall back to environment variables:

	PORT             → -p
	DATABASE_URL     → -d
	DATABASE_TYPE    → -t
	LOG_LEVEL        → -log-level
	ALLOWED_ORIGINS  → -origins
	TALLY_CACHE_SIZE → -tally-cache
	ENV_FILE         → -env-file

CLI flags take precedence over environment variables, and variables already
set in the environment take precedence over the .env file (godotenv).

# Validation

ParseFlags returns an error if:

  - PostgreSQL is selected without a DATABASE_URL
  - the port, log level or cache size cannot be parsed
  - the .env file named by -env-file cannot be read
*/
package cliparse
