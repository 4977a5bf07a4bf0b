// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package auth provides token and ID generation utilities.

# Session Tokens

Session tokens are random 32-byte (256-bit) secrets:

	token, err := auth.GenerateSessionToken()

Tokens are URL-safe base64 encoded without padding (43 characters). A token is
the only handle on an audit session, so anyone holding it can submit samples.
ValidateSessionToken rejects strings that cannot be a token before any lookup.

# Fingerprints

Tokens never appear in logs. Fingerprint returns a short base62 name derived
from the first 8 bytes of the token's SHA-256:

	slog.Info("Session created", "session", auth.Fingerprint(token))

# ID Generation

Random hex IDs for database records:

	id, err := auth.GenerateID(8)  // 16 hex characters
*/
package auth
