package domain

import "errors"

// ─── Sentinel Errors ────────────────────────────────────────────────────────
// Domain errors are pure — no infrastructure dependency. Callers branch on
// kind with errors.Is; no engine error triggers an automatic retry.

var (
	// Offer errors
	ErrInvalidOffer = errors.New("invalid offer")
	ErrNoOffer      = errors.New("no current offer set")

	// Negotiation errors
	ErrDuplicateSession = errors.New("an active trade session already exists for this peer pair")
	ErrPeerUnavailable  = errors.New("peer is no longer reachable")
	ErrStaleSession     = errors.New("trade session is not awaiting a response")
	ErrSessionNotFound  = errors.New("trade session not found")

	// Ledger errors — misuse by the caller, treated as a fatal
	// precondition violation rather than a user-facing condition.
	ErrNotSettled = errors.New("trade session has not settled")
)
