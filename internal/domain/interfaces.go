package domain

import "time"

// ─── Collaborator Interfaces ────────────────────────────────────────────────
// These interfaces define boundaries between layers.
// Infrastructure implements them; application layer depends on them.

// Transport abstracts the local wireless discovery/session layer.
// Retries after transport failure are the transport's own concern —
// the negotiation engine never retries.
type Transport interface {
	StartDiscovery() error
	StopDiscovery()

	// OnPeerFound registers the callback invoked when a peer appears or
	// re-announces. The advertised offer may be nil.
	OnPeerFound(fn func(peerID, alias string, offer *Offer))

	// OnPeerLost registers the callback invoked when a peer goes silent.
	OnPeerLost(fn func(peerID string))

	// Send delivers an opaque payload to a specific peer.
	Send(peerID string, payload []byte) error

	// OnReceive registers the callback for payloads from peers.
	OnReceive(fn func(peerID string, payload []byte))
}

// KVStore abstracts simple key/value persistence. Used by the offer store
// for the current offer and by the ledger for trust notes.
type KVStore interface {
	Get(key string) ([]byte, error) // nil, nil when the key is absent
	Set(key string, value []byte) error
	Delete(key string) error
}

// Timer is a cancellable scheduled callback handle.
type Timer interface {
	// Stop cancels the timer. It reports whether the cancellation
	// prevented the callback from firing.
	Stop() bool
}

// Clock abstracts time for the negotiator so tests can drive scheduled
// transitions deterministically.
type Clock interface {
	Now() time.Time
	// AfterFunc schedules fn to run once after d. The callback runs on
	// its own goroutine (real clock) or inside Advance (fake clock).
	AfterFunc(d time.Duration, fn func()) Timer
}
