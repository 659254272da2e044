package domain

import "time"

// ─── Peer Types ─────────────────────────────────────────────────────────────

const (
	// TrustFloor and TrustCeiling bound every peer trust score.
	TrustFloor   = 0.0
	TrustCeiling = 10.0

	// TrustNeutral is the score assigned on first discovery. Settlement
	// outcomes are the only thing that moves it afterwards.
	TrustNeutral = 5.0
)

// Peer is a remote device reachable on the local mesh, identified by a
// stable device id. Peers live only in the in-memory directory and are
// rebuilt each discovery session.
type Peer struct {
	ID             string    `json:"id"`
	Alias          string    `json:"alias"`
	TrustScore     float64   `json:"trust_score"`
	ReputationTags []string  `json:"reputation_tags,omitempty"`
	LastSeenAt     time.Time `json:"last_seen_at"`
}

// NewPeer returns a freshly discovered peer at neutral trust.
func NewPeer(id, alias string, seenAt time.Time) Peer {
	if alias == "" {
		alias = "Unknown Trader"
	}
	return Peer{
		ID:         id,
		Alias:      alias,
		TrustScore: TrustNeutral,
		LastSeenAt: seenAt,
	}
}

// ClampTrust restricts a trust score to [TrustFloor, TrustCeiling].
func ClampTrust(score float64) float64 {
	if score < TrustFloor {
		return TrustFloor
	}
	if score > TrustCeiling {
		return TrustCeiling
	}
	return score
}

// HasTag reports whether the peer carries the given reputation tag.
func (p Peer) HasTag(tag string) bool {
	for _, t := range p.ReputationTags {
		if t == tag {
			return true
		}
	}
	return false
}

// AddTag appends a reputation tag if not already present and returns the peer.
func (p Peer) AddTag(tag string) Peer {
	if tag == "" || p.HasTag(tag) {
		return p
	}
	p.ReputationTags = append(append([]string(nil), p.ReputationTags...), tag)
	return p
}
