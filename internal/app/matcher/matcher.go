// Package matcher ranks peer offers as trade candidates for the local offer.
//
// A peer offer qualifies when its have-item names the local need-item
// (case-insensitive exact match). Quantity compatibility is not required to
// qualify — a partial match is still surfaced — but exact quantity mirrors
// rank first. Within each tier candidates sort by descending trust score.
package matcher

import (
	"sort"
	"time"

	"github.com/boomtrade/boomtrade/internal/app/directory"
	"github.com/boomtrade/boomtrade/internal/domain"
)

// Candidate pairs a reachable peer with its qualifying offer.
type Candidate struct {
	Peer  domain.Peer  `json:"peer"`
	Offer domain.Offer `json:"offer"`
	Exact bool         `json:"exact"`
}

// Matcher computes trade candidates from directory snapshots.
type Matcher struct {
	dir *directory.Directory

	// MaxOfferAge drops candidates whose peer has been silent longer
	// than this. Zero means no staleness filtering (the default —
	// the directory retains entries until the transport removes them).
	MaxOfferAge time.Duration

	// Injectable clock for staleness tests.
	now func() time.Time
}

// New creates a matcher over the given directory.
func New(dir *directory.Directory) *Matcher {
	return &Matcher{dir: dir, now: time.Now}
}

// SetNowFunc overrides the time source, primarily used in tests.
func (m *Matcher) SetNowFunc(now func() time.Time) {
	if now == nil {
		now = time.Now
	}
	m.now = now
}

// Candidates returns the ordered candidate list for the local offer.
// The result is recomputed from a fresh directory snapshot on every call
// and never cached, so it always reflects current peers.
func (m *Matcher) Candidates(local domain.Offer) []Candidate {
	if local.IsZero() {
		return nil
	}

	var cutoff time.Time
	if m.MaxOfferAge > 0 {
		cutoff = m.now().Add(-m.MaxOfferAge)
	}

	var out []Candidate
	for _, peer := range m.dir.Snapshot() {
		offer, ok := m.dir.Offer(peer.ID)
		if !ok || !local.Matches(offer) {
			continue
		}
		if !cutoff.IsZero() && peer.LastSeenAt.Before(cutoff) {
			continue
		}
		out = append(out, Candidate{
			Peer:  peer,
			Offer: offer,
			Exact: local.ExactMatch(offer),
		})
	}

	// Exact-quantity mirrors first, then descending trust; peer id as the
	// final tiebreak keeps the order deterministic for equal trust.
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Exact != out[j].Exact {
			return out[i].Exact
		}
		if out[i].Peer.TrustScore != out[j].Peer.TrustScore {
			return out[i].Peer.TrustScore > out[j].Peer.TrustScore
		}
		return out[i].Peer.ID < out[j].Peer.ID
	})
	return out
}
