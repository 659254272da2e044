// Package directory tracks the set of currently reachable peers and each
// peer's most recently advertised offer and trust metadata.
//
// The directory is purely in-memory and rebuilt each discovery session: it
// never expires entries on its own (staleness policy belongs to the matcher)
// and drops a peer only when the transport reports it lost.
package directory

import (
	"sort"
	"sync"
	"time"

	"github.com/boomtrade/boomtrade/internal/domain"
)

// Directory is the in-memory peer registry. Thread-safe via RWMutex;
// snapshots are copy-on-read so matcher reads never observe a half-updated
// record while discovery callbacks race in.
type Directory struct {
	mu     sync.RWMutex
	peers  map[string]domain.Peer
	offers map[string]domain.Offer // peerID → advertised offer

	// Injectable clock for testing.
	now func() time.Time
}

// New creates an empty directory.
func New() *Directory {
	return &Directory{
		peers:  make(map[string]domain.Peer),
		offers: make(map[string]domain.Offer),
		now:    time.Now,
	}
}

// SetNowFunc overrides the time source, primarily used in tests.
func (d *Directory) SetNowFunc(now func() time.Time) {
	if now == nil {
		now = time.Now
	}
	d.now = now
}

// Upsert inserts a peer on first discovery or refreshes its lastSeenAt and
// advertised offer on re-observation. Trust score and reputation tags are
// preserved across re-observations — discovery alone never moves trust.
func (d *Directory) Upsert(peerID, alias string, offer *domain.Offer) domain.Peer {
	d.mu.Lock()
	defer d.mu.Unlock()

	now := d.now()
	p, ok := d.peers[peerID]
	if !ok {
		p = domain.NewPeer(peerID, alias, now)
	} else {
		if alias != "" {
			p.Alias = alias
		}
		p.LastSeenAt = now
	}
	d.peers[peerID] = p

	if offer != nil {
		d.offers[peerID] = *offer
	}
	return p
}

// Remove drops a peer and its offer on a transport loss notification.
func (d *Directory) Remove(peerID string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.peers, peerID)
	delete(d.offers, peerID)
}

// Get returns the peer and whether it is currently reachable.
func (d *Directory) Get(peerID string) (domain.Peer, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	p, ok := d.peers[peerID]
	return p, ok
}

// Offer returns a peer's most recently advertised offer.
func (d *Directory) Offer(peerID string) (domain.Offer, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	o, ok := d.offers[peerID]
	return o, ok
}

// Snapshot returns a stable-ordered copy of all known peers: ascending
// lastSeenAt, ties broken by id. Mutating the result does not affect the
// directory.
func (d *Directory) Snapshot() []domain.Peer {
	d.mu.RLock()
	defer d.mu.RUnlock()

	peers := make([]domain.Peer, 0, len(d.peers))
	for _, p := range d.peers {
		peers = append(peers, p)
	}
	sort.Slice(peers, func(i, j int) bool {
		if !peers[i].LastSeenAt.Equal(peers[j].LastSeenAt) {
			return peers[i].LastSeenAt.Before(peers[j].LastSeenAt)
		}
		return peers[i].ID < peers[j].ID
	})
	return peers
}

// Count returns the number of currently known peers.
func (d *Directory) Count() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.peers)
}

// AdjustTrust applies a delta to a peer's trust score, clamped to the
// [0,10] band. Only the history ledger calls this — settlement outcomes
// are the sole source of trust movement. Returns the new score.
func (d *Directory) AdjustTrust(peerID string, delta float64) (float64, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	p, ok := d.peers[peerID]
	if !ok {
		return 0, false
	}
	p.TrustScore = domain.ClampTrust(p.TrustScore + delta)
	d.peers[peerID] = p
	return p.TrustScore, true
}

// Tag appends a reputation tag to a peer.
func (d *Directory) Tag(peerID, tag string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	p, ok := d.peers[peerID]
	if !ok {
		return false
	}
	d.peers[peerID] = p.AddTag(tag)
	return true
}
