// Package ledger keeps the append-only record of settled trades and applies
// settlement-driven trust adjustments. The ledger is the only writer of
// history entries and the only component allowed to move a peer's trust
// score — discovery alone never touches trust.
package ledger

import (
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/boomtrade/boomtrade/internal/app/directory"
	"github.com/boomtrade/boomtrade/internal/domain"
	"github.com/boomtrade/boomtrade/internal/infra/observability"
)

// ─── Trust Deltas ───────────────────────────────────────────────────────────

// Fixed per-outcome trust deltas, applied clamped to [0,10].
const (
	TrustRewardCompleted = 0.5
	TrustPenaltyDeclined = -0.5
	TrustPenaltyExpired  = -0.25
)

// trustDelta maps a settlement outcome to its fixed delta.
func trustDelta(outcome domain.TradeOutcome) float64 {
	switch outcome {
	case domain.OutcomeCompleted:
		return TrustRewardCompleted
	case domain.OutcomeDeclined:
		return TrustPenaltyDeclined
	case domain.OutcomeExpired:
		return TrustPenaltyExpired
	default:
		return 0
	}
}

// ─── Entry Store ────────────────────────────────────────────────────────────

// EntryStore abstracts history persistence. The sqlite package provides the
// production implementation.
type EntryStore interface {
	AppendEntry(entry domain.HistoryEntry) error
	ListEntries() ([]domain.HistoryEntry, error)
	UpdateEntryMeta(id string, tags []string, notes string) error
}

// ─── Ledger ─────────────────────────────────────────────────────────────────

// Ledger records completed trades and adjusts peer trust on settlement.
type Ledger struct {
	mu      sync.Mutex
	localID string
	dir     *directory.Directory
	store   EntryStore
	kv      domain.KVStore // trust notes; may be nil

	// Injectable clock for testing.
	now func() time.Time
}

// New creates a ledger over the given entry store. kv may be nil, in which
// case trust notes are not persisted across restarts.
func New(localID string, dir *directory.Directory, store EntryStore, kv domain.KVStore) *Ledger {
	return &Ledger{
		localID: localID,
		dir:     dir,
		store:   store,
		kv:      kv,
		now:     time.Now,
	}
}

// SetNowFunc overrides the time source, primarily used in tests.
func (l *Ledger) SetNowFunc(now func() time.Time) {
	if now == nil {
		now = time.Now
	}
	l.now = now
}

// Record appends the settled session to history. Accepts only sessions in
// the Completed state; anything else is a precondition violation surfaced
// as ErrNotSettled. Exactly one entry is created per completed session.
func (l *Ledger) Record(session domain.TradeSession) (domain.HistoryEntry, error) {
	if session.State != domain.TradeCompleted {
		return domain.HistoryEntry{}, fmt.Errorf("%w: session %s is %s", domain.ErrNotSettled, session.ID, session.State)
	}

	counterparty := session.Counterparty(l.localID)
	alias := counterparty
	if p, ok := l.dir.Get(counterparty); ok {
		alias = p.Alias
	}

	myOffer, theirOffer := session.InitiatorOffer, session.ReceiverOffer
	if session.InitiatorPeerID != l.localID {
		myOffer, theirOffer = theirOffer, myOffer
	}

	entry := domain.HistoryEntry{
		ID:                 uuid.NewString(),
		CounterpartyPeerID: counterparty,
		CounterpartyAlias:  alias,
		MyOfferSummary:     myOffer.Summary(),
		TheirOfferSummary:  theirOffer.Summary(),
		SettledAt:          l.now(),
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.store.AppendEntry(entry); err != nil {
		return domain.HistoryEntry{}, fmt.Errorf("append history entry: %w", err)
	}

	observability.HistoryEntries.Inc()
	log.Printf("[ledger] recorded trade with %s (%s)", alias, counterparty)
	return entry, nil
}

// Entries returns all recorded history entries, newest first.
func (l *Ledger) Entries() ([]domain.HistoryEntry, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.store.ListEntries()
}

// UpdateEntry replaces the user-editable tags and notes of an entry.
// Everything else in an entry is immutable.
func (l *Ledger) UpdateEntry(id string, tags []string, notes string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.store.UpdateEntryMeta(id, tags, notes)
}

// AdjustTrust applies the fixed per-outcome delta to a peer's trust score,
// clamped to [0,10], and persists a trust note. Unknown peers are a no-op:
// the peer may already have left the mesh.
func (l *Ledger) AdjustTrust(peerID string, outcome domain.TradeOutcome) {
	delta := trustDelta(outcome)
	if delta == 0 {
		return
	}

	score, ok := l.dir.AdjustTrust(peerID, delta)
	if !ok {
		return
	}
	observability.TrustAdjustments.WithLabelValues(string(outcome)).Inc()

	if l.kv != nil {
		note := trustNote{Score: score, LastOutcome: outcome, UpdatedAt: l.now()}
		if data, err := json.Marshal(note); err == nil {
			if err := l.kv.Set(trustKey(peerID), data); err != nil {
				log.Printf("[ledger] persist trust note for %s: %v", peerID, err)
			}
		}
	}
}

// PersistedTrust returns the persisted trust note for a peer, if any.
func (l *Ledger) PersistedTrust(peerID string) (float64, bool) {
	if l.kv == nil {
		return 0, false
	}
	data, err := l.kv.Get(trustKey(peerID))
	if err != nil || data == nil {
		return 0, false
	}
	var note trustNote
	if err := json.Unmarshal(data, &note); err != nil {
		return 0, false
	}
	return note.Score, true
}

type trustNote struct {
	Score       float64             `json:"score"`
	LastOutcome domain.TradeOutcome `json:"last_outcome"`
	UpdatedAt   time.Time           `json:"updated_at"`
}

func trustKey(peerID string) string { return "trust/" + peerID }
