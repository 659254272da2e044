package domain

import "time"

// ─── History Types ──────────────────────────────────────────────────────────

// HistoryEntry is the immutable record of one settled trade. Created exactly
// once per session that reaches Completed. Tags and notes are user-added
// after the fact; everything else never changes.
type HistoryEntry struct {
	ID                 string    `json:"id"`
	CounterpartyPeerID string    `json:"counterparty_peer_id"`
	CounterpartyAlias  string    `json:"counterparty_alias"`
	MyOfferSummary     string    `json:"my_offer_summary"`
	TheirOfferSummary  string    `json:"their_offer_summary"`
	SettledAt          time.Time `json:"settled_at"`
	Tags               []string  `json:"tags,omitempty"`
	Notes              string    `json:"notes,omitempty"`
}

// TradeOutcome classifies how a session ended, for trust adjustment.
type TradeOutcome string

const (
	OutcomeCompleted TradeOutcome = "COMPLETED"
	OutcomeDeclined  TradeOutcome = "DECLINED"
	OutcomeExpired   TradeOutcome = "EXPIRED"
)
