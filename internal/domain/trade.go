package domain

import (
	"encoding/json"
	"fmt"
	"time"
)

// ─── Trade Session Types ────────────────────────────────────────────────────

// TradeState is the lifecycle state of a trade session.
type TradeState string

const (
	// TradeProposed: session created locally, proposal still "in flight".
	TradeProposed TradeState = "PROPOSED"
	// TradeAwaitingResponse: proposal delivered, waiting for accept/decline.
	TradeAwaitingResponse TradeState = "AWAITING_RESPONSE"
	// TradePasscodeConfirmation: accepted, passcode on display for the
	// confirmation window.
	TradePasscodeConfirmation TradeState = "PASSCODE_CONFIRMATION"

	// Terminal states.
	TradeCompleted TradeState = "COMPLETED"
	TradeDeclined  TradeState = "DECLINED"
	TradeExpired   TradeState = "EXPIRED"
	TradeCancelled TradeState = "CANCELLED"
)

// Terminal reports whether the state admits no further transitions.
func (s TradeState) Terminal() bool {
	switch s {
	case TradeCompleted, TradeDeclined, TradeExpired, TradeCancelled:
		return true
	default:
		return false
	}
}

// Valid reports whether the state value is one the engine knows.
func (s TradeState) Valid() bool {
	switch s {
	case TradeProposed, TradeAwaitingResponse, TradePasscodeConfirmation,
		TradeCompleted, TradeDeclined, TradeExpired, TradeCancelled:
		return true
	default:
		return false
	}
}

// TradeSession is one negotiation instance between two parties' offers.
// It is owned exclusively by the negotiator until it reaches a terminal
// state, at which point it becomes an immutable historical record.
type TradeSession struct {
	ID              string     `json:"id"`
	InitiatorPeerID string     `json:"initiator_peer_id"`
	ReceiverPeerID  string     `json:"receiver_peer_id"`
	InitiatorOffer  Offer      `json:"initiator_offer"`
	ReceiverOffer   Offer      `json:"receiver_offer"`
	Passcode        string     `json:"passcode"`
	State           TradeState `json:"state"`
	CreatedAt       time.Time  `json:"created_at"`
}

// Counterparty returns the peer id on the other side of the session from
// localID.
func (s TradeSession) Counterparty(localID string) string {
	if s.InitiatorPeerID == localID {
		return s.ReceiverPeerID
	}
	return s.InitiatorPeerID
}

// ─── Trade Wire Messages ────────────────────────────────────────────────────

// MessageKind identifies a trade negotiation message on the wire.
type MessageKind string

const (
	MsgPropose MessageKind = "propose"
	MsgAccept  MessageKind = "accept"
	MsgDecline MessageKind = "decline"
	MsgCancel  MessageKind = "cancel"
)

// TradeMessage is the JSON payload exchanged between devices for one
// negotiation step. It must round-trip {sessionId, offer, passcode, kind}.
type TradeMessage struct {
	SessionID string      `json:"session_id"`
	Kind      MessageKind `json:"kind"`
	Offer     Offer       `json:"offer,omitempty"`
	Passcode  string      `json:"passcode,omitempty"`
}

// Encode serializes the message for Transport.Send.
func (m TradeMessage) Encode() ([]byte, error) {
	return json.Marshal(m)
}

// DecodeTradeMessage parses a received payload.
func DecodeTradeMessage(payload []byte) (TradeMessage, error) {
	var m TradeMessage
	if err := json.Unmarshal(payload, &m); err != nil {
		return TradeMessage{}, fmt.Errorf("decode trade message: %w", err)
	}
	return m, nil
}
