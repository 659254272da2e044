// Package negotiator owns the lifecycle of individual trade sessions from
// proposal through settlement or cancellation.
//
// State machine:
//
//	Proposed → AwaitingResponse → PasscodeConfirmation → Completed
//	AwaitingResponse → Declined
//	any non-terminal → Expired (deadline elapsed) or Cancelled (local withdrawal)
//
// No operation blocks. Delays — the proposal delivery window, the passcode
// confirmation window, the decline dismiss window — are scheduled through
// the Clock collaborator as cancellable timers. Every timer carries the
// session id and the state it expects to find; a timer that fires after the
// session has moved on is a no-op. Transitions for one session are totally
// ordered under a single mutex.
package negotiator

import (
	"fmt"
	"log"
	"math/rand"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/boomtrade/boomtrade/internal/app/directory"
	"github.com/boomtrade/boomtrade/internal/app/ledger"
	"github.com/boomtrade/boomtrade/internal/app/offers"
	"github.com/boomtrade/boomtrade/internal/domain"
	"github.com/boomtrade/boomtrade/internal/infra/observability"
)

// ─── Configuration ──────────────────────────────────────────────────────────

// Config controls the negotiator's timing windows.
type Config struct {
	// DeliveryDelay models the proposal "in flight" before the
	// counterparty is considered notified.
	DeliveryDelay time.Duration

	// ResponseTimeout is how long a delivered proposal waits for an
	// accept/decline before expiring.
	ResponseTimeout time.Duration

	// ConfirmWindow is how long the passcode stays on display before the
	// trade auto-settles as completed.
	ConfirmWindow time.Duration

	// DeclineDismiss is how long a decline notice stays visible.
	DeclineDismiss time.Duration
}

// DefaultConfig returns the windows the original handshake used.
func DefaultConfig() Config {
	return Config{
		DeliveryDelay:   1 * time.Second,
		ResponseTimeout: 30 * time.Second,
		ConfirmWindow:   5 * time.Second,
		DeclineDismiss:  3 * time.Second,
	}
}

// ─── Notices ────────────────────────────────────────────────────────────────

// Notice is a transient, auto-dismissing surface event (the original app's
// decline banner). The UI layer polls it; the engine clears it on a timer.
type Notice struct {
	Kind      string `json:"kind"`
	SessionID string `json:"session_id"`
	PeerAlias string `json:"peer_alias"`
}

// NoticeDeclined is the kind set when a counterparty declines a trade.
const NoticeDeclined = "declined"

// ─── Negotiator ─────────────────────────────────────────────────────────────

type session struct {
	data  domain.TradeSession
	timer domain.Timer // pending scheduled transition, nil when none
}

// Negotiator drives trade sessions to a terminal state.
type Negotiator struct {
	mu        sync.Mutex
	cfg       Config
	localID   string
	clock     domain.Clock
	offers    *offers.Store
	dir       *directory.Directory
	ledger    *ledger.Ledger
	transport domain.Transport // may be nil (library use without a mesh)

	sessions map[string]*session
	pairs    map[string]string // unordered pair key → active session id
	notice   *Notice
}

// New creates a negotiator with injected collaborators. transport may be
// nil; every other collaborator is required.
func New(localID string, cfg Config, clk domain.Clock, store *offers.Store, dir *directory.Directory, led *ledger.Ledger, transport domain.Transport) *Negotiator {
	return &Negotiator{
		cfg:       cfg,
		localID:   localID,
		clock:     clk,
		offers:    store,
		dir:       dir,
		ledger:    led,
		transport: transport,
		sessions:  make(map[string]*session),
		pairs:     make(map[string]string),
	}
}

// pairKey normalizes an unordered peer pair to one map key.
func pairKey(a, b string) string {
	if a > b {
		a, b = b, a
	}
	return a + "|" + b
}

// generatePasscode draws a uniformly random 4-digit display code. Collisions
// across concurrent sessions are acceptable; the code is a display aid, not
// a security token.
func generatePasscode() string {
	return fmt.Sprintf("%04d", rand.Intn(10000))
}

// ─── Public Operations ──────────────────────────────────────────────────────

// Propose opens a trade session against a peer's offer. The proposal is
// scheduled for delivery after the configured delay; until it is delivered
// the session sits in Proposed and a Cancel prevents it from ever reaching
// the counterparty.
func (n *Negotiator) Propose(local domain.Offer, peerID string, theirOffer domain.Offer) (domain.TradeSession, error) {
	if local.IsZero() {
		return domain.TradeSession{}, domain.ErrNoOffer
	}
	if _, ok := n.dir.Get(peerID); !ok {
		return domain.TradeSession{}, fmt.Errorf("%w: %s", domain.ErrPeerUnavailable, peerID)
	}

	n.mu.Lock()
	defer n.mu.Unlock()

	key := pairKey(n.localID, peerID)
	if activeID, ok := n.pairs[key]; ok {
		return domain.TradeSession{}, fmt.Errorf("%w: session %s", domain.ErrDuplicateSession, activeID)
	}

	s := &session{data: domain.TradeSession{
		ID:              uuid.NewString(),
		InitiatorPeerID: n.localID,
		ReceiverPeerID:  peerID,
		InitiatorOffer:  local,
		ReceiverOffer:   theirOffer,
		Passcode:        generatePasscode(),
		State:           domain.TradeProposed,
		CreatedAt:       n.clock.Now(),
	}}
	n.sessions[s.data.ID] = s
	n.pairs[key] = s.data.ID

	observability.TradesProposed.Inc()
	observability.ActiveSessions.Inc()
	log.Printf("[negotiator] proposed trade %s to %s", s.data.ID, peerID)

	n.schedule(s, domain.TradeProposed, n.cfg.DeliveryDelay, n.deliverProposal)
	return s.data, nil
}

// Accept moves a delivered proposal into passcode confirmation. Only legal
// from AwaitingResponse; any other state is rejected with ErrStaleSession
// and leaves the session untouched.
func (n *Negotiator) Accept(sessionID string) error {
	n.mu.Lock()
	defer n.mu.Unlock()

	s, err := n.respondable(sessionID)
	if err != nil {
		return err
	}

	n.beginConfirmation(s)
	n.send(s.data.Counterparty(n.localID), domain.TradeMessage{
		SessionID: s.data.ID,
		Kind:      domain.MsgAccept,
		Passcode:  s.data.Passcode,
	})
	return nil
}

// Decline rejects a delivered proposal. Only legal from AwaitingResponse.
// Records no history entry. The decline penalty belongs to the declining
// peer, so this side adjusts no trust; the counterparty's device applies it
// when the decline message arrives.
func (n *Negotiator) Decline(sessionID string) error {
	n.mu.Lock()
	defer n.mu.Unlock()

	s, err := n.respondable(sessionID)
	if err != nil {
		return err
	}

	peer := s.data.Counterparty(n.localID)
	n.settle(s, domain.TradeDeclined)
	n.raiseDeclineNotice(s.data.ID, peer)
	n.send(peer, domain.TradeMessage{SessionID: s.data.ID, Kind: domain.MsgDecline})
	return nil
}

// Cancel withdraws a session from any non-terminal state. The pending timer
// is stopped, so no later transition can ever occur for the session.
func (n *Negotiator) Cancel(sessionID string) error {
	n.mu.Lock()
	defer n.mu.Unlock()

	s, ok := n.sessions[sessionID]
	if !ok {
		return fmt.Errorf("%w: %s", domain.ErrSessionNotFound, sessionID)
	}
	if s.data.State.Terminal() {
		return fmt.Errorf("%w: %s is %s", domain.ErrStaleSession, sessionID, s.data.State)
	}

	// A proposal still in flight never reached the counterparty; there is
	// nothing to notify.
	notify := s.data.State != domain.TradeProposed
	n.settle(s, domain.TradeCancelled)
	if notify {
		n.send(s.data.Counterparty(n.localID), domain.TradeMessage{SessionID: s.data.ID, Kind: domain.MsgCancel})
	}
	log.Printf("[negotiator] cancelled trade %s", sessionID)
	return nil
}

// Session returns a session by id.
func (n *Negotiator) Session(sessionID string) (domain.TradeSession, bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	s, ok := n.sessions[sessionID]
	if !ok {
		return domain.TradeSession{}, false
	}
	return s.data, true
}

// Sessions returns all sessions ordered by creation time.
func (n *Negotiator) Sessions() []domain.TradeSession {
	n.mu.Lock()
	defer n.mu.Unlock()

	out := make([]domain.TradeSession, 0, len(n.sessions))
	for _, s := range n.sessions {
		out = append(out, s.data)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// Notice returns the current transient notice, if one is showing.
func (n *Negotiator) Notice() (Notice, bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.notice == nil {
		return Notice{}, false
	}
	return *n.notice, true
}

// ─── Inbound Wire Messages ──────────────────────────────────────────────────

// HandleMessage applies a trade message received from a peer. Late or
// duplicate responses to settled sessions surface ErrStaleSession and leave
// state untouched.
func (n *Negotiator) HandleMessage(fromPeer string, payload []byte) error {
	msg, err := domain.DecodeTradeMessage(payload)
	if err != nil {
		return err
	}

	n.mu.Lock()
	defer n.mu.Unlock()

	switch msg.Kind {
	case domain.MsgPropose:
		return n.handlePropose(fromPeer, msg)
	case domain.MsgAccept:
		s, err := n.respondable(msg.SessionID)
		if err != nil {
			return err
		}
		n.beginConfirmation(s)
		return nil
	case domain.MsgDecline:
		s, err := n.respondable(msg.SessionID)
		if err != nil {
			return err
		}
		peer := s.data.Counterparty(n.localID)
		n.settle(s, domain.TradeDeclined)
		n.ledger.AdjustTrust(peer, domain.OutcomeDeclined)
		n.raiseDeclineNotice(s.data.ID, peer)
		return nil
	case domain.MsgCancel:
		s, ok := n.sessions[msg.SessionID]
		if !ok {
			return fmt.Errorf("%w: %s", domain.ErrSessionNotFound, msg.SessionID)
		}
		if s.data.State.Terminal() {
			return fmt.Errorf("%w: %s", domain.ErrStaleSession, msg.SessionID)
		}
		n.settle(s, domain.TradeCancelled)
		return nil
	default:
		return fmt.Errorf("unknown trade message kind %q", msg.Kind)
	}
}

// handlePropose registers an incoming proposal. The proposal has already
// crossed the wire, so the session starts in AwaitingResponse here.
// Caller holds n.mu.
func (n *Negotiator) handlePropose(fromPeer string, msg domain.TradeMessage) error {
	key := pairKey(n.localID, fromPeer)
	if activeID, ok := n.pairs[key]; ok {
		return fmt.Errorf("%w: session %s", domain.ErrDuplicateSession, activeID)
	}

	var myOffer domain.Offer
	if current, ok := n.offers.CurrentOffer(); ok {
		myOffer = current
	}

	s := &session{data: domain.TradeSession{
		ID:              msg.SessionID,
		InitiatorPeerID: fromPeer,
		ReceiverPeerID:  n.localID,
		InitiatorOffer:  msg.Offer,
		ReceiverOffer:   myOffer,
		Passcode:        msg.Passcode,
		State:           domain.TradeAwaitingResponse,
		CreatedAt:       n.clock.Now(),
	}}
	n.sessions[s.data.ID] = s
	n.pairs[key] = s.data.ID

	observability.ActiveSessions.Inc()
	log.Printf("[negotiator] incoming trade %s from %s", s.data.ID, fromPeer)

	n.schedule(s, domain.TradeAwaitingResponse, n.cfg.ResponseTimeout, n.expire)
	return nil
}

// ─── Scheduled Transitions ──────────────────────────────────────────────────

// schedule arms the session's pending timer. The callback re-checks the
// session's state under the lock: if the session has left expect by the
// time the timer fires, the firing is ignored. Caller holds n.mu.
func (n *Negotiator) schedule(s *session, expect domain.TradeState, d time.Duration, fire func(*session)) {
	if s.timer != nil {
		s.timer.Stop()
	}
	id := s.data.ID
	s.timer = n.clock.AfterFunc(d, func() {
		n.mu.Lock()
		defer n.mu.Unlock()
		cur, ok := n.sessions[id]
		if !ok || cur.data.State != expect {
			return // stale timer
		}
		fire(cur)
	})
}

// deliverProposal marks the proposal as arrived and starts the response
// deadline. Caller holds n.mu via schedule.
func (n *Negotiator) deliverProposal(s *session) {
	s.data.State = domain.TradeAwaitingResponse
	n.send(s.data.ReceiverPeerID, domain.TradeMessage{
		SessionID: s.data.ID,
		Kind:      domain.MsgPropose,
		Offer:     s.data.InitiatorOffer,
		Passcode:  s.data.Passcode,
	})
	log.Printf("[negotiator] trade %s delivered to %s", s.data.ID, s.data.ReceiverPeerID)
	n.schedule(s, domain.TradeAwaitingResponse, n.cfg.ResponseTimeout, n.expire)
}

// beginConfirmation puts the passcode on display and arms the auto-settle
// window. Caller holds n.mu.
func (n *Negotiator) beginConfirmation(s *session) {
	s.data.State = domain.TradePasscodeConfirmation
	log.Printf("[negotiator] trade %s accepted, passcode %s on display", s.data.ID, s.data.Passcode)
	n.schedule(s, domain.TradePasscodeConfirmation, n.cfg.ConfirmWindow, n.complete)
}

// complete auto-settles a confirmation window that elapsed without
// cancellation: passcode display alone is the confirmation mechanism.
// Caller holds n.mu via schedule.
func (n *Negotiator) complete(s *session) {
	peer := s.data.Counterparty(n.localID)
	n.settle(s, domain.TradeCompleted)
	if _, err := n.ledger.Record(s.data); err != nil {
		log.Printf("[negotiator] record trade %s: %v", s.data.ID, err)
	}
	n.ledger.AdjustTrust(peer, domain.OutcomeCompleted)
}

// expire times out a session whose deadline elapsed without an explicit
// transition. Caller holds n.mu via schedule.
func (n *Negotiator) expire(s *session) {
	peer := s.data.Counterparty(n.localID)
	n.settle(s, domain.TradeExpired)
	n.ledger.AdjustTrust(peer, domain.OutcomeExpired)
	log.Printf("[negotiator] trade %s expired", s.data.ID)
}

// ─── Internals ──────────────────────────────────────────────────────────────

// respondable fetches a session that may legally receive an accept/decline.
// Caller holds n.mu.
func (n *Negotiator) respondable(sessionID string) (*session, error) {
	s, ok := n.sessions[sessionID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrSessionNotFound, sessionID)
	}
	if s.data.State != domain.TradeAwaitingResponse {
		return nil, fmt.Errorf("%w: %s is %s", domain.ErrStaleSession, sessionID, s.data.State)
	}
	return s, nil
}

// settle applies a terminal transition: stops the pending timer, frees the
// pair slot, and updates metrics. Caller holds n.mu.
func (n *Negotiator) settle(s *session, to domain.TradeState) {
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	s.data.State = to

	key := pairKey(s.data.InitiatorPeerID, s.data.ReceiverPeerID)
	if n.pairs[key] == s.data.ID {
		delete(n.pairs, key)
	}

	observability.ActiveSessions.Dec()
	observability.TradesSettled.WithLabelValues(string(to)).Inc()
}

// raiseDeclineNotice shows the decline banner and arms its dismiss timer.
// The timer is guarded by session id so a newer notice is never dismissed
// by an older timer. Caller holds n.mu.
func (n *Negotiator) raiseDeclineNotice(sessionID, peerID string) {
	alias := peerID
	if p, ok := n.dir.Get(peerID); ok {
		alias = p.Alias
	}
	n.notice = &Notice{Kind: NoticeDeclined, SessionID: sessionID, PeerAlias: alias}

	n.clock.AfterFunc(n.cfg.DeclineDismiss, func() {
		n.mu.Lock()
		defer n.mu.Unlock()
		if n.notice != nil && n.notice.SessionID == sessionID {
			n.notice = nil
		}
	})
}

// send delivers a trade message if a transport is attached. Send failures
// are logged, not retried — retry policy belongs to the transport.
func (n *Negotiator) send(peerID string, msg domain.TradeMessage) {
	if n.transport == nil {
		return
	}
	payload, err := msg.Encode()
	if err != nil {
		log.Printf("[negotiator] encode %s message: %v", msg.Kind, err)
		return
	}
	if err := n.transport.Send(peerID, payload); err != nil {
		log.Printf("[negotiator] send %s to %s: %v", msg.Kind, peerID, err)
	}
}
