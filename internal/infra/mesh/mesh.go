// Package mesh implements local-network peer discovery and messaging over
// UDP. Each node periodically broadcasts an announce packet carrying its
// alias and current offer; peers that stay silent past the TTL are reaped
// and reported lost. Trade payloads ride the same socket as data packets.
package mesh

import (
	"encoding/json"
	"fmt"
	"log"
	"net"
	"sync"
	"time"

	"github.com/boomtrade/boomtrade/internal/domain"
)

// Service is the discovery namespace. Packets from other services on the
// same port are ignored.
const Service = "boom-trade"

// Config controls mesh discovery parameters.
type Config struct {
	BindAddr         string        // UDP listen address (e.g. ":7654")
	AnnounceAddr     string        // Broadcast target (e.g. "255.255.255.255:7654")
	AnnounceInterval time.Duration // Announce cadence (default: 1s)
	PeerTTL          time.Duration // Silence before a peer is reaped (default: 5s)
}

// DefaultConfig returns conservative mesh defaults.
func DefaultConfig() Config {
	return Config{
		BindAddr:         ":7654",
		AnnounceAddr:     "255.255.255.255:7654",
		AnnounceInterval: 1 * time.Second,
		PeerTTL:          5 * time.Second,
	}
}

// kind identifies mesh protocol messages.
type kind uint8

const (
	msgAnnounce kind = 1
	msgLeave    kind = 2
	msgData     kind = 3
)

// message is a mesh packet sent over UDP.
type message struct {
	Service string        `json:"service"`
	Kind    kind          `json:"kind"`
	From    string        `json:"from"`
	Alias   string        `json:"alias,omitempty"`
	Offer   *domain.Offer `json:"offer,omitempty"`
	Payload []byte        `json:"payload,omitempty"`
}

// peer tracks a discovered node.
type peer struct {
	addr     *net.UDPAddr
	alias    string
	lastSeen time.Time
}

// Mesh implements domain.Transport over UDP broadcast.
type Mesh struct {
	mu      sync.Mutex
	config  Config
	selfID  string
	alias   string
	offerFn func() *domain.Offer // Current offer for announcements; may be nil
	conn    *net.UDPConn
	peers   map[string]*peer
	done    chan struct{}
	running bool

	// Injectable clock for reap tests.
	now func() time.Time

	// Callbacks
	onFound   func(peerID, alias string, offer *domain.Offer)
	onLost    func(peerID string)
	onReceive func(peerID string, payload []byte)
}

// New creates a mesh transport. offerFn supplies the offer to advertise in
// each announce packet; nil means announce without an offer.
func New(selfID, alias string, cfg Config, offerFn func() *domain.Offer) *Mesh {
	return &Mesh{
		config:  cfg,
		selfID:  selfID,
		alias:   alias,
		offerFn: offerFn,
		peers:   make(map[string]*peer),
		now:     time.Now,
	}
}

// OnPeerFound sets the callback for peer announcements (first sighting and
// every refresh).
func (m *Mesh) OnPeerFound(fn func(peerID, alias string, offer *domain.Offer)) { m.onFound = fn }

// OnPeerLost sets the callback for departed or silent peers.
func (m *Mesh) OnPeerLost(fn func(peerID string)) { m.onLost = fn }

// OnReceive sets the callback for data payloads.
func (m *Mesh) OnReceive(fn func(peerID string, payload []byte)) { m.onReceive = fn }

// StartDiscovery binds the UDP socket and begins announcing.
func (m *Mesh) StartDiscovery() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.running {
		return nil
	}

	addr, err := net.ResolveUDPAddr("udp4", m.config.BindAddr)
	if err != nil {
		return fmt.Errorf("resolve bind addr: %w", err)
	}
	conn, err := net.ListenUDP("udp4", addr)
	if err != nil {
		return fmt.Errorf("listen udp: %w", err)
	}
	m.conn = conn
	m.done = make(chan struct{})
	m.running = true

	go m.receiveLoop()
	go m.announceLoop()

	log.Printf("[mesh] discovery started on %s as %s", conn.LocalAddr(), m.selfID)
	return nil
}

// StopDiscovery broadcasts a leave packet and closes the socket.
func (m *Mesh) StopDiscovery() {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return
	}
	m.running = false
	done := m.done
	conn := m.conn
	m.mu.Unlock()

	m.broadcast(message{Service: Service, Kind: msgLeave, From: m.selfID})
	close(done)
	conn.Close()
	log.Printf("[mesh] discovery stopped")
}

// Send delivers a trade payload to a known peer's address.
func (m *Mesh) Send(peerID string, payload []byte) error {
	m.mu.Lock()
	p, ok := m.peers[peerID]
	conn := m.conn
	m.mu.Unlock()

	if !ok {
		return fmt.Errorf("send to %s: %w", peerID, domain.ErrPeerUnavailable)
	}
	if conn == nil {
		return fmt.Errorf("send to %s: transport not started", peerID)
	}

	data, err := json.Marshal(message{
		Service: Service,
		Kind:    msgData,
		From:    m.selfID,
		Payload: payload,
	})
	if err != nil {
		return fmt.Errorf("encode data packet: %w", err)
	}
	if _, err := conn.WriteToUDP(data, p.addr); err != nil {
		return fmt.Errorf("send to %s: %w", peerID, err)
	}
	return nil
}

// Peers returns the IDs of currently visible peers.
func (m *Mesh) Peers() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	ids := make([]string, 0, len(m.peers))
	for id := range m.peers {
		ids = append(ids, id)
	}
	return ids
}

// ─── Loops ──────────────────────────────────────────────────────────────────

// announceLoop broadcasts presence and reaps silent peers each tick.
func (m *Mesh) announceLoop() {
	ticker := time.NewTicker(m.config.AnnounceInterval)
	defer ticker.Stop()

	m.announce()
	for {
		select {
		case <-m.done:
			return
		case <-ticker.C:
			m.announce()
			m.reap()
		}
	}
}

func (m *Mesh) announce() {
	var offer *domain.Offer
	if m.offerFn != nil {
		offer = m.offerFn()
	}
	m.broadcast(message{
		Service: Service,
		Kind:    msgAnnounce,
		From:    m.selfID,
		Alias:   m.alias,
		Offer:   offer,
	})
}

func (m *Mesh) broadcast(msg message) {
	m.mu.Lock()
	conn := m.conn
	m.mu.Unlock()
	if conn == nil {
		return
	}

	addr, err := net.ResolveUDPAddr("udp4", m.config.AnnounceAddr)
	if err != nil {
		log.Printf("[mesh] resolve announce addr: %v", err)
		return
	}
	data, err := json.Marshal(msg)
	if err != nil {
		log.Printf("[mesh] encode announce: %v", err)
		return
	}
	if _, err := conn.WriteToUDP(data, addr); err != nil {
		log.Printf("[mesh] broadcast: %v", err)
	}
}

// reap drops peers that have been silent past the TTL and reports them lost.
func (m *Mesh) reap() {
	cutoff := m.now().Add(-m.config.PeerTTL)

	m.mu.Lock()
	var lost []string
	for id, p := range m.peers {
		if p.lastSeen.Before(cutoff) {
			delete(m.peers, id)
			lost = append(lost, id)
		}
	}
	onLost := m.onLost
	m.mu.Unlock()

	for _, id := range lost {
		log.Printf("[mesh] peer %s silent past TTL, reaping", id)
		if onLost != nil {
			onLost(id)
		}
	}
}

// receiveLoop reads UDP packets and dispatches them.
func (m *Mesh) receiveLoop() {
	buf := make([]byte, 65536)
	for {
		select {
		case <-m.done:
			return
		default:
		}

		// An unsettable deadline would turn the next read into a blocking
		// one with no shutdown poll; stop the loop instead.
		if err := m.conn.SetReadDeadline(time.Now().Add(1 * time.Second)); err != nil {
			select {
			case <-m.done:
			default:
				log.Printf("[mesh] set read deadline: %v", err)
			}
			return
		}
		n, remoteAddr, err := m.conn.ReadFromUDP(buf)
		if err != nil {
			if netErr, ok := err.(net.Error); ok && netErr.Timeout() {
				continue
			}
			select {
			case <-m.done:
				return
			default:
			}
			continue
		}

		var msg message
		if err := json.Unmarshal(buf[:n], &msg); err != nil {
			continue
		}
		m.handle(msg, remoteAddr)
	}
}

// handle processes one inbound packet. Packets from other services and our
// own broadcasts are ignored.
func (m *Mesh) handle(msg message, from *net.UDPAddr) {
	if msg.Service != Service || msg.From == "" || msg.From == m.selfID {
		return
	}

	switch msg.Kind {
	case msgAnnounce:
		m.mu.Lock()
		p, known := m.peers[msg.From]
		if !known {
			p = &peer{}
			m.peers[msg.From] = p
		}
		p.addr = from
		p.alias = msg.Alias
		p.lastSeen = m.now()
		onFound := m.onFound
		m.mu.Unlock()

		if !known {
			log.Printf("[mesh] discovered peer %s (%s) at %s", msg.From, msg.Alias, from)
		}
		if onFound != nil {
			onFound(msg.From, msg.Alias, msg.Offer)
		}

	case msgLeave:
		m.mu.Lock()
		_, known := m.peers[msg.From]
		delete(m.peers, msg.From)
		onLost := m.onLost
		m.mu.Unlock()

		if known {
			log.Printf("[mesh] peer %s left", msg.From)
			if onLost != nil {
				onLost(msg.From)
			}
		}

	case msgData:
		m.mu.Lock()
		if p, known := m.peers[msg.From]; known {
			p.lastSeen = m.now()
			p.addr = from
		}
		onReceive := m.onReceive
		m.mu.Unlock()

		if onReceive != nil {
			onReceive(msg.From, msg.Payload)
		}
	}
}
