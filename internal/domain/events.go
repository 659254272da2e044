package domain

// ─── Discovery Events ───────────────────────────────────────────────────────
// Transport callbacks are converted into one tagged event type pushed onto a
// single ordered queue consumed by the engine loop. This keeps discovery
// ordering testable instead of scattering state across callbacks.

// EventKind tags a discovery event.
type EventKind int

const (
	EventPeerFound EventKind = iota
	EventPeerLost
	EventDataReceived
)

// String returns a human-readable event kind label.
func (k EventKind) String() string {
	switch k {
	case EventPeerFound:
		return "peer-found"
	case EventPeerLost:
		return "peer-lost"
	case EventDataReceived:
		return "data-received"
	default:
		return "unknown"
	}
}

// Event is a single discovery-layer occurrence.
type Event struct {
	Kind    EventKind
	PeerID  string
	Alias   string // PeerFound only
	Offer   *Offer // PeerFound only, may be nil
	Payload []byte // DataReceived only
}
