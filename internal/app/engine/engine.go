// Package engine runs the single event loop that drives the trading node.
//
// The mesh transport delivers discovery and data callbacks from its own
// goroutines. Instead of letting those callbacks mutate shared state
// directly, the engine funnels everything into one tagged event queue and
// consumes it from a single goroutine, so directory updates and trade
// message handling are naturally serialized.
package engine

import (
	"context"
	"log"
	"sync"

	"github.com/boomtrade/boomtrade/internal/app/directory"
	"github.com/boomtrade/boomtrade/internal/app/negotiator"
	"github.com/boomtrade/boomtrade/internal/domain"
	"github.com/boomtrade/boomtrade/internal/infra/observability"
)

// Config controls engine behavior.
type Config struct {
	QueueSize int // Event queue capacity (default: 256)
}

// DefaultConfig returns safe engine defaults.
func DefaultConfig() Config {
	return Config{QueueSize: 256}
}

// Engine owns the event queue and dispatch loop.
type Engine struct {
	cfg       Config
	transport domain.Transport
	dir       *directory.Directory
	neg       *negotiator.Negotiator

	events chan domain.Event

	mu      sync.Mutex
	started bool
	quit    chan struct{}
	done    chan struct{}
}

// New creates an engine wired to the given collaborators.
func New(cfg Config, transport domain.Transport, dir *directory.Directory, neg *negotiator.Negotiator) *Engine {
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = DefaultConfig().QueueSize
	}
	return &Engine{
		cfg:       cfg,
		transport: transport,
		dir:       dir,
		neg:       neg,
		events:    make(chan domain.Event, cfg.QueueSize),
	}
}

// Start registers the transport callbacks, begins discovery, and launches
// the dispatch loop. It returns once the loop is running; the loop exits
// when ctx is cancelled.
func (e *Engine) Start(ctx context.Context) error {
	e.mu.Lock()
	if e.started {
		e.mu.Unlock()
		return nil
	}
	e.started = true
	e.quit = make(chan struct{})
	e.done = make(chan struct{})
	e.mu.Unlock()

	e.transport.OnPeerFound(func(peerID, alias string, offer *domain.Offer) {
		e.enqueue(domain.Event{Kind: domain.EventPeerFound, PeerID: peerID, Alias: alias, Offer: offer})
	})
	e.transport.OnPeerLost(func(peerID string) {
		e.enqueue(domain.Event{Kind: domain.EventPeerLost, PeerID: peerID})
	})
	e.transport.OnReceive(func(peerID string, payload []byte) {
		e.enqueue(domain.Event{Kind: domain.EventDataReceived, PeerID: peerID, Payload: payload})
	})

	if err := e.transport.StartDiscovery(); err != nil {
		return err
	}

	go e.loop(ctx)
	return nil
}

// Stop halts discovery and waits for the loop to exit. It does not rely on
// the Start context being cancelled: the loop also watches the engine's own
// quit channel, so Stop always returns.
func (e *Engine) Stop() {
	e.mu.Lock()
	done := e.done
	if e.started {
		e.started = false
		close(e.quit)
	}
	e.mu.Unlock()

	e.transport.StopDiscovery()
	if done != nil {
		<-done
	}
}

// Enqueue injects an event directly, bypassing the transport. Used by
// tests and by local subsystems that want the same serialization.
func (e *Engine) Enqueue(ev domain.Event) {
	e.enqueue(ev)
}

// enqueue never blocks a transport goroutine: if the queue is full the
// event is dropped with a log line. Discovery is periodic, so a dropped
// announcement is repaired by the next one.
func (e *Engine) enqueue(ev domain.Event) {
	select {
	case e.events <- ev:
	default:
		log.Printf("[engine] queue full, dropping %s event from %s", ev.Kind, ev.PeerID)
	}
}

func (e *Engine) loop(ctx context.Context) {
	defer close(e.done)
	for {
		select {
		case <-ctx.Done():
			return
		case <-e.quit:
			return
		case ev := <-e.events:
			e.dispatch(ev)
		}
	}
}

func (e *Engine) dispatch(ev domain.Event) {
	observability.DiscoveryEvents.WithLabelValues(ev.Kind.String()).Inc()

	switch ev.Kind {
	case domain.EventPeerFound:
		e.dir.Upsert(ev.PeerID, ev.Alias, ev.Offer)
		observability.PeersKnown.Set(float64(e.dir.Count()))

	case domain.EventPeerLost:
		e.dir.Remove(ev.PeerID)
		observability.PeersKnown.Set(float64(e.dir.Count()))

	case domain.EventDataReceived:
		if err := e.neg.HandleMessage(ev.PeerID, ev.Payload); err != nil {
			log.Printf("[engine] trade message from %s rejected: %v", ev.PeerID, err)
		}

	default:
		log.Printf("[engine] unknown event kind %d", ev.Kind)
	}
}
