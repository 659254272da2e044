package daemon

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/boomtrade/boomtrade/internal/api"
	"github.com/boomtrade/boomtrade/internal/app/directory"
	"github.com/boomtrade/boomtrade/internal/app/engine"
	"github.com/boomtrade/boomtrade/internal/app/ledger"
	"github.com/boomtrade/boomtrade/internal/app/matcher"
	"github.com/boomtrade/boomtrade/internal/app/negotiator"
	"github.com/boomtrade/boomtrade/internal/app/offers"
	"github.com/boomtrade/boomtrade/internal/domain"
	"github.com/boomtrade/boomtrade/internal/infra/clock"
	"github.com/boomtrade/boomtrade/internal/infra/mesh"
	"github.com/boomtrade/boomtrade/internal/infra/sqlite"
)

// keyNodeID is the kv key holding the generated device ID.
const keyNodeID = "node/id"

// Daemon is the assembled trading node.
type Daemon struct {
	cfg    Config
	db     *sqlite.DB
	eng    *engine.Engine
	net    *mesh.Mesh
	server *http.Server
}

// New builds a daemon from configuration. Nothing is started yet.
func New(cfg Config) (*Daemon, error) {
	if dir := filepath.Dir(cfg.Storage.Path); dir != "." {
		if err := os.MkdirAll(dir, 0700); err != nil {
			return nil, fmt.Errorf("create storage dir: %w", err)
		}
	}
	db, err := sqlite.Open(cfg.Storage.Path)
	if err != nil {
		return nil, err
	}

	nodeID, err := resolveNodeID(cfg.Node.ID, db)
	if err != nil {
		db.Close()
		return nil, err
	}

	store, err := offers.NewStore(nodeID, db)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("restore offer: %w", err)
	}

	dir := directory.New()
	match := matcher.New(dir)
	led := ledger.New(nodeID, dir, db, db)

	net := mesh.New(nodeID, cfg.Node.Alias, meshConfig(cfg.Mesh), func() *domain.Offer {
		if offer, ok := store.CurrentOffer(); ok {
			return &offer
		}
		return nil
	})

	neg := negotiator.New(nodeID, tradeConfig(cfg.Trade), clock.New(), store, dir, led, net)
	eng := engine.New(engine.DefaultConfig(), net, dir, neg)

	srv := api.NewServer(store, dir, match, neg, led)
	if cfg.API.Metrics {
		srv.EnableMetrics()
	}

	return &Daemon{
		cfg: cfg,
		db:  db,
		eng: eng,
		net: net,
		server: &http.Server{
			Addr:    fmt.Sprintf("%s:%d", cfg.API.Host, cfg.API.Port),
			Handler: srv.Handler(),
		},
	}, nil
}

// Run starts the node and blocks until ctx is cancelled, then shuts down
// gracefully.
func (d *Daemon) Run(ctx context.Context) error {
	if err := d.eng.Start(ctx); err != nil {
		return fmt.Errorf("start engine: %w", err)
	}

	errCh := make(chan error, 1)
	go func() {
		log.Printf("[daemon] API listening on %s", d.server.Addr)
		if err := d.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		d.shutdown()
		return fmt.Errorf("api server: %w", err)
	}

	d.shutdown()
	return nil
}

func (d *Daemon) shutdown() {
	log.Printf("[daemon] shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := d.server.Shutdown(shutdownCtx); err != nil {
		log.Printf("[daemon] api shutdown: %v", err)
	}

	d.eng.Stop()
	if err := d.db.Close(); err != nil {
		log.Printf("[daemon] close db: %v", err)
	}
}

// resolveNodeID returns the configured ID, or the persisted generated one,
// generating and persisting a fresh ID on first run.
func resolveNodeID(configured string, kv domain.KVStore) (string, error) {
	if configured != "" {
		return configured, nil
	}
	stored, err := kv.Get(keyNodeID)
	if err != nil {
		return "", fmt.Errorf("load node id: %w", err)
	}
	if len(stored) > 0 {
		return string(stored), nil
	}
	id := uuid.NewString()
	if err := kv.Set(keyNodeID, []byte(id)); err != nil {
		return "", fmt.Errorf("persist node id: %w", err)
	}
	log.Printf("[daemon] generated node id %s", id)
	return id, nil
}

func meshConfig(cfg MeshConfig) mesh.Config {
	def := mesh.DefaultConfig()
	out := def
	if cfg.BindAddr != "" {
		out.BindAddr = cfg.BindAddr
	}
	if cfg.AnnounceAddr != "" {
		out.AnnounceAddr = cfg.AnnounceAddr
	}
	out.AnnounceInterval = parseDuration(cfg.AnnounceInterval, def.AnnounceInterval)
	out.PeerTTL = parseDuration(cfg.PeerTTL, def.PeerTTL)
	return out
}

func tradeConfig(cfg TradeConfig) negotiator.Config {
	def := negotiator.DefaultConfig()
	out := def
	out.DeliveryDelay = parseDuration(cfg.DeliveryDelay, def.DeliveryDelay)
	out.ResponseTimeout = parseDuration(cfg.ResponseTimeout, def.ResponseTimeout)
	out.ConfirmWindow = parseDuration(cfg.ConfirmWindow, def.ConfirmWindow)
	out.DeclineDismiss = parseDuration(cfg.DeclineDismiss, def.DeclineDismiss)
	return out
}
