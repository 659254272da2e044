// Package api provides the local HTTP control surface for the trading node:
// offer management, the peer directory, match candidates, trade verbs, and
// history. It binds to loopback by default; the mesh is the only surface
// other devices talk to.
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/boomtrade/boomtrade/internal/app/directory"
	"github.com/boomtrade/boomtrade/internal/app/ledger"
	"github.com/boomtrade/boomtrade/internal/app/matcher"
	"github.com/boomtrade/boomtrade/internal/app/negotiator"
	"github.com/boomtrade/boomtrade/internal/app/offers"
	"github.com/boomtrade/boomtrade/internal/domain"
)

// Version is the node software version reported by /api/version.
const Version = "0.1.0"

// Server is the HTTP API server.
type Server struct {
	offers         *offers.Store
	dir            *directory.Directory
	match          *matcher.Matcher
	neg            *negotiator.Negotiator
	ledger         *ledger.Ledger
	metricsEnabled bool
}

// NewServer creates an API server over the node's subsystems.
func NewServer(store *offers.Store, dir *directory.Directory, match *matcher.Matcher, neg *negotiator.Negotiator, led *ledger.Ledger) *Server {
	return &Server{offers: store, dir: dir, match: match, neg: neg, ledger: led}
}

// EnableMetrics enables the /metrics Prometheus endpoint.
func (s *Server) EnableMetrics() { s.metricsEnabled = true }

// Handler returns the chi router with all routes mounted.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Get("/api/version", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"version": Version})
	})

	r.Route("/api", func(r chi.Router) {
		r.Get("/offer", s.handleGetOffer)
		r.Put("/offer", s.handleSetOffer)
		r.Delete("/offer", s.handleClearOffer)

		r.Get("/peers", s.handlePeers)
		r.Post("/peers/{id}/tags", s.handleTagPeer)
		r.Get("/candidates", s.handleCandidates)

		r.Get("/trades", s.handleListTrades)
		r.Post("/trades", s.handlePropose)
		r.Get("/trades/{id}", s.handleGetTrade)
		r.Post("/trades/{id}/accept", s.tradeVerb(s.neg.Accept))
		r.Post("/trades/{id}/decline", s.tradeVerb(s.neg.Decline))
		r.Post("/trades/{id}/cancel", s.tradeVerb(s.neg.Cancel))
		r.Get("/notice", s.handleNotice)

		r.Get("/history", s.handleHistory)
		r.Patch("/history/{id}", s.handleUpdateHistory)
	})

	if s.metricsEnabled {
		r.Handle("/metrics", promhttp.Handler())
	}

	return r
}

// ─── Offer ──────────────────────────────────────────────────────────────────

type offerRequest struct {
	HaveQty  int    `json:"have_qty"`
	HaveName string `json:"have_name"`
	NeedQty  int    `json:"need_qty"`
	NeedName string `json:"need_name"`
}

func (s *Server) handleGetOffer(w http.ResponseWriter, r *http.Request) {
	offer, ok := s.offers.CurrentOffer()
	if !ok {
		writeError(w, http.StatusNotFound, "no offer set")
		return
	}
	writeJSON(w, http.StatusOK, offer)
}

func (s *Server) handleSetOffer(w http.ResponseWriter, r *http.Request) {
	var req offerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	offer, err := s.offers.SetOffer(req.HaveQty, req.HaveName, req.NeedQty, req.NeedName)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, offer)
}

func (s *Server) handleClearOffer(w http.ResponseWriter, r *http.Request) {
	if err := s.offers.ClearOffer(); err != nil {
		writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ─── Peers & Candidates ─────────────────────────────────────────────────────

func (s *Server) handlePeers(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.dir.Snapshot())
}

type tagRequest struct {
	Tag string `json:"tag"`
}

func (s *Server) handleTagPeer(w http.ResponseWriter, r *http.Request) {
	var req tagRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Tag == "" {
		writeError(w, http.StatusBadRequest, "tag is required")
		return
	}
	if !s.dir.Tag(chi.URLParam(r, "id"), req.Tag) {
		writeError(w, http.StatusNotFound, "unknown peer")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleCandidates(w http.ResponseWriter, r *http.Request) {
	local, ok := s.offers.CurrentOffer()
	if !ok {
		writeJSON(w, http.StatusOK, []matcher.Candidate{})
		return
	}
	candidates := s.match.Candidates(local)
	if candidates == nil {
		candidates = []matcher.Candidate{}
	}
	writeJSON(w, http.StatusOK, candidates)
}

// ─── Trades ─────────────────────────────────────────────────────────────────

type proposeRequest struct {
	PeerID string `json:"peer_id"`
}

func (s *Server) handlePropose(w http.ResponseWriter, r *http.Request) {
	var req proposeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.PeerID == "" {
		writeError(w, http.StatusBadRequest, "peer_id is required")
		return
	}

	local, _ := s.offers.CurrentOffer()
	theirs, _ := s.dir.Offer(req.PeerID)

	session, err := s.neg.Propose(local, req.PeerID, theirs)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, session)
}

func (s *Server) handleListTrades(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.neg.Sessions())
}

func (s *Server) handleGetTrade(w http.ResponseWriter, r *http.Request) {
	session, ok := s.neg.Session(chi.URLParam(r, "id"))
	if !ok {
		writeError(w, http.StatusNotFound, "unknown trade session")
		return
	}
	writeJSON(w, http.StatusOK, session)
}

// tradeVerb adapts a negotiator session operation into a handler.
func (s *Server) tradeVerb(op func(sessionID string) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		if err := op(id); err != nil {
			writeDomainError(w, err)
			return
		}
		session, _ := s.neg.Session(id)
		writeJSON(w, http.StatusOK, session)
	}
}

func (s *Server) handleNotice(w http.ResponseWriter, r *http.Request) {
	notice, ok := s.neg.Notice()
	if !ok {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	writeJSON(w, http.StatusOK, notice)
}

// ─── History ────────────────────────────────────────────────────────────────

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	entries, err := s.ledger.Entries()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if entries == nil {
		entries = []domain.HistoryEntry{}
	}
	writeJSON(w, http.StatusOK, entries)
}

type historyPatch struct {
	Tags  []string `json:"tags"`
	Notes string   `json:"notes"`
}

func (s *Server) handleUpdateHistory(w http.ResponseWriter, r *http.Request) {
	var req historyPatch
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if err := s.ledger.UpdateEntry(chi.URLParam(r, "id"), req.Tags, req.Notes); err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ─── Helpers ────────────────────────────────────────────────────────────────

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]interface{}{
		"error": map[string]interface{}{
			"message": msg,
			"type":    "error",
		},
	})
}

// writeDomainError maps domain sentinel errors to HTTP status codes.
func writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrInvalidOffer), errors.Is(err, domain.ErrNoOffer):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrSessionNotFound), errors.Is(err, domain.ErrPeerUnavailable):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, domain.ErrDuplicateSession), errors.Is(err, domain.ErrStaleSession):
		writeError(w, http.StatusConflict, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}
