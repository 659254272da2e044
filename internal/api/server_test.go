package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/boomtrade/boomtrade/internal/app/directory"
	"github.com/boomtrade/boomtrade/internal/app/ledger"
	"github.com/boomtrade/boomtrade/internal/app/matcher"
	"github.com/boomtrade/boomtrade/internal/app/negotiator"
	"github.com/boomtrade/boomtrade/internal/app/offers"
	"github.com/boomtrade/boomtrade/internal/domain"
	"github.com/boomtrade/boomtrade/internal/infra/clock"
)

// ─── Test Doubles ───────────────────────────────────────────────────────────

type memKV struct {
	mu   sync.Mutex
	data map[string][]byte
}

func newMemKV() *memKV { return &memKV{data: make(map[string][]byte)} }

func (m *memKV) Get(key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.data[key], nil
}
func (m *memKV) Set(key string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = value
	return nil
}
func (m *memKV) Delete(key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, key)
	return nil
}

type memEntries struct {
	mu      sync.Mutex
	entries []domain.HistoryEntry
}

func (m *memEntries) AppendEntry(e domain.HistoryEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = append(m.entries, e)
	return nil
}
func (m *memEntries) ListEntries() ([]domain.HistoryEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]domain.HistoryEntry, len(m.entries))
	copy(out, m.entries)
	return out, nil
}
func (m *memEntries) UpdateEntryMeta(id string, tags []string, notes string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.entries {
		if m.entries[i].ID == id {
			m.entries[i].Tags = tags
			m.entries[i].Notes = notes
			return nil
		}
	}
	return domain.ErrSessionNotFound
}

type fixture struct {
	srv *httptest.Server
	clk *clock.Fake
	dir *directory.Directory
	neg *negotiator.Negotiator
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	clk := clock.NewFake(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	dir := directory.New()
	dir.SetNowFunc(clk.Now)
	store, err := offers.NewStore("me", newMemKV())
	if err != nil {
		t.Fatal(err)
	}
	led := ledger.New("me", dir, &memEntries{}, nil)
	led.SetNowFunc(clk.Now)
	neg := negotiator.New("me", negotiator.DefaultConfig(), clk, store, dir, led, nil)

	s := NewServer(store, dir, matcher.New(dir), neg, led)
	srv := httptest.NewServer(s.Handler())
	t.Cleanup(srv.Close)
	return &fixture{srv: srv, clk: clk, dir: dir, neg: neg}
}

func (f *fixture) do(t *testing.T, method, path string, body interface{}) *http.Response {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatal(err)
		}
	}
	req, err := http.NewRequest(method, f.srv.URL+path, &buf)
	if err != nil {
		t.Fatal(err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decode(t *testing.T, resp *http.Response, v interface{}) {
	t.Helper()
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		t.Fatalf("decode response: %v", err)
	}
}

// ─── Health & Version ───────────────────────────────────────────────────────

func TestHealth(t *testing.T) {
	f := newFixture(t)
	resp := f.do(t, "GET", "/health", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
}

// ─── Offer ──────────────────────────────────────────────────────────────────

func TestOffer_Lifecycle(t *testing.T) {
	f := newFixture(t)

	// No offer yet
	if resp := f.do(t, "GET", "/api/offer", nil); resp.StatusCode != http.StatusNotFound {
		t.Fatalf("empty GET status = %d, want 404", resp.StatusCode)
	}

	// Set
	resp := f.do(t, "PUT", "/api/offer", offerRequest{HaveQty: 5, HaveName: "Water", NeedQty: 3, NeedName: "Food"})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("PUT status = %d", resp.StatusCode)
	}
	var offer domain.Offer
	decode(t, resp, &offer)
	if offer.HaveName != "Water" || offer.ID == "" {
		t.Errorf("offer = %+v", offer)
	}

	// Read back
	resp = f.do(t, "GET", "/api/offer", nil)
	var got domain.Offer
	decode(t, resp, &got)
	if got.ID != offer.ID {
		t.Error("GET returned a different offer")
	}

	// Clear
	if resp := f.do(t, "DELETE", "/api/offer", nil); resp.StatusCode != http.StatusNoContent {
		t.Fatalf("DELETE status = %d", resp.StatusCode)
	}
	if resp := f.do(t, "GET", "/api/offer", nil); resp.StatusCode != http.StatusNotFound {
		t.Error("offer still present after clear")
	}
}

func TestOffer_Invalid(t *testing.T) {
	f := newFixture(t)
	resp := f.do(t, "PUT", "/api/offer", offerRequest{HaveQty: 0, HaveName: "Water", NeedQty: 3, NeedName: "Food"})
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", resp.StatusCode)
	}
}

// ─── Peers & Candidates ─────────────────────────────────────────────────────

func TestPeersAndCandidates(t *testing.T) {
	f := newFixture(t)
	theirs, _ := domain.NewOffer("p1", 3, "Food", 5, "Water")
	f.dir.Upsert("p1", "Scavenger", &theirs)

	resp := f.do(t, "GET", "/api/peers", nil)
	var peers []domain.Peer
	decode(t, resp, &peers)
	if len(peers) != 1 || peers[0].Alias != "Scavenger" {
		t.Fatalf("peers = %+v", peers)
	}

	// No local offer: candidates is empty, not an error
	resp = f.do(t, "GET", "/api/candidates", nil)
	var none []matcher.Candidate
	decode(t, resp, &none)
	if len(none) != 0 {
		t.Errorf("candidates without offer = %+v", none)
	}

	f.do(t, "PUT", "/api/offer", offerRequest{HaveQty: 5, HaveName: "Water", NeedQty: 3, NeedName: "Food"})
	resp = f.do(t, "GET", "/api/candidates", nil)
	var cands []matcher.Candidate
	decode(t, resp, &cands)
	if len(cands) != 1 || cands[0].Peer.ID != "p1" || !cands[0].Exact {
		t.Errorf("candidates = %+v", cands)
	}
}

func TestTagPeer(t *testing.T) {
	f := newFixture(t)
	f.dir.Upsert("p1", "Scavenger", nil)

	if resp := f.do(t, "POST", "/api/peers/p1/tags", tagRequest{Tag: "reliable"}); resp.StatusCode != http.StatusNoContent {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	p, _ := f.dir.Get("p1")
	if !p.HasTag("reliable") {
		t.Error("tag not applied")
	}

	if resp := f.do(t, "POST", "/api/peers/ghost/tags", tagRequest{Tag: "x"}); resp.StatusCode != http.StatusNotFound {
		t.Errorf("unknown peer status = %d, want 404", resp.StatusCode)
	}
}

// ─── Trades ─────────────────────────────────────────────────────────────────

func TestTrade_ProposeAcceptFlow(t *testing.T) {
	f := newFixture(t)
	theirs, _ := domain.NewOffer("p1", 3, "Food", 5, "Water")
	f.dir.Upsert("p1", "Scavenger", &theirs)
	f.do(t, "PUT", "/api/offer", offerRequest{HaveQty: 5, HaveName: "Water", NeedQty: 3, NeedName: "Food"})

	resp := f.do(t, "POST", "/api/trades", proposeRequest{PeerID: "p1"})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("propose status = %d", resp.StatusCode)
	}
	var session domain.TradeSession
	decode(t, resp, &session)
	if session.State != domain.TradeProposed {
		t.Fatalf("state = %s", session.State)
	}

	// Accept before delivery is a conflict
	if resp := f.do(t, "POST", "/api/trades/"+session.ID+"/accept", nil); resp.StatusCode != http.StatusConflict {
		t.Errorf("early accept status = %d, want 409", resp.StatusCode)
	}

	f.clk.Advance(time.Second)
	resp = f.do(t, "POST", "/api/trades/"+session.ID+"/accept", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("accept status = %d", resp.StatusCode)
	}
	decode(t, resp, &session)
	if session.State != domain.TradePasscodeConfirmation {
		t.Errorf("state = %s", session.State)
	}
	if len(session.Passcode) != 4 {
		t.Errorf("passcode = %q", session.Passcode)
	}
}

func TestTrade_ProposeToUnknownPeer(t *testing.T) {
	f := newFixture(t)
	f.do(t, "PUT", "/api/offer", offerRequest{HaveQty: 5, HaveName: "Water", NeedQty: 3, NeedName: "Food"})

	if resp := f.do(t, "POST", "/api/trades", proposeRequest{PeerID: "ghost"}); resp.StatusCode != http.StatusNotFound {
		t.Errorf("status = %d, want 404", resp.StatusCode)
	}
}

func TestTrade_DuplicatePair(t *testing.T) {
	f := newFixture(t)
	f.dir.Upsert("p1", "Scavenger", nil)
	f.do(t, "PUT", "/api/offer", offerRequest{HaveQty: 5, HaveName: "Water", NeedQty: 3, NeedName: "Food"})

	f.do(t, "POST", "/api/trades", proposeRequest{PeerID: "p1"})
	if resp := f.do(t, "POST", "/api/trades", proposeRequest{PeerID: "p1"}); resp.StatusCode != http.StatusConflict {
		t.Errorf("status = %d, want 409", resp.StatusCode)
	}
}

func TestTrade_GetUnknown(t *testing.T) {
	f := newFixture(t)
	if resp := f.do(t, "GET", "/api/trades/ghost", nil); resp.StatusCode != http.StatusNotFound {
		t.Errorf("status = %d, want 404", resp.StatusCode)
	}
}

func TestNotice_EmptyThenRaised(t *testing.T) {
	f := newFixture(t)
	if resp := f.do(t, "GET", "/api/notice", nil); resp.StatusCode != http.StatusNoContent {
		t.Fatalf("empty notice status = %d, want 204", resp.StatusCode)
	}

	f.dir.Upsert("p1", "Scavenger", nil)
	f.do(t, "PUT", "/api/offer", offerRequest{HaveQty: 5, HaveName: "Water", NeedQty: 3, NeedName: "Food"})
	resp := f.do(t, "POST", "/api/trades", proposeRequest{PeerID: "p1"})
	var session domain.TradeSession
	decode(t, resp, &session)
	f.clk.Advance(time.Second)
	f.do(t, "POST", "/api/trades/"+session.ID+"/decline", nil)

	resp = f.do(t, "GET", "/api/notice", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("notice status = %d", resp.StatusCode)
	}
	var notice negotiator.Notice
	decode(t, resp, &notice)
	if notice.SessionID != session.ID {
		t.Errorf("notice = %+v", notice)
	}
}

// ─── History ────────────────────────────────────────────────────────────────

func TestHistory_ListAndPatch(t *testing.T) {
	f := newFixture(t)
	theirs, _ := domain.NewOffer("p1", 3, "Food", 5, "Water")
	f.dir.Upsert("p1", "Scavenger", &theirs)
	f.do(t, "PUT", "/api/offer", offerRequest{HaveQty: 5, HaveName: "Water", NeedQty: 3, NeedName: "Food"})

	resp := f.do(t, "POST", "/api/trades", proposeRequest{PeerID: "p1"})
	var session domain.TradeSession
	decode(t, resp, &session)
	f.clk.Advance(time.Second)
	f.do(t, "POST", "/api/trades/"+session.ID+"/accept", nil)
	f.clk.Advance(5 * time.Second) // auto-settle

	resp = f.do(t, "GET", "/api/history", nil)
	var entries []domain.HistoryEntry
	decode(t, resp, &entries)
	if len(entries) != 1 {
		t.Fatalf("entries = %d, want 1", len(entries))
	}

	patch := historyPatch{Tags: []string{"fair"}, Notes: "smooth trade"}
	if resp := f.do(t, "PATCH", "/api/history/"+entries[0].ID, patch); resp.StatusCode != http.StatusNoContent {
		t.Fatalf("patch status = %d", resp.StatusCode)
	}

	resp = f.do(t, "GET", "/api/history", nil)
	decode(t, resp, &entries)
	if entries[0].Notes != "smooth trade" {
		t.Errorf("notes = %q", entries[0].Notes)
	}
}

func TestHistory_Empty(t *testing.T) {
	f := newFixture(t)
	resp := f.do(t, "GET", "/api/history", nil)
	var entries []domain.HistoryEntry
	decode(t, resp, &entries)
	if entries == nil || len(entries) != 0 {
		t.Errorf("entries = %v, want empty array", entries)
	}
}
