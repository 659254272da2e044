package matcher

import (
	"testing"
	"time"

	"github.com/boomtrade/boomtrade/internal/app/directory"
	"github.com/boomtrade/boomtrade/internal/domain"
)

func addPeer(t *testing.T, d *directory.Directory, id string, trust float64, haveQty int, haveName string, needQty int, needName string) {
	t.Helper()
	offer, err := domain.NewOffer(id, haveQty, haveName, needQty, needName)
	if err != nil {
		t.Fatalf("offer for %s: %v", id, err)
	}
	d.Upsert(id, id, &offer)
	d.AdjustTrust(id, trust-domain.TrustNeutral)
}

func localOffer(t *testing.T) domain.Offer {
	t.Helper()
	offer, err := domain.NewOffer("me", 5, "Water", 3, "Food")
	if err != nil {
		t.Fatal(err)
	}
	return offer
}

func TestCandidates_ExactBeforePartial(t *testing.T) {
	d := directory.New()
	m := New(d)

	// Peer A: exact quantity mirror, trust 8.0.
	addPeer(t, d, "peer-a", 8.0, 3, "Food", 5, "Water")
	// Peer B: partial match, higher trust 9.0.
	addPeer(t, d, "peer-b", 9.0, 2, "Food", 5, "Water")

	got := m.Candidates(localOffer(t))
	if len(got) != 2 {
		t.Fatalf("len = %d, want 2", len(got))
	}
	if got[0].Peer.ID != "peer-a" || got[1].Peer.ID != "peer-b" {
		t.Errorf("order = [%s %s], want exact match first despite lower trust",
			got[0].Peer.ID, got[1].Peer.ID)
	}
	if !got[0].Exact || got[1].Exact {
		t.Error("exact flags wrong")
	}
}

func TestCandidates_FiltersByNeedName(t *testing.T) {
	d := directory.New()
	m := New(d)

	addPeer(t, d, "peer-food", 5.0, 3, "food", 5, "Water") // case-insensitive hit
	addPeer(t, d, "peer-ammo", 9.9, 10, "Ammo", 2, "Medicine")

	got := m.Candidates(localOffer(t))
	if len(got) != 1 || got[0].Peer.ID != "peer-food" {
		t.Fatalf("candidates = %+v, want only peer-food", got)
	}
	for _, c := range got {
		if !localOffer(t).Matches(c.Offer) {
			t.Errorf("candidate %s does not satisfy the need-name filter", c.Peer.ID)
		}
	}
}

func TestCandidates_TrustOrderWithinTier(t *testing.T) {
	d := directory.New()
	m := New(d)

	addPeer(t, d, "peer-low", 2.0, 1, "Food", 1, "Water")
	addPeer(t, d, "peer-high", 9.0, 1, "Food", 1, "Water")
	addPeer(t, d, "peer-mid", 6.0, 1, "Food", 1, "Water")

	got := m.Candidates(localOffer(t))
	if len(got) != 3 {
		t.Fatalf("len = %d, want 3", len(got))
	}
	want := []string{"peer-high", "peer-mid", "peer-low"}
	for i, id := range want {
		if got[i].Peer.ID != id {
			t.Errorf("position %d = %s, want %s", i, got[i].Peer.ID, id)
		}
	}
}

func TestCandidates_RecomputedEachCall(t *testing.T) {
	d := directory.New()
	m := New(d)
	local := localOffer(t)

	if got := m.Candidates(local); len(got) != 0 {
		t.Fatalf("unexpected candidates: %+v", got)
	}

	addPeer(t, d, "peer-a", 8.0, 3, "Food", 5, "Water")
	if got := m.Candidates(local); len(got) != 1 {
		t.Error("new peer should appear without any cache invalidation step")
	}

	d.Remove("peer-a")
	if got := m.Candidates(local); len(got) != 0 {
		t.Error("removed peer should disappear from candidates")
	}
}

func TestCandidates_NoLocalOffer(t *testing.T) {
	d := directory.New()
	m := New(d)
	addPeer(t, d, "peer-a", 8.0, 3, "Food", 5, "Water")

	if got := m.Candidates(domain.Offer{}); got != nil {
		t.Errorf("zero local offer should yield no candidates, got %+v", got)
	}
}

func TestCandidates_StalenessWindow(t *testing.T) {
	d := directory.New()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	d.SetNowFunc(func() time.Time { return now })

	m := New(d)
	m.MaxOfferAge = time.Minute
	m.SetNowFunc(func() time.Time { return now.Add(2 * time.Minute) })

	addPeer(t, d, "peer-stale", 8.0, 3, "Food", 5, "Water")

	if got := m.Candidates(localOffer(t)); len(got) != 0 {
		t.Errorf("stale peer should be filtered, got %+v", got)
	}

	m.MaxOfferAge = 0
	if got := m.Candidates(localOffer(t)); len(got) != 1 {
		t.Error("without a staleness window the peer should qualify")
	}
}
