package directory

import (
	"testing"
	"time"

	"github.com/boomtrade/boomtrade/internal/domain"
)

func newTestDirectory(t *testing.T) (*Directory, *time.Time) {
	t.Helper()
	d := New()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	d.SetNowFunc(func() time.Time { return now })
	return d, &now
}

func TestUpsert_FirstDiscovery(t *testing.T) {
	d, _ := newTestDirectory(t)

	p := d.Upsert("peer-1", "Scavenger", nil)
	if p.TrustScore != domain.TrustNeutral {
		t.Errorf("trust = %f, want neutral", p.TrustScore)
	}
	if d.Count() != 1 {
		t.Errorf("count = %d, want 1", d.Count())
	}
}

func TestUpsert_RefreshPreservesTrust(t *testing.T) {
	d, now := newTestDirectory(t)

	d.Upsert("peer-1", "Scavenger", nil)
	d.AdjustTrust("peer-1", 2.5)

	*now = now.Add(time.Minute)
	p := d.Upsert("peer-1", "Scavenger", nil)

	if p.TrustScore != domain.TrustNeutral+2.5 {
		t.Errorf("trust = %f, re-observation must not reset trust", p.TrustScore)
	}
	if !p.LastSeenAt.Equal(*now) {
		t.Errorf("lastSeenAt = %v, want refreshed to %v", p.LastSeenAt, *now)
	}
}

func TestUpsert_StoresAdvertisedOffer(t *testing.T) {
	d, _ := newTestDirectory(t)

	offer, _ := domain.NewOffer("peer-1", 3, "Food", 5, "Water")
	d.Upsert("peer-1", "Scavenger", &offer)

	got, ok := d.Offer("peer-1")
	if !ok || got != offer {
		t.Errorf("offer = %+v ok=%v", got, ok)
	}

	// Re-observation without an offer keeps the previous one.
	d.Upsert("peer-1", "Scavenger", nil)
	if _, ok := d.Offer("peer-1"); !ok {
		t.Error("offer should be retained until replaced or peer removed")
	}
}

func TestRemove(t *testing.T) {
	d, _ := newTestDirectory(t)
	offer, _ := domain.NewOffer("peer-1", 3, "Food", 5, "Water")
	d.Upsert("peer-1", "Scavenger", &offer)

	d.Remove("peer-1")
	if _, ok := d.Get("peer-1"); ok {
		t.Error("peer should be gone")
	}
	if _, ok := d.Offer("peer-1"); ok {
		t.Error("offer should be gone with the peer")
	}
}

func TestSnapshot_StableOrder(t *testing.T) {
	d, now := newTestDirectory(t)

	d.Upsert("peer-b", "B", nil)
	d.Upsert("peer-a", "A", nil) // same lastSeenAt → id tiebreak
	*now = now.Add(time.Second)
	d.Upsert("peer-c", "C", nil)

	snap := d.Snapshot()
	if len(snap) != 3 {
		t.Fatalf("len = %d, want 3", len(snap))
	}
	if snap[0].ID != "peer-a" || snap[1].ID != "peer-b" || snap[2].ID != "peer-c" {
		t.Errorf("order = [%s %s %s], want [peer-a peer-b peer-c]",
			snap[0].ID, snap[1].ID, snap[2].ID)
	}
}

func TestSnapshot_CopyOnRead(t *testing.T) {
	d, _ := newTestDirectory(t)
	d.Upsert("peer-1", "Scavenger", nil)

	snap := d.Snapshot()
	snap[0].TrustScore = 0.1

	p, _ := d.Get("peer-1")
	if p.TrustScore != domain.TrustNeutral {
		t.Error("mutating a snapshot must not affect the directory")
	}
}

func TestAdjustTrust_Clamped(t *testing.T) {
	d, _ := newTestDirectory(t)
	d.Upsert("peer-1", "Scavenger", nil)

	if score, _ := d.AdjustTrust("peer-1", 100); score != domain.TrustCeiling {
		t.Errorf("score = %f, want ceiling", score)
	}
	if score, _ := d.AdjustTrust("peer-1", -100); score != domain.TrustFloor {
		t.Errorf("score = %f, want floor", score)
	}
	if _, ok := d.AdjustTrust("peer-ghost", 1); ok {
		t.Error("unknown peer should report false")
	}
}
