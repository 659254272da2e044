// Package domain contains pure business types with ZERO infrastructure imports.
// This is the innermost ring of clean architecture — it depends on nothing.
package domain

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// ─── Offer Types ────────────────────────────────────────────────────────────

// Offer is a have/need barter pair owned by exactly one party (the local
// device or a Peer). Offers are immutable: a new Offer replaces, never
// mutates, the owner's prior offer.
type Offer struct {
	ID       string `json:"id"`
	OwnerID  string `json:"owner_id"`
	HaveQty  int    `json:"have_qty"`
	HaveName string `json:"have_name"`
	NeedQty  int    `json:"need_qty"`
	NeedName string `json:"need_name"`
}

// NewOffer builds a validated Offer with a fresh ID.
// Quantities must be strictly positive and item names non-empty.
func NewOffer(ownerID string, haveQty int, haveName string, needQty int, needName string) (Offer, error) {
	haveName = strings.TrimSpace(haveName)
	needName = strings.TrimSpace(needName)
	if haveQty <= 0 || needQty <= 0 {
		return Offer{}, fmt.Errorf("%w: quantities must be positive (have=%d need=%d)", ErrInvalidOffer, haveQty, needQty)
	}
	if haveName == "" || needName == "" {
		return Offer{}, fmt.Errorf("%w: item names must be non-empty", ErrInvalidOffer)
	}
	return Offer{
		ID:       uuid.NewString(),
		OwnerID:  ownerID,
		HaveQty:  haveQty,
		HaveName: haveName,
		NeedQty:  needQty,
		NeedName: needName,
	}, nil
}

// IsZero reports whether the offer is the empty value (no offer set).
func (o Offer) IsZero() bool { return o.ID == "" }

// Summary renders the offer as a one-line "have → need" description,
// the format stored in history entries.
func (o Offer) Summary() string {
	return fmt.Sprintf("%d %s for %d %s", o.HaveQty, o.HaveName, o.NeedQty, o.NeedName)
}

// Matches reports whether other's have-item satisfies this offer's need-item.
// Item name comparison is case-insensitive exact match; quantity compatibility
// is deliberately not required (a partial match still qualifies).
func (o Offer) Matches(other Offer) bool {
	return strings.EqualFold(other.HaveName, o.NeedName)
}

// ExactMatch reports whether other mirrors this offer exactly by quantity:
// they have what we need in the amount we need, and need what we have in the
// amount we have.
func (o Offer) ExactMatch(other Offer) bool {
	return o.Matches(other) && other.HaveQty == o.NeedQty && other.NeedQty == o.HaveQty
}
