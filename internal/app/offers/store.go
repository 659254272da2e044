// Package offers holds the local device's current barter offer.
// The store is the only writer of the offer and mirrors every successful
// mutation into the key/value persistence collaborator, so the offer
// survives a process restart (the original app kept it in UserDefaults).
package offers

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/boomtrade/boomtrade/internal/domain"
)

// KeyCurrentOffer is the persistence key for the device's offer.
const KeyCurrentOffer = "offer/current"

// Store manages the local offer. Thread-safe.
type Store struct {
	mu      sync.RWMutex
	ownerID string
	kv      domain.KVStore
	current *domain.Offer
}

// NewStore creates an offer store for the local device, restoring any
// previously persisted offer.
func NewStore(ownerID string, kv domain.KVStore) (*Store, error) {
	s := &Store{ownerID: ownerID, kv: kv}

	data, err := kv.Get(KeyCurrentOffer)
	if err != nil {
		return nil, fmt.Errorf("load current offer: %w", err)
	}
	if data != nil {
		var offer domain.Offer
		if err := json.Unmarshal(data, &offer); err != nil {
			return nil, fmt.Errorf("decode persisted offer: %w", err)
		}
		s.current = &offer
	}
	return s, nil
}

// SetOffer validates and atomically replaces the stored offer, persisting
// the new one. Returns the created offer.
func (s *Store) SetOffer(haveQty int, haveName string, needQty int, needName string) (domain.Offer, error) {
	offer, err := domain.NewOffer(s.ownerID, haveQty, haveName, needQty, needName)
	if err != nil {
		return domain.Offer{}, err
	}

	data, err := json.Marshal(offer)
	if err != nil {
		return domain.Offer{}, fmt.Errorf("encode offer: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.kv.Set(KeyCurrentOffer, data); err != nil {
		return domain.Offer{}, fmt.Errorf("persist offer: %w", err)
	}
	s.current = &offer
	return offer, nil
}

// CurrentOffer returns the stored offer, or false when none is set.
func (s *Store) CurrentOffer() (domain.Offer, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.current == nil {
		return domain.Offer{}, false
	}
	return *s.current, true
}

// ClearOffer removes the stored offer and its persisted copy.
func (s *Store) ClearOffer() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.kv.Delete(KeyCurrentOffer); err != nil {
		return fmt.Errorf("clear persisted offer: %w", err)
	}
	s.current = nil
	return nil
}
