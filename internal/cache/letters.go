// Package cache holds drafted letters in memory until they expire.
package cache

import (
	"time"

	"github.com/depositdefender/defender/internal/classify"
	gocache "github.com/patrickmn/go-cache"
)

// LetterStore keeps drafts keyed by letter id. Nothing is written to disk.
type LetterStore struct {
	cache *gocache.Cache
	ttl   time.Duration
}

// NewLetterStore creates a store whose entries live for ttl
func NewLetterStore(ttl time.Duration) *LetterStore {
	cleanup := ttl / 2
	if cleanup < time.Minute {
		cleanup = time.Minute
	}
	return &LetterStore{
		cache: gocache.New(ttl, cleanup),
		ttl:   ttl,
	}
}

// Get retrieves a draft
func (s *LetterStore) Get(letterID string) (classify.Draft, bool) {
	if val, found := s.cache.Get(letterID); found {
		return val.(classify.Draft), true
	}
	return classify.Draft{}, false
}

// Put stores a draft with the default TTL
func (s *LetterStore) Put(d classify.Draft) {
	s.cache.Set(d.ID, d, gocache.DefaultExpiration)
}

// Len counts drafts, possibly including expired ones not yet cleaned up
func (s *LetterStore) Len() int {
	return s.cache.ItemCount()
}

// TTL is how long a draft stays retrievable
func (s *LetterStore) TTL() time.Duration {
	return s.ttl
}
