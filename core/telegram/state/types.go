package state

import (
	"strconv"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// Store hands out one session value per chat id.
// Sessions are created lazily and evicted once idle longer than the TTL.
type Store[T any] struct {
	cache *gocache.Cache
	ttl   time.Duration
	newFn func() T
}

// NewStore builds a store; ttl <= 0 keeps sessions forever.
func NewStore[T any](ttl time.Duration, newFn func() T) *Store[T] {
	if ttl <= 0 {
		ttl = gocache.NoExpiration
	}
	cleanup := ttl
	if ttl == gocache.NoExpiration {
		cleanup = 0
	}
	return &Store[T]{
		cache: gocache.New(ttl, cleanup),
		ttl:   ttl,
		newFn: newFn,
	}
}

func key(id int64) string { return strconv.FormatInt(id, 10) }

// Get returns the session for id, creating it when absent, and refreshes its TTL.
func (s *Store[T]) Get(id int64) T {
	k := key(id)
	if v, ok := s.cache.Get(k); ok {
		s.cache.Set(k, v, s.ttl)
		return v.(T)
	}
	fresh := s.newFn()
	if err := s.cache.Add(k, fresh, s.ttl); err != nil {
		// Lost a race with a concurrent Get; use the stored one.
		if v, ok := s.cache.Get(k); ok {
			return v.(T)
		}
		s.cache.Set(k, fresh, s.ttl)
	}
	return fresh
}

// Peek returns the session for id without creating or refreshing it.
func (s *Store[T]) Peek(id int64) (T, bool) {
	v, ok := s.cache.Get(key(id))
	if !ok {
		var zero T
		return zero, false
	}
	return v.(T), true
}

// Len reports the number of live sessions.
func (s *Store[T]) Len() int {
	return s.cache.ItemCount()
}
