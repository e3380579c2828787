package store

import (
	"sync"

	"github.com/patrickmn/go-cache"
)

// MemoryStore implements [Store] on an in-process [cache.Cache]. Nothing survives a restart.
type MemoryStore struct {
	mu    sync.Mutex
	items *cache.Cache
}

// NewMemoryStore returns an empty in-memory store. Entries never expire on their own; token expiry is
// tracked through [KeyTokenExpiresAt] like every other backend.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{items: cache.New(cache.NoExpiration, 0)}
}

func (s *MemoryStore) Get(key Key) (string, bool, error) {
	if err := checkKeys(key); err != nil {
		return "", false, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	v, ok := s.items.Get(string(key))
	if !ok {
		return "", false, nil
	}
	return v.(string), true, nil
}

func (s *MemoryStore) Set(key Key, value string) error {
	return s.SetMany(map[Key]string{key: value})
}

func (s *MemoryStore) Remove(key Key) error {
	return s.RemoveMany(key)
}

func (s *MemoryStore) SetMany(values map[Key]string) error {
	for k := range values {
		if err := checkKeys(k); err != nil {
			return err
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	for k, v := range values {
		s.items.Set(string(k), v, cache.NoExpiration)
	}
	return nil
}

func (s *MemoryStore) RemoveMany(keys ...Key) error {
	if err := checkKeys(keys...); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, k := range keys {
		s.items.Delete(string(k))
	}
	return nil
}

func (s *MemoryStore) Close() error {
	s.items.Flush()
	return nil
}
