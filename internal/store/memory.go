package store

import (
	"context"
	"sync"
	"time"

	"github.com/rotisserie/eris"
)

// MemoryStore is a process-local Store for tests and single-shot CLI runs.
type MemoryStore struct {
	mu     sync.Mutex
	cache  map[string]CacheEntry
	quotas map[string]QuotaRecord
	shares map[string]Share
}

// NewMemory creates an empty in-memory store.
func NewMemory() *MemoryStore {
	return &MemoryStore{
		cache:  make(map[string]CacheEntry),
		quotas: make(map[string]QuotaRecord),
		shares: make(map[string]Share),
	}
}

func (s *MemoryStore) Migrate(context.Context) error { return nil }
func (s *MemoryStore) Ping(context.Context) error    { return nil }
func (s *MemoryStore) Close() error                  { return nil }

func (s *MemoryStore) GetCachedRecipe(_ context.Context, url string, now time.Time) (*CacheEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.cache[url]
	if !ok || !e.ExpiresAt.After(now) {
		return nil, nil
	}
	return &e, nil
}

func (s *MemoryStore) SetCachedRecipe(_ context.Context, entry CacheEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if cur, ok := s.cache[entry.URL]; ok && cur.ExpiresAt.After(entry.StoredAt) {
		return nil
	}
	s.cache[entry.URL] = entry
	return nil
}

func (s *MemoryStore) DeleteExpiredRecipes(_ context.Context, now time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for url, e := range s.cache {
		if !e.ExpiresAt.After(now) {
			delete(s.cache, url)
			n++
		}
	}
	return n, nil
}

func (s *MemoryStore) GetQuota(_ context.Context, identity string) (*QuotaRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	q, ok := s.quotas[identity]
	if !ok {
		return nil, nil
	}
	return &q, nil
}

func (s *MemoryStore) IncrementQuota(_ context.Context, identity string, periodStart time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	q, ok := s.quotas[identity]
	if !ok || q.PeriodStart.Before(periodStart) {
		q = QuotaRecord{Identity: identity, PeriodStart: periodStart}
	}
	q.Count++
	s.quotas[identity] = q
	return q.Count, nil
}

func (s *MemoryStore) GetShare(_ context.Context, id string, now time.Time) (*Share, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sh, ok := s.shares[id]
	if !ok || !sh.ExpiresAt.After(now) {
		return nil, nil
	}
	return &sh, nil
}

func (s *MemoryStore) PutShare(_ context.Context, share Share) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.shares[share.ID]; ok {
		return eris.Errorf("memory: share %s already exists", share.ID)
	}
	s.shares[share.ID] = share
	return nil
}
