package cachesvc

import (
	"context"
	"strings"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/trezcool/soko/core/analytics"
)

// MemoryStore keeps entries in process. Used in development and tests.
type MemoryStore struct {
	c *gocache.Cache
}

var _ analytics.Store = (*MemoryStore)(nil)

func NewMemoryStore(cleanupInterval time.Duration) *MemoryStore {
	return &MemoryStore{c: gocache.New(gocache.NoExpiration, cleanupInterval)}
}

func (s *MemoryStore) Get(_ context.Context, key string) ([]byte, error) {
	v, ok := s.c.Get(key)
	if !ok {
		return nil, analytics.ErrCacheMiss
	}
	return v.([]byte), nil
}

func (s *MemoryStore) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	s.c.Set(key, value, ttl)
	return nil
}

func (s *MemoryStore) DeletePrefix(_ context.Context, prefix string) (int, error) {
	var n int
	for key := range s.c.Items() { // Items skips expired entries
		if strings.HasPrefix(key, prefix) {
			s.c.Delete(key)
			n++
		}
	}
	return n, nil
}
