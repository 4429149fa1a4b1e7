// Package assetcache implements the gateway's static asset cache layer:
// versioned named caches with cache-first, stale-while-revalidate, and
// network-first strategies, and cleanup of stale cache versions on
// activation.
package assetcache

import (
	"context"
	"fmt"
	"sync"

	"github.com/redis/go-redis/v9"
)

// Store persists entries grouped into named caches
type Store interface {
	Get(ctx context.Context, cache, key string) ([]byte, bool, error)
	Put(ctx context.Context, cache, key string, value []byte) error
	DropCache(ctx context.Context, cache string) error
	CacheNames(ctx context.Context) ([]string, error)
}

// MemoryStore implements Store in process memory
type MemoryStore struct {
	mu     sync.RWMutex
	caches map[string]map[string][]byte
}

// NewMemoryStore creates an empty in-memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		caches: make(map[string]map[string][]byte),
	}
}

func (s *MemoryStore) Get(ctx context.Context, cache, key string) ([]byte, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	value, ok := s.caches[cache][key]
	return value, ok, nil
}

func (s *MemoryStore) Put(ctx context.Context, cache, key string, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.caches[cache] == nil {
		s.caches[cache] = make(map[string][]byte)
	}
	s.caches[cache][key] = value
	return nil
}

func (s *MemoryStore) DropCache(ctx context.Context, cache string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.caches, cache)
	return nil
}

func (s *MemoryStore) CacheNames(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var names []string
	for name := range s.caches {
		names = append(names, name)
	}
	return names, nil
}

// RedisStore implements Store on Redis. Entries live under
// assetcache:<cache>:<key> and cache names are tracked in a set so
// activation can enumerate stale versions.
type RedisStore struct {
	client *redis.Client
}

const cacheNamesKey = "assetcache:caches"

// NewRedisStore creates a Redis-backed store
func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func entryKey(cache, key string) string {
	return fmt.Sprintf("assetcache:%s:%s", cache, key)
}

func (s *RedisStore) Get(ctx context.Context, cache, key string) ([]byte, bool, error) {
	value, err := s.client.Get(ctx, entryKey(cache, key)).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return value, true, nil
}

func (s *RedisStore) Put(ctx context.Context, cache, key string, value []byte) error {
	pipe := s.client.TxPipeline()
	pipe.Set(ctx, entryKey(cache, key), value, 0)
	pipe.SAdd(ctx, cacheNamesKey, cache)
	_, err := pipe.Exec(ctx)
	return err
}

func (s *RedisStore) DropCache(ctx context.Context, cache string) error {
	var cursor uint64
	pattern := entryKey(cache, "*")

	for {
		keys, next, err := s.client.Scan(ctx, cursor, pattern, 100).Result()
		if err != nil {
			return err
		}
		if len(keys) > 0 {
			if err := s.client.Del(ctx, keys...).Err(); err != nil {
				return err
			}
		}
		cursor = next
		if cursor == 0 {
			break
		}
	}

	return s.client.SRem(ctx, cacheNamesKey, cache).Err()
}

func (s *RedisStore) CacheNames(ctx context.Context) ([]string, error) {
	return s.client.SMembers(ctx, cacheNamesKey).Result()
}
