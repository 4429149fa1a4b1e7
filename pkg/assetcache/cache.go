package assetcache

import (
	"context"
	"fmt"
	"log"
	"strings"
)

// Fetcher retrieves the authoritative copy of an asset when the cache
// cannot serve it
type Fetcher interface {
	Fetch(ctx context.Context, key string) ([]byte, error)
}

// FetcherFunc adapts a function to the Fetcher interface
type FetcherFunc func(ctx context.Context, key string) ([]byte, error)

func (f FetcherFunc) Fetch(ctx context.Context, key string) ([]byte, error) {
	return f(ctx, key)
}

// Manager serves assets from two versioned caches: a static cache for
// precached shell assets and a dynamic cache for runtime responses.
// Bumping the version makes Activate discard every cache from previous
// versions.
type Manager struct {
	store   Store
	fetcher Fetcher
	version string
}

// NewManager creates a cache manager for the given version
func NewManager(store Store, fetcher Fetcher, version string) *Manager {
	return &Manager{
		store:   store,
		fetcher: fetcher,
		version: version,
	}
}

// StaticCacheName returns the versioned name of the static cache
func (m *Manager) StaticCacheName() string {
	return fmt.Sprintf("static-%s", m.version)
}

// DynamicCacheName returns the versioned name of the dynamic cache
func (m *Manager) DynamicCacheName() string {
	return fmt.Sprintf("dynamic-%s", m.version)
}

// Precache fetches each key and stores it in the static cache. A key
// that fails to fetch is logged and skipped so one missing asset does
// not block the rest.
func (m *Manager) Precache(ctx context.Context, keys []string) error {
	var failed int
	for _, key := range keys {
		value, err := m.fetcher.Fetch(ctx, key)
		if err != nil {
			log.Printf("[CACHE] Precache fetch failed for %s: %v", key, err)
			failed++
			continue
		}
		if err := m.store.Put(ctx, m.StaticCacheName(), key, value); err != nil {
			return err
		}
	}
	if failed > 0 {
		return fmt.Errorf("precache: %d of %d assets failed", failed, len(keys))
	}
	return nil
}

// CacheFirst serves from the static cache, fetching and caching on miss
func (m *Manager) CacheFirst(ctx context.Context, key string) ([]byte, error) {
	value, ok, err := m.store.Get(ctx, m.StaticCacheName(), key)
	if err != nil {
		return nil, err
	}
	if ok {
		return value, nil
	}

	value, err = m.fetcher.Fetch(ctx, key)
	if err != nil {
		return nil, err
	}
	if err := m.store.Put(ctx, m.StaticCacheName(), key, value); err != nil {
		log.Printf("[CACHE] Store failed for %s: %v", key, err)
	}
	return value, nil
}

// StaleWhileRevalidate serves the cached copy immediately when present
// and refreshes it in the background. On a miss it fetches
// synchronously.
func (m *Manager) StaleWhileRevalidate(ctx context.Context, key string) ([]byte, error) {
	cached, ok, err := m.store.Get(ctx, m.DynamicCacheName(), key)
	if err != nil {
		return nil, err
	}
	if ok {
		go func() {
			if err := m.refresh(context.WithoutCancel(ctx), key); err != nil {
				log.Printf("[CACHE] Revalidate failed for %s: %v", key, err)
			}
		}()
		return cached, nil
	}

	value, err := m.fetcher.Fetch(ctx, key)
	if err != nil {
		return nil, err
	}
	if err := m.store.Put(ctx, m.DynamicCacheName(), key, value); err != nil {
		log.Printf("[CACHE] Store failed for %s: %v", key, err)
	}
	return value, nil
}

// NetworkFirst fetches the asset and updates the dynamic cache, falling
// back to the cached copy when the fetch fails
func (m *Manager) NetworkFirst(ctx context.Context, key string) ([]byte, error) {
	value, err := m.fetcher.Fetch(ctx, key)
	if err == nil {
		if putErr := m.store.Put(ctx, m.DynamicCacheName(), key, value); putErr != nil {
			log.Printf("[CACHE] Store failed for %s: %v", key, putErr)
		}
		return value, nil
	}

	cached, ok, getErr := m.store.Get(ctx, m.DynamicCacheName(), key)
	if getErr == nil && ok {
		return cached, nil
	}
	return nil, err
}

func (m *Manager) refresh(ctx context.Context, key string) error {
	value, err := m.fetcher.Fetch(ctx, key)
	if err != nil {
		return err
	}
	return m.store.Put(ctx, m.DynamicCacheName(), key, value)
}

// Activate drops every cache whose name does not belong to the current
// version. Caches using other naming schemes are left alone.
func (m *Manager) Activate(ctx context.Context) error {
	names, err := m.store.CacheNames(ctx)
	if err != nil {
		return err
	}

	current := map[string]bool{
		m.StaticCacheName():  true,
		m.DynamicCacheName(): true,
	}

	for _, name := range names {
		if current[name] {
			continue
		}
		if !strings.HasPrefix(name, "static-") && !strings.HasPrefix(name, "dynamic-") {
			continue
		}
		log.Printf("[CACHE] Dropping stale cache %s", name)
		if err := m.store.DropCache(ctx, name); err != nil {
			return err
		}
	}
	return nil
}
