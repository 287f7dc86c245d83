package fhirfs

import (
	"context"
	"sync"

	"github.com/fhirfs/fhirfs/internal/fhir"
)

// SearchEntry is the materialized result of one search directory: its
// results grouped by resourceType, exactly as returned by
// internal/fhir.Client.Search.
type SearchEntry struct {
	ByType map[string][]fhir.ResourceHit
}

// SearchCache is component C5. Unlike C3/C4 it has no fetch-on-miss path:
// entries are born atomically inside Materialize (driven by mkdir) and
// die in Invalidate (driven by rmdir), per the SearchDir state machine in
// spec §4.9 (None -> Materializing -> Ready -> Removed).
//
// Grounded on _examples/absfs-fusefs/cache.go's map+mutex discipline, but
// deliberately not built on lruCache: a search directory's lifetime is
// owned by explicit mkdir/rmdir, not LRU/TTL eviction (spec §4.5:
// "Re-reading the same directory returns the same content until rmdir").
type SearchCache struct {
	mu      sync.RWMutex
	entries map[string]SearchEntry // key: type + "?" + query
	search  func(ctx context.Context, t, query string) (*fhir.SearchResult, error)
}

func NewSearchCache(search func(ctx context.Context, t, query string) (*fhir.SearchResult, error)) *SearchCache {
	return &SearchCache{entries: make(map[string]SearchEntry), search: search}
}

func searchKey(t, query string) string { return t + "?" + query }

// Materialize executes the search and installs the result atomically.
// A failed search leaves no entry (spec §4.5: "partially-failed searches
// leave no cache entry"). Calling Materialize on an already-materialized
// key re-runs the search and replaces the entry — mkdir on an existing
// directory is rejected by the FUSE layer before this is ever reached.
func (c *SearchCache) Materialize(ctx context.Context, t, query string) (SearchEntry, error) {
	result, err := c.search(ctx, t, query)
	if err != nil {
		return SearchEntry{}, err
	}

	entry := SearchEntry{ByType: result.ByType}

	c.mu.Lock()
	c.entries[searchKey(t, query)] = entry
	c.mu.Unlock()

	return entry, nil
}

// Get returns the materialized entry for (t, query), if any.
func (c *SearchCache) Get(t, query string) (SearchEntry, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.entries[searchKey(t, query)]
	return e, ok
}

// Invalidate drops the entry, called on rmdir.
func (c *SearchCache) Invalidate(t, query string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, searchKey(t, query))
}
