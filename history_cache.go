package fhirfs

import (
	"context"
	"sort"
	"strconv"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"

	"github.com/fhirfs/fhirfs/internal/fhir"
)

// HistoryVersion is one entry of a resource's version history.
type HistoryVersion struct {
	Version string // numeric, as it appears in "<id>.v<N>.json"
	Body    []byte
}

// HistoryCache is component C4: a lazily-populated cache of (type, id) ->
// ordered version list.
//
// Grounded on the same lruCache infrastructure as ResourceCache. Primarily
// invalidation-driven per spec §4.4 (a write or delete to (type, id) clears
// the entry immediately), with ttl layered on top as a passive upper bound
// on staleness for an id that's never written to again — not a substitute
// for invalidation, which still fires on every successful write/delete.
type HistoryCache struct {
	cache *lruCache
	group singleflight.Group
	fetch func(ctx context.Context, t, id string) ([]HistoryVersion, error)
	log   *logrus.Entry
}

// NewHistoryCache creates a history cache bounded by maxEntries and ttl
// (config.Cache.HistoryTTL, threaded through MountOptions per SPEC_FULL.md
// §10.2), fetching on miss through fetch.
func NewHistoryCache(maxEntries int, ttl time.Duration, fetch func(ctx context.Context, t, id string) ([]HistoryVersion, error)) *HistoryCache {
	c := &HistoryCache{cache: newLRUCache(maxEntries, ttl), fetch: fetch}
	c.cache.SetEvictHandler(func(key string) {
		if c.log != nil {
			c.log.WithField("key", key).Debug("history cache: evicted")
		}
	})
	return c
}

// SetLogger installs the *logrus.Entry used for eviction and
// single-flight-coalescing Debug logging.
func (c *HistoryCache) SetLogger(log *logrus.Entry) { c.log = log }

// Get returns the ordered (ascending version number) history for (t, id),
// fetching through the server on first access.
func (c *HistoryCache) Get(ctx context.Context, t, id string) ([]HistoryVersion, error) {
	key := resourceKey(t, id)

	if v, ok := c.cache.Get(key); ok {
		return v.([]HistoryVersion), nil
	}

	v, err, shared := c.group.Do(key, func() (interface{}, error) {
		versions, err := c.fetch(ctx, t, id)
		if err != nil {
			return nil, err
		}
		sortVersions(versions)
		c.cache.Put(key, versions)
		return versions, nil
	})
	if shared && c.log != nil {
		c.log.WithField("key", key).Debug("history cache: coalesced concurrent fetch")
	}
	if err != nil {
		return nil, err
	}
	return v.([]HistoryVersion), nil
}

// Invalidate drops cached history for (t, id), forcing the next Get to
// refetch it. Called after any successful write/delete to the resource.
func (c *HistoryCache) Invalidate(t, id string) {
	c.cache.Delete(resourceKey(t, id))
}

// Stats reports this cache's hit/miss/eviction counters, surfaced through
// FhirFS.Stats().
func (c *HistoryCache) Stats() CacheStats { return c.cache.Stats() }

func sortVersions(versions []HistoryVersion) {
	sort.Slice(versions, func(i, j int) bool {
		vi, _ := strconv.Atoi(versions[i].Version)
		vj, _ := strconv.Atoi(versions[j].Version)
		return vi < vj
	})
}

// historyVersionsFromEntries adapts internal/fhir.HistoryEntry results
// into HistoryVersion, taking the version number from each entry's
// VersionID (meta.versionId); when that is empty it falls back to the
// entry's positional index+1 in arrival order, before any sorting.
func historyVersionsFromEntries(entries []fhir.HistoryEntry) []HistoryVersion {
	out := make([]HistoryVersion, 0, len(entries))
	for i, e := range entries {
		version := e.VersionID
		if version == "" {
			version = strconv.Itoa(i + 1)
		}
		out = append(out, HistoryVersion{Version: version, Body: e.Body})
	}
	return out
}
