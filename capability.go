package fhirfs

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fhirfs/fhirfs/internal/fhir"
)

// CapabilityView is component C7: the mount-lifetime set of resource
// types the server advertises, refreshed opportunistically after TTL
// expiry rather than kept perfectly live (spec §4.7: "Fixed for the
// mount's lifetime unless a refresh is requested").
//
// An offline mount (spec §6: fhir_base_url == "offline") never talks to a
// server; Types is empty (or statically configured) and Offline is true
// for the mount's whole lifetime, so writes and listings other than
// against locally materialized state fail with EIO (spec §4.7).
type CapabilityView struct {
	fetch func(ctx context.Context) (*fhir.Capabilities, error)
	ttl   time.Duration

	offline bool

	mu          sync.RWMutex
	caps        *fhir.Capabilities
	lastRefresh time.Time

	refreshing atomic.Bool
}

// NewCapabilityView creates an online view backed by fetch.
func NewCapabilityView(fetch func(ctx context.Context) (*fhir.Capabilities, error), ttl time.Duration) *CapabilityView {
	return &CapabilityView{fetch: fetch, ttl: ttl}
}

// NewOfflineCapabilityView creates a non-networked view with a fixed,
// possibly empty, statically configured type set.
func NewOfflineCapabilityView(types []string) *CapabilityView {
	caps := &fhir.Capabilities{Searchable: map[string]bool{}, Operations: map[string]map[string]bool{}}
	for _, t := range types {
		caps.Types = append(caps.Types, t)
		caps.Searchable[t] = true
	}
	return &CapabilityView{offline: true, caps: caps, lastRefresh: time.Now()}
}

// Offline reports whether this is a non-networked mount.
func (v *CapabilityView) Offline() bool { return v.offline }

// Refresh performs the initial (or a forced) capability fetch. Called
// once at mount time for online mounts; mount fails (spec §6 exit code 2)
// if this returns an error.
func (v *CapabilityView) Refresh(ctx context.Context) error {
	if v.offline {
		return nil
	}
	caps, err := v.fetch(ctx)
	if err != nil {
		return err
	}
	v.mu.Lock()
	v.caps = caps
	v.lastRefresh = time.Now()
	v.mu.Unlock()
	return nil
}

// Get returns the current capability snapshot, triggering an async
// background refresh (at most one at a time) if the TTL has expired. The
// stale snapshot is returned immediately either way: a capability refresh
// never blocks a filesystem operation.
func (v *CapabilityView) Get() *fhir.Capabilities {
	v.mu.RLock()
	caps := v.caps
	stale := !v.offline && v.ttl > 0 && time.Since(v.lastRefresh) > v.ttl
	v.mu.RUnlock()

	if stale && v.refreshing.CompareAndSwap(false, true) {
		go func() {
			defer v.refreshing.Store(false)
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()
			_ = v.Refresh(ctx)
		}()
	}

	return caps
}
