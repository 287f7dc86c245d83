package fhirfs

import (
	"context"
	"sync"
)

// OperationCache is component C6: pending operation result files keyed by
// (type, op, args, format). An entry is materialized on first touch/create
// by invoking the operation against the server, and stays readable until
// explicitly unlinked (spec §4.6, §4.9). There is no TTL: the result is a
// point-in-time snapshot the user chose to keep by not deleting it.
type OperationCache struct {
	mu      sync.RWMutex
	entries map[string][]byte
	invoke  func(ctx context.Context, t, op, args, format string) ([]byte, error)
}

func NewOperationCache(invoke func(ctx context.Context, t, op, args, format string) ([]byte, error)) *OperationCache {
	return &OperationCache{entries: make(map[string][]byte), invoke: invoke}
}

func operationKey(t, op, args, format string) string {
	return t + "/$" + op + "/" + args + "." + format
}

// Materialize invokes the operation and installs the result, or returns
// the already-materialized result if one exists (read-after-touch must
// not re-invoke the server, spec §4.9: "readable until the file is
// unlinked").
func (c *OperationCache) Materialize(ctx context.Context, t, op, args, format string) ([]byte, error) {
	key := operationKey(t, op, args, format)

	c.mu.RLock()
	if body, ok := c.entries[key]; ok {
		c.mu.RUnlock()
		return body, nil
	}
	c.mu.RUnlock()

	body, err := c.invoke(ctx, t, op, args, format)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.entries[key] = body
	c.mu.Unlock()

	return body, nil
}

// Get returns an already-materialized result without invoking the
// operation.
func (c *OperationCache) Get(t, op, args, format string) ([]byte, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	body, ok := c.entries[operationKey(t, op, args, format)]
	return body, ok
}

// List returns the args.format names materialized under (t, op), for
// readdir of an OperationDir. Does not initiate any server call.
func (c *OperationCache) List(t, op string) []string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	prefix := t + "/$" + op + "/"
	var names []string
	for key := range c.entries {
		if len(key) > len(prefix) && key[:len(prefix)] == prefix {
			names = append(names, key[len(prefix):])
		}
	}
	return names
}

// Invalidate drops the entry, called on unlink.
func (c *OperationCache) Invalidate(t, op, args, format string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, operationKey(t, op, args, format))
}
