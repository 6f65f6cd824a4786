package scanner

import (
	"sync"

	"github.com/loreguard-ai/loreguard/internal/types"
)

// CompileFunc produces a scanner on cache miss.
type CompileFunc func() (Scanner, error)

// Registry caches compiled scanners keyed by owning rule ID.
//
// Lookup-or-compile and invalidation are mutually exclusive per key: a
// caller never receives a scanner that a concurrent invalidation has
// already discarded mid-compile. Different keys compile concurrently.
//
// The registry is passed explicitly to whatever composes the guardrail
// engine; there is no process-wide singleton.
type Registry struct {
	mu      sync.Mutex
	entries map[types.ID]*registryEntry
}

type registryEntry struct {
	mu      sync.Mutex
	scanner Scanner
}

// NewRegistry creates an empty scanner registry.
func NewRegistry() *Registry {
	return &Registry{entries: make(map[types.ID]*registryEntry)}
}

// GetOrCompile returns the cached scanner for ruleID, compiling it with
// compile on first use. Concurrent callers for the same key serialize on
// the entry lock, so compile runs at most once per cached generation.
// A failed compile leaves no cache entry behind, so the next call retries.
func (r *Registry) GetOrCompile(ruleID types.ID, compile CompileFunc) (Scanner, error) {
	r.mu.Lock()
	entry, ok := r.entries[ruleID]
	if !ok {
		entry = &registryEntry{}
		r.entries[ruleID] = entry
	}
	r.mu.Unlock()

	entry.mu.Lock()
	defer entry.mu.Unlock()

	if entry.scanner != nil {
		return entry.scanner, nil
	}

	s, err := compile()
	if err != nil {
		r.mu.Lock()
		if r.entries[ruleID] == entry {
			delete(r.entries, ruleID)
		}
		r.mu.Unlock()
		return nil, err
	}

	entry.scanner = s
	return s, nil
}

// Invalidate discards the cached scanner for ruleID. Must be called on rule
// update and delete. Waits for any in-flight compile on the key so a stale
// scanner can't be re-cached after invalidation.
func (r *Registry) Invalidate(ruleID types.ID) {
	r.mu.Lock()
	entry, ok := r.entries[ruleID]
	if ok {
		delete(r.entries, ruleID)
	}
	r.mu.Unlock()

	if ok {
		entry.mu.Lock()
		entry.scanner = nil
		entry.mu.Unlock()
	}
}

// Len returns the number of cached entries. Useful for tests and metrics.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}
