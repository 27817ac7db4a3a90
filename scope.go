package weave

import (
	"io"
	"reflect"
	"sync"
)

// Disposable is the disposal capability the kernel looks for when a scope is
// torn down. Instances that do not implement it but do implement io.Closer
// have Close called instead.
type Disposable interface {
	Dispose() error
}

type scopeKey struct {
	binding *binding
	scope   Scope
}

// scopeEntry holds one cached instance. The entry mutex is the per-key
// creation gate: the factory runs while it is held, so concurrent resolutions
// of the same scoped binding block on it, and teardown takes the same gate
// before disposing so it never races an in-flight construction. A dead entry
// belongs to a generation of the scope that has already been torn down.
type scopeEntry struct {
	mu    sync.Mutex
	done  bool
	dead  bool
	value any
	err   error
	scope Scope
}

// scopeCache is the kernel's instance cache for non-transient scopes, keyed
// by (binding, scope). The cache lock only guards the maps; construction
// itself runs under the entry gate so unrelated resolutions never serialize.
type scopeCache struct {
	mu      sync.Mutex
	entries map[scopeKey]*scopeEntry
	order   map[Scope][]*scopeEntry // creation order per scope, for teardown
}

func newScopeCache() *scopeCache {
	return &scopeCache{
		entries: map[scopeKey]*scopeEntry{},
		order:   map[Scope][]*scopeEntry{},
	}
}

// getOrCreate returns the cached instance for the key, constructing it via
// factory on first use. The factory runs at most once per key even under
// concurrent access; a factory error is not cached so a later resolution can
// retry. A resolution that finds its entry dead lost a race with teardown
// before its factory ran and starts over against the scope's next generation.
func (sc *scopeCache) getOrCreate(b *binding, scope Scope, factory func() (any, error)) (any, error) {
	key := scopeKey{binding: b, scope: scope}
	for {
		sc.mu.Lock()
		e, ok := sc.entries[key]
		if !ok {
			e = &scopeEntry{scope: scope}
			sc.entries[key] = e
		}
		sc.mu.Unlock()

		e.mu.Lock()
		if e.dead {
			e.mu.Unlock()
			continue
		}
		if !e.done {
			e.value, e.err = factory()
			e.done = true
			if e.err == nil {
				sc.mu.Lock()
				// An entry evicted mid-construction is not re-tracked; the
				// teardown that evicted it disposes the value once the gate
				// is released.
				if sc.entries[key] == e {
					sc.order[scope] = append(sc.order[scope], e)
				}
				sc.mu.Unlock()
			}
		}
		value, err := e.value, e.err
		e.mu.Unlock()

		if err != nil {
			sc.mu.Lock()
			if sc.entries[key] == e {
				delete(sc.entries, key)
			}
			sc.mu.Unlock()
			return nil, err
		}
		return value, nil
	}
}

// release disposes a single instance if the cache owns it. Instances the
// cache never tracked, transient ones included, are left alone.
func (sc *scopeCache) release(instance any) error {
	sc.mu.Lock()
	keys := make([]scopeKey, 0, len(sc.entries))
	for key := range sc.entries {
		keys = append(keys, key)
	}
	sc.mu.Unlock()

	for _, key := range keys {
		sc.mu.Lock()
		e, ok := sc.entries[key]
		sc.mu.Unlock()
		if !ok {
			continue
		}
		e.mu.Lock()
		match := e.done && e.err == nil && sameInstance(e.value, instance)
		e.mu.Unlock()
		if !match {
			continue
		}
		sc.mu.Lock()
		if sc.entries[key] != e {
			// Torn down or released concurrently; already handled.
			sc.mu.Unlock()
			return nil
		}
		delete(sc.entries, key)
		sc.removeFromOrder(e)
		sc.mu.Unlock()
		return dispose(e.value)
	}
	return nil
}

// teardown disposes every instance currently cached under the scope.
// Disposal failures are collected, not fatal: every remaining instance still
// gets its chance to be disposed.
func (sc *scopeCache) teardown(scope Scope) error {
	sc.mu.Lock()
	ordered := sc.order[scope]
	delete(sc.order, scope)
	published := make(map[*scopeEntry]bool, len(ordered))
	for _, e := range ordered {
		published[e] = true
	}
	var pending []*scopeEntry
	for key, e := range sc.entries {
		if e.scope != scope {
			continue
		}
		delete(sc.entries, key)
		if !published[e] {
			pending = append(pending, e)
		}
	}
	sc.mu.Unlock()

	var errs []error
	// Pending entries may have a factory in flight holding the creation
	// gate; taking the gate serializes teardown behind it. Whatever got
	// built is disposed here, and the entry is marked dead so a resolver
	// still waiting on it rebuilds under the scope's next generation.
	for _, e := range pending {
		e.mu.Lock()
		e.dead = true
		if e.done && e.err == nil {
			if err := dispose(e.value); err != nil {
				errs = append(errs, err)
			}
		}
		e.mu.Unlock()
	}
	// Published entries are fully constructed. Reverse creation order puts
	// dependents before their dependencies.
	for i := len(ordered) - 1; i >= 0; i-- {
		if err := dispose(ordered[i].value); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return &DisposalError{Errors: errs}
	}
	return nil
}

// teardownAll tears down every scope the cache knows about.
func (sc *scopeCache) teardownAll() error {
	sc.mu.Lock()
	seen := map[Scope]bool{}
	for scope := range sc.order {
		seen[scope] = true
	}
	for _, e := range sc.entries {
		seen[e.scope] = true
	}
	scopes := make([]Scope, 0, len(seen))
	for scope := range seen {
		scopes = append(scopes, scope)
	}
	sc.mu.Unlock()

	var errs []error
	for _, scope := range scopes {
		if err := sc.teardown(scope); err != nil {
			if de, ok := err.(*DisposalError); ok {
				errs = append(errs, de.Errors...)
			} else {
				errs = append(errs, err)
			}
		}
	}
	if len(errs) > 0 {
		return &DisposalError{Errors: errs}
	}
	return nil
}

func (sc *scopeCache) removeFromOrder(e *scopeEntry) {
	entries := sc.order[e.scope]
	for i, candidate := range entries {
		if candidate == e {
			sc.order[e.scope] = append(entries[:i], entries[i+1:]...)
			return
		}
	}
}

func dispose(v any) error {
	switch d := v.(type) {
	case Disposable:
		return d.Dispose()
	case io.Closer:
		return d.Close()
	}
	return nil
}

// sameInstance compares by identity, guarding against uncomparable dynamic
// types which would panic under ==.
func sameInstance(a, b any) bool {
	if a == nil || b == nil {
		return false
	}
	ta := reflect.TypeOf(a)
	if ta != reflect.TypeOf(b) || !ta.Comparable() {
		return false
	}
	return a == b
}
