package weave

import (
	"reflect"
	"sync"
)

// registry is the kernel's binding store. Registration order is preserved per
// contract because collection resolution and interceptor tie-breaking depend
// on it. All access goes through the registry lock; lookups take the read
// side so steady-state resolution does not serialize.
type registry struct {
	mu           sync.RWMutex
	bindings     map[reflect.Type][]*binding
	interceptors map[reflect.Type][]*interceptorEntry
	seq          int
	onChange     func(contract reflect.Type)
}

func newRegistry() *registry {
	return &registry{
		bindings:     map[reflect.Type][]*binding{},
		interceptors: map[reflect.Type][]*interceptorEntry{},
	}
}

func (r *registry) register(b *binding) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seq++
	b.seq = r.seq
	r.bindings[b.contract] = append(r.bindings[b.contract], b)
}

// update applies a configuration mutation to a registered binding under the
// registry lock.
func (r *registry) update(b *binding, fn func(*binding)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	fn(b)
}

// lookup selects exactly one binding for the context. Candidates are
// filtered by qualifier equality, then by condition predicates; anything
// other than a single survivor is an error, never a silent pick.
func (r *registry) lookup(ctx *Context) (*binding, error) {
	r.mu.RLock()
	candidates := r.bindings[ctx.contract]
	matched := make([]*binding, 0, len(candidates))
	for _, b := range candidates {
		if ctx.qualifier != "" && b.qualifier != ctx.qualifier {
			continue
		}
		matched = append(matched, b)
	}
	r.mu.RUnlock()

	// Conditions run outside the lock: predicates are caller code and may
	// resolve further contracts.
	filtered := matched[:0]
	for _, b := range matched {
		if b.condition != nil && !b.condition(ctx) {
			continue
		}
		filtered = append(filtered, b)
	}

	switch len(filtered) {
	case 0:
		return nil, &NoBindingError{Contract: ctx.contract, Qualifier: ctx.qualifier}
	case 1:
		return filtered[0], nil
	default:
		return nil, &AmbiguousBindingError{Contract: ctx.contract, Qualifier: ctx.qualifier, Count: len(filtered)}
	}
}

// all returns every binding for a contract in registration order. Collection
// resolution requests multiplicity explicitly, so the ambiguity rule does not
// apply here.
func (r *registry) all(contract reflect.Type) []*binding {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*binding, len(r.bindings[contract]))
	copy(out, r.bindings[contract])
	return out
}

func (r *registry) has(contract reflect.Type) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.bindings[contract]) > 0
}

// contracts returns every contract with at least one binding.
func (r *registry) contracts() []reflect.Type {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]reflect.Type, 0, len(r.bindings))
	for t := range r.bindings {
		out = append(out, t)
	}
	return out
}

func (r *registry) addInterceptor(contract reflect.Type, i Interceptor) *interceptorEntry {
	r.mu.Lock()
	r.seq++
	entry := &interceptorEntry{interceptor: i, seq: r.seq}
	r.interceptors[contract] = append(r.interceptors[contract], entry)
	onChange := r.onChange
	r.mu.Unlock()
	if onChange != nil {
		onChange(contract)
	}
	return entry
}

func (r *registry) updateInterceptor(contract reflect.Type, entry *interceptorEntry, fn func(*interceptorEntry)) {
	r.mu.Lock()
	fn(entry)
	onChange := r.onChange
	r.mu.Unlock()
	if onChange != nil {
		onChange(contract)
	}
}

func (r *registry) interceptorsFor(contract reflect.Type) []*interceptorEntry {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*interceptorEntry, len(r.interceptors[contract]))
	copy(out, r.interceptors[contract])
	return out
}

// TypeSource supplies candidate implementation types for convention-based
// registration. Sources are expected to be cheap and repeatable; the kernel
// never caches them.
type TypeSource interface {
	Types() []reflect.Type
}

type typeListSource []reflect.Type

func (s typeListSource) Types() []reflect.Type {
	return s
}

// Types builds a static TypeSource from prototype pointers:
//
//	src := weave.Types(&Sauce{}, &Steak{}, &Spoon{})
func Types(tokens ...any) TypeSource {
	out := make(typeListSource, 0, len(tokens))
	for _, token := range tokens {
		out = append(out, tokenType(token))
	}
	return out
}

// BindAll registers one transient binding per candidate type that implements
// the contract T and passes the optional filter. The filter receives the
// candidate struct type, which carries its name for predicate matching. This
// is additive sugar over ordinary registration, not a separate resolution
// path. BindAll reports how many bindings were registered.
func BindAll[T any](k *Kernel, source TypeSource, filter func(reflect.Type) bool) int {
	contract := typeOf[T]()
	count := 0
	for _, t := range source.Types() {
		if t.Kind() != reflect.Struct {
			continue
		}
		implType := reflect.PointerTo(t)
		if !implType.AssignableTo(contract) && !t.AssignableTo(contract) {
			continue
		}
		if filter != nil && !filter(t) {
			continue
		}
		k.registry.register(&binding{
			contract: contract,
			strategy: strategyConstruct,
			implType: implType,
			scope:    ScopeTransient,
		})
		count++
	}
	return count
}
