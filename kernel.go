package weave

import (
	"context"
	"reflect"
	"sync"
)

// Kernel is the dependency-injection container. It owns the binding
// registry, the scope caches and the interceptor chains, and it is safe for
// concurrent use: many goroutines may resolve simultaneously while
// registration mutates shared state under the registry lock.
//
// A Kernel is an owned object with an explicit lifecycle: construct it with
// New, configure it with Bind and BindAll, resolve with Get and friends, and
// tear it down with Dispose. There is no ambient global kernel.
type Kernel struct {
	registry *registry
	scopes   *scopeCache
	chains   sync.Map // reflect.Type -> []Interceptor
	members  MemberSource
	timeCtx  context.Context
}

// Option configures a Kernel at construction time.
type Option func(*Kernel)

// WithMemberSource replaces the default struct-tag member metadata source.
func WithMemberSource(source MemberSource) Option {
	return func(k *Kernel) {
		k.members = source
	}
}

// WithActivationTiming wraps every activation in a timing context parented
// on ctx, which should come from timing.Root. Useful to see where graph
// construction spends its time; leave unset in production paths.
func WithActivationTiming(ctx context.Context) Option {
	return func(k *Kernel) {
		k.timeCtx = ctx
	}
}

// New creates an empty kernel.
func New(options ...Option) *Kernel {
	k := &Kernel{
		registry: newRegistry(),
		scopes:   newScopeCache(),
		members:  &tagMemberSource{},
	}
	for _, opt := range options {
		opt(k)
	}
	// Chains are cached per contract once built; any interceptor
	// registration drops the cached chain for that contract.
	k.registry.onChange = func(contract reflect.Type) {
		k.chains.Delete(contract)
	}
	return k
}

// Get resolves the contract T and panics if resolution fails. Resolution
// failures are programming errors in most applications, so this presents
// the concise interface; use GetWithError to handle them instead.
func Get[T any](k *Kernel) T {
	v, err := GetWithError[T](k)
	if err != nil {
		panic(err)
	}
	return v
}

// GetWithError resolves the contract T, reporting NoBindingError,
// AmbiguousBindingError, CycleError or ActivationError as they arise.
func GetWithError[T any](k *Kernel) (T, error) {
	return resolveAs[T](k, "")
}

// GetNamed resolves the contract T selecting the binding with the given
// qualifier. It panics if resolution fails.
func GetNamed[T any](k *Kernel, name string) T {
	v, err := GetNamedWithError[T](k, name)
	if err != nil {
		panic(err)
	}
	return v
}

// GetNamedWithError is the error-returning form of GetNamed.
func GetNamedWithError[T any](k *Kernel, name string) (T, error) {
	return resolveAs[T](k, name)
}

// GetAll resolves every binding registered for the contract T, in
// registration order. Multiplicity is requested explicitly here, so the
// ambiguity rule does not apply. It panics if any single resolution fails.
func GetAll[T any](k *Kernel) []T {
	vs, err := GetAllWithError[T](k)
	if err != nil {
		panic(err)
	}
	return vs
}

// GetAllWithError is the error-returning form of GetAll.
func GetAllWithError[T any](k *Kernel) ([]T, error) {
	// The root context carries the slice type, just as a collection member's
	// context does, so the per-element cycle check starts clean.
	root := &Context{kernel: k, contract: reflect.SliceOf(typeOf[T]())}
	raw, err := k.resolveAll(root, typeOf[T]())
	if err != nil {
		return nil, err
	}
	out := make([]T, 0, len(raw))
	for _, v := range raw {
		out = append(out, v.(T))
	}
	return out, nil
}

func resolveAs[T any](k *Kernel, qualifier string) (T, error) {
	var zero T
	root := &Context{kernel: k, contract: typeOf[T](), qualifier: qualifier}
	v, err := k.resolve(root)
	if err != nil {
		return zero, err
	}
	return v.(T), nil
}

// Release disposes a single instance if it is owned by a non-transient
// scope, removing it from the scope cache so it will not be disposed again
// at teardown. Releasing a transient or unknown instance is a no-op: the
// kernel never tracked it and never disposes it.
func (k *Kernel) Release(instance any) error {
	return k.scopes.release(instance)
}

// TeardownScope disposes every instance currently cached under the named
// scope. Each instance is removed from the cache as it is disposed, and
// teardown continues past individual disposal failures, collecting them
// into a DisposalError.
func (k *Kernel) TeardownScope(scope Scope) error {
	return k.scopes.teardown(scope)
}

// Dispose tears down every scope the kernel owns, singleton included. The
// kernel remains usable afterwards, though scoped instances will be rebuilt
// on the next resolution.
func (k *Kernel) Dispose() error {
	return k.scopes.teardownAll()
}
