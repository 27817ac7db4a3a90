package weave

import (
	"fmt"
	"reflect"
)

// Scope is a lifetime policy controlling instance caching and disposal.
// Beyond the two built-in scopes, any other name designates a custom scope
// whose instances live until TeardownScope is called with that name.
type Scope string

const (
	// ScopeTransient creates a fresh instance on every resolution. The
	// kernel keeps no reference to transient instances and never disposes
	// them.
	ScopeTransient Scope = "transient"

	// ScopeSingleton caches one instance for the lifetime of the kernel.
	ScopeSingleton Scope = "singleton"
)

// Provider is a deferred value: anywhere a plain value can be supplied (a
// constructor argument or property override), a Provider can be supplied
// instead and is invoked at activation time with the current resolution
// context.
type Provider func(*Context) (any, error)

type strategy int

const (
	strategyConstruct strategy = iota
	strategyConstant
	strategyFactory
	strategyConstructor
)

// propertyOverride keeps property application in declaration order.
type propertyOverride struct {
	name  string
	value any
}

// binding is a registered rule mapping a contract, optionally qualified, to a
// construction strategy and scope. Bindings are owned by the registry and
// only ever mutated under its lock.
type binding struct {
	contract  reflect.Type
	strategy  strategy
	implType  reflect.Type // pointer-to-struct, construct strategy only
	constant  any
	factory   Provider
	ctor      *constructorInfo
	scope     Scope
	qualifier string
	condition func(*Context) bool
	args      map[string]any
	props     []propertyOverride
	seq       int
}

// describeStrategy is used by diagnostics and error messages.
func (b *binding) describeStrategy() string {
	switch b.strategy {
	case strategyConstruct:
		return fmt.Sprintf("construct %v", b.implType)
	case strategyConstant:
		return fmt.Sprintf("constant %T", b.constant)
	case strategyFactory:
		return "factory"
	case strategyConstructor:
		return fmt.Sprintf("constructor %s", b.ctor.describe())
	}
	return "unknown"
}

// Builder is the fluent configuration surface returned by Bind. Every
// modifier returns the builder so calls can be chained. Modifiers apply to
// the registered binding under the registry lock, so configuring a kernel
// concurrently with resolution is safe, if inadvisable.
type Builder[T any] struct {
	kernel *Kernel
	b      *binding
}

// Bind registers a new binding for the contract T and returns a builder to
// configure it. With no further configuration the binding is transient and
// constructs T itself, which requires T to be a struct or pointer-to-struct
// type.
//
//	weave.Bind[Ingredient](k).To(&Sauce{}).InSingletonScope()
func Bind[T any](k *Kernel) *Builder[T] {
	contract := typeOf[T]()
	b := &binding{
		contract: contract,
		strategy: strategyConstruct,
		scope:    ScopeTransient,
	}
	if t, ok := selfImplType(contract); ok {
		b.implType = t
	}
	k.registry.register(b)
	return &Builder[T]{kernel: k, b: b}
}

// To binds the contract to a concrete implementation given as a prototype
// pointer, for example To(&Sauce{}). The implementation must be assignable
// to the contract; a mismatch is a programming error and panics at
// registration time.
func (bl *Builder[T]) To(concrete any) *Builder[T] {
	implType := reflect.TypeOf(concrete)
	if implType == nil || implType.Kind() != reflect.Pointer || implType.Elem().Kind() != reflect.Struct {
		panic(fmt.Sprintf("To requires a pointer-to-struct prototype, got %T", concrete))
	}
	if !implType.AssignableTo(bl.b.contract) && !implType.Elem().AssignableTo(bl.b.contract) {
		panic(fmt.Sprintf("%v does not implement contract %v", implType, bl.b.contract))
	}
	bl.kernel.registry.update(bl.b, func(b *binding) {
		b.strategy = strategyConstruct
		b.implType = implType
	})
	return bl
}

// ToSelf binds the contract to itself. The contract must be a struct or
// pointer-to-struct type.
func (bl *Builder[T]) ToSelf() *Builder[T] {
	t, ok := selfImplType(bl.b.contract)
	if !ok {
		panic(fmt.Sprintf("ToSelf requires a struct contract, got %v", bl.b.contract))
	}
	bl.kernel.registry.update(bl.b, func(b *binding) {
		b.strategy = strategyConstruct
		b.implType = t
	})
	return bl
}

// ToConstant binds the contract to a pre-built value. The value is returned
// unchanged on every resolution: it is never wrapped by interceptors and
// never disposed by the kernel.
func (bl *Builder[T]) ToConstant(value T) *Builder[T] {
	bl.kernel.registry.update(bl.b, func(b *binding) {
		b.strategy = strategyConstant
		b.constant = value
	})
	return bl
}

// ToFactory binds the contract to a factory function invoked on every
// activation with the current resolution context.
func (bl *Builder[T]) ToFactory(factory func(*Context) (T, error)) *Builder[T] {
	bl.kernel.registry.update(bl.b, func(b *binding) {
		b.strategy = strategyFactory
		b.factory = func(ctx *Context) (any, error) {
			return factory(ctx)
		}
	})
	return bl
}

// ToConstructor binds the contract to a constructor function of the form
// func(deps...) *Impl or func(deps...) (*Impl, error). Each parameter is
// resolved from the kernel by its type. Invalid constructor shapes panic at
// registration time.
func (bl *Builder[T]) ToConstructor(fn any) *Builder[T] {
	info := parseConstructor(fn, bl.b.contract)
	bl.kernel.registry.update(bl.b, func(b *binding) {
		b.strategy = strategyConstructor
		b.ctor = info
	})
	return bl
}

// Named attaches a qualifier to the binding so that requests carrying the
// same name select it.
func (bl *Builder[T]) Named(name string) *Builder[T] {
	bl.kernel.registry.update(bl.b, func(b *binding) {
		b.qualifier = name
	})
	return bl
}

// When restricts the binding to resolution contexts accepted by the
// predicate.
func (bl *Builder[T]) When(cond func(*Context) bool) *Builder[T] {
	bl.kernel.registry.update(bl.b, func(b *binding) {
		b.condition = cond
	})
	return bl
}

// WhenInjectedInto restricts the binding to injections into the given owner
// type, supplied as a prototype pointer such as (*Course)(nil).
func (bl *Builder[T]) WhenInjectedInto(owner any) *Builder[T] {
	ownerType := tokenType(owner)
	return bl.When(func(ctx *Context) bool {
		return ctx.Target() != nil && ctx.Target().Owner == ownerType
	})
}

// WhenTargetNamed restricts the binding to injection sites whose member name
// matches.
func (bl *Builder[T]) WhenTargetNamed(name string) *Builder[T] {
	return bl.When(func(ctx *Context) bool {
		return ctx.Target() != nil && ctx.Target().Name == name
	})
}

// WithArgument overrides the dependency injected into the named member
// during construction. The value may be a plain value or a Provider.
// Explicit overrides take precedence over metadata-driven injection; a name
// that matches no injectable member fails activation, so typos surface.
func (bl *Builder[T]) WithArgument(name string, value any) *Builder[T] {
	bl.kernel.registry.update(bl.b, func(b *binding) {
		if b.args == nil {
			b.args = map[string]any{}
		}
		b.args[name] = value
	})
	return bl
}

// WithProperty sets the named exported field after construction. The value
// may be a plain value or a Provider. Unlike WithArgument the field does not
// need to be marked for injection.
func (bl *Builder[T]) WithProperty(name string, value any) *Builder[T] {
	bl.kernel.registry.update(bl.b, func(b *binding) {
		b.props = append(b.props, propertyOverride{name: name, value: value})
	})
	return bl
}

// InSingletonScope caches one instance for the kernel lifetime.
func (bl *Builder[T]) InSingletonScope() *Builder[T] {
	return bl.InScope(ScopeSingleton)
}

// InTransientScope creates a fresh, untracked instance per resolution. This
// is the default.
func (bl *Builder[T]) InTransientScope() *Builder[T] {
	return bl.InScope(ScopeTransient)
}

// InScope places the binding in a named custom scope. Instances are cached
// under the scope name and live until TeardownScope(name) or Dispose.
func (bl *Builder[T]) InScope(scope Scope) *Builder[T] {
	bl.kernel.registry.update(bl.b, func(b *binding) {
		b.scope = scope
	})
	return bl
}

// Intercept attaches an interceptor to the bound contract and returns a
// builder to adjust its order key. Interceptors registered without an
// explicit order run in registration order.
func (bl *Builder[T]) Intercept(i Interceptor) *InterceptBuilder {
	entry := bl.kernel.registry.addInterceptor(bl.b.contract, i)
	return &InterceptBuilder{kernel: bl.kernel, contract: bl.b.contract, entry: entry}
}

// InterceptBuilder configures a single interceptor binding.
type InterceptBuilder struct {
	kernel   *Kernel
	contract reflect.Type
	entry    *interceptorEntry
}

// InOrder sets the interceptor's order key. Chains execute in ascending
// order; ties run in registration order.
func (ib *InterceptBuilder) InOrder(order int) *InterceptBuilder {
	ib.kernel.registry.updateInterceptor(ib.contract, ib.entry, func(e *interceptorEntry) {
		e.order = order
	})
	return ib
}

// selfImplType derives the pointer-to-struct implementation type when a
// contract can be constructed directly.
func selfImplType(contract reflect.Type) (reflect.Type, bool) {
	switch {
	case contract.Kind() == reflect.Struct:
		return reflect.PointerTo(contract), true
	case contract.Kind() == reflect.Pointer && contract.Elem().Kind() == reflect.Struct:
		return contract, true
	}
	return nil, false
}

// tokenType extracts the contract type from a prototype pointer like
// (*Course)(nil), or from a reflect.Type passed through directly.
func tokenType(token any) reflect.Type {
	if t, ok := token.(reflect.Type); ok {
		return t
	}
	t := reflect.TypeOf(token)
	if t == nil {
		panic("nil type token")
	}
	if t.Kind() == reflect.Pointer {
		return t.Elem()
	}
	return t
}

func typeOf[T any]() reflect.Type {
	return reflect.TypeOf((*T)(nil)).Elem()
}
