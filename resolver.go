package weave

import (
	"fmt"
	"reflect"

	"github.com/gburgyan/go-timing"
)

var errType = reflect.TypeOf((*error)(nil)).Elem()

// resolve walks the registry to pick exactly one applicable binding for the
// context and produces an instance under the binding's scope.
func (k *Kernel) resolve(ctx *Context) (any, error) {
	if ctx.inCycle() {
		return nil, &CycleError{Path: ctx.path()}
	}
	b, err := k.registry.lookup(ctx)
	if err != nil {
		return nil, err
	}
	return k.resolveBinding(b, ctx)
}

// resolveBinding applies the binding's scope: transient activates every
// time, anything else goes through the scope cache so the same instance is
// constructed at most once per (binding, scope).
func (k *Kernel) resolveBinding(b *binding, ctx *Context) (any, error) {
	if b.scope == ScopeTransient {
		return k.activate(b, ctx)
	}
	return k.scopes.getOrCreate(b, b.scope, func() (any, error) {
		return k.activate(b, ctx)
	})
}

// resolveAll resolves every binding registered for the contract, in
// registration order. Used for collection members and GetAll. Each element is
// cycle-checked against the chain, so a collection member that recursively
// contains its own contract reports a CycleError instead of re-entering the
// scope's creation gate.
func (k *Kernel) resolveAll(ctx *Context, contract reflect.Type) ([]any, error) {
	bindings := k.registry.all(contract)
	out := make([]any, 0, len(bindings))
	for _, b := range bindings {
		child := ctx.child(contract, b.qualifier, ctx.target)
		if child.inCycle() {
			return nil, &CycleError{Path: child.path()}
		}
		v, err := k.resolveBinding(b, child)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

// activate runs the binding's construction strategy and, for everything but
// constants, wraps the result in the contract's interceptor chain.
func (k *Kernel) activate(b *binding, ctx *Context) (any, error) {
	if k.timeCtx != nil {
		_, complete := timing.Start(k.timeCtx, "activate "+b.contract.String())
		defer complete()
	}

	switch b.strategy {
	case strategyConstant:
		// Constants are returned unchanged every time: no interception,
		// no tracking.
		return b.constant, nil

	case strategyFactory:
		v, err := b.factory(ctx)
		if err != nil {
			return nil, &ActivationError{Contract: b.contract, Cause: err}
		}
		return k.wrap(b.contract, v), nil

	case strategyConstructor:
		v, err := k.invokeConstructor(b, ctx)
		if err != nil {
			return nil, err
		}
		return k.wrap(b.contract, v), nil

	default:
		v, err := k.construct(b, ctx)
		if err != nil {
			return nil, err
		}
		return k.wrap(b.contract, v), nil
	}
}

// construct instantiates the bound implementation type and fills its
// members: argument overrides first, then metadata-declared injection points
// not explicitly overridden, then property overrides, in declaration order.
func (k *Kernel) construct(b *binding, ctx *Context) (any, error) {
	if b.implType == nil {
		return nil, &ActivationError{
			Contract: b.contract,
			Cause:    fmt.Errorf("binding has no implementation type; use To, ToConstant, ToFactory or ToConstructor"),
		}
	}
	elem := b.implType.Elem()
	pv := reflect.New(elem)

	overridden := map[string]bool{}
	for name := range b.args {
		overridden[name] = true
	}
	for _, p := range b.props {
		overridden[p.name] = true
	}

	members := k.members.InjectableMembers(elem)
	if len(b.args) > 0 {
		known := make(map[string]bool, len(members))
		for _, m := range members {
			known[m.Field.Name] = true
		}
		for name := range b.args {
			if !known[name] {
				return nil, &ActivationError{
					Contract: b.contract,
					Cause:    fmt.Errorf("no injectable member %q on %v", name, elem),
				}
			}
		}
	}

	for _, m := range members {
		field := pv.Elem().FieldByIndex(m.Field.Index)
		target := &Target{Name: m.Field.Name, Type: m.Field.Type, Owner: elem}
		child := ctx.child(m.Field.Type, m.Qualifier, target)

		if raw, ok := b.args[m.Field.Name]; ok {
			v, err := materialize(raw, child)
			if err != nil {
				return nil, &ActivationError{Contract: b.contract, Cause: err}
			}
			if err := setField(field, v, m.Field.Name); err != nil {
				return nil, &ActivationError{Contract: b.contract, Cause: err}
			}
			continue
		}
		if overridden[m.Field.Name] {
			// Covered by a property override applied below.
			continue
		}

		v, err := k.resolveMember(child, m)
		if err != nil {
			if m.Optional {
				if _, ok := err.(*NoBindingError); ok {
					continue
				}
			}
			return nil, err
		}
		if err := setField(field, v, m.Field.Name); err != nil {
			return nil, &ActivationError{Contract: b.contract, Cause: err}
		}
	}

	for _, p := range b.props {
		field := pv.Elem().FieldByName(p.name)
		if !field.IsValid() {
			return nil, &ActivationError{
				Contract: b.contract,
				Cause:    fmt.Errorf("no such property %q on %v", p.name, elem),
			}
		}
		target := &Target{Name: p.name, Type: field.Type(), Owner: elem}
		v, err := materialize(p.value, ctx.child(field.Type(), "", target))
		if err != nil {
			return nil, &ActivationError{Contract: b.contract, Cause: err}
		}
		if err := setField(field, v, p.name); err != nil {
			return nil, &ActivationError{Contract: b.contract, Cause: err}
		}
	}

	// A struct contract bound to itself receives the constructed value, not
	// the pointer the builder worked through.
	if !b.implType.AssignableTo(b.contract) {
		return pv.Elem().Interface(), nil
	}
	return pv.Interface(), nil
}

// resolveMember resolves one injectable member. A member declared as a slice
// of a bound contract requests multiplicity explicitly and receives every
// registered binding in registration order; everything else is a single
// resolution under the usual exactly-one rule.
func (k *Kernel) resolveMember(ctx *Context, m Member) (any, error) {
	ft := m.Field.Type
	if ft.Kind() == reflect.Slice && k.registry.has(ft.Elem()) {
		instances, err := k.resolveAll(ctx, ft.Elem())
		if err != nil {
			return nil, err
		}
		slice := reflect.MakeSlice(ft, 0, len(instances))
		for _, inst := range instances {
			slice = reflect.Append(slice, reflect.ValueOf(inst))
		}
		return slice.Interface(), nil
	}
	return k.resolve(ctx)
}

// invokeConstructor calls a constructor-function binding, resolving each
// parameter from the kernel by type.
func (k *Kernel) invokeConstructor(b *binding, ctx *Context) (any, error) {
	info := b.ctor
	params := make([]reflect.Value, len(info.params))
	for i, pt := range info.params {
		target := &Target{Name: fmt.Sprintf("arg%d", i), Type: pt, Owner: info.result}
		v, err := k.resolve(ctx.child(pt, "", target))
		if err != nil {
			return nil, err
		}
		params[i] = reflect.ValueOf(v)
	}
	results := info.fn.Call(params)
	if info.returnsError && !results[1].IsNil() {
		return nil, &ActivationError{Contract: b.contract, Cause: results[1].Interface().(error)}
	}
	return results[0].Interface(), nil
}

// constructorInfo holds the pre-parsed shape of a constructor function.
type constructorInfo struct {
	fn           reflect.Value
	params       []reflect.Type
	result       reflect.Type
	returnsError bool
}

// parseConstructor validates a constructor function against its contract.
// Invalid shapes panic: there is no public way to reach resolution with a
// malformed constructor, so this is a registration-time programming error.
func parseConstructor(fn any, contract reflect.Type) *constructorInfo {
	t := reflect.TypeOf(fn)
	if t == nil || t.Kind() != reflect.Func {
		panic(fmt.Sprintf("constructor must be a function, got %T", fn))
	}
	switch t.NumOut() {
	case 1:
	case 2:
		if !t.Out(1).AssignableTo(errType) {
			panic(fmt.Sprintf("constructor's second result must be error, got %v", t.Out(1)))
		}
	default:
		panic(fmt.Sprintf("constructor must return (T) or (T, error), got %d results", t.NumOut()))
	}
	if !t.Out(0).AssignableTo(contract) {
		panic(fmt.Sprintf("constructor result %v is not assignable to contract %v", t.Out(0), contract))
	}
	params := make([]reflect.Type, t.NumIn())
	for i := range params {
		params[i] = t.In(i)
	}
	return &constructorInfo{
		fn:           reflect.ValueOf(fn),
		params:       params,
		result:       t.Out(0),
		returnsError: t.NumOut() == 2,
	}
}

func (ci *constructorInfo) describe() string {
	return ci.fn.Type().String()
}

// materialize turns a value-or-provider override into a concrete value.
func materialize(raw any, ctx *Context) (any, error) {
	if p, ok := raw.(Provider); ok {
		return p(ctx)
	}
	return raw, nil
}

func setField(field reflect.Value, v any, name string) error {
	if !field.CanSet() {
		return fmt.Errorf("member %q is not settable", name)
	}
	if v == nil {
		field.Set(reflect.Zero(field.Type()))
		return nil
	}
	rv := reflect.ValueOf(v)
	if !rv.Type().AssignableTo(field.Type()) {
		return fmt.Errorf("value of type %v is not assignable to member %q (%v)", rv.Type(), name, field.Type())
	}
	field.Set(rv)
	return nil
}
