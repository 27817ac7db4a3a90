package weave

import (
	"fmt"
	"reflect"
	"sort"
)

// Interceptor is a unit of cross-cutting logic wrapped around a method
// invocation. An interceptor decides whether to call inv.Proceed(), which
// runs the rest of the chain and finally the real method. Not calling
// Proceed short-circuits the call: later links and the target never execute,
// and whatever the interceptor placed in the result slot is returned.
// Catching the error returned by Proceed and substituting results is the
// designed mechanism for translating a downstream failure into a normal
// outcome.
type Interceptor interface {
	Intercept(inv *Invocation) error
}

// InterceptorFunc adapts a plain function to the Interceptor interface.
type InterceptorFunc func(inv *Invocation) error

func (f InterceptorFunc) Intercept(inv *Invocation) error {
	return f(inv)
}

type interceptorEntry struct {
	interceptor Interceptor
	order       int
	seq         int
}

// InvocationState tracks where an invocation is in its lifecycle.
type InvocationState int

const (
	// StatePending is the state before the chain starts executing.
	StatePending InvocationState = iota
	// StateInLink means some interceptor link is currently executing.
	StateInLink
	// StateCompleted is reached by running off the end of the chain or by a
	// link short-circuiting cleanly.
	StateCompleted
	// StateFaulted is reached when an error exits the top-level invoke
	// without any link translating it.
	StateFaulted
)

func (s InvocationState) String() string {
	switch s {
	case StatePending:
		return "pending"
	case StateInLink:
		return "in-link"
	case StateCompleted:
		return "completed"
	case StateFaulted:
		return "faulted"
	}
	return "unknown"
}

// Invocation is the reified call passed through an interceptor chain: the
// positional arguments, a mutable result slot, and the Proceed operation
// that forwards control to the next link.
type Invocation struct {
	// Method is the name of the method being invoked, or the contract's
	// type string for function contracts.
	Method string

	// Target is the real instance behind the chain, nil for function
	// contracts.
	Target any

	// Args are the positional arguments. Links may inspect or replace them
	// before proceeding.
	Args []any

	chain      []Interceptor
	terminal   func(args []any) ([]any, error)
	index      int
	proceeded  []bool
	results    []any
	resultsSet bool
	state      InvocationState
}

// Proceed forwards control to the next link in the chain, or to the real
// method at the end of it, and returns whatever error that call produced.
// Each link may call Proceed at most once; a second call faults the
// invocation with an InterceptionError.
func (inv *Invocation) Proceed() error {
	i := inv.index
	if i >= 0 {
		if inv.proceeded[i] {
			inv.state = StateFaulted
			return &InterceptionError{Method: inv.Method, Reason: "Proceed called more than once by the same link"}
		}
		inv.proceeded[i] = true
	}
	next := i + 1
	if next < len(inv.chain) {
		inv.index = next
		err := inv.chain[next].Intercept(inv)
		inv.index = i
		return err
	}
	res, err := inv.terminal(inv.Args)
	if err != nil {
		return err
	}
	if !inv.resultsSet {
		inv.results = res
		inv.resultsSet = true
	}
	return nil
}

// SetResults fills the invocation's result slot. A link that sets results
// and returns without proceeding short-circuits the call cleanly; a link
// that sets results after catching an error from Proceed translates the
// failure into a normal outcome.
func (inv *Invocation) SetResults(vals ...any) {
	inv.results = vals
	inv.resultsSet = true
}

// Results returns the invocation's result slot. It is nil until the real
// method has run or a link has called SetResults.
func (inv *Invocation) Results() []any {
	return inv.results
}

// State reports the invocation's lifecycle state.
func (inv *Invocation) State() InvocationState {
	return inv.state
}

// invoke drives an invocation through the chain: link 0 first, each link
// deciding whether to proceed. Visits are in strictly ascending order and no
// link is re-entered after it returns.
func (k *Kernel) invoke(chain []Interceptor, inv *Invocation) ([]any, error) {
	inv.chain = chain
	inv.proceeded = make([]bool, len(chain))
	inv.index = -1
	inv.state = StateInLink
	err := inv.Proceed()
	if err != nil {
		inv.state = StateFaulted
		return nil, err
	}
	inv.state = StateCompleted
	return inv.results, nil
}

// chainFor returns the ordered interceptor chain for a contract: ascending
// order key, ties in registration order. Chains are built once and cached;
// registering another interceptor for the contract drops the cache entry.
func (k *Kernel) chainFor(contract reflect.Type) []Interceptor {
	if cached, ok := k.chains.Load(contract); ok {
		return cached.([]Interceptor)
	}
	entries := k.registry.interceptorsFor(contract)
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].order < entries[j].order
	})
	chain := make([]Interceptor, 0, len(entries))
	for _, e := range entries {
		chain = append(chain, e.interceptor)
	}
	actual, _ := k.chains.LoadOrStore(contract, chain)
	return actual.([]Interceptor)
}

// Invoke dispatches a method call on a resolved instance through the
// contract's interceptor chain. The real method runs as the terminal link.
// This is the dispatch path for interface contracts, where Go cannot
// synthesize a transparent proxy:
//
//	res, err := weave.Invoke[Ingredient](k, sauce, "Prepare", rawInput)
//
// Exceptions from the target propagate unchanged unless a link catches the
// error from Proceed and substitutes results.
func Invoke[T any](k *Kernel, target T, method string, args ...any) ([]any, error) {
	m := reflect.ValueOf(target).MethodByName(method)
	if !m.IsValid() {
		return nil, &InterceptionError{Method: method, Reason: fmt.Sprintf("no such method on %T", target)}
	}
	inv := &Invocation{
		Method: method,
		Target: target,
		Args:   args,
		terminal: func(args []any) ([]any, error) {
			return callValue(m, args)
		},
	}
	return k.invoke(k.chainFor(typeOf[T]()), inv)
}

// wrap applies the contract's interceptor chain to a freshly activated
// instance. Function-typed contracts are wrapped transparently; anything
// else is returned as-is and intercepted through Invoke.
func (k *Kernel) wrap(contract reflect.Type, v any) any {
	chain := k.chainFor(contract)
	if len(chain) == 0 {
		return v
	}
	if contract.Kind() != reflect.Func {
		return v
	}
	return k.wrapFunc(contract, v, chain)
}

// wrapFunc builds a proxy for a function-typed contract. Calling the proxy
// reifies the call into an Invocation, runs the chain, and maps the result
// slot back onto the function's return values. If the signature has an error
// result, chain errors surface there; otherwise they panic, since there is
// nowhere for them to go.
func (k *Kernel) wrapFunc(contract reflect.Type, fn any, chain []Interceptor) any {
	fv := reflect.ValueOf(fn)
	proxy := reflect.MakeFunc(contract, func(in []reflect.Value) []reflect.Value {
		args := make([]any, len(in))
		for i, v := range in {
			args[i] = v.Interface()
		}
		inv := &Invocation{
			Method: contract.String(),
			Args:   args,
			terminal: func(args []any) ([]any, error) {
				return callValue(fv, args)
			},
		}
		results, err := k.invoke(chain, inv)
		return assembleOuts(contract, results, err)
	})
	return proxy.Interface()
}

// callValue performs the reflective call behind a terminal link, splitting a
// trailing error result out of the return values.
func callValue(fv reflect.Value, args []any) ([]any, error) {
	ft := fv.Type()
	if len(args) != ft.NumIn() {
		return nil, &InterceptionError{
			Method: ft.String(),
			Reason: fmt.Sprintf("argument count mismatch: got %d, want %d", len(args), ft.NumIn()),
		}
	}
	in := make([]reflect.Value, len(args))
	for i, a := range args {
		if a == nil {
			in[i] = reflect.Zero(ft.In(i))
			continue
		}
		in[i] = reflect.ValueOf(a)
	}
	outs := fv.Call(in)

	var err error
	results := make([]any, 0, len(outs))
	for i, out := range outs {
		if i == len(outs)-1 && ft.Out(i).AssignableTo(errType) {
			if !out.IsNil() {
				err = out.Interface().(error)
			}
			continue
		}
		results = append(results, out.Interface())
	}
	if err != nil {
		return nil, err
	}
	return results, nil
}

// assembleOuts maps a result slot back onto a function signature's return
// values.
func assembleOuts(ft reflect.Type, results []any, err error) []reflect.Value {
	outs := make([]reflect.Value, ft.NumOut())
	next := 0
	for i := 0; i < ft.NumOut(); i++ {
		ot := ft.Out(i)
		if i == ft.NumOut()-1 && ot.AssignableTo(errType) {
			if err != nil {
				outs[i] = reflect.ValueOf(&err).Elem()
			} else {
				outs[i] = reflect.Zero(ot)
			}
			continue
		}
		if next < len(results) && results[next] != nil {
			outs[i] = reflect.ValueOf(results[next]).Convert(ot)
		} else {
			outs[i] = reflect.Zero(ot)
		}
		next++
	}
	if err != nil && (ft.NumOut() == 0 || !ft.Out(ft.NumOut()-1).AssignableTo(errType)) {
		panic(err)
	}
	return outs
}
