package weave

import (
	"fmt"
	"reflect"
)

// Target describes the injection site being filled by a resolution: the
// member name, its declared type, and the type that owns it. The root request
// of a resolution has no target.
type Target struct {
	Name  string
	Type  reflect.Type
	Owner reflect.Type
}

// Context is the ephemeral state of one resolution attempt. A fresh context
// is created per request, and child contexts are created for each dependency
// resolved along the way, forming a chain back to the root request. The chain
// is what condition predicates inspect and what cycle detection walks.
type Context struct {
	kernel    *Kernel
	contract  reflect.Type
	qualifier string
	target    *Target
	parent    *Context
}

// Contract returns the type requested by this resolution.
func (c *Context) Contract() reflect.Type {
	return c.contract
}

// Qualifier returns the binding name requested, or "" for an unqualified
// request.
func (c *Context) Qualifier() string {
	return c.qualifier
}

// Target returns the injection site being filled, or nil at the root of a
// resolution.
func (c *Context) Target() *Target {
	return c.target
}

// Parent returns the context that requested this resolution, or nil at the
// root.
func (c *Context) Parent() *Context {
	return c.parent
}

// IsRoot reports whether this context is the root of its resolution chain.
func (c *Context) IsRoot() bool {
	return c.parent == nil
}

// From resolves a further dependency within an ongoing resolution, keeping
// the context chain intact so that conditions and cycle detection keep
// working. This is the way factory functions pull their own dependencies:
//
//	Bind[Course](k).ToFactory(func(ctx *weave.Context) (Course, error) {
//	    sauce, err := weave.From[Ingredient](ctx)
//	    ...
//	})
func From[T any](ctx *Context) (T, error) {
	var zero T
	v, err := ctx.kernel.resolve(ctx.child(typeOf[T](), "", nil))
	if err != nil {
		return zero, err
	}
	return v.(T), nil
}

// child creates the context for a dependency of this resolution.
func (c *Context) child(contract reflect.Type, qualifier string, target *Target) *Context {
	return &Context{
		kernel:    c.kernel,
		contract:  contract,
		qualifier: qualifier,
		target:    target,
		parent:    c,
	}
}

// inCycle reports whether the same contract and qualifier is already being
// resolved somewhere up the chain.
func (c *Context) inCycle() bool {
	for p := c.parent; p != nil; p = p.parent {
		if p.contract == c.contract && p.qualifier == c.qualifier {
			return true
		}
	}
	return false
}

// path renders the resolution chain root-first for cycle error reporting.
func (c *Context) path() []string {
	var reversed []string
	for p := c; p != nil; p = p.parent {
		reversed = append(reversed, formatRequest(p.contract, p.qualifier))
	}
	path := make([]string, 0, len(reversed))
	for i := len(reversed) - 1; i >= 0; i-- {
		path = append(path, reversed[i])
	}
	return path
}

func formatRequest(contract reflect.Type, qualifier string) string {
	if qualifier != "" {
		return fmt.Sprintf("%v(%q)", contract, qualifier)
	}
	return fmt.Sprintf("%v", contract)
}
