package weave

import (
	"fmt"
	"reflect"
	"strings"
)

// NoBindingError is returned when a resolution request matches zero bindings
// for the requested contract and qualifier.
type NoBindingError struct {
	Contract  reflect.Type
	Qualifier string
}

func (e *NoBindingError) Error() string {
	if e.Qualifier != "" {
		return fmt.Sprintf("no binding found for contract %v named %q", e.Contract, e.Qualifier)
	}
	return fmt.Sprintf("no binding found for contract %v", e.Contract)
}

// AmbiguousBindingError is returned when more than one binding matches a
// resolution request and nothing disambiguates between them. The kernel never
// picks one silently.
type AmbiguousBindingError struct {
	Contract  reflect.Type
	Qualifier string
	Count     int
}

func (e *AmbiguousBindingError) Error() string {
	if e.Qualifier != "" {
		return fmt.Sprintf("%d bindings match contract %v named %q; add a qualifier or condition to disambiguate", e.Count, e.Contract, e.Qualifier)
	}
	return fmt.Sprintf("%d bindings match contract %v; add a qualifier or condition to disambiguate", e.Count, e.Contract)
}

// CycleError is returned when a contract transitively depends on itself
// within a single resolution.
type CycleError struct {
	Path []string
}

func (e *CycleError) Error() string {
	if len(e.Path) == 0 {
		return "cyclic dependency detected"
	}
	return fmt.Sprintf("cyclic dependency detected: %s", strings.Join(e.Path, " -> "))
}

// ActivationError wraps a failure raised inside a factory, constructor or
// member-injection step while constructing an instance.
type ActivationError struct {
	Contract reflect.Type
	Cause    error
}

func (e *ActivationError) Error() string {
	return fmt.Sprintf("activation of %v failed: %v", e.Contract, e.Cause)
}

func (e *ActivationError) Unwrap() error {
	return e.Cause
}

// InterceptionError reports a violation of chain discipline, such as an
// interceptor calling Proceed twice, or an invocation that cannot be
// dispatched to its target.
type InterceptionError struct {
	Method string
	Reason string
}

func (e *InterceptionError) Error() string {
	if e.Method == "" {
		return fmt.Sprintf("interception error: %s", e.Reason)
	}
	return fmt.Sprintf("interception error in %s: %s", e.Method, e.Reason)
}

// DisposalError collects the individual failures encountered while tearing
// down a scope. Teardown disposes every remaining instance even when some
// disposals fail.
type DisposalError struct {
	Errors []error
}

func (e *DisposalError) Error() string {
	if len(e.Errors) == 1 {
		return fmt.Sprintf("disposal failed: %v", e.Errors[0])
	}
	b := strings.Builder{}
	b.WriteString(fmt.Sprintf("disposal failed with %d errors:", len(e.Errors)))
	for _, err := range e.Errors {
		b.WriteString("\n  ")
		b.WriteString(err.Error())
	}
	return b.String()
}

func (e *DisposalError) Unwrap() []error {
	return e.Errors
}

// ValidationError collects the problems found by Kernel.Validate.
type ValidationError struct {
	Errors []error
}

func (e *ValidationError) Error() string {
	if len(e.Errors) == 1 {
		return fmt.Sprintf("validation failed: %v", e.Errors[0])
	}
	b := strings.Builder{}
	b.WriteString(fmt.Sprintf("validation failed with %d errors:", len(e.Errors)))
	for _, err := range e.Errors {
		b.WriteString("\n  ")
		b.WriteString(err.Error())
	}
	return b.String()
}

func (e *ValidationError) Unwrap() []error {
	return e.Errors
}
