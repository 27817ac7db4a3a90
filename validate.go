package weave

import (
	"fmt"
	"reflect"
)

// Validate statically checks the binding graph without constructing
// anything: every injectable member of every construct binding must have at
// least one candidate binding, and no construct binding may transitively
// require its own contract. Problems are collected into a ValidationError.
//
// Conditions cannot be evaluated without a live resolution context, so a
// conditional binding counts as a candidate here; ambiguity between
// conditional bindings is a runtime concern Validate does not report.
func (k *Kernel) Validate() error {
	var errs []error
	for _, contract := range k.registry.contracts() {
		for _, b := range k.registry.all(contract) {
			visiting := map[reflect.Type]bool{}
			k.validateBinding(b, visiting, &errs)
		}
	}
	if len(errs) > 0 {
		return &ValidationError{Errors: errs}
	}
	return nil
}

func (k *Kernel) validateBinding(b *binding, visiting map[reflect.Type]bool, errs *[]error) {
	if b.strategy != strategyConstruct || b.implType == nil {
		// Factories and constructors resolve their dependencies at
		// activation time; there is nothing to walk statically.
		return
	}
	if visiting[b.contract] {
		*errs = append(*errs, fmt.Errorf("contract %v transitively requires itself", b.contract))
		return
	}
	visiting[b.contract] = true
	defer delete(visiting, b.contract)

	elem := b.implType.Elem()
	for _, m := range k.members.InjectableMembers(elem) {
		if b.args != nil {
			if _, ok := b.args[m.Field.Name]; ok {
				continue
			}
		}
		ft := m.Field.Type
		if ft.Kind() == reflect.Slice && k.registry.has(ft.Elem()) {
			for _, candidate := range k.registry.all(ft.Elem()) {
				k.validateBinding(candidate, visiting, errs)
			}
			continue
		}
		candidates := k.candidatesFor(ft, m.Qualifier)
		if len(candidates) == 0 {
			if !m.Optional {
				*errs = append(*errs, fmt.Errorf("member %s.%s: %w", elem, m.Field.Name,
					&NoBindingError{Contract: ft, Qualifier: m.Qualifier}))
			}
			continue
		}
		for _, candidate := range candidates {
			k.validateBinding(candidate, visiting, errs)
		}
	}
}

func (k *Kernel) candidatesFor(contract reflect.Type, qualifier string) []*binding {
	var out []*binding
	for _, b := range k.registry.all(contract) {
		if qualifier != "" && b.qualifier != qualifier {
			continue
		}
		out = append(out, b)
	}
	return out
}
