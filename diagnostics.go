package weave

import (
	"fmt"
	"sort"
	"strings"
)

// Status is a diagnostic tool that returns a string describing the kernel's
// registry: each bound contract with its construction strategy, scope,
// qualifier and condition, plus the number of interceptors attached to it.
// Factory and constructor bindings are described by their signatures rather
// than raw addresses so the output is stable.
func (k *Kernel) Status() string {
	var lines []string
	for _, contract := range k.registry.contracts() {
		for _, b := range k.registry.all(contract) {
			line := strings.Builder{}
			line.WriteString(fmt.Sprintf("%v - %s - scope %s", contract, b.describeStrategy(), b.scope))
			if b.qualifier != "" {
				line.WriteString(fmt.Sprintf(" - named %q", b.qualifier))
			}
			if b.condition != nil {
				line.WriteString(" - conditional")
			}
			if n := len(k.registry.interceptorsFor(contract)); n > 0 {
				line.WriteString(fmt.Sprintf(" - %d interceptor(s)", n))
			}
			lines = append(lines, line.String())
		}
	}
	sort.Strings(lines)
	return strings.Join(lines, "\n")
}
