package coupling

import (
	"fmt"
	"strings"

	"github.com/flexinfer/nemsgen/pkg/types"
)

// Earth is the top-level component list of a modeling system. It is a
// snapshot; RunSequence.Earth builds a new one on every call.
type Earth struct {
	models     map[types.EntryType]*ModelEntry
	attributes *types.Attributes
}

// Get returns the entry registered for t.
func (e *Earth) Get(t types.EntryType) (*ModelEntry, bool) {
	m, ok := e.models[t]
	return m, ok
}

// Models returns the entries in component-list order.
func (e *Earth) Models() []*ModelEntry {
	var out []*ModelEntry
	for _, t := range types.EntryTypes() {
		if m, ok := e.models[t]; ok {
			out = append(out, m)
		}
	}
	return out
}

// ComponentList returns the codes of the present components.
func (e *Earth) ComponentList() []string {
	models := e.Models()
	codes := make([]string, 0, len(models))
	for _, m := range models {
		codes = append(codes, m.Type().Code())
	}
	return codes
}

// Attributes returns the EARTH attributes.
func (e *Earth) Attributes() *types.Attributes { return e.attributes }

func (e *Earth) String() string {
	var b strings.Builder
	b.WriteString("EARTH_component_list: " + strings.Join(e.ComponentList(), " ") + "\n")
	b.WriteString("EARTH_attributes::\n")
	for _, key := range e.attributes.Keys() {
		v, _ := e.attributes.Get(key)
		fmt.Fprintf(&b, "%s%s = %s\n", indentation, key, v.Wire())
	}
	b.WriteString("::")
	return b.String()
}
