package coupling

import (
	"strings"

	"github.com/flexinfer/nemsgen/pkg/types"
)

// Mediation routes data from sources through the mediator's functions to
// targets. Any of the three lists may be empty.
type Mediation struct {
	Mediator  *ModelEntry
	Sources   []*ModelEntry
	Functions []string
	Targets   []*ModelEntry
	Method    types.RemapMethod
}

func (m *Mediation) method() types.RemapMethod {
	if m.Method == "" {
		return types.Redistribute
	}
	return m.Method
}

// SourceConnections derives the source -> mediator legs.
func (m *Mediation) SourceConnections() []Connection {
	out := make([]Connection, 0, len(m.Sources))
	for _, src := range m.Sources {
		out = append(out, Connection{Source: src, Target: m.Mediator, Method: m.method()})
	}
	return out
}

// TargetConnections derives the mediator -> target legs.
func (m *Mediation) TargetConnections() []Connection {
	out := make([]Connection, 0, len(m.Targets))
	for _, dst := range m.Targets {
		out = append(out, Connection{Source: m.Mediator, Target: dst, Method: m.method()})
	}
	return out
}

// Route returns the type codes along the mediation, e.g. [ATM MED OCN].
func (m *Mediation) Route() []string {
	route := make([]string, 0, len(m.Sources)+len(m.Targets)+1)
	for _, src := range m.Sources {
		route = append(route, src.Type().Code())
	}
	route = append(route, types.Mediator.Code())
	for _, dst := range m.Targets {
		route = append(route, dst.Type().Code())
	}
	return route
}

// SequenceText renders source legs, then one "MED <function>" line per
// function, then target legs.
func (m *Mediation) SequenceText() string {
	lines := make([]string, 0, len(m.Sources)+len(m.Functions)+len(m.Targets))
	for _, c := range m.SourceConnections() {
		lines = append(lines, c.SequenceText())
	}
	for _, fn := range m.Functions {
		lines = append(lines, types.Mediator.Code()+" "+fn)
	}
	for _, c := range m.TargetConnections() {
		lines = append(lines, c.SequenceText())
	}
	return strings.Join(lines, "\n")
}
