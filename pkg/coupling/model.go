package coupling

import (
	"fmt"
	"strings"

	"github.com/flexinfer/nemsgen/pkg/types"
)

// DefaultMediatorName is the implementation name given to a mediator that is
// materialized without one.
const DefaultMediatorName = "implicit"

// indentation is the two-space unit of every nested block.
const indentation = "  "

// ModelEntry is a single coupled component with a processor allocation.
//
// Entries form a doubly linked chain whose processor ranges partition a
// contiguous zero-based range. The chain is normally maintained by a
// RunSequence, but the link methods can be used directly.
type ModelEntry struct {
	entryType  types.EntryType
	name       string
	processors int
	attributes *types.Attributes
	forcing    string

	// start is -1 until the entry is first linked.
	start    int
	previous *ModelEntry
	next     *ModelEntry
}

// EntryOption configures a ModelEntry at construction.
type EntryOption func(*ModelEntry)

// WithAttribute sets a single attribute.
func WithAttribute(key string, value types.Value) EntryOption {
	return func(m *ModelEntry) {
		m.attributes.Set(key, value)
	}
}

// WithAttributes merges a set of attributes in order.
func WithAttributes(attrs *types.Attributes) EntryOption {
	return func(m *ModelEntry) {
		m.attributes.Merge(attrs)
	}
}

// WithVerbosity sets the Verbosity attribute.
func WithVerbosity(v types.Verbosity) EntryOption {
	return WithAttribute(types.VerbosityKey, types.VerbosityValue(v))
}

// WithForcing marks the entry as a forcing entry reading from path.
func WithForcing(path string) EntryOption {
	return func(m *ModelEntry) {
		m.forcing = path
	}
}

// NewModelEntry creates an unlinked entry. A Verbosity attribute is added at
// the front when none of the options supply one.
func NewModelEntry(t types.EntryType, name string, processors int, opts ...EntryOption) (*ModelEntry, error) {
	if !t.Valid() {
		return nil, fmt.Errorf("%w: %d", types.ErrUnknownEntryType, int(t))
	}
	if err := checkName(name); err != nil {
		return nil, err
	}
	if processors < 1 {
		return nil, fmt.Errorf("%w: %s %q has %d", ErrInvalidProcessors, t.Code(), name, processors)
	}

	m := &ModelEntry{
		entryType:  t,
		name:       name,
		processors: processors,
		attributes: &types.Attributes{},
		start:      -1,
	}
	for _, opt := range opts {
		opt(m)
	}
	if !m.attributes.Has(types.VerbosityKey) {
		m.attributes.SetFirst(types.VerbosityKey, types.VerbosityValue(types.DefaultVerbosity))
	}
	return m, nil
}

// checkName rejects names that do not survive a render and parse.
func checkName(name string) error {
	switch {
	case name == "":
		return fmt.Errorf("%w: name is required", ErrInvalidName)
	case strings.TrimSpace(name) != name:
		return fmt.Errorf("%w: %q has surrounding whitespace", ErrInvalidName, name)
	case strings.ContainsAny(name, "\r\n"):
		return fmt.Errorf("%w: %q contains a line break", ErrInvalidName, name)
	}
	return nil
}

// NewMediator creates a mediator entry. An empty name becomes
// DefaultMediatorName and a non-positive processor count becomes 1.
func NewMediator(name string, processors int, opts ...EntryOption) (*ModelEntry, error) {
	if name == "" {
		name = DefaultMediatorName
	}
	if processors < 1 {
		processors = 1
	}
	return NewModelEntry(types.Mediator, name, processors, opts...)
}

// Type returns the component type.
func (m *ModelEntry) Type() types.EntryType { return m.entryType }

// Name returns the implementation name (e.g. "adcirc").
func (m *ModelEntry) Name() string { return m.name }

// Processors returns the number of processors assigned.
func (m *ModelEntry) Processors() int { return m.processors }

// Attributes returns the live attribute set.
func (m *ModelEntry) Attributes() *types.Attributes { return m.attributes }

// Forcing returns the forcing path, or "" when this is not a forcing entry.
func (m *ModelEntry) Forcing() string { return m.forcing }

// IsForcing reports whether the entry supplies precomputed input data.
func (m *ModelEntry) IsForcing() bool { return m.forcing != "" }

// Previous returns the upstream neighbour in the chain.
func (m *ModelEntry) Previous() *ModelEntry { return m.previous }

// Next returns the downstream neighbour in the chain.
func (m *ModelEntry) Next() *ModelEntry { return m.next }

// Linked reports whether the entry has been placed in a chain.
func (m *ModelEntry) Linked() bool { return m.start >= 0 }

// StartProcessor returns the first processor index, or -1 when unlinked.
func (m *ModelEntry) StartProcessor() int { return m.start }

// EndProcessor returns the last processor index, or -1 when unlinked.
func (m *ModelEntry) EndProcessor() int {
	if m.start < 0 {
		return -1
	}
	return m.start + m.processors - 1
}

// SetProcessors changes the entry's width and shifts every downstream entry.
func (m *ModelEntry) SetProcessors(n int) error {
	if n < 1 {
		return fmt.Errorf("%w: %s %q given %d", ErrInvalidProcessors, m.entryType.Code(), m.name, n)
	}
	if n == m.processors {
		return nil
	}
	m.processors = n
	m.cascade()
	return nil
}

// SetPrevious attaches the entry after p, or makes it a chain head at
// processor 0 when p is nil. If p already has a different next entry, that
// entry is detached and becomes the head of its own chain.
func (m *ModelEntry) SetPrevious(p *ModelEntry) error {
	if p == m {
		return fmt.Errorf("%w: %s cannot precede itself", ErrChainCycle, m.entryType.Code())
	}
	if p != nil && m.reaches(p) {
		return fmt.Errorf("%w: %s is downstream of %s", ErrChainCycle, p.entryType.Code(), m.entryType.Code())
	}
	m.attach(p)
	return nil
}

// SetNext is equivalent to n.SetPrevious(m). A nil n detaches the current
// next entry, which becomes the head of its own chain.
func (m *ModelEntry) SetNext(n *ModelEntry) error {
	if n == nil {
		if q := m.next; q != nil {
			m.next = nil
			q.attach(nil)
		}
		return nil
	}
	return n.SetPrevious(m)
}

// attach is the single place that rewrites both sides of a link.
func (m *ModelEntry) attach(p *ModelEntry) {
	if old := m.previous; old != nil && old.next == m {
		old.next = nil
	}
	m.previous = p

	if p == nil {
		m.start = 0
		m.cascade()
		return
	}

	if q := p.next; q != nil && q != m {
		p.next = nil
		q.previous = nil
		q.start = 0
		q.cascade()
	}
	if p.start < 0 {
		p.start = 0
	}
	p.next = m
	m.start = p.EndProcessor() + 1
	m.cascade()
}

// detach removes the entry from any chain and returns it to the unlinked state.
func (m *ModelEntry) detach() {
	if p := m.previous; p != nil && p.next == m {
		p.next = nil
	}
	if n := m.next; n != nil && n.previous == m {
		n.previous = nil
	}
	m.previous, m.next = nil, nil
	m.start = -1
}

// cascade recomputes start processors from m's next to the tail.
func (m *ModelEntry) cascade() {
	for n := m.next; n != nil; n = n.next {
		if n.previous != nil {
			n.start = n.previous.EndProcessor() + 1
		}
	}
}

// reaches reports whether target is downstream of m.
func (m *ModelEntry) reaches(target *ModelEntry) bool {
	for n := m.next; n != nil; n = n.next {
		if n == target {
			return true
		}
		if n == m {
			break
		}
	}
	return false
}

// SequenceText renders the entry as a bare run-sequence line.
func (m *ModelEntry) SequenceText() string {
	return m.entryType.Code()
}

// String renders the four-part model block. An unlinked entry renders its
// bounds as if it were a chain head.
func (m *ModelEntry) String() string {
	code := m.entryType.Code()
	start := m.start
	if start < 0 {
		start = 0
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%-31s %s\n", code+"_model:", m.name)
	fmt.Fprintf(&b, "%-31s %d %d\n", code+"_petlist_bounds:", start, start+m.processors-1)
	b.WriteString(code + "_attributes::\n")
	if !m.attributes.Has(types.VerbosityKey) {
		fmt.Fprintf(&b, "%s%s = %s\n", indentation, types.VerbosityKey, types.DefaultVerbosity)
	}
	for _, key := range m.attributes.Keys() {
		v, _ := m.attributes.Get(key)
		fmt.Fprintf(&b, "%s%s = %s\n", indentation, key, v.Wire())
	}
	b.WriteString("::")
	return b.String()
}
