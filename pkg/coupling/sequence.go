package coupling

import (
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/flexinfer/nemsgen/pkg/types"
)

// RunSequence owns one model entry per component type, the ordered run loop
// body and the loop interval. Every change to the set of registered entries
// relinks the processor chain in Models order.
type RunSequence struct {
	interval   time.Duration
	registry   map[types.EntryType]*ModelEntry
	order      []types.EntryType
	entries    []SequenceEntry
	attributes *types.Attributes
	overwrite  bool
	logger     *slog.Logger
	pending    []*ModelEntry
}

// Option configures a RunSequence.
type Option func(*RunSequence)

// WithLogger sets the diagnostics logger. Defaults to slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(s *RunSequence) {
		s.logger = logger
	}
}

// WithOverwrite makes Register replace an already registered type with a
// warning instead of failing with ErrModelTypeExists.
func WithOverwrite() Option {
	return func(s *RunSequence) {
		s.overwrite = true
	}
}

// WithModels registers entries in order during construction.
func WithModels(models ...*ModelEntry) Option {
	return func(s *RunSequence) {
		s.pending = append(s.pending, models...)
	}
}

// WithSequenceVerbosity sets the top-level Verbosity attribute.
func WithSequenceVerbosity(v types.Verbosity) Option {
	return func(s *RunSequence) {
		s.attributes.Set(types.VerbosityKey, types.VerbosityValue(v))
	}
}

// WithSequenceAttribute sets a top-level attribute.
func WithSequenceAttribute(key string, value types.Value) Option {
	return func(s *RunSequence) {
		s.attributes.Set(key, value)
	}
}

// NewRunSequence creates a run sequence repeating every interval.
func NewRunSequence(interval time.Duration, opts ...Option) (*RunSequence, error) {
	s := &RunSequence{
		interval:   interval,
		registry:   make(map[types.EntryType]*ModelEntry),
		attributes: &types.Attributes{},
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	if !s.attributes.Has(types.VerbosityKey) {
		s.attributes.SetFirst(types.VerbosityKey, types.VerbosityValue(types.DefaultVerbosity))
	}

	pending := s.pending
	s.pending = nil
	for _, m := range pending {
		if err := s.Register(m); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// Interval returns the run loop period.
func (s *RunSequence) Interval() time.Duration { return s.interval }

// SetInterval changes the run loop period.
func (s *RunSequence) SetInterval(d time.Duration) { s.interval = d }

// Attributes returns the live top-level attributes.
func (s *RunSequence) Attributes() *types.Attributes { return s.attributes }

// Register adds entry under its type. Non-mediator entries are appended to
// the run loop body.
func (s *RunSequence) Register(entry *ModelEntry) error {
	if entry == nil {
		return errors.New("model entry is required")
	}
	t := entry.Type()

	existing, ok := s.registry[t]
	switch {
	case ok && existing == entry:
	case ok && !s.overwrite:
		return fmt.Errorf("%w: %s is %q", ErrModelTypeExists, t, existing.Name())
	case ok:
		s.logger.Warn("overwriting registered model",
			"type", t.String(),
			"existing", existing.Name(),
			"replacement", entry.Name())
		s.replace(existing, entry)
	default:
		s.registry[t] = entry
		s.order = append(s.order, t)
		if t != types.Mediator {
			s.entries = append(s.entries, entry)
		}
	}

	s.relink()
	return nil
}

// replace swaps old for entry everywhere it is referenced.
func (s *RunSequence) replace(old, entry *ModelEntry) {
	s.registry[entry.Type()] = entry
	swap := func(m *ModelEntry) *ModelEntry {
		if m == old {
			return entry
		}
		return m
	}
	for i, e := range s.entries {
		switch v := e.(type) {
		case *ModelEntry:
			s.entries[i] = swap(v)
		case Connection:
			s.entries[i] = Connection{Source: swap(v.Source), Target: swap(v.Target), Method: v.Method}
		case *Mediation:
			v.Mediator = swap(v.Mediator)
			for j := range v.Sources {
				v.Sources[j] = swap(v.Sources[j])
			}
			for j := range v.Targets {
				v.Targets[j] = swap(v.Targets[j])
			}
		}
	}
	old.detach()
}

// Get returns the entry registered for t.
func (s *RunSequence) Get(t types.EntryType) (*ModelEntry, bool) {
	m, ok := s.registry[t]
	return m, ok
}

// Contains reports whether an entry is registered for t.
func (s *RunSequence) Contains(t types.EntryType) bool {
	_, ok := s.registry[t]
	return ok
}

// Mediator returns the materialized mediator, or nil.
func (s *RunSequence) Mediator() *ModelEntry {
	return s.registry[types.Mediator]
}

// Models returns the registered entries in chain order: the mediator first
// when present, then the others in registration order.
func (s *RunSequence) Models() []*ModelEntry {
	models := make([]*ModelEntry, 0, len(s.order))
	if med := s.Mediator(); med != nil {
		models = append(models, med)
	}
	for _, t := range s.order {
		if t != types.Mediator {
			models = append(models, s.registry[t])
		}
	}
	return models
}

// Processors returns the total processor count across registered entries.
func (s *RunSequence) Processors() int {
	total := 0
	for _, m := range s.Models() {
		total += m.Processors()
	}
	return total
}

// materializeMediator creates the default mediator if none is registered.
func (s *RunSequence) materializeMediator(name string, processors int, attrs *types.Attributes) (*ModelEntry, error) {
	if med := s.Mediator(); med != nil {
		return med, nil
	}
	med, err := NewMediator(name, processors, WithAttributes(attrs))
	if err != nil {
		return nil, err
	}
	s.logger.Debug("materialized mediator", "name", med.Name(), "processors", med.Processors())
	if err := s.Register(med); err != nil {
		return nil, err
	}
	return med, nil
}

// Connect appends a connection between the registered source and target
// entries. An empty method means redistribute. Referencing the mediator
// materializes a default one.
func (s *RunSequence) Connect(source, target types.EntryType, method types.RemapMethod) (Connection, error) {
	if method == "" {
		method = types.Redistribute
	}
	if err := checkMethod(method); err != nil {
		return Connection{}, err
	}
	for _, t := range []types.EntryType{source, target} {
		if t != types.Mediator && !s.Contains(t) {
			return Connection{}, fmt.Errorf("%w: no %s model in sequence", ErrUnknownModel, t)
		}
	}
	if source == types.Mediator || target == types.Mediator {
		if _, err := s.materializeMediator("", 1, nil); err != nil {
			return Connection{}, err
		}
	}

	c := Connection{Source: s.registry[source], Target: s.registry[target], Method: method}
	s.entries = append(s.entries, c)
	return c, nil
}

// Connections returns the connection entries in sequence order.
func (s *RunSequence) Connections() []Connection {
	var out []Connection
	for _, e := range s.entries {
		if c, ok := e.(Connection); ok {
			out = append(out, c)
		}
	}
	return out
}

// MediationRequest describes a call to Mediate.
type MediationRequest struct {
	Sources   []types.EntryType
	Functions []string
	Targets   []types.EntryType
	// Method defaults to redistribute.
	Method types.RemapMethod
	// Processors raises the mediator's width when larger than it; 0 leaves it.
	Processors int
	// Name is used only when the mediator is materialized by this call.
	Name       string
	Attributes *types.Attributes
}

// Mediate appends a mediation, materializing the mediator if necessary.
// Request attributes are merged into the mediator, and its processor count is
// only ever raised.
func (s *RunSequence) Mediate(req MediationRequest) (*Mediation, error) {
	resolve := func(ts []types.EntryType) ([]*ModelEntry, error) {
		out := make([]*ModelEntry, 0, len(ts))
		for _, t := range ts {
			if t == types.Mediator {
				return nil, fmt.Errorf("%w: %s cannot be a mediation endpoint", ErrUnknownModel, t)
			}
			m, ok := s.registry[t]
			if !ok {
				return nil, fmt.Errorf("%w: no %s model in sequence", ErrUnknownModel, t)
			}
			out = append(out, m)
		}
		return out, nil
	}
	sources, err := resolve(req.Sources)
	if err != nil {
		return nil, err
	}
	targets, err := resolve(req.Targets)
	if err != nil {
		return nil, err
	}
	if req.Processors < 0 {
		return nil, fmt.Errorf("%w: mediator given %d", ErrInvalidProcessors, req.Processors)
	}
	method := req.Method
	if method == "" {
		method = types.Redistribute
	}
	if err := checkMethod(method); err != nil {
		return nil, err
	}

	med := s.Mediator()
	if med == nil {
		if med, err = s.materializeMediator(req.Name, req.Processors, req.Attributes); err != nil {
			return nil, err
		}
	} else {
		med.Attributes().Merge(req.Attributes)
		if req.Processors > med.Processors() {
			if err := med.SetProcessors(req.Processors); err != nil {
				return nil, err
			}
		}
	}

	m := &Mediation{
		Mediator:  med,
		Sources:   sources,
		Functions: append([]string(nil), req.Functions...),
		Targets:   targets,
		Method:    method,
	}
	s.entries = append(s.entries, m)
	return m, nil
}

// Mediations returns the mediation entries in sequence order.
func (s *RunSequence) Mediations() []*Mediation {
	var out []*Mediation
	for _, e := range s.entries {
		if m, ok := e.(*Mediation); ok {
			out = append(out, m)
		}
	}
	return out
}

// Entries returns a copy of the run loop body.
func (s *RunSequence) Entries() []SequenceEntry {
	return append([]SequenceEntry(nil), s.entries...)
}

// Len returns the number of run loop entries.
func (s *RunSequence) Len() int { return len(s.entries) }

// SetEntries replaces the run loop body. The replacement must hold exactly
// one entry for every registered non-mediator type, and its couplings may
// only reference those entries or the current mediator. The registry is
// rebuilt in the new model order. The mediator is kept while some coupling
// still references it and dropped otherwise. On error nothing changes.
func (s *RunSequence) SetEntries(entries []SequenceEntry) error {
	models := make(map[types.EntryType]*ModelEntry)
	var order []types.EntryType
	for _, e := range entries {
		m, ok := e.(*ModelEntry)
		if !ok {
			continue
		}
		t := m.Type()
		if _, dup := models[t]; dup {
			return fmt.Errorf("%w: %s appears more than once", ErrDuplicateModelType, t)
		}
		if !s.Contains(t) {
			return fmt.Errorf("%w: no %s model in sequence", ErrUnknownModel, t)
		}
		models[t] = m
		if t != types.Mediator {
			order = append(order, t)
		}
	}
	for _, t := range s.order {
		if _, ok := models[t]; !ok && t != types.Mediator {
			return fmt.Errorf("%w: %s model omitted", ErrInvalidSequence, t)
		}
	}

	med := s.Mediator()
	if m, ok := models[types.Mediator]; ok {
		med = m
	}
	keepMediator := models[types.Mediator] != nil
	check := func(m *ModelEntry) error {
		if m == nil {
			return fmt.Errorf("%w: coupling endpoint is nil", ErrUnknownModel)
		}
		if m.Type() == types.Mediator {
			if med == nil || m != med {
				return fmt.Errorf("%w: mediator %q is not registered", ErrUnknownModel, m.Name())
			}
			keepMediator = true
			return nil
		}
		if models[m.Type()] != m {
			return fmt.Errorf("%w: %s %q is not in the sequence", ErrUnknownModel, m.Type(), m.Name())
		}
		return nil
	}
	for _, e := range entries {
		switch v := e.(type) {
		case *ModelEntry:
		case Connection:
			if err := checkMethod(v.Method); err != nil {
				return err
			}
			if err := check(v.Source); err != nil {
				return err
			}
			if err := check(v.Target); err != nil {
				return err
			}
		case *Mediation:
			if err := checkMethod(v.Method); err != nil {
				return err
			}
			if err := check(v.Mediator); err != nil {
				return err
			}
			for _, m := range append(append([]*ModelEntry(nil), v.Sources...), v.Targets...) {
				if err := check(m); err != nil {
					return err
				}
			}
		case nil:
			return fmt.Errorf("%w: nil entry", ErrInvalidSequence)
		default:
			return fmt.Errorf("%w: unsupported entry %T", ErrInvalidSequence, e)
		}
	}

	for t, old := range s.registry {
		kept := models[t] == old || (t == types.Mediator && keepMediator && med == old)
		if !kept {
			old.detach()
		}
	}

	s.registry = make(map[types.EntryType]*ModelEntry, len(models)+1)
	s.order = nil
	if keepMediator {
		s.registry[types.Mediator] = med
		s.order = append(s.order, types.Mediator)
	}
	for _, t := range order {
		s.registry[t] = models[t]
		s.order = append(s.order, t)
	}
	s.entries = append([]SequenceEntry(nil), entries...)
	s.relink()
	return nil
}

// relink rebuilds the processor chain in Models order.
func (s *RunSequence) relink() {
	models := s.Models()
	for _, m := range models {
		m.detach()
	}
	for i, m := range models {
		if i == 0 {
			m.attach(nil)
		} else {
			m.attach(models[i-1])
		}
	}
	s.logger.Debug("relinked processor chain", "models", len(models), "processors", s.Processors())
}

// Earth returns a snapshot of the component list and top-level attributes.
func (s *RunSequence) Earth() *Earth {
	models := make(map[types.EntryType]*ModelEntry, len(s.registry))
	for t, m := range s.registry {
		models[t] = m
	}
	return &Earth{models: models, attributes: s.attributes.Clone()}
}

// String renders the runSeq block.
func (s *RunSequence) String() string {
	texts := make([]string, 0, len(s.entries))
	for _, e := range s.entries {
		texts = append(texts, e.SequenceText())
	}
	body := indent(strings.Join(texts, "\n"), indentation+indentation)

	lines := []string{
		"runSeq::",
		indentation + "@" + strconv.FormatFloat(s.interval.Seconds(), 'f', 0, 64),
		body,
		indentation + "@",
		"::",
	}
	return strings.Join(lines, "\n")
}

// indent prefixes every non-empty line of text.
func indent(text, prefix string) string {
	lines := strings.Split(text, "\n")
	for i, line := range lines {
		if line != "" {
			lines[i] = prefix + line
		}
	}
	return strings.Join(lines, "\n")
}
