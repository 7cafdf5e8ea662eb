// Package nems is the high-level interface for assembling a coupled modeling
// system and writing its NEMS configuration files.
package nems

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/flexinfer/nemsgen/internal/metrics"
	"github.com/flexinfer/nemsgen/internal/tracing"
	"github.com/flexinfer/nemsgen/pkg/configfile"
	"github.com/flexinfer/nemsgen/pkg/coupling"
	"github.com/flexinfer/nemsgen/pkg/types"
)

// ErrNoSuchEntry is returned when a sequence string matches no run sequence entry.
var ErrNoSuchEntry = errors.New("no matching sequence entry")

// Sink stores rendered configuration files.
type Sink interface {
	// WriteFile stores content under name and returns its location. An
	// existing file is replaced only when overwrite is set.
	WriteFile(ctx context.Context, name string, content []byte, overwrite bool) (string, error)

	// MirrorFile makes mirror refer to the already written file name.
	MirrorFile(ctx context.Context, name, mirror string, overwrite bool) (string, error)
}

// Config holds modeling system settings.
type Config struct {
	Start    time.Time
	End      time.Time
	Interval time.Duration

	// Verbosity is the EARTH-level verbosity. Defaults to min.
	Verbosity types.Verbosity

	// Attributes are additional EARTH-level attributes.
	Attributes *types.Attributes

	// AllowOverwrite replaces already registered model types with a warning
	// instead of failing.
	AllowOverwrite bool

	Logger *slog.Logger
}

// ModelingSystem couples model entries over a time window.
type ModelingSystem struct {
	start    time.Time
	end      time.Time
	sequence *coupling.RunSequence
	logger   *slog.Logger
}

// New creates a modeling system and registers models in order.
func New(cfg *Config, models ...*coupling.ModelEntry) (*ModelingSystem, error) {
	if cfg == nil {
		return nil, errors.New("config is required")
	}
	if cfg.Interval <= 0 {
		return nil, fmt.Errorf("interval must be positive, got %s", cfg.Interval)
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	opts := []coupling.Option{coupling.WithLogger(logger)}
	if cfg.Verbosity != "" {
		opts = append(opts, coupling.WithSequenceVerbosity(cfg.Verbosity))
	}
	if cfg.AllowOverwrite {
		opts = append(opts, coupling.WithOverwrite())
	}
	opts = append(opts, coupling.WithModels(models...))

	seq, err := coupling.NewRunSequence(cfg.Interval, opts...)
	if err != nil {
		return nil, err
	}
	seq.Attributes().Merge(cfg.Attributes)

	s := &ModelingSystem{sequence: seq, logger: logger}
	s.SetTimes(cfg.Start, cfg.End)
	return s, nil
}

// SetTimes sets the time window, swapping the bounds if they are reversed.
func (s *ModelingSystem) SetTimes(start, end time.Time) {
	if end.Before(start) {
		start, end = end, start
	}
	s.start, s.end = start, end
}

// Start returns the start of the modeled window.
func (s *ModelingSystem) Start() time.Time { return s.start }

// End returns the end of the modeled window.
func (s *ModelingSystem) End() time.Time { return s.end }

// Duration returns the length of the modeled window.
func (s *ModelingSystem) Duration() time.Duration { return s.end.Sub(s.start) }

// Interval returns the run sequence interval.
func (s *ModelingSystem) Interval() time.Duration { return s.sequence.Interval() }

// SetInterval changes the run sequence interval.
func (s *ModelingSystem) SetInterval(d time.Duration) { s.sequence.SetInterval(d) }

// Attributes returns the live EARTH attributes.
func (s *ModelingSystem) Attributes() *types.Attributes { return s.sequence.Attributes() }

// Sequence exposes the underlying run sequence.
func (s *ModelingSystem) Sequence() *coupling.RunSequence { return s.sequence }

// Models returns the registered entries in execution order.
func (s *ModelingSystem) Models() []*coupling.ModelEntry { return s.sequence.Models() }

// Processors returns the total processor count.
func (s *ModelingSystem) Processors() int { return s.sequence.Processors() }

// Register adds a model entry.
func (s *ModelingSystem) Register(m *coupling.ModelEntry) error {
	return s.sequence.Register(m)
}

// Get returns the entry for a type code or name such as "ocn" or "OCEAN".
func (s *ModelingSystem) Get(model string) (*coupling.ModelEntry, error) {
	t, err := types.ParseEntryType(model)
	if err != nil {
		return nil, err
	}
	m, ok := s.sequence.Get(t)
	if !ok {
		return nil, fmt.Errorf("%w: no %s model in sequence", coupling.ErrUnknownModel, t)
	}
	return m, nil
}

// Contains reports whether a model of the given type is registered.
func (s *ModelingSystem) Contains(model string) bool {
	t, err := types.ParseEntryType(model)
	if err != nil {
		return false
	}
	return s.sequence.Contains(t)
}

// Connect couples source to target. An empty method means redistribute.
func (s *ModelingSystem) Connect(source, target, method string) (coupling.Connection, error) {
	src, err := types.ParseEntryType(source)
	if err != nil {
		return coupling.Connection{}, err
	}
	dst, err := types.ParseEntryType(target)
	if err != nil {
		return coupling.Connection{}, err
	}
	m, err := parseMethod(method)
	if err != nil {
		return coupling.Connection{}, err
	}
	return s.sequence.Connect(src, dst, m)
}

// ConnectRoute couples the two ends of a route such as "WAV -> OCN".
func (s *ModelingSystem) ConnectRoute(route, method string) (coupling.Connection, error) {
	parts := splitRoute(route)
	if len(parts) != 2 {
		return coupling.Connection{}, fmt.Errorf("connection route %q must have two ends", route)
	}
	return s.Connect(parts[0], parts[1], method)
}

// Connections returns the rendered connection lines.
func (s *ModelingSystem) Connections() []string {
	conns := s.sequence.Connections()
	out := make([]string, 0, len(conns))
	for _, c := range conns {
		out = append(out, c.SequenceText())
	}
	return out
}

// MediationSpec is the string form of coupling.MediationRequest.
type MediationSpec struct {
	Sources    []string
	Functions  []string
	Targets    []string
	Method     string
	Processors int
	Name       string
	Attributes *types.Attributes
}

// Mediate routes sources through the mediator's functions to targets.
func (s *ModelingSystem) Mediate(spec MediationSpec) (*coupling.Mediation, error) {
	req := coupling.MediationRequest{
		Functions:  spec.Functions,
		Processors: spec.Processors,
		Name:       spec.Name,
		Attributes: spec.Attributes,
	}
	var err error
	if req.Sources, err = parseTypes(spec.Sources); err != nil {
		return nil, err
	}
	if req.Targets, err = parseTypes(spec.Targets); err != nil {
		return nil, err
	}
	if req.Method, err = parseMethod(spec.Method); err != nil {
		return nil, err
	}
	return s.sequence.Mediate(req)
}

// SequenceStrings returns the run loop body as route strings: a bare code
// for a model, "SRC -> DST" for a connection and the full route for a
// mediation, e.g. "ATM -> MED -> OCN".
func (s *ModelingSystem) SequenceStrings() []string {
	entries := s.sequence.Entries()
	out := make([]string, 0, len(entries))
	for _, e := range entries {
		out = append(out, routeOf(e))
	}
	return out
}

// SetSequence reorders the run loop body from route strings. Each string is
// matched against the current entries; repeated strings match successive
// entries with the same route.
func (s *ModelingSystem) SetSequence(items []string) error {
	current := s.sequence.Entries()
	used := make([]bool, len(current))
	next := make([]coupling.SequenceEntry, 0, len(items))

	for _, item := range items {
		parts := splitRoute(item)
		codes := make([]string, len(parts))
		for i, p := range parts {
			t, err := types.ParseEntryType(p)
			if err != nil {
				return fmt.Errorf("sequence entry %q: %w", item, err)
			}
			codes[i] = t.Code()
		}
		route := strings.Join(codes, " -> ")

		entry, idx := s.match(current, used, codes, route)
		if entry == nil {
			return fmt.Errorf("%w: %q", ErrNoSuchEntry, item)
		}
		if idx >= 0 {
			used[idx] = true
		}
		next = append(next, entry)
	}
	return s.sequence.SetEntries(next)
}

// match picks the first unused entry for a parsed route and returns its
// index. Connections are preferred over mediations with the same two-part
// route. A lone "MED" that matches no entry places the mediator itself, with
// index -1.
func (s *ModelingSystem) match(entries []coupling.SequenceEntry, used []bool, codes []string, route string) (coupling.SequenceEntry, int) {
	find := func(want func(coupling.SequenceEntry) bool) (coupling.SequenceEntry, int) {
		for i, e := range entries {
			if !used[i] && want(e) {
				return e, i
			}
		}
		return nil, -1
	}
	isModel := func(e coupling.SequenceEntry) bool {
		m, ok := e.(*coupling.ModelEntry)
		return ok && m.Type().Code() == route
	}
	isConnection := func(e coupling.SequenceEntry) bool {
		_, ok := e.(coupling.Connection)
		return ok && routeOf(e) == route
	}
	isMediation := func(e coupling.SequenceEntry) bool {
		_, ok := e.(*coupling.Mediation)
		return ok && routeOf(e) == route
	}

	switch len(codes) {
	case 1:
		if e, i := find(isModel); e != nil {
			return e, i
		}
		if e, i := find(isMediation); e != nil {
			return e, i
		}
		if med := s.sequence.Mediator(); med != nil && route == types.Mediator.Code() {
			return med, -1
		}
		return nil, -1
	case 2:
		if e, i := find(isConnection); e != nil {
			return e, i
		}
	}
	return find(isMediation)
}

func routeOf(e coupling.SequenceEntry) string {
	switch v := e.(type) {
	case *coupling.ModelEntry:
		return v.Type().Code()
	case coupling.Connection:
		return v.Source.Type().Code() + " -> " + v.Target.Type().Code()
	case *coupling.Mediation:
		return strings.Join(v.Route(), " -> ")
	}
	return e.SequenceText()
}

// Files returns the configuration files in write order.
func (s *ModelingSystem) Files() []configfile.File {
	return []configfile.File{
		configfile.NEMSConfiguration{Sequence: s.sequence},
		configfile.MeshFile{Sequence: s.sequence},
		configfile.ModelConfiguration{Sequence: s.sequence, Start: s.start, Duration: s.Duration()},
	}
}

// Configuration renders every file, keyed by file name.
func (s *ModelingSystem) Configuration() map[string]string {
	out := make(map[string]string)
	for _, f := range s.Files() {
		out[f.Name()] = render(f)
	}
	s.recordAllocation()
	return out
}

func render(f configfile.File) string {
	start := time.Now()
	text := f.Render()
	metrics.RenderDuration.WithLabelValues(f.Name()).Observe(time.Since(start).Seconds())
	metrics.FilesRenderedTotal.WithLabelValues(f.Name()).Inc()
	return text
}

// rendered adapts an already rendered body to configfile.File.
type rendered struct {
	name, text string
}

func (r rendered) Name() string   { return r.name }
func (r rendered) Render() string { return r.text }

func (s *ModelingSystem) recordAllocation() {
	for _, m := range s.Models() {
		metrics.ProcessorsAllocated.WithLabelValues(m.Type().Code()).Set(float64(m.Processors()))
	}
}

// WriteOptions controls Write.
type WriteOptions struct {
	Overwrite      bool
	IncludeVersion bool
	// Version is stamped in the header when IncludeVersion is set.
	Version string
	// SkipAtmNamelist disables the atm_namelist.rc mirror of model_configure.
	SkipAtmNamelist bool
}

// Write renders every file to sink and returns the written locations.
func (s *ModelingSystem) Write(ctx context.Context, sink Sink, opts WriteOptions) (written []string, err error) {
	ctx, span := tracing.Start(ctx, "nems.Write",
		attribute.Int("processors", s.Processors()),
		attribute.Bool("overwrite", opts.Overwrite))
	defer func() { tracing.End(span, err) }()

	for _, f := range s.Files() {
		content := configfile.Content(rendered{f.Name(), render(f)}, opts.IncludeVersion, opts.Version)
		loc, err := sink.WriteFile(ctx, f.Name(), content, opts.Overwrite)
		if err != nil {
			return written, fmt.Errorf("write %s: %w", f.Name(), err)
		}
		written = append(written, loc)
	}

	if !opts.SkipAtmNamelist {
		loc, err := sink.MirrorFile(ctx, configfile.ModelConfigurationName, configfile.AtmNamelistName, opts.Overwrite)
		if err != nil {
			return written, fmt.Errorf("mirror %s: %w", configfile.AtmNamelistName, err)
		}
		written = append(written, loc)
	}

	s.recordAllocation()
	s.logger.Info("wrote configuration", "files", len(written), "processors", s.Processors())
	return written, nil
}

func splitRoute(route string) []string {
	parts := strings.Split(route, "->")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	return parts
}

func parseTypes(names []string) ([]types.EntryType, error) {
	out := make([]types.EntryType, 0, len(names))
	for _, n := range names {
		t, err := types.ParseEntryType(n)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, nil
}

func parseMethod(method string) (types.RemapMethod, error) {
	if method == "" {
		return "", nil
	}
	return types.ParseRemapMethod(method)
}
