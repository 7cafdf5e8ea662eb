package manifest

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/hashicorp/go-multierror"

	"github.com/flexinfer/nemsgen/internal/registry"
	"github.com/flexinfer/nemsgen/internal/tracing"
	"github.com/flexinfer/nemsgen/internal/validator"
	"github.com/flexinfer/nemsgen/pkg/coupling"
	"github.com/flexinfer/nemsgen/pkg/nems"
	"github.com/flexinfer/nemsgen/pkg/types"
)

var timeLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04",
	"2006-01-02",
}

// Build assembles the modeling system described by m. Implementations are
// resolved through catalog. Independent failures are reported together.
//
// Implementations declared by m are added to catalog while Build runs and
// removed before it returns.
//
// When every step succeeds but a check does not hold, the built system is
// returned together with an error wrapping ErrChecksFailed.
func Build(ctx context.Context, m *Manifest, catalog registry.Catalog, logger *slog.Logger) (sys *nems.ModelingSystem, err error) {
	ctx, span := tracing.Start(ctx, "manifest.Build")
	defer func() { tracing.End(span, err) }()

	if logger == nil {
		logger = slog.Default()
	}

	errs := new(multierror.Error)

	start, err := parseTime(m.Start)
	if err != nil {
		errs = multierror.Append(errs, fmt.Errorf("start: %w", err))
	}
	end, err := parseTime(m.End)
	if err != nil {
		errs = multierror.Append(errs, fmt.Errorf("end: %w", err))
	}
	interval, err := time.ParseDuration(m.Interval)
	if err != nil {
		errs = multierror.Append(errs, fmt.Errorf("interval: %w", err))
	} else if interval <= 0 {
		errs = multierror.Append(errs, fmt.Errorf("interval: must be positive, got %s", m.Interval))
	}
	verbosity, attrs, err := attributes(m.Attributes, m.Verbosity)
	if err != nil {
		errs = multierror.Append(errs, fmt.Errorf("attributes: %w", err))
	}

	registered, err := register(ctx, catalog, m.Implementations)
	if err != nil {
		errs = multierror.Append(errs, fmt.Errorf("implementations: %w", err))
	}
	defer unregister(ctx, catalog, registered, logger)

	entries := make([]*coupling.ModelEntry, 0, len(m.Models))
	for i, model := range m.Models {
		entry, err := buildModel(ctx, model, catalog)
		if err != nil {
			errs = multierror.Append(errs, fmt.Errorf("models[%d]: %w", i, err))
			continue
		}
		entries = append(entries, entry)
	}
	if err := errs.ErrorOrNil(); err != nil {
		return nil, err
	}

	sys, err = nems.New(&nems.Config{
		Start:      start,
		End:        end,
		Interval:   interval,
		Verbosity:  verbosity,
		Attributes: attrs,
		Logger:     logger,
	}, entries...)
	if err != nil {
		return nil, err
	}

	for i, c := range m.Connections {
		var err error
		if c.Route != "" {
			_, err = sys.ConnectRoute(c.Route, c.Method)
		} else {
			_, err = sys.Connect(c.Source, c.Target, c.Method)
		}
		if err != nil {
			errs = multierror.Append(errs, fmt.Errorf("connections[%d]: %w", i, err))
		}
	}

	for i, med := range m.Mediations {
		_, medAttrs, err := attributes(med.Attributes, "")
		if err == nil {
			_, err = sys.Mediate(nems.MediationSpec{
				Sources:    med.Sources,
				Functions:  med.Functions,
				Targets:    med.Targets,
				Method:     med.Method,
				Processors: med.Processors,
				Name:       med.Name,
				Attributes: medAttrs,
			})
		}
		if err != nil {
			errs = multierror.Append(errs, fmt.Errorf("mediations[%d]: %w", i, err))
		}
	}
	if err := errs.ErrorOrNil(); err != nil {
		return nil, err
	}

	if len(m.Sequence) > 0 {
		if err := sys.SetSequence(m.Sequence); err != nil {
			return nil, fmt.Errorf("sequence: %w", err)
		}
	}

	logger.Debug("built modeling system",
		"models", len(sys.Models()),
		"processors", sys.Processors(),
		"checks", len(m.Checks))

	if len(m.Checks) == 0 {
		return sys, nil
	}
	result := validator.NewCheckEvaluator().RunChecks(m.Checks, validator.Environment(sys))
	if !result.Valid {
		for _, e := range result.Errors {
			errs = multierror.Append(errs, e)
		}
		return sys, fmt.Errorf("%w: %w", ErrChecksFailed, errs)
	}
	return sys, nil
}

// register adds impls to catalog. Nothing is added unless every declaration
// is valid and its ID free. The IDs added are returned.
func register(ctx context.Context, catalog registry.Catalog, impls []Implementation) ([]string, error) {
	if len(impls) == 0 {
		return nil, nil
	}
	if catalog == nil {
		return nil, fmt.Errorf("no catalog to register %d implementations", len(impls))
	}

	errs := new(multierror.Error)
	reqs := make([]*registry.CreateImplementationRequest, 0, len(impls))
	seen := make(map[string]bool)
	for i, impl := range impls {
		t, err := types.ParseEntryType(impl.Type)
		if err != nil {
			errs = multierror.Append(errs, fmt.Errorf("[%d]: %w", i, err))
			continue
		}
		req := &registry.CreateImplementationRequest{
			ID:                impl.ID,
			Type:              t,
			Description:       impl.Description,
			URL:               impl.URL,
			DefaultProcessors: impl.Processors,
			Forcing:           impl.Forcing,
		}
		if err := req.Validate(); err != nil {
			errs = multierror.Append(errs, fmt.Errorf("[%d]: %w", i, err))
			continue
		}
		exists, err := catalog.Exists(ctx, impl.ID)
		if err != nil {
			errs = multierror.Append(errs, fmt.Errorf("[%d]: %w", i, err))
			continue
		}
		id := strings.ToLower(impl.ID)
		if exists || seen[id] {
			errs = multierror.Append(errs, fmt.Errorf("[%d]: %w: %s", i, registry.ErrImplementationExists, impl.ID))
			continue
		}
		seen[id] = true
		reqs = append(reqs, req)
	}
	if err := errs.ErrorOrNil(); err != nil {
		return nil, err
	}

	var ids []string
	for _, req := range reqs {
		if _, err := catalog.Create(ctx, req); err != nil {
			for _, id := range ids {
				_ = catalog.Delete(ctx, id)
			}
			return nil, fmt.Errorf("register %s: %w", req.ID, err)
		}
		ids = append(ids, req.ID)
	}
	return ids, nil
}

func unregister(ctx context.Context, catalog registry.Catalog, ids []string, logger *slog.Logger) {
	for _, id := range ids {
		if err := catalog.Delete(ctx, id); err != nil {
			logger.Warn("failed to remove manifest implementation", "id", id, "error", err)
		}
	}
}

func buildModel(ctx context.Context, model Model, catalog registry.Catalog) (*coupling.ModelEntry, error) {
	_, attrs, err := attributes(model.Attributes, model.Verbosity)
	if err != nil {
		return nil, err
	}
	opts := []coupling.EntryOption{coupling.WithAttributes(attrs)}
	if model.Forcing != "" {
		opts = append(opts, coupling.WithForcing(model.Forcing))
	}

	if model.Implementation == "" {
		t, err := types.ParseEntryType(model.Type)
		if err != nil {
			return nil, err
		}
		return coupling.NewModelEntry(t, model.Name, model.Processors, opts...)
	}

	if catalog == nil {
		return nil, fmt.Errorf("no catalog to resolve implementation %q", model.Implementation)
	}
	impl, err := catalog.Get(ctx, model.Implementation)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", err, model.Implementation)
	}
	if model.Type != "" {
		t, err := types.ParseEntryType(model.Type)
		if err != nil {
			return nil, err
		}
		if t != impl.Type {
			return nil, fmt.Errorf("implementation %s is %s, not %s", impl.ID, impl.Type, t)
		}
	}
	if impl.Forcing && model.Forcing == "" {
		return nil, fmt.Errorf("implementation %s requires a forcing path", impl.ID)
	}

	entry, err := catalog.Build(ctx, impl.ID, model.Processors, opts...)
	if err != nil {
		return nil, err
	}
	return entry, nil
}

// attributes converts decoded attribute values. Keys are applied in sorted
// order, with Verbosity first when given either as a key or as verbosity.
func attributes(values map[string]interface{}, verbosity string) (types.Verbosity, *types.Attributes, error) {
	attrs := &types.Attributes{}

	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		if k == types.VerbosityKey {
			s, ok := values[k].(string)
			if !ok {
				return "", nil, fmt.Errorf("%s must be a string", k)
			}
			if verbosity == "" {
				verbosity = s
			}
			continue
		}
		v, err := value(values[k])
		if err != nil {
			return "", nil, fmt.Errorf("%s: %w", k, err)
		}
		attrs.Set(k, v)
	}

	var level types.Verbosity
	if verbosity != "" {
		var err error
		if level, err = types.ParseVerbosity(verbosity); err != nil {
			return "", nil, err
		}
		attrs.SetFirst(types.VerbosityKey, types.VerbosityValue(level))
	}
	return level, attrs, nil
}

func value(raw interface{}) (types.Value, error) {
	switch v := raw.(type) {
	case string:
		return types.String(v), nil
	case bool:
		return types.Bool(v), nil
	case float64:
		return types.String(strconv.FormatFloat(v, 'f', -1, 64)), nil
	default:
		return types.Value{}, fmt.Errorf("unsupported value %v (%T)", raw, raw)
	}
}

func parseTime(s string) (time.Time, error) {
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("cannot parse %q as a time", s)
}
