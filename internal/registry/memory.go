package registry

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/flexinfer/nemsgen/pkg/coupling"
)

// MemoryRegistry implements Catalog using in-memory storage. IDs are
// case-insensitive.
type MemoryRegistry struct {
	mu              sync.RWMutex
	implementations map[string]*Implementation
}

// NewMemoryRegistry creates an empty in-memory catalog.
func NewMemoryRegistry() *MemoryRegistry {
	return &MemoryRegistry{
		implementations: make(map[string]*Implementation),
	}
}

// NewMemoryRegistryWithDefaults creates a catalog pre-populated with the
// built-in model presets.
func NewMemoryRegistryWithDefaults() *MemoryRegistry {
	r := NewMemoryRegistry()
	now := time.Now().UTC()

	for _, p := range coupling.Presets() {
		r.implementations[key(p.Name)] = &Implementation{
			ID:                p.Name,
			Type:              p.Type,
			Description:       p.Description,
			URL:               p.URL,
			DefaultProcessors: p.DefaultProcessors,
			Forcing:           p.Forcing,
			CreatedAt:         now,
			UpdatedAt:         now,
		}
	}

	return r
}

func key(id string) string { return strings.ToLower(id) }

// Create registers a new implementation.
func (r *MemoryRegistry) Create(ctx context.Context, req *CreateImplementationRequest) (*Implementation, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.implementations[key(req.ID)]; exists {
		return nil, ErrImplementationExists
	}

	now := time.Now().UTC()
	impl := &Implementation{
		ID:                req.ID,
		Type:              req.Type,
		Description:       req.Description,
		URL:               req.URL,
		DefaultProcessors: req.DefaultProcessors,
		Forcing:           req.Forcing,
		Metadata:          req.Metadata,
		CreatedAt:         now,
		UpdatedAt:         now,
	}

	r.implementations[key(req.ID)] = impl
	return clone(impl), nil
}

// Get retrieves an implementation by ID.
func (r *MemoryRegistry) Get(ctx context.Context, id string) (*Implementation, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	impl, ok := r.implementations[key(id)]
	if !ok {
		return nil, ErrImplementationNotFound
	}
	return clone(impl), nil
}

// Delete removes an implementation.
func (r *MemoryRegistry) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.implementations[key(id)]; !ok {
		return ErrImplementationNotFound
	}

	delete(r.implementations, key(id))
	return nil
}

// List returns all implementations matching the options.
func (r *MemoryRegistry) List(ctx context.Context, opts *ListOptions) ([]*Implementation, error) {
	if opts == nil {
		opts = &ListOptions{}
	}

	r.mu.RLock()
	var impls []*Implementation
	for _, impl := range r.implementations {
		if len(opts.Types) > 0 && !hasType(opts, impl) {
			continue
		}
		impls = append(impls, clone(impl))
	}
	r.mu.RUnlock()

	sort.Slice(impls, func(i, j int) bool { return impls[i].ID < impls[j].ID })

	// Apply offset and limit
	if opts.Offset > 0 {
		if opts.Offset >= len(impls) {
			return []*Implementation{}, nil
		}
		impls = impls[opts.Offset:]
	}

	if opts.Limit > 0 && opts.Limit < len(impls) {
		impls = impls[:opts.Limit]
	}

	return impls, nil
}

// Exists checks if an implementation with the given ID exists.
func (r *MemoryRegistry) Exists(ctx context.Context, id string) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	_, ok := r.implementations[key(id)]
	return ok, nil
}

// Build creates a model entry named after the implementation.
func (r *MemoryRegistry) Build(ctx context.Context, id string, processors int, opts ...coupling.EntryOption) (*coupling.ModelEntry, error) {
	impl, err := r.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", err, id)
	}
	return impl.Preset().Build(processors, opts...)
}

// Close is a no-op for the memory registry.
func (r *MemoryRegistry) Close() error {
	return nil
}

func hasType(opts *ListOptions, impl *Implementation) bool {
	for _, t := range opts.Types {
		if impl.Type == t {
			return true
		}
	}
	return false
}

func clone(impl *Implementation) *Implementation {
	c := *impl
	if impl.Metadata != nil {
		c.Metadata = make(map[string]string, len(impl.Metadata))
		for k, v := range impl.Metadata {
			c.Metadata[k] = v
		}
	}
	return &c
}
