// Package registry provides a catalog of model implementations that manifests
// refer to by ID.
package registry

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/flexinfer/nemsgen/pkg/coupling"
	"github.com/flexinfer/nemsgen/pkg/types"
)

// Common errors returned by Catalog implementations.
var (
	ErrImplementationNotFound = errors.New("implementation not found")
	ErrImplementationExists   = errors.New("implementation already exists")
)

// Implementation is a model implementation known to the catalog.
type Implementation struct {
	// ID is the unique identifier (e.g., "adcirc")
	ID string `json:"id"`

	// Type is the component the implementation couples as
	Type types.EntryType `json:"type"`

	// Description provides details about the implementation
	Description string `json:"description,omitempty"`

	// URL points at the project home page
	URL string `json:"url,omitempty"`

	// DefaultProcessors is used when a build asks for 0 processors
	DefaultProcessors int `json:"default_processors,omitempty"`

	// Forcing implementations read precomputed input files
	Forcing bool `json:"forcing,omitempty"`

	// Metadata holds additional key-value pairs
	Metadata map[string]string `json:"metadata,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Preset converts the implementation into a buildable preset.
func (i *Implementation) Preset() coupling.Preset {
	return coupling.Preset{
		Name:              i.ID,
		Type:              i.Type,
		Description:       i.Description,
		URL:               i.URL,
		DefaultProcessors: i.DefaultProcessors,
		Forcing:           i.Forcing,
	}
}

// CreateImplementationRequest is the input for registering an implementation.
type CreateImplementationRequest struct {
	ID                string            `json:"id"`
	Type              types.EntryType   `json:"type"`
	Description       string            `json:"description,omitempty"`
	URL               string            `json:"url,omitempty"`
	DefaultProcessors int               `json:"default_processors,omitempty"`
	Forcing           bool              `json:"forcing,omitempty"`
	Metadata          map[string]string `json:"metadata,omitempty"`
}

// ListOptions configures list queries.
type ListOptions struct {
	// Types keeps implementations of any of the given types
	Types []types.EntryType

	// Limit is the maximum number of implementations to return (0 = no limit)
	Limit int

	// Offset is the number of implementations to skip (for pagination)
	Offset int
}

// Catalog defines the interface for implementation lookup.
// Implementations must be safe for concurrent use.
type Catalog interface {
	// Create registers an implementation. Returns ErrImplementationExists if ID is taken.
	Create(ctx context.Context, req *CreateImplementationRequest) (*Implementation, error)

	// Get retrieves an implementation by ID. Returns ErrImplementationNotFound if not found.
	Get(ctx context.Context, id string) (*Implementation, error)

	// Delete removes an implementation. Returns ErrImplementationNotFound if not found.
	Delete(ctx context.Context, id string) error

	// List returns the implementations matching the options, ordered by ID.
	List(ctx context.Context, opts *ListOptions) ([]*Implementation, error)

	// Exists checks if an implementation with the given ID exists.
	Exists(ctx context.Context, id string) (bool, error)

	// Build creates a model entry from the implementation. A processor count
	// of 0 selects its default.
	Build(ctx context.Context, id string, processors int, opts ...coupling.EntryOption) (*coupling.ModelEntry, error)

	// Close releases any resources.
	Close() error
}

// Validate checks if a CreateImplementationRequest is valid.
func (r *CreateImplementationRequest) Validate() error {
	if r.ID == "" {
		return errors.New("implementation ID is required")
	}
	if !r.Type.Valid() {
		return fmt.Errorf("%w: %d", types.ErrUnknownEntryType, int(r.Type))
	}
	if r.DefaultProcessors < 0 {
		return fmt.Errorf("%w: default processors %d", coupling.ErrInvalidProcessors, r.DefaultProcessors)
	}
	return nil
}
