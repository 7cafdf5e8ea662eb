// Package manifest loads modeling system descriptions from JSON or HCL files
// and builds them into a nems.ModelingSystem.
package manifest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/hashicorp/go-multierror"
	"go.opentelemetry.io/otel/attribute"

	"github.com/flexinfer/nemsgen/internal/tracing"
	"github.com/flexinfer/nemsgen/internal/validator"
)

var (
	ErrUnsupportedFormat = errors.New("unsupported manifest format")
	ErrInvalidManifest   = errors.New("invalid manifest")
	ErrChecksFailed      = errors.New("manifest checks failed")
)

// Manifest describes a modeling system.
type Manifest struct {
	Start       string                 `json:"start"`
	End         string                 `json:"end"`
	Interval    string                 `json:"interval"`
	Verbosity   string                 `json:"verbosity,omitempty"`
	Attributes  map[string]interface{} `json:"attributes,omitempty"`

	Implementations []Implementation  `json:"implementations,omitempty"`
	Models          []Model           `json:"models"`
	Connections     []Connection      `json:"connections,omitempty"`
	Mediations      []Mediation       `json:"mediations,omitempty"`
	Sequence        []string          `json:"sequence,omitempty"`
	Checks          []validator.Check `json:"checks,omitempty"`
}

// Implementation declares a model implementation missing from the catalog.
// It can be referenced by models of the same manifest.
type Implementation struct {
	ID          string `json:"id"`
	Type        string `json:"type"`
	Description string `json:"description,omitempty"`
	URL         string `json:"url,omitempty"`
	Processors  int    `json:"processors,omitempty"`
	Forcing     bool   `json:"forcing,omitempty"`
}

// Model is a model entry. Either Implementation names a catalog entry, or
// Type and Name describe the model directly.
type Model struct {
	Type           string                 `json:"type,omitempty"`
	Implementation string                 `json:"implementation,omitempty"`
	Name           string                 `json:"name,omitempty"`
	Processors     int                    `json:"processors,omitempty"`
	Forcing        string                 `json:"forcing,omitempty"`
	Verbosity      string                 `json:"verbosity,omitempty"`
	Attributes     map[string]interface{} `json:"attributes,omitempty"`
}

// Connection couples two models, given as a route ("ATM -> OCN") or as
// source and target.
type Connection struct {
	Route  string `json:"route,omitempty"`
	Source string `json:"source,omitempty"`
	Target string `json:"target,omitempty"`
	Method string `json:"method,omitempty"`
}

// Mediation routes sources through mediator functions to targets.
type Mediation struct {
	Sources    []string               `json:"sources,omitempty"`
	Functions  []string               `json:"functions,omitempty"`
	Targets    []string               `json:"targets,omitempty"`
	Method     string                 `json:"method,omitempty"`
	Processors int                    `json:"processors,omitempty"`
	Name       string                 `json:"name,omitempty"`
	Attributes map[string]interface{} `json:"attributes,omitempty"`
}

// Load reads and validates the manifest at path. The format follows the
// file extension: .json or .hcl.
func Load(ctx context.Context, path string) (m *Manifest, err error) {
	ctx, span := tracing.Start(ctx, "manifest.Load", attribute.String("path", path))
	defer func() { tracing.End(span, err) }()

	src, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}

	var doc []byte
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".json":
		doc = src
	case ".hcl":
		decoded, err := decodeHCL(src, path)
		if err != nil {
			return nil, err
		}
		if doc, err = json.Marshal(decoded); err != nil {
			return nil, fmt.Errorf("encode manifest: %w", err)
		}
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, ext)
	}

	return Parse(ctx, doc)
}

// Parse validates a JSON manifest document and decodes it.
func Parse(ctx context.Context, doc []byte) (*Manifest, error) {
	v, err := validator.New()
	if err != nil {
		return nil, err
	}
	if result := v.ValidateManifestJSON(doc); !result.Valid {
		errs := new(multierror.Error)
		for _, e := range result.Errors {
			errs = multierror.Append(errs, e)
		}
		return nil, fmt.Errorf("%w: %w", ErrInvalidManifest, errs)
	}

	var m Manifest
	if err := json.Unmarshal(doc, &m); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidManifest, err)
	}
	return &m, nil
}
