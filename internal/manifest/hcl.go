package manifest

import (
	"fmt"

	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/zclconf/go-cty/cty"

	"github.com/flexinfer/nemsgen/internal/validator"
)

// hclRoot is the HCL form of Manifest. Implementations, models and checks
// are labeled blocks:
//
//	implementation "roms" {
//	  type = "OCN"
//	}
//
//	model "OCN" {
//	  implementation = "adcirc"
//	  processors     = 11
//	}
//
//	check "total" {
//	  expr = "processors == 12"
//	}
type hclRoot struct {
	Start       string           `hcl:"start"`
	End         string           `hcl:"end"`
	Interval    string           `hcl:"interval"`
	Verbosity   string           `hcl:"verbosity,optional"`
	Attributes  cty.Value        `hcl:"attributes,optional"`

	Implementations []*hclImplementation `hcl:"implementation,block"`
	Models          []*hclModel          `hcl:"model,block"`
	Connections     []*hclConnection     `hcl:"connection,block"`
	Mediations      []*hclMediation      `hcl:"mediation,block"`
	Sequence        []string             `hcl:"sequence,optional"`
	Checks          []*hclCheck          `hcl:"check,block"`
}

type hclImplementation struct {
	ID          string `hcl:"id,label"`
	Type        string `hcl:"type"`
	Description string `hcl:"description,optional"`
	URL         string `hcl:"url,optional"`
	Processors  int    `hcl:"processors,optional"`
	Forcing     bool   `hcl:"forcing,optional"`
}

type hclModel struct {
	Type           string    `hcl:"type,label"`
	Implementation string    `hcl:"implementation,optional"`
	Name           string    `hcl:"name,optional"`
	Processors     int       `hcl:"processors,optional"`
	Forcing        string    `hcl:"forcing,optional"`
	Verbosity      string    `hcl:"verbosity,optional"`
	Attributes     cty.Value `hcl:"attributes,optional"`
}

type hclConnection struct {
	Route  string `hcl:"route,optional"`
	Source string `hcl:"source,optional"`
	Target string `hcl:"target,optional"`
	Method string `hcl:"method,optional"`
}

type hclMediation struct {
	Sources    []string  `hcl:"sources,optional"`
	Functions  []string  `hcl:"functions,optional"`
	Targets    []string  `hcl:"targets,optional"`
	Method     string    `hcl:"method,optional"`
	Processors int       `hcl:"processors,optional"`
	Name       string    `hcl:"name,optional"`
	Attributes cty.Value `hcl:"attributes,optional"`
}

type hclCheck struct {
	Name    string `hcl:"name,label"`
	Expr    string `hcl:"expr"`
	Message string `hcl:"message,optional"`
}

// decodeHCL parses an HCL manifest into its JSON form.
func decodeHCL(src []byte, filename string) (*Manifest, error) {
	parser := hclparse.NewParser()
	file, diags := parser.ParseHCL(src, filename)
	if diags.HasErrors() {
		return nil, fmt.Errorf("%w: parse %s: %w", ErrInvalidManifest, filename, diags)
	}

	var root hclRoot
	if diags := gohcl.DecodeBody(file.Body, nil, &root); diags.HasErrors() {
		return nil, fmt.Errorf("%w: decode %s: %w", ErrInvalidManifest, filename, diags)
	}

	m := &Manifest{
		Start:     root.Start,
		End:       root.End,
		Interval:  root.Interval,
		Verbosity: root.Verbosity,
		Sequence:  root.Sequence,
	}

	var err error
	if m.Attributes, err = ctyAttributes(root.Attributes); err != nil {
		return nil, fmt.Errorf("%w: attributes: %w", ErrInvalidManifest, err)
	}

	for _, hi := range root.Implementations {
		m.Implementations = append(m.Implementations, Implementation(*hi))
	}

	for _, hm := range root.Models {
		model := Model{
			Type:           hm.Type,
			Implementation: hm.Implementation,
			Name:           hm.Name,
			Processors:     hm.Processors,
			Forcing:        hm.Forcing,
			Verbosity:      hm.Verbosity,
		}
		if model.Attributes, err = ctyAttributes(hm.Attributes); err != nil {
			return nil, fmt.Errorf("%w: model %q attributes: %w", ErrInvalidManifest, hm.Type, err)
		}
		m.Models = append(m.Models, model)
	}

	for _, hc := range root.Connections {
		m.Connections = append(m.Connections, Connection(*hc))
	}

	for i, hm := range root.Mediations {
		med := Mediation{
			Sources:    hm.Sources,
			Functions:  hm.Functions,
			Targets:    hm.Targets,
			Method:     hm.Method,
			Processors: hm.Processors,
			Name:       hm.Name,
		}
		if med.Attributes, err = ctyAttributes(hm.Attributes); err != nil {
			return nil, fmt.Errorf("%w: mediation %d attributes: %w", ErrInvalidManifest, i, err)
		}
		m.Mediations = append(m.Mediations, med)
	}

	for _, hc := range root.Checks {
		m.Checks = append(m.Checks, validator.Check{Name: hc.Name, Expr: hc.Expr, Message: hc.Message})
	}

	return m, nil
}

// ctyAttributes converts an HCL object of primitive values.
func ctyAttributes(val cty.Value) (map[string]interface{}, error) {
	if val.IsNull() {
		return nil, nil
	}
	if !val.IsWhollyKnown() {
		return nil, fmt.Errorf("attributes must be known values")
	}
	if !val.Type().IsObjectType() && !val.Type().IsMapType() {
		return nil, fmt.Errorf("attributes must be an object, got %s", val.Type().FriendlyName())
	}

	out := make(map[string]interface{})
	for it := val.ElementIterator(); it.Next(); {
		k, v := it.Element()
		key := k.AsString()
		if v.IsNull() {
			return nil, fmt.Errorf("attribute %q is null", key)
		}
		switch v.Type() {
		case cty.String:
			out[key] = v.AsString()
		case cty.Number:
			f, _ := v.AsBigFloat().Float64()
			out[key] = f
		case cty.Bool:
			out[key] = v.True()
		default:
			return nil, fmt.Errorf("attribute %q has unsupported type %s", key, v.Type().FriendlyName())
		}
	}
	return out, nil
}
