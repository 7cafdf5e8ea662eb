package manifest

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/hashicorp/go-multierror"

	"github.com/flexinfer/nemsgen/internal/registry"
	"github.com/flexinfer/nemsgen/internal/validator"
	"github.com/flexinfer/nemsgen/pkg/coupling"
	"github.com/flexinfer/nemsgen/pkg/nems"
	"github.com/flexinfer/nemsgen/pkg/types"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func loadAndBuild(t *testing.T, path string) *nems.ModelingSystem {
	t.Helper()
	ctx := context.Background()
	m, err := Load(ctx, path)
	if err != nil {
		t.Fatalf("Load(%s) failed: %v", path, err)
	}
	sys, err := Build(ctx, m, registry.NewMemoryRegistryWithDefaults(), quietLogger())
	if err != nil {
		t.Fatalf("Build(%s) failed: %v", path, err)
	}
	return sys
}

func TestLoadAndBuild(t *testing.T) {
	fromJSON := loadAndBuild(t, "testdata/shinnecock.json")
	fromHCL := loadAndBuild(t, "testdata/shinnecock.hcl")

	if fromJSON.Processors() != 784 {
		t.Errorf("Processors() = %d, want 784", fromJSON.Processors())
	}

	wantSeq := []string{
		"MED -> OCN",
		"ATM",
		"ATM -> MED -> OCN",
		"WAV -> OCN",
		"OCN",
		"WAV",
		"ATM -> HYD",
		"WAV -> HYD",
		"HYD",
		"HYD -> MED",
	}
	if diff := cmp.Diff(wantSeq, fromJSON.SequenceStrings()); diff != "" {
		t.Errorf("SequenceStrings() mismatch (-want +got):\n%s", diff)
	}

	if diff := cmp.Diff(fromJSON.Configuration(), fromHCL.Configuration()); diff != "" {
		t.Errorf("JSON and HCL manifests render differently (-json +hcl):\n%s", diff)
	}

	ocn, err := fromJSON.Get("OCN")
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]string{"Verbosity", "DumpFields"}, ocn.Attributes().Keys()); diff != "" {
		t.Errorf("OCN attribute order mismatch (-want +got):\n%s", diff)
	}
	if ocn.Attributes().Verbosity() != types.VerbosityMaximum {
		t.Errorf("OCN verbosity = %s", ocn.Attributes().Verbosity())
	}

	atm, err := fromHCL.Get("atmospheric")
	if err != nil {
		t.Fatal(err)
	}
	if atm.Forcing() != "forcings/wind_atm_fin_ch_time_vec.nc" || atm.Processors() != 1 {
		t.Errorf("ATM = %s with %d processors", atm.Forcing(), atm.Processors())
	}
}

func TestLoad_Errors(t *testing.T) {
	ctx := context.Background()

	t.Run("unsupported extension", func(t *testing.T) {
		path := writeFile(t, "system.yaml", "start: today")
		if _, err := Load(ctx, path); !errors.Is(err, ErrUnsupportedFormat) {
			t.Errorf("expected ErrUnsupportedFormat, got %v", err)
		}
	})

	t.Run("missing file", func(t *testing.T) {
		if _, err := Load(ctx, filepath.Join(t.TempDir(), "none.json")); !errors.Is(err, os.ErrNotExist) {
			t.Errorf("expected os.ErrNotExist, got %v", err)
		}
	})

	t.Run("schema violation", func(t *testing.T) {
		path := writeFile(t, "system.json", `{"start": "2020-06-01", "end": "2020-06-02", "interval": "1h", "models": []}`)
		if _, err := Load(ctx, path); !errors.Is(err, ErrInvalidManifest) {
			t.Errorf("expected ErrInvalidManifest, got %v", err)
		}
	})

	t.Run("hcl syntax error", func(t *testing.T) {
		path := writeFile(t, "system.hcl", `start = "2020-06-01"
model "OCN" {
`)
		if _, err := Load(ctx, path); !errors.Is(err, ErrInvalidManifest) {
			t.Errorf("expected ErrInvalidManifest, got %v", err)
		}
	})

	t.Run("hcl nested attributes", func(t *testing.T) {
		path := writeFile(t, "system.hcl", `start    = "2020-06-01"
end      = "2020-06-02"
interval = "1h"
attributes = {
  Nested = { a = 1 }
}
model "OCN" {
  name       = "adcirc"
  processors = 4
}
`)
		if _, err := Load(ctx, path); !errors.Is(err, ErrInvalidManifest) {
			t.Errorf("expected ErrInvalidManifest, got %v", err)
		}
	})

	t.Run("hcl implementation block", func(t *testing.T) {
		path := writeFile(t, "system.hcl", `start    = "2020-06-01"
end      = "2020-06-02"
interval = "1h"
implementation "roms" {
  type       = "OCN"
  processors = 8
}
model "OCN" {
  implementation = "roms"
}
`)
		m, err := Load(ctx, path)
		if err != nil {
			t.Fatalf("Load failed: %v", err)
		}
		want := []Implementation{{ID: "roms", Type: "OCN", Processors: 8}}
		if diff := cmp.Diff(want, m.Implementations); diff != "" {
			t.Errorf("implementations mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("hcl schema violation", func(t *testing.T) {
		path := writeFile(t, "system.hcl", `start    = "2020-06-01"
end      = "2020-06-02"
interval = "hourly"
model "OCN" {
  name = "adcirc"
}
`)
		_, err := Load(ctx, path)
		if !errors.Is(err, ErrInvalidManifest) {
			t.Fatalf("expected ErrInvalidManifest, got %v", err)
		}
		if !strings.Contains(err.Error(), "/interval") {
			t.Errorf("error should point at /interval: %v", err)
		}
	})
}

func TestBuild(t *testing.T) {
	ctx := context.Background()
	catalog := registry.NewMemoryRegistryWithDefaults()
	base := func() *Manifest {
		return &Manifest{
			Start:    "2020-06-01",
			End:      "2020-06-03T12:00:00Z",
			Interval: "30m",
			Models: []Model{
				{Type: "OCN", Name: "adcirc", Processors: 4},
				{Implementation: "ww3", Processors: 2},
			},
		}
	}

	t.Run("direct models", func(t *testing.T) {
		sys, err := Build(ctx, base(), catalog, quietLogger())
		if err != nil {
			t.Fatalf("Build failed: %v", err)
		}
		if sys.Processors() != 6 || sys.Duration().Hours() != 60 {
			t.Errorf("Processors() = %d, Duration() = %s", sys.Processors(), sys.Duration())
		}
	})

	t.Run("errors are aggregated", func(t *testing.T) {
		m := base()
		m.Interval = "-1h"
		m.Models = append(m.Models,
			Model{Implementation: "mom6", Processors: 4},
			Model{Type: "LND", Name: "noah", Processors: 1},
		)
		_, err := Build(ctx, m, catalog, quietLogger())
		var merr *multierror.Error
		if !errors.As(err, &merr) {
			t.Fatalf("expected *multierror.Error, got %v", err)
		}
		if len(merr.Errors) != 3 {
			t.Errorf("expected 3 errors, got %d: %v", len(merr.Errors), err)
		}
		if !errors.Is(err, registry.ErrImplementationNotFound) {
			t.Errorf("expected ErrImplementationNotFound in %v", err)
		}
		if !errors.Is(err, types.ErrUnknownEntryType) {
			t.Errorf("expected ErrUnknownEntryType in %v", err)
		}
	})

	t.Run("forcing implementation needs a path", func(t *testing.T) {
		m := base()
		m.Models = append(m.Models, Model{Implementation: "atmesh"})
		if _, err := Build(ctx, m, catalog, quietLogger()); err == nil || !strings.Contains(err.Error(), "forcing path") {
			t.Errorf("expected forcing path error, got %v", err)
		}
	})

	t.Run("type must match implementation", func(t *testing.T) {
		m := base()
		m.Models[1].Type = "ATM"
		if _, err := Build(ctx, m, catalog, quietLogger()); err == nil {
			t.Error("expected type mismatch error")
		}
	})

	t.Run("bad connection", func(t *testing.T) {
		m := base()
		m.Connections = []Connection{{Source: "WAV", Target: "OCN", Method: "cubic"}, {Route: "OCN -> HYD"}}
		_, err := Build(ctx, m, catalog, quietLogger())
		if !errors.Is(err, types.ErrUnknownRemapMethod) {
			t.Errorf("expected ErrUnknownRemapMethod, got %v", err)
		}
		if !errors.Is(err, coupling.ErrUnknownModel) {
			t.Errorf("expected ErrUnknownModel, got %v", err)
		}
	})

	t.Run("failed checks return the system", func(t *testing.T) {
		m := base()
		m.Checks = append(m.Checks,
			checkOf("processors == 6"),
			checkOf("processors > 100"),
		)
		sys, err := Build(ctx, m, catalog, quietLogger())
		if !errors.Is(err, ErrChecksFailed) {
			t.Fatalf("expected ErrChecksFailed, got %v", err)
		}
		if sys == nil || sys.Processors() != 6 {
			t.Error("expected the built system alongside the check failure")
		}
		if !strings.Contains(err.Error(), "processors > 100") {
			t.Errorf("error should name the failing check: %v", err)
		}
	})

	t.Run("manifest implementations", func(t *testing.T) {
		m := base()
		m.Implementations = []Implementation{{ID: "roms", Type: "OCN", Processors: 8}}
		m.Models[0] = Model{Implementation: "roms"}
		sys, err := Build(ctx, m, catalog, quietLogger())
		if err != nil {
			t.Fatalf("Build failed: %v", err)
		}
		if sys.Processors() != 10 {
			t.Errorf("Processors() = %d, want 10", sys.Processors())
		}
		exists, err := catalog.Exists(ctx, "roms")
		if err != nil || exists {
			t.Errorf("roms should be removed after Build: exists=%v err=%v", exists, err)
		}
	})

	t.Run("implementation clashes", func(t *testing.T) {
		m := base()
		m.Implementations = []Implementation{
			{ID: "adcirc", Type: "OCN"},
			{ID: "roms", Type: "OCN"},
			{ID: "ROMS", Type: "OCN"},
		}
		_, err := Build(ctx, m, catalog, quietLogger())
		if !errors.Is(err, registry.ErrImplementationExists) {
			t.Fatalf("expected ErrImplementationExists, got %v", err)
		}
		if exists, _ := catalog.Exists(ctx, "roms"); exists {
			t.Error("no implementation should be registered when one clashes")
		}
		if _, err := catalog.Get(ctx, "adcirc"); err != nil {
			t.Errorf("built-in adcirc should be kept: %v", err)
		}
	})

	t.Run("unknown catalog", func(t *testing.T) {
		if _, err := Build(ctx, base(), nil, quietLogger()); err == nil {
			t.Error("expected error without a catalog")
		}
	})
}

func TestAttributes(t *testing.T) {
	level, attrs, err := attributes(map[string]interface{}{
		"Zeta":      2.5,
		"Alpha":     true,
		"Verbosity": "high",
		"Name":      "x",
	}, "")
	if err != nil {
		t.Fatalf("attributes failed: %v", err)
	}
	if level != types.VerbosityHigh {
		t.Errorf("level = %s", level)
	}
	if diff := cmp.Diff([]string{"Verbosity", "Alpha", "Name", "Zeta"}, attrs.Keys()); diff != "" {
		t.Errorf("key order mismatch (-want +got):\n%s", diff)
	}
	if v, _ := attrs.Get("Zeta"); v.Wire() != "2.5" {
		t.Errorf("Zeta = %q", v.Wire())
	}
	if v, _ := attrs.Get("Alpha"); v.Wire() != "true" {
		t.Errorf("Alpha = %q", v.Wire())
	}

	t.Run("explicit verbosity wins", func(t *testing.T) {
		level, _, err := attributes(map[string]interface{}{"Verbosity": "high"}, "off")
		if err != nil || level != types.VerbosityOff {
			t.Errorf("level = %s, err = %v", level, err)
		}
	})

	t.Run("bad values", func(t *testing.T) {
		if _, _, err := attributes(map[string]interface{}{"List": []interface{}{1}}, ""); err == nil {
			t.Error("expected error for list value")
		}
		if _, _, err := attributes(nil, "loud"); !errors.Is(err, types.ErrUnknownVerbosity) {
			t.Errorf("expected ErrUnknownVerbosity, got %v", err)
		}
	})
}

func checkOf(expr string) validator.Check {
	return validator.Check{Expr: expr}
}
