package validator

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/flexinfer/nemsgen/pkg/coupling"
	"github.com/flexinfer/nemsgen/pkg/nems"
	"github.com/flexinfer/nemsgen/pkg/types"
)

func checkSystem(t *testing.T) *nems.ModelingSystem {
	t.Helper()
	atm, err := coupling.NewModelEntry(types.Atmospheric, "atmesh", 1, coupling.WithForcing("/data/wind.nc"))
	if err != nil {
		t.Fatal(err)
	}
	ocn, err := coupling.NewModelEntry(types.Ocean, "adcirc", 11)
	if err != nil {
		t.Fatal(err)
	}
	start := time.Date(2020, 6, 1, 0, 0, 0, 0, time.UTC)
	s, err := nems.New(&nems.Config{Start: start, End: start.Add(36 * time.Hour), Interval: 15 * time.Minute}, atm, ocn)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := s.Connect("ATM", "OCN", ""); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Mediate(nems.MediationSpec{Sources: []string{"OCN"}, Functions: []string{"MedPhase_prep_atm"}, Targets: []string{"ATM"}}); err != nil {
		t.Fatal(err)
	}
	return s
}

func TestEnvironment(t *testing.T) {
	env := Environment(checkSystem(t))

	if env["processors"] != 13 {
		t.Errorf("processors = %v, want 13", env["processors"])
	}
	if env["interval_seconds"] != 900 {
		t.Errorf("interval_seconds = %v, want 900", env["interval_seconds"])
	}
	if env["duration_hours"] != 36.0 {
		t.Errorf("duration_hours = %v, want 36", env["duration_hours"])
	}
	if diff := cmp.Diff([]string{"ATM -> OCN"}, env["connections"]); diff != "" {
		t.Errorf("connections mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"OCN -> MED -> ATM"}, env["mediations"]); diff != "" {
		t.Errorf("mediations mismatch (-want +got):\n%s", diff)
	}

	models := env["models"].(map[string]interface{})
	ocn := models["OCN"].(map[string]interface{})
	want := map[string]interface{}{"name": "adcirc", "processors": 11, "start": 2, "end": 12, "forcing": false}
	if diff := cmp.Diff(want, ocn); diff != "" {
		t.Errorf("OCN summary mismatch (-want +got):\n%s", diff)
	}
}

func TestCheckEvaluator_RunChecks(t *testing.T) {
	eval := NewCheckEvaluator()
	env := Environment(checkSystem(t))

	t.Run("all pass", func(t *testing.T) {
		result := eval.RunChecks([]Check{
			{Name: "total", Expr: "processors == 13"},
			{Expr: `"MED" in models && models.MED.processors == 1`},
			{Expr: `models.ATM.forcing`},
			{Expr: `duration_hours / (interval_seconds / 3600.0) == 144`},
		}, env)
		if !result.Valid {
			t.Errorf("expected checks to pass, got %v", result.Errors)
		}
	})

	t.Run("failures are reported", func(t *testing.T) {
		result := eval.RunChecks([]Check{
			{Name: "ocean width", Expr: "models.OCN.processors > 100", Message: "ocean needs more processors"},
			{Expr: "len(connections) == 0"},
			{Name: "broken", Expr: "nonexistent > 1"},
		}, env)
		if result.Valid {
			t.Fatal("expected failures")
		}
		var paths []string
		for _, e := range result.Errors {
			paths = append(paths, e.Path)
		}
		if diff := cmp.Diff([]string{"ocean width", "/checks/1", "broken"}, paths); diff != "" {
			t.Errorf("paths mismatch (-want +got):\n%s", diff)
		}
		if result.Errors[0].Message != "ocean needs more processors" {
			t.Errorf("message = %q", result.Errors[0].Message)
		}
		if result.Errors[1].Message != "check failed: len(connections) == 0" {
			t.Errorf("message = %q", result.Errors[1].Message)
		}
	})
}
