package types

import (
	"encoding/json"
	"errors"
	"testing"
)

func TestParseEntryType(t *testing.T) {
	tests := []struct {
		in   string
		want EntryType
	}{
		{"ATM", Atmospheric},
		{"atmospheric", Atmospheric},
		{"WAV", Wave},
		{"wave", Wave},
		{"ocn", Ocean},
		{"OCEAN", Ocean},
		{"HYD", Hydrological},
		{"hydrological", Hydrological},
		{" ice ", Ice},
		{"MED", Mediator},
		{"Mediator", Mediator},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseEntryType(tt.in)
			if err != nil {
				t.Fatalf("ParseEntryType(%q) failed: %v", tt.in, err)
			}
			if got != tt.want {
				t.Errorf("ParseEntryType(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}

	t.Run("unknown", func(t *testing.T) {
		_, err := ParseEntryType("LND")
		if !errors.Is(err, ErrUnknownEntryType) {
			t.Errorf("expected ErrUnknownEntryType, got %v", err)
		}
	})
}

func TestEntryTypeCodes(t *testing.T) {
	want := []string{"ATM", "WAV", "OCN", "HYD", "ICE", "MED"}
	for i, et := range EntryTypes() {
		if et.Code() != want[i] {
			t.Errorf("EntryTypes()[%d].Code() = %q, want %q", i, et.Code(), want[i])
		}
	}
	if EntryType(42).Valid() {
		t.Error("EntryType(42) should not be valid")
	}
	if Mediator.String() != "MEDIATOR" {
		t.Errorf("Mediator.String() = %q", Mediator.String())
	}
}

func TestEntryTypeJSON(t *testing.T) {
	var got struct {
		Type EntryType `json:"type"`
	}
	if err := json.Unmarshal([]byte(`{"type":"hydrological"}`), &got); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}
	if got.Type != Hydrological {
		t.Errorf("Type = %v, want HYDROLOGICAL", got.Type)
	}

	out, err := json.Marshal(got)
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}
	if string(out) != `{"type":"HYD"}` {
		t.Errorf("Marshal = %s", out)
	}

	if err := json.Unmarshal([]byte(`{"type":"LND"}`), &got); !errors.Is(err, ErrUnknownEntryType) {
		t.Errorf("expected ErrUnknownEntryType, got %v", err)
	}
}

func TestParseRemapMethod(t *testing.T) {
	tests := []struct {
		in   string
		want RemapMethod
	}{
		{"redist", Redistribute},
		{"Redistribute", Redistribute},
		{"bilinear", Bilinear},
		{"patch", Patch},
		{"nearest_stod", NearestSourceToDestination},
		{"nearest_dtos", NearestDestinationToSource},
		{"conservative", Conservative},
	}
	for _, tt := range tests {
		got, err := ParseRemapMethod(tt.in)
		if err != nil {
			t.Errorf("ParseRemapMethod(%q) failed: %v", tt.in, err)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseRemapMethod(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}

	if _, err := ParseRemapMethod("cubic"); !errors.Is(err, ErrUnknownRemapMethod) {
		t.Errorf("expected ErrUnknownRemapMethod, got %v", err)
	}
}

func TestParseVerbosity(t *testing.T) {
	v, err := ParseVerbosity("MAXIMUM")
	if err != nil {
		t.Fatalf("ParseVerbosity failed: %v", err)
	}
	if v != VerbosityMaximum {
		t.Errorf("expected max, got %q", v)
	}
	if _, err := ParseVerbosity("loud"); !errors.Is(err, ErrUnknownVerbosity) {
		t.Errorf("expected ErrUnknownVerbosity, got %v", err)
	}
}

func TestAttributes(t *testing.T) {
	t.Run("keeps insertion order", func(t *testing.T) {
		var a Attributes
		a.Set("b", String("1"))
		a.Set("a", Bool(true))
		a.Set("b", String("2"))

		keys := a.Keys()
		if len(keys) != 2 || keys[0] != "b" || keys[1] != "a" {
			t.Fatalf("unexpected keys %v", keys)
		}
		v, _ := a.Get("b")
		if v.Wire() != "2" {
			t.Errorf("expected overwritten value 2, got %q", v.Wire())
		}
		v, _ = a.Get("a")
		if v.Wire() != "true" {
			t.Errorf("expected bool to render lowercase, got %q", v.Wire())
		}
	})

	t.Run("set first moves key", func(t *testing.T) {
		a := NewAttributes(KeyValue{"x", String("1")}, KeyValue{VerbosityKey, VerbosityValue(VerbosityMaximum)})
		a.SetFirst(VerbosityKey, VerbosityValue(VerbosityMinimum))
		if a.Keys()[0] != VerbosityKey {
			t.Errorf("expected %s first, got %v", VerbosityKey, a.Keys())
		}
		if a.Verbosity() != VerbosityMinimum {
			t.Errorf("expected min, got %q", a.Verbosity())
		}
	})

	t.Run("clone is independent", func(t *testing.T) {
		a := NewAttributes(KeyValue{"x", String("1")})
		c := a.Clone()
		c.Set("y", String("2"))
		c.Delete("x")
		if a.Len() != 1 || !a.Has("x") {
			t.Errorf("original mutated: %v", a.Keys())
		}
		if c.Len() != 1 || !c.Has("y") {
			t.Errorf("unexpected clone keys: %v", c.Keys())
		}
	})

	t.Run("nil receiver reads", func(t *testing.T) {
		var a *Attributes
		if a.Len() != 0 || a.Has("x") || a.Verbosity() != DefaultVerbosity {
			t.Error("nil attributes should behave as empty")
		}
	})
}
