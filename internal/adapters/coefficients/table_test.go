package coefficients

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

const sample = `
models:
  - name: tour_mode
    coefficients:
      - {id: 1, name: walk_constant, value: -1.25}
      - {id: 5, name: generalized_time, value: -0.04}
  - name: auto_ownership
    coefficients:
      - {id: 1, name: one_vehicle, value: 0.8}
`

func TestParse(t *testing.T) {
	set, err := Parse([]byte(sample))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	mode, err := set.Table("tour_mode")
	if err != nil {
		t.Fatalf("Table: %v", err)
	}
	if v, ok := mode.Coefficient(5); !ok || v != -0.04 {
		t.Fatalf("Coefficient(5) = %v, %v, want -0.04, true", v, ok)
	}
	if _, ok := mode.Coefficient(2); ok {
		t.Fatalf("Coefficient(2) found, want missing")
	}
	if got := mode.Name(1); got != "walk_constant" {
		t.Fatalf("Name(1) = %q, want walk_constant", got)
	}
	if got := mode.IDs(); len(got) != 2 || got[0] != 1 || got[1] != 5 {
		t.Fatalf("IDs = %v, want [1 5]", got)
	}

	if _, err := set.Table("tour_time"); !errors.Is(err, ErrUnknownModel) {
		t.Fatalf("Table(tour_time) err = %v, want ErrUnknownModel", err)
	}
}

func TestParseRejects(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{"reserved id", "models: [{name: m, coefficients: [{id: 0, value: 1}]}]"},
		{"duplicate id", "models: [{name: m, coefficients: [{id: 1, value: 1}, {id: 1, value: 2}]}]"},
		{"duplicate model", "models: [{name: m}, {name: m}]"},
		{"unnamed model", "models: [{coefficients: [{id: 1, value: 1}]}]"},
		{"infinite value", "models: [{name: m, coefficients: [{id: 1, value: .inf}]}]"},
		{"malformed", "models: {"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Parse([]byte(tt.doc)); err == nil {
				t.Fatalf("Parse(%q) succeeded, want error", tt.doc)
			}
		})
	}
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "coefficients.yaml")
	if err := os.WriteFile(path, []byte(sample), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	set, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if len(set) != 2 {
		t.Fatalf("loaded %d models, want 2", len(set))
	}

	if _, err := LoadFile(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatalf("LoadFile(missing) succeeded, want error")
	}
}
