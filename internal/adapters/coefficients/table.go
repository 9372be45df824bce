package coefficients

import (
	"errors"
	"fmt"
	"math"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// Table is the coefficient vector of one model, keyed by coefficient id.
// It implements ports.CoefficientTable and is read-only once loaded.
type Table struct {
	Model  string
	values map[int]float64
	names  map[int]string
}

func NewTable(model string, values map[int]float64) *Table {
	t := &Table{Model: model, values: make(map[int]float64, len(values)), names: map[int]string{}}
	for id, v := range values {
		t.values[id] = v
	}
	return t
}

func (t *Table) Coefficient(id int) (float64, bool) {
	v, ok := t.values[id]
	return v, ok
}

// Name is the label given in the coefficient file, if any.
func (t *Table) Name(id int) string { return t.names[id] }

func (t *Table) Len() int { return len(t.values) }

// IDs returns the coefficient ids in ascending order.
func (t *Table) IDs() []int {
	ids := make([]int, 0, len(t.values))
	for id := range t.values {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}

// Set holds the tables of every model of a run.
type Set map[string]*Table

var ErrUnknownModel = errors.New("no coefficients for model")

func (s Set) Table(model string) (*Table, error) {
	t, ok := s[model]
	if !ok {
		return nil, fmt.Errorf("%w %q", ErrUnknownModel, model)
	}
	return t, nil
}

type coefficientFile struct {
	Models []modelEntry `yaml:"models"`
}

type modelEntry struct {
	Name         string             `yaml:"name"`
	Coefficients []coefficientEntry `yaml:"coefficients"`
}

type coefficientEntry struct {
	ID    int     `yaml:"id"`
	Name  string  `yaml:"name"`
	Value float64 `yaml:"value"`
}

func LoadFile(path string) (Set, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("load coefficients: read %q: %w", path, err)
	}
	set, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("load coefficients %q: %w", path, err)
	}
	return set, nil
}

// Parse reads a coefficient document. Id 0 is reserved for fixed terms and
// may not appear in a file.
func Parse(data []byte) (Set, error) {
	var file coefficientFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse coefficients: %w", err)
	}

	set := make(Set, len(file.Models))
	for _, m := range file.Models {
		name := strings.TrimSpace(m.Name)
		if name == "" {
			return nil, errors.New("parse coefficients: model name must not be empty")
		}
		if _, dup := set[name]; dup {
			return nil, fmt.Errorf("parse coefficients: duplicate model %q", name)
		}

		t := NewTable(name, nil)
		for i, c := range m.Coefficients {
			if c.ID <= 0 {
				return nil, fmt.Errorf("parse coefficients: model %q entry %d: id %d must be positive", name, i+1, c.ID)
			}
			if _, dup := t.values[c.ID]; dup {
				return nil, fmt.Errorf("parse coefficients: model %q: duplicate id %d", name, c.ID)
			}
			if math.IsNaN(c.Value) || math.IsInf(c.Value, 0) {
				return nil, fmt.Errorf("parse coefficients: model %q id %d: value %v is not finite", name, c.ID, c.Value)
			}
			t.values[c.ID] = c.Value
			t.names[c.ID] = c.Name
		}
		set[name] = t
	}
	return set, nil
}
