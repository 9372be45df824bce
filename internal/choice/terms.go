package choice

import (
	"daysim/internal/domain"
	"fmt"
)

// FixedCoefficientID registers a term whose coefficient is constrained to 1
// (sampling corrections, shadow prices). It never needs a table entry.
const FixedCoefficientID = 0

// termEntry is either a plain term or a reference to a shared component,
// kept in registration order for estimation rows.
type termEntry struct {
	term      domain.ObservationTerm
	component *UtilityComponent
}

type termSet struct {
	utility float64
	entries []termEntry
}

func (t *termSet) add(c *Calculator, coefficientID int, value float64) {
	c.evaluated = false
	coef := 1.0
	if coefficientID != FixedCoefficientID {
		var ok bool
		coef, ok = c.coefficient(coefficientID)
		if !ok {
			c.fail(fmt.Errorf("%w: model=%s coefficient_id=%d", ErrUnknownCoefficient, c.spec.Name, coefficientID))
			return
		}
	}

	t.utility += coef * value
	if c.mode == Estimating {
		t.entries = append(t.entries, termEntry{term: domain.ObservationTerm{CoefficientID: coefficientID, Value: value}})
	}
}

func (t *termSet) reset() {
	t.utility = 0
	t.entries = t.entries[:0]
}

// flatten expands component references in place, preserving order.
func (t *termSet) flatten() []domain.ObservationTerm {
	out := make([]domain.ObservationTerm, 0, len(t.entries))
	for _, e := range t.entries {
		if e.component != nil {
			out = append(out, e.component.flatten()...)
			continue
		}
		out = append(out, e.term)
	}
	return out
}

// UtilityComponent is a bundle of utility terms computed once and shared by
// pointer across many alternatives of one decision (for example a
// person-level block reused by every day-pattern alternative).
type UtilityComponent struct {
	ID   int
	calc *Calculator
	termSet
}

func (u *UtilityComponent) AddUtilityTerm(coefficientID int, value float64) {
	u.add(u.calc, coefficientID, value)
}

func (u *UtilityComponent) Utility() float64 { return u.utility }
