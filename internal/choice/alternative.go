package choice

import (
	"daysim/internal/domain"
	"fmt"
	"math"
)

// Alternative is one candidate outcome of a decision. It lives only as long
// as the calculator that created it.
type Alternative struct {
	ID      int
	Payload domain.ChoicePayload

	available  bool
	chosen     bool
	calc       *Calculator
	components []*UtilityComponent
	nest       *Nest
	termSet

	total       float64
	probability float64
}

// AddUtilityTerm adds coefficient(coefficientID) * value to the utility.
// Terms on unavailable alternatives are accepted and ignored when computing
// probabilities.
func (a *Alternative) AddUtilityTerm(coefficientID int, value float64) {
	a.add(a.calc, coefficientID, value)
}

// AddFixedUtility adds value with a coefficient constrained to 1.
func (a *Alternative) AddFixedUtility(value float64) {
	a.add(a.calc, FixedCoefficientID, value)
}

// AddUtilityComponent adds a shared component's utility by reference.
func (a *Alternative) AddUtilityComponent(u *UtilityComponent) {
	if u == nil {
		a.calc.fail(fmt.Errorf("%w: nil component on alternative %d", ErrUnknownComponent, a.ID))
		return
	}
	a.calc.evaluated = false
	a.components = append(a.components, u)
	if a.calc.mode == Estimating {
		a.entries = append(a.entries, termEntry{component: u})
	}
}

// AddNestedAlternative places the alternative in nest nestID. index orders
// sibling nests; theta is the nest scale in (0,1]. The returned nest may
// itself be placed under a parent nest.
func (a *Alternative) AddNestedAlternative(nestID, index int, theta float64) *Nest {
	n := a.calc.nestFor(nestID, index, theta)
	if n == nil {
		return a.calc.detachedNest()
	}
	if a.nest != nil && a.nest != n {
		a.calc.fail(fmt.Errorf("%w: alternative %d already in nest %d, cannot join nest %d", ErrInvalidNest, a.ID, a.nest.ID, nestID))
		return n
	}
	if a.nest == nil {
		a.nest = n
		a.calc.evaluated = false
	}
	return n
}

// MarkUnavailable removes the alternative from the choice set. Availability
// is monotonic: nothing makes it available again.
func (a *Alternative) MarkUnavailable() {
	if a.available {
		a.available = false
		a.calc.evaluated = false
	}
}

func (a *Alternative) Available() bool { return a.available }

// Chosen marks the observed outcome when estimating.
func (a *Alternative) Chosen() bool { return a.chosen }

// Utility is the linear terms plus every attached component.
func (a *Alternative) Utility() float64 {
	u := a.utility
	for _, c := range a.components {
		u += c.utility
	}
	return u
}

// Probability is valid after the calculator has evaluated the decision.
func (a *Alternative) Probability() float64 { return a.probability }

func (a *Alternative) reset() {
	a.ID = 0
	a.available = false
	a.chosen = false
	a.Payload = domain.ChoicePayload{}
	a.components = a.components[:0]
	a.nest = nil
	a.termSet.reset()
	a.total = 0
	a.probability = 0
}

// Nest groups alternatives (and child nests) that share a scale theta.
type Nest struct {
	ID    int
	Index int
	Theta float64

	calc   *Calculator
	parent *Nest
	termSet

	leaves   []*Alternative
	children []*Nest

	available   bool
	logsum      float64
	inclusive   float64
	probability float64
}

// AddUtilityTerm adds a nest-level term (e.g. a branch constant).
func (n *Nest) AddUtilityTerm(coefficientID int, value float64) {
	n.add(n.calc, coefficientID, value)
}

// AddNestedAlternative places this nest inside parent nest parentID.
func (n *Nest) AddNestedAlternative(parentID, index int, theta float64) *Nest {
	p := n.calc.nestFor(parentID, index, theta)
	if p == nil {
		return n.calc.detachedNest()
	}
	if n.parent != nil && n.parent != p {
		n.calc.fail(fmt.Errorf("%w: nest %d already under nest %d, cannot join nest %d", ErrInvalidNest, n.ID, n.parent.ID, parentID))
		return p
	}
	for anc := p; anc != nil; anc = anc.parent {
		if anc == n {
			n.calc.fail(fmt.Errorf("%w: nest %d would contain itself", ErrInvalidNest, n.ID))
			return p
		}
	}
	if n.parent == nil {
		n.parent = p
		n.calc.evaluated = false
	}
	return p
}

// Logsum of the nest after evaluation: theta * ln(sum exp(V/theta)).
func (n *Nest) Logsum() float64 { return n.logsum }

func validTheta(theta float64) bool {
	return theta > 0 && theta <= 1 && !math.IsNaN(theta)
}
