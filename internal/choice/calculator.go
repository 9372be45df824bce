package choice

import (
	"cmp"
	"context"
	"daysim/internal/domain"
	"daysim/internal/ports"
	"fmt"
	"math"
	"math/rand/v2"
	"slices"

	"go.uber.org/zap"
	"gonum.org/v1/gonum/floats"
)

// Mode selects what a resolved calculator produces.
type Mode int

const (
	// Simulating draws a choice from the decision's private stream.
	Simulating Mode = iota
	// Estimating records the observed choice and its utility decomposition.
	Estimating
)

func (m Mode) String() string {
	if m == Estimating {
		return "estimating"
	}
	return "simulating"
}

// Spec names a model and the coefficient table its terms read from.
type Spec struct {
	Name         string
	Coefficients ports.CoefficientTable
}

type state int

const (
	stateCreated state = iota
	statePopulated
	stateResolved
	stateDisposed
)

// NoForcedChoice asks SimulateChoice to draw rather than force an alternative.
const NoForcedChoice = -1

// Calculator evaluates one nested-logit decision. It is created from a
// worker's Context, populated, resolved exactly once (WriteObservation,
// SimulateChoice or ComputeLogsum) and then released back to the Context.
//
// A Calculator never leaves the goroutine that created it.
type Calculator struct {
	owner  *Context
	spec   Spec
	mode   Mode
	key    domain.DecisionKey
	logger *zap.Logger
	sink   ports.ObservationSink

	pcg *rand.PCG
	rng *rand.Rand

	alternatives []*Alternative
	altPool      []*Alternative
	components   map[int]*UtilityComponent
	nests        map[int]*Nest
	nestList     []*Nest

	state state
	err   error

	evaluated     bool
	evalErr       error
	rootLogsum    float64
	rootAvailable bool
}

func newCalculator(owner *Context) *Calculator {
	pcg := rand.NewPCG(0, 0)
	return &Calculator{
		owner:      owner,
		pcg:        pcg,
		rng:        rand.New(pcg),
		components: make(map[int]*UtilityComponent),
		nests:      make(map[int]*Nest),
	}
}

func (c *Calculator) init(spec Spec, mode Mode, key domain.DecisionKey) {
	c.spec = spec
	c.mode = mode
	c.key = key
	c.pcg.Seed(Seed(key), StreamChoice)
	c.state = stateCreated
	c.err = nil
	c.evaluated = false
	c.evalErr = nil
	c.rootLogsum = 0
	c.rootAvailable = false
}

func (c *Calculator) Key() domain.DecisionKey { return c.key }
func (c *Calculator) Mode() Mode              { return c.mode }
func (c *Calculator) ModelName() string       { return c.spec.Name }
func (c *Calculator) Logger() *zap.Logger     { return c.logger }

// Err returns the first configuration error recorded while populating.
func (c *Calculator) Err() error { return c.err }

func (c *Calculator) fail(err error) {
	if c.err == nil {
		c.err = err
	}
}

func (c *Calculator) coefficient(id int) (float64, bool) {
	if c.spec.Coefficients == nil {
		return 0, false
	}
	return c.spec.Coefficients.Coefficient(id)
}

// GetAlternative returns alternative id, creating it on first use. Asking
// again for an existing id can only clear availability and only set Chosen.
func (c *Calculator) GetAlternative(id int, available, chosen bool) *Alternative {
	if id < 0 {
		c.fail(fmt.Errorf("%w: model=%s id=%d", ErrInvalidAlternative, c.spec.Name, id))
		return &Alternative{ID: id, calc: c}
	}
	if c.state >= stateResolved {
		c.fail(fmt.Errorf("%w: model=%s cannot add alternative %d", ErrAlreadyResolved, c.spec.Name, id))
		return &Alternative{ID: id, calc: c}
	}

	c.evaluated = false
	for len(c.alternatives) <= id {
		c.alternatives = append(c.alternatives, nil)
	}

	a := c.alternatives[id]
	if a == nil {
		a = c.newAlternative()
		a.ID = id
		a.available = available
		a.chosen = chosen
		c.alternatives[id] = a
	} else {
		a.available = a.available && available
		a.chosen = a.chosen || chosen
	}

	c.state = statePopulated
	return a
}

// Alternative returns an existing alternative or nil.
func (c *Calculator) Alternative(id int) *Alternative {
	if id < 0 || id >= len(c.alternatives) {
		return nil
	}
	return c.alternatives[id]
}

func (c *Calculator) newAlternative() *Alternative {
	if n := len(c.altPool); n > 0 {
		a := c.altPool[n-1]
		c.altPool = c.altPool[:n-1]
		return a
	}
	return &Alternative{calc: c}
}

// CreateUtilityComponent registers a new shared component under id.
func (c *Calculator) CreateUtilityComponent(id int) *UtilityComponent {
	if _, ok := c.components[id]; ok {
		c.fail(fmt.Errorf("%w: model=%s component=%d", ErrDuplicateComponent, c.spec.Name, id))
		return &UtilityComponent{ID: id, calc: c}
	}
	u := &UtilityComponent{ID: id, calc: c}
	c.components[id] = u
	c.evaluated = false
	return u
}

// GetUtilityComponent returns the component created under id.
func (c *Calculator) GetUtilityComponent(id int) *UtilityComponent {
	u, ok := c.components[id]
	if !ok {
		c.fail(fmt.Errorf("%w: model=%s component=%d", ErrUnknownComponent, c.spec.Name, id))
		return nil
	}
	return u
}

func (c *Calculator) nestFor(id, index int, theta float64) *Nest {
	if id <= 0 {
		c.fail(fmt.Errorf("%w: model=%s nest id %d must be positive", ErrInvalidNest, c.spec.Name, id))
		return nil
	}
	if !validTheta(theta) {
		c.fail(fmt.Errorf("%w: model=%s nest=%d theta=%v", ErrInvalidTheta, c.spec.Name, id, theta))
		return nil
	}

	if n, ok := c.nests[id]; ok {
		if n.Theta != theta {
			c.fail(fmt.Errorf("%w: model=%s nest=%d theta %v conflicts with %v", ErrInvalidTheta, c.spec.Name, id, theta, n.Theta))
		}
		return n
	}

	n := &Nest{ID: id, Index: index, Theta: theta, calc: c}
	c.nests[id] = n
	c.nestList = append(c.nestList, n)
	c.evaluated = false
	return n
}

func (c *Calculator) detachedNest() *Nest { return &Nest{calc: c, Theta: 1} }

func (c *Calculator) sortedNests() []*Nest {
	slices.SortFunc(c.nestList, func(a, b *Nest) int {
		if r := cmp.Compare(a.Index, b.Index); r != 0 {
			return r
		}
		return cmp.Compare(a.ID, b.ID)
	})
	return c.nestList
}

// beginResolve moves the calculator to Resolved or explains why it cannot.
func (c *Calculator) beginResolve() error {
	if c.err != nil {
		return c.err
	}
	switch c.state {
	case stateCreated:
		return fmt.Errorf("%w: model=%s", ErrNotPopulated, c.spec.Name)
	case stateResolved, stateDisposed:
		return fmt.Errorf("%w: model=%s", ErrAlreadyResolved, c.spec.Name)
	}
	c.state = stateResolved
	return nil
}

func (c *Calculator) evaluate() error {
	if c.evaluated {
		return c.evalErr
	}
	c.evalErr = c.computeProbabilities()
	c.evaluated = true
	return c.evalErr
}

// computeProbabilities composes logsums bottom-up over the nest tree and then
// distributes probability top-down. A flat MNL is the tree with no nests.
func (c *Calculator) computeProbabilities() error {
	nests := c.sortedNests()
	for _, n := range nests {
		n.leaves = n.leaves[:0]
		n.children = n.children[:0]
		n.available = false
		n.logsum = 0
		n.inclusive = 0
		n.probability = 0
	}

	var rootLeaves []*Alternative
	for _, a := range c.alternatives {
		if a == nil {
			continue
		}
		a.probability = 0
		if !a.available {
			continue
		}

		u := a.Utility()
		if math.IsNaN(u) || math.IsInf(u, 0) {
			return fmt.Errorf("%w: model=%s alternative=%d utility=%v", ErrNonFiniteUtility, c.spec.Name, a.ID, u)
		}
		a.total = u

		if a.nest == nil {
			rootLeaves = append(rootLeaves, a)
		} else {
			a.nest.leaves = append(a.nest.leaves, a)
		}
	}

	var rootNests []*Nest
	for _, n := range nests {
		if n.parent == nil {
			rootNests = append(rootNests, n)
		} else {
			n.parent.children = append(n.parent.children, n)
		}
	}

	lse, ok, err := c.compose(rootLeaves, rootNests, 1)
	if err != nil {
		return err
	}
	c.rootAvailable = ok
	if !ok {
		return fmt.Errorf("%w: model=%s", ErrNoAvailableAlternative, c.spec.Name)
	}
	c.rootLogsum = lse

	c.distribute(rootLeaves, rootNests, 1, lse, 1)
	return nil
}

// compose returns ln(sum exp(V/theta)) over the available members of one node.
func (c *Calculator) compose(leaves []*Alternative, children []*Nest, theta float64) (float64, bool, error) {
	values := make([]float64, 0, len(leaves)+len(children))
	for _, a := range leaves {
		values = append(values, a.total/theta)
	}

	for _, n := range children {
		childLse, ok, err := c.compose(n.leaves, n.children, n.Theta)
		if err != nil {
			return 0, false, err
		}
		if !ok {
			continue
		}

		n.available = true
		n.logsum = n.Theta * childLse
		n.inclusive = n.utility + n.logsum
		if math.IsNaN(n.inclusive) || math.IsInf(n.inclusive, 0) {
			return 0, false, fmt.Errorf("%w: model=%s nest=%d utility=%v", ErrNonFiniteUtility, c.spec.Name, n.ID, n.inclusive)
		}
		values = append(values, n.inclusive/theta)
	}

	if len(values) == 0 {
		return 0, false, nil
	}
	return floats.LogSumExp(values), true, nil
}

func (c *Calculator) distribute(leaves []*Alternative, children []*Nest, theta, lse, parentProb float64) {
	for _, a := range leaves {
		a.probability = parentProb * math.Exp(a.total/theta-lse)
	}
	for _, n := range children {
		if !n.available {
			continue
		}
		n.probability = parentProb * math.Exp(n.inclusive/theta-lse)
		c.distribute(n.leaves, n.children, n.Theta, n.logsum/n.Theta, n.probability)
	}
}

// Probabilities evaluates the decision without resolving it. Unavailable
// alternatives map to 0.
func (c *Calculator) Probabilities() (map[int]float64, error) {
	if c.err != nil {
		return nil, c.err
	}
	if c.state == stateCreated {
		return nil, fmt.Errorf("%w: model=%s", ErrNotPopulated, c.spec.Name)
	}
	if err := c.evaluate(); err != nil {
		return nil, err
	}

	out := make(map[int]float64)
	for _, a := range c.alternatives {
		if a != nil {
			out[a.ID] = a.probability
		}
	}
	return out, nil
}

// ComputeLogsum resolves the decision to its root logsum, the expected
// maximum utility used as an explanatory variable by upstream models.
func (c *Calculator) ComputeLogsum() (float64, error) {
	if err := c.beginResolve(); err != nil {
		return 0, err
	}
	if err := c.evaluate(); err != nil {
		if IsFeasibilityError(err) {
			c.logFeasibility("compute logsum", err)
		}
		return 0, err
	}
	return c.rootLogsum, nil
}

// SimulateChoice resolves the decision to one alternative. With forced >= 0
// the named alternative is returned (it must be available) and no draw is
// consumed. Otherwise one uniform variate is drawn from the decision's
// stream and matched against cumulative probabilities in ascending id order.
func (c *Calculator) SimulateChoice(forced int) (*Alternative, error) {
	if err := c.beginResolve(); err != nil {
		return nil, err
	}

	if forced >= 0 {
		a := c.Alternative(forced)
		if a == nil || !a.available {
			err := fmt.Errorf("%w: model=%s forced alternative %d", ErrChosenUnavailable, c.spec.Name, forced)
			c.logFeasibility("simulate choice", err)
			return nil, err
		}
		return a, nil
	}

	if err := c.evaluate(); err != nil {
		if IsFeasibilityError(err) {
			c.logFeasibility("simulate choice", err)
		}
		return nil, err
	}

	u := c.rng.Float64()
	cum := 0.0
	var last *Alternative
	for _, a := range c.alternatives {
		if a == nil || !a.available || a.probability <= 0 {
			continue
		}
		last = a
		cum += a.probability
		if u < cum {
			return a, nil
		}
	}

	// Rounding can leave the cumulative sum a hair below 1.
	if last == nil {
		err := fmt.Errorf("%w: model=%s all probabilities underflowed", ErrNoAvailableAlternative, c.spec.Name)
		c.logFeasibility("simulate choice", err)
		return nil, err
	}
	return last, nil
}

// WriteObservation emits one estimation row for the decision to the sink.
func (c *Calculator) WriteObservation(ctx context.Context) error {
	if err := c.beginResolve(); err != nil {
		return err
	}
	if c.mode != Estimating {
		return fmt.Errorf("%w: model=%s is %s", ErrObservationContract, c.spec.Name, c.mode)
	}
	if c.sink == nil {
		return fmt.Errorf("%w: model=%s has no observation sink", ErrObservationContract, c.spec.Name)
	}

	var chosen *Alternative
	count := 0
	for _, a := range c.alternatives {
		if a != nil && a.chosen {
			chosen = a
			count++
		}
	}
	if count != 1 {
		return fmt.Errorf("%w: model=%s has %d chosen alternatives, want exactly 1", ErrObservationContract, c.spec.Name, count)
	}
	if !chosen.available {
		err := fmt.Errorf("%w: model=%s chosen alternative %d", ErrChosenUnavailable, c.spec.Name, chosen.ID)
		c.logFeasibility("write observation", err)
		return err
	}

	obs := domain.Observation{
		Model:               c.spec.Name,
		Key:                 c.key,
		ChosenAlternativeID: chosen.ID,
	}
	for _, a := range c.alternatives {
		if a == nil {
			continue
		}
		if u := a.Utility(); a.available && (math.IsNaN(u) || math.IsInf(u, 0)) {
			return fmt.Errorf("%w: model=%s alternative=%d utility=%v", ErrNonFiniteUtility, c.spec.Name, a.ID, u)
		}

		nestID := 0
		if a.nest != nil {
			nestID = a.nest.ID
		}
		obs.Alternatives = append(obs.Alternatives, domain.ObservedAlternative{
			AlternativeID: a.ID,
			Available:     a.available,
			Chosen:        a.chosen,
			NestID:        nestID,
			Terms:         a.flatten(),
		})
	}
	for _, n := range c.sortedNests() {
		parentID := 0
		if n.parent != nil {
			parentID = n.parent.ID
		}
		obs.Nests = append(obs.Nests, domain.ObservedNest{
			NestID:       n.ID,
			ParentNestID: parentID,
			Theta:        n.Theta,
			Terms:        n.flatten(),
		})
	}

	if err := c.sink.WriteObservation(ctx, obs); err != nil {
		return fmt.Errorf("write observation: model=%s household_id=%d: %w", c.spec.Name, c.key.HouseholdID, err)
	}
	return nil
}

func (c *Calculator) logFeasibility(op string, err error) {
	c.logger.Warn("decision has no feasible outcome",
		zap.String("model", c.spec.Name),
		zap.String("op", op),
		zap.Int("household_id", c.key.HouseholdID),
		zap.Int("person_id", c.key.PersonID),
		zap.Int("tour_id", c.key.TourID),
		zap.Int("trip_id", c.key.TripID),
		zap.Error(err),
	)
}

// Release disposes the calculator and returns it to its Context for reuse.
// Alternatives, components and nests obtained from it must not be used afterwards.
func (c *Calculator) Release() {
	if c.state == stateDisposed {
		return
	}
	for i, a := range c.alternatives {
		if a != nil {
			a.reset()
			c.altPool = append(c.altPool, a)
		}
		c.alternatives[i] = nil
	}
	c.alternatives = c.alternatives[:0]
	clear(c.components)
	clear(c.nests)
	c.nestList = c.nestList[:0]
	c.state = stateDisposed
	if c.owner != nil {
		c.owner.release(c)
	}
}
