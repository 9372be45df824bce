package choice

import (
	"context"
	"daysim/internal/domain"
	"errors"
	"math"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type coefficients map[int]float64

func (m coefficients) Coefficient(id int) (float64, bool) {
	v, ok := m[id]
	return v, ok
}

type recordingSink struct {
	mu   sync.Mutex
	rows []domain.Observation
}

func (s *recordingSink) WriteObservation(_ context.Context, obs domain.Observation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rows = append(s.rows, obs)
	return nil
}

func (s *recordingSink) Close() error { return nil }

const utilityCoef = 1

var unitSpec = Spec{Name: "test", Coefficients: coefficients{utilityCoef: 1.0, 2: 0.5, 3: 0.0}}

func newTestContext(t *testing.T) *Context {
	return NewContext(0, zaptest.NewLogger(t), &recordingSink{})
}

func flatCalculator(x *Context, key domain.DecisionKey, utilities []float64, available []bool) *Calculator {
	c := x.NewCalculator(unitSpec, Simulating, key)
	for i, u := range utilities {
		avail := available == nil || available[i]
		c.GetAlternative(i, avail, false).AddUtilityTerm(utilityCoef, u)
	}
	return c
}

func TestFlatLogitScenario(t *testing.T) {
	x := newTestContext(t)

	c := flatCalculator(x, domain.DecisionKey{HouseholdID: 1}, []float64{1, 0, 0}, nil)
	probs, err := c.Probabilities()
	require.NoError(t, err)
	assert.InDelta(t, 0.576, probs[0], 0.001)
	assert.InDelta(t, 0.212, probs[1], 0.001)
	assert.InDelta(t, 0.212, probs[2], 0.001)

	c = flatCalculator(x, domain.DecisionKey{HouseholdID: 1}, []float64{1, 0, 0}, []bool{true, false, true})
	probs, err = c.Probabilities()
	require.NoError(t, err)
	assert.InDelta(t, 0.731, probs[0], 0.001)
	assert.Zero(t, probs[1])
	assert.InDelta(t, 0.269, probs[2], 0.001)

	c = flatCalculator(x, domain.DecisionKey{HouseholdID: 1}, []float64{2, 1, 0}, nil)
	probs, err = c.Probabilities()
	require.NoError(t, err)
	denom := math.Exp(2) + math.Exp(1) + 1
	assert.InDelta(t, math.Exp(2)/denom, probs[0], 1e-12)
	assert.InDelta(t, math.Exp(1)/denom, probs[1], 1e-12)
	assert.InDelta(t, 1/denom, probs[2], 1e-12)
}

func TestMarkUnavailableAfterEvaluationRenormalizes(t *testing.T) {
	x := newTestContext(t)
	key := domain.DecisionKey{HouseholdID: 5}

	c := flatCalculator(x, key, []float64{1, 0, 0}, nil)
	probs, err := c.Probabilities()
	require.NoError(t, err)
	assert.InDelta(t, 0.576, probs[0], 0.001)

	c.Alternative(1).MarkUnavailable()
	probs, err = c.Probabilities()
	require.NoError(t, err)
	assert.InDelta(t, 0.731, probs[0], 0.001)
	assert.Zero(t, probs[1])
	assert.InDelta(t, 0.269, probs[2], 0.001)

	logsum, err := c.ComputeLogsum()
	require.NoError(t, err)
	assert.InDelta(t, math.Log(math.E+1), logsum, 1e-12)

	for hh := 1; hh <= 300; hh++ {
		c := flatCalculator(x, domain.DecisionKey{HouseholdID: hh}, []float64{1, 0, 0}, nil)
		_, err := c.Probabilities()
		require.NoError(t, err)
		c.Alternative(1).MarkUnavailable()

		alt, err := c.SimulateChoice(NoForcedChoice)
		require.NoError(t, err)
		assert.NotEqual(t, 1, alt.ID, "household %d drew an unavailable alternative", hh)
		c.Release()
	}
}

func TestJoiningNestAfterEvaluationIsApplied(t *testing.T) {
	x := newTestContext(t)
	c := flatCalculator(x, domain.DecisionKey{HouseholdID: 6}, []float64{0, 0, 0}, nil)
	probs, err := c.Probabilities()
	require.NoError(t, err)
	assert.InDelta(t, 1.0/3, probs[2], 1e-12)

	c.Alternative(0).AddNestedAlternative(1, 0, 0.5)
	c.Alternative(1).AddNestedAlternative(1, 0, 0.5)
	probs, err = c.Probabilities()
	require.NoError(t, err)

	nest := math.Sqrt2 / (1 + math.Sqrt2)
	assert.InDelta(t, nest/2, probs[0], 1e-12)
	assert.InDelta(t, nest/2, probs[1], 1e-12)
	assert.InDelta(t, 1-nest, probs[2], 1e-12)
}

func buildNested(x *Context, utilities []float64, available []bool, thetaA, thetaB float64) *Calculator {
	// Alternatives 0,1 in nest 1; 2,3 in nest 2 which sits under nest 3; 4 at the root.
	c := x.NewCalculator(unitSpec, Simulating, domain.DecisionKey{HouseholdID: 7})
	for i, u := range utilities {
		a := c.GetAlternative(i, available == nil || available[i], false)
		a.AddUtilityTerm(utilityCoef, u)
		switch i {
		case 0, 1:
			a.AddNestedAlternative(1, 0, thetaA)
		case 2, 3:
			a.AddNestedAlternative(2, 1, thetaB).AddNestedAlternative(3, 2, thetaA)
		}
	}
	return c
}

func TestNestedProbabilitiesNormalize(t *testing.T) {
	x := newTestContext(t)
	utilities := []float64{0.3, -1.2, 2.5, 0.1, -0.4}

	tests := []struct {
		name      string
		available []bool
	}{
		{"all available", nil},
		{"one unavailable", []bool{true, false, true, true, true}},
		{"whole nest unavailable", []bool{false, false, true, true, true}},
		{"root leaf only", []bool{false, false, false, false, true}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := buildNested(x, utilities, tt.available, 0.6, 0.3)
			defer c.Release()

			probs, err := c.Probabilities()
			require.NoError(t, err)

			sum := 0.0
			for id, p := range probs {
				if tt.available != nil && !tt.available[id] {
					assert.Zero(t, p, "alternative %d unavailable", id)
				}
				sum += p
			}
			assert.InDelta(t, 1.0, sum, 1e-12)
		})
	}
}

func TestNestedWithUnitThetaMatchesFlat(t *testing.T) {
	x := newTestContext(t)
	utilities := []float64{0.3, -1.2, 2.5, 0.1, -0.4}

	nested := buildNested(x, utilities, nil, 1, 1)
	flat := flatCalculator(x, domain.DecisionKey{HouseholdID: 7}, utilities, nil)

	np, err := nested.Probabilities()
	require.NoError(t, err)
	fp, err := flat.Probabilities()
	require.NoError(t, err)

	for id := range utilities {
		assert.InDelta(t, fp[id], np[id], 1e-12, "alternative %d", id)
	}

	nl, err := nested.ComputeLogsum()
	require.NoError(t, err)
	fl, err := flat.ComputeLogsum()
	require.NoError(t, err)
	assert.InDelta(t, fl, nl, 1e-12)
}

func TestTwoLevelNestAnalytic(t *testing.T) {
	x := newTestContext(t)
	c := x.NewCalculator(unitSpec, Simulating, domain.DecisionKey{HouseholdID: 3})

	theta := 0.5
	c.GetAlternative(0, true, false).AddUtilityTerm(utilityCoef, 1.0)
	c.GetAlternative(1, true, false).AddUtilityTerm(utilityCoef, 0.5)
	c.GetAlternative(1, true, false).AddNestedAlternative(9, 0, theta)
	c.GetAlternative(2, true, false).AddUtilityTerm(utilityCoef, 0.2)
	c.GetAlternative(2, true, false).AddNestedAlternative(9, 0, theta)

	probs, err := c.Probabilities()
	require.NoError(t, err)

	nestLogsum := theta * math.Log(math.Exp(0.5/theta)+math.Exp(0.2/theta))
	root := math.Exp(1.0) + math.Exp(nestLogsum)
	pNest := math.Exp(nestLogsum) / root
	within1 := math.Exp(0.5/theta) / (math.Exp(0.5/theta) + math.Exp(0.2/theta))

	assert.InDelta(t, math.Exp(1.0)/root, probs[0], 1e-12)
	assert.InDelta(t, pNest*within1, probs[1], 1e-12)
	assert.InDelta(t, pNest*(1-within1), probs[2], 1e-12)

	logsum, err := c.ComputeLogsum()
	require.NoError(t, err)
	assert.InDelta(t, math.Log(root), logsum, 1e-12)
}

func TestConfigurationErrors(t *testing.T) {
	x := newTestContext(t)

	tests := []struct {
		name     string
		populate func(c *Calculator)
		want     error
	}{
		{"theta zero", func(c *Calculator) { c.GetAlternative(0, true, false).AddNestedAlternative(1, 0, 0) }, ErrInvalidTheta},
		{"theta above one", func(c *Calculator) { c.GetAlternative(0, true, false).AddNestedAlternative(1, 0, 1.5) }, ErrInvalidTheta},
		{"theta NaN", func(c *Calculator) { c.GetAlternative(0, true, false).AddNestedAlternative(1, 0, math.NaN()) }, ErrInvalidTheta},
		{"theta conflict", func(c *Calculator) {
			c.GetAlternative(0, true, false).AddNestedAlternative(1, 0, 0.5)
			c.GetAlternative(1, true, false).AddNestedAlternative(1, 0, 0.7)
		}, ErrInvalidTheta},
		{"unknown coefficient", func(c *Calculator) { c.GetAlternative(0, true, false).AddUtilityTerm(99, 1) }, ErrUnknownCoefficient},
		{"negative id", func(c *Calculator) { c.GetAlternative(-1, true, false) }, ErrInvalidAlternative},
		{"nest cycle", func(c *Calculator) {
			n := c.GetAlternative(0, true, false).AddNestedAlternative(1, 0, 0.5)
			n.AddNestedAlternative(2, 0, 0.5).AddNestedAlternative(1, 0, 0.5)
		}, ErrInvalidNest},
		{"non-finite utility", func(c *Calculator) {
			c.GetAlternative(0, true, false).AddUtilityTerm(utilityCoef, math.Inf(-1))
			c.GetAlternative(1, true, false)
		}, ErrNonFiniteUtility},
		{"not populated", func(c *Calculator) {}, ErrNotPopulated},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := x.NewCalculator(unitSpec, Simulating, domain.DecisionKey{HouseholdID: 1})
			defer c.Release()
			tt.populate(c)

			_, err := c.SimulateChoice(NoForcedChoice)
			require.ErrorIs(t, err, tt.want)
			assert.True(t, IsConfigurationError(err))
			assert.False(t, IsFeasibilityError(err))
		})
	}
}

func TestNonFiniteUtilityOnUnavailableIsIgnored(t *testing.T) {
	x := newTestContext(t)
	c := x.NewCalculator(unitSpec, Simulating, domain.DecisionKey{HouseholdID: 1})
	c.GetAlternative(0, false, false).AddUtilityTerm(utilityCoef, math.Log(0))
	c.GetAlternative(1, true, false).AddUtilityTerm(utilityCoef, 0.5)

	a, err := c.SimulateChoice(NoForcedChoice)
	require.NoError(t, err)
	assert.Equal(t, 1, a.ID)
}

func TestResolveTwice(t *testing.T) {
	x := newTestContext(t)
	c := flatCalculator(x, domain.DecisionKey{HouseholdID: 1}, []float64{0, 1}, nil)

	_, err := c.ComputeLogsum()
	require.NoError(t, err)
	_, err = c.SimulateChoice(NoForcedChoice)
	require.ErrorIs(t, err, ErrAlreadyResolved)
}

func TestAllUnavailableIsFeasibilityFailure(t *testing.T) {
	x := newTestContext(t)
	c := flatCalculator(x, domain.DecisionKey{HouseholdID: 4, PersonID: 2}, []float64{0, 1}, []bool{false, false})

	a, err := c.SimulateChoice(NoForcedChoice)
	assert.Nil(t, a)
	require.ErrorIs(t, err, ErrNoAvailableAlternative)
	assert.True(t, IsFeasibilityError(err))
	assert.False(t, IsConfigurationError(err))

	c = flatCalculator(x, domain.DecisionKey{HouseholdID: 4}, []float64{0}, []bool{false})
	_, err = c.ComputeLogsum()
	require.ErrorIs(t, err, ErrNoAvailableAlternative)
}

func TestAvailabilityIsMonotonic(t *testing.T) {
	x := newTestContext(t)
	c := x.NewCalculator(unitSpec, Simulating, domain.DecisionKey{HouseholdID: 1})
	c.GetAlternative(0, false, false)
	a := c.GetAlternative(0, true, false)
	assert.False(t, a.Available())
}

func TestSimulateChoiceIsDeterministic(t *testing.T) {
	utilities := []float64{0.2, 0.1, -0.3, 0.4, 0.0, -1.0}
	keys := make([]domain.DecisionKey, 200)
	for i := range keys {
		keys[i] = domain.DecisionKey{HouseholdID: 1000 + i, PersonID: i % 3, ModelOffset: domain.OffsetTourMode}
	}

	run := func(worker int) []int {
		x := NewContext(worker, nil, nil)
		out := make([]int, len(keys))
		for i, key := range keys {
			c := flatCalculator(x, key, utilities, nil)
			a, err := c.SimulateChoice(NoForcedChoice)
			if err != nil {
				t.Errorf("simulate: %v", err)
				return nil
			}
			out[i] = a.ID
			c.Release()
		}
		return out
	}

	want := run(0)
	results := make([][]int, 4)
	var wg sync.WaitGroup
	for w := range results {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			results[w] = run(w + 1)
		}(w)
	}
	wg.Wait()

	for w, got := range results {
		assert.Equal(t, want, got, "worker %d", w+1)
	}
}

func TestSimulatedFrequenciesMatchProbabilities(t *testing.T) {
	x := NewContext(0, nil, nil)
	utilities := []float64{1, 0, 0}
	const n = 20000

	counts := make([]float64, len(utilities))
	for i := 0; i < n; i++ {
		c := flatCalculator(x, domain.DecisionKey{HouseholdID: i + 1}, utilities, nil)
		a, err := c.SimulateChoice(NoForcedChoice)
		require.NoError(t, err)
		counts[a.ID]++
		c.Release()
	}

	assert.InDelta(t, 0.576, counts[0]/n, 0.015)
	assert.InDelta(t, 0.212, counts[1]/n, 0.015)
	assert.InDelta(t, 0.212, counts[2]/n, 0.015)
	assert.Equal(t, 1, x.CalculatorsCreated())
}

func TestForcedChoice(t *testing.T) {
	x := newTestContext(t)

	c := flatCalculator(x, domain.DecisionKey{HouseholdID: 1}, []float64{5, 0}, nil)
	a, err := c.SimulateChoice(1)
	require.NoError(t, err)
	assert.Equal(t, 1, a.ID)

	c = flatCalculator(x, domain.DecisionKey{HouseholdID: 1}, []float64{5, 0}, []bool{true, false})
	_, err = c.SimulateChoice(1)
	require.ErrorIs(t, err, ErrChosenUnavailable)
}

func TestUtilityComponentIsShared(t *testing.T) {
	x := newTestContext(t)
	c := x.NewCalculator(unitSpec, Simulating, domain.DecisionKey{HouseholdID: 1})

	person := c.CreateUtilityComponent(1)
	for i := 0; i < 3; i++ {
		a := c.GetAlternative(i, true, false)
		a.AddUtilityComponent(c.GetUtilityComponent(1))
		a.AddUtilityTerm(utilityCoef, float64(i))
	}
	// Terms added after attaching still reach every alternative.
	person.AddUtilityTerm(2, 4)

	for i := 0; i < 3; i++ {
		assert.InDelta(t, 2.0+float64(i), c.Alternative(i).Utility(), 1e-12)
	}

	c.CreateUtilityComponent(1)
	require.ErrorIs(t, c.Err(), ErrDuplicateComponent)
}

func TestWriteObservation(t *testing.T) {
	sink := &recordingSink{}
	x := NewContext(2, zaptest.NewLogger(t), sink)
	key := domain.DecisionKey{HouseholdID: 11, PersonID: 2, TourID: 5, ModelOffset: 3}
	c := x.NewCalculator(unitSpec, Estimating, key)

	shared := c.CreateUtilityComponent(1)
	shared.AddUtilityTerm(2, 1.5)

	a0 := c.GetAlternative(0, true, false)
	a0.AddUtilityTerm(utilityCoef, 1)
	a0.AddUtilityComponent(shared)
	a0.AddUtilityTerm(utilityCoef, 2) // same coefficient again
	a0.AddUtilityTerm(3, 0)           // zero-valued term still exposed to estimation

	a1 := c.GetAlternative(1, true, true)
	a1.AddUtilityTerm(2, 0)
	a1.AddFixedUtility(-0.7)
	a1.AddNestedAlternative(4, 0, 0.8).AddUtilityTerm(utilityCoef, 0.25)

	require.NoError(t, c.WriteObservation(context.Background()))
	require.Len(t, sink.rows, 1)

	obs := sink.rows[0]
	assert.Equal(t, "test", obs.Model)
	assert.Equal(t, key, obs.Key)
	assert.Equal(t, 1, obs.ChosenAlternativeID)
	require.Len(t, obs.Alternatives, 2)

	assert.Equal(t, []domain.ObservationTerm{
		{CoefficientID: utilityCoef, Value: 1},
		{CoefficientID: 2, Value: 1.5},
		{CoefficientID: utilityCoef, Value: 2},
		{CoefficientID: 3, Value: 0},
	}, obs.Alternatives[0].Terms)
	assert.Equal(t, []domain.ObservationTerm{
		{CoefficientID: 2, Value: 0},
		{CoefficientID: FixedCoefficientID, Value: -0.7},
	}, obs.Alternatives[1].Terms)
	assert.Equal(t, 4, obs.Alternatives[1].NestID)
	require.Len(t, obs.Nests, 1)
	assert.Equal(t, domain.ObservedNest{
		NestID: 4,
		Theta:  0.8,
		Terms:  []domain.ObservationTerm{{CoefficientID: utilityCoef, Value: 0.25}},
	}, obs.Nests[0])
}

func TestWriteObservationContract(t *testing.T) {
	tests := []struct {
		name   string
		mode   Mode
		chosen []bool
		avail  []bool
		want   error
	}{
		{"no chosen alternative", Estimating, []bool{false, false}, []bool{true, true}, ErrObservationContract},
		{"two chosen alternatives", Estimating, []bool{true, true}, []bool{true, true}, ErrObservationContract},
		{"simulating mode", Simulating, []bool{true, false}, []bool{true, true}, ErrObservationContract},
		{"chosen unavailable", Estimating, []bool{true, false}, []bool{false, true}, ErrChosenUnavailable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sink := &recordingSink{}
			x := NewContext(0, zaptest.NewLogger(t), sink)
			c := x.NewCalculator(unitSpec, tt.mode, domain.DecisionKey{HouseholdID: 1})
			for i := range tt.chosen {
				c.GetAlternative(i, tt.avail[i], tt.chosen[i])
			}

			err := c.WriteObservation(context.Background())
			require.True(t, errors.Is(err, tt.want), "got %v, want %v", err, tt.want)
			assert.Empty(t, sink.rows)
		})
	}
}
