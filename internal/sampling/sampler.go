package sampling

import (
	"daysim/internal/choice"
	"daysim/internal/domain"
	"fmt"
	"math"
	"slices"

	"go.uber.org/zap"
)

// MaxResampleAttempts bounds how often a sample with no feasible destination
// is redrawn before the decision is given up.
const MaxResampleAttempts = 20

// NoObservedDestination disables forced inclusion.
const NoObservedDestination = -1

// ErrNoFeasibleAlternative is a feasibility failure: the agent-day is invalid
// but the pass continues.
var ErrNoFeasibleAlternative = fmt.Errorf("no feasible destination in sample: %w", choice.ErrNoAvailableAlternative)

// SampleItem is one distinct destination of a drawn sample.
type SampleItem struct {
	AlternativeID int
	DestinationID int
	// DrawProbability is the probability that the destination is part of the
	// sample, 1 for certainty and fully enumerated destinations.
	DrawProbability float64
	// AdjustmentFactor is added to the alternative's utility with a fixed
	// coefficient of 1.
	AdjustmentFactor float64
	Available        bool
	Observed         bool
}

// UtilitySetter is supplied by the destination model.
type UtilitySetter interface {
	// Feasible reports whether the destination can be visited at all
	// (time window, mode availability).
	Feasible(destinationID int) bool
	// SetUtilities adds the model's terms for one available sampled item.
	SetUtilities(item SampleItem, alt *choice.Alternative)
}

// DestinationSampler lets a calculator evaluate a bounded, bias-corrected
// sample instead of the full destination universe.
type DestinationSampler struct {
	calc       *choice.Calculator
	universe   *Universe
	segment    int
	sampleSize int
	observed   int
	originZone int
}

// NewDestinationSampler prepares a sample for calc. observed is the observed
// destination when estimating (NoObservedDestination otherwise); it is
// ignored in simulation mode.
func NewDestinationSampler(calc *choice.Calculator, universe *Universe, segment, sampleSize, observed, originZone int) *DestinationSampler {
	if calc.Mode() != choice.Estimating {
		observed = NoObservedDestination
	}
	return &DestinationSampler{
		calc:       calc,
		universe:   universe,
		segment:    segment,
		sampleSize: sampleSize,
		observed:   observed,
		originZone: originZone,
	}
}

// SampleAndReturnTourDestinations draws the sample, creates one alternative
// per distinct destination (ascending destination id, ParcelChoice payload)
// and lets setter add utilities to the available ones.
func (s *DestinationSampler) SampleAndReturnTourDestinations(setter UtilitySetter) ([]SampleItem, error) {
	stratum, err := s.universe.Stratum(StratumKey{Segment: s.segment, OriginZone: s.originZone})
	if err != nil {
		return nil, fmt.Errorf("sample destinations: model=%s: %w", s.calc.ModelName(), err)
	}
	if s.sampleSize <= 0 {
		return nil, fmt.Errorf("sample destinations: model=%s: sample size %d must be positive", s.calc.ModelName(), s.sampleSize)
	}

	rng := choice.NewStream(s.calc.Key(), choice.StreamSampling)
	enumerate := s.sampleSize >= stratum.Len()
	var plan samplePlan
	if !enumerate {
		plan, err = newSamplePlan(stratum, s.sampleSize)
		if err != nil {
			return nil, fmt.Errorf("sample destinations: model=%s: %w", s.calc.ModelName(), err)
		}
	}

	var items []SampleItem
	found := false
	for attempt := 0; attempt < MaxResampleAttempts; attempt++ {
		if enumerate {
			items = s.enumerate(stratum)
		} else {
			items = s.draw(stratum, plan, rng.Float64())
		}

		found = false
		for i := range items {
			if items[i].Available && !setter.Feasible(items[i].DestinationID) {
				items[i].Available = false
			}
			found = found || items[i].Available
		}
		// A full enumeration or an all-certainty sample cannot change on a redraw.
		if found || enumerate || plan.residual == nil {
			break
		}
	}

	if !found {
		s.calc.Logger().Warn("destination sample has no feasible alternative",
			zap.String("model", s.calc.ModelName()),
			zap.Int("household_id", s.calc.Key().HouseholdID),
			zap.Int("person_id", s.calc.Key().PersonID),
			zap.Int("tour_id", s.calc.Key().TourID),
			zap.Int("segment", s.segment),
			zap.Int("origin_zone", s.originZone),
		)
		return nil, fmt.Errorf("sample destinations: model=%s household_id=%d: %w", s.calc.ModelName(), s.calc.Key().HouseholdID, ErrNoFeasibleAlternative)
	}

	for i := range items {
		item := &items[i]
		item.AlternativeID = i
		alt := s.calc.GetAlternative(i, item.Available, item.Observed)
		alt.Payload = domain.ParcelChoice(item.DestinationID)
		if !alt.Available() {
			continue
		}
		alt.AddFixedUtility(item.AdjustmentFactor)
		setter.SetUtilities(*item, alt)
	}
	return items, nil
}

func (s *DestinationSampler) enumerate(stratum *Stratum) []SampleItem {
	items := make([]SampleItem, 0, stratum.Len()+1)
	for _, id := range stratum.ids {
		w := stratum.Weight(id)
		if w == 0 && id != s.observed {
			continue
		}
		item := SampleItem{DestinationID: id, Available: w > 0, Observed: id == s.observed}
		if item.Available {
			item.DrawProbability = 1
		}
		items = append(items, item)
	}
	if s.observed >= 0 && stratum.Weight(s.observed) == 0 && !slices.ContainsFunc(items, func(it SampleItem) bool { return it.Observed }) {
		items = append(items, SampleItem{DestinationID: s.observed, Observed: true})
		slices.SortFunc(items, func(a, b SampleItem) int { return a.DestinationID - b.DestinationID })
	}
	return items
}

// samplePlan splits a stratum for a fixed-size sample. A destination whose
// weight share would give it more than one selection is taken with
// certainty; the remaining selections are spread over residual.
type samplePlan struct {
	certain  map[int]bool
	residual *Stratum
	size     int
}

func newSamplePlan(stratum *Stratum, sampleSize int) (samplePlan, error) {
	plan := samplePlan{size: sampleSize}
	if float64(sampleSize)*stratum.maxWeight < stratum.Total() {
		plan.residual = stratum
		return plan, nil
	}

	plan.certain = map[int]bool{}
	for {
		m := sampleSize - len(plan.certain)
		total := 0.0
		for i, id := range stratum.ids {
			if !plan.certain[id] {
				total += stratum.weights[i]
			}
		}
		if m <= 0 || total <= 0 {
			break
		}
		added := false
		for i, id := range stratum.ids {
			w := stratum.weights[i]
			if w > 0 && !plan.certain[id] && float64(m)*w >= total {
				plan.certain[id] = true
				added = true
			}
		}
		if !added {
			break
		}
	}

	plan.size = sampleSize - len(plan.certain)
	if plan.size <= 0 {
		return plan, nil
	}
	var ids []int
	var weights []float64
	for i, id := range stratum.ids {
		if !plan.certain[id] && stratum.weights[i] > 0 {
			ids = append(ids, id)
			weights = append(weights, stratum.weights[i])
		}
	}
	if len(ids) == 0 {
		return plan, nil
	}
	residual, err := NewStratum(ids, weights)
	if err != nil {
		return samplePlan{}, fmt.Errorf("residual stratum: %w", err)
	}
	plan.residual = residual
	return plan, nil
}

// inclusion is the probability that id ends up in a drawn sample.
func (p samplePlan) inclusion(id int) float64 {
	if p.certain[id] {
		return 1
	}
	if p.residual == nil {
		return 0
	}
	return min(1, float64(p.size)*p.residual.Probability(id))
}

// draw selects distinct destinations without replacement: the certainty
// destinations of plan, then a systematic probability-proportional-to-size
// pass over the residual (points (u+k)/size on its cumulative weights).
// Residual shares are below 1/size, so no destination is hit twice and every
// inclusion probability pi is exact. The correction -ln(pi) is the
// conditional-sampling term of the sampled logit.
func (s *DestinationSampler) draw(stratum *Stratum, plan samplePlan, u float64) []SampleItem {
	picked := make(map[int]bool, s.sampleSize+1)
	for id := range plan.certain {
		picked[id] = true
	}
	if plan.residual != nil {
		for k := 0; k < plan.size; k++ {
			picked[plan.residual.Draw((u+float64(k))/float64(plan.size))] = true
		}
	}
	if s.observed >= 0 {
		picked[s.observed] = true
	}

	ids := make([]int, 0, len(picked))
	for id := range picked {
		ids = append(ids, id)
	}
	slices.Sort(ids)

	items := make([]SampleItem, 0, len(ids))
	for _, id := range ids {
		pi := 0.0
		if stratum.Weight(id) > 0 {
			pi = plan.inclusion(id)
		}
		item := SampleItem{
			DestinationID:   id,
			DrawProbability: pi,
			Available:       pi > 0,
			Observed:        id == s.observed,
		}
		if item.Available {
			item.AdjustmentFactor = -math.Log(pi)
		}
		items = append(items, item)
	}
	return items
}
