package sampling

import (
	"errors"
	"fmt"
	"math"
	"slices"
	"sort"
)

var ErrUnknownStratum = errors.New("unknown sampling stratum")

// StratumKey selects the weights used for one decision. OriginZone 0 is the
// zone-independent stratum of a segment.
type StratumKey struct {
	Segment    int
	OriginZone int
}

func (k StratumKey) String() string {
	return fmt.Sprintf("segment=%d origin_zone=%d", k.Segment, k.OriginZone)
}

// Stratum is a precomputed weighted population of destinations. It is built
// once before a pass and only read afterwards.
type Stratum struct {
	ids        []int
	weights    []float64
	cumulative []float64
	index      map[int]int
	maxWeight  float64
}

// NewStratum builds a stratum from parallel id/weight slices. Ids are stored
// ascending; weights must be finite and non-negative with a positive total.
func NewStratum(ids []int, weights []float64) (*Stratum, error) {
	if len(ids) != len(weights) {
		return nil, fmt.Errorf("new stratum: %d ids but %d weights", len(ids), len(weights))
	}

	order := make([]int, len(ids))
	for i := range order {
		order[i] = i
	}
	slices.SortFunc(order, func(a, b int) int { return ids[a] - ids[b] })

	s := &Stratum{
		ids:        make([]int, len(ids)),
		weights:    make([]float64, len(ids)),
		cumulative: make([]float64, len(ids)),
		index:      make(map[int]int, len(ids)),
	}

	total := 0.0
	for pos, i := range order {
		w := weights[i]
		if w < 0 || math.IsNaN(w) || math.IsInf(w, 0) {
			return nil, fmt.Errorf("new stratum: destination %d has weight %v", ids[i], w)
		}
		if _, dup := s.index[ids[i]]; dup {
			return nil, fmt.Errorf("new stratum: duplicate destination %d", ids[i])
		}
		total += w
		s.maxWeight = max(s.maxWeight, w)
		s.ids[pos] = ids[i]
		s.weights[pos] = w
		s.cumulative[pos] = total
		s.index[ids[i]] = pos
	}
	if total <= 0 {
		return nil, fmt.Errorf("new stratum: total weight %v must be positive", total)
	}
	return s, nil
}

func (s *Stratum) Len() int { return len(s.ids) }

func (s *Stratum) Total() float64 { return s.cumulative[len(s.cumulative)-1] }

// IDs returns the destinations in ascending order.
func (s *Stratum) IDs() []int { return slices.Clone(s.ids) }

// Weight is 0 for destinations outside the stratum.
func (s *Stratum) Weight(id int) float64 {
	pos, ok := s.index[id]
	if !ok {
		return 0
	}
	return s.weights[pos]
}

// Probability is the chance a single draw lands on id.
func (s *Stratum) Probability(id int) float64 {
	return s.Weight(id) / s.Total()
}

// Draw maps a uniform u in [0,1) to a destination by binary search over the
// cumulative weights. Zero-weight destinations are never returned.
func (s *Stratum) Draw(u float64) int {
	target := u * s.Total()
	pos := sort.Search(len(s.cumulative), func(i int) bool { return s.cumulative[i] > target })
	if pos == len(s.cumulative) {
		pos = len(s.cumulative) - 1
		for pos > 0 && s.weights[pos] == 0 {
			pos--
		}
	}
	return s.ids[pos]
}

// Universe holds every stratum of a run.
type Universe struct {
	strata map[StratumKey]*Stratum
}

func NewUniverse() *Universe {
	return &Universe{strata: make(map[StratumKey]*Stratum)}
}

func (u *Universe) Add(key StratumKey, s *Stratum) {
	u.strata[key] = s
}

// Stratum returns the origin-specific stratum for key, falling back to the
// segment's zone-independent stratum.
func (u *Universe) Stratum(key StratumKey) (*Stratum, error) {
	if s, ok := u.strata[key]; ok {
		return s, nil
	}
	if s, ok := u.strata[StratumKey{Segment: key.Segment}]; ok {
		return s, nil
	}
	return nil, fmt.Errorf("%w: %s", ErrUnknownStratum, key)
}

func (u *Universe) Len() int { return len(u.strata) }
