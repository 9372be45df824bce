package services

import (
	"daysim/internal/choice"
	"daysim/internal/domain"
	"daysim/internal/ports"
	"daysim/internal/sampling"
	"errors"
	"fmt"
	"maps"
	"math"
)

// Model names as they appear in coefficient files and observation rows.
const (
	ModelAutoOwnership   = "auto_ownership"
	ModelTourDestination = "tour_destination"
	ModelTourMode        = "tour_mode"
	ModelTourTime        = "tour_time"
)

// ModelTables carries one coefficient table per model.
type ModelTables struct {
	AutoOwnership   ports.CoefficientTable
	TourDestination ports.CoefficientTable
	TourMode        ports.CoefficientTable
	TourTime        ports.CoefficientTable
}

type Options struct {
	SampleSize int
	// DistanceDecay > 0 adds one sampling stratum per (purpose, origin zone).
	DistanceDecay float64
}

// Environment is the state every worker reads during a pass. It is built
// before the pass and must not be modified until the pass returns.
type Environment struct {
	AutoOwnership   choice.Spec
	TourDestination choice.Spec
	TourMode        choice.Spec
	TourTime        choice.Spec

	Parcels      map[int]domain.Parcel
	Universe     *sampling.Universe
	Skims        ports.SkimProvider
	SampleSize   int
	ShadowPrices map[domain.Purpose]map[int]float64

	nonMotorizedTheta float64
	autoTheta         float64
}

func NewEnvironment(tables ModelTables, parcels []domain.Parcel, skims ports.SkimProvider, opts Options) (*Environment, error) {
	if tables.AutoOwnership == nil || tables.TourDestination == nil || tables.TourMode == nil || tables.TourTime == nil {
		return nil, errors.New("new environment: every model needs a coefficient table")
	}
	if skims == nil {
		return nil, errors.New("new environment: skim provider is nil")
	}
	if opts.SampleSize < 1 {
		return nil, fmt.Errorf("new environment: sample size %d must be positive", opts.SampleSize)
	}

	universe, err := BuildUniverse(parcels, opts.DistanceDecay)
	if err != nil {
		return nil, fmt.Errorf("new environment: %w", err)
	}

	byID := make(map[int]domain.Parcel, len(parcels))
	for _, p := range parcels {
		byID[p.ParcelID] = p
	}

	mode := choice.Spec{Name: ModelTourMode, Coefficients: tables.TourMode}
	return &Environment{
		AutoOwnership:     choice.Spec{Name: ModelAutoOwnership, Coefficients: tables.AutoOwnership},
		TourDestination:   choice.Spec{Name: ModelTourDestination, Coefficients: tables.TourDestination},
		TourMode:          mode,
		TourTime:          choice.Spec{Name: ModelTourTime, Coefficients: tables.TourTime},
		Parcels:           byID,
		Universe:          universe,
		Skims:             skims,
		SampleSize:        opts.SampleSize,
		ShadowPrices:      map[domain.Purpose]map[int]float64{},
		nonMotorizedTheta: nestTheta(mode, coefNonMotorizedTheta),
		autoTheta:         nestTheta(mode, coefAutoTheta),
	}, nil
}

// SetShadowPrices replaces the prices of one purpose. Call between passes only.
func (e *Environment) SetShadowPrices(purpose domain.Purpose, prices map[int]float64) {
	e.ShadowPrices[purpose] = maps.Clone(prices)
}

func (e *Environment) shadowPrice(purpose domain.Purpose, parcelID int) float64 {
	return e.ShadowPrices[purpose][parcelID]
}

// BuildUniverse creates one stratum per purpose weighted by parcel size and,
// when decay > 0, one per (purpose, origin zone) weighted by
// size * exp(-decay * miles from the zone centroid). Purposes no parcel
// attracts get no stratum.
func BuildUniverse(parcels []domain.Parcel, decay float64) (*sampling.Universe, error) {
	u := sampling.NewUniverse()
	if len(parcels) == 0 {
		return u, nil
	}

	ids := make([]int, len(parcels))
	for i, p := range parcels {
		ids[i] = p.ParcelID
	}

	type centroid struct {
		x, y float64
		n    int
	}
	zones := map[int]*centroid{}
	var zoneOrder []int
	for _, p := range parcels {
		c, ok := zones[p.ZoneID]
		if !ok {
			c = &centroid{}
			zones[p.ZoneID] = c
			zoneOrder = append(zoneOrder, p.ZoneID)
		}
		c.x += p.Location.X
		c.y += p.Location.Y
		c.n++
	}

	for _, purpose := range domain.Purposes() {
		weights := make([]float64, len(parcels))
		total := 0.0
		for i, p := range parcels {
			weights[i] = p.Size(purpose)
			total += weights[i]
		}
		if total <= 0 {
			continue
		}

		s, err := sampling.NewStratum(ids, weights)
		if err != nil {
			return nil, fmt.Errorf("build universe: purpose=%s: %w", purpose, err)
		}
		u.Add(sampling.StratumKey{Segment: int(purpose)}, s)

		if decay <= 0 {
			continue
		}
		for _, zone := range zoneOrder {
			if zone == 0 {
				// Zone 0 shares its key with the segment stratum.
				continue
			}
			c := zones[zone]
			origin := domain.Coordinates{X: c.x / float64(c.n), Y: c.y / float64(c.n)}
			decayed := make([]float64, len(parcels))
			for i, p := range parcels {
				miles := origin.DistanceTo(p.Location) / metersPerMile
				decayed[i] = weights[i] * math.Exp(-decay*miles)
			}
			s, err := sampling.NewStratum(ids, decayed)
			if err != nil {
				// Every attraction underflowed; the segment stratum still serves this zone.
				continue
			}
			u.Add(sampling.StratumKey{Segment: int(purpose), OriginZone: zone}, s)
		}
	}
	return u, nil
}

const metersPerMile = 1609.344
