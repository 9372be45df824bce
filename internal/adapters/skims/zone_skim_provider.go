package skims

import (
	"context"
	"daysim/internal/domain"
	"daysim/internal/platform/obs"
	"daysim/internal/ports"
	"fmt"
	"slices"

	"go.uber.org/zap"
)

const metersPerMile = 1609.344

// Network distances are this much longer than straight lines.
const circuityFactor = 1.2

// Speeds are the level-of-service assumptions behind coordinate skims.
type Speeds struct {
	WalkMph    float64
	BikeMph    float64
	AutoMph    float64
	TransitMph float64

	MaxWalkMiles    float64
	MaxBikeMiles    float64
	MinTransitMiles float64
	// Minimum distance used inside a zone.
	IntrazonalMiles float64

	TransitWaitMinutes   float64
	TransitAccessMinutes float64
	TransitFareCents     float64
	AutoCentsPerMile     float64
	ValueOfTimeCents     float64 // cents per minute
	PeakFactor           float64
}

func DefaultSpeeds() Speeds {
	return Speeds{
		WalkMph:              3,
		BikeMph:              10,
		AutoMph:              28,
		TransitMph:           14,
		MaxWalkMiles:         3,
		MaxBikeMiles:         12,
		MinTransitMiles:      0.75,
		IntrazonalMiles:      0.4,
		TransitWaitMinutes:   8,
		TransitAccessMinutes: 6,
		TransitFareCents:     250,
		AutoCentsPerMile:     18,
		ValueOfTimeCents:     25,
		PeakFactor:           1.35,
	}
}

func (s Speeds) mph(m domain.Mode) float64 {
	switch m {
	case domain.ModeWalk:
		return s.WalkMph
	case domain.ModeBike:
		return s.BikeMph
	case domain.ModeTransit:
		return s.TransitMph
	default:
		return s.AutoMph
	}
}

type skimKey struct {
	mode        domain.Mode
	origin      int
	destination int
}

// ZoneSkimProvider answers parcel-to-parcel path requests from an in-memory
// zone-to-zone matrix built from zone centroids. The matrix is filled once
// (optionally through a persistent cache) and then only read, so Path is safe
// for concurrent use.
type ZoneSkimProvider struct {
	speeds Speeds
	zoneOf map[int]int
	skims  map[skimKey]domain.ZoneSkim
}

// NewZoneSkimProvider builds the matrix for every mode and zone pair. cache may be nil.
func NewZoneSkimProvider(
	ctx context.Context,
	logger *zap.Logger,
	parcels []domain.Parcel,
	speeds Speeds,
	cache ports.SkimCache,
) (_ *ZoneSkimProvider, err error) {
	defer obs.Time(ctx, logger, "skims.build")(&err)

	if len(parcels) == 0 {
		return nil, fmt.Errorf("build skims: no parcels")
	}

	p := &ZoneSkimProvider{
		speeds: speeds,
		zoneOf: make(map[int]int, len(parcels)),
		skims:  make(map[skimKey]domain.ZoneSkim),
	}

	type sum struct {
		x, y float64
		n    int
	}
	sums := map[int]*sum{}
	for _, parcel := range parcels {
		p.zoneOf[parcel.ParcelID] = parcel.ZoneID
		s, ok := sums[parcel.ZoneID]
		if !ok {
			s = &sum{}
			sums[parcel.ZoneID] = s
		}
		s.x += parcel.Location.X
		s.y += parcel.Location.Y
		s.n++
	}

	zones := make([]int, 0, len(sums))
	centroids := make(map[int]domain.Coordinates, len(sums))
	for zone, s := range sums {
		zones = append(zones, zone)
		centroids[zone] = domain.Coordinates{X: s.x / float64(s.n), Y: s.y / float64(s.n)}
	}
	slices.Sort(zones)

	cached, built := 0, 0
	for _, mode := range domain.Modes() {
		for _, origin := range zones {
			var hits map[int]domain.ZoneSkim
			if cache != nil {
				hits, err = cache.GetMany(ctx, mode, origin, zones)
				if err != nil {
					return nil, fmt.Errorf("build skims: %w", err)
				}
			}

			var missing []domain.ZoneSkim
			for _, dest := range zones {
				if s, ok := hits[dest]; ok {
					p.skims[skimKey{mode, origin, dest}] = s
					cached++
					continue
				}
				s := p.compute(mode, origin, dest, centroids)
				p.skims[skimKey{mode, origin, dest}] = s
				missing = append(missing, s)
				built++
			}

			if cache != nil && len(missing) > 0 {
				if err := cache.PutMany(ctx, missing); err != nil {
					return nil, fmt.Errorf("build skims: %w", err)
				}
			}
		}
	}

	logger.Debug("skim matrix ready",
		zap.Int("zones", len(zones)),
		zap.Int("cached", cached),
		zap.Int("built", built),
	)
	return p, nil
}

func (p *ZoneSkimProvider) compute(mode domain.Mode, origin, dest int, centroids map[int]domain.Coordinates) domain.ZoneSkim {
	miles := centroids[origin].DistanceTo(centroids[dest]) / metersPerMile * circuityFactor
	if miles < p.speeds.IntrazonalMiles {
		miles = p.speeds.IntrazonalMiles
	}
	return domain.ZoneSkim{
		Mode:            mode,
		OriginZone:      origin,
		DestinationZone: dest,
		Minutes:         miles / p.speeds.mph(mode) * 60,
		Miles:           miles,
	}
}

func isPeak(minute int) bool {
	hour := (minute - 1) / 60
	return (hour >= 7 && hour < 9) || (hour >= 16 && hour < 18)
}

// Path implements ports.SkimProvider.
func (p *ZoneSkimProvider) Path(mode domain.Mode, originParcelID, destinationParcelID, minute int) domain.PathResult {
	oz, ok := p.zoneOf[originParcelID]
	if !ok {
		return domain.UnavailablePath(mode)
	}
	dz, ok := p.zoneOf[destinationParcelID]
	if !ok {
		return domain.UnavailablePath(mode)
	}
	s, ok := p.skims[skimKey{mode, oz, dz}]
	if !ok {
		return domain.UnavailablePath(mode)
	}

	sp := p.speeds
	switch mode {
	case domain.ModeWalk:
		return domain.NonMotorizedPath{PathMode: mode, OK: s.Miles <= sp.MaxWalkMiles, Minutes: s.Minutes, Miles: s.Miles}
	case domain.ModeBike:
		return domain.NonMotorizedPath{PathMode: mode, OK: s.Miles <= sp.MaxBikeMiles, Minutes: s.Minutes, Miles: s.Miles}
	case domain.ModeSOV, domain.ModeHOV:
		minutes := s.Minutes
		if isPeak(minute) {
			minutes *= sp.PeakFactor
		}
		occupancy := 1.0
		if mode == domain.ModeHOV {
			occupancy = 2
		}
		return domain.RoadPath{
			PathMode:    mode,
			OK:          true,
			Minutes:     minutes,
			Miles:       s.Miles,
			CostCents:   s.Miles * sp.AutoCentsPerMile,
			Occupancy:   occupancy,
			ValueOfTime: sp.ValueOfTimeCents,
		}
	case domain.ModeTransit:
		return domain.TransitPath{
			OK:             s.Miles >= sp.MinTransitMiles,
			InVehicle:      s.Minutes,
			Wait:           sp.TransitWaitMinutes,
			Access:         sp.TransitAccessMinutes,
			Miles:          s.Miles,
			FareCents:      sp.TransitFareCents,
			ValueOfTime:    sp.ValueOfTimeCents,
			WaitMultiplier: 2,
		}
	default:
		return domain.UnavailablePath(mode)
	}
}

// Zone returns the zone of a parcel.
func (p *ZoneSkimProvider) Zone(parcelID int) (int, bool) {
	z, ok := p.zoneOf[parcelID]
	return z, ok
}
