package services

import (
	"context"
	"daysim/internal/choice"
	"daysim/internal/domain"
	"daysim/internal/sampling"
	"fmt"
	"math"
)

// Tour destination coefficient ids.
const (
	coefLogSize    = 1
	coefModeLogsum = 2
	coefDistance   = 3
)

// destinationSetter adds utilities to sampled destinations of one tour.
// The sampler cannot return errors from SetUtilities, so the first
// configuration error is kept in err and checked once sampling is done.
type destinationSetter struct {
	day       *householdDay
	household *domain.Household
	person    *domain.Person
	tour      *domain.Tour
	err       error
}

func (s *destinationSetter) Feasible(destinationID int) bool {
	parcel, ok := s.day.env.Parcels[destinationID]
	if !ok || parcel.Size(s.tour.Purpose) <= 0 {
		return false
	}
	minute := defaultTravelMinute(s.tour.Purpose)
	for _, m := range domain.Modes() {
		if s.day.env.Skims.Path(m, s.household.HomeParcelID, destinationID, minute).Available() {
			return true
		}
	}
	return false
}

func (s *destinationSetter) SetUtilities(item sampling.SampleItem, alt *choice.Alternative) {
	env := s.day.env
	parcel := env.Parcels[item.DestinationID]
	alt.AddUtilityTerm(coefLogSize, math.Log(parcel.Size(s.tour.Purpose)))

	logsum, err := s.day.modeLogsum(modeRequest{
		household:   s.household,
		person:      s.person,
		tour:        s.tour,
		destination: item.DestinationID,
		minute:      defaultTravelMinute(s.tour.Purpose),
	})
	switch {
	case err == nil:
		alt.AddUtilityTerm(coefModeLogsum, logsum)
	case choice.IsFeasibilityError(err):
		// The person has no usable mode to this parcel.
		alt.MarkUnavailable()
		return
	default:
		if s.err == nil {
			s.err = err
		}
		return
	}

	road := env.Skims.Path(domain.ModeSOV, s.household.HomeParcelID, item.DestinationID, defaultTravelMinute(s.tour.Purpose))
	alt.AddUtilityTerm(coefDistance, road.Distance())

	if price := env.shadowPrice(s.tour.Purpose, item.DestinationID); price != 0 {
		alt.AddFixedUtility(price)
	}
}

func (d *householdDay) runTourDestination(ctx context.Context, h *domain.Household, p *domain.Person, t *domain.Tour) error {
	observed := sampling.NoObservedDestination
	if d.mode == choice.Estimating {
		if t.DestinationParcelID == 0 {
			return nil
		}
		observed = t.DestinationParcelID
	}

	key := domain.DecisionKey{
		HouseholdID: h.HouseholdID,
		PersonID:    p.PersonID,
		TourID:      t.TourID,
		ModelOffset: domain.OffsetTourDestination,
	}
	calc := d.x.NewCalculator(d.env.TourDestination, d.mode, key)
	defer calc.Release()

	originZone := d.env.Parcels[h.HomeParcelID].ZoneID
	sampler := sampling.NewDestinationSampler(calc, d.env.Universe, int(t.Purpose), d.env.SampleSize, observed, originZone)
	setter := &destinationSetter{day: d, household: h, person: p, tour: t}
	if _, err := sampler.SampleAndReturnTourDestinations(setter); err != nil {
		return fmt.Errorf("tour destination: tour_id=%d: %w", t.TourID, err)
	}
	if setter.err != nil {
		return fmt.Errorf("tour destination: tour_id=%d: mode logsum: %w", t.TourID, setter.err)
	}

	if d.mode == choice.Estimating {
		if err := calc.WriteObservation(ctx); err != nil {
			return fmt.Errorf("tour destination: tour_id=%d: %w", t.TourID, err)
		}
		d.stats.observations++
		return nil
	}

	chosen, err := calc.SimulateChoice(choice.NoForcedChoice)
	if err != nil {
		return fmt.Errorf("tour destination: tour_id=%d: %w", t.TourID, err)
	}
	t.DestinationParcelID = chosen.Payload.ParcelID
	d.stats.countDestination(t.Purpose, t.DestinationParcelID)
	return nil
}
