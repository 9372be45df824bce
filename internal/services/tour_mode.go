package services

import (
	"context"
	"daysim/internal/choice"
	"daysim/internal/domain"
	"fmt"
)

// Tour mode coefficient ids.
const (
	coefWalkConstant    = 1
	coefBikeConstant    = 2
	coefHOVConstant     = 3
	coefTransitConstant = 4
	coefGeneralizedTime = 5
	coefHOVZeroVehicle  = 6
	coefTransitWork     = 7

	coefNonMotorizedTheta = 20
	coefAutoTheta         = 21
)

const (
	nestNonMotorized = 1
	nestAuto         = 2
)

// modeAlternativeID maps a mode to its alternative id: walk=0 .. transit=4.
func modeAlternativeID(m domain.Mode) int { return int(m) - 1 }

// defaultTravelMinute is the departure minute used before the tour time is known.
func defaultTravelMinute(p domain.Purpose) int {
	switch p {
	case domain.PurposeWork, domain.PurposeSchool:
		return 7*60 + 31
	default:
		return 10*60 + 1
	}
}

// nestTheta reads a nest scale from the mode coefficients. A model file
// without nest scales degenerates to a flat logit.
func nestTheta(spec choice.Spec, id int) float64 {
	if spec.Coefficients == nil {
		return 1
	}
	if v, ok := spec.Coefficients.Coefficient(id); ok {
		return v
	}
	return 1
}

type modeRequest struct {
	household   *domain.Household
	person      *domain.Person
	tour        *domain.Tour
	destination int
	minute      int
}

// populateMode adds the five mode alternatives. Walk and bike share one nest,
// drive alone and shared ride another; transit sits under the root.
func (d *householdDay) populateMode(calc *choice.Calculator, req modeRequest, observed domain.Mode) {
	origin := req.household.HomeParcelID
	for _, m := range domain.Modes() {
		out := d.env.Skims.Path(m, origin, req.destination, req.minute)
		back := d.env.Skims.Path(m, req.destination, origin, req.minute)

		available := out.Available() && back.Available()
		if m == domain.ModeSOV {
			available = available && req.household.Vehicles > 0 && req.person.Age >= drivingAge && !req.tour.IsJoint()
		}

		alt := calc.GetAlternative(modeAlternativeID(m), available, m == observed)
		alt.Payload = domain.ModeChoice(m)
		switch m {
		case domain.ModeWalk, domain.ModeBike:
			alt.AddNestedAlternative(nestNonMotorized, 0, d.env.nonMotorizedTheta)
		case domain.ModeSOV, domain.ModeHOV:
			alt.AddNestedAlternative(nestAuto, 1, d.env.autoTheta)
		}
		if !available {
			continue
		}

		switch m {
		case domain.ModeWalk:
			alt.AddUtilityTerm(coefWalkConstant, 1)
		case domain.ModeBike:
			alt.AddUtilityTerm(coefBikeConstant, 1)
		case domain.ModeHOV:
			alt.AddUtilityTerm(coefHOVConstant, 1)
			if req.household.Vehicles == 0 {
				alt.AddUtilityTerm(coefHOVZeroVehicle, 1)
			}
		case domain.ModeTransit:
			alt.AddUtilityTerm(coefTransitConstant, 1)
			if req.tour.Purpose == domain.PurposeWork {
				alt.AddUtilityTerm(coefTransitWork, 1)
			}
		}
		alt.AddUtilityTerm(coefGeneralizedTime, out.GeneralizedTime()+back.GeneralizedTime())
	}
}

// modeLogsum is the expected maximum mode utility to destination, used by
// the destination model.
func (d *householdDay) modeLogsum(req modeRequest) (float64, error) {
	key := domain.DecisionKey{
		HouseholdID: req.household.HouseholdID,
		PersonID:    req.person.PersonID,
		TourID:      req.tour.TourID,
		ModelOffset: domain.OffsetTourMode,
	}
	calc := d.x.NewCalculator(d.env.TourMode, choice.Simulating, key)
	defer calc.Release()

	d.populateMode(calc, req, domain.ModeNone)
	return calc.ComputeLogsum()
}

func (d *householdDay) runTourMode(ctx context.Context, h *domain.Household, p *domain.Person, t *domain.Tour) error {
	if d.mode == choice.Estimating && (t.Mode == domain.ModeNone || t.DestinationParcelID == 0) {
		return nil
	}

	key := domain.DecisionKey{
		HouseholdID: h.HouseholdID,
		PersonID:    p.PersonID,
		TourID:      t.TourID,
		ModelOffset: domain.OffsetTourMode,
	}
	calc := d.x.NewCalculator(d.env.TourMode, d.mode, key)
	defer calc.Release()

	observed := domain.ModeNone
	if d.mode == choice.Estimating {
		observed = t.Mode
	}
	d.populateMode(calc, modeRequest{
		household:   h,
		person:      p,
		tour:        t,
		destination: t.DestinationParcelID,
		minute:      defaultTravelMinute(t.Purpose),
	}, observed)

	if d.mode == choice.Estimating {
		if err := calc.WriteObservation(ctx); err != nil {
			return fmt.Errorf("tour mode: tour_id=%d: %w", t.TourID, err)
		}
		d.stats.observations++
		return nil
	}

	chosen, err := calc.SimulateChoice(choice.NoForcedChoice)
	if err != nil {
		return fmt.Errorf("tour mode: tour_id=%d: %w", t.TourID, err)
	}
	t.Mode = chosen.Payload.Mode
	return nil
}
