package services

import (
	"context"
	"daysim/internal/choice"
	"daysim/internal/domain"
	"daysim/internal/timewindow"
	"slices"

	"go.uber.org/zap"
)

// workerStats accumulates one worker's share of a pass.
type workerStats struct {
	households   int
	tours        int
	invalidDays  int
	observations int
	destinations map[domain.Purpose]map[int]int
}

func newWorkerStats() *workerStats {
	return &workerStats{destinations: map[domain.Purpose]map[int]int{}}
}

func (s *workerStats) countDestination(purpose domain.Purpose, parcelID int) {
	m, ok := s.destinations[purpose]
	if !ok {
		m = map[int]int{}
		s.destinations[purpose] = m
	}
	m[parcelID]++
}

// householdDay runs the model chain for one household at a time on one worker.
type householdDay struct {
	env     *Environment
	x       *choice.Context
	mode    choice.Mode
	arena   *domain.Arena
	stats   *workerStats
	windows map[int]*timewindow.TimeWindow
}

func newHouseholdDay(env *Environment, x *choice.Context, mode choice.Mode, arena *domain.Arena, stats *workerStats) *householdDay {
	return &householdDay{
		env:     env,
		x:       x,
		mode:    mode,
		arena:   arena,
		stats:   stats,
		windows: map[int]*timewindow.TimeWindow{},
	}
}

// run resolves auto ownership, then destination, mode and time of every
// tour in tour id order. A feasibility failure invalidates the household
// (auto ownership) or the tour owner's remaining day; any other error is
// returned and stops the pass.
func (d *householdDay) run(ctx context.Context, householdID int) error {
	h := d.arena.Household(householdID)
	d.stats.households++
	h.InvalidDay = false

	clear(d.windows)
	var tours []*domain.Tour
	for _, pid := range h.PersonIDs {
		p := d.arena.Person(pid)
		p.InvalidDay = false
		d.windows[pid] = timewindow.NewTimeWindow()
		for _, tid := range p.TourIDs {
			t := d.arena.Tour(tid)
			// Outputs of an earlier pass must not survive an invalid day.
			if d.mode == choice.Simulating {
				t.DestinationParcelID = 0
				t.Mode = domain.ModeNone
				t.ArrivalMinute, t.DepartureMinute = 0, 0
			}
			tours = append(tours, t)
		}
	}
	slices.SortFunc(tours, func(a, b *domain.Tour) int { return a.TourID - b.TourID })

	if err := d.runAutoOwnership(ctx, h); err != nil {
		if !choice.IsFeasibilityError(err) {
			return err
		}
		h.InvalidDay = true
		d.stats.invalidDays++
		return nil
	}

	for _, t := range tours {
		p := d.arena.Person(t.PersonID)
		if p.InvalidDay {
			continue
		}

		d.stats.tours++
		if err := d.runTour(ctx, h, p, t); err != nil {
			if !choice.IsFeasibilityError(err) {
				return err
			}
			p.InvalidDay = true
			d.stats.invalidDays++
			d.x.Logger().Debug("agent day invalid",
				zap.Int("household_id", h.HouseholdID),
				zap.Int("person_id", p.PersonID),
				zap.Int("tour_id", t.TourID),
				zap.Error(err),
			)
		}
	}
	return nil
}

func (d *householdDay) runTour(ctx context.Context, h *domain.Household, p *domain.Person, t *domain.Tour) error {
	if err := d.runTourDestination(ctx, h, p, t); err != nil {
		return err
	}
	if err := d.runTourMode(ctx, h, p, t); err != nil {
		return err
	}
	return d.runTourTime(ctx, h, p, t)
}
