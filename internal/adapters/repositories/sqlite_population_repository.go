package repositories

import (
	"context"
	"database/sql"
	"daysim/internal/domain"
	"errors"
	"fmt"
)

// SQLite-backed implementation of the PopulationRepository port.
type SqlitePopulationRepository struct{ DB *sql.DB }

func NewSqlitePopulationRepository(db *sql.DB) *SqlitePopulationRepository {
	return &SqlitePopulationRepository{DB: db}
}

// Return all parcels ordered by id.
func (s *SqlitePopulationRepository) ListParcels(ctx context.Context) ([]domain.Parcel, error) {
	if s.DB == nil {
		return nil, errors.New("sqlite population repository: DB is nil")
	}

	query := `
	SELECT
		parcel_id,
		zone_id,
		x,
		y,
		employment,
		households,
		students
	FROM parcels
	ORDER BY parcel_id;
	`
	rows, err := s.DB.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list parcels: query parcels table: %w", err)
	}
	defer rows.Close()

	parcels := make([]domain.Parcel, 0, 256)
	for rows.Next() {
		var p domain.Parcel
		err := rows.Scan(&p.ParcelID, &p.ZoneID, &p.Location.X, &p.Location.Y, &p.Employment, &p.Households, &p.Students)
		if err != nil {
			return nil, fmt.Errorf("list parcels: scan row: %w", err)
		}
		parcels = append(parcels, p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list parcels: row iteration: %w", err)
	}

	return parcels, nil
}

// LoadArena reads every household, person and tour into a fresh arena.
// Rows are read table by table so the single SQLite connection is never
// held by two open cursors.
func (s *SqlitePopulationRepository) LoadArena(ctx context.Context) (*domain.Arena, error) {
	if s.DB == nil {
		return nil, errors.New("sqlite population repository: DB is nil")
	}

	households, err := s.households(ctx)
	if err != nil {
		return nil, err
	}
	persons, err := s.persons(ctx)
	if err != nil {
		return nil, err
	}
	tours, err := s.tours(ctx)
	if err != nil {
		return nil, err
	}
	participants, err := s.participants(ctx)
	if err != nil {
		return nil, err
	}

	arena := domain.NewArena()
	for _, h := range households {
		if err := arena.AddHousehold(h); err != nil {
			return nil, fmt.Errorf("load arena: %w", err)
		}
	}
	for _, p := range persons {
		if err := arena.AddPerson(p); err != nil {
			return nil, fmt.Errorf("load arena: %w", err)
		}
	}
	for _, t := range tours {
		t.ParticipantIDs = participants[t.TourID]
		if err := arena.AddTour(t); err != nil {
			return nil, fmt.Errorf("load arena: %w", err)
		}
	}
	return arena, nil
}

func (s *SqlitePopulationRepository) households(ctx context.Context) ([]domain.Household, error) {
	rows, err := s.DB.QueryContext(ctx, `
	SELECT household_id, home_parcel_id, income, vehicles
	FROM households
	ORDER BY household_id;
	`)
	if err != nil {
		return nil, fmt.Errorf("load arena: query households table: %w", err)
	}
	defer rows.Close()

	var out []domain.Household
	for rows.Next() {
		var h domain.Household
		if err := rows.Scan(&h.HouseholdID, &h.HomeParcelID, &h.Income, &h.Vehicles); err != nil {
			return nil, fmt.Errorf("load arena: scan household: %w", err)
		}
		out = append(out, h)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("load arena: household iteration: %w", err)
	}
	return out, nil
}

func (s *SqlitePopulationRepository) persons(ctx context.Context) ([]domain.Person, error) {
	rows, err := s.DB.QueryContext(ctx, `
	SELECT person_id, household_id, age, worker, student
	FROM persons
	ORDER BY person_id;
	`)
	if err != nil {
		return nil, fmt.Errorf("load arena: query persons table: %w", err)
	}
	defer rows.Close()

	var out []domain.Person
	for rows.Next() {
		var p domain.Person
		if err := rows.Scan(&p.PersonID, &p.HouseholdID, &p.Age, &p.Worker, &p.Student); err != nil {
			return nil, fmt.Errorf("load arena: scan person: %w", err)
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("load arena: person iteration: %w", err)
	}
	return out, nil
}

func (s *SqlitePopulationRepository) tours(ctx context.Context) ([]domain.Tour, error) {
	rows, err := s.DB.QueryContext(ctx, `
	SELECT tour_id, person_id, purpose, destination_parcel_id, mode, arrival_minute, departure_minute
	FROM tours
	ORDER BY tour_id;
	`)
	if err != nil {
		return nil, fmt.Errorf("load arena: query tours table: %w", err)
	}
	defer rows.Close()

	var out []domain.Tour
	for rows.Next() {
		var t domain.Tour
		var purpose, mode int
		if err := rows.Scan(&t.TourID, &t.PersonID, &purpose, &t.DestinationParcelID, &mode, &t.ArrivalMinute, &t.DepartureMinute); err != nil {
			return nil, fmt.Errorf("load arena: scan tour: %w", err)
		}
		t.Purpose = domain.Purpose(purpose)
		t.Mode = domain.Mode(mode)
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("load arena: tour iteration: %w", err)
	}
	return out, nil
}

func (s *SqlitePopulationRepository) participants(ctx context.Context) (map[int][]int, error) {
	rows, err := s.DB.QueryContext(ctx, `
	SELECT tour_id, person_id
	FROM tour_participants
	ORDER BY tour_id, person_id;
	`)
	if err != nil {
		return nil, fmt.Errorf("load arena: query tour_participants table: %w", err)
	}
	defer rows.Close()

	out := map[int][]int{}
	for rows.Next() {
		var tourID, personID int
		if err := rows.Scan(&tourID, &personID); err != nil {
			return nil, fmt.Errorf("load arena: scan participant: %w", err)
		}
		out[tourID] = append(out[tourID], personID)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("load arena: participant iteration: %w", err)
	}
	return out, nil
}

// SaveOutcomes replaces the simulated outcome tables with the arena's
// current state.
func (s *SqlitePopulationRepository) SaveOutcomes(ctx context.Context, arena *domain.Arena) error {
	if s.DB == nil {
		return errors.New("sqlite population repository: DB is nil")
	}

	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("save outcomes: begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, q := range []string{`DELETE FROM simulated_households;`, `DELETE FROM simulated_tours;`} {
		if _, err := tx.ExecContext(ctx, q); err != nil {
			return fmt.Errorf("save outcomes: clear: %w", err)
		}
	}

	for _, id := range arena.HouseholdIDs() {
		h := arena.Household(id)
		if _, err := tx.ExecContext(ctx, `
		INSERT INTO simulated_households (household_id, vehicles, invalid_day) VALUES (?, ?, ?);
		`, h.HouseholdID, h.Vehicles, h.InvalidDay); err != nil {
			return fmt.Errorf("save outcomes: insert household_id=%d: %w", h.HouseholdID, err)
		}
	}

	for _, t := range arena.Tours() {
		invalid := false
		if p := arena.Person(t.PersonID); p != nil {
			invalid = p.InvalidDay
		}
		if _, err := tx.ExecContext(ctx, `
		INSERT INTO simulated_tours (tour_id, destination_parcel_id, mode, arrival_minute, departure_minute, invalid_day)
		VALUES (?, ?, ?, ?, ?, ?);
		`, t.TourID, t.DestinationParcelID, int(t.Mode), t.ArrivalMinute, t.DepartureMinute, invalid); err != nil {
			return fmt.Errorf("save outcomes: insert tour_id=%d: %w", t.TourID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("save outcomes: commit tx: %w", err)
	}
	return nil
}
