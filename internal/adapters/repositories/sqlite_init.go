package repositories

import (
	"context"
	"database/sql"
	"daysim/internal/domain"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
)

// Initialize the SQLite run database schema.
func InitSchema(db *sql.DB) error {
	if db == nil {
		return errors.New("init schema: DB is nil")
	}

	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("init schema: begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	createParcelsQuery := `
	CREATE TABLE IF NOT EXISTS parcels (
		parcel_id INTEGER PRIMARY KEY,
		zone_id INTEGER NOT NULL,
		x REAL NOT NULL,
		y REAL NOT NULL,
		employment REAL NOT NULL DEFAULT 0,
		households REAL NOT NULL DEFAULT 0,
		students REAL NOT NULL DEFAULT 0
	);
	`

	createHouseholdsQuery := `
	CREATE TABLE IF NOT EXISTS households (
		household_id INTEGER PRIMARY KEY,
		home_parcel_id INTEGER NOT NULL REFERENCES parcels(parcel_id),
		income INTEGER NOT NULL DEFAULT 0,
		vehicles INTEGER NOT NULL DEFAULT 0
	);
	`

	createPersonsQuery := `
	CREATE TABLE IF NOT EXISTS persons (
		person_id INTEGER PRIMARY KEY,
		household_id INTEGER NOT NULL REFERENCES households(household_id),
		age INTEGER NOT NULL,
		worker INTEGER NOT NULL DEFAULT 0,
		student INTEGER NOT NULL DEFAULT 0
	);
	`

	createToursQuery := `
	CREATE TABLE IF NOT EXISTS tours (
		tour_id INTEGER PRIMARY KEY,
		person_id INTEGER NOT NULL REFERENCES persons(person_id),
		purpose INTEGER NOT NULL,
		destination_parcel_id INTEGER NOT NULL DEFAULT 0,
		mode INTEGER NOT NULL DEFAULT 0,
		arrival_minute INTEGER NOT NULL DEFAULT 0,
		departure_minute INTEGER NOT NULL DEFAULT 0
	);
	`

	createTourParticipantsQuery := `
	CREATE TABLE IF NOT EXISTS tour_participants (
		tour_id INTEGER NOT NULL REFERENCES tours(tour_id),
		person_id INTEGER NOT NULL REFERENCES persons(person_id),
		PRIMARY KEY (tour_id, person_id)
	);
	`

	createSimulatedHouseholdsQuery := `
	CREATE TABLE IF NOT EXISTS simulated_households (
		household_id INTEGER PRIMARY KEY,
		vehicles INTEGER NOT NULL,
		invalid_day INTEGER NOT NULL DEFAULT 0
	);
	`

	createSimulatedToursQuery := `
	CREATE TABLE IF NOT EXISTS simulated_tours (
		tour_id INTEGER PRIMARY KEY,
		destination_parcel_id INTEGER NOT NULL,
		mode INTEGER NOT NULL,
		arrival_minute INTEGER NOT NULL,
		departure_minute INTEGER NOT NULL,
		invalid_day INTEGER NOT NULL DEFAULT 0
	);
	`

	createObservationsQuery := `
	CREATE TABLE IF NOT EXISTS observations (
		observation_id INTEGER PRIMARY KEY AUTOINCREMENT,
		model TEXT NOT NULL,
		household_id INTEGER NOT NULL,
		person_id INTEGER NOT NULL,
		tour_id INTEGER NOT NULL,
		trip_id INTEGER NOT NULL,
		model_offset INTEGER NOT NULL,
		chosen_alternative_id INTEGER NOT NULL
	);
	`

	createObservationAlternativesQuery := `
	CREATE TABLE IF NOT EXISTS observation_alternatives (
		observation_id INTEGER NOT NULL REFERENCES observations(observation_id),
		alternative_id INTEGER NOT NULL,
		available INTEGER NOT NULL,
		chosen INTEGER NOT NULL,
		nest_id INTEGER NOT NULL,
		PRIMARY KEY (observation_id, alternative_id)
	);
	`

	createObservationNestsQuery := `
	CREATE TABLE IF NOT EXISTS observation_nests (
		observation_id INTEGER NOT NULL REFERENCES observations(observation_id),
		nest_id INTEGER NOT NULL,
		parent_nest_id INTEGER NOT NULL,
		theta REAL NOT NULL,
		PRIMARY KEY (observation_id, nest_id)
	);
	`

	createObservationTermsQuery := `
	CREATE TABLE IF NOT EXISTS observation_terms (
		observation_id INTEGER NOT NULL REFERENCES observations(observation_id),
		owner TEXT NOT NULL,
		owner_id INTEGER NOT NULL,
		position INTEGER NOT NULL,
		coefficient_id INTEGER NOT NULL,
		value REAL NOT NULL,
		PRIMARY KEY (observation_id, owner, owner_id, position)
	);
	`

	createShadowPricesQuery := `
	CREATE TABLE IF NOT EXISTS shadow_prices (
		purpose INTEGER NOT NULL,
		parcel_id INTEGER NOT NULL,
		price REAL NOT NULL,
		PRIMARY KEY (purpose, parcel_id)
	);
	`

	createSkimCacheQuery := `
	CREATE TABLE IF NOT EXISTS skim_cache (
        mode INTEGER NOT NULL,
        origin_zone INTEGER NOT NULL,
        destination_zone INTEGER NOT NULL,
        minutes REAL NOT NULL,
        miles REAL NOT NULL,
        PRIMARY KEY (mode, origin_zone, destination_zone)
    );
	`

	createIndexQuery := `
	CREATE INDEX IF NOT EXISTS idx_persons_household
    ON persons(household_id);
	`

	statements := []string{
		createParcelsQuery,
		createHouseholdsQuery,
		createPersonsQuery,
		createToursQuery,
		createTourParticipantsQuery,
		createSimulatedHouseholdsQuery,
		createSimulatedToursQuery,
		createObservationsQuery,
		createObservationAlternativesQuery,
		createObservationNestsQuery,
		createObservationTermsQuery,
		createShadowPricesQuery,
		createSkimCacheQuery,
		createIndexQuery,
	}

	for i, stmt := range statements {
		if _, err := tx.Exec(stmt); err != nil {
			return fmt.Errorf("init schema: exec statement #%d: %w", i+1, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("init schema: commit tx: %w", err)
	}

	return nil
}

type ParcelSeed struct {
	ParcelID   int     `json:"parcel_id"`
	ZoneID     int     `json:"zone_id"`
	X          float64 `json:"x"`
	Y          float64 `json:"y"`
	Employment float64 `json:"employment"`
	Households float64 `json:"households"`
	Students   float64 `json:"students"`
}

type HouseholdSeed struct {
	HouseholdID  int `json:"household_id"`
	HomeParcelID int `json:"home_parcel_id"`
	Income       int `json:"income"`
	Vehicles     int `json:"vehicles"`
}

type PersonSeed struct {
	PersonID    int  `json:"person_id"`
	HouseholdID int  `json:"household_id"`
	Age         int  `json:"age"`
	Worker      bool `json:"worker"`
	Student     bool `json:"student"`
}

// TourSeed carries observed outcomes; they are zero for tours that have
// only been generated.
type TourSeed struct {
	TourID              int    `json:"tour_id"`
	PersonID            int    `json:"person_id"`
	Purpose             string `json:"purpose"`
	ParticipantIDs      []int  `json:"participant_ids"`
	DestinationParcelID int    `json:"destination_parcel_id"`
	Mode                string `json:"mode"`
	ArrivalMinute       int    `json:"arrival_minute"`
	DepartureMinute     int    `json:"departure_minute"`
}

type PopulationSeed struct {
	Parcels    []ParcelSeed    `json:"parcels"`
	Households []HouseholdSeed `json:"households"`
	Persons    []PersonSeed    `json:"persons"`
	Tours      []TourSeed      `json:"tours"`
}

// Populate the database with parcels and population from a JSON file.
// Re-seeding the same file updates rows in place.
func SeedFromJSON(db *sql.DB, jsonPath string) error {
	bytes, err := os.ReadFile(jsonPath)
	if err != nil {
		return fmt.Errorf("seed population: read %q: %w", jsonPath, err)
	}

	var data PopulationSeed
	if err := json.Unmarshal(bytes, &data); err != nil {
		return fmt.Errorf("seed population: parse json: %w", err)
	}

	return Seed(context.Background(), db, data)
}

// Seed writes a decoded population in one transaction.
func Seed(ctx context.Context, db *sql.DB, data PopulationSeed) error {
	if db == nil {
		return errors.New("seed population: DB is nil")
	}

	for i, p := range data.Parcels {
		if p.ParcelID <= 0 {
			return fmt.Errorf("seed population: invalid parcel_id at index %d: %d", i+1, p.ParcelID)
		}
	}
	for i, h := range data.Households {
		if h.HouseholdID <= 0 {
			return fmt.Errorf("seed population: invalid household_id at index %d: %d", i+1, h.HouseholdID)
		}
	}
	for i, p := range data.Persons {
		if p.PersonID <= 0 {
			return fmt.Errorf("seed population: invalid person_id at index %d: %d", i+1, p.PersonID)
		}
	}

	type tourRow struct {
		seed    TourSeed
		purpose domain.Purpose
		mode    domain.Mode
	}
	tours := make([]tourRow, 0, len(data.Tours))
	for i, t := range data.Tours {
		if t.TourID <= 0 {
			return fmt.Errorf("seed population: invalid tour_id at index %d: %d", i+1, t.TourID)
		}
		purpose, err := domain.ParsePurpose(strings.TrimSpace(t.Purpose))
		if err != nil {
			return fmt.Errorf("seed population: tour_id=%d: %w", t.TourID, err)
		}
		mode := domain.ModeNone
		if m := strings.TrimSpace(t.Mode); m != "" {
			if mode, err = domain.ParseMode(m); err != nil {
				return fmt.Errorf("seed population: tour_id=%d: %w", t.TourID, err)
			}
		}
		tours = append(tours, tourRow{seed: t, purpose: purpose, mode: mode})
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("seed population: begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, p := range data.Parcels {
		if _, err := tx.ExecContext(ctx, `
		INSERT INTO parcels (parcel_id, zone_id, x, y, employment, households, students)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (parcel_id) DO UPDATE SET
			zone_id = excluded.zone_id,
			x = excluded.x,
			y = excluded.y,
			employment = excluded.employment,
			households = excluded.households,
			students = excluded.students;
		`, p.ParcelID, p.ZoneID, p.X, p.Y, p.Employment, p.Households, p.Students); err != nil {
			return fmt.Errorf("seed population: insert parcel_id=%d: %w", p.ParcelID, err)
		}
	}

	for _, h := range data.Households {
		if _, err := tx.ExecContext(ctx, `
		INSERT INTO households (household_id, home_parcel_id, income, vehicles)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (household_id) DO UPDATE SET
			home_parcel_id = excluded.home_parcel_id,
			income = excluded.income,
			vehicles = excluded.vehicles;
		`, h.HouseholdID, h.HomeParcelID, h.Income, h.Vehicles); err != nil {
			return fmt.Errorf("seed population: insert household_id=%d: %w", h.HouseholdID, err)
		}
	}

	for _, p := range data.Persons {
		if _, err := tx.ExecContext(ctx, `
		INSERT INTO persons (person_id, household_id, age, worker, student)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (person_id) DO UPDATE SET
			household_id = excluded.household_id,
			age = excluded.age,
			worker = excluded.worker,
			student = excluded.student;
		`, p.PersonID, p.HouseholdID, p.Age, p.Worker, p.Student); err != nil {
			return fmt.Errorf("seed population: insert person_id=%d: %w", p.PersonID, err)
		}
	}

	for _, t := range tours {
		s := t.seed
		if _, err := tx.ExecContext(ctx, `
		INSERT INTO tours (tour_id, person_id, purpose, destination_parcel_id, mode, arrival_minute, departure_minute)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (tour_id) DO UPDATE SET
			person_id = excluded.person_id,
			purpose = excluded.purpose,
			destination_parcel_id = excluded.destination_parcel_id,
			mode = excluded.mode,
			arrival_minute = excluded.arrival_minute,
			departure_minute = excluded.departure_minute;
		`, s.TourID, s.PersonID, int(t.purpose), s.DestinationParcelID, int(t.mode), s.ArrivalMinute, s.DepartureMinute); err != nil {
			return fmt.Errorf("seed population: insert tour_id=%d: %w", s.TourID, err)
		}
		for _, pid := range s.ParticipantIDs {
			if _, err := tx.ExecContext(ctx, `
			INSERT OR IGNORE INTO tour_participants (tour_id, person_id) VALUES (?, ?);
			`, s.TourID, pid); err != nil {
				return fmt.Errorf("seed population: insert participant tour_id=%d person_id=%d: %w", s.TourID, pid, err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("seed population: commit tx: %w", err)
	}

	return nil
}
