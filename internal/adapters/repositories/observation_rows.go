package repositories

import (
	"context"
	"database/sql"
	"daysim/internal/domain"
	"fmt"
	"strconv"
	"strings"
)

const (
	ownerAlternative = "alternative"
	ownerNest        = "nest"
)

// rebindDollar turns ? placeholders into Postgres $n placeholders.
func rebindDollar(q string) string {
	var b strings.Builder
	n := 0
	for _, r := range q {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// insertObservation writes one observation and its alternatives, nests and
// terms inside tx. rebind adapts placeholders to the driver.
func insertObservation(ctx context.Context, tx *sql.Tx, rebind func(string) string, obs domain.Observation) (int64, error) {
	var id int64
	err := tx.QueryRowContext(ctx, rebind(`
	INSERT INTO observations (
		model,
		household_id,
		person_id,
		tour_id,
		trip_id,
		model_offset,
		chosen_alternative_id
	)
	VALUES (?, ?, ?, ?, ?, ?, ?)
	RETURNING observation_id;
	`), obs.Model, obs.Key.HouseholdID, obs.Key.PersonID, obs.Key.TourID, obs.Key.TripID, obs.Key.ModelOffset, obs.ChosenAlternativeID).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("insert observation model=%s household_id=%d: %w", obs.Model, obs.Key.HouseholdID, err)
	}

	altStmt, err := tx.PrepareContext(ctx, rebind(`
	INSERT INTO observation_alternatives (observation_id, alternative_id, available, chosen, nest_id)
	VALUES (?, ?, ?, ?, ?);
	`))
	if err != nil {
		return 0, fmt.Errorf("insert observation: prepare alternatives: %w", err)
	}
	defer altStmt.Close()

	nestStmt, err := tx.PrepareContext(ctx, rebind(`
	INSERT INTO observation_nests (observation_id, nest_id, parent_nest_id, theta)
	VALUES (?, ?, ?, ?);
	`))
	if err != nil {
		return 0, fmt.Errorf("insert observation: prepare nests: %w", err)
	}
	defer nestStmt.Close()

	termStmt, err := tx.PrepareContext(ctx, rebind(`
	INSERT INTO observation_terms (observation_id, owner, owner_id, position, coefficient_id, value)
	VALUES (?, ?, ?, ?, ?, ?);
	`))
	if err != nil {
		return 0, fmt.Errorf("insert observation: prepare terms: %w", err)
	}
	defer termStmt.Close()

	writeTerms := func(owner string, ownerID int, terms []domain.ObservationTerm) error {
		for pos, t := range terms {
			if _, err := termStmt.ExecContext(ctx, id, owner, ownerID, pos, t.CoefficientID, t.Value); err != nil {
				return fmt.Errorf("insert observation: %s=%d term %d: %w", owner, ownerID, pos, err)
			}
		}
		return nil
	}

	for _, a := range obs.Alternatives {
		if _, err := altStmt.ExecContext(ctx, id, a.AlternativeID, a.Available, a.Chosen, a.NestID); err != nil {
			return 0, fmt.Errorf("insert observation: alternative=%d: %w", a.AlternativeID, err)
		}
		if err := writeTerms(ownerAlternative, a.AlternativeID, a.Terms); err != nil {
			return 0, err
		}
	}
	for _, n := range obs.Nests {
		if _, err := nestStmt.ExecContext(ctx, id, n.NestID, n.ParentNestID, n.Theta); err != nil {
			return 0, fmt.Errorf("insert observation: nest=%d: %w", n.NestID, err)
		}
		if err := writeTerms(ownerNest, n.NestID, n.Terms); err != nil {
			return 0, err
		}
	}
	return id, nil
}
