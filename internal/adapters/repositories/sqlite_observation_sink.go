package repositories

import (
	"context"
	"database/sql"
	"daysim/internal/domain"
	"errors"
	"fmt"
	"sync"
)

const defaultObservationBatch = 256

// SqliteObservationSink buffers estimation rows from every worker and writes
// them to the run database in batches. Close flushes what is left.
type SqliteObservationSink struct {
	DB *sql.DB

	mu      sync.Mutex
	batch   int
	pending []domain.Observation
	written int
	closed  bool
}

func NewSqliteObservationSink(db *sql.DB) *SqliteObservationSink {
	return &SqliteObservationSink{DB: db, batch: defaultObservationBatch}
}

func (s *SqliteObservationSink) WriteObservation(ctx context.Context, obs domain.Observation) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return errors.New("sqlite observation sink: write after close")
	}
	s.pending = append(s.pending, obs)
	if len(s.pending) < s.batch {
		return nil
	}
	return s.flushLocked(ctx)
}

// Flush writes buffered rows immediately.
func (s *SqliteObservationSink) Flush(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.flushLocked(ctx)
}

func (s *SqliteObservationSink) flushLocked(ctx context.Context) error {
	if len(s.pending) == 0 {
		return nil
	}
	if s.DB == nil {
		return errors.New("sqlite observation sink: DB is nil")
	}

	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("flush observations: begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, obs := range s.pending {
		if _, err := insertObservation(ctx, tx, func(q string) string { return q }, obs); err != nil {
			return fmt.Errorf("flush observations: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("flush observations: commit tx: %w", err)
	}

	s.written += len(s.pending)
	s.pending = s.pending[:0]
	return nil
}

// Written counts rows committed so far.
func (s *SqliteObservationSink) Written() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.written
}

func (s *SqliteObservationSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.flushLocked(context.Background())
}

// LoadObservations reads back every stored row of model in write order.
func LoadObservations(ctx context.Context, db *sql.DB, model string) ([]domain.Observation, error) {
	rows, err := db.QueryContext(ctx, `
	SELECT observation_id, household_id, person_id, tour_id, trip_id, model_offset, chosen_alternative_id
	FROM observations
	WHERE model = ?
	ORDER BY observation_id;
	`, model)
	if err != nil {
		return nil, fmt.Errorf("load observations: query observations table: %w", err)
	}

	var ids []int64
	var out []domain.Observation
	for rows.Next() {
		var id int64
		obs := domain.Observation{Model: model}
		if err := rows.Scan(&id, &obs.Key.HouseholdID, &obs.Key.PersonID, &obs.Key.TourID, &obs.Key.TripID, &obs.Key.ModelOffset, &obs.ChosenAlternativeID); err != nil {
			rows.Close()
			return nil, fmt.Errorf("load observations: scan row: %w", err)
		}
		ids = append(ids, id)
		out = append(out, obs)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("load observations: row iteration: %w", err)
	}

	for i, id := range ids {
		terms, err := loadTerms(ctx, db, id)
		if err != nil {
			return nil, err
		}
		alts, err := loadAlternatives(ctx, db, id, terms)
		if err != nil {
			return nil, err
		}
		nests, err := loadNests(ctx, db, id, terms)
		if err != nil {
			return nil, err
		}
		out[i].Alternatives = alts
		out[i].Nests = nests
	}
	return out, nil
}

type termOwner struct {
	kind string
	id   int
}

func loadTerms(ctx context.Context, db *sql.DB, observationID int64) (map[termOwner][]domain.ObservationTerm, error) {
	rows, err := db.QueryContext(ctx, `
	SELECT owner, owner_id, coefficient_id, value
	FROM observation_terms
	WHERE observation_id = ?
	ORDER BY owner, owner_id, position;
	`, observationID)
	if err != nil {
		return nil, fmt.Errorf("load observations: query observation_terms table: %w", err)
	}
	defer rows.Close()

	out := map[termOwner][]domain.ObservationTerm{}
	for rows.Next() {
		var o termOwner
		var t domain.ObservationTerm
		if err := rows.Scan(&o.kind, &o.id, &t.CoefficientID, &t.Value); err != nil {
			return nil, fmt.Errorf("load observations: scan term: %w", err)
		}
		out[o] = append(out[o], t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("load observations: term iteration: %w", err)
	}
	return out, nil
}

func loadAlternatives(ctx context.Context, db *sql.DB, observationID int64, terms map[termOwner][]domain.ObservationTerm) ([]domain.ObservedAlternative, error) {
	rows, err := db.QueryContext(ctx, `
	SELECT alternative_id, available, chosen, nest_id
	FROM observation_alternatives
	WHERE observation_id = ?
	ORDER BY alternative_id;
	`, observationID)
	if err != nil {
		return nil, fmt.Errorf("load observations: query observation_alternatives table: %w", err)
	}
	defer rows.Close()

	var out []domain.ObservedAlternative
	for rows.Next() {
		var a domain.ObservedAlternative
		if err := rows.Scan(&a.AlternativeID, &a.Available, &a.Chosen, &a.NestID); err != nil {
			return nil, fmt.Errorf("load observations: scan alternative: %w", err)
		}
		a.Terms = terms[termOwner{ownerAlternative, a.AlternativeID}]
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("load observations: alternative iteration: %w", err)
	}
	return out, nil
}

func loadNests(ctx context.Context, db *sql.DB, observationID int64, terms map[termOwner][]domain.ObservationTerm) ([]domain.ObservedNest, error) {
	rows, err := db.QueryContext(ctx, `
	SELECT nest_id, parent_nest_id, theta
	FROM observation_nests
	WHERE observation_id = ?
	ORDER BY nest_id;
	`, observationID)
	if err != nil {
		return nil, fmt.Errorf("load observations: query observation_nests table: %w", err)
	}
	defer rows.Close()

	var out []domain.ObservedNest
	for rows.Next() {
		var n domain.ObservedNest
		if err := rows.Scan(&n.NestID, &n.ParentNestID, &n.Theta); err != nil {
			return nil, fmt.Errorf("load observations: scan nest: %w", err)
		}
		n.Terms = terms[termOwner{ownerNest, n.NestID}]
		out = append(out, n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("load observations: nest iteration: %w", err)
	}
	return out, nil
}
