package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/i474232898/snowfall-bets/internal/estimator"
)

// SQLiteStateStore keeps the estimator state as a single upserted row.
type SQLiteStateStore struct {
	db *sql.DB
}

// NewSQLiteStateStore uses a database opened with OpenSQLite.
func NewSQLiteStateStore(db *sql.DB) *SQLiteStateStore {
	return &SQLiteStateStore{db: db}
}

func (s *SQLiteStateStore) Load(ctx context.Context) (estimator.State, error) {
	var (
		total, last sql.NullFloat64
		updated     sql.NullInt64
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT total_accumulated, last_reading, updated_at FROM estimator_state WHERE id = 1`,
	).Scan(&total, &last, &updated)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return estimator.State{}, estimator.ErrNotFound
		}
		return estimator.State{}, fmt.Errorf("query estimator state: %w", err)
	}
	if !total.Valid || !last.Valid {
		return estimator.State{}, fmt.Errorf("%w: null columns", estimator.ErrMalformedState)
	}

	st := estimator.State{
		TotalAccumulated: total.Float64,
		LastReading:      last.Float64,
	}
	if updated.Valid && updated.Int64 > 0 {
		st.UpdatedAt = time.Unix(0, updated.Int64).UTC()
	}
	if err := st.Validate(); err != nil {
		return estimator.State{}, err
	}
	return st, nil
}

func (s *SQLiteStateStore) Save(ctx context.Context, state estimator.State) error {
	var updated int64
	if !state.UpdatedAt.IsZero() {
		updated = state.UpdatedAt.UnixNano()
	}
	_, err := s.db.ExecContext(ctx, `INSERT INTO estimator_state (id, total_accumulated, last_reading, updated_at)
		VALUES (1, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			total_accumulated = excluded.total_accumulated,
			last_reading      = excluded.last_reading,
			updated_at        = excluded.updated_at`,
		state.TotalAccumulated, state.LastReading, updated,
	)
	if err != nil {
		return fmt.Errorf("upsert estimator state: %w", err)
	}
	return nil
}

// Remove deletes the persisted row so the next start begins from zero.
func (s *SQLiteStateStore) Remove(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM estimator_state WHERE id = 1`); err != nil {
		return fmt.Errorf("delete estimator state: %w", err)
	}
	return nil
}
