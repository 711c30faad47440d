package store

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	"github.com/i474232898/snowfall-bets/internal/bets"
)

// SQLiteLedger persists bets in the bets table.
type SQLiteLedger struct {
	db *sql.DB
	mu sync.Mutex
}

// NewSQLiteLedger uses a database opened with OpenSQLite.
func NewSQLiteLedger(db *sql.DB) *SQLiteLedger {
	return &SQLiteLedger{db: db}
}

func (l *SQLiteLedger) Append(ctx context.Context, bet bets.Bet) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	_, err := l.db.ExecContext(ctx,
		`INSERT INTO bets (id, name, inches, created_at) VALUES (?,?,?,?)`,
		bet.ID, bet.Name, bet.Inches, bet.CreatedAt.UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("insert bet: %w", err)
	}
	return nil
}

func (l *SQLiteLedger) List(ctx context.Context) ([]bets.Bet, error) {
	rows, err := l.db.QueryContext(ctx,
		`SELECT id, name, inches, created_at FROM bets ORDER BY created_at, rowid`)
	if err != nil {
		return nil, fmt.Errorf("query bets: %w", err)
	}
	defer rows.Close()

	var out []bets.Bet
	for rows.Next() {
		var (
			b       bets.Bet
			created int64
		)
		if err := rows.Scan(&b.ID, &b.Name, &b.Inches, &created); err != nil {
			return nil, fmt.Errorf("scan bet: %w", err)
		}
		b.CreatedAt = time.Unix(0, created).UTC()
		out = append(out, b)
	}
	return out, rows.Err()
}
