package db

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
)

// RowQuerier is satisfied by both *pgxpool.Pool and pgx.Tx.
type RowQuerier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// NextSequence increments and returns the per-month counter for prefix.
func NextSequence(ctx context.Context, q RowQuerier, prefix string, at time.Time) (int64, error) {
	period := at.Format("200601")
	var next int64
	err := q.QueryRow(ctx, `INSERT INTO doc_sequences (prefix, period, last_value) VALUES ($1, $2, 1)
ON CONFLICT (prefix, period) DO UPDATE SET last_value = doc_sequences.last_value + 1
RETURNING last_value`, prefix, period).Scan(&next)
	if err != nil {
		return 0, fmt.Errorf("platform/db: next sequence %s: %w", prefix, err)
	}
	return next, nil
}
