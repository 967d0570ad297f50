package db

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsConflict(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want bool
	}{
		{"serialization failure", &pgconn.PgError{Code: pgerrcode.SerializationFailure}, true},
		{"deadlock", &pgconn.PgError{Code: pgerrcode.DeadlockDetected}, true},
		{"wrapped", fmt.Errorf("update order: %w", &pgconn.PgError{Code: pgerrcode.SerializationFailure}), true},
		{"unique violation", &pgconn.PgError{Code: pgerrcode.UniqueViolation}, false},
		{"plain error", errors.New("boom"), false},
		{"nil", nil, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, IsConflict(tc.err))
		})
	}
}

type fakeRow struct {
	value int64
	err   error
}

func (r fakeRow) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	*dest[0].(*int64) = r.value
	return nil
}

type recordingQuerier struct {
	args []any
	row  fakeRow
}

func (q *recordingQuerier) QueryRow(_ context.Context, _ string, args ...any) pgx.Row {
	q.args = args
	return q.row
}

func TestNextSequenceUsesMonthlyPeriod(t *testing.T) {
	q := &recordingQuerier{row: fakeRow{value: 7}}
	seq, err := NextSequence(context.Background(), q, "BL", time.Date(2026, 3, 9, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Equal(t, int64(7), seq)
	assert.Equal(t, []any{"BL", "202603"}, q.args)

	q = &recordingQuerier{row: fakeRow{err: pgx.ErrNoRows}}
	_, err = NextSequence(context.Background(), q, "BL", time.Now())
	require.ErrorIs(t, err, pgx.ErrNoRows)
}
