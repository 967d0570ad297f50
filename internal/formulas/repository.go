package formulas

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/concreta/concreta/internal/shared"
)

// Repository reads formulas.
type Repository interface {
	Get(ctx context.Context, id int64) (*Formula, error)
	List(ctx context.Context, activeOnly bool) ([]Formula, error)
}

type repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs the PostgreSQL repository.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{pool: pool}
}

const selectFormula = `SELECT id, code, name, strength_class, cement_kg_per_m3, sand_kg_per_m3,
       gravel_kg_per_m3, water_l_per_m3, admixture_kg_per_m3, active, created_at
FROM formulas`

func scanFormula(row pgx.Row) (Formula, error) {
	var f Formula
	err := row.Scan(&f.ID, &f.Code, &f.Name, &f.StrengthClass, &f.CementKgPerM3, &f.SandKgPerM3,
		&f.GravelKgPerM3, &f.WaterLPerM3, &f.AdmixtureKgPerM3, &f.Active, &f.CreatedAt)
	return f, err
}

func (r *repository) Get(ctx context.Context, id int64) (*Formula, error) {
	f, err := scanFormula(r.pool.QueryRow(ctx, selectFormula+` WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("formula %d: %w", id, shared.ErrNotFound)
		}
		return nil, err
	}
	return &f, nil
}

func (r *repository) List(ctx context.Context, activeOnly bool) ([]Formula, error) {
	query := selectFormula
	if activeOnly {
		query += ` WHERE active`
	}
	rows, err := r.pool.Query(ctx, query+` ORDER BY code`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Formula
	for rows.Next() {
		f, err := scanFormula(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	return out, rows.Err()
}
