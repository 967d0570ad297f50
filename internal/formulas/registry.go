package formulas

import (
	"context"
	"errors"
	"log/slog"
	"strconv"

	"golang.org/x/sync/singleflight"

	"github.com/concreta/concreta/internal/platform/cache"
)

// Registry serves formulas from Redis, collapsing concurrent misses into one
// repository read per formula.
type Registry struct {
	repo   Repository
	cache  *cache.JSON
	group  singleflight.Group
	logger *slog.Logger
}

// NewRegistry constructs a Registry. cache may be nil.
func NewRegistry(repo Repository, c *cache.JSON, logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{repo: repo, cache: c, logger: logger}
}

// Get returns a formula by id.
func (r *Registry) Get(ctx context.Context, id int64) (*Formula, error) {
	key := strconv.FormatInt(id, 10)
	var cached Formula
	err := r.cache.Get(ctx, key, &cached)
	if err == nil {
		return &cached, nil
	}
	if !errors.Is(err, cache.ErrMiss) {
		r.logger.Warn("formula cache read", slog.Int64("formula_id", id), slog.Any("error", err))
	}

	// The shared read outlives whichever caller started it; each caller still
	// stops waiting when its own context ends.
	detached := context.WithoutCancel(ctx)
	ch := r.group.DoChan(key, func() (interface{}, error) {
		f, err := r.repo.Get(detached, id)
		if err != nil {
			return nil, err
		}
		if err := r.cache.Set(detached, key, f); err != nil {
			r.logger.Warn("formula cache write", slog.Int64("formula_id", id), slog.Any("error", err))
		}
		return f, nil
	})
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		f := *res.Val.(*Formula)
		return &f, nil
	}
}

// List returns the catalog.
func (r *Registry) List(ctx context.Context, activeOnly bool) ([]Formula, error) {
	return r.repo.List(ctx, activeOnly)
}
