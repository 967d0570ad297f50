package ar

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/hibiken/asynq"
	"golang.org/x/sync/errgroup"

	jobmetrics "github.com/concreta/concreta/internal/jobs"
)

const (
	overdueJobName     = "ar_overdue_scan"
	overdueConcurrency = 4
)

// RefreshOverdue recomputes DaysOverdue on unpaid invoices as of now and
// notifies the invoices that just became overdue.
func (s *Service) RefreshOverdue(ctx context.Context, now time.Time) (OverdueSummary, error) {
	invoices, err := s.store.ListUnpaid(ctx)
	if err != nil {
		return OverdueSummary{}, fmt.Errorf("list unpaid invoices: %w", err)
	}

	var updated, newly atomic.Int64
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(overdueConcurrency)
	for _, inv := range invoices {
		days := DaysOverdue(inv, now)
		if days == inv.DaysOverdue {
			continue
		}
		g.Go(func() error {
			if err := s.store.UpdateDaysOverdue(gctx, inv.ID, days); err != nil {
				return fmt.Errorf("invoice %s: %w", inv.Number, err)
			}
			updated.Add(1)
			if inv.DaysOverdue == 0 && days > 0 {
				newly.Add(1)
				s.notifyOverdue(gctx, inv, days, now)
			}
			return nil
		})
	}
	err = g.Wait()
	summary := OverdueSummary{Updated: int(updated.Load()), NewlyOverdue: int(newly.Load())}
	if err != nil {
		return summary, err
	}
	s.logger.Info("overdue scan complete",
		slog.Int("scanned", len(invoices)),
		slog.Int("updated", summary.Updated),
		slog.Int("newly_overdue", summary.NewlyOverdue))
	return summary, nil
}

// OverdueJob runs RefreshOverdue from the worker.
type OverdueJob struct {
	service *Service
	metrics *jobmetrics.Metrics
}

// NewOverdueJob constructs the job handler.
func NewOverdueJob(service *Service, metrics *jobmetrics.Metrics) *OverdueJob {
	return &OverdueJob{service: service, metrics: metrics}
}

// Handle fulfils the asynq.HandlerFunc contract.
func (j *OverdueJob) Handle(ctx context.Context, _ *asynq.Task) error {
	if j == nil || j.service == nil {
		return fmt.Errorf("overdue scan job not configured")
	}
	tracker := j.metrics.Track(overdueJobName)
	summary, err := j.service.RefreshOverdue(ctx, j.service.clock.Now())
	j.metrics.AddItems(overdueJobName, "newly_overdue", summary.NewlyOverdue)
	return tracker.End(err)
}
