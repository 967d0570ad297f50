package compliance

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/concreta/concreta/internal/jobs"
	"github.com/concreta/concreta/jobs"
)

const reconcileJobName = "cash_reconcile"

// ReconcileJob runs Reconcile from the worker.
type ReconcileJob struct {
	service *Service
	metrics *jobmetrics.Metrics
	logger  *slog.Logger
}

// NewReconcileJob constructs the job handler.
func NewReconcileJob(service *Service, metrics *jobmetrics.Metrics, logger *slog.Logger) *ReconcileJob {
	if logger == nil {
		logger = slog.Default()
	}
	return &ReconcileJob{service: service, metrics: metrics, logger: logger}
}

// Handle fulfils the asynq.HandlerFunc contract. An empty month reconciles the
// month that contains the service clock's now.
func (j *ReconcileJob) Handle(ctx context.Context, task *asynq.Task) error {
	if j == nil || j.service == nil {
		return fmt.Errorf("cash reconcile job not configured")
	}
	tracker := j.metrics.Track(reconcileJobName)
	payload, err := jobs.ParseCashReconcilePayload(task)
	if err != nil {
		return tracker.End(err)
	}
	month := j.service.clock.Now()
	if payload.Month != "" {
		month, err = time.Parse("2006-01", payload.Month)
		if err != nil {
			return tracker.End(fmt.Errorf("parse month %q: %v: %w", payload.Month, err, asynq.SkipRetry))
		}
	}
	report, err := j.service.Reconcile(ctx, month)
	if err != nil {
		return tracker.End(err)
	}
	j.metrics.AddItems(reconcileJobName, "discrepancy", len(report.Discrepancies))
	j.logger.Info("cash reconciliation complete",
		slog.String("month", report.Month),
		slog.Int("counterparties", len(report.Totals)),
		slog.Int("discrepancies", len(report.Discrepancies)))
	return tracker.End(nil)
}
