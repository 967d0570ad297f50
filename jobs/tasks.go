package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskTypeNotify delivers an engine notification.
	TaskTypeNotify = "notify:send"
	// TaskOverdueScan refreshes days-overdue counters on unpaid invoices.
	TaskOverdueScan = "ar:overdue_scan"
	// TaskCashReconcile recomputes monthly cash totals and penalties.
	TaskCashReconcile = "compliance:cash_reconcile"
)

// NotificationPayload describes a notification emitted after a state transition.
type NotificationPayload struct {
	ID         string    `json:"id"`
	Kind       string    `json:"kind"`
	Reference  string    `json:"reference"`
	CustomerID int64     `json:"customer_id,omitempty"`
	Subject    string    `json:"subject"`
	Body       string    `json:"body"`
	OccurredAt time.Time `json:"occurred_at"`
}

// NewNotificationTask constructs an Asynq task. The payload id doubles as the
// task id so a caller retry does not double-send.
func NewNotificationTask(payload NotificationPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	opts := []asynq.Option{asynq.MaxRetry(5)}
	if payload.ID != "" {
		opts = append(opts, asynq.TaskID(payload.ID))
	}
	return asynq.NewTask(TaskTypeNotify, data, opts...), nil
}

// NewNotificationHandler processes TaskTypeNotify tasks. Delivery channels
// (email, SMS) live outside the engine; the worker records the message.
func NewNotificationHandler(logger *slog.Logger) asynq.HandlerFunc {
	if logger == nil {
		logger = slog.Default()
	}
	return func(ctx context.Context, t *asynq.Task) error {
		var payload NotificationPayload
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return fmt.Errorf("decode notification: %v: %w", err, asynq.SkipRetry)
		}
		logger.Info("notification",
			slog.String("kind", payload.Kind),
			slog.String("reference", payload.Reference),
			slog.Int64("customer_id", payload.CustomerID),
			slog.String("subject", payload.Subject))
		return nil
	}
}

// NewOverdueScanTask constructs the overdue scan task.
func NewOverdueScanTask() *asynq.Task {
	return asynq.NewTask(TaskOverdueScan, nil, asynq.MaxRetry(3), asynq.Timeout(5*time.Minute))
}

// CashReconcilePayload selects the month to reconcile; empty means the current month.
type CashReconcilePayload struct {
	Month string `json:"month,omitempty"`
}

// NewCashReconcileTask constructs the cash reconciliation task.
func NewCashReconcileTask(payload CashReconcilePayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskCashReconcile, data, asynq.MaxRetry(3), asynq.Timeout(10*time.Minute)), nil
}

// ParseCashReconcilePayload decodes the task payload.
func ParseCashReconcilePayload(t *asynq.Task) (CashReconcilePayload, error) {
	var payload CashReconcilePayload
	if len(t.Payload()) == 0 {
		return payload, nil
	}
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return payload, fmt.Errorf("decode cash reconcile payload: %v: %w", err, asynq.SkipRetry)
	}
	return payload, nil
}
