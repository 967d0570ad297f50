// Package notify is the fire-and-forget sink the engines call after state
// transitions. Failures are logged and never propagate to the caller.
package notify

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"

	"github.com/concreta/concreta/jobs"
)

// Kind names a notification.
type Kind string

const (
	KindQuoteApproved      Kind = "quote.approved"
	KindQuoteRejected      Kind = "quote.rejected"
	KindCreditDenied       Kind = "order.credit_denied"
	KindVarianceFlagged    Kind = "delivery.variance_flagged"
	KindOrderCompleted     Kind = "order.completed"
	KindInvoiceOverdue     Kind = "invoice.overdue"
	KindComplianceFlagged  Kind = "payment.compliance_flagged"
	KindComplianceOverride Kind = "payment.compliance_override"
)

// Event is a state transition worth telling someone about.
type Event struct {
	Kind       Kind
	Reference  string
	CustomerID int64
	Amount     decimal.Decimal
	Detail     string
	At         time.Time
}

// Notifier receives events.
type Notifier interface {
	Notify(ctx context.Context, e Event)
}

// Enqueuer is satisfied by *jobs.Client.
type Enqueuer interface {
	EnqueueNotification(ctx context.Context, payload jobs.NotificationPayload) (*asynq.TaskInfo, error)
}

// AsynqNotifier renders events and hands them to the job queue.
type AsynqNotifier struct {
	queue   Enqueuer
	printer *message.Printer
	logger  *slog.Logger
}

// NewAsynqNotifier constructs the notifier. locale is a BCP 47 tag such as "fr-MA".
func NewAsynqNotifier(queue Enqueuer, locale string, logger *slog.Logger) *AsynqNotifier {
	if logger == nil {
		logger = slog.Default()
	}
	tag, err := language.Parse(locale)
	if err != nil {
		tag = language.French
	}
	return &AsynqNotifier{queue: queue, printer: message.NewPrinter(tag), logger: logger}
}

// Notify enqueues the event.
func (n *AsynqNotifier) Notify(ctx context.Context, e Event) {
	if e.At.IsZero() {
		e.At = time.Now().UTC()
	}
	payload := jobs.NotificationPayload{
		ID:         uuid.NewString(),
		Kind:       string(e.Kind),
		Reference:  e.Reference,
		CustomerID: e.CustomerID,
		Subject:    Subject(e.Kind, e.Reference),
		Body:       n.Body(e),
		OccurredAt: e.At,
	}
	if _, err := n.queue.EnqueueNotification(ctx, payload); err != nil {
		n.logger.Warn("enqueue notification",
			slog.String("kind", payload.Kind),
			slog.String("reference", e.Reference),
			slog.Any("error", err))
	}
}

// Body renders the message text with a locale-formatted amount.
func (n *AsynqNotifier) Body(e Event) string {
	if e.Amount.IsZero() {
		return e.Detail
	}
	amount := n.printer.Sprint(number.Decimal(e.Amount.InexactFloat64(), number.Scale(2)))
	if e.Detail == "" {
		return amount
	}
	return fmt.Sprintf("%s (%s)", e.Detail, amount)
}

// Subject returns a short title for the event.
func Subject(kind Kind, ref string) string {
	switch kind {
	case KindQuoteApproved:
		return "Quote " + ref + " approved"
	case KindQuoteRejected:
		return "Quote " + ref + " rejected"
	case KindCreditDenied:
		return "Credit ceiling exceeded for " + ref
	case KindVarianceFlagged:
		return "Cement variance out of tolerance on " + ref
	case KindOrderCompleted:
		return "Order " + ref + " fully delivered"
	case KindInvoiceOverdue:
		return "Invoice " + ref + " overdue"
	case KindComplianceFlagged:
		return "Cash ceiling exceeded for " + ref
	case KindComplianceOverride:
		return "Cash ceiling override on " + ref
	default:
		return string(kind) + " " + ref
	}
}

// Noop drops every event.
type Noop struct{}

// Notify does nothing.
func (Noop) Notify(context.Context, Event) {}

// Recorder keeps events in memory.
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

// Notify appends the event.
func (r *Recorder) Notify(_ context.Context, e Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

// Events returns a copy of what was recorded.
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Event, len(r.events))
	copy(out, r.events)
	return out
}

// Kinds lists recorded kinds in order.
func (r *Recorder) Kinds() []Kind {
	events := r.Events()
	out := make([]Kind, 0, len(events))
	for _, e := range events {
		out = append(out, e.Kind)
	}
	return out
}
