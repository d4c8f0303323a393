package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	"github.com/Alba-Tab/backend-boutique/internal/installment"
	"github.com/Alba-Tab/backend-boutique/internal/observability"
)

// OverdueScanJob flips past-due installments to overdue and logs
// reminders for ones coming due soon.
type OverdueScanJob struct {
	store   *installment.Store
	logger  *slog.Logger
	metrics *observability.Metrics
	clock   func() time.Time
}

func NewOverdueScanJob(store *installment.Store, logger *slog.Logger, metrics *observability.Metrics) *OverdueScanJob {
	return &OverdueScanJob{
		store:   store,
		logger:  logger,
		metrics: metrics,
		clock: func() time.Time {
			return time.Now().UTC()
		},
	}
}

// Handle executes the sweep.
func (j *OverdueScanJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.store == nil {
		return errors.New("overdue scan: handler not configured")
	}
	var payload OverdueScanPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	if payload.ReminderDays <= 0 {
		payload.ReminderDays = 7
	}

	now := j.clock()
	marked, err := j.store.MarkOverdue(ctx, now)
	if err != nil {
		return err
	}
	j.metrics.InstallmentsMarkedOverdue(marked)
	if marked > 0 {
		j.logger.Info("installments marked overdue", slog.Int64("count", marked))
	}

	upcoming, err := j.store.ListDueWithin(ctx, now, payload.ReminderDays)
	if err != nil {
		return err
	}
	for _, in := range upcoming {
		j.logger.Info("installment due soon",
			slog.Int64("installment_id", in.ID),
			slog.Int64("sale_id", in.SaleID),
			slog.Int("seq", in.Seq),
			slog.Time("due_date", in.DueDate),
			slog.String("amount", in.Amount.StringFixed(2)),
		)
	}
	return nil
}
