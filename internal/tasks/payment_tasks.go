package tasks

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"m3roodi/internal/models"
	"m3roodi/internal/services"
)

// PaymentReconciler asks the gateway about checkouts that never got a webhook
type PaymentReconciler interface {
	ReconcilePending(ctx context.Context) (*services.ReconcileSummary, error)
}

// ReminderSender emails customers whose requests are still unpaid
type ReminderSender interface {
	SendScheduled(ctx context.Context, minAge time.Duration) (*services.BatchResult, error)
}

// DefaultReminderAgeHours is how old an unpaid request must be before it is reminded
const DefaultReminderAgeHours = 24

type ReconcilePaymentsTaskDef struct {
	payments PaymentReconciler
	log      *logrus.Logger
}

func (t *ReconcilePaymentsTaskDef) TaskID() string {
	return "reconcile_pending_payments"
}

func (t *ReconcilePaymentsTaskDef) HandleExecution(ctx context.Context, task models.ScheduledTask) (models.TaskOutcome, error) {
	summary, err := t.payments.ReconcilePending(ctx)
	if err != nil {
		return models.TaskOutcome{}, fmt.Errorf("reconcile pending payments: %w", err)
	}
	t.log.WithFields(logrus.Fields{
		"checked":   summary.Checked,
		"confirmed": summary.Confirmed,
		"expired":   summary.Expired,
		"errors":    summary.Errors,
	}).Info("reconciled pending payments")

	return models.TaskOutcome{
		Checked:   summary.Checked,
		Confirmed: summary.Confirmed,
		Failed:    summary.Failed,
		Expired:   summary.Expired,
		Errors:    summary.Errors,
	}, nil
}

type SendPaymentRemindersArgs struct {
	MinAgeHours float64 `json:"min_age_hours"`
}

type SendPaymentRemindersTaskDef struct {
	reminders ReminderSender
	log       *logrus.Logger
}

func (t *SendPaymentRemindersTaskDef) TaskID() string {
	return "send_payment_reminders"
}

func (t *SendPaymentRemindersTaskDef) HandleExecution(ctx context.Context, task models.ScheduledTask) (models.TaskOutcome, error) {
	var args SendPaymentRemindersArgs
	if err := task.Args.Decode(&args); err != nil {
		return models.TaskOutcome{}, err
	}
	if args.MinAgeHours <= 0 {
		args.MinAgeHours = DefaultReminderAgeHours
	}

	minAge := time.Duration(args.MinAgeHours * float64(time.Hour))
	result, err := t.reminders.SendScheduled(ctx, minAge)
	if err != nil {
		return models.TaskOutcome{}, fmt.Errorf("send payment reminders: %w", err)
	}
	t.log.WithFields(logrus.Fields{
		"batch_id": result.BatchID,
		"total":    result.Total,
		"sent":     result.Sent,
		"failed":   result.Failed,
	}).Info("payment reminders sent")

	return models.TaskOutcome{
		BatchID: result.BatchID,
		Total:   result.Total,
		Sent:    result.Sent,
		Failed:  result.Failed,
	}, nil
}
