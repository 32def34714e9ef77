package tasks

import (
	"context"
	"errors"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"m3roodi/internal/models"
)

// Deps are the services the built-in tasks call into
type Deps struct {
	Payments  PaymentReconciler
	Reminders ReminderSender
	Log       *logrus.Logger
}

// DefineTasks registers all available tasks
func DefineTasks(r *Registry, deps Deps) {
	logInfo := &LogInfoTaskDef{log: deps.Log}
	r.Register(logInfo.TaskID(), logInfo.HandleExecution)

	if deps.Payments != nil {
		reconcile := &ReconcilePaymentsTaskDef{payments: deps.Payments, log: deps.Log}
		r.Register(reconcile.TaskID(), reconcile.HandleExecution)
	}
	if deps.Reminders != nil {
		reminders := &SendPaymentRemindersTaskDef{reminders: deps.Reminders, log: deps.Log}
		r.Register(reminders.TaskID(), reminders.HandleExecution)
	}
}

// Recurrence rules for the default schedule
const (
	ReconcileEvery = "FREQ=MINUTELY;INTERVAL=10"
	RemindDaily    = "FREQ=DAILY;BYHOUR=9;BYMINUTE=0;BYSECOND=0"
)

// EnsureDefaultSchedule creates the recurring reconcile and reminder tasks
// unless an active or disabled task with the same name already exists.
func EnsureDefaultSchedule(ctx context.Context, db *gorm.DB, now time.Time) ([]models.ScheduledTask, error) {
	reconcileRule, remindRule := ReconcileEvery, RemindDaily
	defaults := []struct {
		name string
		args interface{}
		rule *string
	}{
		{name: "reconcile_pending_payments", args: map[string]interface{}{}, rule: &reconcileRule},
		{name: "send_payment_reminders", args: SendPaymentRemindersArgs{MinAgeHours: DefaultReminderAgeHours}, rule: &remindRule},
	}

	var created []models.ScheduledTask
	for _, d := range defaults {
		var existing models.ScheduledTask
		err := db.WithContext(ctx).
			Where("name = ? AND status IN ?", d.name, []models.TaskStatus{models.TaskActive, models.TaskDisabled}).
			First(&existing).Error
		if err == nil {
			continue
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return created, err
		}

		task, err := NewTask(d.name, d.args, now, d.rule, models.TaskRecurring, 3)
		if err != nil {
			return created, err
		}
		if err := db.WithContext(ctx).Create(task).Error; err != nil {
			return created, err
		}
		created = append(created, *task)
	}
	return created, nil
}
