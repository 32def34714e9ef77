package tasks

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"m3roodi/internal/models"
)

// Runner executes due scheduled tasks against a registry
type Runner struct {
	db       *gorm.DB
	registry *Registry
	log      *logrus.Logger
	now      func() time.Time
}

func NewRunner(db *gorm.DB, registry *Registry, log *logrus.Logger) *Runner {
	return &Runner{db: db, registry: registry, log: log, now: time.Now}
}

// ProcessDue runs every active task whose due time has passed and returns how many ran
func (r *Runner) ProcessDue(ctx context.Context) (int, error) {
	var pending []models.ScheduledTask
	err := r.db.WithContext(ctx).
		Where("status = ? AND due <= ?", models.TaskActive, r.now()).
		Order("due asc").
		Find(&pending).Error
	if err != nil {
		return 0, err
	}

	if len(pending) == 0 {
		r.log.Debug("no pending tasks")
		return 0, nil
	}
	r.log.WithField("count", len(pending)).Info("processing pending tasks")

	ran := 0
	for _, task := range pending {
		if ctx.Err() != nil {
			return ran, ctx.Err()
		}
		r.execute(ctx, task)
		ran++
	}
	return ran, nil
}

func (r *Runner) execute(ctx context.Context, task models.ScheduledTask) {
	entry := r.log.WithFields(logrus.Fields{"task": task.Name, "task_id": task.ID})

	handler, found := r.registry.Get(task.Name)
	if !found {
		entry.Warn("no handler registered for task, marking it failed")
		now := r.now()
		r.recordRun(entry, models.TaskRun{
			TaskID:    task.ID,
			TaskName:  task.Name,
			Attempt:   1,
			StartedAt: now,
			Status:    models.TaskRunNoHandler,
			Args:      task.Args,
			Error:     "no handler for " + task.Name,
		})
		r.update(entry, task, map[string]interface{}{
			"status":      models.TaskFailed,
			"last_run_at": &now,
			"last_error":  "no handler for " + task.Name,
		})
		return
	}

	maxAttempts := task.MaxAttempts
	if maxAttempts < 1 {
		maxAttempts = 1
	}

	var (
		started time.Time
		err     error
	)
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		started = r.now()
		var outcome models.TaskOutcome
		outcome, err = handler(ctx, task)
		run := models.TaskRun{
			TaskID:     task.ID,
			TaskName:   task.Name,
			Attempt:    attempt,
			StartedAt:  started,
			DurationMs: r.now().Sub(started).Milliseconds(),
			Status:     models.TaskRunSucceeded,
			Args:       task.Args,
			Outcome:    outcome,
		}

		if err == nil {
			r.recordRun(entry, run)
			entry.WithField("attempt", attempt).Info("task completed")
			break
		}
		run.Status = models.TaskRunFailed
		run.Error = err.Error()
		r.recordRun(entry, run)
		entry.WithError(err).WithField("attempt", attempt).Warn("task attempt failed")

		if ctx.Err() != nil {
			break
		}
	}

	updates := map[string]interface{}{"last_run_at": &started, "last_error": ""}
	if err != nil {
		updates["last_error"] = err.Error()
	}
	switch {
	case task.Schedule == models.TaskRecurring:
		// a recurring task keeps its schedule even after a failed run
		if next := task.NextDue(r.now()); next.After(task.Due) {
			updates["status"] = models.TaskActive
			updates["due"] = next
		} else {
			updates["status"] = models.TaskDone
		}
	case err != nil:
		updates["status"] = models.TaskFailed
	default:
		updates["status"] = models.TaskDone
	}
	r.update(entry, task, updates)
}

func (r *Runner) recordRun(entry *logrus.Entry, run models.TaskRun) {
	if err := r.db.Create(&run).Error; err != nil {
		entry.WithError(err).Error("failed to record task run")
	}
}

func (r *Runner) update(entry *logrus.Entry, task models.ScheduledTask, updates map[string]interface{}) {
	if err := r.db.Model(&models.ScheduledTask{}).Where("id = ?", task.ID).Updates(updates).Error; err != nil {
		entry.WithError(err).Error("failed to update task")
	}
}
