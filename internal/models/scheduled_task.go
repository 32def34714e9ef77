package models

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/teambition/rrule-go"
)

type TaskStatus string

const (
	TaskActive   TaskStatus = "active"
	TaskDone     TaskStatus = "done"
	TaskFailed   TaskStatus = "failed"
	TaskDisabled TaskStatus = "disabled"
)

// TaskSchedule says whether a task runs once or follows its RRule
type TaskSchedule string

const (
	TaskOnce      TaskSchedule = "once"
	TaskRecurring TaskSchedule = "recurring"
)

// TaskArgs are the JSON arguments stored with a task, e.g. {"min_age_hours": 24}
type TaskArgs map[string]interface{}

// Decode copies the arguments into dst through their JSON form
func (a TaskArgs) Decode(dst interface{}) error {
	raw, err := json.Marshal(a)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return fmt.Errorf("task arguments: %w", err)
	}
	return nil
}

// ScheduledTask is a background job for the worker: reconciling unconfirmed
// checkouts or emailing payment reminders. It runs once Due has passed.
type ScheduledTask struct {
	ID        uint      `gorm:"primarykey" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Name        string       `gorm:"type:varchar(100);index" json:"name"`
	Args        TaskArgs     `gorm:"serializer:json" json:"args"`
	Schedule    TaskSchedule `gorm:"type:varchar(20);default:'once'" json:"schedule"`
	RRule       *string      `gorm:"column:rrule;type:text" json:"rrule,omitempty"`
	Due         time.Time    `gorm:"index:idx_scheduled_tasks_status_due,priority:2" json:"due"`
	Status      TaskStatus   `gorm:"type:varchar(20);index:idx_scheduled_tasks_status_due,priority:1" json:"status"`
	MaxAttempts int          `gorm:"default:3" json:"max_attempts"`
	LastRunAt   *time.Time   `json:"last_run_at"`
	LastError   string       `gorm:"type:text" json:"last_error,omitempty"`
}

// NextDue is the first occurrence of RRule after now, anchored at Due.
// Anything that cannot recur (one-off, missing or broken rule, exhausted
// rule) keeps Due.
func (t ScheduledTask) NextDue(now time.Time) time.Time {
	if t.Schedule != TaskRecurring || t.RRule == nil || *t.RRule == "" {
		return t.Due
	}
	rule, err := rrule.StrToRRule(*t.RRule)
	if err != nil {
		return t.Due
	}
	rule.DTStart(t.Due)
	if next := rule.After(now, false); !next.IsZero() {
		return next
	}
	return t.Due
}

type TaskRunStatus string

const (
	TaskRunSucceeded TaskRunStatus = "succeeded"
	TaskRunFailed    TaskRunStatus = "failed"
	TaskRunNoHandler TaskRunStatus = "no_handler"
)

// TaskOutcome is what a task reports back. Reconciliation fills the session
// counters, reminder runs fill the batch fields.
type TaskOutcome struct {
	Checked   int `json:"checked,omitempty"`
	Confirmed int `json:"confirmed,omitempty"`
	Expired   int `json:"expired,omitempty"`
	Errors    int `json:"errors,omitempty"`

	BatchID string `json:"batch_id,omitempty"`
	Total   int    `json:"total,omitempty"`
	Sent    int    `json:"sent,omitempty"`

	// Failed counts failed sessions or failed emails, depending on the task
	Failed  int    `json:"failed,omitempty"`
	Message string `json:"message,omitempty"`
}

// TaskRun is one attempt of a scheduled task
type TaskRun struct {
	ID        uint      `gorm:"primarykey" json:"id"`
	CreatedAt time.Time `json:"created_at"`

	TaskID     uint          `gorm:"index" json:"task_id"`
	TaskName   string        `gorm:"type:varchar(100)" json:"task_name"`
	Attempt    int           `json:"attempt"`
	StartedAt  time.Time     `json:"started_at"`
	DurationMs int64         `json:"duration_ms"`
	Status     TaskRunStatus `gorm:"type:varchar(20);index" json:"status"`
	Args       TaskArgs      `gorm:"serializer:json" json:"args"`
	Outcome    TaskOutcome   `gorm:"serializer:json" json:"outcome"`
	Error      string        `gorm:"type:text" json:"error,omitempty"`
}
