package tasks

import (
	"context"

	"github.com/sirupsen/logrus"

	"m3roodi/internal/models"
)

// LogInfoTaskDef writes its message to the worker log; handy for checking the scheduler
type LogInfoTaskDef struct {
	log *logrus.Logger
}

func (t *LogInfoTaskDef) TaskID() string {
	return "log_info"
}

type LogInfoArgs struct {
	Message string `json:"message"`
}

func (t *LogInfoTaskDef) HandleExecution(ctx context.Context, task models.ScheduledTask) (models.TaskOutcome, error) {
	var args LogInfoArgs
	if err := task.Args.Decode(&args); err != nil {
		return models.TaskOutcome{}, err
	}
	if args.Message == "" {
		args.Message = "No message provided"
	}
	t.log.WithFields(logrus.Fields{"task": t.TaskID(), "task_id": task.ID}).Info(args.Message)
	return models.TaskOutcome{Message: args.Message}, nil
}
