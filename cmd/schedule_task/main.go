package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/teambition/rrule-go"

	"m3roodi/internal/config"
	"m3roodi/internal/logger"
	"m3roodi/internal/models"
	"m3roodi/internal/services"
	"m3roodi/internal/tasks"
)

func main() {
	taskName := flag.String("name", "", "Registered task name, e.g. send_payment_reminders (mandatory)")
	argsStr := flag.String("args", "{}", `JSON arguments, e.g. {"min_age_hours": 48}`)
	dueStr := flag.String("due", "", "Due date (mandatory, format: 2006-01-02 15:04 or RFC3339)")
	schedule := flag.String("schedule", string(models.TaskOnce), "Schedule: once or recurring")
	rule := flag.String("rrule", "", "RRULE for recurring tasks, e.g. FREQ=DAILY;BYHOUR=9")
	maxAttempts := flag.Int("max_attempts", 3, "Max attempts per run")

	flag.Parse()

	if *taskName == "" || *dueStr == "" {
		fmt.Println("Usage: schedule_task -name <task> -due <YYYY-MM-DD HH:MM> [-args <json>] [options]")
		flag.PrintDefaults()
		os.Exit(1)
	}

	cfg := config.Load()
	log := logger.New(cfg.LogLevel, cfg.LogFormat)

	var args models.TaskArgs
	if err := json.Unmarshal([]byte(*argsStr), &args); err != nil {
		log.WithError(err).Fatal("Invalid JSON arguments")
	}

	// RFC3339 first, then a local wall-clock time
	due, err := time.Parse(time.RFC3339, *dueStr)
	if err != nil {
		due, err = time.ParseInLocation("2006-01-02 15:04", *dueStr, time.Local)
		if err != nil {
			log.WithError(err).Fatal("Invalid due date format. Use '2006-01-02 15:04' (Local) or RFC3339")
		}
	}

	kind := models.TaskSchedule(*schedule)
	var rulePtr *string
	switch kind {
	case models.TaskOnce:
		if *rule != "" {
			log.Fatal("-rrule only applies to -schedule recurring")
		}
	case models.TaskRecurring:
		if _, err := rrule.StrToRRule(*rule); err != nil {
			log.WithError(err).Fatal("Invalid recurrence rule")
		}
		rulePtr = rule
	default:
		log.Fatalf("Unknown schedule %q", *schedule)
	}

	task, err := tasks.NewTask(*taskName, args, due, rulePtr, kind, *maxAttempts)
	if err != nil {
		log.WithError(err).Fatal("Failed to build task")
	}

	if cfg.DatabaseURL == "" {
		log.Fatal("DATABASE_URL is not set")
	}
	db, err := services.InitDB(cfg.DatabaseURL, log)
	if err != nil {
		log.WithError(err).Fatal("Failed to connect DB")
	}

	if err := db.Create(task).Error; err != nil {
		log.WithError(err).Fatal("Failed to create task")
	}

	fmt.Printf("Successfully created task ID: %d\n", task.ID)
	fmt.Printf("Task: %s\nDue: %s\nSchedule: %s\n", task.Name, task.Due, task.Schedule)
	if task.RRule != nil {
		fmt.Printf("Next run after due: %s\n", task.NextDue(task.Due))
	}
}
