package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"m3roodi/internal/config"
	"m3roodi/internal/emails"
	"m3roodi/internal/logger"
	"m3roodi/internal/services"
	"m3roodi/internal/tasks"
)

func main() {
	cfg := config.Load()
	log := logger.New(cfg.LogLevel, cfg.LogFormat)

	// Initialize Database
	if cfg.DatabaseURL == "" {
		log.Fatal("DATABASE_URL not set")
	}
	db, err := services.InitDB(cfg.DatabaseURL, log)
	if err != nil {
		log.WithError(err).Fatal("Failed to connect to database")
	}

	// Create context that cancels on interrupt
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var checkout *services.CheckoutStore
	if cache, err := services.NewRedisCache(cfg.RedisURL); err != nil {
		log.WithError(err).Warn("Redis unavailable, checkout snapshots will not be refreshed")
	} else {
		defer cache.Close()
		checkout = services.NewCheckoutStore(cache)
	}

	gateway := services.NewMidtransService(cfg.MidtransServerKey, cfg.MidtransClientKey, cfg.MidtransIsProduction)
	mailer := services.NewEmailService(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUser, cfg.SMTPPass, cfg.EmailFrom)
	support := emails.Support{Email: cfg.SupportEmail, Phone: cfg.SupportPhone}

	requests := services.NewRequestService(db, log)
	coupons := services.NewCouponService(db)
	payments := services.NewPaymentService(db, gateway, requests, coupons, checkout, log, cfg.AppURL, cfg.MidtransServerKey)
	reminders := services.NewReminderService(db, mailer, log, cfg.AppURL, support)

	// Initialize Task Registry
	registry := tasks.NewRegistry()
	tasks.DefineTasks(registry, tasks.Deps{Payments: payments, Reminders: reminders, Log: log})

	created, err := tasks.EnsureDefaultSchedule(ctx, db, time.Now())
	if err != nil {
		log.WithError(err).Fatal("Failed to seed default schedule")
	}
	for _, task := range created {
		log.WithField("task", task.Name).Info("Scheduled recurring task")
	}

	runner := tasks.NewRunner(db, registry, log)
	interval := time.Duration(cfg.WorkerIntervalMinutes) * time.Minute
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	log.WithFields(logrus.Fields{
		"interval": interval.String(),
		"tasks":    registry.Names(),
	}).Info("Worker started")

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	// Run once on start, then on every tick
	tick(ctx, runner, log)
	for {
		select {
		case <-ticker.C:
			tick(ctx, runner, log)
		case <-ctx.Done():
			log.Info("Shutting down worker...")
			return
		}
	}
}

func tick(ctx context.Context, runner *tasks.Runner, log *logrus.Logger) {
	if _, err := runner.ProcessDue(ctx); err != nil && ctx.Err() == nil {
		log.WithError(err).Error("Error processing scheduled tasks")
	}
}
