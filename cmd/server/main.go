package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"

	"m3roodi/internal/config"
	"m3roodi/internal/emails"
	"m3roodi/internal/handlers"
	"m3roodi/internal/logger"
	"m3roodi/internal/middleware"
	"m3roodi/internal/services"
)

func main() {
	cfg := config.Load()
	log := logger.New(cfg.LogLevel, cfg.LogFormat)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Initialize Database
	if cfg.DatabaseURL == "" {
		log.Fatal("DATABASE_URL not set")
	}
	db, err := services.InitDB(cfg.DatabaseURL, log)
	if err != nil {
		log.WithError(err).Fatal("Failed to connect to database")
	}
	if err := services.AutoMigrate(db, log); err != nil {
		log.WithError(err).Fatal("Failed to run database migrations")
	}

	// Checkout snapshots live in Redis; without it the success page shows no summary
	var checkout *services.CheckoutStore
	if cache, err := services.NewRedisCache(cfg.RedisURL); err != nil {
		log.WithError(err).Warn("Redis unavailable, checkout summaries disabled")
	} else {
		defer cache.Close()
		checkout = services.NewCheckoutStore(cache)
	}

	// Initialize Firebase
	var authn services.Authenticator
	if firebaseAuth, err := services.InitFirebase(ctx, cfg.FirebaseCredentialsPath); err != nil {
		log.WithError(err).Warn("Firebase initialization failed, admin console disabled")
	} else {
		authn = firebaseAuth
	}

	if cfg.MidtransServerKey == "" {
		log.Warn("MIDTRANS_SERVER_KEY not set, online payments will fail and webhooks are rejected")
	}
	gateway := services.NewMidtransService(cfg.MidtransServerKey, cfg.MidtransClientKey, cfg.MidtransIsProduction)

	mailer := services.NewEmailService(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUser, cfg.SMTPPass, cfg.EmailFrom)
	if !mailer.Configured() {
		log.Warn("SMTP not configured, reminder and bank transfer emails will fail")
	}
	support := emails.Support{Email: cfg.SupportEmail, Phone: cfg.SupportPhone}

	requests := services.NewRequestService(db, log)
	coupons := services.NewCouponService(db)
	payments := services.NewPaymentService(db, gateway, requests, coupons, checkout, log, cfg.AppURL, cfg.MidtransServerKey)
	transfers := services.NewBankTransferService(requests, mailer, log, services.BankAccount{
		Name:        cfg.BankName,
		IBAN:        cfg.BankIBAN,
		Beneficiary: cfg.BankBeneficiary,
	}, support)
	reminders := services.NewReminderService(db, mailer, log, cfg.AppURL, support)
	users := services.NewUserService(db)

	router := &handlers.Router{
		Public:   handlers.NewPublicHandler(requests, coupons, payments, transfers, users, authn, log),
		Redirect: handlers.NewRedirectHandler(payments, log, cfg.SupportEmail),
		Auth:     handlers.NewAuthHandler(authn, users, log, cfg.IsProduction()),
		Requests: handlers.NewAdminRequestHandler(requests),
		Coupons:  handlers.NewCouponHandler(coupons),
		Reminder: handlers.NewReminderHandler(reminders),
		Users:    handlers.NewUserHandler(users),
		Authn:    authn,
		Admins:   users,
		Limiter:  middleware.NewRateLimiter(cfg.PublicRateLimitPerMin),
	}

	// Create Echo instance
	e := echo.New()
	e.HideBanner = true
	e.HTTPErrorHandler = middleware.CustomErrorHandler

	// Middleware
	e.Use(echomw.Recover())
	e.Use(middleware.RequestLogger(log))
	e.Use(echomw.BodyLimit("1M"))

	router.Register(e)

	go func() {
		log.WithField("port", cfg.Port).Info("Server starting")
		if err := e.Start(":" + cfg.Port); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Fatal("Server stopped")
		}
	}()

	<-ctx.Done()
	log.Info("Shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Error("Graceful shutdown failed")
		os.Exit(1)
	}
}
