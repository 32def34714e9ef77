package main

import (
	"context"
	"flag"
	"time"

	"m3roodi/internal/config"
	"m3roodi/internal/emails"
	"m3roodi/internal/logger"
	"m3roodi/internal/pricing"
	"m3roodi/internal/services"
)

// Sends a sample payment reminder so SMTP settings can be checked without a database
func main() {
	to := flag.String("to", "", "Recipient email address")
	name := flag.String("name", "عميل تجريبي", "Customer name used in the reminder")
	flag.Parse()

	cfg := config.Load()
	log := logger.New(cfg.LogLevel, cfg.LogFormat)

	if *to == "" {
		log.Fatal("Please provide a recipient using -to flag")
	}

	mailer := services.NewEmailService(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUser, cfg.SMTPPass, cfg.EmailFrom)
	if !mailer.Configured() {
		log.Fatal("SMTP_HOST, SMTP_USER and SMTP_PASS must be set")
	}

	purpose := pricing.Purposes()[0]
	amount := float64(purpose.Price)
	props := emails.ReminderProps{
		Name:        *name,
		OrderNumber: "RF0",
		Purpose:     purpose.Label,
		Price:       &amount,
		PaymentURL:  cfg.AppURL + "/payment-redirect?orderNumber=RF0",
		Support:     emails.Support{Email: cfg.SupportEmail, Phone: cfg.SupportPhone},
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	html, err := emails.Render(ctx, emails.Reminder(props))
	if err != nil {
		log.WithError(err).Fatal("Failed to render reminder")
	}

	log.WithField("to", *to).Info("Sending test email")
	err = mailer.Send(ctx, services.Email{
		To:      *to,
		Subject: props.ResolvedSubject(),
		HTML:    html,
		Text:    emails.ReminderText(props),
	})
	if err != nil {
		log.WithError(err).Fatal("Failed to send email")
	}
	log.Info("Email sent successfully!")
}
