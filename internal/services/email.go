package services

import (
	"context"
	"errors"
	"fmt"

	"gopkg.in/gomail.v2"
)

// Email is one outgoing message. HTML is required, Text is an optional plain alternative.
type Email struct {
	To      string
	Subject string
	HTML    string
	Text    string
}

// Mailer delivers a single email
type Mailer interface {
	Send(ctx context.Context, email Email) error
}

var ErrSMTPNotConfigured = errors.New("SMTP credentials not fully configured")

type EmailService struct {
	host     string
	port     int
	user     string
	password string
	from     string
	fromName string
}

func NewEmailService(host string, port int, user, password, from string) *EmailService {
	return &EmailService{
		host:     host,
		port:     port,
		user:     user,
		password: password,
		from:     from,
		fromName: "معروضي",
	}
}

func (s *EmailService) Configured() bool {
	return s.host != "" && s.port != 0 && s.user != "" && s.password != ""
}

func (s *EmailService) message(email Email) *gomail.Message {
	m := gomail.NewMessage(gomail.SetCharset("UTF-8"))
	m.SetAddressHeader("From", s.from, s.fromName)
	m.SetHeader("To", email.To)
	m.SetHeader("Subject", email.Subject)
	if email.Text != "" {
		m.SetBody("text/plain", email.Text)
		m.AddAlternative("text/html", email.HTML)
	} else {
		m.SetBody("text/html", email.HTML)
	}
	return m
}

// Send dials the SMTP server and delivers email. A dial per message keeps a
// failed recipient from poisoning the rest of a batch.
func (s *EmailService) Send(ctx context.Context, email Email) error {
	if !s.Configured() {
		return &EmailError{To: email.To, Err: ErrSMTPNotConfigured}
	}
	if err := ctx.Err(); err != nil {
		return &EmailError{To: email.To, Err: err}
	}

	d := gomail.NewDialer(s.host, s.port, s.user, s.password)
	if err := d.DialAndSend(s.message(email)); err != nil {
		return &EmailError{To: email.To, Err: fmt.Errorf("dial and send: %w", err)}
	}
	return nil
}
