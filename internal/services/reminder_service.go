package services

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"m3roodi/internal/emails"
	"m3roodi/internal/models"
)

// ReminderCooldown keeps scheduled reminders from emailing the same request twice a day
const ReminderCooldown = 24 * time.Hour

type ReminderService struct {
	db      *gorm.DB
	mailer  Mailer
	log     *logrus.Logger
	appURL  string
	support emails.Support
	now     func() time.Time
}

func NewReminderService(db *gorm.DB, mailer Mailer, log *logrus.Logger, appURL string, support emails.Support) *ReminderService {
	return &ReminderService{
		db:      db,
		mailer:  mailer,
		log:     log,
		appURL:  strings.TrimRight(appURL, "/"),
		support: support,
		now:     time.Now,
	}
}

// ManualReminderInput is one reminder composed by an admin
type ManualReminderInput struct {
	Email     string   `json:"email" validate:"required,email"`
	Name      string   `json:"name" validate:"required,max=255"`
	RequestID *uint    `json:"request_id"`
	Purpose   *string  `json:"purpose"`
	Price     *float64 `json:"price" validate:"omitempty,gte=0"`
	Subject   string   `json:"subject" validate:"max=255"`
	Message   string   `json:"message"`
}

func (s *ReminderService) props(in ManualReminderInput) emails.ReminderProps {
	p := emails.ReminderProps{
		Name:    in.Name,
		Price:   in.Price,
		Subject: in.Subject,
		Message: in.Message,
		Support: s.support,
	}
	if in.Purpose != nil {
		p.Purpose = *in.Purpose
	}
	if in.RequestID != nil {
		p.OrderNumber = models.OrderNumberFor(*in.RequestID)
		p.PaymentURL = fmt.Sprintf("%s/payment?requestId=%d", s.appURL, *in.RequestID)
	}
	return p
}

// SendManual writes the audit row, sends the email and finalizes the row.
// The returned reminder reflects the final status even when err is an *EmailError.
func (s *ReminderService) SendManual(ctx context.Context, in ManualReminderInput) (*models.ManualReminder, error) {
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	in.Name = strings.TrimSpace(in.Name)
	if err := ValidateStruct(in); err != nil {
		return nil, err
	}
	return s.send(ctx, in, models.ReminderSourceManual, "")
}

func (s *ReminderService) send(ctx context.Context, in ManualReminderInput, source models.ReminderSource, batchID string) (*models.ManualReminder, error) {
	p := s.props(in)
	subject := p.ResolvedSubject()

	reminder := models.ManualReminder{
		Email:     in.Email,
		Name:      in.Name,
		RequestID: in.RequestID,
		Purpose:   in.Purpose,
		Price:     in.Price,
		Subject:   subject,
		Message:   p.ResolvedMessage(),
		Status:    models.ReminderStatusPending,
		Source:    source,
		BatchID:   batchID,
	}
	if err := s.db.WithContext(ctx).Create(&reminder).Error; err != nil {
		return nil, fmt.Errorf("create reminder record: %w", err)
	}

	sendErr := s.deliver(ctx, in.Email, subject, p)

	now := s.now()
	reminder.SentAt = &now
	if sendErr != nil {
		reminder.Status = models.ReminderStatusFailed
		reminder.Error = sendErr.Error()
	} else {
		reminder.Status = models.ReminderStatusSent
	}

	// the send already happened, so the status write must not be cut short by ctx
	err := s.db.WithContext(context.WithoutCancel(ctx)).Model(&reminder).Updates(map[string]interface{}{
		"status":  reminder.Status,
		"error":   reminder.Error,
		"sent_at": reminder.SentAt,
	}).Error
	if err != nil {
		s.log.WithError(err).WithField("reminder_id", reminder.ID).Error("failed to finalize reminder record")
	}

	entry := s.log.WithFields(logrus.Fields{
		"reminder_id": reminder.ID,
		"email":       reminder.Email,
		"source":      source,
		"status":      reminder.Status,
	})
	if sendErr != nil {
		entry.WithError(sendErr).Warn("reminder email failed")
		return &reminder, sendErr
	}
	entry.Info("reminder email sent")
	return &reminder, nil
}

func (s *ReminderService) deliver(ctx context.Context, to, subject string, p emails.ReminderProps) error {
	html, err := emails.Render(ctx, emails.Reminder(p))
	if err != nil {
		return &EmailError{To: to, Err: fmt.Errorf("render: %w", err)}
	}
	if err := s.mailer.Send(ctx, Email{To: to, Subject: subject, HTML: html, Text: emails.ReminderText(p)}); err != nil {
		var eErr *EmailError
		if errors.As(err, &eErr) {
			return err
		}
		return &EmailError{To: to, Err: err}
	}
	return nil
}

// BatchReminderInput targets registered users and typed addresses with one message
type BatchReminderInput struct {
	UserIDs []uint   `json:"user_ids"`
	Emails  []string `json:"emails"`
	Subject string   `json:"subject" validate:"max=255"`
	Message string   `json:"message"`
}

type BatchFailure struct {
	Email string `json:"email"`
	Error string `json:"error"`
}

type BatchResult struct {
	BatchID  string         `json:"batch_id"`
	Total    int            `json:"total"`
	Sent     int            `json:"sent"`
	Failed   int            `json:"failed"`
	Failures []BatchFailure `json:"failures,omitempty"`
}

// Summary is the line shown to the admin after a batch
func (r *BatchResult) Summary() string {
	return fmt.Sprintf("تم الإرسال إلى %d، فشل %d / sent to %d, failed %d", r.Sent, r.Failed, r.Sent, r.Failed)
}

func (r *BatchResult) fail(email string, err error) {
	r.Failed++
	r.Failures = append(r.Failures, BatchFailure{Email: email, Error: err.Error()})
}

// SendBatch sends sequentially and reports partial failures instead of aborting.
// Failed sends are not retried.
func (s *ReminderService) SendBatch(ctx context.Context, in BatchReminderInput) (*BatchResult, error) {
	if err := ValidateStruct(in); err != nil {
		return nil, err
	}

	var recipients []ManualReminderInput
	seen := make(map[string]bool)
	add := func(email, name string) {
		email = strings.ToLower(strings.TrimSpace(email))
		if email == "" || seen[email] {
			return
		}
		seen[email] = true
		recipients = append(recipients, ManualReminderInput{Email: email, Name: name, Subject: in.Subject, Message: in.Message})
	}

	if len(in.UserIDs) > 0 {
		var users []models.User
		if err := s.db.WithContext(ctx).Where("id IN ?", in.UserIDs).Order("id asc").Find(&users).Error; err != nil {
			return nil, err
		}
		for _, u := range users {
			add(u.Email, u.Name)
		}
	}
	for _, e := range in.Emails {
		name := strings.TrimSpace(e)
		if at := strings.Index(name, "@"); at > 0 {
			name = name[:at]
		}
		add(e, name)
	}

	if len(recipients) == 0 {
		return nil, newValidationError("recipients", "يرجى اختيار مستلم واحد على الأقل / at least one recipient is required")
	}

	result := &BatchResult{BatchID: uuid.NewString(), Total: len(recipients)}
	for _, r := range recipients {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		if err := ValidateStruct(r); err != nil {
			result.fail(r.Email, err)
			continue
		}
		if _, err := s.send(ctx, r, models.ReminderSourceManual, result.BatchID); err != nil {
			result.fail(r.Email, err)
			continue
		}
		result.Sent++
	}

	s.log.WithFields(logrus.Fields{
		"batch_id": result.BatchID,
		"total":    result.Total,
		"sent":     result.Sent,
		"failed":   result.Failed,
	}).Info("reminder batch finished")

	return result, nil
}

// SendScheduled reminds every pending unpaid request older than minAge that
// has not been reminded within ReminderCooldown.
func (s *ReminderService) SendScheduled(ctx context.Context, minAge time.Duration) (*BatchResult, error) {
	now := s.now()

	var requests []models.Request
	err := s.db.WithContext(ctx).
		Where("status = ? AND payment_status = ? AND created_at <= ? AND email <> ''",
			models.RequestStatusPending, models.PaymentStatusUnpaid, now.Add(-minAge)).
		Where("NOT EXISTS (SELECT 1 FROM manual_reminders mr WHERE mr.request_id = requests.id AND mr.created_at > ? AND mr.deleted_at IS NULL)",
			now.Add(-ReminderCooldown)).
		Order("id asc").
		Find(&requests).Error
	if err != nil {
		return nil, err
	}

	result := &BatchResult{BatchID: uuid.NewString(), Total: len(requests)}
	for i := range requests {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		req := &requests[i]
		id := req.ID
		purpose := req.Purpose
		price := req.Payable()

		_, err := s.send(ctx, ManualReminderInput{
			Email:     req.Email,
			Name:      req.ApplicantName,
			RequestID: &id,
			Purpose:   &purpose,
			Price:     &price,
		}, models.ReminderSourceScheduled, result.BatchID)
		if err != nil {
			result.fail(req.Email, err)
			continue
		}
		result.Sent++
	}
	return result, nil
}

// ReminderFilter narrows the reminder audit log
type ReminderFilter struct {
	Status    models.ReminderStatus
	RequestID *uint
	Page      int
}

type ReminderPage struct {
	Items      []models.ManualReminder `json:"items"`
	Total      int64                   `json:"total"`
	Page       int                     `json:"page"`
	PageSize   int                     `json:"page_size"`
	TotalPages int                     `json:"total_pages"`
}

func (s *ReminderService) List(ctx context.Context, f ReminderFilter) (*ReminderPage, error) {
	if f.Page < 1 {
		f.Page = 1
	}
	q := s.db.WithContext(ctx).Model(&models.ManualReminder{})
	if f.Status != "" {
		q = q.Where("status = ?", f.Status)
	}
	if f.RequestID != nil {
		q = q.Where("request_id = ?", *f.RequestID)
	}

	var total int64
	if err := q.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return nil, err
	}
	var items []models.ManualReminder
	if err := q.Order("id desc").Limit(AdminPageSize).Offset((f.Page - 1) * AdminPageSize).Find(&items).Error; err != nil {
		return nil, err
	}
	return &ReminderPage{
		Items:      items,
		Total:      total,
		Page:       f.Page,
		PageSize:   AdminPageSize,
		TotalPages: int(math.Ceil(float64(total) / float64(AdminPageSize))),
	}, nil
}
