package services

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/url"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"m3roodi/internal/models"
	"m3roodi/internal/pricing"
)

// AdminPageSize is the number of requests per admin list page
const AdminPageSize = 20

type RequestService struct {
	db  *gorm.DB
	log *logrus.Logger
	now func() time.Time
}

func NewRequestService(db *gorm.DB, log *logrus.Logger) *RequestService {
	return &RequestService{db: db, log: log, now: time.Now}
}

// SubmitRequestInput is the customer request form
type SubmitRequestInput struct {
	ApplicantName     string `json:"applicant_name" validate:"required,max=255"`
	Phone             string `json:"phone" validate:"required,max=50"`
	Email             string `json:"email" validate:"required,email"`
	IDNumber          string `json:"id_number" validate:"max=50"`
	Recipient         string `json:"recipient" validate:"required,max=255"`
	Purpose           string `json:"purpose" validate:"required,max=255"`
	Description       string `json:"description"`
	VoiceRecordingURL string `json:"voice_recording_url"`
	Attachments       string `json:"attachments"`

	UserID *uint `json:"-"`
}

func (in *SubmitRequestInput) normalize() {
	in.ApplicantName = strings.TrimSpace(in.ApplicantName)
	in.Phone = strings.TrimSpace(in.Phone)
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	in.IDNumber = strings.TrimSpace(in.IDNumber)
	in.Recipient = strings.TrimSpace(in.Recipient)
	in.Purpose = strings.TrimSpace(in.Purpose)
	in.Description = strings.TrimSpace(in.Description)
	in.VoiceRecordingURL = strings.TrimSpace(in.VoiceRecordingURL)
	in.Attachments = strings.TrimSpace(in.Attachments)
}

// checkVoiceRecordingURL accepts only URLs the server can fetch later.
// Browser-local references like blob: and data: die with the tab.
func checkVoiceRecordingURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return newValidationError("voice_recording_url", "يجب رفع التسجيل الصوتي قبل الإرسال / voice recording must be an uploaded http(s) URL")
	}
	return nil
}

func optionalString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// Submit validates and stores a new unpaid request. The price comes from the
// purpose catalogue at submission time.
func (s *RequestService) Submit(ctx context.Context, in SubmitRequestInput) (*models.Request, error) {
	in.normalize()
	if err := ValidateStruct(in); err != nil {
		return nil, err
	}
	if in.Description == "" && in.VoiceRecordingURL == "" {
		return nil, newValidationError("description", "يرجى كتابة وصف أو إرفاق تسجيل صوتي / description or voice recording is required")
	}
	if in.VoiceRecordingURL != "" {
		if err := checkVoiceRecordingURL(in.VoiceRecordingURL); err != nil {
			return nil, err
		}
	}

	price := float64(pricing.Lookup(in.Purpose))
	req := models.Request{
		UserID:            in.UserID,
		ApplicantName:     in.ApplicantName,
		Phone:             in.Phone,
		Email:             in.Email,
		IDNumber:          optionalString(in.IDNumber),
		Recipient:         in.Recipient,
		Purpose:           in.Purpose,
		Description:       optionalString(in.Description),
		VoiceRecordingURL: optionalString(in.VoiceRecordingURL),
		Attachments:       optionalString(in.Attachments),
		Price:             price,
		FinalPrice:        price,
		Status:            models.RequestStatusPending,
		PaymentStatus:     models.PaymentStatusUnpaid,
	}

	if err := s.db.WithContext(ctx).Create(&req).Error; err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	s.log.WithFields(logrus.Fields{
		"request_id": req.ID,
		"order":      req.OrderNumber(),
		"purpose":    req.Purpose,
		"price":      req.Price,
	}).Info("request submitted")

	return &req, nil
}

func (s *RequestService) Get(ctx context.Context, id uint) (*models.Request, error) {
	var req models.Request
	if err := s.db.WithContext(ctx).Preload("User").First(&req, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrRequestNotFound
		}
		return nil, err
	}
	return &req, nil
}

// GetByOrderNumber resolves "RF42" or a gateway attempt id like "RF42-2"
func (s *RequestService) GetByOrderNumber(ctx context.Context, orderNumber string) (*models.Request, error) {
	id, err := models.ParseOrderNumber(orderNumber)
	if err != nil {
		return nil, ErrRequestNotFound
	}
	return s.Get(ctx, id)
}

// RequestFilter narrows the admin request list. Empty fields match everything.
type RequestFilter struct {
	Status  models.RequestStatus
	Purpose string
	Query   string
	Page    int
}

type RequestPage struct {
	Items      []models.Request `json:"items"`
	Total      int64            `json:"total"`
	Page       int              `json:"page"`
	PageSize   int              `json:"page_size"`
	TotalPages int              `json:"total_pages"`
}

func (s *RequestService) List(ctx context.Context, f RequestFilter) (*RequestPage, error) {
	if f.Page < 1 {
		f.Page = 1
	}

	q := s.db.WithContext(ctx).Model(&models.Request{})
	if f.Status != "" {
		q = q.Where("status = ?", f.Status)
	}
	if p := strings.TrimSpace(f.Purpose); p != "" {
		q = q.Where("purpose = ?", p)
	}
	if term := strings.ToLower(strings.TrimSpace(f.Query)); term != "" {
		like := "%" + term + "%"
		cond := s.db.Where("LOWER(applicant_name) LIKE ?", like).
			Or("LOWER(email) LIKE ?", like).
			Or("phone LIKE ?", like).
			Or("LOWER(recipient) LIKE ?", like)
		if id, err := models.ParseOrderNumber(term); err == nil {
			cond = cond.Or("id = ?", id)
		}
		q = q.Where(cond)
	}

	var total int64
	if err := q.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return nil, err
	}

	var items []models.Request
	err := q.Preload("User").
		Order("created_at desc").
		Order("id desc").
		Limit(AdminPageSize).
		Offset((f.Page - 1) * AdminPageSize).
		Find(&items).Error
	if err != nil {
		return nil, err
	}

	return &RequestPage{
		Items:      items,
		Total:      total,
		Page:       f.Page,
		PageSize:   AdminPageSize,
		TotalPages: int(math.Ceil(float64(total) / float64(AdminPageSize))),
	}, nil
}

// RequestUpdateInput holds the admin-editable core fields; nil fields are left unchanged
type RequestUpdateInput struct {
	ApplicantName *string  `json:"applicant_name" validate:"omitempty,max=255"`
	Phone         *string  `json:"phone" validate:"omitempty,max=50"`
	Email         *string  `json:"email" validate:"omitempty,email"`
	IDNumber      *string  `json:"id_number" validate:"omitempty,max=50"`
	Recipient     *string  `json:"recipient" validate:"omitempty,max=255"`
	Purpose       *string  `json:"purpose" validate:"omitempty,max=255"`
	Description   *string  `json:"description"`
	Attachments   *string  `json:"attachments"`
	Price         *float64 `json:"price" validate:"omitempty,gte=0"`
}

// Update edits core fields. Concurrent edits are last-write-wins.
func (s *RequestService) Update(ctx context.Context, id uint, in RequestUpdateInput) (*models.Request, error) {
	if err := ValidateStruct(in); err != nil {
		return nil, err
	}

	req, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	set := func(dst *string, src *string) {
		if src != nil {
			*dst = strings.TrimSpace(*src)
		}
	}
	set(&req.ApplicantName, in.ApplicantName)
	set(&req.Phone, in.Phone)
	set(&req.Email, in.Email)
	set(&req.Recipient, in.Recipient)
	set(&req.Purpose, in.Purpose)
	if in.IDNumber != nil {
		req.IDNumber = optionalString(strings.TrimSpace(*in.IDNumber))
	}
	if in.Description != nil {
		req.Description = optionalString(strings.TrimSpace(*in.Description))
	}
	if in.Attachments != nil {
		req.Attachments = optionalString(strings.TrimSpace(*in.Attachments))
	}

	if in.Price != nil && *in.Price != req.Price {
		if req.IsPaid() {
			return nil, newValidationError("price", "لا يمكن تعديل سعر طلب مدفوع / cannot change the price of a paid request")
		}
		req.Price = *in.Price
		req.FinalPrice = req.Price - req.DiscountAmount
		if req.FinalPrice < 0 {
			req.FinalPrice = 0
		}
	}

	req.User = nil
	if err := s.db.WithContext(ctx).Save(req).Error; err != nil {
		return nil, err
	}
	return req, nil
}

// UpdateStatus applies an admin status change through the transition table.
// Setting the current status again is a no-op.
func (s *RequestService) UpdateStatus(ctx context.Context, id uint, next models.RequestStatus) (*models.Request, error) {
	if !next.Valid() {
		return nil, newValidationError("status", "حالة غير معروفة / unknown status")
	}

	req, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if req.Status == next {
		return req, nil
	}
	if !req.Status.CanTransitionTo(next) {
		return nil, fmt.Errorf("%w: %s to %s", ErrInvalidTransition, req.Status, next)
	}

	res := s.db.WithContext(ctx).Model(&models.Request{}).
		Where("id = ? AND status = ?", id, req.Status).
		Update("status", next)
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, fmt.Errorf("%w: status changed concurrently", ErrInvalidTransition)
	}

	s.log.WithFields(logrus.Fields{
		"request_id": id,
		"from":       req.Status,
		"to":         next,
	}).Info("request status changed")

	req.Status = next
	return req, nil
}

// Delete permanently removes a request and its payment sessions
func (s *RequestService) Delete(ctx context.Context, id uint) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Unscoped().Delete(&models.Request{}, id)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrRequestNotFound
		}
		return tx.Unscoped().Where("request_id = ?", id).Delete(&models.PaymentSession{}).Error
	})
}

// SetPaymentMethod records how the customer intends to pay
func (s *RequestService) SetPaymentMethod(ctx context.Context, id uint, method models.PaymentMethod) error {
	res := s.db.WithContext(ctx).Model(&models.Request{}).Where("id = ?", id).Update("payment_method", method)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrRequestNotFound
	}
	return nil
}

// ConfirmPaymentInput identifies one confirmation attempt
type ConfirmPaymentInput struct {
	RequestID uint
	Source    models.PaymentEventSource
	Reference string
	Method    models.PaymentMethod
}

type ConfirmPaymentResult struct {
	Request *models.Request
	Applied bool
}

// ConfirmPayment is the only path that marks a request paid. It is idempotent:
// the update only matches rows not already complete, so a second confirmation
// changes nothing and is recorded as a no-op event.
func (s *RequestService) ConfirmPayment(ctx context.Context, in ConfirmPaymentInput) (*ConfirmPaymentResult, error) {
	var result ConfirmPaymentResult

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var req models.Request
		if err := tx.First(&req, in.RequestID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrRequestNotFound
			}
			return err
		}

		// the gateway charges whole riyals
		amount := math.Round(req.Payable())
		updates := map[string]interface{}{
			"total_paid":     amount,
			"payment_status": models.PaymentStatusComplete,
			"paid_at":        s.now(),
			"status": gorm.Expr("CASE WHEN status = ? THEN ? ELSE status END",
				models.RequestStatusPending, models.RequestStatusInProgress),
		}
		if in.Method != "" {
			updates["payment_method"] = in.Method
		}

		res := tx.Model(&models.Request{}).
			Where("id = ? AND payment_status <> ?", req.ID, models.PaymentStatusComplete).
			Updates(updates)
		if res.Error != nil {
			return res.Error
		}
		applied := res.RowsAffected > 0

		note := ""
		switch {
		case !applied:
			note = "already paid"
		case req.Status == models.RequestStatusCancelled:
			note = "payment received for a cancelled request"
		}

		event := models.PaymentEvent{
			RequestID: req.ID,
			Source:    in.Source,
			Reference: in.Reference,
			Amount:    amount,
			Applied:   applied,
			Note:      note,
		}
		if err := tx.Create(&event).Error; err != nil {
			return err
		}

		if err := tx.First(&req, req.ID).Error; err != nil {
			return err
		}
		result = ConfirmPaymentResult{Request: &req, Applied: applied}
		return nil
	})
	if err != nil {
		return nil, err
	}

	entry := s.log.WithFields(logrus.Fields{
		"request_id": in.RequestID,
		"source":     in.Source,
		"reference":  in.Reference,
		"applied":    result.Applied,
	})
	switch {
	case !result.Applied:
		entry.Info("payment confirmation ignored, already paid")
	case result.Request.Status == models.RequestStatusCancelled:
		entry.Warn("payment confirmed for a cancelled request")
	default:
		entry.Info("payment confirmed")
	}

	return &result, nil
}

// MarkAsPaid is the admin override used once a bank transfer is confirmed
func (s *RequestService) MarkAsPaid(ctx context.Context, id uint, adminRef string) (*ConfirmPaymentResult, error) {
	return s.ConfirmPayment(ctx, ConfirmPaymentInput{
		RequestID: id,
		Source:    models.PaymentEventSourceAdmin,
		Reference: adminRef,
		Method:    models.PaymentMethodBankTransfer,
	})
}

// PaymentEvents lists the confirmation audit trail of a request
func (s *RequestService) PaymentEvents(ctx context.Context, id uint) ([]models.PaymentEvent, error) {
	var events []models.PaymentEvent
	err := s.db.WithContext(ctx).Where("request_id = ?", id).Order("id asc").Find(&events).Error
	return events, err
}
