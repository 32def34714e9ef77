package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/midtrans/midtrans-go"
	"github.com/midtrans/midtrans-go/snap"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"m3roodi/internal/models"
)

type PaymentService struct {
	db        *gorm.DB
	gateway   Gateway
	requests  *RequestService
	coupons   *CouponService
	checkout  *CheckoutStore
	log       *logrus.Logger
	appURL    string
	serverKey string
}

func NewPaymentService(db *gorm.DB, gateway Gateway, requests *RequestService, coupons *CouponService, checkout *CheckoutStore, log *logrus.Logger, appURL, serverKey string) *PaymentService {
	return &PaymentService{
		db:        db,
		gateway:   gateway,
		requests:  requests,
		coupons:   coupons,
		checkout:  checkout,
		log:       log,
		appURL:    strings.TrimRight(appURL, "/"),
		serverKey: serverKey,
	}
}

// ownedRequest loads the request only when email matches the one it was
// submitted with. A mismatch looks exactly like an unknown request.
func (s *PaymentService) ownedRequest(ctx context.Context, requestID uint, email string) (*models.Request, error) {
	email = strings.TrimSpace(email)
	if email == "" {
		return nil, newValidationError("email", "required")
	}
	req, err := s.requests.Get(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if !strings.EqualFold(email, req.Email) {
		return nil, ErrRequestNotFound
	}
	return req, nil
}

// ActiveSession is CheckActiveSession for a customer who proves the order is theirs
func (s *PaymentService) ActiveSession(ctx context.Context, requestID uint, email string) (*models.PaymentSession, error) {
	req, err := s.ownedRequest(ctx, requestID, email)
	if err != nil {
		return nil, err
	}
	return s.CheckActiveSession(ctx, req.ID)
}

// CheckActiveSession returns the latest active session for the request, or nil
func (s *PaymentService) CheckActiveSession(ctx context.Context, requestID uint) (*models.PaymentSession, error) {
	var existingSession models.PaymentSession
	err := s.db.WithContext(ctx).
		Where("request_id = ? AND is_active = ?", requestID, true).
		Order("created_at desc").Order("id desc").
		First(&existingSession).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &existingSession, nil
}

func (s *PaymentService) deactivate(ctx context.Context, session *models.PaymentSession) {
	session.IsActive = false
	if err := s.db.WithContext(ctx).Model(session).Update("is_active", false).Error; err != nil {
		s.log.WithError(err).WithField("order_id", session.OrderID).Warn("failed to deactivate payment session")
	}
}

// CreatePaymentInput starts a hosted checkout for a stored request.
// Email must be the address the request was submitted with.
type CreatePaymentInput struct {
	RequestID     uint   `json:"request_id" validate:"required"`
	Email         string `json:"email" validate:"required,email"`
	CouponCode    string `json:"coupon_code"`
	CustomerName  string `json:"customer_name"`
	CustomerEmail string `json:"customer_email"`
	ForceNew      bool   `json:"force_new"`
}

type CreatePaymentResult struct {
	OrderNumber    string  `json:"order_number"`
	GatewayOrderID string  `json:"gateway_order_id"`
	Token          string  `json:"token"`
	RedirectURL    string  `json:"redirect_url"`
	Amount         float64 `json:"amount"`
	DiscountAmount float64 `json:"discount_amount"`
	IsExisting     bool    `json:"is_existing"`
}

// gatewayOrderID names checkout attempts RF42, RF42-2, RF42-3... since the
// gateway refuses a reused order id.
func gatewayOrderID(req *models.Request, attempt int) string {
	if attempt <= 1 {
		return req.OrderNumber()
	}
	return fmt.Sprintf("%s-%d", req.OrderNumber(), attempt)
}

// applyCoupon validates code against the base price and stores the result on the request
func (s *PaymentService) applyCoupon(ctx context.Context, req *models.Request, code string) error {
	res, err := s.coupons.Validate(ctx, code, req.Price)
	if err != nil {
		return err
	}
	stored := res.Coupon.Code
	req.CouponCode = &stored
	req.DiscountAmount = res.DiscountAmount
	req.FinalPrice = res.FinalAmount

	return s.db.WithContext(ctx).Model(&models.Request{}).Where("id = ?", req.ID).Updates(map[string]interface{}{
		"coupon_code":     stored,
		"discount_amount": res.DiscountAmount,
		"final_price":     res.FinalAmount,
	}).Error
}

// CreatePayment creates or resumes a gateway checkout. The amount always comes
// from the stored request; payment status is left untouched.
func (s *PaymentService) CreatePayment(ctx context.Context, in CreatePaymentInput) (*CreatePaymentResult, error) {
	req, err := s.ownedRequest(ctx, in.RequestID, in.Email)
	if err != nil {
		return nil, err
	}
	if req.IsPaid() {
		return nil, ErrAlreadyPaid
	}
	if req.Status == models.RequestStatusCancelled {
		return nil, ErrRequestCancelled
	}

	if code := NormalizeCode(in.CouponCode); code != "" {
		if err := s.applyCoupon(ctx, req, code); err != nil {
			return nil, err
		}
	}

	amount := math.Round(req.Payable())
	if amount <= 0 {
		return nil, &GatewayError{Kind: GatewayErrorBadAmount, Err: fmt.Errorf("amount %.2f", req.Payable())}
	}

	name := strings.TrimSpace(in.CustomerName)
	if name == "" {
		name = req.ApplicantName
	}
	email := strings.TrimSpace(in.CustomerEmail)
	if email == "" {
		email = req.Email
	}
	if name == "" || email == "" {
		return nil, &GatewayError{Kind: GatewayErrorIncompleteCustomer}
	}

	existingSession, err := s.CheckActiveSession(ctx, req.ID)
	if err != nil {
		return nil, err
	}
	if existingSession != nil {
		result, err := s.resumeSession(ctx, req, existingSession, amount, in.ForceNew)
		if err != nil || result != nil {
			return result, err
		}
	}

	var attempts int64
	if err := s.db.WithContext(ctx).Unscoped().Model(&models.PaymentSession{}).Where("request_id = ?", req.ID).Count(&attempts).Error; err != nil {
		return nil, err
	}
	attempt := int(attempts) + 1
	orderID := gatewayOrderID(req, attempt)

	snapReq := &snap.Request{
		TransactionDetails: midtrans.TransactionDetails{
			OrderID:  orderID,
			GrossAmt: int64(amount),
		},
		CustomerDetail: &midtrans.CustomerDetails{
			FName: name,
			Email: email,
			Phone: req.Phone,
		},
		Items: &[]midtrans.ItemDetails{
			{
				ID:    req.OrderNumber(),
				Name:  truncate(req.Purpose, 50),
				Price: int64(amount),
				Qty:   1,
			},
		},
		Callbacks: &snap.Callbacks{
			Finish: s.appURL + "/payment-redirect?orderNumber=" + req.OrderNumber(),
		},
	}

	resp, err := s.gateway.CreateTransaction(ctx, snapReq)
	if err != nil {
		var gErr *GatewayError
		if !errors.As(err, &gErr) {
			gErr = &GatewayError{Kind: GatewayErrorTechnical, Err: err}
		}
		s.log.WithError(err).WithFields(logrus.Fields{
			"order_id": orderID,
			"kind":     gErr.Kind,
		}).Error("payment gateway rejected checkout")
		return nil, gErr
	}

	reqBytes, _ := json.Marshal(snapReq)
	respBytes, _ := json.Marshal(resp)

	session := models.PaymentSession{
		RequestID:        req.ID,
		Attempt:          attempt,
		PaymentGateway:   models.PaymentGatewayMidtrans,
		OrderID:          orderID,
		Amount:           amount,
		RedirectURL:      resp.RedirectURL,
		IsActive:         true,
		RequestMetadata:  reqBytes,
		ResponseMetadata: respBytes,
	}
	if err := s.db.WithContext(ctx).Create(&session).Error; err != nil {
		return nil, fmt.Errorf("store payment session: %w", err)
	}
	if err := s.requests.SetPaymentMethod(ctx, req.ID, models.PaymentMethodGateway); err != nil {
		return nil, err
	}

	s.saveSnapshot(ctx, req)

	s.log.WithFields(logrus.Fields{
		"request_id": req.ID,
		"order_id":   orderID,
		"amount":     amount,
	}).Info("payment session created")

	return &CreatePaymentResult{
		OrderNumber:    req.OrderNumber(),
		GatewayOrderID: orderID,
		Token:          resp.Token,
		RedirectURL:    resp.RedirectURL,
		Amount:         amount,
		DiscountAmount: req.DiscountAmount,
	}, nil
}

// resumeSession decides what to do with an active session. A nil result with
// a nil error means a new session must be created.
func (s *PaymentService) resumeSession(ctx context.Context, req *models.Request, session *models.PaymentSession, amount float64, forceNew bool) (*CreatePaymentResult, error) {
	tx, err := s.gateway.CheckTransaction(ctx, session.OrderID)
	if err != nil {
		// unopened checkouts are unknown to the status API
		s.deactivate(ctx, session)
		return nil, nil
	}

	switch tx.Status {
	case GatewayStatusCaptured:
		if _, err := s.requests.ConfirmPayment(ctx, ConfirmPaymentInput{
			RequestID: req.ID,
			Source:    models.PaymentEventSourceReconciler,
			Reference: session.OrderID,
			Method:    models.PaymentMethodGateway,
		}); err != nil {
			return nil, err
		}
		s.deactivate(ctx, session)
		return nil, ErrAlreadyPaid
	case GatewayStatusFailed:
		s.deactivate(ctx, session)
		return nil, nil
	}

	if forceNew || session.Amount != amount || session.RedirectURL == "" {
		if err := s.gateway.CancelTransaction(ctx, session.OrderID); err != nil {
			s.log.WithError(err).WithField("order_id", session.OrderID).Warn("failed to cancel pending checkout")
		}
		s.deactivate(ctx, session)
		return nil, nil
	}

	var resp snap.Response
	if err := json.Unmarshal(session.ResponseMetadata, &resp); err != nil {
		s.deactivate(ctx, session)
		return nil, nil
	}

	s.saveSnapshot(ctx, req)
	return &CreatePaymentResult{
		OrderNumber:    req.OrderNumber(),
		GatewayOrderID: session.OrderID,
		Token:          resp.Token,
		RedirectURL:    session.RedirectURL,
		Amount:         amount,
		DiscountAmount: req.DiscountAmount,
		IsExisting:     true,
	}, nil
}

func (s *PaymentService) saveSnapshot(ctx context.Context, req *models.Request) {
	if s.checkout == nil {
		return
	}
	summary := CheckoutSnapshot{
		OrderNumber:    req.OrderNumber(),
		RequestID:      req.ID,
		Name:           req.ApplicantName,
		Email:          req.Email,
		Purpose:        req.Purpose,
		Recipient:      req.Recipient,
		Price:          req.Price,
		DiscountAmount: req.DiscountAmount,
		FinalPrice:     req.Payable(),
	}
	if req.CouponCode != nil {
		summary.CouponCode = *req.CouponCode
	}
	if err := s.checkout.Save(ctx, summary); err != nil {
		s.log.WithError(err).WithField("order", summary.OrderNumber).Warn("failed to store checkout snapshot")
	}
}

// CheckoutSnapshot returns the display summary for orderNumber, nil once expired
func (s *PaymentService) CheckoutSnapshot(ctx context.Context, orderNumber string) (*CheckoutSnapshot, error) {
	if s.checkout == nil {
		return nil, nil
	}
	return s.checkout.Load(ctx, orderNumber)
}

// VerifyStatus is what the verify endpoint reports
type VerifyStatus string

const (
	VerifyStatusCompleted VerifyStatus = "COMPLETED"
	VerifyStatusPending   VerifyStatus = "PENDING"
	VerifyStatusFailed    VerifyStatus = "FAILED"
)

type VerifyResult struct {
	OrderNumber   string               `json:"order_number"`
	Status        VerifyStatus         `json:"status"`
	PaymentStatus models.PaymentStatus `json:"payment_status"`
	RequestStatus models.RequestStatus `json:"request_status"`
	Amount        float64              `json:"amount"`
}

// VerifyPayment reports the payment state of an order without changing it.
// A paid request is COMPLETED; otherwise the gateway's view of the latest
// session is returned.
func (s *PaymentService) VerifyPayment(ctx context.Context, orderNumber, email string) (*VerifyResult, error) {
	req, err := s.requests.GetByOrderNumber(ctx, orderNumber)
	if err != nil {
		return nil, err
	}
	if email = strings.TrimSpace(email); email != "" && !strings.EqualFold(email, req.Email) {
		return nil, ErrRequestNotFound
	}

	result := &VerifyResult{
		OrderNumber:   req.OrderNumber(),
		Status:        VerifyStatusPending,
		PaymentStatus: req.PaymentStatus,
		RequestStatus: req.Status,
		Amount:        req.Payable(),
	}
	if req.IsPaid() {
		result.Status = VerifyStatusCompleted
		return result, nil
	}

	var session models.PaymentSession
	err = s.db.WithContext(ctx).
		Where("request_id = ?", req.ID).
		Order("is_active desc").Order("id desc").
		First(&session).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return result, nil
		}
		return nil, err
	}

	tx, err := s.gateway.CheckTransaction(ctx, session.OrderID)
	if err != nil {
		return nil, err
	}
	switch tx.Status {
	case GatewayStatusCaptured:
		result.Status = VerifyStatusCompleted
	case GatewayStatusFailed:
		result.Status = VerifyStatusFailed
	}
	return result, nil
}

// MidtransNotification is the HTTP notification body Midtrans posts
type MidtransNotification struct {
	OrderID           string `json:"order_id"`
	TransactionID     string `json:"transaction_id"`
	TransactionStatus string `json:"transaction_status"`
	FraudStatus       string `json:"fraud_status"`
	StatusCode        string `json:"status_code"`
	GrossAmount       string `json:"gross_amount"`
	SignatureKey      string `json:"signature_key"`
	PaymentType       string `json:"payment_type"`
}

type NotificationResult struct {
	OrderID string        `json:"order_id"`
	Status  GatewayStatus `json:"status"`
	Applied bool          `json:"applied"`
}

// HandleNotification records a gateway notification and confirms payment on capture.
// Any other status leaves the request untouched.
func (s *PaymentService) HandleNotification(ctx context.Context, payload []byte) (*NotificationResult, error) {
	var n MidtransNotification
	if err := json.Unmarshal(payload, &n); err != nil {
		return nil, newValidationError("body", "invalid notification payload")
	}
	if n.OrderID == "" {
		return nil, newValidationError("order_id", "required")
	}

	// without a server key no notification can be authenticated
	sigValid := VerifyMidtransSignature(s.serverKey, n.OrderID, n.StatusCode, n.GrossAmount, n.SignatureKey)

	history := models.PaymentCallbackHistory{
		PaymentGateway: models.PaymentGatewayMidtrans,
		OrderID:        n.OrderID,
		Status:         n.TransactionStatus,
		SignatureValid: sigValid,
		Metadata:       json.RawMessage(payload),
	}
	if err := s.db.WithContext(ctx).Create(&history).Error; err != nil {
		s.log.WithError(err).WithField("order_id", n.OrderID).Error("failed to store payment callback")
	}

	if !sigValid {
		s.log.WithField("order_id", n.OrderID).Warn("rejected notification with bad signature")
		return nil, ErrInvalidSignature
	}

	requestID, err := models.ParseOrderNumber(n.OrderID)
	if err != nil {
		return nil, ErrRequestNotFound
	}

	status := NormalizeMidtransStatus(n.TransactionStatus, n.FraudStatus)
	result := &NotificationResult{OrderID: n.OrderID, Status: status}

	s.log.WithFields(logrus.Fields{
		"order_id":           n.OrderID,
		"transaction_status": n.TransactionStatus,
		"fraud_status":       n.FraudStatus,
		"status":             status,
	}).Info("payment notification received")

	switch status {
	case GatewayStatusCaptured:
		res, err := s.requests.ConfirmPayment(ctx, ConfirmPaymentInput{
			RequestID: requestID,
			Source:    models.PaymentEventSourceWebhook,
			Reference: n.OrderID,
			Method:    models.PaymentMethodGateway,
		})
		if err != nil {
			return nil, err
		}
		result.Applied = res.Applied
		s.closeSession(ctx, n.OrderID)
	case GatewayStatusFailed:
		s.closeSession(ctx, n.OrderID)
	}

	return result, nil
}

func (s *PaymentService) closeSession(ctx context.Context, orderID string) {
	err := s.db.WithContext(ctx).Model(&models.PaymentSession{}).
		Where("order_id = ? AND is_active = ?", orderID, true).
		Update("is_active", false).Error
	if err != nil {
		s.log.WithError(err).WithField("order_id", orderID).Warn("failed to close payment session")
	}
}

// ReconcileSummary counts the outcome of one reconciliation sweep
type ReconcileSummary struct {
	Checked   int `json:"checked"`
	Confirmed int `json:"confirmed"`
	Failed    int `json:"failed"`
	Expired   int `json:"expired"`
	Errors    int `json:"errors"`
}

// SessionMaxAge is how long an unconfirmed checkout is polled before it is dropped
const SessionMaxAge = 48 * time.Hour

// ReconcilePending re-queries the gateway for every active session of an unpaid
// request and confirms the ones the gateway reports as captured.
func (s *PaymentService) ReconcilePending(ctx context.Context) (*ReconcileSummary, error) {
	var sessions []models.PaymentSession
	err := s.db.WithContext(ctx).
		Joins("JOIN requests ON requests.id = payment_sessions.request_id AND requests.deleted_at IS NULL").
		Where("payment_sessions.is_active = ? AND requests.payment_status <> ?", true, models.PaymentStatusComplete).
		Order("payment_sessions.id asc").
		Find(&sessions).Error
	if err != nil {
		return nil, err
	}

	summary := &ReconcileSummary{}
	for i := range sessions {
		if err := ctx.Err(); err != nil {
			return summary, err
		}
		session := &sessions[i]
		summary.Checked++

		tx, err := s.gateway.CheckTransaction(ctx, session.OrderID)
		if err != nil {
			summary.Errors++
			if time.Since(session.CreatedAt) > SessionMaxAge {
				s.deactivate(ctx, session)
				summary.Expired++
			}
			continue
		}

		switch tx.Status {
		case GatewayStatusCaptured:
			if _, err := s.requests.ConfirmPayment(ctx, ConfirmPaymentInput{
				RequestID: session.RequestID,
				Source:    models.PaymentEventSourceReconciler,
				Reference: session.OrderID,
				Method:    models.PaymentMethodGateway,
			}); err != nil {
				s.log.WithError(err).WithField("order_id", session.OrderID).Error("reconcile confirm failed")
				summary.Errors++
				continue
			}
			s.deactivate(ctx, session)
			summary.Confirmed++
		case GatewayStatusFailed:
			s.deactivate(ctx, session)
			summary.Failed++
		default:
			if time.Since(session.CreatedAt) > SessionMaxAge {
				s.deactivate(ctx, session)
				summary.Expired++
			}
		}
	}

	return summary, nil
}

func truncate(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max])
}
