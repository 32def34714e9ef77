package services

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrRequestNotFound   = errors.New("request not found")
	ErrCouponNotFound    = errors.New("coupon not found")
	ErrCouponExpired     = errors.New("coupon expired")
	ErrCouponInactive    = errors.New("coupon inactive")
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrAlreadyPaid       = errors.New("payment already completed")
	ErrUserNotFound      = errors.New("user not found")
	ErrInvalidSignature  = errors.New("invalid notification signature")
	ErrRequestCancelled  = errors.New("request cancelled")
)

// ValidationError lists the fields that failed validation.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for field, msg := range e.Fields {
		parts = append(parts, field+": "+msg)
	}
	return "validation failed: " + strings.Join(parts, ", ")
}

func newValidationError(field, msg string) *ValidationError {
	return &ValidationError{Fields: map[string]string{field: msg}}
}

// GatewayErrorKind distinguishes payment initiation failures the customer
// can act on from ones they cannot.
type GatewayErrorKind string

const (
	GatewayErrorBadAmount          GatewayErrorKind = "bad_amount"
	GatewayErrorIncompleteCustomer GatewayErrorKind = "incomplete_customer"
	GatewayErrorNetwork            GatewayErrorKind = "network"
	GatewayErrorTechnical          GatewayErrorKind = "technical"
)

var gatewayMessages = map[GatewayErrorKind]string{
	GatewayErrorBadAmount:          "المبلغ غير صالح للدفع / Invalid payment amount",
	GatewayErrorIncompleteCustomer: "بيانات العميل غير مكتملة / Customer name and email are required",
	GatewayErrorNetwork:            "تعذر الاتصال ببوابة الدفع، حاول مرة أخرى / Could not reach the payment gateway, please retry",
	GatewayErrorTechnical:          "حدث خطأ تقني أثناء إنشاء عملية الدفع / A technical error occurred while creating the payment",
}

type GatewayError struct {
	Kind GatewayErrorKind
	Err  error
}

func (e *GatewayError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("gateway error (%s): %v", e.Kind, e.Err)
	}
	return fmt.Sprintf("gateway error (%s)", e.Kind)
}

func (e *GatewayError) Unwrap() error { return e.Err }

// Message is the bilingual text shown to the customer
func (e *GatewayError) Message() string {
	return gatewayMessages[e.Kind]
}

// EmailError wraps an SMTP delivery failure for one recipient.
type EmailError struct {
	To  string
	Err error
}

func (e *EmailError) Error() string {
	return fmt.Sprintf("failed to send email to %s: %v", e.To, e.Err)
}

func (e *EmailError) Unwrap() error { return e.Err }
