// Package pages holds the server-rendered customer pages.
package pages

//go:generate templ generate

import (
	"fmt"
	"net/url"

	"m3roodi/internal/reconcile"
)

type PaymentSuccessProps struct {
	OrderNumber  string
	Summary      *reconcile.Summary
	SupportEmail string
}

type PaymentFailedProps struct {
	OrderNumber  string
	Reason       string
	SupportEmail string
}

type ErrorPageProps struct {
	Code    int
	Title   string
	Message string
}

func sar(amount float64) string {
	if amount == float64(int64(amount)) {
		return fmt.Sprintf("%d ريال", int64(amount))
	}
	return fmt.Sprintf("%.2f ريال", amount)
}

func discountLabel(coupon string) string {
	if coupon == "" {
		return "الخصم / Discount"
	}
	return "الخصم / Discount (" + coupon + ")"
}

// retryURL re-enters the confirmation poll for the order
func retryURL(orderNumber string) string {
	return "/payment-redirect?" + url.Values{"orderNumber": {orderNumber}}.Encode()
}
