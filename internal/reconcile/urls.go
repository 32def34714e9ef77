package reconcile

import (
	"net/url"
	"strconv"
)

const (
	SuccessPath = "/payment/success"
	FailedPath  = "/payment/failed"
)

// Summary is the display-only order summary carried to the success page
type Summary struct {
	Name           string
	Purpose        string
	Recipient      string
	Price          float64
	DiscountAmount float64
	FinalPrice     float64
	CouponCode     string
}

func formatAmount(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// SuccessURL links to the success page, with the summary when one is known
func SuccessURL(orderNumber string, summary *Summary) string {
	q := url.Values{}
	q.Set("orderNumber", orderNumber)
	if summary != nil {
		q.Set("name", summary.Name)
		q.Set("purpose", summary.Purpose)
		q.Set("recipient", summary.Recipient)
		q.Set("price", formatAmount(summary.Price))
		q.Set("finalPrice", formatAmount(summary.FinalPrice))
		if summary.DiscountAmount > 0 {
			q.Set("discount", formatAmount(summary.DiscountAmount))
		}
		if summary.CouponCode != "" {
			q.Set("coupon", summary.CouponCode)
		}
	}
	return SuccessPath + "?" + q.Encode()
}

func FailureURL(orderNumber, reason string) string {
	q := url.Values{}
	q.Set("orderNumber", orderNumber)
	q.Set("reason", reason)
	return FailedPath + "?" + q.Encode()
}

// SummaryFromQuery reads back what SuccessURL wrote
func SummaryFromQuery(q url.Values) *Summary {
	if q.Get("name") == "" && q.Get("finalPrice") == "" {
		return nil
	}
	price, _ := strconv.ParseFloat(q.Get("price"), 64)
	final, _ := strconv.ParseFloat(q.Get("finalPrice"), 64)
	discount, _ := strconv.ParseFloat(q.Get("discount"), 64)
	return &Summary{
		Name:           q.Get("name"),
		Purpose:        q.Get("purpose"),
		Recipient:      q.Get("recipient"),
		Price:          price,
		DiscountAmount: discount,
		FinalPrice:     final,
		CouponCode:     q.Get("coupon"),
	}
}
