package models

import (
	"math"
	"time"

	"gorm.io/gorm"
)

type DiscountType string

const (
	DiscountTypePercentage  DiscountType = "PERCENTAGE"
	DiscountTypeFixedAmount DiscountType = "FIXED_AMOUNT"
)

// Coupon is a discount code with a validity window
type Coupon struct {
	ID        uint           `gorm:"primarykey" json:"id"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`

	Code          string       `gorm:"type:varchar(50);uniqueIndex;not null" json:"code"`
	Description   string       `gorm:"type:text" json:"description"`
	DiscountType  DiscountType `gorm:"type:varchar(20);not null" json:"discount_type"`
	DiscountValue float64      `gorm:"type:decimal(15,2);not null" json:"discount_value"`
	IsActive      bool         `json:"is_active"`
	ValidFrom     time.Time    `json:"valid_from"`
	ValidUntil    time.Time    `json:"valid_until"`
}

// InWindow reports whether now falls within [ValidFrom, ValidUntil]
func (c Coupon) InWindow(now time.Time) bool {
	return !now.Before(c.ValidFrom) && !now.After(c.ValidUntil)
}

// Discount computes the discount for amount in whole riyals, never exceeding
// amount. Halves round up in the customer's favour.
func (c Coupon) Discount(amount float64) float64 {
	if amount <= 0 {
		return 0
	}

	var discount float64
	switch c.DiscountType {
	case DiscountTypePercentage:
		discount = amount * c.DiscountValue / 100
	case DiscountTypeFixedAmount:
		discount = c.DiscountValue
	}

	discount = math.Round(discount)
	if discount < 0 {
		return 0
	}
	if discount > amount {
		return amount
	}
	return discount
}
