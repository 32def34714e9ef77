package models

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"gorm.io/gorm"
)

// RequestStatus is the lifecycle state of an order
type RequestStatus string

const (
	RequestStatusPending    RequestStatus = "PENDING"
	RequestStatusInProgress RequestStatus = "IN_PROGRESS"
	RequestStatusCompleted  RequestStatus = "COMPLETED"
	RequestStatusCancelled  RequestStatus = "CANCELLED"
)

var requestTransitions = map[RequestStatus][]RequestStatus{
	RequestStatusPending:    {RequestStatusInProgress, RequestStatusCancelled},
	RequestStatusInProgress: {RequestStatusCompleted, RequestStatusCancelled},
	RequestStatusCompleted:  {},
	RequestStatusCancelled:  {},
}

// Valid reports whether s is one of the known statuses
func (s RequestStatus) Valid() bool {
	_, ok := requestTransitions[s]
	return ok
}

// CanTransitionTo reports whether moving from s to next is allowed.
// Writing the same status again is always allowed and is a no-op.
func (s RequestStatus) CanTransitionTo(next RequestStatus) bool {
	if s == next {
		return next.Valid()
	}
	for _, allowed := range requestTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// PaymentStatus values are stored in Arabic, as shown to admins
type PaymentStatus string

const (
	PaymentStatusUnpaid   PaymentStatus = "غير مدفوع"
	PaymentStatusPartial  PaymentStatus = "جزئي"
	PaymentStatusComplete PaymentStatus = "مكتمل"
)

type PaymentMethod string

const (
	PaymentMethodGateway      PaymentMethod = "gateway"
	PaymentMethodBankTransfer PaymentMethod = "bank_transfer"
)

// OrderNumberPrefix prefixes every order number shared with the payment gateway
const OrderNumberPrefix = "RF"

// Request is a customer order for a written petition or letter
type Request struct {
	ID        uint           `gorm:"primarykey" json:"id"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`

	UserID *uint `gorm:"index" json:"user_id,omitempty"`

	ApplicantName     string  `gorm:"type:varchar(255);not null" json:"applicant_name"`
	Phone             string  `gorm:"type:varchar(50);not null" json:"phone"`
	Email             string  `gorm:"type:varchar(255);index" json:"email"`
	IDNumber          *string `gorm:"type:varchar(50)" json:"id_number,omitempty"`
	Recipient         string  `gorm:"type:varchar(255);not null" json:"recipient"`
	Purpose           string  `gorm:"type:varchar(255);index;not null" json:"purpose"`
	Description       *string `gorm:"type:text" json:"description"`
	VoiceRecordingURL *string `gorm:"type:text" json:"voice_recording_url,omitempty"`
	Attachments       *string `gorm:"type:text" json:"attachments,omitempty"`

	Price          float64  `gorm:"type:decimal(15,2)" json:"price"`
	CouponCode     *string  `gorm:"type:varchar(50)" json:"coupon_code,omitempty"`
	DiscountAmount float64  `gorm:"type:decimal(15,2);default:0" json:"discount_amount"`
	FinalPrice     float64  `gorm:"type:decimal(15,2)" json:"final_price"`
	TotalPaid      float64  `gorm:"type:decimal(15,2);default:0" json:"total_paid"`

	Status        RequestStatus `gorm:"type:varchar(20);index;default:'PENDING'" json:"status"`
	PaymentStatus PaymentStatus `gorm:"type:varchar(20);default:'غير مدفوع'" json:"payment_status"`
	PaymentMethod PaymentMethod `gorm:"type:varchar(20)" json:"payment_method,omitempty"`
	PaidAt        *time.Time    `json:"paid_at,omitempty"`

	// Relationships
	User *User `gorm:"foreignKey:UserID" json:"user,omitempty"`
}

// OrderNumber is the gateway correlation reference for this request
func (r Request) OrderNumber() string {
	return OrderNumberFor(r.ID)
}

// Payable is the amount the customer owes: the final price when a coupon
// was applied, otherwise the base price.
func (r Request) Payable() float64 {
	if r.CouponCode != nil && *r.CouponCode != "" {
		return r.FinalPrice
	}
	return r.Price
}

// IsPaid reports whether the payment has been fully confirmed
func (r Request) IsPaid() bool {
	return r.PaymentStatus == PaymentStatusComplete
}

func OrderNumberFor(id uint) string {
	return fmt.Sprintf("%s%d", OrderNumberPrefix, id)
}

// ParseOrderNumber extracts the request id from an order number.
// It accepts "RF42" and gateway attempt ids such as "RF42-3".
func ParseOrderNumber(orderNumber string) (uint, error) {
	s := strings.TrimSpace(orderNumber)
	if !strings.HasPrefix(strings.ToUpper(s), OrderNumberPrefix) {
		return 0, fmt.Errorf("invalid order number %q", orderNumber)
	}
	s = s[len(OrderNumberPrefix):]
	if idx := strings.Index(s, "-"); idx >= 0 {
		s = s[:idx]
	}
	id, err := strconv.ParseUint(s, 10, 32)
	if err != nil || id == 0 {
		return 0, fmt.Errorf("invalid order number %q", orderNumber)
	}
	return uint(id), nil
}
