package models

import (
	"encoding/json"
	"time"

	"gorm.io/gorm"
)

// PaymentSession is one hosted-checkout attempt for a request.
// OrderID is the id sent to the gateway; it starts with the request's order number.
type PaymentSession struct {
	ID               uint            `gorm:"primaryKey" json:"id"`
	RequestID        uint            `gorm:"index" json:"request_id"`
	Attempt          int             `gorm:"default:1" json:"attempt"`
	PaymentGateway   PaymentGateway  `gorm:"type:varchar(50);not null" json:"payment_gateway"`
	OrderID          string          `gorm:"type:varchar(100);uniqueIndex" json:"order_id"`
	Amount           float64         `gorm:"type:decimal(15,2)" json:"amount"`
	RedirectURL      string          `gorm:"type:text" json:"redirect_url"`
	IsActive         bool            `json:"is_active"`
	RequestMetadata  json.RawMessage `gorm:"type:jsonb" json:"request_metadata"`
	ResponseMetadata json.RawMessage `gorm:"type:jsonb" json:"response_metadata"`
	CreatedAt        time.Time       `json:"created_at"`
	UpdatedAt        time.Time       `json:"updated_at"`
	DeletedAt        gorm.DeletedAt  `gorm:"index" json:"deleted_at,omitempty"`
}
