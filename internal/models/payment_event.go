package models

import "time"

type PaymentEventSource string

const (
	PaymentEventSourceWebhook    PaymentEventSource = "webhook"
	PaymentEventSourceAdmin      PaymentEventSource = "admin"
	PaymentEventSourceReconciler PaymentEventSource = "reconciler"
)

// PaymentEvent records every attempt to confirm a payment, including no-ops,
// so racing confirmations stay auditable.
type PaymentEvent struct {
	ID        uint      `gorm:"primarykey" json:"id"`
	CreatedAt time.Time `json:"created_at"`

	RequestID uint               `gorm:"index" json:"request_id"`
	Source    PaymentEventSource `gorm:"type:varchar(20)" json:"source"`
	Reference string             `gorm:"type:varchar(100)" json:"reference"`
	Amount    float64            `gorm:"type:decimal(15,2)" json:"amount"`
	Applied   bool               `json:"applied"`
	Note      string             `gorm:"type:text" json:"note,omitempty"`
}
