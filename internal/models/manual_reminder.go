package models

import (
	"time"

	"gorm.io/gorm"
)

type ReminderStatus string

const (
	ReminderStatusPending ReminderStatus = "PENDING"
	ReminderStatusSent    ReminderStatus = "SENT"
	ReminderStatusFailed  ReminderStatus = "FAILED"
)

type ReminderSource string

const (
	ReminderSourceManual    ReminderSource = "manual"
	ReminderSourceScheduled ReminderSource = "scheduled"
)

// ManualReminder is the audit record of one attempted reminder email.
// The row is written before the send and finalized after it.
type ManualReminder struct {
	ID        uint           `gorm:"primarykey" json:"id"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`

	Email     string   `gorm:"type:varchar(255);index;not null" json:"email"`
	Name      string   `gorm:"type:varchar(255)" json:"name"`
	RequestID *uint    `gorm:"index" json:"request_id,omitempty"`
	Purpose   *string  `gorm:"type:varchar(255)" json:"purpose,omitempty"`
	Price     *float64 `gorm:"type:decimal(15,2)" json:"price,omitempty"`
	Subject   string   `gorm:"type:varchar(255)" json:"subject"`
	Message   string   `gorm:"type:text" json:"message"`

	Status  ReminderStatus `gorm:"type:varchar(20);index;default:'PENDING'" json:"status"`
	Source  ReminderSource `gorm:"type:varchar(20);default:'manual'" json:"source"`
	BatchID string         `gorm:"type:varchar(36);index" json:"batch_id,omitempty"`
	Error   string         `gorm:"type:text" json:"error,omitempty"`
	SentAt  *time.Time     `json:"sent_at,omitempty"`
}
