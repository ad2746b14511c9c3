package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type CallType string

const (
	CallTypeAudio CallType = "audio"
	CallTypeVideo CallType = "video"
)

type CallStatus string

const (
	CallStatusOngoing        CallStatus = "ongoing"
	CallStatusCompleted      CallStatus = "completed"
	CallStatusDropped        CallStatus = "dropped"
	CallStatusCancelled      CallStatus = "cancelled"
	CallStatusEmergencyEnded CallStatus = "emergency_ended"
)

// Call is a billed session between a caller and a listener. At most one
// ongoing call may exist per user; the call service checks this at start
// time inside the creating transaction, and the partial unique indexes
// below reject the residual race where two Starts pass the check
// concurrently.
type Call struct {
	ID                  uuid.UUID       `gorm:"type:uuid;primaryKey" json:"id"`
	CallerID            uint            `gorm:"not null;index;index:idx_calls_caller_ongoing,unique,where:status = 'ongoing'" json:"caller_id"`
	ListenerID          uint            `gorm:"not null;index;index:idx_calls_listener_ongoing,unique,where:status = 'ongoing'" json:"listener_id"`
	CallType            CallType        `gorm:"size:20;not null" json:"call_type"`
	Status              CallStatus      `gorm:"size:30;not null;default:ongoing;index" json:"status"`
	StartTime           time.Time       `gorm:"not null;index" json:"start_time"`
	EndTime             *time.Time      `json:"end_time,omitempty"`
	DurationSeconds     int             `gorm:"not null;default:0" json:"duration_seconds"`
	BilledMinutes       int             `gorm:"not null;default:0" json:"billed_minutes"`
	CoinsSpent          int64           `gorm:"not null;default:0" json:"coins_spent"`
	ListenerMoneyEarned decimal.Decimal `gorm:"type:decimal(12,2);not null;default:0" json:"listener_money_earned"`
	CreatedAt           time.Time       `json:"created_at"`
	UpdatedAt           time.Time       `gorm:"index" json:"updated_at"`
}

// TableName specifies the table name for Call model
func (Call) TableName() string {
	return "calls"
}

// IsTerminal reports whether the call has reached an absorbing state.
func (c *Call) IsTerminal() bool {
	return c.Status != CallStatusOngoing
}
