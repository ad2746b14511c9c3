package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type BadgeTier string

const (
	BadgeTierBasic  BadgeTier = "basic"
	BadgeTierBronze BadgeTier = "bronze"
	BadgeTierSilver BadgeTier = "silver"
	BadgeTierGold   BadgeTier = "gold"
)

// Badge is a listener's performance tier for one calendar day, assigned
// from the previous day's completed-call minutes. Immutable once written
// for a day; re-assignment overwrites deterministically.
type Badge struct {
	ID                 uint            `gorm:"primaryKey" json:"id"`
	ListenerID         uint            `gorm:"not null;uniqueIndex:idx_badge_listener_day" json:"listener_id"`
	BadgeDate          time.Time       `gorm:"not null;uniqueIndex:idx_badge_listener_day" json:"badge_date"`
	Badge              BadgeTier       `gorm:"size:20;not null" json:"badge"`
	AudioRatePerMinute decimal.Decimal `gorm:"type:decimal(8,2);not null" json:"audio_rate_per_minute"`
	VideoRatePerMinute decimal.Decimal `gorm:"type:decimal(8,2);not null" json:"video_rate_per_minute"`
	CreatedAt          time.Time       `json:"created_at"`
	UpdatedAt          time.Time       `json:"updated_at"`
}

// TableName specifies the table name for Badge model
func (Badge) TableName() string {
	return "badges"
}
