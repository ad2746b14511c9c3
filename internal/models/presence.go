package models

import (
	"time"
)

// PresenceStatus tracks a user's online/busy state. is_busy is true iff
// the user is a party to an ongoing call; only the call service flips it.
type PresenceStatus struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	UserID    uint      `gorm:"uniqueIndex;not null" json:"user_id"`
	IsOnline  bool      `gorm:"default:false;index" json:"is_online"`
	IsBusy    bool      `gorm:"default:false;index" json:"is_busy"`
	WaitTime  int       `gorm:"default:0" json:"wait_time"`
	LastSeen  time.Time `gorm:"index" json:"last_seen"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName specifies the table name for PresenceStatus model
func (PresenceStatus) TableName() string {
	return "presence_statuses"
}
