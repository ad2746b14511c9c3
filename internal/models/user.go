package models

import (
	"time"
)

// User represents a user in the system. Authentication and profile
// management live in external services; this core only needs a stable id
// and the listener flag.
type User struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	Nickname   string    `gorm:"uniqueIndex;not null" json:"nickname"`
	IsListener bool      `gorm:"default:false;index" json:"is_listener"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// TableName specifies the table name for User model
func (User) TableName() string {
	return "users"
}
