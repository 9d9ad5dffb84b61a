package models

import (
	"time"
)

// Date is the resolution artifact created when the owner matches with the
// tournament's winner. One per spec, terminal once created.
type Date struct {
	ID       string `json:"id" gorm:"primaryKey"`
	SpecID   string `json:"spec_id" gorm:"not null;uniqueIndex"`
	OwnerID  string `json:"owner_id" gorm:"not null;index"`
	WinnerID string `json:"winner_id" gorm:"not null;index"`
	// DateCode is a 6-character alphanumeric code, unique across all dates.
	DateCode  string    `json:"date_code" gorm:"type:varchar(6);uniqueIndex;not null"`
	CreatedAt time.Time `json:"created_at" gorm:"autoCreateTime"`
}
