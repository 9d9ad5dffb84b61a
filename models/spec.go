package models

import (
	"time"
)

// Spec statuses. Transitions are monotonic: a spec never leaves
// completed or expired.
const (
	SpecStatusOpen      = "open"
	SpecStatusActive    = "active"
	SpecStatusCompleted = "completed"
	SpecStatusExpired   = "expired"
)

// Spec is a time-boxed matchmaking post. It owns its requirement set,
// applications and rounds; all of them are created and deleted with it.
type Spec struct {
	ID              string    `json:"id" gorm:"primaryKey"`
	OwnerID         string    `json:"owner_id" gorm:"not null;index"`
	Title           string    `json:"title" gorm:"not null"`
	Slug            string    `json:"slug" gorm:"index"`
	Description     string    `json:"description" gorm:"type:text"`
	City            string    `json:"city"`
	Latitude        float64   `json:"latitude"`
	Longitude       float64   `json:"longitude"`
	MaxParticipants int       `json:"max_participants" gorm:"default:1"`
	Status          string    `json:"status" gorm:"default:'open';index"`
	ExpiresAt       time.Time `json:"expires_at" gorm:"not null;index"`
	// CurrentRoundID points at the round that is currently active or
	// reviewing. nil when no round is in progress. The next round cannot
	// start until this is cleared.
	CurrentRoundID *string   `json:"current_round_id,omitempty"`
	CreatedAt      time.Time `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt      time.Time `json:"updated_at" gorm:"autoUpdateTime"`

	// Relationships
	Requirements []Requirement `json:"requirements,omitempty" gorm:"foreignKey:SpecID"`
	Applications []Application `json:"applications,omitempty" gorm:"foreignKey:SpecID"`
	Rounds       []Round       `json:"rounds,omitempty" gorm:"foreignKey:SpecID"`

	// Calculated fields (not stored in DB)
	ApplicationsCount int64 `json:"applications_count,omitempty" gorm:"-"`
	AcceptedCount     int64 `json:"accepted_count,omitempty" gorm:"-"`
	AvailableSlots    int64 `json:"available_slots,omitempty" gorm:"-"`
}

// IsExpired reports whether the spec's deadline has passed. Expiry is a
// read-time condition; the stored status only becomes "expired" through an
// explicit administrative close.
func (s *Spec) IsExpired(now time.Time) bool {
	return now.After(s.ExpiresAt)
}

// Resolved reports whether the spec reached a terminal status.
func (s *Spec) Resolved() bool {
	return s.Status == SpecStatusCompleted || s.Status == SpecStatusExpired
}
