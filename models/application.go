package models

import (
	"time"
)

// Application roles. The owner is an implicit participant with an immediately
// accepted application; elimination and last-man-standing counts filter on
// role, not on a separate entity.
const (
	RoleOwner       = "owner"
	RoleParticipant = "participant"
)

// Application statuses.
const (
	ApplicationStatusPending    = "pending"
	ApplicationStatusAccepted   = "accepted"
	ApplicationStatusRejected   = "rejected"
	ApplicationStatusEliminated = "eliminated"
	ApplicationStatusWinner     = "winner"
)

// Application records one user's relationship to one Spec. At most one row
// exists per (spec, user) pair, enforced by a unique index.
type Application struct {
	ID        string    `json:"id" gorm:"primaryKey"`
	SpecID    string    `json:"spec_id" gorm:"not null;uniqueIndex:idx_spec_user"`
	UserID    string    `json:"user_id" gorm:"not null;uniqueIndex:idx_spec_user"`
	UserRole  string    `json:"user_role" gorm:"type:varchar(16);default:'participant'"`
	Status    string    `json:"status" gorm:"type:varchar(16);default:'pending';index"`
	CreatedAt time.Time `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt time.Time `json:"updated_at" gorm:"autoUpdateTime"`
}
