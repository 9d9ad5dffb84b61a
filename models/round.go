package models

import (
	"time"
)

// Round statuses. A round is created directly as active; pending exists for
// scheduled rounds. There is no path back from reviewing to active.
const (
	RoundStatusPending   = "pending"
	RoundStatusActive    = "active"
	RoundStatusReviewing = "reviewing"
	RoundStatusCompleted = "completed"
)

// Round is one elimination stage of a Spec's tournament, built around a
// single question. Round numbers are 1-based and contiguous per spec.
type Round struct {
	ID           string `json:"id" gorm:"primaryKey"`
	SpecID       string `json:"spec_id" gorm:"not null;index"`
	RoundNumber  int    `json:"round_number" gorm:"not null"`
	QuestionText string `json:"question_text" gorm:"type:text"`
	Status       string `json:"status" gorm:"type:varchar(16);default:'active';index"`
	// EliminationCount is the owner's target number of removals for this
	// round. Advisory only, not enforced.
	EliminationCount int       `json:"elimination_count" gorm:"default:0"`
	CreatedAt        time.Time `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt        time.Time `json:"updated_at" gorm:"autoUpdateTime"`

	Answers []Answer `json:"answers,omitempty" gorm:"foreignKey:RoundID"`
}

// InProgress reports whether the round still blocks the next one.
func (r *Round) InProgress() bool {
	return r.Status == RoundStatusActive || r.Status == RoundStatusReviewing
}

// Answer is one participant's response within a round. At most one per
// (round, user) pair.
type Answer struct {
	ID         string `json:"id" gorm:"primaryKey"`
	RoundID    string `json:"round_id" gorm:"not null;uniqueIndex:idx_round_user"`
	UserID     string `json:"user_id" gorm:"not null;uniqueIndex:idx_round_user"`
	AnswerText string `json:"answer_text" gorm:"type:text"`
	// MediaID references an object in the media store; answers never embed
	// binary content. Resolved to a URL at read time.
	MediaID      *string   `json:"media_id,omitempty"`
	IsEliminated bool      `json:"is_eliminated" gorm:"default:false"`
	CreatedAt    time.Time `json:"created_at" gorm:"autoCreateTime"`

	// Calculated field (not stored in DB)
	MediaURL string `json:"media_url,omitempty" gorm:"-"`
}
