package models

import (
	"strings"
	"time"
)

// Requirement operators.
const (
	OpGreaterEq = ">="
	OpLessEq    = "<="
	OpEquals    = "="
	OpIn        = "in"
)

// Requirement is one eligibility rule attached to a Spec. A range constraint
// (age between 21 and 30, say) is stored as two rows sharing the same field,
// each evaluated independently so the compulsory flag stays per-rule.
// Requirements are immutable once created.
type Requirement struct {
	ID     string `json:"id" gorm:"primaryKey"`
	SpecID string `json:"spec_id" gorm:"not null;index"`
	Field  string `json:"field" gorm:"not null"`
	// Operator is one of >=, <=, =, in.
	Operator string `json:"operator" gorm:"type:varchar(4);not null"`
	// Value holds the scalar comparison value. For the "in" operator it is
	// the comma-joined member list. Booleans are encoded as "1"/"0".
	Value        string    `json:"value" gorm:"type:text"`
	IsCompulsory bool      `json:"is_compulsory" gorm:"default:false"`
	CreatedAt    time.Time `json:"created_at" gorm:"autoCreateTime"`
}

// ValidOperator reports whether op is one of the supported operators.
func ValidOperator(op string) bool {
	switch op {
	case OpGreaterEq, OpLessEq, OpEquals, OpIn:
		return true
	}
	return false
}

// Values splits a stored list value into its members. A scalar value comes
// back as a single-element slice.
func (r Requirement) Values() []string {
	parts := strings.Split(r.Value, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

// RequirementGroup collects the rules targeting one field, for display.
type RequirementGroup struct {
	Field string        `json:"field"`
	Rules []Requirement `json:"rules"`
}

// GroupRequirementsByField groups rules by field in first-seen order. Rules
// stay separate rows underneath; grouping is a read-time view only.
func GroupRequirementsByField(reqs []Requirement) []RequirementGroup {
	index := map[string]int{}
	var groups []RequirementGroup
	for _, r := range reqs {
		i, ok := index[r.Field]
		if !ok {
			i = len(groups)
			index[r.Field] = i
			groups = append(groups, RequirementGroup{Field: r.Field})
		}
		groups[i].Rules = append(groups[i].Rules, r)
	}
	return groups
}
