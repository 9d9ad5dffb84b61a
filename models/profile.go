package models

import (
	"strconv"
	"time"

	"gorm.io/gorm"
)

// MemberProfile is a local snapshot of the user data needed for requirement
// matching. Owned and managed solely by this service, populated via the
// profile sync worker from the profile service.
type MemberProfile struct {
	ID             string     `gorm:"primaryKey" json:"id"`
	ExternalUserID string     `gorm:"uniqueIndex;not null" json:"external_user_id"`
	Username       string     `gorm:"index;not null" json:"username"`
	DateOfBirth    *time.Time `json:"date_of_birth,omitempty"`
	HeightCM       *float64   `json:"height_cm,omitempty"`
	Sex            string     `json:"sex,omitempty"`
	Occupation     string     `json:"occupation,omitempty"`
	Qualification  string     `json:"qualification,omitempty"`
	Smoker         *bool      `json:"smoker,omitempty"`
	City           string     `json:"city,omitempty"`
	Country        string     `json:"country,omitempty"`
	Genotype       string     `json:"genotype,omitempty"`
	AvatarURL      *string    `json:"avatar_url,omitempty"`
	CreatedAt      time.Time  `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt      time.Time  `json:"updated_at" gorm:"autoUpdateTime"`

	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

// Attributes flattens the profile into the comparable map consumed by the
// requirement matcher. Unset fields are omitted entirely so that any rule
// over them fails closed. Booleans are encoded as "1"/"0", matching the
// stored requirement encoding.
func (p MemberProfile) Attributes(now time.Time) map[string]string {
	attrs := map[string]string{}
	if p.DateOfBirth != nil {
		attrs["age"] = strconv.Itoa(yearsBetween(*p.DateOfBirth, now))
	}
	if p.HeightCM != nil {
		attrs["height"] = strconv.FormatFloat(*p.HeightCM, 'f', -1, 64)
	}
	if p.Sex != "" {
		attrs["sex"] = p.Sex
	}
	if p.Occupation != "" {
		attrs["occupation"] = p.Occupation
	}
	if p.Qualification != "" {
		attrs["qualification"] = p.Qualification
	}
	if p.Smoker != nil {
		if *p.Smoker {
			attrs["smoker"] = "1"
		} else {
			attrs["smoker"] = "0"
		}
	}
	if p.City != "" {
		attrs["city"] = p.City
	}
	if p.Country != "" {
		attrs["country"] = p.Country
	}
	if p.Genotype != "" {
		attrs["genotype"] = p.Genotype
	}
	return attrs
}

func yearsBetween(born, now time.Time) int {
	years := now.Year() - born.Year()
	// birthday not reached yet this year
	anniversary := born.AddDate(years, 0, 0)
	if anniversary.After(now) {
		years--
	}
	if years < 0 {
		years = 0
	}
	return years
}
