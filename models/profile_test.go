package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestMemberProfile_Attributes(t *testing.T) {
	now := time.Date(2026, 6, 15, 12, 0, 0, 0, time.UTC)
	dob := time.Date(2000, 6, 16, 0, 0, 0, 0, time.UTC) // birthday tomorrow
	height := 172.5
	smoker := false

	p := MemberProfile{
		DateOfBirth: &dob,
		HeightCM:    &height,
		Sex:         "female",
		Smoker:      &smoker,
		City:        "Lagos",
	}
	attrs := p.Attributes(now)

	assert.Equal(t, "25", attrs["age"], "age counts completed years only")
	assert.Equal(t, "172.5", attrs["height"])
	assert.Equal(t, "female", attrs["sex"])
	assert.Equal(t, "0", attrs["smoker"])
	assert.Equal(t, "Lagos", attrs["city"])

	// Unset fields stay out of the map entirely.
	_, ok := attrs["occupation"]
	assert.False(t, ok)
	_, ok = attrs["genotype"]
	assert.False(t, ok)
}

func TestMemberProfile_Attributes_Empty(t *testing.T) {
	attrs := MemberProfile{}.Attributes(time.Now())
	assert.Empty(t, attrs)
}

func TestYearsBetween(t *testing.T) {
	now := time.Date(2026, 6, 15, 0, 0, 0, 0, time.UTC)

	assert.Equal(t, 26, yearsBetween(time.Date(2000, 6, 15, 0, 0, 0, 0, time.UTC), now))
	assert.Equal(t, 25, yearsBetween(time.Date(2000, 6, 16, 0, 0, 0, 0, time.UTC), now))
	assert.Equal(t, 0, yearsBetween(now.AddDate(1, 0, 0), now), "future birth dates clamp to zero")
}
