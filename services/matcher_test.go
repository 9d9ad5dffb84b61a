package services

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"spec-dating-system/models"
)

func req(field, operator, value string) models.Requirement {
	return models.Requirement{Field: field, Operator: operator, Value: value}
}

func TestMatches_NumericOperators(t *testing.T) {
	attrs := map[string]string{"age": "25", "height": "172.5"}

	tests := []struct {
		name string
		req  models.Requirement
		want bool
	}{
		{"age at threshold", req("age", ">=", "25"), true},
		{"age above threshold", req("age", ">=", "21"), true},
		{"age below threshold", req("age", ">=", "30"), false},
		{"age within cap", req("age", "<=", "30"), true},
		{"age over cap", req("age", "<=", "24"), false},
		{"fractional height", req("height", ">=", "170"), true},
		{"fractional height over", req("height", "<=", "170"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Matches(tt.req, attrs))
		})
	}
}

func TestMatches_NonNumericComparisonFails(t *testing.T) {
	// A numeric operator over a non-numeric value can never match.
	attrs := map[string]string{"occupation": "engineer"}
	assert.False(t, Matches(req("occupation", ">=", "doctor"), attrs))
	assert.False(t, Matches(req("occupation", "<=", "engineer"), attrs))

	// Same when the rule value is garbage.
	attrs = map[string]string{"age": "25"}
	assert.False(t, Matches(req("age", ">=", "twenty"), attrs))
}

func TestMatches_Equals(t *testing.T) {
	attrs := map[string]string{"sex": "female", "city": " Lagos "}

	assert.True(t, Matches(req("sex", "=", "female"), attrs))
	assert.False(t, Matches(req("sex", "=", "male"), attrs))
	assert.True(t, Matches(req("city", "=", "Lagos"), attrs), "values are compared trimmed")
}

func TestMatches_EqualsBooleanEncoding(t *testing.T) {
	// Profile booleans are stored as "1"/"0"; rule authors may write
	// true/false. Both spellings must meet in the middle.
	attrs := map[string]string{"smoker": "0"}

	assert.True(t, Matches(req("smoker", "=", "false"), attrs))
	assert.True(t, Matches(req("smoker", "=", "0"), attrs))
	assert.False(t, Matches(req("smoker", "=", "true"), attrs))
	assert.False(t, Matches(req("smoker", "=", "1"), attrs))
}

func TestMatches_In(t *testing.T) {
	attrs := map[string]string{"genotype": "AA", "city": "Abuja"}

	assert.True(t, Matches(req("genotype", "in", "AA,AS"), attrs))
	assert.False(t, Matches(req("genotype", "in", "AS,SS"), attrs))
	assert.True(t, Matches(req("city", "in", "Lagos, Abuja ,Ibadan"), attrs), "list members are trimmed")
	assert.False(t, Matches(req("city", "in", ""), attrs))
}

func TestMatches_MissingAttributeFailsClosed(t *testing.T) {
	// No attribute means no match, whatever the operator.
	empty := map[string]string{}

	assert.False(t, Matches(req("age", ">=", "18"), empty))
	assert.False(t, Matches(req("age", "<=", "99"), empty))
	assert.False(t, Matches(req("sex", "=", "female"), empty))
	assert.False(t, Matches(req("genotype", "in", "AA,AS"), empty))
}

func TestMatches_UnknownOperatorFailsClosed(t *testing.T) {
	attrs := map[string]string{"age": "25"}
	assert.False(t, Matches(req("age", ">", "18"), attrs))
	assert.False(t, Matches(req("age", "!=", "18"), attrs))
}
