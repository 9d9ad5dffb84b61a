package services

import (
	"strconv"
	"strings"

	"spec-dating-system/models"
)

// Matches evaluates one requirement against an applicant's flat attribute
// map. Pure function, no side effects. A missing attribute never satisfies a
// requirement, whatever the operator.
func Matches(req models.Requirement, attrs map[string]string) bool {
	got, ok := attrs[req.Field]
	if !ok {
		return false
	}

	switch req.Operator {
	case models.OpGreaterEq, models.OpLessEq:
		have, errHave := strconv.ParseFloat(strings.TrimSpace(got), 64)
		want, errWant := strconv.ParseFloat(strings.TrimSpace(req.Value), 64)
		if errHave != nil || errWant != nil {
			return false
		}
		if req.Operator == models.OpGreaterEq {
			return have >= want
		}
		return have <= want

	case models.OpEquals:
		return normalizeValue(got) == normalizeValue(req.Value)

	case models.OpIn:
		needle := normalizeValue(got)
		for _, member := range req.Values() {
			if needle == normalizeValue(member) {
				return true
			}
		}
		return false
	}

	return false
}

// normalizeValue trims whitespace and maps boolean spellings onto the stored
// "1"/"0" encoding.
func normalizeValue(v string) string {
	v = strings.TrimSpace(v)
	switch strings.ToLower(v) {
	case "true":
		return "1"
	case "false":
		return "0"
	}
	return v
}
