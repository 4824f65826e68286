package query

import (
	"strings"
	"time"
)

// ParseDateCode converts a raw deal-date code into a calendar date.
// 8-digit codes are read as YYYYMMDD, 6-digit codes as YYYYMM with the
// day assumed to be the 1st. Anything else is unknown (ok == false);
// malformed codes never produce an error.
func ParseDateCode(code string) (time.Time, bool) {
	switch len(code) {
	case 8:
		t, err := time.Parse("20060102", code)
		if err != nil {
			return time.Time{}, false
		}
		return t, true
	case 6:
		t, err := time.Parse("200601", code)
		if err != nil {
			return time.Time{}, false
		}
		return t, true
	default:
		return time.Time{}, false
	}
}

// NormalizeBound prepares a caller-supplied range boundary: whitespace is
// trimmed and an empty string means "no bound". The code itself is
// normalized with the same rules as stored deal-date fields.
func NormalizeBound(raw string) (string, bool) {
	trimmed := strings.TrimSpace(raw)
	return trimmed, trimmed != ""
}
