// Package isbn normalizes and validates externally supplied ISBN strings.
package isbn

import (
	"regexp"
	"strings"
)

var (
	isbn10Pattern = regexp.MustCompile(`^\d{9}[\dX]$`)
	isbn13Pattern = regexp.MustCompile(`^\d{13}$`)
)

// Normalize strips hyphens and surrounding whitespace from a raw ISBN.
// An absent, empty or whitespace-only input yields "".
func Normalize(raw string) string {
	return strings.TrimSpace(strings.ReplaceAll(raw, "-", ""))
}

// IsValid reports whether s normalizes to a well-formed ISBN-10 or ISBN-13.
func IsValid(s string) bool {
	n := Normalize(s)
	switch len(n) {
	case 10:
		return isbn10Pattern.MatchString(n)
	case 13:
		return isbn13Pattern.MatchString(n)
	default:
		return false
	}
}
