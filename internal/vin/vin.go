// Package vin validates and normalizes 17-character vehicle identification numbers.
package vin

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"unicode/utf8"
)

// Length is the exact number of characters in a VIN.
const Length = 17

// forbidden letters are excluded from VINs because they read like 1 and 0.
var forbidden = map[rune]struct{}{'I': {}, 'O': {}, 'Q': {}}

// Reason classifies why an identifier was rejected.
type Reason string

const (
	ReasonEmpty     Reason = "empty"
	ReasonLength    Reason = "invalid_length"
	ReasonForbidden Reason = "forbidden_character"
	ReasonCharset   Reason = "invalid_character"
)

// ValidationError is returned for every rejected identifier.
type ValidationError struct {
	Reason Reason
	// Chars lists the offending characters for forbidden and charset failures.
	Chars []string
}

func (e *ValidationError) Error() string {
	switch e.Reason {
	case ReasonEmpty:
		return "vin must not be empty"
	case ReasonLength:
		return fmt.Sprintf("vin must contain exactly %d characters", Length)
	case ReasonForbidden:
		return fmt.Sprintf("vin contains forbidden characters: %s", strings.Join(e.Chars, ", "))
	default:
		return "vin contains invalid characters"
	}
}

// Normalize trims surrounding whitespace and uppercases letters.
func Normalize(raw string) string {
	return strings.ToUpper(strings.TrimSpace(raw))
}

// Validate reports nil for a valid identifier or a *ValidationError.
func Validate(raw string) error {
	if raw == "" {
		return &ValidationError{Reason: ReasonEmpty}
	}

	normalized := Normalize(raw)
	if utf8.RuneCountInString(normalized) != Length {
		return &ValidationError{Reason: ReasonLength}
	}

	if found := forbiddenIn(normalized); len(found) > 0 {
		return &ValidationError{Reason: ReasonForbidden, Chars: found}
	}

	var invalid []string
	for _, r := range normalized {
		if !allowed(r) {
			invalid = append(invalid, string(r))
		}
	}
	if len(invalid) > 0 {
		return &ValidationError{Reason: ReasonCharset, Chars: invalid}
	}
	return nil
}

// Parse validates raw and returns its canonical form.
func Parse(raw string) (string, error) {
	if err := Validate(raw); err != nil {
		return "", err
	}
	return Normalize(raw), nil
}

// IsValid is shorthand for Validate(raw) == nil.
func IsValid(raw string) bool {
	return Validate(raw) == nil
}

// ReasonOf extracts the rejection reason from err, or "" for other errors.
func ReasonOf(err error) Reason {
	var verr *ValidationError
	if errors.As(err, &verr) {
		return verr.Reason
	}
	return ""
}

func forbiddenIn(s string) []string {
	seen := map[rune]struct{}{}
	for _, r := range s {
		if _, ok := forbidden[r]; ok {
			seen[r] = struct{}{}
		}
	}
	out := make([]string, 0, len(seen))
	for r := range seen {
		out = append(out, string(r))
	}
	sort.Strings(out)
	return out
}

func allowed(r rune) bool {
	switch {
	case r >= '0' && r <= '9':
		return true
	case r >= 'A' && r <= 'Z':
		_, bad := forbidden[r]
		return !bad
	default:
		return false
	}
}
