package services

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"
)

// ErrInvalidQuery marks a request the client must correct
var ErrInvalidQuery = errors.New("invalid query")

// ValidationError carries a user-facing reason and matches ErrInvalidQuery
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrInvalidQuery
}

const (
	DefaultMinQueryLength = 3
	DefaultMaxQueryLength = 500
)

// defaultBlockedPatterns reject markup and prompt-injection boilerplate
var defaultBlockedPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)<\s*script`),
	regexp.MustCompile(`(?i)javascript:`),
	regexp.MustCompile(`\{\{`),
	regexp.MustCompile(`(?i)ignore\s+(all\s+)?(previous|prior)\s+instructions`),
}

// QueryValidator enforces length bounds and a blocklist on raw queries
type QueryValidator struct {
	minLength int
	maxLength int
	blocked   []*regexp.Regexp
}

// NewQueryValidator creates a validator; zero lengths fall back to defaults
func NewQueryValidator(minLength, maxLength int) *QueryValidator {
	if minLength <= 0 {
		minLength = DefaultMinQueryLength
	}
	if maxLength <= 0 {
		maxLength = DefaultMaxQueryLength
	}
	return &QueryValidator{
		minLength: minLength,
		maxLength: maxLength,
		blocked:   defaultBlockedPatterns,
	}
}

// Validate checks the trimmed query and returns a *ValidationError on failure
func (v *QueryValidator) Validate(raw string) error {
	q := strings.TrimSpace(raw)
	n := utf8.RuneCountInString(q)

	if n < v.minLength {
		return &ValidationError{Message: fmt.Sprintf("Pertanyaan minimal %d karakter.", v.minLength)}
	}
	if n > v.maxLength {
		return &ValidationError{Message: fmt.Sprintf("Pertanyaan maksimal %d karakter.", v.maxLength)}
	}
	for _, re := range v.blocked {
		if re.MatchString(q) {
			return &ValidationError{Message: "Pertanyaan mengandung pola yang tidak diizinkan."}
		}
	}
	return nil
}
