// Package validate provides input validation for user-supplied text and
// operator-supplied service URLs.
package validate

import (
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"
)

// String validation errors
var (
	ErrStringTooShort = errors.New("string is too short")
	ErrStringTooLong  = errors.New("string is too long")
	ErrEmpty          = errors.New("string is empty")
)

// Length limits in characters.
const (
	MaxCommentLength    = 2000
	MaxSearchTermLength = 200
)

// StringConstraints defines validation constraints for a string.
type StringConstraints struct {
	MinLength  int  // Minimum length (0 = no minimum)
	MaxLength  int  // Maximum length (0 = no maximum)
	AllowEmpty bool // Whether empty strings are allowed
	TrimSpace  bool // Whether to trim whitespace before validation
}

// String validates s against constraints and returns the (optionally trimmed) value.
// Lengths are counted in characters, not bytes.
func String(s string, constraints StringConstraints) (string, error) {
	if constraints.TrimSpace {
		s = strings.TrimSpace(s)
	}

	if s == "" {
		if !constraints.AllowEmpty {
			return "", ErrEmpty
		}
		return s, nil
	}

	length := utf8.RuneCountInString(s)
	if constraints.MinLength > 0 && length < constraints.MinLength {
		return "", fmt.Errorf("%w: got %d chars, need at least %d", ErrStringTooShort, length, constraints.MinLength)
	}
	if constraints.MaxLength > 0 && length > constraints.MaxLength {
		return "", fmt.Errorf("%w: got %d chars, maximum is %d", ErrStringTooLong, length, constraints.MaxLength)
	}
	return s, nil
}

// CommentContent validates comment text: required after trimming, at most
// MaxCommentLength characters.
func CommentContent(content string) (string, error) {
	return String(content, StringConstraints{
		MinLength: 1,
		MaxLength: MaxCommentLength,
		TrimSpace: true,
	})
}

// SearchTerm validates a raw search term. Empty terms are allowed and left
// untrimmed; the search itself decides what an empty query means.
func SearchTerm(term string) (string, error) {
	return String(term, StringConstraints{
		MaxLength:  MaxSearchTermLength,
		AllowEmpty: true,
	})
}
