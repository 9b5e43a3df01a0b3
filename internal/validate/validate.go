// Package validate holds the field checks shared by the planner stores.
// Every failure is an apperr validation error naming the field.
package validate

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/alecgard/planner/internal/apperr"
	"github.com/google/uuid"
)

// Field limits.
const (
	MaxNameLength              = 64
	MaxDescriptionLength       = 128
	MaxDisplayNameLength       = 64
	MaxDisplayNameUpdateLength = 128
	MaxTeamMembers             = 50
)

var namePattern = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)

// Required trims value and fails if nothing is left.
func Required(value, field string) (string, error) {
	v := strings.TrimSpace(value)
	if v == "" {
		return "", apperr.Validation("%s is required", field)
	}
	return v, nil
}

// MaxLength fails if value is longer than max characters.
func MaxLength(value, field string, max int) error {
	if utf8.RuneCountInString(value) > max {
		return apperr.Validation("%s must be <= %d characters", field, max)
	}
	return nil
}

// Name validates a required identifier-like name: at most MaxNameLength
// characters of letters, digits, hyphens and underscores.
func Name(value, field string) (string, error) {
	v, err := Required(value, field)
	if err != nil {
		return "", err
	}
	if err := MaxLength(v, field, MaxNameLength); err != nil {
		return "", err
	}
	if !namePattern.MatchString(v) {
		return "", apperr.Validation("%s can only contain letters, numbers, hyphens, and underscores", field)
	}
	return v, nil
}

// Title validates a required free-text name of at most MaxNameLength
// characters.
func Title(value, field string) (string, error) {
	v, err := Required(value, field)
	if err != nil {
		return "", err
	}
	if err := MaxLength(v, field, MaxNameLength); err != nil {
		return "", err
	}
	return v, nil
}

// Description trims an optional description and checks its length.
func Description(value, field string) (string, error) {
	v := strings.TrimSpace(value)
	if err := MaxLength(v, field, MaxDescriptionLength); err != nil {
		return "", err
	}
	return v, nil
}

// ID validates a required UUID and returns it in canonical form.
func ID(value, field string) (string, error) {
	v, err := Required(value, field)
	if err != nil {
		return "", err
	}
	id, err := uuid.Parse(v)
	if err != nil {
		return "", apperr.Validation("%s must be a valid UUID", field)
	}
	return id.String(), nil
}
