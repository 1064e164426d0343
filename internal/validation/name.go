package validation

import (
	"errors"
	"regexp"
	"strings"
	"unicode/utf8"
)

var usernameRe = regexp.MustCompile(`^[a-z0-9_]{3,30}$`)

// ValidateDisplayName validates a profile display name
func ValidateDisplayName(name string) error {
	if utf8.RuneCountInString(strings.TrimSpace(name)) > 100 {
		return errors.New("display name is too long (max 100 characters)")
	}
	return nil
}

// ValidateUsername validates a lowercase handle of 3 to 30 letters, digits or underscores
func ValidateUsername(username string) error {
	if username == "" {
		return errors.New("username is required")
	}
	if !usernameRe.MatchString(username) {
		return errors.New("username must be 3-30 lowercase letters, digits or underscores")
	}
	return nil
}

// ValidateFolderName validates a folder name
func ValidateFolderName(name string) error {
	trimmed := strings.TrimSpace(name)

	if trimmed == "" {
		return errors.New("folder name is required")
	}

	if utf8.RuneCountInString(trimmed) > 100 {
		return errors.New("folder name is too long (max 100 characters)")
	}

	return nil
}
