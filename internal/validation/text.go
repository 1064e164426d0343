package validation

import (
	"errors"
	"strings"
	"unicode/utf8"
)

// MaxTextCardLength is the number of characters a text card may hold.
const MaxTextCardLength = 750

// MaxWhisperLength is the number of characters a whisper may hold.
const MaxWhisperLength = 1000

// ValidateCardText validates the body of a text card
func ValidateCardText(text string) error {
	if strings.TrimSpace(text) == "" {
		return errors.New("text is required")
	}
	if utf8.RuneCountInString(text) > MaxTextCardLength {
		return errors.New("text is too long (max 750 characters)")
	}
	return nil
}

// ValidateWhisper validates a whisper message
func ValidateWhisper(message string) error {
	if strings.TrimSpace(message) == "" {
		return errors.New("message is required")
	}
	if utf8.RuneCountInString(message) > MaxWhisperLength {
		return errors.New("message is too long (max 1000 characters)")
	}
	return nil
}
