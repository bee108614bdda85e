package middleware

import (
	"errors"
	"strings"
	"unicode/utf8"
)

// MaxMessageLength bounds a chat message in bytes.
const MaxMessageLength = 100000

// ValidateMessageContent validates message content.
func ValidateMessageContent(content string) error {
	if strings.TrimSpace(content) == "" {
		return errors.New("message cannot be empty")
	}
	if len(content) > MaxMessageLength {
		return errors.New("message exceeds maximum length")
	}
	if !utf8.ValidString(content) {
		return errors.New("message must be valid UTF-8")
	}
	return nil
}

// ValidateFilename validates an uploaded filename.
func ValidateFilename(name string) error {
	if name == "" {
		return errors.New("filename cannot be empty")
	}
	if len(name) > 255 {
		return errors.New("filename exceeds maximum length")
	}
	if !utf8.ValidString(name) {
		return errors.New("filename must be valid UTF-8")
	}
	return nil
}
