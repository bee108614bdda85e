// Package pdfextract pulls plain text out of uploaded PDF documents.
package pdfextract

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/ledongthuc/pdf"
)

var (
	// ErrEmptyDocument is returned for a zero-byte upload.
	ErrEmptyDocument = errors.New("pdf is empty")

	// ErrEncrypted is returned for password-protected documents.
	ErrEncrypted = errors.New("pdf is password protected")

	// ErrNoText is returned when the document has pages but no extractable
	// text, which is typical of scanned inspection sheets.
	ErrNoText = errors.New("pdf has no extractable text")
)

// ExtractText reads the whole document from r and returns its plain text with
// surrounding whitespace trimmed.
func ExtractText(r io.Reader) (string, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return "", fmt.Errorf("failed to read pdf: %w", err)
	}
	if len(data) == 0 {
		return "", ErrEmptyDocument
	}

	doc, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		if errors.Is(err, pdf.ErrInvalidPassword) {
			return "", ErrEncrypted
		}
		return "", fmt.Errorf("failed to open pdf: %w", err)
	}

	plain, err := doc.GetPlainText()
	if err != nil {
		return "", fmt.Errorf("failed to extract text: %w", err)
	}

	var buf strings.Builder
	if _, err := io.Copy(&buf, plain); err != nil {
		return "", fmt.Errorf("failed to extract text: %w", err)
	}

	text := strings.TrimSpace(buf.String())
	if text == "" {
		return "", ErrNoText
	}
	return text, nil
}
