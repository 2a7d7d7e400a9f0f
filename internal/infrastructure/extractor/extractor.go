package extractor

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/ledongthuc/pdf"

	"github.com/mkarpov/plc-technical-assistant/internal/core/domain"
)

// Extractor pulls plain text from uploaded session documents. Plain text and
// PDF are supported; anything else is rejected as invalid input.
type Extractor struct {
	maxBytes int64
}

func New(maxBytes int64) *Extractor {
	if maxBytes <= 0 {
		maxBytes = 32 << 20
	}
	return &Extractor{maxBytes: maxBytes}
}

func (e *Extractor) Extract(_ context.Context, filename, mimeType string, body io.Reader) (string, error) {
	raw, err := io.ReadAll(io.LimitReader(body, e.maxBytes+1))
	if err != nil {
		return "", fmt.Errorf("read upload body: %w", err)
	}
	if int64(len(raw)) > e.maxBytes {
		return "", domain.WrapError(domain.ErrInvalidQuery, "extract", fmt.Errorf("document exceeds %d bytes", e.maxBytes))
	}

	switch detectKind(filename, mimeType) {
	case kindPDF:
		return extractPDF(raw)
	case kindText:
		return string(raw), nil
	default:
		return "", domain.WrapError(domain.ErrInvalidQuery, "extract",
			fmt.Errorf("unsupported document type: %s (%s)", filename, mimeType))
	}
}

type documentKind int

const (
	kindUnknown documentKind = iota
	kindText
	kindPDF
)

func detectKind(filename, mimeType string) documentKind {
	mime := strings.ToLower(strings.TrimSpace(mimeType))
	ext := strings.ToLower(filepath.Ext(filename))

	switch {
	case mime == "application/pdf" || ext == ".pdf":
		return kindPDF
	case strings.HasPrefix(mime, "text/"), ext == ".txt", ext == ".md", ext == ".log":
		return kindText
	default:
		return kindUnknown
	}
}

func extractPDF(raw []byte) (string, error) {
	reader, err := pdf.NewReader(bytes.NewReader(raw), int64(len(raw)))
	if err != nil {
		return "", fmt.Errorf("open pdf: %w", err)
	}

	textReader, err := reader.GetPlainText()
	if err != nil {
		return "", fmt.Errorf("extract pdf text: %w", err)
	}
	text, err := io.ReadAll(textReader)
	if err != nil {
		return "", fmt.Errorf("read pdf text: %w", err)
	}
	return string(text), nil
}
