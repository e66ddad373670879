package service

import (
	"errors"
	"fmt"
)

var (
	ErrMissingFile       = errors.New("no file uploaded")
	ErrUnsupportedFormat = errors.New("unsupported file format, expected PDF, DOCX or TXT")
	ErrDocumentParse     = errors.New("failed to parse document")
	ErrFileTooLarge      = errors.New("file exceeds upload limit")
	ErrAuthMissing       = errors.New("model API key is not configured")
	ErrTransport         = errors.New("model request failed")
)

// UpstreamError is a non-2xx answer from the model endpoint.
type UpstreamError struct {
	StatusCode int
	Body       string
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("model API returned status %d: %s", e.StatusCode, e.Body)
}
