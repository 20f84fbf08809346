package common

import (
	"errors"
	"fmt"
)

// AppError represents application-specific errors
type AppError struct {
	Code    string
	Message string
	Cause   error
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

// Common application errors
var (
	ErrNotFound     = errors.New("resource not found")
	ErrInvalidInput = errors.New("invalid input")
	ErrInternal     = errors.New("internal error")
	ErrDatabase     = errors.New("database error")
	ErrValidation   = errors.New("validation failed")
)

// Extraction and matching errors
var (
	ErrUnsupportedFormat = errors.New("unsupported document format")
	ErrExtractionFailed  = errors.New("extraction failed")
	ErrEmptyExtraction   = errors.New("no text could be extracted from the document")
	ErrNoOCRBackend      = errors.New("no OCR backend available")
	ErrAssistUnavailable = errors.New("semantic assist unavailable")
)

// Error constructors
func NewAppError(code, message string, cause error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

func WrapError(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// UnsupportedFormatError reports a media type no extractor is registered for.
func UnsupportedFormatError(mediaType string) error {
	return NewAppError("UNSUPPORTED_FORMAT", fmt.Sprintf("no extractor for media type %q", mediaType), ErrUnsupportedFormat)
}

// ExtractionError wraps a failure of every extraction strategy for a document.
func ExtractionError(method string, cause error) error {
	return &AppError{Code: "EXTRACTION_FAILED", Message: method, Cause: errors.Join(ErrExtractionFailed, cause)}
}

// ErrorCode returns the AppError code for err, or "" when err carries none.
func ErrorCode(err error) string {
	var ae *AppError
	if errors.As(err, &ae) {
		return ae.Code
	}
	return ""
}
