package ocr

import (
	"errors"
	"fmt"
)

// Common OCR engine errors
var (
	// ErrEngineUnavailable is returned when the engine process could not be started,
	// typically because the binary is missing or not executable.
	ErrEngineUnavailable = errors.New("OCR engine could not be started")

	// ErrEngineCrashed is returned when the engine process was terminated by a signal.
	ErrEngineCrashed = errors.New("OCR engine crashed")

	// ErrEngineFailed is returned when the engine exited with a non-zero status
	// or a cloud API rejected the request.
	ErrEngineFailed = errors.New("OCR engine failed")

	// ErrEngineTimeout is returned when the engine did not finish before the deadline.
	ErrEngineTimeout = errors.New("OCR engine timed out")

	// ErrMissingCredentials is returned when a cloud engine has no Google Cloud credentials.
	ErrMissingCredentials = errors.New("missing Google Cloud credentials: set GOOGLE_APPLICATION_CREDENTIALS or GOOGLE_CREDENTIALS environment variable")

	// ErrUnknownEngine is returned by NewRecognizer for an unsupported engine name.
	ErrUnknownEngine = errors.New("unknown OCR engine")

	// ErrInvalidConfiguration is returned when an engine is missing required settings.
	ErrInvalidConfiguration = errors.New("invalid OCR engine configuration")

	// ErrImageUnreadable is returned when the input file cannot be read.
	ErrImageUnreadable = errors.New("image file could not be read")
)

// OCRError wraps errors with additional context about the OCR processing failure.
type OCRError struct {
	// Op is the operation that failed (e.g., "Recognize", "NewVisionRecognizer").
	Op string

	// Err is the underlying error.
	Err error

	// Details provides additional context about the failure.
	Details string
}

// Error implements the error interface.
func (e *OCRError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("ocr: %s failed: %s: %v", e.Op, e.Details, e.Err)
	}
	return fmt.Sprintf("ocr: %s failed: %v", e.Op, e.Err)
}

// Unwrap returns the underlying error for error unwrapping.
func (e *OCRError) Unwrap() error {
	return e.Err
}

// Is implements error matching for Go 1.13+ error handling.
func (e *OCRError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// NewOCRError creates a new OCRError with the specified operation and underlying error.
func NewOCRError(op string, err error, details string) *OCRError {
	return &OCRError{
		Op:      op,
		Err:     err,
		Details: details,
	}
}

// WrapOCRError wraps an error as an OCRError if it isn't already one.
func WrapOCRError(op string, err error, details string) error {
	if err == nil {
		return nil
	}

	var ocrErr *OCRError
	if errors.As(err, &ocrErr) {
		return err // Already wrapped
	}

	return NewOCRError(op, err, details)
}
