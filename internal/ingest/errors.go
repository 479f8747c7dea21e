package ingest

import (
	"errors"
	"fmt"
)

// Ingestion errors. Callers map them onto transport status codes with errors.Is.
var (
	// ErrMissingInput is returned when no image bytes were supplied.
	ErrMissingInput = errors.New("no image uploaded")

	// ErrImageTooLarge is returned when the image exceeds the configured size limit.
	ErrImageTooLarge = errors.New("image exceeds the maximum size limit")

	// ErrTempStorage is returned when the temporary artifact could not be written.
	ErrTempStorage = errors.New("temporary image storage failed")

	// ErrEngineInvocation is returned when the OCR engine could not be started,
	// crashed, failed, or timed out. The wrapped chain carries the ocr sentinel.
	ErrEngineInvocation = errors.New("OCR engine invocation failed")
)

// ProcessingError wraps errors with the ingestion step that produced them.
type ProcessingError struct {
	// Op is the step that failed (e.g., "WriteTempArtifact", "Recognize").
	Op string

	// Kind is one of the package sentinels.
	Kind error

	// Err is the underlying cause, if any.
	Err error
}

// Error implements the error interface.
func (e *ProcessingError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("ingest: %s: %v: %v", e.Op, e.Kind, e.Err)
	}
	return fmt.Sprintf("ingest: %s: %v", e.Op, e.Kind)
}

// Unwrap exposes both the sentinel and the cause to errors.Is / errors.As.
func (e *ProcessingError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

func newProcessingError(op string, kind, err error) *ProcessingError {
	return &ProcessingError{Op: op, Kind: kind, Err: err}
}
