// Package ocr provides OCR (Optical Character Recognition) engines behind a
// single narrow interface.
//
// The default engine runs the Tesseract command-line tool as a child process
// against an image file and reads the recognized text from its standard output.
// Two Google Cloud engines are also available for deployments without a local
// Tesseract install:
//   - vision: Cloud Vision DOCUMENT_TEXT_DETECTION on the image bytes
//   - documentai: a Document AI OCR processor on the raw image bytes
//
// Engines always receive a file path because the Tesseract CLI reads its input
// from disk; the cloud engines read the same file before calling the API.
//
// Required Environment Variables (cloud engines only):
//   - GOOGLE_APPLICATION_CREDENTIALS: Path to service account JSON file, OR
//   - GOOGLE_CREDENTIALS: Inline JSON credentials string
//   - GOOGLE_CLOUD_PROJECT, DOCUMENT_AI_PROCESSOR_ID: documentai engine
package ocr

import (
	"context"
)

// Recognizer turns one image file into text.
type Recognizer interface {
	// Name identifies the engine in logs and health output.
	Name() string

	// Recognize reads the image at path and returns the recognized text.
	// language is an engine language/script selector such as "eng" or "tha".
	// A populated Recognition.Diagnostic is not an error.
	Recognize(ctx context.Context, path string, language string) (Recognition, error)
}

// Recognition is the raw output of one engine call.
type Recognition struct {
	// Text is the engine's recognized text, untrimmed.
	Text string

	// Diagnostic holds whatever the engine reported besides the text, for
	// Tesseract its standard error stream. It is frequently warning noise
	// such as "Estimating resolution as 300".
	Diagnostic string
}
