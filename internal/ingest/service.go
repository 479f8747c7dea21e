// Package ingest turns one uploaded image into one OCR result.
//
// Every call writes the image to a uniquely named temporary file, runs the
// configured OCR engine against it, and deletes the file before returning,
// whether the engine succeeded, failed, timed out, or panicked. Engine
// diagnostic output (Tesseract's standard error) is returned alongside the
// text and is never treated as a failure.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/semaphore"

	"ocrpipe/internal/logger"
	"ocrpipe/internal/ocr"
	"ocrpipe/pkg/models"
)

const (
	// DefaultEngineTimeout bounds a single engine call.
	DefaultEngineTimeout = 60 * time.Second

	// DefaultMaxConcurrent bounds simultaneous engine calls.
	DefaultMaxConcurrent = 4

	// DefaultMaxImageBytes is the largest accepted image (20MB).
	DefaultMaxImageBytes = 20 * 1024 * 1024
)

// Config holds ingestion settings.
type Config struct {
	Language      string        // engine language/script selector, e.g. "tha"
	TempDir       string        // temp artifact directory; empty -> os.TempDir()
	EngineTimeout time.Duration // per-call engine deadline
	MaxConcurrent int           // concurrency gate width
	MaxImageBytes int64         // size limit
}

// Service implements ProcessImage on top of an ocr.Recognizer.
type Service struct {
	recognizer ocr.Recognizer
	cfg        Config
	gate       *semaphore.Weighted
}

// NewService creates an ingestion service. Zero config fields take defaults.
func NewService(recognizer ocr.Recognizer, cfg Config) *Service {
	if cfg.Language == "" {
		cfg.Language = ocr.DefaultLanguage
	}
	if cfg.EngineTimeout <= 0 {
		cfg.EngineTimeout = DefaultEngineTimeout
	}
	if cfg.MaxConcurrent <= 0 {
		cfg.MaxConcurrent = DefaultMaxConcurrent
	}
	if cfg.MaxImageBytes <= 0 {
		cfg.MaxImageBytes = DefaultMaxImageBytes
	}
	return &Service{
		recognizer: recognizer,
		cfg:        cfg,
		gate:       semaphore.NewWeighted(int64(cfg.MaxConcurrent)),
	}
}

// EngineName reports the configured engine.
func (s *Service) EngineName() string {
	return s.recognizer.Name()
}

// MaxImageBytes reports the configured size limit.
func (s *Service) MaxImageBytes() int64 {
	return s.cfg.MaxImageBytes
}

// ProcessImage recognizes the text in blob.
//
// A non-empty OCRResult.Error is engine diagnostic output, not a failure.
// Returned errors match ErrMissingInput, ErrImageTooLarge, ErrTempStorage or
// ErrEngineInvocation under errors.Is.
func (s *Service) ProcessImage(ctx context.Context, blob models.ImageBlob) (models.OCRResult, error) {
	log := s.requestLogger(ctx)

	if blob.IsEmpty() {
		return models.OCRResult{}, newProcessingError("Validate", ErrMissingInput, nil)
	}
	if blob.Size() > s.cfg.MaxImageBytes {
		return models.OCRResult{}, newProcessingError("Validate", ErrImageTooLarge,
			fmt.Errorf("%d bytes exceeds %d", blob.Size(), s.cfg.MaxImageBytes))
	}

	if err := s.gate.Acquire(ctx, 1); err != nil {
		return models.OCRResult{}, newProcessingError("AcquireSlot", ErrEngineInvocation, err)
	}
	defer s.gate.Release(1)

	art, err := writeTempArtifact(s.cfg.TempDir, blob.Filename, blob.Data)
	if err != nil {
		log.Error().Err(err).Msg("failed to write temp artifact")
		return models.OCRResult{}, newProcessingError("WriteTempArtifact", ErrTempStorage, err)
	}
	defer s.cleanup(log, art)

	start := time.Now()
	rec, err := s.recognize(ctx, art.Path())
	dur := time.Since(start)
	if err != nil {
		log.Error().
			Err(err).
			Str("engine", s.recognizer.Name()).
			Str("filename", blob.Filename).
			Int64("duration_ms", dur.Milliseconds()).
			Msg("OCR engine invocation failed")
		return models.OCRResult{}, newProcessingError("Recognize", ErrEngineInvocation, err)
	}

	result := models.OCRResult{
		Text:  strings.TrimSpace(rec.Text),
		Error: strings.TrimSpace(rec.Diagnostic),
	}

	log.Info().
		Str("engine", s.recognizer.Name()).
		Str("filename", blob.Filename).
		Int64("bytes", blob.Size()).
		Int("text_length", len(result.Text)).
		Bool("diagnostic", result.HasDiagnostic()).
		Int64("duration_ms", dur.Milliseconds()).
		Msg("image processed")

	return result, nil
}

// recognize runs the engine under the configured timeout and converts a panic
// into an error so the deferred cleanup still sees a normal return.
func (s *Service) recognize(ctx context.Context, path string) (rec ocr.Recognition, err error) {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.EngineTimeout)
	defer cancel()

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: panic: %v", ocr.ErrEngineCrashed, r)
		}
	}()

	rec, err = s.recognizer.Recognize(ctx, path, s.cfg.Language)
	if err == nil && errors.Is(ctx.Err(), context.DeadlineExceeded) {
		// The engine ignored the deadline; its output is not trusted.
		err = ocr.ErrEngineTimeout
	}
	return rec, err
}

func (s *Service) cleanup(log *zerolog.Logger, art *tempArtifact) {
	if err := art.Remove(); err != nil {
		log.Warn().Err(err).Str("path", art.Path()).Msg("failed to remove temp artifact")
	}
}

func (s *Service) requestLogger(ctx context.Context) *zerolog.Logger {
	l := logger.FromContext(ctx).With().Str("component", "ingest").Logger()
	return &l
}
