package ocr

import (
	"context"
	"fmt"
	"io"
)

// Engine names accepted by NewRecognizer.
const (
	EngineTesseract  = "tesseract"
	EngineVision     = "vision"
	EngineDocumentAI = "documentai"
)

// EngineConfig selects and configures one engine.
type EngineConfig struct {
	Engine     string
	Tesseract  TesseractConfig
	DocumentAI DocumentAIConfig
}

// NewRecognizer builds the engine named in cfg. Recognizers holding network
// clients also implement io.Closer; use Close to release them.
func NewRecognizer(ctx context.Context, cfg EngineConfig) (Recognizer, error) {
	switch cfg.Engine {
	case "", EngineTesseract:
		return NewTesseractRecognizer(cfg.Tesseract), nil
	case EngineVision:
		r, err := NewVisionRecognizer(ctx)
		if err != nil {
			return nil, err
		}
		return r, nil
	case EngineDocumentAI:
		r, err := NewDocumentAIRecognizer(ctx, cfg.DocumentAI)
		if err != nil {
			return nil, err
		}
		return r, nil
	default:
		return nil, NewOCRError("NewRecognizer", ErrUnknownEngine, fmt.Sprintf("engine %q", cfg.Engine))
	}
}

// Close releases r if it holds resources.
func Close(r Recognizer) error {
	if c, ok := r.(io.Closer); ok {
		return c.Close()
	}
	return nil
}
