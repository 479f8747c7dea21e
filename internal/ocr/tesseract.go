package ocr

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os/exec"
	"strconv"
)

const (
	// DefaultLanguage is used when no language selector is configured.
	DefaultLanguage = "eng"

	// DefaultPSM is Tesseract's "sparse text" page segmentation mode, which
	// copes best with photos of labels and packaging where text is scattered.
	DefaultPSM = 11

	// DefaultOEM lets Tesseract pick the best engine available for the
	// installed language data.
	DefaultOEM = 3
)

// TesseractConfig configures the Tesseract CLI engine.
type TesseractConfig struct {
	Binary      string // binary name or absolute path; if empty -> "tesseract"
	PSM         int    // page segmentation mode; 0 leaves the engine default
	OEM         int    // 1 = LSTM; leave 0 to use default
	TessdataDir string
}

// TesseractRecognizer runs the tesseract binary once per image:
//
//	tesseract <file> stdout -l <lang> --psm <psm> [--oem <oem>] [--tessdata-dir <dir>]
type TesseractRecognizer struct {
	cfg    TesseractConfig
	runner Runner
}

// NewTesseractRecognizer creates a recognizer that executes the tesseract binary.
func NewTesseractRecognizer(cfg TesseractConfig) *TesseractRecognizer {
	return NewTesseractRecognizerWithRunner(cfg, ExecRunner{})
}

// NewTesseractRecognizerWithRunner creates a recognizer with an explicit runner (for testing).
func NewTesseractRecognizerWithRunner(cfg TesseractConfig, runner Runner) *TesseractRecognizer {
	if cfg.Binary == "" {
		cfg.Binary = "tesseract"
	}
	return &TesseractRecognizer{cfg: cfg, runner: runner}
}

func (t *TesseractRecognizer) Name() string { return EngineTesseract }

// Recognize implements Recognizer. Standard error output is returned as the
// diagnostic and never turns a successful run into a failure.
func (t *TesseractRecognizer) Recognize(ctx context.Context, path string, language string) (Recognition, error) {
	const op = "TesseractRecognize"

	if language == "" {
		language = DefaultLanguage
	}

	out, errb, err := t.runner.Run(ctx, t.cfg.Binary, t.args(path, language)...)
	if err != nil {
		return Recognition{Diagnostic: string(errb)}, NewOCRError(op, classifyExecError(ctx, err), err.Error())
	}

	return Recognition{Text: string(out), Diagnostic: string(errb)}, nil
}

func (t *TesseractRecognizer) args(path, language string) []string {
	args := []string{path, "stdout", "-l", language}
	if t.cfg.PSM > 0 {
		args = append(args, "--psm", strconv.Itoa(t.cfg.PSM))
	}
	if t.cfg.OEM > 0 {
		args = append(args, "--oem", strconv.Itoa(t.cfg.OEM))
	}
	if t.cfg.TessdataDir != "" {
		args = append(args, "--tessdata-dir", t.cfg.TessdataDir)
	}
	return args
}

// classifyExecError maps an os/exec failure onto the engine error sentinels.
func classifyExecError(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		return classifyContextError(ctx)
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		// ExitCode is -1 when the process was terminated by a signal.
		if exitErr.ExitCode() == -1 {
			return ErrEngineCrashed
		}
		return fmt.Errorf("%w: exit status %d", ErrEngineFailed, exitErr.ExitCode())
	}

	var pathErr *fs.PathError
	if errors.Is(err, exec.ErrNotFound) || errors.As(err, &pathErr) {
		return ErrEngineUnavailable
	}
	return fmt.Errorf("%w: %v", ErrEngineUnavailable, err)
}
