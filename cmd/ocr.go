package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"ocrpipe/internal/capture"
	"ocrpipe/internal/ingest"
	"ocrpipe/internal/logger"
	"ocrpipe/internal/ocr"
)

var ocrCmd = &cobra.Command{
	Use:   "ocr [image-file]",
	Short: "Extract text from one image with the configured OCR engine",
	Long: `Run the ingestion pipeline locally against a single image file, without
starting the HTTP server. The image goes through exactly the same steps as an
upload: temporary copy, engine invocation, cleanup.

Engine diagnostics (Tesseract's standard error) are shown with --metadata or
included in --json output; they do not make the command fail.`,
	Example: `  # Extract text from a photo to stdout
  ocrpipe ocr label.jpg

  # Thai text, JSON output saved to a file
  ocrpipe ocr label.jpg --lang tha --json -o result.json

  # Include metadata and a longer timeout
  ocrpipe ocr scan.png --metadata --timeout 180`,
	Args: cobra.ExactArgs(1),
	RunE: runOCR,
}

// OCROutput represents the JSON output structure when --json flag is used
type OCROutput struct {
	Text               string    `json:"text"`
	Error              string    `json:"error,omitempty"`
	Engine             string    `json:"engine"`
	Language           string    `json:"language"`
	ProcessedAt        time.Time `json:"processed_at"`
	ProcessingDuration string    `json:"processing_duration"`
	FileName           string    `json:"file_name"`
	FileSize           int64     `json:"file_size"`
}

func init() {
	rootCmd.AddCommand(ocrCmd)

	ocrCmd.Flags().StringP("output", "o", "", "Output file path (default: stdout)")
	ocrCmd.Flags().BoolP("metadata", "m", false, "Include metadata in output")
	ocrCmd.Flags().Bool("json", false, "Output as JSON")
	ocrCmd.Flags().Int("timeout", 120, "Processing timeout in seconds")
	ocrCmd.Flags().String("lang", "", "OCR language selector (overrides OCR_LANGUAGE)")
}

func runOCR(cmd *cobra.Command, args []string) error {
	log := logger.WithComponent("ocr")

	outputPath, _ := cmd.Flags().GetString("output")
	includeMetadata, _ := cmd.Flags().GetBool("metadata")
	jsonOutput, _ := cmd.Flags().GetBool("json")
	timeoutSecs, _ := cmd.Flags().GetInt("timeout")
	lang, _ := cmd.Flags().GetString("lang")

	cfg, err := requireConfig()
	if err != nil {
		return err
	}
	if lang != "" {
		cfg.Language = lang
	}

	imagePath := args[0]

	log.Info().
		Str("file", imagePath).
		Str("output", outputPath).
		Str("engine", cfg.Engine).
		Str("language", cfg.Language).
		Int("timeout", timeoutSecs).
		Msg("Starting OCR processing")

	fileInfo, err := validateImageFile(imagePath, cfg.MaxImageBytes, log)
	if err != nil {
		return err
	}

	ctx, cancel := createContextWithTimeout(timeoutSecs, log)
	defer cancel()

	svc, closeEngine, err := buildIngestService(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer closeEngine()

	blob, err := capture.FileCamera{Path: imagePath}.Capture(ctx)
	if err != nil {
		return fmt.Errorf("failed to read image file: %w", err)
	}

	startTime := time.Now()
	result, err := svc.ProcessImage(ctx, blob)
	if err != nil {
		return handleOCRError(err, log)
	}
	processingDuration := time.Since(startTime)

	log.Info().
		Dur("duration", processingDuration).
		Int("text_length", len(result.Text)).
		Bool("diagnostic", result.HasDiagnostic()).
		Msg("OCR processing completed successfully")

	out := OCROutput{
		Text:               result.Text,
		Error:              result.Error,
		Engine:             svc.EngineName(),
		Language:           cfg.Language,
		ProcessedAt:        time.Now(),
		ProcessingDuration: processingDuration.String(),
		FileName:           filepath.Base(fileInfo.Name()),
		FileSize:           fileInfo.Size(),
	}
	return outputResults(out, outputPath, jsonOutput, includeMetadata, log)
}

// validateImageFile checks that the file exists, is a regular non-empty file,
// and is within the upload size limit
func validateImageFile(imagePath string, maxBytes int64, log zerolog.Logger) (os.FileInfo, error) {
	fileInfo, err := os.Stat(imagePath)
	if err != nil {
		if os.IsNotExist(err) {
			log.Error().Str("file", imagePath).Msg("Image file not found")
			return nil, fmt.Errorf("image file not found: %s", imagePath)
		}
		if os.IsPermission(err) {
			log.Error().Str("file", imagePath).Msg("Permission denied accessing image file")
			return nil, fmt.Errorf("permission denied accessing image file: %s", imagePath)
		}
		return nil, fmt.Errorf("error accessing image file: %w", err)
	}

	if !fileInfo.Mode().IsRegular() {
		log.Error().Str("file", imagePath).Msg("Path is not a regular file")
		return nil, fmt.Errorf("path is not a regular file: %s", imagePath)
	}

	if fileInfo.Size() == 0 {
		log.Error().Str("file", imagePath).Msg("Image file is empty")
		return nil, fmt.Errorf("image file is empty: %s", imagePath)
	}

	if fileInfo.Size() > maxBytes {
		log.Error().
			Str("file", imagePath).
			Int64("size", fileInfo.Size()).
			Int64("max_size", maxBytes).
			Msg("Image file exceeds maximum size limit")
		return nil, fmt.Errorf("image file too large (%d bytes). Maximum size is %d bytes", fileInfo.Size(), maxBytes)
	}

	return fileInfo, nil
}

// createContextWithTimeout creates a context with timeout and signal handling
func createContextWithTimeout(timeoutSecs int, log zerolog.Logger) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(timeoutSecs)*time.Second)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		defer signal.Stop(sigChan)
		select {
		case sig := <-sigChan:
			log.Info().
				Str("signal", sig.String()).
				Msg("Received interrupt signal, canceling OCR processing")
			cancel()
		case <-ctx.Done():
		}
	}()

	return ctx, cancel
}

// handleOCRError provides user-friendly error messages for OCR failures
func handleOCRError(err error, log zerolog.Logger) error {
	log.Error().Err(err).Msg("OCR processing failed")

	switch {
	case errors.Is(err, ingest.ErrMissingInput):
		return fmt.Errorf("the image file contains no data")
	case errors.Is(err, ingest.ErrImageTooLarge):
		return fmt.Errorf("image is too large. Set OCR_MAX_IMAGE_BYTES to raise the limit")
	case errors.Is(err, ingest.ErrTempStorage):
		return fmt.Errorf("could not write the temporary image copy. Check TEMP_DIR and free disk space: %w", err)
	case errors.Is(err, ocr.ErrEngineUnavailable):
		return fmt.Errorf("OCR engine could not be started. Is tesseract installed and on PATH (or TESSERACT_PATH set)?")
	case errors.Is(err, ocr.ErrEngineTimeout), errors.Is(err, context.DeadlineExceeded):
		return fmt.Errorf("OCR processing timed out. Try increasing --timeout or OCR_TIMEOUT")
	case errors.Is(err, context.Canceled):
		return fmt.Errorf("OCR processing was canceled")
	case errors.Is(err, ocr.ErrEngineCrashed):
		return fmt.Errorf("OCR engine crashed while processing the image")
	case errors.Is(err, ocr.ErrEngineFailed):
		return fmt.Errorf("OCR engine rejected the image. It may be corrupted or in an unsupported format, or the language data for %q may be missing: %w", appConfig.Language, err)
	default:
		return fmt.Errorf("OCR processing failed: %w", err)
	}
}

// outputResults formats and outputs the OCR results
func outputResults(result OCROutput, outputPath string, jsonOutput, includeMetadata bool, log zerolog.Logger) error {
	var outputData []byte

	if jsonOutput {
		data, err := json.MarshalIndent(result, "", "  ")
		if err != nil {
			log.Error().Err(err).Msg("Failed to marshal JSON output")
			return fmt.Errorf("failed to create JSON output: %w", err)
		}
		outputData = data
	} else {
		var output strings.Builder
		if includeMetadata {
			output.WriteString(fmt.Sprintf("=== OCR Results for %s ===\n", result.FileName))
			output.WriteString(fmt.Sprintf("File size: %d bytes\n", result.FileSize))
			output.WriteString(fmt.Sprintf("Engine: %s (%s)\n", result.Engine, result.Language))
			output.WriteString(fmt.Sprintf("Processing time: %s\n", result.ProcessingDuration))
			output.WriteString(fmt.Sprintf("Processed at: %s\n", result.ProcessedAt.Format(time.RFC3339)))
			if result.Error != "" {
				output.WriteString(fmt.Sprintf("Engine diagnostics:\n%s\n", result.Error))
			}
			output.WriteString("\n=== Extracted Text ===\n\n")
		}
		output.WriteString(result.Text)
		outputData = []byte(output.String())
	}

	if outputPath != "" {
		if err := os.WriteFile(outputPath, outputData, 0644); err != nil {
			log.Error().
				Err(err).
				Str("output_file", outputPath).
				Msg("Failed to write output file")
			return fmt.Errorf("failed to write output file: %w", err)
		}

		log.Info().
			Str("output_file", outputPath).
			Int("bytes", len(outputData)).
			Msg("OCR results written to file")
		return nil
	}

	if _, err := os.Stdout.Write(outputData); err != nil {
		log.Error().Err(err).Msg("Failed to write to stdout")
		return fmt.Errorf("failed to write output: %w", err)
	}
	if !jsonOutput {
		fmt.Println()
	}
	return nil
}
