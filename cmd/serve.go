package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"ocrpipe/internal/config"
	"ocrpipe/internal/httpapi"
	"ocrpipe/internal/ingest"
	"ocrpipe/internal/logger"
	"ocrpipe/internal/ocr"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the OCR ingestion HTTP server",
	Long: `Start the HTTP server exposing POST /api/ocr.

Each request carries one image in the multipart field "image". The image is
written to a uniquely named temporary file, recognized by the configured OCR
engine, and the temporary file is deleted before the response is sent.

Relevant environment variables:
  OCR_ENGINE          - tesseract (default), vision, or documentai
  OCR_LANGUAGE        - language/script selector, e.g. eng, tha, eng+tha
  OCR_PSM             - Tesseract page segmentation mode (default 11)
  OCR_TIMEOUT         - per-image engine timeout (default 60s)
  OCR_MAX_CONCURRENT  - simultaneous engine processes (default 4)
  HTTP_ADDR           - listen address (default :8080)`,
	Example: `  # Serve with Tesseract and Thai language data
  OCR_LANGUAGE=tha ocrpipe serve

  # Serve on a different port
  ocrpipe serve --addr :9090`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().String("addr", "", "Listen address (overrides HTTP_ADDR)")
	serveCmd.Flags().String("lang", "", "OCR language selector (overrides OCR_LANGUAGE)")
}

func runServe(cmd *cobra.Command, args []string) error {
	log := logger.WithComponent("serve")

	cfg, err := requireConfig()
	if err != nil {
		return err
	}
	if addr, _ := cmd.Flags().GetString("addr"); addr != "" {
		cfg.HTTPAddr = addr
	}
	if lang, _ := cmd.Flags().GetString("lang"); lang != "" {
		cfg.Language = lang
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	svc, closeEngine, err := buildIngestService(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer closeEngine()

	log.Info().
		Str("engine", svc.EngineName()).
		Str("language", cfg.Language).
		Str("addr", cfg.HTTPAddr).
		Int("max_concurrent", cfg.MaxConcurrent).
		Dur("engine_timeout", cfg.EngineTimeout).
		Msg("Starting OCR server")

	server := httpapi.NewServer(cfg.GetServerConfig(), svc)
	if err := server.ListenAndServe(ctx); err != nil {
		return fmt.Errorf("http server: %w", err)
	}

	log.Info().Msg("OCR server stopped")
	return nil
}

// buildIngestService creates the configured engine and wraps it in an
// ingestion service. The returned func releases engine resources.
func buildIngestService(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*ingest.Service, func(), error) {
	recognizer, err := ocr.NewRecognizer(ctx, cfg.GetEngineConfig())
	if err != nil {
		log.Error().Err(err).Str("engine", cfg.Engine).Msg("Failed to create OCR engine")
		return nil, nil, fmt.Errorf("failed to create OCR engine: %w", err)
	}

	closeEngine := func() {
		if err := ocr.Close(recognizer); err != nil {
			log.Warn().Err(err).Msg("Failed to close OCR engine")
		}
	}
	return ingest.NewService(recognizer, cfg.GetIngestConfig()), closeEngine, nil
}
