package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"ocrpipe/internal/config"
	"ocrpipe/internal/logger"
)

var version = "1.0.0"

// appConfig is loaded once in main and shared by every subcommand.
var (
	appConfig    *config.Config
	appConfigErr error
)

var rootCmd = &cobra.Command{
	Use:   "ocrpipe",
	Short: "ocrpipe - image OCR ingestion server and capture client",
	Long: `ocrpipe extracts text from photographed or scanned images.

The server accepts one image per request on POST /api/ocr, hands it to an OCR
engine (the Tesseract CLI by default, or Google Cloud Vision / Document AI) and
returns the recognized text. The capture client collects any number of images
and submits them to the server one at a time, in capture order.`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command with the configuration loaded by main.
func Execute(cfg *config.Config, cfgErr error) {
	log := logger.WithComponent("cmd")
	appConfig, appConfigErr = cfg, cfgErr

	if err := rootCmd.Execute(); err != nil {
		log.Error().
			Err(err).
			Msg("Command execution failed")
		fmt.Fprintf(os.Stderr, "Error executing command: %v\n", err)
		os.Exit(1)
	}
}

// requireConfig returns the loaded configuration or the reason it failed.
func requireConfig() (*config.Config, error) {
	if appConfig == nil {
		if appConfigErr != nil {
			return nil, appConfigErr
		}
		return nil, fmt.Errorf("configuration not loaded")
	}
	return appConfig, nil
}
