package cmd

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"ocrpipe/internal/capture"
	"ocrpipe/internal/logger"
)

const defaultServerURL = "http://localhost:8080"

var captureCmd = &cobra.Command{
	Use:   "capture [image-files...]",
	Short: "Capture a batch of images and submit them to an OCR server",
	Long: `Collect images into a batch and send them to a running ocrpipe server,
one request per image, in the order they were captured.

Every file argument counts as one capture. With --interactive the command keeps
asking for more image paths on standard input; an empty line ends capturing.
A failed upload is reported for its image and does not stop the rest of the
batch.`,
	Example: `  # Submit three photos to a local server
  ocrpipe capture page1.jpg page2.jpg page3.jpg

  # Keep capturing paths until an empty line
  ocrpipe capture --interactive --server http://ocr.internal:8080

  # JSON output for scripting
  ocrpipe capture *.png --json`,
	RunE: runCapture,
}

// CaptureOutput is one element of the --json output.
type CaptureOutput struct {
	Index    int    `json:"index"`
	FileName string `json:"file_name"`
	Text     string `json:"text"`
	Error    string `json:"error,omitempty"`
	Failure  string `json:"failure,omitempty"`
}

func init() {
	rootCmd.AddCommand(captureCmd)

	captureCmd.Flags().String("server", "", "OCR server base URL (default: OCR_SERVER_URL or "+defaultServerURL+")")
	captureCmd.Flags().BoolP("interactive", "i", false, "Prompt for more image paths until an empty line")
	captureCmd.Flags().Bool("json", false, "Output as JSON")
}

func runCapture(cmd *cobra.Command, args []string) error {
	log := logger.WithComponent("capture")

	serverURL, _ := cmd.Flags().GetString("server")
	interactive, _ := cmd.Flags().GetBool("interactive")
	jsonOutput, _ := cmd.Flags().GetBool("json")

	// The client needs no engine settings, so a failed config load only
	// matters for the server URL.
	if serverURL == "" && appConfig != nil {
		serverURL = appConfig.ServerURL
	}
	if serverURL == "" {
		serverURL = defaultServerURL
	}

	if len(args) == 0 && !interactive {
		return fmt.Errorf("no images given. Pass image paths or use --interactive")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logger.WithContext(ctx, log)

	agg := capture.NewAggregator(capture.NewHTTPUploader(serverURL, nil))

	for _, path := range args {
		captureOne(ctx, agg, path, log)
	}
	if interactive {
		if err := promptCaptures(ctx, agg, os.Stdin, os.Stderr, log); err != nil {
			return err
		}
	}

	if err := agg.Done(); err != nil {
		if errors.Is(err, capture.ErrEmptyBatch) {
			return fmt.Errorf("nothing was captured")
		}
		return err
	}

	log.Info().
		Str("server", serverURL).
		Int("images", agg.Len()).
		Msg("Processing captured batch")

	outcomes, err := agg.Process(ctx)
	if printErr := printOutcomes(os.Stdout, outcomes, jsonOutput); printErr != nil {
		return printErr
	}
	if err != nil {
		return fmt.Errorf("batch interrupted: %w", err)
	}

	for _, o := range outcomes {
		if o.Err != nil {
			return fmt.Errorf("one or more images failed")
		}
	}
	return nil
}

// captureOne adds a single file to the batch; failures are reported and
// skipped so the remaining captures still go through.
func captureOne(ctx context.Context, agg *capture.Aggregator, path string, log zerolog.Logger) {
	if err := agg.Capture(ctx, capture.FileCamera{Path: path}); err != nil {
		log.Warn().Err(err).Str("file", path).Msg("Capture failed, skipping image")
		fmt.Fprintf(os.Stderr, "skipping %s: %v\n", path, err)
		return
	}
	log.Debug().Str("file", path).Int("batch_size", agg.Len()).Msg("Image captured")
}

// promptCaptures reads one image path per line until an empty line or EOF.
func promptCaptures(ctx context.Context, agg *capture.Aggregator, in io.Reader, prompt io.Writer, log zerolog.Logger) error {
	scanner := bufio.NewScanner(in)
	for {
		fmt.Fprintf(prompt, "image %d path (empty line when done): ", agg.Len()+1)
		if !scanner.Scan() {
			fmt.Fprintln(prompt)
			break
		}
		path := strings.TrimSpace(scanner.Text())
		if path == "" {
			break
		}
		captureOne(ctx, agg, path, log)
		if err := ctx.Err(); err != nil {
			return err
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("read input: %w", err)
	}
	return nil
}

func printOutcomes(w io.Writer, outcomes []capture.Outcome, jsonOutput bool) error {
	if jsonOutput {
		out := make([]CaptureOutput, 0, len(outcomes))
		for _, o := range outcomes {
			co := CaptureOutput{
				Index:    o.Index,
				FileName: o.Filename,
				Text:     o.Result.Text,
				Error:    o.Result.Error,
			}
			if o.Err != nil {
				co.Failure = o.Err.Error()
			}
			out = append(out, co)
		}
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if err := enc.Encode(out); err != nil {
			return fmt.Errorf("failed to write JSON output: %w", err)
		}
		return nil
	}

	for _, o := range outcomes {
		if o.Err != nil {
			fmt.Fprintf(w, "=== [%d] %s: FAILED ===\n%v\n\n", o.Index+1, o.Filename, o.Err)
			continue
		}
		fmt.Fprintf(w, "=== [%d] %s ===\n%s\n", o.Index+1, o.Filename, o.Result.Text)
		if o.Result.Error != "" {
			fmt.Fprintf(w, "(engine diagnostics: %s)\n", strings.ReplaceAll(o.Result.Error, "\n", " | "))
		}
		fmt.Fprintln(w)
	}
	return nil
}
