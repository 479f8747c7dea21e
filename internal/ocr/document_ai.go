package ocr

import (
	"context"
	"fmt"
	"net/http"
	"os"

	documentai "cloud.google.com/go/documentai/apiv1"
	"cloud.google.com/go/documentai/apiv1/documentaipb"
	"github.com/googleapis/gax-go/v2"
	"google.golang.org/api/option"
)

// DocumentAIConfig holds Document AI OCR processor configuration.
type DocumentAIConfig struct {
	ProjectID   string
	Location    string // "us" or "eu"
	ProcessorID string // an OCR processor ("Document OCR")
}

// ProcessorName returns the fully qualified processor resource name.
func (c DocumentAIConfig) ProcessorName() string {
	return fmt.Sprintf("projects/%s/locations/%s/processors/%s", c.ProjectID, c.Location, c.ProcessorID)
}

// documentProcessor is the subset of the Document AI client used here.
type documentProcessor interface {
	ProcessDocument(ctx context.Context, req *documentaipb.ProcessRequest, opts ...gax.CallOption) (*documentaipb.ProcessResponse, error)
	Close() error
}

// DocumentAIRecognizer implements Recognizer using a Document AI OCR processor.
type DocumentAIRecognizer struct {
	client documentProcessor
	config DocumentAIConfig
}

// NewDocumentAIRecognizer creates a recognizer with credentials from environment.
func NewDocumentAIRecognizer(ctx context.Context, config DocumentAIConfig) (*DocumentAIRecognizer, error) {
	const op = "NewDocumentAIRecognizer"

	if config.ProjectID == "" || config.ProcessorID == "" {
		return nil, NewOCRError(op, ErrInvalidConfiguration, "project and processor id are required")
	}
	if config.Location == "" {
		config.Location = "us"
	}

	clientOptions := googleClientOptions()
	hasCredentials := len(clientOptions) > 0

	// Set regional endpoint if not us
	if config.Location != "us" {
		endpoint := fmt.Sprintf("%s-documentai.googleapis.com:443", config.Location)
		clientOptions = append(clientOptions, option.WithEndpoint(endpoint))
	}

	client, err := documentai.NewDocumentProcessorClient(ctx, clientOptions...)
	if err != nil {
		if !hasCredentials {
			return nil, WrapOCRError(op, ErrMissingCredentials, "no credentials found in environment")
		}
		return nil, WrapOCRError(op, err, fmt.Sprintf("failed to create Document AI client for location: %s", config.Location))
	}

	return &DocumentAIRecognizer{client: client, config: config}, nil
}

// NewDocumentAIRecognizerWithClient creates a recognizer with an explicit client (for testing).
func NewDocumentAIRecognizerWithClient(config DocumentAIConfig, client documentProcessor) *DocumentAIRecognizer {
	return &DocumentAIRecognizer{client: client, config: config}
}

func (d *DocumentAIRecognizer) Name() string { return EngineDocumentAI }

// Recognize implements Recognizer by sending the file as a raw document.
func (d *DocumentAIRecognizer) Recognize(ctx context.Context, path string, language string) (Recognition, error) {
	const op = "DocumentAIRecognize"

	content, err := os.ReadFile(path)
	if err != nil {
		return Recognition{}, NewOCRError(op, ErrImageUnreadable, err.Error())
	}

	req := &documentaipb.ProcessRequest{
		Name: d.config.ProcessorName(),
		Source: &documentaipb.ProcessRequest_RawDocument{
			RawDocument: &documentaipb.RawDocument{
				Content:  content,
				MimeType: http.DetectContentType(content),
			},
		},
		ProcessOptions: &documentaipb.ProcessOptions{
			OcrConfig: &documentaipb.OcrConfig{
				Hints: &documentaipb.OcrConfig_Hints{
					LanguageHints: LanguageHints(language),
				},
			},
		},
	}

	resp, err := d.client.ProcessDocument(ctx, req)
	if err != nil {
		if ctx.Err() != nil {
			return Recognition{}, NewOCRError(op, classifyContextError(ctx), err.Error())
		}
		return Recognition{}, NewOCRError(op, ErrEngineFailed, fmt.Sprintf("Document AI call failed: %v", err))
	}
	if resp.GetDocument() == nil {
		return Recognition{}, NewOCRError(op, ErrEngineFailed, "no document in response")
	}

	doc := resp.GetDocument()
	var diagnostic string
	if doc.GetError() != nil && doc.GetError().GetCode() != 0 {
		// Partial results come back with the document-level status set.
		diagnostic = doc.GetError().GetMessage()
	}

	return Recognition{Text: doc.GetText(), Diagnostic: diagnostic}, nil
}

// Close closes the underlying Document AI client.
func (d *DocumentAIRecognizer) Close() error {
	if d.client != nil {
		return d.client.Close()
	}
	return nil
}
