package ocr

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	vision "cloud.google.com/go/vision/v2/apiv1"
	"cloud.google.com/go/vision/v2/apiv1/visionpb"
	"github.com/googleapis/gax-go/v2"
	"google.golang.org/api/option"
)

// imageAnnotator is the subset of the Vision client used here.
type imageAnnotator interface {
	BatchAnnotateImages(ctx context.Context, req *visionpb.BatchAnnotateImagesRequest, opts ...gax.CallOption) (*visionpb.BatchAnnotateImagesResponse, error)
	Close() error
}

// VisionRecognizer implements Recognizer using Google Cloud Vision API.
type VisionRecognizer struct {
	client imageAnnotator
}

// NewVisionRecognizer creates a Vision recognizer with credentials from environment.
// It expects either GOOGLE_APPLICATION_CREDENTIALS path or GOOGLE_CREDENTIALS JSON in env.
func NewVisionRecognizer(ctx context.Context) (*VisionRecognizer, error) {
	const op = "NewVisionRecognizer"

	client, err := vision.NewImageAnnotatorClient(ctx, googleClientOptions()...)
	if err != nil {
		if len(googleClientOptions()) == 0 {
			return nil, WrapOCRError(op, ErrMissingCredentials, "no credentials found in environment")
		}
		return nil, WrapOCRError(op, err, "failed to create Vision client")
	}

	return &VisionRecognizer{client: client}, nil
}

// NewVisionRecognizerWithClient creates a recognizer with an explicit client (for testing).
func NewVisionRecognizerWithClient(client imageAnnotator) *VisionRecognizer {
	return &VisionRecognizer{client: client}
}

func (v *VisionRecognizer) Name() string { return EngineVision }

// Recognize implements Recognizer using DOCUMENT_TEXT_DETECTION, which handles
// dense and sparse layouts better than plain TEXT_DETECTION.
func (v *VisionRecognizer) Recognize(ctx context.Context, path string, language string) (Recognition, error) {
	const op = "VisionRecognize"

	content, err := os.ReadFile(path)
	if err != nil {
		return Recognition{}, NewOCRError(op, ErrImageUnreadable, err.Error())
	}

	req := &visionpb.BatchAnnotateImagesRequest{
		Requests: []*visionpb.AnnotateImageRequest{
			{
				Image: &visionpb.Image{Content: content},
				Features: []*visionpb.Feature{
					{Type: visionpb.Feature_DOCUMENT_TEXT_DETECTION},
				},
				ImageContext: &visionpb.ImageContext{
					LanguageHints: LanguageHints(language),
				},
			},
		},
	}

	resp, err := v.client.BatchAnnotateImages(ctx, req)
	if err != nil {
		if ctx.Err() != nil {
			return Recognition{}, NewOCRError(op, classifyContextError(ctx), err.Error())
		}
		return Recognition{}, NewOCRError(op, ErrEngineFailed, fmt.Sprintf("Vision API call failed: %v", err))
	}
	if len(resp.GetResponses()) == 0 {
		return Recognition{}, NewOCRError(op, ErrEngineFailed, "no response from Vision API")
	}

	imageResp := resp.GetResponses()[0]
	if imageResp.GetError() != nil && imageResp.GetError().GetCode() != 0 {
		return Recognition{}, NewOCRError(op, ErrEngineFailed, fmt.Sprintf("Vision API error: %s", imageResp.GetError().GetMessage()))
	}

	return Recognition{Text: imageResp.GetFullTextAnnotation().GetText()}, nil
}

// Close closes the underlying Vision client.
func (v *VisionRecognizer) Close() error {
	if v.client != nil {
		return v.client.Close()
	}
	return nil
}

// googleClientOptions builds credential options from the environment. An empty
// result means Application Default Credentials will be tried.
func googleClientOptions() []option.ClientOption {
	if credJSON := os.Getenv("GOOGLE_CREDENTIALS"); credJSON != "" {
		return []option.ClientOption{option.WithCredentialsJSON([]byte(credJSON))}
	}
	if credFile := os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"); credFile != "" {
		return []option.ClientOption{option.WithCredentialsFile(credFile)}
	}
	return nil
}

func classifyContextError(ctx context.Context) error {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return ErrEngineTimeout
	}
	return ctx.Err()
}

// tesseractToBCP47 maps Tesseract traineddata names to the BCP-47 codes the
// Google APIs expect.
var tesseractToBCP47 = map[string]string{
	"ara":     "ar",
	"chi_sim": "zh",
	"chi_tra": "zh-Hant",
	"deu":     "de",
	"eng":     "en",
	"fra":     "fr",
	"heb":     "iw",
	"hin":     "hi",
	"jpn":     "ja",
	"kor":     "ko",
	"lao":     "lo",
	"rus":     "ru",
	"spa":     "es",
	"tha":     "th",
	"ukr":     "uk",
	"vie":     "vi",
}

// LanguageHints converts a Tesseract style selector ("eng+tha") into BCP-47
// hints. Unknown entries are passed through unchanged.
func LanguageHints(language string) []string {
	var hints []string
	for _, part := range strings.Split(language, "+") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		if code, ok := tesseractToBCP47[part]; ok {
			part = code
		}
		hints = append(hints, part)
	}
	return hints
}
