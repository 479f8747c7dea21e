package capture

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"
	"time"

	"ocrpipe/pkg/models"
)

const (
	ocrPath      = "/api/ocr"
	imageField   = "image"
	maxReplySize = 4 << 20
)

// UploadError is a non-200 reply from the OCR endpoint.
type UploadError struct {
	StatusCode int
	Message    string
}

func (e *UploadError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("upload failed: HTTP %d", e.StatusCode)
	}
	return fmt.Sprintf("upload failed: HTTP %d: %s", e.StatusCode, e.Message)
}

// HTTPUploader posts images to an OCR server. It never retries.
type HTTPUploader struct {
	baseURL string
	client  *http.Client
}

// NewHTTPUploader creates an uploader for the server at baseURL. A nil client
// gets a default with a two minute timeout.
func NewHTTPUploader(baseURL string, client *http.Client) *HTTPUploader {
	if client == nil {
		client = &http.Client{Timeout: 2 * time.Minute}
	}
	return &HTTPUploader{baseURL: strings.TrimRight(baseURL, "/"), client: client}
}

// Upload sends blob as the "image" field of a multipart form.
func (u *HTTPUploader) Upload(ctx context.Context, blob models.ImageBlob) (models.OCRResult, error) {
	body, contentType, err := encodeForm(blob)
	if err != nil {
		return models.OCRResult{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u.baseURL+ocrPath, body)
	if err != nil {
		return models.OCRResult{}, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Accept", "application/json")

	resp, err := u.client.Do(req)
	if err != nil {
		return models.OCRResult{}, fmt.Errorf("post %s: %w", ocrPath, err)
	}
	defer resp.Body.Close()

	reply, err := io.ReadAll(io.LimitReader(resp.Body, maxReplySize))
	if err != nil {
		return models.OCRResult{}, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		var errResp models.ErrorResponse
		_ = json.Unmarshal(reply, &errResp)
		return models.OCRResult{}, &UploadError{StatusCode: resp.StatusCode, Message: errResp.Error}
	}

	var result models.OCRResult
	if err := json.Unmarshal(reply, &result); err != nil {
		return models.OCRResult{}, fmt.Errorf("decode response: %w", err)
	}
	return result, nil
}

func encodeForm(blob models.ImageBlob) (io.Reader, string, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	filename := blob.Filename
	if filename == "" {
		filename = "capture"
	}
	ct := blob.ContentType
	if ct == "" {
		ct = "application/octet-stream"
	}

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name=%q; filename=%q`, imageField, filename))
	h.Set("Content-Type", ct)
	part, err := mw.CreatePart(h)
	if err != nil {
		return nil, "", fmt.Errorf("create form part: %w", err)
	}
	if _, err := part.Write(blob.Data); err != nil {
		return nil, "", fmt.Errorf("write form part: %w", err)
	}
	if err := mw.Close(); err != nil {
		return nil, "", fmt.Errorf("close form: %w", err)
	}
	return &buf, mw.FormDataContentType(), nil
}
