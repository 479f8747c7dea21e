package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime"
	"net/http"
	"path/filepath"

	"ocrpipe/internal/ingest"
	"ocrpipe/internal/logger"
	"ocrpipe/pkg/models"
)

// Response messages. They are deliberately generic; details go to the log.
const (
	MsgNoImage         = "No image uploaded"
	MsgImageTooLarge   = "Image too large"
	MsgProcessingError = "Error processing image"
)

// FormField is the multipart field carrying the image.
const FormField = "image"

// multipartMemory is how much of a multipart body is buffered in memory
// before parts spill to disk.
const multipartMemory = 8 << 20

// multipartOverhead allows for boundaries and part headers on top of the image.
const multipartOverhead = 1 << 20

// ImageProcessor is the ingestion dependency of the HTTP layer.
type ImageProcessor interface {
	ProcessImage(ctx context.Context, blob models.ImageBlob) (models.OCRResult, error)
	EngineName() string
}

type handler struct {
	processor     ImageProcessor
	maxImageBytes int64
}

// handleOCR serves POST /api/ocr.
func (h *handler) handleOCR(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContext(r.Context())

	r.Body = http.MaxBytesReader(w, r.Body, h.maxImageBytes+multipartOverhead)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			log.Warn().Int64("limit", tooLarge.Limit).Msg("upload body too large")
			writeError(w, http.StatusRequestEntityTooLarge, MsgImageTooLarge)
			return
		}
		log.Warn().Err(err).Msg("request is not a readable multipart form")
		writeError(w, http.StatusBadRequest, MsgNoImage)
		return
	}
	defer func() {
		if r.MultipartForm != nil {
			_ = r.MultipartForm.RemoveAll()
		}
	}()

	blob, err := h.readImage(r)
	if err != nil {
		switch {
		case errors.Is(err, ingest.ErrImageTooLarge):
			writeError(w, http.StatusRequestEntityTooLarge, MsgImageTooLarge)
		case errors.Is(err, http.ErrMissingFile):
			writeError(w, http.StatusBadRequest, MsgNoImage)
		default:
			log.Error().Err(err).Msg("failed to read uploaded image")
			writeError(w, http.StatusBadRequest, MsgNoImage)
		}
		return
	}

	result, err := h.processor.ProcessImage(r.Context(), blob)
	if err != nil {
		status, msg := statusFor(err)
		if status == http.StatusInternalServerError {
			log.Error().Err(err).Str("filename", blob.Filename).Msg("image processing failed")
		}
		writeError(w, status, msg)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// readImage extracts the image part. A missing field and an empty file are
// both reported as http.ErrMissingFile.
func (h *handler) readImage(r *http.Request) (models.ImageBlob, error) {
	file, header, err := r.FormFile(FormField)
	if err != nil {
		return models.ImageBlob{}, err
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, h.maxImageBytes+1))
	if err != nil {
		return models.ImageBlob{}, err
	}
	if int64(len(data)) > h.maxImageBytes {
		return models.ImageBlob{}, ingest.ErrImageTooLarge
	}
	if len(data) == 0 {
		return models.ImageBlob{}, http.ErrMissingFile
	}

	return models.ImageBlob{
		Filename:    filepath.Base(header.Filename),
		ContentType: contentType(header.Header.Get("Content-Type"), data),
		Data:        data,
	}, nil
}

// contentType trusts a declared image type and sniffs everything else.
func contentType(declared string, data []byte) string {
	if mt, _, err := mime.ParseMediaType(declared); err == nil && mt != "application/octet-stream" {
		return mt
	}
	return http.DetectContentType(data)
}

// statusFor maps ingestion errors onto HTTP status codes and public messages.
func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, ingest.ErrMissingInput):
		return http.StatusBadRequest, MsgNoImage
	case errors.Is(err, ingest.ErrImageTooLarge):
		return http.StatusRequestEntityTooLarge, MsgImageTooLarge
	default:
		return http.StatusInternalServerError, MsgProcessingError
	}
}

type healthResponse struct {
	Status string `json:"status"`
	Engine string `json:"engine"`
}

// handleHealth serves GET /healthz.
func (h *handler) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, healthResponse{Status: "ok", Engine: h.processor.EngineName()})
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, models.ErrorResponse{Error: msg})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
