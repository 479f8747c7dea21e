package models

// ImageBlob is one captured or selected image on its way to the OCR endpoint.
type ImageBlob struct {
	Filename    string // Original file name as reported by the client
	ContentType string // MIME type, e.g. image/jpeg
	Data        []byte // Raw image bytes
}

// IsEmpty reports whether the blob carries no image bytes.
func (b ImageBlob) IsEmpty() bool {
	return len(b.Data) == 0
}

// Size returns the payload length in bytes.
func (b ImageBlob) Size() int64 {
	return int64(len(b.Data))
}

// OCRResult is the outcome of recognizing a single image.
type OCRResult struct {
	// Text is the recognized text with surrounding whitespace trimmed.
	Text string `json:"text"`

	// Error carries engine diagnostic output. It does not signal failure.
	Error string `json:"error,omitempty"`
}

// HasDiagnostic reports whether the engine emitted diagnostic output.
func (r OCRResult) HasDiagnostic() bool {
	return r.Error != ""
}

// ErrorResponse is the JSON body returned for failed requests.
type ErrorResponse struct {
	Error string `json:"error"`
}
