package capture

import (
	"context"
	"fmt"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"ocrpipe/pkg/models"
)

// FileCamera "captures" the image stored at Path. The CLI uses it to stand in
// for a device camera.
type FileCamera struct {
	Path string
}

// Capture reads the file into a blob.
func (c FileCamera) Capture(ctx context.Context) (models.ImageBlob, error) {
	if err := ctx.Err(); err != nil {
		return models.ImageBlob{}, err
	}
	data, err := os.ReadFile(c.Path)
	if err != nil {
		return models.ImageBlob{}, fmt.Errorf("read %s: %w", c.Path, err)
	}
	return BlobFromBytes(filepath.Base(c.Path), data), nil
}

// CameraFunc adapts a function to the Camera interface.
type CameraFunc func(ctx context.Context) (models.ImageBlob, error)

func (f CameraFunc) Capture(ctx context.Context) (models.ImageBlob, error) { return f(ctx) }

// BlobFromBytes builds a blob, taking the content type from the file
// extension and falling back to content sniffing.
func BlobFromBytes(filename string, data []byte) models.ImageBlob {
	ct := mime.TypeByExtension(strings.ToLower(filepath.Ext(filename)))
	if ct == "" {
		ct = http.DetectContentType(data)
	}
	return models.ImageBlob{Filename: filename, ContentType: ct, Data: data}
}
