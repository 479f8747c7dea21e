package ingest

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/google/uuid"
)

var reSafeExt = regexp.MustCompile(`^\.[A-Za-z0-9]{1,8}$`)

// tempArtifact is the on-disk copy of one upload. It belongs to a single
// ProcessImage call and must be removed before that call returns.
type tempArtifact struct {
	path    string
	removed bool
}

// writeTempArtifact writes data to a new, uniquely named file in dir and
// flushes it to disk. On error nothing is left behind.
func writeTempArtifact(dir, filename string, data []byte) (*tempArtifact, error) {
	if dir == "" {
		dir = os.TempDir()
	}
	path := filepath.Join(dir, artifactName(filename))

	// O_EXCL turns a name collision into an error instead of a shared file.
	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o600)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", filepath.Base(path), err)
	}

	art := &tempArtifact{path: path}
	if _, err := f.Write(data); err != nil {
		_ = f.Close()
		_ = art.Remove()
		return nil, fmt.Errorf("write %s: %w", filepath.Base(path), err)
	}
	if err := f.Sync(); err != nil {
		_ = f.Close()
		_ = art.Remove()
		return nil, fmt.Errorf("sync %s: %w", filepath.Base(path), err)
	}
	if err := f.Close(); err != nil {
		_ = art.Remove()
		return nil, fmt.Errorf("close %s: %w", filepath.Base(path), err)
	}
	return art, nil
}

// artifactName builds "ocr-<uuid><ext>", keeping the upload's extension when
// it is short and alphanumeric.
func artifactName(filename string) string {
	ext := strings.ToLower(filepath.Ext(filepath.Base(filename)))
	if !reSafeExt.MatchString(ext) {
		ext = ""
	}
	return "ocr-" + uuid.NewString() + ext
}

// Path returns the artifact location.
func (a *tempArtifact) Path() string {
	return a.path
}

// Remove deletes the artifact. Calling it again, or on an already missing
// file, is not an error.
func (a *tempArtifact) Remove() error {
	if a.removed {
		return nil
	}
	if err := os.Remove(a.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	a.removed = true
	return nil
}
