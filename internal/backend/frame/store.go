package frame

import (
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// Store keeps original capture bytes on disk under a single directory
type Store struct {
	dir string
}

// NewStore creates the upload directory if it does not exist
func NewStore(dir string) (*Store, error) {
	if strings.TrimSpace(dir) == "" {
		return nil, fmt.Errorf("upload directory must not be empty")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create upload directory %q: %w", dir, err)
	}
	return &Store{dir: dir}, nil
}

// Save writes raw to a new uniquely named file and returns its path
func (s *Store) Save(raw []byte) (string, error) {
	if len(raw) == 0 {
		return "", ErrEmptyFrame
	}
	name := uuid.NewString() + extensionFor(raw)
	path := filepath.Join(s.dir, name)
	if err := os.WriteFile(path, raw, 0o644); err != nil {
		return "", fmt.Errorf("failed to write frame %q: %w", path, err)
	}
	slog.Debug("Store: frame saved", "path", path, "size_bytes", len(raw))
	return path, nil
}

// Load reads a previously saved frame
func (s *Store) Load(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read frame %q: %w", path, err)
	}
	return data, nil
}

// Remove deletes a saved frame. A missing file is not an error.
func (s *Store) Remove(path string) error {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove frame %q: %w", path, err)
	}
	return nil
}

// extensionFor picks a file extension from the sniffed content type
func extensionFor(raw []byte) string {
	if isSVGData(raw) {
		return ".svg"
	}
	switch http.DetectContentType(raw) {
	case "image/png":
		return ".png"
	case "image/jpeg":
		return ".jpg"
	case "image/gif":
		return ".gif"
	case "image/bmp":
		return ".bmp"
	case "image/webp":
		return ".webp"
	default:
		return ".bin"
	}
}
