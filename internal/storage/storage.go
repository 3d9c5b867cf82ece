package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// FileStorage persists uploaded prescription images and returns the public
// URL they are served from.
type FileStorage interface {
	Save(ctx context.Context, orderID, filename string, r io.Reader) (string, error)
}

// LocalStorage writes uploads to a directory served as static files by the
// HTTP server.
type LocalStorage struct {
	dir           string
	publicBaseURL string
}

// NewLocalStorage creates the upload directory if needed.
func NewLocalStorage(dir, publicBaseURL string) (*LocalStorage, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create upload directory: %w", err)
	}
	return &LocalStorage{
		dir:           dir,
		publicBaseURL: strings.TrimRight(publicBaseURL, "/"),
	}, nil
}

// Save stores the upload under a random name, keeping only the original
// extension, and returns the public URL.
func (s *LocalStorage) Save(ctx context.Context, orderID, filename string, r io.Reader) (string, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	switch ext {
	case ".jpg", ".jpeg", ".png", ".pdf", ".webp":
	default:
		return "", fmt.Errorf("unsupported file type: %s", ext)
	}

	name := fmt.Sprintf("%s-%s%s", orderID, uuid.New().String(), ext)
	path := filepath.Join(s.dir, name)

	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("failed to create file: %w", err)
	}
	defer f.Close()

	if _, err := io.Copy(f, r); err != nil {
		os.Remove(path)
		return "", fmt.Errorf("failed to write file: %w", err)
	}

	return fmt.Sprintf("%s/uploads/%s", s.publicBaseURL, name), nil
}
