package localfs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/ragline/knowledge-ingest/internal/core/domain"
)

// Storage keeps source documents on the local filesystem, one directory
// per tenant. A missing object surfaces as domain.ErrFileNotFound so the
// pipeline can translate it into a user-facing message instead of a raw
// fs error.
type Storage struct {
	basePath string
}

func New(basePath string) (*Storage, error) {
	if basePath == "" {
		basePath = "./data/storage"
	}
	if err := os.MkdirAll(basePath, 0o755); err != nil {
		return nil, fmt.Errorf("create storage dir: %w", err)
	}
	return &Storage{basePath: basePath}, nil
}

func (s *Storage) Save(_ context.Context, tenantID, key string, data io.Reader) error {
	path, err := s.objectPath(tenantID, key)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create tenant dir: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create file: %w", err)
	}
	defer f.Close()

	if _, err := io.Copy(f, data); err != nil {
		return fmt.Errorf("write file: %w", err)
	}
	return nil
}

func (s *Storage) Open(_ context.Context, tenantID, key string) (io.ReadCloser, error) {
	path, err := s.objectPath(tenantID, key)
	if err != nil {
		return nil, err
	}

	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, domain.WrapError(domain.ErrFileNotFound, "open file", err)
		}
		return nil, fmt.Errorf("open file: %w", err)
	}
	return f, nil
}

func (s *Storage) objectPath(tenantID, key string) (string, error) {
	if strings.TrimSpace(tenantID) == "" {
		return "", fmt.Errorf("tenant id is required")
	}
	cleaned := filepath.Clean("/" + key)
	return filepath.Join(s.basePath, tenantID, cleaned), nil
}
