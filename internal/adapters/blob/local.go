package blob

import (
	"context"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/elevityx/truckeelights/internal/domain"
)

// Local stores blobs on the filesystem under basePath and resolves download
// URLs by joining baseURL with the storage path. Paths follow the
// houses/{houseId}/photos/{fileName} layout.
type Local struct {
	basePath string
	baseURL  string
}

func NewLocal(basePath, baseURL string) (*Local, error) {
	if err := os.MkdirAll(basePath, 0755); err != nil {
		return nil, fmt.Errorf("failed to create blob directory: %w", err)
	}
	return &Local{basePath: basePath, baseURL: strings.TrimRight(baseURL, "/")}, nil
}

func (s *Local) Put(ctx context.Context, storagePath, contentType string, r io.Reader) (string, error) {
	full, err := s.safeJoin(storagePath)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Dir(full), 0755); err != nil {
		return "", fmt.Errorf("failed to create blob subdirectory: %w", err)
	}

	f, err := os.Create(full)
	if err != nil {
		return "", fmt.Errorf("failed to create file: %w", err)
	}
	if _, err := io.Copy(f, r); err != nil {
		if cerr := f.Close(); cerr != nil {
			log.Error().Err(cerr).Msg("failed to close file after write error")
		}
		if rerr := os.Remove(full); rerr != nil {
			log.Error().Err(rerr).Msg("failed to remove file after write error")
		}
		return "", fmt.Errorf("failed to write file: %w", err)
	}
	if err := f.Close(); err != nil {
		if rerr := os.Remove(full); rerr != nil {
			log.Error().Err(rerr).Msg("failed to remove file after close error")
		}
		return "", fmt.Errorf("failed to close file: %w", err)
	}
	return s.baseURL + "/" + path.Clean(storagePath), nil
}

func (s *Local) Open(ctx context.Context, storagePath string) (io.ReadCloser, string, error) {
	full, err := s.safeJoin(storagePath)
	if err != nil {
		return nil, "", err
	}

	f, err := os.Open(full)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, "", domain.ErrNotFound
		}
		return nil, "", fmt.Errorf("failed to open file: %w", err)
	}
	return f, extToMimeType(full), nil
}

func (s *Local) Delete(ctx context.Context, storagePath string) error {
	full, err := s.safeJoin(storagePath)
	if err != nil {
		return err
	}

	if err := os.Remove(full); err != nil {
		if os.IsNotExist(err) {
			return domain.ErrNotFound
		}
		return fmt.Errorf("failed to delete file: %w", err)
	}
	return nil
}

// safeJoin resolves storagePath relative to basePath and rejects directory traversal.
func (s *Local) safeJoin(storagePath string) (string, error) {
	absBase, err := filepath.Abs(s.basePath)
	if err != nil {
		return "", fmt.Errorf("invalid base path: %w", err)
	}

	absPath, err := filepath.Abs(filepath.Join(s.basePath, filepath.FromSlash(storagePath)))
	if err != nil {
		return "", fmt.Errorf("invalid path: %w", err)
	}

	if !strings.HasPrefix(absPath, absBase+string(filepath.Separator)) {
		return "", fmt.Errorf("path traversal attempt")
	}
	return absPath, nil
}

func extToMimeType(filePath string) string {
	switch strings.ToLower(filepath.Ext(filePath)) {
	case ".png":
		return "image/png"
	case ".gif":
		return "image/gif"
	case ".webp":
		return "image/webp"
	default:
		return "image/jpeg"
	}
}

var _ domain.BlobStore = (*Local)(nil)
