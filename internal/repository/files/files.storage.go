// FilePath: internal/repository/files/files.storage.go
package files

import (
	"context"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/sauqing9/api-sitras/internal/errors"
	"github.com/sauqing9/api-sitras/internal/repository"
	nuts "github.com/vaudience/go-nuts"
)

const defaultPermissions = 0755

// FileConfig holds configuration for the file storage
type FileConfig struct {
	BasePath string
}

// FileRepo implements repository.AttachmentStore on the local filesystem
type FileRepo struct {
	config FileConfig
}

// NewFileRepository creates a new file storage repository
func NewFileRepository(config FileConfig) (*FileRepo, error) {
	if err := createDirectoryIfNotExists(config.BasePath); err != nil {
		return nil, err
	}
	return &FileRepo{config: config}, nil
}

func (r *FileRepo) Put(ctx context.Context, key string, src io.Reader, size int64, contentType string) error {
	fullPath, err := r.resolve(key)
	if err != nil {
		return err
	}

	// Create directory structure
	if err := createDirectoryIfNotExists(filepath.Dir(fullPath)); err != nil {
		return err
	}

	// Create destination file
	dst, err := os.Create(fullPath)
	if err != nil {
		return errors.NewInternalError("failed to create destination file", err)
	}
	defer dst.Close()

	// Copy file
	if _, err = io.Copy(dst, src); err != nil {
		return errors.NewInternalError("failed to copy file", err)
	}

	nuts.L.Infof("[FileRepo] Stored file: %s (%d bytes, %s)", key, size, contentType)
	return nil
}

func (r *FileRepo) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	fullPath, err := r.resolve(key)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(fullPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.NewNotFoundError("file not found", err)
		}
		return nil, errors.NewInternalError("failed to open file", err)
	}
	return f, nil
}

func (r *FileRepo) Delete(ctx context.Context, key string) error {
	fullPath, err := r.resolve(key)
	if err != nil {
		return err
	}
	if err := os.Remove(fullPath); err != nil {
		if os.IsNotExist(err) {
			return errors.NewNotFoundError("file not found", err)
		}
		return errors.NewInternalError("failed to delete file", err)
	}
	return nil
}

// DeletePrefix removes every file whose key starts with prefix
func (r *FileRepo) DeletePrefix(ctx context.Context, prefix string) (int, error) {
	var deletedCount int
	err := filepath.Walk(r.config.BasePath, func(p string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}
		relPath, err := filepath.Rel(r.config.BasePath, p)
		if err != nil {
			return err
		}
		if !strings.HasPrefix(filepath.ToSlash(relPath), prefix) {
			return nil
		}
		if err := os.Remove(p); err != nil {
			nuts.L.Errorf("[FileRepo] Failed to delete file %s: %v", p, err)
			return nil
		}
		deletedCount++
		return nil
	})
	if err != nil {
		return deletedCount, errors.NewInternalError("failed to delete files", err)
	}

	nuts.L.Infof("[FileRepo] Deleted %d files with prefix %q", deletedCount, prefix)
	return deletedCount, nil
}

// resolve maps a slash-separated key to a path inside the base directory
func (r *FileRepo) resolve(key string) (string, error) {
	clean := path.Clean("/" + key)
	if clean == "/" {
		return "", errors.NewValidationError("invalid file key", nil)
	}
	for _, segment := range strings.Split(key, "/") {
		if segment == ".." {
			return "", errors.NewValidationError("invalid file key", nil)
		}
	}
	return filepath.Join(r.config.BasePath, filepath.FromSlash(strings.TrimPrefix(clean, "/"))), nil
}

func createDirectoryIfNotExists(path string) error {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		err := os.MkdirAll(path, defaultPermissions)
		if err != nil {
			return errors.NewInternalError("failed to create directory", err)
		}
	}
	return nil
}

var _ repository.AttachmentStore = (*FileRepo)(nil)
