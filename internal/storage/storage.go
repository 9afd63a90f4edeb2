package storage

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/PaulBabatuyi/projectfiles/internal/models"
)

// maxNameAttempts bounds the _N suffixes tried when a stored name is taken.
const maxNameAttempts = 1000

// WriteResult describes bytes committed to disk.
type WriteResult struct {
	StoredName string
	Path       string
	Size       int64
}

// FilesystemStorage stores upload bytes on local disk. Files are written
// once and never overwritten.
type FilesystemStorage struct {
	*PathResolver
}

func NewFilesystemStorage(basePath string) (*FilesystemStorage, error) {
	if err := os.MkdirAll(basePath, 0o755); err != nil {
		return nil, fmt.Errorf("create upload root %s: %w", basePath, err)
	}
	return &FilesystemStorage{PathResolver: NewPathResolver(basePath)}, nil
}

// Write streams r into the project directory under name. Content goes to a
// temp file first and is then hard-linked into place, so readers never see a
// partial file and an existing name is never replaced. limit <= 0 disables
// the size check.
func (s *FilesystemStorage) Write(project models.Project, name StoredName, r io.Reader, limit int64) (*WriteResult, error) {
	target, err := s.WritePath(project, name.String())
	if err != nil {
		return nil, err
	}
	dir := filepath.Dir(target)

	tmp, err := os.CreateTemp(dir, ".upload-*")
	if err != nil {
		return nil, fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	src := r
	if limit > 0 {
		src = io.LimitReader(r, limit+1)
	}
	size, err := io.Copy(tmp, src)
	if err != nil {
		tmp.Close()
		return nil, fmt.Errorf("write upload: %w", err)
	}
	if limit > 0 && size > limit {
		tmp.Close()
		return nil, fmt.Errorf("%w: file exceeds %d bytes", models.ErrValidation, limit)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return nil, fmt.Errorf("fsync upload: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return nil, fmt.Errorf("close upload: %w", err)
	}

	for i := 1; i <= maxNameAttempts; i++ {
		candidate := name.WithSuffix(i)
		finalPath := filepath.Join(dir, candidate)
		err := os.Link(tmpPath, finalPath)
		if err == nil {
			return &WriteResult{StoredName: candidate, Path: finalPath, Size: size}, nil
		}
		if !errors.Is(err, fs.ErrExist) {
			return nil, fmt.Errorf("commit upload: %w", err)
		}
	}
	return nil, fmt.Errorf("no free name for %s after %d attempts", name, maxNameAttempts)
}

// ReadFile opens a resolved path for reading.
func (s *FilesystemStorage) ReadFile(path string) (io.ReadCloser, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", models.ErrNotFound, filepath.Base(path))
		}
		return nil, err
	}
	return f, nil
}

// Exists reports whether a regular file is present at path.
func (s *FilesystemStorage) Exists(path string) bool {
	return fileExists(path)
}
