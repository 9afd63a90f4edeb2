package service

import (
	"context"
	"io"

	"github.com/PaulBabatuyi/projectfiles/internal/database"
	"github.com/PaulBabatuyi/projectfiles/internal/models"
	"github.com/PaulBabatuyi/projectfiles/internal/storage"
)

// StorageInterface is the byte store behind the service.
type StorageInterface interface {
	Write(project models.Project, name storage.StoredName, r io.Reader, limit int64) (*storage.WriteResult, error)
	ResolveReadPath(project models.Project, storedName string) string
	ReadFile(path string) (io.ReadCloser, error)
	Exists(path string) bool
}

// DatabaseInterface is the metadata store. Mutations and their audit
// entries run through InTx.
type DatabaseInterface interface {
	database.Queries
	InTx(ctx context.Context, fn func(q database.Queries) error) error
}

var (
	_ StorageInterface  = (*storage.FilesystemStorage)(nil)
	_ DatabaseInterface = (*database.DB)(nil)
)
