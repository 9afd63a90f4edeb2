package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/PaulBabatuyi/projectfiles/internal/models"
)

// Queries is the metadata API, implemented by the pooled store and by the
// transaction-scoped store handed to InTx callbacks.
type Queries interface {
	InsertFile(ctx context.Context, f *models.StoredFile) error
	GetFile(ctx context.Context, id string) (*models.StoredFile, error)
	ListFiles(ctx context.Context, projectID int64, filter models.FileFilter) ([]*models.StoredFile, error)
	SetFilePublic(ctx context.Context, id string, isPublic bool, at time.Time) error
	SetFileDeleted(ctx context.Context, id string, isDeleted bool, at time.Time) error

	InsertAuditEntry(ctx context.Context, e *models.AuditLogEntry) error
	QueryAuditEntries(ctx context.Context, filter models.AuditFilter, limit int) ([]*models.AuditLogEntry, error)
}

var _ Queries = (*Store)(nil)

type rowScanner interface {
	Scan(dest ...any) error
}

const fileColumns = `id, project_id, uploader_id, category, version, author, original_name, stored_name,
        content_type, size_bytes, is_public, owner_role, is_deleted, created_at, updated_at`

func scanFile(row rowScanner) (*models.StoredFile, error) {
	var f models.StoredFile
	err := row.Scan(
		&f.ID,
		&f.ProjectID,
		&f.UploaderID,
		&f.Category,
		&f.Version,
		&f.Author,
		&f.OriginalName,
		&f.StoredName,
		&f.ContentType,
		&f.SizeBytes,
		&f.IsPublic,
		&f.OwnerRole,
		&f.IsDeleted,
		&f.CreatedAt,
		&f.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	f.CreatedAt = f.CreatedAt.UTC()
	f.UpdatedAt = f.UpdatedAt.UTC()
	return &f, nil
}

const auditColumns = `id, operator_id, project_id, object_type, object_id, action, detail, ip_address, created_at`

func scanAuditEntry(row rowScanner) (*models.AuditLogEntry, error) {
	var (
		e          models.AuditLogEntry
		operatorID sql.NullString
		projectID  sql.NullInt64
		detail     sql.NullString
		ipAddress  sql.NullString
	)
	err := row.Scan(
		&e.ID,
		&operatorID,
		&projectID,
		&e.ObjectType,
		&e.ObjectID,
		&e.Action,
		&detail,
		&ipAddress,
		&e.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	if operatorID.Valid {
		e.OperatorID = &operatorID.String
	}
	if projectID.Valid {
		e.ProjectID = &projectID.Int64
	}
	if ipAddress.Valid {
		e.IPAddress = &ipAddress.String
	}
	if detail.Valid && detail.String != "" {
		var d models.Diff
		if err := json.Unmarshal([]byte(detail.String), &d); err != nil {
			return nil, fmt.Errorf("decode audit detail %s: %w", e.ID, err)
		}
		e.Detail = &d
	}
	e.CreatedAt = e.CreatedAt.UTC()
	return &e, nil
}

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func nullInt64(v *int64) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *v, Valid: true}
}
