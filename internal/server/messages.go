package server

import (
	"time"

	"github.com/PaulBabatuyi/projectfiles/internal/models"
)

// UploadRequest is either the manifest (first message) or a chunk of the
// file at Index in the manifest. Chunks must arrive in ascending index order.
type UploadRequest struct {
	Manifest *UploadManifest `json:"manifest,omitempty"`
	Index    int             `json:"index"`
	Chunk    []byte          `json:"chunk,omitempty"`
}

type UploadManifest struct {
	Project  models.Project `json:"project"`
	Category string         `json:"category"`
	Version  string         `json:"version,omitempty"`
	Author   string         `json:"author,omitempty"`
	IsPublic bool           `json:"is_public"`
	Files    []FileHeader   `json:"files"`
}

type FileHeader struct {
	Name        string `json:"name"`
	ContentType string `json:"content_type,omitempty"`
}

type UploadResponse struct {
	Files []*models.StoredFile `json:"files"`
}

type ListRequest struct {
	Project        models.Project `json:"project"`
	Category       string         `json:"category,omitempty"`
	IsPublic       *bool          `json:"is_public,omitempty"`
	IncludeDeleted bool           `json:"include_deleted,omitempty"`
	LatestOnly     bool           `json:"latest_only,omitempty"`
}

type ListResponse struct {
	Files []*models.StoredFile `json:"files"`
}

// FileRequest addresses one file of a project.
type FileRequest struct {
	Project models.Project `json:"project"`
	FileID  string         `json:"file_id"`
}

type VisibilityRequest struct {
	Project  models.Project `json:"project"`
	FileID   string         `json:"file_id"`
	IsPublic bool           `json:"is_public"`
}

type FileResponse struct {
	File *models.StoredFile `json:"file"`
}

// DownloadResponse is the info header (first message) or a data chunk.
type DownloadResponse struct {
	Info  *FileInfo `json:"info,omitempty"`
	Chunk []byte    `json:"chunk,omitempty"`
}

type FileInfo struct {
	FileID      string `json:"file_id"`
	Name        string `json:"name"`
	ContentType string `json:"content_type"`
	Size        int64  `json:"size"`
}

type AuditLogRequest struct {
	ProjectID  *int64     `json:"project_id,omitempty"`
	ObjectType string     `json:"object_type,omitempty"`
	Action     string     `json:"action,omitempty"`
	OperatorID string     `json:"operator_id,omitempty"`
	ObjectID   string     `json:"object_id,omitempty"`
	DateFrom   *time.Time `json:"date_from,omitempty"`
	DateTo     *time.Time `json:"date_to,omitempty"`
	Limit      int        `json:"limit,omitempty"`
}

type AuditLogResponse struct {
	Entries []AuditRecord `json:"entries"`
}

// AuditRecord is an entry with its display labels and rendered diff.
type AuditRecord struct {
	Entry       *models.AuditLogEntry `json:"entry"`
	ObjectLabel string                `json:"object_label"`
	ActionLabel string                `json:"action_label"`
	Summary     string                `json:"summary"`
}
