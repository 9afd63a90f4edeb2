package models

import "time"

type ObjectType string

const (
	ObjectTask        ObjectType = "task"
	ObjectProcurement ObjectType = "procurement"
	ObjectAcceptance  ObjectType = "acceptance"
	ObjectFeedback    ObjectType = "feedback"
	ObjectContract    ObjectType = "contract"
	ObjectFile        ObjectType = "file"
)

type Action string

const (
	ActionCreate       Action = "create"
	ActionUpdate       Action = "update"
	ActionDelete       Action = "delete"
	ActionStatusChange Action = "status_change"
	ActionUpload       Action = "upload"
	ActionResolve      Action = "resolve"
	ActionDownload     Action = "download"
	ActionRestore      Action = "restore"
	ActionNotify       Action = "notify"
)

// Diff is the structured before/after payload attached to an entry.
type Diff struct {
	Old map[string]any `json:"old,omitempty"`
	New map[string]any `json:"new,omitempty"`
}

// AuditLogEntry is append-only; it is never updated or deleted once written.
type AuditLogEntry struct {
	ID         string     `json:"id"`
	OperatorID *string    `json:"operator_id,omitempty"`
	ProjectID  *int64     `json:"project_id,omitempty"`
	ObjectType ObjectType `json:"object_type"`
	ObjectID   string     `json:"object_id"`
	Action     Action     `json:"action"`
	Detail     *Diff      `json:"detail,omitempty"`
	IPAddress  *string    `json:"ip_address,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
}

// AuditFilter holds the optional, conjunctive query filters.
type AuditFilter struct {
	ProjectID  *int64
	ObjectType *ObjectType
	Action     *Action
	OperatorID *string
	ObjectID   *string
	DateFrom   *time.Time
	DateTo     *time.Time
}
