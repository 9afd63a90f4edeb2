package database

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/PaulBabatuyi/projectfiles/internal/models"
)

func (s *Store) InsertAuditEntry(ctx context.Context, e *models.AuditLogEntry) error {
	var detail any
	if e.Detail != nil {
		raw, err := json.Marshal(e.Detail)
		if err != nil {
			return fmt.Errorf("encode audit detail: %w", err)
		}
		detail = string(raw)
	}

	query := `
        INSERT INTO audit_log (` + auditColumns + `)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
    `
	_, err := s.q.ExecContext(ctx, s.rebind(query),
		e.ID,
		nullString(e.OperatorID),
		nullInt64(e.ProjectID),
		string(e.ObjectType),
		e.ObjectID,
		string(e.Action),
		detail,
		nullString(e.IPAddress),
		e.CreatedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("insert audit entry: %w", err)
	}
	return nil
}

// QueryAuditEntries applies every non-nil filter conjunctively, newest first.
func (s *Store) QueryAuditEntries(ctx context.Context, filter models.AuditFilter, limit int) ([]*models.AuditLogEntry, error) {
	var (
		where []string
		args  []any
	)
	add := func(clause string, v any) {
		where = append(where, clause)
		args = append(args, v)
	}

	if filter.ProjectID != nil {
		add("project_id = ?", *filter.ProjectID)
	}
	if filter.ObjectType != nil {
		add("object_type = ?", string(*filter.ObjectType))
	}
	if filter.Action != nil {
		add("action = ?", string(*filter.Action))
	}
	if filter.OperatorID != nil {
		add("operator_id = ?", *filter.OperatorID)
	}
	if filter.ObjectID != nil {
		add("object_id = ?", *filter.ObjectID)
	}
	if filter.DateFrom != nil {
		add("created_at >= ?", filter.DateFrom.UTC())
	}
	if filter.DateTo != nil {
		add("created_at <= ?", filter.DateTo.UTC())
	}

	query := `SELECT ` + auditColumns + ` FROM audit_log`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	query += ` ORDER BY created_at DESC, id DESC LIMIT ?`
	args = append(args, limit)

	rows, err := s.q.QueryContext(ctx, s.rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("query audit log: %w", err)
	}
	defer rows.Close()

	var entries []*models.AuditLogEntry
	for rows.Next() {
		e, err := scanAuditEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
