package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/PaulBabatuyi/projectfiles/internal/models"
)

func (s *Store) InsertFile(ctx context.Context, f *models.StoredFile) error {
	query := `
        INSERT INTO project_files (` + fileColumns + `)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
    `
	_, err := s.q.ExecContext(ctx, s.rebind(query),
		f.ID,
		f.ProjectID,
		f.UploaderID,
		string(f.Category),
		f.Version,
		f.Author,
		f.OriginalName,
		f.StoredName,
		f.ContentType,
		f.SizeBytes,
		f.IsPublic,
		string(f.OwnerRole),
		f.IsDeleted,
		f.CreatedAt.UTC(),
		f.UpdatedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("insert file %s: %w", f.ID, err)
	}
	return nil
}

func (s *Store) GetFile(ctx context.Context, id string) (*models.StoredFile, error) {
	query := `SELECT ` + fileColumns + ` FROM project_files WHERE id = ?`

	f, err := scanFile(s.q.QueryRowContext(ctx, s.rebind(query), id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: file %s", models.ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("get file %s: %w", id, err)
	}
	return f, nil
}

// ListFiles returns a project's files newest first. LatestOnly is applied by
// the caller since it needs the full ordering.
func (s *Store) ListFiles(ctx context.Context, projectID int64, filter models.FileFilter) ([]*models.StoredFile, error) {
	where := []string{"project_id = ?"}
	args := []any{projectID}

	if !filter.IncludeDeleted {
		where = append(where, "is_deleted = ?")
		args = append(args, false)
	}
	if filter.Category != nil {
		where = append(where, "category = ?")
		args = append(args, string(*filter.Category))
	}
	if len(filter.Categories) > 0 {
		marks := make([]string, len(filter.Categories))
		for i, c := range filter.Categories {
			marks[i] = "?"
			args = append(args, string(c))
		}
		where = append(where, "category IN ("+strings.Join(marks, ", ")+")")
	}
	if filter.IsPublic != nil {
		where = append(where, "is_public = ?")
		args = append(args, *filter.IsPublic)
	}

	query := `SELECT ` + fileColumns + ` FROM project_files
        WHERE ` + strings.Join(where, " AND ") + `
        ORDER BY created_at DESC, id DESC`

	rows, err := s.q.QueryContext(ctx, s.rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("list files: %w", err)
	}
	defer rows.Close()

	var files []*models.StoredFile
	for rows.Next() {
		f, err := scanFile(rows)
		if err != nil {
			return nil, fmt.Errorf("scan file: %w", err)
		}
		files = append(files, f)
	}
	return files, rows.Err()
}

func (s *Store) SetFilePublic(ctx context.Context, id string, isPublic bool, at time.Time) error {
	return s.updateFlag(ctx, "is_public", id, isPublic, at)
}

func (s *Store) SetFileDeleted(ctx context.Context, id string, isDeleted bool, at time.Time) error {
	return s.updateFlag(ctx, "is_deleted", id, isDeleted, at)
}

func (s *Store) updateFlag(ctx context.Context, column, id string, value bool, at time.Time) error {
	query := `UPDATE project_files SET ` + column + ` = ?, updated_at = ? WHERE id = ?`

	result, err := s.q.ExecContext(ctx, s.rebind(query), value, at.UTC(), id)
	if err != nil {
		return fmt.Errorf("update %s on %s: %w", column, id, err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update %s on %s: %w", column, id, err)
	}
	if n == 0 {
		return fmt.Errorf("%w: file %s", models.ErrNotFound, id)
	}
	return nil
}
