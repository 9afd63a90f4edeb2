package service

import (
	"context"
	"fmt"
	"io"

	"github.com/PaulBabatuyi/projectfiles/internal/database"
	"github.com/PaulBabatuyi/projectfiles/internal/models"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// List returns a project's files newest first. Customers only ever see
// public contract and tech files, whatever filter they pass. With
// LatestOnly the newest record of each (category, original name) group is
// kept; "newest" is by creation time, not by the free-text version label.
func (s *Service) List(ctx context.Context, project models.Project, viewer models.Actor, filter models.FileFilter) (_ []*models.StoredFile, err error) {
	ctx, span := tracer.Start(ctx, "Service.List", trace.WithAttributes(
		attribute.Int64("project.id", project.ID),
		attribute.String("viewer.role", string(viewer.Role)),
	))
	defer func() { endSpan(span, err) }()

	if viewer.Role.IsExternal() {
		public := true
		filter.IsPublic = &public
		filter.Categories = models.CustomerCategories
		filter.IncludeDeleted = false
	}

	files, err := s.db.ListFiles(ctx, project.ID, filter)
	if err != nil {
		return nil, persistenceErr(err)
	}
	if filter.LatestOnly {
		files = latestPerGroup(files)
	}
	return files, nil
}

func latestPerGroup(files []*models.StoredFile) []*models.StoredFile {
	seen := make(map[string]bool, len(files))
	latest := make([]*models.StoredFile, 0, len(files))
	for _, f := range files {
		key := f.GroupKey()
		if seen[key] {
			continue
		}
		seen[key] = true
		latest = append(latest, f)
	}
	return latest
}

// Get loads a file that must belong to project.
func (s *Service) Get(ctx context.Context, project models.Project, id string) (*models.StoredFile, error) {
	f, err := s.db.GetFile(ctx, id)
	if err != nil {
		return nil, persistenceErr(err)
	}
	if f.ProjectID != project.ID {
		return nil, fmt.Errorf("%w: file %s", models.ErrNotFound, id)
	}
	return f, nil
}

// ResolvePathForDownload locates the bytes of f across the storage layouts.
func (s *Service) ResolvePathForDownload(project models.Project, f *models.StoredFile) (string, error) {
	path := s.storage.ResolveReadPath(project, f.StoredName)
	if !s.storage.Exists(path) {
		return "", fmt.Errorf("%w: bytes of %s missing at %s", models.ErrNotFound, f.ID, path)
	}
	return path, nil
}

// Readable returns f and the path of its bytes if actor may read it.
// Deleted files are reported as not found.
func (s *Service) Readable(ctx context.Context, project models.Project, actor models.Actor, id string) (*models.StoredFile, string, error) {
	f, err := s.Get(ctx, project, id)
	if err != nil {
		return nil, "", err
	}
	if f.IsDeleted {
		return nil, "", fmt.Errorf("%w: file %s was deleted", models.ErrNotFound, id)
	}
	if !models.CanAccess(actor.Role, f) {
		return nil, "", fmt.Errorf("%w: role %q may not read %s", models.ErrPermission, actor.Role, id)
	}
	path, err := s.ResolvePathForDownload(project, f)
	if err != nil {
		return nil, "", err
	}
	return f, path, nil
}

// Download checks access, opens the bytes and records a download entry.
// The caller closes the returned reader.
func (s *Service) Download(ctx context.Context, project models.Project, actor models.Actor, id string) (_ *models.StoredFile, _ io.ReadCloser, err error) {
	ctx, span := tracer.Start(ctx, "Service.Download", trace.WithAttributes(
		attribute.Int64("project.id", project.ID),
		attribute.String("file.id", id),
	))
	defer func() { endSpan(span, err) }()

	f, path, err := s.Readable(ctx, project, actor, id)
	if err != nil {
		return nil, nil, err
	}
	rc, err := s.storage.ReadFile(path)
	if err != nil {
		return nil, nil, persistenceErr(err)
	}

	_, err = s.audit.Record(ctx, s.fileRecord(f, actor, models.ActionDownload, nil, map[string]any{
		"download":          true,
		"stored_filename":   f.StoredName,
		"original_filename": f.OriginalName,
	}))
	if err != nil {
		rc.Close()
		return nil, nil, err
	}
	s.metrics.AuditEntries.WithLabelValues(string(models.ActionDownload)).Inc()
	return f, rc, nil
}

// SetVisibility toggles whether customers can see f. Every call is logged,
// including ones that leave the flag unchanged.
func (s *Service) SetVisibility(ctx context.Context, f *models.StoredFile, isPublic bool, actor models.Actor) (*models.StoredFile, error) {
	if !actor.Role.CanToggleVisibility() {
		return nil, fmt.Errorf("%w: role %q may not change visibility", models.ErrPermission, actor.Role)
	}
	return s.changeFlag(ctx, f, actor, flagPublic, isPublic, models.ActionUpdate, true)
}

// SoftDelete hides f from listings. Rows and bytes are kept.
func (s *Service) SoftDelete(ctx context.Context, f *models.StoredFile, actor models.Actor) (*models.StoredFile, error) {
	if f.UploaderID != actor.UserID && !actor.Role.CanManageDeleted() {
		return nil, fmt.Errorf("%w: only the uploader or a manager may delete %s", models.ErrPermission, f.ID)
	}
	return s.changeFlag(ctx, f, actor, flagDeleted, true, models.ActionDelete, false)
}

// Restore undoes SoftDelete. Restoring a live file is a no-op.
func (s *Service) Restore(ctx context.Context, f *models.StoredFile, actor models.Actor) (*models.StoredFile, error) {
	if !actor.Role.CanManageDeleted() {
		return nil, fmt.Errorf("%w: role %q may not restore files", models.ErrPermission, actor.Role)
	}
	return s.changeFlag(ctx, f, actor, flagDeleted, false, models.ActionRestore, false)
}

type flag string

const (
	flagPublic  flag = "is_public"
	flagDeleted flag = "is_deleted"
)

func (fl flag) get(f *models.StoredFile) bool {
	if fl == flagPublic {
		return f.IsPublic
	}
	return f.IsDeleted
}

func (fl flag) set(f *models.StoredFile, v bool) {
	if fl == flagPublic {
		f.IsPublic = v
	} else {
		f.IsDeleted = v
	}
}

// changeFlag re-reads the row inside the transaction, updates it and
// appends the audit entry in the same commit. Unless always is set, a
// change to the current value writes nothing.
func (s *Service) changeFlag(ctx context.Context, f *models.StoredFile, actor models.Actor, fl flag, value bool, action models.Action, always bool) (_ *models.StoredFile, err error) {
	ctx, span := tracer.Start(ctx, "Service."+string(action), trace.WithAttributes(
		attribute.String("file.id", f.ID),
		attribute.String("flag", string(fl)),
		attribute.Bool("value", value),
	))
	defer func() { endSpan(span, err) }()

	var (
		updated *models.StoredFile
		changed bool
	)
	err = s.db.InTx(ctx, func(q database.Queries) error {
		cur, err := q.GetFile(ctx, f.ID)
		if err != nil {
			return err
		}
		old := fl.get(cur)
		if old == value && !always {
			updated = cur
			return nil
		}

		now := s.timestamp()
		if fl == flagPublic {
			err = q.SetFilePublic(ctx, cur.ID, value, now)
		} else {
			err = q.SetFileDeleted(ctx, cur.ID, value, now)
		}
		if err != nil {
			return err
		}

		_, err = s.audit.RecordWith(ctx, q, s.fileRecord(cur, actor, action,
			map[string]any{string(fl): old},
			map[string]any{string(fl): value},
		))
		if err != nil {
			return err
		}

		fl.set(cur, value)
		cur.UpdatedAt = now
		updated = cur
		changed = true
		return nil
	})
	if err != nil {
		return nil, persistenceErr(err)
	}

	if changed {
		s.metrics.AuditEntries.WithLabelValues(string(action)).Inc()
		s.logger.Info("file updated",
			zap.String("file_id", updated.ID),
			zap.String("action", string(action)),
			zap.String("operator", actor.UserID),
		)
	}
	return updated, nil
}
