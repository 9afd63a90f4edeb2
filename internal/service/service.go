package service

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/PaulBabatuyi/projectfiles/internal/audit"
	"github.com/PaulBabatuyi/projectfiles/internal/database"
	"github.com/PaulBabatuyi/projectfiles/internal/models"
	"github.com/PaulBabatuyi/projectfiles/internal/observability"
	"github.com/PaulBabatuyi/projectfiles/internal/storage"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

const defaultVersion = "V1"

var tracer = otel.Tracer("github.com/PaulBabatuyi/projectfiles/internal/service")

// Upload is one file as received from the client.
type Upload struct {
	Name        string
	ContentType string
	Body        io.Reader
}

// IngestOptions apply to every file of an upload request.
type IngestOptions struct {
	Category models.Category
	Version  string
	Author   string
	IsPublic bool
}

// Service is the versioned project file store.
type Service struct {
	storage        StorageInterface
	db             DatabaseInterface
	audit          *audit.Log
	metrics        *observability.Metrics
	logger         *zap.Logger
	maxUploadBytes int64
	now            func() time.Time
}

type Option func(*Service)

func WithLogger(logger *zap.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

func WithMetrics(m *observability.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// WithMaxUploadBytes caps a single file; <= 0 means unlimited.
func WithMaxUploadBytes(n int64) Option {
	return func(s *Service) { s.maxUploadBytes = n }
}

func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func NewFileService(storage StorageInterface, db DatabaseInterface, opts ...Option) *Service {
	s := &Service{
		storage: storage,
		db:      db,
		logger:  zap.NewNop(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.metrics == nil {
		s.metrics = observability.NewMetrics(nil)
	}
	s.audit = audit.New(db, audit.WithLogger(s.logger), audit.WithClock(s.now))
	return s
}

// Audit exposes the operation log sharing this service's database.
func (s *Service) Audit() *audit.Log { return s.audit }

func (s *Service) timestamp() time.Time {
	// postgres keeps microseconds; truncating keeps both backends comparable
	return s.now().UTC().Truncate(time.Microsecond)
}

// Ingest validates, stores and records a single upload. Bytes are written
// before the metadata row; if the commit fails the file stays on disk.
func (s *Service) Ingest(ctx context.Context, project models.Project, uploader models.Actor, upload Upload, opts IngestOptions) (_ *models.StoredFile, err error) {
	ctx, span := tracer.Start(ctx, "Service.Ingest", trace.WithAttributes(
		attribute.Int64("project.id", project.ID),
		attribute.String("file.name", upload.Name),
		attribute.String("file.category", string(opts.Category)),
	))
	defer func() { endSpan(span, err) }()

	category, ok := models.ParseCategory(string(opts.Category))
	defer func() {
		label := string(category)
		if !ok {
			label = "unknown"
		}
		s.countIngest(label, err)
	}()

	name := strings.TrimSpace(storage.BaseName(upload.Name))
	if name == "" {
		return nil, fmt.Errorf("%w: file name is required", models.ErrValidation)
	}
	if !ok {
		return nil, fmt.Errorf("%w: unknown category %q", models.ErrValidation, opts.Category)
	}
	if !AllowedExtension(name, category) {
		return nil, fmt.Errorf("%w: extension of %q not allowed for %s", models.ErrValidation, name, category)
	}
	if !uploader.Role.CanUpload(category) {
		return nil, fmt.Errorf("%w: role %q may not upload %s files", models.ErrPermission, uploader.Role, category)
	}
	if upload.Body == nil {
		return nil, fmt.Errorf("%w: empty upload body", models.ErrValidation)
	}

	version := strings.TrimSpace(opts.Version)
	if version == "" {
		version = defaultVersion
	}
	author := strings.TrimSpace(opts.Author)

	body := bufio.NewReaderSize(upload.Body, 512)
	head, _ := body.Peek(512)
	contentType := DetectContentType(upload.ContentType, name, head)

	now := s.timestamp()
	storedName := storage.BuildStoredName(project, category, version, author, name, now)

	written, err := s.storage.Write(project, storedName, body, s.maxUploadBytes)
	if err != nil {
		if errors.Is(err, models.ErrValidation) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: store %q: %v", models.ErrPersistence, name, err)
	}

	f := &models.StoredFile{
		ID:           uuid.NewString(),
		ProjectID:    project.ID,
		UploaderID:   uploader.UserID,
		Category:     category,
		Version:      version,
		Author:       author,
		OriginalName: name,
		StoredName:   written.StoredName,
		ContentType:  contentType,
		SizeBytes:    written.Size,
		IsPublic:     opts.IsPublic,
		OwnerRole:    uploader.Role,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	err = s.db.InTx(ctx, func(q database.Queries) error {
		if err := q.InsertFile(ctx, f); err != nil {
			return err
		}
		_, err := s.audit.RecordWith(ctx, q, s.fileRecord(f, uploader, models.ActionUpload, nil, map[string]any{
			"file_type":         string(f.Category),
			"version":           f.Version,
			"original_filename": f.OriginalName,
			"stored_filename":   f.StoredName,
			"is_public":         f.IsPublic,
		}))
		return err
	})
	if err != nil {
		s.logger.Warn("metadata commit failed after write, leaving orphan file",
			zap.String("path", written.Path),
			zap.Int64("project_id", project.ID),
			zap.Error(err),
		)
		return nil, persistenceErr(err)
	}

	s.metrics.AuditEntries.WithLabelValues(string(models.ActionUpload)).Inc()
	s.logger.Info("file ingested",
		zap.String("file_id", f.ID),
		zap.String("stored_name", f.StoredName),
		zap.Int64("size", f.SizeBytes),
		zap.String("uploader", uploader.UserID),
	)
	return f, nil
}

// IngestBatch ingests uploads in order, skipping nameless entries. It stops
// at the first failure and returns the files stored so far together with a
// *models.BatchError.
func (s *Service) IngestBatch(ctx context.Context, project models.Project, uploader models.Actor, uploads []Upload, opts IngestOptions) ([]*models.StoredFile, error) {
	var stored []*models.StoredFile
	for _, u := range uploads {
		if strings.TrimSpace(storage.BaseName(u.Name)) == "" {
			continue
		}
		f, err := s.Ingest(ctx, project, uploader, u, opts)
		if err != nil {
			return stored, &models.BatchError{Succeeded: len(stored), Name: u.Name, Err: err}
		}
		stored = append(stored, f)
	}
	return stored, nil
}

func (s *Service) fileRecord(f *models.StoredFile, actor models.Actor, action models.Action, oldSide, newSide map[string]any) audit.Record {
	projectID := f.ProjectID
	return audit.Record{
		OperatorID: actor.UserID,
		ProjectID:  &projectID,
		ObjectType: models.ObjectFile,
		ObjectID:   f.ID,
		Action:     action,
		Old:        oldSide,
		New:        newSide,
		IPAddress:  actor.RemoteIP,
	}
}

func (s *Service) countIngest(category string, err error) {
	result := "ok"
	switch {
	case err == nil:
	case errors.Is(err, models.ErrValidation), errors.Is(err, models.ErrPermission):
		result = "rejected"
	default:
		result = "failed"
	}
	s.metrics.Ingests.WithLabelValues(category, result).Inc()
}

// persistenceErr keeps domain sentinels and classifies everything else as a
// persistence failure.
func persistenceErr(err error) error {
	for _, kind := range []error{models.ErrValidation, models.ErrPermission, models.ErrNotFound, models.ErrPersistence} {
		if errors.Is(err, kind) {
			return err
		}
	}
	return fmt.Errorf("%w: %v", models.ErrPersistence, err)
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}
