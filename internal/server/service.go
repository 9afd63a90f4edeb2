package server

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/PaulBabatuyi/projectfiles/internal/audit"
	"github.com/PaulBabatuyi/projectfiles/internal/middleware"
	"github.com/PaulBabatuyi/projectfiles/internal/models"
	"github.com/PaulBabatuyi/projectfiles/internal/preview"
	"github.com/PaulBabatuyi/projectfiles/internal/service"
	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const (
	chunkSize                   = 64 * 1024
	defaultMaxConcurrentUploads = 8
)

// FileServer adapts the file service and preview renderer to gRPC.
type FileServer struct {
	svc       *service.Service
	renderer  *preview.Renderer
	uploadSem *semaphore.Weighted
	logger    *zap.Logger
}

var _ FileServiceServer = (*FileServer)(nil)

type Option func(*FileServer)

func WithLogger(logger *zap.Logger) Option {
	return func(s *FileServer) { s.logger = logger }
}

// WithMaxConcurrentUploads bounds how many upload streams write at once.
func WithMaxConcurrentUploads(n int64) Option {
	return func(s *FileServer) {
		if n > 0 {
			s.uploadSem = semaphore.NewWeighted(n)
		}
	}
}

func NewFileServer(svc *service.Service, renderer *preview.Renderer, opts ...Option) *FileServer {
	s := &FileServer{
		svc:       svc,
		renderer:  renderer,
		uploadSem: semaphore.NewWeighted(defaultMaxConcurrentUploads),
		logger:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func actorFrom(ctx context.Context) (models.Actor, error) {
	actor, ok := middleware.ActorFromContext(ctx)
	if !ok {
		return models.Actor{}, status.Error(codes.Unauthenticated, "no caller identity")
	}
	return actor, nil
}

func (s *FileServer) Upload(stream FileService_UploadServer) error {
	ctx := stream.Context()
	actor, err := actorFrom(ctx)
	if err != nil {
		return err
	}

	// Receive first message
	first, err := stream.Recv()
	if err != nil {
		return status.Error(codes.InvalidArgument, "no manifest received")
	}
	manifest := first.Manifest
	if manifest == nil {
		return status.Error(codes.InvalidArgument, "first message must be the manifest")
	}
	if len(manifest.Files) == 0 {
		return status.Error(codes.InvalidArgument, "manifest lists no files")
	}

	if err := s.uploadSem.Acquire(ctx, 1); err != nil {
		return status.FromContextError(err).Err()
	}
	defer s.uploadSem.Release(1)

	chunks := &chunkStream{recv: stream.Recv}
	uploads := make([]service.Upload, len(manifest.Files))
	for i, h := range manifest.Files {
		uploads[i] = service.Upload{
			Name:        h.Name,
			ContentType: h.ContentType,
			Body:        &fileReader{stream: chunks, index: i},
		}
	}

	files, err := s.svc.IngestBatch(ctx, manifest.Project, actor, uploads, service.IngestOptions{
		Category: models.Category(manifest.Category),
		Version:  manifest.Version,
		Author:   manifest.Author,
		IsPublic: manifest.IsPublic,
	})
	if err != nil {
		return s.toStatus(err)
	}

	return stream.SendAndClose(&UploadResponse{Files: files})
}

func (s *FileServer) List(ctx context.Context, req *ListRequest) (*ListResponse, error) {
	actor, err := actorFrom(ctx)
	if err != nil {
		return nil, err
	}

	filter := models.FileFilter{
		IsPublic:       req.IsPublic,
		IncludeDeleted: req.IncludeDeleted,
		LatestOnly:     req.LatestOnly,
	}
	if req.Category != "" {
		c, ok := models.ParseCategory(req.Category)
		if !ok {
			return nil, status.Errorf(codes.InvalidArgument, "unknown category %q", req.Category)
		}
		filter.Category = &c
	}

	files, err := s.svc.List(ctx, req.Project, actor, filter)
	if err != nil {
		return nil, s.toStatus(err)
	}
	return &ListResponse{Files: files}, nil
}

func (s *FileServer) Download(req *FileRequest, stream FileService_FileStreamServer) error {
	ctx := stream.Context()
	actor, err := actorFrom(ctx)
	if err != nil {
		return err
	}

	f, reader, err := s.svc.Download(ctx, req.Project, actor, req.FileID)
	if err != nil {
		return s.toStatus(err)
	}
	defer reader.Close()

	return sendFile(stream, &FileInfo{
		FileID:      f.ID,
		Name:        f.OriginalName,
		ContentType: f.ContentType,
		Size:        f.SizeBytes,
	}, reader)
}

func (s *FileServer) Preview(req *FileRequest, stream FileService_FileStreamServer) error {
	return s.streamArtifact(req, stream, "application/pdf", s.renderer.GetOrRender)
}

func (s *FileServer) Thumbnail(req *FileRequest, stream FileService_FileStreamServer) error {
	return s.streamArtifact(req, stream, "image/jpeg", s.renderer.Thumbnail)
}

type renderFunc func(ctx context.Context, project models.Project, f *models.StoredFile, sourcePath string) (string, error)

func (s *FileServer) streamArtifact(req *FileRequest, stream FileService_FileStreamServer, contentType string, render renderFunc) error {
	ctx := stream.Context()
	actor, err := actorFrom(ctx)
	if err != nil {
		return err
	}

	f, src, err := s.svc.Readable(ctx, req.Project, actor, req.FileID)
	if err != nil {
		return s.toStatus(err)
	}
	path, err := render(ctx, req.Project, f, src)
	if err != nil {
		return s.toStatus(err)
	}

	file, err := os.Open(path)
	if err != nil {
		return s.toStatus(err)
	}
	defer file.Close()
	info, err := file.Stat()
	if err != nil {
		return s.toStatus(err)
	}

	return sendFile(stream, &FileInfo{
		FileID:      f.ID,
		Name:        filepath.Base(path),
		ContentType: contentType,
		Size:        info.Size(),
	}, file)
}

// sendFile sends info, then the content in 64KB chunks.
func sendFile(stream FileService_FileStreamServer, info *FileInfo, r io.Reader) error {
	if err := stream.Send(&DownloadResponse{Info: info}); err != nil {
		return err
	}

	buffer := make([]byte, chunkSize)
	for {
		n, err := r.Read(buffer)
		if n > 0 {
			if err := stream.Send(&DownloadResponse{Chunk: buffer[:n]}); err != nil {
				return err
			}
		}
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return status.Error(codes.Internal, "failed to read file")
		}
	}
}

func (s *FileServer) SetVisibility(ctx context.Context, req *VisibilityRequest) (*FileResponse, error) {
	return s.mutate(ctx, req.Project, req.FileID, func(f *models.StoredFile, actor models.Actor) (*models.StoredFile, error) {
		return s.svc.SetVisibility(ctx, f, req.IsPublic, actor)
	})
}

func (s *FileServer) Delete(ctx context.Context, req *FileRequest) (*FileResponse, error) {
	return s.mutate(ctx, req.Project, req.FileID, func(f *models.StoredFile, actor models.Actor) (*models.StoredFile, error) {
		return s.svc.SoftDelete(ctx, f, actor)
	})
}

func (s *FileServer) Restore(ctx context.Context, req *FileRequest) (*FileResponse, error) {
	return s.mutate(ctx, req.Project, req.FileID, func(f *models.StoredFile, actor models.Actor) (*models.StoredFile, error) {
		return s.svc.Restore(ctx, f, actor)
	})
}

func (s *FileServer) mutate(ctx context.Context, project models.Project, id string, apply func(*models.StoredFile, models.Actor) (*models.StoredFile, error)) (*FileResponse, error) {
	actor, err := actorFrom(ctx)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(id) == "" {
		return nil, status.Error(codes.InvalidArgument, "file_id required")
	}

	f, err := s.svc.Get(ctx, project, id)
	if err != nil {
		return nil, s.toStatus(err)
	}
	updated, err := apply(f, actor)
	if err != nil {
		return nil, s.toStatus(err)
	}
	return &FileResponse{File: updated}, nil
}

// AuditLog is limited to management and roles that see every file.
func (s *FileServer) AuditLog(ctx context.Context, req *AuditLogRequest) (*AuditLogResponse, error) {
	actor, err := actorFrom(ctx)
	if err != nil {
		return nil, err
	}
	if !actor.Role.CanToggleVisibility() && !actor.Role.SeesAll() {
		return nil, status.Errorf(codes.PermissionDenied, "role %q may not read the audit log", actor.Role)
	}

	filter := models.AuditFilter{
		ProjectID: req.ProjectID,
		DateFrom:  req.DateFrom,
		DateTo:    req.DateTo,
	}
	if req.ObjectType != "" {
		t := models.ObjectType(req.ObjectType)
		filter.ObjectType = &t
	}
	if req.Action != "" {
		a := models.Action(req.Action)
		filter.Action = &a
	}
	if req.OperatorID != "" {
		filter.OperatorID = &req.OperatorID
	}
	if req.ObjectID != "" {
		filter.ObjectID = &req.ObjectID
	}

	entries, err := s.svc.Audit().Query(ctx, filter, req.Limit)
	if err != nil {
		return nil, s.toStatus(err)
	}

	resp := &AuditLogResponse{Entries: make([]AuditRecord, 0, len(entries))}
	for _, e := range entries {
		resp.Entries = append(resp.Entries, AuditRecord{
			Entry:       e,
			ObjectLabel: audit.ObjectTypeLabel(e.ObjectType),
			ActionLabel: audit.ActionLabel(e.Action),
			Summary:     audit.RenderDiff(e),
		})
	}
	return resp, nil
}
