package server_test

import (
	"bytes"
	"context"
	"net"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/PaulBabatuyi/projectfiles/internal/database"
	"github.com/PaulBabatuyi/projectfiles/internal/middleware"
	"github.com/PaulBabatuyi/projectfiles/internal/models"
	"github.com/PaulBabatuyi/projectfiles/internal/preview"
	"github.com/PaulBabatuyi/projectfiles/internal/server"
	"github.com/PaulBabatuyi/projectfiles/internal/service"
	"github.com/PaulBabatuyi/projectfiles/internal/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
)

const (
	bufSize = 1024 * 1024
	apiKey  = "test-key-456"
)

var (
	project = models.Project{ID: 7, Code: "P-7", CompanyName: "Acme", ContractNumber: "HT7", ContractName: "Line"}

	sales    = models.Actor{UserID: "u-sales", Role: models.RoleSales}
	boss     = models.Actor{UserID: "u-boss", Role: models.RoleBoss}
	engineer = models.Actor{UserID: "u-eng", Role: models.RoleMechanicalEngineer}
	customer = models.Actor{UserID: "u-cust", Role: models.RoleCustomer}
)

type pdfConverter struct {
	calls atomic.Int32
}

func (c *pdfConverter) Convert(_ context.Context, src, outDir string) error {
	c.calls.Add(1)
	stem := strings.TrimSuffix(filepath.Base(src), filepath.Ext(src))
	return os.WriteFile(filepath.Join(outDir, stem+".pdf"), []byte("%PDF rendered"), 0o644)
}

func setupTestServer(t *testing.T) (*server.FileServiceClient, *pdfConverter) {
	t.Helper()
	logger := zaptest.NewLogger(t)

	db, err := database.Open(context.Background(), database.DriverSQLite, filepath.Join(t.TempDir(), "files.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, db.Migrate(logger))

	store, err := storage.NewFilesystemStorage(t.TempDir())
	require.NoError(t, err)

	conv := &pdfConverter{}
	svc := service.NewFileService(store, db, service.WithLogger(logger))
	renderer := preview.NewRenderer(filepath.Join(t.TempDir(), "preview"), conv, preview.WithLogger(logger))
	auth := middleware.NewAuth([]string{apiKey})

	lis := bufconn.Listen(bufSize)
	srv := grpc.NewServer(
		grpc.ChainUnaryInterceptor(auth.UnaryInterceptor, middleware.UnaryLoggingInterceptor(logger)),
		grpc.ChainStreamInterceptor(auth.StreamInterceptor, middleware.StreamLoggingInterceptor(logger)),
	)
	server.RegisterFileServiceServer(srv, server.NewFileServer(svc, renderer,
		server.WithLogger(logger),
		server.WithMaxConcurrentUploads(2),
	))

	go func() {
		if err := srv.Serve(lis); err != nil {
			t.Logf("Server error: %v", err)
		}
	}()

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(context.Context, string) (net.Conn, error) {
			return lis.Dial()
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)

	t.Cleanup(func() {
		conn.Close()
		srv.Stop()
	})
	return server.NewFileServiceClient(conn), conv
}

func as(actor models.Actor) context.Context {
	return metadata.AppendToOutgoingContext(context.Background(),
		"api-key", apiKey,
		"user-id", actor.UserID,
		"user-role", string(actor.Role),
	)
}

type namedFile struct {
	name    string
	content string
}

func upload(t *testing.T, client *server.FileServiceClient, actor models.Actor, manifest server.UploadManifest, files ...namedFile) (*server.UploadResponse, error) {
	t.Helper()
	stream, err := client.Upload(as(actor))
	require.NoError(t, err)

	manifest.Project = project
	for _, f := range files {
		manifest.Files = append(manifest.Files, server.FileHeader{Name: f.name})
	}
	require.NoError(t, stream.Send(&server.UploadRequest{Manifest: &manifest}))
	for i, f := range files {
		if err := stream.SendFile(i, strings.NewReader(f.content)); err != nil {
			break
		}
	}
	return stream.CloseAndRecv()
}

func download(t *testing.T, client *server.FileServiceClient, actor models.Actor, id string) (*server.FileInfo, []byte, error) {
	t.Helper()
	stream, err := client.Download(as(actor), &server.FileRequest{Project: project, FileID: id})
	require.NoError(t, err)
	var buf bytes.Buffer
	info, err := stream.ReadTo(&buf)
	return info, buf.Bytes(), err
}

func TestUploadDownloadFlow(t *testing.T) {
	client, _ := setupTestServer(t)

	big := strings.Repeat("0123456789", 20000)
	resp, err := upload(t, client, sales, server.UploadManifest{Category: "tech", Version: "V2"},
		namedFile{"datasheet.docx", big},
		namedFile{"", "ignored"},
		namedFile{"notes.pdf", "%PDF notes"},
	)
	require.NoError(t, err)
	require.Len(t, resp.Files, 2)
	assert.Equal(t, "datasheet.docx", resp.Files[0].OriginalName)
	assert.Equal(t, int64(len(big)), resp.Files[0].SizeBytes)
	assert.Equal(t, "notes.pdf", resp.Files[1].OriginalName)
	assert.Equal(t, "V2", resp.Files[1].Version)

	info, data, err := download(t, client, sales, resp.Files[0].ID)
	require.NoError(t, err)
	assert.Equal(t, "datasheet.docx", info.Name)
	assert.Equal(t, int64(len(big)), info.Size)
	assert.Equal(t, big, string(data))

	_, data, err = download(t, client, sales, resp.Files[1].ID)
	require.NoError(t, err)
	assert.Equal(t, "%PDF notes", string(data))

	log, err := client.AuditLog(as(boss), &server.AuditLogRequest{ObjectID: resp.Files[0].ID})
	require.NoError(t, err)
	require.Len(t, log.Entries, 2)
	assert.Equal(t, models.ActionDownload, log.Entries[0].Entry.Action)
	assert.Equal(t, models.ActionUpload, log.Entries[1].Entry.Action)
	assert.NotEmpty(t, log.Entries[1].Summary)
	assert.NotEmpty(t, log.Entries[1].ActionLabel)
}

func TestUploadRejections(t *testing.T) {
	client, _ := setupTestServer(t)

	_, err := upload(t, client, sales, server.UploadManifest{Category: "drawing"}, namedFile{"frame.dwg", "x"})
	assert.Equal(t, codes.PermissionDenied, status.Code(err))

	_, err = upload(t, client, sales, server.UploadManifest{Category: "tech"}, namedFile{"tool.exe", "x"})
	assert.Equal(t, codes.InvalidArgument, status.Code(err))

	_, err = upload(t, client, sales, server.UploadManifest{Category: "tech"})
	assert.Equal(t, codes.InvalidArgument, status.Code(err))

	stream, err := client.Upload(as(sales))
	require.NoError(t, err)
	require.NoError(t, stream.Send(&server.UploadRequest{Index: 0, Chunk: []byte("no manifest")}))
	_, err = stream.CloseAndRecv()
	assert.Equal(t, codes.InvalidArgument, status.Code(err))
}

func TestUnauthenticated(t *testing.T) {
	client, _ := setupTestServer(t)

	_, err := client.List(context.Background(), &server.ListRequest{Project: project})
	assert.Equal(t, codes.Unauthenticated, status.Code(err))

	ctx := metadata.AppendToOutgoingContext(context.Background(), "api-key", "wrong", "user-id", "u1")
	_, err = client.List(ctx, &server.ListRequest{Project: project})
	assert.Equal(t, codes.Unauthenticated, status.Code(err))
}

func TestListCustomerSeesOnlyPublicContractAndTech(t *testing.T) {
	client, _ := setupTestServer(t)

	_, err := upload(t, client, sales, server.UploadManifest{Category: "contract", IsPublic: true}, namedFile{"signed.pdf", "a"})
	require.NoError(t, err)
	_, err = upload(t, client, sales, server.UploadManifest{Category: "tech"}, namedFile{"internal.pdf", "b"})
	require.NoError(t, err)
	_, err = upload(t, client, sales, server.UploadManifest{Category: "other", IsPublic: true}, namedFile{"invoice.pdf", "c"})
	require.NoError(t, err)

	list, err := client.List(as(customer), &server.ListRequest{Project: project, IncludeDeleted: true})
	require.NoError(t, err)
	require.Len(t, list.Files, 1)
	assert.Equal(t, "signed.pdf", list.Files[0].OriginalName)

	list, err = client.List(as(boss), &server.ListRequest{Project: project, Category: "tech"})
	require.NoError(t, err)
	require.Len(t, list.Files, 1)
	assert.Equal(t, "internal.pdf", list.Files[0].OriginalName)

	_, err = client.List(as(boss), &server.ListRequest{Project: project, Category: "bogus"})
	assert.Equal(t, codes.InvalidArgument, status.Code(err))
}

func TestDeleteRestoreVisibility(t *testing.T) {
	client, _ := setupTestServer(t)

	resp, err := upload(t, client, sales, server.UploadManifest{Category: "contract"}, namedFile{"deal.pdf", "terms"})
	require.NoError(t, err)
	id := resp.Files[0].ID

	_, err = client.Delete(as(engineer), &server.FileRequest{Project: project, FileID: id})
	assert.Equal(t, codes.PermissionDenied, status.Code(err))

	deleted, err := client.Delete(as(sales), &server.FileRequest{Project: project, FileID: id})
	require.NoError(t, err)
	assert.True(t, deleted.File.IsDeleted)

	_, _, err = download(t, client, sales, id)
	assert.Equal(t, codes.NotFound, status.Code(err))

	_, err = client.Restore(as(sales), &server.FileRequest{Project: project, FileID: id})
	assert.Equal(t, codes.PermissionDenied, status.Code(err))

	restored, err := client.Restore(as(boss), &server.FileRequest{Project: project, FileID: id})
	require.NoError(t, err)
	assert.False(t, restored.File.IsDeleted)

	updated, err := client.SetVisibility(as(sales), &server.VisibilityRequest{Project: project, FileID: id, IsPublic: true})
	require.NoError(t, err)
	assert.True(t, updated.File.IsPublic)

	_, data, err := download(t, client, customer, id)
	require.NoError(t, err)
	assert.Equal(t, "terms", string(data))

	_, err = client.Delete(as(sales), &server.FileRequest{Project: project, FileID: "missing"})
	assert.Equal(t, codes.NotFound, status.Code(err))

	_, err = client.Delete(as(sales), &server.FileRequest{Project: project})
	assert.Equal(t, codes.InvalidArgument, status.Code(err))
}

func TestPreview(t *testing.T) {
	client, conv := setupTestServer(t)

	resp, err := upload(t, client, sales, server.UploadManifest{Category: "tech"},
		namedFile{"design.docx", "office"},
		namedFile{"drawing.pdf", "%PDF"},
	)
	require.NoError(t, err)

	for i := 0; i < 2; i++ {
		stream, err := client.Preview(as(sales), &server.FileRequest{Project: project, FileID: resp.Files[0].ID})
		require.NoError(t, err)
		var buf bytes.Buffer
		info, err := stream.ReadTo(&buf)
		require.NoError(t, err)
		assert.Equal(t, "design_preview.pdf", info.Name)
		assert.Equal(t, "application/pdf", info.ContentType)
		assert.Equal(t, "%PDF rendered", buf.String())
	}
	assert.Equal(t, int32(1), conv.calls.Load())

	stream, err := client.Preview(as(sales), &server.FileRequest{Project: project, FileID: resp.Files[1].ID})
	require.NoError(t, err)
	_, err = stream.ReadTo(&bytes.Buffer{})
	assert.Equal(t, codes.FailedPrecondition, status.Code(err))

	stream, err = client.Preview(as(engineer), &server.FileRequest{Project: project, FileID: resp.Files[0].ID})
	require.NoError(t, err)
	_, err = stream.ReadTo(&bytes.Buffer{})
	assert.Equal(t, codes.PermissionDenied, status.Code(err))
}

func TestAuditLogRequiresManagement(t *testing.T) {
	client, _ := setupTestServer(t)

	_, err := client.AuditLog(as(engineer), &server.AuditLogRequest{})
	assert.Equal(t, codes.PermissionDenied, status.Code(err))

	resp, err := upload(t, client, sales, server.UploadManifest{Category: "tech"}, namedFile{"a.pdf", "a"})
	require.NoError(t, err)

	log, err := client.AuditLog(as(sales), &server.AuditLogRequest{
		ProjectID: &project.ID,
		Action:    string(models.ActionUpload),
		Limit:     10,
	})
	require.NoError(t, err)
	require.Len(t, log.Entries, 1)
	assert.Equal(t, resp.Files[0].ID, log.Entries[0].Entry.ObjectID)
}
