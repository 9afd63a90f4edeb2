package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/PaulBabatuyi/projectfiles/internal/models"
	"github.com/PaulBabatuyi/projectfiles/internal/server"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
)

type FileClient struct {
	client  *server.FileServiceClient
	project models.Project
}

func NewFileClient(addr string, project models.Project) (*FileClient, error) {
	conn, err := grpc.NewClient(addr,
		grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("failed to connect: %w", err)
	}

	return &FileClient{
		client:  server.NewFileServiceClient(conn),
		project: project,
	}, nil
}

// UploadFiles streams local files as one batch
func (fc *FileClient) UploadFiles(ctx context.Context, manifest server.UploadManifest, paths []string) (*server.UploadResponse, error) {
	stream, err := fc.client.Upload(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create stream: %w", err)
	}

	manifest.Project = fc.project
	for _, p := range paths {
		manifest.Files = append(manifest.Files, server.FileHeader{Name: filepath.Base(p)})
	}
	if err := stream.Send(&server.UploadRequest{Manifest: &manifest}); err != nil {
		return nil, fmt.Errorf("failed to send manifest: %w", err)
	}

	for i, p := range paths {
		if err := sendPath(stream, i, p); err != nil {
			return nil, err
		}
	}

	resp, err := stream.CloseAndRecv()
	if err != nil {
		return nil, fmt.Errorf("failed to receive response: %w", err)
	}
	return resp, nil
}

func sendPath(stream *server.UploadClient, index int, path string) error {
	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	fmt.Printf("Uploading: %s\n", filepath.Base(path))
	if err := stream.SendFile(index, file); err != nil {
		return fmt.Errorf("failed to send %s: %w", path, err)
	}
	return nil
}

// Fetch streams a download, preview or thumbnail into outputPath
func (fc *FileClient) Fetch(ctx context.Context, kind, fileID, outputPath string) error {
	req := &server.FileRequest{Project: fc.project, FileID: fileID}

	var (
		stream *server.FileStreamClient
		err    error
	)
	switch kind {
	case "download":
		stream, err = fc.client.Download(ctx, req)
	case "preview":
		stream, err = fc.client.Preview(ctx, req)
	case "thumbnail":
		stream, err = fc.client.Thumbnail(ctx, req)
	default:
		return fmt.Errorf("unknown fetch kind %q", kind)
	}
	if err != nil {
		return fmt.Errorf("failed to create stream: %w", err)
	}

	outFile, err := os.Create(outputPath)
	if err != nil {
		return fmt.Errorf("failed to create output file: %w", err)
	}
	defer outFile.Close()

	info, err := stream.ReadTo(outFile)
	if err != nil {
		os.Remove(outputPath)
		return fmt.Errorf("failed to receive %s: %w", kind, err)
	}
	fmt.Printf("Saved %s (%s, %d bytes) to %s\n", info.Name, info.ContentType, info.Size, outputPath)
	return nil
}

func (fc *FileClient) List(ctx context.Context, category string, latest, deleted bool) error {
	resp, err := fc.client.List(ctx, &server.ListRequest{
		Project:        fc.project,
		Category:       category,
		LatestOnly:     latest,
		IncludeDeleted: deleted,
	})
	if err != nil {
		return fmt.Errorf("failed to list files: %w", err)
	}

	for _, f := range resp.Files {
		flags := ""
		if f.IsPublic {
			flags += " public"
		}
		if f.IsDeleted {
			flags += " deleted"
		}
		fmt.Printf("%s  %-8s %-4s %8d  %s%s\n", f.ID, f.Category, f.Version, f.SizeBytes, f.OriginalName, flags)
	}
	return nil
}

func (fc *FileClient) Mutate(ctx context.Context, action, fileID string) error {
	req := &server.FileRequest{Project: fc.project, FileID: fileID}

	var (
		resp *server.FileResponse
		err  error
	)
	switch action {
	case "delete":
		resp, err = fc.client.Delete(ctx, req)
	case "restore":
		resp, err = fc.client.Restore(ctx, req)
	case "publish", "unpublish":
		resp, err = fc.client.SetVisibility(ctx, &server.VisibilityRequest{
			Project:  fc.project,
			FileID:   fileID,
			IsPublic: action == "publish",
		})
	default:
		return fmt.Errorf("unknown action %q", action)
	}
	if err != nil {
		return fmt.Errorf("%s failed: %w", action, err)
	}
	fmt.Printf("✓ %s: public=%t deleted=%t\n", resp.File.OriginalName, resp.File.IsPublic, resp.File.IsDeleted)
	return nil
}

func (fc *FileClient) Audit(ctx context.Context, objectID string, limit int) error {
	projectID := fc.project.ID
	resp, err := fc.client.AuditLog(ctx, &server.AuditLogRequest{
		ProjectID: &projectID,
		ObjectID:  objectID,
		Limit:     limit,
	})
	if err != nil {
		return fmt.Errorf("failed to query audit log: %w", err)
	}

	for _, r := range resp.Entries {
		operator := ""
		if r.Entry.OperatorID != nil {
			operator = *r.Entry.OperatorID
		}
		fmt.Printf("%s  %-10s %-8s %s by %s\n", r.Entry.CreatedAt.Format(time.RFC3339), r.ActionLabel, r.ObjectLabel, r.Entry.ObjectID, operator)
		for _, line := range strings.Split(r.Summary, "\n") {
			if line != "" {
				fmt.Printf("    %s\n", line)
			}
		}
	}
	return nil
}

func usage() {
	fmt.Fprintf(os.Stderr, `usage: client [flags] <command> [args]

commands:
  upload <file>...           upload files as one batch
  list                       list project files
  download|preview|thumbnail <file-id> <output>
  delete|restore|publish|unpublish <file-id>
  audit [file-id]            show audit entries

flags:
`)
	flag.PrintDefaults()
}

func main() {
	addr := flag.String("addr", "localhost:50051", "server address")
	apiKey := flag.String("api-key", os.Getenv("PF_API_KEY"), "API key")
	userID := flag.String("user", "", "caller user id")
	role := flag.String("role", "admin", "caller role")
	projectID := flag.Int64("project", 0, "project id")
	projectCode := flag.String("code", "", "project code")
	company := flag.String("company", "", "company name used in stored names")
	contractNo := flag.String("contract-no", "", "contract number used in stored names")
	contractName := flag.String("contract-name", "", "contract name used in stored names")
	category := flag.String("category", "", "file category (contract, tech, drawing, other)")
	version := flag.String("version", "", "version label for uploads")
	author := flag.String("author", "", "author for uploads")
	public := flag.Bool("public", false, "make uploads visible to customers")
	latest := flag.Bool("latest", false, "list only the newest version of each document")
	deleted := flag.Bool("deleted", false, "include deleted files in listings")
	limit := flag.Int("limit", 50, "audit entries to show")
	timeout := flag.Duration("timeout", 2*time.Minute, "request timeout")
	flag.Usage = usage
	flag.Parse()

	args := flag.Args()
	if len(args) == 0 {
		usage()
		os.Exit(2)
	}

	client, err := NewFileClient(*addr, models.Project{
		ID:             *projectID,
		Code:           *projectCode,
		CompanyName:    *company,
		ContractNumber: *contractNo,
		ContractName:   *contractName,
	})
	if err != nil {
		log.Fatalf("Failed to create client: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()
	ctx = metadata.AppendToOutgoingContext(ctx,
		"api-key", *apiKey,
		"user-id", *userID,
		"user-role", *role,
	)

	cmd, rest := args[0], args[1:]
	switch cmd {
	case "upload":
		if len(rest) == 0 {
			log.Fatal("upload needs at least one file")
		}
		resp, err := client.UploadFiles(ctx, server.UploadManifest{
			Category: *category,
			Version:  *version,
			Author:   *author,
			IsPublic: *public,
		}, rest)
		if err != nil {
			log.Fatalf("Upload failed: %v", err)
		}
		for _, f := range resp.Files {
			fmt.Printf("✓ Uploaded: %s (ID: %s, Size: %d bytes, stored as %s)\n", f.OriginalName, f.ID, f.SizeBytes, f.StoredName)
		}
	case "list":
		err = client.List(ctx, *category, *latest, *deleted)
	case "download", "preview", "thumbnail":
		if len(rest) != 2 {
			log.Fatalf("%s needs <file-id> <output>", cmd)
		}
		err = client.Fetch(ctx, cmd, rest[0], rest[1])
	case "delete", "restore", "publish", "unpublish":
		if len(rest) != 1 {
			log.Fatalf("%s needs <file-id>", cmd)
		}
		err = client.Mutate(ctx, cmd, rest[0])
	case "audit":
		objectID := ""
		if len(rest) > 0 {
			objectID = rest[0]
		}
		err = client.Audit(ctx, objectID, *limit)
	default:
		usage()
		os.Exit(2)
	}
	if err != nil {
		log.Fatal(err)
	}
}

