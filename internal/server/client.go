package server

import (
	"context"
	"errors"
	"io"

	"google.golang.org/grpc"
)

// FileServiceClient is the typed client for projectfiles.v1.FileService.
// Every call is sent with the JSON codec.
type FileServiceClient struct {
	cc grpc.ClientConnInterface
}

func NewFileServiceClient(cc grpc.ClientConnInterface) *FileServiceClient {
	return &FileServiceClient{cc: cc}
}

func callOptions(opts []grpc.CallOption) []grpc.CallOption {
	return append([]grpc.CallOption{grpc.CallContentSubtype(codecName)}, opts...)
}

func (c *FileServiceClient) invoke(ctx context.Context, method string, in, out interface{}, opts []grpc.CallOption) error {
	return c.cc.Invoke(ctx, fullMethod(method), in, out, callOptions(opts)...)
}

func (c *FileServiceClient) List(ctx context.Context, in *ListRequest, opts ...grpc.CallOption) (*ListResponse, error) {
	out := new(ListResponse)
	if err := c.invoke(ctx, "List", in, out, opts); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *FileServiceClient) SetVisibility(ctx context.Context, in *VisibilityRequest, opts ...grpc.CallOption) (*FileResponse, error) {
	out := new(FileResponse)
	if err := c.invoke(ctx, "SetVisibility", in, out, opts); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *FileServiceClient) Delete(ctx context.Context, in *FileRequest, opts ...grpc.CallOption) (*FileResponse, error) {
	out := new(FileResponse)
	if err := c.invoke(ctx, "Delete", in, out, opts); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *FileServiceClient) Restore(ctx context.Context, in *FileRequest, opts ...grpc.CallOption) (*FileResponse, error) {
	out := new(FileResponse)
	if err := c.invoke(ctx, "Restore", in, out, opts); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *FileServiceClient) AuditLog(ctx context.Context, in *AuditLogRequest, opts ...grpc.CallOption) (*AuditLogResponse, error) {
	out := new(AuditLogResponse)
	if err := c.invoke(ctx, "AuditLog", in, out, opts); err != nil {
		return nil, err
	}
	return out, nil
}

func streamDesc(name string) *grpc.StreamDesc {
	for i := range FileService_ServiceDesc.Streams {
		if FileService_ServiceDesc.Streams[i].StreamName == name {
			return &FileService_ServiceDesc.Streams[i]
		}
	}
	panic("server: unknown stream " + name)
}

// UploadClient sends the manifest, then chunks, then CloseAndRecv.
type UploadClient struct {
	grpc.ClientStream
}

func (c *FileServiceClient) Upload(ctx context.Context, opts ...grpc.CallOption) (*UploadClient, error) {
	stream, err := c.cc.NewStream(ctx, streamDesc("Upload"), fullMethod("Upload"), callOptions(opts)...)
	if err != nil {
		return nil, err
	}
	return &UploadClient{stream}, nil
}

func (x *UploadClient) Send(m *UploadRequest) error {
	return x.ClientStream.SendMsg(m)
}

// SendFile streams r as the chunks of manifest entry index.
func (x *UploadClient) SendFile(index int, r io.Reader) error {
	buffer := make([]byte, chunkSize)
	for {
		n, err := r.Read(buffer)
		if n > 0 {
			if err := x.Send(&UploadRequest{Index: index, Chunk: buffer[:n]}); err != nil {
				return err
			}
		}
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
	}
}

func (x *UploadClient) CloseAndRecv() (*UploadResponse, error) {
	if err := x.ClientStream.CloseSend(); err != nil {
		return nil, err
	}
	m := new(UploadResponse)
	if err := x.ClientStream.RecvMsg(m); err != nil {
		return nil, err
	}
	return m, nil
}

// FileStreamClient receives a streamed file.
type FileStreamClient struct {
	grpc.ClientStream
}

func (x *FileStreamClient) Recv() (*DownloadResponse, error) {
	m := new(DownloadResponse)
	if err := x.ClientStream.RecvMsg(m); err != nil {
		return nil, err
	}
	return m, nil
}

// ReadTo copies the streamed content into w and returns the info header.
func (x *FileStreamClient) ReadTo(w io.Writer) (*FileInfo, error) {
	first, err := x.Recv()
	if err != nil {
		return nil, err
	}
	if first.Info == nil {
		return nil, errors.New("server: stream did not start with file info")
	}
	for {
		msg, err := x.Recv()
		if err == io.EOF {
			return first.Info, nil
		}
		if err != nil {
			return nil, err
		}
		if _, err := w.Write(msg.Chunk); err != nil {
			return nil, err
		}
	}
}

func (c *FileServiceClient) fileStream(ctx context.Context, name string, in *FileRequest, opts []grpc.CallOption) (*FileStreamClient, error) {
	stream, err := c.cc.NewStream(ctx, streamDesc(name), fullMethod(name), callOptions(opts)...)
	if err != nil {
		return nil, err
	}
	if err := stream.SendMsg(in); err != nil {
		return nil, err
	}
	if err := stream.CloseSend(); err != nil {
		return nil, err
	}
	return &FileStreamClient{stream}, nil
}

func (c *FileServiceClient) Download(ctx context.Context, in *FileRequest, opts ...grpc.CallOption) (*FileStreamClient, error) {
	return c.fileStream(ctx, "Download", in, opts)
}

func (c *FileServiceClient) Preview(ctx context.Context, in *FileRequest, opts ...grpc.CallOption) (*FileStreamClient, error) {
	return c.fileStream(ctx, "Preview", in, opts)
}

func (c *FileServiceClient) Thumbnail(ctx context.Context, in *FileRequest, opts ...grpc.CallOption) (*FileStreamClient, error) {
	return c.fileStream(ctx, "Thumbnail", in, opts)
}
