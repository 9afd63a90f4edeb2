package server

import (
	"context"

	"google.golang.org/grpc"
)

const serviceName = "projectfiles.v1.FileService"

// FileServiceServer is the server API for projectfiles.v1.FileService.
type FileServiceServer interface {
	Upload(FileService_UploadServer) error
	List(context.Context, *ListRequest) (*ListResponse, error)
	Download(*FileRequest, FileService_FileStreamServer) error
	Preview(*FileRequest, FileService_FileStreamServer) error
	Thumbnail(*FileRequest, FileService_FileStreamServer) error
	SetVisibility(context.Context, *VisibilityRequest) (*FileResponse, error)
	Delete(context.Context, *FileRequest) (*FileResponse, error)
	Restore(context.Context, *FileRequest) (*FileResponse, error)
	AuditLog(context.Context, *AuditLogRequest) (*AuditLogResponse, error)
}

type FileService_UploadServer interface {
	SendAndClose(*UploadResponse) error
	Recv() (*UploadRequest, error)
	grpc.ServerStream
}

type uploadServer struct {
	grpc.ServerStream
}

func (x *uploadServer) SendAndClose(m *UploadResponse) error {
	return x.ServerStream.SendMsg(m)
}

func (x *uploadServer) Recv() (*UploadRequest, error) {
	m := new(UploadRequest)
	if err := x.ServerStream.RecvMsg(m); err != nil {
		return nil, err
	}
	return m, nil
}

// FileService_FileStreamServer streams one file: info first, then chunks.
type FileService_FileStreamServer interface {
	Send(*DownloadResponse) error
	grpc.ServerStream
}

type fileStreamServer struct {
	grpc.ServerStream
}

func (x *fileStreamServer) Send(m *DownloadResponse) error {
	return x.ServerStream.SendMsg(m)
}

func fullMethod(name string) string {
	return "/" + serviceName + "/" + name
}

func unaryHandler[Req any, Resp any](name string, call func(FileServiceServer, context.Context, *Req) (*Resp, error)) func(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	return func(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
		in := new(Req)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(FileServiceServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{
			Server:     srv,
			FullMethod: fullMethod(name),
		}
		handler := func(ctx context.Context, req interface{}) (interface{}, error) {
			return call(srv.(FileServiceServer), ctx, req.(*Req))
		}
		return interceptor(ctx, in, info, handler)
	}
}

func fileStreamHandler(call func(FileServiceServer, *FileRequest, FileService_FileStreamServer) error) grpc.StreamHandler {
	return func(srv interface{}, stream grpc.ServerStream) error {
		m := new(FileRequest)
		if err := stream.RecvMsg(m); err != nil {
			return err
		}
		return call(srv.(FileServiceServer), m, &fileStreamServer{stream})
	}
}

// FileService_ServiceDesc is the grpc.ServiceDesc for FileService. Messages
// travel with the JSON codec; there is no protobuf schema.
var FileService_ServiceDesc = grpc.ServiceDesc{
	ServiceName: serviceName,
	HandlerType: (*FileServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "List", Handler: unaryHandler("List", FileServiceServer.List)},
		{MethodName: "SetVisibility", Handler: unaryHandler("SetVisibility", FileServiceServer.SetVisibility)},
		{MethodName: "Delete", Handler: unaryHandler("Delete", FileServiceServer.Delete)},
		{MethodName: "Restore", Handler: unaryHandler("Restore", FileServiceServer.Restore)},
		{MethodName: "AuditLog", Handler: unaryHandler("AuditLog", FileServiceServer.AuditLog)},
	},
	Streams: []grpc.StreamDesc{
		{
			StreamName: "Upload",
			Handler: func(srv interface{}, stream grpc.ServerStream) error {
				return srv.(FileServiceServer).Upload(&uploadServer{stream})
			},
			ClientStreams: true,
		},
		{StreamName: "Download", Handler: fileStreamHandler(FileServiceServer.Download), ServerStreams: true},
		{StreamName: "Preview", Handler: fileStreamHandler(FileServiceServer.Preview), ServerStreams: true},
		{StreamName: "Thumbnail", Handler: fileStreamHandler(FileServiceServer.Thumbnail), ServerStreams: true},
	},
	Metadata: "projectfiles/v1/file_service",
}

func RegisterFileServiceServer(s grpc.ServiceRegistrar, srv FileServiceServer) {
	s.RegisterService(&FileService_ServiceDesc, srv)
}
