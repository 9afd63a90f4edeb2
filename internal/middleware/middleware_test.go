package middleware_test

import (
	"context"
	"net"
	"testing"

	"github.com/PaulBabatuyi/projectfiles/internal/middleware"
	"github.com/PaulBabatuyi/projectfiles/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/peer"
	"google.golang.org/grpc/status"
)

var unaryInfo = &grpc.UnaryServerInfo{FullMethod: "/projectfiles.v1.FileService/List"}

func incoming(pairs ...string) context.Context {
	ctx := peer.NewContext(context.Background(), &peer.Peer{
		Addr: &net.TCPAddr{IP: net.ParseIP("10.0.0.5"), Port: 40112},
	})
	return metadata.NewIncomingContext(ctx, metadata.Pairs(pairs...))
}

func callUnary(t *testing.T, auth *middleware.Auth, ctx context.Context) (models.Actor, error) {
	t.Helper()
	var actor models.Actor
	_, err := auth.UnaryInterceptor(ctx, nil, unaryInfo, func(ctx context.Context, _ interface{}) (interface{}, error) {
		a, ok := middleware.ActorFromContext(ctx)
		require.True(t, ok)
		actor = a
		return nil, nil
	})
	return actor, err
}

func TestAuthRejects(t *testing.T) {
	auth := middleware.NewAuth([]string{"dev-key-123", " "})

	tests := []struct {
		name string
		ctx  context.Context
	}{
		{"no metadata", context.Background()},
		{"no api key", incoming("user-id", "u1")},
		{"unknown api key", incoming("api-key", "nope", "user-id", "u1")},
		{"blank api key", incoming("api-key", "", "user-id", "u1")},
		{"no user", incoming("api-key", "dev-key-123")},
		{"blank user", incoming("api-key", "dev-key-123", "user-id", "  ")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := callUnary(t, auth, tt.ctx)
			assert.Equal(t, codes.Unauthenticated, status.Code(err))
		})
	}
}

func TestAuthResolvesActor(t *testing.T) {
	auth := middleware.NewAuth([]string{"dev-key-123"})

	actor, err := callUnary(t, auth, incoming("api-key", "dev-key-123", "user-id", "u1", "user-role", "Software Engineer"))
	require.NoError(t, err)
	assert.Equal(t, models.Actor{UserID: "u1", Role: models.RoleSoftwareEngineer, RemoteIP: "10.0.0.5"}, actor)

	actor, err = callUnary(t, auth, incoming("api-key", "dev-key-123", "user-id", "u2", "x-forwarded-for", "203.0.113.9, 10.0.0.1"))
	require.NoError(t, err)
	assert.Equal(t, "203.0.113.9", actor.RemoteIP)
	assert.Equal(t, models.RoleUnknown, actor.Role)
}

type fakeStream struct {
	grpc.ServerStream
	ctx context.Context
}

func (s *fakeStream) Context() context.Context { return s.ctx }

func TestStreamAuth(t *testing.T) {
	auth := middleware.NewAuth([]string{"dev-key-123"})
	info := &grpc.StreamServerInfo{FullMethod: "/projectfiles.v1.FileService/Upload", IsClientStream: true}

	var got models.Actor
	handler := func(_ interface{}, ss grpc.ServerStream) error {
		got, _ = middleware.ActorFromContext(ss.Context())
		return nil
	}

	err := auth.StreamInterceptor(nil, &fakeStream{ctx: incoming("api-key", "dev-key-123", "user-id", "u9", "user-role", "boss")}, info, handler)
	require.NoError(t, err)
	assert.Equal(t, "u9", got.UserID)
	assert.Equal(t, models.RoleBoss, got.Role)

	err = auth.StreamInterceptor(nil, &fakeStream{ctx: incoming("api-key", "bad")}, info, handler)
	assert.Equal(t, codes.Unauthenticated, status.Code(err))
}

func TestActorFromContextMissing(t *testing.T) {
	_, ok := middleware.ActorFromContext(context.Background())
	assert.False(t, ok)
}

func TestUnaryLoggingLevels(t *testing.T) {
	tests := []struct {
		err   error
		level zapcore.Level
	}{
		{nil, zapcore.InfoLevel},
		{status.Error(codes.PermissionDenied, "no"), zapcore.InfoLevel},
		{status.Error(codes.InvalidArgument, "bad"), zapcore.InfoLevel},
		{status.Error(codes.FailedPrecondition, "preview unavailable"), zapcore.InfoLevel},
		{status.Error(codes.Internal, "boom"), zapcore.ErrorLevel},
	}
	for _, tt := range tests {
		core, logs := observer.New(zapcore.DebugLevel)
		interceptor := middleware.UnaryLoggingInterceptor(zap.New(core))

		ctx := incoming("x-request-id", "req-1")
		_, err := interceptor(ctx, nil, unaryInfo, func(context.Context, interface{}) (interface{}, error) {
			return nil, tt.err
		})
		assert.Equal(t, tt.err, err)

		entries := logs.All()
		require.Len(t, entries, 1)
		assert.Equal(t, tt.level, entries[0].Level, status.Code(tt.err).String())
		assert.Equal(t, "req-1", entries[0].ContextMap()["request_id"])
		assert.Equal(t, status.Code(tt.err).String(), entries[0].ContextMap()["code"])
	}
}

func TestStreamLoggingIncludesActor(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	auth := middleware.NewAuth([]string{"k"})
	logging := middleware.StreamLoggingInterceptor(zap.New(core))
	info := &grpc.StreamServerInfo{FullMethod: "/projectfiles.v1.FileService/Download", IsServerStream: true}

	ss := &fakeStream{ctx: incoming("api-key", "k", "user-id", "u3", "user-role", "sales")}
	err := auth.StreamInterceptor(nil, ss, info, func(srv interface{}, ss grpc.ServerStream) error {
		return logging(srv, ss, info, func(interface{}, grpc.ServerStream) error { return nil })
	})
	require.NoError(t, err)

	entries := logs.FilterMessage("stream RPC").All()
	require.Len(t, entries, 1)
	assert.Equal(t, "u3", entries[0].ContextMap()["user_id"])
	assert.Equal(t, "sales", entries[0].ContextMap()["role"])
}
