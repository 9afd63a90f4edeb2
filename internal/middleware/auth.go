package middleware

import (
	"context"
	"net"
	"strings"

	"github.com/PaulBabatuyi/projectfiles/internal/models"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/peer"
	"google.golang.org/grpc/status"
)

// Metadata keys read by the auth interceptors.
const (
	APIKeyHeader   = "api-key"
	UserIDHeader   = "user-id"
	UserRoleHeader = "user-role"
	ForwardedFor   = "x-forwarded-for"
)

type actorKey struct{}

// Auth validates API keys and resolves the calling user into a models.Actor.
type Auth struct {
	keys map[string]bool
}

func NewAuth(keys []string) *Auth {
	a := &Auth{keys: make(map[string]bool, len(keys))}
	for _, k := range keys {
		if k = strings.TrimSpace(k); k != "" {
			a.keys[k] = true
		}
	}
	return a
}

// UnaryInterceptor validates API keys from metadata
func (a *Auth) UnaryInterceptor(
	ctx context.Context,
	req interface{},
	info *grpc.UnaryServerInfo,
	handler grpc.UnaryHandler,
) (interface{}, error) {
	ctx, err := a.authenticate(ctx)
	if err != nil {
		return nil, err
	}
	return handler(ctx, req)
}

// StreamInterceptor for streaming RPCs
func (a *Auth) StreamInterceptor(
	srv interface{},
	ss grpc.ServerStream,
	info *grpc.StreamServerInfo,
	handler grpc.StreamHandler,
) error {
	ctx, err := a.authenticate(ss.Context())
	if err != nil {
		return err
	}
	return handler(srv, &contextStream{ServerStream: ss, ctx: ctx})
}

func (a *Auth) authenticate(ctx context.Context) (context.Context, error) {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return nil, status.Error(codes.Unauthenticated, "missing metadata")
	}

	apiKeys := md.Get(APIKeyHeader)
	if len(apiKeys) == 0 {
		return nil, status.Error(codes.Unauthenticated, "missing api-key")
	}
	if !a.keys[apiKeys[0]] {
		return nil, status.Error(codes.Unauthenticated, "invalid api-key")
	}

	userID := first(md, UserIDHeader)
	if userID == "" {
		return nil, status.Error(codes.Unauthenticated, "missing user-id")
	}

	actor := models.Actor{
		UserID:   userID,
		Role:     models.ParseRole(first(md, UserRoleHeader)),
		RemoteIP: remoteIP(ctx, md),
	}
	return context.WithValue(ctx, actorKey{}, actor), nil
}

// ActorFromContext returns the caller resolved by the auth interceptor.
func ActorFromContext(ctx context.Context) (models.Actor, bool) {
	actor, ok := ctx.Value(actorKey{}).(models.Actor)
	return actor, ok
}

func first(md metadata.MD, key string) string {
	if vals := md.Get(key); len(vals) > 0 {
		return strings.TrimSpace(vals[0])
	}
	return ""
}

// remoteIP prefers the first x-forwarded-for hop and falls back to the peer.
func remoteIP(ctx context.Context, md metadata.MD) string {
	if fwd := first(md, ForwardedFor); fwd != "" {
		ip, _, _ := strings.Cut(fwd, ",")
		return strings.TrimSpace(ip)
	}
	p, ok := peer.FromContext(ctx)
	if !ok || p.Addr == nil {
		return ""
	}
	addr := p.Addr.String()
	if host, _, err := net.SplitHostPort(addr); err == nil {
		return host
	}
	return addr
}

type contextStream struct {
	grpc.ServerStream
	ctx context.Context
}

func (s *contextStream) Context() context.Context { return s.ctx }
