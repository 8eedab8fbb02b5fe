package grpc

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/ezforhamza/awaz-e-talba-sub000/internal/api"
	"github.com/ezforhamza/awaz-e-talba-sub000/internal/common"
	"github.com/ezforhamza/awaz-e-talba-sub000/internal/server/auth"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

type ctxKey string

const stationKey ctxKey = "station"

// StationFromContext returns the station authenticated for this call.
func StationFromContext(ctx context.Context) (*auth.Station, bool) {
	st, ok := ctx.Value(stationKey).(*auth.Station)
	return st, ok && st != nil
}

func requiresToken(fullMethod string) bool {
	return strings.HasPrefix(fullMethod, "/"+api.ServiceName+"/")
}

func (s *GRPCServer) authenticate(ctx context.Context) (context.Context, error) {
	var token string
	if md, ok := metadata.FromIncomingContext(ctx); ok {
		if values := md.Get(common.StationTokenHeaderName); len(values) > 0 {
			token = values[0]
		}
	}
	if token == "" {
		return nil, status.Error(codes.Unauthenticated, "missing token")
	}

	st, err := auth.ParseToken(token, s.tokenSecret)
	if err != nil {
		if errors.Is(err, common.ErrTokenExpired) {
			return nil, status.Error(codes.Unauthenticated, "token expired")
		}
		return nil, status.Error(codes.Unauthenticated, "invalid token")
	}
	return context.WithValue(ctx, stationKey, st), nil
}

func (s *GRPCServer) stationTokenInterceptor(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
	if !requiresToken(info.FullMethod) {
		return handler(ctx, req)
	}
	ctx, err := s.authenticate(ctx)
	if err != nil {
		return nil, err
	}
	return handler(ctx, req)
}

type authedStream struct {
	grpc.ServerStream
	ctx context.Context
}

func (a *authedStream) Context() context.Context { return a.ctx }

func (s *GRPCServer) stationTokenStreamInterceptor(srv any, ss grpc.ServerStream, info *grpc.StreamServerInfo, handler grpc.StreamHandler) error {
	if !requiresToken(info.FullMethod) {
		return handler(srv, ss)
	}
	ctx, err := s.authenticate(ss.Context())
	if err != nil {
		return err
	}
	return handler(srv, &authedStream{ServerStream: ss, ctx: ctx})
}

// loggingInterceptor logs the method, outcome and latency. Requests are
// never logged: they carry voting identifiers.
func (s *GRPCServer) loggingInterceptor(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
	start := time.Now()
	resp, err := handler(ctx, req)
	s.logCall(ctx, info.FullMethod, start, err)
	return resp, err
}

func (s *GRPCServer) streamLoggingInterceptor(srv any, ss grpc.ServerStream, info *grpc.StreamServerInfo, handler grpc.StreamHandler) error {
	start := time.Now()
	err := handler(srv, ss)
	s.logCall(ss.Context(), info.FullMethod, start, err)
	return err
}

func (s *GRPCServer) logCall(ctx context.Context, method string, start time.Time, err error) {
	code := status.Code(err)
	args := []any{"method", method, "code", code.String(), "duration", time.Since(start)}
	switch code {
	case codes.Internal, codes.Unavailable, codes.Unknown:
		s.logger.Warn(ctx, "rpc failed", append(args, "error", err)...)
	default:
		s.logger.Debug(ctx, "rpc", args...)
	}
}
