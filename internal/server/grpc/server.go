// Package grpc exposes the voting service over gRPC: station-token
// authentication, error-to-status mapping, the streaming tally feed and the
// standard health service.
package grpc

import (
	"context"
	"net"
	"time"

	"github.com/ezforhamza/awaz-e-talba-sub000/internal/api"
	"github.com/ezforhamza/awaz-e-talba-sub000/internal/logging"
	"github.com/ezforhamza/awaz-e-talba-sub000/internal/server/models"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// VotingService is what the transport needs from the service layer.
type VotingService interface {
	CheckEligibility(ctx context.Context, rawID, tenantID string) (*models.Eligibility, error)
	StartSession(ctx context.Context, rawID, tenantID string, client models.ClientMeta) (*models.VotingSession, *models.Eligibility, error)
	CastVote(ctx context.Context, tenantID, sessionID, electionID, candidateID string) (*models.VoteResult, error)
	EndSession(ctx context.Context, tenantID, sessionID string) error
	GetLiveTally(ctx context.Context, tenantID, electionID string) (*models.TallySnapshot, error)
	WatchTally(ctx context.Context, tenantID, electionID string) (<-chan *models.TallySnapshot, error)
}

type GRPCServer struct {
	address     string
	svc         VotingService
	logger      logging.Logger
	tokenSecret []byte
	castTimeout time.Duration
	health      *health.Server
}

func NewGRPCServer(a string, l logging.Logger, svc VotingService, tokenSecret string, castTimeout time.Duration) *GRPCServer {
	return &GRPCServer{
		address:     a,
		logger:      l.With("module", "grpc_server"),
		svc:         svc,
		tokenSecret: []byte(tokenSecret),
		castTimeout: castTimeout,
		health:      health.NewServer(),
	}
}

func (s *GRPCServer) newServer() *grpc.Server {
	srv := grpc.NewServer(
		grpc.ChainUnaryInterceptor(s.loggingInterceptor, s.stationTokenInterceptor),
		grpc.ChainStreamInterceptor(s.streamLoggingInterceptor, s.stationTokenStreamInterceptor),
	)
	api.RegisterVotingServiceServer(srv, s)
	healthpb.RegisterHealthServer(srv, s.health)
	return srv
}

// Run listens on the configured address and serves until ctx is cancelled.
func (s *GRPCServer) Run(ctx context.Context) error {
	listen, err := net.Listen("tcp", s.address)
	if err != nil {
		return err
	}
	return s.Serve(ctx, listen)
}

// Serve serves on lis until ctx is cancelled, then stops gracefully.
func (s *GRPCServer) Serve(ctx context.Context, lis net.Listener) error {
	srv := s.newServer()
	s.health.SetServingStatus(api.ServiceName, healthpb.HealthCheckResponse_SERVING)
	s.health.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)

	stopped := make(chan struct{})
	go func() {
		defer close(stopped)
		<-ctx.Done()
		s.logger.Info(ctx, "Stopping gRPC server...")
		s.health.Shutdown()
		srv.GracefulStop()
	}()

	s.logger.Info(ctx, "Starting gRPC server", "address", lis.Addr().String())

	if err := srv.Serve(lis); err != nil {
		return err
	}
	<-stopped
	return nil
}
