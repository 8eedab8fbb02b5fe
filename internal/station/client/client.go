// Package client is the voting station's connection to the ballot server.
package client

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/ezforhamza/awaz-e-talba-sub000/internal/api"
	"github.com/ezforhamza/awaz-e-talba-sub000/internal/common"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

// Refusal is a rejection the server explains with a stable reason code.
type Refusal struct {
	Reason string
}

func (r *Refusal) Error() string {
	return api.MessageFor(r.Reason)
}

// ReasonOf returns the reason code carried by err, or "".
func ReasonOf(err error) string {
	var r *Refusal
	if errors.As(err, &r) {
		return r.Reason
	}
	return ""
}

type GRPCClient struct {
	conn   *grpc.ClientConn
	client api.VotingServiceClient
	health healthpb.HealthClient
	token  string
	agent  string
	origin string
}

func withStationToken(ctx context.Context, token string) context.Context {
	md, _ := metadata.FromOutgoingContext(ctx)
	md = md.Copy()
	if md == nil {
		md = metadata.MD{}
	}
	md.Set(common.StationTokenHeaderName, token)
	return metadata.NewOutgoingContext(ctx, md)
}

func (c *GRPCClient) stationTokenInterceptor(
	ctx context.Context,
	method string,
	req, reply any,
	cc *grpc.ClientConn,
	invoker grpc.UnaryInvoker,
	opts ...grpc.CallOption,
) error {
	return invoker(withStationToken(ctx, c.token), method, req, reply, cc, opts...)
}

func (c *GRPCClient) stationTokenStreamInterceptor(
	ctx context.Context,
	desc *grpc.StreamDesc,
	cc *grpc.ClientConn,
	method string,
	streamer grpc.Streamer,
	opts ...grpc.CallOption,
) (grpc.ClientStream, error) {
	return streamer(withStationToken(ctx, c.token), desc, cc, method, opts...)
}

// New connects lazily to addr; the first RPC dials. agent and origin are
// recorded with every session the station opens.
func New(addr, token, agent, origin string, opts ...grpc.DialOption) (*GRPCClient, error) {
	c := &GRPCClient{token: token, agent: agent, origin: origin}

	dialOpts := append([]grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithChainUnaryInterceptor(c.stationTokenInterceptor),
		grpc.WithChainStreamInterceptor(c.stationTokenStreamInterceptor),
	}, opts...)

	conn, err := grpc.NewClient(addr, dialOpts...)
	if err != nil {
		return nil, err
	}
	c.conn = conn
	c.client = api.NewVotingServiceClient(conn)
	c.health = healthpb.NewHealthClient(conn)
	return c, nil
}

// mapError turns server refusals into *Refusal and leaves transport errors
// untouched.
func (c *GRPCClient) mapError(err error) error {
	if _, ok := status.FromError(err); !ok {
		return err
	}
	switch reason := api.ReasonFromStatus(err); reason {
	case api.ReasonInvalidFormat, api.ReasonUnknownVoter, api.ReasonNoActiveElections,
		api.ReasonAlreadyVoted, api.ReasonSessionInvalid, api.ReasonElectionClosed,
		api.ReasonInvalidCandidate, api.ReasonStorageUnavailable, api.ReasonNotFound,
		api.ReasonUnauthenticated:
		return &Refusal{Reason: reason}
	}
	return err
}

func (c *GRPCClient) CheckEligibility(ctx context.Context, votingID string) (*api.EligibilityResponse, error) {
	resp, err := c.client.CheckEligibility(ctx, &api.CheckEligibilityRequest{VotingID: votingID})
	if err != nil {
		return nil, c.mapError(err)
	}
	return resp, nil
}

func (c *GRPCClient) StartSession(ctx context.Context, votingID string) (*api.StartSessionResponse, error) {
	resp, err := c.client.StartSession(ctx, &api.StartSessionRequest{VotingID: votingID, UserAgent: c.agent, Origin: c.origin})
	if err != nil {
		return nil, c.mapError(err)
	}
	return resp, nil
}

func (c *GRPCClient) CastVote(ctx context.Context, sessionID, electionID, candidateID string) (*api.CastVoteResponse, error) {
	resp, err := c.client.CastVote(ctx, &api.CastVoteRequest{SessionID: sessionID, ElectionID: electionID, CandidateID: candidateID})
	if err != nil {
		return nil, c.mapError(err)
	}
	return resp, nil
}

func (c *GRPCClient) EndSession(ctx context.Context, sessionID string) error {
	if _, err := c.client.EndSession(ctx, &api.EndSessionRequest{SessionID: sessionID}); err != nil {
		return c.mapError(err)
	}
	return nil
}

func (c *GRPCClient) GetTally(ctx context.Context, electionID string) (*api.TallySnapshot, error) {
	resp, err := c.client.GetLiveTally(ctx, &api.GetTallyRequest{ElectionID: electionID})
	if err != nil {
		return nil, c.mapError(err)
	}
	return resp, nil
}

// WatchTally calls fn for every snapshot until ctx ends or the stream fails.
// Cancellation is not an error.
func (c *GRPCClient) WatchTally(ctx context.Context, electionID string, fn func(*api.TallySnapshot)) error {
	stream, err := c.client.WatchTally(ctx, &api.WatchTallyRequest{ElectionID: electionID})
	if err != nil {
		return c.mapError(err)
	}
	for {
		snap, err := stream.Recv()
		if err != nil {
			if errors.Is(err, io.EOF) || ctx.Err() != nil {
				return nil
			}
			return c.mapError(err)
		}
		fn(snap)
	}
}

// Ping reports whether the voting service answers its health check.
func (c *GRPCClient) Ping(ctx context.Context) error {
	resp, err := c.health.Check(ctx, &healthpb.HealthCheckRequest{Service: api.ServiceName})
	if err != nil {
		return err
	}
	if resp.GetStatus() != healthpb.HealthCheckResponse_SERVING {
		return fmt.Errorf("service status %s", resp.GetStatus())
	}
	return nil
}

func (c *GRPCClient) Close() error {
	return c.conn.Close()
}
