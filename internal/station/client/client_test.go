package client

import (
	"context"
	"errors"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/ezforhamza/awaz-e-talba-sub000/internal/api"
	"github.com/ezforhamza/awaz-e-talba-sub000/internal/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
)

// fakeServer records what it receives and answers from presets.
type fakeServer struct {
	mu      sync.Mutex
	tokens  []string
	start   *api.StartSessionRequest
	castErr error
	ended   string
	snaps   []*api.TallySnapshot
}

func (f *fakeServer) token(ctx context.Context) {
	md, _ := metadata.FromIncomingContext(ctx)
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tokens = append(f.tokens, md.Get(common.StationTokenHeaderName)...)
}

func (f *fakeServer) CheckEligibility(ctx context.Context, in *api.CheckEligibilityRequest) (*api.EligibilityResponse, error) {
	f.token(ctx)
	if in.VotingID == "bad" {
		return nil, status.Error(codes.InvalidArgument, api.ReasonInvalidFormat)
	}
	return &api.EligibilityResponse{Eligible: true, Ballots: []api.Ballot{{ElectionID: "pres"}}}, nil
}

func (f *fakeServer) StartSession(ctx context.Context, in *api.StartSessionRequest) (*api.StartSessionResponse, error) {
	f.token(ctx)
	f.start = in
	return &api.StartSessionResponse{SessionID: "s1"}, nil
}

func (f *fakeServer) CastVote(ctx context.Context, in *api.CastVoteRequest) (*api.CastVoteResponse, error) {
	f.token(ctx)
	if f.castErr != nil {
		return nil, f.castErr
	}
	return &api.CastVoteResponse{VoteID: "v1", SessionCompleted: true}, nil
}

func (f *fakeServer) EndSession(ctx context.Context, in *api.EndSessionRequest) (*api.EndSessionResponse, error) {
	f.token(ctx)
	f.ended = in.SessionID
	return &api.EndSessionResponse{}, nil
}

func (f *fakeServer) GetLiveTally(ctx context.Context, in *api.GetTallyRequest) (*api.TallySnapshot, error) {
	f.token(ctx)
	if in.ElectionID != "pres" {
		return nil, status.Error(codes.NotFound, api.ReasonNotFound)
	}
	return &api.TallySnapshot{ElectionID: "pres", Total: 3}, nil
}

func (f *fakeServer) WatchTally(in *api.WatchTallyRequest, stream grpc.ServerStreamingServer[api.TallySnapshot]) error {
	f.token(stream.Context())
	for _, s := range f.snaps {
		if err := stream.Send(s); err != nil {
			return err
		}
	}
	return nil
}

func newTestClient(t *testing.T, fake *fakeServer) *GRPCClient {
	t.Helper()
	lis := bufconn.Listen(1 << 20)

	srv := grpc.NewServer()
	api.RegisterVotingServiceServer(srv, fake)
	hs := health.NewServer()
	hs.SetServingStatus(api.ServiceName, healthpb.HealthCheckResponse_SERVING)
	healthpb.RegisterHealthServer(srv, hs)
	go func() { _ = srv.Serve(lis) }()
	t.Cleanup(srv.Stop)

	c, err := New("passthrough:///bufconn", "station-jwt", "station/1.0", "lab-1",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}))
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func TestClient_SendsTokenAndClientMeta(t *testing.T) {
	fake := &fakeServer{}
	c := newTestClient(t, fake)
	ctx := context.Background()

	resp, err := c.StartSession(ctx, "V-ROLL001-4821")
	require.NoError(t, err)
	assert.Equal(t, "s1", resp.SessionID)
	assert.Equal(t, "station/1.0", fake.start.UserAgent)
	assert.Equal(t, "lab-1", fake.start.Origin)

	require.NoError(t, c.EndSession(ctx, "s1"))
	assert.Equal(t, "s1", fake.ended)

	assert.Equal(t, []string{"station-jwt", "station-jwt"}, fake.tokens)
}

func TestClient_MapsRefusals(t *testing.T) {
	fake := &fakeServer{castErr: status.Error(codes.FailedPrecondition, api.ReasonAlreadyVoted)}
	c := newTestClient(t, fake)
	ctx := context.Background()

	_, err := c.CastVote(ctx, "s1", "pres", "a")
	require.Error(t, err)
	assert.Equal(t, api.ReasonAlreadyVoted, ReasonOf(err))
	assert.Equal(t, common.AlreadyVotedMessage, err.Error())

	_, err = c.CheckEligibility(ctx, "bad")
	assert.Equal(t, api.ReasonInvalidFormat, ReasonOf(err))

	_, err = c.GetTally(ctx, "other")
	assert.Equal(t, api.ReasonNotFound, ReasonOf(err))
}

func TestClient_UnmappedErrorPassesThrough(t *testing.T) {
	fake := &fakeServer{castErr: status.Error(codes.Internal, "boom")}
	c := newTestClient(t, fake)

	_, err := c.CastVote(context.Background(), "s1", "pres", "a")
	require.Error(t, err)
	assert.Empty(t, ReasonOf(err))
	assert.Equal(t, codes.Internal, status.Code(err))
}

func TestClient_WatchTally(t *testing.T) {
	fake := &fakeServer{snaps: []*api.TallySnapshot{{ElectionID: "pres", Version: 1}, {ElectionID: "pres", Version: 2}}}
	c := newTestClient(t, fake)

	var got []uint64
	err := c.WatchTally(context.Background(), "pres", func(s *api.TallySnapshot) {
		got = append(got, s.Version)
	})
	require.NoError(t, err)
	assert.Equal(t, []uint64{1, 2}, got)
	assert.Contains(t, fake.tokens, "station-jwt")
}

func TestClient_Ping(t *testing.T) {
	c := newTestClient(t, &fakeServer{})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, c.Ping(ctx))
}

func TestReasonOf(t *testing.T) {
	assert.Empty(t, ReasonOf(errors.New("plain")))
	assert.Equal(t, "x", ReasonOf(&Refusal{Reason: "x"}))
}
