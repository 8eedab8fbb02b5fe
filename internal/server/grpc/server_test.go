package grpc

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/ezforhamza/awaz-e-talba-sub000/internal/api"
	"github.com/ezforhamza/awaz-e-talba-sub000/internal/common"
	"github.com/ezforhamza/awaz-e-talba-sub000/internal/logging"
	"github.com/ezforhamza/awaz-e-talba-sub000/internal/server/auth"
	"github.com/ezforhamza/awaz-e-talba-sub000/internal/server/models"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
)

const testSecret = "bufconn-secret"

// startBufconn serves svc over an in-memory listener and returns a dialed
// connection. Everything is torn down with the test.
func startBufconn(t *testing.T, svc VotingService) *grpc.ClientConn {
	t.Helper()

	lis := bufconn.Listen(1 << 20)
	srv := NewGRPCServer("bufconn", logging.Nop(), svc, testSecret, time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Serve(ctx, lis) }()

	conn, err := grpc.NewClient("passthrough:///bufconn",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) { return lis.DialContext(ctx) }),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	if err != nil {
		t.Fatalf("NewClient error: %v", err)
	}

	t.Cleanup(func() {
		_ = conn.Close()
		cancel()
		if err := <-done; err != nil {
			t.Errorf("Serve returned error: %v", err)
		}
	})
	return conn
}

func withToken(t *testing.T, tenantID string) context.Context {
	t.Helper()
	token, err := auth.GenerateToken("station-1", tenantID, []byte(testSecret), time.Hour)
	if err != nil {
		t.Fatalf("GenerateToken error: %v", err)
	}
	return metadata.AppendToOutgoingContext(context.Background(), common.StationTokenHeaderName, token)
}

func TestBufconn_CastVoteRoundTrip(t *testing.T) {
	f := &fakeVoting{result: &models.VoteResult{VoteID: "v1", CastAt: time.Unix(1700000000, 0).UTC(), Remaining: []string{}, SessionCompleted: true}}
	client := api.NewVotingServiceClient(startBufconn(t, f))

	resp, err := client.CastVote(withToken(t, "t9"), &api.CastVoteRequest{SessionID: "s", ElectionID: "e", CandidateID: "c"})
	if err != nil {
		t.Fatalf("CastVote error: %v", err)
	}
	if resp.VoteID != "v1" || !resp.SessionCompleted || !resp.CastAt.Equal(time.Unix(1700000000, 0)) {
		t.Fatalf("unexpected response: %+v", resp)
	}
	if f.gotTenant != "t9" {
		t.Fatalf("tenant not taken from token: %q", f.gotTenant)
	}
}

func TestBufconn_DuplicateVoteIsAlreadyVoted(t *testing.T) {
	client := api.NewVotingServiceClient(startBufconn(t, &fakeVoting{castErr: common.ErrDuplicateVote}))

	_, err := client.CastVote(withToken(t, "t1"), &api.CastVoteRequest{SessionID: "s", ElectionID: "e", CandidateID: "c"})
	if status.Code(err) != codes.FailedPrecondition {
		t.Fatalf("want FailedPrecondition, got %v", status.Code(err))
	}
	if reason := api.ReasonFromStatus(err); reason != api.ReasonAlreadyVoted {
		t.Fatalf("unexpected reason %q", reason)
	}
}

func TestBufconn_RejectsMissingToken(t *testing.T) {
	client := api.NewVotingServiceClient(startBufconn(t, &fakeVoting{}))

	_, err := client.GetLiveTally(context.Background(), &api.GetTallyRequest{ElectionID: "e"})
	if status.Code(err) != codes.Unauthenticated {
		t.Fatalf("want Unauthenticated, got %v", status.Code(err))
	}
}

func TestBufconn_Health(t *testing.T) {
	conn := startBufconn(t, &fakeVoting{})

	resp, err := healthpb.NewHealthClient(conn).Check(context.Background(), &healthpb.HealthCheckRequest{Service: api.ServiceName})
	if err != nil {
		t.Fatalf("health Check error: %v", err)
	}
	if resp.GetStatus() != healthpb.HealthCheckResponse_SERVING {
		t.Fatalf("unexpected health status: %v", resp.GetStatus())
	}
}

func TestBufconn_WatchTally(t *testing.T) {
	f := &fakeVoting{updates: make(chan *models.TallySnapshot, 2)}
	f.updates <- &models.TallySnapshot{ElectionID: "pres", Version: 1}
	f.updates <- &models.TallySnapshot{ElectionID: "pres", Total: 1, Version: 2,
		Candidates: []models.CandidateTally{{CandidateID: "a", Count: 1, Percentage: 100}}, Leaders: []string{"a"}}
	close(f.updates)

	client := api.NewVotingServiceClient(startBufconn(t, f))
	stream, err := client.WatchTally(withToken(t, "t1"), &api.WatchTallyRequest{ElectionID: "pres"})
	if err != nil {
		t.Fatalf("WatchTally error: %v", err)
	}

	var versions []uint64
	for {
		snap, err := stream.Recv()
		if err != nil {
			break
		}
		versions = append(versions, snap.Version)
	}
	if len(versions) != 2 || versions[0] != 1 || versions[1] != 2 {
		t.Fatalf("unexpected versions: %v", versions)
	}
}

func TestRun_StopsOnContextCancel(t *testing.T) {
	t.Parallel()

	srv := NewGRPCServer("127.0.0.1:0", logging.Nop(), &fakeVoting{}, "secret", 0)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- srv.Run(ctx)
	}()

	select {
	case err := <-done:
		t.Fatalf("server exited too early: %v", err)
	case <-time.After(150 * time.Millisecond):
	}

	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run returned error on graceful stop: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("server did not stop within timeout after context cancel")
	}
}

func TestRun_ReturnsErrorOnBadAddress(t *testing.T) {
	t.Parallel()

	srv := NewGRPCServer("127.0.0.1:99999", logging.Nop(), &fakeVoting{}, "secret", 0)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := srv.Run(ctx); err == nil {
		t.Fatal("expected error from Run on bad address, got nil")
	}
}
