package grpc

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ezforhamza/awaz-e-talba-sub000/internal/api"
	"github.com/ezforhamza/awaz-e-talba-sub000/internal/common"
	"github.com/ezforhamza/awaz-e-talba-sub000/internal/logging"
	"github.com/ezforhamza/awaz-e-talba-sub000/internal/server/auth"
	"github.com/ezforhamza/awaz-e-talba-sub000/internal/server/models"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// ---- fakes ----

type fakeVoting struct {
	elig    *models.Eligibility
	eligErr error

	session  *models.VotingSession
	startErr error
	gotMeta  models.ClientMeta

	result      *models.VoteResult
	castErr     error
	castHasDead bool

	endErr error

	snap     *models.TallySnapshot
	tallyErr error
	updates  chan *models.TallySnapshot

	gotTenant string
}

func (f *fakeVoting) CheckEligibility(_ context.Context, _ string, tenantID string) (*models.Eligibility, error) {
	f.gotTenant = tenantID
	return f.elig, f.eligErr
}

func (f *fakeVoting) StartSession(_ context.Context, _ string, tenantID string, client models.ClientMeta) (*models.VotingSession, *models.Eligibility, error) {
	f.gotTenant = tenantID
	f.gotMeta = client
	return f.session, f.elig, f.startErr
}

func (f *fakeVoting) CastVote(ctx context.Context, tenantID, _, _, _ string) (*models.VoteResult, error) {
	f.gotTenant = tenantID
	_, f.castHasDead = ctx.Deadline()
	return f.result, f.castErr
}

func (f *fakeVoting) EndSession(_ context.Context, tenantID, _ string) error {
	f.gotTenant = tenantID
	return f.endErr
}

func (f *fakeVoting) GetLiveTally(_ context.Context, tenantID, _ string) (*models.TallySnapshot, error) {
	f.gotTenant = tenantID
	return f.snap, f.tallyErr
}

func (f *fakeVoting) WatchTally(_ context.Context, tenantID, _ string) (<-chan *models.TallySnapshot, error) {
	f.gotTenant = tenantID
	if f.tallyErr != nil {
		return nil, f.tallyErr
	}
	return f.updates, nil
}

// ---- helpers ----

func newServer(svc VotingService) *GRPCServer {
	return NewGRPCServer("127.0.0.1:0", logging.Nop(), svc, "k", time.Second)
}

func stationCtx() context.Context {
	return context.WithValue(context.Background(), stationKey, &auth.Station{ID: "s1", TenantID: "t1"})
}

func sampleEligibility() *models.Eligibility {
	return &models.Eligibility{
		Eligible: true,
		TenantID: "t1",
		Elections: []models.ElectionEligibility{
			{
				Election:   models.Election{ID: "pres", Title: "President"},
				Candidates: []models.Candidate{{ID: "a", Name: "A", Position: 1}, {ID: "b", Name: "B", Position: 2}},
			},
			{
				Election: models.Election{ID: "sec", Title: "Secretary"},
				HasVoted: true,
			},
		},
	}
}

// ---- tests ----

func TestHandlers_RequireStation(t *testing.T) {
	s := newServer(&fakeVoting{})
	_, err := s.CheckEligibility(context.Background(), &api.CheckEligibilityRequest{VotingID: "x"})
	if status.Code(err) != codes.Unauthenticated {
		t.Fatalf("want Unauthenticated, got %v", status.Code(err))
	}
}

func TestCheckEligibility_Eligible(t *testing.T) {
	f := &fakeVoting{elig: sampleEligibility()}
	s := newServer(f)

	resp, err := s.CheckEligibility(stationCtx(), &api.CheckEligibilityRequest{VotingID: "V-1-0001"})
	if err != nil {
		t.Fatalf("CheckEligibility error: %v", err)
	}
	if !resp.Eligible || resp.Reason != "" {
		t.Fatalf("unexpected response: %+v", resp)
	}
	if len(resp.Ballots) != 2 || len(resp.Ballots[0].Candidates) != 2 || !resp.Ballots[1].HasVoted {
		t.Fatalf("unexpected ballots: %+v", resp.Ballots)
	}
	if f.gotTenant != "t1" {
		t.Fatalf("tenant not taken from token: %q", f.gotTenant)
	}
}

func TestCheckEligibility_AlreadyVotedReadsAsAlreadyVoted(t *testing.T) {
	elig := sampleEligibility()
	elig.Eligible = false
	elig.Reason = common.ErrAlreadyVotedAll
	s := newServer(&fakeVoting{elig: elig})

	resp, err := s.CheckEligibility(stationCtx(), &api.CheckEligibilityRequest{VotingID: "V-1-0001"})
	if err != nil {
		t.Fatalf("CheckEligibility error: %v", err)
	}
	if resp.Reason != api.ReasonAlreadyVoted || resp.Message != common.AlreadyVotedMessage {
		t.Fatalf("unexpected reason/message: %q %q", resp.Reason, resp.Message)
	}
}

func TestCheckEligibility_StorageError(t *testing.T) {
	s := newServer(&fakeVoting{eligErr: errors.Join(common.ErrStorageUnavailable, errors.New("down"))})
	_, err := s.CheckEligibility(stationCtx(), &api.CheckEligibilityRequest{VotingID: "x"})
	if status.Code(err) != codes.Unavailable {
		t.Fatalf("want Unavailable, got %v", status.Code(err))
	}
}

func TestStartSession_FiltersBallotsAndFillsClient(t *testing.T) {
	f := &fakeVoting{
		elig:    sampleEligibility(),
		session: &models.VotingSession{ID: "sess-1", StartedAt: time.Unix(100, 0)},
	}
	s := newServer(f)

	resp, err := s.StartSession(stationCtx(), &api.StartSessionRequest{VotingID: "V-1-0001", UserAgent: "kiosk/2"})
	if err != nil {
		t.Fatalf("StartSession error: %v", err)
	}
	if resp.SessionID != "sess-1" {
		t.Fatalf("unexpected session: %q", resp.SessionID)
	}
	if len(resp.Ballots) != 1 || resp.Ballots[0].ElectionID != "pres" {
		t.Fatalf("voted election should be filtered: %+v", resp.Ballots)
	}
	if f.gotMeta.UserAgent != "kiosk/2" || f.gotMeta.Origin != "station:s1" {
		t.Fatalf("unexpected client meta: %+v", f.gotMeta)
	}
}

func TestStartSession_NotEligible(t *testing.T) {
	s := newServer(&fakeVoting{startErr: common.ErrUnknownOrInactiveVoter})
	_, err := s.StartSession(stationCtx(), &api.StartSessionRequest{VotingID: "x"})
	if status.Code(err) != codes.FailedPrecondition {
		t.Fatalf("want FailedPrecondition, got %v", status.Code(err))
	}
	if got := api.ReasonFromStatus(err); got != api.ReasonUnknownVoter {
		t.Fatalf("unexpected reason %q", got)
	}
}

func TestCastVote_OK(t *testing.T) {
	f := &fakeVoting{result: &models.VoteResult{VoteID: "v1", Remaining: []string{"sec"}}}
	s := newServer(f)

	resp, err := s.CastVote(stationCtx(), &api.CastVoteRequest{SessionID: "s", ElectionID: "e", CandidateID: "c"})
	if err != nil {
		t.Fatalf("CastVote error: %v", err)
	}
	if resp.VoteID != "v1" || len(resp.Remaining) != 1 || resp.SessionCompleted {
		t.Fatalf("unexpected response: %+v", resp)
	}
	if !f.castHasDead {
		t.Fatalf("cast should run under the cast timeout")
	}
}

func TestCastVote_MissingFields(t *testing.T) {
	s := newServer(&fakeVoting{})
	_, err := s.CastVote(stationCtx(), &api.CastVoteRequest{SessionID: "s"})
	if status.Code(err) != codes.InvalidArgument {
		t.Fatalf("want InvalidArgument, got %v", status.Code(err))
	}
}

func TestToStatus(t *testing.T) {
	s := newServer(&fakeVoting{})

	tests := []struct {
		err    error
		code   codes.Code
		reason string
	}{
		{common.ErrInvalidFormat, codes.InvalidArgument, api.ReasonInvalidFormat},
		{common.ErrUnknownOrInactiveVoter, codes.FailedPrecondition, api.ReasonUnknownVoter},
		{common.ErrNoActiveElections, codes.FailedPrecondition, api.ReasonNoActiveElections},
		{common.ErrAlreadyVotedAll, codes.FailedPrecondition, api.ReasonAlreadyVoted},
		{common.ErrDuplicateVote, codes.FailedPrecondition, api.ReasonAlreadyVoted},
		{common.ErrElectionClosed, codes.FailedPrecondition, api.ReasonElectionClosed},
		{common.ErrSessionInvalid, codes.NotFound, api.ReasonSessionInvalid},
		{common.ErrInvalidCandidate, codes.InvalidArgument, api.ReasonInvalidCandidate},
		{common.ErrorNotFound, codes.NotFound, api.ReasonNotFound},
		{errors.Join(common.ErrStorageUnavailable, errors.New("x")), codes.Unavailable, api.ReasonStorageUnavailable},
		{context.DeadlineExceeded, codes.Unavailable, api.ReasonStorageUnavailable},
		{context.Canceled, codes.Canceled, "canceled"},
		{errors.New("boom"), codes.Internal, "internal error"},
	}
	for _, tt := range tests {
		err := s.toStatus(context.Background(), tt.err)
		st := status.Convert(err)
		if st.Code() != tt.code || st.Message() != tt.reason {
			t.Fatalf("%v: got %v %q, want %v %q", tt.err, st.Code(), st.Message(), tt.code, tt.reason)
		}
	}
}

func TestEndSession_And_GetLiveTally(t *testing.T) {
	f := &fakeVoting{snap: &models.TallySnapshot{
		ElectionID: "pres",
		Total:      2,
		Candidates: []models.CandidateTally{{CandidateID: "a", Count: 2, Percentage: 100}},
		Leaders:    []string{"a"},
		Version:    3,
	}}
	s := newServer(f)

	if _, err := s.EndSession(stationCtx(), &api.EndSessionRequest{SessionID: "s"}); err != nil {
		t.Fatalf("EndSession error: %v", err)
	}

	resp, err := s.GetLiveTally(stationCtx(), &api.GetTallyRequest{ElectionID: "pres"})
	if err != nil {
		t.Fatalf("GetLiveTally error: %v", err)
	}
	if resp.Total != 2 || resp.Version != 3 || resp.Candidates[0].Percentage != 100 || resp.Leaders[0] != "a" {
		t.Fatalf("unexpected tally: %+v", resp)
	}

	f.tallyErr = common.ErrorNotFound
	_, err = s.GetLiveTally(stationCtx(), &api.GetTallyRequest{ElectionID: "nope"})
	if status.Code(err) != codes.NotFound {
		t.Fatalf("want NotFound, got %v", status.Code(err))
	}

	f.endErr = common.ErrSessionInvalid
	_, err = s.EndSession(stationCtx(), &api.EndSessionRequest{SessionID: "s"})
	if status.Code(err) != codes.NotFound {
		t.Fatalf("want NotFound, got %v", status.Code(err))
	}
}
