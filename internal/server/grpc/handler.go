package grpc

import (
	"context"
	"errors"
	"strings"

	"github.com/ezforhamza/awaz-e-talba-sub000/internal/api"
	"github.com/ezforhamza/awaz-e-talba-sub000/internal/common"
	"github.com/ezforhamza/awaz-e-talba-sub000/internal/server/auth"
	"github.com/ezforhamza/awaz-e-talba-sub000/internal/server/models"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

func (s *GRPCServer) station(ctx context.Context) (*auth.Station, error) {
	st, ok := StationFromContext(ctx)
	if !ok {
		return nil, status.Error(codes.Unauthenticated, "missing token")
	}
	return st, nil
}

func (s *GRPCServer) CheckEligibility(ctx context.Context, req *api.CheckEligibilityRequest) (*api.EligibilityResponse, error) {
	st, err := s.station(ctx)
	if err != nil {
		return nil, err
	}

	elig, err := s.svc.CheckEligibility(ctx, req.VotingID, st.TenantID)
	if err != nil {
		return nil, s.toStatus(ctx, err)
	}

	resp := &api.EligibilityResponse{Eligible: elig.Eligible, Ballots: toBallots(elig, nil)}
	if !elig.Eligible {
		resp.Reason = api.ReasonFor(elig.Reason)
		resp.Message = api.MessageFor(resp.Reason)
	}
	return resp, nil
}

func (s *GRPCServer) StartSession(ctx context.Context, req *api.StartSessionRequest) (*api.StartSessionResponse, error) {
	st, err := s.station(ctx)
	if err != nil {
		return nil, err
	}

	client := models.ClientMeta{UserAgent: req.UserAgent, Origin: req.Origin}
	if client.UserAgent == "" {
		if md, ok := metadata.FromIncomingContext(ctx); ok {
			client.UserAgent = strings.Join(md.Get("user-agent"), " ")
		}
	}
	if client.Origin == "" {
		client.Origin = "station:" + st.ID
	}

	sess, elig, err := s.svc.StartSession(ctx, req.VotingID, st.TenantID, client)
	if err != nil {
		return nil, s.toStatus(ctx, err)
	}

	return &api.StartSessionResponse{
		SessionID: sess.ID,
		StartedAt: sess.StartedAt,
		Ballots:   toBallots(elig, sess.HasVoted),
	}, nil
}

func (s *GRPCServer) CastVote(ctx context.Context, req *api.CastVoteRequest) (*api.CastVoteResponse, error) {
	st, err := s.station(ctx)
	if err != nil {
		return nil, err
	}
	if req.SessionID == "" || req.ElectionID == "" || req.CandidateID == "" {
		return nil, status.Error(codes.InvalidArgument, "session_id, election_id and candidate_id are required")
	}

	if s.castTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.castTimeout)
		defer cancel()
	}

	res, err := s.svc.CastVote(ctx, st.TenantID, req.SessionID, req.ElectionID, req.CandidateID)
	if err != nil {
		return nil, s.toStatus(ctx, err)
	}

	return &api.CastVoteResponse{
		VoteID:           res.VoteID,
		CastAt:           res.CastAt,
		Remaining:        res.Remaining,
		SessionCompleted: res.SessionCompleted,
	}, nil
}

func (s *GRPCServer) EndSession(ctx context.Context, req *api.EndSessionRequest) (*api.EndSessionResponse, error) {
	st, err := s.station(ctx)
	if err != nil {
		return nil, err
	}
	if err := s.svc.EndSession(ctx, st.TenantID, req.SessionID); err != nil {
		return nil, s.toStatus(ctx, err)
	}
	return &api.EndSessionResponse{}, nil
}

func (s *GRPCServer) GetLiveTally(ctx context.Context, req *api.GetTallyRequest) (*api.TallySnapshot, error) {
	st, err := s.station(ctx)
	if err != nil {
		return nil, err
	}
	snap, err := s.svc.GetLiveTally(ctx, st.TenantID, req.ElectionID)
	if err != nil {
		return nil, s.toStatus(ctx, err)
	}
	return toTally(snap), nil
}

func (s *GRPCServer) WatchTally(req *api.WatchTallyRequest, stream grpc.ServerStreamingServer[api.TallySnapshot]) error {
	ctx := stream.Context()
	st, err := s.station(ctx)
	if err != nil {
		return err
	}

	updates, err := s.svc.WatchTally(ctx, st.TenantID, req.ElectionID)
	if err != nil {
		return s.toStatus(ctx, err)
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case snap, ok := <-updates:
			if !ok {
				return nil
			}
			if err := stream.Send(toTally(snap)); err != nil {
				return err
			}
		}
	}
}

// toStatus maps a service error to a gRPC status whose message is the
// stable reason code.
func (s *GRPCServer) toStatus(ctx context.Context, err error) error {
	reason := api.ReasonFor(err)
	switch {
	case errors.Is(err, common.ErrInvalidFormat), errors.Is(err, common.ErrInvalidCandidate):
		return status.Error(codes.InvalidArgument, reason)
	case errors.Is(err, common.ErrUnknownOrInactiveVoter),
		errors.Is(err, common.ErrNoActiveElections),
		common.IsAlreadyVoted(err),
		errors.Is(err, common.ErrElectionClosed):
		return status.Error(codes.FailedPrecondition, reason)
	case errors.Is(err, common.ErrSessionInvalid), errors.Is(err, common.ErrorNotFound):
		return status.Error(codes.NotFound, reason)
	case errors.Is(err, common.ErrStorageUnavailable), errors.Is(err, context.DeadlineExceeded):
		s.logger.Warn(ctx, "storage unavailable", "error", err)
		return status.Error(codes.Unavailable, api.ReasonStorageUnavailable)
	case errors.Is(err, context.Canceled):
		return status.Error(codes.Canceled, "canceled")
	}
	s.logger.Error(ctx, "unexpected service error", "error", err)
	return status.Error(codes.Internal, "internal error")
}

// toBallots lists elections as ballots; when voted is set, elections already
// completed in the session or no longer available are left out.
func toBallots(elig *models.Eligibility, voted func(string) bool) []api.Ballot {
	if elig == nil {
		return nil
	}
	out := make([]api.Ballot, 0, len(elig.Elections))
	for i := range elig.Elections {
		el := &elig.Elections[i]
		if voted != nil && (voted(el.Election.ID) || !el.Available()) {
			continue
		}
		b := api.Ballot{
			ElectionID:         el.Election.ID,
			Title:              el.Election.Title,
			Category:           el.Election.Category,
			AllowMultipleVotes: el.Election.AllowMultipleVotes,
			HasVoted:           el.HasVoted,
			Candidates:         make([]api.Candidate, 0, len(el.Candidates)),
		}
		for _, c := range el.Candidates {
			b.Candidates = append(b.Candidates, api.Candidate{ID: c.ID, Name: c.Name, Position: c.Position, ImageURL: c.ImageURL})
		}
		out = append(out, b)
	}
	return out
}

func toTally(s *models.TallySnapshot) *api.TallySnapshot {
	out := &api.TallySnapshot{
		ElectionID: s.ElectionID,
		Total:      s.Total,
		Candidates: make([]api.CandidateTally, 0, len(s.Candidates)),
		Leaders:    append([]string{}, s.Leaders...),
		IsDraw:     s.IsDraw,
		Version:    s.Version,
		ComputedAt: s.ComputedAt,
	}
	for _, c := range s.Candidates {
		out.Candidates = append(out.Candidates, api.CandidateTally{
			CandidateID: c.CandidateID,
			Name:        c.Name,
			Position:    c.Position,
			Count:       c.Count,
			Percentage:  c.Percentage,
		})
	}
	return out
}
