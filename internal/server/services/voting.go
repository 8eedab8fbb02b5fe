package services

import (
	"context"
	"errors"

	"github.com/ezforhamza/awaz-e-talba-sub000/internal/common"
	"github.com/ezforhamza/awaz-e-talba-sub000/internal/server/models"
	"github.com/ezforhamza/awaz-e-talba-sub000/internal/server/tally"
)

// VotingService is the single entry point the transport layer calls.
type VotingService struct {
	deps     Deps
	resolver *EligibilityResolver
	sessions *SessionManager
	caster   *BallotCaster
	tally    *tally.Engine
}

// NewVotingService wires the resolver, session manager and caster from d.
// The tally engine is shared with the process lifecycle, which attaches it
// to the bus and runs its reconciler.
func NewVotingService(d Deps, engine *tally.Engine) *VotingService {
	d = d.withDefaults()
	resolver := NewEligibilityResolver(d)
	sessions := NewSessionManager(d)
	return &VotingService{
		deps:     d,
		resolver: resolver,
		sessions: sessions,
		caster:   NewBallotCaster(d, sessions, resolver),
		tally:    engine,
	}
}

// CheckEligibility resolves a raw voting identifier without side effects.
func (s *VotingService) CheckEligibility(ctx context.Context, rawID, tenantID string) (*models.Eligibility, error) {
	return s.resolver.Resolve(ctx, rawID, tenantID)
}

// StartSession resolves eligibility and opens (or resumes) the voter's
// session. A voter who is not eligible gets the eligibility reason as error,
// together with the resolved eligibility so callers can still show it.
func (s *VotingService) StartSession(ctx context.Context, rawID, tenantID string, client models.ClientMeta) (*models.VotingSession, *models.Eligibility, error) {
	elig, err := s.resolver.Resolve(ctx, rawID, tenantID)
	if err != nil {
		s.deps.Metrics.Session("error")
		return nil, nil, err
	}
	if !elig.Eligible {
		s.deps.Metrics.Session("refused")
		return nil, elig, elig.Reason
	}

	sess, err := s.sessions.Start(ctx, elig, client)
	if err != nil {
		return nil, elig, err
	}
	return sess, elig, nil
}

// CastVote records one vote. See BallotCaster.Cast.
func (s *VotingService) CastVote(ctx context.Context, tenantID, sessionID, electionID, candidateID string) (*models.VoteResult, error) {
	return s.caster.Cast(ctx, tenantID, sessionID, electionID, candidateID)
}

// EndSession completes a session on the voter's request.
func (s *VotingService) EndSession(ctx context.Context, tenantID, sessionID string) error {
	return s.sessions.End(ctx, tenantID, sessionID, EndReasonVoterEnded)
}

// GetLiveTally returns the current snapshot of an election owned by tenantID.
func (s *VotingService) GetLiveTally(ctx context.Context, tenantID, electionID string) (*models.TallySnapshot, error) {
	if err := s.ownElection(ctx, tenantID, electionID); err != nil {
		return nil, err
	}
	return s.tally.Snapshot(ctx, electionID)
}

// WatchTally streams snapshots of an election owned by tenantID until ctx ends.
func (s *VotingService) WatchTally(ctx context.Context, tenantID, electionID string) (<-chan *models.TallySnapshot, error) {
	if err := s.ownElection(ctx, tenantID, electionID); err != nil {
		return nil, err
	}
	return s.tally.Watch(ctx, electionID)
}

func (s *VotingService) ownElection(ctx context.Context, tenantID, electionID string) error {
	e, err := s.deps.Repos.Elections(s.deps.DB.Handle()).Get(ctx, electionID)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return common.ErrorNotFound
		}
		return storageErr("load election", err)
	}
	if e.TenantID != tenantID {
		return common.ErrorNotFound
	}
	return nil
}
