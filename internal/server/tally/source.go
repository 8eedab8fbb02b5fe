package tally

import (
	"context"

	"github.com/ezforhamza/awaz-e-talba-sub000/internal/dbx"
	"github.com/ezforhamza/awaz-e-talba-sub000/internal/server/models"
	"github.com/ezforhamza/awaz-e-talba-sub000/internal/server/repositories/repomanager"
)

// Source is the ledger view a full recomputation reads.
type Source interface {
	Candidates(ctx context.Context, electionID string) ([]models.Candidate, error)
	VoteRefs(ctx context.Context, electionID string) ([]models.VoteRef, error)
}

type repoSource struct {
	db *dbx.DB
	rm repomanager.RepositoryManager
}

// NewRepositorySource reads candidates and votes through the repositories.
func NewRepositorySource(db *dbx.DB, rm repomanager.RepositoryManager) Source {
	return &repoSource{db: db, rm: rm}
}

func (s *repoSource) Candidates(ctx context.Context, electionID string) ([]models.Candidate, error) {
	return s.rm.Elections(s.db.Handle()).ListCandidates(ctx, electionID)
}

func (s *repoSource) VoteRefs(ctx context.Context, electionID string) ([]models.VoteRef, error) {
	return s.rm.Votes(s.db.Handle()).ListRefs(ctx, electionID)
}
