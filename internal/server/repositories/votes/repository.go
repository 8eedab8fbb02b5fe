package votes

import (
	"context"

	"github.com/ezforhamza/awaz-e-talba-sub000/internal/server/models"
)

// Repository is the append-only vote ledger. There is deliberately no
// update or delete.
type Repository interface {
	// Insert fails with common.ErrDuplicateVote when the ballot key is taken.
	Insert(ctx context.Context, v *models.Vote) error
	Exists(ctx context.Context, electionID, fingerprint string) (bool, error)
	CountByCandidate(ctx context.Context, electionID string) (map[string]int64, error)
	ListRefs(ctx context.Context, electionID string) ([]models.VoteRef, error)
	ListByElection(ctx context.Context, electionID string) ([]models.Vote, error)
}
