package elections

import (
	"context"
	"time"

	"github.com/ezforhamza/awaz-e-talba-sub000/internal/server/models"
)

// Repository reads the election catalog. The write methods serve seeding and
// lifecycle transitions driven by the administrative layer.
type Repository interface {
	Get(ctx context.Context, id string) (*models.Election, error)
	ListActive(ctx context.Context, tenantID string, now time.Time) ([]models.Election, error)
	ListCandidates(ctx context.Context, electionID string) ([]models.Candidate, error)
	GetCandidate(ctx context.Context, electionID, candidateID string) (*models.Candidate, error)

	Create(ctx context.Context, e *models.Election) error
	AddCandidate(ctx context.Context, c *models.Candidate) error
	SetStatus(ctx context.Context, id string, status models.ElectionStatus) error
}
