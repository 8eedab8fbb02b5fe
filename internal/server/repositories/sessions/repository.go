package sessions

import (
	"context"
	"time"

	"github.com/ezforhamza/awaz-e-talba-sub000/internal/server/models"
)

type Repository interface {
	// Create fails with common.ErrorAlreadyExists when the voter already has
	// an active session within the tenant.
	Create(ctx context.Context, s *models.VotingSession) error
	Get(ctx context.Context, id string) (*models.VotingSession, error)
	GetActiveByFingerprint(ctx context.Context, tenantID, fingerprint string) (*models.VotingSession, error)
	// AddVotedElection is idempotent.
	AddVotedElection(ctx context.Context, sessionID, electionID string, at time.Time) error
	// Complete reports whether the session moved from active to completed.
	Complete(ctx context.Context, id string, endedAt time.Time) (bool, error)
}
