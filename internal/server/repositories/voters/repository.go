package voters

import (
	"context"

	"github.com/ezforhamza/awaz-e-talba-sub000/internal/server/models"
)

// Repository is the voter directory. Each tenant keeps its own roll.
type Repository interface {
	Lookup(ctx context.Context, tenantID, votingID string) (*models.Voter, error)
	// Upsert never moves a voter between tenants.
	Upsert(ctx context.Context, v *models.Voter) error
}
