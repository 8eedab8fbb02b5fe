package audit

import (
	"context"

	"github.com/ezforhamza/awaz-e-talba-sub000/internal/server/models"
)

// Repository is the append-only audit table. ListBySession serves
// investigation tooling; the voting path only appends.
type Repository interface {
	Append(ctx context.Context, e *models.AuditEntry) error
	ListBySession(ctx context.Context, sessionID string) ([]models.AuditEntry, error)
}
