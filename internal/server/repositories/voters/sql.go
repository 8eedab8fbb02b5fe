// Package voters implements the voter directory over SQL.
package voters

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/ezforhamza/awaz-e-talba-sub000/internal/common"
	"github.com/ezforhamza/awaz-e-talba-sub000/internal/dbx"
	"github.com/ezforhamza/awaz-e-talba-sub000/internal/server/models"
)

type SQLRepository struct {
	db dbx.DBTX
}

func NewSQLRepository(db dbx.DBTX) *SQLRepository {
	return &SQLRepository{db: db}
}

// Lookup expects an already normalized voting identifier.
func (r *SQLRepository) Lookup(ctx context.Context, tenantID, votingID string) (*models.Voter, error) {
	query :=
		`SELECT voting_id, tenant_id, display_name, active FROM voters
		 WHERE tenant_id = $1 AND voting_id = $2`

	v := &models.Voter{}
	err := r.db.QueryRowContext(ctx, query, tenantID, votingID).Scan(&v.VotingID, &v.TenantID, &v.DisplayName, &v.Active)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return v, nil
}

func (r *SQLRepository) Upsert(ctx context.Context, v *models.Voter) error {
	query :=
		`INSERT INTO voters (voting_id, tenant_id, display_name, active)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (tenant_id, voting_id) DO UPDATE
		 SET display_name = excluded.display_name, active = excluded.active`

	if _, err := r.db.ExecContext(ctx, query, v.VotingID, v.TenantID, v.DisplayName, v.Active); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}
