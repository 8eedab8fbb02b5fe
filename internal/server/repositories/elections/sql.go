// Package elections implements the election/candidate catalog over SQL.
package elections

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

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

const electionColumns = `id, tenant_id, title, category, status, start_at, end_at, allow_multiple_votes`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanElection(row rowScanner) (*models.Election, error) {
	e := &models.Election{}
	var status string
	if err := row.Scan(&e.ID, &e.TenantID, &e.Title, &e.Category, &status, &e.StartAt, &e.EndAt, &e.AllowMultipleVotes); err != nil {
		return nil, err
	}
	e.Status = models.ElectionStatus(status)
	return e, nil
}

func (r *SQLRepository) Get(ctx context.Context, id string) (*models.Election, error) {
	query := `SELECT ` + electionColumns + ` FROM elections WHERE id = $1`

	e, err := scanElection(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return e, nil
}

// ListActive returns the tenant's active elections whose window contains now.
// The window is checked in Go so both dialects compare times the same way.
func (r *SQLRepository) ListActive(ctx context.Context, tenantID string, now time.Time) ([]models.Election, error) {
	query := `SELECT ` + electionColumns + ` FROM elections
		 WHERE tenant_id = $1 AND status = $2
		 ORDER BY start_at, id`

	rows, err := r.db.QueryContext(ctx, query, tenantID, string(models.ElectionActive))
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var out []models.Election
	for rows.Next() {
		e, err := scanElection(rows)
		if err != nil {
			return nil, fmt.Errorf("scan error: %w", err)
		}
		if e.AcceptsVotes(now) {
			out = append(out, *e)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return out, nil
}

func (r *SQLRepository) ListCandidates(ctx context.Context, electionID string) ([]models.Candidate, error) {
	query := `SELECT id, election_id, name, position, image_url FROM candidates
		 WHERE election_id = $1
		 ORDER BY position`

	rows, err := r.db.QueryContext(ctx, query, electionID)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var out []models.Candidate
	for rows.Next() {
		var c models.Candidate
		if err := rows.Scan(&c.ID, &c.ElectionID, &c.Name, &c.Position, &c.ImageURL); err != nil {
			return nil, fmt.Errorf("scan error: %w", err)
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return out, nil
}

func (r *SQLRepository) GetCandidate(ctx context.Context, electionID, candidateID string) (*models.Candidate, error) {
	query := `SELECT id, election_id, name, position, image_url FROM candidates
		 WHERE id = $1 AND election_id = $2`

	c := &models.Candidate{}
	err := r.db.QueryRowContext(ctx, query, candidateID, electionID).Scan(&c.ID, &c.ElectionID, &c.Name, &c.Position, &c.ImageURL)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return c, nil
}

func (r *SQLRepository) Create(ctx context.Context, e *models.Election) error {
	query := `INSERT INTO elections (` + electionColumns + `)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	_, err := r.db.ExecContext(ctx, query,
		e.ID, e.TenantID, e.Title, e.Category, string(e.Status), e.StartAt.UTC(), e.EndAt.UTC(), e.AllowMultipleVotes)
	if err != nil {
		if dbx.IsUniqueViolation(err) {
			return common.ErrorAlreadyExists
		}
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *SQLRepository) AddCandidate(ctx context.Context, c *models.Candidate) error {
	query := `INSERT INTO candidates (id, election_id, name, position, image_url)
		 VALUES ($1, $2, $3, $4, $5)`

	_, err := r.db.ExecContext(ctx, query, c.ID, c.ElectionID, c.Name, c.Position, c.ImageURL)
	if err != nil {
		if dbx.IsUniqueViolation(err) {
			return common.ErrorAlreadyExists
		}
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *SQLRepository) SetStatus(ctx context.Context, id string, status models.ElectionStatus) error {
	query := `UPDATE elections SET status = $1 WHERE id = $2`

	res, err := r.db.ExecContext(ctx, query, string(status), id)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	if n == 0 {
		return common.ErrorNotFound
	}
	return nil
}
