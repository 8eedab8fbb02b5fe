// Package sessions persists voting sessions and the elections completed
// within each of them.
package sessions

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

const sessionColumns = `id, tenant_id, voter_fingerprint, status, started_at, ended_at, user_agent, origin`

func (r *SQLRepository) Create(ctx context.Context, s *models.VotingSession) error {
	query :=
		`INSERT INTO voting_sessions (` + sessionColumns + `)
		 VALUES ($1, $2, $3, $4, $5, NULL, $6, $7)`

	_, err := r.db.ExecContext(ctx, query,
		s.ID, s.TenantID, s.VoterFingerprint, string(s.Status), s.StartedAt.UTC(), s.Client.UserAgent, s.Client.Origin)
	if err != nil {
		if dbx.IsUniqueViolation(err) {
			return common.ErrorAlreadyExists
		}
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *SQLRepository) Get(ctx context.Context, id string) (*models.VotingSession, error) {
	query := `SELECT ` + sessionColumns + ` FROM voting_sessions WHERE id = $1`
	return r.getOne(ctx, query, id)
}

func (r *SQLRepository) GetActiveByFingerprint(ctx context.Context, tenantID, fingerprint string) (*models.VotingSession, error) {
	query := `SELECT ` + sessionColumns + ` FROM voting_sessions
		 WHERE tenant_id = $1 AND voter_fingerprint = $2 AND status = $3`
	return r.getOne(ctx, query, tenantID, fingerprint, string(models.SessionActive))
}

func (r *SQLRepository) getOne(ctx context.Context, query string, args ...any) (*models.VotingSession, error) {
	s := &models.VotingSession{}
	var status string
	var ended sql.NullTime

	err := r.db.QueryRowContext(ctx, query, args...).
		Scan(&s.ID, &s.TenantID, &s.VoterFingerprint, &status, &s.StartedAt, &ended, &s.Client.UserAgent, &s.Client.Origin)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	s.Status = models.SessionStatus(status)
	if ended.Valid {
		t := ended.Time
		s.EndedAt = &t
	}

	voted, err := r.votedElections(ctx, s.ID)
	if err != nil {
		return nil, err
	}
	s.ElectionsVoted = voted
	return s, nil
}

func (r *SQLRepository) votedElections(ctx context.Context, sessionID string) ([]string, error) {
	query :=
		`SELECT election_id FROM session_elections
		 WHERE session_id = $1
		 ORDER BY voted_at, election_id`

	rows, err := r.db.QueryContext(ctx, query, sessionID)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan error: %w", err)
		}
		out = append(out, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return out, nil
}

func (r *SQLRepository) AddVotedElection(ctx context.Context, sessionID, electionID string, at time.Time) error {
	query :=
		`INSERT INTO session_elections (session_id, election_id, voted_at)
		 VALUES ($1, $2, $3)
		 ON CONFLICT (session_id, election_id) DO NOTHING`

	if _, err := r.db.ExecContext(ctx, query, sessionID, electionID, at.UTC()); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *SQLRepository) Complete(ctx context.Context, id string, endedAt time.Time) (bool, error) {
	query :=
		`UPDATE voting_sessions SET status = $1, ended_at = $2
		 WHERE id = $3 AND status = $4`

	res, err := r.db.ExecContext(ctx, query,
		string(models.SessionCompleted), endedAt.UTC(), id, string(models.SessionActive))
	if err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}
	return n == 1, nil
}
