// Package votes implements the vote ledger over SQL. Uniqueness of a ballot
// is enforced by the storage layer through the UNIQUE ballot_key column, so
// concurrent inserts from independent stations race safely.
package votes

import (
	"context"
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

func (r *SQLRepository) Insert(ctx context.Context, v *models.Vote) error {
	query :=
		`INSERT INTO votes (id, election_id, candidate_id, voter_fingerprint, session_id,
		                    ballot_key, integrity_hash, cast_at, user_agent, origin)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`

	_, err := r.db.ExecContext(ctx, query,
		v.ID, v.ElectionID, v.CandidateID, v.VoterFingerprint, v.SessionID,
		v.BallotKey, v.IntegrityHash, v.CastAt.UTC(), v.Client.UserAgent, v.Client.Origin)
	if err != nil {
		if dbx.IsUniqueViolation(err) {
			return common.ErrDuplicateVote
		}
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *SQLRepository) Exists(ctx context.Context, electionID, fingerprint string) (bool, error) {
	query :=
		`SELECT COUNT(*) FROM votes
		 WHERE election_id = $1 AND voter_fingerprint = $2`

	var n int64
	if err := r.db.QueryRowContext(ctx, query, electionID, fingerprint).Scan(&n); err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}
	return n > 0, nil
}

func (r *SQLRepository) CountByCandidate(ctx context.Context, electionID string) (map[string]int64, error) {
	query :=
		`SELECT candidate_id, COUNT(*) FROM votes
		 WHERE election_id = $1
		 GROUP BY candidate_id`

	rows, err := r.db.QueryContext(ctx, query, electionID)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	out := make(map[string]int64)
	for rows.Next() {
		var id string
		var n int64
		if err := rows.Scan(&id, &n); err != nil {
			return nil, fmt.Errorf("scan error: %w", err)
		}
		out[id] = n
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return out, nil
}

// ListRefs returns every vote id in the election with its candidate and
// cast time.
func (r *SQLRepository) ListRefs(ctx context.Context, electionID string) ([]models.VoteRef, error) {
	query :=
		`SELECT id, candidate_id, cast_at FROM votes
		 WHERE election_id = $1`

	rows, err := r.db.QueryContext(ctx, query, electionID)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var out []models.VoteRef
	for rows.Next() {
		var ref models.VoteRef
		if err := rows.Scan(&ref.ID, &ref.CandidateID, &ref.CastAt); err != nil {
			return nil, fmt.Errorf("scan error: %w", err)
		}
		out = append(out, ref)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return out, nil
}

func (r *SQLRepository) ListByElection(ctx context.Context, electionID string) ([]models.Vote, error) {
	query :=
		`SELECT id, election_id, candidate_id, voter_fingerprint, session_id,
		        ballot_key, integrity_hash, cast_at, user_agent, origin
		 FROM votes
		 WHERE election_id = $1
		 ORDER BY cast_at, id`

	rows, err := r.db.QueryContext(ctx, query, electionID)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var out []models.Vote
	for rows.Next() {
		var v models.Vote
		if err := rows.Scan(&v.ID, &v.ElectionID, &v.CandidateID, &v.VoterFingerprint, &v.SessionID,
			&v.BallotKey, &v.IntegrityHash, &v.CastAt, &v.Client.UserAgent, &v.Client.Origin); err != nil {
			return nil, fmt.Errorf("scan error: %w", err)
		}
		out = append(out, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return out, nil
}
