package services

import (
	"context"
	"errors"

	"github.com/ezforhamza/awaz-e-talba-sub000/internal/common"
	"github.com/ezforhamza/awaz-e-talba-sub000/internal/server/models"
	"github.com/ezforhamza/awaz-e-talba-sub000/internal/server/tally"
)

// LedgerReport is the outcome of an offline check of one election's votes.
type LedgerReport struct {
	ElectionID string
	Votes      int
	// Vote ids whose integrity hash does not match their row.
	Tampered []string
	// Vote ids naming a candidate outside the election.
	Orphaned []string
	// Tally is recomputed from the ledger's per-candidate counts.
	Tally *models.TallySnapshot
}

// OK reports whether every vote verified and the tally accounts for all of them.
func (r *LedgerReport) OK() bool {
	return len(r.Tampered) == 0 && len(r.Orphaned) == 0 && r.Tally.Total == int64(r.Votes)
}

// VerifyLedger re-checks the integrity hash of every vote in electionID and
// recomputes its tally straight from storage.
func VerifyLedger(ctx context.Context, d Deps, electionID string) (*LedgerReport, error) {
	d = d.withDefaults()
	h := d.DB.Handle()

	if _, err := d.Repos.Elections(h).Get(ctx, electionID); err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.ErrorNotFound
		}
		return nil, storageErr("load election", err)
	}
	candidates, err := d.Repos.Elections(h).ListCandidates(ctx, electionID)
	if err != nil {
		return nil, storageErr("load candidates", err)
	}
	known := make(map[string]bool, len(candidates))
	for _, c := range candidates {
		known[c.ID] = true
	}

	votes, err := d.Repos.Votes(h).ListByElection(ctx, electionID)
	if err != nil {
		return nil, storageErr("load votes", err)
	}
	counts, err := d.Repos.Votes(h).CountByCandidate(ctx, electionID)
	if err != nil {
		return nil, storageErr("count votes", err)
	}

	r := &LedgerReport{ElectionID: electionID, Votes: len(votes)}
	for _, v := range votes {
		if !d.Keys.VerifyIntegrity(v.SessionID, v.CastAt, v.CandidateID, v.IntegrityHash) {
			r.Tampered = append(r.Tampered, v.ID)
		}
		if !known[v.CandidateID] {
			r.Orphaned = append(r.Orphaned, v.ID)
		}
	}
	r.Tally = tally.Compute(electionID, candidates, counts, 0, d.Now())

	if !r.OK() {
		d.Logger.Warn(ctx, "ledger verification failed", "election_id", electionID,
			"tampered", len(r.Tampered), "orphaned", len(r.Orphaned))
	}
	return r, nil
}
