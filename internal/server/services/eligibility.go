package services

import (
	"context"
	"errors"

	"github.com/ezforhamza/awaz-e-talba-sub000/internal/common"
	"github.com/ezforhamza/awaz-e-talba-sub000/internal/identity"
	"github.com/ezforhamza/awaz-e-talba-sub000/internal/server/models"
)

// EligibilityResolver decides whether a voter may vote right now, and where.
// It is read-only and re-reads the ledger on every call.
type EligibilityResolver struct {
	deps Deps
}

func NewEligibilityResolver(d Deps) *EligibilityResolver {
	return &EligibilityResolver{deps: d.withDefaults()}
}

func notEligible(reason error) *models.Eligibility {
	return &models.Eligibility{Reason: reason}
}

// Resolve maps a raw voting identifier to an Eligibility within tenantID.
// A negative outcome is reported through Eligibility.Reason; the error is
// reserved for storage failures.
func (r *EligibilityResolver) Resolve(ctx context.Context, raw, tenantID string) (*models.Eligibility, error) {
	id, err := identity.Normalize(raw)
	if err != nil {
		return notEligible(common.ErrInvalidFormat), nil
	}

	voter, err := r.deps.Repos.Voters(r.deps.DB.Handle()).Lookup(ctx, tenantID, string(id))
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return notEligible(common.ErrUnknownOrInactiveVoter), nil
		}
		return nil, storageErr("lookup voter", err)
	}
	if !voter.Active {
		return notEligible(common.ErrUnknownOrInactiveVoter), nil
	}

	return r.resolveFingerprint(ctx, r.deps.Keys.Fingerprint(id), tenantID)
}

// resolveFingerprint runs the election part of Resolve for a voter already
// known to belong to tenantID.
func (r *EligibilityResolver) resolveFingerprint(ctx context.Context, fp identity.Fingerprint, tenantID string) (*models.Eligibility, error) {
	h := r.deps.DB.Handle()

	active, err := r.deps.Repos.Elections(h).ListActive(ctx, tenantID, r.deps.Now())
	if err != nil {
		return nil, storageErr("list active elections", err)
	}

	out := &models.Eligibility{TenantID: tenantID, Fingerprint: fp.String()}
	if len(active) == 0 {
		out.Reason = common.ErrNoActiveElections
		return out, nil
	}

	votes := r.deps.Repos.Votes(h)
	available := 0
	for _, e := range active {
		candidates, err := r.deps.Repos.Elections(h).ListCandidates(ctx, e.ID)
		if err != nil {
			return nil, storageErr("list candidates", err)
		}
		voted, err := votes.Exists(ctx, e.ID, fp.String())
		if err != nil {
			return nil, storageErr("check ledger", err)
		}

		el := models.ElectionEligibility{Election: e, Candidates: candidates, HasVoted: voted}
		if el.Available() {
			available++
		}
		out.Elections = append(out.Elections, el)
	}

	if available == 0 {
		out.Reason = common.ErrAlreadyVotedAll
		return out, nil
	}
	out.Eligible = true
	return out, nil
}
