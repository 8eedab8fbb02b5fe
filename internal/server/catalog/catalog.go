// Package catalog loads elections, candidates and voter rolls from a YAML
// file into storage. It backs `ballotd seed`.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/ezforhamza/awaz-e-talba-sub000/internal/common"
	"github.com/ezforhamza/awaz-e-talba-sub000/internal/dbx"
	"github.com/ezforhamza/awaz-e-talba-sub000/internal/identity"
	"github.com/ezforhamza/awaz-e-talba-sub000/internal/server/models"
	"github.com/ezforhamza/awaz-e-talba-sub000/internal/server/repositories/repomanager"
	"gopkg.in/yaml.v3"
)

// Catalog is one tenant's elections and voter roll.
//
//	tenant: admin-1
//	elections:
//	  - id: pres-2025
//	    title: President
//	    status: active
//	    start_at: 2025-03-01T08:00:00Z
//	    end_at: 2025-03-01T17:00:00Z
//	    candidates:
//	      - {id: pres-a, name: Alice}
//	voters:
//	  - {voting_id: V-ROLL001-4821, display_name: Sana}
type Catalog struct {
	Tenant    string     `yaml:"tenant"`
	Elections []Election `yaml:"elections"`
	Voters    []Voter    `yaml:"voters"`
}

type Election struct {
	ID                 string      `yaml:"id"`
	Title              string      `yaml:"title"`
	Category           string      `yaml:"category"`
	Status             string      `yaml:"status"`
	StartAt            time.Time   `yaml:"start_at"`
	EndAt              time.Time   `yaml:"end_at"`
	AllowMultipleVotes bool        `yaml:"allow_multiple_votes"`
	Candidates         []Candidate `yaml:"candidates"`
}

type Candidate struct {
	ID       string `yaml:"id"`
	Name     string `yaml:"name"`
	ImageURL string `yaml:"image_url"`
}

type Voter struct {
	VotingID    string `yaml:"voting_id"`
	DisplayName string `yaml:"display_name"`
	// Active defaults to true when omitted.
	Active *bool `yaml:"active"`
}

// Result counts what Apply wrote. Existing elections and candidates are
// left untouched and counted as skipped; voters are upserted.
type Result struct {
	Elections  int
	Candidates int
	Skipped    int
	Voters     int
}

// Parse decodes and validates a catalog.
func Parse(r io.Reader) (*Catalog, error) {
	var c Catalog
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&c); err != nil {
		return nil, fmt.Errorf("parse catalog: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

// Validate reports every problem in c at once.
func (c *Catalog) Validate() error {
	var errs []error
	if c.Tenant == "" {
		errs = append(errs, errors.New("tenant is required"))
	}

	seen := make(map[string]bool)
	for i, e := range c.Elections {
		where := fmt.Sprintf("elections[%d]", i)
		if e.ID == "" {
			errs = append(errs, fmt.Errorf("%s: id is required", where))
		} else if seen[e.ID] {
			errs = append(errs, fmt.Errorf("%s: duplicate id %q", where, e.ID))
		}
		seen[e.ID] = true
		if e.Title == "" {
			errs = append(errs, fmt.Errorf("%s: title is required", where))
		}
		if e.Status != "" && !models.ElectionStatus(e.Status).Valid() {
			errs = append(errs, fmt.Errorf("%s: unknown status %q", where, e.Status))
		}
		if !e.EndAt.After(e.StartAt) {
			errs = append(errs, fmt.Errorf("%s: end_at must be after start_at", where))
		}
		if len(e.Candidates) == 0 {
			errs = append(errs, fmt.Errorf("%s: at least one candidate is required", where))
		}
		for j, cand := range e.Candidates {
			if cand.ID == "" || cand.Name == "" {
				errs = append(errs, fmt.Errorf("%s.candidates[%d]: id and name are required", where, j))
			}
		}
	}

	for i, v := range c.Voters {
		if _, err := identity.Normalize(v.VotingID); err != nil {
			errs = append(errs, fmt.Errorf("voters[%d]: voting_id %q: %w", i, v.VotingID, err))
		}
	}
	return errors.Join(errs...)
}

// ErrCandidatesLocked rejects a catalog that adds candidates to an election
// that has left draft.
var ErrCandidatesLocked = errors.New("candidates can only be added while the election is draft")

// Apply writes c in one transaction. Voters are upserted into c.Tenant's roll
// only; rolls of other tenants are never touched.
func (c *Catalog) Apply(ctx context.Context, db *dbx.DB, rm repomanager.RepositoryManager) (*Result, error) {
	res := &Result{}
	err := db.WithTx(ctx, func(ctx context.Context, tx dbx.DBTX) error {
		elections := rm.Elections(tx)
		for _, e := range c.Elections {
			existing, err := elections.Get(ctx, e.ID)
			locked := false
			switch {
			case err == nil && existing.TenantID != c.Tenant:
				return fmt.Errorf("election %s belongs to another tenant", e.ID)
			case err == nil:
				locked = existing.Status != models.ElectionDraft
				res.Skipped++
			case errors.Is(err, common.ErrorNotFound):
				status := models.ElectionStatus(e.Status)
				if status == "" {
					status = models.ElectionDraft
				}
				err = elections.Create(ctx, &models.Election{
					ID:                 e.ID,
					TenantID:           c.Tenant,
					Title:              e.Title,
					Category:           e.Category,
					Status:             status,
					StartAt:            e.StartAt,
					EndAt:              e.EndAt,
					AllowMultipleVotes: e.AllowMultipleVotes,
				})
				if err != nil {
					return fmt.Errorf("election %s: %w", e.ID, err)
				}
				res.Elections++
			default:
				return fmt.Errorf("election %s: %w", e.ID, err)
			}

			// a failed statement aborts a postgres transaction, so existing
			// rows are detected up front instead of relying on the constraint
			current, err := elections.ListCandidates(ctx, e.ID)
			if err != nil {
				return fmt.Errorf("election %s candidates: %w", e.ID, err)
			}
			have := make(map[string]bool, len(current))
			next := 1
			for _, cand := range current {
				have[cand.ID] = true
				next = max(next, cand.Position+1)
			}

			for _, cand := range e.Candidates {
				if have[cand.ID] {
					res.Skipped++
					continue
				}
				if locked {
					return fmt.Errorf("election %s (%s) candidate %s: %w", e.ID, existing.Status, cand.ID, ErrCandidatesLocked)
				}
				err := elections.AddCandidate(ctx, &models.Candidate{
					ID:         cand.ID,
					ElectionID: e.ID,
					Name:       cand.Name,
					Position:   next,
					ImageURL:   cand.ImageURL,
				})
				if err != nil {
					return fmt.Errorf("candidate %s: %w", cand.ID, err)
				}
				next++
				res.Candidates++
			}
		}

		voters := rm.Voters(tx)
		for _, v := range c.Voters {
			active := v.Active == nil || *v.Active
			id, _ := identity.Normalize(v.VotingID)
			err := voters.Upsert(ctx, &models.Voter{
				VotingID:    string(id),
				TenantID:    c.Tenant,
				DisplayName: strings.TrimSpace(v.DisplayName),
				Active:      active,
			})
			if err != nil {
				return fmt.Errorf("voter %d: %w", res.Voters+1, err)
			}
			res.Voters++
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}
