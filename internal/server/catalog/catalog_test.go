package catalog

import (
	"context"
	"strings"
	"testing"

	"github.com/ezforhamza/awaz-e-talba-sub000/internal/dbx"
	"github.com/ezforhamza/awaz-e-talba-sub000/internal/server/models"
	"github.com/ezforhamza/awaz-e-talba-sub000/internal/server/repositories/repomanager"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sample = `
tenant: admin-1
elections:
  - id: pres-2025
    title: President
    category: executive
    status: active
    start_at: 2025-03-01T08:00:00Z
    end_at: 2025-03-01T17:00:00Z
    candidates:
      - {id: pres-a, name: Alice}
      - {id: pres-b, name: Bilal, image_url: https://img.example/b.png}
  - id: sec-2025
    title: Secretary
    start_at: 2025-03-01T08:00:00Z
    end_at: 2025-03-01T17:00:00Z
    allow_multiple_votes: true
    candidates:
      - {id: sec-a, name: Amna}
voters:
  - {voting_id: " v-roll001-4821 ", display_name: Sana}
  - {voting_id: V-ROLL002-1234, active: false}
`

func openDB(t *testing.T) (*dbx.DB, repomanager.RepositoryManager) {
	t.Helper()
	db, err := repomanager.Open("sqlite", "file:"+strings.ReplaceAll(t.Name(), "/", "_")+"?mode=memory&cache=shared")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	rm := repomanager.NewSQLRepositoryManager(db.Dialect)
	require.NoError(t, rm.RunMigrations(context.Background(), db.DB))
	return db, rm
}

func TestParse(t *testing.T) {
	c, err := Parse(strings.NewReader(sample))
	require.NoError(t, err)

	assert.Equal(t, "admin-1", c.Tenant)
	require.Len(t, c.Elections, 2)
	assert.Len(t, c.Elections[0].Candidates, 2)
	assert.True(t, c.Elections[1].AllowMultipleVotes)
	require.Len(t, c.Voters, 2)
	require.NotNil(t, c.Voters[1].Active)
	assert.False(t, *c.Voters[1].Active)
}

func TestParse_Invalid(t *testing.T) {
	tests := []struct {
		name string
		doc  string
		want string
	}{
		{"missing tenant", "elections: []", "tenant is required"},
		{"unknown field", "tenant: a\ncolour: red", "colour"},
		{"bad window", `
tenant: a
elections:
  - id: e1
    title: T
    start_at: 2025-03-01T17:00:00Z
    end_at: 2025-03-01T08:00:00Z
    candidates: [{id: c, name: C}]`, "end_at must be after start_at"},
		{"no candidates", `
tenant: a
elections:
  - id: e1
    title: T
    start_at: 2025-03-01T08:00:00Z
    end_at: 2025-03-01T17:00:00Z`, "at least one candidate"},
		{"bad status", `
tenant: a
elections:
  - id: e1
    title: T
    status: paused
    start_at: 2025-03-01T08:00:00Z
    end_at: 2025-03-01T17:00:00Z
    candidates: [{id: c, name: C}]`, `unknown status "paused"`},
		{"bad voter id", "tenant: a\nvoters: [{voting_id: 12345}]", "voters[0]"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(strings.NewReader(tt.doc))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestApply(t *testing.T) {
	ctx := context.Background()
	db, rm := openDB(t)

	c, err := Parse(strings.NewReader(sample))
	require.NoError(t, err)

	res, err := c.Apply(ctx, db, rm)
	require.NoError(t, err)
	assert.Equal(t, &Result{Elections: 2, Candidates: 3, Voters: 2}, res)

	e, err := rm.Elections(db.Handle()).Get(ctx, "sec-2025")
	require.NoError(t, err)
	assert.Equal(t, models.ElectionDraft, e.Status, "status defaults to draft")
	assert.Equal(t, "admin-1", e.TenantID)

	cands, err := rm.Elections(db.Handle()).ListCandidates(ctx, "pres-2025")
	require.NoError(t, err)
	require.Len(t, cands, 2)
	assert.Equal(t, 1, cands[0].Position)
	assert.Equal(t, "https://img.example/b.png", cands[1].ImageURL)

	v, err := rm.Voters(db.Handle()).Lookup(ctx, "admin-1", "V-ROLL001-4821")
	require.NoError(t, err)
	assert.True(t, v.Active)
	assert.Equal(t, "Sana", v.DisplayName)

	v, err = rm.Voters(db.Handle()).Lookup(ctx, "admin-1", "V-ROLL002-1234")
	require.NoError(t, err)
	assert.False(t, v.Active)
}

func TestApply_Idempotent(t *testing.T) {
	ctx := context.Background()
	db, rm := openDB(t)

	c, err := Parse(strings.NewReader(sample))
	require.NoError(t, err)
	_, err = c.Apply(ctx, db, rm)
	require.NoError(t, err)

	// sec-2025 is still draft, so its ballot may grow
	c.Elections[1].Candidates = append(c.Elections[1].Candidates, Candidate{ID: "sec-c", Name: "Chen"})
	res, err := c.Apply(ctx, db, rm)
	require.NoError(t, err)
	assert.Equal(t, &Result{Candidates: 1, Skipped: 5, Voters: 2}, res)

	cands, err := rm.Elections(db.Handle()).ListCandidates(ctx, "sec-2025")
	require.NoError(t, err)
	require.Len(t, cands, 2)
	assert.Equal(t, "sec-c", cands[1].ID)
	assert.Equal(t, 2, cands[1].Position)
}

func TestApply_CandidatesLockedOutsideDraft(t *testing.T) {
	ctx := context.Background()
	db, rm := openDB(t)

	c, err := Parse(strings.NewReader(sample))
	require.NoError(t, err)
	_, err = c.Apply(ctx, db, rm)
	require.NoError(t, err)

	c.Elections[0].Candidates = append(c.Elections[0].Candidates, Candidate{ID: "pres-z", Name: "Zara"})
	c.Voters = append(c.Voters, Voter{VotingID: "V-ROLL009-0009"})
	_, err = c.Apply(ctx, db, rm)
	require.ErrorIs(t, err, ErrCandidatesLocked)
	assert.Contains(t, err.Error(), "pres-z")

	cands, err := rm.Elections(db.Handle()).ListCandidates(ctx, "pres-2025")
	require.NoError(t, err)
	assert.Len(t, cands, 2)
	_, err = rm.Voters(db.Handle()).Lookup(ctx, "admin-1", "V-ROLL009-0009")
	assert.Error(t, err, "the whole load rolled back")
}

func TestApply_SameVotingIDInAnotherTenant(t *testing.T) {
	ctx := context.Background()
	db, rm := openDB(t)

	c, err := Parse(strings.NewReader(sample))
	require.NoError(t, err)
	_, err = c.Apply(ctx, db, rm)
	require.NoError(t, err)

	other := &Catalog{
		Tenant: "admin-2",
		Voters: []Voter{{VotingID: "V-ROLL001-4821", DisplayName: "Someone else"}},
	}
	res, err := other.Apply(ctx, db, rm)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Voters)

	mine, err := rm.Voters(db.Handle()).Lookup(ctx, "admin-1", "V-ROLL001-4821")
	require.NoError(t, err)
	assert.Equal(t, "admin-1", mine.TenantID)
	assert.Equal(t, "Sana", mine.DisplayName)

	theirs, err := rm.Voters(db.Handle()).Lookup(ctx, "admin-2", "V-ROLL001-4821")
	require.NoError(t, err)
	assert.Equal(t, "admin-2", theirs.TenantID)
	assert.Equal(t, "Someone else", theirs.DisplayName)
}

func TestApply_ForeignTenantRollsBack(t *testing.T) {
	ctx := context.Background()
	db, rm := openDB(t)

	c, err := Parse(strings.NewReader(sample))
	require.NoError(t, err)
	_, err = c.Apply(ctx, db, rm)
	require.NoError(t, err)

	other := &Catalog{
		Tenant: "admin-2",
		Voters: []Voter{{VotingID: "V-OTHER-0001"}},
		Elections: []Election{{
			ID: "pres-2025", Title: "Hijack",
			StartAt: c.Elections[0].StartAt, EndAt: c.Elections[0].EndAt,
			Candidates: []Candidate{{ID: "x", Name: "X"}},
		}},
	}
	_, err = other.Apply(ctx, db, rm)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "belongs to another tenant")

	_, err = rm.Voters(db.Handle()).Lookup(ctx, "admin-2", "V-OTHER-0001")
	assert.Error(t, err, "voter write rolled back")
}
