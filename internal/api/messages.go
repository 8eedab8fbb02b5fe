package api

import "time"

type Candidate struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Position int    `json:"position"`
	ImageURL string `json:"image_url,omitempty"`
}

// Ballot is one election as a station presents it to the voter.
type Ballot struct {
	ElectionID         string      `json:"election_id"`
	Title              string      `json:"title"`
	Category           string      `json:"category,omitempty"`
	AllowMultipleVotes bool        `json:"allow_multiple_votes"`
	HasVoted           bool        `json:"has_voted"`
	Candidates         []Candidate `json:"candidates"`
}

type CheckEligibilityRequest struct {
	VotingID string `json:"voting_id"`
}

// EligibilityResponse reports a negative outcome through Reason and Message
// rather than an RPC error.
type EligibilityResponse struct {
	Eligible bool     `json:"eligible"`
	Reason   string   `json:"reason,omitempty"`
	Message  string   `json:"message,omitempty"`
	Ballots  []Ballot `json:"ballots,omitempty"`
}

type StartSessionRequest struct {
	VotingID  string `json:"voting_id"`
	UserAgent string `json:"user_agent,omitempty"`
	Origin    string `json:"origin,omitempty"`
}

type StartSessionResponse struct {
	SessionID string    `json:"session_id"`
	StartedAt time.Time `json:"started_at"`
	// Ballots lists elections still open to this session.
	Ballots []Ballot `json:"ballots"`
}

type CastVoteRequest struct {
	SessionID   string `json:"session_id"`
	ElectionID  string `json:"election_id"`
	CandidateID string `json:"candidate_id"`
}

type CastVoteResponse struct {
	VoteID           string    `json:"vote_id"`
	CastAt           time.Time `json:"cast_at"`
	Remaining        []string  `json:"remaining"`
	SessionCompleted bool      `json:"session_completed"`
}

type EndSessionRequest struct {
	SessionID string `json:"session_id"`
}

type EndSessionResponse struct{}

type GetTallyRequest struct {
	ElectionID string `json:"election_id"`
}

type WatchTallyRequest struct {
	ElectionID string `json:"election_id"`
}

type CandidateTally struct {
	CandidateID string `json:"candidate_id"`
	Name        string `json:"name"`
	Position    int    `json:"position"`
	Count       int64  `json:"count"`
	Percentage  int    `json:"percentage"`
}

type TallySnapshot struct {
	ElectionID string           `json:"election_id"`
	Total      int64            `json:"total"`
	Candidates []CandidateTally `json:"candidates"`
	Leaders    []string         `json:"leaders"`
	IsDraw     bool             `json:"is_draw"`
	Version    uint64           `json:"version"`
	ComputedAt time.Time        `json:"computed_at"`
}
