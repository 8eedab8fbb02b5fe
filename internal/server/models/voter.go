package models

// Voter is a voter directory record keyed by the normalized voting identifier.
// The identifier never reaches the vote ledger.
type Voter struct {
	VotingID    string
	TenantID    string
	DisplayName string
	Active      bool
}
