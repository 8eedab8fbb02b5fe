// Package common defines shared constants and sentinel errors used across
// the ballot server, its transport and the station client. Callers should
// use errors.Is to match these values.
package common

import "errors"

var (
	// Repository-level errors.
	ErrorNotFound      = errors.New("not found")
	ErrorAlreadyExists = errors.New("already exists")

	// Station token errors.
	ErrInvalidToken = errors.New("invalid token")
	ErrTokenExpired = errors.New("token expired")

	// Eligibility outcomes.
	ErrInvalidFormat          = errors.New("invalid voting identifier format")
	ErrUnknownOrInactiveVoter = errors.New("unknown or inactive voter")
	ErrNoActiveElections      = errors.New("no active elections")
	ErrAlreadyVotedAll        = errors.New("already voted in every active election")

	// Casting outcomes.
	ErrSessionInvalid   = errors.New("voting session is not active")
	ErrDuplicateVote    = errors.New("duplicate vote")
	ErrElectionClosed   = errors.New("election is not accepting votes")
	ErrInvalidCandidate = errors.New("candidate does not belong to election")

	// ErrStorageUnavailable marks transient storage failures. Operations that
	// fail with it are safe to retry.
	ErrStorageUnavailable = errors.New("storage unavailable")
)

// IsAlreadyVoted reports whether err means the voter has already voted,
// either in a single election or in all of them.
func IsAlreadyVoted(err error) bool {
	return errors.Is(err, ErrDuplicateVote) || errors.Is(err, ErrAlreadyVotedAll)
}
