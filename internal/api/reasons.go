package api

import (
	"errors"

	"github.com/ezforhamza/awaz-e-talba-sub000/internal/common"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// Stable reason codes. Refused ballots carry them as the status message of
// the RPC error; negative eligibility carries them in the response.
const (
	ReasonInvalidFormat      = "invalid_format"
	ReasonUnknownVoter       = "unknown_or_inactive_voter"
	ReasonNoActiveElections  = "no_active_elections"
	ReasonAlreadyVoted       = "already_voted"
	ReasonSessionInvalid     = "session_invalid"
	ReasonElectionClosed     = "election_closed"
	ReasonInvalidCandidate   = "invalid_candidate"
	ReasonStorageUnavailable = "storage_unavailable"
	ReasonNotFound           = "not_found"
	ReasonUnauthenticated    = "unauthenticated"
)

// ReasonFor maps a domain error to its reason code. Both DuplicateVote and
// AlreadyVotedAll read as already_voted.
func ReasonFor(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, common.ErrInvalidFormat):
		return ReasonInvalidFormat
	case errors.Is(err, common.ErrUnknownOrInactiveVoter):
		return ReasonUnknownVoter
	case errors.Is(err, common.ErrNoActiveElections):
		return ReasonNoActiveElections
	case common.IsAlreadyVoted(err):
		return ReasonAlreadyVoted
	case errors.Is(err, common.ErrSessionInvalid):
		return ReasonSessionInvalid
	case errors.Is(err, common.ErrElectionClosed):
		return ReasonElectionClosed
	case errors.Is(err, common.ErrInvalidCandidate):
		return ReasonInvalidCandidate
	case errors.Is(err, common.ErrStorageUnavailable):
		return ReasonStorageUnavailable
	case errors.Is(err, common.ErrorNotFound):
		return ReasonNotFound
	}
	return ""
}

// MessageFor is the text a voter sees for a reason code.
func MessageFor(reason string) string {
	switch reason {
	case ReasonInvalidFormat:
		return "That voting ID is not in the expected format."
	case ReasonUnknownVoter:
		return "That voting ID is not registered or not active."
	case ReasonNoActiveElections:
		return "There are no elections open right now."
	case ReasonAlreadyVoted:
		return common.AlreadyVotedMessage
	case ReasonSessionInvalid:
		return "Your voting session has ended. Please start again."
	case ReasonElectionClosed:
		return "This election is not accepting votes."
	case ReasonInvalidCandidate:
		return "That candidate is not on this ballot."
	case ReasonStorageUnavailable:
		return "The voting service is temporarily unavailable. Please try again."
	}
	return "Something went wrong."
}

// ReasonFromStatus recovers the reason code from an RPC error returned by
// the server.
func ReasonFromStatus(err error) string {
	st, ok := status.FromError(err)
	if !ok {
		return ""
	}
	switch st.Code() {
	case codes.Unavailable, codes.DeadlineExceeded:
		return ReasonStorageUnavailable
	case codes.Unauthenticated:
		return ReasonUnauthenticated
	}
	return st.Message()
}
