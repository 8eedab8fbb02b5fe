// Package services holds the ballot server's business logic: eligibility
// resolution, the voting-session state machine, the uniqueness-critical
// ballot caster, and the VotingService facade the transport calls.
//
// Services never hold an in-process lock across storage I/O. Ballot
// uniqueness is enforced by the ledger's UNIQUE constraint, not by a mutex,
// because only storage can arbitrate between independent stations.
package services

import (
	"errors"
	"fmt"
	"time"

	"github.com/ezforhamza/awaz-e-talba-sub000/internal/common"
	"github.com/ezforhamza/awaz-e-talba-sub000/internal/dbx"
	"github.com/ezforhamza/awaz-e-talba-sub000/internal/event"
	"github.com/ezforhamza/awaz-e-talba-sub000/internal/identity"
	"github.com/ezforhamza/awaz-e-talba-sub000/internal/logging"
	"github.com/ezforhamza/awaz-e-talba-sub000/internal/server/audit"
	"github.com/ezforhamza/awaz-e-talba-sub000/internal/server/metrics"
	"github.com/ezforhamza/awaz-e-talba-sub000/internal/server/repositories/repomanager"
	"github.com/google/uuid"
)

// Deps bundles the collaborators shared by every service.
type Deps struct {
	DB      *dbx.DB
	Repos   repomanager.RepositoryManager
	Keys    *identity.Keyring
	Bus     *event.Bus
	Logger  logging.Logger
	Metrics *metrics.Collectors
	// Archive receives every audit entry after it is durably recorded in the
	// audit table. Nil disables archiving.
	Archive audit.Sink
	// SessionTTL bounds how long a session may stay active. Zero disables expiry.
	SessionTTL time.Duration
	Now        func() time.Time
}

func (d *Deps) withDefaults() Deps {
	out := *d
	if out.Logger == nil {
		out.Logger = logging.Nop()
	}
	if out.Now == nil {
		out.Now = time.Now
	}
	if out.Archive == nil {
		out.Archive = audit.Discard{}
	}
	return out
}

// storageErr marks err as a retryable storage failure while keeping the cause.
func storageErr(op string, err error) error {
	return errors.Join(common.ErrStorageUnavailable, fmt.Errorf("%s: %w", op, err))
}

func newID() string {
	return uuid.NewString()
}

// rejection reasons used for metrics and audit detail
const (
	reasonDuplicateVote    = "duplicate_vote"
	reasonSessionInvalid   = "session_invalid"
	reasonElectionClosed   = "election_closed"
	reasonInvalidCandidate = "invalid_candidate"
	reasonStorage          = "storage_unavailable"
)

// Session end reasons.
const (
	EndReasonVoterEnded = "voter_ended"
	EndReasonAllVoted   = "all_voted"
	EndReasonExpired    = "expired"
)
