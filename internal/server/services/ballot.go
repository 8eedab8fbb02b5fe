package services

import (
	"context"
	"errors"
	"time"

	"github.com/ezforhamza/awaz-e-talba-sub000/internal/common"
	"github.com/ezforhamza/awaz-e-talba-sub000/internal/dbx"
	"github.com/ezforhamza/awaz-e-talba-sub000/internal/event"
	"github.com/ezforhamza/awaz-e-talba-sub000/internal/identity"
	"github.com/ezforhamza/awaz-e-talba-sub000/internal/server/audit"
	"github.com/ezforhamza/awaz-e-talba-sub000/internal/server/models"
)

// BallotCaster commits single votes with at-most-once semantics.
type BallotCaster struct {
	deps     Deps
	sessions *SessionManager
	resolver *EligibilityResolver
}

func NewBallotCaster(d Deps, sessions *SessionManager, resolver *EligibilityResolver) *BallotCaster {
	return &BallotCaster{deps: d.withDefaults(), sessions: sessions, resolver: resolver}
}

// Cast records a vote for candidateID in electionID within the session.
//
// Preconditions are checked in order: active session, no earlier vote for
// the election in this session, election open now, candidate belongs to the
// election. Replaying a recorded vote against a session that has since
// completed is still a duplicate, not an invalid session.
//
// The ledger row, the session's voted-election entry and the vote_cast audit
// entry commit in one transaction, so the session can never claim a vote the
// ledger lacks. A unique-constraint rejection is reported as
// common.ErrDuplicateVote and audited as a fraud attempt.
//
// On success Remaining is re-derived from the ledger.
func (c *BallotCaster) Cast(ctx context.Context, tenantID, sessionID, electionID, candidateID string) (*models.VoteResult, error) {
	sess, err := c.sessions.lookup(ctx, tenantID, sessionID)
	if err != nil {
		c.reject(reasonFor(err))
		return nil, err
	}
	// a replay of a recorded vote stays a duplicate after the session closed
	if !sess.IsActive() && sess.HasVoted(electionID) {
		c.fraudAttempt(ctx, sess, electionID, "session_already_voted")
		return nil, common.ErrDuplicateVote
	}
	if sess, err = c.sessions.ensureActive(ctx, sess); err != nil {
		c.reject(reasonFor(err))
		return nil, err
	}
	log := c.deps.Logger.With("session_id", sess.ID, "election_id", electionID)

	h := c.deps.DB.Handle()
	election, err := c.deps.Repos.Elections(h).Get(ctx, electionID)
	if err != nil && !errors.Is(err, common.ErrorNotFound) {
		c.reject(reasonStorage)
		return nil, storageErr("load election", err)
	}
	if err != nil || election.TenantID != sess.TenantID {
		c.reject(reasonElectionClosed)
		return nil, common.ErrElectionClosed
	}

	if sess.HasVoted(electionID) && !election.AllowMultipleVotes {
		c.fraudAttempt(ctx, sess, electionID, "session_already_voted")
		return nil, common.ErrDuplicateVote
	}

	now := c.deps.Now()
	if !election.AcceptsVotes(now) {
		c.reject(reasonElectionClosed)
		return nil, common.ErrElectionClosed
	}

	if _, err := c.deps.Repos.Elections(h).GetCandidate(ctx, electionID, candidateID); err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			c.reject(reasonInvalidCandidate)
			return nil, common.ErrInvalidCandidate
		}
		c.reject(reasonStorage)
		return nil, storageErr("load candidate", err)
	}

	// timestamp columns keep microseconds; the hash must survive a round trip
	castAt := now.UTC().Truncate(time.Microsecond)
	vote := &models.Vote{
		ID:               newID(),
		ElectionID:       electionID,
		CandidateID:      candidateID,
		VoterFingerprint: sess.VoterFingerprint,
		SessionID:        sess.ID,
		BallotKey:        models.BallotKey(election, sess.VoterFingerprint, candidateID),
		IntegrityHash:    c.deps.Keys.IntegrityHash(sess.ID, castAt, candidateID),
		CastAt:           castAt,
		Client:           sess.Client,
	}
	// audit entries never name the candidate
	entry := &models.AuditEntry{
		ID:         newID(),
		Type:       models.AuditVoteCast,
		SessionID:  sess.ID,
		ElectionID: electionID,
		Detail:     map[string]any{"vote_id": vote.ID, "integrity_hash": vote.IntegrityHash},
		CreatedAt:  now,
	}

	err = c.deps.DB.WithTx(ctx, func(ctx context.Context, tx dbx.DBTX) error {
		if err := c.deps.Repos.Votes(tx).Insert(ctx, vote); err != nil {
			return err
		}
		if err := c.deps.Repos.Sessions(tx).AddVotedElection(ctx, sess.ID, electionID, now); err != nil {
			return err
		}
		return audit.NewSQLSink(c.deps.Repos.Audit(tx)).Write(ctx, entry)
	})
	if err != nil {
		if errors.Is(err, common.ErrDuplicateVote) {
			c.fraudAttempt(ctx, sess, electionID, "ledger_constraint")
			return nil, common.ErrDuplicateVote
		}
		c.reject(reasonStorage)
		log.Error(ctx, "vote commit failed", "error", err)
		return nil, storageErr("commit vote", err)
	}

	sess.ElectionsVoted = append(sess.ElectionsVoted, electionID)
	c.deps.Metrics.VoteCast(electionID)
	c.sessions.archive(ctx, entry)
	if c.deps.Bus != nil {
		c.deps.Bus.Publish(event.VoteCommittedEventType, event.NewEvent(event.VoteCommittedEventType,
			event.VoteCommittedEvent{VoteID: vote.ID, ElectionID: electionID, CandidateID: candidateID, CastAt: now}))
	}
	log.Info(ctx, "vote committed", "vote_id", vote.ID, "voter", identity.Fingerprint(sess.VoterFingerprint).Short())

	result := &models.VoteResult{
		VoteID:      vote.ID,
		ElectionID:  electionID,
		CandidateID: candidateID,
		CastAt:      now,
	}

	elig, err := c.resolver.resolveFingerprint(ctx, identity.Fingerprint(sess.VoterFingerprint), sess.TenantID)
	if err != nil {
		// the vote stands; the session simply stays open
		log.Warn(ctx, "could not re-derive remaining elections", "error", err)
		result.Remaining = nil
		return result, nil
	}
	result.Remaining = elig.RemainingFor(sess.HasVoted)
	if result.Remaining == nil {
		result.Remaining = []string{}
	}

	if done, err := c.sessions.CompleteIfDone(ctx, sess, result.Remaining); err != nil {
		log.Warn(ctx, "could not complete session", "error", err)
	} else {
		result.SessionCompleted = done
	}
	return result, nil
}

func (c *BallotCaster) reject(reason string) {
	c.deps.Metrics.CastRejected(reason)
}

// fraudAttempt records a refused second vote. Failure to record is logged,
// never allowed to turn the refusal into a success.
func (c *BallotCaster) fraudAttempt(ctx context.Context, sess *models.VotingSession, electionID, detectedBy string) {
	c.reject(reasonDuplicateVote)
	entry := &models.AuditEntry{
		ID:         newID(),
		Type:       models.AuditFraudAttempt,
		SessionID:  sess.ID,
		ElectionID: electionID,
		Detail: map[string]any{
			"reason":      reasonDuplicateVote,
			"detected_by": detectedBy,
			"voter":       identity.Fingerprint(sess.VoterFingerprint).Short(),
			"user_agent":  sess.Client.UserAgent,
			"origin":      sess.Client.Origin,
		},
		CreatedAt: c.deps.Now(),
	}

	sink := audit.FanOut{audit.NewSQLSink(c.deps.Repos.Audit(c.deps.DB.Handle())), c.deps.Archive}
	if err := sink.Write(ctx, entry); err != nil {
		c.deps.Logger.Error(ctx, "failed to record fraud attempt", "session_id", sess.ID, "election_id", electionID, "error", err)
	}
	c.deps.Logger.Warn(ctx, "duplicate vote refused", "session_id", sess.ID, "election_id", electionID, "detected_by", detectedBy)
}

func reasonFor(err error) string {
	switch {
	case errors.Is(err, common.ErrSessionInvalid):
		return reasonSessionInvalid
	case errors.Is(err, common.ErrStorageUnavailable):
		return reasonStorage
	default:
		return "other"
	}
}
