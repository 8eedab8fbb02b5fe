// Package tally maintains live per-candidate vote counts for every election
// that has been read or voted in.
//
// Each election has its own state guarded by its own mutex, so elections
// never block each other. Readers load the last published snapshot through an
// atomic pointer and never see a half-applied update. Incremental updates
// are deduplicated by vote id; while a full recomputation is reading the
// ledger, arriving events are queued and re-applied to the fresh result
// unless the read already covered them. The dedup set only remembers votes
// cast within replayWindow of the last ledger read plus those applied since,
// so it stays small for long-running elections.
package tally

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ezforhamza/awaz-e-talba-sub000/internal/common"
	"github.com/ezforhamza/awaz-e-talba-sub000/internal/event"
	"github.com/ezforhamza/awaz-e-talba-sub000/internal/logging"
	"github.com/ezforhamza/awaz-e-talba-sub000/internal/server/metrics"
	"github.com/ezforhamza/awaz-e-talba-sub000/internal/server/models"
)

const defaultApplyTimeout = 5 * time.Second

// replayWindow bounds how long after its cast a vote.committed event may
// still reach the engine. Ledger votes older than this are counted without
// being remembered.
const replayWindow = 2 * defaultApplyTimeout

type electionState struct {
	// recomputeMu serializes full recomputations of this election.
	recomputeMu sync.Mutex

	mu          sync.Mutex
	warm        bool
	recomputing bool
	candidates  []models.Candidate
	counts      map[string]int64
	counted     map[string]struct{}
	pending     []event.VoteCommittedEvent
	version     uint64

	published atomic.Pointer[models.TallySnapshot]
}

type Engine struct {
	source  Source
	bus     *event.Bus
	logger  logging.Logger
	metrics *metrics.Collectors
	now     func() time.Time

	mu        sync.RWMutex
	elections map[string]*electionState

	subID event.SubscriberID
}

type Option func(*Engine)

func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

func WithMetrics(m *metrics.Collectors) Option {
	return func(e *Engine) { e.metrics = m }
}

// New creates an engine. bus may be nil, in which case no tally.updated
// events are published and Attach is a no-op.
func New(source Source, bus *event.Bus, logger logging.Logger, opts ...Option) *Engine {
	e := &Engine{
		source:    source,
		bus:       bus,
		logger:    logger,
		now:       time.Now,
		elections: make(map[string]*electionState),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func (e *Engine) state(electionID string) *electionState {
	e.mu.RLock()
	st, ok := e.elections[electionID]
	e.mu.RUnlock()
	if ok {
		return st
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if st, ok = e.elections[electionID]; !ok {
		st = &electionState{}
		e.elections[electionID] = st
	}
	return st
}

func (e *Engine) warmElections() []string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	ids := make([]string, 0, len(e.elections))
	for id, st := range e.elections {
		if st.published.Load() != nil {
			ids = append(ids, id)
		}
	}
	return ids
}

// Attach subscribes the engine to vote.committed events. Events are applied
// on the publisher's goroutine, so the tally reflects a vote by the time the
// cast that committed it returns.
func (e *Engine) Attach() {
	if e.bus == nil {
		return
	}
	e.subID = e.bus.Register(event.VoteCommittedEventType, event.FuncSubscriber(func(evt event.Event) {
		ev, ok := evt.Data.(event.VoteCommittedEvent)
		if !ok {
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), defaultApplyTimeout)
		defer cancel()
		if err := e.ApplyVoteEvent(ctx, ev); err != nil {
			e.logger.Error(ctx, "tally update failed", "election_id", ev.ElectionID, "vote_id", ev.VoteID, "error", err)
		}
	}))
}

func (e *Engine) Detach() {
	if e.bus != nil && e.subID != 0 {
		e.bus.Unsubscribe(event.VoteCommittedEventType, e.subID)
		e.subID = 0
	}
}

// Snapshot returns the last published snapshot, computing it from the ledger
// on first use. The result must not be modified.
func (e *Engine) Snapshot(ctx context.Context, electionID string) (*models.TallySnapshot, error) {
	if s := e.state(electionID).published.Load(); s != nil {
		return s, nil
	}
	return e.recompute(ctx, electionID, metrics.TriggerRead)
}

// ApplyVoteEvent counts one committed vote. Replays of an already counted
// vote are ignored. Without a warm snapshot it falls back to a full
// recomputation.
func (e *Engine) ApplyVoteEvent(ctx context.Context, ev event.VoteCommittedEvent) error {
	st := e.state(ev.ElectionID)

	st.mu.Lock()
	if st.recomputing {
		st.pending = append(st.pending, ev)
		st.mu.Unlock()
		return nil
	}
	if !st.warm {
		st.mu.Unlock()
		_, err := e.recompute(ctx, ev.ElectionID, metrics.TriggerFallback)
		return err
	}
	if _, known := st.counts[ev.CandidateID]; !known {
		st.mu.Unlock()
		_, err := e.recompute(ctx, ev.ElectionID, metrics.TriggerFallback)
		return err
	}
	if e.applyLocked(st, ev) {
		e.publishLocked(ev.ElectionID, st)
		e.metrics.TallyIncremental()
	}
	st.mu.Unlock()
	return nil
}

// applyLocked reports whether ev changed the counts.
func (e *Engine) applyLocked(st *electionState, ev event.VoteCommittedEvent) bool {
	if _, dup := st.counted[ev.VoteID]; dup {
		return false
	}
	if _, known := st.counts[ev.CandidateID]; !known {
		return false
	}
	st.counted[ev.VoteID] = struct{}{}
	st.counts[ev.CandidateID]++
	return true
}

func (e *Engine) publishLocked(electionID string, st *electionState) *models.TallySnapshot {
	st.version++
	snap := Compute(electionID, st.candidates, st.counts, st.version, e.now())
	st.published.Store(snap)

	if e.bus != nil {
		e.bus.PublishAsync(event.TallyUpdatedEventType,
			event.NewEvent(event.TallyUpdatedEventType, event.TallyUpdatedEvent{Snapshot: snap}))
	}
	return snap
}

// Recompute rebuilds the election's tally from the ledger and publishes it.
func (e *Engine) Recompute(ctx context.Context, electionID string) (*models.TallySnapshot, error) {
	return e.recompute(ctx, electionID, metrics.TriggerManual)
}

func (e *Engine) recompute(ctx context.Context, electionID, trigger string) (*models.TallySnapshot, error) {
	st := e.state(electionID)

	st.recomputeMu.Lock()
	defer st.recomputeMu.Unlock()

	st.mu.Lock()
	if trigger == metrics.TriggerRead {
		// another caller may have warmed it while we waited
		if snap := st.published.Load(); snap != nil {
			st.mu.Unlock()
			return snap, nil
		}
	}
	st.recomputing = true
	st.mu.Unlock()

	horizon := e.now().Add(-replayWindow)
	candidates, refs, loadErr := e.load(ctx, electionID)

	st.mu.Lock()
	defer st.mu.Unlock()
	st.recomputing = false
	pending := st.pending
	st.pending = nil

	if loadErr != nil {
		// a cold election loses nothing: every queued vote is already in the ledger
		if st.warm {
			changed := false
			for _, ev := range pending {
				changed = e.applyLocked(st, ev) || changed
			}
			if changed {
				e.publishLocked(electionID, st)
			}
		}
		return nil, loadErr
	}

	counts := make(map[string]int64, len(candidates))
	for _, c := range candidates {
		counts[c.ID] = 0
	}
	queued := make(map[string]struct{}, len(pending))
	for _, ev := range pending {
		queued[ev.VoteID] = struct{}{}
	}
	counted := make(map[string]struct{}, len(pending))
	for _, ref := range refs {
		if _, known := counts[ref.CandidateID]; !known {
			continue
		}
		counts[ref.CandidateID]++
		_, inQueue := queued[ref.ID]
		if inQueue || !ref.CastAt.Before(horizon) {
			counted[ref.ID] = struct{}{}
		}
	}

	previous := st.published.Load()
	st.candidates = candidates
	st.counts = counts
	st.counted = counted
	st.warm = true

	for _, ev := range pending {
		e.applyLocked(st, ev)
	}
	e.metrics.TallyRecomputed(trigger)

	fresh := Compute(electionID, st.candidates, st.counts, st.version, e.now())
	if previous != nil && sameCounts(previous, fresh) {
		return previous, nil
	}
	if previous != nil && trigger == metrics.TriggerReconcile {
		e.metrics.TallyDrift()
		e.logger.Warn(ctx, "tally drift corrected", "election_id", electionID,
			"live_total", previous.Total, "ledger_total", fresh.Total)
	}
	return e.publishLocked(electionID, st), nil
}

func (e *Engine) load(ctx context.Context, electionID string) ([]models.Candidate, []models.VoteRef, error) {
	candidates, err := e.source.Candidates(ctx, electionID)
	if err != nil {
		return nil, nil, errors.Join(common.ErrStorageUnavailable, fmt.Errorf("load candidates: %w", err))
	}
	if len(candidates) == 0 {
		return nil, nil, common.ErrorNotFound
	}
	refs, err := e.source.VoteRefs(ctx, electionID)
	if err != nil {
		return nil, nil, errors.Join(common.ErrStorageUnavailable, fmt.Errorf("load votes: %w", err))
	}
	return candidates, refs, nil
}

// Run reconciles every warm election against the ledger each interval until
// ctx is cancelled.
func (e *Engine) Run(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		<-ctx.Done()
		return nil
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			e.Reconcile(ctx)
		}
	}
}

// Reconcile recomputes every warm election once.
func (e *Engine) Reconcile(ctx context.Context) {
	for _, id := range e.warmElections() {
		if ctx.Err() != nil {
			return
		}
		if _, err := e.recompute(ctx, id, metrics.TriggerReconcile); err != nil {
			e.logger.Warn(ctx, "tally reconcile failed", "election_id", id, "error", err)
		}
	}
}

// Watch streams snapshots for electionID: the current one first, then each
// newer version. Bus events only wake the stream; what is sent is the
// election's published snapshot at that moment, so reordered deliveries
// never surface an older version. Intermediate versions may be skipped when
// the reader is slow. The channel closes when ctx ends.
func (e *Engine) Watch(ctx context.Context, electionID string) (<-chan *models.TallySnapshot, error) {
	if e.bus == nil {
		return nil, errors.New("tally: no event bus configured")
	}

	subID, updates := e.bus.SubscribeLatest(event.TallyUpdatedEventType, func(evt event.Event) bool {
		ev, ok := evt.Data.(event.TallyUpdatedEvent)
		return ok && ev.Snapshot.ElectionID == electionID
	})

	current, err := e.Snapshot(ctx, electionID)
	if err != nil {
		e.bus.Unsubscribe(event.TallyUpdatedEventType, subID)
		return nil, err
	}

	st := e.state(electionID)
	out := make(chan *models.TallySnapshot, 1)
	out <- current

	go func() {
		defer close(out)
		defer e.bus.Unsubscribe(event.TallyUpdatedEventType, subID)

		last := current.Version
		for {
			select {
			case <-ctx.Done():
				return
			case _, ok := <-updates:
				if !ok {
					return
				}
				snap := st.published.Load()
				if snap == nil || snap.Version <= last {
					continue
				}
				select {
				case out <- snap:
					last = snap.Version
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}
