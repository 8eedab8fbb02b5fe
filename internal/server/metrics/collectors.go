// Package metrics holds the ballot server's Prometheus collectors and the
// HTTP endpoint that exposes them. A nil *Collectors is valid and records
// nothing.
package metrics

import (
	"github.com/ezforhamza/awaz-e-talba-sub000/internal/event"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Tally recomputation triggers.
const (
	TriggerFallback  = "fallback"
	TriggerReconcile = "reconcile"
	TriggerRead      = "read"
	TriggerManual    = "manual"
)

type Collectors struct {
	votesCast           *prometheus.CounterVec
	castRejections      *prometheus.CounterVec
	sessions            *prometheus.CounterVec
	sessionElections    prometheus.Histogram
	tallyRecomputations *prometheus.CounterVec
	tallyIncremental    prometheus.Counter
	tallyDrift          prometheus.Counter
}

func New(reg prometheus.Registerer) *Collectors {
	f := promauto.With(reg)
	return &Collectors{
		votesCast: f.NewCounterVec(prometheus.CounterOpts{
			Name: "ballot_votes_cast_total",
			Help: "Votes committed to the ledger, by election.",
		}, []string{"election"}),
		castRejections: f.NewCounterVec(prometheus.CounterOpts{
			Name: "ballot_cast_rejections_total",
			Help: "Rejected cast attempts, by reason.",
		}, []string{"reason"}),
		sessions: f.NewCounterVec(prometheus.CounterOpts{
			Name: "ballot_sessions_total",
			Help: "Voting session transitions, by outcome.",
		}, []string{"outcome"}),
		sessionElections: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "ballot_session_elections_voted",
			Help:    "Elections voted in per ended session.",
			Buckets: prometheus.LinearBuckets(0, 1, 6),
		}),
		tallyRecomputations: f.NewCounterVec(prometheus.CounterOpts{
			Name: "tally_recomputations_total",
			Help: "Full tally recomputations from the ledger, by trigger.",
		}, []string{"trigger"}),
		tallyIncremental: f.NewCounter(prometheus.CounterOpts{
			Name: "tally_incremental_updates_total",
			Help: "Vote events applied incrementally.",
		}),
		tallyDrift: f.NewCounter(prometheus.CounterOpts{
			Name: "tally_drift_total",
			Help: "Reconciliations whose result differed from the live snapshot.",
		}),
	}
}

func (c *Collectors) VoteCast(electionID string) {
	if c == nil {
		return
	}
	c.votesCast.WithLabelValues(electionID).Inc()
}

func (c *Collectors) CastRejected(reason string) {
	if c == nil {
		return
	}
	c.castRejections.WithLabelValues(reason).Inc()
}

// Session records a session outcome: started, resumed, completed, ended, expired.
func (c *Collectors) Session(outcome string) {
	if c == nil {
		return
	}
	c.sessions.WithLabelValues(outcome).Inc()
}

// ObserveSessionEnds feeds session.ended events from bus into the
// elections-per-session histogram until the bus stops.
func (c *Collectors) ObserveSessionEnds(bus *event.Bus) event.SubscriberID {
	if c == nil || bus == nil {
		return 0
	}
	return bus.SubscribeFunc(event.SessionEndedEventType, func(evt event.Event) {
		if ev, ok := evt.Data.(event.SessionEndedEvent); ok {
			c.sessionElections.Observe(float64(ev.ElectionsVoted))
		}
	})
}

func (c *Collectors) TallyRecomputed(trigger string) {
	if c == nil {
		return
	}
	c.tallyRecomputations.WithLabelValues(trigger).Inc()
}

func (c *Collectors) TallyIncremental() {
	if c == nil {
		return
	}
	c.tallyIncremental.Inc()
}

func (c *Collectors) TallyDrift() {
	if c == nil {
		return
	}
	c.tallyDrift.Inc()
}
