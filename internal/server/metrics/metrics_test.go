package metrics

import (
	"context"
	"io"
	"net"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/ezforhamza/awaz-e-talba-sub000/internal/event"
	"github.com/ezforhamza/awaz-e-talba-sub000/internal/logging"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCollectors_NilSafe(t *testing.T) {
	var c *Collectors
	c.VoteCast("e1")
	c.CastRejected("duplicate_vote")
	c.Session("started")
	c.TallyRecomputed(TriggerRead)
	c.TallyIncremental()
	c.TallyDrift()
	assert.Zero(t, c.ObserveSessionEnds(nil))
}

func TestCollectors_Record(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := New(reg)

	c.VoteCast("e1")
	c.VoteCast("e1")
	c.CastRejected("duplicate_vote")
	c.TallyDrift()

	assert.Equal(t, 2.0, testutil.ToFloat64(c.votesCast.WithLabelValues("e1")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.castRejections.WithLabelValues("duplicate_vote")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.tallyDrift))
}

func TestCollectors_ObserveSessionEnds(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := New(reg)
	bus := event.NewBus(nil, logging.Nop())
	defer bus.Stop()

	require.NotZero(t, c.ObserveSessionEnds(bus))
	for _, n := range []int{2, 1} {
		bus.Publish(event.SessionEndedEventType, event.NewEvent(event.SessionEndedEventType,
			event.SessionEndedEvent{SessionID: "s", Reason: "all_voted", ElectionsVoted: n}))
	}

	require.Eventually(t, func() bool {
		count, _ := histogram(t, reg, "ballot_session_elections_voted")
		return count == 2
	}, time.Second, 10*time.Millisecond)
	_, sum := histogram(t, reg, "ballot_session_elections_voted")
	assert.Equal(t, 3.0, sum)
}

func histogram(t *testing.T, reg *prometheus.Registry, name string) (uint64, float64) {
	t.Helper()
	mfs, err := reg.Gather()
	require.NoError(t, err)
	for _, mf := range mfs {
		if mf.GetName() != name {
			continue
		}
		h := mf.GetMetric()[0].GetHistogram()
		return h.GetSampleCount(), h.GetSampleSum()
	}
	return 0, 0
}

func TestServer_ServesMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	New(reg).VoteCast("e1")

	lis, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- NewServer("", reg, logging.Nop()).Run(ctx, lis) }()

	var body string
	require.Eventually(t, func() bool {
		resp, err := http.Get("http://" + lis.Addr().String() + "/metrics")
		if err != nil {
			return false
		}
		defer resp.Body.Close()
		b, _ := io.ReadAll(resp.Body)
		body = string(b)
		return resp.StatusCode == http.StatusOK
	}, 2*time.Second, 20*time.Millisecond)

	assert.True(t, strings.Contains(body, `ballot_votes_cast_total{election="e1"} 1`), body)

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("server did not stop")
	}
}
