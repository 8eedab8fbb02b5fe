// Package cli is the interactive voting-station terminal: it reads a voter's
// identifier without echo, walks them through their open ballots, and shows
// live tallies to poll officers.
package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/ezforhamza/awaz-e-talba-sub000/internal/api"
	"github.com/ezforhamza/awaz-e-talba-sub000/internal/station/config"
)

// VotingClient is the server surface the station uses.
type VotingClient interface {
	CheckEligibility(ctx context.Context, votingID string) (*api.EligibilityResponse, error)
	StartSession(ctx context.Context, votingID string) (*api.StartSessionResponse, error)
	CastVote(ctx context.Context, sessionID, electionID, candidateID string) (*api.CastVoteResponse, error)
	EndSession(ctx context.Context, sessionID string) error
	GetTally(ctx context.Context, electionID string) (*api.TallySnapshot, error)
	WatchTally(ctx context.Context, electionID string, fn func(*api.TallySnapshot)) error
	Ping(ctx context.Context) error
}

type Mode string

const (
	ModeOffline Mode = "offline"
	ModeOnline  Mode = "online"
)

type App struct {
	config *config.Config
	client VotingClient
	reader *bufio.Reader
	out    io.Writer

	mu   sync.RWMutex
	mode Mode
}

func NewApp(c *config.Config, client VotingClient, in io.Reader, out io.Writer) *App {
	return &App{config: c, client: client, reader: bufio.NewReader(in), out: out}
}

func (a *App) println(args ...any) {
	fmt.Fprintln(a.out, args...)
}

func (a *App) printf(format string, args ...any) {
	fmt.Fprintf(a.out, format, args...)
}

func (a *App) Mode() Mode {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.mode
}

func (a *App) setMode(mode Mode) {
	a.mu.Lock()
	changed := a.mode != mode
	a.mode = mode
	a.mu.Unlock()
	if changed {
		a.printf("[station is %s]\n", mode)
	}
}

func (a *App) getStatus() string {
	if m := a.Mode(); m != "" {
		return fmt.Sprintf("(%s)", m)
	}
	return ""
}

// Run pings the server, starts the reachability watcher and serves the
// REPL until the operator quits or input ends.
func (a *App) Run(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	var wg sync.WaitGroup
	defer func() {
		cancel()
		wg.Wait()
	}()

	a.println("Voting station ready (type 'help' for commands)")
	a.checkOnline(ctx)

	wg.Add(1)
	go func() {
		defer wg.Done()
		a.StartOnlineStatusWatcher(ctx, a.config.PingInterval)
	}()

	runREPL(ctx, a, a.getStatus, a.reader, a.out)
}

func (a *App) checkOnline(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	err := a.client.Ping(ctx)
	cancel()

	if err != nil {
		a.setMode(ModeOffline)
		return
	}
	a.setMode(ModeOnline)
}

// StartOnlineStatusWatcher pings the server every interval until ctx ends.
func (a *App) StartOnlineStatusWatcher(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			a.checkOnline(ctx)
		case <-ctx.Done():
			return
		}
	}
}
