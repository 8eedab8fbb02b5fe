package cli

import (
	"context"
	"errors"
	"io"
	"os"
	"os/signal"
	"slices"
	"strconv"
	"strings"

	"github.com/ezforhamza/awaz-e-talba-sub000/internal/api"
	"github.com/ezforhamza/awaz-e-talba-sub000/internal/common"
	"github.com/ezforhamza/awaz-e-talba-sub000/internal/station/client"
	"golang.org/x/term"
)

// Test seams.
var (
	notifyContext = signal.NotifyContext
	readSecret    = term.ReadPassword
)

// votingID reads the voter's identifier from the station terminal with echo
// off, so it never reaches the screen or scrollback. The caller wipes it.
func (a *App) votingID() ([]byte, error) {
	a.printf("Enter your voting ID: ")
	raw, err := readSecret(int(os.Stdin.Fd()))
	a.println()
	if err != nil {
		a.println("Error reading voting ID:", err)
		return nil, err
	}
	return raw, nil
}

// ask shows prompt and returns the voter's trimmed reply. An unterminated
// last line still counts as a reply.
func (a *App) ask(prompt string) (string, error) {
	a.printf("%s\n> ", prompt)
	line, err := a.reader.ReadString('\n')
	if err != nil && (!errors.Is(err, io.EOF) || line == "") {
		return "", err
	}
	return strings.TrimSpace(line), nil
}

// report shows err to the voter in plain words.
func (a *App) report(err error) {
	if reason := client.ReasonOf(err); reason != "" {
		a.println(api.MessageFor(reason))
		return
	}
	a.println("Error:", err)
}

func openBallots(ballots []api.Ballot) []api.Ballot {
	out := make([]api.Ballot, 0, len(ballots))
	for _, b := range ballots {
		if !b.HasVoted || b.AllowMultipleVotes {
			out = append(out, b)
		}
	}
	return out
}

// Vote reads a voting ID, opens a session and walks the voter through every
// ballot still open to them. The session is ended on the way out unless the
// server already completed it.
func (a *App) Vote(ctx context.Context) error {
	raw, err := a.votingID()
	if err != nil {
		return err
	}
	sess, err := a.client.StartSession(ctx, string(raw))
	common.WipeByteArray(raw)
	if err != nil {
		a.report(err)
		return err
	}

	completed := false
	defer func() {
		if completed {
			return
		}
		if err := a.client.EndSession(context.WithoutCancel(ctx), sess.SessionID); err != nil {
			a.report(err)
			return
		}
		a.println("Session ended.")
	}()

	for _, b := range openBallots(sess.Ballots) {
		done, err := a.ballot(ctx, sess.SessionID, b)
		if err != nil {
			return err
		}
		if done {
			completed = true
			a.println("Thank you, your votes have been recorded.")
			return nil
		}
	}
	return nil
}

type errQuit struct{}

func (errQuit) Error() string { return "voter quit" }

// ballot presents one election until the voter votes, skips or quits. It
// reports whether the server completed the session.
func (a *App) ballot(ctx context.Context, sessionID string, b api.Ballot) (bool, error) {
	a.printf("\n%s\n", b.Title)
	for i, c := range b.Candidates {
		a.printf("  %d) %s\n", i+1, c.Name)
	}

	prompt := "Choose a candidate number, (s)kip or (q)uit"
	if b.AllowMultipleVotes {
		prompt = "Choose a candidate number, (d)one or (q)uit"
	}

	for {
		choice, err := a.ask(prompt)
		if err != nil {
			return false, err
		}
		switch strings.ToLower(choice) {
		case "s", "skip", "d", "done":
			return false, nil
		case "q", "quit":
			return false, errQuit{}
		}

		n, err := strconv.Atoi(choice)
		if err != nil || n < 1 || n > len(b.Candidates) {
			a.println("Please enter a number from the list.")
			continue
		}
		cand := b.Candidates[n-1]

		res, err := a.client.CastVote(ctx, sessionID, b.ElectionID, cand.ID)
		if err != nil {
			a.report(err)
			switch client.ReasonOf(err) {
			case api.ReasonInvalidCandidate, api.ReasonStorageUnavailable:
				continue
			case api.ReasonAlreadyVoted, api.ReasonElectionClosed:
				return false, nil
			}
			return false, err
		}

		a.printf("Vote for %s recorded.\n", cand.Name)
		if res.SessionCompleted {
			return true, nil
		}
		if !b.AllowMultipleVotes || !slices.Contains(res.Remaining, b.ElectionID) {
			return false, nil
		}
	}
}

// Check shows a voter's eligibility without opening a session.
func (a *App) Check(ctx context.Context) error {
	raw, err := a.votingID()
	if err != nil {
		return err
	}
	resp, err := a.client.CheckEligibility(ctx, string(raw))
	common.WipeByteArray(raw)
	if err != nil {
		a.report(err)
		return err
	}

	if !resp.Eligible {
		a.println(resp.Message)
		return nil
	}
	a.println("Eligible for:")
	for _, b := range resp.Ballots {
		mark := ""
		if b.HasVoted {
			mark = " (voted)"
		}
		a.printf("  %s%s\n", b.Title, mark)
	}
	return nil
}

func (a *App) printTally(s *api.TallySnapshot) {
	a.printf("%s: %d votes (v%d)\n", s.ElectionID, s.Total, s.Version)
	for _, c := range s.Candidates {
		mark := ""
		if slices.Contains(s.Leaders, c.CandidateID) {
			mark = " *"
		}
		a.printf("  %-24s %6d  %3d%%%s\n", c.Name, c.Count, c.Percentage, mark)
	}
	if s.IsDraw {
		a.println("  draw")
	}
}

func (a *App) Tally(ctx context.Context, electionID string) error {
	s, err := a.client.GetTally(ctx, electionID)
	if err != nil {
		a.report(err)
		return err
	}
	a.printTally(s)
	return nil
}

// Watch prints every tally update until the operator presses Ctrl+C.
func (a *App) Watch(ctx context.Context, electionID string) error {
	ctx, stop := notifyContext(ctx, os.Interrupt)
	defer stop()

	err := a.client.WatchTally(ctx, electionID, a.printTally)
	if err != nil {
		a.report(err)
	}
	return err
}

func (a *App) Status(ctx context.Context) error {
	a.checkOnline(ctx)
	a.printf("server %s is %s\n", a.config.ServerAddr, a.Mode())
	return nil
}
