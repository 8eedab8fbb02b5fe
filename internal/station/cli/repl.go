package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
)

// execIface is the command surface the REPL dispatches to. *App satisfies
// it; tests can provide a stub.
type execIface interface {
	Vote(ctx context.Context) error
	Check(ctx context.Context) error
	Tally(ctx context.Context, electionID string) error
	Watch(ctx context.Context, electionID string) error
	Status(ctx context.Context) error
}

// runREPL reads one command per line from reader and dispatches it to a.
// The loop exits on EOF or when the operator types "exit" or "quit".
//
//	help                  show available commands
//	vote                  run a voter through their open ballots
//	check                 check a voter's eligibility without opening a session
//	tally <election>      show the current tally
//	watch <election>      follow the tally live (Ctrl+C to stop)
//	status                check the connection to the server
//	exit | quit           leave the program
//
// Handlers report their own errors to the operator; the loop keeps going.
func runREPL(ctx context.Context, a execIface, statusFn func() string, reader *bufio.Reader, w io.Writer) {
	for {
		fmt.Fprintf(w, "station %s> ", statusFn())
		line, err := reader.ReadString('\n')
		if err != nil && line == "" {
			return
		}
		parts := strings.Fields(line)
		if len(parts) == 0 {
			continue
		}
		cmd, args := parts[0], parts[1:]

		switch cmd {
		case "help":
			fmt.Fprintln(w, "Available commands: vote, check, tally <election>, watch <election>, status, exit")

		case "vote", "v":
			_ = a.Vote(ctx)

		case "check":
			_ = a.Check(ctx)

		case "tally", "watch":
			if len(args) != 1 {
				fmt.Fprintf(w, "Usage: %s <election>\n", cmd)
				continue
			}
			if cmd == "tally" {
				_ = a.Tally(ctx, args[0])
			} else {
				_ = a.Watch(ctx, args[0])
			}

		case "status":
			_ = a.Status(ctx)

		case "exit", "quit":
			fmt.Fprintln(w, "Bye!")
			return

		default:
			fmt.Fprintln(w, "Unknown command:", cmd)
		}
	}
}
