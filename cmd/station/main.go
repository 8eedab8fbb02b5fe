// Command station is the interactive voting-station terminal.
package main

import (
	"context"
	"os"

	"github.com/ezforhamza/awaz-e-talba-sub000/internal/logging"
	"github.com/ezforhamza/awaz-e-talba-sub000/internal/station/cli"
	"github.com/ezforhamza/awaz-e-talba-sub000/internal/station/client"
	"github.com/ezforhamza/awaz-e-talba-sub000/internal/station/config"
)

const userAgent = "ballot-station/1"

func main() {
	logger := logging.New(os.Stderr, logging.FormatText, "info")
	ctx := context.Background()

	fatal := func(msg string, err error) {
		logger.Error(ctx, msg, "err", err)
		os.Exit(1)
	}

	cfg, err := config.LoadConfig(os.Args[1:])
	if err != nil {
		fatal("load config", err)
	}
	if err := cfg.Validate(); err != nil {
		fatal("invalid config", err)
	}

	c, err := client.New(cfg.ServerAddr, cfg.Token, userAgent, cfg.Origin)
	if err != nil {
		fatal("connect", err)
	}
	defer c.Close()

	logger.Info(ctx, "station starting", "server", cfg.ServerAddr, "origin", cfg.Origin)
	cli.NewApp(cfg, c, os.Stdin, os.Stdout).Run(ctx)
}
