package main

import (
	"github.com/ezforhamza/awaz-e-talba-sub000/internal/server"
	"github.com/spf13/cobra"
)

func serveCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the voting gRPC server, tally feed and metrics endpoint",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := configFrom(cmd)
			if err != nil {
				return err
			}
			logger := commonRun(cfg)

			app, err := server.NewApp(cmd.Context(), cfg, logger)
			if err != nil {
				return err
			}
			return app.Run(cmd.Context())
		},
	}
}
