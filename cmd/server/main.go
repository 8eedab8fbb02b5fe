// Command ballotd runs the ballot server and its administrative tasks.
package main

import (
	"fmt"
	"os"

	"github.com/ezforhamza/awaz-e-talba-sub000/internal/logging"
	"github.com/ezforhamza/awaz-e-talba-sub000/internal/server/config"
	"github.com/spf13/cobra"
	"go.uber.org/automaxprocs/maxprocs"
)

const programName = "ballotd"

// commonRun builds the process logger and sizes GOMAXPROCS to the
// container quota.
func commonRun(cfg *config.Config) *logging.SlogLogger {
	logger := logging.NewJSON(os.Stdout, cfg.LogLevel)
	sl := logger.Slog().With("component", programName)

	if _, err := maxprocs.Set(maxprocs.Logger(func(format string, v ...any) {
		sl.Info(fmt.Sprintf(format, v...))
	})); err != nil {
		sl.Warn("maxprocs: " + err.Error())
	}
	return logger
}

func newRootCommand() *cobra.Command {
	var configFile, envFile string

	rootCmd := &cobra.Command{
		Use:           programName,
		Short:         "Ballot integrity and live tally server",
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "path to YAML config file")
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "dotenv file to load if present")
	config.RegisterFlags(rootCmd.PersistentFlags())

	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(configFile, envFile)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		if err := config.ApplyFlags(cmd.Flags(), cfg); err != nil {
			return err
		}
		cmd.SetContext(config.WithContext(cmd.Context(), cfg))
		return nil
	}

	rootCmd.AddCommand(serveCommand())
	rootCmd.AddCommand(migrateCommand())
	rootCmd.AddCommand(tokenCommand())
	rootCmd.AddCommand(seedCommand())
	rootCmd.AddCommand(verifyCommand())
	rootCmd.AddCommand(electionCommand())

	return rootCmd
}

func configFrom(cmd *cobra.Command) (*config.Config, error) {
	cfg := config.FromContext(cmd.Context())
	if cfg == nil {
		return nil, fmt.Errorf("no config found in context")
	}
	return cfg, nil
}

func main() {
	if err := newRootCommand().Execute(); err != nil {
		// cobra has already printed the error
		os.Exit(1)
	}
}
