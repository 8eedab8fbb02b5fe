package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/ezforhamza/awaz-e-talba-sub000/internal/dbx"
	"github.com/ezforhamza/awaz-e-talba-sub000/internal/identity"
	"github.com/ezforhamza/awaz-e-talba-sub000/internal/server"
	"github.com/ezforhamza/awaz-e-talba-sub000/internal/server/auth"
	"github.com/ezforhamza/awaz-e-talba-sub000/internal/server/catalog"
	"github.com/ezforhamza/awaz-e-talba-sub000/internal/server/config"
	"github.com/ezforhamza/awaz-e-talba-sub000/internal/server/models"
	"github.com/ezforhamza/awaz-e-talba-sub000/internal/server/repositories/repomanager"
	"github.com/ezforhamza/awaz-e-talba-sub000/internal/server/services"
	"github.com/spf13/cobra"
)

// withStorage opens and migrates the configured database for the duration of fn.
func withStorage(ctx context.Context, cfg *config.Config, fn func(db *dbx.DB, rm *repomanager.SQLRepositoryManager) error) error {
	db, err := server.OpenStorage(ctx, cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	rm := repomanager.NewSQLRepositoryManager(db.Dialect)
	if err := rm.RunMigrations(ctx, db.DB); err != nil {
		return fmt.Errorf("migrations: %w", err)
	}
	return fn(db, rm)
}

func migrateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations and exit",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := configFrom(cmd)
			if err != nil {
				return err
			}
			return withStorage(cmd.Context(), cfg, func(*dbx.DB, *repomanager.SQLRepositoryManager) error {
				fmt.Fprintln(cmd.OutOrStdout(), "migrations applied")
				return nil
			})
		},
	}
}

func tokenCommand() *cobra.Command {
	var stationID, tenantID string
	var validity time.Duration

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue a station token scoped to one tenant",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := configFrom(cmd)
			if err != nil {
				return err
			}
			if cfg.TokenSecret == "" {
				return errors.New("token_secret is required")
			}
			if validity <= 0 {
				validity = cfg.TokenValidity
			}
			token, err := auth.GenerateToken(stationID, tenantID, []byte(cfg.TokenSecret), validity)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
	cmd.Flags().StringVar(&stationID, "station", "", "station id")
	cmd.Flags().StringVar(&tenantID, "tenant", "", "tenant (administrator) the station votes for")
	cmd.Flags().DurationVar(&validity, "validity", 0, "token lifetime (defaults to token_validity)")
	_ = cmd.MarkFlagRequired("station")
	_ = cmd.MarkFlagRequired("tenant")
	return cmd
}

func seedCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "seed <catalog.yaml>",
		Short: "Load elections, candidates and voters from a YAML catalog",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := configFrom(cmd)
			if err != nil {
				return err
			}

			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()

			c, err := catalog.Parse(f)
			if err != nil {
				return err
			}

			return withStorage(cmd.Context(), cfg, func(db *dbx.DB, rm *repomanager.SQLRepositoryManager) error {
				res, err := c.Apply(cmd.Context(), db, rm)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "elections: %d, candidates: %d, voters: %d, skipped: %d\n",
					res.Elections, res.Candidates, res.Voters, res.Skipped)
				return nil
			})
		},
	}
}

func verifyCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "verify <election-id>",
		Short: "Check every vote's integrity hash and recompute the tally from the ledger",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := configFrom(cmd)
			if err != nil {
				return err
			}
			keys, err := identity.NewKeyring([]byte(cfg.FingerprintSecret))
			if err != nil {
				return err
			}

			return withStorage(cmd.Context(), cfg, func(db *dbx.DB, rm *repomanager.SQLRepositoryManager) error {
				r, err := services.VerifyLedger(cmd.Context(), services.Deps{DB: db, Repos: rm, Keys: keys}, args[0])
				if err != nil {
					return err
				}
				printReport(cmd.OutOrStdout(), r)
				if !r.OK() {
					return fmt.Errorf("ledger verification failed for %s", r.ElectionID)
				}
				return nil
			})
		},
	}
}

func printReport(w io.Writer, r *services.LedgerReport) {
	fmt.Fprintf(w, "election %s: %d votes\n", r.ElectionID, r.Votes)
	for _, c := range r.Tally.Candidates {
		fmt.Fprintf(w, "  %-24s %6d  %3d%%\n", c.Name, c.Count, c.Percentage)
	}
	for _, id := range r.Tampered {
		fmt.Fprintf(w, "  TAMPERED vote %s\n", id)
	}
	for _, id := range r.Orphaned {
		fmt.Fprintf(w, "  ORPHANED vote %s\n", id)
	}
}

func electionCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "election",
		Short: "Manage election lifecycle",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "status <election-id> <draft|active|completed|archived>",
		Short: "Move an election to another lifecycle status",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := configFrom(cmd)
			if err != nil {
				return err
			}
			status := models.ElectionStatus(args[1])
			if !status.Valid() {
				return fmt.Errorf("unknown status %q", args[1])
			}
			return withStorage(cmd.Context(), cfg, func(db *dbx.DB, rm *repomanager.SQLRepositoryManager) error {
				if err := rm.Elections(db.Handle()).SetStatus(cmd.Context(), args[0], status); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "election %s is now %s\n", args[0], status)
				return nil
			})
		},
	})
	return cmd
}
