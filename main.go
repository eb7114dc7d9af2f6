package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"mxiledger/application"
	"mxiledger/application/dto"
	"mxiledger/cmd"
	"mxiledger/config"
	"mxiledger/database"

	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	root := &cobra.Command{
		Use:          "mxiledger",
		Short:        "MXI token ledger and wagering engine",
		SilenceUsage: true,
		PersistentPreRun: func(*cobra.Command, []string) {
			cmd.ConfigureLogging(config.Get())
		},
	}

	root.AddCommand(
		newServeCmd(),
		newMigrateCmd(),
		newResetVestingCmd(),
		newAdjustBalanceCmd(),
		newCleanupCmd(),
	)

	if err := root.ExecuteContext(ctx); err != nil {
		log.WithError(err).Error("Command failed")
		os.Exit(1)
	}
}

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the HTTP API and run maintenance jobs",
		RunE: func(c *cobra.Command, _ []string) error {
			return cmd.Run(c.Context())
		},
	}
}

func newMigrateCmd() *cobra.Command {
	migrateCmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage database schema migrations",
	}

	migrateCmd.AddCommand(
		&cobra.Command{
			Use:   "up",
			Short: "Apply all pending migrations",
			RunE: func(*cobra.Command, []string) error {
				return database.MigrateUp()
			},
		},
		&cobra.Command{
			Use:   "down [steps]",
			Short: "Roll back migrations (default 1 step)",
			Args:  cobra.MaximumNArgs(1),
			RunE: func(_ *cobra.Command, args []string) error {
				steps := 1
				if len(args) == 1 {
					n, err := strconv.Atoi(args[0])
					if err != nil || n <= 0 {
						return fmt.Errorf("steps must be a positive integer, got %q", args[0])
					}
					steps = n
				}
				return database.MigrateDown(steps)
			},
		},
		&cobra.Command{
			Use:   "status",
			Short: "Show the current migration version",
			RunE: func(*cobra.Command, []string) error {
				return database.MigrateStatus()
			},
		},
	)
	return migrateCmd
}

// withAdmin bootstraps the operation layer and runs fn as an admin operator
func withAdmin(c *cobra.Command, operator string, fn func(ctx context.Context, core *application.Core) (any, error)) error {
	rt, err := cmd.Bootstrap(c.Context(), config.Get())
	if err != nil {
		return err
	}
	defer rt.Close()

	ctx := application.WithPrincipal(c.Context(), application.Principal{UserID: operator, Admin: true})
	result, err := fn(ctx, rt.Core)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(c.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(result)
}

func newResetVestingCmd() *cobra.Command {
	var operator string
	c := &cobra.Command{
		Use:   "reset-vesting",
		Short: "Zero the vesting bucket of every account",
		RunE: func(c *cobra.Command, _ []string) error {
			return withAdmin(c, operator, func(ctx context.Context, core *application.Core) (any, error) {
				return core.AdminResetGlobalVestingRewards(ctx)
			})
		},
	}
	c.Flags().StringVar(&operator, "operator", "cli", "operator recorded in the audit log")
	return c
}

func newAdjustBalanceCmd() *cobra.Command {
	var (
		operator   string
		commission bool
		remove     bool
	)
	c := &cobra.Command{
		Use:   "adjust-balance <user-id> <amount>",
		Short: "Credit or debit an account as an audited admin operation",
		Args:  cobra.ExactArgs(2),
		RunE: func(c *cobra.Command, args []string) error {
			amount, err := decimal.NewFromString(args[1])
			if err != nil {
				return fmt.Errorf("invalid amount %q: %w", args[1], err)
			}
			userID := args[0]

			return withAdmin(c, operator, func(ctx context.Context, core *application.Core) (any, error) {
				switch {
				case remove:
					return core.AdminRemoveBalance(ctx, dto.AmountRequest{UserID: userID, Amount: amount})
				case commission:
					return core.AdminAddBalanceWithCommissions(ctx, dto.AmountRequest{UserID: userID, Amount: amount})
				default:
					return core.AdminAddBalanceWithoutCommissions(ctx, dto.AddBalanceWithoutCommissionsRequest{UserID: userID, MXIAmount: amount})
				}
			})
		},
	}
	c.Flags().StringVar(&operator, "operator", "cli", "operator recorded in the audit log")
	c.Flags().BoolVar(&commission, "with-commission", false, "credit purchased and pay referral commissions")
	c.Flags().BoolVar(&remove, "remove", false, "debit the amount instead of crediting it")
	c.MarkFlagsMutuallyExclusive("with-commission", "remove")
	return c
}

func newCleanupCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "cleanup-wagers",
		Short: "Cancel stale waiting wagers and settle overdue ones once",
		RunE: func(c *cobra.Command, _ []string) error {
			cfg := config.Get()
			return withAdmin(c, application.SystemPrincipal.UserID, func(ctx context.Context, core *application.Core) (any, error) {
				cancelled, err := core.CleanupStaleWagers(ctx, cfg.StaleWagerTimeout)
				if err != nil {
					return nil, err
				}
				settled, err := core.SettleOverdueWagers(ctx, cfg.SettlementTimeout)
				if err != nil {
					return nil, err
				}
				return map[string]any{"cancelled": cancelled, "settled": settled}, nil
			})
		},
	}
}
