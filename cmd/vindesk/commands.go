package main

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/vindesk/internal/authorization"
	"github.com/smallbiznis/vindesk/internal/ledger"
	"github.com/smallbiznis/vindesk/internal/payment"
	paymentdomain "github.com/smallbiznis/vindesk/internal/payment/domain"
	paymentservice "github.com/smallbiznis/vindesk/internal/payment/service"
	"github.com/spf13/cobra"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the desk: HTTP API, inbound bus consumer and notifier",
		RunE: func(cmd *cobra.Command, args []string) error {
			app := fx.New(desk())
			if err := app.Err(); err != nil {
				return err
			}
			app.Run()
			return nil
		},
	}
}

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Bring the database schema up to date and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runOnce(core(), func(log *zap.Logger) {
				log.Info("migration finished")
			})
		},
	}
}

func paymentCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "payment",
		Short: "Inspect and settle payments by hand",
	}

	var externalID string
	complete := &cobra.Command{
		Use:   "complete <payment-id>",
		Short: "Mark a pending payment completed and grant its credits",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := snowflake.ParseString(strings.TrimSpace(args[0]))
			if err != nil {
				return fmt.Errorf("invalid payment id %q", args[0])
			}
			return runOnce(paymentModules(), func(svc *paymentservice.Service) error {
				ctx := context.Background()
				_, err := svc.CompletePayment(ctx, id, externalID)
				if err != nil {
					return err
				}
				p, err := svc.GetPayment(ctx, id)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "payment %s completed: %d reports for requester %d\n",
					p.ID, tierReports(p.Tier), p.RequesterID)
				return nil
			})
		},
	}
	complete.Flags().StringVar(&externalID, "external-id", "", "Reference from the payment provider")

	show := &cobra.Command{
		Use:   "show <payment-id>",
		Short: "Print a payment",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := snowflake.ParseString(strings.TrimSpace(args[0]))
			if err != nil {
				return fmt.Errorf("invalid payment id %q", args[0])
			}
			return runOnce(paymentModules(), func(svc *paymentservice.Service) error {
				p, err := svc.GetPayment(context.Background(), id)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\t%s\t%s\trequester=%d\n",
					p.ID, p.Tier, p.Status, paymentdomain.FormatAmount(p.Amount, p.Currency), p.RequesterID)
				return nil
			})
		},
	}

	cmd.AddCommand(complete, show)
	return cmd
}

func roleCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "role",
		Short: "Manage operator and system roles",
	}

	grant := &cobra.Command{
		Use:   "grant <actor-id> <operator|system>",
		Short: "Grant a role to an actor",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			actorID, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid actor id %q", args[0])
			}
			return runOnce(fx.Options(core(), authorization.Module), func(svc *authorization.Service) error {
				if err := svc.GrantRole(context.Background(), actorID, args[1]); err != nil {
					return err
				}
				roles, err := svc.Roles(actorID)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "actor %d roles: %s\n", actorID, strings.Join(roles, ", "))
				return nil
			})
		},
	}

	revoke := &cobra.Command{
		Use:   "revoke <actor-id> <operator|system>",
		Short: "Remove a role from an actor",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			actorID, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid actor id %q", args[0])
			}
			return runOnce(fx.Options(core(), authorization.Module), func(svc *authorization.Service) error {
				return svc.RevokeRole(context.Background(), actorID, args[1])
			})
		},
	}

	cmd.AddCommand(grant, revoke)
	return cmd
}

func paymentModules() fx.Option {
	return fx.Options(core(), ledger.Module, payment.Module)
}

func tierReports(tier paymentdomain.Tier) int {
	spec, ok := paymentdomain.LookupTier(tier)
	if !ok {
		return 0
	}
	return spec.Reports
}
