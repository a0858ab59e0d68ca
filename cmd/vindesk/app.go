package main

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/vindesk/internal/authorization"
	"github.com/smallbiznis/vindesk/internal/clock"
	"github.com/smallbiznis/vindesk/internal/config"
	"github.com/smallbiznis/vindesk/internal/dispatch"
	"github.com/smallbiznis/vindesk/internal/ledger"
	"github.com/smallbiznis/vindesk/internal/lifecycle"
	"github.com/smallbiznis/vindesk/internal/migration"
	"github.com/smallbiznis/vindesk/internal/notify"
	"github.com/smallbiznis/vindesk/internal/observability"
	"github.com/smallbiznis/vindesk/internal/payment"
	"github.com/smallbiznis/vindesk/internal/ratelimit"
	"github.com/smallbiznis/vindesk/internal/scheduler"
	"github.com/smallbiznis/vindesk/internal/server"
	"github.com/smallbiznis/vindesk/internal/ticket"
	"github.com/smallbiznis/vindesk/pkg/bus"
	"github.com/smallbiznis/vindesk/pkg/db"
	"go.uber.org/fx"
)

const commandTimeout = 30 * time.Second

// core is shared by every command: configuration, logging, the database
// and an up-to-date schema.
func core() fx.Option {
	return fx.Options(
		config.Module,
		observability.Module,
		clock.Module,
		fx.Provide(newSnowflakeNode),
		db.Module,
		migration.Module,
	)
}

// desk is the full ticket desk: both event sources, the HTTP surface and
// all domain services.
func desk() fx.Option {
	return fx.Options(
		core(),
		authorization.Module,
		ledger.Module,
		payment.Module,
		ticket.Module,
		ratelimit.Module,
		bus.Module,
		notify.Module,
		lifecycle.Module,
		dispatch.Module,
		scheduler.Module,
		server.Module,
	)
}

func newSnowflakeNode(cfg config.Config) (*snowflake.Node, error) {
	return snowflake.NewNode(cfg.SnowflakeNode)
}

// runOnce builds a short-lived app, runs fn inside it and shuts it down.
func runOnce(opts fx.Option, fn interface{}) error {
	app := fx.New(opts, fx.NopLogger, fx.Invoke(fn))
	if err := app.Err(); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()
	if err := app.Start(ctx); err != nil {
		return err
	}
	return app.Stop(ctx)
}
