// Package bus owns the process-wide NATS connection.
package bus

import (
	"context"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/smallbiznis/vindesk/internal/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("bus",
	fx.Provide(New),
)

// New connects to NATS when NATS_URL is set. It returns a nil connection
// otherwise; consumers fall back to their local implementations.
func New(lc fx.Lifecycle, cfg config.Config, log *zap.Logger) (*nats.Conn, error) {
	log = log.Named("bus")
	if cfg.NATS.URL == "" {
		log.Info("nats disabled, NATS_URL is empty")
		return nil, nil
	}

	conn, err := Connect(cfg, log)
	if err != nil {
		return nil, err
	}

	lc.Append(fx.Hook{
		OnStop: func(context.Context) error {
			if err := conn.Drain(); err != nil {
				log.Warn("nats drain failed", zap.Error(err))
				conn.Close()
			}
			return nil
		},
	})
	return conn, nil
}

func Connect(cfg config.Config, log *zap.Logger) (*nats.Conn, error) {
	conn, err := nats.Connect(cfg.NATS.URL,
		nats.Name(cfg.AppName),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				log.Warn("nats disconnected", zap.Error(err))
			}
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			log.Info("nats reconnected", zap.String("url", c.ConnectedUrl()))
		}),
	)
	if err != nil {
		return nil, err
	}
	log.Info("nats connected", zap.String("url", conn.ConnectedUrl()))
	return conn, nil
}
