package dispatch

import (
	"context"

	"github.com/nats-io/nats.go"
	"github.com/smallbiznis/vindesk/internal/config"
	lifecycledomain "github.com/smallbiznis/vindesk/internal/lifecycle/domain"
	lifecycleservice "github.com/smallbiznis/vindesk/internal/lifecycle/service"
	obsmetrics "github.com/smallbiznis/vindesk/internal/observability/metrics"
	paymentservice "github.com/smallbiznis/vindesk/internal/payment/service"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("dispatch",
	fx.Provide(NewDispatcher),
	fx.Invoke(Register),
)

type Params struct {
	fx.In

	Cfg        config.Config
	Desk       *config.DeskConfigHolder
	Controller *lifecycleservice.Service
	Payments   *paymentservice.Service
	Authorizer lifecycledomain.Authorizer `optional:"true"`
	Log        *zap.Logger
	ObsMetrics *obsmetrics.Metrics `optional:"true"`
}

func NewDispatcher(p Params) *Dispatcher {
	return New(p.Controller, p.Payments, p.Authorizer, p.Desk.Get().Dispatch.Workers, p.Log, p.ObsMetrics)
}

// Register queue-subscribes the dispatcher to <prefix>.inbound.* when a
// NATS connection is available. Several instances share the load through
// the queue group.
func Register(lc fx.Lifecycle, cfg config.Config, conn *nats.Conn, d *Dispatcher, log *zap.Logger) {
	log = log.Named("dispatch")
	if conn == nil {
		log.Info("inbound bus disabled")
		return
	}

	subject := cfg.NATS.SubjectPrefix + ".inbound.*"
	var sub *nats.Subscription
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			var err error
			sub, err = conn.QueueSubscribe(subject, cfg.NATS.Queue, d.Enqueue)
			if err != nil {
				return err
			}
			log.Info("listening for inbound events", zap.String("subject", subject), zap.String("queue", cfg.NATS.Queue))
			return nil
		},
		OnStop: func(context.Context) error {
			if sub != nil {
				if err := sub.Unsubscribe(); err != nil {
					log.Warn("unsubscribe failed", zap.Error(err))
				}
			}
			d.Stop()
			return nil
		},
	})
}
