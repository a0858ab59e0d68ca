package notify

import (
	"github.com/nats-io/nats.go"
	"github.com/smallbiznis/vindesk/internal/clock"
	"github.com/smallbiznis/vindesk/internal/config"
	lifecycledomain "github.com/smallbiznis/vindesk/internal/lifecycle/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("notify",
	fx.Provide(NewNotifier),
)

type Params struct {
	fx.In

	Cfg   config.Config
	Conn  *nats.Conn `optional:"true"`
	Log   *zap.Logger
	Clock clock.Clock
}

func NewNotifier(p Params) lifecycledomain.Notifier {
	if p.Conn == nil {
		p.Log.Named("notify").Info("using log notifier")
		return NewLogNotifier(p.Log)
	}
	return NewNATSNotifier(p.Conn, p.Cfg.NATS.SubjectPrefix, p.Clock)
}
