package ticket

import (
	"context"
	"time"

	"github.com/smallbiznis/vindesk/internal/clock"
	"github.com/smallbiznis/vindesk/internal/config"
	obsmetrics "github.com/smallbiznis/vindesk/internal/observability/metrics"
	"github.com/smallbiznis/vindesk/internal/ticket/domain"
	"github.com/smallbiznis/vindesk/internal/ticket/store/local"
	"github.com/smallbiznis/vindesk/internal/ticket/store/remote"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const pingTimeout = 5 * time.Second

var Module = fx.Module("ticket.store",
	fx.Provide(NewStore),
	fx.Provide(NewEventLog),
)

type Params struct {
	fx.In

	Cfg        config.Config
	DB         *gorm.DB
	Log        *zap.Logger
	Clock      clock.Clock
	ObsMetrics *obsmetrics.Metrics `optional:"true"`
}

// NewStore decides the ticket backend once for the process lifetime. A
// remote backend that cannot be reached at startup is replaced by the local
// one; nothing switches back later.
func NewStore(p Params) domain.Store {
	log := p.Log.Named("ticket.store")
	store := selectStore(p, log)
	p.ObsMetrics.SetTicketBackend(store.Backend())
	log.Info("ticket backend selected", zap.String("backend", store.Backend()))
	return store
}

func selectStore(p Params, log *zap.Logger) domain.Store {
	fallback := func() domain.Store { return local.New(p.DB, p.Clock) }

	if p.Cfg.Tickets.Backend != config.TicketBackendRemote {
		return fallback()
	}

	store, err := remote.New(remote.Config{
		BaseURL: p.Cfg.Tickets.RemoteURL,
		APIKey:  p.Cfg.Tickets.RemoteAPIKey,
		Table:   p.Cfg.Tickets.RemoteTable,
		Timeout: p.Cfg.Tickets.RemoteTimeout,
	}, p.Clock)
	if err != nil {
		log.Warn("remote ticket backend misconfigured, falling back to local", zap.Error(err))
		return fallback()
	}

	ctx, cancel := context.WithTimeout(context.Background(), pingTimeout)
	defer cancel()
	if err := store.Ping(ctx); err != nil {
		log.Warn("remote ticket backend unreachable, falling back to local", zap.Error(err))
		return fallback()
	}
	return store
}

func NewEventLog(db *gorm.DB) domain.EventLog {
	return local.NewEventLog(db)
}
