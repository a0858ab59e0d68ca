package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/smallbiznis/vindesk/internal/config"
	"github.com/smallbiznis/vindesk/internal/dispatch"
	ledgerdomain "github.com/smallbiznis/vindesk/internal/ledger/domain"
	lifecycleservice "github.com/smallbiznis/vindesk/internal/lifecycle/service"
	"github.com/smallbiznis/vindesk/internal/observability"
	obslogger "github.com/smallbiznis/vindesk/internal/observability/logger"
	obsmetrics "github.com/smallbiznis/vindesk/internal/observability/metrics"
	obstracing "github.com/smallbiznis/vindesk/internal/observability/tracing"
	paymentservice "github.com/smallbiznis/vindesk/internal/payment/service"
	"github.com/smallbiznis/vindesk/internal/payment/webhook"
	ticketdomain "github.com/smallbiznis/vindesk/internal/ticket/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var Module = fx.Module("http.server",
	fx.Provide(NewEngine),
	fx.Invoke(NewServer),
	fx.Invoke(run),
)

func NewEngine(obsCfg observability.Config, log *zap.Logger, m *obsmetrics.Metrics) *gin.Engine {
	if !obsCfg.Debug() {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(obslogger.GinMiddleware(log))
	r.Use(obstracing.GinMiddleware())
	r.Use(m.GinMiddleware())
	r.Use(ErrorHandlingMiddleware())

	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(m.Registry(), promhttp.HandlerOpts{})))
	return r
}

func run(lc fx.Lifecycle, cfg config.Config, r *gin.Engine, log *zap.Logger) {
	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					log.Fatal("http server stopped", zap.Error(err))
				}
			}()
			log.Info("http server listening", zap.String("addr", cfg.HTTPAddr))
			return nil
		},
		OnStop: func(ctx context.Context) error {
			shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	})
}

type Server struct {
	engine     *gin.Engine
	db         *gorm.DB
	controller *lifecycleservice.Service
	dispatcher *dispatch.Dispatcher
	store      ticketdomain.Store
	ledgerSvc  ledgerdomain.Service
	paymentSvc *paymentservice.Service
	webhookSvc *webhook.Service
	log        *zap.Logger
}

type ServerParams struct {
	fx.In

	Gin        *gin.Engine
	DB         *gorm.DB
	Controller *lifecycleservice.Service
	Dispatcher *dispatch.Dispatcher
	Store      ticketdomain.Store
	LedgerSvc  ledgerdomain.Service
	PaymentSvc *paymentservice.Service
	WebhookSvc *webhook.Service
	Log        *zap.Logger
}

func NewServer(p ServerParams) *Server {
	svc := &Server{
		engine:     p.Gin,
		db:         p.DB,
		controller: p.Controller,
		dispatcher: p.Dispatcher,
		store:      p.Store,
		ledgerSvc:  p.LedgerSvc,
		paymentSvc: p.PaymentSvc,
		webhookSvc: p.WebhookSvc,
		log:        p.Log.Named("http.server"),
	}

	svc.engine.GET("/health", svc.Health)
	svc.registerAPIRoutes()
	svc.registerWebhookRoutes()
	svc.registerFallback()

	return svc
}

func (s *Server) Engine() *gin.Engine {
	return s.engine
}

func (s *Server) registerAPIRoutes() {
	api := s.engine.Group("/v1")

	// -------- Events --------
	api.POST("/events/:kind", s.PostEvent)

	// -------- Tickets --------
	api.GET("/tickets/:id", s.GetTicket)
	api.GET("/requesters/:id/tickets", s.ListRequesterTickets)
	api.GET("/requesters/:id/balance", s.GetRequesterBalance)
	api.GET("/requesters/:id/status", s.GetRequesterStatus)

	// -------- Payments --------
	api.GET("/tiers", s.ListTiers)
	api.POST("/payments", s.CreatePayment)
	api.GET("/payments/:id", s.GetPayment)
	api.POST("/payments/:id/cancel", s.CancelPayment)
	api.GET("/requesters/:id/payments", s.ListRequesterPayments)
}

func (s *Server) registerWebhookRoutes() {
	s.engine.POST("/webhooks/payments", s.HandlePaymentWebhook)
}

func (s *Server) registerFallback() {
	s.engine.NoRoute(func(c *gin.Context) {
		AbortWithError(c, ErrNotFound)
	})
}

// Health reports ok when the database and the ticket backend answer.
func (s *Server) Health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	status := http.StatusOK
	checks := gin.H{"database": "ok", "tickets": "ok"}

	if sqlDB, err := s.db.DB(); err != nil || sqlDB.PingContext(ctx) != nil {
		status = http.StatusServiceUnavailable
		checks["database"] = "unavailable"
	}
	if err := s.store.Ping(ctx); err != nil {
		status = http.StatusServiceUnavailable
		checks["tickets"] = "unavailable"
	}

	state := "ok"
	if status != http.StatusOK {
		state = "degraded"
	}
	c.JSON(status, gin.H{
		"status":         state,
		"ticket_backend": s.store.Backend(),
		"checks":         checks,
	})
}
