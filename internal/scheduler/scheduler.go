package scheduler

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/vindesk/internal/clock"
	obsmetrics "github.com/smallbiznis/vindesk/internal/observability/metrics"
	ticketdomain "github.com/smallbiznis/vindesk/internal/ticket/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var ErrInvalidConfig = errors.New("invalid_scheduler_config")

const (
	JobExpirePayments    = "expire_payments"
	JobTicketBackendPing = "ticket_backend_ping"
)

// PaymentExpirer fails pending payments nobody settled in time.
type PaymentExpirer interface {
	ExpirePending(ctx context.Context, ttl time.Duration, limit int) (int, error)
}

type Params struct {
	fx.In

	Log        *zap.Logger
	GenID      *snowflake.Node
	Clock      clock.Clock
	Payments   PaymentExpirer
	Store      ticketdomain.Store
	ObsMetrics *obsmetrics.Metrics `optional:"true"`
	Config     Config              `optional:"true"`
}

type Scheduler struct {
	log      *zap.Logger
	cfg      Config
	genID    *snowflake.Node
	clock    clock.Clock
	payments PaymentExpirer
	store    ticketdomain.Store
	metrics  *obsmetrics.Metrics
}

func New(p Params) (*Scheduler, error) {
	if p.Log == nil || p.GenID == nil || p.Clock == nil || p.Payments == nil || p.Store == nil {
		return nil, ErrInvalidConfig
	}
	return &Scheduler{
		log:      p.Log.Named("scheduler").With(zap.String("component", "scheduler")),
		cfg:      p.Config.withDefaults(),
		genID:    p.GenID,
		clock:    p.Clock,
		payments: p.Payments,
		store:    p.Store,
		metrics:  p.ObsMetrics,
	}, nil
}

func (s *Scheduler) runJob(
	parent context.Context,
	name string,
	timeout time.Duration,
	fn func(ctx context.Context, run *jobRun) error,
) error {
	start := s.clock.Now()
	ctx, cancel := context.WithTimeout(parent, timeout)
	defer cancel()

	ctx, run := s.startJobRun(ctx, name)
	s.logJobStart(ctx, run)

	err := fn(ctx, run)
	if err != nil {
		run.IncError()
	}
	s.logJobFinish(ctx, run)

	// deadline is a soft timeout; the next tick picks up the rest
	isTimeout := errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled)
	s.metrics.ObserveJob(name, err, isTimeout, s.clock.Now().Sub(start))
	if err == nil {
		return nil
	}
	if isTimeout {
		s.logger(ctx).Warn("job timed out",
			zap.String("job", name),
			zap.Duration("timeout", timeout),
			zap.Error(err),
		)
		return nil
	}
	return fmt.Errorf("%s: %w", name, err)
}

// RunOnce runs every enabled job one time and joins their errors.
func (s *Scheduler) RunOnce(parent context.Context) error {
	jobs := []struct {
		Name string
		Run  func(context.Context, *jobRun) error
	}{
		{JobExpirePayments, s.ExpirePaymentsJob},
		{JobTicketBackendPing, s.TicketBackendPingJob},
	}

	var err error
	for _, job := range jobs {
		if !s.isJobEnabled(job.Name) {
			continue
		}
		err = errors.Join(err, s.runJob(parent, job.Name, s.cfg.JobTimeout, job.Run))
	}
	return err
}

func (s *Scheduler) RunForever(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.RunInterval)
	defer ticker.Stop()

	for {
		if err := s.RunOnce(ctx); err != nil {
			s.log.Warn("scheduler run failed", zap.Error(err))
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (s *Scheduler) isJobEnabled(jobName string) bool {
	// an empty list enables everything
	if len(s.cfg.EnabledJobs) == 0 {
		return true
	}
	for _, enabled := range s.cfg.EnabledJobs {
		if strings.EqualFold(strings.TrimSpace(enabled), jobName) {
			return true
		}
	}
	return false
}

// ExpirePaymentsJob fails stale pending payments batch by batch until a
// batch comes back short.
func (s *Scheduler) ExpirePaymentsJob(ctx context.Context, run *jobRun) error {
	if s.cfg.PaymentTTL <= 0 {
		return nil
	}
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		expired, err := s.payments.ExpirePending(ctx, s.cfg.PaymentTTL, s.cfg.BatchSize)
		run.AddProcessed(expired)
		if err != nil {
			return err
		}
		if expired < s.cfg.BatchSize {
			return nil
		}
	}
}

// TicketBackendPingJob surfaces an unreachable ticket backend in logs and
// metrics between requests.
func (s *Scheduler) TicketBackendPingJob(ctx context.Context, run *jobRun) error {
	if err := s.store.Ping(ctx); err != nil {
		return fmt.Errorf("ping %s: %w", s.store.Backend(), err)
	}
	run.AddProcessed(1)
	return nil
}
