package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/vindesk/internal/clock"
	ledgerdomain "github.com/smallbiznis/vindesk/internal/ledger/domain"
	obsmetrics "github.com/smallbiznis/vindesk/internal/observability/metrics"
	paymentdomain "github.com/smallbiznis/vindesk/internal/payment/domain"
	"github.com/smallbiznis/vindesk/pkg/db"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const defaultListLimit = 20

type Params struct {
	fx.In

	DB         *gorm.DB
	Log        *zap.Logger
	GenID      *snowflake.Node
	Clock      clock.Clock
	LedgerSvc  ledgerdomain.Service
	Repo       paymentdomain.Repository
	ObsMetrics *obsmetrics.Metrics `optional:"true"`
}

type Service struct {
	db         *gorm.DB
	log        *zap.Logger
	genID      *snowflake.Node
	clock      clock.Clock
	ledgerSvc  ledgerdomain.Service
	repo       paymentdomain.Repository
	obsMetrics *obsmetrics.Metrics
}

func NewService(p Params) *Service {
	c := p.Clock
	if c == nil {
		c = clock.SystemClock{}
	}
	return &Service{
		db:         p.DB,
		log:        p.Log.Named("payment.service"),
		genID:      p.GenID,
		clock:      c,
		ledgerSvc:  p.LedgerSvc,
		repo:       p.Repo,
		obsMetrics: p.ObsMetrics,
	}
}

// CreatePayment opens a pending purchase of tier for requesterID.
func (s *Service) CreatePayment(ctx context.Context, requesterID int64, tier paymentdomain.Tier, provider string) (*paymentdomain.Payment, error) {
	if requesterID == 0 {
		return nil, paymentdomain.ErrInvalidRequester
	}
	spec, ok := paymentdomain.LookupTier(tier)
	if !ok {
		return nil, paymentdomain.ErrUnknownTier
	}
	provider = strings.ToLower(strings.TrimSpace(provider))
	if provider == "" {
		provider = paymentdomain.ProviderManual
	}

	payment := &paymentdomain.Payment{
		ID:          s.genID.Generate(),
		RequesterID: requesterID,
		Amount:      spec.AmountMinor,
		Currency:    spec.Currency,
		Tier:        spec.Tier,
		Status:      paymentdomain.StatusPending,
		Provider:    provider,
		CreatedAt:   s.clock.Now(),
	}
	if err := s.repo.Insert(ctx, s.db, payment); err != nil {
		if db.IsDuplicateKeyErr(err) {
			// two processes sharing a snowflake node id
			return nil, paymentdomain.ErrDuplicatePayment
		}
		return nil, fmt.Errorf("create payment: %w", err)
	}

	s.obsMetrics.RecordPayment(string(paymentdomain.StatusPending), string(spec.Tier))
	s.log.Info("payment created",
		zap.String("payment_id", payment.ID.String()),
		zap.Int64("requester_id", requesterID),
		zap.String("tier", string(spec.Tier)),
		zap.Int64("amount", spec.AmountMinor),
	)
	return payment, nil
}

// CompletePayment flips a pending payment to completed and grants the tier's
// credits in the same transaction. It reports false when the payment is
// missing or was already settled; a failed grant leaves it pending.
func (s *Service) CompletePayment(ctx context.Context, id snowflake.ID, externalID string) (bool, error) {
	var granted *ledgerdomain.Balance
	var payment *paymentdomain.Payment

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		payment, err = s.repo.FindByID(ctx, tx, id)
		if err != nil {
			return err
		}
		if payment == nil {
			return paymentdomain.ErrPaymentNotFound
		}
		spec, ok := paymentdomain.LookupTier(payment.Tier)
		if !ok {
			return paymentdomain.ErrUnknownTier
		}

		now := s.clock.Now()
		var extRef *string
		if trimmed := strings.TrimSpace(externalID); trimmed != "" {
			extRef = &trimmed
		}
		flipped, err := s.repo.Transition(ctx, tx, id, paymentdomain.StatusPending, paymentdomain.StatusCompleted, extRef, &now)
		if err != nil {
			return err
		}
		if !flipped {
			return paymentdomain.ErrPaymentNotPending
		}

		granted, err = s.ledgerSvc.GrantTx(ctx, tx, payment.RequesterID, spec.Reports, ledgerdomain.Source{
			Type: ledgerdomain.SourceTypePayment,
			Ref:  id.String(),
		})
		if err != nil {
			return fmt.Errorf("grant for payment %s: %w", id, err)
		}
		return nil
	})
	if err != nil {
		switch {
		case errors.Is(err, paymentdomain.ErrPaymentNotFound), errors.Is(err, paymentdomain.ErrPaymentNotPending):
			s.log.Warn("payment not completed",
				zap.String("payment_id", id.String()),
				zap.Error(err),
			)
		default:
			s.log.Error("payment completion rolled back",
				zap.String("payment_id", id.String()),
				zap.Error(err),
			)
		}
		return false, err
	}

	s.obsMetrics.RecordPayment(string(paymentdomain.StatusCompleted), string(payment.Tier))
	s.log.Info("payment completed",
		zap.String("payment_id", id.String()),
		zap.Int64("requester_id", payment.RequesterID),
		zap.Int("remaining", granted.Remaining),
		zap.Int("total", granted.Total),
	)
	return true, nil
}

// CancelPayment abandons a pending payment.
func (s *Service) CancelPayment(ctx context.Context, id snowflake.ID) (bool, error) {
	payment, err := s.repo.FindByID(ctx, s.db, id)
	if err != nil {
		return false, err
	}
	if payment == nil {
		return false, paymentdomain.ErrPaymentNotFound
	}
	flipped, err := s.repo.Transition(ctx, s.db, id, paymentdomain.StatusPending, paymentdomain.StatusFailed, nil, nil)
	if err != nil {
		return false, err
	}
	if !flipped {
		return false, paymentdomain.ErrPaymentNotPending
	}
	s.obsMetrics.RecordPayment(string(paymentdomain.StatusFailed), string(payment.Tier))
	s.log.Info("payment cancelled", zap.String("payment_id", id.String()))
	return true, nil
}

// ExpirePending fails up to limit pending payments older than ttl and
// returns how many it flipped. Rows settled concurrently are skipped.
func (s *Service) ExpirePending(ctx context.Context, ttl time.Duration, limit int) (int, error) {
	if ttl <= 0 {
		return 0, nil
	}
	if limit <= 0 {
		limit = defaultListLimit
	}
	cutoff := s.clock.Now().Add(-ttl)
	stale, err := s.repo.ListPendingBefore(ctx, s.db, cutoff, limit)
	if err != nil {
		return 0, err
	}

	expired := 0
	for _, payment := range stale {
		if err := ctx.Err(); err != nil {
			return expired, err
		}
		flipped, err := s.repo.Transition(ctx, s.db, payment.ID, paymentdomain.StatusPending, paymentdomain.StatusFailed, nil, nil)
		if err != nil {
			return expired, fmt.Errorf("expire payment %s: %w", payment.ID, err)
		}
		if !flipped {
			continue
		}
		expired++
		s.obsMetrics.RecordPayment(string(paymentdomain.StatusFailed), string(payment.Tier))
		s.log.Info("payment expired",
			zap.String("payment_id", payment.ID.String()),
			zap.Int64("requester_id", payment.RequesterID),
			zap.Time("created_at", payment.CreatedAt),
		)
	}
	return expired, nil
}

func (s *Service) GetPayment(ctx context.Context, id snowflake.ID) (*paymentdomain.Payment, error) {
	payment, err := s.repo.FindByID(ctx, s.db, id)
	if err != nil {
		return nil, err
	}
	if payment == nil {
		return nil, paymentdomain.ErrPaymentNotFound
	}
	return payment, nil
}

func (s *Service) ListPayments(ctx context.Context, requesterID int64, limit int) ([]paymentdomain.Payment, error) {
	if requesterID == 0 {
		return nil, paymentdomain.ErrInvalidRequester
	}
	if limit <= 0 || limit > 100 {
		limit = defaultListLimit
	}
	return s.repo.ListByRequester(ctx, s.db, requesterID, limit)
}
