package service

import (
	"context"
	"fmt"
	"time"

	"github.com/smallbiznis/vindesk/internal/clock"
	ledgerdomain "github.com/smallbiznis/vindesk/internal/ledger/domain"
	obsmetrics "github.com/smallbiznis/vindesk/internal/observability/metrics"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const defaultEntryLimit = 50

type Params struct {
	fx.In

	DB         *gorm.DB
	Log        *zap.Logger
	Clock      clock.Clock
	Repo       ledgerdomain.Repository
	ObsMetrics *obsmetrics.Metrics `optional:"true"`
}

type Service struct {
	db         *gorm.DB
	log        *zap.Logger
	clock      clock.Clock
	repo       ledgerdomain.Repository
	obsMetrics *obsmetrics.Metrics
}

func NewService(p Params) ledgerdomain.Service {
	c := p.Clock
	if c == nil {
		c = clock.SystemClock{}
	}
	return &Service{
		db:         p.DB,
		log:        p.Log.Named("ledger.service"),
		clock:      c,
		repo:       p.Repo,
		obsMetrics: p.ObsMetrics,
	}
}

func (s *Service) GetBalance(ctx context.Context, requesterID int64) (*ledgerdomain.Balance, error) {
	if requesterID == 0 {
		return nil, ledgerdomain.ErrInvalidRequester
	}
	return s.repo.FindBalance(ctx, s.db, requesterID)
}

func (s *Service) Grant(ctx context.Context, requesterID int64, count int, source ledgerdomain.Source) (*ledgerdomain.Balance, error) {
	var balance *ledgerdomain.Balance
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		balance, err = s.GrantTx(ctx, tx, requesterID, count, source)
		return err
	})
	if err != nil {
		return nil, err
	}
	return balance, nil
}

func (s *Service) GrantTx(ctx context.Context, tx *gorm.DB, requesterID int64, count int, source ledgerdomain.Source) (*ledgerdomain.Balance, error) {
	if requesterID == 0 {
		return nil, ledgerdomain.ErrInvalidRequester
	}
	if count <= 0 {
		return nil, ledgerdomain.ErrInvalidCount
	}

	now := s.clock.Now()
	if err := s.repo.UpsertGrant(ctx, tx, requesterID, count, now); err != nil {
		return nil, fmt.Errorf("grant credits: %w", err)
	}

	balance, err := s.repo.FindBalance(ctx, tx, requesterID)
	if err != nil {
		return nil, err
	}
	if balance == nil {
		return nil, ledgerdomain.ErrBalanceMissing
	}

	if err := s.repo.InsertEntry(ctx, tx, &ledgerdomain.Entry{
		RequesterID:  requesterID,
		Direction:    ledgerdomain.EntryDirectionCredit,
		Amount:       count,
		BalanceAfter: balance.Remaining,
		SourceType:   source.Type,
		SourceRef:    source.Ref,
		CreatedAt:    now,
	}); err != nil {
		return nil, fmt.Errorf("append balance entry: %w", err)
	}

	s.obsMetrics.RecordCreditsGranted(count)
	s.log.Info("credits granted",
		zap.Int64("requester_id", requesterID),
		zap.Int("count", count),
		zap.Int("remaining", balance.Remaining),
		zap.Int("total", balance.Total),
		zap.String("source_type", string(source.Type)),
		zap.String("source_ref", source.Ref),
	)
	return balance, nil
}

func (s *Service) CanConsume(ctx context.Context, requesterID int64) (bool, error) {
	balance, err := s.GetBalance(ctx, requesterID)
	if err != nil {
		return false, err
	}
	return balance != nil && balance.Remaining > 0, nil
}

func (s *Service) Consume(ctx context.Context, requesterID int64, source ledgerdomain.Source) (bool, error) {
	ok, err := s.applyUnit(ctx, requesterID, ledgerdomain.EntryDirectionDebit, source, s.repo.DecrementRemaining)
	if err != nil {
		return false, fmt.Errorf("consume credit: %w", err)
	}
	if ok {
		s.obsMetrics.RecordCreditConsumed()
	}
	return ok, nil
}

func (s *Service) Refund(ctx context.Context, requesterID int64, source ledgerdomain.Source) (bool, error) {
	ok, err := s.applyUnit(ctx, requesterID, ledgerdomain.EntryDirectionCredit, source, s.repo.IncrementRemaining)
	if err != nil {
		return false, fmt.Errorf("refund credit: %w", err)
	}
	if ok {
		s.log.Info("credit refunded",
			zap.Int64("requester_id", requesterID),
			zap.String("source_ref", source.Ref),
		)
	}
	return ok, nil
}

type unitMutation func(ctx context.Context, db *gorm.DB, requesterID int64, now time.Time) (bool, error)

// applyUnit runs a guarded one-credit change and its audit entry in one
// transaction. It reports false when the guard did not match.
func (s *Service) applyUnit(ctx context.Context, requesterID int64, direction ledgerdomain.EntryDirection, source ledgerdomain.Source, mutate unitMutation) (bool, error) {
	if requesterID == 0 {
		return false, ledgerdomain.ErrInvalidRequester
	}

	applied := false
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		now := s.clock.Now()
		ok, err := mutate(ctx, tx, requesterID, now)
		if err != nil {
			return err
		}
		if !ok {
			return nil
		}

		balance, err := s.repo.FindBalance(ctx, tx, requesterID)
		if err != nil {
			return err
		}
		if balance == nil {
			return ledgerdomain.ErrBalanceMissing
		}
		if err := s.repo.InsertEntry(ctx, tx, &ledgerdomain.Entry{
			RequesterID:  requesterID,
			Direction:    direction,
			Amount:       1,
			BalanceAfter: balance.Remaining,
			SourceType:   source.Type,
			SourceRef:    source.Ref,
			CreatedAt:    now,
		}); err != nil {
			return fmt.Errorf("append balance entry: %w", err)
		}
		applied = true
		return nil
	})
	if err != nil {
		return false, err
	}
	return applied, nil
}

func (s *Service) ListEntries(ctx context.Context, requesterID int64, limit int) ([]ledgerdomain.Entry, error) {
	if requesterID == 0 {
		return nil, ledgerdomain.ErrInvalidRequester
	}
	if limit <= 0 || limit > 500 {
		limit = defaultEntryLimit
	}
	return s.repo.ListEntries(ctx, s.db, requesterID, limit)
}
