package service_test

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/smallbiznis/vindesk/internal/clock"
	ledgerdomain "github.com/smallbiznis/vindesk/internal/ledger/domain"
	ledgerrepo "github.com/smallbiznis/vindesk/internal/ledger/repository"
	ledgerservice "github.com/smallbiznis/vindesk/internal/ledger/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var paymentSource = ledgerdomain.Source{Type: ledgerdomain.SourceTypePayment, Ref: "p-1"}

func TestGrantCreatesThenIncrements(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)

	balance, err := svc.GetBalance(ctx, 7)
	require.NoError(t, err)
	assert.Nil(t, balance)

	balance, err = svc.Grant(ctx, 7, 1, paymentSource)
	require.NoError(t, err)
	assert.Equal(t, 1, balance.Remaining)
	assert.Equal(t, 1, balance.Total)

	balance, err = svc.Grant(ctx, 7, 100, paymentSource)
	require.NoError(t, err)
	assert.Equal(t, 101, balance.Remaining)
	assert.Equal(t, 101, balance.Total)
}

func TestGrantRejectsNonPositiveCount(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := svc.Grant(context.Background(), 7, 0, paymentSource)
	assert.ErrorIs(t, err, ledgerdomain.ErrInvalidCount)

	_, err = svc.Grant(context.Background(), 7, -3, paymentSource)
	assert.ErrorIs(t, err, ledgerdomain.ErrInvalidCount)
}

func TestConsumeWithoutBalance(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)

	ok, err := svc.CanConsume(ctx, 9)
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = svc.Consume(ctx, 9, ledgerdomain.Source{Type: ledgerdomain.SourceTypeSubmission})
	require.NoError(t, err)
	assert.False(t, ok)

	balance, err := svc.GetBalance(ctx, 9)
	require.NoError(t, err)
	assert.Nil(t, balance)
}

func TestConsumeStopsAtZero(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)

	_, err := svc.Grant(ctx, 3, 1, paymentSource)
	require.NoError(t, err)

	ok, err := svc.Consume(ctx, 3, ledgerdomain.Source{Type: ledgerdomain.SourceTypeSubmission, Ref: "1"})
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = svc.Consume(ctx, 3, ledgerdomain.Source{Type: ledgerdomain.SourceTypeSubmission, Ref: "2"})
	require.NoError(t, err)
	assert.False(t, ok)

	balance, err := svc.GetBalance(ctx, 3)
	require.NoError(t, err)
	assert.Equal(t, 0, balance.Remaining)
	assert.Equal(t, 1, balance.Total)

	can, err := svc.CanConsume(ctx, 3)
	require.NoError(t, err)
	assert.False(t, can)
}

func TestConcurrentConsumeSpendsLastCreditOnce(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)

	_, err := svc.Grant(ctx, 11, 1, paymentSource)
	require.NoError(t, err)

	var wins atomic.Int32
	var wg sync.WaitGroup
	start := make(chan struct{})
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			ok, err := svc.Consume(ctx, 11, ledgerdomain.Source{Type: ledgerdomain.SourceTypeSubmission, Ref: fmt.Sprint(i)})
			assert.NoError(t, err)
			if ok {
				wins.Add(1)
			}
		}(i)
	}
	close(start)
	wg.Wait()

	assert.Equal(t, int32(1), wins.Load())
	balance, err := svc.GetBalance(ctx, 11)
	require.NoError(t, err)
	assert.Equal(t, 0, balance.Remaining)
}

func TestConcurrentGrantsAllLand(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)

	sizes := []int{1, 100, 1, 5, 100, 1, 7, 13}
	sum := 0
	var wg sync.WaitGroup
	for _, n := range sizes {
		sum += n
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			_, err := svc.Grant(ctx, 21, n, paymentSource)
			assert.NoError(t, err)
		}(n)
	}
	wg.Wait()

	balance, err := svc.GetBalance(ctx, 21)
	require.NoError(t, err)
	assert.Equal(t, sum, balance.Remaining)
	assert.Equal(t, sum, balance.Total)
}

func TestEntriesRecordEveryChange(t *testing.T) {
	ctx := context.Background()
	svc, fake := newTestService(t)

	_, err := svc.Grant(ctx, 5, 2, paymentSource)
	require.NoError(t, err)
	fake.Advance(time.Minute)
	_, err = svc.Consume(ctx, 5, ledgerdomain.Source{Type: ledgerdomain.SourceTypeSubmission, Ref: "42"})
	require.NoError(t, err)

	entries, err := svc.ListEntries(ctx, 5, 0)
	require.NoError(t, err)
	require.Len(t, entries, 2)

	assert.Equal(t, ledgerdomain.EntryDirectionDebit, entries[0].Direction)
	assert.Equal(t, 1, entries[0].BalanceAfter)
	assert.Equal(t, "42", entries[0].SourceRef)
	assert.Equal(t, ledgerdomain.EntryDirectionCredit, entries[1].Direction)
	assert.Equal(t, 2, entries[1].Amount)
}

func newTestService(t *testing.T) (ledgerdomain.Service, *clock.FakeClock) {
	t.Helper()
	db := setupTestDB(t)
	fake := clock.NewFakeClock(time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC))
	svc := ledgerservice.NewService(ledgerservice.Params{
		DB:    db,
		Log:   zap.NewNop(),
		Clock: fake,
		Repo:  ledgerrepo.Provide(),
	})
	return svc, fake
}

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:ledger_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, db.AutoMigrate(&ledgerdomain.Balance{}, &ledgerdomain.Entry{}))
	return db
}

func TestRefundNeverExceedsTotal(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)

	_, err := svc.Grant(ctx, 31, 2, paymentSource)
	require.NoError(t, err)

	ok, err := svc.Refund(ctx, 31, ledgerdomain.Source{Type: ledgerdomain.SourceTypeRefund})
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = svc.Consume(ctx, 31, ledgerdomain.Source{Type: ledgerdomain.SourceTypeSubmission})
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = svc.Refund(ctx, 31, ledgerdomain.Source{Type: ledgerdomain.SourceTypeRefund, Ref: "1HGCM82633A004352"})
	require.NoError(t, err)
	assert.True(t, ok)

	balance, err := svc.GetBalance(ctx, 31)
	require.NoError(t, err)
	assert.Equal(t, 2, balance.Remaining)
	assert.Equal(t, 2, balance.Total)

	entries, err := svc.ListEntries(ctx, 31, 0)
	require.NoError(t, err)
	refunds := 0
	for _, entry := range entries {
		if entry.SourceType != ledgerdomain.SourceTypeRefund {
			continue
		}
		refunds++
		assert.Equal(t, ledgerdomain.EntryDirectionCredit, entry.Direction)
		assert.Equal(t, "1HGCM82633A004352", entry.SourceRef)
		assert.Equal(t, 2, entry.BalanceAfter)
	}
	assert.Equal(t, 1, refunds)
}
