package webhook_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/smallbiznis/vindesk/internal/clock"
	"github.com/smallbiznis/vindesk/internal/config"
	ledgerdomain "github.com/smallbiznis/vindesk/internal/ledger/domain"
	ledgerrepo "github.com/smallbiznis/vindesk/internal/ledger/repository"
	ledgerservice "github.com/smallbiznis/vindesk/internal/ledger/service"
	paymentdomain "github.com/smallbiznis/vindesk/internal/payment/domain"
	paymentrepo "github.com/smallbiznis/vindesk/internal/payment/repository"
	paymentservice "github.com/smallbiznis/vindesk/internal/payment/service"
	"github.com/smallbiznis/vindesk/internal/payment/webhook"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const secret = "whsec_test"

func TestHandleCompletesOnceThenReportsProcessed(t *testing.T) {
	ctx := context.Background()
	hook, paymentSvc, ledgerSvc, now := newWebhook(t, secret)

	payment, err := paymentSvc.CreatePayment(ctx, 77, paymentdomain.TierSingle, "")
	require.NoError(t, err)

	body := []byte(fmt.Sprintf(`{"payment_id":"%s","external_id":"ch_1","status":"completed"}`, payment.ID))
	sig := webhook.Sign(secret, body, now)

	result, err := hook.Handle(ctx, body, sig)
	require.NoError(t, err)
	assert.Equal(t, webhook.ResultCompleted, result)

	result, err = hook.Handle(ctx, body, sig)
	require.NoError(t, err)
	assert.Equal(t, webhook.ResultAlreadyProcessed, result)

	balance, err := ledgerSvc.GetBalance(ctx, 77)
	require.NoError(t, err)
	assert.Equal(t, 1, balance.Total)
}

func TestHandleIgnoresOtherStatuses(t *testing.T) {
	hook, _, _, now := newWebhook(t, secret)
	body := []byte(`{"payment_id":"1","status":"failed"}`)

	result, err := hook.Handle(context.Background(), body, webhook.Sign(secret, body, now))
	require.NoError(t, err)
	assert.Equal(t, webhook.ResultIgnored, result)
}

func TestVerifyRejectsBadSignatures(t *testing.T) {
	hook, _, _, now := newWebhook(t, secret)
	body := []byte(`{"payment_id":"1","status":"completed"}`)

	cases := []struct {
		name   string
		header string
		want   error
	}{
		{name: "missing", header: "", want: paymentdomain.ErrInvalidSignature},
		{name: "garbage", header: "nonsense", want: paymentdomain.ErrInvalidSignature},
		{name: "wrong_secret", header: webhook.Sign("other", body, now), want: paymentdomain.ErrInvalidSignature},
		{name: "stale", header: webhook.Sign(secret, body, now.Add(-time.Hour)), want: paymentdomain.ErrStaleSignature},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.ErrorIs(t, hook.Verify(body, tc.header), tc.want)
		})
	}

	assert.NoError(t, hook.Verify(body, webhook.Sign(secret, body, now)))
}

func TestVerifyWithoutSecretIsDisabled(t *testing.T) {
	hook, _, _, now := newWebhook(t, "")
	body := []byte(`{}`)
	assert.ErrorIs(t, hook.Verify(body, webhook.Sign("x", body, now)), paymentdomain.ErrWebhookDisabled)
}

func TestHandleRejectsMalformedPaymentID(t *testing.T) {
	hook, _, _, now := newWebhook(t, secret)
	body := []byte(`{"payment_id":"abc","status":"completed"}`)

	_, err := hook.Handle(context.Background(), body, webhook.Sign(secret, body, now))
	assert.ErrorIs(t, err, paymentdomain.ErrInvalidPayload)
}

func newWebhook(t *testing.T, secret string) (*webhook.Service, *paymentservice.Service, ledgerdomain.Service, time.Time) {
	t.Helper()
	db := setupTestDB(t)
	node, err := snowflake.NewNode(3)
	require.NoError(t, err)

	now := time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)
	fake := clock.NewFakeClock(now)
	ledgerSvc := ledgerservice.NewService(ledgerservice.Params{
		DB: db, Log: zap.NewNop(), Clock: fake, Repo: ledgerrepo.Provide(),
	})
	paymentSvc := paymentservice.NewService(paymentservice.Params{
		DB: db, Log: zap.NewNop(), GenID: node, Clock: fake, LedgerSvc: ledgerSvc, Repo: paymentrepo.Provide(),
	})
	hook := webhook.NewService(webhook.Params{
		Cfg:        config.Config{PaymentWebhookSecret: secret},
		Log:        zap.NewNop(),
		Clock:      fake,
		PaymentSvc: paymentSvc,
	})
	return hook, paymentSvc, ledgerSvc, now
}

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:webhook_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, db.AutoMigrate(&paymentdomain.Payment{}, &ledgerdomain.Balance{}, &ledgerdomain.Entry{}))
	return db
}
