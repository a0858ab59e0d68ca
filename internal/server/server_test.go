package server_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/glebarez/sqlite"
	"github.com/smallbiznis/vindesk/internal/authorization"
	"github.com/smallbiznis/vindesk/internal/clock"
	"github.com/smallbiznis/vindesk/internal/config"
	"github.com/smallbiznis/vindesk/internal/dispatch"
	ledgerrepo "github.com/smallbiznis/vindesk/internal/ledger/repository"
	ledgerservice "github.com/smallbiznis/vindesk/internal/ledger/service"
	lifecycleservice "github.com/smallbiznis/vindesk/internal/lifecycle/service"
	"github.com/smallbiznis/vindesk/internal/migration"
	"github.com/smallbiznis/vindesk/internal/notify"
	"github.com/smallbiznis/vindesk/internal/observability"
	obsmetrics "github.com/smallbiznis/vindesk/internal/observability/metrics"
	paymentrepo "github.com/smallbiznis/vindesk/internal/payment/repository"
	paymentservice "github.com/smallbiznis/vindesk/internal/payment/service"
	"github.com/smallbiznis/vindesk/internal/payment/webhook"
	"github.com/smallbiznis/vindesk/internal/server"
	"github.com/smallbiznis/vindesk/internal/ticket/store/local"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	webhookSecret = "whsec_test"
	operatorID    = int64(900)
	requesterID   = int64(100)
	goodVIN       = "1HGCM82633A004352"
)

type testServer struct {
	engine *gin.Engine
	clock  *clock.FakeClock
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db := setupTestDB(t)
	fake := clock.NewFakeClock(time.Now().UTC())
	log := zap.NewNop()
	m := obsmetrics.New()
	cfg := config.Config{PaymentWebhookSecret: webhookSecret}

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	enforcer, err := authorization.NewEnforcer(db)
	require.NoError(t, err)
	authz := authorization.NewService(authorization.Params{Log: log, Enforcer: enforcer})
	require.NoError(t, authorization.GrantConfiguredOperators(config.Config{OperatorIDs: []int64{operatorID}}, authz, log))

	store := local.New(db, fake)
	ledgerSvc := ledgerservice.NewService(ledgerservice.Params{DB: db, Log: log, Clock: fake, Repo: ledgerrepo.Provide(), ObsMetrics: m})
	paymentSvc := paymentservice.NewService(paymentservice.Params{
		DB:         db,
		Log:        log,
		GenID:      node,
		Clock:      fake,
		LedgerSvc:  ledgerSvc,
		Repo:       paymentrepo.Provide(),
		ObsMetrics: m,
	})
	webhookSvc := webhook.NewService(webhook.Params{Cfg: cfg, Log: log, Clock: fake, PaymentSvc: paymentSvc})
	controller := lifecycleservice.NewService(lifecycleservice.Params{
		Store:      store,
		Events:     local.NewEventLog(db),
		Ledger:     ledgerSvc,
		Notifier:   notify.NewLogNotifier(log),
		Authorizer: authz,
		Desk:       config.NewStaticDeskConfig(config.DefaultDeskConfig()),
		Log:        log,
		Clock:      fake,
		ObsMetrics: m,
	})

	engine := server.NewEngine(observability.Config{Environment: "test"}, log, m)
	server.NewServer(server.ServerParams{
		Gin:        engine,
		DB:         db,
		Controller: controller,
		Dispatcher: dispatch.New(controller, paymentSvc, authz, 2, log, m),
		Store:      store,
		LedgerSvc:  ledgerSvc,
		PaymentSvc: paymentSvc,
		WebhookSvc: webhookSvc,
		Log:        log,
	})
	return &testServer{engine: engine, clock: fake}
}

func (s *testServer) do(t *testing.T, method, path string, body any, headers ...string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	var reader *bytes.Reader
	switch v := body.(type) {
	case nil:
		reader = bytes.NewReader(nil)
	case []byte:
		reader = bytes.NewReader(v)
	case string:
		reader = bytes.NewReader([]byte(v))
	default:
		raw, err := json.Marshal(v)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	rec := httptest.NewRecorder()
	s.engine.ServeHTTP(rec, req)

	var out map[string]any
	if strings.HasPrefix(rec.Header().Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	}
	return rec, out
}

func data(t *testing.T, body map[string]any) map[string]any {
	t.Helper()
	d, ok := body["data"].(map[string]any)
	require.True(t, ok, "missing data in %v", body)
	return d
}

func (s *testServer) buyBulk(t *testing.T) string {
	t.Helper()
	rec, body := s.do(t, http.MethodPost, "/v1/payments", map[string]any{"requester_id": requesterID, "tier": "bulk"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	payment := data(t, body)
	assert.Equal(t, "pending", payment["status"])
	assert.Equal(t, "$100.00", payment["amount_display"])
	id := payment["id"].(string)

	payload := []byte(fmt.Sprintf(`{"payment_id":%q,"external_id":"ext-1","status":"completed"}`, id))
	rec, body = s.do(t, http.MethodPost, "/webhooks/payments", payload,
		webhook.SignatureHeader, webhook.Sign(webhookSecret, payload, s.clock.Now()))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "completed", body["status"])
	return id
}

func TestHealth(t *testing.T) {
	s := newTestServer(t)

	rec, body := s.do(t, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, "local", body["ticket_backend"])
}

func TestPaymentWebhookGrantsCreditsOnce(t *testing.T) {
	s := newTestServer(t)
	id := s.buyBulk(t)

	payload := []byte(fmt.Sprintf(`{"payment_id":%q,"status":"completed"}`, id))
	rec, body := s.do(t, http.MethodPost, "/webhooks/payments", payload,
		webhook.SignatureHeader, webhook.Sign(webhookSecret, payload, s.clock.Now()))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "already_processed", body["status"])

	rec, body = s.do(t, http.MethodGet, fmt.Sprintf("/v1/requesters/%d/balance", requesterID), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	balance := data(t, body)
	assert.EqualValues(t, 100, balance["remaining"])
	assert.EqualValues(t, 100, balance["total"])

	rec, body = s.do(t, http.MethodGet, "/v1/payments/"+id, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "completed", data(t, body)["status"])
}

func TestPaymentWebhookRejectsBadSignature(t *testing.T) {
	s := newTestServer(t)

	payload := []byte(`{"payment_id":"1","status":"completed"}`)
	rec, body := s.do(t, http.MethodPost, "/webhooks/payments", payload,
		webhook.SignatureHeader, webhook.Sign("wrong", payload, s.clock.Now()))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "unauthorized", body["error"].(map[string]any)["type"])
}

func TestCreatePaymentValidation(t *testing.T) {
	s := newTestServer(t)

	rec, _ := s.do(t, http.MethodPost, "/v1/payments", map[string]any{"requester_id": requesterID, "tier": "gold"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, _ = s.do(t, http.MethodPost, "/v1/payments", `{`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, _ = s.do(t, http.MethodGet, "/v1/payments/12345", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCancelPayment(t *testing.T) {
	s := newTestServer(t)

	rec, body := s.do(t, http.MethodPost, "/v1/payments", map[string]any{"requester_id": requesterID, "tier": "single"})
	require.Equal(t, http.StatusCreated, rec.Code)
	id := data(t, body)["id"].(string)

	rec, body = s.do(t, http.MethodPost, "/v1/payments/"+id+"/cancel", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "failed", data(t, body)["status"])

	rec, _ = s.do(t, http.MethodPost, "/v1/payments/"+id+"/cancel", nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestTicketFlowOverHTTP(t *testing.T) {
	s := newTestServer(t)
	s.buyBulk(t)

	rec, body := s.do(t, http.MethodPost, "/v1/events/submission", map[string]any{
		"requester_id": requesterID,
		"display_name": "alice",
		"text":         strings.ToLower(goodVIN),
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	outcome := data(t, body)
	assert.Equal(t, "created", outcome["result"])
	ticket := outcome["ticket"].(map[string]any)
	ticketID := int64(ticket["id"].(float64))

	rec, body = s.do(t, http.MethodPost, "/v1/events/claim", map[string]any{"ticket_id": ticketID, "operator_id": 5})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "forbidden", data(t, body)["result"])

	rec, body = s.do(t, http.MethodPost, "/v1/events/claim", map[string]any{"ticket_id": ticketID, "operator_id": operatorID})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "claimed", data(t, body)["result"])

	rec, body = s.do(t, http.MethodPost, "/v1/events/fulfillment", map[string]any{
		"ticket_id":   ticketID,
		"operator_id": operatorID,
		"document": map[string]any{
			"handle":     "file-1",
			"file_name":  "report.pdf",
			"mime_type":  "application/pdf",
			"size_bytes": 4096,
		},
	})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "fulfilled", data(t, body)["result"])

	rec, body = s.do(t, http.MethodGet, fmt.Sprintf("/v1/tickets/%d", ticketID), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "DONE", data(t, body)["status"])

	rec, body = s.do(t, http.MethodGet, fmt.Sprintf("/v1/requesters/%d/status", requesterID), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	status := data(t, body)
	assert.EqualValues(t, 99, status["remaining"])
	assert.Len(t, status["tickets"], 1)
}

func TestEventErrors(t *testing.T) {
	s := newTestServer(t)

	rec, _ := s.do(t, http.MethodPost, "/v1/events/refund", `{}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec, body := s.do(t, http.MethodPost, "/v1/events/claim", `{"ticket_id":`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "validation_error", body["error"].(map[string]any)["type"])

	rec, _ = s.do(t, http.MethodPost, "/v1/events/payment", `{"payment_id":"1","actor_id":5}`)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestPaymentEventRejectedOverHTTP(t *testing.T) {
	s := newTestServer(t)

	rec, body := s.do(t, http.MethodPost, "/v1/payments", map[string]any{"requester_id": requesterID, "tier": "bulk"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	id := data(t, body)["id"].(string)

	rec, body = s.do(t, http.MethodPost, "/v1/events/payment", map[string]any{"payment_id": id, "actor_id": requesterID})
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "forbidden", body["error"].(map[string]any)["type"])

	rec, body = s.do(t, http.MethodGet, "/v1/payments/"+id, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "pending", data(t, body)["status"])

	rec, body = s.do(t, http.MethodGet, fmt.Sprintf("/v1/requesters/%d/balance", requesterID), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.EqualValues(t, 0, data(t, body)["remaining"])
}

func TestTicketLookups(t *testing.T) {
	s := newTestServer(t)

	rec, _ := s.do(t, http.MethodGet, "/v1/tickets/77", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec, _ = s.do(t, http.MethodGet, "/v1/tickets/abc", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, body := s.do(t, http.MethodGet, fmt.Sprintf("/v1/requesters/%d/tickets?limit=500", requesterID), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, body["data"])

	rec, _ = s.do(t, http.MethodGet, "/nowhere", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestTiersAndMetrics(t *testing.T) {
	s := newTestServer(t)

	rec, body := s.do(t, http.MethodGet, "/v1/tiers", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, body["data"], 2)

	rec, _ = s.do(t, http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "vindesk_http_requests_total")
}

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:server_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, migration.Run(db))
	return db
}
