package webhook

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/vindesk/internal/clock"
	"github.com/smallbiznis/vindesk/internal/config"
	paymentdomain "github.com/smallbiznis/vindesk/internal/payment/domain"
	paymentservice "github.com/smallbiznis/vindesk/internal/payment/service"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const (
	SignatureHeader  = "X-Vindesk-Signature"
	defaultTolerance = 5 * time.Minute
)

type Result string

const (
	ResultCompleted        Result = "completed"
	ResultAlreadyProcessed Result = "already_processed"
	ResultIgnored          Result = "ignored"
)

// Event is the body a payment collaborator posts once money has settled.
type Event struct {
	PaymentID  string `json:"payment_id"`
	ExternalID string `json:"external_id"`
	Status     string `json:"status"`
}

type Params struct {
	fx.In

	Cfg        config.Config
	Log        *zap.Logger
	Clock      clock.Clock
	PaymentSvc *paymentservice.Service
}

type Service struct {
	secret     []byte
	tolerance  time.Duration
	clock      clock.Clock
	log        *zap.Logger
	paymentSvc *paymentservice.Service
}

func NewService(p Params) *Service {
	c := p.Clock
	if c == nil {
		c = clock.SystemClock{}
	}
	return &Service{
		secret:     []byte(strings.TrimSpace(p.Cfg.PaymentWebhookSecret)),
		tolerance:  defaultTolerance,
		clock:      c,
		log:        p.Log.Named("payment.webhook"),
		paymentSvc: p.PaymentSvc,
	}
}

// Handle verifies and applies one completion callback.
func (s *Service) Handle(ctx context.Context, payload []byte, signature string) (Result, error) {
	if err := s.Verify(payload, signature); err != nil {
		return "", err
	}

	var event Event
	if err := json.Unmarshal(payload, &event); err != nil {
		return "", paymentdomain.ErrInvalidPayload
	}
	if !strings.EqualFold(strings.TrimSpace(event.Status), string(paymentdomain.StatusCompleted)) {
		s.log.Info("ignoring payment callback", zap.String("status", event.Status), zap.String("payment_id", event.PaymentID))
		return ResultIgnored, nil
	}

	id, err := snowflake.ParseString(strings.TrimSpace(event.PaymentID))
	if err != nil || id == 0 {
		return "", paymentdomain.ErrInvalidPayload
	}

	ok, err := s.paymentSvc.CompletePayment(ctx, id, event.ExternalID)
	switch {
	case errors.Is(err, paymentdomain.ErrPaymentNotPending):
		return ResultAlreadyProcessed, nil
	case err != nil:
		return "", err
	case !ok:
		return ResultAlreadyProcessed, nil
	}
	return ResultCompleted, nil
}

// Verify checks a "t=<unix>,v1=<hex>" header against HMAC-SHA256 of "<t>.<payload>".
func (s *Service) Verify(payload []byte, header string) error {
	if len(s.secret) == 0 {
		return paymentdomain.ErrWebhookDisabled
	}
	header = strings.TrimSpace(header)
	if header == "" {
		return paymentdomain.ErrInvalidSignature
	}

	timestamp, signatures, err := parseSignature(header)
	if err != nil {
		return paymentdomain.ErrInvalidSignature
	}
	unix, err := strconv.ParseInt(timestamp, 10, 64)
	if err != nil {
		return paymentdomain.ErrInvalidSignature
	}
	if age := s.clock.Now().Sub(time.Unix(unix, 0)); age > s.tolerance || age < -s.tolerance {
		return paymentdomain.ErrStaleSignature
	}

	expected := computeSignature(s.secret, timestamp, payload)
	for _, signature := range signatures {
		if hmac.Equal([]byte(signature), []byte(expected)) {
			return nil
		}
	}
	return paymentdomain.ErrInvalidSignature
}

// Sign builds the signature header for payload at ts.
func Sign(secret string, payload []byte, ts time.Time) string {
	timestamp := strconv.FormatInt(ts.Unix(), 10)
	return fmt.Sprintf("t=%s,v1=%s", timestamp, computeSignature([]byte(secret), timestamp, payload))
}

func computeSignature(secret []byte, timestamp string, payload []byte) string {
	mac := hmac.New(sha256.New, secret)
	_, _ = mac.Write([]byte(timestamp + "." + string(payload)))
	return hex.EncodeToString(mac.Sum(nil))
}

func parseSignature(header string) (string, []string, error) {
	var timestamp string
	signatures := []string{}
	for _, part := range strings.Split(header, ",") {
		keyValue := strings.SplitN(strings.TrimSpace(part), "=", 2)
		if len(keyValue) != 2 {
			continue
		}
		key := strings.TrimSpace(keyValue[0])
		value := strings.TrimSpace(keyValue[1])
		switch key {
		case "t":
			timestamp = value
		case "v1":
			signatures = append(signatures, value)
		}
	}
	if timestamp == "" || len(signatures) == 0 {
		return "", nil, paymentdomain.ErrInvalidSignature
	}
	return timestamp, signatures, nil
}
