// Package dispatch turns inbound bus messages into lifecycle calls.
package dispatch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	lifecycledomain "github.com/smallbiznis/vindesk/internal/lifecycle/domain"
	obscontext "github.com/smallbiznis/vindesk/internal/observability/context"
	"github.com/smallbiznis/vindesk/internal/observability/logger"
	obsmetrics "github.com/smallbiznis/vindesk/internal/observability/metrics"
	paymentdomain "github.com/smallbiznis/vindesk/internal/payment/domain"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const requestIDHeader = "X-Request-Id"

// Dispatcher runs one task per inbound event on a bounded worker group.
// Handler errors are logged and never stop the subscription.
type Dispatcher struct {
	controller Controller
	payments   PaymentCompleter
	authorizer lifecycledomain.Authorizer
	log        *zap.Logger
	obsMetrics *obsmetrics.Metrics

	baseCtx context.Context
	cancel  context.CancelFunc
	group   *errgroup.Group
}

func New(controller Controller, payments PaymentCompleter, authorizer lifecycledomain.Authorizer, workers int, log *zap.Logger, m *obsmetrics.Metrics) *Dispatcher {
	if workers < 1 {
		workers = 1
	}
	group := &errgroup.Group{}
	group.SetLimit(workers)
	ctx, cancel := context.WithCancel(context.Background())
	return &Dispatcher{
		controller: controller,
		payments:   payments,
		authorizer: authorizer,
		log:        log.Named("dispatch"),
		obsMetrics: m,
		baseCtx:    ctx,
		cancel:     cancel,
		group:      group,
	}
}

// Enqueue schedules msg on the worker group. It blocks while all workers are
// busy, which pushes back on the subscription.
func (d *Dispatcher) Enqueue(msg *nats.Msg) {
	d.group.Go(func() error {
		reply := d.processRecovered(msg)
		if msg.Reply == "" {
			return nil
		}
		if err := msg.Respond(reply); err != nil {
			d.log.Warn("reply failed", zap.String("subject", msg.Subject), zap.Error(err))
		}
		return nil
	})
}

// processRecovered is Process on the worker group. A panicking handler is
// logged and answered with an error reply; the worker keeps serving.
func (d *Dispatcher) processRecovered(msg *nats.Msg) (reply []byte) {
	defer func() {
		if r := recover(); r != nil {
			kind := kindFromSubject(msg.Subject)
			d.log.Error("event handler panicked",
				zap.String("subject", msg.Subject),
				zap.Any("panic", r),
				zap.Stack("stack"),
			)
			d.obsMetrics.ObserveDispatch(string(kind), ErrHandlerPanic, 0)
			data, err := json.Marshal(Reply{Kind: kind, Error: ErrHandlerPanic.Error()})
			if err != nil {
				data = []byte(`{"error":"handler_panic"}`)
			}
			reply = data
		}
	}()
	return d.Process(d.baseCtx, msg)
}

// Wait blocks until every scheduled event finished.
func (d *Dispatcher) Wait() {
	_ = d.group.Wait()
}

// Stop waits for scheduled events to finish, then cancels the base context.
func (d *Dispatcher) Stop() {
	d.Wait()
	d.cancel()
}

// Process handles one message and returns the encoded reply.
func (d *Dispatcher) Process(ctx context.Context, msg *nats.Msg) []byte {
	kind := kindFromSubject(msg.Subject)

	requestID := ""
	if msg.Header != nil {
		requestID = msg.Header.Get(requestIDHeader)
	}
	if requestID == "" {
		requestID = uuid.NewString()
	}
	ctx = obscontext.WithRequestID(ctx, requestID)
	ctx = obscontext.WithSource(ctx, "nats")

	start := time.Now()
	outcome, err := d.Handle(ctx, kind, msg.Data)
	d.obsMetrics.ObserveDispatch(string(kind), err, time.Since(start))

	reply := Reply{Kind: kind, Outcome: outcome}
	if err != nil {
		logger.WithContext(ctx, d.log).Warn("event handling failed",
			zap.String("subject", msg.Subject),
			zap.Error(err),
		)
		reply.Error = err.Error()
	}
	data, err := json.Marshal(reply)
	if err != nil {
		return []byte(`{"error":"encode_reply_failed"}`)
	}
	return data
}

// Handle decodes data as an event of the given kind and runs it.
func (d *Dispatcher) Handle(ctx context.Context, kind Kind, data []byte) (any, error) {
	switch kind {
	case KindSubmission:
		var in lifecycledomain.Submission
		if err := decode(data, &in); err != nil {
			return nil, err
		}
		ctx = obscontext.WithActor(ctx, "requester", fmt.Sprint(in.RequesterID))
		return d.controller.Submit(ctx, in), nil
	case KindClaim:
		var in lifecycledomain.Claim
		if err := decode(data, &in); err != nil {
			return nil, err
		}
		ctx = obscontext.WithActor(ctx, "operator", fmt.Sprint(in.OperatorID))
		return d.controller.Claim(ctx, in), nil
	case KindFulfillment:
		var in lifecycledomain.Fulfillment
		if err := decode(data, &in); err != nil {
			return nil, err
		}
		ctx = obscontext.WithActor(ctx, "operator", fmt.Sprint(in.OperatorID))
		return d.controller.Fulfill(ctx, in), nil
	case KindPayment:
		var in PaymentEvent
		if err := decode(data, &in); err != nil {
			return nil, err
		}
		ctx = obscontext.WithActor(ctx, "system", fmt.Sprint(in.ActorID))
		return d.completePayment(ctx, in)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, kind)
	}
}

func (d *Dispatcher) completePayment(ctx context.Context, in PaymentEvent) (*PaymentOutcome, error) {
	if d.payments == nil {
		return nil, fmt.Errorf("%w: payments not wired", ErrUnknownKind)
	}
	if d.authorizer != nil {
		allowed, err := d.authorizer.Authorize(ctx, in.ActorID, lifecycledomain.ActionPaymentComplete)
		if err != nil {
			return nil, err
		}
		if !allowed {
			return nil, ErrForbidden
		}
	}
	id, err := snowflake.ParseString(strings.TrimSpace(in.PaymentID))
	if err != nil {
		return nil, fmt.Errorf("%w: payment_id", ErrInvalidPayload)
	}
	completed, err := d.payments.CompletePayment(ctx, id, in.ExternalID)
	if errors.Is(err, paymentdomain.ErrPaymentNotPending) {
		return &PaymentOutcome{PaymentID: id.String(), Completed: false}, nil
	}
	if err != nil {
		return nil, err
	}
	return &PaymentOutcome{PaymentID: id.String(), Completed: completed}, nil
}

func decode(data []byte, v any) error {
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	return nil
}

// kindFromSubject takes the last token of <prefix>.inbound.<kind>.
func kindFromSubject(subject string) Kind {
	if i := strings.LastIndexByte(subject, '.'); i >= 0 {
		return Kind(subject[i+1:])
	}
	return Kind(subject)
}
