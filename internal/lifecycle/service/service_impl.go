package service

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/smallbiznis/vindesk/internal/clock"
	"github.com/smallbiznis/vindesk/internal/config"
	ledgerdomain "github.com/smallbiznis/vindesk/internal/ledger/domain"
	lifecycledomain "github.com/smallbiznis/vindesk/internal/lifecycle/domain"
	"github.com/smallbiznis/vindesk/internal/observability/logger"
	obsmetrics "github.com/smallbiznis/vindesk/internal/observability/metrics"
	paymentdomain "github.com/smallbiznis/vindesk/internal/payment/domain"
	"github.com/smallbiznis/vindesk/internal/retry"
	ticketdomain "github.com/smallbiznis/vindesk/internal/ticket/domain"
	"github.com/smallbiznis/vindesk/internal/vin"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
)

const (
	statusListLimit = 10

	actorRequester = "requester"
	actorOperator  = "operator"
)

type Params struct {
	fx.In

	Store      ticketdomain.Store
	Events     ticketdomain.EventLog `optional:"true"`
	Ledger     ledgerdomain.Service
	Notifier   lifecycledomain.Notifier
	Authorizer lifecycledomain.Authorizer  `optional:"true"`
	Limiter    lifecycledomain.RateLimiter `optional:"true"`
	Desk       *config.DeskConfigHolder
	Log        *zap.Logger
	Clock      clock.Clock
	ObsMetrics *obsmetrics.Metrics `optional:"true"`
}

// Service drives tickets through NEW -> TAKEN -> DONE. It keeps no state of
// its own; every contended write goes through a conditional update in the
// ledger or the ticket store.
type Service struct {
	store      ticketdomain.Store
	events     ticketdomain.EventLog
	ledger     ledgerdomain.Service
	notifier   lifecycledomain.Notifier
	authorizer lifecycledomain.Authorizer
	limiter    lifecycledomain.RateLimiter
	desk       *config.DeskConfigHolder
	log        *zap.Logger
	clock      clock.Clock
	obsMetrics *obsmetrics.Metrics
	tracer     trace.Tracer
}

func NewService(p Params) *Service {
	c := p.Clock
	if c == nil {
		c = clock.SystemClock{}
	}
	desk := p.Desk
	if desk == nil {
		desk = config.NewStaticDeskConfig(config.DefaultDeskConfig())
	}
	return &Service{
		store:      p.Store,
		events:     p.Events,
		ledger:     p.Ledger,
		notifier:   p.Notifier,
		authorizer: p.Authorizer,
		limiter:    p.Limiter,
		desk:       desk,
		log:        p.Log.Named("lifecycle.service"),
		clock:      c,
		obsMetrics: p.ObsMetrics,
		tracer:     otel.Tracer("vindesk/lifecycle"),
	}
}

// Submit turns a requester's message into a ticket, charging one credit.
func (s *Service) Submit(ctx context.Context, in lifecycledomain.Submission) (out lifecycledomain.SubmitOutcome) {
	ctx, span := s.tracer.Start(ctx, "lifecycle.Submit", trace.WithAttributes(
		attribute.Int64("requester_id", in.RequesterID),
	))
	defer func() {
		span.SetAttributes(attribute.String("result", string(out.Result)))
		span.End()
		s.obsMetrics.RecordSubmission(string(out.Result))
	}()
	log := logger.WithContext(ctx, s.log).With(zap.Int64("requester_id", in.RequesterID))

	identifier, err := vin.Parse(in.RawText)
	if err != nil {
		reason := vin.ReasonOf(err)
		s.tell(ctx, in.RequesterID, lifecycledomain.Message{Kind: lifecycledomain.MessageInvalidIdentifier, Reason: reason})
		return lifecycledomain.SubmitOutcome{Result: lifecycledomain.SubmitInvalidIdentifier, Reason: reason}
	}
	log = log.With(zap.String("identifier", identifier))

	if !s.allow(ctx, in.RequesterID) {
		s.tell(ctx, in.RequesterID, lifecycledomain.Message{Kind: lifecycledomain.MessageRateLimited})
		return lifecycledomain.SubmitOutcome{Result: lifecycledomain.SubmitRateLimited}
	}

	chargeFirst := s.desk.Get().Submission.ChargeDuplicates
	if !chargeFirst {
		existing, err := s.store.FindOpen(ctx, identifier, in.RequesterID)
		if err != nil {
			log.Error("duplicate lookup failed", zap.Error(err))
			return s.failSubmission(ctx, in.RequesterID)
		}
		if existing != nil {
			return s.duplicate(ctx, in.RequesterID, existing, false)
		}
	}

	consumed, err := s.ledger.Consume(ctx, in.RequesterID, ledgerdomain.Source{
		Type: ledgerdomain.SourceTypeSubmission,
		Ref:  identifier,
	})
	if err != nil {
		log.Error("credit consumption failed", zap.Error(err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "consume failed")
		return s.failSubmission(ctx, in.RequesterID)
	}
	if !consumed {
		options := paymentdomain.Catalog()
		s.tell(ctx, in.RequesterID, lifecycledomain.Message{
			Kind:            lifecycledomain.MessagePurchaseOptions,
			Identifier:      identifier,
			PurchaseOptions: options,
		})
		return lifecycledomain.SubmitOutcome{Result: lifecycledomain.SubmitInsufficientCredit, PurchaseOptions: options}
	}

	if chargeFirst {
		existing, err := s.store.FindOpen(ctx, identifier, in.RequesterID)
		if err != nil {
			log.Error("duplicate lookup failed", zap.Error(err))
			s.refund(ctx, log, in.RequesterID, identifier)
			return s.failSubmission(ctx, in.RequesterID)
		}
		if existing != nil {
			return s.duplicate(ctx, in.RequesterID, existing, true)
		}
	}

	ticket, err := s.store.Create(ctx, identifier, in.RequesterID, in.DisplayName)
	if errors.Is(err, ticketdomain.ErrDuplicateOpen) {
		// A concurrent submission opened the ticket between lookup and insert.
		return s.lostCreateRace(ctx, log, in.RequesterID, identifier, chargeFirst)
	}
	if err != nil {
		log.Error("ticket creation failed", zap.Error(err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "create failed")
		s.refund(ctx, log, in.RequesterID, identifier)
		return s.failSubmission(ctx, in.RequesterID)
	}

	log = log.With(zap.Int64("ticket_id", ticket.ID))
	s.audit(ctx, ticket.ID, "", ticketdomain.StatusNew, actorRequester, in.RequesterID, map[string]any{
		"identifier": identifier,
		"backend":    s.store.Backend(),
	})

	if err := s.notifier.NotifyOperatorPool(ctx, ticket.Summary()); err != nil {
		s.obsMetrics.RecordNotifyFailure("operators")
		log.Warn("operator pool notification failed", zap.Error(err))
	}
	s.tell(ctx, in.RequesterID, lifecycledomain.Message{
		Kind:       lifecycledomain.MessageTicketCreated,
		TicketID:   ticket.ID,
		Status:     ticket.Status,
		Identifier: identifier,
	})

	log.Info("ticket created")
	return lifecycledomain.SubmitOutcome{Result: lifecycledomain.SubmitCreated, Ticket: ticket, Charged: true}
}

// lostCreateRace answers a submission whose insert hit the open-ticket
// unique index. Unless duplicates are charged, the credit is returned.
func (s *Service) lostCreateRace(ctx context.Context, log *zap.Logger, requesterID int64, identifier string, charged bool) lifecycledomain.SubmitOutcome {
	log.Info("concurrent submission already opened a ticket")
	if !charged {
		s.refund(ctx, log, requesterID, identifier)
	}
	existing, err := s.store.FindOpen(ctx, identifier, requesterID)
	if err != nil || existing == nil {
		if err != nil {
			log.Error("duplicate lookup failed", zap.Error(err))
		}
		if charged {
			s.refund(ctx, log, requesterID, identifier)
		}
		return s.failSubmission(ctx, requesterID)
	}
	return s.duplicate(ctx, requesterID, existing, charged)
}

func (s *Service) duplicate(ctx context.Context, requesterID int64, existing *ticketdomain.Ticket, charged bool) lifecycledomain.SubmitOutcome {
	s.tell(ctx, requesterID, lifecycledomain.Message{
		Kind:       lifecycledomain.MessageDuplicate,
		TicketID:   existing.ID,
		Status:     existing.Status,
		Identifier: existing.Identifier,
	})
	return lifecycledomain.SubmitOutcome{Result: lifecycledomain.SubmitDuplicate, Ticket: existing, Charged: charged}
}

func (s *Service) failSubmission(ctx context.Context, requesterID int64) lifecycledomain.SubmitOutcome {
	s.tell(ctx, requesterID, lifecycledomain.Message{Kind: lifecycledomain.MessageRetryLater})
	return lifecycledomain.SubmitOutcome{Result: lifecycledomain.SubmitFailed}
}

// refund returns the credit of a submission that never produced a ticket.
func (s *Service) refund(ctx context.Context, log *zap.Logger, requesterID int64, identifier string) {
	if _, err := s.ledger.Refund(ctx, requesterID, ledgerdomain.Source{
		Type: ledgerdomain.SourceTypeRefund,
		Ref:  identifier,
	}); err != nil {
		log.Error("credit refund failed", zap.Error(err))
	}
}

func (s *Service) allow(ctx context.Context, requesterID int64) bool {
	if s.limiter == nil {
		return true
	}
	allowed, err := s.limiter.Allow(ctx, requesterID)
	if err != nil {
		logger.WithContext(ctx, s.log).Warn("rate limiter unavailable, allowing submission",
			zap.Int64("requester_id", requesterID),
			zap.Error(err),
		)
		return true
	}
	s.obsMetrics.RecordRateLimit(allowed)
	return allowed
}

// Claim assigns a NEW ticket to the operator. Only one of several racing
// operators wins; the rest see already_assigned.
func (s *Service) Claim(ctx context.Context, in lifecycledomain.Claim) (out lifecycledomain.ClaimOutcome) {
	ctx, span := s.tracer.Start(ctx, "lifecycle.Claim", trace.WithAttributes(
		attribute.Int64("ticket_id", in.TicketID),
		attribute.Int64("operator_id", in.OperatorID),
	))
	defer func() {
		span.SetAttributes(attribute.String("result", string(out.Result)))
		span.End()
		s.obsMetrics.RecordClaim(string(out.Result))
	}()
	log := logger.WithContext(ctx, s.log).With(
		zap.Int64("ticket_id", in.TicketID),
		zap.Int64("operator_id", in.OperatorID),
	)

	if !s.authorize(ctx, log, in.OperatorID, lifecycledomain.ActionTicketClaim) {
		return lifecycledomain.ClaimOutcome{Result: lifecycledomain.ClaimForbidden}
	}

	ticket, err := s.lookup(ctx, in.TicketID)
	if err != nil {
		log.Error("ticket lookup failed", zap.Error(err))
		return lifecycledomain.ClaimOutcome{Result: lifecycledomain.ClaimFailed}
	}
	if ticket == nil {
		return lifecycledomain.ClaimOutcome{Result: lifecycledomain.ClaimNotFound}
	}
	if ticket.Status != ticketdomain.StatusNew {
		return lifecycledomain.ClaimOutcome{Result: lifecycledomain.ClaimAlreadyAssigned, Ticket: ticket}
	}

	operator := in.OperatorID
	ok, err := s.store.CompareAndSetStatus(ctx, ticket.ID, []ticketdomain.Status{ticketdomain.StatusNew}, ticketdomain.StatusTaken, &operator)
	if err != nil {
		log.Error("claim write failed", zap.Error(err))
		span.RecordError(err)
		return lifecycledomain.ClaimOutcome{Result: lifecycledomain.ClaimFailed}
	}
	if !ok {
		current, _ := s.store.Get(ctx, ticket.ID)
		if current == nil {
			current = ticket
		}
		log.Info("claim lost to another operator")
		return lifecycledomain.ClaimOutcome{Result: lifecycledomain.ClaimAlreadyAssigned, Ticket: current}
	}

	s.obsMetrics.RecordTransition(string(ticketdomain.StatusNew), string(ticketdomain.StatusTaken))
	s.audit(ctx, ticket.ID, ticketdomain.StatusNew, ticketdomain.StatusTaken, actorOperator, in.OperatorID, nil)

	claimed := *ticket
	claimed.Status = ticketdomain.StatusTaken
	claimed.AssigneeID = &operator
	claimed.UpdatedAt = s.clock.Now()
	if fresh, err := s.store.Get(ctx, ticket.ID); err == nil && fresh != nil {
		claimed = *fresh
	}

	s.tell(ctx, ticket.RequesterID, lifecycledomain.Message{
		Kind:       lifecycledomain.MessageTicketTaken,
		TicketID:   ticket.ID,
		Status:     ticketdomain.StatusTaken,
		Identifier: ticket.Identifier,
	})
	log.Info("ticket claimed")
	return lifecycledomain.ClaimOutcome{Result: lifecycledomain.ClaimClaimed, Ticket: &claimed}
}

// Fulfill closes a ticket with the operator's document and forwards it to
// the requester. A failed forward does not reopen the ticket.
func (s *Service) Fulfill(ctx context.Context, in lifecycledomain.Fulfillment) (out lifecycledomain.FulfillOutcome) {
	ctx, span := s.tracer.Start(ctx, "lifecycle.Fulfill", trace.WithAttributes(
		attribute.Int64("ticket_id", in.TicketID),
		attribute.Int64("operator_id", in.OperatorID),
	))
	defer func() {
		span.SetAttributes(attribute.String("result", string(out.Result)))
		span.End()
		s.obsMetrics.RecordFulfillment(string(out.Result))
	}()
	log := logger.WithContext(ctx, s.log).With(
		zap.Int64("ticket_id", in.TicketID),
		zap.Int64("operator_id", in.OperatorID),
	)

	if !s.authorize(ctx, log, in.OperatorID, lifecycledomain.ActionTicketFulfill) {
		return lifecycledomain.FulfillOutcome{Result: lifecycledomain.FulfillForbidden}
	}

	ticket, err := s.lookup(ctx, in.TicketID)
	if err != nil {
		log.Error("ticket lookup failed", zap.Error(err))
		return lifecycledomain.FulfillOutcome{Result: lifecycledomain.FulfillFailed}
	}
	if ticket == nil {
		return lifecycledomain.FulfillOutcome{Result: lifecycledomain.FulfillNotFound}
	}
	if ticket.Status.Terminal() {
		return lifecycledomain.FulfillOutcome{Result: lifecycledomain.FulfillAlreadyDone, Ticket: ticket}
	}

	if violation := lifecycledomain.CheckDocument(in.Document, s.desk.Get().Documents); violation != "" {
		log.Info("document rejected", zap.String("violation", violation))
		return lifecycledomain.FulfillOutcome{Result: lifecycledomain.FulfillInvalidDocument, Ticket: ticket, Violation: violation}
	}

	operator := in.OperatorID
	ok, err := s.store.CompareAndSetStatus(ctx, ticket.ID, ticketdomain.OpenStatuses, ticketdomain.StatusDone, &operator)
	if err != nil {
		log.Error("fulfill write failed", zap.Error(err))
		span.RecordError(err)
		return lifecycledomain.FulfillOutcome{Result: lifecycledomain.FulfillFailed}
	}
	if !ok {
		current, err := s.store.Get(ctx, ticket.ID)
		if err == nil && current != nil && current.Status.Terminal() {
			return lifecycledomain.FulfillOutcome{Result: lifecycledomain.FulfillAlreadyDone, Ticket: current}
		}
		log.Warn("fulfill guard failed on open ticket", zap.Error(err))
		return lifecycledomain.FulfillOutcome{Result: lifecycledomain.FulfillFailed}
	}

	s.obsMetrics.RecordTransition(string(ticket.Status), string(ticketdomain.StatusDone))
	s.audit(ctx, ticket.ID, ticket.Status, ticketdomain.StatusDone, actorOperator, in.OperatorID, map[string]any{
		"document_handle": in.Document.Handle,
		"file_name":       in.Document.FileName,
		"size_bytes":      in.Document.SizeBytes,
	})

	done := *ticket
	done.Status = ticketdomain.StatusDone
	done.AssigneeID = &operator
	done.UpdatedAt = s.clock.Now()
	if fresh, err := s.store.Get(ctx, ticket.ID); err == nil && fresh != nil {
		done = *fresh
	}

	out = lifecycledomain.FulfillOutcome{Result: lifecycledomain.FulfillFulfilled, Ticket: &done}
	if err := s.notifier.ForwardDocument(ctx, ticket.RequesterID, ticket.ID, in.Document); err != nil {
		s.obsMetrics.RecordNotifyFailure("document")
		log.Error("document forward failed, ticket stays DONE", zap.Error(err))
		out.DeliveryErr = err
		return out
	}
	out.Delivered = true
	log.Info("ticket fulfilled")
	return out
}

// Status lists a requester's recent tickets with the remaining credits.
func (s *Service) Status(ctx context.Context, requesterID int64) (lifecycledomain.StatusView, error) {
	view := lifecycledomain.StatusView{RequesterID: requesterID, Tickets: []ticketdomain.Ticket{}}

	tickets, err := s.store.ListByRequester(ctx, requesterID, statusListLimit)
	if err != nil {
		return view, err
	}
	if tickets != nil {
		view.Tickets = tickets
	}

	balance, err := s.ledger.GetBalance(ctx, requesterID)
	if err != nil {
		return view, err
	}
	if balance != nil {
		view.Remaining = balance.Remaining
		view.Total = balance.Total
	}
	return view, nil
}

// lookup tolerates read-after-write lag of the ticket backend by retrying a
// missing ticket a bounded number of times. It returns nil, nil when the
// ticket never shows up.
func (s *Service) lookup(ctx context.Context, id int64) (*ticketdomain.Ticket, error) {
	claimCfg := s.desk.Get().Claim
	var found *ticketdomain.Ticket
	err := retry.Do(ctx, retry.Fixed(claimCfg.LookupAttempts, claimCfg.LookupDelay), func(ctx context.Context, attempt int) (bool, error) {
		ticket, err := s.store.Get(ctx, id)
		if err != nil {
			return false, err
		}
		if ticket == nil {
			return false, nil
		}
		found = ticket
		return true, nil
	})
	if errors.Is(err, retry.ErrExhausted) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return found, nil
}

func (s *Service) authorize(ctx context.Context, log *zap.Logger, operatorID int64, action string) bool {
	if s.authorizer == nil {
		return true
	}
	allowed, err := s.authorizer.Authorize(ctx, operatorID, action)
	if err != nil {
		log.Error("authorization check failed", zap.String("action", action), zap.Error(err))
		return false
	}
	if !allowed {
		log.Warn("operator not allowed", zap.String("action", action))
	}
	return allowed
}

func (s *Service) tell(ctx context.Context, requesterID int64, msg lifecycledomain.Message) {
	if err := s.notifier.NotifyRequester(ctx, requesterID, msg); err != nil {
		s.obsMetrics.RecordNotifyFailure("requester")
		logger.WithContext(ctx, s.log).Warn("requester notification failed",
			zap.Int64("requester_id", requesterID),
			zap.String("kind", string(msg.Kind)),
			zap.Error(err),
		)
	}
}

// audit appends a ticket event. Failures are logged only; the transition
// already happened.
func (s *Service) audit(ctx context.Context, ticketID int64, from, to ticketdomain.Status, actorType string, actorID int64, metadata map[string]any) {
	if s.events == nil {
		return
	}
	var raw datatypes.JSON
	if len(metadata) > 0 {
		if encoded, err := json.Marshal(metadata); err == nil {
			raw = datatypes.JSON(encoded)
		}
	}
	if err := s.events.Append(ctx, &ticketdomain.Event{
		TicketID:   ticketID,
		FromStatus: from,
		ToStatus:   to,
		ActorType:  actorType,
		ActorID:    actorID,
		Metadata:   raw,
		CreatedAt:  s.clock.Now(),
	}); err != nil {
		logger.WithContext(ctx, s.log).Warn("ticket event append failed",
			zap.Int64("ticket_id", ticketID),
			zap.String("to", string(to)),
			zap.Error(err),
		)
	}
}
