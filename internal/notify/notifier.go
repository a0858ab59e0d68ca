// Package notify delivers outbound messages to operators and requesters.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/smallbiznis/vindesk/internal/clock"
	lifecycledomain "github.com/smallbiznis/vindesk/internal/lifecycle/domain"
	obscontext "github.com/smallbiznis/vindesk/internal/observability/context"
	ticketdomain "github.com/smallbiznis/vindesk/internal/ticket/domain"
)

const (
	ChannelOperators = "operators"
	ChannelRequester = "requester"
	ChannelDocument  = "document"
)

// Envelope is the JSON body published for every outbound message. The chat
// gateway routes on Channel and renders Message in the requester's language.
type Envelope struct {
	Channel     string                    `json:"channel"`
	RequesterID int64                     `json:"requester_id,omitempty"`
	TicketID    int64                     `json:"ticket_id,omitempty"`
	Ticket      *ticketdomain.Summary     `json:"ticket,omitempty"`
	Message     *lifecycledomain.Message  `json:"message,omitempty"`
	Document    *lifecycledomain.Document `json:"document,omitempty"`
	RequestID   string                    `json:"request_id,omitempty"`
	SentAt      time.Time                 `json:"sent_at"`
}

// Publisher is the subset of *nats.Conn the notifier needs.
type Publisher interface {
	Publish(subject string, data []byte) error
}

// NATSNotifier publishes outbound messages to <prefix>.outbound.<channel>.
type NATSNotifier struct {
	pub    Publisher
	prefix string
	clock  clock.Clock
}

func NewNATSNotifier(pub Publisher, prefix string, c clock.Clock) *NATSNotifier {
	if c == nil {
		c = clock.SystemClock{}
	}
	return &NATSNotifier{pub: pub, prefix: prefix, clock: c}
}

// Subject returns the outbound subject for a channel.
func (n *NATSNotifier) Subject(channel string) string {
	return fmt.Sprintf("%s.outbound.%s", n.prefix, channel)
}

func (n *NATSNotifier) NotifyOperatorPool(ctx context.Context, summary ticketdomain.Summary) error {
	return n.publish(ctx, Envelope{
		Channel:     ChannelOperators,
		RequesterID: summary.RequesterID,
		TicketID:    summary.TicketID,
		Ticket:      &summary,
	})
}

func (n *NATSNotifier) NotifyRequester(ctx context.Context, requesterID int64, msg lifecycledomain.Message) error {
	return n.publish(ctx, Envelope{
		Channel:     ChannelRequester,
		RequesterID: requesterID,
		TicketID:    msg.TicketID,
		Message:     &msg,
	})
}

func (n *NATSNotifier) ForwardDocument(ctx context.Context, requesterID, ticketID int64, doc lifecycledomain.Document) error {
	return n.publish(ctx, Envelope{
		Channel:     ChannelDocument,
		RequesterID: requesterID,
		TicketID:    ticketID,
		Document:    &doc,
	})
}

func (n *NATSNotifier) publish(ctx context.Context, env Envelope) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	env.RequestID = obscontext.RequestIDFromContext(ctx)
	env.SentAt = n.clock.Now().UTC()

	data, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("marshal %s envelope: %w", env.Channel, err)
	}
	if err := n.pub.Publish(n.Subject(env.Channel), data); err != nil {
		return fmt.Errorf("publish %s: %w", env.Channel, err)
	}
	return nil
}
