package notify

import (
	"context"

	lifecycledomain "github.com/smallbiznis/vindesk/internal/lifecycle/domain"
	"github.com/smallbiznis/vindesk/internal/observability/logger"
	ticketdomain "github.com/smallbiznis/vindesk/internal/ticket/domain"
	"go.uber.org/zap"
)

// LogNotifier writes outbound messages to the log. It is used when no
// message bus is configured, so a local run still shows what would be sent.
type LogNotifier struct {
	log *zap.Logger
}

func NewLogNotifier(log *zap.Logger) *LogNotifier {
	return &LogNotifier{log: log.Named("notify.log")}
}

func (n *LogNotifier) NotifyOperatorPool(ctx context.Context, summary ticketdomain.Summary) error {
	logger.WithContext(ctx, n.log).Info("notify operators",
		zap.Int64("ticket_id", summary.TicketID),
		zap.Int64("requester_id", summary.RequesterID),
		zap.String("display_name", summary.DisplayName),
		zap.String("identifier", summary.Identifier),
	)
	return nil
}

func (n *LogNotifier) NotifyRequester(ctx context.Context, requesterID int64, msg lifecycledomain.Message) error {
	logger.WithContext(ctx, n.log).Info("notify requester",
		zap.Int64("requester_id", requesterID),
		zap.String("kind", string(msg.Kind)),
		zap.Int64("ticket_id", msg.TicketID),
	)
	return nil
}

func (n *LogNotifier) ForwardDocument(ctx context.Context, requesterID, ticketID int64, doc lifecycledomain.Document) error {
	logger.WithContext(ctx, n.log).Info("forward document",
		zap.Int64("requester_id", requesterID),
		zap.Int64("ticket_id", ticketID),
		zap.String("handle", doc.Handle),
		zap.String("file_name", doc.FileName),
	)
	return nil
}
