package server

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/smallbiznis/vindesk/internal/payment/webhook"
)

const maxWebhookBody = 64 << 10

// HandlePaymentWebhook settles a payment reported by the payment
// collaborator. Replays of an already completed payment answer 200.
func (s *Server) HandlePaymentWebhook(c *gin.Context) {
	payload, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBody))
	if err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	result, err := s.webhookSvc.Handle(c.Request.Context(), payload, c.GetHeader(webhook.SignatureHeader))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": result})
}
