package server

import (
	"net/http"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	paymentdomain "github.com/smallbiznis/vindesk/internal/payment/domain"
)

type createPaymentRequest struct {
	RequesterID int64  `json:"requester_id"`
	Tier        string `json:"tier"`
}

type paymentResponse struct {
	*paymentdomain.Payment
	AmountDisplay string `json:"amount_display"`
}

func toPaymentResponse(p *paymentdomain.Payment) paymentResponse {
	return paymentResponse{Payment: p, AmountDisplay: paymentdomain.FormatAmount(p.Amount, p.Currency)}
}

type tierResponse struct {
	paymentdomain.TierSpec
	AmountDisplay string `json:"amount_display"`
}

func (s *Server) ListTiers(c *gin.Context) {
	catalog := paymentdomain.Catalog()
	out := make([]tierResponse, 0, len(catalog))
	for _, spec := range catalog {
		out = append(out, tierResponse{TierSpec: spec, AmountDisplay: paymentdomain.FormatAmount(spec.AmountMinor, spec.Currency)})
	}
	c.JSON(http.StatusOK, gin.H{"data": out})
}

// CreatePayment opens a pending payment. Credits are granted only when the
// payment is completed through the webhook, the bus or the CLI.
func (s *Server) CreatePayment(c *gin.Context) {
	var req createPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	payment, err := s.paymentSvc.CreatePayment(
		c.Request.Context(),
		req.RequesterID,
		paymentdomain.Tier(strings.TrimSpace(req.Tier)),
		paymentdomain.ProviderManual,
	)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"data": toPaymentResponse(payment)})
}

func (s *Server) GetPayment(c *gin.Context) {
	id, ok := parsePaymentID(c)
	if !ok {
		return
	}

	payment, err := s.paymentSvc.GetPayment(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": toPaymentResponse(payment)})
}

func (s *Server) CancelPayment(c *gin.Context) {
	id, ok := parsePaymentID(c)
	if !ok {
		return
	}

	cancelled, err := s.paymentSvc.CancelPayment(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	if !cancelled {
		AbortWithError(c, paymentdomain.ErrPaymentNotPending)
		return
	}

	payment, err := s.paymentSvc.GetPayment(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": toPaymentResponse(payment)})
}

func (s *Server) ListRequesterPayments(c *gin.Context) {
	requesterID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	limit, ok := parseLimit(c)
	if !ok {
		return
	}

	payments, err := s.paymentSvc.ListPayments(c.Request.Context(), requesterID, limit)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	out := make([]paymentResponse, 0, len(payments))
	for i := range payments {
		out = append(out, toPaymentResponse(&payments[i]))
	}
	c.JSON(http.StatusOK, gin.H{"data": out})
}

func parsePaymentID(c *gin.Context) (snowflake.ID, bool) {
	id, err := snowflake.ParseString(strings.TrimSpace(c.Param("id")))
	if err != nil || id <= 0 {
		AbortWithError(c, newValidationError("id", "invalid_id", "invalid id"))
		return 0, false
	}
	return id, true
}
