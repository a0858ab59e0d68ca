package server

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	ticketdomain "github.com/smallbiznis/vindesk/internal/ticket/domain"
)

const (
	defaultListLimit = 10
	maxListLimit     = 100
)

func (s *Server) GetTicket(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	ticket, err := s.store.Get(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	if ticket == nil {
		AbortWithError(c, ErrNotFound)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": ticket})
}

func (s *Server) ListRequesterTickets(c *gin.Context) {
	requesterID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	limit, ok := parseLimit(c)
	if !ok {
		return
	}

	tickets, err := s.store.ListByRequester(c.Request.Context(), requesterID, limit)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	if tickets == nil {
		tickets = []ticketdomain.Ticket{}
	}

	c.JSON(http.StatusOK, gin.H{"data": tickets})
}

func (s *Server) GetRequesterBalance(c *gin.Context) {
	requesterID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	balance, err := s.ledgerSvc.GetBalance(c.Request.Context(), requesterID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	resp := gin.H{"requester_id": requesterID, "remaining": 0, "total": 0}
	if balance != nil {
		resp["remaining"] = balance.Remaining
		resp["total"] = balance.Total
	}
	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) GetRequesterStatus(c *gin.Context) {
	requesterID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	view, err := s.controller.Status(c.Request.Context(), requesterID)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": view})
}

func parseIDParam(c *gin.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(strings.TrimSpace(c.Param(name)), 10, 64)
	if err != nil || id <= 0 {
		AbortWithError(c, newValidationError(name, "invalid_"+name, "invalid "+name))
		return 0, false
	}
	return id, true
}

func parseLimit(c *gin.Context) (int, bool) {
	raw := strings.TrimSpace(c.Query("limit"))
	if raw == "" {
		return defaultListLimit, true
	}
	limit, err := strconv.Atoi(raw)
	if err != nil || limit <= 0 {
		AbortWithError(c, newValidationError("limit", "invalid_limit", "invalid limit"))
		return 0, false
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}
	return limit, true
}
