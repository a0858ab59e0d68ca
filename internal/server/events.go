package server

import (
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/smallbiznis/vindesk/internal/dispatch"
	obscontext "github.com/smallbiznis/vindesk/internal/observability/context"
)

const maxEventBody = 64 << 10

// PostEvent accepts the same events as the inbound bus, for gateways that
// speak HTTP. The outcome is returned synchronously. Payment completion is
// not accepted here: the route is unauthenticated and the body names the
// actor, so payments complete only through the bus or the signed webhook.
func (s *Server) PostEvent(c *gin.Context) {
	kind := dispatch.Kind(strings.ToLower(strings.TrimSpace(c.Param("kind"))))
	if kind == dispatch.KindPayment {
		AbortWithError(c, ErrForbidden)
		return
	}
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxEventBody))
	if err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	ctx := obscontext.WithSource(c.Request.Context(), "http")
	outcome, err := s.dispatcher.Handle(ctx, kind, body)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": outcome})
}
