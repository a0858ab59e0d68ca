package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/smallbiznis/vindesk/internal/dispatch"
	ledgerdomain "github.com/smallbiznis/vindesk/internal/ledger/domain"
	paymentdomain "github.com/smallbiznis/vindesk/internal/payment/domain"
	ticketdomain "github.com/smallbiznis/vindesk/internal/ticket/domain"
	"gorm.io/gorm"
)

type ValidationError struct {
	Field   string `json:"field"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

type ValidationErrors struct {
	Errors []ValidationError `json:"errors"`
}

func (v ValidationErrors) Error() string {
	return "validation error"
}

type errorPayload struct {
	Type    string            `json:"type"`
	Message string            `json:"message"`
	Errors  []ValidationError `json:"errors,omitempty"`
}

type errorResponse struct {
	Error errorPayload `json:"error"`
}

var (
	ErrUnauthorized       = errors.New("unauthorized")
	ErrForbidden          = errors.New("forbidden")
	ErrConflict           = errors.New("conflict")
	ErrNotFound           = errors.New("not_found")
	ErrInvalidRequest     = errors.New("invalid_request")
	ErrServiceUnavailable = errors.New("service_unavailable")
)

func ErrorHandlingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if c.Writer.Written() {
			return
		}

		lastErr := c.Errors.Last()
		if lastErr == nil {
			return
		}

		status, payload := mapError(lastErr.Err)
		c.AbortWithStatusJSON(status, errorResponse{Error: payload})
	}
}

func AbortWithError(c *gin.Context, err error) {
	if err == nil {
		return
	}
	_ = c.Error(err)
	c.Abort()
}

func invalidRequestError() error {
	return newValidationError("request", "invalid_request", "invalid request")
}

func newValidationError(field, code, message string) error {
	return &ValidationErrors{
		Errors: []ValidationError{{Field: field, Code: code, Message: message}},
	}
}

func mapError(err error) (int, errorPayload) {
	if vErr := asValidationErrors(err); vErr != nil {
		return http.StatusBadRequest, errorPayload{
			Type:    "validation_error",
			Message: "validation error",
			Errors:  vErr.Errors,
		}
	}

	switch {
	case err == nil:
	case isValidationError(err):
		return http.StatusBadRequest, errorPayload{
			Type:    "validation_error",
			Message: "validation error",
			Errors: []ValidationError{
				{Field: "request", Code: validationCode(err), Message: "invalid value"},
			},
		}
	case errors.Is(err, ErrUnauthorized),
		errors.Is(err, paymentdomain.ErrInvalidSignature),
		errors.Is(err, paymentdomain.ErrStaleSignature):
		return http.StatusUnauthorized, errorPayload{Type: "unauthorized", Message: "unauthorized"}
	case errors.Is(err, ErrForbidden),
		errors.Is(err, dispatch.ErrForbidden):
		return http.StatusForbidden, errorPayload{Type: "forbidden", Message: "forbidden"}
	case errors.Is(err, ErrConflict),
		errors.Is(err, paymentdomain.ErrPaymentNotPending),
		errors.Is(err, paymentdomain.ErrDuplicatePayment):
		return http.StatusConflict, errorPayload{Type: "conflict", Message: "conflict"}
	case isNotFoundError(err):
		return http.StatusNotFound, errorPayload{Type: "not_found", Message: "not found"}
	case errors.Is(err, ErrServiceUnavailable),
		errors.Is(err, ticketdomain.ErrBackendUnavailable):
		return http.StatusServiceUnavailable, errorPayload{Type: "service_unavailable", Message: "service unavailable"}
	}
	return http.StatusInternalServerError, errorPayload{Type: "internal_error", Message: "internal server error"}
}

func asValidationErrors(err error) *ValidationErrors {
	var vErr *ValidationErrors
	if errors.As(err, &vErr) && vErr != nil {
		return vErr
	}
	return nil
}

func isValidationError(err error) bool {
	switch {
	case errors.Is(err, ErrInvalidRequest),
		errors.Is(err, dispatch.ErrInvalidPayload),
		errors.Is(err, paymentdomain.ErrInvalidRequester),
		errors.Is(err, paymentdomain.ErrUnknownTier),
		errors.Is(err, paymentdomain.ErrInvalidPayload),
		errors.Is(err, ledgerdomain.ErrInvalidRequester),
		errors.Is(err, ledgerdomain.ErrInvalidCount):
		return true
	default:
		return false
	}
}

func validationCode(err error) string {
	for _, known := range []error{
		dispatch.ErrInvalidPayload,
		paymentdomain.ErrInvalidRequester,
		paymentdomain.ErrUnknownTier,
		paymentdomain.ErrInvalidPayload,
		ledgerdomain.ErrInvalidRequester,
		ledgerdomain.ErrInvalidCount,
	} {
		if errors.Is(err, known) {
			return known.Error()
		}
	}
	return "invalid_request"
}

func isNotFoundError(err error) bool {
	switch {
	case errors.Is(err, ErrNotFound),
		errors.Is(err, dispatch.ErrUnknownKind),
		errors.Is(err, paymentdomain.ErrPaymentNotFound),
		errors.Is(err, paymentdomain.ErrWebhookDisabled),
		errors.Is(err, gorm.ErrRecordNotFound):
		return true
	default:
		return false
	}
}
