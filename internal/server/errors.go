package server

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	authdomain "github.com/smallbiznis/coursepass/internal/auth/domain"
	checkoutdomain "github.com/smallbiznis/coursepass/internal/checkout/domain"
	coursedomain "github.com/smallbiznis/coursepass/internal/course/domain"
	entitlementdomain "github.com/smallbiznis/coursepass/internal/entitlement/domain"
	paymentdomain "github.com/smallbiznis/coursepass/internal/payment/domain"
	reconcilerdomain "github.com/smallbiznis/coursepass/internal/reconciler/domain"
	subscriptiondomain "github.com/smallbiznis/coursepass/internal/subscription/domain"
	userdomain "github.com/smallbiznis/coursepass/internal/user/domain"
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
	ErrConflict           = errors.New("conflict")
	ErrInternal           = errors.New("internal_error")
	ErrNotFound           = errors.New("not_found")
	ErrInvalidRequest     = errors.New("invalid_request")
	ErrServiceUnavailable = errors.New("service_unavailable")
	ErrPayloadTooLarge    = errors.New("payload_too_large")
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

		var rateErr *checkoutdomain.RateLimitedError
		if errors.As(lastErr.Err, &rateErr) && rateErr.RetryAfter > 0 {
			c.Header("Retry-After", strconv.Itoa(retryAfterSeconds(rateErr)))
		}

		status, payload := mapError(lastErr.Err)
		c.Header("Content-Type", "application/json")
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
		Errors: []ValidationError{
			{
				Field:   field,
				Code:    code,
				Message: message,
			},
		},
	}
}

// classifyErrorForLog feeds the request logger the same type the client sees.
func classifyErrorForLog(err error) (string, string) {
	status, payload := mapError(err)
	return payload.Type, strconv.Itoa(status)
}

func mapError(err error) (int, errorPayload) {
	if err == nil {
		return http.StatusInternalServerError, errorPayload{
			Type:    "internal_error",
			Message: "internal server error",
		}
	}

	if vErr := asValidationErrors(err); vErr != nil {
		return http.StatusBadRequest, errorPayload{
			Type:    "validation_error",
			Message: "validation error",
			Errors:  vErr.Errors,
		}
	}

	if isValidationError(err) {
		code := validationErrorCode(err)
		return http.StatusBadRequest, errorPayload{
			Type:    "validation_error",
			Message: "validation error",
			Errors: []ValidationError{
				{
					Field:   validationErrorField(code),
					Code:    code,
					Message: validationErrorMessage(code),
				},
			},
		}
	}

	switch {
	case errors.Is(err, paymentdomain.ErrInvalidSignature):
		return http.StatusBadRequest, errorPayload{
			Type:    "invalid_signature",
			Message: "webhook signature verification failed",
		}
	case errors.Is(err, paymentdomain.ErrInvalidPayload):
		return http.StatusBadRequest, errorPayload{
			Type:    "invalid_payload",
			Message: "webhook payload could not be parsed",
		}
	case errors.Is(err, ErrPayloadTooLarge):
		return http.StatusRequestEntityTooLarge, errorPayload{
			Type:    "payload_too_large",
			Message: "request body too large",
		}
	case consistencyFaultCode(err) != "":
		return http.StatusUnprocessableEntity, errorPayload{
			Type:    consistencyFaultCode(err),
			Message: "event could not be applied",
		}
	case errors.Is(err, ErrUnauthorized),
		errors.Is(err, authdomain.ErrUnauthorized),
		errors.Is(err, authdomain.ErrInvalidCredentials):
		return http.StatusUnauthorized, errorPayload{
			Type:    "unauthorized",
			Message: "unauthorized",
		}
	case errors.Is(err, ErrConflict),
		errors.Is(err, authdomain.ErrUserExists),
		errors.Is(err, userdomain.ErrEmailTaken):
		return http.StatusConflict, errorPayload{
			Type:    "conflict",
			Message: "conflict",
		}
	case errors.Is(err, paymentdomain.ErrEventInFlight):
		return http.StatusConflict, errorPayload{
			Type:    "event_in_flight",
			Message: "event is already being processed",
		}
	case errors.Is(err, checkoutdomain.ErrRateLimited):
		return http.StatusTooManyRequests, errorPayload{
			Type:    "rate_limited",
			Message: "too many checkout attempts",
		}
	case isNotFoundError(err):
		return http.StatusNotFound, errorPayload{
			Type:    "not_found",
			Message: "not found",
		}
	case errors.Is(err, ErrServiceUnavailable),
		errors.Is(err, checkoutdomain.ErrGatewayUnavailable):
		return http.StatusServiceUnavailable, errorPayload{
			Type:    "service_unavailable",
			Message: "service unavailable",
		}
	default:
		return http.StatusInternalServerError, errorPayload{
			Type:    "internal_error",
			Message: "internal server error",
		}
	}
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
		errors.Is(err, authdomain.ErrInvalidRequest),
		errors.Is(err, userdomain.ErrInvalidUserID),
		errors.Is(err, coursedomain.ErrInvalidCourseID),
		errors.Is(err, coursedomain.ErrInvalidCursor),
		errors.Is(err, entitlementdomain.ErrInvalidUserID),
		errors.Is(err, entitlementdomain.ErrInvalidCourseID),
		errors.Is(err, checkoutdomain.ErrInvalidUserID),
		errors.Is(err, checkoutdomain.ErrInvalidCourseID),
		errors.Is(err, paymentdomain.ErrInvalidProvider):
		return true
	default:
		return false
	}
}

// consistencyFaultCode names the reconciler failure where the event and the
// stored records disagree, or returns "" for anything else. The processor
// retries these.
func consistencyFaultCode(err error) string {
	for _, fault := range []error{
		reconcilerdomain.ErrMissingMetadata,
		reconcilerdomain.ErrUserNotFound,
		reconcilerdomain.ErrCourseNotFound,
		reconcilerdomain.ErrSubscriptionNotFound,
		reconcilerdomain.ErrSubscriptionOwnerMismatch,
		reconcilerdomain.ErrConcurrentUpdate,
	} {
		if errors.Is(err, fault) {
			return fault.Error()
		}
	}
	return ""
}

func isNotFoundError(err error) bool {
	switch {
	case errors.Is(err, ErrNotFound),
		errors.Is(err, userdomain.ErrNotFound),
		errors.Is(err, coursedomain.ErrNotFound),
		errors.Is(err, subscriptiondomain.ErrNotFound),
		errors.Is(err, entitlementdomain.ErrUserNotFound),
		errors.Is(err, checkoutdomain.ErrUserNotFound),
		errors.Is(err, checkoutdomain.ErrCourseNotFound),
		errors.Is(err, checkoutdomain.ErrPlanNotFound),
		errors.Is(err, checkoutdomain.ErrNoCustomer),
		errors.Is(err, paymentdomain.ErrProviderNotFound),
		errors.Is(err, gorm.ErrRecordNotFound):
		return true
	default:
		return false
	}
}

func validationErrorCode(err error) string {
	switch {
	case errors.Is(err, ErrInvalidRequest),
		errors.Is(err, authdomain.ErrInvalidRequest):
		return "invalid_request"
	default:
		return err.Error()
	}
}

func validationErrorField(code string) string {
	if code == "invalid_request" {
		return "request"
	}
	if strings.HasPrefix(code, "invalid_") {
		return strings.TrimPrefix(code, "invalid_")
	}
	return ""
}

func validationErrorMessage(code string) string {
	switch code {
	case "invalid_request":
		return "invalid request"
	default:
		return "invalid value"
	}
}

func retryAfterSeconds(err *checkoutdomain.RateLimitedError) int {
	seconds := int(err.RetryAfter.Seconds())
	if err.RetryAfter > 0 && seconds == 0 {
		return 1
	}
	return seconds
}
