package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	auditdomain "github.com/smallbiznis/voucherportal/internal/audit/domain"
	authdomain "github.com/smallbiznis/voucherportal/internal/auth/domain"
	"github.com/smallbiznis/voucherportal/internal/authorization"
	"github.com/smallbiznis/voucherportal/internal/ratelimit"
	voucherdomain "github.com/smallbiznis/voucherportal/internal/voucher/domain"
	recorddomain "github.com/smallbiznis/voucherportal/internal/voucherrecord/domain"
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

const (
	errorTypeInvalidRequest     = "invalid_request_error"
	errorTypeNotFound           = "not_found"
	errorTypeConflict           = "conflict"
	errorTypeUnauthorized       = "unauthorized"
	errorTypeForbidden          = "forbidden"
	errorTypeRateLimited        = "rate_limited"
	errorTypeServiceUnavailable = "service_unavailable"
	errorTypeAPI                = "api_error"
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

func mapError(err error) (int, errorPayload) {
	if err == nil {
		return http.StatusInternalServerError, errorPayload{
			Type:    errorTypeAPI,
			Message: "internal server error",
		}
	}

	if vErr := asValidationErrors(err); vErr != nil {
		return http.StatusBadRequest, errorPayload{
			Type:    errorTypeInvalidRequest,
			Message: "validation error",
			Errors:  vErr.Errors,
		}
	}

	if field, ok := validationField(err); ok {
		code := err.Error()
		return http.StatusBadRequest, errorPayload{
			Type:    errorTypeInvalidRequest,
			Message: "validation error",
			Errors: []ValidationError{
				{
					Field:   field,
					Code:    code,
					Message: validationErrorMessage(code),
				},
			},
		}
	}

	switch {
	case errors.Is(err, ErrUnauthorized),
		errors.Is(err, authorization.ErrInvalidActor),
		errors.Is(err, authdomain.ErrInvalidCredentials),
		errors.Is(err, authdomain.ErrInvalidSession),
		errors.Is(err, authdomain.ErrSessionNotFound),
		errors.Is(err, authdomain.ErrSessionExpired),
		errors.Is(err, authdomain.ErrSessionRevoked),
		errors.Is(err, authdomain.ErrUserNotFound):
		return http.StatusUnauthorized, errorPayload{
			Type:    errorTypeUnauthorized,
			Message: "unauthorized",
		}
	case errors.Is(err, ErrForbidden),
		errors.Is(err, authorization.ErrForbidden),
		errors.Is(err, authdomain.ErrUserInactive):
		return http.StatusForbidden, errorPayload{
			Type:    errorTypeForbidden,
			Message: "forbidden",
		}
	case errors.Is(err, ErrConflict),
		errors.Is(err, authdomain.ErrUserExists),
		errors.Is(err, voucherdomain.ErrCodeConflict),
		errors.Is(err, recorddomain.ErrRecordExists):
		return http.StatusConflict, errorPayload{
			Type:    errorTypeConflict,
			Message: conflictMessage(err),
		}
	case isNotFoundError(err):
		return http.StatusNotFound, errorPayload{
			Type:    errorTypeNotFound,
			Message: "not found",
		}
	case errors.Is(err, ratelimit.ErrRateLimited):
		return http.StatusTooManyRequests, errorPayload{
			Type:    errorTypeRateLimited,
			Message: "too many redeem attempts, retry later",
		}
	case errors.Is(err, ErrServiceUnavailable):
		return http.StatusServiceUnavailable, errorPayload{
			Type:    errorTypeServiceUnavailable,
			Message: "service unavailable",
		}
	default:
		return http.StatusInternalServerError, errorPayload{
			Type:    errorTypeAPI,
			Message: "internal server error",
		}
	}
}

// classifyErrorForLog feeds the access log with the mapped error type and
// the sentinel code.
func classifyErrorForLog(err error) (string, string) {
	_, payload := mapError(err)
	code := payload.Type
	if len(payload.Errors) > 0 {
		code = payload.Errors[0].Code
	} else if payload.Type != errorTypeAPI {
		code = err.Error()
	}
	return payload.Type, code
}

func asValidationErrors(err error) *ValidationErrors {
	var vErr *ValidationErrors
	if errors.As(err, &vErr) && vErr != nil {
		return vErr
	}
	return nil
}

// validationField reports the request field a domain validation error
// points at.
func validationField(err error) (string, bool) {
	switch {
	case errors.Is(err, ErrInvalidRequest):
		return "request", true
	case errors.Is(err, voucherdomain.ErrInvalidCode):
		return "code", true
	case errors.Is(err, voucherdomain.ErrInvalidDiscount):
		return "discount_percentage", true
	case errors.Is(err, voucherdomain.ErrInvalidRedemptionType):
		return "redemption_type", true
	case errors.Is(err, voucherdomain.ErrLimitBelowCount):
		return "x_times_limit", true
	case errors.Is(err, voucherdomain.ErrInvalidRedemptionCount):
		return "redemption_count", true
	case errors.Is(err, voucherdomain.ErrInvalidID),
		errors.Is(err, recorddomain.ErrInvalidID):
		return "id", true
	case errors.Is(err, recorddomain.ErrInvalidVoucherID),
		errors.Is(err, recorddomain.ErrVoucherNotFound):
		return "voucher_id", true
	case errors.Is(err, voucherdomain.ErrInvalidPageToken),
		errors.Is(err, recorddomain.ErrInvalidPageToken),
		errors.Is(err, auditdomain.ErrInvalidPageToken):
		return "page_token", true
	case errors.Is(err, auditdomain.ErrInvalidTimeRange):
		return "start_at", true
	case errors.Is(err, auditdomain.ErrInvalidAction):
		return "action", true
	case errors.Is(err, authdomain.ErrInvalidUsername):
		return "username", true
	case errors.Is(err, authdomain.ErrInvalidEmail):
		return "email", true
	case errors.Is(err, authdomain.ErrWeakPassword):
		return "password", true
	case errors.Is(err, authdomain.ErrPasswordMismatch):
		return "password_confirmation", true
	default:
		return "", false
	}
}

func isNotFoundError(err error) bool {
	switch {
	case errors.Is(err, ErrNotFound),
		errors.Is(err, voucherdomain.ErrNotFound),
		errors.Is(err, recorddomain.ErrNotFound),
		errors.Is(err, gorm.ErrRecordNotFound):
		return true
	default:
		return false
	}
}

func conflictMessage(err error) string {
	switch {
	case errors.Is(err, voucherdomain.ErrCodeConflict):
		return "voucher code already exists"
	case errors.Is(err, recorddomain.ErrRecordExists):
		return "voucher already has a record"
	case errors.Is(err, authdomain.ErrUserExists):
		return "username or email already registered"
	default:
		return "conflict"
	}
}

func validationErrorMessage(code string) string {
	switch code {
	case "invalid_request":
		return "invalid request"
	case voucherdomain.ErrLimitBelowCount.Error():
		return "redemption limit is below the current redemption count"
	case authdomain.ErrPasswordMismatch.Error():
		return "passwords do not match"
	case authdomain.ErrWeakPassword.Error():
		return "password must be at least 8 characters"
	case recorddomain.ErrVoucherNotFound.Error():
		return "voucher does not exist"
	default:
		return "invalid value"
	}
}
