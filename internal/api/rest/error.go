package rest

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/multivault/ledger/internal/domain"
	"github.com/multivault/ledger/internal/logger"
)

// ErrorCode represents a standardized error code
type ErrorCode string

const (
	// Client errors (4xx)
	errCodeBadRequest       ErrorCode = "bad_request"
	errCodeNotFound         ErrorCode = "not_found"
	errCodeValidationFailed ErrorCode = "validation_failed"
	errCodeUnauthorized     ErrorCode = "unauthorized"
	errCodeForbidden        ErrorCode = "forbidden"
	errCodeConflict         ErrorCode = "conflict"
	errCodePaymentRequired  ErrorCode = "payment_required"

	// Server errors (5xx)
	errCodeInternalError ErrorCode = "internal_error"
)

// errorResponse represents a standardized error response
type errorResponse struct {
	Error errorDetail `json:"error"`
}

// errorDetail contains error information
type errorDetail struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
	Details string    `json:"details,omitempty"`
}

// respondWithError sends a standardized error response
func respondWithError(c *gin.Context, statusCode int, code ErrorCode, message string, details ...string) {
	response := errorResponse{
		Error: errorDetail{
			Code:    code,
			Message: message,
		},
	}

	if len(details) > 0 {
		response.Error.Details = details[0]
	}

	c.JSON(statusCode, response)
}

// respondValidationError sends a 400 Bad Request with validation error
func respondValidationError(c *gin.Context, details string) {
	respondWithError(c, http.StatusBadRequest, errCodeValidationFailed, "Validation failed", details)
}

// respondDomainError maps a domain error onto an HTTP response. Unknown
// errors become a logged 500 with no detail leaked to the client.
func respondDomainError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, domain.ErrInvalidArgument),
		errors.Is(err, domain.ErrAmountOutOfRange),
		errors.Is(err, domain.ErrInvalidMetadata):
		respondWithError(c, http.StatusBadRequest, errCodeBadRequest, "Invalid request", err.Error())

	case errors.Is(err, domain.ErrPrecheckFailed):
		respondWithError(c, http.StatusPaymentRequired, errCodePaymentRequired, "Insufficient payment", err.Error())

	case errors.Is(err, domain.ErrTokenNotFound),
		errors.Is(err, domain.ErrSagaNotFound):
		respondWithError(c, http.StatusNotFound, errCodeNotFound, "Not found", err.Error())

	case errors.Is(err, domain.ErrUnauthorized),
		errors.Is(err, domain.ErrApprovalMismatch),
		errors.Is(err, domain.ErrSagaCallerMismatch):
		respondWithError(c, http.StatusForbidden, errCodeForbidden, "Not allowed", err.Error())

	case errors.Is(err, domain.ErrNotRegistered),
		errors.Is(err, domain.ErrAlreadyRegistered),
		errors.Is(err, domain.ErrHookNotRegistered),
		errors.Is(err, domain.ErrInsufficientBalance),
		errors.Is(err, domain.ErrOverflow),
		errors.Is(err, domain.ErrUnderflow),
		errors.Is(err, domain.ErrIDSpaceExhausted),
		errors.Is(err, domain.ErrSagaStateConflict):
		respondWithError(c, http.StatusConflict, errCodeConflict, "Conflict", err.Error())

	default:
		logger.Error(err, zap.String("path", c.Request.URL.Path))
		respondWithError(c, http.StatusInternalServerError, errCodeInternalError, "Internal server error")
	}
}
