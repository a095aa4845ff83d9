package rest

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/givechain/charity-ledger/internal/domain"
	"github.com/givechain/charity-ledger/internal/logger"
)

// ErrorCode represents a standardized error code
type ErrorCode string

const (
	// Client errors (4xx)
	errCodeBadRequest          ErrorCode = "bad_request"
	errCodeNotFound            ErrorCode = "not_found"
	errCodeValidationFailed    ErrorCode = "validation_failed"
	errCodeForbidden           ErrorCode = "forbidden"
	errCodeInactive            ErrorCode = "inactive"
	errCodeExpired             ErrorCode = "expired"
	errCodeInsufficientBalance ErrorCode = "insufficient_balance"

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

// respondBadRequest sends a 400 Bad Request response
func respondBadRequest(c *gin.Context, message string, details ...string) {
	respondWithError(c, http.StatusBadRequest, errCodeBadRequest, message, details...)
}

// respondValidationError sends a 400 Bad Request with validation error
func respondValidationError(c *gin.Context, details string) {
	respondWithError(c, http.StatusBadRequest, errCodeValidationFailed, "Validation failed", details)
}

// respondForbidden sends a 403 Forbidden response
func respondForbidden(c *gin.Context, message string) {
	respondWithError(c, http.StatusForbidden, errCodeForbidden, message)
}

// respondLedgerError maps an accounting error to its HTTP representation.
// Anything not in the ledger's error taxonomy is a 500.
func respondLedgerError(c *gin.Context, err error, message string) {
	switch {
	case errors.Is(err, domain.ErrInvalidArgument):
		respondWithError(c, http.StatusBadRequest, errCodeValidationFailed, message, err.Error())
	case errors.Is(err, domain.ErrUnauthorized):
		respondWithError(c, http.StatusForbidden, errCodeForbidden, message, err.Error())
	case errors.Is(err, domain.ErrNotFound):
		respondWithError(c, http.StatusNotFound, errCodeNotFound, message)
	case errors.Is(err, domain.ErrInactiveEntity):
		respondWithError(c, http.StatusConflict, errCodeInactive, message, err.Error())
	case errors.Is(err, domain.ErrExpired):
		respondWithError(c, http.StatusGone, errCodeExpired, message, err.Error())
	case errors.Is(err, domain.ErrInsufficientBalance):
		respondWithError(c, http.StatusUnprocessableEntity, errCodeInsufficientBalance, message, err.Error())
	default:
		logger.Error(err, zap.String("path", c.Request.URL.Path))
		respondWithError(c, http.StatusInternalServerError, errCodeInternalError, message)
	}
}
