package dto

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/taskrelay/taskrelay/internal/domain"
)

// ErrorResponse is the standard error response format.
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail contains error code and message.
type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// NewErrorResponse creates a new error response.
func NewErrorResponse(code, message string) ErrorResponse {
	return ErrorResponse{
		Error: ErrorDetail{
			Code:    code,
			Message: message,
		},
	}
}

// MapDomainError maps domain errors to HTTP status codes and error codes.
func MapDomainError(err error) (status int, code string, message string) {
	message = err.Error()

	switch {
	case errors.Is(err, domain.ErrNilCommand):
		return http.StatusBadRequest, "NULL_COMMAND", message
	case errors.Is(err, domain.ErrValidation):
		return http.StatusUnprocessableEntity, "VALIDATION_FAILURE", message
	case errors.Is(err, domain.ErrTaskNotFound):
		return http.StatusNotFound, "TASK_NOT_FOUND", message
	case errors.Is(err, domain.ErrCommentNotFound):
		return http.StatusNotFound, "COMMENT_NOT_FOUND", message
	case errors.Is(err, domain.ErrRelationNotFound):
		return http.StatusNotFound, "RELATION_NOT_FOUND", message
	case errors.Is(err, domain.ErrTaskFinalized):
		return http.StatusConflict, "CANNOT_MODIFY_FINALIZED", message
	case errors.Is(err, domain.ErrFourEyeViolation):
		return http.StatusForbidden, "FOUR_EYE_VIOLATION", message
	case errors.Is(err, domain.ErrTaskNotAssigned):
		return http.StatusConflict, "TASK_NOT_ASSIGNED", message
	case errors.Is(err, domain.ErrReporting):
		return http.StatusInternalServerError, "REPORTING_FAILURE", message

	default:
		slog.Error("unmapped domain error returned to client",
			"error", err,
			"error_type", fmt.Sprintf("%T", err),
		)
		return http.StatusInternalServerError, "INTERNAL_ERROR", "Internal server error"
	}
}
