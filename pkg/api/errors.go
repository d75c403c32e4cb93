package api

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	validator "github.com/go-playground/validator/v10"

	"github.com/julian-najas/cacp/pkg/services"
)

// Error codes carried in the error envelope.
const (
	CodeInvalidRequest    = "INVALID_REQUEST"
	CodeSignatureInvalid  = "SIGNATURE_INVALID"
	CodePolicyViolation   = "POLICY_VIOLATION"
	CodeRateLimitExceeded = "RATE_LIMIT_EXCEEDED"
	CodeInternalError     = "INTERNAL_ERROR"
)

// ErrorResponse is the envelope every non-2xx response carries. request_id
// matches the X-Correlation-Id response header so a caller can quote it back.
type ErrorResponse struct {
	ErrorCode string   `json:"error_code"`
	Message   string   `json:"message"`
	RequestID string   `json:"request_id"`
	Details   []string `json:"details,omitempty"`
}

func respondError(c *gin.Context, status int, code, message string, details ...string) {
	c.AbortWithStatusJSON(status, &ErrorResponse{
		ErrorCode: code,
		Message:   message,
		RequestID: requestID(c),
		Details:   details,
	})
}

// mapServiceError maps service-layer errors to HTTP error responses.
func mapServiceError(c *gin.Context, err error) {
	var validErr *services.ValidationError
	if errors.As(err, &validErr) {
		respondError(c, http.StatusBadRequest, CodeInvalidRequest, validErr.Error())
		return
	}
	if errors.Is(err, services.ErrSignatureInvalid) {
		respondError(c, http.StatusUnauthorized, CodeSignatureInvalid, "signature verification failed")
		return
	}
	if errors.Is(err, services.ErrSecretNotConfigured) {
		respondError(c, http.StatusServiceUnavailable, CodeInternalError, "webhook secret not configured")
		return
	}
	if errors.Is(err, services.ErrInvalidPayload) {
		respondError(c, http.StatusBadRequest, CodeInvalidRequest, err.Error())
		return
	}

	// Unexpected error: GitHub and queue infrastructure failures land here so
	// the sender sees a retryable 500.
	slog.Error("Unexpected service error", "error", err, "request_id", requestID(c))
	respondError(c, http.StatusInternalServerError, CodeInternalError, "Internal server error")
}

// bindingDetails flattens binding failures into one detail line per field.
func bindingDetails(err error) []string {
	var fieldErrs validator.ValidationErrors
	if errors.As(err, &fieldErrs) {
		details := make([]string, 0, len(fieldErrs))
		for _, fe := range fieldErrs {
			details = append(details, fmt.Sprintf("%s: failed on %q", fe.Field(), fe.Tag()))
		}
		return details
	}
	return []string{err.Error()}
}
