package httpapi

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/sirupsen/logrus"

	"github.com/forPelevin/clipforge/internal/usecase"
)

// Response is the envelope every endpoint answers with.
type Response struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Data    any    `json:"data,omitempty"`
	Error   any    `json:"error,omitempty"`
}

func respondWithSuccess(c *gin.Context, status int, message string, data any) {
	c.JSON(status, Response{Success: true, Message: message, Data: data})
}

func respondWithError(c *gin.Context, status int, message string, detail any) {
	c.AbortWithStatusJSON(status, Response{Success: false, Message: message, Error: detail})
}

// respondWithServiceError maps orchestrator rejections onto HTTP statuses.
// Rejections are the client's problem; anything unmapped is logged.
func (h *handlers) respondWithServiceError(c *gin.Context, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		h.log.WithFields(logrus.Fields{
			requestIDKey: c.GetString(requestIDKey),
			"route":      c.FullPath(),
		}).WithError(err).Error("service call failed")
	}
	respondWithError(c, status, err.Error(), nil)
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, usecase.ErrInvalidURL):
		return http.StatusBadRequest
	case errors.Is(err, usecase.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, usecase.ErrNotReady):
		return http.StatusUnprocessableEntity
	case errors.Is(err, usecase.ErrBusy),
		errors.Is(err, usecase.ErrInFlight),
		errors.Is(err, usecase.ErrAlreadyRendered):
		return http.StatusConflict
	case errors.Is(err, usecase.ErrClosed):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// formatValidationErrors turns binding failures into one line per field.
func formatValidationErrors(err error) []string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return []string{err.Error()}
	}
	out := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msg := fmt.Sprintf("field '%s' failed on the '%s' tag", fe.Field(), fe.Tag())
		if fe.Param() != "" {
			msg = fmt.Sprintf("%s (value: %s)", msg, fe.Param())
		}
		out = append(out, msg)
	}
	return out
}
