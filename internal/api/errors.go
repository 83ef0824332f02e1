package api

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"alcyxob/run-coach/internal/coach"
	"alcyxob/run-coach/internal/generator"
	"alcyxob/run-coach/internal/service"
)

// statusFor maps service and coaching errors to an HTTP status. The second
// result reports whether the message is safe to show the caller.
func statusFor(err error) (int, bool) {
	var (
		formatErr   *coach.FormatError
		schemaErr   *coach.SchemaViolation
		orderErr    *coach.OrderError
		prereqErr   *coach.PrerequisiteError
		conflictErr *coach.ConflictError
	)
	switch {
	case errors.As(err, &formatErr), errors.Is(err, service.ErrValidationFailed):
		return http.StatusBadRequest, true
	case errors.As(err, &prereqErr):
		return http.StatusPreconditionFailed, true
	case errors.As(err, &conflictErr),
		errors.Is(err, service.ErrInvalidTransition),
		errors.Is(err, service.ErrPlanNotEditable):
		return http.StatusConflict, true
	case errors.Is(err, service.ErrPlanNotFound),
		errors.Is(err, service.ErrRaceNotFound),
		errors.Is(err, service.ErrWeekNotFound),
		errors.Is(err, service.ErrDayNotFound),
		errors.Is(err, service.ErrActivityNotFound),
		errors.Is(err, service.ErrUploadNotFound):
		return http.StatusNotFound, true
	case errors.Is(err, service.ErrPlanAccessDenied), errors.Is(err, service.ErrActivityAccessDenied):
		return http.StatusForbidden, true
	case errors.As(err, &schemaErr), errors.As(err, &orderErr):
		// The generator produced an unusable plan.
		return http.StatusBadGateway, true
	case errors.Is(err, generator.ErrTimeout):
		return http.StatusGatewayTimeout, true
	case errors.Is(err, generator.ErrUnavailable), errors.Is(err, generator.ErrEmptyResponse):
		return http.StatusBadGateway, true
	}
	return http.StatusInternalServerError, false
}

// respondError writes the mapped status. Unexpected errors are logged and
// hidden behind a generic message.
func respondError(c *gin.Context, logger *slog.Logger, err error, fallback string) {
	code, public := statusFor(err)
	if !public {
		logger.ErrorContext(c.Request.Context(), fallback, "error", err)
		abortWithError(c, code, fallback)
		return
	}

	body := gin.H{"error": err.Error()}
	var prereqErr *coach.PrerequisiteError
	if errors.As(err, &prereqErr) {
		body["missing"] = prereqErr.Missing
	}
	var schemaErr *coach.SchemaViolation
	if errors.As(err, &schemaErr) {
		body["field"] = schemaErr.Field
	}
	c.AbortWithStatusJSON(code, body)
}
