package server

import (
	"errors"
	"net/http"
	"strings"

	"github.com/Paladins-Inn/delphi-council/internal/persons"
	"github.com/Paladins-Inn/delphi-council/internal/reports"
	"github.com/Paladins-Inn/delphi-council/internal/store"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

var (
	errForbidden  = errors.New("server: forbidden")
	errBadRequest = errors.New("server: malformed request")
)

// statusFor maps service errors onto HTTP statuses.
func statusFor(err error) int {
	switch {
	case errors.Is(err, errForbidden):
		return http.StatusForbidden
	case errors.Is(err, errBadRequest):
		return http.StatusBadRequest
	case errors.Is(err, persons.ErrInvalidCredentials):
		return http.StatusUnauthorized
	case errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, store.ErrConflict),
		errors.Is(err, store.ErrDuplicate),
		errors.Is(err, store.ErrReferenced):
		return http.StatusConflict
	case errors.Is(err, store.ErrInvalid), errors.Is(err, store.ErrNilEntity):
		return http.StatusUnprocessableEntity
	}
	return http.StatusInternalServerError
}

// errorKey is the message key describing err to a person.
func errorKey(err error) string {
	switch {
	case errors.Is(err, errForbidden):
		return "error.forbidden"
	case errors.Is(err, reports.ErrClearanceTooLow):
		return "error.clearance"
	case errors.Is(err, reports.ErrOperativeRetired):
		return "error.retired"
	case errors.Is(err, store.ErrNotFound):
		return "error.not_found"
	case errors.Is(err, store.ErrConflict):
		return "error.conflict"
	case errors.Is(err, store.ErrDuplicate):
		return "error.duplicate"
	case errors.Is(err, store.ErrReferenced):
		return "error.referenced"
	case errors.Is(err, store.ErrInvalid), errors.Is(err, errBadRequest):
		return "error.invalid"
	}
	return "error.internal"
}

// errorCode is the stable code reported by the API.
func errorCode(err error) string {
	if code := store.ErrorCode(err); code != "" {
		return code
	}
	return "server." + strings.TrimPrefix(errorKey(err), "error.")
}

// describeError renders err for a person in the given locale. Field
// validation errors name the field.
func (h *httpHandler) describeError(locale string, err error) string {
	var invalid *store.ValidationError
	if errors.As(err, &invalid) {
		return h.translator.Translate(locale, "input.data.invalid", invalid.Field, invalid.Message)
	}
	return h.translator.Translate(locale, errorKey(err))
}

// respondError writes the JSON error body and logs unexpected failures.
func (h *httpHandler) respondError(c *gin.Context, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		h.logError(c, err)
	}
	message := h.describeError(localeFrom(c).String(), err)
	c.AbortWithStatusJSON(status, gin.H{"error": message, "code": errorCode(err)})
}

func (h *httpHandler) logError(c *gin.Context, err error) {
	h.logger.Error("request failed",
		zap.String("path", c.FullPath()),
		zap.String("method", c.Request.Method),
		zap.String("person_id", principalFrom(c).PersonID),
		zap.Error(err))
}
