package server

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/Paladins-Inn/delphi-council/internal/persons"
	"github.com/Paladins-Inn/delphi-council/internal/reports"
	"github.com/Paladins-Inn/delphi-council/internal/store"
)

func TestStatusAndCodeForErrors(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"forbidden", errForbidden, http.StatusForbidden, "server.forbidden"},
		{"bad request", errBadRequest, http.StatusBadRequest, "server.invalid"},
		{"credentials", persons.ErrInvalidCredentials, http.StatusUnauthorized, "server.internal"},
		{"not found", store.NewServiceError("missions.get_dispatch", "not_found", store.ErrNotFound), http.StatusNotFound, "missions.get_dispatch.not_found"},
		{"conflict", store.NewServiceError("operatives.save", "conflict", store.ErrConflict), http.StatusConflict, "operatives.save.conflict"},
		{"duplicate", fmt.Errorf("wrapped: %w", store.ErrDuplicate), http.StatusConflict, "server.duplicate"},
		{"referenced", store.ErrReferenced, http.StatusConflict, "server.referenced"},
		{"validation", store.Invalid("name", "is required"), http.StatusUnprocessableEntity, "server.invalid"},
		{"clearance", store.NewServiceError("reports.add_operative", "clearance", fmt.Errorf("%w: %w", store.ErrInvalid, reports.ErrClearanceTooLow)), http.StatusUnprocessableEntity, "reports.add_operative.clearance"},
		{"unknown", errors.New("boom"), http.StatusInternalServerError, "server.internal"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if status := statusFor(tc.err); status != tc.status {
				t.Fatalf("statusFor() = %d, want %d", status, tc.status)
			}
			if code := errorCode(tc.err); code != tc.code {
				t.Fatalf("errorCode() = %q, want %q", code, tc.code)
			}
		})
	}
}

func TestErrorKeyPrefersDomainReasons(t *testing.T) {
	err := fmt.Errorf("%w: %w", store.ErrInvalid, reports.ErrOperativeRetired)
	if key := errorKey(err); key != "error.retired" {
		t.Fatalf("errorKey() = %q, want error.retired", key)
	}
}
