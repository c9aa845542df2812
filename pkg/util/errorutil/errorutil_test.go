package errorutil

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/jackc/pgx/v5"
)

func TestToDomainError(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		code   string
		status int
	}{
		{"domain error passes through", NewInvalidState("approve", "Running", nil), CodeInvalidState, http.StatusConflict},
		{"wrapped domain error", fmt.Errorf("approve: %w", NewNotFound("request", nil)), CodeNotFound, http.StatusNotFound},
		{"no rows maps to not found", pgx.ErrNoRows, CodeNotFound, http.StatusNotFound},
		{"external failure is bad gateway", NewExternalCallFailure("rundeck", "trigger", errors.New("boom")), CodeExternalCallFailed, http.StatusBadGateway},
		{"plain error is internal", errors.New("boom"), CodeInternal, http.StatusInternalServerError},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			de := ToDomainError(tc.err)
			if de.Code != tc.code {
				t.Fatalf("code = %s, want %s", de.Code, tc.code)
			}
			if de.HTTPStatus != tc.status {
				t.Fatalf("status = %d, want %d", de.HTTPStatus, tc.status)
			}
		})
	}
	if ToDomainError(nil) != nil {
		t.Fatalf("nil error should map to nil")
	}
}

func TestHasCode(t *testing.T) {
	err := fmt.Errorf("op: %w", NewConflict("duplicate", nil))
	if !HasCode(err, CodeConflict) {
		t.Fatalf("expected conflict code")
	}
	if HasCode(err, CodeNotFound) {
		t.Fatalf("unexpected not found code")
	}
	if HasCode(errors.New("plain"), CodeConflict) {
		t.Fatalf("plain errors carry no code")
	}
}

func TestInvalidStateDetails(t *testing.T) {
	de := ToDomainError(NewInvalidState("reject", "Closed", map[string]any{"request_id": "r1"}))
	if de.Details["operation"] != "reject" || de.Details["state"] != "Closed" || de.Details["request_id"] != "r1" {
		t.Fatalf("unexpected details: %#v", de.Details)
	}
}

func TestExternalCallFailureUnwraps(t *testing.T) {
	cause := errors.New("connection refused")
	err := NewExternalCallFailure("servicenow", "create_ticket", cause)
	if !errors.Is(err, cause) {
		t.Fatalf("expected cause to be reachable through Unwrap")
	}
}
