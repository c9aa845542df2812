package ticketing

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/spec-kit/installer-orchestrator/internal/config"
	apperrors "github.com/spec-kit/installer-orchestrator/pkg/util/errorutil"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *ServiceNowClient {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewServiceNowClient(config.ServiceNowConfig{Instance: srv.URL + "/", User: "svc", Password: "pw"}, srv.Client())
}

func TestCreateTicket(t *testing.T) {
	var got incidentPayload
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/api/now/table/incident" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		user, pass, ok := r.BasicAuth()
		if !ok || user != "svc" || pass != "pw" {
			t.Errorf("missing basic auth")
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode: %v", err)
		}
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"result":{"sys_id":"abc","number":"INC0010001","state":"1"}}`))
	})

	ref, err := client.CreateTicket(context.Background(), "Installation of Zoom v5.0", "details", "Software", "")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if ref != "INC0010001" {
		t.Fatalf("ref = %q", ref)
	}
	if got.CallerID != "Guest" {
		t.Fatalf("caller should default to Guest, got %q", got.CallerID)
	}
	if got.Category != "Software" || got.ShortDescription != "Installation of Zoom v5.0" {
		t.Fatalf("unexpected payload %#v", got)
	}
}

func TestCreateTicketFailure(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
	})
	_, err := client.CreateTicket(context.Background(), "s", "d", "Software", "alice")
	if !apperrors.HasCode(err, apperrors.CodeExternalCallFailed) {
		t.Fatalf("expected external call failure, got %v", err)
	}
}

func TestSetTicketState(t *testing.T) {
	var patched statePayload
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodGet && r.URL.Path == "/api/now/table/incident":
			if q := r.URL.Query().Get("sysparm_query"); q != "number=INC0010001" {
				t.Errorf("query = %q", q)
			}
			_, _ = w.Write([]byte(`{"result":[{"sys_id":"sys-1"}]}`))
		case r.Method == http.MethodPatch && r.URL.Path == "/api/now/table/incident/sys-1":
			_ = json.NewDecoder(r.Body).Decode(&patched)
			_, _ = w.Write([]byte(`{"result":{"sys_id":"sys-1","state":"2"}}`))
		default:
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
			w.WriteHeader(http.StatusTeapot)
		}
	})

	cases := map[TicketState]string{
		TicketNew:        "1",
		TicketInProgress: "2",
		TicketClosed:     "7",
		TicketCancelled:  "8",
	}
	for state, code := range cases {
		if err := client.SetTicketState(context.Background(), "INC0010001", state); err != nil {
			t.Fatalf("set %s: %v", state, err)
		}
		if patched.State != code {
			t.Fatalf("state %s sent code %q, want %q", state, patched.State, code)
		}
	}
}

func TestSetTicketStateNotFound(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"result":[]}`))
	})
	err := client.SetTicketState(context.Background(), "INC404", TicketClosed)
	if !apperrors.HasCode(err, apperrors.CodeNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestSetTicketStateRejectsUnknownState(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		t.Errorf("no request expected")
	})
	err := client.SetTicketState(context.Background(), "INC1", TicketState("resolved"))
	if !apperrors.HasCode(err, apperrors.CodeValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}
