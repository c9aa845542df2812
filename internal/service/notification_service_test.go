package service

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"go.uber.org/zap"

	"github.com/spec-kit/installer-orchestrator/internal/config"
	"github.com/spec-kit/installer-orchestrator/internal/domain"
	"github.com/spec-kit/installer-orchestrator/internal/events"
)

type recordingPublisher struct {
	mu     sync.Mutex
	events []events.Event
	err    error
}

func (p *recordingPublisher) Publish(ctx context.Context, e events.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
	return p.err
}

func TestNotificationServiceFansOut(t *testing.T) {
	var (
		mu       sync.Mutex
		received []events.Event
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var e events.Event
		if err := json.NewDecoder(r.Body).Decode(&e); err != nil {
			t.Errorf("decode webhook: %v", err)
		}
		mu.Lock()
		received = append(received, e)
		mu.Unlock()
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	dispatcher := events.NewInMemoryDispatcher()
	publisher := &recordingPublisher{}
	svc := NewNotificationService(dispatcher, zap.NewNop(), config.NotificationConfig{WebhookURL: srv.URL}, publisher, srv.Client())
	svc.RegisterHandlers()

	note := domain.Notification{Kind: domain.NotifyAwaitingApproval, RequestID: "r1", Message: "waiting"}
	err := dispatcher.Publish(context.Background(), events.Event{
		ID:        "e1",
		Type:      events.EventRequestNotification,
		RequestID: "r1",
		Payload:   events.NewNotificationPayload(note),
	})
	if err != nil {
		t.Fatalf("publish: %v", err)
	}
	if err := dispatcher.Publish(context.Background(), events.Event{ID: "e2", Type: events.EventRequestStateChanged, RequestID: "r1"}); err != nil {
		t.Fatalf("publish state change: %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(received) != 1 || received[0].RequestID != "r1" {
		t.Fatalf("webhook received %+v", received)
	}
	if len(publisher.events) != 2 {
		t.Fatalf("published %d events, want 2", len(publisher.events))
	}
}

func TestNotificationServiceReportsSinkFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	dispatcher := events.NewInMemoryDispatcher()
	publisher := &recordingPublisher{err: errors.New("broker down")}
	svc := NewNotificationService(dispatcher, zap.NewNop(), config.NotificationConfig{WebhookURL: srv.URL}, publisher, nil)
	svc.RegisterHandlers()

	err := dispatcher.Publish(context.Background(), events.Event{Type: events.EventRequestNotification, RequestID: "r1"})
	if err == nil {
		t.Fatalf("expected sink failure to surface")
	}
	if len(publisher.events) != 1 {
		t.Fatalf("kafka publish must still run after webhook failure")
	}
}
