package events

import (
	"time"

	"github.com/spec-kit/installer-orchestrator/internal/domain"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventRequestStateChanged EventType = "request_state_changed"
	EventRequestNotification EventType = "request_notification"
)

// Event represents a domain event emitted by the orchestrator.
type Event struct {
	ID        string      `json:"id"`
	Type      EventType   `json:"type"`
	RequestID string      `json:"request_id"`
	Actor     string      `json:"actor,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
	Payload   interface{} `json:"payload"`
}

// StateChangedPayload payload.
type StateChangedPayload struct {
	OldState domain.RequestState `json:"old_state"`
	NewState domain.RequestState `json:"new_state"`
	Cause    domain.AuditEvent   `json:"cause"`
}

// NotificationPayload carries a render-ready notification.
type NotificationPayload struct {
	Kind         domain.NotificationKind `json:"kind"`
	Audience     domain.Audience         `json:"audience"`
	State        domain.RequestState     `json:"state"`
	Message      string                  `json:"message"`
	SoftwareName string                  `json:"software_name"`
	Version      string                  `json:"version"`
	TicketRef    string                  `json:"ticket_ref,omitempty"`
	ExecutionRef string                  `json:"execution_ref,omitempty"`
	Actions      []string                `json:"actions,omitempty"`
}

// NewNotificationPayload converts a domain notification for publication.
func NewNotificationPayload(n domain.Notification) NotificationPayload {
	return NotificationPayload{
		Kind:         n.Kind,
		Audience:     n.Audience,
		State:        n.State,
		Message:      n.Message,
		SoftwareName: n.SoftwareName,
		Version:      n.Version,
		TicketRef:    n.TicketRef,
		ExecutionRef: n.ExecutionRef,
		Actions:      n.Actions,
	}
}
