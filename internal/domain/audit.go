package domain

import (
	"fmt"
	"time"
)

// AuditEvent names what caused a lifecycle transition.
type AuditEvent string

const (
	EventSubmitted          AuditEvent = "submitted"
	EventTicketCreated      AuditEvent = "ticket_created"
	EventTicketCreateFailed AuditEvent = "ticket_create_failed"
	EventApproved           AuditEvent = "approved"
	EventRejected           AuditEvent = "rejected"
	EventJobTriggered       AuditEvent = "job_triggered"
	EventTriggerFailed      AuditEvent = "trigger_failed"
	EventJobSucceeded       AuditEvent = "job_succeeded"
	EventJobFailed          AuditEvent = "job_failed"
	EventPollTimedOut       AuditEvent = "poll_timed_out"
	EventFeedbackRequested  AuditEvent = "feedback_requested"
	EventFeedbackSubmitted  AuditEvent = "feedback_submitted"
	EventFeedbackSkipped    AuditEvent = "feedback_skipped"
)

// AuditRecord is an immutable, append-only lifecycle entry.
type AuditRecord struct {
	ID         string
	RequestID  string
	Event      AuditEvent
	PriorState RequestState
	NewState   RequestState
	Actor      string
	Payload    map[string]any
	CreatedAt  time.Time
}

// ReplayState rebuilds the state of a request from its audit trail. Records must be
// in append order; the first one is the creation record with an empty prior state.
func ReplayState(records []AuditRecord) (RequestState, error) {
	var current RequestState
	for i, rec := range records {
		if rec.PriorState != current {
			return current, fmt.Errorf("audit record %d (%s): prior state %q does not match replayed state %q", i, rec.Event, rec.PriorState, current)
		}
		if current == "" {
			if rec.NewState != StateCreated {
				return current, fmt.Errorf("audit record %d (%s): trail must start in %s", i, rec.Event, StateCreated)
			}
		} else if !IsValidTransition(current, rec.NewState) {
			return current, fmt.Errorf("audit record %d (%s): invalid transition %s -> %s", i, rec.Event, current, rec.NewState)
		}
		current = rec.NewState
	}
	if current == "" {
		return current, fmt.Errorf("empty audit trail")
	}
	return current, nil
}
