package dto

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/spec-kit/installer-orchestrator/internal/domain"
)

// SubmitRequest payload.
type SubmitRequest struct {
	RequestID    string `json:"request_id"`
	SoftwareName string `json:"software_name"`
	Version      string `json:"version"`
	Requester    string `json:"requester"`
}

// ApproveRequest payload.
type ApproveRequest struct {
	Comment string `json:"comment"`
}

// RejectRequest payload.
type RejectRequest struct {
	Reason string `json:"reason"`
}

// FeedbackRequest payload.
type FeedbackRequest struct {
	Rating   int    `json:"rating"`
	Comments string `json:"comments"`
}

// Rating accepts a JSON number or a numeric string, as cards submit either.
type Rating string

// UnmarshalJSON implements json.Unmarshaler.
func (r *Rating) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*r = ""
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*r = Rating(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("rating: %w", err)
	}
	if _, err := strconv.Atoi(n.String()); err != nil {
		return fmt.Errorf("rating must be an integer: %w", err)
	}
	*r = Rating(n.String())
	return nil
}

// ActionRequest is a card submission.
type ActionRequest struct {
	Action           string `json:"action"`
	RequestID        string `json:"request_id"`
	App              string `json:"app"`
	Version          string `json:"version"`
	Comment          string `json:"comment"`
	RejectionReason  string `json:"rejection_reason"`
	Rating           Rating `json:"rating"`
	FeedbackComments string `json:"feedback_comments"`
}

// FeedbackResponse is the recorded feedback.
type FeedbackResponse struct {
	Rating             int       `json:"rating"`
	Comments           string    `json:"comments"`
	InstallationStatus string    `json:"installation_status"`
	SubmittedAt        time.Time `json:"submitted_at"`
}

// RequestResponse is the request snapshot.
type RequestResponse struct {
	ID              string              `json:"request_id"`
	SoftwareName    string              `json:"software_name"`
	SoftwareVersion string              `json:"software_version"`
	Requester       string              `json:"requester"`
	TicketRef       *string             `json:"ticket_ref"`
	ExecutionRef    *string             `json:"job_execution_ref"`
	State           domain.RequestState `json:"state"`
	RejectionReason *string             `json:"rejection_reason,omitempty"`
	AdminComment    *string             `json:"admin_comment,omitempty"`
	Outcome         domain.Outcome      `json:"outcome"`
	Feedback        *FeedbackResponse   `json:"feedback,omitempty"`
	FeedbackSkipped bool                `json:"feedback_skipped"`
	PollCount       int                 `json:"poll_count"`
	CreatedAt       time.Time           `json:"created_at"`
	UpdatedAt       time.Time           `json:"updated_at"`
	ArchivedAt      *time.Time          `json:"archived_at,omitempty"`
}

// NotificationResponse is a render-ready message.
type NotificationResponse struct {
	Kind         domain.NotificationKind `json:"kind"`
	Audience     domain.Audience         `json:"audience"`
	RequestID    string                  `json:"request_id"`
	State        domain.RequestState     `json:"state"`
	Message      string                  `json:"message"`
	SoftwareName string                  `json:"software_name"`
	Version      string                  `json:"version"`
	TicketRef    string                  `json:"ticket_ref,omitempty"`
	ExecutionRef string                  `json:"job_execution_ref,omitempty"`
	Actions      []string                `json:"actions,omitempty"`
	CreatedAt    time.Time               `json:"created_at"`
}

// ResultResponse wraps an operation result.
type ResultResponse struct {
	Request       RequestResponse        `json:"request"`
	Notifications []NotificationResponse `json:"notifications"`
}

// AuditRecordResponse is one audit entry.
type AuditRecordResponse struct {
	ID         string              `json:"id"`
	Event      domain.AuditEvent   `json:"event"`
	PriorState domain.RequestState `json:"prior_state"`
	NewState   domain.RequestState `json:"new_state"`
	Actor      string              `json:"actor"`
	Payload    map[string]any      `json:"payload,omitempty"`
	CreatedAt  time.Time           `json:"created_at"`
}

// AuditTrailResponse lists the audit log and the state it replays to.
type AuditTrailResponse struct {
	RequestID     string                `json:"request_id"`
	Records       []AuditRecordResponse `json:"records"`
	ReplayedState domain.RequestState   `json:"replayed_state,omitempty"`
	ReplayError   string                `json:"replay_error,omitempty"`
}

// NewRequestResponse maps the domain request.
func NewRequestResponse(req *domain.InstallationRequest) RequestResponse {
	resp := RequestResponse{
		ID:              req.ID,
		SoftwareName:    req.SoftwareName,
		SoftwareVersion: req.SoftwareVersion,
		Requester:       req.Requester,
		TicketRef:       req.TicketRef,
		ExecutionRef:    req.ExecutionRef,
		State:           req.State,
		RejectionReason: req.RejectionReason,
		AdminComment:    req.AdminComment,
		Outcome:         req.Outcome,
		FeedbackSkipped: req.FeedbackSkipped,
		PollCount:       req.PollCount,
		CreatedAt:       req.CreatedAt,
		UpdatedAt:       req.UpdatedAt,
		ArchivedAt:      req.ArchivedAt,
	}
	if req.Feedback != nil {
		resp.Feedback = &FeedbackResponse{
			Rating:             req.Feedback.Rating,
			Comments:           req.Feedback.Comments,
			InstallationStatus: req.Feedback.InstallationStatus,
			SubmittedAt:        req.Feedback.SubmittedAt,
		}
	}
	return resp
}

// NewResultResponse maps an operation result.
func NewResultResponse(req *domain.InstallationRequest, notes []domain.Notification) ResultResponse {
	items := make([]NotificationResponse, 0, len(notes))
	for _, n := range notes {
		items = append(items, NotificationResponse{
			Kind:         n.Kind,
			Audience:     n.Audience,
			RequestID:    n.RequestID,
			State:        n.State,
			Message:      n.Message,
			SoftwareName: n.SoftwareName,
			Version:      n.Version,
			TicketRef:    n.TicketRef,
			ExecutionRef: n.ExecutionRef,
			Actions:      n.Actions,
			CreatedAt:    n.CreatedAt,
		})
	}
	return ResultResponse{Request: NewRequestResponse(req), Notifications: items}
}

// NewAuditTrailResponse maps audit records and replays them.
func NewAuditTrailResponse(requestID string, records []domain.AuditRecord) AuditTrailResponse {
	resp := AuditTrailResponse{RequestID: requestID, Records: make([]AuditRecordResponse, 0, len(records))}
	for _, r := range records {
		resp.Records = append(resp.Records, AuditRecordResponse{
			ID:         r.ID,
			Event:      r.Event,
			PriorState: r.PriorState,
			NewState:   r.NewState,
			Actor:      r.Actor,
			Payload:    r.Payload,
			CreatedAt:  r.CreatedAt,
		})
	}
	state, err := domain.ReplayState(records)
	if err != nil {
		resp.ReplayError = err.Error()
	} else {
		resp.ReplayedState = state
	}
	return resp
}
