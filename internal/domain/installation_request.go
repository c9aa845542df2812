package domain

import "time"

// RequestState enumerates lifecycle states for installation requests.
type RequestState string

const (
	StateCreated              RequestState = "Created"
	StateTicketCreationFailed RequestState = "TicketCreationFailed"
	StatePendingApproval      RequestState = "PendingApproval"
	StateApproved             RequestState = "Approved"
	StateRejected             RequestState = "Rejected"
	StateTriggerFailed        RequestState = "TriggerFailed"
	StateRunning              RequestState = "Running"
	StateSucceeded            RequestState = "Succeeded"
	StateFailed               RequestState = "Failed"
	StateFeedbackPending      RequestState = "FeedbackPending"
	StateClosed               RequestState = "Closed"
)

// Outcome is the result of the installation job.
type Outcome string

const (
	OutcomeNone          Outcome = "none"
	OutcomeSuccess       Outcome = "success"
	OutcomeFailure       Outcome = "failure"
	OutcomeIndeterminate Outcome = "indeterminate"
)

// Feedback is the requester's rating of a finished installation.
type Feedback struct {
	Rating             int
	Comments           string
	InstallationStatus string
	SubmittedAt        time.Time
}

// InstallationRequest is the aggregate driven by the orchestrator.
type InstallationRequest struct {
	ID              string
	SoftwareName    string
	SoftwareVersion string
	Requester       string
	TicketRef       *string
	ExecutionRef    *string
	State           RequestState
	RejectionReason *string
	AdminComment    *string
	Outcome         Outcome
	Feedback        *Feedback
	FeedbackSkipped bool
	PollCount       int
	CreatedAt       time.Time
	UpdatedAt       time.Time
	ArchivedAt      *time.Time
}

// NewInstallationRequest builds a request in the Created state.
func NewInstallationRequest(id, softwareName, version, requester string, now time.Time) *InstallationRequest {
	return &InstallationRequest{
		ID:              id,
		SoftwareName:    softwareName,
		SoftwareVersion: version,
		Requester:       requester,
		State:           StateCreated,
		Outcome:         OutcomeNone,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
}

// Clone returns a deep copy so callers never share mutable pointers with a store.
func (r *InstallationRequest) Clone() *InstallationRequest {
	if r == nil {
		return nil
	}
	cp := *r
	cp.TicketRef = cloneString(r.TicketRef)
	cp.ExecutionRef = cloneString(r.ExecutionRef)
	cp.RejectionReason = cloneString(r.RejectionReason)
	cp.AdminComment = cloneString(r.AdminComment)
	if r.Feedback != nil {
		fb := *r.Feedback
		cp.Feedback = &fb
	}
	if r.ArchivedAt != nil {
		at := *r.ArchivedAt
		cp.ArchivedAt = &at
	}
	return &cp
}

// TicketRefValue returns the ticket reference or an empty string.
func (r *InstallationRequest) TicketRefValue() string {
	if r == nil || r.TicketRef == nil {
		return ""
	}
	return *r.TicketRef
}

// ExecutionRefValue returns the execution reference or an empty string.
func (r *InstallationRequest) ExecutionRefValue() string {
	if r == nil || r.ExecutionRef == nil {
		return ""
	}
	return *r.ExecutionRef
}

func cloneString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}
