package domain

import "time"

// NotificationKind identifies the message the conversation layer should render.
type NotificationKind string

const (
	NotifyAwaitingApproval      NotificationKind = "awaiting_approval"
	NotifyTicketCreationFailed  NotificationKind = "ticket_creation_failed"
	NotifyApproved              NotificationKind = "approved"
	NotifyInstallationStarted   NotificationKind = "installation_started"
	NotifyTriggerFailed         NotificationKind = "trigger_failed"
	NotifyRejected              NotificationKind = "rejected"
	NotifyInstallationSucceeded NotificationKind = "installation_succeeded"
	NotifyInstallationFailed    NotificationKind = "installation_failed"
	NotifyFeedbackRequested     NotificationKind = "feedback_requested"
	NotifyFeedbackRecorded      NotificationKind = "feedback_recorded"
	NotifyFeedbackSkipped       NotificationKind = "feedback_skipped"
	NotifyTicketMirrorFailed    NotificationKind = "ticket_mirror_failed"
)

// Audience tells the conversation layer who the notification is addressed to.
type Audience string

const (
	AudienceRequester Audience = "requester"
	AudienceAdmin     Audience = "admin"
)

// Card actions offered alongside a notification.
const (
	ActionAdminApprove   = "admin_approve"
	ActionAdminReject    = "admin_reject"
	ActionSubmitFeedback = "submit_feedback"
	ActionSkipFeedback   = "skip_feedback"
)

// Notification is a render-ready message emitted by a lifecycle operation.
type Notification struct {
	Kind         NotificationKind
	Audience     Audience
	RequestID    string
	State        RequestState
	Message      string
	SoftwareName string
	Version      string
	TicketRef    string
	ExecutionRef string
	Actions      []string
	CreatedAt    time.Time
}
