package service

import (
	"context"
	"strconv"
	"strings"

	"github.com/spec-kit/installer-orchestrator/internal/domain"
	apperrors "github.com/spec-kit/installer-orchestrator/pkg/util/errorutil"
)

// ActionKind is the discriminator carried by a card submission.
type ActionKind string

const (
	ActionInstall        ActionKind = "install"
	ActionApprove        ActionKind = domain.ActionAdminApprove
	ActionReject         ActionKind = domain.ActionAdminReject
	ActionPoll           ActionKind = "poll"
	ActionSubmitFeedback ActionKind = domain.ActionSubmitFeedback
	ActionSkipFeedback   ActionKind = domain.ActionSkipFeedback
)

const defaultRating = 3

// Action is one operation authorized by a card submission.
type Action interface {
	Kind() ActionKind
	isAction()
}

type SubmitAction struct {
	RequestID    string
	SoftwareName string
	Version      string
	Requester    string
}

type ApproveAction struct {
	RequestID string
	Comment   string
}

type RejectAction struct {
	RequestID string
	Reason    string
}

type PollAction struct {
	RequestID string
}

type SubmitFeedbackAction struct {
	RequestID string
	Rating    int
	Comments  string
}

type SkipFeedbackAction struct {
	RequestID string
}

func (SubmitAction) Kind() ActionKind         { return ActionInstall }
func (ApproveAction) Kind() ActionKind        { return ActionApprove }
func (RejectAction) Kind() ActionKind         { return ActionReject }
func (PollAction) Kind() ActionKind           { return ActionPoll }
func (SubmitFeedbackAction) Kind() ActionKind { return ActionSubmitFeedback }
func (SkipFeedbackAction) Kind() ActionKind   { return ActionSkipFeedback }

func (SubmitAction) isAction()         {}
func (ApproveAction) isAction()        {}
func (RejectAction) isAction()         {}
func (PollAction) isAction()           {}
func (SubmitFeedbackAction) isAction() {}
func (SkipFeedbackAction) isAction()   {}

// CardSubmission is the raw data posted by an interactive card.
type CardSubmission struct {
	Action           string
	RequestID        string
	App              string
	Version          string
	Requester        string
	Comment          string
	RejectionReason  string
	Rating           string
	FeedbackComments string
}

// Actor identifies who performs an action, as asserted by the chat platform.
type Actor struct {
	ID   string
	Role domain.PlatformRole
}

// IsAdmin reports whether the actor may approve or reject requests.
func (a Actor) IsAdmin() bool {
	return a.Role == domain.RoleAdmin
}

// ParseAction turns a card submission into a typed action.
func ParseAction(card CardSubmission) (Action, error) {
	kind := ActionKind(strings.TrimSpace(card.Action))
	requestID := strings.TrimSpace(card.RequestID)
	if kind != ActionInstall && requestID == "" {
		return nil, apperrors.NewValidationError("request_id is required", map[string]any{"field": "request_id", "action": string(kind)})
	}

	switch kind {
	case ActionInstall:
		if strings.TrimSpace(card.App) == "" {
			return nil, apperrors.NewValidationError("app is required", map[string]any{"field": "app"})
		}
		return SubmitAction{RequestID: requestID, SoftwareName: card.App, Version: card.Version, Requester: card.Requester}, nil
	case ActionApprove:
		return ApproveAction{RequestID: requestID, Comment: card.Comment}, nil
	case ActionReject:
		return RejectAction{RequestID: requestID, Reason: card.RejectionReason}, nil
	case ActionPoll:
		return PollAction{RequestID: requestID}, nil
	case ActionSubmitFeedback:
		rating, err := parseRating(card.Rating)
		if err != nil {
			return nil, err
		}
		return SubmitFeedbackAction{RequestID: requestID, Rating: rating, Comments: card.FeedbackComments}, nil
	case ActionSkipFeedback:
		return SkipFeedbackAction{RequestID: requestID}, nil
	default:
		return nil, apperrors.NewValidationError("unknown action", map[string]any{"field": "action", "value": string(kind)})
	}
}

func parseRating(raw string) (int, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return defaultRating, nil
	}
	rating, err := strconv.Atoi(raw)
	if err != nil {
		return 0, apperrors.NewValidationError("rating must be a number", map[string]any{"field": "rating", "value": raw})
	}
	return rating, nil
}

// Dispatch runs the single operation an action authorizes.
func (o *Orchestrator) Dispatch(ctx context.Context, actor Actor, action Action) (*Result, error) {
	switch a := action.(type) {
	case SubmitAction:
		requester := a.Requester
		if requester == "" {
			requester = actor.ID
		}
		return o.Submit(ctx, SubmitInput{RequestID: a.RequestID, SoftwareName: a.SoftwareName, Version: a.Version, Requester: requester})
	case ApproveAction:
		if !actor.IsAdmin() {
			return nil, apperrors.NewForbidden("admin role required")
		}
		return o.Approve(ctx, a.RequestID, actor.ID, a.Comment)
	case RejectAction:
		if !actor.IsAdmin() {
			return nil, apperrors.NewForbidden("admin role required")
		}
		return o.Reject(ctx, a.RequestID, actor.ID, a.Reason)
	case PollAction:
		return o.PollOnce(ctx, a.RequestID)
	case SubmitFeedbackAction:
		return o.SubmitFeedback(ctx, a.RequestID, actor.ID, a.Rating, a.Comments)
	case SkipFeedbackAction:
		return o.SkipFeedback(ctx, a.RequestID, actor.ID)
	default:
		return nil, apperrors.NewValidationError("unsupported action", nil)
	}
}
