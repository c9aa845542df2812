package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/installer-orchestrator/internal/api/dto"
	"github.com/spec-kit/installer-orchestrator/internal/service"
	apperrors "github.com/spec-kit/installer-orchestrator/pkg/util/errorutil"
)

// ActionsHandler accepts interactive card submissions.
type ActionsHandler struct {
	service *service.Orchestrator
}

// NewActionsHandler constructs handler.
func NewActionsHandler(orchestrator *service.Orchestrator) *ActionsHandler {
	return &ActionsHandler{service: orchestrator}
}

// Submit POST /v1/actions.
func (h *ActionsHandler) Submit(c *fiber.Ctx) error {
	principal, err := requirePrincipal(c)
	if err != nil {
		return err
	}
	var req dto.ActionRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", map[string]any{"reason": err.Error()})
	}
	action, err := service.ParseAction(service.CardSubmission{
		Action:           req.Action,
		RequestID:        req.RequestID,
		App:              req.App,
		Version:          req.Version,
		Comment:          req.Comment,
		RejectionReason:  req.RejectionReason,
		Rating:           string(req.Rating),
		FeedbackComments: req.FeedbackComments,
	})
	if err != nil {
		return err
	}
	res, err := h.service.Dispatch(c.UserContext(), service.Actor{ID: principal.SubjectID, Role: principal.Role}, action)
	if err != nil {
		return err
	}
	status := fiber.StatusOK
	if action.Kind() == service.ActionInstall {
		status = fiber.StatusCreated
	}
	return c.Status(status).JSON(fiber.Map{"data": dto.NewResultResponse(res.Request, res.Notifications)})
}
