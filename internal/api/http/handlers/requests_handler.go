package handlers

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/installer-orchestrator/internal/api/dto"
	"github.com/spec-kit/installer-orchestrator/internal/auth"
	"github.com/spec-kit/installer-orchestrator/internal/service"
	apperrors "github.com/spec-kit/installer-orchestrator/pkg/util/errorutil"
)

// RequestsHandler exposes the installation request lifecycle.
type RequestsHandler struct {
	service *service.Orchestrator
}

// NewRequestsHandler constructs handler.
func NewRequestsHandler(orchestrator *service.Orchestrator) *RequestsHandler {
	return &RequestsHandler{service: orchestrator}
}

// Submit POST /v1/requests.
func (h *RequestsHandler) Submit(c *fiber.Ctx) error {
	principal, err := requirePrincipal(c)
	if err != nil {
		return err
	}
	var req dto.SubmitRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	requester := req.Requester
	if requester == "" {
		requester = principal.SubjectID
	}
	res, err := h.service.Submit(c.UserContext(), service.SubmitInput{
		RequestID:    req.RequestID,
		SoftwareName: req.SoftwareName,
		Version:      req.Version,
		Requester:    requester,
	})
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": dto.NewResultResponse(res.Request, res.Notifications)})
}

// Get GET /v1/requests/:id.
func (h *RequestsHandler) Get(c *fiber.Ctx) error {
	req, err := h.service.Get(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewRequestResponse(req)})
}

// Audit GET /v1/requests/:id/audit.
func (h *RequestsHandler) Audit(c *fiber.Ctx) error {
	id := c.Params("id")
	records, err := h.service.AuditTrail(c.UserContext(), id)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewAuditTrailResponse(id, records)})
}

// Approve POST /v1/requests/:id/approve.
func (h *RequestsHandler) Approve(c *fiber.Ctx) error {
	principal, err := requirePrincipal(c)
	if err != nil {
		return err
	}
	var req dto.ApproveRequest
	if err := parseOptionalBody(c, &req); err != nil {
		return err
	}
	res, err := h.service.Approve(c.UserContext(), c.Params("id"), principal.SubjectID, req.Comment)
	return respond(c, res, err)
}

// Reject POST /v1/requests/:id/reject.
func (h *RequestsHandler) Reject(c *fiber.Ctx) error {
	principal, err := requirePrincipal(c)
	if err != nil {
		return err
	}
	var req dto.RejectRequest
	if err := parseOptionalBody(c, &req); err != nil {
		return err
	}
	res, err := h.service.Reject(c.UserContext(), c.Params("id"), principal.SubjectID, req.Reason)
	return respond(c, res, err)
}

// Poll POST /v1/requests/:id/poll.
func (h *RequestsHandler) Poll(c *fiber.Ctx) error {
	res, err := h.service.PollOnce(c.UserContext(), c.Params("id"))
	return respond(c, res, err)
}

// SubmitFeedback POST /v1/requests/:id/feedback.
func (h *RequestsHandler) SubmitFeedback(c *fiber.Ctx) error {
	principal, err := requirePrincipal(c)
	if err != nil {
		return err
	}
	var req dto.FeedbackRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	res, err := h.service.SubmitFeedback(c.UserContext(), c.Params("id"), principal.SubjectID, req.Rating, req.Comments)
	return respond(c, res, err)
}

// SkipFeedback POST /v1/requests/:id/feedback/skip.
func (h *RequestsHandler) SkipFeedback(c *fiber.Ctx) error {
	principal, err := requirePrincipal(c)
	if err != nil {
		return err
	}
	res, err := h.service.SkipFeedback(c.UserContext(), c.Params("id"), principal.SubjectID)
	return respond(c, res, err)
}

func respond(c *fiber.Ctx, res *service.Result, err error) error {
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewResultResponse(res.Request, res.Notifications)})
}

func requirePrincipal(c *fiber.Ctx) (*auth.Principal, error) {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return nil, apperrors.NewUnauthorized("authentication required")
	}
	return principal, nil
}

func parseOptionalBody(c *fiber.Ctx, out any) error {
	if len(c.Body()) == 0 {
		return nil
	}
	if err := c.BodyParser(out); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	return nil
}
