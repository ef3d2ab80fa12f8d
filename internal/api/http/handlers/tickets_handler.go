package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/ticket-desk/internal/api/dto"
	"github.com/spec-kit/ticket-desk/internal/auth"
	"github.com/spec-kit/ticket-desk/internal/platform"
	"github.com/spec-kit/ticket-desk/internal/service"
	apperrors "github.com/spec-kit/ticket-desk/pkg/util"
)

// TicketsHandler exposes the ticket lifecycle operations.
type TicketsHandler struct {
	lifecycle *service.LifecycleManager
	selector  *service.AssignmentSelector
	platform  platform.Client
}

// NewTicketsHandler constructs handler.
func NewTicketsHandler(lifecycle *service.LifecycleManager, selector *service.AssignmentSelector, platformClient platform.Client) *TicketsHandler {
	return &TicketsHandler{lifecycle: lifecycle, selector: selector, platform: platformClient}
}

// CreateTicket POST /workspaces/:workspace/tickets. The assignee is
// validated through the acceptance checks before any channel is
// provisioned.
func (h *TicketsHandler) CreateTicket(c *fiber.Ctx) error {
	workspaceID := c.Params("workspace")
	var req dto.CreateTicketRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if req.AssigneeID == "" || strings.TrimSpace(req.Title) == "" {
		return apperrors.NewValidationError("assignee_id and title required", nil)
	}
	requesterID := req.RequesterID
	if requesterID == "" {
		principal, ok := auth.PrincipalFromContext(c)
		if !ok {
			return apperrors.NewUnauthorized("requester unknown")
		}
		requesterID = principal.MemberID
	}

	assignee, err := h.platform.Member(c.UserContext(), workspaceID, req.AssigneeID)
	if err != nil {
		if errors.Is(err, platform.ErrNotFound) {
			return apperrors.NewNotFound("member", map[string]any{"member_id": req.AssigneeID})
		}
		return apperrors.MapError(err)
	}
	if reason, rejected := h.selector.CheckAccept(c.UserContext(), workspaceID, assignee, requesterID); rejected {
		return service.RejectionError(reason, req.AssigneeID)
	}

	created, err := h.lifecycle.CreateTicket(c.UserContext(), workspaceID, requesterID, req.AssigneeID, service.TicketFields{
		Title:         req.Title,
		RequesterName: req.RequesterName,
		Kind:          req.Kind,
		Deadline:      req.Deadline,
		Budget:        req.Budget,
		Notes:         req.Notes,
	})
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": dto.CreateTicketResponse{
		ChannelID:    created.Channel.ID,
		ChannelName:  created.Channel.Name,
		TicketID:     created.TicketID,
		ReusedChan:   created.ReusedChan,
		ThreadFailed: created.ThreadFailed,
	}})
}

// RecordActivity POST /workspaces/:workspace/channels/:channel/activity.
func (h *TicketsHandler) RecordActivity(c *fiber.Ctx) error {
	var req dto.ActivityRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if req.AuthorID == "" {
		return apperrors.NewValidationError("author_id required", nil)
	}
	if err := h.lifecycle.RecordActivity(c.UserContext(), c.Params("workspace"), c.Params("channel"), req.AuthorID, req.Content); err != nil {
		return err
	}
	return c.SendStatus(http.StatusNoContent)
}

// CloseTicket POST /workspaces/:workspace/channels/:channel/close.
func (h *TicketsHandler) CloseTicket(c *fiber.Ctx) error {
	if err := h.lifecycle.CloseTicket(c.UserContext(), c.Params("workspace"), c.Params("channel"), actorID(c)); err != nil {
		return err
	}
	return c.SendStatus(http.StatusNoContent)
}

// ReopenTicket POST /workspaces/:workspace/channels/:channel/reopen.
func (h *TicketsHandler) ReopenTicket(c *fiber.Ctx) error {
	var req dto.ReopenTicketRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if req.TicketID == "" {
		return apperrors.NewValidationError("ticket_id required", nil)
	}
	if err := h.lifecycle.ReopenTicket(c.UserContext(), c.Params("workspace"), c.Params("channel"), req.TicketID, actorID(c)); err != nil {
		return err
	}
	return c.SendStatus(http.StatusNoContent)
}

// Extend POST /workspaces/:workspace/channels/:channel/extend.
func (h *TicketsHandler) Extend(c *fiber.Ctx) error {
	if err := h.lifecycle.Extend(c.UserContext(), c.Params("workspace"), c.Params("channel"), actorID(c)); err != nil {
		return err
	}
	return c.SendStatus(http.StatusNoContent)
}

// OverrideTimer PUT /workspaces/:workspace/channels/:channel/timer.
func (h *TicketsHandler) OverrideTimer(c *fiber.Ctx) error {
	var req dto.OverrideTimerRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if err := h.lifecycle.OverrideTimer(c.UserContext(), c.Params("workspace"), c.Params("channel"), req.TimeoutHours, req.AutoCloseDays); err != nil {
		return err
	}
	return c.SendStatus(http.StatusNoContent)
}

// DeleteChannel DELETE /workspaces/:workspace/channels/:channel.
func (h *TicketsHandler) DeleteChannel(c *fiber.Ctx) error {
	if err := h.lifecycle.DeleteTicketChannel(c.UserContext(), c.Params("workspace"), c.Params("channel"), actorID(c)); err != nil {
		return err
	}
	return c.SendStatus(http.StatusNoContent)
}

// LinkChannel POST /workspaces/:workspace/channels/:channel/link.
func (h *TicketsHandler) LinkChannel(c *fiber.Ctx) error {
	var req dto.LinkChannelRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if err := h.lifecycle.LinkChannel(c.UserContext(), c.Params("workspace"), c.Params("channel"), req.AssigneeID, req.RequesterID, req.ThreadID, req.CreateThread); err != nil {
		return err
	}
	return c.SendStatus(http.StatusNoContent)
}

// Recover POST /workspaces/:workspace/recover.
func (h *TicketsHandler) Recover(c *fiber.Ctx) error {
	var req dto.RecoverRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if req.CategoryID == "" {
		return apperrors.NewValidationError("category_id required", nil)
	}
	recovered, err := h.lifecycle.Recover(c.UserContext(), c.Params("workspace"), req.CategoryID, req.DryRun)
	if err != nil {
		return err
	}
	items := make([]dto.RecoveredChannelResponse, 0, len(recovered))
	for _, rc := range recovered {
		items = append(items, dto.RecoveredChannelResponse{
			ChannelID:   rc.ChannelID,
			ChannelName: rc.ChannelName,
			AssigneeID:  rc.AssigneeID,
			RequesterID: rc.RequesterID,
		})
	}
	return c.JSON(fiber.Map{"data": items, "dry_run": req.DryRun})
}

// ListEligible GET /workspaces/:workspace/eligible?sort_by=attribute.
func (h *TicketsHandler) ListEligible(c *fiber.Ctx) error {
	candidates, err := h.selector.ListEligible(c.UserContext(), c.Params("workspace"), c.Query("sort_by"))
	if err != nil {
		return err
	}
	items := make([]dto.EligibleAssigneeResponse, 0, len(candidates))
	for _, cand := range candidates {
		items = append(items, dto.EligibleAssigneeResponse{
			MemberID:     cand.Member.ID,
			Name:         cand.Member.Name,
			Available:    cand.Available,
			RankValue:    cand.RankValue,
			HasRankValue: cand.HasRankValue,
		})
	}
	return c.JSON(fiber.Map{"data": items})
}

// ToggleAvailability POST /workspaces/:workspace/members/:member/availability.
func (h *TicketsHandler) ToggleAvailability(c *fiber.Ctx) error {
	available, err := h.lifecycle.ToggleAvailability(c.UserContext(), c.Params("workspace"), c.Params("member"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": fiber.Map{"available": available}})
}

func actorID(c *fiber.Ctx) string {
	if principal, ok := auth.PrincipalFromContext(c); ok {
		return principal.MemberID
	}
	return ""
}
