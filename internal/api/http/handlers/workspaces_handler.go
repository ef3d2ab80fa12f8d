package handlers

import (
	"sort"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/ticket-desk/internal/api/dto"
	"github.com/spec-kit/ticket-desk/internal/domain"
	"github.com/spec-kit/ticket-desk/internal/repository"
	"github.com/spec-kit/ticket-desk/internal/service"
	apperrors "github.com/spec-kit/ticket-desk/pkg/util"
)

// WorkspacesHandler manages workspace configuration and dashboards.
type WorkspacesHandler struct {
	configs repository.ConfigRepository
	timers  repository.TimerRepository
}

// NewWorkspacesHandler constructs handler.
func NewWorkspacesHandler(configs repository.ConfigRepository, timers repository.TimerRepository) *WorkspacesHandler {
	return &WorkspacesHandler{configs: configs, timers: timers}
}

// GetConfig GET /workspaces/:workspace/config.
func (h *WorkspacesHandler) GetConfig(c *fiber.Ctx) error {
	cfg := h.configs.Get(c.Params("workspace"))
	return c.JSON(fiber.Map{"data": cfg})
}

// Setup PATCH /workspaces/:workspace/config. Only fields present in the
// payload change; the rest keep their stored value.
func (h *WorkspacesHandler) Setup(c *fiber.Ctx) error {
	workspaceID := c.Params("workspace")
	var req dto.SetupWorkspaceRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}

	cfg := h.configs.Get(workspaceID)
	applyString(&cfg.AssigneeRoleID, req.AssigneeRoleID)
	applyString(&cfg.QualifiedRoleID, req.QualifiedRoleID)
	applyString(&cfg.CategoryID, req.CategoryID)
	applyString(&cfg.ArchiveChannelID, req.ArchiveChannelID)
	applyString(&cfg.NameFormat, req.NameFormat)
	applyString(&cfg.Template, req.Template)
	applyList(&cfg.MentionRoleIDs, req.MentionRoleIDs)
	applyList(&cfg.EscalationRoleIDs, req.EscalationRoleIDs)
	applyList(&cfg.IgnoreRoleIDs, req.IgnoreRoleIDs)
	if req.Timers != nil {
		cfg.Timers = mergeTimers(cfg.Timers, *req.Timers)
	}
	h.configs.Put(workspaceID, cfg)
	return c.JSON(fiber.Map{"data": cfg})
}

// UpsertAttribute PUT /workspaces/:workspace/attributes.
func (h *WorkspacesHandler) UpsertAttribute(c *fiber.Ctx) error {
	workspaceID := c.Params("workspace")
	var req dto.UpsertAttributeRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return apperrors.NewValidationError("name required", nil)
	}
	order := domain.SortOrder(req.Order)
	if order != domain.SortAscending && order != domain.SortDescending {
		return apperrors.NewValidationError("order must be asc or desc", nil)
	}

	cfg := h.configs.Get(workspaceID)
	cfg.Attributes[name] = domain.AttributeDef{Order: order}
	h.configs.Put(workspaceID, cfg)
	return c.JSON(fiber.Map{"data": dto.AttributeResponse{Name: name, Order: string(order)}})
}

// ListAttributes GET /workspaces/:workspace/attributes.
func (h *WorkspacesHandler) ListAttributes(c *fiber.Ctx) error {
	cfg := h.configs.Get(c.Params("workspace"))
	items := make([]dto.AttributeResponse, 0, len(cfg.Attributes))
	for name, def := range cfg.Attributes {
		items = append(items, dto.AttributeResponse{Name: name, Order: string(def.Order)})
	}
	sort.Slice(items, func(i, j int) bool { return items[i].Name < items[j].Name })
	return c.JSON(fiber.Map{"data": items})
}

// Dashboard GET /workspaces/:workspace/dashboard.
func (h *WorkspacesHandler) Dashboard(c *fiber.Ctx) error {
	workspaceID := c.Params("workspace")
	cfg := h.configs.Get(workspaceID)
	resp := dashboardResponse(workspaceID, cfg, h.timers.List(workspaceID))
	return c.JSON(fiber.Map{"data": resp})
}

// dashboardResponse aggregates the timer records into the workspace
// summary, including each assignee's open load against the resolved slot
// limit.
func dashboardResponse(workspaceID string, cfg *domain.WorkspaceConfig, records []*domain.TicketTimerRecord) dto.WorkspaceDashboardResponse {
	resp := dto.WorkspaceDashboardResponse{
		WorkspaceID: workspaceID,
		Assignees:   []dto.AssigneeLoadResponse{},
		Timers:      make([]dto.TimerRecordResponse, 0, len(records)),
	}
	loads := map[string]*dto.AssigneeLoadResponse{}
	for _, rec := range records {
		resp.Timers = append(resp.Timers, timerRecordResponse(rec))
		if len(rec.OpenTicketIDs) == 0 {
			continue
		}
		resp.OpenChannels++
		resp.OpenTickets += len(rec.OpenTicketIDs)

		load, ok := loads[rec.AssigneeID]
		if !ok {
			resolved := service.Resolve(cfg, cfg.Profile(rec.AssigneeID))
			load = &dto.AssigneeLoadResponse{AssigneeID: rec.AssigneeID, MaxSlots: resolved.MaxSlots}
			loads[rec.AssigneeID] = load
		}
		load.ActiveChannels++
		load.OpenTickets += len(rec.OpenTicketIDs)
	}

	assigneeIDs := make([]string, 0, len(loads))
	for id := range loads {
		assigneeIDs = append(assigneeIDs, id)
	}
	sort.Strings(assigneeIDs)
	for _, id := range assigneeIDs {
		resp.Assignees = append(resp.Assignees, *loads[id])
	}
	return resp
}

func timerRecordResponse(rec *domain.TicketTimerRecord) dto.TimerRecordResponse {
	return dto.TimerRecordResponse{
		ChannelID:       rec.ChannelID,
		AssigneeID:      rec.AssigneeID,
		RequesterID:     rec.RequesterID,
		State:           string(rec.State()),
		OpenTicketIDs:   rec.OpenTicketIDs,
		TimeoutHours:    rec.TimeoutHours,
		AutoCloseDays:   rec.AutoCloseDays,
		CreatedAt:       rec.CreatedAt,
		LastActivityAt:  rec.LastActivityAt,
		ArchiveThreadID: rec.ArchiveThreadID,
	}
}

func applyString(dst *string, src *string) {
	if src != nil {
		*dst = *src
	}
}

func applyList(dst *[]string, src *[]string) {
	if src != nil {
		*dst = append([]string{}, *src...)
	}
}

// mergeTimers overlays set fields from the update onto the stored
// settings; unset fields keep their stored state.
func mergeTimers(stored, update domain.TimerSettings) domain.TimerSettings {
	if update.TimeoutHours.IsSet() {
		stored.TimeoutHours = update.TimeoutHours
	}
	if update.AutoCloseDays.IsSet() {
		stored.AutoCloseDays = update.AutoCloseDays
	}
	if update.AutoCloseEnabled.IsSet() {
		stored.AutoCloseEnabled = update.AutoCloseEnabled
	}
	if update.MaxSlots.IsSet() {
		stored.MaxSlots = update.MaxSlots
	}
	if update.ReuseChannel.IsSet() {
		stored.ReuseChannel = update.ReuseChannel
	}
	if update.NotifyEnabled.IsSet() {
		stored.NotifyEnabled = update.NotifyEnabled
	}
	if update.MirrorCooldownSec.IsSet() {
		stored.MirrorCooldownSec = update.MirrorCooldownSec
	}
	return stored
}
