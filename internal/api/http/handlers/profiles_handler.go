package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/ticket-desk/internal/api/dto"
	"github.com/spec-kit/ticket-desk/internal/domain"
	"github.com/spec-kit/ticket-desk/internal/repository"
	"github.com/spec-kit/ticket-desk/internal/service"
	apperrors "github.com/spec-kit/ticket-desk/pkg/util"
)

// ProfilesHandler manages per-assignee overrides.
type ProfilesHandler struct {
	configs repository.ConfigRepository
}

// NewProfilesHandler constructs handler.
func NewProfilesHandler(configs repository.ConfigRepository) *ProfilesHandler {
	return &ProfilesHandler{configs: configs}
}

// Get GET /workspaces/:workspace/profiles/:member. Returns the stored
// overrides next to the resolved values so inherited settings are
// distinguishable from custom ones.
func (h *ProfilesHandler) Get(c *fiber.Ctx) error {
	cfg := h.configs.Get(c.Params("workspace"))
	return c.JSON(fiber.Map{"data": profileResponse(cfg, c.Params("member"))})
}

// Update PATCH /workspaces/:workspace/profiles/:member. Optionals in the
// payload distinguish "leave alone" from "clear the override": a null
// field is ignored, an explicit empty value stores an empty override.
func (h *ProfilesHandler) Update(c *fiber.Ctx) error {
	workspaceID := c.Params("workspace")
	memberID := c.Params("member")
	var req dto.UpdateProfileRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}

	cfg := h.configs.Get(workspaceID)
	profile := cfg.Profile(memberID)
	applyOptionalString(&profile.CategoryID, req.CategoryID)
	applyOptionalString(&profile.ArchiveChannelID, req.ArchiveChannelID)
	applyOptionalString(&profile.NameFormat, req.NameFormat)
	applyOptionalString(&profile.Template, req.Template)
	applyOptionalList(&profile.MentionRoleIDs, req.MentionRoleIDs)
	applyOptionalList(&profile.EscalationRoleIDs, req.EscalationRoleIDs)
	applyOptionalList(&profile.IgnoreRoleIDs, req.IgnoreRoleIDs)
	if req.Blacklist != nil {
		profile.Blacklist = append([]string{}, (*req.Blacklist)...)
	}
	for name, value := range req.Attributes {
		profile.Attributes[name] = value
	}
	if req.Timers != nil {
		profile.Timers = mergeTimers(profile.Timers, *req.Timers)
	}
	h.configs.Put(workspaceID, cfg)
	return c.JSON(fiber.Map{"data": profileResponse(cfg, memberID)})
}

func profileResponse(cfg *domain.WorkspaceConfig, memberID string) dto.ProfileResponse {
	profile := cfg.Profile(memberID)
	resolved := service.Resolve(cfg, profile)
	return dto.ProfileResponse{
		MemberID: memberID,
		Custom:   profile,
		Resolved: dto.ResolvedSettingsResponse{
			TimeoutHours:      resolved.TimeoutHours,
			AutoCloseDays:     resolved.AutoCloseDays,
			AutoCloseEnabled:  resolved.AutoCloseEnabled,
			MaxSlots:          resolved.MaxSlots,
			ReuseChannel:      resolved.ReuseChannel,
			NotifyEnabled:     resolved.NotifyEnabled,
			MirrorCooldownSec: int(resolved.MirrorCooldown.Seconds()),
			CategoryID:        resolved.CategoryID,
			ArchiveChannelID:  resolved.ArchiveChannelID,
			NameFormat:        resolved.NameFormat,
			Template:          resolved.Template,
			MentionRoleIDs:    resolved.MentionRoleIDs,
			EscalationRoleIDs: resolved.EscalationRoleIDs,
			IgnoreRoleIDs:     resolved.IgnoreRoleIDs,
		},
	}
}

func applyOptionalString(dst *domain.Optional[string], src *string) {
	if src != nil {
		*dst = domain.Some(*src)
	}
}

func applyOptionalList(dst *domain.Optional[[]string], src *[]string) {
	if src != nil {
		*dst = domain.Some(append([]string{}, (*src)...))
	}
}
