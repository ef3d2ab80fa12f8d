package dto

import (
	"time"

	"github.com/spec-kit/ticket-desk/internal/domain"
)

// SetupWorkspaceRequest carries a partial workspace configuration update.
// Omitted fields keep their stored value; optionals distinguish omitted
// from explicitly cleared.
type SetupWorkspaceRequest struct {
	AssigneeRoleID    *string               `json:"assignee_role_id"`
	QualifiedRoleID   *string               `json:"qualified_role_id"`
	CategoryID        *string               `json:"category_id"`
	ArchiveChannelID  *string               `json:"archive_channel_id"`
	NameFormat        *string               `json:"name_format"`
	Template          *string               `json:"template"`
	MentionRoleIDs    *[]string             `json:"mention_role_ids"`
	EscalationRoleIDs *[]string             `json:"escalation_role_ids"`
	IgnoreRoleIDs     *[]string             `json:"ignore_role_ids"`
	Timers            *domain.TimerSettings `json:"timers"`
}

// UpsertAttributeRequest registers a ranked attribute.
type UpsertAttributeRequest struct {
	Name  string `json:"name"`
	Order string `json:"order"`
}

// AttributeResponse is one registered attribute.
type AttributeResponse struct {
	Name  string `json:"name"`
	Order string `json:"order"`
}

// UpdateProfileRequest carries a partial per-assignee override update.
type UpdateProfileRequest struct {
	CategoryID        *string               `json:"category_id"`
	ArchiveChannelID  *string               `json:"archive_channel_id"`
	NameFormat        *string               `json:"name_format"`
	Template          *string               `json:"template"`
	MentionRoleIDs    *[]string             `json:"mention_role_ids"`
	EscalationRoleIDs *[]string             `json:"escalation_role_ids"`
	IgnoreRoleIDs     *[]string             `json:"ignore_role_ids"`
	Blacklist         *[]string             `json:"blacklist"`
	Attributes        map[string]int        `json:"attributes"`
	Timers            *domain.TimerSettings `json:"timers"`
}

// WorkspaceDashboardResponse summarizes the workspace ticket state.
type WorkspaceDashboardResponse struct {
	WorkspaceID  string                 `json:"workspace_id"`
	OpenChannels int                    `json:"open_channels"`
	OpenTickets  int                    `json:"open_tickets"`
	Assignees    []AssigneeLoadResponse `json:"assignees"`
	Timers       []TimerRecordResponse  `json:"timers"`
}

// AssigneeLoadResponse is one assignee's open load against the resolved
// slot limit. The limit applies per (assignee, requester) pair when
// accepting; here it is shown next to the assignee's total.
type AssigneeLoadResponse struct {
	AssigneeID     string `json:"assignee_id"`
	ActiveChannels int    `json:"active_channels"`
	OpenTickets    int    `json:"open_tickets"`
	MaxSlots       int    `json:"max_slots"`
}

// ResolvedSettingsResponse is the effective configuration after override
// precedence, alongside the raw overrides in ProfileResponse.
type ResolvedSettingsResponse struct {
	TimeoutHours      int      `json:"timeout_hours"`
	AutoCloseDays     int      `json:"auto_close_days"`
	AutoCloseEnabled  bool     `json:"auto_close_enabled"`
	MaxSlots          int      `json:"max_slots"`
	ReuseChannel      bool     `json:"reuse_channel"`
	NotifyEnabled     bool     `json:"notify_enabled"`
	MirrorCooldownSec int      `json:"mirror_cooldown_sec"`
	CategoryID        string   `json:"category_id,omitempty"`
	ArchiveChannelID  string   `json:"archive_channel_id,omitempty"`
	NameFormat        string   `json:"name_format"`
	Template          string   `json:"template,omitempty"`
	MentionRoleIDs    []string `json:"mention_role_ids"`
	EscalationRoleIDs []string `json:"escalation_role_ids"`
	IgnoreRoleIDs     []string `json:"ignore_role_ids"`
}

// ProfileResponse pairs the stored overrides with the resolved values so
// a client can tell a custom setting from an inherited one.
type ProfileResponse struct {
	MemberID string                   `json:"member_id"`
	Custom   *domain.AssigneeProfile  `json:"custom"`
	Resolved ResolvedSettingsResponse `json:"resolved"`
}

// TimerRecordResponse is the externalized timer record.
type TimerRecordResponse struct {
	ChannelID       string    `json:"channel_id"`
	AssigneeID      string    `json:"assignee_id"`
	RequesterID     string    `json:"requester_id"`
	State           string    `json:"state"`
	OpenTicketIDs   []string  `json:"open_ticket_ids"`
	TimeoutHours    int       `json:"timeout_hours"`
	AutoCloseDays   int       `json:"auto_close_days"`
	CreatedAt       time.Time `json:"created_at"`
	LastActivityAt  time.Time `json:"last_activity_at"`
	ArchiveThreadID string    `json:"archive_thread_id,omitempty"`
}
