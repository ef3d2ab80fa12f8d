package domain

// System defaults applied when neither a profile nor the workspace
// configures a timer value.
const (
	DefaultTimeoutHours      = 48
	DefaultAutoCloseDays     = 60
	DefaultMaxSlots          = 3
	DefaultReuseChannel      = false
	DefaultNotifyEnabled     = true
	DefaultAutoCloseEnabled  = true
	DefaultMirrorCooldownSec = 300
	DefaultNameFormat        = "{creator}"
)

// SortOrder is the registered ranking direction of a named attribute.
type SortOrder string

const (
	SortAscending  SortOrder = "asc"
	SortDescending SortOrder = "desc"
)

// AttributeDef registers a named numeric attribute used for ranked
// assignment.
type AttributeDef struct {
	Order SortOrder `json:"order"`
}

// TimerSettings is the timer-relevant subset shared by workspace defaults
// and per-assignee overrides. Every field is a tagged optional: unset
// falls through to the next layer, explicit values (including explicit
// zero) win.
type TimerSettings struct {
	TimeoutHours      Optional[int]  `json:"timeout_hours"`
	AutoCloseDays     Optional[int]  `json:"auto_close_days"`
	AutoCloseEnabled  Optional[bool] `json:"auto_close_enabled"`
	MaxSlots          Optional[int]  `json:"max_slots"`
	ReuseChannel      Optional[bool] `json:"reuse_channel"`
	NotifyEnabled     Optional[bool] `json:"notify_enabled"`
	MirrorCooldownSec Optional[int]  `json:"mirror_cooldown_sec"`
}

// WorkspaceConfig is the per-workspace ticket configuration, profiles
// nested within. List and map fields are normalized to empty, never nil,
// once loaded.
type WorkspaceConfig struct {
	AssigneeRoleID    string                      `json:"assignee_role_id,omitempty"`
	QualifiedRoleID   string                      `json:"qualified_role_id,omitempty"`
	CategoryID        string                      `json:"category_id,omitempty"`
	ArchiveChannelID  string                      `json:"archive_channel_id,omitempty"`
	NameFormat        string                      `json:"name_format,omitempty"`
	Template          string                      `json:"template,omitempty"`
	MentionRoleIDs    []string                    `json:"mention_role_ids"`
	EscalationRoleIDs []string                    `json:"escalation_role_ids"`
	IgnoreRoleIDs     []string                    `json:"ignore_role_ids"`
	Attributes        map[string]AttributeDef     `json:"attributes"`
	Timers            TimerSettings               `json:"timers"`
	Profiles          map[string]*AssigneeProfile `json:"profiles"`
}

// NewWorkspaceConfig returns an empty, normalized configuration.
func NewWorkspaceConfig() *WorkspaceConfig {
	cfg := &WorkspaceConfig{}
	cfg.Normalize()
	return cfg
}

// Normalize fills nil collections so callers never see absent fields.
// Unknown keys in stored documents are dropped by decoding; missing keys
// land here as zero values and get defaulted, so reads never fail on
// schema drift.
func (c *WorkspaceConfig) Normalize() {
	if c.MentionRoleIDs == nil {
		c.MentionRoleIDs = []string{}
	}
	if c.EscalationRoleIDs == nil {
		c.EscalationRoleIDs = []string{}
	}
	if c.IgnoreRoleIDs == nil {
		c.IgnoreRoleIDs = []string{}
	}
	if c.Attributes == nil {
		c.Attributes = map[string]AttributeDef{}
	}
	if c.Profiles == nil {
		c.Profiles = map[string]*AssigneeProfile{}
	}
	for _, p := range c.Profiles {
		p.Normalize()
	}
}

// Profile returns the profile for the assignee, creating a normalized
// empty one on first access.
func (c *WorkspaceConfig) Profile(assigneeID string) *AssigneeProfile {
	p, ok := c.Profiles[assigneeID]
	if !ok {
		p = &AssigneeProfile{}
		p.Normalize()
		c.Profiles[assigneeID] = p
	}
	return p
}

// AttributeOrder returns the registered sort order for the named
// attribute, defaulting to descending like unregistered attributes.
func (c *WorkspaceConfig) AttributeOrder(name string) SortOrder {
	if def, ok := c.Attributes[name]; ok && def.Order == SortAscending {
		return SortAscending
	}
	return SortDescending
}
