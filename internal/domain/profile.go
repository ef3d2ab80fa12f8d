package domain

// AssigneeProfile holds per-assignee overrides for a workspace. Optional
// fields fall back to the workspace config when unset; an explicitly
// empty list means "none" rather than "use default".
type AssigneeProfile struct {
	CategoryID        Optional[string]   `json:"category_id"`
	ArchiveChannelID  Optional[string]   `json:"archive_channel_id"`
	NameFormat        Optional[string]   `json:"name_format"`
	Template          Optional[string]   `json:"template"`
	MentionRoleIDs    Optional[[]string] `json:"mention_role_ids"`
	EscalationRoleIDs Optional[[]string] `json:"escalation_role_ids"`
	IgnoreRoleIDs     Optional[[]string] `json:"ignore_role_ids"`
	Blacklist         []string           `json:"blacklist"`
	Attributes        map[string]int     `json:"attributes"`
	Timers            TimerSettings      `json:"timers"`
}

// Normalize fills nil collections after decoding.
func (p *AssigneeProfile) Normalize() {
	if p.Blacklist == nil {
		p.Blacklist = []string{}
	}
	if p.Attributes == nil {
		p.Attributes = map[string]int{}
	}
}

// Blocks reports whether the requester is on this assignee's blacklist.
func (p *AssigneeProfile) Blocks(requesterID string) bool {
	for _, id := range p.Blacklist {
		if id == requesterID {
			return true
		}
	}
	return false
}
