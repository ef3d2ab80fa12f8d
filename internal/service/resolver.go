package service

import (
	"time"

	"github.com/spec-kit/ticket-desk/internal/domain"
)

// ResolvedSettings is the effective per-ticket configuration after
// applying override precedence: profile value if set, else workspace
// value if set, else system default.
type ResolvedSettings struct {
	TimeoutHours      int
	AutoCloseDays     int
	AutoCloseEnabled  bool
	MaxSlots          int
	ReuseChannel      bool
	NotifyEnabled     bool
	MirrorCooldown    time.Duration
	CategoryID        string
	ArchiveChannelID  string
	NameFormat        string
	Template          string
	MentionRoleIDs    []string
	EscalationRoleIDs []string
	IgnoreRoleIDs     []string
}

// Resolve computes the effective settings for an assignee in a workspace.
// Pure function, no failure modes: absent keys were normalized to
// defaults when the documents were read.
func Resolve(cfg *domain.WorkspaceConfig, profile *domain.AssigneeProfile) ResolvedSettings {
	return ResolvedSettings{
		TimeoutHours:      resolveValue(profile.Timers.TimeoutHours, cfg.Timers.TimeoutHours, domain.DefaultTimeoutHours),
		AutoCloseDays:     resolveValue(profile.Timers.AutoCloseDays, cfg.Timers.AutoCloseDays, domain.DefaultAutoCloseDays),
		AutoCloseEnabled:  resolveValue(profile.Timers.AutoCloseEnabled, cfg.Timers.AutoCloseEnabled, domain.DefaultAutoCloseEnabled),
		MaxSlots:          resolveValue(profile.Timers.MaxSlots, cfg.Timers.MaxSlots, domain.DefaultMaxSlots),
		ReuseChannel:      resolveValue(profile.Timers.ReuseChannel, cfg.Timers.ReuseChannel, domain.DefaultReuseChannel),
		NotifyEnabled:     resolveValue(profile.Timers.NotifyEnabled, cfg.Timers.NotifyEnabled, domain.DefaultNotifyEnabled),
		MirrorCooldown:    time.Duration(resolveValue(profile.Timers.MirrorCooldownSec, cfg.Timers.MirrorCooldownSec, domain.DefaultMirrorCooldownSec)) * time.Second,
		CategoryID:        resolveString(profile.CategoryID, cfg.CategoryID, ""),
		ArchiveChannelID:  resolveString(profile.ArchiveChannelID, cfg.ArchiveChannelID, ""),
		NameFormat:        resolveString(profile.NameFormat, cfg.NameFormat, domain.DefaultNameFormat),
		Template:          resolveString(profile.Template, cfg.Template, ""),
		MentionRoleIDs:    resolveList(profile.MentionRoleIDs, cfg.MentionRoleIDs),
		EscalationRoleIDs: resolveList(profile.EscalationRoleIDs, cfg.EscalationRoleIDs),
		IgnoreRoleIDs:     resolveList(profile.IgnoreRoleIDs, cfg.IgnoreRoleIDs),
	}
}

// resolveValue applies profile-over-workspace-over-default precedence for
// scalar settings. An explicitly set profile value wins even when it
// equals the zero value.
func resolveValue[T any](profile, workspace domain.Optional[T], systemDefault T) T {
	if profile.IsSet() {
		return profile.Value()
	}
	return workspace.Or(systemDefault)
}

// resolveString treats an empty string as unset; references and
// templates have no meaningful explicit-empty state.
func resolveString(profile domain.Optional[string], workspace, systemDefault string) string {
	if profile.IsSet() && profile.Value() != "" {
		return profile.Value()
	}
	if workspace != "" {
		return workspace
	}
	return systemDefault
}

// resolveList keeps the unset/explicit-empty distinction: a profile list
// set to empty means "no roles", not "use the workspace default".
func resolveList(profile domain.Optional[[]string], workspace []string) []string {
	if profile.IsSet() {
		return append([]string{}, profile.Value()...)
	}
	return append([]string{}, workspace...)
}
