package service

import (
	"testing"
	"time"

	"github.com/spec-kit/ticket-desk/internal/domain"
)

func TestResolveSystemDefaults(t *testing.T) {
	cfg := domain.NewWorkspaceConfig()
	resolved := Resolve(cfg, cfg.Profile("asg"))

	if resolved.TimeoutHours != domain.DefaultTimeoutHours {
		t.Errorf("TimeoutHours = %d, want %d", resolved.TimeoutHours, domain.DefaultTimeoutHours)
	}
	if resolved.AutoCloseDays != domain.DefaultAutoCloseDays {
		t.Errorf("AutoCloseDays = %d, want %d", resolved.AutoCloseDays, domain.DefaultAutoCloseDays)
	}
	if resolved.MaxSlots != domain.DefaultMaxSlots {
		t.Errorf("MaxSlots = %d, want %d", resolved.MaxSlots, domain.DefaultMaxSlots)
	}
	if resolved.ReuseChannel {
		t.Error("ReuseChannel defaulted to true")
	}
	if !resolved.NotifyEnabled || !resolved.AutoCloseEnabled {
		t.Error("notify/auto-close should default enabled")
	}
	if resolved.MirrorCooldown != time.Duration(domain.DefaultMirrorCooldownSec)*time.Second {
		t.Errorf("MirrorCooldown = %s", resolved.MirrorCooldown)
	}
	if resolved.NameFormat != domain.DefaultNameFormat {
		t.Errorf("NameFormat = %q", resolved.NameFormat)
	}
}

func TestResolveProfileOverWorkspace(t *testing.T) {
	cfg := domain.NewWorkspaceConfig()
	cfg.Timers.TimeoutHours = domain.Some(24)
	cfg.Timers.MaxSlots = domain.Some(5)
	profile := cfg.Profile("asg")
	profile.Timers.TimeoutHours = domain.Some(6)

	resolved := Resolve(cfg, profile)
	if resolved.TimeoutHours != 6 {
		t.Errorf("profile override lost: TimeoutHours = %d", resolved.TimeoutHours)
	}
	if resolved.MaxSlots != 5 {
		t.Errorf("workspace value lost: MaxSlots = %d", resolved.MaxSlots)
	}
}

func TestResolveExplicitZeroWins(t *testing.T) {
	cfg := domain.NewWorkspaceConfig()
	cfg.Timers.NotifyEnabled = domain.Some(true)
	profile := cfg.Profile("asg")
	profile.Timers.NotifyEnabled = domain.Some(false)

	resolved := Resolve(cfg, profile)
	if resolved.NotifyEnabled {
		t.Error("explicit false on profile should win over workspace true")
	}
}

func TestResolveExplicitEmptyList(t *testing.T) {
	cfg := domain.NewWorkspaceConfig()
	cfg.MentionRoleIDs = []string{"role-a", "role-b"}
	profile := cfg.Profile("asg")
	profile.MentionRoleIDs = domain.Some([]string{})

	resolved := Resolve(cfg, profile)
	if len(resolved.MentionRoleIDs) != 0 {
		t.Errorf("explicit empty override lost: %v", resolved.MentionRoleIDs)
	}

	// An unset profile list falls through to the workspace.
	other := cfg.Profile("other")
	resolved = Resolve(cfg, other)
	if len(resolved.MentionRoleIDs) != 2 {
		t.Errorf("workspace list lost: %v", resolved.MentionRoleIDs)
	}
}

func TestResolveEmptyStringFallsThrough(t *testing.T) {
	cfg := domain.NewWorkspaceConfig()
	cfg.CategoryID = "cat-ws"
	profile := cfg.Profile("asg")
	profile.CategoryID = domain.Some("")

	resolved := Resolve(cfg, profile)
	if resolved.CategoryID != "cat-ws" {
		t.Errorf("empty string reference should fall through, got %q", resolved.CategoryID)
	}
}
