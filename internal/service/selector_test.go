package service

import (
	"context"
	"testing"

	"github.com/spec-kit/ticket-desk/internal/domain"
)

const (
	wsID         = "ws-1"
	availRole    = "role-avail"
	qualRole     = "role-qual"
	testCategory = "cat-1"
)

func selectorEnv(t *testing.T) *testEnv {
	t.Helper()
	env := newTestEnv(t)
	env.putConfig(wsID, func(cfg *domain.WorkspaceConfig) {
		cfg.AssigneeRoleID = availRole
		cfg.QualifiedRoleID = qualRole
		cfg.CategoryID = testCategory
	})
	return env
}

func TestListEligibleEmptyWithoutRoles(t *testing.T) {
	env := newTestEnv(t)
	env.platform.addMember("m1", "alice", "some-role")

	candidates, err := env.selector.ListEligible(context.Background(), wsID, "")
	if err != nil {
		t.Fatalf("ListEligible: %v", err)
	}
	if len(candidates) != 0 {
		t.Errorf("expected no candidates without configured roles, got %d", len(candidates))
	}
}

func TestListEligibleRanking(t *testing.T) {
	env := selectorEnv(t)
	env.platform.addMember("a", "alice", availRole)
	env.platform.addMember("b", "bob", availRole)
	env.platform.addMember("c", "carol", qualRole)

	env.putConfig(wsID, func(cfg *domain.WorkspaceConfig) {
		cfg.Attributes["price"] = domain.AttributeDef{Order: domain.SortAscending}
		cfg.Profile("a").Attributes["price"] = 50
		cfg.Profile("b").Attributes["price"] = 10
		// carol has no price attribute.
	})

	candidates, err := env.selector.ListEligible(context.Background(), wsID, "price")
	if err != nil {
		t.Fatalf("ListEligible: %v", err)
	}
	if len(candidates) != 3 {
		t.Fatalf("candidates = %d, want 3", len(candidates))
	}
	if candidates[0].Member.ID != "b" || candidates[1].Member.ID != "a" {
		t.Errorf("ascending order wrong: %s, %s", candidates[0].Member.ID, candidates[1].Member.ID)
	}
	if candidates[2].Member.ID != "c" || candidates[2].HasRankValue {
		t.Errorf("missing-attribute candidate must sort last: %+v", candidates[2])
	}
	if !candidates[0].Available || candidates[2].Available {
		t.Error("availability flags wrong")
	}
}

func TestListEligibleDescendingMissingLast(t *testing.T) {
	env := selectorEnv(t)
	env.platform.addMember("a", "alice", availRole)
	env.platform.addMember("b", "bob", availRole)
	env.putConfig(wsID, func(cfg *domain.WorkspaceConfig) {
		cfg.Profile("b").Attributes["rating"] = 3
	})

	candidates, err := env.selector.ListEligible(context.Background(), wsID, "rating")
	if err != nil {
		t.Fatalf("ListEligible: %v", err)
	}
	if candidates[0].Member.ID != "b" {
		t.Errorf("has-value candidate must sort first in desc mode, got %s", candidates[0].Member.ID)
	}
}

func TestCheckAcceptRejectionOrder(t *testing.T) {
	env := selectorEnv(t)
	// alice holds only the qualified role, is unconfigured, blacklists the
	// requester, and is at quota. Unavailability must win.
	env.platform.addMember("alice", "alice", qualRole)

	env.putConfig(wsID, func(cfg *domain.WorkspaceConfig) {
		cfg.CategoryID = ""
		cfg.Profile("alice").Blacklist = []string{"req"}
	})

	member, _ := env.platform.Member(context.Background(), wsID, "alice")
	reason, rejected := env.selector.CheckAccept(context.Background(), wsID, member, "req")
	if !rejected || reason != RejectUnavailable {
		t.Fatalf("reason = %s, want %s", reason, RejectUnavailable)
	}

	// Grant availability; not-configured is next.
	env.platform.addMember("alice", "alice", availRole)
	member, _ = env.platform.Member(context.Background(), wsID, "alice")
	reason, rejected = env.selector.CheckAccept(context.Background(), wsID, member, "req")
	if !rejected || reason != RejectNotConfigured {
		t.Fatalf("reason = %s, want %s", reason, RejectNotConfigured)
	}

	// Configure a category; the blacklist fires next.
	env.putConfig(wsID, func(cfg *domain.WorkspaceConfig) {
		cfg.CategoryID = testCategory
	})
	reason, rejected = env.selector.CheckAccept(context.Background(), wsID, member, "req")
	if !rejected || reason != RejectBlocked {
		t.Fatalf("reason = %s, want %s", reason, RejectBlocked)
	}

	// A different requester passes.
	if reason, rejected := env.selector.CheckAccept(context.Background(), wsID, member, "other"); rejected {
		t.Fatalf("unexpected rejection: %s", reason)
	}
}

func TestCheckAcceptQuotaBoundary(t *testing.T) {
	env := selectorEnv(t)
	env.platform.addMember("alice", "alice", availRole)
	env.putConfig(wsID, func(cfg *domain.WorkspaceConfig) {
		cfg.Timers.MaxSlots = domain.Some(2)
	})

	for _, channelID := range []string{"ch-1", "ch-2"} {
		env.timers.Put(&domain.TicketTimerRecord{
			WorkspaceID:   wsID,
			ChannelID:     channelID,
			AssigneeID:    "alice",
			RequesterID:   "req",
			OpenTicketIDs: []string{"m"},
		})
	}

	member, _ := env.platform.Member(context.Background(), wsID, "alice")
	reason, rejected := env.selector.CheckAccept(context.Background(), wsID, member, "req")
	if !rejected || reason != RejectQuotaExceeded {
		t.Fatalf("at quota: reason = %s, want %s", reason, RejectQuotaExceeded)
	}

	// A different requester has its own quota.
	if reason, rejected := env.selector.CheckAccept(context.Background(), wsID, member, "other"); rejected {
		t.Fatalf("per-pair quota leaked across requesters: %s", reason)
	}

	// Closing one channel frees a slot.
	rec, _ := env.timers.Get(wsID, "ch-1")
	rec.OpenTicketIDs = []string{}
	env.timers.Put(rec)
	if reason, rejected := env.selector.CheckAccept(context.Background(), wsID, member, "req"); rejected {
		t.Fatalf("below quota still rejected: %s", reason)
	}
}
