package service

import (
	"context"
	"fmt"
	"sort"

	"github.com/spec-kit/ticket-desk/internal/domain"
	"github.com/spec-kit/ticket-desk/internal/platform"
	"github.com/spec-kit/ticket-desk/internal/repository"
	apperrors "github.com/spec-kit/ticket-desk/pkg/util"
)

// RejectionReason enumerates why an assignee may not accept a ticket.
type RejectionReason string

const (
	RejectUnavailable   RejectionReason = "UNAVAILABLE"
	RejectNotConfigured RejectionReason = "NOT_CONFIGURED"
	RejectBlocked       RejectionReason = "BLOCKED"
	RejectQuotaExceeded RejectionReason = "QUOTA_EXCEEDED"
)

// missingRankSentinel is the score forced onto assignees without the
// sort attribute in ascending mode, so "no data" sorts after "has data"
// in both directions.
const missingRankSentinel = 99_999_999

// Candidate is one eligible assignee with its ranking value.
type Candidate struct {
	Member       *platform.Member
	RankValue    int
	HasRankValue bool
	Available    bool
}

// AssignmentSelector enumerates eligible assignees and validates whether
// a specific assignee may accept a new ticket.
type AssignmentSelector struct {
	configs  repository.ConfigRepository
	counter  repository.OpenTicketCounter
	platform platform.Client
}

// SelectorDependencies bundles collaborators for the selector.
type SelectorDependencies struct {
	ConfigRepo repository.ConfigRepository
	Counter    repository.OpenTicketCounter
	Platform   platform.Client
}

// NewAssignmentSelector creates the selector.
func NewAssignmentSelector(deps SelectorDependencies) *AssignmentSelector {
	return &AssignmentSelector{
		configs:  deps.ConfigRepo,
		counter:  deps.Counter,
		platform: deps.Platform,
	}
}

// ListEligible returns assignees holding the eligibility or qualified
// role, ranked by the named attribute when given. Assignees missing the
// attribute always sort after those that have it; ties keep enumeration
// order.
func (s *AssignmentSelector) ListEligible(ctx context.Context, workspaceID, sortAttribute string) ([]Candidate, error) {
	cfg := s.configs.Get(workspaceID)
	if cfg.AssigneeRoleID == "" && cfg.QualifiedRoleID == "" {
		return []Candidate{}, nil
	}

	members, err := s.eligibleMembers(ctx, workspaceID, cfg)
	if err != nil {
		return nil, err
	}

	candidates := make([]Candidate, 0, len(members))
	for _, member := range members {
		if member.Bot {
			continue
		}
		c := Candidate{
			Member:    member,
			Available: cfg.AssigneeRoleID != "" && member.HasRole(cfg.AssigneeRoleID),
		}
		if sortAttribute != "" {
			profile := cfg.Profile(member.ID)
			if val, ok := profile.Attributes[sortAttribute]; ok {
				c.RankValue = val
				c.HasRankValue = true
			} else if cfg.AttributeOrder(sortAttribute) == domain.SortAscending {
				c.RankValue = missingRankSentinel
			}
		}
		candidates = append(candidates, c)
	}

	if sortAttribute != "" {
		ascending := cfg.AttributeOrder(sortAttribute) == domain.SortAscending
		sort.SliceStable(candidates, func(i, j int) bool {
			a, b := candidates[i], candidates[j]
			if a.HasRankValue != b.HasRankValue {
				return a.HasRankValue
			}
			if ascending {
				return a.RankValue < b.RankValue
			}
			return a.RankValue > b.RankValue
		})
	}
	return candidates, nil
}

// CheckAccept validates whether the assignee may take a new ticket from
// the requester. The rejection order is fixed: Unavailable, then
// NotConfigured, then Blocked, then QuotaExceeded.
func (s *AssignmentSelector) CheckAccept(ctx context.Context, workspaceID string, assignee *platform.Member, requesterID string) (RejectionReason, bool) {
	cfg := s.configs.Get(workspaceID)
	if cfg.AssigneeRoleID != "" && !assignee.HasRole(cfg.AssigneeRoleID) {
		return RejectUnavailable, true
	}

	profile := cfg.Profile(assignee.ID)
	hasCategory := resolveString(profile.CategoryID, cfg.CategoryID, "") != ""
	if !hasCategory && len(profile.Attributes) == 0 {
		return RejectNotConfigured, true
	}

	if profile.Blocks(requesterID) {
		return RejectBlocked, true
	}

	maxSlots := resolveValue(profile.Timers.MaxSlots, cfg.Timers.MaxSlots, domain.DefaultMaxSlots)
	if s.counter.CountOpen(workspaceID, assignee.ID, requesterID) >= maxSlots {
		return RejectQuotaExceeded, true
	}
	return "", false
}

// RejectionError wraps a rejection reason as a surfaced DomainError.
func RejectionError(reason RejectionReason, assigneeID string) error {
	return apperrors.NewEligibilityRejected(
		fmt.Sprintf("assignee cannot accept ticket: %s", reason),
		map[string]any{"reason": string(reason), "assignee_id": assigneeID},
	)
}

func (s *AssignmentSelector) eligibleMembers(ctx context.Context, workspaceID string, cfg *domain.WorkspaceConfig) ([]*platform.Member, error) {
	seen := map[string]bool{}
	members := []*platform.Member{}
	for _, roleID := range []string{cfg.AssigneeRoleID, cfg.QualifiedRoleID} {
		if roleID == "" {
			continue
		}
		withRole, err := s.platform.MembersWithRole(ctx, workspaceID, roleID)
		if err != nil {
			return nil, platformError("list role members", err)
		}
		for _, member := range withRole {
			if seen[member.ID] {
				continue
			}
			seen[member.ID] = true
			members = append(members, member)
		}
	}
	return members, nil
}
