package handlers

import (
	"testing"

	"github.com/spec-kit/ticket-desk/internal/domain"
)

func TestDashboardAggregatesAssigneeLoads(t *testing.T) {
	cfg := domain.NewWorkspaceConfig()
	cfg.Profile("asg-2").Timers.MaxSlots = domain.Some(5)
	records := []*domain.TicketTimerRecord{
		{ChannelID: "c1", AssigneeID: "asg-1", RequesterID: "r1", OpenTicketIDs: []string{"t1"}},
		{ChannelID: "c2", AssigneeID: "asg-1", RequesterID: "r2", OpenTicketIDs: []string{"t2", "t3"}},
		{ChannelID: "c3", AssigneeID: "asg-2", RequesterID: "r1", OpenTicketIDs: []string{"t4"}},
		{ChannelID: "c4", AssigneeID: "asg-2", RequesterID: "r3", OpenTicketIDs: []string{}},
	}

	resp := dashboardResponse("ws-1", cfg, records)

	if resp.OpenChannels != 3 || resp.OpenTickets != 4 {
		t.Errorf("open = (%d channels, %d tickets), want (3, 4)", resp.OpenChannels, resp.OpenTickets)
	}
	if len(resp.Timers) != 4 {
		t.Errorf("timers = %d, want 4", len(resp.Timers))
	}
	if len(resp.Assignees) != 2 {
		t.Fatalf("assignees = %d, want 2", len(resp.Assignees))
	}

	first := resp.Assignees[0]
	if first.AssigneeID != "asg-1" || first.ActiveChannels != 2 || first.OpenTickets != 3 {
		t.Errorf("asg-1 load = %+v", first)
	}
	if first.MaxSlots != domain.DefaultMaxSlots {
		t.Errorf("asg-1 max slots = %d, want default %d", first.MaxSlots, domain.DefaultMaxSlots)
	}

	second := resp.Assignees[1]
	if second.AssigneeID != "asg-2" || second.ActiveChannels != 1 || second.OpenTickets != 1 {
		t.Errorf("asg-2 load = %+v", second)
	}
	if second.MaxSlots != 5 {
		t.Errorf("asg-2 max slots = %d, want profile override 5", second.MaxSlots)
	}
}

func TestProfileResponseSeparatesResolvedFromCustom(t *testing.T) {
	cfg := domain.NewWorkspaceConfig()
	cfg.Template = "hello {creator}"
	cfg.Profile("asg-1").Timers.TimeoutHours = domain.Some(12)

	resp := profileResponse(cfg, "asg-1")

	if resp.Resolved.TimeoutHours != 12 {
		t.Errorf("resolved timeout = %d, want the 12h override", resp.Resolved.TimeoutHours)
	}
	if resp.Resolved.Template != "hello {creator}" {
		t.Errorf("resolved template = %q, want the workspace value", resp.Resolved.Template)
	}
	if resp.Resolved.MaxSlots != domain.DefaultMaxSlots {
		t.Errorf("resolved max slots = %d, want default %d", resp.Resolved.MaxSlots, domain.DefaultMaxSlots)
	}
	if !resp.Custom.Timers.TimeoutHours.IsSet() {
		t.Error("custom timeout override not reported")
	}
	if resp.Custom.Template.IsSet() {
		t.Error("inherited template reported as a custom override")
	}
}
