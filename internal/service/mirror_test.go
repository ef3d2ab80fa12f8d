package service

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/spec-kit/ticket-desk/internal/domain"
	"github.com/spec-kit/ticket-desk/internal/platform"
)

func mirrorEnv(t *testing.T) (*testEnv, string, string) {
	t.Helper()
	env := lifecycleEnv(t)
	created, err := env.lifecycle.CreateTicket(context.Background(), wsID, "req", "asg", TicketFields{Title: "x"})
	if err != nil {
		t.Fatalf("CreateTicket: %v", err)
	}
	rec, _ := env.timers.Get(wsID, created.Channel.ID)
	return env, created.Channel.ID, rec.ArchiveThreadID
}

func TestMirrorCooldownSuppressesRoutineOnly(t *testing.T) {
	env, channelID, threadID := mirrorEnv(t)
	base := env.platform.threadMessageCount(threadID)

	// Inside the cooldown window a routine mirror is dropped.
	env.advance(10 * time.Second)
	if err := env.mirror.Mirror(context.Background(), wsID, channelID, MirrorInput{Content: "chatter"}); err != nil {
		t.Fatalf("Mirror: %v", err)
	}
	if got := env.platform.threadMessageCount(threadID); got != base {
		t.Errorf("routine mirror not suppressed: %d -> %d", base, got)
	}

	// Structural updates always write.
	if err := env.mirror.Mirror(context.Background(), wsID, channelID, MirrorInput{Content: "state", StructuralUpdate: true}); err != nil {
		t.Fatalf("Mirror structural: %v", err)
	}
	if got := env.platform.threadMessageCount(threadID); got != base+1 {
		t.Errorf("structural mirror suppressed: %d -> %d", base, got)
	}

	// So does anything carrying a control.
	if err := env.mirror.Mirror(context.Background(), wsID, channelID, MirrorInput{
		Content:  "prompt",
		Controls: []platform.Control{{ID: ControlExtendTimer, Label: "Extend"}},
	}); err != nil {
		t.Fatalf("Mirror with control: %v", err)
	}
	if got := env.platform.threadMessageCount(threadID); got != base+2 {
		t.Errorf("control mirror suppressed: %d -> %d", base, got)
	}
}

func TestMirrorRoutineWritesAfterCooldown(t *testing.T) {
	env, channelID, threadID := mirrorEnv(t)
	base := env.platform.threadMessageCount(threadID)

	env.advance(time.Duration(domain.DefaultMirrorCooldownSec+1) * time.Second)
	if err := env.mirror.Mirror(context.Background(), wsID, channelID, MirrorInput{Content: "chatter"}); err != nil {
		t.Fatalf("Mirror: %v", err)
	}
	if got := env.platform.threadMessageCount(threadID); got != base+1 {
		t.Errorf("routine mirror after cooldown suppressed: %d -> %d", base, got)
	}

	// The write restarts the cooldown; an immediate follow-up is dropped.
	if err := env.mirror.Mirror(context.Background(), wsID, channelID, MirrorInput{Content: "more"}); err != nil {
		t.Fatalf("Mirror: %v", err)
	}
	if got := env.platform.threadMessageCount(threadID); got != base+1 {
		t.Errorf("cooldown not restarted after write: %d", got)
	}
}

func TestMirrorMentionsUnionDeduplicated(t *testing.T) {
	resolved := ResolvedSettings{
		MentionRoleIDs:    []string{"r1", "r2"},
		EscalationRoleIDs: []string{"r2", "r3"},
	}
	out := mirrorMentions(resolved)
	for _, want := range []string{"<@&r1>", "<@&r2>", "<@&r3>"} {
		if !strings.Contains(out, want) {
			t.Errorf("missing %s in %q", want, out)
		}
	}
	if strings.Count(out, "<@&r2>") != 1 {
		t.Errorf("duplicate mention in %q", out)
	}
}

func TestEnsureThreadRelocatesByChannelName(t *testing.T) {
	env, channelID, threadID := mirrorEnv(t)

	// Drop the stored reference; the mirror must find the existing thread
	// by the channel name instead of creating a duplicate.
	rec, _ := env.timers.Get(wsID, channelID)
	rec.ArchiveThreadID = ""
	env.timers.Put(rec)

	found, err := env.mirror.EnsureThread(context.Background(), wsID, channelID)
	if err != nil {
		t.Fatalf("EnsureThread: %v", err)
	}
	if found != threadID {
		t.Errorf("relocated to %s, want %s", found, threadID)
	}
	rec, _ = env.timers.Get(wsID, channelID)
	if rec.ArchiveThreadID != threadID {
		t.Error("relocated reference not cached on the record")
	}
}

func TestEnsureThreadUnarchivesOnReuse(t *testing.T) {
	env, channelID, threadID := mirrorEnv(t)
	if err := env.platform.SetThreadArchived(context.Background(), wsID, threadID, true, true); err != nil {
		t.Fatalf("SetThreadArchived: %v", err)
	}

	if _, err := env.mirror.EnsureThread(context.Background(), wsID, channelID); err != nil {
		t.Fatalf("EnsureThread: %v", err)
	}
	thread, err := env.platform.Thread(context.Background(), wsID, threadID)
	if err != nil {
		t.Fatalf("Thread: %v", err)
	}
	if thread.Archived {
		t.Error("thread left archived on reuse")
	}
}

func TestMirrorCloseThreadArchives(t *testing.T) {
	env, channelID, threadID := mirrorEnv(t)

	if err := env.mirror.Mirror(context.Background(), wsID, channelID, MirrorInput{
		Content:          "resolved",
		StructuralUpdate: true,
		CloseThread:      true,
	}); err != nil {
		t.Fatalf("Mirror close: %v", err)
	}
	thread, err := env.platform.Thread(context.Background(), wsID, threadID)
	if err != nil {
		t.Fatalf("Thread: %v", err)
	}
	if !thread.Archived {
		t.Error("thread not archived on close")
	}
}

func TestMirrorMissingArchiveChannel(t *testing.T) {
	env := newTestEnv(t)
	env.platform.addMember("asg", "alice", availRole)
	env.platform.addMember("req", "bob")
	env.putConfig(wsID, func(cfg *domain.WorkspaceConfig) {
		cfg.AssigneeRoleID = availRole
		cfg.CategoryID = testCategory
	})

	created, err := env.lifecycle.CreateTicket(context.Background(), wsID, "req", "asg", TicketFields{Title: "x"})
	if err != nil {
		t.Fatalf("CreateTicket: %v", err)
	}
	if !created.ThreadFailed {
		t.Error("mirror should fail without an archive channel")
	}
	if _, ok := env.timers.Get(wsID, created.Channel.ID); !ok {
		t.Error("ticket must survive a failed mirror")
	}
}
