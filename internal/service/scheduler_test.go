package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/spec-kit/ticket-desk/internal/domain"
)

func sweepEnv(t *testing.T) (*testEnv, string) {
	t.Helper()
	env := lifecycleEnv(t)
	created, err := env.lifecycle.CreateTicket(context.Background(), wsID, "req", "asg", TicketFields{Title: "x"})
	if err != nil {
		t.Fatalf("CreateTicket: %v", err)
	}
	return env, created.Channel.ID
}

func TestSweepNoTransitionWhileActive(t *testing.T) {
	env, channelID := sweepEnv(t)

	env.advance(47 * time.Hour)
	env.scheduler.Sweep(context.Background())

	rec, _ := env.timers.Get(wsID, channelID)
	if rec.State() != domain.StateActive {
		t.Errorf("state = %s, want ACTIVE", rec.State())
	}
}

func TestSweepRemindsAfterTimeout(t *testing.T) {
	env, channelID := sweepEnv(t)

	env.advance(49 * time.Hour)
	env.scheduler.Sweep(context.Background())

	rec, _ := env.timers.Get(wsID, channelID)
	if rec.State() != domain.StateReminded {
		t.Fatalf("state = %s, want REMINDED", rec.State())
	}
	if rec.CloseConfirming {
		t.Error("close confirmation set on the reminder pass")
	}

	// A second sweep must not re-remind.
	threadMsgs := env.platform.threadMessageCount(rec.ArchiveThreadID)
	env.scheduler.Sweep(context.Background())
	if got := env.platform.threadMessageCount(rec.ArchiveThreadID); got != threadMsgs {
		t.Errorf("reminder re-sent: %d -> %d thread messages", threadMsgs, got)
	}
}

func TestSweepAutoClosePreemptsReminder(t *testing.T) {
	env, channelID := sweepEnv(t)

	// Far past both thresholds with both flags clear: the confirmation
	// wins and the reminder is skipped entirely.
	env.advance(61 * 24 * time.Hour)
	env.scheduler.Sweep(context.Background())

	rec, _ := env.timers.Get(wsID, channelID)
	if !rec.CloseConfirming {
		t.Fatal("close confirmation not set")
	}
	if rec.Reminded {
		t.Error("reminder set in the same pass as the confirmation")
	}
	if rec.State() != domain.StateCloseConfirming {
		t.Errorf("state = %s", rec.State())
	}
}

func TestSweepRespectsAutoCloseDisabled(t *testing.T) {
	env, channelID := sweepEnv(t)
	rec, _ := env.timers.Get(wsID, channelID)
	rec.AutoCloseEnabled = false
	env.timers.Put(rec)

	env.advance(61 * 24 * time.Hour)
	env.scheduler.Sweep(context.Background())

	rec, _ = env.timers.Get(wsID, channelID)
	if rec.CloseConfirming {
		t.Error("confirmation fired with auto-close disabled")
	}
	if !rec.Reminded {
		t.Error("reminder should still fire with auto-close disabled")
	}
}

func TestSweepSkipsNotifyDisabledAndClosed(t *testing.T) {
	env, channelID := sweepEnv(t)
	rec, _ := env.timers.Get(wsID, channelID)
	rec.NotifyEnabled = false
	env.timers.Put(rec)

	env.advance(49 * time.Hour)
	env.scheduler.Sweep(context.Background())
	rec, _ = env.timers.Get(wsID, channelID)
	if rec.Reminded {
		t.Error("reminder fired with notifications disabled")
	}

	rec.NotifyEnabled = true
	rec.OpenTicketIDs = []string{}
	env.timers.Put(rec)
	env.scheduler.Sweep(context.Background())
	rec, _ = env.timers.Get(wsID, channelID)
	if rec.Reminded {
		t.Error("reminder fired on a closed channel")
	}
}

func TestSweepDeletesOrphanRecords(t *testing.T) {
	env, channelID := sweepEnv(t)
	if err := env.platform.DeleteChannel(context.Background(), wsID, channelID); err != nil {
		t.Fatalf("DeleteChannel: %v", err)
	}

	env.scheduler.Sweep(context.Background())
	if _, ok := env.timers.Get(wsID, channelID); ok {
		t.Error("orphan record survived the sweep")
	}
}

func TestSweepTransitionSerializesWithActivity(t *testing.T) {
	env, channelID := sweepEnv(t)
	env.advance(49 * time.Hour)

	entered := make(chan struct{})
	release := make(chan struct{})
	var once sync.Once
	env.platform.beforeThreadSend = func() {
		once.Do(func() {
			close(entered)
			<-release
		})
	}

	sweepDone := make(chan struct{})
	go func() {
		defer close(sweepDone)
		env.scheduler.Sweep(context.Background())
	}()

	// The sweep is mid-transition, parked inside the reminder write.
	// Activity arriving now must wait for the whole transition and then
	// clear the flag, not land between the decision and the flag write
	// and get overwritten.
	<-entered
	activityDone := make(chan struct{})
	go func() {
		defer close(activityDone)
		if err := env.lifecycle.RecordActivity(context.Background(), wsID, channelID, "req", "still here"); err != nil {
			t.Errorf("RecordActivity: %v", err)
		}
	}()

	close(release)
	<-sweepDone
	<-activityDone

	rec, _ := env.timers.Get(wsID, channelID)
	if rec.Reminded {
		t.Error("activity refresh lost to the sweep transition")
	}
	if rec.State() != domain.StateActive {
		t.Errorf("state = %s, want ACTIVE", rec.State())
	}
}

func TestSweepActivityResetsEscalation(t *testing.T) {
	env, channelID := sweepEnv(t)

	env.advance(49 * time.Hour)
	env.scheduler.Sweep(context.Background())

	// Inbound activity returns the record to ACTIVE and restarts the
	// whole ladder.
	if err := env.lifecycle.RecordActivity(context.Background(), wsID, channelID, "req", "still here"); err != nil {
		t.Fatalf("RecordActivity: %v", err)
	}
	rec, _ := env.timers.Get(wsID, channelID)
	if rec.State() != domain.StateActive {
		t.Fatalf("state = %s, want ACTIVE", rec.State())
	}

	env.advance(47 * time.Hour)
	env.scheduler.Sweep(context.Background())
	rec, _ = env.timers.Get(wsID, channelID)
	if rec.Reminded {
		t.Error("reminder fired before the restarted window elapsed")
	}
}
