package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spec-kit/ticket-desk/internal/events"
	"github.com/spec-kit/ticket-desk/internal/observability"
	"github.com/spec-kit/ticket-desk/internal/platform"
	"github.com/spec-kit/ticket-desk/internal/repository"
)

// Scheduler runs the inactivity sweep and the periodic flush of dirty
// documents to the durable store. Sweep transitions mutate timer records
// under the lifecycle manager's mutex, the same lock the command
// handlers hold, so a sweep write can never interleave with a handler's
// read-modify-write.
type Scheduler struct {
	configs    repository.ConfigRepository
	timers     repository.TimerRepository
	platform   platform.Client
	mirror     *ArchiveMirror
	lifecycle  *LifecycleManager
	dispatcher events.Dispatcher
	logger     *zap.Logger
	metrics    *observability.Metrics

	sweepInterval time.Duration
	flushInterval time.Duration
	now           func() time.Time
}

// SchedulerDependencies bundles collaborators for the scheduler.
type SchedulerDependencies struct {
	ConfigRepo    repository.ConfigRepository
	TimerRepo     repository.TimerRepository
	Platform      platform.Client
	Mirror        *ArchiveMirror
	Lifecycle     *LifecycleManager
	Dispatcher    events.Dispatcher
	Logger        *zap.Logger
	Metrics       *observability.Metrics
	SweepInterval time.Duration
	FlushInterval time.Duration
}

// NewScheduler constructs the scheduler.
func NewScheduler(deps SchedulerDependencies) *Scheduler {
	s := &Scheduler{
		configs:       deps.ConfigRepo,
		timers:        deps.TimerRepo,
		platform:      deps.Platform,
		mirror:        deps.Mirror,
		lifecycle:     deps.Lifecycle,
		dispatcher:    deps.Dispatcher,
		logger:        deps.Logger,
		metrics:       deps.Metrics,
		sweepInterval: deps.SweepInterval,
		flushInterval: deps.FlushInterval,
		now:           time.Now,
	}
	if s.sweepInterval <= 0 {
		s.sweepInterval = 10 * time.Minute
	}
	if s.flushInterval <= 0 {
		s.flushInterval = time.Minute
	}
	return s
}

// Run drives both loops until the context is cancelled. A final flush
// runs on shutdown so dirty documents are not lost.
func (s *Scheduler) Run(ctx context.Context) {
	sweep := time.NewTicker(s.sweepInterval)
	flush := time.NewTicker(s.flushInterval)
	defer sweep.Stop()
	defer flush.Stop()

	for {
		select {
		case <-ctx.Done():
			flushCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			s.flush(flushCtx)
			cancel()
			return
		case <-sweep.C:
			s.Sweep(ctx)
		case <-flush.C:
			s.flush(ctx)
		}
	}
}

// Sweep walks every timer record once and applies at most one state
// transition per record: orphan cleanup, then the close confirmation,
// then the inactivity reminder. Auto-close is checked before the
// reminder so a record far past both thresholds goes straight to
// confirmation without an extra reminder pass.
func (s *Scheduler) Sweep(ctx context.Context) {
	now := s.now()
	for _, rec := range s.timers.ListAll() {
		if ctx.Err() != nil {
			return
		}

		if _, err := s.platform.Channel(ctx, rec.WorkspaceID, rec.ChannelID); err != nil {
			if errors.Is(err, platform.ErrNotFound) {
				s.dropOrphan(ctx, rec.WorkspaceID, rec.ChannelID)
			}
			continue
		}

		s.transition(ctx, rec.WorkspaceID, rec.ChannelID, now)
	}
}

// dropOrphan removes the record of a channel that no longer exists.
func (s *Scheduler) dropOrphan(ctx context.Context, workspaceID, channelID string) {
	s.lifecycle.mu.Lock()
	defer s.lifecycle.mu.Unlock()

	if _, ok := s.timers.Get(workspaceID, channelID); !ok {
		return
	}
	s.timers.Delete(workspaceID, channelID)
	s.metrics.RecordSweepTransition(workspaceID, "orphan_deleted")
	s.publish(ctx, workspaceID, channelID, events.EventRecordDeleted, nil)
}

// transition decides and applies the escalation step for one record. The
// lifecycle mutex is held across the whole read-decide-write sequence,
// and the record is re-read under the lock rather than trusted from the
// sweep snapshot, so activity recorded since the listing pre-empts the
// transition instead of being overwritten by it.
func (s *Scheduler) transition(ctx context.Context, workspaceID, channelID string, now time.Time) {
	s.lifecycle.mu.Lock()
	defer s.lifecycle.mu.Unlock()

	rec, ok := s.timers.Get(workspaceID, channelID)
	if !ok {
		return
	}
	if !rec.NotifyEnabled || len(rec.OpenTicketIDs) == 0 || rec.LastActivityAt.IsZero() {
		return
	}
	inactive := now.Sub(rec.LastActivityAt)

	if rec.AutoCloseEnabled && !rec.CloseConfirming && inactive > time.Duration(rec.AutoCloseDays)*24*time.Hour {
		s.confirmClose(ctx, workspaceID, channelID, inactive)
		return
	}

	if !rec.Reminded && inactive > time.Duration(rec.TimeoutHours)*time.Hour {
		s.remind(ctx, workspaceID, channelID, inactive)
	}
}

// confirmClose posts the close-confirmation prompt and marks the record.
// The flag is set even when the mirror write fails so the prompt is not
// re-sent every sweep. Called with the lifecycle mutex held.
func (s *Scheduler) confirmClose(ctx context.Context, workspaceID, channelID string, inactive time.Duration) {
	err := s.mirror.Mirror(ctx, workspaceID, channelID, MirrorInput{
		Content: fmt.Sprintf("No activity in %s for %d days. The channel will be removed unless the timer is extended.",
			platform.MentionChannel(channelID), int(inactive.Hours()/24)),
		Controls: []platform.Control{
			{ID: ControlExtendTimer, Label: "Extend", Style: "primary"},
			{ID: ControlConfirmDelete, Label: "Delete channel", Style: "danger"},
		},
	})
	if err != nil {
		s.logger.Warn("close confirmation mirror failed", zap.String("channel_id", channelID), zap.Error(err))
	}

	rec, ok := s.timers.Get(workspaceID, channelID)
	if !ok {
		return
	}
	rec.CloseConfirming = true
	s.timers.Put(rec)
	s.metrics.RecordSweepTransition(workspaceID, "close_confirming")
	s.publish(ctx, workspaceID, channelID, events.EventCloseConfirming, events.SweepTransitionPayload{InactiveFor: inactive})
}

// remind posts the inactivity reminder and marks the record. Called with
// the lifecycle mutex held.
func (s *Scheduler) remind(ctx context.Context, workspaceID, channelID string, inactive time.Duration) {
	err := s.mirror.Mirror(ctx, workspaceID, channelID, MirrorInput{
		Content: fmt.Sprintf("No activity in %s for %d hours.",
			platform.MentionChannel(channelID), int(inactive.Hours())),
		Controls: []platform.Control{
			{ID: ControlExtendTimer, Label: "Extend", Style: "primary"},
		},
	})
	if err != nil {
		s.logger.Warn("reminder mirror failed", zap.String("channel_id", channelID), zap.Error(err))
	}

	rec, ok := s.timers.Get(workspaceID, channelID)
	if !ok {
		return
	}
	rec.Reminded = true
	s.timers.Put(rec)
	s.metrics.RecordSweepTransition(workspaceID, "reminded")
	s.publish(ctx, workspaceID, channelID, events.EventTicketReminded, events.SweepTransitionPayload{InactiveFor: inactive})
}

func (s *Scheduler) flush(ctx context.Context) {
	if err := s.configs.Flush(ctx); err != nil {
		s.logger.Error("config flush failed", zap.Error(err))
	}
	if err := s.timers.Flush(ctx); err != nil {
		s.logger.Error("timer flush failed", zap.Error(err))
	}
}

func (s *Scheduler) publish(ctx context.Context, workspaceID, channelID string, eventType events.EventType, payload any) {
	if s.dispatcher == nil {
		return
	}
	_ = s.dispatcher.Publish(ctx, events.Event{
		ID:          uuid.NewString(),
		Type:        eventType,
		WorkspaceID: workspaceID,
		ChannelID:   channelID,
		Timestamp:   s.now(),
		Payload:     payload,
	})
}
