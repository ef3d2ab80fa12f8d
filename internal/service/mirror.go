package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/ticket-desk/internal/observability"
	"github.com/spec-kit/ticket-desk/internal/platform"
	"github.com/spec-kit/ticket-desk/internal/repository"
	apperrors "github.com/spec-kit/ticket-desk/pkg/util"
)

// MirrorInput describes one archival write.
type MirrorInput struct {
	Content        string
	Embed          *platform.Embed
	AttachmentURLs []string
	Controls       []platform.Control
	// StructuralUpdate marks ticket-state changes that must never be
	// suppressed by the cooldown.
	StructuralUpdate bool
	// CloseThread locks and archives the thread after the final write.
	CloseThread bool
}

// ArchiveMirror replicates ticket activity into one archival thread per
// ticket channel, suppressing routine chatter inside the cooldown
// window.
type ArchiveMirror struct {
	configs  repository.ConfigRepository
	timers   repository.TimerRepository
	platform platform.Client
	logger   *zap.Logger
	metrics  *observability.Metrics
	now      func() time.Time
}

// MirrorDependencies bundles collaborators for the mirror.
type MirrorDependencies struct {
	ConfigRepo repository.ConfigRepository
	TimerRepo  repository.TimerRepository
	Platform   platform.Client
	Logger     *zap.Logger
	Metrics    *observability.Metrics
}

// NewArchiveMirror creates the mirror.
func NewArchiveMirror(deps MirrorDependencies) *ArchiveMirror {
	return &ArchiveMirror{
		configs:  deps.ConfigRepo,
		timers:   deps.TimerRepo,
		platform: deps.Platform,
		logger:   deps.Logger,
		metrics:  deps.Metrics,
		now:      time.Now,
	}
}

// EnsureThread returns the archival thread id for the ticket channel,
// lazily creating it, or relocating it by channel name when the stored
// reference was lost. The reference is cached on the timer record, so
// the usual path is a single map read.
func (m *ArchiveMirror) EnsureThread(ctx context.Context, workspaceID, channelID string) (string, error) {
	rec, ok := m.timers.Get(workspaceID, channelID)
	if !ok {
		return "", apperrors.NewNotFound("timer record", map[string]any{"channel_id": channelID})
	}

	if rec.ArchiveThreadID != "" {
		thread, err := m.platform.Thread(ctx, workspaceID, rec.ArchiveThreadID)
		if err == nil {
			if thread.Archived {
				_ = m.platform.SetThreadArchived(ctx, workspaceID, thread.ID, false, false)
			}
			return thread.ID, nil
		}
		// Stale reference; fall through and relocate.
	}

	cfg := m.configs.Get(workspaceID)
	profile := cfg.Profile(rec.AssigneeID)
	containerID := resolveString(profile.ArchiveChannelID, cfg.ArchiveChannelID, "")
	if containerID == "" {
		return "", apperrors.NewConfigurationMissing("archive channel not configured", map[string]any{"workspace_id": workspaceID})
	}

	channel, err := m.platform.Channel(ctx, workspaceID, channelID)
	if err != nil {
		return "", platformError("fetch ticket channel", err)
	}

	thread, err := m.platform.FindThreadByName(ctx, workspaceID, containerID, channel.Name)
	if err == nil {
		if thread.Archived {
			_ = m.platform.SetThreadArchived(ctx, workspaceID, thread.ID, false, false)
		}
		m.storeThreadID(workspaceID, channelID, thread.ID)
		return thread.ID, nil
	}

	resolved := Resolve(cfg, profile)
	first := platform.Message{
		Content: fmt.Sprintf("New ticket log created (source: %s)", platform.MentionChannel(channelID)),
	}
	if mentions := mirrorMentions(resolved); mentions != "" {
		first.Content += "\n" + mentions
	}
	created, err := m.platform.CreateThread(ctx, workspaceID, containerID, channel.Name, first)
	if err != nil {
		return "", platformError("create archive thread", err)
	}
	m.storeThreadID(workspaceID, channelID, created.ID)
	return created.ID, nil
}

// Mirror writes one entry to the archival thread. Routine content
// mirrors are dropped inside the cooldown window; structural updates,
// closures, and anything carrying an interactive control always write.
func (m *ArchiveMirror) Mirror(ctx context.Context, workspaceID, channelID string, in MirrorInput) error {
	rec, ok := m.timers.Get(workspaceID, channelID)
	if !ok {
		return apperrors.NewNotFound("timer record", map[string]any{"channel_id": channelID})
	}

	cfg := m.configs.Get(workspaceID)
	profile := cfg.Profile(rec.AssigneeID)
	resolved := Resolve(cfg, profile)

	routine := !in.StructuralUpdate && !in.CloseThread && len(in.Controls) == 0 && len(in.AttachmentURLs) == 0
	if routine && !rec.LastMirrorAt.IsZero() && m.now().Sub(rec.LastMirrorAt) < resolved.MirrorCooldown {
		m.metrics.RecordMirrorSuppressed(workspaceID)
		return nil
	}

	threadID, err := m.EnsureThread(ctx, workspaceID, channelID)
	if err != nil {
		return err
	}

	content := in.Content
	if !in.CloseThread {
		if mentions := mirrorMentions(resolved); mentions != "" {
			if content != "" {
				content = mentions + "\n" + content
			} else {
				content = mentions
			}
		}
	}

	msg := platform.Message{
		Content:        content,
		Embed:          in.Embed,
		Controls:       in.Controls,
		AttachmentURLs: in.AttachmentURLs,
	}
	if _, err := m.platform.SendToThread(ctx, workspaceID, threadID, msg); err != nil {
		return platformError("write archive thread", err)
	}
	m.metrics.RecordMirrorWrite(workspaceID)

	// The send suspends; re-read before mutating (the record may have
	// changed underneath the write).
	if rec, ok := m.timers.Get(workspaceID, channelID); ok {
		rec.LastMirrorAt = m.now()
		m.timers.Put(rec)
	}

	if in.CloseThread {
		if err := m.platform.SetThreadArchived(ctx, workspaceID, threadID, true, true); err != nil {
			m.logger.Warn("archive thread close failed", zap.String("thread_id", threadID), zap.Error(err))
		}
	}
	return nil
}

func (m *ArchiveMirror) storeThreadID(workspaceID, channelID, threadID string) {
	if rec, ok := m.timers.Get(workspaceID, channelID); ok {
		rec.ArchiveThreadID = threadID
		m.timers.Put(rec)
	}
}

// mirrorMentions renders the union of base mention roles and escalation
// roles, deduplicated, each mentioned once.
func mirrorMentions(resolved ResolvedSettings) string {
	seen := map[string]bool{}
	parts := []string{}
	for _, roleID := range append(append([]string{}, resolved.MentionRoleIDs...), resolved.EscalationRoleIDs...) {
		if roleID == "" || seen[roleID] {
			continue
		}
		seen[roleID] = true
		parts = append(parts, platform.MentionRole(roleID))
	}
	return strings.Join(parts, " ")
}
