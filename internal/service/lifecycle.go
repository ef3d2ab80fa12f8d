package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spec-kit/ticket-desk/internal/domain"
	"github.com/spec-kit/ticket-desk/internal/events"
	"github.com/spec-kit/ticket-desk/internal/platform"
	"github.com/spec-kit/ticket-desk/internal/repository"
	apperrors "github.com/spec-kit/ticket-desk/pkg/util"
)

// Interactive control ids carried on lifecycle messages.
const (
	ControlExtendTimer   = "extend_timer"
	ControlConfirmDelete = "confirm_delete"
	ControlReopenTicket  = "reopen_ticket"
)

// TicketFields is the user-supplied content of a new ticket.
type TicketFields struct {
	Title         string
	RequesterName string
	Kind          string
	Deadline      string
	Budget        string
	Notes         string
}

// CreatedTicket reports the outcome of CreateTicket.
type CreatedTicket struct {
	Channel      *platform.Channel
	TicketID     string
	ReusedChan   bool
	ThreadFailed bool
}

// RecoveredChannel is one entry of a recover scan.
type RecoveredChannel struct {
	ChannelID   string
	ChannelName string
	AssigneeID  string
	RequesterID string
}

// LifecycleManager owns the canonical per-ticket timer records. All
// record mutation funnels through this manager and the scheduler; a
// single mutex serializes mutations so no two interleave mid-operation.
// Platform I/O suspends an operation, so decisions that depend on
// freshness re-read the record after the call returns.
type LifecycleManager struct {
	mu sync.Mutex

	configs    repository.ConfigRepository
	timers     repository.TimerRepository
	platform   platform.Client
	mirror     *ArchiveMirror
	dispatcher events.Dispatcher
	logger     *zap.Logger
	now        func() time.Time
}

// LifecycleDependencies bundles collaborators for the manager.
type LifecycleDependencies struct {
	ConfigRepo repository.ConfigRepository
	TimerRepo  repository.TimerRepository
	Platform   platform.Client
	Mirror     *ArchiveMirror
	Dispatcher events.Dispatcher
	Logger     *zap.Logger
}

// NewLifecycleManager constructs the manager.
func NewLifecycleManager(deps LifecycleDependencies) *LifecycleManager {
	return &LifecycleManager{
		configs:    deps.ConfigRepo,
		timers:     deps.TimerRepo,
		platform:   deps.Platform,
		mirror:     deps.Mirror,
		dispatcher: deps.Dispatcher,
		logger:     deps.Logger,
		now:        time.Now,
	}
}

// CreateTicket provisions (or reuses) a ticket channel for the
// (assignee, requester) pair, posts the ticket message, and mirrors it.
// Timer values are frozen from the resolver at creation. A failed
// archival mirror is logged and does not roll the ticket back.
func (l *LifecycleManager) CreateTicket(ctx context.Context, workspaceID, requesterID, assigneeID string, fields TicketFields) (*CreatedTicket, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	cfg := l.configs.Get(workspaceID)
	profile := cfg.Profile(assigneeID)
	resolved := Resolve(cfg, profile)

	assignee, err := l.platform.Member(ctx, workspaceID, assigneeID)
	if err != nil {
		return nil, memberError(assigneeID, err)
	}
	requester, err := l.platform.Member(ctx, workspaceID, requesterID)
	if err != nil {
		return nil, memberError(requesterID, err)
	}

	var channel *platform.Channel
	reused := false
	if resolved.ReuseChannel {
		channel = l.findReusableChannel(ctx, workspaceID, assigneeID, requesterID)
		reused = channel != nil
	}
	if channel == nil {
		channel, err = l.provisionChannel(ctx, workspaceID, requester, assignee, resolved, fields.Title)
		if err != nil {
			return nil, err
		}
		rec := &domain.TicketTimerRecord{
			WorkspaceID:      workspaceID,
			ChannelID:        channel.ID,
			AssigneeID:       assigneeID,
			RequesterID:      requesterID,
			CreatedAt:        l.now(),
			LastActivityAt:   l.now(),
			TimeoutHours:     resolved.TimeoutHours,
			AutoCloseDays:    resolved.AutoCloseDays,
			AutoCloseEnabled: resolved.AutoCloseEnabled,
			NotifyEnabled:    resolved.NotifyEnabled,
			OpenTicketIDs:    []string{},
		}
		l.timers.Put(rec)
	}

	msg := l.ticketMessage(requester, assignee, resolved, fields)
	sent, err := l.platform.SendMessage(ctx, workspaceID, channel.ID, msg)
	if err != nil {
		return nil, platformError("post ticket message", err)
	}

	// Re-read after the send; concurrent activity may have touched the
	// record while the call was in flight.
	rec, ok := l.timers.Get(workspaceID, channel.ID)
	if !ok {
		return nil, apperrors.NewNotFound("timer record", map[string]any{"channel_id": channel.ID})
	}
	rec.OpenTicket(sent.ID)
	rec.Touch(l.now())
	l.timers.Put(rec)

	created := &CreatedTicket{Channel: channel, TicketID: sent.ID, ReusedChan: reused}
	if err := l.mirror.Mirror(ctx, workspaceID, channel.ID, MirrorInput{
		Embed:            msg.Embed,
		StructuralUpdate: true,
	}); err != nil {
		created.ThreadFailed = true
		l.logger.Warn("ticket mirror failed", zap.String("channel_id", channel.ID), zap.Error(err))
	}

	l.publish(ctx, events.Event{
		Type:        events.EventTicketCreated,
		WorkspaceID: workspaceID,
		ChannelID:   channel.ID,
		ActorID:     requesterID,
		Payload: events.TicketCreatedPayload{
			TicketID:    sent.ID,
			AssigneeID:  assigneeID,
			RequesterID: requesterID,
			Title:       fields.Title,
			ReusedChan:  reused,
		},
	})
	return created, nil
}

// RecordActivity refreshes the activity timestamp for an inbound message
// and clears both escalation flags, then mirrors the content as routine
// chatter. Authors holding a resolved ignore role are excluded entirely.
// Idempotent; safe to call for every message in a ticket channel.
func (l *LifecycleManager) RecordActivity(ctx context.Context, workspaceID, channelID, authorID, content string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	rec, ok := l.timers.Get(workspaceID, channelID)
	if !ok {
		return nil
	}

	author, err := l.platform.Member(ctx, workspaceID, authorID)
	if err == nil {
		if author.Bot {
			return nil
		}
		cfg := l.configs.Get(workspaceID)
		resolved := Resolve(cfg, cfg.Profile(rec.AssigneeID))
		for _, roleID := range resolved.IgnoreRoleIDs {
			if author.HasRole(roleID) {
				return nil
			}
		}
	}

	// The member fetch suspended; re-read before mutating.
	rec, ok = l.timers.Get(workspaceID, channelID)
	if !ok {
		return nil
	}
	rec.Touch(l.now())
	l.timers.Put(rec)

	if content != "" {
		embed := &platform.Embed{
			Description: content,
			Timestamp:   l.now(),
		}
		if author != nil {
			embed.Title = author.DisplayName
		}
		if err := l.mirror.Mirror(ctx, workspaceID, channelID, MirrorInput{Embed: embed}); err != nil {
			l.logger.Warn("activity mirror failed", zap.String("channel_id", channelID), zap.Error(err))
		}
	}
	return nil
}

// CloseTicket marks every open ticket in the channel resolved, edits the
// ticket messages with a reopen control, and closes the archival thread.
// The channel itself is not deleted.
func (l *LifecycleManager) CloseTicket(ctx context.Context, workspaceID, channelID, actorID string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	rec, ok := l.timers.Get(workspaceID, channelID)
	if !ok {
		return apperrors.NewNotFound("timer record", map[string]any{"channel_id": channelID})
	}

	closed := append([]string{}, rec.OpenTicketIDs...)
	for _, ticketID := range closed {
		edit := platform.Message{
			Content:  fmt.Sprintf("Resolved by %s", platform.MentionMember(actorID)),
			Controls: []platform.Control{{ID: ControlReopenTicket, Label: "Reopen", Style: "primary"}},
		}
		if err := l.platform.EditMessage(ctx, workspaceID, channelID, ticketID, edit); err != nil {
			l.logger.Warn("ticket message edit failed", zap.String("ticket_id", ticketID), zap.Error(err))
		}
	}

	rec, ok = l.timers.Get(workspaceID, channelID)
	if !ok {
		return apperrors.NewNotFound("timer record", map[string]any{"channel_id": channelID})
	}
	rec.OpenTicketIDs = []string{}
	rec.Reminded = false
	rec.CloseConfirming = false
	l.timers.Put(rec)

	if err := l.mirror.Mirror(ctx, workspaceID, channelID, MirrorInput{
		Content:          fmt.Sprintf("Marked resolved by %s", platform.MentionMember(actorID)),
		StructuralUpdate: true,
		CloseThread:      true,
	}); err != nil {
		l.logger.Warn("close mirror failed", zap.String("channel_id", channelID), zap.Error(err))
	}

	l.publish(ctx, events.Event{
		Type:        events.EventTicketClosed,
		WorkspaceID: workspaceID,
		ChannelID:   channelID,
		ActorID:     actorID,
		Payload:     events.TicketClosedPayload{ClosedTicketIDs: closed},
	})
	return nil
}

// ReopenTicket restores one ticket id to the open set, resets the timer,
// and notifies the mirror. Other closed tickets in the channel stay
// closed.
func (l *LifecycleManager) ReopenTicket(ctx context.Context, workspaceID, channelID, ticketID, actorID string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	rec, ok := l.timers.Get(workspaceID, channelID)
	if !ok {
		return apperrors.NewNotFound("timer record", map[string]any{"channel_id": channelID})
	}

	edit := platform.Message{Content: "Reopened"}
	if err := l.platform.EditMessage(ctx, workspaceID, channelID, ticketID, edit); err != nil {
		l.logger.Warn("ticket message edit failed", zap.String("ticket_id", ticketID), zap.Error(err))
	}

	rec, ok = l.timers.Get(workspaceID, channelID)
	if !ok {
		return apperrors.NewNotFound("timer record", map[string]any{"channel_id": channelID})
	}
	rec.OpenTicket(ticketID)
	rec.Touch(l.now())
	l.timers.Put(rec)

	if err := l.mirror.Mirror(ctx, workspaceID, channelID, MirrorInput{
		Content:          "Ticket reopened",
		StructuralUpdate: true,
	}); err != nil {
		l.logger.Warn("reopen mirror failed", zap.String("channel_id", channelID), zap.Error(err))
	}

	l.publish(ctx, events.Event{
		Type:        events.EventTicketReopened,
		WorkspaceID: workspaceID,
		ChannelID:   channelID,
		ActorID:     actorID,
		Payload:     events.TicketReopenedPayload{TicketID: ticketID},
	})
	return nil
}

// Extend resets the inactivity timer on an explicit extend action,
// clearing both escalation flags.
func (l *LifecycleManager) Extend(ctx context.Context, workspaceID, channelID, actorID string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	rec, ok := l.timers.Get(workspaceID, channelID)
	if !ok {
		return apperrors.NewNotFound("timer record", map[string]any{"channel_id": channelID})
	}
	rec.Touch(l.now())
	l.timers.Put(rec)
	return nil
}

// OverrideTimer replaces the frozen timer values on a live record and
// restarts its inactivity window.
func (l *LifecycleManager) OverrideTimer(ctx context.Context, workspaceID, channelID string, timeoutHours, autoCloseDays int) error {
	if timeoutHours <= 0 || autoCloseDays <= 0 {
		return apperrors.NewValidationError("timeout_hours and auto_close_days must be positive", nil)
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	rec, ok := l.timers.Get(workspaceID, channelID)
	if !ok {
		return apperrors.NewNotFound("timer record", map[string]any{"channel_id": channelID})
	}
	rec.TimeoutHours = timeoutHours
	rec.AutoCloseDays = autoCloseDays
	rec.LastActivityAt = l.now()
	rec.Reminded = false
	l.timers.Put(rec)
	return nil
}

// DeleteTicketChannel closes the archival thread, deletes the channel,
// and removes the timer record.
func (l *LifecycleManager) DeleteTicketChannel(ctx context.Context, workspaceID, channelID, actorID string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, ok := l.timers.Get(workspaceID, channelID); !ok {
		return apperrors.NewNotFound("timer record", map[string]any{"channel_id": channelID})
	}

	if err := l.mirror.Mirror(ctx, workspaceID, channelID, MirrorInput{
		Content:          fmt.Sprintf("Channel deleted by %s", platform.MentionMember(actorID)),
		StructuralUpdate: true,
		CloseThread:      true,
	}); err != nil {
		l.logger.Warn("delete mirror failed", zap.String("channel_id", channelID), zap.Error(err))
	}

	if err := l.platform.DeleteChannel(ctx, workspaceID, channelID); err != nil && !errors.Is(err, platform.ErrNotFound) {
		return platformError("delete channel", err)
	}
	l.timers.Delete(workspaceID, channelID)

	l.publish(ctx, events.Event{
		Type:        events.EventRecordDeleted,
		WorkspaceID: workspaceID,
		ChannelID:   channelID,
		ActorID:     actorID,
	})
	return nil
}

// LinkChannel registers an existing channel as a ticket channel,
// creating its timer record from the resolver, and optionally binds or
// creates the archival thread.
func (l *LifecycleManager) LinkChannel(ctx context.Context, workspaceID, channelID, assigneeID, requesterID, threadID string, createThread bool) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, err := l.platform.Channel(ctx, workspaceID, channelID); err != nil {
		return platformError("fetch channel", err)
	}

	if _, ok := l.timers.Get(workspaceID, channelID); !ok {
		if assigneeID == "" {
			return apperrors.NewValidationError("assignee_id required to link an unregistered channel", nil)
		}
		if requesterID == "" {
			requesterID = assigneeID
		}
		cfg := l.configs.Get(workspaceID)
		resolved := Resolve(cfg, cfg.Profile(assigneeID))
		rec := &domain.TicketTimerRecord{
			WorkspaceID:      workspaceID,
			ChannelID:        channelID,
			AssigneeID:       assigneeID,
			RequesterID:      requesterID,
			CreatedAt:        l.now(),
			LastActivityAt:   l.now(),
			TimeoutHours:     resolved.TimeoutHours,
			AutoCloseDays:    resolved.AutoCloseDays,
			AutoCloseEnabled: resolved.AutoCloseEnabled,
			NotifyEnabled:    resolved.NotifyEnabled,
			OpenTicketIDs:    []string{},
		}
		if sent, err := l.platform.SendMessage(ctx, workspaceID, channelID, platform.Message{
			Embed: &platform.Embed{Title: "Ticket registered", Timestamp: l.now()},
		}); err == nil {
			rec.OpenTicketIDs = []string{sent.ID}
		}
		l.timers.Put(rec)
	}

	if threadID != "" {
		thread, err := l.platform.Thread(ctx, workspaceID, threadID)
		if err != nil {
			return platformError("fetch thread", err)
		}
		rec, ok := l.timers.Get(workspaceID, channelID)
		if !ok {
			return apperrors.NewNotFound("timer record", map[string]any{"channel_id": channelID})
		}
		rec.ArchiveThreadID = thread.ID
		l.timers.Put(rec)
		return nil
	}
	if createThread {
		if _, err := l.mirror.EnsureThread(ctx, workspaceID, channelID); err != nil {
			return err
		}
	}
	return nil
}

// Recover reconstructs missing timer records for a category from channel
// permission overlays: the member holding the eligibility role becomes
// the assignee, any other readable member the requester. With dryRun the
// scan only reports what it would recover.
func (l *LifecycleManager) Recover(ctx context.Context, workspaceID, categoryID string, dryRun bool) ([]RecoveredChannel, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	cfg := l.configs.Get(workspaceID)
	if cfg.AssigneeRoleID == "" {
		return nil, apperrors.NewConfigurationMissing("assignee role not configured", map[string]any{"workspace_id": workspaceID})
	}

	channels, err := l.platform.ChannelsInCategory(ctx, workspaceID, categoryID)
	if err != nil {
		return nil, platformError("list channels", err)
	}

	recovered := []RecoveredChannel{}
	for _, channel := range channels {
		if _, ok := l.timers.Get(workspaceID, channel.ID); ok {
			continue
		}
		assigneeID, requesterID := l.classifyOverlay(ctx, workspaceID, cfg.AssigneeRoleID, channel.Overlay)
		if assigneeID == "" {
			continue
		}
		if requesterID == "" {
			requesterID = assigneeID
		}
		recovered = append(recovered, RecoveredChannel{
			ChannelID:   channel.ID,
			ChannelName: channel.Name,
			AssigneeID:  assigneeID,
			RequesterID: requesterID,
		})
		if dryRun {
			continue
		}
		resolved := Resolve(cfg, cfg.Profile(assigneeID))
		l.timers.Put(&domain.TicketTimerRecord{
			WorkspaceID:      workspaceID,
			ChannelID:        channel.ID,
			AssigneeID:       assigneeID,
			RequesterID:      requesterID,
			CreatedAt:        l.now(),
			LastActivityAt:   l.now(),
			TimeoutHours:     resolved.TimeoutHours,
			AutoCloseDays:    resolved.AutoCloseDays,
			AutoCloseEnabled: resolved.AutoCloseEnabled,
			NotifyEnabled:    resolved.NotifyEnabled,
			OpenTicketIDs:    []string{},
		})
	}
	return recovered, nil
}

// ToggleAvailability grants or revokes the eligibility role on the
// member, flipping between accepting and away. A platform permission
// failure is surfaced, not propagated as a crash.
func (l *LifecycleManager) ToggleAvailability(ctx context.Context, workspaceID, memberID string) (bool, error) {
	cfg := l.configs.Get(workspaceID)
	if cfg.AssigneeRoleID == "" {
		return false, apperrors.NewConfigurationMissing("assignee role not configured", map[string]any{"workspace_id": workspaceID})
	}

	member, err := l.platform.Member(ctx, workspaceID, memberID)
	if err != nil {
		return false, memberError(memberID, err)
	}

	if member.HasRole(cfg.AssigneeRoleID) {
		if err := l.platform.RevokeRole(ctx, workspaceID, memberID, cfg.AssigneeRoleID); err != nil {
			return false, platformError("revoke role", err)
		}
		return false, nil
	}
	if err := l.platform.GrantRole(ctx, workspaceID, memberID, cfg.AssigneeRoleID); err != nil {
		return false, platformError("grant role", err)
	}
	return true, nil
}

func (l *LifecycleManager) findReusableChannel(ctx context.Context, workspaceID, assigneeID, requesterID string) *platform.Channel {
	for _, rec := range l.timers.List(workspaceID) {
		if rec.AssigneeID != assigneeID || rec.RequesterID != requesterID {
			continue
		}
		channel, err := l.platform.Channel(ctx, workspaceID, rec.ChannelID)
		if err == nil {
			return channel
		}
	}
	return nil
}

func (l *LifecycleManager) provisionChannel(ctx context.Context, workspaceID string, requester, assignee *platform.Member, resolved ResolvedSettings, title string) (*platform.Channel, error) {
	name := renderChannelName(resolved.NameFormat, l.now(), requester, assignee, title)
	overlay := []platform.PermissionGrant{
		{MemberID: requester.ID, Read: true, Write: true},
		{MemberID: assignee.ID, Read: true, Write: true},
	}
	for _, roleID := range resolved.MentionRoleIDs {
		overlay = append(overlay, platform.PermissionGrant{RoleID: roleID, Read: true, Write: true})
	}
	channel, err := l.platform.CreateChannel(ctx, workspaceID, name, resolved.CategoryID, overlay)
	if err != nil {
		return nil, platformError("create channel", err)
	}
	return channel, nil
}

func (l *LifecycleManager) ticketMessage(requester, assignee *platform.Member, resolved ResolvedSettings, fields TicketFields) platform.Message {
	mentions := []string{platform.MentionMember(assignee.ID)}
	seen := map[string]bool{}
	for _, roleID := range resolved.MentionRoleIDs {
		if roleID == "" || seen[roleID] {
			continue
		}
		seen[roleID] = true
		mentions = append(mentions, platform.MentionRole(roleID))
	}

	description := fmt.Sprintf("Assignee: %s", platform.MentionMember(assignee.ID))
	if resolved.Template != "" {
		description = renderTemplate(resolved.Template, requester, assignee, fields) + "\n\n" + description
	}

	embed := &platform.Embed{
		Title:       fmt.Sprintf("Ticket: %s", fields.Title),
		Description: description,
		Timestamp:   l.now(),
		Fields: []platform.EmbedField{
			{Name: "Requester", Value: fmt.Sprintf("%s (%s)", platform.MentionMember(requester.ID), fields.RequesterName), Inline: true},
		},
	}
	if fields.Kind != "" {
		embed.Fields = append(embed.Fields, platform.EmbedField{Name: "Kind", Value: fields.Kind, Inline: true})
	}
	if fields.Deadline != "" {
		embed.Fields = append(embed.Fields, platform.EmbedField{Name: "Deadline", Value: fields.Deadline, Inline: true})
	}
	if fields.Budget != "" {
		embed.Fields = append(embed.Fields, platform.EmbedField{Name: "Budget", Value: fields.Budget, Inline: true})
	}
	if fields.Notes != "" {
		embed.Fields = append(embed.Fields, platform.EmbedField{Name: "Notes", Value: fields.Notes})
	}

	return platform.Message{
		Content: strings.Join(mentions, " "),
		Embed:   embed,
	}
}

func (l *LifecycleManager) publish(ctx context.Context, event events.Event) {
	if l.dispatcher == nil {
		return
	}
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = l.now()
	}
	_ = l.dispatcher.Publish(ctx, event)
}

func (l *LifecycleManager) classifyOverlay(ctx context.Context, workspaceID, assigneeRoleID string, overlay []platform.PermissionGrant) (assigneeID, requesterID string) {
	for _, grant := range overlay {
		if grant.MemberID == "" {
			continue
		}
		member, err := l.platform.Member(ctx, workspaceID, grant.MemberID)
		if err != nil || member.Bot {
			continue
		}
		if member.HasRole(assigneeRoleID) {
			assigneeID = member.ID
		} else if grant.Read {
			requesterID = member.ID
		}
	}
	return assigneeID, requesterID
}

// renderChannelName substitutes the naming-template placeholders. The
// title is sanitized and capped at ten runes, matching the stored
// channel names the relocation path searches for.
func renderChannelName(format string, now time.Time, requester, assignee *platform.Member, title string) string {
	safeTitle := strings.ToLower(strings.ReplaceAll(title, " ", "_"))
	if runes := []rune(safeTitle); len(runes) > 10 {
		safeTitle = string(runes[:10])
	}
	name := strings.NewReplacer(
		"{date}", now.Format("060102"),
		"{creator}", strings.ToLower(requester.Name),
		"{assignee}", strings.ToLower(assignee.Name),
		"{title}", safeTitle,
		"{id}", requester.ID,
		"{assignee_id}", assignee.ID,
	).Replace(format)
	if name == "" {
		name = strings.ToLower(requester.Name)
	}
	return name
}

func renderTemplate(template string, requester, assignee *platform.Member, fields TicketFields) string {
	return strings.NewReplacer(
		"{creator}", platform.MentionMember(requester.ID),
		"{user}", platform.MentionMember(requester.ID),
		"{creator_name}", fields.RequesterName,
		"{assignee}", platform.MentionMember(assignee.ID),
		"{title}", fields.Title,
		"\\n", "\n",
	).Replace(template)
}

func memberError(memberID string, err error) error {
	if errors.Is(err, platform.ErrNotFound) {
		return apperrors.NewNotFound("member", map[string]any{"member_id": memberID})
	}
	return platformError("fetch member", err)
}

func platformError(action string, err error) error {
	switch {
	case errors.Is(err, platform.ErrPermissionDenied):
		return apperrors.NewPermissionDenied(fmt.Sprintf("platform refused to %s", action), err)
	case errors.Is(err, platform.ErrNotFound):
		return apperrors.NewNotFound(action, nil)
	default:
		return apperrors.MapError(err)
	}
}
