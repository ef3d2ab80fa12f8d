// Package slack adapts the Slack Web API to the platform.Client boundary.
//
// Mapping notes: workspaces correspond to the token's Slack workspace,
// roles to user groups, and archival threads to message threads in the
// archive channel, addressed as "<channel>:<parent ts>". Slack has no
// channel categories; the category id is stored in the conversation
// purpose and matched on listing. Channels are archived instead of
// deleted, which Slack tokens usually cannot do.
package slack

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/slack-go/slack"

	"github.com/spec-kit/ticket-desk/internal/platform"
)

const categoryPurposePrefix = "category:"

// Client implements platform.Client on the Slack Web API.
type Client struct {
	api *slack.Client

	mu       sync.Mutex
	archived map[string]bool
}

// New creates the adapter. apiBase overrides the API endpoint for tests.
func New(token, apiBase string) *Client {
	opts := []slack.Option{}
	if apiBase != "" {
		opts = append(opts, slack.OptionAPIURL(strings.TrimSuffix(apiBase, "/")+"/"))
	}
	return &Client{
		api:      slack.New(token, opts...),
		archived: map[string]bool{},
	}
}

func (c *Client) CreateChannel(ctx context.Context, workspaceID, name, categoryID string, overlay []platform.PermissionGrant) (*platform.Channel, error) {
	conv, err := c.api.CreateConversationContext(ctx, slack.CreateConversationParams{
		ChannelName: name,
		IsPrivate:   true,
	})
	if err != nil {
		return nil, mapSlackError(err)
	}

	if categoryID != "" {
		if _, err := c.api.SetPurposeOfConversationContext(ctx, conv.ID, categoryPurposePrefix+categoryID); err != nil {
			return nil, mapSlackError(err)
		}
	}

	memberIDs := []string{}
	for _, grant := range overlay {
		if grant.MemberID != "" {
			memberIDs = append(memberIDs, grant.MemberID)
		}
	}
	if len(memberIDs) > 0 {
		if _, err := c.api.InviteUsersToConversationContext(ctx, conv.ID, memberIDs...); err != nil {
			return nil, mapSlackError(err)
		}
	}

	return &platform.Channel{
		ID:         conv.ID,
		Name:       conv.Name,
		CategoryID: categoryID,
		Overlay:    overlay,
	}, nil
}

func (c *Client) Channel(ctx context.Context, workspaceID, channelID string) (*platform.Channel, error) {
	conv, err := c.api.GetConversationInfoContext(ctx, &slack.GetConversationInfoInput{ChannelID: channelID})
	if err != nil {
		return nil, mapSlackError(err)
	}
	if conv.IsArchived {
		return nil, platform.ErrNotFound
	}

	overlay := []platform.PermissionGrant{}
	memberIDs, _, err := c.api.GetUsersInConversationContext(ctx, &slack.GetUsersInConversationParameters{
		ChannelID: channelID,
		Limit:     200,
	})
	if err == nil {
		for _, id := range memberIDs {
			overlay = append(overlay, platform.PermissionGrant{MemberID: id, Read: true, Write: true})
		}
	}

	return &platform.Channel{
		ID:         conv.ID,
		Name:       conv.Name,
		CategoryID: categoryFromPurpose(conv.Purpose.Value),
		Overlay:    overlay,
	}, nil
}

func (c *Client) ChannelsInCategory(ctx context.Context, workspaceID, categoryID string) ([]*platform.Channel, error) {
	out := []*platform.Channel{}
	cursor := ""
	for {
		convs, next, err := c.api.GetConversationsContext(ctx, &slack.GetConversationsParameters{
			Types:           []string{"public_channel", "private_channel"},
			ExcludeArchived: true,
			Cursor:          cursor,
			Limit:           200,
		})
		if err != nil {
			return nil, mapSlackError(err)
		}
		for _, conv := range convs {
			if categoryFromPurpose(conv.Purpose.Value) != categoryID {
				continue
			}
			channel, err := c.Channel(ctx, workspaceID, conv.ID)
			if err != nil {
				continue
			}
			out = append(out, channel)
		}
		if next == "" {
			return out, nil
		}
		cursor = next
	}
}

func (c *Client) DeleteChannel(ctx context.Context, workspaceID, channelID string) error {
	if err := c.api.ArchiveConversationContext(ctx, channelID); err != nil {
		return mapSlackError(err)
	}
	return nil
}

func (c *Client) SendMessage(ctx context.Context, workspaceID, channelID string, msg platform.Message) (*platform.SentMessage, error) {
	_, ts, err := c.api.PostMessageContext(ctx, channelID, messageOptions(msg)...)
	if err != nil {
		return nil, mapSlackError(err)
	}
	return &platform.SentMessage{ID: ts, ChannelID: channelID}, nil
}

func (c *Client) EditMessage(ctx context.Context, workspaceID, channelID, messageID string, msg platform.Message) error {
	_, _, _, err := c.api.UpdateMessageContext(ctx, channelID, messageID, messageOptions(msg)...)
	return mapSlackError(err)
}

func (c *Client) Member(ctx context.Context, workspaceID, memberID string) (*platform.Member, error) {
	user, err := c.api.GetUserInfoContext(ctx, memberID)
	if err != nil {
		return nil, mapSlackError(err)
	}

	roleIDs := []string{}
	groups, err := c.api.GetUserGroupsContext(ctx, slack.GetUserGroupsOptionIncludeUsers(true))
	if err == nil {
		for _, group := range groups {
			for _, id := range group.Users {
				if id == memberID {
					roleIDs = append(roleIDs, group.ID)
					break
				}
			}
		}
	}

	return &platform.Member{
		ID:          user.ID,
		Name:        user.Name,
		DisplayName: displayName(user),
		Bot:         user.IsBot,
		RoleIDs:     roleIDs,
	}, nil
}

func (c *Client) MembersWithRole(ctx context.Context, workspaceID, roleID string) ([]*platform.Member, error) {
	memberIDs, err := c.api.GetUserGroupMembersContext(ctx, roleID)
	if err != nil {
		return nil, mapSlackError(err)
	}
	members := make([]*platform.Member, 0, len(memberIDs))
	for _, id := range memberIDs {
		member, err := c.Member(ctx, workspaceID, id)
		if err != nil {
			if errors.Is(err, platform.ErrNotFound) {
				continue
			}
			return nil, err
		}
		members = append(members, member)
	}
	return members, nil
}

func (c *Client) GrantRole(ctx context.Context, workspaceID, memberID, roleID string) error {
	current, err := c.api.GetUserGroupMembersContext(ctx, roleID)
	if err != nil {
		return mapSlackError(err)
	}
	for _, id := range current {
		if id == memberID {
			return nil
		}
	}
	_, err = c.api.UpdateUserGroupMembersContext(ctx, roleID, strings.Join(append(current, memberID), ","))
	return mapSlackError(err)
}

func (c *Client) RevokeRole(ctx context.Context, workspaceID, memberID, roleID string) error {
	current, err := c.api.GetUserGroupMembersContext(ctx, roleID)
	if err != nil {
		return mapSlackError(err)
	}
	remaining := make([]string, 0, len(current))
	for _, id := range current {
		if id != memberID {
			remaining = append(remaining, id)
		}
	}
	if len(remaining) == len(current) {
		return nil
	}
	_, err = c.api.UpdateUserGroupMembersContext(ctx, roleID, strings.Join(remaining, ","))
	return mapSlackError(err)
}

func (c *Client) CreateThread(ctx context.Context, workspaceID, containerID, name string, first platform.Message) (*platform.Thread, error) {
	_, parentTS, err := c.api.PostMessageContext(ctx, containerID, slack.MsgOptionText(name, false))
	if err != nil {
		return nil, mapSlackError(err)
	}
	threadID := threadRef(containerID, parentTS)
	if _, err := c.SendToThread(ctx, workspaceID, threadID, first); err != nil {
		return nil, err
	}
	return &platform.Thread{ID: threadID, Name: name}, nil
}

func (c *Client) Thread(ctx context.Context, workspaceID, threadID string) (*platform.Thread, error) {
	containerID, parentTS, err := parseThreadRef(threadID)
	if err != nil {
		return nil, platform.ErrNotFound
	}
	msgs, _, _, err := c.api.GetConversationRepliesContext(ctx, &slack.GetConversationRepliesParameters{
		ChannelID: containerID,
		Timestamp: parentTS,
		Limit:     1,
	})
	if err != nil {
		return nil, mapSlackError(err)
	}
	if len(msgs) == 0 {
		return nil, platform.ErrNotFound
	}
	return &platform.Thread{
		ID:       threadID,
		Name:     msgs[0].Text,
		Archived: c.isArchived(threadID),
	}, nil
}

func (c *Client) FindThreadByName(ctx context.Context, workspaceID, containerID, name string) (*platform.Thread, error) {
	cursor := ""
	for {
		resp, err := c.api.GetConversationHistoryContext(ctx, &slack.GetConversationHistoryParameters{
			ChannelID: containerID,
			Cursor:    cursor,
			Limit:     200,
		})
		if err != nil {
			return nil, mapSlackError(err)
		}
		for _, msg := range resp.Messages {
			if msg.Text != name {
				continue
			}
			threadID := threadRef(containerID, msg.Timestamp)
			return &platform.Thread{
				ID:       threadID,
				Name:     name,
				Archived: c.isArchived(threadID),
			}, nil
		}
		if !resp.HasMore || resp.ResponseMetaData.NextCursor == "" {
			return nil, platform.ErrNotFound
		}
		cursor = resp.ResponseMetaData.NextCursor
	}
}

func (c *Client) SendToThread(ctx context.Context, workspaceID, threadID string, msg platform.Message) (*platform.SentMessage, error) {
	containerID, parentTS, err := parseThreadRef(threadID)
	if err != nil {
		return nil, platform.ErrNotFound
	}
	opts := append(messageOptions(msg), slack.MsgOptionTS(parentTS))
	_, ts, err := c.api.PostMessageContext(ctx, containerID, opts...)
	if err != nil {
		return nil, mapSlackError(err)
	}
	return &platform.SentMessage{ID: ts, ChannelID: containerID}, nil
}

// SetThreadArchived tracks thread closure locally; Slack threads have no
// native archived state.
func (c *Client) SetThreadArchived(ctx context.Context, workspaceID, threadID string, archived, locked bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if archived {
		c.archived[threadID] = true
	} else {
		delete(c.archived, threadID)
	}
	return nil
}

func (c *Client) isArchived(threadID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.archived[threadID]
}

func messageOptions(msg platform.Message) []slack.MsgOption {
	text := msg.Content
	for _, url := range msg.AttachmentURLs {
		text += "\n" + url
	}
	opts := []slack.MsgOption{slack.MsgOptionText(text, false)}

	blocks := []slack.Block{}
	if msg.Embed != nil {
		blocks = append(blocks, embedBlocks(msg.Embed)...)
	}
	if len(msg.Controls) > 0 {
		buttons := make([]slack.BlockElement, 0, len(msg.Controls))
		for _, control := range msg.Controls {
			button := slack.NewButtonBlockElement(control.ID, control.ID,
				slack.NewTextBlockObject(slack.PlainTextType, control.Label, false, false))
			switch control.Style {
			case "danger":
				button.Style = slack.StyleDanger
			case "primary":
				button.Style = slack.StylePrimary
			}
			buttons = append(buttons, button)
		}
		blocks = append(blocks, slack.NewActionBlock("", buttons...))
	}
	if len(blocks) > 0 {
		opts = append(opts, slack.MsgOptionBlocks(blocks...))
	}
	return opts
}

func embedBlocks(embed *platform.Embed) []slack.Block {
	blocks := []slack.Block{}
	if embed.Title != "" {
		blocks = append(blocks, slack.NewHeaderBlock(
			slack.NewTextBlockObject(slack.PlainTextType, embed.Title, false, false)))
	}
	if embed.Description != "" {
		blocks = append(blocks, slack.NewSectionBlock(
			slack.NewTextBlockObject(slack.MarkdownType, embed.Description, false, false), nil, nil))
	}
	if len(embed.Fields) > 0 {
		fields := make([]*slack.TextBlockObject, 0, len(embed.Fields))
		for _, field := range embed.Fields {
			fields = append(fields, slack.NewTextBlockObject(slack.MarkdownType,
				fmt.Sprintf("*%s*\n%s", field.Name, field.Value), false, false))
		}
		blocks = append(blocks, slack.NewSectionBlock(nil, fields, nil))
	}
	return blocks
}

func displayName(user *slack.User) string {
	if user.Profile.DisplayName != "" {
		return user.Profile.DisplayName
	}
	if user.RealName != "" {
		return user.RealName
	}
	return user.Name
}

func categoryFromPurpose(purpose string) string {
	if strings.HasPrefix(purpose, categoryPurposePrefix) {
		return strings.TrimPrefix(purpose, categoryPurposePrefix)
	}
	return ""
}

func threadRef(containerID, parentTS string) string {
	return containerID + ":" + parentTS
}

func parseThreadRef(threadID string) (containerID, parentTS string, err error) {
	containerID, parentTS, ok := strings.Cut(threadID, ":")
	if !ok || containerID == "" || parentTS == "" {
		return "", "", errors.New("malformed thread reference")
	}
	return containerID, parentTS, nil
}

func mapSlackError(err error) error {
	if err == nil {
		return nil
	}
	msg := err.Error()
	switch {
	case strings.Contains(msg, "channel_not_found"),
		strings.Contains(msg, "user_not_found"),
		strings.Contains(msg, "thread_not_found"),
		strings.Contains(msg, "message_not_found"),
		strings.Contains(msg, "subteam_not_found"),
		strings.Contains(msg, "is_archived"):
		return fmt.Errorf("%w: %s", platform.ErrNotFound, msg)
	case strings.Contains(msg, "not_authed"),
		strings.Contains(msg, "missing_scope"),
		strings.Contains(msg, "restricted_action"),
		strings.Contains(msg, "permission"):
		return fmt.Errorf("%w: %s", platform.ErrPermissionDenied, msg)
	default:
		return err
	}
}
