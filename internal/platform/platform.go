package platform

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Sentinel errors the core reacts to. NotFound drives self-healing
// cleanup of stale records; PermissionDenied is surfaced to the invoking
// user rather than propagated as a crash.
var (
	ErrNotFound         = errors.New("platform: not found")
	ErrPermissionDenied = errors.New("platform: permission denied")
)

// Role is a platform role reference.
type Role struct {
	ID   string
	Name string
}

// Member is a workspace member.
type Member struct {
	ID          string
	Name        string
	DisplayName string
	Bot         bool
	RoleIDs     []string
}

// HasRole reports whether the member currently holds the role.
func (m *Member) HasRole(roleID string) bool {
	for _, id := range m.RoleIDs {
		if id == roleID {
			return true
		}
	}
	return false
}

// PermissionGrant is one entry of a channel permission overlay. Exactly
// one of MemberID and RoleID is set.
type PermissionGrant struct {
	MemberID string
	RoleID   string
	Read     bool
	Write    bool
	Manage   bool
}

// Channel is a conversational container.
type Channel struct {
	ID         string
	Name       string
	CategoryID string
	Overlay    []PermissionGrant
}

// Thread is an archival thread inside a container channel.
type Thread struct {
	ID       string
	Name     string
	Archived bool
}

// EmbedField is one field of rich structured content.
type EmbedField struct {
	Name   string
	Value  string
	Inline bool
}

// Embed is rich structured message content.
type Embed struct {
	Title       string
	Description string
	Color       string
	Fields      []EmbedField
	Timestamp   time.Time
}

// Control is an interactive control attached to a message.
type Control struct {
	ID    string
	Label string
	Style string
}

// Message is an outbound message.
type Message struct {
	Content        string
	Embed          *Embed
	Controls       []Control
	AttachmentURLs []string
}

// SentMessage identifies a delivered message.
type SentMessage struct {
	ID        string
	ChannelID string
}

// Client is the chat-platform boundary required by the ticket core. All
// calls are scoped to a workspace id; implementations translate that to
// their tenant concept.
type Client interface {
	CreateChannel(ctx context.Context, workspaceID, name, categoryID string, overlay []PermissionGrant) (*Channel, error)
	Channel(ctx context.Context, workspaceID, channelID string) (*Channel, error)
	ChannelsInCategory(ctx context.Context, workspaceID, categoryID string) ([]*Channel, error)
	DeleteChannel(ctx context.Context, workspaceID, channelID string) error

	SendMessage(ctx context.Context, workspaceID, channelID string, msg Message) (*SentMessage, error)
	EditMessage(ctx context.Context, workspaceID, channelID, messageID string, msg Message) error

	Member(ctx context.Context, workspaceID, memberID string) (*Member, error)
	MembersWithRole(ctx context.Context, workspaceID, roleID string) ([]*Member, error)
	GrantRole(ctx context.Context, workspaceID, memberID, roleID string) error
	RevokeRole(ctx context.Context, workspaceID, memberID, roleID string) error

	CreateThread(ctx context.Context, workspaceID, containerID, name string, first Message) (*Thread, error)
	Thread(ctx context.Context, workspaceID, threadID string) (*Thread, error)
	FindThreadByName(ctx context.Context, workspaceID, containerID, name string) (*Thread, error)
	SendToThread(ctx context.Context, workspaceID, threadID string, msg Message) (*SentMessage, error)
	SetThreadArchived(ctx context.Context, workspaceID, threadID string, archived, locked bool) error
}

// MentionMember renders a member mention.
func MentionMember(memberID string) string {
	return fmt.Sprintf("<@%s>", memberID)
}

// MentionRole renders a role mention.
func MentionRole(roleID string) string {
	return fmt.Sprintf("<@&%s>", roleID)
}

// MentionChannel renders a channel reference.
func MentionChannel(channelID string) string {
	return fmt.Sprintf("<#%s>", channelID)
}
