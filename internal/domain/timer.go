package domain

import "time"

// TicketState is the derived lifecycle state of a timer record.
type TicketState string

const (
	StateActive          TicketState = "ACTIVE"
	StateReminded        TicketState = "REMINDED"
	StateCloseConfirming TicketState = "CLOSE_CONFIRMING"
	StateClosed          TicketState = "CLOSED"
)

// TicketTimerRecord is the canonical per-channel timer state. One record
// exists per ticket channel while the channel exists; a channel may host
// several concurrently open tickets, tracked by their message ids. Timer
// values are frozen from the resolver at creation and only change through
// an explicit override.
type TicketTimerRecord struct {
	WorkspaceID      string    `json:"workspace_id"`
	ChannelID        string    `json:"channel_id"`
	AssigneeID       string    `json:"assignee_id"`
	RequesterID      string    `json:"requester_id"`
	CreatedAt        time.Time `json:"created_at"`
	LastActivityAt   time.Time `json:"last_activity_at"`
	TimeoutHours     int       `json:"timeout_hours"`
	AutoCloseDays    int       `json:"auto_close_days"`
	AutoCloseEnabled bool      `json:"auto_close_enabled"`
	NotifyEnabled    bool      `json:"notify_enabled"`
	OpenTicketIDs    []string  `json:"open_ticket_ids"`
	Reminded         bool      `json:"reminded"`
	CloseConfirming  bool      `json:"close_confirming"`
	ArchiveThreadID  string    `json:"archive_thread_id,omitempty"`
	LastMirrorAt     time.Time `json:"last_mirror_at,omitempty"`
}

// Normalize fills nil collections after decoding.
func (r *TicketTimerRecord) Normalize() {
	if r.OpenTicketIDs == nil {
		r.OpenTicketIDs = []string{}
	}
}

// State derives the lifecycle state from the record flags.
func (r *TicketTimerRecord) State() TicketState {
	switch {
	case len(r.OpenTicketIDs) == 0:
		return StateClosed
	case r.CloseConfirming:
		return StateCloseConfirming
	case r.Reminded:
		return StateReminded
	default:
		return StateActive
	}
}

// Touch refreshes the activity timestamp and clears both escalation
// flags; any inbound activity returns the record to Active.
func (r *TicketTimerRecord) Touch(now time.Time) {
	r.LastActivityAt = now
	r.Reminded = false
	r.CloseConfirming = false
}

// HasOpenTicket reports whether the ticket id is currently open in this
// channel.
func (r *TicketTimerRecord) HasOpenTicket(ticketID string) bool {
	for _, id := range r.OpenTicketIDs {
		if id == ticketID {
			return true
		}
	}
	return false
}

// OpenTicket appends the ticket id if it is not already open.
func (r *TicketTimerRecord) OpenTicket(ticketID string) {
	if !r.HasOpenTicket(ticketID) {
		r.OpenTicketIDs = append(r.OpenTicketIDs, ticketID)
	}
}
