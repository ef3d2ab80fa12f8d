package events

import "time"

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventTicketCreated   EventType = "ticket_created"
	EventTicketClosed    EventType = "ticket_closed"
	EventTicketReopened  EventType = "ticket_reopened"
	EventTicketReminded  EventType = "ticket_reminded"
	EventCloseConfirming EventType = "ticket_close_confirming"
	EventRecordDeleted   EventType = "ticket_record_deleted"
)

// Event represents a lifecycle event emitted by the ticket core.
type Event struct {
	ID          string      `json:"id"`
	Type        EventType   `json:"type"`
	WorkspaceID string      `json:"workspace_id"`
	ChannelID   string      `json:"channel_id"`
	ActorID     string      `json:"actor_id,omitempty"`
	Timestamp   time.Time   `json:"timestamp"`
	Payload     interface{} `json:"payload,omitempty"`
}

// TicketCreatedPayload payload.
type TicketCreatedPayload struct {
	TicketID    string `json:"ticket_id"`
	AssigneeID  string `json:"assignee_id"`
	RequesterID string `json:"requester_id"`
	Title       string `json:"title"`
	ReusedChan  bool   `json:"reused_channel"`
}

// TicketClosedPayload payload.
type TicketClosedPayload struct {
	ClosedTicketIDs []string `json:"closed_ticket_ids"`
}

// TicketReopenedPayload payload.
type TicketReopenedPayload struct {
	TicketID string `json:"ticket_id"`
}

// SweepTransitionPayload payload for scheduler-driven transitions.
type SweepTransitionPayload struct {
	InactiveFor time.Duration `json:"inactive_for"`
}
