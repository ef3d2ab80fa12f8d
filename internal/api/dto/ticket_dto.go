package dto

// CreateTicketRequest opens a ticket with a chosen assignee.
type CreateTicketRequest struct {
	AssigneeID    string `json:"assignee_id"`
	RequesterID   string `json:"requester_id"`
	Title         string `json:"title"`
	RequesterName string `json:"requester_name"`
	Kind          string `json:"kind"`
	Deadline      string `json:"deadline"`
	Budget        string `json:"budget"`
	Notes         string `json:"notes"`
}

// CreateTicketResponse reports the provisioned channel.
type CreateTicketResponse struct {
	ChannelID    string `json:"channel_id"`
	ChannelName  string `json:"channel_name"`
	TicketID     string `json:"ticket_id"`
	ReusedChan   bool   `json:"reused_channel"`
	ThreadFailed bool   `json:"thread_failed,omitempty"`
}

// ActivityRequest records an inbound channel message.
type ActivityRequest struct {
	AuthorID string `json:"author_id"`
	Content  string `json:"content"`
}

// ReopenTicketRequest names the ticket message to restore.
type ReopenTicketRequest struct {
	TicketID string `json:"ticket_id"`
}

// OverrideTimerRequest replaces the frozen timer values.
type OverrideTimerRequest struct {
	TimeoutHours  int `json:"timeout_hours"`
	AutoCloseDays int `json:"auto_close_days"`
}

// LinkChannelRequest registers an existing channel.
type LinkChannelRequest struct {
	AssigneeID   string `json:"assignee_id"`
	RequesterID  string `json:"requester_id"`
	ThreadID     string `json:"thread_id"`
	CreateThread bool   `json:"create_thread"`
}

// RecoverRequest scans a category for unregistered ticket channels.
type RecoverRequest struct {
	CategoryID string `json:"category_id"`
	DryRun     bool   `json:"dry_run"`
}

// RecoveredChannelResponse is one recover result.
type RecoveredChannelResponse struct {
	ChannelID   string `json:"channel_id"`
	ChannelName string `json:"channel_name"`
	AssigneeID  string `json:"assignee_id"`
	RequesterID string `json:"requester_id"`
}

// EligibleAssigneeResponse is one ranked assignment candidate.
type EligibleAssigneeResponse struct {
	MemberID     string `json:"member_id"`
	Name         string `json:"name"`
	Available    bool   `json:"available"`
	RankValue    int    `json:"rank_value"`
	HasRankValue bool   `json:"has_rank_value"`
}
