// Package api holds the wire types shared by the daemon's admin HTTP
// surface and the clients that consume it (wabotctl, wabottui).
package api

// Conversation is the admin view of a tracked contact.
type Conversation struct {
	ContactID          string `json:"contact_id"`
	DisplayName        string `json:"display_name,omitempty"`
	UnreadCount        int    `json:"unread_count"`
	LastGreetingAt     int64  `json:"last_greeting_at,omitempty"`
	LastActivityAt     int64  `json:"last_activity_at"`
	LastConversationID string `json:"last_conversation_id,omitempty"`
}

// Message is one history entry. Timestamps are unix milliseconds.
type Message struct {
	ID          int64  `json:"id"`
	ContactID   string `json:"contact_id"`
	MsgID       string `json:"msg_id"`
	Direction   string `json:"direction"`
	Body        string `json:"body"`
	MessageType string `json:"message_type"`
	Status      string `json:"status"`
	Timestamp   int64  `json:"timestamp"`
}

// SearchResult pairs a matched message with its highlighted snippet.
type SearchResult struct {
	Message Message `json:"message"`
	Snippet string  `json:"snippet"`
}

// Status reports daemon health and store counters.
type Status struct {
	State         string `json:"state"`
	PID           int    `json:"pid"`
	UptimeSeconds int64  `json:"uptime_seconds"`
	Conversations int64  `json:"conversations"`
	Messages      int64  `json:"messages"`
}

// SendMessageRequest is the body of POST /v1/conversations/:id/messages.
type SendMessageRequest struct {
	Text string `json:"text" binding:"required"`
}

// Event is one entry on the admin event stream.
type Event struct {
	ID        string `json:"id"`
	Kind      string `json:"kind"`
	Timestamp int64  `json:"timestamp"`
	Payload   any    `json:"payload,omitempty"`
}

// ErrorResponse is the uniform error body for non-2xx admin responses.
type ErrorResponse struct {
	Error string `json:"error"`
}
