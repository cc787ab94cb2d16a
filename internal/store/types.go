package store

// Message directions.
const (
	DirectionIn  = "in"
	DirectionOut = "out"
)

// Message statuses. Inbound messages are always "received"; outbound
// messages move through sending -> sent|failed.
const (
	StatusReceived = "received"
	StatusSending  = "sending"
	StatusSent     = "sent"
	StatusFailed   = "failed"
)

// Conversation is the durable per-contact record. ContactID is the phone
// number assigned by the platform and never changes.
type Conversation struct {
	ContactID          string
	DisplayName        string
	UnreadCount        int
	LastGreetingAt     int64 // unix ms, 0 = never greeted
	LastActivityAt     int64 // unix ms of the last recorded message
	LastConversationID string
}

// Message is one entry in a conversation's append-only history.
type Message struct {
	ID          int64
	ContactID   string
	MsgID       string
	Direction   string
	Body        string
	MessageType string
	Status      string
	Timestamp   int64
}

// SearchResult holds a message with a search snippet.
type SearchResult struct {
	Message Message
	Snippet string
}
