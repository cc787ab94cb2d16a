package bus

import "time"

// Event kinds published by the daemon. Subscribers filter by namespace
// prefix, e.g. "message." or "greeting.".
const (
	KindMessageUpserted     = "message.upserted"
	KindMessageSendFailed   = "message.send_failed"
	KindGreetingSent        = "greeting.sent"
	KindGreetingFailed      = "greeting.failed"
	KindConversationRead    = "conversation.read"
	KindConversationDeleted = "conversation.deleted"
	KindStatusChanged       = "daemon.status_changed"
)

// Event represents a domain event published on the bus.
type Event struct {
	Kind      string
	Timestamp time.Time
	Payload   any
}
