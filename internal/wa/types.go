package wa

// Webhook payload model for WhatsApp Cloud API deliveries. Only the fields
// the classifier reads are declared; everything else in the payload is
// ignored by json.Unmarshal.

// WebhookPayload is the top-level body of a webhook POST.
type WebhookPayload struct {
	Object string  `json:"object"`
	Entry  []Entry `json:"entry"`
}

// Entry is one business-account entry in a delivery.
type Entry struct {
	ID      string   `json:"id"`
	Changes []Change `json:"changes"`
}

// Change is one field change inside an entry.
type Change struct {
	Field string `json:"field"`
	Value Value  `json:"value"`
}

// Value carries the actual messages, sender profiles and delivery statuses.
type Value struct {
	MessagingProduct string           `json:"messaging_product"`
	Contacts         []ContactProfile `json:"contacts"`
	Messages         []RawMessage     `json:"messages"`
	Statuses         []DeliveryStatus `json:"statuses"`
	Conversation     *ConversationRef `json:"conversation"`
}

// ContactProfile maps a sender wa_id to a profile name.
type ContactProfile struct {
	WaID    string `json:"wa_id"`
	Profile struct {
		Name string `json:"name"`
	} `json:"profile"`
}

// RawMessage is one inbound message as delivered by the platform.
type RawMessage struct {
	From      string          `json:"from"`
	ID        string          `json:"id"`
	Timestamp string          `json:"timestamp"` // unix seconds as string
	Type      string          `json:"type"`
	Text      *TextBody       `json:"text"`
	Image     *MediaBody      `json:"image"`
	Document  *MediaBody      `json:"document"`
	Button    *ButtonBody     `json:"button"`
	Context   *MessageContext `json:"context"`
}

// TextBody is the body of a text message.
type TextBody struct {
	Body string `json:"body"`
}

// MediaBody carries the caption of a media message; the media itself is not
// downloaded.
type MediaBody struct {
	Caption string `json:"caption"`
}

// ButtonBody is a quick-reply button press.
type ButtonBody struct {
	Text string `json:"text"`
}

// MessageContext is present when the message replies to an earlier one.
type MessageContext struct {
	From string `json:"from"`
	ID   string `json:"id"`
}

// DeliveryStatus is a sent/delivered/read notification for an outbound
// message. These never produce inbound events.
type DeliveryStatus struct {
	ID           string           `json:"id"`
	Status       string           `json:"status"`
	RecipientID  string           `json:"recipient_id"`
	Conversation *ConversationRef `json:"conversation"`
}

// ConversationRef is the platform-assigned conversation (session) marker.
type ConversationRef struct {
	ID string `json:"id"`
}

// InboundEvent is the canonical internal event consumed by the tracker.
// Optional payload fields propagate as empty values, never as inferred ones.
type InboundEvent struct {
	ContactID  string
	MsgID      string
	Type       string
	Text       string
	Reply      bool
	ReplyToID  string
	SenderName string
	SessionID  string
	ReceivedAt int64 // unix ms
}
