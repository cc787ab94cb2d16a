package wa

import (
	"encoding/json"
	"strconv"
	"time"
)

// ParseWebhook normalizes a raw webhook body into inbound events. It is a
// pure transform: malformed bodies, status-only deliveries and messages
// without a sender or id all yield zero events rather than an error, since
// the webhook endpoint acknowledges every delivery anyway.
//
// Every entry, change and message is walked; the platform batches multiple
// messages into one delivery.
func ParseWebhook(body []byte) []*InboundEvent {
	var payload WebhookPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil
	}
	return Classify(&payload)
}

// Classify extracts inbound events from a decoded payload.
func Classify(payload *WebhookPayload) []*InboundEvent {
	if payload == nil {
		return nil
	}
	var events []*InboundEvent
	for _, entry := range payload.Entry {
		for _, change := range entry.Changes {
			names := profileNames(change.Value.Contacts)
			sessionID := ""
			if change.Value.Conversation != nil {
				sessionID = change.Value.Conversation.ID
			}
			for _, msg := range change.Value.Messages {
				evt := classifyMessage(&msg, names, sessionID)
				if evt != nil {
					events = append(events, evt)
				}
			}
		}
	}
	return events
}

func classifyMessage(msg *RawMessage, names map[string]string, sessionID string) *InboundEvent {
	if msg.From == "" || msg.ID == "" {
		return nil
	}

	evt := &InboundEvent{
		ContactID:  msg.From,
		MsgID:      msg.ID,
		Type:       msg.Type,
		Text:       extractText(msg),
		SenderName: names[msg.From],
		SessionID:  sessionID,
		ReceivedAt: parseTimestamp(msg.Timestamp),
	}
	if evt.Type == "" {
		evt.Type = "unknown"
	}
	if msg.Context != nil {
		evt.Reply = true
		evt.ReplyToID = msg.Context.ID
	}
	return evt
}

func extractText(msg *RawMessage) string {
	switch {
	case msg.Text != nil:
		return msg.Text.Body
	case msg.Button != nil:
		return msg.Button.Text
	case msg.Image != nil:
		return msg.Image.Caption
	case msg.Document != nil:
		return msg.Document.Caption
	default:
		return ""
	}
}

func profileNames(contacts []ContactProfile) map[string]string {
	if len(contacts) == 0 {
		return nil
	}
	names := make(map[string]string, len(contacts))
	for _, c := range contacts {
		if c.WaID != "" && c.Profile.Name != "" {
			names[c.WaID] = c.Profile.Name
		}
	}
	return names
}

func parseTimestamp(ts string) int64 {
	secs, err := strconv.ParseInt(ts, 10, 64)
	if err != nil || secs <= 0 {
		return time.Now().UnixMilli()
	}
	return secs * 1000
}
