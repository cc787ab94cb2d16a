package wa

import (
	"testing"
)

// samplePayload mirrors the shape the platform actually delivers.
const samplePayload = `{
	"object": "whatsapp_business_account",
	"entry": [{
		"id": "839608629240039",
		"changes": [{
			"field": "messages",
			"value": {
				"messaging_product": "whatsapp",
				"contacts": [{"wa_id": "5511999990000", "profile": {"name": "Alice"}}],
				"messages": [{
					"from": "5511999990000",
					"id": "wamid.ABC",
					"timestamp": "1700000000",
					"type": "text",
					"text": {"body": "hi there"}
				}]
			}
		}]
	}]
}`

func TestParseWebhookTextMessage(t *testing.T) {
	events := ParseWebhook([]byte(samplePayload))
	if len(events) != 1 {
		t.Fatalf("got %d events, want 1", len(events))
	}

	evt := events[0]
	if evt.ContactID != "5511999990000" {
		t.Errorf("ContactID = %q", evt.ContactID)
	}
	if evt.MsgID != "wamid.ABC" {
		t.Errorf("MsgID = %q", evt.MsgID)
	}
	if evt.Type != "text" {
		t.Errorf("Type = %q, want text", evt.Type)
	}
	if evt.Text != "hi there" {
		t.Errorf("Text = %q", evt.Text)
	}
	if evt.SenderName != "Alice" {
		t.Errorf("SenderName = %q, want Alice", evt.SenderName)
	}
	if evt.Reply {
		t.Error("Reply = true, want false")
	}
	if evt.ReceivedAt != 1700000000000 {
		t.Errorf("ReceivedAt = %d, want unix ms", evt.ReceivedAt)
	}
}

func TestParseWebhookReplyContext(t *testing.T) {
	body := `{"entry":[{"changes":[{"value":{"messages":[
		{"from":"c1","id":"m1","type":"text","text":{"body":"ok"},
		 "context":{"from":"839608629240039","id":"wamid.PREV"}}
	]}}]}]}`

	events := ParseWebhook([]byte(body))
	if len(events) != 1 {
		t.Fatalf("got %d events, want 1", len(events))
	}
	if !events[0].Reply {
		t.Error("Reply = false, want true")
	}
	if events[0].ReplyToID != "wamid.PREV" {
		t.Errorf("ReplyToID = %q, want wamid.PREV", events[0].ReplyToID)
	}
}

func TestParseWebhookSessionID(t *testing.T) {
	body := `{"entry":[{"changes":[{"value":{
		"conversation":{"id":"conv-42"},
		"messages":[{"from":"c1","id":"m1","type":"text","text":{"body":"hi"}}]
	}}]}]}`

	events := ParseWebhook([]byte(body))
	if len(events) != 1 {
		t.Fatalf("got %d events, want 1", len(events))
	}
	if events[0].SessionID != "conv-42" {
		t.Errorf("SessionID = %q, want conv-42", events[0].SessionID)
	}
}

func TestParseWebhookNoEvents(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"malformed json", `{"entry": [`},
		{"empty body", ``},
		{"empty object", `{}`},
		{"status only", `{"entry":[{"changes":[{"value":{"statuses":[{"id":"wamid.X","status":"delivered","recipient_id":"c1"}]}}]}]}`},
		{"message without sender", `{"entry":[{"changes":[{"value":{"messages":[{"id":"m1","type":"text"}]}}]}]}`},
		{"message without id", `{"entry":[{"changes":[{"value":{"messages":[{"from":"c1","type":"text"}]}}]}]}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if events := ParseWebhook([]byte(tt.body)); len(events) != 0 {
				t.Errorf("got %d events, want 0", len(events))
			}
		})
	}
}

// TestParseWebhookWalksAllMessages guards against the index-0 shortcut: a
// single delivery can batch several entries, changes and messages.
func TestParseWebhookWalksAllMessages(t *testing.T) {
	body := `{"entry":[
		{"changes":[{"value":{"messages":[
			{"from":"c1","id":"m1","type":"text","text":{"body":"one"}},
			{"from":"c2","id":"m2","type":"text","text":{"body":"two"}}
		]}}]},
		{"changes":[{"value":{"messages":[
			{"from":"c3","id":"m3","type":"image","image":{"caption":"three"}}
		]}}]}
	]}`

	events := ParseWebhook([]byte(body))
	if len(events) != 3 {
		t.Fatalf("got %d events, want 3", len(events))
	}
	if events[2].Type != "image" || events[2].Text != "three" {
		t.Errorf("events[2] = %+v", events[2])
	}
}

func TestExtractText(t *testing.T) {
	tests := []struct {
		name string
		msg  RawMessage
		want string
	}{
		{"text", RawMessage{Text: &TextBody{Body: "hello"}}, "hello"},
		{"button", RawMessage{Button: &ButtonBody{Text: "Yes"}}, "Yes"},
		{"image caption", RawMessage{Image: &MediaBody{Caption: "a photo"}}, "a photo"},
		{"document caption", RawMessage{Document: &MediaBody{Caption: "a file"}}, "a file"},
		{"sticker", RawMessage{Type: "sticker"}, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := extractText(&tt.msg); got != tt.want {
				t.Errorf("extractText() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestParseTimestampFallback(t *testing.T) {
	// Unparseable timestamps fall back to "now" rather than zero, so idle
	// window math stays sane.
	if got := parseTimestamp("not-a-number"); got <= 0 {
		t.Errorf("parseTimestamp fallback = %d, want positive", got)
	}
	if got := parseTimestamp("1700000000"); got != 1700000000000 {
		t.Errorf("parseTimestamp = %d, want 1700000000000", got)
	}
}

func TestUnknownTypeDefaults(t *testing.T) {
	body := `{"entry":[{"changes":[{"value":{"messages":[{"from":"c1","id":"m1"}]}}]}]}`
	events := ParseWebhook([]byte(body))
	if len(events) != 1 {
		t.Fatalf("got %d events, want 1", len(events))
	}
	if events[0].Type != "unknown" {
		t.Errorf("Type = %q, want unknown", events[0].Type)
	}
}
