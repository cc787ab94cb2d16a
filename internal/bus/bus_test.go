package bus

import (
	"testing"
	"time"
)

func TestPublishSubscribe(t *testing.T) {
	b := New()
	ch, unsub := b.Subscribe("greeting.", 10)
	defer unsub()

	b.Publish(Event{Kind: KindGreetingSent, Timestamp: time.Now(), Payload: "5511999990000"})

	select {
	case evt := <-ch:
		if evt.Kind != KindGreetingSent {
			t.Errorf("got kind %q, want %q", evt.Kind, KindGreetingSent)
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for event")
	}
}

func TestNamespaceFiltering(t *testing.T) {
	b := New()
	ch, unsub := b.Subscribe("conversation.", 10)
	defer unsub()

	b.Publish(Event{Kind: KindMessageUpserted})
	b.Publish(Event{Kind: KindConversationRead})

	select {
	case evt := <-ch:
		if evt.Kind != KindConversationRead {
			t.Errorf("got kind %q, want %q", evt.Kind, KindConversationRead)
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for event")
	}

	// Ensure the message event was not delivered.
	select {
	case evt := <-ch:
		t.Errorf("unexpected event: %v", evt)
	case <-time.After(50 * time.Millisecond):
		// Expected: no more events.
	}
}

func TestUnsubscribe(t *testing.T) {
	b := New()
	ch, unsub := b.Subscribe("message.", 10)
	unsub()

	b.Publish(Event{Kind: KindMessageUpserted})

	select {
	case evt := <-ch:
		t.Errorf("received event after unsubscribe: %v", evt)
	case <-time.After(50 * time.Millisecond):
		// Expected.
	}
}

func TestDropOnFullBuffer(t *testing.T) {
	b := New()
	ch, unsub := b.Subscribe("message.", 1)
	defer unsub()

	// Fill buffer.
	b.Publish(Event{Kind: KindMessageUpserted, Payload: "first"})
	// This should be dropped (non-blocking).
	b.Publish(Event{Kind: KindMessageUpserted, Payload: "second"})

	evt := <-ch
	if evt.Payload != "first" {
		t.Errorf("got payload %v, want first", evt.Payload)
	}
}
