// Package policy decides whether an inbound message opens a new conversation
// that deserves an automated greeting, or continues an active one.
package policy

import (
	"time"

	"github.com/matheus3301/wabot/internal/store"
	"github.com/matheus3301/wabot/internal/wa"
)

// DefaultIdleThreshold is how long a contact must stay silent before a
// non-reply message counts as a fresh conversation.
const DefaultIdleThreshold = 24 * time.Hour

// ShouldGreet reports whether the event should trigger the automated
// greeting. rec is the conversation state as of before this event was
// recorded (nil if the contact was never seen); the caller must pass that
// pre-update snapshot or the idle comparison is meaningless.
//
// Rules, first match wins:
//  1. no record: first-ever contact.
//  2. the event carries a session id different from the recorded one: the
//     platform signaled a conversation reset. Checked before the idle rule.
//  3. not a reply and the contact has been idle past the threshold.
//  4. otherwise, no greeting.
//
// Pure function: no I/O, evaluated exactly once per inbound event.
func ShouldGreet(rec *store.Conversation, evt *wa.InboundEvent, idleThreshold time.Duration) bool {
	if rec == nil {
		return true
	}
	if evt.SessionID != "" && evt.SessionID != rec.LastConversationID {
		return true
	}
	if !evt.Reply && elapsed(rec.LastActivityAt, evt.ReceivedAt) > idleThreshold {
		return true
	}
	return false
}

func elapsed(lastActivityMs, eventMs int64) time.Duration {
	return time.Duration(eventMs-lastActivityMs) * time.Millisecond
}
