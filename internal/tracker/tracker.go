// Package tracker owns the conversation lifecycle: it records inbound and
// outbound messages, keeps unread counters, and drives the greeting policy.
package tracker

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/matheus3301/wabot/internal/bus"
	"github.com/matheus3301/wabot/internal/config"
	"github.com/matheus3301/wabot/internal/policy"
	"github.com/matheus3301/wabot/internal/status"
	"github.com/matheus3301/wabot/internal/store"
	"github.com/matheus3301/wabot/internal/wa"
	"go.uber.org/zap"
)

// Sender is the outbound message collaborator (the Cloud API client in
// production, a fake in tests).
type Sender interface {
	SendText(ctx context.Context, to string, body string) (string, error)
	SendTemplate(ctx context.Context, to string, name string, locale string, params []string) (string, error)
}

// Outcome reports how an inbound event was handled.
type Outcome struct {
	Duplicate bool // redelivery of an already-stored message
	Greet     bool // policy said this event opens a new conversation
	Greeted   bool // greeting send actually landed
}

// Tracker applies inbound events to the store and decides greetings.
// Same-contact events are applied as a strict sequence via a per-contact
// lock; distinct contacts proceed in parallel.
type Tracker struct {
	db            *store.DB
	sender        Sender
	bus           *bus.Bus
	machine       *status.Machine
	logger        *zap.Logger
	greeting      config.Greeting
	idleThreshold time.Duration
	locks         *keyedLocks
}

// New creates a tracker. machine may be nil (tests).
func New(db *store.DB, sender Sender, b *bus.Bus, machine *status.Machine, cfg *config.Config, logger *zap.Logger) *Tracker {
	idle := cfg.IdleThreshold.Duration
	if idle <= 0 {
		idle = policy.DefaultIdleThreshold
	}
	return &Tracker{
		db:            db,
		sender:        sender,
		bus:           b,
		machine:       machine,
		logger:        logger,
		greeting:      cfg.Greeting,
		idleThreshold: idle,
		locks:         newKeyedLocks(),
	}
}

// HandleInbound records one classified inbound event and, when the policy
// fires, sends the greeting. The greeting send runs outside the per-contact
// lock, and the greeted marker is committed only after the send succeeds, so
// a failed send is retried by the next qualifying message.
//
// A store error means the event is dropped; the caller logs it and still
// acknowledges the webhook.
func (t *Tracker) HandleInbound(ctx context.Context, evt *wa.InboundEvent) (Outcome, error) {
	if evt == nil {
		return Outcome{}, nil
	}

	unlock := t.locks.lock(evt.ContactID)

	// Policy must see the state as of before this event refreshed the
	// activity timestamp.
	snapshot, err := t.db.GetConversation(evt.ContactID)
	if err != nil {
		unlock()
		t.storeFailed(err)
		return Outcome{}, fmt.Errorf("load conversation: %w", err)
	}

	appended, err := t.db.RecordInbound(&store.Message{
		ContactID:   evt.ContactID,
		MsgID:       evt.MsgID,
		Body:        evt.Text,
		MessageType: evt.Type,
		Timestamp:   evt.ReceivedAt,
	}, evt.SenderName)
	unlock()
	if err != nil {
		t.storeFailed(err)
		return Outcome{}, fmt.Errorf("record inbound: %w", err)
	}
	t.storeRecovered()

	if !appended {
		t.logger.Info("duplicate delivery ignored",
			zap.String("contact", evt.ContactID),
			zap.String("msg_id", evt.MsgID))
		return Outcome{Duplicate: true}, nil
	}

	t.bus.Publish(bus.Event{
		Kind:      bus.KindMessageUpserted,
		Timestamp: time.Now(),
		Payload:   map[string]string{"contact_id": evt.ContactID, "msg_id": evt.MsgID},
	})

	if !policy.ShouldGreet(snapshot, evt, t.idleThreshold) {
		return Outcome{}, nil
	}

	out := Outcome{Greet: true}
	out.Greeted = t.greet(ctx, evt)
	return out, nil
}

func (t *Tracker) greet(ctx context.Context, evt *wa.InboundEvent) bool {
	serverMsgID, body, err := t.sendGreeting(ctx, evt.ContactID)
	if err != nil {
		t.logger.Error("greeting send failed, will retry on next qualifying message",
			zap.Error(err),
			zap.String("contact", evt.ContactID))
		t.bus.Publish(bus.Event{
			Kind:      bus.KindGreetingFailed,
			Timestamp: time.Now(),
			Payload:   map[string]string{"contact_id": evt.ContactID, "error": err.Error()},
		})
		return false
	}

	now := time.Now().UnixMilli()
	// The greeted marker commits only after the send landed.
	if err := t.db.MarkGreeted(evt.ContactID, now, evt.SessionID); err != nil {
		t.logger.Warn("failed to mark greeted", zap.Error(err), zap.String("contact", evt.ContactID))
	}
	if err := t.db.RecordOutbound(&store.Message{
		ContactID:   evt.ContactID,
		MsgID:       serverMsgID,
		Body:        body,
		MessageType: "text",
		Status:      store.StatusSent,
		Timestamp:   now,
	}); err != nil {
		t.logger.Warn("failed to record greeting message", zap.Error(err), zap.String("contact", evt.ContactID))
	}

	t.logger.Info("greeting sent",
		zap.String("contact", evt.ContactID),
		zap.String("server_msg_id", serverMsgID))
	t.bus.Publish(bus.Event{
		Kind:      bus.KindGreetingSent,
		Timestamp: time.Now(),
		Payload:   map[string]string{"contact_id": evt.ContactID, "msg_id": serverMsgID},
	})
	return true
}

func (t *Tracker) sendGreeting(ctx context.Context, contactID string) (serverMsgID, body string, err error) {
	if t.greeting.Template != "" {
		body = fmt.Sprintf("[template %s]", t.greeting.Template)
		serverMsgID, err = t.sender.SendTemplate(ctx, contactID, t.greeting.Template, t.greeting.TemplateLocale, t.greeting.TemplateParams)
		return serverMsgID, body, err
	}
	body = t.greeting.Text
	serverMsgID, err = t.sender.SendText(ctx, contactID, body)
	return serverMsgID, body, err
}

// RecordOutbound stores and sends an operator-initiated reply. The row is
// written optimistically with status "sending" so history shows the message
// immediately, then flipped to sent or failed.
func (t *Tracker) RecordOutbound(ctx context.Context, contactID, text string) error {
	msgID := "out-" + uuid.New().String()
	now := time.Now().UnixMilli()

	unlock := t.locks.lock(contactID)
	err := t.db.RecordOutbound(&store.Message{
		ContactID:   contactID,
		MsgID:       msgID,
		Body:        text,
		MessageType: "text",
		Status:      store.StatusSending,
		Timestamp:   now,
	})
	unlock()
	if err != nil {
		t.storeFailed(err)
		return fmt.Errorf("record outbound: %w", err)
	}
	t.storeRecovered()
	t.bus.Publish(bus.Event{
		Kind:      bus.KindMessageUpserted,
		Timestamp: time.Now(),
		Payload:   map[string]string{"contact_id": contactID, "msg_id": msgID},
	})

	serverMsgID, err := t.sender.SendText(ctx, contactID, text)
	if err != nil {
		_ = t.db.UpdateMessageStatus(contactID, msgID, store.StatusFailed)
		t.bus.Publish(bus.Event{
			Kind:      bus.KindMessageSendFailed,
			Timestamp: time.Now(),
			Payload:   map[string]string{"contact_id": contactID, "msg_id": msgID, "error": err.Error()},
		})
		return fmt.Errorf("send message: %w", err)
	}

	if err := t.db.UpdateMessageStatus(contactID, msgID, store.StatusSent); err != nil {
		t.logger.Warn("failed to mark sent", zap.Error(err), zap.String("msg_id", msgID))
	}
	t.logger.Info("operator message sent",
		zap.String("contact", contactID),
		zap.String("server_msg_id", serverMsgID))
	t.bus.Publish(bus.Event{
		Kind:      bus.KindMessageUpserted,
		Timestamp: time.Now(),
		Payload:   map[string]string{"contact_id": contactID, "msg_id": msgID},
	})
	return nil
}

// List returns tracked conversations, most recently active first.
func (t *Tracker) List(limit, offset int) ([]store.Conversation, error) {
	return t.db.ListConversations(limit, offset)
}

// History returns a contact's messages, newest first. before is a unix ms
// keyset cursor; 0 starts from the top.
func (t *Tracker) History(contactID string, before int64, limit int) ([]store.Message, error) {
	return t.db.ListMessages(contactID, before, limit)
}

// MarkRead resets the unread counter for a contact.
func (t *Tracker) MarkRead(contactID string) error {
	unlock := t.locks.lock(contactID)
	err := t.db.MarkRead(contactID)
	unlock()
	if err != nil {
		t.storeFailed(err)
		return fmt.Errorf("mark read: %w", err)
	}
	t.storeRecovered()
	t.bus.Publish(bus.Event{
		Kind:      bus.KindConversationRead,
		Timestamp: time.Now(),
		Payload:   map[string]string{"contact_id": contactID},
	})
	return nil
}

// Delete removes a conversation and its history. The contact is afterwards
// treated as first-ever again. Returns whether a conversation existed.
func (t *Tracker) Delete(contactID string) (bool, error) {
	unlock := t.locks.lock(contactID)
	deleted, err := t.db.DeleteConversation(contactID)
	unlock()
	if err != nil {
		t.storeFailed(err)
		return false, fmt.Errorf("delete conversation: %w", err)
	}
	t.storeRecovered()
	if deleted {
		t.bus.Publish(bus.Event{
			Kind:      bus.KindConversationDeleted,
			Timestamp: time.Now(),
			Payload:   map[string]string{"contact_id": contactID},
		})
	}
	return deleted, nil
}

func (t *Tracker) storeFailed(err error) {
	t.logger.Warn("store unavailable, event dropped", zap.Error(err))
	if t.machine != nil {
		_ = t.machine.Transition(status.Degraded)
	}
}

func (t *Tracker) storeRecovered() {
	if t.machine != nil && t.machine.Current() == status.Degraded {
		_ = t.machine.Transition(status.Ready)
	}
}
