package store

import (
	"fmt"
	"time"
)

// RecordInbound appends an inbound message and updates the contact's
// conversation in a single transaction. The insert is keyed on
// (contact_id, msg_id), so redelivering the same platform event is a no-op:
// no duplicate row, no second unread increment, no activity bump. Returns
// whether the message was actually appended.
//
// The display name is quality-guarded: an empty incoming name never
// overwrites a known one.
func (db *DB) RecordInbound(m *Message, senderName string) (bool, error) {
	tx, err := db.Begin()
	if err != nil {
		return false, fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	now := time.Now().UnixMilli()
	if _, err := tx.Exec(`
		INSERT INTO conversations (contact_id, display_name, created_at, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(contact_id) DO UPDATE SET
			display_name = CASE WHEN excluded.display_name != '' THEN excluded.display_name ELSE conversations.display_name END,
			updated_at = excluded.updated_at`,
		m.ContactID, senderName, now, now); err != nil {
		return false, fmt.Errorf("upsert conversation: %w", err)
	}

	result, err := tx.Exec(`
		INSERT INTO messages (contact_id, msg_id, direction, body, message_type, status, timestamp, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(contact_id, msg_id) DO NOTHING`,
		m.ContactID, m.MsgID, DirectionIn, m.Body, m.MessageType, StatusReceived, m.Timestamp, now)
	if err != nil {
		return false, fmt.Errorf("insert message: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	appended := n > 0

	if appended {
		// Relative update: concurrent writers never lose an increment.
		if _, err := tx.Exec(`
			UPDATE conversations SET
				unread_count = unread_count + 1,
				last_activity_at = MAX(last_activity_at, ?),
				updated_at = ?
			WHERE contact_id = ?`,
			m.Timestamp, now, m.ContactID); err != nil {
			return false, fmt.Errorf("bump conversation: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("commit: %w", err)
	}
	return appended, nil
}

// RecordOutbound appends an outbound message (greeting or operator reply)
// and refreshes the conversation's activity time. Outbound messages never
// touch the unread counter.
func (db *DB) RecordOutbound(m *Message) error {
	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	now := time.Now().UnixMilli()
	if _, err := tx.Exec(`
		INSERT INTO conversations (contact_id, created_at, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT(contact_id) DO UPDATE SET updated_at = excluded.updated_at`,
		m.ContactID, now, now); err != nil {
		return fmt.Errorf("upsert conversation: %w", err)
	}

	if _, err := tx.Exec(`
		INSERT INTO messages (contact_id, msg_id, direction, body, message_type, status, timestamp, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(contact_id, msg_id) DO NOTHING`,
		m.ContactID, m.MsgID, DirectionOut, m.Body, m.MessageType, m.Status, m.Timestamp, now); err != nil {
		return fmt.Errorf("insert message: %w", err)
	}

	if _, err := tx.Exec(`
		UPDATE conversations SET
			last_activity_at = MAX(last_activity_at, ?),
			updated_at = ?
		WHERE contact_id = ?`,
		m.Timestamp, now, m.ContactID); err != nil {
		return fmt.Errorf("bump conversation: %w", err)
	}

	return tx.Commit()
}

// UpdateMessageStatus moves an outbound message through its send lifecycle.
func (db *DB) UpdateMessageStatus(contactID, msgID, msgStatus string) error {
	_, err := db.Exec(`UPDATE messages SET status = ? WHERE contact_id = ? AND msg_id = ?`,
		msgStatus, contactID, msgID)
	return err
}

// ListMessages returns messages for a contact using keyset pagination by
// timestamp, newest first.
func (db *DB) ListMessages(contactID string, beforeTs int64, limit int) ([]Message, error) {
	if limit <= 0 {
		limit = 50
	}
	if beforeTs <= 0 {
		beforeTs = time.Now().UnixMilli() + 1
	}
	rows, err := db.Query(`
		SELECT id, contact_id, msg_id, direction, body, message_type, status, timestamp
		FROM messages
		WHERE contact_id = ? AND timestamp < ?
		ORDER BY timestamp DESC, id DESC
		LIMIT ?`, contactID, beforeTs, limit)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var msgs []Message
	for rows.Next() {
		var m Message
		if err := rows.Scan(&m.ID, &m.ContactID, &m.MsgID, &m.Direction, &m.Body, &m.MessageType, &m.Status, &m.Timestamp); err != nil {
			return nil, err
		}
		msgs = append(msgs, m)
	}
	return msgs, rows.Err()
}
