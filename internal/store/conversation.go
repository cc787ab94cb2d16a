package store

import (
	"database/sql"
	"fmt"
	"time"
)

// GetConversation returns the conversation for a contact, or nil if the
// contact has never been seen.
func (db *DB) GetConversation(contactID string) (*Conversation, error) {
	var c Conversation
	err := db.QueryRow(`
		SELECT contact_id, display_name, unread_count, last_greeting_at, last_activity_at, last_conversation_id
		FROM conversations WHERE contact_id = ?`, contactID).
		Scan(&c.ContactID, &c.DisplayName, &c.UnreadCount, &c.LastGreetingAt, &c.LastActivityAt, &c.LastConversationID)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// ListConversations returns conversations sorted by most recent activity.
func (db *DB) ListConversations(limit, offset int) ([]Conversation, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := db.Query(`
		SELECT contact_id, display_name, unread_count, last_greeting_at, last_activity_at, last_conversation_id
		FROM conversations
		ORDER BY last_activity_at DESC
		LIMIT ? OFFSET ?`, limit, offset)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var convs []Conversation
	for rows.Next() {
		var c Conversation
		if err := rows.Scan(&c.ContactID, &c.DisplayName, &c.UnreadCount, &c.LastGreetingAt, &c.LastActivityAt, &c.LastConversationID); err != nil {
			return nil, err
		}
		convs = append(convs, c)
	}
	return convs, rows.Err()
}

// DeleteConversation removes a conversation and its message history.
// Returns true if a conversation existed.
func (db *DB) DeleteConversation(contactID string) (bool, error) {
	tx, err := db.Begin()
	if err != nil {
		return false, fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.Exec(`DELETE FROM messages WHERE contact_id = ?`, contactID); err != nil {
		return false, fmt.Errorf("delete messages: %w", err)
	}
	result, err := tx.Exec(`DELETE FROM conversations WHERE contact_id = ?`, contactID)
	if err != nil {
		return false, fmt.Errorf("delete conversation: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("commit: %w", err)
	}
	n, _ := result.RowsAffected()
	return n > 0, nil
}

// MarkRead resets the unread counter for a contact.
func (db *DB) MarkRead(contactID string) error {
	now := time.Now().UnixMilli()
	_, err := db.Exec(`UPDATE conversations SET unread_count = 0, updated_at = ? WHERE contact_id = ?`, now, contactID)
	return err
}

// MarkGreeted records that a greeting landed. last_greeting_at only moves
// forward so a late ack can never rewind it.
func (db *DB) MarkGreeted(contactID string, at int64, conversationID string) error {
	now := time.Now().UnixMilli()
	_, err := db.Exec(`
		UPDATE conversations SET
			last_greeting_at = MAX(last_greeting_at, ?),
			last_conversation_id = ?,
			updated_at = ?
		WHERE contact_id = ?`,
		at, conversationID, now, contactID)
	return err
}

// ConversationCount returns the total number of conversations.
func (db *DB) ConversationCount() (int64, error) {
	var count int64
	err := db.QueryRow(`SELECT COUNT(*) FROM conversations`).Scan(&count)
	return count, err
}

// MessageCount returns the total number of stored messages.
func (db *DB) MessageCount() (int64, error) {
	var count int64
	err := db.QueryRow(`SELECT COUNT(*) FROM messages`).Scan(&count)
	return count, err
}
