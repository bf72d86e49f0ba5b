// Package chat contains core concepts of the team messaging system.
// This file defines Message and its mutation rules.
package chat

import (
	"time"

	"github.com/google/uuid"
)

type MessageType string

const (
	TypeText MessageType = "text"
	TypeFile MessageType = "file"
)

// DeletedPlaceholder replaces the content of a soft-deleted message.
const DeletedPlaceholder = "This message was deleted"

type Reaction struct {
	Emoji    string `json:"emoji"`
	UserID   string `json:"userId"`
	UserName string `json:"userName"`
}

type ReadReceipt struct {
	UserID string    `json:"userId"`
	ReadAt time.Time `json:"readAt"`
}

// Message is the canonical persisted chat message.
// Its ID is globally unique and stable across edit and delete:
// a delete flags the record, it never removes it.
type Message struct {
	ID         uuid.UUID     `json:"id"`
	ChatID     ChatID        `json:"chatId"`
	SenderID   string        `json:"senderId"`
	SenderName string        `json:"senderName"`
	Content    string        `json:"content"`
	Type       MessageType   `json:"type"`
	CreatedAt  time.Time     `json:"timestamp"`
	EditedAt   *time.Time    `json:"editedAt,omitempty"`
	IsDeleted  bool          `json:"isDeleted"`
	Reactions  []Reaction    `json:"reactions"`
	ReadBy     []ReadReceipt `json:"readBy"`
}

// MarkDeleted turns the message into its deletion placeholder.
// EditedAt is preserved so clients can still show the edit marker.
func (m *Message) MarkDeleted() {
	m.Content = DeletedPlaceholder
	m.IsDeleted = true
}

// MarkRead appends a read receipt for readerID unless one already exists.
// Returns true when the receipt was added. Re-reading is a no-op.
func (m *Message) MarkRead(readerID string, at time.Time) bool {
	for _, r := range m.ReadBy {
		if r.UserID == readerID {
			return false
		}
	}
	m.ReadBy = append(m.ReadBy, ReadReceipt{UserID: readerID, ReadAt: at})
	return true
}

// React appends a reaction unless the same user already reacted with the
// same emoji. Returns true when the reaction was added.
func (m *Message) React(r Reaction) bool {
	for _, existing := range m.Reactions {
		if existing.UserID == r.UserID && existing.Emoji == r.Emoji {
			return false
		}
	}
	m.Reactions = append(m.Reactions, r)
	return true
}
