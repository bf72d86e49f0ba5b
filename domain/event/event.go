// Package event defines the tagged variants fanned out to subscribers.
// Each event carries its wire name so the emit and consume sites cannot
// drift apart on payload shape.
package event

import (
	"time"

	"team-chat/domain"
	"team-chat/domain/chat"
)

// Wire names. These are a compatibility surface: clients match on them.
const (
	WireNewMessage       = "new-message"
	WireMessageUpdated   = "messageUpdated"
	WireMessageDeleted   = "messageDeleted"
	WireMessagesRead     = "messagesRead"
	WireUserTyping       = "user-typing"
	WireUserStopTyping   = "user-stop-typing"
	WireUserStatusUpdate = "user-status-update"
	WireGlobalBroadcast  = "global-broadcast"
)

type DomainEvent interface {
	// Chat returns the room the event belongs to. Events with an empty
	// ChatID (broadcast, presence) are delivered outside room membership.
	Chat() chat.ChatID
	WireName() string
}

// MessagePosted is emitted after a durable message create succeeds.
type MessagePosted struct {
	Message chat.Message `json:"message"`
}

func (e MessagePosted) Chat() chat.ChatID { return e.Message.ChatID }
func (e MessagePosted) WireName() string  { return WireNewMessage }

// MessageUpdated carries the full updated message, after an edit or a
// reaction mutation.
type MessageUpdated struct {
	Message chat.Message `json:"message"`
}

func (e MessageUpdated) Chat() chat.ChatID { return e.Message.ChatID }
func (e MessageUpdated) WireName() string  { return WireMessageUpdated }

// MessageDeleted is emitted after a soft delete. The message keeps its
// identifier and position; only the flag and placeholder travel.
type MessageDeleted struct {
	ChatID    chat.ChatID `json:"chatId"`
	MessageID string      `json:"messageId"`
}

func (e MessageDeleted) Chat() chat.ChatID { return e.ChatID }
func (e MessageDeleted) WireName() string  { return WireMessageDeleted }

// MessagesRead is emitted after a read-receipt write.
type MessagesRead struct {
	ChatID     chat.ChatID `json:"chatId"`
	ReaderID   string      `json:"readerId"`
	MessageIDs []string    `json:"messageIds"`
}

func (e MessagesRead) Chat() chat.ChatID { return e.ChatID }
func (e MessagesRead) WireName() string  { return WireMessagesRead }

// UserTyping and UserStopTyping are ephemeral: no durable write backs
// them and losing one is harmless.
type UserTyping struct {
	ChatID   chat.ChatID `json:"chatId"`
	UserID   string      `json:"userId"`
	UserName string      `json:"userName"`
}

func (e UserTyping) Chat() chat.ChatID { return e.ChatID }
func (e UserTyping) WireName() string  { return WireUserTyping }

type UserStopTyping struct {
	ChatID   chat.ChatID `json:"chatId"`
	UserID   string      `json:"userId"`
	UserName string      `json:"userName"`
}

func (e UserStopTyping) Chat() chat.ChatID { return e.ChatID }
func (e UserStopTyping) WireName() string  { return WireUserStopTyping }

// UserStatusUpdate follows the user, not a room: every connected session
// receives it.
type UserStatusUpdate struct {
	UserID   string        `json:"userId"`
	Status   domain.Status `json:"status"`
	LastSeen *time.Time    `json:"lastSeen,omitempty"`
	// At is the state-change instant. Consumers keep the newest update
	// per user, so a late-arriving older frame cannot regress state.
	At time.Time `json:"at"`
}

func (e UserStatusUpdate) Chat() chat.ChatID { return "" }
func (e UserStatusUpdate) WireName() string  { return WireUserStatusUpdate }

// GlobalBroadcast reaches all connected sessions regardless of room
// membership.
type GlobalBroadcast struct {
	SenderName string    `json:"senderName"`
	Message    string    `json:"message"`
	Timestamp  time.Time `json:"timestamp"`
}

func (e GlobalBroadcast) Chat() chat.ChatID { return "" }
func (e GlobalBroadcast) WireName() string  { return WireGlobalBroadcast }

// Outbound wraps an event for dispatch. Exclude names the connection
// that triggered the event when it must not receive its own echo
// (typing indicators); it is empty for everything else.
type Outbound struct {
	Event   DomainEvent
	Exclude string
}
