// Package ws is the websocket transport: JSON envelopes tagged with an
// event name, one socket per session.
package ws

import (
	"encoding/json"
	"fmt"
	"time"

	"team-chat/domain/chat"
	"team-chat/domain/event"
)

// Client-to-server event names.
const (
	InJoinUser      = "join-user"
	InJoinChat      = "join-chat"
	InLeaveChat     = "leave-chat"
	InTyping        = "typing"
	InStopTyping    = "stop-typing"
	InSendMessage   = "send-message"
	InEditMessage   = "edit-message"
	InDeleteMessage = "delete-message"
	InReact         = "react"
	InMarkRead      = "mark-read"
	InSetStatus     = "set-status"
	InBroadcast     = "broadcast"
	InGetMessages   = "get-messages"
	InResync        = "resync"
)

// Server-to-client names that are not domain events.
const (
	OutChatHistory = "chat-history"
	OutPresence    = "presence-snapshot"
	OutError       = "error"
)

// Envelope is the framing for every message in both directions. Data
// holds the event payload, shaped by the event name.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

func DecodeEnvelope(payload []byte) (Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(payload, &env); err != nil {
		return Envelope{}, fmt.Errorf("malformed envelope: %w", err)
	}
	if env.Event == "" {
		return Envelope{}, fmt.Errorf("envelope without event name")
	}
	return env, nil
}

// EncodeEvent frames a domain event under its wire name.
func EncodeEvent(e event.DomainEvent) ([]byte, error) {
	data, err := json.Marshal(e)
	if err != nil {
		return nil, err
	}
	return json.Marshal(Envelope{Event: e.WireName(), Data: data})
}

func Encode(name string, payload any) ([]byte, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return json.Marshal(Envelope{Event: name, Data: data})
}

// Inbound payloads. Validate tags are enforced before dispatch so a
// malformed frame is rejected on the socket, never half-applied.

type JoinChatPayload struct {
	ChatID chat.ChatID `json:"chatId" validate:"required"`
}

type TypingPayload struct {
	ChatID   chat.ChatID `json:"chatId" validate:"required"`
	UserName string      `json:"userName" validate:"required"`
}

type SendMessagePayload struct {
	ChatID  chat.ChatID      `json:"chatId" validate:"required"`
	Content string           `json:"content" validate:"required"`
	Type    chat.MessageType `json:"type"`
}

type EditMessagePayload struct {
	ChatID    chat.ChatID `json:"chatId" validate:"required"`
	MessageID string      `json:"messageId" validate:"required"`
	Content   string      `json:"content" validate:"required"`
}

type DeleteMessagePayload struct {
	ChatID    chat.ChatID `json:"chatId" validate:"required"`
	MessageID string      `json:"messageId" validate:"required"`
}

type ReactPayload struct {
	ChatID    chat.ChatID `json:"chatId" validate:"required"`
	MessageID string      `json:"messageId" validate:"required"`
	Emoji     string      `json:"emoji" validate:"required"`
	UserName  string      `json:"userName"`
}

type MarkReadPayload struct {
	ChatID     chat.ChatID `json:"chatId" validate:"required"`
	MessageIDs []string    `json:"messageIds" validate:"required,min=1"`
}

type SetStatusPayload struct {
	Status string `json:"status" validate:"required,oneof=online offline away busy"`
}

type BroadcastPayload struct {
	Message string `json:"message" validate:"required"`
}

type GetMessagesPayload struct {
	ChatID chat.ChatID `json:"chatId" validate:"required"`
	Cursor *string     `json:"cursor"`
}

type ResyncPayload struct {
	ChatID chat.ChatID `json:"chatId" validate:"required"`
	Since  time.Time   `json:"since"`
}

// ChatHistoryPayload answers both get-messages and resync. Cursor is
// only set on paged reads.
type ChatHistoryPayload struct {
	ChatID   chat.ChatID    `json:"chatId"`
	Messages []chat.Message `json:"messages"`
	Cursor   *string        `json:"cursor,omitempty"`
}

type ErrorPayload struct {
	Message string `json:"message"`
	Event   string `json:"event,omitempty"`
}
