package chat

import (
	"time"
)

type Command interface {
	Chat() ChatID
}

type PostMessageCommand struct {
	ChatID     ChatID
	SenderID   string
	SenderName string
	Content    string
	Type       MessageType
	CreatedAt  time.Time
}

func (c PostMessageCommand) Chat() ChatID { return c.ChatID }

type EditMessageCommand struct {
	ChatID    ChatID
	MessageID string
	EditorID  string
	Content   string
}

func (c EditMessageCommand) Chat() ChatID { return c.ChatID }

type DeleteMessageCommand struct {
	ChatID      ChatID
	MessageID   string
	RequesterID string
}

func (c DeleteMessageCommand) Chat() ChatID { return c.ChatID }

type MarkReadCommand struct {
	ChatID     ChatID
	ReaderID   string
	MessageIDs []string
}

func (c MarkReadCommand) Chat() ChatID { return c.ChatID }

type ReactCommand struct {
	ChatID    ChatID
	MessageID string
	Reaction  Reaction
}

func (c ReactCommand) Chat() ChatID { return c.ChatID }

type GetMessagesCommand struct {
	ChatID ChatID
	Cursor *string
}

func (c GetMessagesCommand) Chat() ChatID { return c.ChatID }

// BroadcastCommand is not bound to a chat: it reaches every connected
// session regardless of room membership.
type BroadcastCommand struct {
	SenderID   string
	SenderName string
	Message    string
	At         time.Time
}
