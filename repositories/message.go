//go:generate go run go.uber.org/mock/mockgen -source=message.go -destination=../mocks/mock_message_repository.go -package=mocks
package repositories

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"

	"team-chat/domain/chat"
	"team-chat/errors"
)

type IMessageRepository interface {
	CreateMessage(message chat.Message) error
	EditMessage(messageID, editorID, content string, at time.Time) (chat.Message, error)
	SoftDeleteMessage(messageID, requesterID string, isAdmin bool) (chat.Message, error)
	AddReadReceipts(chatID chat.ChatID, readerID string, messageIDs []string, at time.Time) ([]string, error)
	AddReaction(messageID string, reaction chat.Reaction) (chat.Message, error)
	GetMessage(messageID string) (chat.Message, error)
	GetMessages(chatID chat.ChatID, cursor *string) ([]chat.Message, *string, error)
	FetchSince(chatID chat.ChatID, since time.Time) ([]chat.Message, error)
}

// MessageRepository persists messages in BadgerDB.
//
// The primary key is "msg:{chat_id}:{timestamp_padded}:{uuid}":
//  1. 19-digit zero padding keeps chronological order lexicographic.
//  2. The UUID disambiguates two messages arriving at the same nanosecond.
//
// A pointer key "msgid:{uuid}" resolves an identifier back to its primary
// key so edits, soft deletes, receipts and reactions mutate the record in
// place. The primary key never changes across mutations, which is what
// keeps a message at its original timeline position.
type MessageRepository struct {
	db            *badger.DB
	log           *slog.Logger
	limitMessages *int
}

func NewMessageRepository(db *badger.DB, log *slog.Logger, limitMessages *int) MessageRepository {
	return MessageRepository{db: db, log: log, limitMessages: limitMessages}
}

func primaryKey(m chat.Message) []byte {
	return []byte(fmt.Sprintf("msg:%s:%019d:%s", m.ChatID, m.CreatedAt.UnixNano(), m.ID))
}

func pointerKey(messageID string) []byte {
	return []byte("msgid:" + messageID)
}

func (m MessageRepository) CreateMessage(message chat.Message) error {
	key := primaryKey(message)
	bytes, err := json.Marshal(message)
	if err != nil {
		return err
	}
	return m.db.Update(func(txn *badger.Txn) error {
		if err := txn.Set(key, bytes); err != nil {
			return err
		}
		return txn.Set(pointerKey(message.ID.String()), key)
	})
}

// mutate loads a message by identifier, applies fn, and writes the result
// back under the same primary key.
func (m MessageRepository) mutate(messageID string, fn func(*chat.Message) error) (chat.Message, error) {
	var message chat.Message
	err := m.db.Update(func(txn *badger.Txn) error {
		key, err := resolve(txn, messageID)
		if err != nil {
			return err
		}
		item, err := txn.Get(key)
		if err != nil {
			return errors.ErrMessageNotFound
		}
		if err = item.Value(func(val []byte) error {
			return json.Unmarshal(val, &message)
		}); err != nil {
			return err
		}
		if err = fn(&message); err != nil {
			return err
		}
		bytes, err := json.Marshal(message)
		if err != nil {
			return err
		}
		return txn.Set(key, bytes)
	})
	return message, err
}

func resolve(txn *badger.Txn, messageID string) ([]byte, error) {
	item, err := txn.Get(pointerKey(messageID))
	if err != nil {
		return nil, errors.ErrMessageNotFound
	}
	var key []byte
	err = item.Value(func(val []byte) error {
		key = append([]byte(nil), val...)
		return nil
	})
	return key, err
}

func (m MessageRepository) EditMessage(messageID, editorID, content string, at time.Time) (chat.Message, error) {
	return m.mutate(messageID, func(msg *chat.Message) error {
		if msg.IsDeleted {
			return errors.ErrMessageDeleted
		}
		if msg.SenderID != editorID {
			return errors.ErrNotMessageAuthor
		}
		msg.Content = content
		msg.EditedAt = &at
		return nil
	})
}

func (m MessageRepository) SoftDeleteMessage(messageID, requesterID string, isAdmin bool) (chat.Message, error) {
	return m.mutate(messageID, func(msg *chat.Message) error {
		if msg.SenderID != requesterID && !isAdmin {
			return errors.ErrNotMessageAuthor
		}
		msg.MarkDeleted()
		return nil
	})
}

// AddReadReceipts marks the given messages read by readerID. The write is
// idempotent: already-read messages are left untouched. Returns the ids
// that actually changed.
func (m MessageRepository) AddReadReceipts(chatID chat.ChatID, readerID string, messageIDs []string, at time.Time) ([]string, error) {
	var applied []string
	for _, id := range messageIDs {
		changed := false
		_, err := m.mutate(id, func(msg *chat.Message) error {
			if msg.ChatID != chatID {
				return errors.ErrMessageNotFound
			}
			changed = msg.MarkRead(readerID, at)
			return nil
		})
		if err != nil {
			m.log.Debug("Skipping read receipt", "message_id", id, "err", err)
			continue
		}
		if changed {
			applied = append(applied, id)
		}
	}
	return applied, nil
}

func (m MessageRepository) AddReaction(messageID string, reaction chat.Reaction) (chat.Message, error) {
	return m.mutate(messageID, func(msg *chat.Message) error {
		if msg.IsDeleted {
			return errors.ErrMessageDeleted
		}
		msg.React(reaction)
		return nil
	})
}

func (m MessageRepository) GetMessage(messageID string) (chat.Message, error) {
	var message chat.Message
	err := m.db.View(func(txn *badger.Txn) error {
		key, err := resolve(txn, messageID)
		if err != nil {
			return err
		}
		item, err := txn.Get(key)
		if err != nil {
			return errors.ErrMessageNotFound
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &message)
		})
	})
	return message, err
}

// GetMessages retrieves messages for a chat using a reverse prefix scan:
// most recent first, paginated through the returned cursor.
// Thanks to the padded timestamp in the key, order is chronological.
func (m MessageRepository) GetMessages(chatID chat.ChatID, cursor *string) ([]chat.Message, *string, error) {
	var messages []chat.Message
	var lastKey string
	err := m.db.View(func(txn *badger.Txn) error {
		prefixStr := fmt.Sprintf("msg:%s:", chatID)
		prefix := []byte(prefixStr)
		prefixLen := len(prefixStr)
		options := badger.DefaultIteratorOptions
		options.Reverse = true
		it := txn.NewIterator(options)
		defer it.Close()

		var seekKey []byte
		switch cursor {
		case nil:
			// Seek past the newest possible timestamp, then walk back.
			seekKey = append(prefix, []byte("9999999999999999999")...)
		default:
			seekKey = append(prefix, []byte(*cursor)...)
		}

		it.Seek(seekKey)

		if cursor != nil && it.ValidForPrefix(prefix) {
			it.Next()
		}

		for ; it.ValidForPrefix(prefix); it.Next() {
			if m.limitMessages != nil && len(messages) == *m.limitMessages {
				m.log.Debug(fmt.Sprintf("Maximum of %d messages reached", *m.limitMessages))
				break
			}
			item := it.Item()
			lastKey = string(item.Key()[prefixLen:])
			var msg chat.Message
			if err := item.Value(func(val []byte) error {
				return json.Unmarshal(val, &msg)
			}); err != nil {
				return err
			}
			messages = append(messages, msg)
		}
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	return messages, &lastKey, nil
}

// FetchSince returns every message created at or after the given instant,
// oldest first. Reconnecting clients use it to repair delivery gaps, and
// mutations applied while disconnected are visible because records are
// rewritten in place.
func (m MessageRepository) FetchSince(chatID chat.ChatID, since time.Time) ([]chat.Message, error) {
	var messages []chat.Message
	err := m.db.View(func(txn *badger.Txn) error {
		prefixStr := fmt.Sprintf("msg:%s:", chatID)
		prefix := []byte(prefixStr)
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		seekKey := []byte(fmt.Sprintf("%s%019d", prefixStr, since.UnixNano()))
		for it.Seek(seekKey); it.ValidForPrefix(prefix); it.Next() {
			var msg chat.Message
			if err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &msg)
			}); err != nil {
				return err
			}
			messages = append(messages, msg)
		}
		return nil
	})
	return messages, err
}

// NewMessage builds a canonical message from a post command.
func NewMessage(cmd chat.PostMessageCommand) chat.Message {
	return chat.Message{
		ID:         uuid.New(),
		ChatID:     cmd.ChatID,
		SenderID:   cmd.SenderID,
		SenderName: cmd.SenderName,
		Content:    cmd.Content,
		Type:       cmd.Type,
		CreatedAt:  cmd.CreatedAt,
		Reactions:  []chat.Reaction{},
		ReadBy:     []chat.ReadReceipt{},
	}
}
