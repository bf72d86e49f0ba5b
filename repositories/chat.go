//go:generate go run go.uber.org/mock/mockgen -source=chat.go -destination=../mocks/mock_chat_repository.go -package=mocks
package repositories

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
	"github.com/samber/lo"

	"team-chat/domain/chat"
	"team-chat/errors"
)

type IChatRepository interface {
	CreateChat(name string, chatType chat.ChatType, createdBy string, participants []string) (chat.Chat, error)
	GetChat(chatID chat.ChatID) (chat.Chat, error)
	IsParticipant(chatID chat.ChatID, userID string) (bool, error)
	AddParticipant(chatID chat.ChatID, userID string) (chat.Chat, error)
	ListChatsForUser(userID string) ([]chat.Chat, error)
}

// ChatRepository persists chats and their participant sets in BadgerDB
// under "chat:{id}". The participant set is the authority behind the
// join/publish authorization check.
type ChatRepository struct {
	db *badger.DB
}

func NewChatRepository(db *badger.DB) ChatRepository {
	return ChatRepository{db: db}
}

func chatKey(chatID chat.ChatID) []byte {
	return []byte("chat:" + string(chatID))
}

func (r ChatRepository) CreateChat(name string, chatType chat.ChatType, createdBy string, participants []string) (chat.Chat, error) {
	c := chat.Chat{
		ID:           chat.ChatID(uuid.NewString()),
		Name:         name,
		Type:         chatType,
		Participants: lo.Uniq(append(participants, createdBy)),
		CreatedBy:    createdBy,
		CreatedAt:    time.Now().UTC(),
	}
	bytes, err := json.Marshal(c)
	if err != nil {
		return chat.Chat{}, err
	}
	err = r.db.Update(func(txn *badger.Txn) error {
		return txn.Set(chatKey(c.ID), bytes)
	})
	return c, err
}

func (r ChatRepository) GetChat(chatID chat.ChatID) (chat.Chat, error) {
	var c chat.Chat
	err := r.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(chatKey(chatID))
		if err != nil {
			return errors.ErrChatNotFound
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &c)
		})
	})
	return c, err
}

func (r ChatRepository) IsParticipant(chatID chat.ChatID, userID string) (bool, error) {
	c, err := r.GetChat(chatID)
	if err != nil {
		return false, err
	}
	return c.IsParticipant(userID), nil
}

func (r ChatRepository) AddParticipant(chatID chat.ChatID, userID string) (chat.Chat, error) {
	var c chat.Chat
	err := r.db.Update(func(txn *badger.Txn) error {
		item, err := txn.Get(chatKey(chatID))
		if err != nil {
			return errors.ErrChatNotFound
		}
		if err = item.Value(func(val []byte) error {
			return json.Unmarshal(val, &c)
		}); err != nil {
			return err
		}
		if c.IsParticipant(userID) {
			return nil
		}
		c.Participants = append(c.Participants, userID)
		bytes, err := json.Marshal(c)
		if err != nil {
			return err
		}
		return txn.Set(chatKey(chatID), bytes)
	})
	return c, err
}

func (r ChatRepository) ListChatsForUser(userID string) ([]chat.Chat, error) {
	var chats []chat.Chat
	err := r.db.View(func(txn *badger.Txn) error {
		prefix := []byte("chat:")
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			key := string(it.Item().Key())
			if !strings.HasPrefix(key, "chat:") {
				continue
			}
			var c chat.Chat
			if err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &c)
			}); err != nil {
				return err
			}
			if c.IsParticipant(userID) {
				chats = append(chats, c)
			}
		}
		return nil
	})
	return chats, err
}
