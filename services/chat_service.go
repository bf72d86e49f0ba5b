package services

import (
	"context"
	"time"

	"team-chat/domain"
	"team-chat/domain/chat"
	"team-chat/repositories"
	"team-chat/runtime"
	"team-chat/search"
)

type IChatService interface {
	CreateChat(name string, chatType chat.ChatType, createdBy string, participants []string) (chat.Chat, error)
	AddParticipant(chatID chat.ChatID, userID string) (chat.Chat, error)
	ListChats(userID string) ([]chat.Chat, error)
	PostMessage(cmd chat.PostMessageCommand) (chat.Message, error)
	PostFileMessage(cmd chat.PostMessageCommand, filename, declaredType string, data []byte) (chat.Message, error)
	GetMessages(cmd chat.GetMessagesCommand) ([]chat.Message, *string, error)
	Search(ctx context.Context, query search.Query) ([]search.Hit, error)
}

// ChatService is the non-realtime surface: chat administration, paged
// history, full-text search. Live traffic goes through the websocket
// transport straight to the orchestrator.
type ChatService struct {
	orchestrator   *runtime.Orchestrator
	chatRepository repositories.IChatRepository
	index          *search.Index
}

func NewChatService(o *runtime.Orchestrator, chats repositories.IChatRepository, index *search.Index) *ChatService {
	return &ChatService{orchestrator: o, chatRepository: chats, index: index}
}

func (s *ChatService) CreateChat(name string, chatType chat.ChatType, createdBy string, participants []string) (chat.Chat, error) {
	return s.chatRepository.CreateChat(name, chatType, createdBy, participants)
}

func (s *ChatService) AddParticipant(chatID chat.ChatID, userID string) (chat.Chat, error) {
	return s.chatRepository.AddParticipant(chatID, userID)
}

func (s *ChatService) ListChats(userID string) ([]chat.Chat, error) {
	return s.chatRepository.ListChatsForUser(userID)
}

func (s *ChatService) PostMessage(cmd chat.PostMessageCommand) (chat.Message, error) {
	return s.orchestrator.PostMessage(cmd)
}

// PostFileMessage sniffs the payload before anything is stored. The
// message carries the attachment name as content; the descriptor
// travels with the upload, not the event stream.
func (s *ChatService) PostFileMessage(cmd chat.PostMessageCommand, filename, declaredType string, data []byte) (chat.Message, error) {
	attachment, err := domain.SniffAttachment(filename, declaredType, data)
	if err != nil {
		return chat.Message{}, err
	}
	cmd.Type = chat.TypeFile
	cmd.Content = attachment.Name
	if cmd.CreatedAt.IsZero() {
		cmd.CreatedAt = time.Now().UTC()
	}
	return s.orchestrator.PostMessage(cmd)
}

func (s *ChatService) GetMessages(cmd chat.GetMessagesCommand) ([]chat.Message, *string, error) {
	return s.orchestrator.GetMessages(cmd)
}

func (s *ChatService) Search(ctx context.Context, query search.Query) ([]search.Hit, error) {
	return s.index.Search(ctx, query)
}
