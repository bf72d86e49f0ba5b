package rest

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"log/slog"

	"team-chat/auth"
	"team-chat/domain/chat"
	apperrors "team-chat/errors"
	"team-chat/search"
	"team-chat/services"
)

type ChatHandler struct {
	log    *slog.Logger
	chats  services.IChatService
	tokens *auth.TokenManager
}

func NewChatHandler(log *slog.Logger, chats services.IChatService, tokens *auth.TokenManager) *ChatHandler {
	return &ChatHandler{log: log, chats: chats, tokens: tokens}
}

func (h *ChatHandler) Routes(mux *http.ServeMux) {
	mux.HandleFunc("POST /chats", h.CreateChat)
	mux.HandleFunc("GET /chats", h.ListChats)
	mux.HandleFunc("POST /chats/{id}/participants", h.AddParticipant)
	mux.HandleFunc("GET /chats/{id}/messages", h.GetMessages)
	mux.HandleFunc("GET /search", h.Search)
}

// authenticate resolves the bearer token to its claims or writes 401.
func (h *ChatHandler) authenticate(w http.ResponseWriter, r *http.Request) (*auth.CustomClaims, bool) {
	header := r.Header.Get("Authorization")
	token := strings.TrimPrefix(header, "Bearer ")
	if token == "" || token == header {
		writeError(w, http.StatusUnauthorized, apperrors.ErrInvalidToken)
		return nil, false
	}
	claims, err := h.tokens.Verify(token)
	if err != nil {
		writeError(w, http.StatusUnauthorized, err)
		return nil, false
	}
	return claims, true
}

type createChatRequest struct {
	Name         string        `json:"name"`
	Type         chat.ChatType `json:"type"`
	Participants []string      `json:"participants"`
}

func (h *ChatHandler) CreateChat(w http.ResponseWriter, r *http.Request) {
	claims, ok := h.authenticate(w, r)
	if !ok {
		return
	}
	var req createChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	created, err := h.chats.CreateChat(req.Name, req.Type, claims.UserID, req.Participants)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (h *ChatHandler) ListChats(w http.ResponseWriter, r *http.Request) {
	claims, ok := h.authenticate(w, r)
	if !ok {
		return
	}
	chats, err := h.chats.ListChats(claims.UserID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, chats)
}

type addParticipantRequest struct {
	UserID string `json:"userId"`
}

func (h *ChatHandler) AddParticipant(w http.ResponseWriter, r *http.Request) {
	if _, ok := h.authenticate(w, r); !ok {
		return
	}
	var req addParticipantRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	updated, err := h.chats.AddParticipant(chat.ChatID(r.PathValue("id")), req.UserID)
	if err != nil {
		writeError(w, chatStatus(err), err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (h *ChatHandler) GetMessages(w http.ResponseWriter, r *http.Request) {
	if _, ok := h.authenticate(w, r); !ok {
		return
	}
	var cursor *string
	if raw := r.URL.Query().Get("cursor"); raw != "" {
		cursor = &raw
	}
	messages, next, err := h.chats.GetMessages(chat.GetMessagesCommand{
		ChatID: chat.ChatID(r.PathValue("id")),
		Cursor: cursor,
	})
	if err != nil {
		writeError(w, chatStatus(err), err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"messages": messages, "cursor": next})
}

// Search accepts the same flag syntax as the chat client's /find
// command: free text plus optional --chat, --from and --limit.
func (h *ChatHandler) Search(w http.ResponseWriter, r *http.Request) {
	if _, ok := h.authenticate(w, r); !ok {
		return
	}
	query := search.NewQuery(r.URL.Query().Get("q"))
	hits, err := h.chats.Search(r.Context(), query)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, hits)
}

func chatStatus(err error) int {
	switch {
	case errors.Is(err, apperrors.ErrChatNotFound), errors.Is(err, apperrors.ErrMessageNotFound):
		return http.StatusNotFound
	case errors.Is(err, apperrors.ErrNotParticipant), errors.Is(err, apperrors.ErrForbidden):
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}
