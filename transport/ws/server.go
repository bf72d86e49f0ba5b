package ws

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"log/slog"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"team-chat/domain"
	"team-chat/domain/chat"
	"team-chat/errors"
	"team-chat/observability"
	"team-chat/runtime"
	"team-chat/sink"

	appauth "team-chat/auth"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
	maxMsgSize = 64 * 1024
)

// Server upgrades authenticated HTTP requests to websocket sessions
// and bridges them onto the orchestrator. One goroutine reads frames,
// one drains the connection's sink; the socket write side is owned by
// the write pump alone.
type Server struct {
	log            *slog.Logger
	orchestrator   *runtime.Orchestrator
	tokens         *appauth.TokenManager
	validate       *validator.Validate
	monitor        *observability.Monitor
	connBufferSize int
	upgrader       websocket.Upgrader
}

func NewServer(
	log *slog.Logger,
	orchestrator *runtime.Orchestrator,
	tokens *appauth.TokenManager,
	monitor *observability.Monitor,
	connBufferSize int,
) *Server {
	return &Server{
		log:            log,
		orchestrator:   orchestrator,
		tokens:         tokens,
		validate:       validator.New(),
		monitor:        monitor,
		connBufferSize: connBufferSize,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// Dev setting. Tighten when the server is exposed publicly.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

func (s *Server) Routes(mux *http.ServeMux) {
	mux.HandleFunc("/ws", s.ServeWS)
	mux.HandleFunc("/healthz", s.ServeHealth)
}

func (s *Server) ServeHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(s.monitor.Snapshot())
}

// ServeWS authenticates the handshake, admits the session and starts
// the pumps. The token travels in the "token" query parameter because
// browser websocket clients cannot set headers.
func (s *Server) ServeWS(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if token == "" {
		http.Error(w, "missing token", http.StatusUnauthorized)
		return
	}
	claims, err := s.tokens.Verify(token)
	if err != nil {
		http.Error(w, "invalid token", http.StatusUnauthorized)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn("Websocket upgrade failed", "error", err)
		return
	}

	c := &session{
		id:       uuid.NewString(),
		userID:   claims.UserID,
		userName: claims.UserName,
		role:     primaryRole(claims.Roles),
		conn:     conn,
		sink:     sink.NewConnSink(s.connBufferSize),
		replies:  make(chan []byte, s.connBufferSize),
	}

	s.orchestrator.Connect(c.id, c.userID, c.role, c.sink)
	s.log.Info("Session opened", "conn", c.id, "user", c.userID)

	// Initial presence snapshot, before live updates take over.
	c.reply(OutPresence, s.orchestrator.Presence())

	go s.writePump(c)
	go s.readPump(c)
}

func primaryRole(roles []string) domain.Role {
	for _, r := range roles {
		if domain.Role(r) == domain.RoleAdmin {
			return domain.RoleAdmin
		}
	}
	for _, r := range roles {
		if domain.Role(r) == domain.RoleManager {
			return domain.RoleManager
		}
	}
	return domain.RoleUser
}

// session is one live websocket connection.
type session struct {
	id       string
	userID   string
	userName string
	role     domain.Role
	conn     *websocket.Conn
	sink     *sink.ConnSink
	replies  chan []byte
}

// reply queues a direct response to this session only. Best effort:
// a full reply queue drops the frame, the client repairs on resync.
func (c *session) reply(name string, payload any) {
	frame, err := Encode(name, payload)
	if err != nil {
		return
	}
	select {
	case c.replies <- frame:
	default:
	}
}

func (c *session) replyError(cause error, inEvent string) {
	c.reply(OutError, ErrorPayload{Message: cause.Error(), Event: inEvent})
}

func (s *Server) readPump(c *session) {
	defer func() {
		s.orchestrator.Disconnect(c.id)
		c.sink.Close()
		_ = c.conn.Close()
		s.log.Info("Session closed", "conn", c.id, "user", c.userID)
	}()

	c.conn.SetReadLimit(maxMsgSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, payload, err := c.conn.ReadMessage()
		if err != nil {
			return
		}
		env, err := DecodeEnvelope(payload)
		if err != nil {
			c.replyError(err, "")
			continue
		}
		if err := s.dispatch(c, env); err != nil {
			c.replyError(err, env.Event)
		}
	}
}

func (s *Server) writePump(c *session) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()
	for {
		select {
		case e, ok := <-c.sink.Events:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			frame, err := EncodeEvent(e)
			if err != nil {
				s.log.Error("Event encoding failed", "event", e.WireName(), "error", err)
				continue
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				return
			}
		case frame := <-c.replies:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// dispatch routes one inbound frame. Mutations answer with a domain
// event through the fanout; reads answer directly on this session.
func (s *Server) dispatch(c *session, env Envelope) error {
	switch env.Event {
	case InJoinUser:
		c.reply(OutPresence, s.orchestrator.Presence())
		return nil

	case InJoinChat:
		p, err := decode[JoinChatPayload](env, s.validate)
		if err != nil {
			return err
		}
		return s.orchestrator.Join(c.id, p.ChatID)

	case InLeaveChat:
		p, err := decode[JoinChatPayload](env, s.validate)
		if err != nil {
			return err
		}
		s.orchestrator.Leave(c.id, p.ChatID)
		return nil

	case InTyping:
		p, err := decode[TypingPayload](env, s.validate)
		if err != nil {
			return err
		}
		s.orchestrator.Typing(c.id, p.ChatID, p.UserName)
		return nil

	case InStopTyping:
		p, err := decode[TypingPayload](env, s.validate)
		if err != nil {
			return err
		}
		s.orchestrator.StopTyping(c.id, p.ChatID, p.UserName)
		return nil

	case InSendMessage:
		p, err := decode[SendMessagePayload](env, s.validate)
		if err != nil {
			return err
		}
		_, err = s.orchestrator.PostMessage(chat.PostMessageCommand{
			ChatID:     p.ChatID,
			SenderID:   c.userID,
			SenderName: c.userName,
			Content:    p.Content,
			Type:       p.Type,
			CreatedAt:  time.Now().UTC(),
		})
		return err

	case InEditMessage:
		p, err := decode[EditMessagePayload](env, s.validate)
		if err != nil {
			return err
		}
		_, err = s.orchestrator.EditMessage(chat.EditMessageCommand{
			ChatID:    p.ChatID,
			MessageID: p.MessageID,
			EditorID:  c.userID,
			Content:   p.Content,
		})
		return err

	case InDeleteMessage:
		p, err := decode[DeleteMessagePayload](env, s.validate)
		if err != nil {
			return err
		}
		return s.orchestrator.DeleteMessage(chat.DeleteMessageCommand{
			ChatID:      p.ChatID,
			MessageID:   p.MessageID,
			RequesterID: c.userID,
		}, c.role)

	case InReact:
		p, err := decode[ReactPayload](env, s.validate)
		if err != nil {
			return err
		}
		_, err = s.orchestrator.AddReaction(chat.ReactCommand{
			ChatID:    p.ChatID,
			MessageID: p.MessageID,
			Reaction:  chat.Reaction{Emoji: p.Emoji, UserID: c.userID, UserName: c.userName},
		})
		return err

	case InMarkRead:
		p, err := decode[MarkReadPayload](env, s.validate)
		if err != nil {
			return err
		}
		return s.orchestrator.MarkRead(chat.MarkReadCommand{
			ChatID:     p.ChatID,
			ReaderID:   c.userID,
			MessageIDs: p.MessageIDs,
		})

	case InSetStatus:
		p, err := decode[SetStatusPayload](env, s.validate)
		if err != nil {
			return err
		}
		return s.orchestrator.SetStatus(c.userID, domain.Status(p.Status))

	case InBroadcast:
		p, err := decode[BroadcastPayload](env, s.validate)
		if err != nil {
			return err
		}
		return s.orchestrator.Broadcast(chat.BroadcastCommand{
			SenderID:   c.userID,
			SenderName: c.userName,
			Message:    p.Message,
			At:         time.Now().UTC(),
		}, c.role)

	case InGetMessages:
		p, err := decode[GetMessagesPayload](env, s.validate)
		if err != nil {
			return err
		}
		messages, cursor, err := s.orchestrator.GetMessages(chat.GetMessagesCommand{ChatID: p.ChatID, Cursor: p.Cursor})
		if err != nil {
			return err
		}
		c.reply(OutChatHistory, ChatHistoryPayload{ChatID: p.ChatID, Messages: messages, Cursor: cursor})
		return nil

	case InResync:
		p, err := decode[ResyncPayload](env, s.validate)
		if err != nil {
			return err
		}
		messages, err := s.orchestrator.FetchSince(p.ChatID, p.Since)
		if err != nil {
			return err
		}
		c.reply(OutChatHistory, ChatHistoryPayload{ChatID: p.ChatID, Messages: messages})
		return nil

	default:
		return fmt.Errorf("%w: %q", errors.ErrUnknownEvent, env.Event)
	}
}

func decode[T any](env Envelope, validate *validator.Validate) (T, error) {
	var p T
	if err := json.Unmarshal(env.Data, &p); err != nil {
		return p, fmt.Errorf("malformed %s payload: %w", env.Event, err)
	}
	if err := validate.Struct(p); err != nil {
		return p, err
	}
	return p, nil
}
