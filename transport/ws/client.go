package ws

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"log/slog"

	"github.com/gorilla/websocket"

	"team-chat/domain"
	"team-chat/domain/chat"
	"team-chat/domain/event"
	"team-chat/projection"
)

const (
	reconnectBaseDelay = time.Second
	reconnectMaxDelay  = 30 * time.Second
)

// Client maintains one websocket session against the server and folds
// everything it receives into a local projection store. On reconnect
// it re-joins every chat it was in and asks for everything missed
// since its last seen message, so a network blip costs a gap repair,
// not a restart.
type Client struct {
	log   *slog.Logger
	url   string
	token string
	store *projection.Store

	mu     sync.Mutex
	conn   *websocket.Conn
	joined map[chat.ChatID]struct{}
	typing map[chat.ChatID]*typingState

	// OnEvent, when set, observes every event already folded into the
	// store. The terminal client uses it for live rendering.
	OnEvent func(e event.DomainEvent)
}

// typingState is the local debounce: one typing signal per pause, one
// stop signal when the keyboard goes quiet.
type typingState struct {
	active   bool
	userName string
	stop     *time.Timer
}

func NewClient(log *slog.Logger, url, token string, store *projection.Store) *Client {
	return &Client{
		log:    log,
		url:    url,
		token:  token,
		store:  store,
		joined: make(map[chat.ChatID]struct{}),
		typing: make(map[chat.ChatID]*typingState),
	}
}

func (c *Client) Store() *projection.Store { return c.store }

// Run connects and keeps the session alive until the context is
// canceled, reconnecting with capped exponential backoff.
func (c *Client) Run(ctx context.Context) error {
	delay := reconnectBaseDelay
	for {
		if err := c.connect(ctx); err != nil {
			c.log.Warn("Connection failed", "error", err)
		} else {
			delay = reconnectBaseDelay
			c.readLoop(ctx)
		}
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(delay):
		}
		delay = min(delay*2, reconnectMaxDelay)
	}
}

func (c *Client) connect(ctx context.Context) error {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, fmt.Sprintf("%s?token=%s", c.url, c.token), nil)
	if err != nil {
		return err
	}

	c.mu.Lock()
	c.conn = conn
	chats := make([]chat.ChatID, 0, len(c.joined))
	for id := range c.joined {
		chats = append(chats, id)
	}
	c.mu.Unlock()

	c.log.Info("Connected", "url", c.url)
	_ = c.send(InJoinUser, struct{}{})

	// Re-join and repair each chat from its watermark. Duplicates in
	// the history reply are absorbed, not re-applied.
	for _, id := range chats {
		_ = c.send(InJoinChat, JoinChatPayload{ChatID: id})
		_ = c.send(InResync, ResyncPayload{ChatID: id, Since: c.store.Timeline(id).LastSeen()})
	}
	return nil
}

func (c *Client) readLoop(ctx context.Context) {
	// ReadMessage does not watch the context; closing the socket is
	// what unblocks it on cancellation.
	stop := context.AfterFunc(ctx, func() {
		c.mu.Lock()
		if c.conn != nil {
			_ = c.conn.Close()
		}
		c.mu.Unlock()
	})
	defer stop()
	defer func() {
		c.mu.Lock()
		if c.conn != nil {
			_ = c.conn.Close()
			c.conn = nil
		}
		c.mu.Unlock()
	}()

	for {
		c.mu.Lock()
		conn := c.conn
		c.mu.Unlock()
		if conn == nil {
			return
		}
		_, payload, err := conn.ReadMessage()
		if err != nil {
			c.log.Debug("Read loop ended", "error", err)
			return
		}
		env, err := DecodeEnvelope(payload)
		if err != nil {
			c.log.Warn("Malformed frame", "error", err)
			continue
		}
		c.handle(ctx, env)
	}
}

func (c *Client) handle(ctx context.Context, env Envelope) {
	switch env.Event {
	case OutChatHistory:
		var p ChatHistoryPayload
		if err := json.Unmarshal(env.Data, &p); err != nil {
			c.log.Warn("Malformed history", "error", err)
			return
		}
		c.store.AbsorbHistory(p.ChatID, p.Messages)

	case OutPresence:
		var states []domain.PresenceState
		if err := json.Unmarshal(env.Data, &states); err != nil {
			c.log.Warn("Malformed presence snapshot", "error", err)
			return
		}
		for _, ps := range states {
			lastSeen := ps.LastSeen
			// LastSeen is the state-change instant, so a snapshot entry
			// never overrides a newer live update already folded in.
			_ = c.store.Consume(ctx, event.UserStatusUpdate{
				UserID:   ps.UserID,
				Status:   ps.Status,
				LastSeen: &lastSeen,
				At:       ps.LastSeen,
			})
		}

	case OutError:
		var p ErrorPayload
		_ = json.Unmarshal(env.Data, &p)
		c.log.Warn("Server error", "event", p.Event, "message", p.Message)

	default:
		e, err := decodeEvent(env)
		if err != nil {
			c.log.Warn("Unknown event", "event", env.Event, "error", err)
			return
		}
		if err := c.store.Consume(ctx, e); err != nil {
			c.log.Warn("Projection rejected event", "event", env.Event, "error", err)
			return
		}
		if c.OnEvent != nil {
			c.OnEvent(e)
		}
	}
}

// decodeEvent maps a wire name back to its concrete payload.
func decodeEvent(env Envelope) (event.DomainEvent, error) {
	switch env.Event {
	case event.WireNewMessage:
		return decodeAs[event.MessagePosted](env)
	case event.WireMessageUpdated:
		return decodeAs[event.MessageUpdated](env)
	case event.WireMessageDeleted:
		return decodeAs[event.MessageDeleted](env)
	case event.WireMessagesRead:
		return decodeAs[event.MessagesRead](env)
	case event.WireUserTyping:
		return decodeAs[event.UserTyping](env)
	case event.WireUserStopTyping:
		return decodeAs[event.UserStopTyping](env)
	case event.WireUserStatusUpdate:
		return decodeAs[event.UserStatusUpdate](env)
	case event.WireGlobalBroadcast:
		return decodeAs[event.GlobalBroadcast](env)
	default:
		return nil, fmt.Errorf("no decoder for %q", env.Event)
	}
}

func decodeAs[T event.DomainEvent](env Envelope) (event.DomainEvent, error) {
	var e T
	if err := json.Unmarshal(env.Data, &e); err != nil {
		return nil, err
	}
	return e, nil
}

func (c *Client) send(name string, payload any) error {
	frame, err := Encode(name, payload)
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil {
		return fmt.Errorf("not connected")
	}
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return c.conn.WriteMessage(websocket.TextMessage, frame)
}

// JoinChat subscribes to a chat and pulls its recent history.
func (c *Client) JoinChat(chatID chat.ChatID) error {
	c.mu.Lock()
	c.joined[chatID] = struct{}{}
	c.mu.Unlock()
	if err := c.send(InJoinChat, JoinChatPayload{ChatID: chatID}); err != nil {
		return err
	}
	return c.send(InGetMessages, GetMessagesPayload{ChatID: chatID})
}

// LeaveChat unsubscribes. The local timeline is kept; joining again
// repairs whatever was missed in between.
func (c *Client) LeaveChat(chatID chat.ChatID) error {
	c.mu.Lock()
	delete(c.joined, chatID)
	c.mu.Unlock()
	return c.send(InLeaveChat, JoinChatPayload{ChatID: chatID})
}

func (c *Client) SendMessage(chatID chat.ChatID, content string) error {
	c.StopTypingNow(chatID, "")
	return c.send(InSendMessage, SendMessagePayload{ChatID: chatID, Content: content, Type: chat.TypeText})
}

func (c *Client) EditMessage(chatID chat.ChatID, messageID, content string) error {
	return c.send(InEditMessage, EditMessagePayload{ChatID: chatID, MessageID: messageID, Content: content})
}

func (c *Client) DeleteMessage(chatID chat.ChatID, messageID string) error {
	return c.send(InDeleteMessage, DeleteMessagePayload{ChatID: chatID, MessageID: messageID})
}

func (c *Client) React(chatID chat.ChatID, messageID, emoji string) error {
	return c.send(InReact, ReactPayload{ChatID: chatID, MessageID: messageID, Emoji: emoji})
}

func (c *Client) MarkRead(chatID chat.ChatID, messageIDs []string) error {
	if len(messageIDs) == 0 {
		return nil
	}
	return c.send(InMarkRead, MarkReadPayload{ChatID: chatID, MessageIDs: messageIDs})
}

func (c *Client) SetStatus(status domain.Status) error {
	return c.send(InSetStatus, SetStatusPayload{Status: string(status)})
}

func (c *Client) Broadcast(message string) error {
	return c.send(InBroadcast, BroadcastPayload{Message: message})
}

func (c *Client) Resync(chatID chat.ChatID) error {
	return c.send(InResync, ResyncPayload{ChatID: chatID, Since: c.store.Timeline(chatID).LastSeen()})
}

// InputActivity is called on every keystroke. The first keystroke of a
// burst sends one typing signal; the stop signal follows automatically
// when the keyboard has been quiet for the typing TTL. Receivers run
// their own expiry, so a lost stop signal heals itself.
func (c *Client) InputActivity(chatID chat.ChatID, userName string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	state, ok := c.typing[chatID]
	if !ok {
		state = &typingState{}
		c.typing[chatID] = state
	}
	state.userName = userName
	if state.stop != nil {
		state.stop.Stop()
	}
	state.stop = time.AfterFunc(projection.DefaultTypingTTL, func() {
		c.StopTypingNow(chatID, userName)
	})
	if !state.active {
		state.active = true
		go func() { _ = c.send(InTyping, TypingPayload{ChatID: chatID, UserName: userName}) }()
	}
}

// StopTypingNow clears the local debounce and signals stop once. An
// empty userName falls back to the name of the last typing burst.
func (c *Client) StopTypingNow(chatID chat.ChatID, userName string) {
	c.mu.Lock()
	state, ok := c.typing[chatID]
	active := ok && state.active
	if ok {
		state.active = false
		if userName == "" {
			userName = state.userName
		}
		if state.stop != nil {
			state.stop.Stop()
			state.stop = nil
		}
	}
	c.mu.Unlock()
	if active {
		_ = c.send(InStopTyping, TypingPayload{ChatID: chatID, UserName: userName})
	}
}
