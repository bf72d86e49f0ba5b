// Package runtime handles session admission, room membership, event
// production and propagation. It orchestrates the system without
// containing business logic or domain rules.
package runtime

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"log/slog"

	"team-chat/contract"
	"team-chat/domain"
	"team-chat/domain/chat"
	"team-chat/domain/event"
	"team-chat/errors"
	"team-chat/moderation"
	"team-chat/observability"
	"team-chat/repositories"
	"team-chat/runtime/workers"
)

// Orchestrator is the single producer side of the event pipeline.
// Every mutation follows the same path: authorize, moderate, write
// durably, then publish. An event is never published for a write that
// did not commit, so a delivered event always describes durable state.
type Orchestrator struct {
	mu         sync.Mutex
	log        *slog.Logger
	supervisor contract.ISupervisor
	registry   *Registry
	presence   *PresenceTracker
	messages   repositories.IMessageRepository
	chats      repositories.IChatRepository
	moderator  moderation.Moderator
	moderated  bool

	permanentSinks []contract.EventSink
	outbound       chan event.Outbound
	monitor        *observability.Monitor

	sinkTimeout      time.Duration
	metricInterval   time.Duration
	maxContentLength int
	charReplacement  rune
}

func NewOrchestrator(
	log *slog.Logger,
	supervisor *workers.Supervisor,
	registry *Registry,
	messages repositories.IMessageRepository,
	chats repositories.IChatRepository,
	monitor *observability.Monitor,
	bufferSize int,
	sinkTimeout, metricInterval, presenceGraceDelay time.Duration,
	maxContentLength int,
	charReplacement rune,
) *Orchestrator {
	o := &Orchestrator{
		log:              log,
		supervisor:       supervisor,
		registry:         registry,
		messages:         messages,
		chats:            chats,
		outbound:         make(chan event.Outbound, bufferSize),
		monitor:          monitor,
		sinkTimeout:      sinkTimeout,
		metricInterval:   metricInterval,
		maxContentLength: maxContentLength,
		charReplacement:  charReplacement,
	}
	o.presence = NewPresenceTracker(presenceGraceDelay, func(e event.UserStatusUpdate) {
		o.publish(event.Outbound{Event: e})
	})
	return o
}

// Add registers permanent sinks that receive every published event,
// independent of room membership (search index, audit).
func (o *Orchestrator) Add(sinks ...contract.EventSink) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.permanentSinks = append(o.permanentSinks, sinks...)
}

// publish hands a committed event to the fanout worker. The channel is
// buffered and ordered: events enqueued for the same chat reach
// subscribers in this order. A full channel drops with a warning, the
// client repairs on resync.
func (o *Orchestrator) publish(out event.Outbound) {
	select {
	case o.outbound <- out:
	default:
		o.log.Warn("Outbound channel full, dropping event", "event", out.Event.WireName())
	}
}

// Connect admits an authenticated connection and marks the user online.
func (o *Orchestrator) Connect(connID, userID string, role domain.Role, sink contract.EventSink) {
	o.registry.Bind(connID, userID, string(role), sink)
	o.monitor.ConnOpened()
	o.presence.Connected(userID)
}

// Disconnect drops a connection. The user only goes offline when their
// last connection is gone, and even then after the grace delay, so a
// page refresh does not flap their presence.
func (o *Orchestrator) Disconnect(connID string) {
	userID, lastConn := o.registry.Drop(connID)
	if userID == "" {
		return
	}
	o.monitor.ConnClosed()
	if lastConn {
		o.presence.Disconnected(userID)
	}
}

// Join subscribes a connection to a chat's event stream. Only
// participants of the chat may join; a forged room id gets
// ErrNotParticipant, not a silent empty stream.
func (o *Orchestrator) Join(connID string, chatID chat.ChatID) error {
	userID, ok := o.registry.UserOf(connID)
	if !ok {
		return errors.ErrForbidden
	}
	member, err := o.chats.IsParticipant(chatID, userID)
	if err != nil {
		return err
	}
	if !member {
		return errors.ErrNotParticipant
	}
	o.registry.Join(connID, chatID)
	return nil
}

// Leave unsubscribes a connection from a chat. Events published after
// this point are not delivered; the client repairs the gap with a
// fetch when it joins again.
func (o *Orchestrator) Leave(connID string, chatID chat.ChatID) {
	o.registry.Leave(connID, chatID)
}

// PostMessage validates, moderates, stores and publishes a new
// message. The returned message is the direct response for the
// sender; all participants, sender included, also receive the
// new-message event from the fanout.
func (o *Orchestrator) PostMessage(cmd chat.PostMessageCommand) (chat.Message, error) {
	if err := o.authorizeUser(cmd.ChatID, cmd.SenderID); err != nil {
		return chat.Message{}, err
	}
	if err := o.checkContent(cmd.Content); err != nil {
		return chat.Message{}, err
	}
	cmd.Content = o.moderate(cmd.Content)

	message := repositories.NewMessage(cmd)
	if err := o.messages.CreateMessage(message); err != nil {
		return chat.Message{}, err
	}
	o.monitor.MessageStored()
	o.publish(event.Outbound{Event: event.MessagePosted{Message: message}})
	return message, nil
}

// EditMessage replaces the content of an existing message in place.
// Only the author may edit, and a deleted message stays deleted.
func (o *Orchestrator) EditMessage(cmd chat.EditMessageCommand) (chat.Message, error) {
	if err := o.checkContent(cmd.Content); err != nil {
		return chat.Message{}, err
	}
	updated, err := o.messages.EditMessage(cmd.MessageID, cmd.EditorID, o.moderate(cmd.Content), time.Now().UTC())
	if err != nil {
		return chat.Message{}, err
	}
	o.publish(event.Outbound{Event: event.MessageUpdated{Message: updated}})
	return updated, nil
}

// DeleteMessage soft-deletes: the record keeps its identifier and
// position, content is replaced by the placeholder. Authors delete
// their own messages, admins delete anything.
func (o *Orchestrator) DeleteMessage(cmd chat.DeleteMessageCommand, requesterRole domain.Role) error {
	deleted, err := o.messages.SoftDeleteMessage(cmd.MessageID, cmd.RequesterID, requesterRole == domain.RoleAdmin)
	if err != nil {
		return err
	}
	o.publish(event.Outbound{Event: event.MessageDeleted{ChatID: deleted.ChatID, MessageID: deleted.ID.String()}})
	return nil
}

// MarkRead records read receipts. Receipts are a union: re-reading
// publishes nothing, only ids newly marked travel in the event.
func (o *Orchestrator) MarkRead(cmd chat.MarkReadCommand) error {
	if err := o.authorizeUser(cmd.ChatID, cmd.ReaderID); err != nil {
		return err
	}
	applied, err := o.messages.AddReadReceipts(cmd.ChatID, cmd.ReaderID, cmd.MessageIDs, time.Now().UTC())
	if err != nil {
		return err
	}
	if len(applied) == 0 {
		return nil
	}
	o.publish(event.Outbound{Event: event.MessagesRead{
		ChatID:     cmd.ChatID,
		ReaderID:   cmd.ReaderID,
		MessageIDs: applied,
	}})
	return nil
}

// AddReaction attaches a reaction and republishes the full message, so
// consumers replace instead of patching.
func (o *Orchestrator) AddReaction(cmd chat.ReactCommand) (chat.Message, error) {
	if err := o.authorizeUser(cmd.ChatID, cmd.Reaction.UserID); err != nil {
		return chat.Message{}, err
	}
	updated, err := o.messages.AddReaction(cmd.MessageID, cmd.Reaction)
	if err != nil {
		return chat.Message{}, err
	}
	o.publish(event.Outbound{Event: event.MessageUpdated{Message: updated}})
	return updated, nil
}

// Typing signals a transient typing indicator to the other members of
// the chat. Fire and forget: nothing is stored, the sender's own
// connection is excluded, and consumers expire the indicator on their
// side whether or not a stop ever arrives.
func (o *Orchestrator) Typing(connID string, chatID chat.ChatID, userName string) {
	o.signalTyping(connID, chatID, userName, true)
}

func (o *Orchestrator) StopTyping(connID string, chatID chat.ChatID, userName string) {
	o.signalTyping(connID, chatID, userName, false)
}

func (o *Orchestrator) signalTyping(connID string, chatID chat.ChatID, userName string, typing bool) {
	userID, ok := o.registry.UserOf(connID)
	if !ok || !o.registry.IsMember(connID, chatID) {
		return
	}
	var e event.DomainEvent
	if typing {
		e = event.UserTyping{ChatID: chatID, UserID: userID, UserName: userName}
	} else {
		e = event.UserStopTyping{ChatID: chatID, UserID: userID, UserName: userName}
	}
	o.publish(event.Outbound{Event: e, Exclude: connID})
}

// SetStatus updates a user's presence manually (away, busy).
func (o *Orchestrator) SetStatus(userID string, status domain.Status) error {
	if !status.Valid() {
		return fmt.Errorf("unknown status %q", status)
	}
	o.presence.SetStatus(userID, status)
	return nil
}

// Presence returns the current presence snapshot, served to freshly
// connected clients before live updates take over.
func (o *Orchestrator) Presence() []domain.PresenceState {
	return o.presence.Snapshot()
}

// Broadcast sends an announcement to every connected session. Only
// roles with broadcast rights may call it.
func (o *Orchestrator) Broadcast(cmd chat.BroadcastCommand, role domain.Role) error {
	if !role.CanBroadcast() {
		return errors.ErrForbidden
	}
	if err := o.checkContent(cmd.Message); err != nil {
		return err
	}
	o.publish(event.Outbound{Event: event.GlobalBroadcast{
		SenderName: cmd.SenderName,
		Message:    o.moderate(cmd.Message),
		Timestamp:  cmd.At,
	}})
	o.monitor.BroadcastEmitted()
	return nil
}

// GetMessages pages a chat's history backwards from the cursor.
func (o *Orchestrator) GetMessages(cmd chat.GetMessagesCommand) ([]chat.Message, *string, error) {
	return o.messages.GetMessages(cmd.ChatID, cmd.Cursor)
}

// FetchSince returns everything at or after the watermark, oldest
// first. This is the gap-repair read used on reconnect: re-delivered
// messages are harmless because consumers deduplicate by id.
func (o *Orchestrator) FetchSince(chatID chat.ChatID, since time.Time) ([]chat.Message, error) {
	return o.messages.FetchSince(chatID, since)
}

func (o *Orchestrator) authorizeUser(chatID chat.ChatID, userID string) error {
	member, err := o.chats.IsParticipant(chatID, userID)
	if err != nil {
		return err
	}
	if !member {
		return errors.ErrNotParticipant
	}
	return nil
}

func (o *Orchestrator) checkContent(content string) error {
	if strings.TrimSpace(content) == "" {
		return fmt.Errorf("empty content")
	}
	if o.maxContentLength > 0 && len([]rune(content)) > o.maxContentLength {
		return fmt.Errorf("content exceeds %d characters", o.maxContentLength)
	}
	return nil
}

// moderate sanitizes content through the Aho-Corasick automaton. It is
// synchronous on the write path so the stored record and the published
// event always carry the same, already-censored content.
func (o *Orchestrator) moderate(content string) string {
	o.mu.Lock()
	moderated := o.moderated
	moderator := o.moderator
	o.mu.Unlock()
	if !moderated {
		return content
	}
	verdict := moderator.Inspect(content)
	if len(verdict.Matches) > 0 {
		o.log.Debug("Content censored", "language", verdict.Language, "matches", len(verdict.Matches))
	}
	return verdict.Sanitized
}

// Start prepares moderation and the worker pipeline, then runs the
// supervisor until the context is canceled. I/O and the automaton
// build happen before the short critical section.
func (o *Orchestrator) Start(ctx context.Context) error {
	if err := o.prepareModeration(); err != nil {
		return err
	}

	o.mu.Lock()
	fanout := workers.NewEventFanout(o.log, o.registry, o.outbound, o.sinkTimeout, o.monitor).
		Add(o.permanentSinks...)
	o.supervisor.Add(fanout)
	o.supervisor.Add(workers.NewHealthMonitoringWorker(o.log, o.monitor, o.metricInterval))
	o.mu.Unlock()

	o.log.Info("Starting orchestrator and all supervised workers")
	o.supervisor.Run(ctx)
	return nil
}

// prepareModeration loads censored words and builds the Aho-Corasick
// automaton.
func (o *Orchestrator) prepareModeration() error {
	data, err := moderation.LoadCensoredWords()
	if err != nil {
		return err
	}
	o.log.Info(fmt.Sprintf("%d censored files loaded [%s]",
		len(data.Languages), strings.Join(data.Languages, ",")))
	o.log.Info(fmt.Sprintf("%d unique censored words loaded", len(data.Words)))

	moderator, err := moderation.NewModerator(data.Words, o.charReplacement)
	if err != nil {
		return err
	}
	o.mu.Lock()
	o.moderator = moderator
	o.moderated = true
	o.mu.Unlock()
	return nil
}

// Stop cancels the supervision context and stops presence timers.
func (o *Orchestrator) Stop() {
	o.log.Info("Requesting orchestrator shutdown")
	o.presence.Stop()
	o.supervisor.Stop()
}
