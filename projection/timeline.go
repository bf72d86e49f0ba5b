// Package projection builds local chat timelines from observed events.
// It merges direct request responses, pushed events, and typing state
// into one consistent view per chat. It never emits events itself.
package projection

import (
	"sort"
	"time"

	"team-chat/domain/chat"
	"team-chat/domain/event"
)

// DefaultTypingTTL is the inactivity window after which a typing
// indicator is considered stale even if no stop signal ever arrives.
// The explicit stop event is an optimization, not required for
// correctness.
const DefaultTypingTTL = 1500 * time.Millisecond

type typingEntry struct {
	userName       string
	lastSignaledAt time.Time
}

// Timeline is the per-chat reducer over an ordered, deduplicated
// sequence of messages keyed by identifier, plus the transient set of
// active typers.
//
// Every inbound event is a merge, never a blind append: the same event
// may be delivered more than once (sender echo racing the direct
// response, redelivery after reconnect) and must leave exactly one
// visible entry per message identifier.
//
// Order is insertion order as received. Late-arriving events are not
// re-sorted into history, and edits never move a message.
type Timeline struct {
	ChatID   chat.ChatID
	Messages []chat.Message

	index     map[string]int
	typing    map[string]typingEntry
	typingTTL time.Duration
	now       func() time.Time
}

func NewTimeline(chatID chat.ChatID) *Timeline {
	return &Timeline{
		ChatID:    chatID,
		index:     make(map[string]int),
		typing:    make(map[string]typingEntry),
		typingTTL: DefaultTypingTTL,
		now:       time.Now,
	}
}

// Absorb folds a canonical message into the timeline: the append half of
// exactly-once. If the identifier is already present the existing entry
// wins and the call reports false. Used both for new-message events and
// for the client's own direct-request responses, in whichever order the
// network delivers them.
func (t *Timeline) Absorb(msg chat.Message) bool {
	id := msg.ID.String()
	if _, ok := t.index[id]; ok {
		return false
	}
	t.index[id] = len(t.Messages)
	t.Messages = append(t.Messages, msg)
	return true
}

// Apply folds one pushed event into local state.
func (t *Timeline) Apply(e event.DomainEvent) {
	switch evt := e.(type) {
	case event.MessagePosted:
		t.Absorb(evt.Message)

	case event.MessageUpdated:
		// Replace in place: edits do not reorder. Updates for messages
		// that were never cached are dropped; a later resync repairs them.
		if pos, ok := t.index[evt.Message.ID.String()]; ok {
			t.Messages[pos] = evt.Message
		}

	case event.MessageDeleted:
		// Soft remove: the entry keeps its position so indices referenced
		// by pending read receipts stay valid and the deletion stays
		// visible.
		if pos, ok := t.index[evt.MessageID]; ok {
			t.Messages[pos].MarkDeleted()
		}

	case event.MessagesRead:
		t.foldReadReceipts(evt)

	case event.UserTyping:
		t.typing[evt.UserID] = typingEntry{userName: evt.UserName, lastSignaledAt: t.now()}

	case event.UserStopTyping:
		delete(t.typing, evt.UserID)
	}
}

// foldReadReceipts appends a receipt for the reader on every referenced
// message that does not carry one yet: an idempotent union, never a
// replace. Applying the same event twice leaves readBy identical.
func (t *Timeline) foldReadReceipts(evt event.MessagesRead) {
	at := t.now()
	for _, id := range evt.MessageIDs {
		pos, ok := t.index[id]
		if !ok {
			continue
		}
		t.Messages[pos].MarkRead(evt.ReaderID, at)
	}
}

// TypingUsers returns the names of users currently typing, stale entries
// swept out. Sorted for stable rendering.
func (t *Timeline) TypingUsers() []string {
	t.SweepTyping()
	names := make([]string, 0, len(t.typing))
	for _, entry := range t.typing {
		names = append(names, entry.userName)
	}
	sort.Strings(names)
	return names
}

// SweepTyping clears indicators that have been silent longer than the
// inactivity window. This runs independently of stop events, so a lost
// stop signal cannot leave an indicator dangling.
func (t *Timeline) SweepTyping() {
	deadline := t.now().Add(-t.typingTTL)
	for userID, entry := range t.typing {
		if entry.lastSignaledAt.Before(deadline) {
			delete(t.typing, userID)
		}
	}
}

// Get returns the message with the given identifier, if cached.
func (t *Timeline) Get(messageID string) (chat.Message, bool) {
	pos, ok := t.index[messageID]
	if !ok {
		return chat.Message{}, false
	}
	return t.Messages[pos], true
}

// LastSeen reports the newest creation timestamp in the timeline, used
// as the resync watermark after a reconnect.
func (t *Timeline) LastSeen() time.Time {
	var last time.Time
	for _, m := range t.Messages {
		if m.CreatedAt.After(last) {
			last = m.CreatedAt
		}
	}
	return last
}
