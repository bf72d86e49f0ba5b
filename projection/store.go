package projection

import (
	"context"
	"sync"
	"time"

	"team-chat/domain"
	"team-chat/domain/chat"
	"team-chat/domain/event"
)

// Store is the client-side root: one Timeline per chat, plus the
// cross-chat projections (presence, broadcasts). It implements the sink
// contract so the websocket client can feed it directly.
//
// The server guarantees per-chat FIFO only; nothing here assumes any
// ordering across chats or across event types.
type Store struct {
	mu         sync.Mutex
	timelines  map[chat.ChatID]*Timeline
	presence   map[string]domain.PresenceState
	presenceAt map[string]time.Time
	broadcasts []event.GlobalBroadcast
}

func NewStore() *Store {
	return &Store{
		timelines:  make(map[chat.ChatID]*Timeline),
		presence:   make(map[string]domain.PresenceState),
		presenceAt: make(map[string]time.Time),
	}
}

func (s *Store) Consume(_ context.Context, e event.DomainEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch evt := e.(type) {
	case event.UserStatusUpdate:
		// The snapshot reply and live updates travel on separate paths
		// and may arrive out of order; the state-change instant decides.
		if evt.At.Before(s.presenceAt[evt.UserID]) {
			return nil
		}
		state := domain.PresenceState{UserID: evt.UserID, Status: evt.Status}
		if evt.LastSeen != nil {
			state.LastSeen = *evt.LastSeen
		}
		s.presence[evt.UserID] = state
		s.presenceAt[evt.UserID] = evt.At

	case event.GlobalBroadcast:
		s.broadcasts = append(s.broadcasts, evt)

	default:
		s.timelineLocked(e.Chat()).Apply(e)
	}
	return nil
}

// Absorb folds a direct-request response into the right timeline.
func (s *Store) Absorb(msg chat.Message) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.timelineLocked(msg.ChatID).Absorb(msg)
}

// AbsorbHistory folds a resync batch, deduplicating against anything the
// client already holds and refreshing cached copies of mutated records.
func (s *Store) AbsorbHistory(chatID chat.ChatID, messages []chat.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t := s.timelineLocked(chatID)
	for _, msg := range messages {
		if !t.Absorb(msg) {
			// Already cached: the fetched record is authoritative, it may
			// carry edits, receipts or a deletion applied while offline.
			t.Apply(event.MessageUpdated{Message: msg})
		}
	}
}

// Timeline returns the reducer for a chat, creating it on first use.
func (s *Store) Timeline(chatID chat.ChatID) *Timeline {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.timelineLocked(chatID)
}

func (s *Store) timelineLocked(chatID chat.ChatID) *Timeline {
	t, ok := s.timelines[chatID]
	if !ok {
		t = NewTimeline(chatID)
		s.timelines[chatID] = t
	}
	return t
}

// Presence returns the last known presence state of a user.
func (s *Store) Presence(userID string) (domain.PresenceState, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	state, ok := s.presence[userID]
	return state, ok
}

// PresenceSnapshot lists all known presence states.
func (s *Store) PresenceSnapshot() []domain.PresenceState {
	s.mu.Lock()
	defer s.mu.Unlock()
	states := make([]domain.PresenceState, 0, len(s.presence))
	for _, state := range s.presence {
		states = append(states, state)
	}
	return states
}

// Broadcasts returns the received global broadcasts, oldest first.
func (s *Store) Broadcasts() []event.GlobalBroadcast {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]event.GlobalBroadcast, len(s.broadcasts))
	copy(out, s.broadcasts)
	return out
}
