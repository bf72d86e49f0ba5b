// Package runtime handles event propagation: who is connected, which
// chats they subscribed to, and how committed state changes fan out.
// It orchestrates the system without containing business logic.
package runtime

import (
	"sync"

	"team-chat/contract"
	"team-chat/domain"
	"team-chat/domain/chat"
)

type Set map[string]struct{}

type session struct {
	userID string
	role   domain.Role
	sink   contract.EventSink
}

// Registry tracks live sessions and room membership.
// It is an injected, explicitly-owned object: constructed at server
// start, torn down at shutdown, so multiple independent instances can
// run in one process.
//
// Membership is scoped to a connection, not a user: a user with two
// devices holds two sessions, each with its own subscriptions.
type Registry struct {
	mu        sync.RWMutex
	sessions  map[string]session    // connID -> session
	userConns map[string]Set        // userID -> connIDs
	members   map[chat.ChatID]Set   // chatID -> connIDs
}

func NewRegistry() *Registry {
	return &Registry{
		sessions:  make(map[string]session),
		userConns: make(map[string]Set),
		members:   make(map[chat.ChatID]Set),
	}
}

// Bind admits an authenticated connection into the fan-out graph.
// Connections that fail authentication must never reach this point.
func (r *Registry) Bind(connID, userID string, role string, sink contract.EventSink) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.sessions[connID] = session{userID: userID, role: domain.Role(role), sink: sink}
	if _, ok := r.userConns[userID]; !ok {
		r.userConns[userID] = make(Set)
	}
	r.userConns[userID][connID] = struct{}{}
}

// Join subscribes a connection to a chat. Rejoining is a no-op.
// Unknown connections are ignored: only bound sessions may subscribe.
func (r *Registry) Join(connID string, chatID chat.ChatID) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.sessions[connID]; !ok {
		return
	}
	if _, ok := r.members[chatID]; !ok {
		r.members[chatID] = make(Set)
	}
	r.members[chatID][connID] = struct{}{}
}

// Leave unsubscribes a connection from a chat. Safe on an unjoined chat.
func (r *Registry) Leave(connID string, chatID chat.ChatID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.leaveLocked(connID, chatID)
}

func (r *Registry) leaveLocked(connID string, chatID chat.ChatID) {
	conns, ok := r.members[chatID]
	if !ok {
		return
	}
	delete(conns, connID)
	if len(conns) == 0 {
		delete(r.members, chatID)
	}
}

// Drop removes a connection and all its memberships atomically with
// respect to concurrent fan-out. It reports the owning user and whether
// this was the user's last live connection, which drives the presence
// transition to offline.
func (r *Registry) Drop(connID string) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	sess, ok := r.sessions[connID]
	if !ok {
		return "", false
	}
	delete(r.sessions, connID)

	for chatID := range r.members {
		r.leaveLocked(connID, chatID)
	}

	conns := r.userConns[sess.userID]
	delete(conns, connID)
	if len(conns) == 0 {
		delete(r.userConns, sess.userID)
		return sess.userID, true
	}
	return sess.userID, false
}

// SubscribersForChat resolves the live delivery targets of a chat,
// optionally excluding one connection (sender echo suppression).
// Returns nil if the chat has no members.
func (r *Registry) SubscribersForChat(chatID chat.ChatID, excludeConn string) []contract.Subscriber {
	r.mu.RLock()
	defer r.mu.RUnlock()

	conns, ok := r.members[chatID]
	if !ok {
		return nil
	}
	var subs []contract.Subscriber
	for connID := range conns {
		if connID == excludeConn {
			continue
		}
		if sess, exists := r.sessions[connID]; exists {
			subs = append(subs, contract.Subscriber{ConnID: connID, UserID: sess.userID, Sink: sess.sink})
		}
	}
	return subs
}

// AllSubscribers returns every bound connection, regardless of room
// membership. Used for global broadcast and presence updates.
func (r *Registry) AllSubscribers(excludeConn string) []contract.Subscriber {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var subs []contract.Subscriber
	for connID, sess := range r.sessions {
		if connID == excludeConn {
			continue
		}
		subs = append(subs, contract.Subscriber{ConnID: connID, UserID: sess.userID, Sink: sess.sink})
	}
	return subs
}

func (r *Registry) UserOf(connID string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	sess, ok := r.sessions[connID]
	return sess.userID, ok
}

func (r *Registry) RoleOf(connID string) (domain.Role, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	sess, ok := r.sessions[connID]
	return sess.role, ok
}

func (r *Registry) IsMember(connID string, chatID chat.ChatID) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	conns, ok := r.members[chatID]
	if !ok {
		return false
	}
	_, ok = conns[connID]
	return ok
}

// ConnectionCount reports the number of bound sessions.
func (r *Registry) ConnectionCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}
