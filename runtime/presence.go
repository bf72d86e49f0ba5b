package runtime

import (
	"sync"
	"time"

	"team-chat/domain"
	"team-chat/domain/event"
)

// PresenceTracker owns the online/offline/away/busy state of users.
//
// Disconnects do not flip a user offline immediately: a grace delay
// tolerates reconnects without presence flicker. A reconnect inside the
// window cancels the pending transition and no event is emitted.
type PresenceTracker struct {
	mu         sync.Mutex
	states     map[string]domain.PresenceState
	pending    map[string]*time.Timer
	graceDelay time.Duration
	emit       func(event.UserStatusUpdate)
	now        func() time.Time
}

func NewPresenceTracker(graceDelay time.Duration, emit func(event.UserStatusUpdate)) *PresenceTracker {
	return &PresenceTracker{
		states:     make(map[string]domain.PresenceState),
		pending:    make(map[string]*time.Timer),
		graceDelay: graceDelay,
		emit:       emit,
		now:        time.Now,
	}
}

// Connected records a live connection for the user. The first connection
// (or a reconnect within the grace window) brings the user online.
func (p *PresenceTracker) Connected(userID string) {
	p.mu.Lock()

	if timer, ok := p.pending[userID]; ok {
		timer.Stop()
		delete(p.pending, userID)
	}

	prev, known := p.states[userID]
	at := p.now()
	state := domain.PresenceState{UserID: userID, Status: domain.StatusOnline, LastSeen: at}
	p.states[userID] = state
	p.mu.Unlock()

	if !known || prev.Status == domain.StatusOffline {
		p.emit(event.UserStatusUpdate{UserID: userID, Status: domain.StatusOnline, At: at})
	}
}

// SetStatus applies an explicit user action (away, busy, online).
func (p *PresenceTracker) SetStatus(userID string, status domain.Status) {
	p.mu.Lock()
	at := p.now()
	state := domain.PresenceState{UserID: userID, Status: status, LastSeen: at}
	p.states[userID] = state
	p.mu.Unlock()

	p.emit(event.UserStatusUpdate{UserID: userID, Status: status, At: at})
}

// Disconnected schedules the offline transition after the grace delay.
// Only called when the user's last live connection closed.
func (p *PresenceTracker) Disconnected(userID string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if timer, ok := p.pending[userID]; ok {
		timer.Stop()
	}
	var timer *time.Timer
	timer = time.AfterFunc(p.graceDelay, func() {
		p.goOffline(userID, timer)
	})
	p.pending[userID] = timer
}

func (p *PresenceTracker) goOffline(userID string, timer *time.Timer) {
	p.mu.Lock()
	// Stop cannot cancel a timer that already fired. If the pending
	// entry no longer carries this timer, a reconnect (or Stop) won the
	// race between firing and taking the lock: the transition is void.
	if p.pending[userID] != timer {
		p.mu.Unlock()
		return
	}
	delete(p.pending, userID)
	lastSeen := p.now()
	p.states[userID] = domain.PresenceState{UserID: userID, Status: domain.StatusOffline, LastSeen: lastSeen}
	p.mu.Unlock()

	p.emit(event.UserStatusUpdate{UserID: userID, Status: domain.StatusOffline, LastSeen: &lastSeen, At: lastSeen})
}

// Get returns the current presence state of a user.
func (p *PresenceTracker) Get(userID string) (domain.PresenceState, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	state, ok := p.states[userID]
	return state, ok
}

// Snapshot lists all known presence states.
func (p *PresenceTracker) Snapshot() []domain.PresenceState {
	p.mu.Lock()
	defer p.mu.Unlock()
	states := make([]domain.PresenceState, 0, len(p.states))
	for _, s := range p.states {
		states = append(states, s)
	}
	return states
}

// Stop cancels all pending offline transitions.
func (p *PresenceTracker) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	for userID, timer := range p.pending {
		timer.Stop()
		delete(p.pending, userID)
	}
}
