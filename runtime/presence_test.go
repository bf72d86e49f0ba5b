package runtime

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"team-chat/domain"
	"team-chat/domain/event"
)

// collector records emitted presence events for assertions.
type collector struct {
	mu     sync.Mutex
	events []event.UserStatusUpdate
}

func (c *collector) emit(e event.UserStatusUpdate) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, e)
}

func (c *collector) all() []event.UserStatusUpdate {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]event.UserStatusUpdate, len(c.events))
	copy(out, c.events)
	return out
}

func TestPresence_FirstConnection_EmitsOnline(t *testing.T) {
	req := require.New(t)
	c := &collector{}
	tracker := NewPresenceTracker(50*time.Millisecond, c.emit)
	defer tracker.Stop()

	tracker.Connected("alice")

	events := c.all()
	req.Len(events, 1)
	req.Equal(domain.StatusOnline, events[0].Status)

	state, ok := tracker.Get("alice")
	req.True(ok)
	req.Equal(domain.StatusOnline, state.Status)
}

func TestPresence_ReconnectWithinGrace_NoFlicker(t *testing.T) {
	req := require.New(t)
	c := &collector{}
	tracker := NewPresenceTracker(100*time.Millisecond, c.emit)
	defer tracker.Stop()

	tracker.Connected("alice")

	// When the last connection drops and comes back inside the window
	tracker.Disconnected("alice")
	tracker.Connected("alice")

	// Then no offline event was ever published
	time.Sleep(200 * time.Millisecond)
	for _, e := range c.all() {
		req.NotEqual(domain.StatusOffline, e.Status)
	}
	state, _ := tracker.Get("alice")
	req.Equal(domain.StatusOnline, state.Status)
}

func TestPresence_ReconnectOnGraceBoundary_NeverTrackedOffline(t *testing.T) {
	req := require.New(t)
	c := &collector{}
	grace := time.Millisecond
	tracker := NewPresenceTracker(grace, c.emit)
	defer tracker.Stop()

	tracker.Connected("alice")

	// When reconnects land right as the grace window expires, a fired
	// but not yet applied offline transition must not overwrite the
	// fresh online state.
	for i := 0; i < 200; i++ {
		tracker.Disconnected("alice")
		time.Sleep(grace)
		tracker.Connected("alice")

		state, ok := tracker.Get("alice")
		req.True(ok)
		req.Equal(domain.StatusOnline, state.Status, "iteration %d", i)
	}
}

func TestPresence_GraceElapsed_EmitsOfflineWithLastSeen(t *testing.T) {
	req := require.New(t)
	c := &collector{}
	tracker := NewPresenceTracker(30*time.Millisecond, c.emit)
	defer tracker.Stop()

	tracker.Connected("alice")
	tracker.Disconnected("alice")

	require.Eventually(t, func() bool {
		state, ok := tracker.Get("alice")
		return ok && state.Status == domain.StatusOffline
	}, time.Second, 10*time.Millisecond)

	events := c.all()
	last := events[len(events)-1]
	req.Equal(domain.StatusOffline, last.Status)
	req.NotNil(last.LastSeen)
}

func TestPresence_SetStatus_AlwaysEmits(t *testing.T) {
	req := require.New(t)
	c := &collector{}
	tracker := NewPresenceTracker(50*time.Millisecond, c.emit)
	defer tracker.Stop()

	tracker.Connected("alice")
	tracker.SetStatus("alice", domain.StatusBusy)
	tracker.SetStatus("alice", domain.StatusAway)

	events := c.all()
	req.Len(events, 3)
	req.Equal(domain.StatusBusy, events[1].Status)
	req.Equal(domain.StatusAway, events[2].Status)
}

func TestPresence_SecondConnection_NoDuplicateOnline(t *testing.T) {
	req := require.New(t)
	c := &collector{}
	tracker := NewPresenceTracker(50*time.Millisecond, c.emit)
	defer tracker.Stop()

	// Given alice connects from two devices
	tracker.Connected("alice")
	tracker.Connected("alice")

	// Then online is announced once
	req.Len(c.all(), 1)
}
