// Package observability aggregates realtime counters for the dispatcher.
package observability

import (
	"sync/atomic"
	"time"
)

// Stats is a point-in-time snapshot served on the health endpoint.
type Stats struct {
	Connections       int64  `json:"connections"`
	EventsDispatched  uint64 `json:"events_dispatched"`
	DeliveriesOK      uint64 `json:"deliveries_ok"`
	DeliveriesFailed  uint64 `json:"deliveries_failed"`
	MessagesStored    uint64 `json:"messages_stored"`
	BroadcastsEmitted uint64 `json:"broadcasts_emitted"`
	Uptime            string `json:"uptime"`
}

// Monitor counts what the dispatcher does. All mutators are atomic and
// safe on the fan-out hot path.
type Monitor struct {
	startedAt time.Time

	connections       atomic.Int64
	eventsDispatched  atomic.Uint64
	deliveriesOK      atomic.Uint64
	deliveriesFailed  atomic.Uint64
	messagesStored    atomic.Uint64
	broadcastsEmitted atomic.Uint64
}

func NewMonitor() *Monitor {
	return &Monitor{startedAt: time.Now()}
}

func (m *Monitor) ConnOpened()       { m.connections.Add(1) }
func (m *Monitor) ConnClosed()       { m.connections.Add(-1) }
func (m *Monitor) EventDispatched()  { m.eventsDispatched.Add(1) }
func (m *Monitor) DeliveryOK()       { m.deliveriesOK.Add(1) }
func (m *Monitor) DeliveryFailed()   { m.deliveriesFailed.Add(1) }
func (m *Monitor) MessageStored()    { m.messagesStored.Add(1) }
func (m *Monitor) BroadcastEmitted() { m.broadcastsEmitted.Add(1) }

func (m *Monitor) Snapshot() Stats {
	return Stats{
		Connections:       m.connections.Load(),
		EventsDispatched:  m.eventsDispatched.Load(),
		DeliveriesOK:      m.deliveriesOK.Load(),
		DeliveriesFailed:  m.deliveriesFailed.Load(),
		MessagesStored:    m.messagesStored.Load(),
		BroadcastsEmitted: m.broadcastsEmitted.Load(),
		Uptime:            time.Since(m.startedAt).Round(time.Second).String(),
	}
}
