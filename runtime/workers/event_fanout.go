package workers

import (
	"context"
	"log/slog"
	"time"

	"team-chat/contract"
	"team-chat/domain/event"
	"team-chat/observability"
)

// EventFanout drains the outbound channel and delivers each event to
// the subscribers resolved from the registry at dispatch time.
//
// A single fan-out goroutine consumes an ordered channel, so two
// events published for the same chat are always offered to every
// subscriber in publish order. Per-connection sinks buffer instead of
// blocking; a slow consumer loses events rather than stalling the
// room, and repairs the gap on resync.
//
// Room events go to the members of the chat. Events without a chat
// (presence, broadcast) go to every connection. Permanent sinks (the
// search index) receive everything regardless of membership.
type EventFanout struct {
	log         *slog.Logger
	registry    contract.IRegistry
	outbound    chan event.Outbound
	permanent   []contract.EventSink
	sinkTimeout time.Duration
	monitor     *observability.Monitor
}

func NewEventFanout(
	log *slog.Logger,
	registry contract.IRegistry,
	outbound chan event.Outbound,
	sinkTimeout time.Duration,
	monitor *observability.Monitor,
) *EventFanout {
	return &EventFanout{
		log:         log,
		registry:    registry,
		outbound:    outbound,
		sinkTimeout: sinkTimeout,
		monitor:     monitor,
	}
}

func (w *EventFanout) Add(sinks ...contract.EventSink) *EventFanout {
	w.permanent = append(w.permanent, sinks...)
	return w
}

func (w *EventFanout) Run(ctx context.Context) error {
	for {
		select {
		case out := <-w.outbound:
			w.Fanout(ctx, out)
		case <-ctx.Done():
			w.log.Debug("Context done, stopping fanout")
			return nil
		}
	}
}

// Fanout offers one event to every resolved subscriber, then to the
// permanent sinks. Delivery failures are counted and logged, never
// retried: the client repairs gaps on resync.
func (w *EventFanout) Fanout(ctx context.Context, out event.Outbound) {
	w.monitor.EventDispatched()

	var subs []contract.Subscriber
	if out.Event.Chat() == "" {
		subs = w.registry.AllSubscribers(out.Exclude)
	} else {
		subs = w.registry.SubscribersForChat(out.Event.Chat(), out.Exclude)
	}

	for _, sub := range subs {
		if err := w.deliver(ctx, sub.Sink, out.Event); err != nil {
			w.monitor.DeliveryFailed()
			w.log.Warn("Delivery failed",
				"event", out.Event.WireName(),
				"conn", sub.ConnID,
				"user", sub.UserID,
				"error", err)
			continue
		}
		w.monitor.DeliveryOK()
	}

	for _, sink := range w.permanent {
		if err := w.deliver(ctx, sink, out.Event); err != nil {
			w.log.Warn("Permanent sink failed", "event", out.Event.WireName(), "error", err)
		}
	}
}

func (w *EventFanout) deliver(ctx context.Context, sink contract.EventSink, e event.DomainEvent) error {
	delivery, cancel := context.WithTimeout(ctx, w.sinkTimeout)
	defer cancel()
	return sink.Consume(delivery, e)
}
