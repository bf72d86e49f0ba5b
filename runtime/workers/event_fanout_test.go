package workers

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"team-chat/contract"
	"team-chat/domain"
	"team-chat/domain/chat"
	"team-chat/domain/event"
	"team-chat/errors"
	"team-chat/mocks"
	"team-chat/observability"
)

func testMessage(chatID chat.ChatID) chat.Message {
	return chat.Message{
		ID:        uuid.New(),
		ChatID:    chatID,
		SenderID:  "alice",
		Content:   "hello",
		Type:      chat.TypeText,
		CreatedAt: time.Now().UTC(),
	}
}

func TestEventFanout_RoomEvent_GoesToChatMembers(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	registry := mocks.NewMockIRegistry(ctrl)
	sink := mocks.NewMockEventSink(ctrl)
	monitor := observability.NewMonitor()

	evt := event.MessagePosted{Message: testMessage("general")}

	registry.EXPECT().
		SubscribersForChat(chat.ChatID("general"), "").
		Return([]contract.Subscriber{{ConnID: "c1", UserID: "bob", Sink: sink}})
	sink.EXPECT().Consume(gomock.Any(), evt).Return(nil)

	w := NewEventFanout(slog.Default(), registry, make(chan event.Outbound), time.Second, monitor)
	w.Fanout(context.Background(), event.Outbound{Event: evt})

	stats := monitor.Snapshot()
	req.Equal(uint64(1), stats.EventsDispatched)
	req.Equal(uint64(1), stats.DeliveriesOK)
}

func TestEventFanout_ChatlessEvent_GoesToEveryone(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	registry := mocks.NewMockIRegistry(ctrl)
	sink1 := mocks.NewMockEventSink(ctrl)
	sink2 := mocks.NewMockEventSink(ctrl)

	evt := event.UserStatusUpdate{UserID: "alice", Status: domain.StatusOnline}

	// Presence carries no chat, so membership is irrelevant
	registry.EXPECT().
		AllSubscribers("").
		Return([]contract.Subscriber{
			{ConnID: "c1", UserID: "bob", Sink: sink1},
			{ConnID: "c2", UserID: "clara", Sink: sink2},
		})
	sink1.EXPECT().Consume(gomock.Any(), evt).Return(nil)
	sink2.EXPECT().Consume(gomock.Any(), evt).Return(nil)

	w := NewEventFanout(slog.Default(), registry, make(chan event.Outbound), time.Second, observability.NewMonitor())
	w.Fanout(context.Background(), event.Outbound{Event: evt})
}

func TestEventFanout_ExcludesSenderConnection(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	registry := mocks.NewMockIRegistry(ctrl)
	evt := event.UserTyping{ChatID: "general", UserID: "alice", UserName: "Alice"}

	// The exclusion is delegated to the registry lookup
	registry.EXPECT().
		SubscribersForChat(chat.ChatID("general"), "sender-conn").
		Return(nil)

	w := NewEventFanout(slog.Default(), registry, make(chan event.Outbound), time.Second, observability.NewMonitor())
	w.Fanout(context.Background(), event.Outbound{Event: evt, Exclude: "sender-conn"})
}

func TestEventFanout_SlowConsumer_DoesNotBlockOthers(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	registry := mocks.NewMockIRegistry(ctrl)
	slow := mocks.NewMockEventSink(ctrl)
	healthy := mocks.NewMockEventSink(ctrl)
	monitor := observability.NewMonitor()

	evt := event.MessagePosted{Message: testMessage("general")}

	registry.EXPECT().
		SubscribersForChat(chat.ChatID("general"), "").
		Return([]contract.Subscriber{
			{ConnID: "c1", UserID: "bob", Sink: slow},
			{ConnID: "c2", UserID: "clara", Sink: healthy},
		})
	// The slow connection refuses the event; the next subscriber still gets it
	slow.EXPECT().Consume(gomock.Any(), evt).Return(errors.ErrSinkBackpressure)
	healthy.EXPECT().Consume(gomock.Any(), evt).Return(nil)

	w := NewEventFanout(slog.Default(), registry, make(chan event.Outbound), time.Second, monitor)
	w.Fanout(context.Background(), event.Outbound{Event: evt})

	stats := monitor.Snapshot()
	req.Equal(uint64(1), stats.DeliveriesFailed)
	req.Equal(uint64(1), stats.DeliveriesOK)
}

func TestEventFanout_PermanentSinks_ReceiveEverything(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	registry := mocks.NewMockIRegistry(ctrl)
	permanent := mocks.NewMockEventSink(ctrl)

	evt := event.MessagePosted{Message: testMessage("general")}

	// No live subscribers at all
	registry.EXPECT().SubscribersForChat(chat.ChatID("general"), "").Return(nil)
	// The permanent sink is still fed
	permanent.EXPECT().Consume(gomock.Any(), evt).Return(nil)

	w := NewEventFanout(slog.Default(), registry, make(chan event.Outbound), time.Second, observability.NewMonitor()).
		Add(permanent)
	w.Fanout(context.Background(), event.Outbound{Event: evt})
}

func TestEventFanout_Run_DrainsChannelInOrder(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	registry := mocks.NewMockIRegistry(ctrl)
	outbound := make(chan event.Outbound, 8)

	first := event.MessagePosted{Message: testMessage("general")}
	second := event.MessagePosted{Message: testMessage("general")}

	var got []event.DomainEvent
	done := make(chan struct{})
	sink := mocks.NewMockEventSink(ctrl)
	sink.EXPECT().Consume(gomock.Any(), gomock.Any()).
		DoAndReturn(func(ctx context.Context, e event.DomainEvent) error {
			got = append(got, e)
			if len(got) == 2 {
				close(done)
			}
			return nil
		}).Times(2)

	registry.EXPECT().
		SubscribersForChat(chat.ChatID("general"), "").
		Return([]contract.Subscriber{{ConnID: "c1", UserID: "bob", Sink: sink}}).
		Times(2)

	w := NewEventFanout(slog.Default(), registry, outbound, time.Second, observability.NewMonitor())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = w.Run(ctx) }()

	outbound <- event.Outbound{Event: first}
	outbound <- event.Outbound{Event: second}

	select {
	case <-done:
	case <-time.After(time.Second):
		req.Fail("fanout did not drain the channel")
	}

	// Publish order is delivery order
	req.Equal(first, got[0])
	req.Equal(second, got[1])
}
