package runtime

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"team-chat/domain/chat"
	"team-chat/domain/event"
)

type nopSink struct{}

func (s nopSink) Consume(ctx context.Context, e event.DomainEvent) error {
	return nil
}

func TestRegistry_Bind_And_Join(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry()
	connID := uuid.NewString()
	chatID := chat.ChatID("general")

	// Given no session is bound
	req.Zero(registry.ConnectionCount())

	// When an authenticated connection binds and joins a chat
	registry.Bind(connID, "alice", "user", nopSink{})
	registry.Join(connID, chatID)

	// Then it is a delivery target for that chat
	req.Equal(1, registry.ConnectionCount())
	req.True(registry.IsMember(connID, chatID))
	req.Len(registry.SubscribersForChat(chatID, ""), 1)

	userID, ok := registry.UserOf(connID)
	req.True(ok)
	req.Equal("alice", userID)
}

func TestRegistry_Join_UnboundConnection_Ignored(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry()

	// When a connection joins without being bound first
	registry.Join(uuid.NewString(), "general")

	// Then no membership is created
	req.Empty(registry.SubscribersForChat("general", ""))
}

func TestRegistry_Join_Idempotent(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry()
	connID := uuid.NewString()

	registry.Bind(connID, "alice", "user", nopSink{})
	registry.Join(connID, "general")
	registry.Join(connID, "general")

	req.Len(registry.SubscribersForChat("general", ""), 1)
}

func TestRegistry_SubscribersForChat_ExcludesSender(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry()
	conn1 := uuid.NewString()
	conn2 := uuid.NewString()

	registry.Bind(conn1, "alice", "user", nopSink{})
	registry.Bind(conn2, "bob", "user", nopSink{})
	registry.Join(conn1, "general")
	registry.Join(conn2, "general")

	// When resolving with the sender's connection excluded
	subs := registry.SubscribersForChat("general", conn1)

	// Then only the other member is targeted
	req.Len(subs, 1)
	req.Equal("bob", subs[0].UserID)
}

func TestRegistry_Leave_RemovesDeliveryTarget(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry()
	connID := uuid.NewString()

	registry.Bind(connID, "alice", "user", nopSink{})
	registry.Join(connID, "general")

	// When the connection leaves the chat
	registry.Leave(connID, "general")

	// Then it no longer receives that chat's events but stays bound
	req.False(registry.IsMember(connID, "general"))
	req.Empty(registry.SubscribersForChat("general", ""))
	req.Equal(1, registry.ConnectionCount())
}

func TestRegistry_Drop_CleansAllMemberships(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry()
	connID := uuid.NewString()

	registry.Bind(connID, "alice", "user", nopSink{})
	registry.Join(connID, "general")
	registry.Join(connID, "random")

	userID, lastConn := registry.Drop(connID)

	req.Equal("alice", userID)
	req.True(lastConn)
	req.Zero(registry.ConnectionCount())
	req.Empty(registry.SubscribersForChat("general", ""))
	req.Empty(registry.SubscribersForChat("random", ""))
}

func TestRegistry_Drop_SecondDevice_IsNotLast(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry()
	laptop := uuid.NewString()
	phone := uuid.NewString()

	// Given alice is connected twice
	registry.Bind(laptop, "alice", "user", nopSink{})
	registry.Bind(phone, "alice", "user", nopSink{})

	// When one device disconnects
	_, lastConn := registry.Drop(laptop)
	req.False(lastConn)

	// Then the remaining device is the last one
	_, lastConn = registry.Drop(phone)
	req.True(lastConn)
}

func TestRegistry_Drop_Unknown(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry()

	userID, lastConn := registry.Drop(uuid.NewString())

	req.Empty(userID)
	req.False(lastConn)
}

func TestRegistry_AllSubscribers(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry()
	conn1 := uuid.NewString()
	conn2 := uuid.NewString()

	registry.Bind(conn1, "alice", "user", nopSink{})
	registry.Bind(conn2, "bob", "admin", nopSink{})
	// bob never joined any chat; broadcasts must still reach him
	registry.Join(conn1, "general")

	req.Len(registry.AllSubscribers(""), 2)
	req.Len(registry.AllSubscribers(conn1), 1)
}
