package test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	db "github.com/mama165/sdk-go/database"
	"github.com/samber/lo"
	"github.com/stretchr/testify/require"

	"team-chat/auth"
	"team-chat/domain/chat"
	"team-chat/observability"
	"team-chat/projection"
	"team-chat/repositories"
	"team-chat/runtime"
	"team-chat/runtime/workers"
	"team-chat/search"
	"team-chat/sink"
	"team-chat/transport/ws"
)

const settle = 5 * time.Second

// Test_Scenario drives the whole stack end to end inside one process:
// real BadgerDB, real Bluge index, the orchestrator with its supervised
// workers, the websocket server, and two live clients with their own
// local projections.
func Test_Scenario(t *testing.T) {
	req := require.New(t)
	_, log, badgerDB, blugeWriter, err := db.SetupBenchmark(t.TempDir())
	req.NoError(err)
	defer db.CleanupDB(badgerDB, blugeWriter)

	// 1. Assemble the server side.
	messageRepository := repositories.NewMessageRepository(badgerDB, log, lo.ToPtr(100))
	chatRepository := repositories.NewChatRepository(badgerDB)
	monitor := observability.NewMonitor()
	registry := runtime.NewRegistry()
	orchestrator := runtime.NewOrchestrator(
		log, workers.NewSupervisor(log), registry,
		messageRepository, chatRepository, monitor,
		256, time.Second, time.Minute,
		50*time.Millisecond,
		2000, '*',
	)
	index := search.NewIndex(blugeWriter)
	orchestrator.Add(sink.NewSearchSink(index, log))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	serverDone := make(chan struct{})
	go func() {
		defer close(serverDone)
		req.NoError(orchestrator.Start(ctx))
	}()
	defer func() {
		orchestrator.Stop()
		cancel()
		<-serverDone
	}()

	tokens := auth.NewTokenManager("integration-secret", time.Hour)
	mux := http.NewServeMux()
	ws.NewServer(log, orchestrator, tokens, monitor, 64).Routes(mux)
	httpServer := httptest.NewServer(mux)
	defer httpServer.Close()
	wsURL := "ws" + strings.TrimPrefix(httpServer.URL, "http") + "/ws"

	// 2. One shared chat, two authenticated clients.
	created, err := chatRepository.CreateChat("engineering", chat.TypeGroup, "alice-id", []string{"bob-id"})
	req.NoError(err)

	aliceToken, err := tokens.Generate("alice-id", "Alice", []string{"user"})
	req.NoError(err)
	bobToken, err := tokens.Generate("bob-id", "Bob", []string{"user"})
	req.NoError(err)

	// Clients get their own cancellation so they disconnect before the
	// http server is torn down.
	clientCtx, clientCancel := context.WithCancel(ctx)
	defer clientCancel()

	alice := ws.NewClient(log, wsURL, aliceToken, projection.NewStore())
	bob := ws.NewClient(log, wsURL, bobToken, projection.NewStore())
	go func() { _ = alice.Run(clientCtx) }()
	go func() { _ = bob.Run(clientCtx) }()

	req.Eventually(func() bool {
		return registry.ConnectionCount() == 2
	}, settle, 10*time.Millisecond, "both clients should connect")

	req.NoError(alice.JoinChat(created.ID))
	req.NoError(bob.JoinChat(created.ID))

	// 3. A typing burst reaches bob, never the sender.
	alice.InputActivity(created.ID, "Alice")
	req.Eventually(func() bool {
		return lo.Contains(bob.Store().Timeline(created.ID).TypingUsers(), "Alice")
	}, settle, 10*time.Millisecond, "bob should see alice typing")
	req.Empty(alice.Store().Timeline(created.ID).TypingUsers())

	// 4. Sending clears the indicator and lands on both timelines with
	// the same identity, exactly once.
	req.NoError(alice.SendMessage(created.ID, "shipping the release today"))

	var messageID string
	req.Eventually(func() bool {
		timeline := bob.Store().Timeline(created.ID)
		if len(timeline.Messages) != 1 {
			return false
		}
		messageID = timeline.Messages[0].ID.String()
		return timeline.Messages[0].Content == "shipping the release today"
	}, settle, 10*time.Millisecond, "bob should receive the message")

	req.Eventually(func() bool {
		return len(alice.Store().Timeline(created.ID).Messages) == 1
	}, settle, 10*time.Millisecond, "alice's echo should deduplicate to one entry")

	req.Eventually(func() bool {
		return len(bob.Store().Timeline(created.ID).TypingUsers()) == 0
	}, settle, 10*time.Millisecond, "typing indicator should clear on send")

	// 5. Edit in place: content changes, position and count do not.
	req.NoError(alice.EditMessage(created.ID, messageID, "release slipped to tomorrow"))
	req.Eventually(func() bool {
		m, ok := bob.Store().Timeline(created.ID).Get(messageID)
		return ok && m.Content == "release slipped to tomorrow" && m.EditedAt != nil
	}, settle, 10*time.Millisecond, "bob should see the edit")
	req.Len(bob.Store().Timeline(created.ID).Messages, 1)

	// 6. Read receipt flows back to the author.
	req.NoError(bob.MarkRead(created.ID, []string{messageID}))
	req.Eventually(func() bool {
		m, ok := alice.Store().Timeline(created.ID).Get(messageID)
		return ok && len(m.ReadBy) == 1 && m.ReadBy[0].UserID == "bob-id"
	}, settle, 10*time.Millisecond, "alice should see bob's receipt")

	// 7. The committed content is searchable through the index sink.
	req.Eventually(func() bool {
		hits, err := index.Search(ctx, search.NewQuery("slipped"))
		return err == nil && len(hits) == 1 && hits[0].MessageID == messageID
	}, settle, 50*time.Millisecond, "edit should be reindexed")

	// 8. Soft delete keeps the slot, blanks the content, drops the
	// document from the index.
	req.NoError(alice.DeleteMessage(created.ID, messageID))
	req.Eventually(func() bool {
		m, ok := bob.Store().Timeline(created.ID).Get(messageID)
		return ok && m.IsDeleted && m.Content == chat.DeletedPlaceholder
	}, settle, 10*time.Millisecond, "bob should see the placeholder")
	req.Len(bob.Store().Timeline(created.ID).Messages, 1)
	req.Eventually(func() bool {
		hits, err := index.Search(ctx, search.NewQuery("slipped"))
		return err == nil && len(hits) == 0
	}, settle, 50*time.Millisecond, "deleted message should leave the index")

	// 9. A manager broadcast reaches members and non-members alike.
	carolToken, err := tokens.Generate("carol-id", "Carol", []string{"user", "manager"})
	req.NoError(err)
	carol := ws.NewClient(log, wsURL, carolToken, projection.NewStore())
	go func() { _ = carol.Run(clientCtx) }()
	req.Eventually(func() bool {
		return registry.ConnectionCount() == 3
	}, settle, 10*time.Millisecond, "carol should connect")

	req.NoError(carol.Broadcast("all hands at four"))
	for name, c := range map[string]*ws.Client{"alice": alice, "bob": bob} {
		req.Eventually(func() bool {
			broadcasts := c.Store().Broadcasts()
			return len(broadcasts) == 1 && broadcasts[0].Message == "all hands at four"
		}, settle, 10*time.Millisecond, name+" should receive the broadcast")
	}

	// 10. Presence: everyone who connected is visible online.
	req.Eventually(func() bool {
		state, ok := alice.Store().Presence("carol-id")
		return ok && state.Status == "online"
	}, settle, 10*time.Millisecond, "carol should appear online")
}
