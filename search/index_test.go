package search

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	db "github.com/mama165/sdk-go/database"
	"github.com/stretchr/testify/require"

	"team-chat/domain/chat"
)

func newTestIndex(t *testing.T) *Index {
	t.Helper()
	_, _, badgerDB, blugeWriter, err := db.SetupBenchmark(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { db.CleanupDB(badgerDB, blugeWriter) })
	return NewIndex(blugeWriter)
}

func indexedMessage(t *testing.T, index *Index, chatID chat.ChatID, senderID, content string) chat.Message {
	t.Helper()
	msg := chat.Message{
		ID:        uuid.New(),
		ChatID:    chatID,
		SenderID:  senderID,
		Content:   content,
		Type:      chat.TypeText,
		CreatedAt: time.Now().UTC(),
	}
	require.NoError(t, index.IndexMessage(msg))
	return msg
}

func TestIndex_SearchByTerm(t *testing.T) {
	req := require.New(t)
	index := newTestIndex(t)

	target := indexedMessage(t, index, "general", "alice", "the deploy is scheduled for friday")
	indexedMessage(t, index, "general", "bob", "lunch plans anyone")

	hits, err := index.Search(context.Background(), NewQuery("deploy"))
	req.NoError(err)
	req.Len(hits, 1)
	req.Equal(target.ID.String(), hits[0].MessageID)
	req.Equal("general", hits[0].ChatID)
	req.Contains(hits[0].Fragment, "deploy")
}

func TestIndex_FiltersByChatAndSender(t *testing.T) {
	req := require.New(t)
	index := newTestIndex(t)

	inGeneral := indexedMessage(t, index, "general", "alice", "deploy checklist")
	indexedMessage(t, index, "random", "alice", "deploy gossip")
	indexedMessage(t, index, "general", "bob", "deploy window moved")

	// Chat filter narrows to one room.
	hits, err := index.Search(context.Background(), NewQuery("deploy --chat general"))
	req.NoError(err)
	req.Len(hits, 2)

	// Adding the sender filter narrows to one author.
	hits, err = index.Search(context.Background(), NewQuery("deploy --chat general --from alice"))
	req.NoError(err)
	req.Len(hits, 1)
	req.Equal(inGeneral.ID.String(), hits[0].MessageID)
}

func TestIndex_EditReindexesInsteadOfDuplicating(t *testing.T) {
	req := require.New(t)
	index := newTestIndex(t)

	msg := indexedMessage(t, index, "general", "alice", "draft about the deploy")

	// When: The same message id is indexed again with new content
	msg.Content = "final word on the rollout"
	req.NoError(index.IndexMessage(msg))

	// Then: The old content no longer matches
	hits, err := index.Search(context.Background(), NewQuery("deploy"))
	req.NoError(err)
	req.Empty(hits)

	// And: The new content matches exactly once
	hits, err = index.Search(context.Background(), NewQuery("rollout"))
	req.NoError(err)
	req.Len(hits, 1)
	req.Equal(msg.ID.String(), hits[0].MessageID)
}

func TestIndex_RemoveDropsFromResults(t *testing.T) {
	req := require.New(t)
	index := newTestIndex(t)

	msg := indexedMessage(t, index, "general", "alice", "ephemeral deploy note")
	req.NoError(index.Remove(msg.ID.String()))

	hits, err := index.Search(context.Background(), NewQuery("deploy"))
	req.NoError(err)
	req.Empty(hits)
}

func TestIndex_LimitCapsResults(t *testing.T) {
	req := require.New(t)
	index := newTestIndex(t)

	for i := 0; i < 5; i++ {
		indexedMessage(t, index, "general", "alice", "deploy status update")
	}

	hits, err := index.Search(context.Background(), NewQuery("deploy --limit 3"))
	req.NoError(err)
	req.Len(hits, 3)
}
