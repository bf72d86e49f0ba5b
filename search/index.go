// Package search maintains a full-text index over message content.
package search

import (
	"context"

	"github.com/blugelabs/bluge"

	"team-chat/domain/chat"
)

// Index wraps a bluge writer. Messages are indexed by identifier so an
// edit re-indexes the same document instead of duplicating it.
type Index struct {
	writer *bluge.Writer
}

func NewIndex(writer *bluge.Writer) *Index {
	return &Index{writer: writer}
}

func (i *Index) IndexMessage(msg chat.Message) error {
	doc := bluge.NewDocument(msg.ID.String()).
		AddField(bluge.NewKeywordField("chat", string(msg.ChatID)).StoreValue()).
		AddField(bluge.NewKeywordField("sender", msg.SenderID).StoreValue()).
		AddField(bluge.NewTextField("content", msg.Content).StoreValue()).
		AddField(bluge.NewDateTimeField("at", msg.CreatedAt))
	return i.writer.Update(doc.ID(), doc)
}

// Remove drops a message from the index; used when a message is soft
// deleted so its placeholder text is not searchable.
func (i *Index) Remove(messageID string) error {
	return i.writer.Delete(bluge.Identifier(messageID))
}

// Hit is one search result.
type Hit struct {
	MessageID string
	ChatID    string
	Fragment  string
}

// Search runs a parsed query against the index and returns matching
// message identifiers, best match first.
func (i *Index) Search(ctx context.Context, query Query) ([]Hit, error) {
	reader, err := i.writer.Reader()
	if err != nil {
		return nil, err
	}
	defer reader.Close()

	boolean := bluge.NewBooleanQuery().
		AddMust(bluge.NewMatchQuery(query.Terms).SetField("content"))
	if query.ChatID != "" {
		boolean.AddMust(bluge.NewTermQuery(query.ChatID).SetField("chat"))
	}
	if query.SenderID != "" {
		boolean.AddMust(bluge.NewTermQuery(query.SenderID).SetField("sender"))
	}

	request := bluge.NewTopNSearch(query.Limit, boolean)
	iterator, err := reader.Search(ctx, request)
	if err != nil {
		return nil, err
	}

	var hits []Hit
	for {
		match, err := iterator.Next()
		if err != nil {
			return nil, err
		}
		if match == nil {
			break
		}
		hit := Hit{}
		err = match.VisitStoredFields(func(field string, value []byte) bool {
			switch field {
			case "_id":
				hit.MessageID = string(value)
			case "chat":
				hit.ChatID = string(value)
			case "content":
				hit.Fragment = string(value)
			}
			return true
		})
		if err != nil {
			return nil, err
		}
		hits = append(hits, hit)
	}
	return hits, nil
}
