package sink

import (
	"context"
	"fmt"
	"log/slog"

	"team-chat/domain/event"
	"team-chat/search"
)

// SearchSink is a permanent subscriber: every committed message mutation
// flows through it into the full-text index, off the delivery path.
type SearchSink struct {
	index *search.Index
	log   *slog.Logger
}

func NewSearchSink(index *search.Index, log *slog.Logger) SearchSink {
	return SearchSink{index: index, log: log}
}

func (s SearchSink) Consume(_ context.Context, e event.DomainEvent) error {
	switch evt := e.(type) {
	case event.MessagePosted:
		return s.index.IndexMessage(evt.Message)
	case event.MessageUpdated:
		return s.index.IndexMessage(evt.Message)
	case event.MessageDeleted:
		return s.index.Remove(evt.MessageID)
	default:
		s.log.Debug(fmt.Sprintf("Not indexed event : %v", evt.WireName()))
		return nil
	}
}
