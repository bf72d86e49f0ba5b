//go:generate go run go.uber.org/mock/mockgen -source=contract.go -destination=../mocks/mock_contract.go -package=mocks
package contract

import (
	"context"
	"reflect"

	"team-chat/domain/chat"
	"team-chat/domain/event"
)

type ISupervisor interface {
	Add(worker ...Worker) ISupervisor
	Run(ctx context.Context)
	Start(ctx context.Context, worker Worker)
	Stop()
}

type WorkerName string

// Worker doesn't protect itself
// Can be silly, focused
type Worker interface {
	Run(ctx context.Context) error
}

// GetWorkerName uses reflection to retrieve the type name of the worker.
// This is used for logging and supervision purposes during worker initialization
// or lifecycle events, avoiding the need for manual naming in the Worker interface.
func GetWorkerName(w Worker) string {
	if w == nil {
		return "NilWorker"
	}
	t := reflect.TypeOf(w)
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	return t.Name()
}

// EventSink is one delivery target: a live connection, a projection, or
// a permanent consumer such as the search index.
type EventSink interface {
	Consume(ctx context.Context, e event.DomainEvent) error
}

// Subscriber pairs a sink with the connection that owns it, so the
// dispatcher can exclude the sender's own connection and report which
// connection a failed delivery belongs to.
type Subscriber struct {
	ConnID string
	UserID string
	Sink   EventSink
}

type IRegistry interface {
	Bind(connID, userID string, role string, sink EventSink)
	Join(connID string, chatID chat.ChatID)
	Leave(connID string, chatID chat.ChatID)
	Drop(connID string) (userID string, lastConn bool)
	SubscribersForChat(chatID chat.ChatID, excludeConn string) []Subscriber
	AllSubscribers(excludeConn string) []Subscriber
	UserOf(connID string) (userID string, ok bool)
	IsMember(connID string, chatID chat.ChatID) bool
}
