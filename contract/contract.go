package contract

import (
	"context"
	"reflect"

	"ember-chat/domain/event"
)

type ISupervisor interface {
	Add(worker ...Worker) ISupervisor
	Run(ctx context.Context)
	Start(ctx context.Context, worker Worker)
	Stop()
}

// Worker doesn't protect itself. It can be silly and focused; the
// supervisor owns panic recovery and restarts.
type Worker interface {
	Run(ctx context.Context) error
}

// GetWorkerName uses reflection to retrieve the type name of the worker.
// Used for logging and supervision without forcing a naming method onto
// the Worker interface.
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

// EventSink is one session's receiving end. Implementations must be safe
// for concurrent Consume calls and must not block the publisher.
type EventSink interface {
	Consume(ctx context.Context, e event.RoomEvent) error
}

// IRegistry is the in-memory participant registry and per-room pub/sub.
// TryJoin is an atomic capacity-check-and-insert; EvictRoom is the
// sweeper's force-unsubscribe. A multi-node fan-out can replace this
// implementation without touching the session state machine.
type IRegistry interface {
	TryJoin(code, sessionID string, capacity int, sink EventSink) error
	Leave(code, sessionID string)
	IsMember(code, sessionID string) bool
	MembersOf(code string) []string
	SinksForRoom(code string) []EventSink
	Publish(ctx context.Context, code string, e event.RoomEvent)
	PublishExcept(ctx context.Context, code, exceptSessionID string, e event.RoomEvent)
	EvictRoom(code string) []EventSink
}
