package httpapi

import (
	"context"
	"fmt"

	"ember-chat/domain/event"
)

// wsSink is one websocket session's receiving end. Consume is called by
// the registry fan-out and by the join path; the connection's writer
// goroutine drains Events.
type wsSink struct {
	Events chan event.RoomEvent
}

func newWSSink(bufferSize int) *wsSink {
	return &wsSink{Events: make(chan event.RoomEvent, bufferSize)}
}

// Consume hands the event to the connection's writer without ever
// blocking the publisher. A full buffer drops the event and reports it
// so the registry can log the backpressure.
func (s *wsSink) Consume(ctx context.Context, e event.RoomEvent) error {
	select {
	case s.Events <- e:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	default:
		return fmt.Errorf("session buffer full, dropping %s", e.EventName())
	}
}
