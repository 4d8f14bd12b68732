// Package runtime owns the in-memory side of the system: who is
// connected to which room, and how events reach them. It contains no
// business rules and no storage.
package runtime

import (
	"context"
	"log/slog"
	"sync"

	"ember-chat/contract"
	"ember-chat/domain/event"
	"ember-chat/errors"
)

type Set map[string]struct{}

// Registry maps room codes to the sessions currently joined to them and
// resolves each session to its delivery sink. It is the only shared
// mutable state between live sessions and the sweeper, so every
// operation takes the one mutex; in particular the capacity check and
// the insert in TryJoin are a single critical section.
type Registry struct {
	mu          sync.Mutex
	sessions    map[string]contract.EventSink // session id -> sink
	roomMembers map[string]Set                // room code -> session ids
	log         *slog.Logger
}

func NewRegistry(log *slog.Logger) *Registry {
	return &Registry{
		sessions:    make(map[string]contract.EventSink),
		roomMembers: make(map[string]Set),
		log:         log,
	}
}

// TryJoin registers a session in a room, enforcing the capacity limit.
// A session that is already a member rejoins idempotently (its sink is
// refreshed, nothing else changes). capacity <= 0 means unbounded.
func (r *Registry) TryJoin(code, sessionID string, capacity int, sink contract.EventSink) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	members, ok := r.roomMembers[code]
	if ok {
		if _, present := members[sessionID]; present {
			r.sessions[sessionID] = sink
			return nil
		}
		if capacity > 0 && len(members) >= capacity {
			return errors.ErrRoomFull
		}
	} else {
		members = make(Set)
		r.roomMembers[code] = members
	}

	members[sessionID] = struct{}{}
	r.sessions[sessionID] = sink
	return nil
}

// Leave removes a session from a room. Empty member sets are dropped so
// the registry never accumulates entries for dead rooms.
func (r *Registry) Leave(code, sessionID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.sessions, sessionID)
	if members, ok := r.roomMembers[code]; ok {
		delete(members, sessionID)
		if len(members) == 0 {
			delete(r.roomMembers, code)
		}
	}
}

// IsMember reports whether the session currently belongs to the room.
func (r *Registry) IsMember(code, sessionID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, ok := r.roomMembers[code][sessionID]
	return ok
}

func (r *Registry) MembersOf(code string) []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	members := make([]string, 0, len(r.roomMembers[code]))
	for sessionID := range r.roomMembers[code] {
		members = append(members, sessionID)
	}
	return members
}

func (r *Registry) SinksForRoom(code string) []contract.EventSink {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.sinksLocked(code, "")
}

// Publish delivers an event to every session in the room. Sinks are
// snapshotted under the lock and consumed outside it, so a slow sink
// never holds up the registry.
func (r *Registry) Publish(ctx context.Context, code string, e event.RoomEvent) {
	r.PublishExcept(ctx, code, "", e)
}

// PublishExcept is Publish minus one session, used for "joined" and
// "left" notices that should not echo back to their subject.
func (r *Registry) PublishExcept(ctx context.Context, code, exceptSessionID string, e event.RoomEvent) {
	r.mu.Lock()
	sinks := r.sinksLocked(code, exceptSessionID)
	r.mu.Unlock()

	r.deliver(ctx, code, sinks, e)
}

// EvictRoom severs every session's association with the room and returns
// the affected sinks. The connections themselves stay open; only the
// room membership is gone. Callers that need to notify the members do so
// via Publish before evicting.
func (r *Registry) EvictRoom(code string) []contract.EventSink {
	r.mu.Lock()
	defer r.mu.Unlock()

	sinks := r.sinksLocked(code, "")
	for sessionID := range r.roomMembers[code] {
		delete(r.sessions, sessionID)
	}
	delete(r.roomMembers, code)
	return sinks
}

func (r *Registry) sinksLocked(code, exceptSessionID string) []contract.EventSink {
	members, ok := r.roomMembers[code]
	if !ok {
		return nil
	}
	var sinks []contract.EventSink
	for sessionID := range members {
		if sessionID == exceptSessionID {
			continue
		}
		if sink, exists := r.sessions[sessionID]; exists {
			sinks = append(sinks, sink)
		}
	}
	return sinks
}

func (r *Registry) deliver(ctx context.Context, code string, sinks []contract.EventSink, e event.RoomEvent) {
	for _, sink := range sinks {
		if err := sink.Consume(ctx, e); err != nil {
			r.log.Warn("Event delivery failed",
				"room", code,
				"event", e.EventName(),
				"error", err)
		}
	}
}
