package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/samber/lo"

	"ember-chat/contract"
	"ember-chat/domain"
	"ember-chat/domain/event"
	"ember-chat/errors"
	"ember-chat/repositories"
	"ember-chat/runtime"
)

type IChatService interface {
	Join(ctx context.Context, sessionID, code, nickname string, sink contract.EventSink) (domain.Room, error)
	Send(ctx context.Context, code, nickname string, ciphertext, nonce []byte) (domain.Message, error)
	IsJoined(code, sessionID string) bool
	Leave(ctx context.Context, sessionID, code, nickname string)
}

// ChatService drives the realtime side of a session: joining a room,
// relaying messages, leaving. Format validation happens at the
// transport; liveness and capacity are decided here.
type ChatService struct {
	rooms    IRoomService
	messages repositories.IMessageRepository
	registry contract.IRegistry
	relay    *runtime.Relay
	log      *slog.Logger
	now      func() time.Time
}

func NewChatService(rooms IRoomService, messages repositories.IMessageRepository,
	registry contract.IRegistry, relay *runtime.Relay, log *slog.Logger) *ChatService {
	return &ChatService{
		rooms:    rooms,
		messages: messages,
		registry: registry,
		relay:    relay,
		log:      log,
		now:      time.Now,
	}
}

// Join resolves the room, registers the session, and emits the joined
// confirmation plus the full ascending history into the session's sink.
// Registration, the history read and both emissions happen under the
// room's relay lock, so a concurrently relayed message reaches the
// session either inside the history or as a live broadcast after it,
// exactly once. Eviction takes the same lock, and the room is
// re-verified inside it: a join racing a sweep either completes before
// the eviction broadcast or fails, never succeeds against a vanished
// room. On success the other members get a system notice.
func (s *ChatService) Join(ctx context.Context, sessionID, code, nickname string, sink contract.EventSink) (domain.Room, error) {
	room, err := s.rooms.Check(ctx, code)
	if err != nil {
		return domain.Room{}, err
	}

	err = s.relay.Locked(code, func() error {
		// An eviction may have run between Check and taking the lock.
		current, err := s.rooms.Get(ctx, code)
		if err != nil {
			return err
		}
		if !domain.IsAlive(current.ExpiresAt, s.now()) {
			return errors.ErrRoomExpired
		}
		if err := s.registry.TryJoin(code, sessionID, room.Kind.Capacity(), sink); err != nil {
			return err
		}
		history, err := s.messages.GetMessages(code)
		if err != nil {
			s.registry.Leave(code, sessionID)
			return err
		}

		joined := event.Joined{
			Code:      room.Code,
			Kind:      room.Kind,
			ExpiresAt: room.ExpiresAt,
			Nickname:  nickname,
		}
		if err := sink.Consume(ctx, joined); err != nil {
			s.log.Warn("Joined delivery failed", "room", code, "error", err)
		}
		messages := lo.Map(history, func(m domain.Message, _ int) event.MessagePosted {
			return event.FromMessage(m)
		})
		if err := sink.Consume(ctx, event.History{Messages: messages}); err != nil {
			s.log.Warn("History delivery failed", "room", code, "error", err)
		}
		return nil
	})
	if err != nil {
		return domain.Room{}, err
	}

	s.registry.PublishExcept(ctx, code, sessionID, event.SystemNotice{
		Text:   fmt.Sprintf("%s joined the room", nickname),
		SentAt: s.now().UTC(),
	})
	s.log.Debug("Session joined", "room", code, "session", sessionID)
	return room, nil
}

// Send re-checks liveness before relaying: a room can die between join
// and send, and the expired path must win. Check reclaims a dead room as
// a side effect, which broadcasts room-expired to its members, this
// sender included.
func (s *ChatService) Send(ctx context.Context, code, nickname string, ciphertext, nonce []byte) (domain.Message, error) {
	if _, err := s.rooms.Check(ctx, code); err != nil {
		return domain.Message{}, err
	}
	return s.relay.Relay(ctx, code, nickname, ciphertext, nonce)
}

// IsJoined reports whether the session still holds its room membership.
// An eviction severs it server-side; the transport uses this to notice
// that its local join state went stale while the connection sat idle.
func (s *ChatService) IsJoined(code, sessionID string) bool {
	return s.registry.IsMember(code, sessionID)
}

// Leave deregisters the session and tells the remaining members, but
// only when a nickname had been established for it.
func (s *ChatService) Leave(ctx context.Context, sessionID, code, nickname string) {
	s.registry.Leave(code, sessionID)
	if nickname == "" {
		return
	}
	s.registry.Publish(ctx, code, event.SystemNotice{
		Text:   fmt.Sprintf("%s left the room", nickname),
		SentAt: s.now().UTC(),
	})
	s.log.Debug("Session left", "room", code, "session", sessionID)
}
