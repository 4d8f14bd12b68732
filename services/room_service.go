package services

import (
	"context"
	"log/slog"
	"time"

	"ember-chat/contract"
	"ember-chat/domain"
	"ember-chat/domain/event"
	"ember-chat/errors"
	"ember-chat/repositories"
	"ember-chat/runtime"
)

type IRoomService interface {
	Create(ctx context.Context, kind domain.RoomKind, expiresAt time.Time) (domain.Room, error)
	Get(ctx context.Context, code string) (domain.Room, error)
	Check(ctx context.Context, code string) (domain.Room, error)
	Evict(ctx context.Context, code string) error
	ExpiredRooms(ctx context.Context, now time.Time) ([]domain.Room, error)
}

// RoomService owns the room lifecycle: creation, the liveness check
// shared by both join paths, and the eviction sequence shared by the
// lazy expiry path and the sweeper.
type RoomService struct {
	rooms    repositories.IRoomRepository
	registry contract.IRegistry
	relay    *runtime.Relay
	codes    CodeGenerator
	log      *slog.Logger
	now      func() time.Time
}

func NewRoomService(rooms repositories.IRoomRepository, registry contract.IRegistry,
	relay *runtime.Relay, codes CodeGenerator, log *slog.Logger) *RoomService {
	return &RoomService{
		rooms:    rooms,
		registry: registry,
		relay:    relay,
		codes:    codes,
		log:      log,
		now:      time.Now,
	}
}

// Create validates the requested kind and expiry, generates a unique
// code and persists the room. The expiry must be strictly in the future
// and within the lifetime ceiling.
func (s *RoomService) Create(_ context.Context, kind domain.RoomKind, expiresAt time.Time) (domain.Room, error) {
	if !kind.Valid() {
		return domain.Room{}, errors.ErrInvalidKind
	}

	now := s.now().UTC()
	expiresAt = expiresAt.UTC()
	if !expiresAt.After(now) || expiresAt.After(now.Add(domain.MaxRoomLifetime)) {
		return domain.Room{}, errors.ErrInvalidExpiry
	}

	code, err := s.codes.Generate()
	if err != nil {
		return domain.Room{}, err
	}

	room := domain.Room{
		Code:      code,
		Kind:      kind,
		CreatedAt: now,
		ExpiresAt: expiresAt,
		Active:    true,
	}
	if err := s.rooms.CreateRoom(room); err != nil {
		return domain.Room{}, err
	}

	s.log.Info("Room created", "room", code, "kind", kind, "expires_at", expiresAt)
	return room, nil
}

// Get fetches the stored room without judging liveness. Callers that
// already hold the room's relay lock use it to re-verify existence;
// Check cannot run there because its eviction path takes that lock.
func (s *RoomService) Get(_ context.Context, code string) (domain.Room, error) {
	return s.rooms.GetRoom(code)
}

// Check resolves a code to a live room. A room that exists but has
// expired is reclaimed on the spot, and the caller gets ErrRoomExpired —
// a distinct outcome from ErrRoomNotFound.
func (s *RoomService) Check(ctx context.Context, code string) (domain.Room, error) {
	room, err := s.rooms.GetRoom(code)
	if err != nil {
		return domain.Room{}, err
	}
	if !domain.IsAlive(room.ExpiresAt, s.now()) {
		if err := s.Evict(ctx, code); err != nil {
			s.log.Error("Lazy eviction failed", "room", code, "error", err)
		}
		return domain.Room{}, errors.ErrRoomExpired
	}
	return room, nil
}

// Evict is the single-room sweep: notify every joined session, sever
// their room association, then delete the room and its messages. The
// whole sequence runs under the room's relay lock, so it is mutually
// exclusive with a session registering or relaying into the room. The
// delete is idempotent, so racing the sweeper against a lazy check can
// at worst reclaim the room twice, harmlessly.
func (s *RoomService) Evict(ctx context.Context, code string) error {
	return s.relay.Locked(code, func() error {
		s.registry.Publish(ctx, code, event.RoomExpired{Code: code})
		evicted := s.registry.EvictRoom(code)
		if err := s.rooms.DeleteRoom(code); err != nil {
			return err
		}
		// Forget only once the record is gone: a session minting a
		// fresh lock for this code must find no room behind it.
		s.relay.Forget(code)
		s.log.Info("Room reclaimed", "room", code, "evicted_sessions", len(evicted))
		return nil
	})
}

func (s *RoomService) ExpiredRooms(_ context.Context, now time.Time) ([]domain.Room, error) {
	return s.rooms.ExpiredRooms(now)
}
