package repositories

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/fxamacker/cbor/v2"

	"ember-chat/domain"
	"ember-chat/errors"
)

type IRoomRepository interface {
	CreateRoom(room domain.Room) error
	GetRoom(code string) (domain.Room, error)
	Exists(code string) (bool, error)
	DeleteRoom(code string) error
	ExpiredRooms(now time.Time) ([]domain.Room, error)
}

type RoomRepository struct {
	db  *badger.DB
	log *slog.Logger
}

func NewRoomRepository(db *badger.DB, log *slog.Logger) RoomRepository {
	return RoomRepository{db: db, log: log}
}

// roomRecord is the on-disk shape. Instants are stored as UTC epoch
// nanoseconds so no timezone interpretation survives a round trip.
type roomRecord struct {
	Code      string `cbor:"code"`
	Kind      string `cbor:"kind"`
	CreatedAt int64  `cbor:"created_at"`
	ExpiresAt int64  `cbor:"expires_at"`
	Active    bool   `cbor:"active"`
}

func (r RoomRepository) CreateRoom(room domain.Room) error {
	bytes, err := cbor.Marshal(fromRoom(room))
	if err != nil {
		return err
	}
	return r.db.Update(func(txn *badger.Txn) error {
		return txn.Set(roomKey(room.Code), bytes)
	})
}

func (r RoomRepository) GetRoom(code string) (domain.Room, error) {
	var room domain.Room
	err := r.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(roomKey(code))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			var record roomRecord
			if err := cbor.Unmarshal(val, &record); err != nil {
				return err
			}
			room = toRoom(record)
			return nil
		})
	})
	if err == badger.ErrKeyNotFound {
		return domain.Room{}, errors.ErrRoomNotFound
	}
	return room, err
}

func (r RoomRepository) Exists(code string) (bool, error) {
	err := r.db.View(func(txn *badger.Txn) error {
		_, err := txn.Get(roomKey(code))
		return err
	})
	switch err {
	case nil:
		return true, nil
	case badger.ErrKeyNotFound:
		return false, nil
	default:
		return false, err
	}
}

// DeleteRoom removes the room record and every message under its prefix
// in one transaction. Deleting a room that is already gone is a no-op,
// which keeps the sweeper, the lazy expiry path and an explicit delete
// safe to race against each other.
func (r RoomRepository) DeleteRoom(code string) error {
	return r.db.Update(func(txn *badger.Txn) error {
		if err := txn.Delete(roomKey(code)); err != nil {
			return err
		}

		prefix := messagePrefix(code)
		options := badger.DefaultIteratorOptions
		options.PrefetchValues = false
		it := txn.NewIterator(options)

		var keys [][]byte
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			keys = append(keys, it.Item().KeyCopy(nil))
		}
		it.Close()

		for _, key := range keys {
			if err := txn.Delete(key); err != nil {
				return fmt.Errorf("cascade delete for room %s: %w", code, err)
			}
		}
		return nil
	})
}

// ExpiredRooms returns every active stored room whose expiry has
// passed, judged by the shared liveness rule. Rooms flagged inactive
// are left for whoever deactivated them.
func (r RoomRepository) ExpiredRooms(now time.Time) ([]domain.Room, error) {
	var expired []domain.Room
	err := r.db.View(func(txn *badger.Txn) error {
		prefix := []byte(roomPrefix)
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			err := it.Item().Value(func(val []byte) error {
				var record roomRecord
				if err := cbor.Unmarshal(val, &record); err != nil {
					return err
				}
				room := toRoom(record)
				if room.Active && !domain.IsAlive(room.ExpiresAt, now) {
					expired = append(expired, room)
				}
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	return expired, err
}

func fromRoom(room domain.Room) roomRecord {
	return roomRecord{
		Code:      room.Code,
		Kind:      string(room.Kind),
		CreatedAt: room.CreatedAt.UTC().UnixNano(),
		ExpiresAt: room.ExpiresAt.UTC().UnixNano(),
		Active:    room.Active,
	}
}

func toRoom(record roomRecord) domain.Room {
	return domain.Room{
		Code:      record.Code,
		Kind:      domain.RoomKind(record.Kind),
		CreatedAt: time.Unix(0, record.CreatedAt).UTC(),
		ExpiresAt: time.Unix(0, record.ExpiresAt).UTC(),
		Active:    record.Active,
	}
}
