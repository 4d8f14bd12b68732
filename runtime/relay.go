package runtime

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"ember-chat/contract"
	"ember-chat/domain"
	"ember-chat/domain/event"
	"ember-chat/repositories"
)

// Relay persists an inbound message and fans it out to every session
// currently joined to the room, sender included. One mutex per room code
// makes persist order equal broadcast order, which is the FIFO guarantee
// the history path relies on. Different rooms never contend.
type Relay struct {
	mu        sync.Mutex
	roomLocks map[string]*sync.Mutex
	messages  repositories.IMessageRepository
	registry  contract.IRegistry
	log       *slog.Logger
}

func NewRelay(messages repositories.IMessageRepository, registry contract.IRegistry, log *slog.Logger) *Relay {
	return &Relay{
		roomLocks: make(map[string]*sync.Mutex),
		messages:  messages,
		registry:  registry,
		log:       log,
	}
}

// Relay stores the message, then broadcasts it. The broadcast may reach
// zero sessions; the message is still durable and shows up in history
// for later joiners.
func (r *Relay) Relay(ctx context.Context, code, nickname string, ciphertext, nonce []byte) (domain.Message, error) {
	lock := r.roomLock(code)
	lock.Lock()
	defer lock.Unlock()

	stored, err := r.messages.StoreMessage(domain.Message{
		RoomCode:   code,
		Nickname:   nickname,
		Ciphertext: ciphertext,
		Nonce:      nonce,
		SentAt:     time.Now().UTC(),
	})
	if err != nil {
		return domain.Message{}, err
	}

	r.registry.Publish(ctx, code, event.FromMessage(stored))
	return stored, nil
}

// Locked runs fn while holding the room's relay lock. The join path uses
// it to make register-then-read-history atomic with respect to in-flight
// relays, so a joiner sees every message exactly once: either in history
// or as a live broadcast, never both, never neither.
func (r *Relay) Locked(code string, fn func() error) error {
	lock := r.roomLock(code)
	lock.Lock()
	defer lock.Unlock()
	return fn()
}

// Forget drops the per-room lock once a room is reclaimed. The evictor
// calls it while still holding that lock, after the room record is
// deleted: anyone minting a fresh lock for the same code afterwards
// finds no room behind it, so two locks never guard live traffic for
// one code.
func (r *Relay) Forget(code string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.roomLocks, code)
}

func (r *Relay) roomLock(code string) *sync.Mutex {
	r.mu.Lock()
	defer r.mu.Unlock()

	lock, ok := r.roomLocks[code]
	if !ok {
		lock = &sync.Mutex{}
		r.roomLocks[code] = lock
	}
	return lock
}
