package workers

import (
	"context"
	"log/slog"
	"time"

	"ember-chat/domain"
)

// RoomReaper is the slice of the room service the sweeper needs: find
// dead rooms, reclaim one room.
type RoomReaper interface {
	ExpiredRooms(ctx context.Context, now time.Time) ([]domain.Room, error)
	Evict(ctx context.Context, code string) error
}

// SweeperWorker periodically reclaims expired rooms: notify the joined
// sessions, sever their room association, delete the room and its
// messages. Each room is handled independently, so one bad room never
// blocks the rest of the sweep, and no error escapes Run while the
// context is alive. A room may outlive its expiry by at most one
// interval; that slack is the price of polling and is configurable.
type SweeperWorker struct {
	reaper   RoomReaper
	interval time.Duration
	now      func() time.Time
	log      *slog.Logger
}

func NewSweeperWorker(reaper RoomReaper, interval time.Duration, log *slog.Logger) *SweeperWorker {
	return &SweeperWorker{
		reaper:   reaper,
		interval: interval,
		now:      time.Now,
		log:      log,
	}
}

func (w *SweeperWorker) Run(ctx context.Context) error {
	w.log.Info("Starting expiry sweeper", "interval", w.interval)
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.log.Info("Expiry sweeper stopped")
			return nil
		case <-ticker.C:
			w.Sweep(ctx)
		}
	}
}

// Sweep runs one full pass. Errors are logged and swallowed: the next
// tick gets another chance, and an already-deleted room is a no-op at
// the store.
func (w *SweeperWorker) Sweep(ctx context.Context) {
	expired, err := w.reaper.ExpiredRooms(ctx, w.now().UTC())
	if err != nil {
		w.log.Error("Sweep query failed", "error", err)
		return
	}
	for _, room := range expired {
		if err := w.reaper.Evict(ctx, room.Code); err != nil {
			w.log.Error("Room eviction failed, continuing sweep",
				"room", room.Code,
				"error", err)
		}
	}
	if len(expired) > 0 {
		w.log.Debug("Sweep finished", "reclaimed", len(expired))
	}
}
