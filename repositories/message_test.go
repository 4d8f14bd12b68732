package repositories

import (
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"ember-chat/domain"
)

func Test_Store_Assigns_Monotonic_Ids(t *testing.T) {
	req := require.New(t)
	db := openTestDB(t)
	repository, err := NewMessageRepository(db, slog.Default())
	req.NoError(err)
	defer repository.Close()

	var previous int64
	for i := 0; i < 5; i++ {
		stored, err := repository.StoreMessage(domain.Message{
			RoomCode:   "ABC234",
			Nickname:   "alice",
			Ciphertext: []byte{byte(i)},
			Nonce:      []byte{0x01},
			SentAt:     time.Now().UTC(),
		})
		req.NoError(err)
		req.Greater(stored.ID, previous)
		previous = stored.ID
	}
}

func Test_History_Is_In_Persist_Order(t *testing.T) {
	req := require.New(t)
	db := openTestDB(t)
	repository, err := NewMessageRepository(db, slog.Default())
	req.NoError(err)
	defer repository.Close()

	at := time.Now().UTC()
	payloads := [][]byte{{0x01}, {0x02}, {0x03}}
	for _, p := range payloads {
		_, err := repository.StoreMessage(domain.Message{
			RoomCode:   "ABC234",
			Nickname:   "alice",
			Ciphertext: p,
			Nonce:      []byte{0xaa},
			SentAt:     at,
		})
		req.NoError(err)
	}

	history, err := repository.GetMessages("ABC234")
	req.NoError(err)
	req.Len(history, 3)
	for i, message := range history {
		req.Equal(payloads[i], message.Ciphertext)
		req.Equal("ABC234", message.RoomCode)
		req.Equal(time.UTC, message.SentAt.Location())
	}
}

func Test_Histories_Are_Isolated_Per_Room(t *testing.T) {
	req := require.New(t)
	db := openTestDB(t)
	repository, err := NewMessageRepository(db, slog.Default())
	req.NoError(err)
	defer repository.Close()

	for _, code := range []string{"ABC234", "XYZ789", "ABC235"} {
		_, err := repository.StoreMessage(domain.Message{
			RoomCode:   code,
			Nickname:   "alice",
			Ciphertext: []byte(code),
			Nonce:      []byte{0x01},
			SentAt:     time.Now().UTC(),
		})
		req.NoError(err)
	}

	history, err := repository.GetMessages("ABC234")
	req.NoError(err)
	req.Len(history, 1)
	req.Equal([]byte("ABC234"), history[0].Ciphertext)
}
