package runtime

import (
	"context"
	"log/slog"
	"testing"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"ember-chat/domain/event"
	"ember-chat/repositories"
)

func newTestRelay(t *testing.T) (*Relay, *Registry, *repositories.MessageRepository) {
	t.Helper()
	db, err := badger.Open(badger.DefaultOptions(t.TempDir()).WithLoggingLevel(badger.ERROR))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	messages, err := repositories.NewMessageRepository(db, slog.Default())
	require.NoError(t, err)
	t.Cleanup(func() { _ = messages.Close() })

	registry := NewRegistry(slog.Default())
	return NewRelay(messages, registry, slog.Default()), registry, messages
}

func TestRelay_Broadcasts_To_All_Members_Including_Sender(t *testing.T) {
	req := require.New(t)
	relay, registry, _ := newTestRelay(t)
	code := "ABC234"
	senderSink, otherSink := &recordingSink{}, &recordingSink{}

	req.NoError(registry.TryJoin(code, uuid.NewString(), 0, senderSink))
	req.NoError(registry.TryJoin(code, uuid.NewString(), 0, otherSink))

	stored, err := relay.Relay(context.Background(), code, "alice", []byte{0xde}, []byte{0x01})
	req.NoError(err)
	req.Positive(stored.ID)

	for _, sink := range []*recordingSink{senderSink, otherSink} {
		events := sink.Events()
		req.Len(events, 1)
		posted := events[0].(event.MessagePosted)
		req.Equal(stored.ID, posted.ID)
		req.Equal("alice", posted.Nickname)
		req.Equal([]byte{0xde}, posted.Ciphertext)
	}
}

func TestRelay_Preserves_Persist_Order(t *testing.T) {
	req := require.New(t)
	relay, registry, messages := newTestRelay(t)
	code := "ABC234"
	sink := &recordingSink{}
	req.NoError(registry.TryJoin(code, uuid.NewString(), 0, sink))

	payloads := [][]byte{{0x01}, {0x02}, {0x03}}
	for _, p := range payloads {
		_, err := relay.Relay(context.Background(), code, "alice", p, []byte{0xaa})
		req.NoError(err)
	}

	// Live broadcast order matches persist order
	events := sink.Events()
	req.Len(events, 3)
	for i, e := range events {
		req.Equal(payloads[i], e.(event.MessagePosted).Ciphertext)
	}

	// And a later history read returns the same order
	history, err := messages.GetMessages(code)
	req.NoError(err)
	req.Len(history, 3)
	for i, m := range history {
		req.Equal(payloads[i], m.Ciphertext)
	}
}

func TestRelay_Persists_With_Zero_Members(t *testing.T) {
	req := require.New(t)
	relay, _, messages := newTestRelay(t)
	code := "ABC234"

	// Nobody is joined, the message must still land in history
	_, err := relay.Relay(context.Background(), code, "alice", []byte{0x0f}, []byte{0x01})
	req.NoError(err)

	history, err := messages.GetMessages(code)
	req.NoError(err)
	req.Len(history, 1)
}
