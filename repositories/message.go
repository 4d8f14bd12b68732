package repositories

import (
	"log/slog"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/fxamacker/cbor/v2"

	"ember-chat/domain"
)

type IMessageRepository interface {
	StoreMessage(message domain.Message) (domain.Message, error)
	GetMessages(code string) ([]domain.Message, error)
}

type MessageRepository struct {
	db  *badger.DB
	seq *badger.Sequence
	log *slog.Logger
}

func NewMessageRepository(db *badger.DB, log *slog.Logger) (*MessageRepository, error) {
	// The sequence survives restarts, so ids stay monotonic across the
	// life of the store, not just the process.
	seq, err := db.GetSequence([]byte(msgSeqKey), 128)
	if err != nil {
		return nil, err
	}
	return &MessageRepository{db: db, seq: seq, log: log}, nil
}

// Close releases the id sequence. Unused leased ids are abandoned, which
// leaves gaps but never repeats an id.
func (m *MessageRepository) Close() error {
	return m.seq.Release()
}

type messageRecord struct {
	ID         int64  `cbor:"id"`
	Room       string `cbor:"room"`
	Nickname   string `cbor:"nickname"`
	Ciphertext []byte `cbor:"ciphertext"`
	Nonce      []byte `cbor:"nonce"`
	SentAt     int64  `cbor:"sent_at"`
}

// StoreMessage assigns the next id and persists the message under the
// room's key prefix. The returned copy carries the assigned id.
func (m *MessageRepository) StoreMessage(message domain.Message) (domain.Message, error) {
	next, err := m.seq.Next()
	if err != nil {
		return domain.Message{}, err
	}
	message.ID = int64(next) + 1
	message.SentAt = message.SentAt.UTC()

	bytes, err := cbor.Marshal(fromMessage(message))
	if err != nil {
		return domain.Message{}, err
	}
	err = m.db.Update(func(txn *badger.Txn) error {
		return txn.Set(messageKey(message.RoomCode, message.ID), bytes)
	})
	if err != nil {
		return domain.Message{}, err
	}
	return message, nil
}

// GetMessages returns the full history of a room in ascending persist
// order. The padded id in the key makes the forward iteration the order
// guarantee; no sort happens here.
func (m *MessageRepository) GetMessages(code string) ([]domain.Message, error) {
	var messages []domain.Message
	err := m.db.View(func(txn *badger.Txn) error {
		prefix := messagePrefix(code)
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			err := it.Item().Value(func(val []byte) error {
				var record messageRecord
				if err := cbor.Unmarshal(val, &record); err != nil {
					return err
				}
				messages = append(messages, toMessage(record))
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	return messages, err
}

func fromMessage(message domain.Message) messageRecord {
	return messageRecord{
		ID:         message.ID,
		Room:       message.RoomCode,
		Nickname:   message.Nickname,
		Ciphertext: message.Ciphertext,
		Nonce:      message.Nonce,
		SentAt:     message.SentAt.UTC().UnixNano(),
	}
}

func toMessage(record messageRecord) domain.Message {
	return domain.Message{
		ID:         record.ID,
		RoomCode:   record.Room,
		Nickname:   record.Nickname,
		Ciphertext: record.Ciphertext,
		Nonce:      record.Nonce,
		SentAt:     time.Unix(0, record.SentAt).UTC(),
	}
}
