// Package event defines the closed set of room events that travel from
// the core to connected sessions. Each variant carries a fixed field set
// and names itself for the wire.
package event

import (
	"time"

	"ember-chat/domain"
)

// RoomEvent is implemented by every outbound event variant.
type RoomEvent interface {
	EventName() string
}

// Joined confirms a successful join to the joining session.
type Joined struct {
	Code      string          `json:"code"`
	Kind      domain.RoomKind `json:"kind"`
	ExpiresAt time.Time       `json:"expiresAt"`
	Nickname  string          `json:"nickname"`
}

func (Joined) EventName() string { return "joined" }

type RoomNotFound struct {
	Code string `json:"code"`
}

func (RoomNotFound) EventName() string { return "room-not-found" }

// RoomExpired is sent both as a direct reply to a join or send against a
// dead room, and as a broadcast when the sweeper reclaims a room.
type RoomExpired struct {
	Code string `json:"code"`
}

func (RoomExpired) EventName() string { return "room-expired" }

type RoomFull struct {
	Code string `json:"code"`
}

func (RoomFull) EventName() string { return "room-full" }

// MessagePosted relays one persisted message. Ciphertext and nonce are
// opaque; encoding/json transports []byte as base64.
type MessagePosted struct {
	ID         int64     `json:"id"`
	Nickname   string    `json:"nickname"`
	Ciphertext []byte    `json:"ciphertext"`
	Nonce      []byte    `json:"nonce"`
	SentAt     time.Time `json:"sentAt"`
}

func (MessagePosted) EventName() string { return "message" }

// History delivers the full ascending message history once, on join.
type History struct {
	Messages []MessagePosted `json:"messages"`
}

func (History) EventName() string { return "history" }

// SystemNotice carries join/leave notices.
type SystemNotice struct {
	Text   string    `json:"text"`
	SentAt time.Time `json:"sentAt"`
}

func (SystemNotice) EventName() string { return "system" }

// FromMessage converts a persisted message into its relay event.
func FromMessage(m domain.Message) MessagePosted {
	return MessagePosted{
		ID:         m.ID,
		Nickname:   m.Nickname,
		Ciphertext: m.Ciphertext,
		Nonce:      m.Nonce,
		SentAt:     m.SentAt,
	}
}
