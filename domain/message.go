// Package domain contains core concepts of the ephemeral chat system.
// This file defines Message records. The server never interprets the
// ciphertext or nonce; both are opaque bytes end to end.
package domain

import "time"

// Message is an immutable chat record. The ID is assigned by the store
// at persist time and is monotonically increasing per process.
type Message struct {
	ID         int64
	RoomCode   string
	Nickname   string
	Ciphertext []byte
	Nonce      []byte
	SentAt     time.Time
}
