// Package domain contains core concepts of the ephemeral chat system.
// This file defines Room entities, room codes and the liveness rule.
// No runtime, network, or UI logic should be added here.
package domain

import (
	"strings"
	"time"
	"unicode/utf8"
)

type RoomKind string

const (
	KindSingle RoomKind = "single"
	KindGroup  RoomKind = "group"
)

func (k RoomKind) Valid() bool {
	return k == KindSingle || k == KindGroup
}

// Capacity returns the maximum number of concurrent sessions for the kind.
// Zero means unbounded.
func (k RoomKind) Capacity() int {
	if k == KindSingle {
		return 2
	}
	return 0
}

const (
	CodeLength = 6

	// CodeAlphabet drops I, O, 0 and 1 so codes survive being read aloud.
	// 32 symbols, so an unbiased draw is a plain byte modulo.
	CodeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

	MaxNicknameLength = 32

	// MaxRoomLifetime is the ceiling on how far in the future a room
	// may be scheduled to expire.
	MaxRoomLifetime = 30 * 24 * time.Hour
)

// Room is immutable after creation; it only ever disappears.
type Room struct {
	Code      string
	Kind      RoomKind
	CreatedAt time.Time
	ExpiresAt time.Time
	Active    bool
}

// IsAlive is the single source of liveness truth. Every call site (HTTP
// check, realtime join, send re-check, sweeper) must go through it so the
// paths can never disagree about the same room at the same instant.
// A room is dead the moment now reaches its expiry.
func IsAlive(expiresAt, now time.Time) bool {
	return now.UTC().Before(expiresAt.UTC())
}

func ValidCode(code string) bool {
	if len(code) != CodeLength {
		return false
	}
	for _, r := range code {
		if !strings.ContainsRune(CodeAlphabet, r) {
			return false
		}
	}
	return true
}

func ValidNickname(nickname string) bool {
	if strings.TrimSpace(nickname) == "" {
		return false
	}
	return utf8.RuneCountInString(nickname) <= MaxNicknameLength
}
