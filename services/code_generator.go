package services

import (
	"crypto/rand"
	"log/slog"

	"ember-chat/domain"
	"ember-chat/errors"
)

// codeAttempts bounds the collision retries. Hitting the bound means the
// codespace is close to saturated; that is a server error, not something
// to paper over with more retries.
const codeAttempts = 5

// CodeStore is the only store capability the generator needs.
type CodeStore interface {
	Exists(code string) (bool, error)
}

// CodeGenerator draws fixed-length room codes from a crypto-grade random
// source and guarantees uniqueness against the store at generation time.
type CodeGenerator struct {
	rooms CodeStore
	log   *slog.Logger
}

func NewCodeGenerator(rooms CodeStore, log *slog.Logger) CodeGenerator {
	return CodeGenerator{rooms: rooms, log: log}
}

func (g CodeGenerator) Generate() (string, error) {
	for attempt := 1; attempt <= codeAttempts; attempt++ {
		code, err := randomCode()
		if err != nil {
			return "", err
		}
		taken, err := g.rooms.Exists(code)
		if err != nil {
			return "", err
		}
		if !taken {
			return code, nil
		}
		g.log.Warn("Room code collision", "attempt", attempt)
	}
	return "", errors.ErrCodeSpaceExhausted
}

func randomCode() (string, error) {
	buf := make([]byte, domain.CodeLength)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	// The alphabet has 32 symbols, so the modulo is unbiased.
	for i, b := range buf {
		buf[i] = domain.CodeAlphabet[int(b)%len(domain.CodeAlphabet)]
	}
	return string(buf), nil
}
