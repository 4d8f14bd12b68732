package services

import (
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"

	"ember-chat/domain"
	"ember-chat/errors"
)

// memoryCodeStore remembers issued codes so generation retries instead
// of ever handing out a duplicate.
type memoryCodeStore struct {
	taken map[string]struct{}
}

func (s *memoryCodeStore) Exists(code string) (bool, error) {
	_, ok := s.taken[code]
	return ok, nil
}

type alwaysCollidingStore struct {
	calls int
}

func (s *alwaysCollidingStore) Exists(string) (bool, error) {
	s.calls++
	return true, nil
}

func Test_Generate_10000_Unique_Codes(t *testing.T) {
	req := require.New(t)
	store := &memoryCodeStore{taken: make(map[string]struct{})}
	generator := NewCodeGenerator(store, slog.Default())

	for i := 0; i < 10_000; i++ {
		code, err := generator.Generate()
		req.NoError(err)
		req.True(domain.ValidCode(code))

		_, duplicate := store.taken[code]
		req.False(duplicate, "duplicate code %s", code)
		store.taken[code] = struct{}{}
	}
}

func Test_Generate_Exhausts_After_Five_Attempts(t *testing.T) {
	req := require.New(t)
	store := &alwaysCollidingStore{}
	generator := NewCodeGenerator(store, slog.Default())

	_, err := generator.Generate()

	req.ErrorIs(err, errors.ErrCodeSpaceExhausted)
	req.Equal(5, store.calls)
}
