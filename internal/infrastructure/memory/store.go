package memory

import (
	"context"
	"sync"

	pkgerrors "github.com/honeynil/dreamnity-payments/pkg/errors"
)

// Store is a process-local key/value store with the same contract as the Redis client.
type Store struct {
	mu   sync.RWMutex
	data map[string]string
	// failWrites makes every write fail, used to exercise degraded persistence.
	failWrites error
}

func NewStore() *Store {
	return &Store{data: make(map[string]string)}
}

func (s *Store) Get(ctx context.Context, key string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	val, ok := s.data[key]
	if !ok {
		return "", pkgerrors.ErrKeyNotFound
	}
	return val, nil
}

func (s *Store) Set(ctx context.Context, key string, value string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failWrites != nil {
		return s.failWrites
	}
	s.data[key] = value
	return nil
}

func (s *Store) Del(ctx context.Context, keys ...string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failWrites != nil {
		return s.failWrites
	}
	for _, k := range keys {
		delete(s.data, k)
	}
	return nil
}

// FailWrites makes subsequent Set and Del calls return err. Pass nil to recover.
func (s *Store) FailWrites(err error) {
	s.mu.Lock()
	s.failWrites = err
	s.mu.Unlock()
}

// Len returns the number of stored keys.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.data)
}

func (s *Store) Close() error {
	return nil
}
