package state

import (
	"errors"
	"sync"
)

// ErrNoSession is returned by Get when Reset was never called for the user.
var ErrNoSession = errors.New("state: no session for user")

type slot[T any] struct {
	mu  sync.Mutex
	val *T
}

// Store keeps one mutable value per user.
type Store[T any] struct {
	mu    sync.RWMutex
	slots map[int64]*slot[T]
}

// NewStore constructs an empty in-memory store.
func NewStore[T any]() *Store[T] {
	return &Store[T]{slots: make(map[int64]*slot[T])}
}

func (s *Store[T]) slot(userID int64) *slot[T] {
	s.mu.RLock()
	sl, ok := s.slots[userID]
	s.mu.RUnlock()
	if ok {
		return sl
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if sl, ok = s.slots[userID]; ok {
		return sl
	}
	sl = &slot[T]{}
	s.slots[userID] = sl
	return sl
}

// Lock acquires the user's lock and returns the release func.
// Reset, Get and Clear do not take this lock; callers hold it around a whole turn.
func (s *Store[T]) Lock(userID int64) func() {
	sl := s.slot(userID)
	sl.mu.Lock()
	return sl.mu.Unlock
}

// Reset replaces the user's value with a fresh zero value and returns it.
func (s *Store[T]) Reset(userID int64) *T {
	sl := s.slot(userID)
	v := new(T)
	s.mu.Lock()
	sl.val = v
	s.mu.Unlock()
	return v
}

// Get returns the user's value for mutation.
func (s *Store[T]) Get(userID int64) (*T, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sl, ok := s.slots[userID]
	if !ok || sl.val == nil {
		return nil, ErrNoSession
	}
	return sl.val, nil
}

// Has reports whether the user currently has a value.
func (s *Store[T]) Has(userID int64) bool {
	_, err := s.Get(userID)
	return err == nil
}

// Clear discards the user's value. The lock slot is kept so a concurrent
// holder of Lock stays valid.
func (s *Store[T]) Clear(userID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if sl, ok := s.slots[userID]; ok {
		sl.val = nil
	}
}

// Len returns the number of users holding a value.
func (s *Store[T]) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, sl := range s.slots {
		if sl.val != nil {
			n++
		}
	}
	return n
}
