package tutoring

import (
	"context"
	"sync"

	"github.com/PabloGalante/tutorchat/internal/domain"
)

type sessionKey struct {
	student domain.StudentID
	session domain.SessionID
}

// sessionLocks hands out one exclusive section per (student, session).
// Each lock is a 1-buffered channel so waiters can give up when their
// context ends. Entries are never removed since sessions are never deleted.
type sessionLocks struct {
	mu    sync.Mutex
	locks map[sessionKey]chan struct{}
}

func newSessionLocks() *sessionLocks {
	return &sessionLocks{locks: make(map[sessionKey]chan struct{})}
}

func (l *sessionLocks) get(key sessionKey) chan struct{} {
	l.mu.Lock()
	defer l.mu.Unlock()

	ch, ok := l.locks[key]
	if !ok {
		ch = make(chan struct{}, 1)
		l.locks[key] = ch
	}
	return ch
}

// acquire blocks until the section for key is free or ctx is done.
// On success the returned func releases it.
func (l *sessionLocks) acquire(ctx context.Context, key sessionKey) (func(), error) {
	ch := l.get(key)
	select {
	case ch <- struct{}{}:
		return func() { <-ch }, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
