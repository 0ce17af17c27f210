package conversation

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/sync/semaphore"

	"github.com/PabloGalante/chatrelay/internal/domain"
)

// chatLocks hands out one-slot semaphores keyed by chat. Entries are removed
// once nobody holds or waits on them.
type chatLocks struct {
	mu    sync.Mutex
	locks map[domain.ChatID]*chatLock
}

type chatLock struct {
	sem  *semaphore.Weighted
	refs int
}

func newChatLocks() *chatLocks {
	return &chatLocks{locks: make(map[domain.ChatID]*chatLock)}
}

// acquire blocks until the chat is free or ctx ends. A nil receiver never
// blocks. The returned release is idempotent.
func (l *chatLocks) acquire(ctx context.Context, id domain.ChatID) (func(), error) {
	if l == nil {
		return func() {}, nil
	}

	l.mu.Lock()
	lock, ok := l.locks[id]
	if !ok {
		lock = &chatLock{sem: semaphore.NewWeighted(1)}
		l.locks[id] = lock
	}
	lock.refs++
	l.mu.Unlock()

	if err := lock.sem.Acquire(ctx, 1); err != nil {
		l.unref(id, lock)
		return nil, fmt.Errorf("waiting for previous turn on chat %s: %w", id, err)
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			lock.sem.Release(1)
			l.unref(id, lock)
		})
	}, nil
}

func (l *chatLocks) unref(id domain.ChatID, lock *chatLock) {
	l.mu.Lock()
	defer l.mu.Unlock()

	lock.refs--
	if lock.refs == 0 {
		delete(l.locks, id)
	}
}

func (l *chatLocks) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.locks)
}
