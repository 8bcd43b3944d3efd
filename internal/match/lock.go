package match

import (
	"context"
	"sync"
)

// Locker grants exclusive access to one match at a time. TryLock never
// blocks; acquired is false when another holder has the key.
type Locker interface {
	TryLock(ctx context.Context, key string) (unlock func(), acquired bool, err error)
}

// LocalLocker is an in-process Locker for single instance deployments
type LocalLocker struct {
	mu   sync.Mutex
	held map[string]struct{}
}

func NewLocalLocker() *LocalLocker {
	return &LocalLocker{held: make(map[string]struct{})}
}

func (l *LocalLocker) TryLock(_ context.Context, key string) (func(), bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, busy := l.held[key]; busy {
		return nil, false, nil
	}
	l.held[key] = struct{}{}
	return func() {
		l.mu.Lock()
		delete(l.held, key)
		l.mu.Unlock()
	}, true, nil
}
