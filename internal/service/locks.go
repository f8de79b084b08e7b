package service

import "sync"

// symbolLocks hands out one mutex per symbol so that the check-then-act
// sequences of the signal processor and the fill reconciler serialize per
// symbol without blocking unrelated symbols. Locks are never released from
// the map; the symbol universe is small and bounded.
type symbolLocks struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func newSymbolLocks() *symbolLocks {
	return &symbolLocks{locks: make(map[string]*sync.Mutex)}
}

func (l *symbolLocks) get(symbol string) *sync.Mutex {
	l.mu.Lock()
	defer l.mu.Unlock()

	lock, ok := l.locks[symbol]
	if !ok {
		lock = &sync.Mutex{}
		l.locks[symbol] = lock
	}
	return lock
}
