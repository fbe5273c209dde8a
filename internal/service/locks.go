package service

import "sync"

// keyedMutex serializes writers per (client, activity) pair. The verification
// check-insert-credit sequence spans three statements without a transaction,
// so within one process only a single goroutine may run it per key. Across
// processes the unique index on the verification log is the backstop.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func newKeyedMutex() *keyedMutex {
	return &keyedMutex{locks: make(map[string]*sync.Mutex)}
}

// Lock acquires the mutex for key and returns it for unlocking. The per-key
// mutex set grows with the enrollment count only.
func (k *keyedMutex) Lock(key string) *sync.Mutex {
	k.mu.Lock()
	lock, ok := k.locks[key]
	if !ok {
		lock = &sync.Mutex{}
		k.locks[key] = lock
	}
	k.mu.Unlock()

	lock.Lock()
	return lock
}
