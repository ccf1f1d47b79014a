package tracker

import (
	"context"
	"sync"
)

// Locker hands out exclusive, per-key locks. Lock blocks until the key is free or ctx is done.
// The returned unlock func is safe to call more than once.
type Locker interface {
	Lock(ctx context.Context, key string) (unlock func(), err error)
}

func serverKey(serverID string) string {
	return "server:" + serverID
}

func playerKey(guid string) string {
	return "player:" + guid
}

// KeyedMutex is an in-process Locker. Entries are removed once nobody holds or waits on a key.
type KeyedMutex struct {
	lock  sync.Mutex
	locks map[string]*keyLock
}

type keyLock struct {
	sem  chan struct{}
	refs int
}

func NewKeyedMutex() *KeyedMutex {
	return &KeyedMutex{locks: make(map[string]*keyLock)}
}

func (k *KeyedMutex) Lock(ctx context.Context, key string) (func(), error) {
	k.lock.Lock()
	l, ok := k.locks[key]
	if !ok {
		l = &keyLock{sem: make(chan struct{}, 1)}
		k.locks[key] = l
	}
	l.refs++
	k.lock.Unlock()

	select {
	case l.sem <- struct{}{}:
		var once sync.Once
		return func() {
			once.Do(func() {
				<-l.sem
				k.release(key, l)
			})
		}, nil
	case <-ctx.Done():
		k.release(key, l)
		return nil, ctx.Err()
	}
}

func (k *KeyedMutex) release(key string, l *keyLock) {
	k.lock.Lock()
	defer k.lock.Unlock()
	l.refs--
	if l.refs == 0 {
		delete(k.locks, key)
	}
}
