package memstore

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

// keyedMutex hands out one lock per key. Slots are reference counted and
// dropped once nobody holds or waits for them.
type keyedMutex struct {
	mu    sync.Mutex
	slots map[uuid.UUID]*slot
}

type slot struct {
	ch   chan struct{}
	refs int
}

func newKeyedMutex() *keyedMutex {
	return &keyedMutex{slots: make(map[uuid.UUID]*slot)}
}

// lock blocks until key is free or ctx is done. The returned func releases it.
func (k *keyedMutex) lock(ctx context.Context, key uuid.UUID) (func(), error) {
	k.mu.Lock()
	sl, ok := k.slots[key]
	if !ok {
		sl = &slot{ch: make(chan struct{}, 1)}
		k.slots[key] = sl
	}
	sl.refs++
	k.mu.Unlock()

	select {
	case sl.ch <- struct{}{}:
		return func() {
			<-sl.ch
			k.release(key, sl)
		}, nil
	case <-ctx.Done():
		k.release(key, sl)
		return nil, ctx.Err()
	}
}

func (k *keyedMutex) release(key uuid.UUID, sl *slot) {
	k.mu.Lock()
	sl.refs--
	if sl.refs == 0 {
		delete(k.slots, key)
	}
	k.mu.Unlock()
}
