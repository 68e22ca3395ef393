package services

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// Locker serialises mutations that touch the same aggregate. Acquire takes all keys or none
// and returns a function releasing them.
type Locker interface {
	Acquire(ctx context.Context, keys ...string) (func(), error)
}

func orderLockKey(orderID uint) string {
	return fmt.Sprintf("order:%d", orderID)
}

func scheduleLockKey(scheduleID uint) string {
	return fmt.Sprintf("schedule:%d", scheduleID)
}

// LocalLocker is an in-process Locker for single-instance deployments and tests.
type LocalLocker struct {
	mu    sync.Mutex
	locks map[string]chan struct{}
}

func NewLocalLocker() *LocalLocker {
	return &LocalLocker{locks: make(map[string]chan struct{})}
}

func (l *LocalLocker) slot(key string) chan struct{} {
	l.mu.Lock()
	defer l.mu.Unlock()
	ch, ok := l.locks[key]
	if !ok {
		ch = make(chan struct{}, 1)
		l.locks[key] = ch
	}
	return ch
}

func (l *LocalLocker) Acquire(ctx context.Context, keys ...string) (func(), error) {
	sorted := append([]string(nil), keys...)
	sort.Strings(sorted)

	held := make([]chan struct{}, 0, len(sorted))
	release := func() {
		for i := len(held) - 1; i >= 0; i-- {
			<-held[i]
		}
	}

	var last string
	for i, key := range sorted {
		if i > 0 && key == last {
			continue
		}
		last = key
		ch := l.slot(key)
		select {
		case ch <- struct{}{}:
			held = append(held, ch)
		case <-ctx.Done():
			release()
			return nil, ctx.Err()
		}
	}
	return release, nil
}
