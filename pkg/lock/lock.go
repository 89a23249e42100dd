// Package lock serializes index rebuilds, in process or across replicas.
package lock

import (
	"context"
	"errors"
)

// ErrNotHeld is returned by Unlock when the lock expired or belongs to someone else.
var ErrNotHeld = errors.New("lock not held")

type Locker interface {
	// Lock blocks until the lock is acquired or ctx is done.
	Lock(ctx context.Context) (Unlocker, error)
}

type Unlocker interface {
	Unlock(ctx context.Context) error
}

type UnlockFunc func(ctx context.Context) error

func (f UnlockFunc) Unlock(ctx context.Context) error { return f(ctx) }

// LocalLocker is a context-aware mutex.
type LocalLocker struct {
	sem chan struct{}
}

func NewLocalLocker() *LocalLocker {
	return &LocalLocker{sem: make(chan struct{}, 1)}
}

func (l *LocalLocker) Lock(ctx context.Context) (Unlocker, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	select {
	case l.sem <- struct{}{}:
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	released := false
	return UnlockFunc(func(context.Context) error {
		if released {
			return ErrNotHeld
		}
		released = true
		<-l.sem
		return nil
	}), nil
}
