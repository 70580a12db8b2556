package db

import (
	"context"
	"errors"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

const (
	connectKey            = "connect"
	defaultConnectTimeout = 10 * time.Second
)

// ErrClosed is returned by Get after Close.
var ErrClosed = errors.New("connection closed")

// Opener establishes a connection handle.
type Opener[T any] func(ctx context.Context) (T, error)

// Lazy owns a connection handle that is established on first use and reused
// afterwards. Concurrent first callers share a single in-flight setup. A
// failed setup is not cached: the next Get tries again.
type Lazy[T any] struct {
	open    Opener[T]
	close   func(T) error
	timeout time.Duration

	group singleflight.Group

	mu     sync.RWMutex
	value  T
	ready  bool
	closed bool
}

// NewLazy returns a handle that calls open on first use. closeFn may be nil.
func NewLazy[T any](open Opener[T], closeFn func(T) error, timeout time.Duration) *Lazy[T] {
	if timeout <= 0 {
		timeout = defaultConnectTimeout
	}
	return &Lazy[T]{
		open:    open,
		close:   closeFn,
		timeout: timeout,
	}
}

// Ready wraps an already established handle.
func Ready[T any](value T) *Lazy[T] {
	return &Lazy[T]{value: value, ready: true, timeout: defaultConnectTimeout}
}

// Get returns the connection handle, establishing it if needed.
func (l *Lazy[T]) Get(ctx context.Context) (T, error) {
	var zero T

	if value, ok, err := l.loaded(); ok || err != nil {
		return value, err
	}

	ch := l.group.DoChan(connectKey, func() (any, error) {
		if value, ok, err := l.loaded(); ok || err != nil {
			return value, err
		}

		// The setup outlives the caller that triggered it: other callers
		// may be waiting on the same result.
		setupCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), l.timeout)
		defer cancel()

		value, err := l.open(setupCtx)
		if err != nil {
			return nil, err
		}

		l.mu.Lock()
		defer l.mu.Unlock()
		if l.closed {
			if l.close != nil {
				_ = l.close(value)
			}
			return nil, ErrClosed
		}
		l.value = value
		l.ready = true
		return value, nil
	})

	select {
	case <-ctx.Done():
		return zero, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return zero, res.Err
		}
		return res.Val.(T), nil
	}
}

// Close releases the handle if it was established.
func (l *Lazy[T]) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return nil
	}
	l.closed = true
	if !l.ready || l.close == nil {
		return nil
	}
	l.ready = false
	return l.close(l.value)
}

func (l *Lazy[T]) loaded() (T, bool, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	var zero T
	if l.closed {
		return zero, false, ErrClosed
	}
	if !l.ready {
		return zero, false, nil
	}
	return l.value, true, nil
}
