// Package async runs producers off the simulation goroutine. Every task
// is stamped with the Guard token current when it was issued; a consumer
// only applies results whose token still matches, so superseded and
// cancelled work is dropped without any shared mutable state.
package async

import (
	"context"
	"sync/atomic"
)

type Token uint64

type Guard struct {
	wanted atomic.Uint64
}

// Current is the token new tasks are stamped with.
func (g *Guard) Current() Token {
	return Token(g.wanted.Load())
}

// Invalidate makes every outstanding task stale and returns the new
// token.
func (g *Guard) Invalidate() Token {
	return Token(g.wanted.Add(1))
}

func (g *Guard) Valid(t Token) bool {
	return g.Current() == t
}

type Future[T any] struct {
	token Token
	done  chan struct{}
	value T
	err   error
}

// Run starts fn in a new goroutine. The returned future is stamped with
// the guard's current token.
func Run[T any](ctx context.Context, g *Guard, fn func(context.Context) (T, error)) *Future[T] {
	f := &Future[T]{
		token: g.Current(),
		done:  make(chan struct{}),
	}
	go func() {
		defer close(f.done)
		f.value, f.err = fn(ctx)
	}()
	return f
}

// Resolved returns an already completed future.
func Resolved[T any](g *Guard, value T, err error) *Future[T] {
	f := &Future[T]{
		token: g.Current(),
		done:  make(chan struct{}),
		value: value,
		err:   err,
	}
	close(f.done)
	return f
}

func (f *Future[T]) Token() Token {
	return f.token
}

func (f *Future[T]) Done() <-chan struct{} {
	return f.done
}

// Poll never blocks. ok is false while the task is still running.
func (f *Future[T]) Poll() (value T, err error, ok bool) {
	select {
	case <-f.done:
		return f.value, f.err, true
	default:
		var zero T
		return zero, nil, false
	}
}

// Wait blocks until the task completes or ctx is done.
func (f *Future[T]) Wait(ctx context.Context) (T, error) {
	select {
	case <-f.done:
		return f.value, f.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

// Apply hands a completed result to apply when the future is still
// wanted by g. It reports whether the future has completed; a completed
// but stale future is discarded without calling apply.
func Apply[T any](g *Guard, f *Future[T], apply func(T, error)) bool {
	value, err, ok := f.Poll()
	if !ok {
		return false
	}
	if g.Valid(f.token) {
		apply(value, err)
	}
	return true
}
