package async

import (
	"context"
	"sync"
	"time"
)

// Future is the result of an asynchronous computation. It is resolved exactly once;
// every waiter observes the same value and error.
type Future[U any] struct {
	result U
	err    error
	once   sync.Once
	done   chan struct{}
}

// Resolver completes a Future. It reports whether this call resolved it; calls after the first
// are ignored and return false.
type Resolver[U any] func(result U, err error) bool

// NewPromise returns an unresolved Future together with the function that resolves it.
func NewPromise[U any]() (*Future[U], Resolver[U]) {
	f := &Future[U]{done: make(chan struct{})}
	return f, f.resolve
}

// Resolved returns an already completed Future.
func Resolved[U any](result U, err error) *Future[U] {
	f, resolve := NewPromise[U]()
	resolve(result, err)
	return f
}

func (f *Future[U]) resolve(result U, err error) bool {
	resolved := false
	f.once.Do(func() {
		f.result = result
		f.err = err
		close(f.done)
		resolved = true
	})
	return resolved
}

// Done returns a channel closed once the future is resolved.
func (f *Future[U]) Done() <-chan struct{} {
	return f.done
}

// Await waits for the asynchronous function to complete and returns its result and error.
func (f *Future[U]) Await() (U, error) {
	<-f.done
	return f.result, f.err
}

// AwaitContext waits for completion or for ctx to end, whichever comes first.
// The future itself is unaffected by ctx.
func (f *Future[U]) AwaitContext(ctx context.Context) (U, error) {
	select {
	case <-f.done:
		return f.result, f.err
	case <-ctx.Done():
		var zero U
		return zero, ctx.Err()
	}
}

// AwaitWithTimeout waits for the asynchronous function to complete with a timeout.
// If the timeout occurs before completion, returns ErrTimeout.
func (f *Future[U]) AwaitWithTimeout(timeout time.Duration) (U, error) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-f.done:
		return f.result, f.err
	case <-timer.C:
		var zero U
		return zero, ErrTimeout
	}
}

// IsComplete checks if the future is resolved without blocking.
func (f *Future[U]) IsComplete() bool {
	select {
	case <-f.done:
		return true
	default:
		return false
	}
}

// Then calls fn with the result once the future resolves, on its own goroutine.
func (f *Future[U]) Then(fn func(U, error)) {
	go func() {
		<-f.done
		fn(f.result, f.err)
	}()
}

// Async executes a function asynchronously and returns a Future.
// A context canceled before the function starts resolves the future with the context error.
func Async[T any, U any](ctx context.Context, param T, fn func(context.Context, T) (U, error)) *Future[U] {
	f, resolve := NewPromise[U]()

	go func() {
		select {
		case <-ctx.Done():
			var zero U
			resolve(zero, ctx.Err())
			return
		default:
		}

		res, err := fn(ctx, param)
		resolve(res, err)
	}()

	return f
}
