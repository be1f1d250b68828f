package jsonapi

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
)

// State of the call behind a Future
type State int32

const (
	Idle State = iota
	Sent
	Succeeded
	Failed
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Sent:
		return "sent"
	case Succeeded:
		return "succeeded"
	case Failed:
		return "failed"
	default:
		return fmt.Sprintf("State(%d)", int32(s))
	}
}

/*
Future
Deferred result of an operation. It moves from Idle to Sent when a worker
picks the call up, and then to either Succeeded or Failed exactly once.

    future := api.Find(ctx, "application", "1")
    // ... do other things ...
    application, err := future.Await(ctx)

Or, without blocking:

    select {
    case <-future.Done():
        application, err := future.Await(ctx)
    case <-time.After(time.Second):
        ...
    }
*/
type Future[T any] struct {
	done  chan struct{}
	once  sync.Once
	state atomic.Int32
	value T
	err   error
}

func newFuture[T any]() *Future[T] {
	return &Future[T]{done: make(chan struct{})}
}

// Resolved returns a future that has already succeeded with 'value'
func Resolved[T any](value T) *Future[T] {
	future := newFuture[T]()
	future.resolve(value)
	return future
}

// Rejected returns a future that has already failed with 'err'
func Rejected[T any](err error) *Future[T] {
	future := newFuture[T]()
	future.reject(err)
	return future
}

func (f *Future[T]) markSent() {
	f.state.CompareAndSwap(int32(Idle), int32(Sent))
}

func (f *Future[T]) resolve(value T) {
	f.once.Do(func() {
		f.value = value
		f.state.Store(int32(Succeeded))
		close(f.done)
	})
}

func (f *Future[T]) reject(err error) {
	f.once.Do(func() {
		f.err = err
		f.state.Store(int32(Failed))
		close(f.done)
	})
}

// Done is closed once the future has succeeded or failed
func (f *Future[T]) Done() <-chan struct{} {
	return f.done
}

func (f *Future[T]) State() State {
	return State(f.state.Load())
}

/*
Await
Block until the future completes or 'ctx' is done. Giving up on the wait
does not cancel the call itself; use the context passed to the operation
for that.
*/
func (f *Future[T]) Await(ctx context.Context) (T, error) {
	select {
	case <-f.done:
		return f.value, f.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

/*
Then
Chain 'next' after 'f'. 'next' only runs if 'f' succeeded; otherwise the
returned future fails with f's error.

    recreated := jsonapi.Then(
        api.Destroy(ctx, "application", "1"),
        func(struct{}) *jsonapi.Future[*jsonapi.Record] {
            return api.Create(ctx, "application", attributes)
        },
    )
*/
func Then[T, U any](f *Future[T], next func(T) *Future[U]) *Future[U] {
	result := newFuture[U]()
	go func() {
		<-f.done
		if f.err != nil {
			result.reject(f.err)
			return
		}
		result.markSent()
		inner := next(f.value)
		if inner == nil {
			var zero U
			result.resolve(zero)
			return
		}
		<-inner.done
		if inner.err != nil {
			result.reject(inner.err)
			return
		}
		result.resolve(inner.value)
	}()
	return result
}
