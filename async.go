// Copyright 2009 Peter H. Froehlich. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package sqlite3

import (
	"context"
	"errors"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"github.com/dwa012/go-sqlite3/internal/asyncbox"
)

// ErrIteratorExhausted is the Go stand-in for an end-of-stream sentinel,
// since Go has no distinct exception type for "stop iteration". Nothing in
// this package returns it itself (there is no async execute-many); a
// Future's Wait reports it only when the dispatched function returned it.
var ErrIteratorExhausted = errors.New("sqlite3: iterator exhausted")

// Future is the awaitable AsyncDispatch hands back for work boxed onto the
// owning worker goroutine: call Wait (blocking) or poll Done.
type Future[T any] struct {
	call *asyncbox.Call
}

// Done reports whether the worker has finished this call.
func (f *Future[T]) Done() bool {
	select {
	case <-f.call.Done():
		return true
	default:
		return false
	}
}

// Wait blocks until the worker completes the call and returns its typed
// result.
func (f *Future[T]) Wait() (T, error) {
	v, err := f.call.Wait()
	var zero T
	if err != nil {
		return zero, err
	}
	if v == nil {
		return zero, nil
	}
	t, ok := v.(T)
	if !ok {
		return zero, newCoreErr(KindInvalidContext, "async result type mismatch: got %T", v)
	}
	return t, nil
}

// AsyncDispatch designates one connection's engine calls to run
// exclusively on a single worker goroutine; every call made from another
// goroutine is boxed, sent over a channel, and awaited via a Future.
type AsyncDispatch struct {
	conn   *Connection
	calls  chan *asyncbox.Call
	group  *errgroup.Group
	ctx    context.Context
	cancel context.CancelFunc
	owner  atomic.Int64
}

// EnableAsync starts the worker goroutine and designates it as this
// connection's exclusive owner; subsequent calls to Dispatch from other
// goroutines are boxed and shipped to it. Calling it twice is an error.
func (c *Connection) EnableAsync() (*AsyncDispatch, error) {
	if c.async != nil {
		return nil, newCoreErr(KindThreadingViolation, "async dispatch already enabled for this connection")
	}
	ctx, cancel := context.WithCancel(context.Background())
	a := &AsyncDispatch{
		conn:   c,
		calls:  make(chan *asyncbox.Call, 64),
		ctx:    ctx,
		cancel: cancel,
	}
	g, gctx := errgroup.WithContext(ctx)
	a.group = g
	g.Go(func() error {
		a.owner.Store(newGoroutineToken())
		for {
			select {
			case <-gctx.Done():
				return gctx.Err()
			case call, ok := <-a.calls:
				if !ok {
					return nil
				}
				call.Run()
			}
		}
	})
	c.async = a
	return a, nil
}

func (a *AsyncDispatch) shutdown() {
	a.cancel()
	close(a.calls)
	_ = a.group.Wait()
}

// isOnWorker reports whether the calling goroutine is the dispatch's own
// worker, the re-entry case that must run inline instead of boxing (a
// boxed call sent to the worker from the worker itself would deadlock
// against its own single-threaded read loop).
func (a *AsyncDispatch) isOnWorker(tok goroutineToken) bool {
	owner := a.owner.Load()
	return owner != 0 && owner == tok
}

// dispatchCall boxes fn (already bound to its arguments via closure) and
// ships it to the worker, unless the caller is already running on the
// worker goroutine, in which case fn runs inline to avoid a self-deadlock.
func dispatchCall[T any](a *AsyncDispatch, tok goroutineToken, fn func(ctx context.Context) (any, error)) *Future[T] {
	call := asyncbox.NewCall(asyncboxKindCall, a.ctx)
	call.Fn = fn
	if a.isOnWorker(tok) {
		call.Run()
	} else {
		select {
		case a.calls <- call:
		case <-a.ctx.Done():
			go func() { call.Run() }() // worker already shutting down; fail fast via ctx
		}
	}
	return &Future[T]{call: call}
}

const asyncboxKindCall = asyncbox.KindCall

// Dispatch runs fn against the connection, either inline (if called from
// the worker goroutine, or if async dispatch was never enabled) or boxed
// to the worker and returned as a pending Future otherwise.
func Dispatch[T any](c *Connection, fn func(ctx context.Context, conn *Connection) (T, error)) *Future[T] {
	wrapped := func(ctx context.Context) (any, error) {
		return fn(ctx, c)
	}
	if c.async == nil {
		call := asyncbox.NewCall(asyncboxKindCall, context.Background())
		call.Fn = wrapped
		call.Run()
		return &Future[T]{call: call}
	}
	return dispatchCall[T](c.async, newGoroutineToken(), wrapped)
}
