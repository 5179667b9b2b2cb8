// Copyright 2009 Peter H. Froehlich. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package sqlite3

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// With no worker enabled, Dispatch runs fn inline: the Future is already
// Done by the time Dispatch returns.
func TestDispatchInlineWithoutAsync(t *testing.T) {
	c := openMemory(t)

	fut := Dispatch[int](c, func(ctx context.Context, conn *Connection) (int, error) {
		return 42, nil
	})
	assert.True(t, fut.Done())

	v, err := fut.Wait()
	require.NoError(t, err)
	assert.Equal(t, 42, v)
}

// Once EnableAsync designates a worker goroutine, a Dispatch call from any
// other goroutine is boxed and only completes once the worker runs it.
func TestDispatchBoxesToWorker(t *testing.T) {
	c := openMemory(t)
	_, err := c.EnableAsync()
	require.NoError(t, err)

	fut := Dispatch[string](c, func(ctx context.Context, conn *Connection) (string, error) {
		return "hello", nil
	})

	v, err := fut.Wait()
	require.NoError(t, err)
	assert.Equal(t, "hello", v)
}

// A Dispatch call made from inside a call already running on the worker
// goroutine runs inline rather than boxing a second time (which would
// deadlock against the worker's own single-threaded read loop).
func TestDispatchReentrantRunsInline(t *testing.T) {
	c := openMemory(t)
	_, err := c.EnableAsync()
	require.NoError(t, err)

	outer := Dispatch[int](c, func(ctx context.Context, conn *Connection) (int, error) {
		inner := Dispatch[int](conn, func(ctx context.Context, conn *Connection) (int, error) {
			return 7, nil
		})
		assert.True(t, inner.Done())
		return inner.Wait()
	})

	v, err := outer.Wait()
	require.NoError(t, err)
	assert.Equal(t, 7, v)
}

// Wait propagates an error returned by the dispatched function.
func TestDispatchWaitPropagatesError(t *testing.T) {
	c := openMemory(t)
	_, err := c.EnableAsync()
	require.NoError(t, err)

	wantErr := errors.New("boom")
	fut := Dispatch[int](c, func(ctx context.Context, conn *Connection) (int, error) {
		return 0, wantErr
	})

	_, err = fut.Wait()
	require.Error(t, err)
	assert.ErrorIs(t, err, wantErr)
}

// EnableAsync refuses a second call on the same connection.
func TestEnableAsyncTwiceFails(t *testing.T) {
	c := openMemory(t)
	_, err := c.EnableAsync()
	require.NoError(t, err)

	_, err = c.EnableAsync()
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrThreadingViolation)
}
