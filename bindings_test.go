// Copyright 2009 Peter H. Froehlich. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package sqlite3

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dwa012/go-sqlite3/internal/engine"
)

// A Pointer binding threads an arbitrary host value through a SQL parameter
// unchanged; a scalar function compiled against the same slot recovers it
// via ValuePointer instead of any column conversion.
func TestPointerBindingRoundTrips(t *testing.T) {
	c := openMemory(t)

	type token struct{ n int }
	want := &token{n: 7}

	var got any
	var ok bool
	err := c.CreateScalarFunction("probe_pointer", 1, false, func(ctx engine.Context, args []engine.Value) {
		got, ok = ValuePointer(args[0])
		ctx.ResultInt64(1)
	})
	require.NoError(t, err)

	cur, err := c.Prepare("SELECT probe_pointer(?)", Bindings{Positional: []any{Pointer{Value: want}}})
	require.NoError(t, err)
	defer cur.Close()

	more, err := cur.Next()
	require.NoError(t, err)
	require.True(t, more)

	require.True(t, ok)
	assert.Same(t, want, got)
}

// A value that was never bound through Pointer (a plain integer argument,
// say) reports ok=false rather than an arbitrary pointer.
func TestPointerBindingWrongTypeIsNotOK(t *testing.T) {
	c := openMemory(t)

	var ok bool
	err := c.CreateScalarFunction("probe_not_pointer", 1, false, func(ctx engine.Context, args []engine.Value) {
		_, ok = ValuePointer(args[0])
		ctx.ResultInt64(1)
	})
	require.NoError(t, err)

	cur, err := c.Prepare("SELECT probe_not_pointer(42)", NoBindings)
	require.NoError(t, err)
	defer cur.Close()

	more, err := cur.Next()
	require.NoError(t, err)
	require.True(t, more)
	assert.False(t, ok)
}
