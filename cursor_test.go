// Copyright 2009 Peter H. Froehlich. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package sqlite3

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Scenario B: multi-statement tail chaining, with only the final SELECT's
// rows surfaced to the caller. Get drains every row of that final SELECT
// on its first call, so there is exactly one Next/Get pair to make here.
func TestMultiStatementTailChaining(t *testing.T) {
	c := openMemory(t)

	cur, err := c.ExecuteScript("CREATE TABLE t(x); INSERT INTO t VALUES(1),(2); SELECT x FROM t ORDER BY x", NoBindings)
	require.NoError(t, err)
	defer cur.Close()
	assert.False(t, cur.HasMore())

	more, err := cur.Next()
	require.NoError(t, err)
	require.True(t, more)

	rows, ok := cur.Get().([]any)
	require.True(t, ok)
	require.Len(t, rows, 2)
	assert.EqualValues(t, 1, rows[0])
	assert.EqualValues(t, 2, rows[1])
}

func TestGetLawScalarAndRows(t *testing.T) {
	c := openMemory(t)
	require.NoError(t, c.exec("CREATE TABLE t(x,y)"))
	require.NoError(t, c.exec("INSERT INTO t VALUES (1,2),(3,4)"))

	// n=0: no row available, Get returns nil.
	cur, err := c.Prepare("SELECT x FROM t WHERE x = 999", NoBindings)
	require.NoError(t, err)
	ok, err := cur.Next()
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Nil(t, cur.Get())
	require.NoError(t, cur.Close())

	// n=1, k=1: scalar.
	cur, err = c.Prepare("SELECT x FROM t WHERE x = 1", NoBindings)
	require.NoError(t, err)
	ok, err = cur.Next()
	require.NoError(t, err)
	require.True(t, ok)
	assert.EqualValues(t, 1, cur.Get())
	require.NoError(t, cur.Close())

	// n=1, k>1: tuple of length k.
	cur, err = c.Prepare("SELECT x, y FROM t WHERE x = 1", NoBindings)
	require.NoError(t, err)
	ok, err = cur.Next()
	require.NoError(t, err)
	require.True(t, ok)
	row, ok := cur.Get().([]any)
	require.True(t, ok)
	assert.Len(t, row, 2)
	require.NoError(t, cur.Close())

	// n>1: a list of length n, one shaped entry per remaining row, bound
	// to one Next/Get pair rather than one pair per row.
	cur, err = c.Prepare("SELECT x FROM t ORDER BY x", NoBindings)
	require.NoError(t, err)
	ok, err = cur.Next()
	require.NoError(t, err)
	require.True(t, ok)
	rows, ok := cur.Get().([]any)
	require.True(t, ok)
	require.Len(t, rows, 2)
	assert.EqualValues(t, 1, rows[0])
	assert.EqualValues(t, 3, rows[1])
	require.NoError(t, cur.Close())
}

// Scenario C: execute-many with a pre-materialized binding slice.
func TestExecuteManySlice(t *testing.T) {
	c := openMemory(t)
	require.NoError(t, c.exec("CREATE TABLE t(x)"))

	err := c.ExecuteManySlice("INSERT INTO t VALUES (?)", []Bindings{
		{Positional: []any{1}},
		{Positional: []any{2}},
		{Positional: []any{3}},
	})
	require.NoError(t, err)

	// TotalChanges counts all three inserts; Changes reports only the last.
	n, err := c.TotalChanges()
	require.NoError(t, err)
	assert.EqualValues(t, 3, n)
}

// Invariant 3: named bindings missing a key produce a Bindings error.
func TestNamedBindingsMissingKey(t *testing.T) {
	c := openMemory(t)
	require.NoError(t, c.exec("CREATE TABLE t(x)"))

	_, err := c.Prepare("INSERT INTO t VALUES (:x)", Bindings{Named: map[string]any{"y": 1}})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrBindings)
}

// Invariant 2: a cursor's statement is never leased twice; closing
// releases it back to the cache for the next Prepare to reuse.
func TestCursorReleasesStatementOnClose(t *testing.T) {
	c := openMemory(t)

	cur1, err := c.Prepare("SELECT 1", NoBindings)
	require.NoError(t, err)
	require.NoError(t, cur1.Close())

	cur2, err := c.Prepare("SELECT 1", NoBindings)
	require.NoError(t, err)
	defer cur2.Close()

	stats := c.cache.Stats(false)
	assert.EqualValues(t, 1, stats["hits"])
	assert.EqualValues(t, 1, stats["misses"])
}

// Re-entrant Next calls on the same cursor fail fast rather than
// corrupting engine state (the inQuery guard).
func TestCursorReentrantNextGuard(t *testing.T) {
	c := openMemory(t)
	cur, err := c.Prepare("SELECT 1", NoBindings)
	require.NoError(t, err)
	defer cur.Close()

	cur.inQuery.Store(true)
	_, err = cur.Next()
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrIncompleteExecution)
	cur.inQuery.Store(false)
}
