// Copyright 2009 Peter H. Froehlich. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package sqlite3

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openMemory(t *testing.T) *Connection {
	t.Helper()
	c, err := Open(OpenOptions{Filename: ":memory:"})
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

// Invariant 1: after Close, every subsequent engine-touching call fails
// with ErrConnectionClosed, and Close itself is idempotent.
func TestConnectionClosedIsTerminal(t *testing.T) {
	c := openMemory(t)
	require.NoError(t, c.Close())
	require.NoError(t, c.Close())

	_, err := c.Changes()
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrConnectionClosed)

	_, err = c.Prepare("SELECT 1", NoBindings)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrConnectionClosed)
}

// Invariant 4: balanced Savepoint enter/exit pairs leave depth at zero,
// and a failing fn rolls back without leaving the depth counter skewed.
func TestSavepointDiscipline(t *testing.T) {
	c := openMemory(t)
	require.NoError(t, c.exec("CREATE TABLE t(x)"))

	err := c.Savepoint(func() error {
		return c.exec("INSERT INTO t VALUES (1)")
	})
	require.NoError(t, err)
	assert.Equal(t, int32(0), c.savepointDepth)

	sentinel := newCoreErr(KindInvalidContext, "boom")
	err = c.Savepoint(func() error {
		if ierr := c.exec("INSERT INTO t VALUES (2)"); ierr != nil {
			return ierr
		}
		return sentinel
	})
	require.Error(t, err)
	assert.Equal(t, int32(0), c.savepointDepth)

	cur, err := c.Prepare("SELECT count(*) FROM t", NoBindings)
	require.NoError(t, err)
	defer cur.Close()
	ok, err := cur.Next()
	require.NoError(t, err)
	require.True(t, ok)
	assert.EqualValues(t, 1, cur.Get())
}

// Invariant 8 (partial): Interrupt is safe to call without a mutex-gate
// acquisition, and an idle connection tolerates it without side effects
// on the next ordinary call.
func TestInterruptIsSafeWhenIdle(t *testing.T) {
	c := openMemory(t)
	c.Interrupt()
	n, err := c.Changes()
	require.NoError(t, err)
	assert.EqualValues(t, 0, n)
}
