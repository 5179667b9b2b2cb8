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

// Invariant 5 / Scenario D: trace multiplexing delivers each event to
// exactly the registrations whose mask selects it, and removal by id
// leaves the other registration active.
func TestTraceMultiplexing(t *testing.T) {
	c := openMemory(t)

	var stmtHits, profileHits int
	err := c.Hooks().AddTrace("stmt-seat", engine.TraceStmt, func(code uint32, stmt *engine.Stmt, sql string, nanos int64) {
		stmtHits++
	})
	require.NoError(t, err)
	err = c.Hooks().AddTrace("profile-seat", engine.TraceProfile, func(code uint32, stmt *engine.Stmt, sql string, nanos int64) {
		profileHits++
	})
	require.NoError(t, err)

	require.NoError(t, c.exec("SELECT 1"))
	assert.Equal(t, 1, stmtHits)
	assert.Equal(t, 1, profileHits)

	require.NoError(t, c.Hooks().RemoveTrace("profile-seat"))
	stmtHits, profileHits = 0, 0
	require.NoError(t, c.exec("SELECT 1"))
	assert.Equal(t, 1, stmtHits)
	assert.Equal(t, 0, profileHits)
}

// Scenario E: a commit hook returning true turns the commit into a
// rollback, so a subsequent SELECT sees no inserted row.
func TestCommitHookAbort(t *testing.T) {
	c := openMemory(t)
	require.NoError(t, c.exec("CREATE TABLE t(x)"))

	c.Hooks().SetCommitHook(func() bool { return true })

	require.NoError(t, c.exec("BEGIN"))
	require.NoError(t, c.exec("INSERT INTO t VALUES (1)"))
	// SQLite converts an aborted commit into a rollback and reports the
	// COMMIT statement itself as failing with SQLITE_CONSTRAINT.
	err := c.exec("COMMIT")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrConstraint)

	cur, err := c.Prepare("SELECT count(*) FROM t", NoBindings)
	require.NoError(t, err)
	defer cur.Close()
	ok, err := cur.Next()
	require.NoError(t, err)
	require.True(t, ok)
	assert.EqualValues(t, 0, cur.Get())
}

// The auto-vacuum page-count hook installs and uninstalls cleanly; actually
// driving a page-reclaim pass needs a non-memory, incremental-vacuum
// database under real write pressure, so this only checks the wiring.
func TestAutovacuumHookInstallUninstall(t *testing.T) {
	c := openMemory(t)

	var called bool
	err := c.Hooks().SetAutovacuumHook(func(schema string, dbPages, freePages, pageSize uint32) uint32 {
		called = true
		return 0
	})
	require.NoError(t, err)

	require.NoError(t, c.Hooks().SetAutovacuumHook(nil))
	assert.False(t, called)
}

func TestScalarFunction(t *testing.T) {
	c := openMemory(t)
	err := c.CreateScalarFunction("double_it", 1, true, func(ctx engine.Context, args []engine.Value) {
		ctx.ResultInt64(args[0].Int64() * 2)
	})
	require.NoError(t, err)

	cur, err := c.Prepare("SELECT double_it(21)", NoBindings)
	require.NoError(t, err)
	defer cur.Close()
	ok, err := cur.Next()
	require.NoError(t, err)
	require.True(t, ok)
	assert.EqualValues(t, 42, cur.Get())
}
