// Copyright 2009 Peter H. Froehlich. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package sqlite3

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// An online backup copies every page from src into dst.
func TestBackupCopiesAllRows(t *testing.T) {
	src := openMemory(t)
	require.NoError(t, src.exec("CREATE TABLE t(x)"))
	require.NoError(t, src.exec("INSERT INTO t VALUES (1),(2),(3)"))

	dst := openMemory(t)

	b, err := NewBackup(dst, "main", src, "main")
	require.NoError(t, err)

	for {
		done, serr := b.Step(-1)
		require.NoError(t, serr)
		if done {
			break
		}
	}
	require.NoError(t, b.Finish())

	cur, err := dst.Prepare("SELECT count(*) FROM t", NoBindings)
	require.NoError(t, err)
	defer cur.Close()
	ok, err := cur.Next()
	require.NoError(t, err)
	require.True(t, ok)
	assert.EqualValues(t, 3, cur.Get())
}

// Serialize/Deserialize round-trips a schema's contents through an
// in-memory buffer.
func TestSerializeDeserializeRoundTrip(t *testing.T) {
	c := openMemory(t)
	require.NoError(t, c.exec("CREATE TABLE t(x)"))
	require.NoError(t, c.exec("INSERT INTO t VALUES (9)"))

	buf, err := c.Serialize("main")
	require.NoError(t, err)
	require.NotEmpty(t, buf)

	dst := openMemory(t)
	require.NoError(t, dst.Deserialize("main", buf))

	cur, err := dst.Prepare("SELECT x FROM t", NoBindings)
	require.NoError(t, err)
	defer cur.Close()
	ok, err := cur.Next()
	require.NoError(t, err)
	require.True(t, ok)
	assert.EqualValues(t, 9, cur.Get())
}
