// Copyright 2009 Peter H. Froehlich. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package sqlite3

import (
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Invariant 7: Blob read/write never extends length, and offset stays in
// [0, length].
func TestBlobBounds(t *testing.T) {
	c := openMemory(t)
	require.NoError(t, c.exec("CREATE TABLE t(x)"))
	require.NoError(t, c.exec("INSERT INTO t VALUES (zeroblob(8))"))

	id, err := c.LastInsertRowID()
	require.NoError(t, err)

	b, err := c.OpenBlob("main", "t", "x", id, true)
	require.NoError(t, err)
	defer b.Close()

	assert.Equal(t, 8, b.Len())

	n, err := b.WriteAt([]byte("abcd"), 0)
	require.NoError(t, err)
	assert.Equal(t, 4, n)

	buf := make([]byte, 4)
	n, err = b.ReadAt(buf, 0)
	require.NoError(t, err)
	assert.Equal(t, 4, n)
	assert.Equal(t, "abcd", string(buf))

	// Writing past length is a bounds error, never a silent extension.
	_, err = b.WriteAt([]byte("x"), 8)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrRange)

	// Reading past length returns io.EOF with whatever was actually there.
	buf = make([]byte, 4)
	n, err = b.ReadAt(buf, 6)
	assert.Equal(t, 2, n)
	assert.ErrorIs(t, err, io.EOF)

	pos, err := b.Seek(0, io.SeekEnd)
	require.NoError(t, err)
	assert.EqualValues(t, 8, pos)

	_, err = b.Seek(1, io.SeekCurrent)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrRange)
}
