// Copyright 2009 Peter H. Froehlich. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package sqlite3

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Scenario A: cache reuse. Two Prepares of the same query text report one
// hit and one miss.
func TestCacheReuse(t *testing.T) {
	c, err := Open(OpenOptions{Filename: ":memory:", StatementCacheSize: 4})
	require.NoError(t, err)
	defer c.Close()

	cur1, err := c.Prepare("SELECT 1", NoBindings)
	require.NoError(t, err)
	require.NoError(t, cur1.Close())

	cur2, err := c.Prepare("SELECT 1", NoBindings)
	require.NoError(t, err)
	require.NoError(t, cur2.Close())

	stats := c.cache.Stats(true)
	assert.EqualValues(t, 1, stats["hits"])
	assert.EqualValues(t, 1, stats["misses"])
	assert.GreaterOrEqual(t, stats["size"].(int), 1)
	assert.Len(t, stats["entries"], stats["size"].(int))
	assert.Equal(t, maxCacheableBytes, stats["max_cacheable_bytes"])
}

// A query marked uncacheable is never returned by Stats as a hit, even
// when prepared twice.
func TestPrepareUncachedBypassesLRU(t *testing.T) {
	c := openMemory(t)

	cur1, err := c.PrepareUncached("SELECT 2", NoBindings)
	require.NoError(t, err)
	require.NoError(t, cur1.Close())

	cur2, err := c.PrepareUncached("SELECT 2", NoBindings)
	require.NoError(t, err)
	require.NoError(t, cur2.Close())

	stats := c.cache.Stats(false)
	assert.Zero(t, stats["hits"])
	assert.EqualValues(t, 2, stats["no_cache"])
	assert.Nil(t, stats["entries"])
}

// Filling a small cache past capacity reports a capacity eviction, not
// just a release; a comment-only statement reports no_vdbe instead of
// landing in either hit or miss.
func TestCacheStatsEvictionsAndNoVDBE(t *testing.T) {
	c, err := Open(OpenOptions{Filename: ":memory:", StatementCacheSize: 1})
	require.NoError(t, err)
	defer c.Close()

	cur1, err := c.Prepare("SELECT 1", NoBindings)
	require.NoError(t, err)
	require.NoError(t, cur1.Close())

	cur2, err := c.Prepare("SELECT 2", NoBindings)
	require.NoError(t, err)
	require.NoError(t, cur2.Close())

	stats := c.cache.Stats(false)
	assert.EqualValues(t, 1, stats["evictions"])

	cur3, err := c.PrepareUncached("-- just a comment", NoBindings)
	require.NoError(t, err)
	require.NoError(t, cur3.Close())

	stats = c.cache.Stats(false)
	assert.EqualValues(t, 1, stats["no_vdbe"])
}
