// Copyright 2009 Peter H. Froehlich. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package sqlite3

import (
	"sync"
	"sync/atomic"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/dwa012/go-sqlite3/internal/engine"
)

// maxCacheableBytes bounds what StatementCache will retain: a query text
// longer than this is still compiled and run, just never cached, since the
// copy cost of keeping it warm would outweigh recompilation.
const maxCacheableBytes = 64 * 1024

// defaultStatementCacheSize is the capacity used when OpenOptions'
// StatementCacheSize is zero or negative; larger sizes are clamped to 512.
// A zero-capacity (disabled) cache is not available.
const defaultStatementCacheSize = 128

// cacheKey identifies one compiled-statement slot: same query text,
// prepare flags, and explain mode never share a cache entry, since
// SetExplain must be applied before the first step.
type cacheKey struct {
	sql     string
	flags   int
	explain int
}

// cacheEntry is one statement cache slot; leased == true while a cursor
// currently owns the engine handle.
type cacheEntry struct {
	stmt      *engine.Stmt
	tailBytes int
	key       cacheKey
	leased    bool
}

// StatementCache is an LRU-by-query cache of compiled statements, keyed by
// (query text, prepare flags, explain mode). Entries for queries too long
// to be worth caching, or explicitly marked non-cacheable by the caller,
// bypass the LRU and are finalized on release instead of returned to it.
type StatementCache struct {
	mu  sync.Mutex
	db  *engine.DB
	lru *lru.Cache[cacheKey, *cacheEntry]

	// removingExplicitly suppresses the onEvict counter bump for a
	// caller-driven Remove/Purge (Release's discard path, Close), so
	// "evictions" counts only capacity-pressure evictions, not ordinary
	// releases. Touched only while mu is held by the same goroutine that
	// triggers the synchronous onEvict callback, so it needs no atomic.
	removingExplicitly bool

	hits      atomic.Int64
	miss      atomic.Int64
	evictions atomic.Int64
	noCache   atomic.Int64
	noVDBE    atomic.Int64
	tooBig    atomic.Int64
}

func newStatementCache(db *engine.DB, size int) *StatementCache {
	if size <= 0 {
		size = defaultStatementCacheSize
	}
	if size > 512 {
		size = 512
	}
	sc := &StatementCache{db: db}
	c, _ := lru.NewWithEvict[cacheKey, *cacheEntry](size, func(_ cacheKey, e *cacheEntry) {
		if !sc.removingExplicitly {
			sc.evictions.Add(1)
		}
		if e != nil && !e.leased {
			e.stmt.Finalize()
		}
	})
	sc.lru = c
	return sc
}

// Stats reports the statement cache's (size, evictions, no_cache, hits,
// misses, no_vdbe, too_big, max_cacheable_bytes, entries) map, matching
// stats(include_entries): entries lists every live entry's SQL text, and
// is omitted (nil) unless includeEntries is true.
func (c *StatementCache) Stats(includeEntries bool) map[string]any {
	c.mu.Lock()
	size := c.lru.Len()
	var entries []string
	if includeEntries {
		keys := c.lru.Keys()
		entries = make([]string, len(keys))
		for i, k := range keys {
			entries[i] = k.sql
		}
	}
	c.mu.Unlock()

	return map[string]any{
		"size":                size,
		"evictions":           c.evictions.Load(),
		"no_cache":            c.noCache.Load(),
		"hits":                c.hits.Load(),
		"misses":              c.miss.Load(),
		"no_vdbe":             c.noVDBE.Load(),
		"too_big":             c.tooBig.Load(),
		"max_cacheable_bytes": maxCacheableBytes,
		"entries":             entries,
	}
}

// Prepare returns a leased statement for sql, either reusing a cached,
// idle compilation or asking the engine for a fresh one. cacheable=false
// (set by callers preparing a query with side effects at prepare time, or
// one so long it would blow the cache's byte budget) always compiles fresh
// and never inserts into the LRU.
func (c *StatementCache) Prepare(sql string, flags, explainMode int, cacheable bool) (*cacheEntry, int, error) {
	if !cacheable {
		c.noCache.Add(1)
	}
	if len(sql) > maxCacheableBytes {
		c.tooBig.Add(1)
	}
	cacheable = cacheable && len(sql) <= maxCacheableBytes
	key := cacheKey{sql: sql, flags: flags, explain: explainMode}

	if cacheable {
		c.mu.Lock()
		if e, ok := c.lru.Get(key); ok && !e.leased {
			e.leased = true
			c.hits.Add(1)
			c.mu.Unlock()
			if err := e.stmt.Reset(); err != nil {
				return nil, 0, fromEngine(err)
			}
			return e, e.tailBytes, nil
		}
		c.miss.Add(1)
		c.mu.Unlock()
	}

	stmt, tail, err := c.db.PrepareV2(sql)
	if err != nil {
		return nil, 0, fromEngine(err)
	}
	if stmt.Empty() {
		c.noVDBE.Add(1)
	}
	if explainMode != 0 {
		if serr := stmt.SetExplain(explainMode); serr != nil {
			stmt.Finalize()
			return nil, 0, fromEngine(serr)
		}
	}
	e := &cacheEntry{stmt: stmt, tailBytes: tail, key: key, leased: true}
	if cacheable {
		c.mu.Lock()
		c.lru.Add(key, e)
		c.mu.Unlock()
	}
	return e, tail, nil
}

// Release returns a leased entry to the cache (reset, idle) or finalizes
// it outright if it was never cacheable or the caller asks to discard it.
func (c *StatementCache) Release(e *cacheEntry, discard bool) error {
	if e == nil {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	e.leased = false
	if discard {
		c.removingExplicitly = true
		c.lru.Remove(e.key)
		c.removingExplicitly = false
		return fromEngine(e.stmt.Finalize())
	}
	if held, ok := c.lru.Peek(e.key); !ok || held != e {
		// Not in the LRU (bypassed it on Prepare, evicted while leased, or
		// its key now holds a newer compilation); finalize directly.
		return fromEngine(e.stmt.Finalize())
	}
	// Reset ends the statement's run so an idle entry holds no read
	// transaction; its result only repeats an error the last step reported.
	_ = e.stmt.Reset()
	return fromEngine(e.stmt.ClearBindings())
}

// Close finalizes every statement still held by the cache, cacheable or
// not; called once from Connection.Close.
func (c *StatementCache) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, key := range c.lru.Keys() {
		if e, ok := c.lru.Peek(key); ok {
			e.stmt.Finalize()
		}
	}
	c.removingExplicitly = true
	c.lru.Purge()
	c.removingExplicitly = false
}
