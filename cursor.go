// Copyright 2009 Peter H. Froehlich. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package sqlite3

import (
	"sync/atomic"
)

// Cursor is per-query execution state: a leased statement, its current
// row status, and the bindings driving either a single execution or an
// execute-many run.
type Cursor struct {
	conn *Connection

	entry  *cacheEntry
	status Status
	desc   *description

	sql       string
	cacheable bool

	iter     RowIterator
	lastBind Bindings

	rowTracer  RowTracer
	execTracer ExecTracer

	inQuery atomic.Bool
	closed  atomic.Bool
}

// Prepare compiles (or reuses a cached compilation of) sql and binds it,
// returning a Cursor positioned at StatusBegin. The bindings are not yet
// stepped; call Next to advance.
func (c *Connection) Prepare(sql string, bindings Bindings) (*Cursor, error) {
	return c.prepare(sql, bindings, true, 0)
}

// PrepareUncached compiles sql without ever inserting it into the
// statement cache, for queries whose PREPARE itself has a side effect the
// caller does not want replayed on a cache hit.
func (c *Connection) PrepareUncached(sql string, bindings Bindings) (*Cursor, error) {
	return c.prepare(sql, bindings, false, 0)
}

func (c *Connection) prepare(sql string, bindings Bindings, cacheable bool, explainMode int) (*Cursor, error) {
	cur := &Cursor{
		conn:      c,
		sql:       sql,
		cacheable: cacheable,
		desc:      newDescription(),
		lastBind:  bindings,
	}
	var err error
	err = c.withGate(func() error {
		entry, _, perr := c.cache.Prepare(sql, 0, explainMode, cacheable)
		if perr != nil {
			return perr
		}
		cur.entry = entry
		if berr := bindAll(entry.stmt, bindings); berr != nil {
			c.cache.Release(entry, true)
			cur.entry = nil
			return berr
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	cur.status = StatusBegin
	c.cursors.Add(cur)
	return cur, nil
}

// ExecuteMany reruns sql once per row produced by rows (or, for a plain
// []Bindings, once per element), driving each execution to completion
// before advancing to the next row.
func (c *Connection) ExecuteMany(sql string, rows RowIterator) error {
	var cur *Cursor
	defer func() {
		if cur != nil {
			cur.Close()
		}
	}()

	for {
		next, ok, rerr := rows.Next()
		if rerr != nil {
			return rerr
		}
		if !ok {
			return nil
		}
		// The statement is prepared with the first row's bindings and
		// rebound for every later row.
		if cur == nil {
			var err error
			if cur, err = c.Prepare(sql, next); err != nil {
				return err
			}
			cur.iter = rows
		} else if err := cur.rebind(next); err != nil {
			return err
		}
		for {
			more, serr := cur.Next()
			if serr != nil {
				return serr
			}
			if !more {
				break
			}
		}
	}
}

// ExecuteManySlice is the common case of ExecuteMany over an
// already-materialized slice of bindings.
func (c *Connection) ExecuteManySlice(sql string, rows []Bindings) error {
	return c.ExecuteMany(sql, &sliceIterator{rows: rows})
}

func (cur *Cursor) rebind(b Bindings) error {
	return cur.conn.withGate(func() error {
		if err := cur.entry.stmt.Reset(); err != nil {
			return fromEngine(err)
		}
		if err := cur.entry.stmt.ClearBindings(); err != nil {
			return fromEngine(err)
		}
		if err := bindAll(cur.entry.stmt, b); err != nil {
			return err
		}
		cur.status = StatusBegin
		cur.lastBind = b
		cur.desc.invalidate()
		return nil
	})
}

// SetRowTracer installs a callback invoked after every row this cursor
// produces; pass nil to uninstall.
func (cur *Cursor) SetRowTracer(fn RowTracer) { cur.rowTracer = fn }

// SetExecTracer installs a callback that Next invokes before the first
// step of each execution this cursor runs (after Prepare, and after each
// rebind); pass nil to uninstall.
func (cur *Cursor) SetExecTracer(fn ExecTracer) { cur.execTracer = fn }

// Next advances the cursor one step, returning ok=true if a row is now
// available (StatusRow) or ok=false once the statement reaches
// StatusDone. Re-entrant calls from the same cursor while one is already
// in flight fail with KindIncompleteExecution.
func (cur *Cursor) Next() (bool, error) {
	more, err := cur.stepNoTrace()
	if err != nil {
		return false, err
	}
	if more && cur.rowTracer != nil {
		if terr := cur.rowTracer(cur); terr != nil {
			return false, terr
		}
	}
	return more, nil
}

// stepNoTrace is Next's engine-stepping core without the row-tracer
// invocation, shared with Get's internal drain (which must not re-fire a
// tracer the caller never asked this step to produce). At StatusBegin it
// first invokes the exec tracer, if one is installed.
func (cur *Cursor) stepNoTrace() (bool, error) {
	if cur.closed.Load() {
		return false, ErrCursorClosed
	}
	if !cur.inQuery.CompareAndSwap(false, true) {
		return false, newCoreErr(KindIncompleteExecution, "cursor is already stepping")
	}
	defer cur.inQuery.Store(false)

	if cur.status == StatusDone {
		return false, ErrExecutionComplete
	}
	if cur.status == StatusBegin && cur.execTracer != nil {
		if terr := cur.execTracer(cur.sql, cur.lastBind); terr != nil {
			return false, terr
		}
	}

	var status Status
	err := cur.conn.withGate(func() error {
		s, serr := stepOnce(cur.entry.stmt)
		status = s
		return serr
	})
	if err != nil {
		return false, err
	}
	cur.status = status
	if status == StatusRow {
		cur.desc.refresh(cur.entry.stmt)
		return true, nil
	}
	return false, nil
}

// Get is the least-structured row aggregator: nil if no row is currently
// available, the row itself if exactly one row remains (its single
// column's value if the statement has one result column, a []any of every
// column's value otherwise), or a []any holding every remaining row
// (each shaped by that same single/tuple rule) once more than one does.
// Draining the rest of the rows bypasses the row tracer: that advancement
// is internal to one Get call, not a caller-visible Next.
func (cur *Cursor) Get() any {
	if cur.status != StatusRow {
		return nil
	}
	rows := []any{cur.currentRow()}
	for {
		more, err := cur.stepNoTrace()
		if err != nil || !more {
			break
		}
		rows = append(rows, cur.currentRow())
	}
	if len(rows) == 1 {
		return rows[0]
	}
	return rows
}

// currentRow converts the statement's current row into the scalar-or-tuple
// shape Get reports for a single row.
func (cur *Cursor) currentRow() any {
	n := cur.entry.stmt.ColumnCount()
	if n == 0 {
		return nil
	}
	if n == 1 {
		return columnValue(cur.entry.stmt, 0)
	}
	row := make([]any, n)
	for i := 0; i < n; i++ {
		row[i] = columnValue(cur.entry.stmt, i)
	}
	return row
}

// Description returns each result column's name (decltype is available
// via DeclTypes for callers that need it). Both come from the cursor's one
// cached description slot; there are no padded or metadata-full variants.
func (cur *Cursor) Description() []string {
	if cur.status != StatusRow && cur.status != StatusBegin {
		return nil
	}
	cur.desc.refresh(cur.entry.stmt)
	return cur.desc.names
}

// DeclTypes returns each result column's declared type, "" where SQLite
// reports none (e.g. an expression column).
func (cur *Cursor) DeclTypes() []string {
	cur.desc.refresh(cur.entry.stmt)
	return cur.desc.declTypes
}

// ExpandedSQL mirrors sqlite3_expanded_sql for the cursor's current
// statement, substituting bound parameter values into the text.
func (cur *Cursor) ExpandedSQL() string {
	if cur.entry == nil {
		return cur.sql
	}
	return cur.entry.stmt.ExpandedSQL()
}

// HasMore reports whether the prepared SQL had trailing, unconsumed text
// (a multi-statement script), per the StatementCache's tail tracking.
func (cur *Cursor) HasMore() bool {
	return cur.entry != nil && cur.entry.tailBytes < len(cur.sql)
}

// Tail returns the unconsumed trailing SQL text after the cursor's current
// statement, "" if HasMore is false.
func (cur *Cursor) Tail() string {
	if !cur.HasMore() {
		return ""
	}
	return cur.sql[cur.entry.tailBytes:]
}

// ExecuteScript prepares and runs every semicolon-separated statement in
// sql in turn, draining each to completion except the last, whose cursor
// is returned positioned at StatusBegin (ready for the caller's own
// Next/Get loop) so a trailing SELECT's rows are not silently discarded
// the way the intermediate statements' results are.
func (c *Connection) ExecuteScript(sql string, bindings Bindings) (*Cursor, error) {
	cur, err := c.Prepare(sql, bindings)
	if err != nil {
		return nil, err
	}
	for cur.HasMore() {
		for {
			more, serr := cur.Next()
			if serr != nil {
				cur.Close()
				return nil, serr
			}
			if !more {
				break
			}
		}
		tail := cur.Tail()
		if err := cur.Close(); err != nil {
			return nil, err
		}
		cur, err = c.Prepare(tail, NoBindings)
		if err != nil {
			return nil, err
		}
	}
	return cur, nil
}

// Close resets and releases the cursor's leased statement back to the
// cache (or finalizes it, if uncacheable). The cursor's entry in the
// connection's dependents list is not removed; the list holds it weakly,
// and a later ForceClose from Connection.Close is a no-op. Safe to call
// more than once.
func (cur *Cursor) Close() error {
	if !cur.closed.CompareAndSwap(false, true) {
		return nil
	}
	if cur.entry == nil {
		return nil
	}
	return cur.conn.withGate(func() error {
		err := cur.conn.cache.Release(cur.entry, !cur.cacheable)
		cur.entry = nil
		return err
	})
}

// ForceClose implements deplist.Dependent; Connection.Close calls this on
// every still-alive cursor instead of the ordinary Close, but the two are
// identical for Cursor (unlike Connection, a cursor has no nested
// dependents of its own to drain first).
func (cur *Cursor) ForceClose() error { return cur.Close() }
