// Copyright 2009 Peter H. Froehlich. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package sqlite3

import (
	"github.com/dwa012/go-sqlite3/internal/engine"
)

// Status is the Statement State Machine's three-state lifecycle for a
// single compiled statement's execution.
type Status int

const (
	// StatusDone means the statement ran to completion (or was never
	// stepped) and holds no row.
	StatusDone Status = iota
	// StatusBegin means the statement is bound but has not yet been
	// stepped for the first time.
	StatusBegin
	// StatusRow means the last step produced a row, currently available
	// via the cursor's column accessors.
	StatusRow
)

// RowIterator is the pull-iterator shape execute-many accepts for binding
// a pre-existing sequence of rows, the Go analogue of passing a list of
// parameter tuples.
type RowIterator interface {
	// Next returns the next row's bindings, or ok=false when exhausted.
	Next() (row Bindings, ok bool, err error)
}

// sliceIterator adapts a plain []Bindings to RowIterator.
type sliceIterator struct {
	rows []Bindings
	i    int
}

func (s *sliceIterator) Next() (Bindings, bool, error) {
	if s.i >= len(s.rows) {
		return Bindings{}, false, nil
	}
	r := s.rows[s.i]
	s.i++
	return r, true, nil
}

// RowTracer is invoked by Next after every successful step that produces
// a row; the rows Get drains internally do not invoke it.
type RowTracer func(cur *Cursor) error

// ExecTracer is invoked by Next before the first step of each execution a
// cursor runs, with the cursor's SQL text and current bindings, mirroring
// a query-logging hook. ExecuteMany runs on an internal cursor that has
// none installed.
type ExecTracer func(sql string, bindings Bindings) error

// description is the cursor's one cached column-metadata slot: column
// names and declared types, both filled together on the first refresh
// after an invalidate. It holds no table- or schema-level detail.
type description struct {
	names     []string
	declTypes []string
	stale     bool
}

func newDescription() *description { return &description{stale: true} }

func (d *description) invalidate() { d.stale = true }

func (d *description) refresh(stmt *engine.Stmt) {
	if !d.stale {
		return
	}
	n := stmt.ColumnCount()
	d.names = make([]string, n)
	d.declTypes = make([]string, n)
	for i := 0; i < n; i++ {
		d.names[i] = stmt.ColumnName(i)
		d.declTypes[i] = stmt.ColumnDeclType(i)
	}
	d.stale = false
}

// stepOnce runs one sqlite3_step against stmt and returns the new Status.
// Any result other than a row or done (Busy and Locked included) is not
// retried: the statement is reset and the error returned.
func stepOnce(stmt *engine.Stmt) (Status, error) {
	rc := stmt.Step()
	switch rc {
	case engine.Row:
		return StatusRow, nil
	case engine.Done:
		return StatusDone, nil
	default:
		if rerr := stmt.Reset(); rerr != nil {
			return StatusDone, fromEngine(rerr)
		}
		return StatusDone, fromEngine(&engine.EngineError{Code: rc})
	}
}
