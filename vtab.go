// Copyright 2009 Peter H. Froehlich. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package sqlite3

// VTableModule is the narrow collaborator interface a virtual-table
// extension implements; this package only exposes registration, never an
// implementation of its own. A module describes its schema via declSQL
// and produces per-connect, per-query, and per-cursor state through the
// three factory methods.
type VTableModule interface {
	// Connect returns the CREATE TABLE-shaped declaration SQLite uses to
	// learn the virtual table's schema, and an opaque handle this module
	// will recognize in BestIndex/Open.
	Connect(db *Connection, args []string) (declSQL string, table any, err error)
	// BestIndex lets the module advise the query planner; constraints and
	// orderBy mirror sqlite3_index_info's usable fields.
	BestIndex(table any, constraints []IndexConstraint, orderBy []OrderByTerm) (IndexPlan, error)
	// Open returns a new cursor handle bound to table.
	Open(table any) (cursor any, err error)
	// Disconnect releases table; Destroy additionally drops persisted
	// state (the DROP TABLE path).
	Disconnect(table any) error
	Destroy(table any) error
}

// IndexConstraint mirrors one usable constraint from sqlite3_index_info.
type IndexConstraint struct {
	Column int
	Op     int
	Usable bool
}

// OrderByTerm mirrors one ORDER BY term from sqlite3_index_info.
type OrderByTerm struct {
	Column int
	Desc   bool
}

// IndexPlan is BestIndex's verdict: which constraints it will consume, in
// what argument order, plus the estimated cost SQLite's planner compares
// across candidate plans.
type IndexPlan struct {
	ArgvIndex    []int
	IdxNum       int
	IdxStr       string
	EstimatedCost float64
	AlreadyOrdered bool
}

// RegisterModule is the registration entry point for a VTableModule under
// name. This build has no engine-side sqlite3_create_module binding: it
// registers nothing and always returns a KindVFSNotImplemented error, for
// a nil module as well.
func (c *Connection) RegisterModule(name string, module VTableModule) error {
	if module == nil {
		return newCoreErr(KindVFSNotImplemented, "nil VTableModule for module %q", name)
	}
	// internal/engine has no sqlite3_module C shim (xConnect/xBestIndex/
	// xOpen/... trampolines), so the module is neither registered nor
	// recorded (see DESIGN.md open question 4).
	return newCoreErr(KindVFSNotImplemented, "virtual table module registration for %q: no engine-side xConnect/xBestIndex/xOpen binding in this build", name)
}

// FTS5Tokenizer is the narrow collaborator interface an FTS5 tokenizer
// extension implements; consumed, not defined, by this package.
type FTS5Tokenizer interface {
	Tokenize(text string, emit func(token string, start, end int) error) error
}

// RegisterTokenizer would expose an FTS5Tokenizer to fts5_api; FTS5 support
// itself depends on the linked SQLite amalgamation being built with
// SQLITE_ENABLE_FTS5, which this module cannot verify at compile time, so
// the call always fails with KindNoFTS5 until a build-tag-gated engine
// binding is added (see DESIGN.md).
func (c *Connection) RegisterTokenizer(name string, tok FTS5Tokenizer) error {
	return ErrNoFTS5
}
