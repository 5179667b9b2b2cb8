// Copyright 2009 Peter H. Froehlich. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package sqlite3 is a runtime-integration layer over SQLite's C API: it
// turns the single-threaded, callback-heavy, mutex-protected engine surface
// into a concurrent, ergonomic Go object model.
//
// The package owns connection/cursor/blob lifecycle, a prepared-statement
// cache with an execution state machine, per-connection mutex discipline
// with bounded contention back-off, and a callback dispatch plane for
// scalar/aggregate/window functions, collations, and engine hooks. The
// low-level cgo boundary lives in internal/engine and is not part of the
// public API.
//
// Virtual tables, the VFS layer, and FTS5 tokenizers are consumed through
// narrow collaborator interfaces (see vtab.go, vfs.go); their
// implementations live outside this module.
package sqlite3
