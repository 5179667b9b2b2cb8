//go:build !apsw_legacy_sqlite

package engine

/*
#include <sqlite3.h>
*/
import "C"

// isInterrupted mirrors sqlite3_is_interrupted (SQLite >= 3.41).
func isInterrupted(d *DB) bool {
	if !d.valid() {
		return false
	}
	return C.sqlite3_is_interrupted(d.ptr) != 0
}

// stmtIsExplain mirrors sqlite3_stmt_isexplain (SQLite >= 3.28).
func stmtIsExplain(s *Stmt) int {
	if !s.valid() {
		return 0
	}
	return int(C.sqlite3_stmt_isexplain(s.ptr))
}

// stmtSetExplain mirrors sqlite3_stmt_explain (SQLite >= 3.43).
func stmtSetExplain(s *Stmt, mode int) error {
	if !s.valid() {
		return nil
	}
	rc := C.sqlite3_stmt_explain(s.ptr, C.int(mode))
	if rc != C.SQLITE_OK {
		return &EngineError{Code: ResultCode(rc)}
	}
	return nil
}
