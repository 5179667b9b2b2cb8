//go:build apsw_legacy_sqlite

package engine

// Build this module with -tags apsw_legacy_sqlite against a system SQLite
// that lacks sqlite3_stmt_explain (added in 3.43), sqlite3_is_interrupted
// (3.41) or sqlite3_stmt_isexplain (3.28). The features they back (explain-mode cache
// keying, cooperative interrupt polling) degrade to harmless defaults;
// everything else in this module is unaffected.

func isInterrupted(d *DB) bool {
	return false
}

func stmtIsExplain(s *Stmt) int {
	return 0
}

func stmtSetExplain(s *Stmt, mode int) error {
	return nil
}
