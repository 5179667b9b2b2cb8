package engine

/*
#include <sqlite3.h>
*/
import "C"

// Mutex is the connection's own sqlite3_mutex*, obtained via
// sqlite3_db_mutex. SQLite allocates and owns it; this package never frees
// it directly (sqlite3_close does that).
type Mutex struct {
	ptr *C.sqlite3_mutex
}

// DBMutex mirrors sqlite3_db_mutex. A closed DB yields a Mutex with no
// engine mutex behind it, whose TryEnter succeeds and Leave does nothing.
func (d *DB) DBMutex() *Mutex {
	if !d.valid() {
		return &Mutex{}
	}
	return &Mutex{ptr: C.sqlite3_db_mutex(d.ptr)}
}

// TryEnter mirrors sqlite3_mutex_try: returns true if the mutex was
// acquired without blocking.
func (m *Mutex) TryEnter() bool {
	if m == nil || m.ptr == nil {
		return true
	}
	return C.sqlite3_mutex_try(m.ptr) == C.SQLITE_OK
}

// Enter mirrors sqlite3_mutex_enter, which blocks. Nothing in this module
// calls it: MutexGate and the two-mutex backup acquisition both use
// TryEnter.
func (m *Mutex) Enter() {
	if m == nil || m.ptr == nil {
		return
	}
	C.sqlite3_mutex_enter(m.ptr)
}

// Leave mirrors sqlite3_mutex_leave.
func (m *Mutex) Leave() {
	if m == nil || m.ptr == nil {
		return
	}
	C.sqlite3_mutex_leave(m.ptr)
}
