package engine

/*
#include <stdlib.h>
#include <sqlite3.h>

// Forward declarations of the Go-exported trampolines below. We declare
// them by hand (rather than relying on the build-generated _cgo_export.h)
// so every static wsq_install_* wrapper in this file can take their
// address and cast it to the C function pointer type each sqlite3_*
// registration call expects; cgo's export machinery guarantees the
// generated C symbol uses the C types named in each Go signature.
extern int goTraceTrampoline(sqlite3_uint64 handle, unsigned int typ, void *p, void *x);
extern int goProgressTrampoline(sqlite3_uint64 handle);
extern int goCommitTrampoline(sqlite3_uint64 handle);
extern void goRollbackTrampoline(sqlite3_uint64 handle);
extern void goUpdateTrampoline(sqlite3_uint64 handle, int op, const char *db, const char *table, sqlite3_int64 rowid);
extern int goWalTrampoline(sqlite3_uint64 handle, sqlite3 *db, const char *dbName, int nPages);
extern int goBusyTrampoline(sqlite3_uint64 handle, int count);
extern int goAuthorizerTrampoline(sqlite3_uint64 handle, int action, const char *a1, const char *a2, const char *a3, const char *a4);
extern void goCollationNeededTrampoline(sqlite3_uint64 handle, sqlite3 *db, int enc, const char *name);
extern int goCollationTrampoline(sqlite3_uint64 handle, int l1, const void *s1, int l2, const void *s2);
extern unsigned int goAutovacuumPagesTrampoline(sqlite3_uint64 handle, const char *zSchema, unsigned int nDbPage, unsigned int nFreePage, unsigned int nBytePerPage);

static int wsq_install_trace(sqlite3 *db, unsigned int mask, sqlite3_uint64 handle) {
	if (mask == 0) {
		return sqlite3_trace_v2(db, 0, 0, 0);
	}
	return sqlite3_trace_v2(db, mask,
		(int(*)(unsigned int, void*, void*, void*))goTraceTrampoline,
		(void*)(sqlite3_uint64)handle);
}

static int wsq_install_progress(sqlite3 *db, int nOps, sqlite3_uint64 handle, int active) {
	if (!active) {
		sqlite3_progress_handler(db, 0, 0, 0);
		return SQLITE_OK;
	}
	sqlite3_progress_handler(db, nOps, (int(*)(void*))goProgressTrampoline, (void*)(sqlite3_uint64)handle);
	return SQLITE_OK;
}

static void wsq_install_commit_hook(sqlite3 *db, sqlite3_uint64 handle, int active) {
	if (!active) {
		sqlite3_commit_hook(db, 0, 0);
		return;
	}
	sqlite3_commit_hook(db, (int(*)(void*))goCommitTrampoline, (void*)(sqlite3_uint64)handle);
}

static void wsq_install_rollback_hook(sqlite3 *db, sqlite3_uint64 handle, int active) {
	if (!active) {
		sqlite3_rollback_hook(db, 0, 0);
		return;
	}
	sqlite3_rollback_hook(db, (void(*)(void*))goRollbackTrampoline, (void*)(sqlite3_uint64)handle);
}

static void wsq_install_update_hook(sqlite3 *db, sqlite3_uint64 handle, int active) {
	if (!active) {
		sqlite3_update_hook(db, 0, 0);
		return;
	}
	sqlite3_update_hook(db,
		(void(*)(void*,int,char const*,char const*,sqlite3_int64))goUpdateTrampoline,
		(void*)(sqlite3_uint64)handle);
}

static void wsq_install_wal_hook(sqlite3 *db, sqlite3_uint64 handle, int active) {
	if (!active) {
		sqlite3_wal_hook(db, 0, 0);
		return;
	}
	sqlite3_wal_hook(db,
		(int(*)(void*,sqlite3*,char const*,int))goWalTrampoline,
		(void*)(sqlite3_uint64)handle);
}

static void wsq_install_busy_handler(sqlite3 *db, sqlite3_uint64 handle, int active) {
	if (!active) {
		sqlite3_busy_handler(db, 0, 0);
		return;
	}
	sqlite3_busy_handler(db, (int(*)(void*,int))goBusyTrampoline, (void*)(sqlite3_uint64)handle);
}

static void wsq_install_authorizer(sqlite3 *db, sqlite3_uint64 handle, int active) {
	if (!active) {
		sqlite3_set_authorizer(db, 0, 0);
		return;
	}
	sqlite3_set_authorizer(db,
		(int(*)(void*,int,char const*,char const*,char const*,char const*))goAuthorizerTrampoline,
		(void*)(sqlite3_uint64)handle);
}

static void wsq_install_collation_needed(sqlite3 *db, sqlite3_uint64 handle, int active) {
	if (!active) {
		sqlite3_collation_needed(db, 0, 0);
		return;
	}
	sqlite3_collation_needed(db,
		(void*)(sqlite3_uint64)handle,
		(void(*)(void*,sqlite3*,int,char const*))goCollationNeededTrampoline);
}

static int wsq_create_collation(sqlite3 *db, const char *name, sqlite3_uint64 handle) {
	return sqlite3_create_collation_v2(db, name, SQLITE_UTF8, (void*)(sqlite3_uint64)handle,
		(int(*)(void*,int,void const*,int,void const*))goCollationTrampoline,
		0);
}

static int wsq_install_autovacuum_pages(sqlite3 *db, sqlite3_uint64 handle, int active) {
	if (!active) {
		return sqlite3_autovacuum_pages(db, 0, 0, 0);
	}
	return sqlite3_autovacuum_pages(db,
		(unsigned int(*)(void*,char const*,unsigned int,unsigned int,unsigned int))goAutovacuumPagesTrampoline,
		(void*)(sqlite3_uint64)handle, 0);
}
*/
import "C"

import (
	"runtime/cgo"
	"unsafe"
)

// TraceFunc receives a decoded trace event. stmt is nil for the CLOSE
// event (p is the closing connection, not a statement). nanos carries the
// elapsed time for PROFILE events only.
type TraceFunc func(code uint32, stmt *Stmt, sql string, nanos int64)

// ProgressFunc mirrors the sqlite3_progress_handler callback's boolean
// "abort if truthy" contract.
type ProgressFunc func() (abort bool)

// CommitFunc mirrors the sqlite3_commit_hook callback's boolean "turn the
// commit into a rollback if truthy" contract.
type CommitFunc func() (abort bool)

// RollbackFunc mirrors the sqlite3_rollback_hook callback (no return value).
type RollbackFunc func()

// UpdateFunc mirrors the sqlite3_update_hook callback; op is
// SQLITE_INSERT/UPDATE/DELETE.
type UpdateFunc func(op int, dbName, table string, rowid int64)

// WalFunc mirrors the sqlite3_wal_hook callback; returning a non-OK code
// aborts the checkpoint the engine would otherwise attempt.
type WalFunc func(dbName string, nPages int) ResultCode

// BusyFunc mirrors the sqlite3_busy_handler callback; returning false tells
// SQLite to give up and return SQLITE_BUSY to the caller.
type BusyFunc func(attempt int) (retry bool)

// AuthorizerFunc mirrors the sqlite3_set_authorizer callback; the return
// value must be one of SQLITE_OK/SQLITE_DENY/SQLITE_IGNORE.
type AuthorizerFunc func(action int, a1, a2, a3, a4 string) int

// CollationNeededFunc mirrors sqlite3_collation_needed: the engine calls it
// when it hits a collation name it doesn't recognize, giving the host a
// chance to register one on demand.
type CollationNeededFunc func(enc int, name string)

// CollationFunc mirrors an installed comparison function.
type CollationFunc func(s1, s2 string) int

// AutovacuumPagesFunc mirrors the sqlite3_autovacuum_pages callback: given
// the current database size, free-page count, and page size (all in
// pages/bytes), it returns how many pages the engine should try to reclaim
// during the next auto-vacuum step (0 to skip this pass).
type AutovacuumPagesFunc func(schema string, dbPages, freePages, pageSize uint32) (suggestedPages uint32)

var (
	traceHandles           = newHandleSlot()
	progressHandles        = newHandleSlot()
	commitHandles          = newHandleSlot()
	rollbackHandles        = newHandleSlot()
	updateHandles          = newHandleSlot()
	walHandles             = newHandleSlot()
	busyHandles            = newHandleSlot()
	authorizerHandles      = newHandleSlot()
	collationNeededHandles = newHandleSlot()
	autovacuumPagesHandles = newHandleSlot()
)

// handleSlot tracks at most one live cgo.Handle per connection per hook
// kind, so installing a new callback (or nil, to unregister) can delete the
// previous handle instead of leaking it for the connection's lifetime.
type handleSlot struct {
	live map[*DB]cgo.Handle
}

func newHandleSlot() *handleSlot { return &handleSlot{live: make(map[*DB]cgo.Handle)} }

func (s *handleSlot) replace(d *DB, v any) (handle cgo.Handle, active bool) {
	if old, ok := s.live[d]; ok {
		old.Delete()
		delete(s.live, d)
	}
	if v == nil {
		return 0, false
	}
	h := cgo.NewHandle(v)
	s.live[d] = h
	return h, true
}

// TraceV2 mirrors sqlite3_trace_v2; pass fn == nil to uninstall.
func (d *DB) TraceV2(mask uint32, fn TraceFunc) error {
	h, active := traceHandles.replace(d, traceBox(fn))
	m := mask
	if !active {
		m = 0
	}
	rc := C.wsq_install_trace(d.ptr, C.uint(m), C.sqlite3_uint64(h))
	if rc != C.SQLITE_OK {
		return &EngineError{Code: ResultCode(rc)}
	}
	return nil
}

type traceBoxT struct{ fn TraceFunc }

func traceBox(fn TraceFunc) any {
	if fn == nil {
		return nil
	}
	return &traceBoxT{fn: fn}
}

//export goTraceTrampoline
func goTraceTrampoline(handle C.sqlite3_uint64, typ C.uint, p unsafe.Pointer, x unsafe.Pointer) C.int {
	box, ok := cgo.Handle(handle).Value().(*traceBoxT)
	if !ok || box.fn == nil {
		return 0
	}
	var stmt *Stmt
	var sql string
	var nanos int64
	switch uint32(typ) {
	case TraceStmt, TraceRow:
		stmt = &Stmt{ptr: (*C.sqlite3_stmt)(p)}
		if x != nil {
			sql = C.GoString((*C.char)(x))
		} else {
			sql = stmt.SQL()
		}
	case TraceProfile:
		stmt = &Stmt{ptr: (*C.sqlite3_stmt)(p)}
		sql = stmt.SQL()
		if x != nil {
			nanos = int64(*(*C.sqlite3_int64)(x))
		}
	case TraceClose:
		// p is the closing sqlite3*, not a statement.
	}
	box.fn(uint32(typ), stmt, sql, nanos)
	return 0
}

// SetProgressHandler mirrors sqlite3_progress_handler; pass fn == nil to
// uninstall. nOps is the vdbe-instruction interval between calls.
func (d *DB) SetProgressHandler(nOps int, fn ProgressFunc) error {
	h, active := progressHandles.replace(d, fn)
	rc := C.wsq_install_progress(d.ptr, C.int(nOps), C.sqlite3_uint64(h), boolToC(active))
	if rc != C.SQLITE_OK {
		return &EngineError{Code: ResultCode(rc)}
	}
	return nil
}

//export goProgressTrampoline
func goProgressTrampoline(handle C.sqlite3_uint64) C.int {
	fn, ok := cgo.Handle(handle).Value().(ProgressFunc)
	if !ok || fn == nil {
		return 0
	}
	if fn() {
		return 1
	}
	return 0
}

// SetCommitHook mirrors sqlite3_commit_hook; pass fn == nil to uninstall.
func (d *DB) SetCommitHook(fn CommitFunc) {
	h, active := commitHandles.replace(d, fn)
	C.wsq_install_commit_hook(d.ptr, C.sqlite3_uint64(h), boolToC(active))
}

//export goCommitTrampoline
func goCommitTrampoline(handle C.sqlite3_uint64) C.int {
	fn, ok := cgo.Handle(handle).Value().(CommitFunc)
	if !ok || fn == nil {
		return 0
	}
	if fn() {
		return 1
	}
	return 0
}

// SetRollbackHook mirrors sqlite3_rollback_hook; pass fn == nil to uninstall.
func (d *DB) SetRollbackHook(fn RollbackFunc) {
	h, active := rollbackHandles.replace(d, fn)
	C.wsq_install_rollback_hook(d.ptr, C.sqlite3_uint64(h), boolToC(active))
}

//export goRollbackTrampoline
func goRollbackTrampoline(handle C.sqlite3_uint64) {
	if fn, ok := cgo.Handle(handle).Value().(RollbackFunc); ok && fn != nil {
		fn()
	}
}

// SetUpdateHook mirrors sqlite3_update_hook; pass fn == nil to uninstall.
func (d *DB) SetUpdateHook(fn UpdateFunc) {
	h, active := updateHandles.replace(d, fn)
	C.wsq_install_update_hook(d.ptr, C.sqlite3_uint64(h), boolToC(active))
}

//export goUpdateTrampoline
func goUpdateTrampoline(handle C.sqlite3_uint64, op C.int, db *C.char, table *C.char, rowid C.sqlite3_int64) {
	fn, ok := cgo.Handle(handle).Value().(UpdateFunc)
	if !ok || fn == nil {
		return
	}
	fn(int(op), C.GoString(db), C.GoString(table), int64(rowid))
}

// SetWalHook mirrors sqlite3_wal_hook; pass fn == nil to uninstall.
func (d *DB) SetWalHook(fn WalFunc) {
	h, active := walHandles.replace(d, fn)
	C.wsq_install_wal_hook(d.ptr, C.sqlite3_uint64(h), boolToC(active))
}

//export goWalTrampoline
func goWalTrampoline(handle C.sqlite3_uint64, db *C.sqlite3, dbName *C.char, nPages C.int) C.int {
	fn, ok := cgo.Handle(handle).Value().(WalFunc)
	if !ok || fn == nil {
		return C.int(OK)
	}
	return C.int(fn(C.GoString(dbName), int(nPages)))
}

// SetBusyHandler mirrors sqlite3_busy_handler; pass fn == nil to uninstall
// (typically in favor of BusyTimeout).
func (d *DB) SetBusyHandler(fn BusyFunc) {
	h, active := busyHandles.replace(d, fn)
	C.wsq_install_busy_handler(d.ptr, C.sqlite3_uint64(h), boolToC(active))
}

//export goBusyTrampoline
func goBusyTrampoline(handle C.sqlite3_uint64, count C.int) C.int {
	fn, ok := cgo.Handle(handle).Value().(BusyFunc)
	if !ok || fn == nil {
		return 0
	}
	if fn(int(count)) {
		return 1
	}
	return 0
}

// SetAuthorizer mirrors sqlite3_set_authorizer; pass fn == nil to uninstall.
func (d *DB) SetAuthorizer(fn AuthorizerFunc) {
	h, active := authorizerHandles.replace(d, fn)
	C.wsq_install_authorizer(d.ptr, C.sqlite3_uint64(h), boolToC(active))
}

//export goAuthorizerTrampoline
func goAuthorizerTrampoline(handle C.sqlite3_uint64, action C.int, a1, a2, a3, a4 *C.char) C.int {
	fn, ok := cgo.Handle(handle).Value().(AuthorizerFunc)
	if !ok || fn == nil {
		return C.int(OK)
	}
	return C.int(fn(int(action), C.GoString(a1), C.GoString(a2), C.GoString(a3), C.GoString(a4)))
}

// SetCollationNeeded mirrors sqlite3_collation_needed; pass fn == nil to
// uninstall.
func (d *DB) SetCollationNeeded(fn CollationNeededFunc) {
	h, active := collationNeededHandles.replace(d, fn)
	C.wsq_install_collation_needed(d.ptr, C.sqlite3_uint64(h), boolToC(active))
}

//export goCollationNeededTrampoline
func goCollationNeededTrampoline(handle C.sqlite3_uint64, db *C.sqlite3, enc C.int, name *C.char) {
	fn, ok := cgo.Handle(handle).Value().(CollationNeededFunc)
	if !ok || fn == nil {
		return
	}
	fn(int(enc), C.GoString(name))
}

// CreateCollation mirrors sqlite3_create_collation_v2 for UTF8 text.
func (d *DB) CreateCollation(name string, fn CollationFunc) error {
	cname := C.CString(name)
	defer C.free(unsafe.Pointer(cname))
	h := cgo.NewHandle(fn)
	rc := C.wsq_create_collation(d.ptr, cname, C.sqlite3_uint64(h))
	if rc != C.SQLITE_OK {
		h.Delete()
		return &EngineError{Code: ResultCode(rc)}
	}
	return nil
}

//export goCollationTrampoline
func goCollationTrampoline(handle C.sqlite3_uint64, l1 C.int, s1 unsafe.Pointer, l2 C.int, s2 unsafe.Pointer) C.int {
	fn, ok := cgo.Handle(handle).Value().(CollationFunc)
	if !ok || fn == nil {
		return 0
	}
	a := C.GoBytes(s1, l1)
	b := C.GoBytes(s2, l2)
	return C.int(fn(string(a), string(b)))
}

// SetAutovacuumPages mirrors sqlite3_autovacuum_pages; pass fn == nil to
// uninstall and return to SQLite's built-in incremental-vacuum policy.
// Unlike the other single-seat hooks, the underlying C setter itself can
// fail (e.g. SQLITE_MISUSE if the library wasn't built with the feature
// compiled in), so the error is surfaced rather than ignored.
func (d *DB) SetAutovacuumPages(fn AutovacuumPagesFunc) error {
	h, active := autovacuumPagesHandles.replace(d, fn)
	rc := C.wsq_install_autovacuum_pages(d.ptr, C.sqlite3_uint64(h), boolToC(active))
	if rc != C.SQLITE_OK {
		return &EngineError{Code: ResultCode(rc)}
	}
	return nil
}

//export goAutovacuumPagesTrampoline
func goAutovacuumPagesTrampoline(handle C.sqlite3_uint64, zSchema *C.char, nDbPage, nFreePage, nBytePerPage C.uint) C.uint {
	fn, ok := cgo.Handle(handle).Value().(AutovacuumPagesFunc)
	if !ok || fn == nil {
		return 0
	}
	return C.uint(fn(C.GoString(zSchema), uint32(nDbPage), uint32(nFreePage), uint32(nBytePerPage)))
}

func boolToC(b bool) C.int {
	if b {
		return 1
	}
	return 0
}
