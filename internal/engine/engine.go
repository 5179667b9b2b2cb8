// Copyright 2009 Peter H. Froehlich. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package engine is the cgo boundary against the SQLite C library. It is
// intentionally the only package in this module that imports "C". Its
// wrappers are spread over several files, each with its own cgo preamble;
// preambles are per translation unit, so a helper declared `static` in one
// file is private to that file and never collides with another's.
//
// Nothing here understands caching, mutex discipline, hook multiplexing,
// or Go value conversion; that all lives one layer up. This package is a
// faithful, low-level mirror of the subset of sqlite3.h that the rest of
// the module needs, plus the small number of C shims SQLite's API shape
// requires (const-correctness casts, callback trampolines).
package engine

/*
#cgo LDFLAGS: -lsqlite3
#include <stdlib.h>
#include <string.h>
#include <sqlite3.h>

// sqlite3_column_text/sqlite3_column_name return "const unsigned char *"
// for historical reasons; cgo maps that fine, but we re-cast through a
// plain char* shim so GoStringN callers don't have to repeat the cast.
static const char *wsq_column_text(sqlite3_stmt *stmt, int col) {
	return (const char *) sqlite3_column_text(stmt, col);
}

static const char *wsq_column_name(sqlite3_stmt *stmt, int col) {
	return (const char *) sqlite3_column_name(stmt, col);
}

static int wsq_bind_text(sqlite3_stmt *stmt, int i, const char *text, int n) {
	return sqlite3_bind_text(stmt, i, text, n, SQLITE_TRANSIENT);
}

static int wsq_bind_blob(sqlite3_stmt *stmt, int i, const void *blob, int n) {
	return sqlite3_bind_blob(stmt, i, blob, n, SQLITE_TRANSIENT);
}

// wsq_pointer_tag is the type-tag string sqlite3_bind_pointer/
// sqlite3_value_pointer compare by address (not content), so it must be one
// stable C string shared by every bind call in the process.
static const char *wsq_pointer_tag = "go.sqlite3.Handle";

extern void goBindPointerDestructor(void *p);

static int wsq_bind_pointer(sqlite3_stmt *stmt, int i, sqlite3_uint64 handle) {
	return sqlite3_bind_pointer(stmt, i, (void*)handle, wsq_pointer_tag, goBindPointerDestructor);
}

// Go callbacks (trace, progress, hooks, user functions) are registered
// through exported trampolines in callbacks.go and funcs.go; those files
// pass a Go-side cgo.Handle through sqlite3's void* "pApp"/"pArg" slots
// cast directly to/from sqlite3_uint64, which is why this preamble carries
// no generic handle-to-pointer shim of its own.
*/
import "C"

import (
	"fmt"
	"runtime/cgo"
	"unsafe"
)

// ResultCode mirrors a primary (low 8 bit) or extended SQLite result code.
type ResultCode int

// Primary result codes, see sqlite3.h.
const (
	OK         ResultCode = C.SQLITE_OK
	Error      ResultCode = C.SQLITE_ERROR
	Internal   ResultCode = C.SQLITE_INTERNAL
	Perm       ResultCode = C.SQLITE_PERM
	Abort      ResultCode = C.SQLITE_ABORT
	Busy       ResultCode = C.SQLITE_BUSY
	Locked     ResultCode = C.SQLITE_LOCKED
	NoMem      ResultCode = C.SQLITE_NOMEM
	ReadOnly   ResultCode = C.SQLITE_READONLY
	Interrupt  ResultCode = C.SQLITE_INTERRUPT
	IOErr      ResultCode = C.SQLITE_IOERR
	Corrupt    ResultCode = C.SQLITE_CORRUPT
	NotFound   ResultCode = C.SQLITE_NOTFOUND
	Full       ResultCode = C.SQLITE_FULL
	CantOpen   ResultCode = C.SQLITE_CANTOPEN
	Protocol   ResultCode = C.SQLITE_PROTOCOL
	Empty      ResultCode = C.SQLITE_EMPTY
	Schema     ResultCode = C.SQLITE_SCHEMA
	TooBig     ResultCode = C.SQLITE_TOOBIG
	Constraint ResultCode = C.SQLITE_CONSTRAINT
	Mismatch   ResultCode = C.SQLITE_MISMATCH
	Misuse     ResultCode = C.SQLITE_MISUSE
	NoLFS      ResultCode = C.SQLITE_NOLFS
	Auth       ResultCode = C.SQLITE_AUTH
	Format     ResultCode = C.SQLITE_FORMAT
	Range      ResultCode = C.SQLITE_RANGE
	NotADB     ResultCode = C.SQLITE_NOTADB
	Row        ResultCode = C.SQLITE_ROW
	Done       ResultCode = C.SQLITE_DONE
)

// Column/value fundamental types, see sqlite3_column_type.
const (
	TypeInteger = C.SQLITE_INTEGER
	TypeFloat   = C.SQLITE_FLOAT
	TypeText    = C.SQLITE_TEXT
	TypeBlob    = C.SQLITE_BLOB
	TypeNull    = C.SQLITE_NULL
)

// Open flags, see sqlite3_open_v2.
const (
	OpenReadOnly     = C.SQLITE_OPEN_READONLY
	OpenReadWrite    = C.SQLITE_OPEN_READWRITE
	OpenCreate       = C.SQLITE_OPEN_CREATE
	OpenURI          = C.SQLITE_OPEN_URI
	OpenMemory       = C.SQLITE_OPEN_MEMORY
	OpenNoMutex      = C.SQLITE_OPEN_NOMUTEX
	OpenFullMutex    = C.SQLITE_OPEN_FULLMUTEX
	OpenSharedCache  = C.SQLITE_OPEN_SHAREDCACHE
	OpenPrivateCache = C.SQLITE_OPEN_PRIVATECACHE
)

// Limit categories, see sqlite3_limit.
const (
	LimitLength     = C.SQLITE_LIMIT_LENGTH
	LimitSQLLength  = C.SQLITE_LIMIT_SQL_LENGTH
	LimitVariableNo = C.SQLITE_LIMIT_VARIABLE_NUMBER
)

// File control opcodes consumed by the narrow VFS boundary (see vfs.go in
// the parent package); the engine package only needs to pass them through.
const (
	FcntlFilePointer    = C.SQLITE_FCNTL_FILE_POINTER
	FcntlJournalPointer = C.SQLITE_FCNTL_JOURNAL_POINTER
	FcntlVFSName        = C.SQLITE_FCNTL_VFSNAME
	FcntlDataVersion     = C.SQLITE_FCNTL_DATA_VERSION
)

// Trace event masks, see sqlite3_trace_v2.
const (
	TraceStmt    = C.SQLITE_TRACE_STMT
	TraceProfile = C.SQLITE_TRACE_PROFILE
	TraceRow     = C.SQLITE_TRACE_ROW
	TraceClose   = C.SQLITE_TRACE_CLOSE
)

// DB is a raw handle to an open sqlite3*.
type DB struct {
	ptr *C.sqlite3
}

// Stmt is a raw handle to a compiled sqlite3_stmt*.
type Stmt struct {
	ptr *C.sqlite3_stmt
}

// Blob is a raw handle to an open sqlite3_blob*.
type Blob struct {
	ptr *C.sqlite3_blob
}

// Backup is a raw handle to an in-progress sqlite3_backup*.
type Backup struct {
	ptr *C.sqlite3_backup
}

func (d *DB) valid() bool   { return d != nil && d.ptr != nil }
func (s *Stmt) valid() bool { return s != nil && s.ptr != nil }

// Empty reports whether PrepareV2 produced no executable statement at all
// (the input was empty, whitespace, or comment-only text): SQLite returns
// SQLITE_OK with a NULL stmt in that case, rather than an error.
func (s *Stmt) Empty() bool { return !s.valid() }

// LibVersion returns sqlite3_libversion() and sqlite3_libversion_number().
func LibVersion() (string, int) {
	v := C.sqlite3_libversion()
	n := C.sqlite3_libversion_number()
	return C.GoString(v), int(n)
}

// Threadsafe reports whether the linked SQLite library was compiled with
// thread support (sqlite3_threadsafe() != 0).
func Threadsafe() bool {
	return C.sqlite3_threadsafe() != 0
}

// OpenV2 opens a database connection with explicit flags and optional VFS
// name, mirroring sqlite3_open_v2.
func OpenV2(name string, flags int, vfs string) (*DB, error) {
	cname := C.CString(name)
	defer C.free(unsafe.Pointer(cname))

	var cvfs *C.char
	if vfs != "" {
		cvfs = C.CString(vfs)
		defer C.free(unsafe.Pointer(cvfs))
	}

	var ptr *C.sqlite3
	rc := C.sqlite3_open_v2(cname, &ptr, C.int(flags), cvfs)
	db := &DB{ptr: ptr}
	if rc != C.SQLITE_OK {
		err := db.errorLocked(ResultCode(rc))
		if ptr != nil {
			C.sqlite3_close_v2(ptr)
		}
		return nil, err
	}
	return db, nil
}

// Close finalizes the connection, mirroring sqlite3_close_v2 (which
// tolerates outstanding unfinalized statements/blobs by deferring actual
// teardown, though this package expects the caller to have finalized
// everything already).
func (d *DB) Close() error {
	if !d.valid() {
		return nil
	}
	rc := C.sqlite3_close_v2(d.ptr)
	if rc != C.SQLITE_OK {
		return d.errorLocked(ResultCode(rc))
	}
	d.ptr = nil
	return nil
}

// CloseStrict mirrors sqlite3_close (fails loudly if anything is still
// attached). Nothing in this module calls it; Connection.Close uses Close.
func (d *DB) CloseStrict() error {
	if !d.valid() {
		return nil
	}
	rc := C.sqlite3_close(d.ptr)
	if rc != C.SQLITE_OK {
		return d.errorLocked(ResultCode(rc))
	}
	d.ptr = nil
	return nil
}

// Ptr exposes the raw handle for use by other files in this package
// (callbacks.go, funcs.go, blob.go, backup.go, mutex.go) without making it part of the
// public API surface of the module.
func (d *DB) Ptr() unsafe.Pointer { return unsafe.Pointer(d.ptr) }
func (s *Stmt) Ptr() unsafe.Pointer { return unsafe.Pointer(s.ptr) }

// BusyTimeout mirrors sqlite3_busy_timeout.
func (d *DB) BusyTimeout(ms int) error {
	rc := C.sqlite3_busy_timeout(d.ptr, C.int(ms))
	if rc != C.SQLITE_OK {
		return d.errorLocked(ResultCode(rc))
	}
	return nil
}

// ExtendedResultCodes mirrors sqlite3_extended_result_codes.
func (d *DB) ExtendedResultCodes(on bool) error {
	var v C.int
	if on {
		v = 1
	}
	rc := C.sqlite3_extended_result_codes(d.ptr, v)
	if rc != C.SQLITE_OK {
		return d.errorLocked(ResultCode(rc))
	}
	return nil
}

// Limit mirrors sqlite3_limit; pass newVal < 0 to query without changing.
func (d *DB) Limit(id, newVal int) int {
	return int(C.sqlite3_limit(d.ptr, C.int(id), C.int(newVal)))
}

// Interrupt mirrors sqlite3_interrupt.
func (d *DB) Interrupt() {
	if d.valid() {
		C.sqlite3_interrupt(d.ptr)
	}
}

// IsInterrupted mirrors sqlite3_is_interrupted (SQLite >= 3.41); degrades
// to false under the apsw_legacy_sqlite build tag (see legacy_old.go).
func (d *DB) IsInterrupted() bool {
	return isInterrupted(d)
}

// Changes mirrors sqlite3_changes64.
func (d *DB) Changes() int64 {
	return int64(C.sqlite3_changes64(d.ptr))
}

// TotalChanges mirrors sqlite3_total_changes64.
func (d *DB) TotalChanges() int64 {
	return int64(C.sqlite3_total_changes64(d.ptr))
}

// LastInsertRowID mirrors sqlite3_last_insert_rowid.
func (d *DB) LastInsertRowID() int64 {
	return int64(C.sqlite3_last_insert_rowid(d.ptr))
}

// Autocommit mirrors sqlite3_get_autocommit.
func (d *DB) Autocommit() bool {
	return C.sqlite3_get_autocommit(d.ptr) != 0
}

// FileControl mirrors sqlite3_file_control for the narrow VFS boundary.
func (d *DB) FileControl(dbName string, op int, arg unsafe.Pointer) error {
	var cname *C.char
	if dbName != "" {
		cname = C.CString(dbName)
		defer C.free(unsafe.Pointer(cname))
	}
	rc := C.sqlite3_file_control(d.ptr, cname, C.int(op), arg)
	if rc != C.SQLITE_OK {
		return d.errorLocked(ResultCode(rc))
	}
	return nil
}

// errorLocked builds an error from the connection's current errcode/errmsg.
// Named "Locked" to remind callers that in the layer above, reading these
// two calls must happen while the connection's mutex gate is held, because
// SQLite's errmsg is overwritten by the next API call on the same handle.
func (d *DB) errorLocked(rc ResultCode) error {
	if !d.valid() {
		return fmt.Errorf("sqlite: %s (%d)", C.GoString(C.sqlite3_errstr(C.int(rc))), rc)
	}
	ext := ResultCode(C.sqlite3_extended_errcode(d.ptr))
	msg := C.GoString(C.sqlite3_errmsg(d.ptr))
	off := int(C.sqlite3_error_offset(d.ptr))
	return &EngineError{Code: rc, ExtendedCode: ext, Message: msg, Offset: off}
}

// EngineError is the raw shape handed to the ErrorPlane one layer up; it
// carries no taxonomy, only what the C API reported.
type EngineError struct {
	Code         ResultCode
	ExtendedCode ResultCode
	Message      string
	Offset       int
}

func (e *EngineError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("sqlite: %s (%d/%d)", C.GoString(C.sqlite3_errstr(C.int(e.Code))), e.Code, e.ExtendedCode)
	}
	return fmt.Sprintf("sqlite: %s (%d/%d)", e.Message, e.Code, e.ExtendedCode)
}

// Errstr mirrors sqlite3_errstr for a bare result code with no connection.
func Errstr(rc ResultCode) string {
	return C.GoString(C.sqlite3_errstr(C.int(rc)))
}

// --- statement compile/step/bind/column ------------------------------------

// PrepareV2 mirrors sqlite3_prepare_v2, returning the compiled statement and
// the UTF-8 byte offset of the tail (unconsumed trailing SQL).
func (d *DB) PrepareV2(sql string) (*Stmt, int, error) {
	csql := C.CString(sql)
	defer C.free(unsafe.Pointer(csql))

	var stmt *C.sqlite3_stmt
	var tail *C.char
	rc := C.sqlite3_prepare_v2(d.ptr, csql, C.int(len(sql)), &stmt, &tail)
	if rc != C.SQLITE_OK {
		if stmt != nil {
			C.sqlite3_finalize(stmt)
		}
		return nil, 0, d.errorLocked(ResultCode(rc))
	}
	tailOffset := int(uintptr(unsafe.Pointer(tail)) - uintptr(unsafe.Pointer(csql)))
	return &Stmt{ptr: stmt}, tailOffset, nil
}

// IsExplain mirrors sqlite3_stmt_isexplain (0 = ordinary, 1 = EXPLAIN, 2 =
// EXPLAIN QUERY PLAN); degrades to 0 under apsw_legacy_sqlite.
func (s *Stmt) IsExplain() int {
	return stmtIsExplain(s)
}

// SetExplain mirrors sqlite3_stmt_explain (SQLite >= 3.43), used to force a
// cached statement into/out of EXPLAIN mode before the first step.
func (s *Stmt) SetExplain(mode int) error {
	return stmtSetExplain(s, mode)
}

// Step mirrors sqlite3_step, returning the raw result code (Row/Done or an
// error code); the caller (stepOnce in statement.go) does not retry
// busy/locked results.
func (s *Stmt) Step() ResultCode {
	return ResultCode(C.sqlite3_step(s.ptr))
}

// Reset mirrors sqlite3_reset.
func (s *Stmt) Reset() error {
	rc := C.sqlite3_reset(s.ptr)
	if rc != C.SQLITE_OK {
		return &EngineError{Code: ResultCode(rc), Message: C.GoString(C.sqlite3_errstr(rc))}
	}
	return nil
}

// ClearBindings mirrors sqlite3_clear_bindings.
func (s *Stmt) ClearBindings() error {
	rc := C.sqlite3_clear_bindings(s.ptr)
	if rc != C.SQLITE_OK {
		return &EngineError{Code: ResultCode(rc)}
	}
	return nil
}

// Finalize mirrors sqlite3_finalize.
func (s *Stmt) Finalize() error {
	if !s.valid() {
		return nil
	}
	rc := C.sqlite3_finalize(s.ptr)
	s.ptr = nil
	if rc != C.SQLITE_OK {
		return &EngineError{Code: ResultCode(rc)}
	}
	return nil
}

// SQL mirrors sqlite3_sql.
func (s *Stmt) SQL() string {
	return C.GoString(C.sqlite3_sql(s.ptr))
}

// ExpandedSQL mirrors sqlite3_expanded_sql, freeing the engine-owned buffer
// it returns.
func (s *Stmt) ExpandedSQL() string {
	p := C.sqlite3_expanded_sql(s.ptr)
	if p == nil {
		return ""
	}
	defer C.sqlite3_free(unsafe.Pointer(p))
	return C.GoString(p)
}

// Readonly mirrors sqlite3_stmt_readonly.
func (s *Stmt) Readonly() bool {
	return C.sqlite3_stmt_readonly(s.ptr) != 0
}

// Busy mirrors sqlite3_stmt_busy.
func (s *Stmt) Busy() bool {
	return C.sqlite3_stmt_busy(s.ptr) != 0
}

// BindParameterCount mirrors sqlite3_bind_parameter_count.
func (s *Stmt) BindParameterCount() int {
	return int(C.sqlite3_bind_parameter_count(s.ptr))
}

// BindParameterName mirrors sqlite3_bind_parameter_name (1-based index).
func (s *Stmt) BindParameterName(i int) string {
	p := C.sqlite3_bind_parameter_name(s.ptr, C.int(i))
	if p == nil {
		return ""
	}
	return C.GoString(p)
}

// BindParameterIndex mirrors sqlite3_bind_parameter_index.
func (s *Stmt) BindParameterIndex(name string) int {
	cname := C.CString(name)
	defer C.free(unsafe.Pointer(cname))
	return int(C.sqlite3_bind_parameter_index(s.ptr, cname))
}

func (s *Stmt) bindErr(rc C.int) error {
	if rc != C.SQLITE_OK {
		return &EngineError{Code: ResultCode(rc)}
	}
	return nil
}

// BindNull mirrors sqlite3_bind_null.
func (s *Stmt) BindNull(i int) error {
	return s.bindErr(C.sqlite3_bind_null(s.ptr, C.int(i)))
}

// BindInt64 mirrors sqlite3_bind_int64.
func (s *Stmt) BindInt64(i int, v int64) error {
	return s.bindErr(C.sqlite3_bind_int64(s.ptr, C.int(i), C.sqlite3_int64(v)))
}

// BindDouble mirrors sqlite3_bind_double.
func (s *Stmt) BindDouble(i int, v float64) error {
	return s.bindErr(C.sqlite3_bind_double(s.ptr, C.int(i), C.double(v)))
}

// BindText mirrors sqlite3_bind_text, copying v (SQLITE_TRANSIENT).
func (s *Stmt) BindText(i int, v string) error {
	if len(v) == 0 {
		return s.bindErr(C.wsq_bind_text(s.ptr, C.int(i), (*C.char)(unsafe.Pointer(&emptyCString)), 0))
	}
	cstr := C.CString(v)
	defer C.free(unsafe.Pointer(cstr))
	return s.bindErr(C.wsq_bind_text(s.ptr, C.int(i), cstr, C.int(len(v))))
}

var emptyCString C.char

// BindBlob mirrors sqlite3_bind_blob, copying v (SQLITE_TRANSIENT).
func (s *Stmt) BindBlob(i int, v []byte) error {
	if len(v) == 0 {
		return s.bindErr(C.sqlite3_bind_zeroblob(s.ptr, C.int(i), 0))
	}
	return s.bindErr(C.wsq_bind_blob(s.ptr, C.int(i), unsafe.Pointer(&v[0]), C.int(len(v))))
}

// BindZeroBlob mirrors sqlite3_bind_zeroblob64, the "reserve space" sentinel.
func (s *Stmt) BindZeroBlob(i int, n int64) error {
	return s.bindErr(C.sqlite3_bind_zeroblob64(s.ptr, C.int(i), C.sqlite3_uint64(n)))
}

// BindPointer mirrors sqlite3_bind_pointer: v is kept alive in a process-wide
// registry keyed by a generated cgo.Handle, cast to and from the statement's
// void* parameter slot. SQLite calls the registered destructor itself, once
// per bind, whenever that parameter slot is cleared, reset, or rebound (and
// again on statement finalization if it was never cleared), which is the
// only reliable point at which the handle can be released back to Go.
func (s *Stmt) BindPointer(i int, v any) error {
	h := cgo.NewHandle(v)
	rc := C.wsq_bind_pointer(s.ptr, C.int(i), C.sqlite3_uint64(h))
	if rc != C.SQLITE_OK {
		h.Delete()
		return &EngineError{Code: ResultCode(rc)}
	}
	return nil
}

//export goBindPointerDestructor
func goBindPointerDestructor(p unsafe.Pointer) {
	cgo.Handle(uintptr(p)).Delete()
}

// ValuePointer mirrors sqlite3_value_pointer for an argument bound by
// BindPointer: it must run against the same wsq_pointer_tag C string
// instance BindPointer used, which is why both live in this one
// translation unit rather than being split across engine.go and funcs.go
// (sqlite3_value_pointer matches the tag by pointer identity, not by
// content, so a second, textually-identical literal in another file's cgo
// preamble would not reliably compare equal). ok is false for any argument
// that isn't a live BindPointer handle under this tag.
func ValuePointer(v Value) (value any, ok bool) {
	p := C.sqlite3_value_pointer(v.ptr, wsq_pointer_tag)
	if p == nil {
		return nil, false
	}
	return cgo.Handle(uintptr(p)).Value(), true
}

// ColumnCount mirrors sqlite3_column_count.
func (s *Stmt) ColumnCount() int {
	return int(C.sqlite3_column_count(s.ptr))
}

// ColumnType mirrors sqlite3_column_type.
func (s *Stmt) ColumnType(i int) int {
	return int(C.sqlite3_column_type(s.ptr, C.int(i)))
}

// ColumnName mirrors sqlite3_column_name.
func (s *Stmt) ColumnName(i int) string {
	return C.GoString(C.wsq_column_name(s.ptr, C.int(i)))
}

// ColumnDeclType mirrors sqlite3_column_decltype.
func (s *Stmt) ColumnDeclType(i int) string {
	p := C.sqlite3_column_decltype(s.ptr, C.int(i))
	if p == nil {
		return ""
	}
	return C.GoString(p)
}

// ColumnInt64 mirrors sqlite3_column_int64.
func (s *Stmt) ColumnInt64(i int) int64 {
	return int64(C.sqlite3_column_int64(s.ptr, C.int(i)))
}

// ColumnDouble mirrors sqlite3_column_double.
func (s *Stmt) ColumnDouble(i int) float64 {
	return float64(C.sqlite3_column_double(s.ptr, C.int(i)))
}

// ColumnText mirrors sqlite3_column_text/sqlite3_column_bytes.
func (s *Stmt) ColumnText(i int) string {
	n := int(C.sqlite3_column_bytes(s.ptr, C.int(i)))
	if n == 0 {
		return ""
	}
	p := C.wsq_column_text(s.ptr, C.int(i))
	return C.GoStringN(p, C.int(n))
}

// ColumnBlob mirrors sqlite3_column_blob/sqlite3_column_bytes, copying into
// a freshly allocated Go slice (the C buffer is only valid until the next
// step/reset/finalize).
func (s *Stmt) ColumnBlob(i int) []byte {
	n := int(C.sqlite3_column_bytes(s.ptr, C.int(i)))
	if n == 0 {
		return nil
	}
	p := C.sqlite3_column_blob(s.ptr, C.int(i))
	if p == nil {
		return nil
	}
	out := make([]byte, n)
	C.memcpy(unsafe.Pointer(&out[0]), p, C.size_t(n))
	return out
}

// ColumnBytes mirrors sqlite3_column_bytes directly, used by callers that
// need the length without materializing the value.
func (s *Stmt) ColumnBytes(i int) int {
	return int(C.sqlite3_column_bytes(s.ptr, C.int(i)))
}
