package engine

/*
#include <stdlib.h>
#include <string.h>
#include <sqlite3.h>

extern void goFuncTrampoline(sqlite3_uint64 handle, sqlite3_context *ctx, int argc, sqlite3_value **argv);
extern void goStepTrampoline(sqlite3_uint64 handle, sqlite3_context *ctx, int argc, sqlite3_value **argv);
extern void goFinalTrampoline(sqlite3_uint64 handle, sqlite3_context *ctx);
extern void goValueTrampoline(sqlite3_uint64 handle, sqlite3_context *ctx);
extern void goInverseTrampoline(sqlite3_uint64 handle, sqlite3_context *ctx, int argc, sqlite3_value **argv);

static int wsq_create_scalar(sqlite3 *db, const char *name, int nArg, int flags, sqlite3_uint64 handle) {
	return sqlite3_create_function_v2(db, name, nArg, flags, (void*)(size_t)handle,
		(void(*)(sqlite3_context*,int,sqlite3_value**))goFuncTrampoline,
		0, 0, 0);
}

static int wsq_create_aggregate(sqlite3 *db, const char *name, int nArg, int flags, sqlite3_uint64 handle) {
	return sqlite3_create_function_v2(db, name, nArg, flags, (void*)(size_t)handle,
		0,
		(void(*)(sqlite3_context*,int,sqlite3_value**))goStepTrampoline,
		(void(*)(sqlite3_context*))goFinalTrampoline,
		0);
}

static int wsq_create_window(sqlite3 *db, const char *name, int nArg, int flags, sqlite3_uint64 handle) {
	return sqlite3_create_window_function(db, name, nArg, flags, (void*)(size_t)handle,
		(void(*)(sqlite3_context*,int,sqlite3_value**))goStepTrampoline,
		(void(*)(sqlite3_context*))goFinalTrampoline,
		(void(*)(sqlite3_context*))goValueTrampoline,
		(void(*)(sqlite3_context*,int,sqlite3_value**))goInverseTrampoline,
		0);
}
*/
import "C"

import (
	"runtime/cgo"
	"unsafe"
)

// Function flags consumed by CreateScalar/CreateAggregate/CreateWindow, see
// sqlite3_create_function_v2.
const (
	FuncUTF8        = C.SQLITE_UTF8
	FuncDeterministic = C.SQLITE_DETERMINISTIC
	FuncDirectOnly  = C.SQLITE_DIRECTONLY
	FuncInnocuous   = C.SQLITE_INNOCUOUS
)

// Value is a thin, copy-on-read wrapper over sqlite3_value* passed into a
// scalar/aggregate/window callback; it is only valid for the duration of
// that callback.
type Value struct{ ptr *C.sqlite3_value }

// Type mirrors sqlite3_value_type.
func (v Value) Type() int { return int(C.sqlite3_value_type(v.ptr)) }

// Int64 mirrors sqlite3_value_int64.
func (v Value) Int64() int64 { return int64(C.sqlite3_value_int64(v.ptr)) }

// Double mirrors sqlite3_value_double.
func (v Value) Double() float64 { return float64(C.sqlite3_value_double(v.ptr)) }

// Text mirrors sqlite3_value_text/sqlite3_value_bytes.
func (v Value) Text() string {
	n := int(C.sqlite3_value_bytes(v.ptr))
	if n == 0 {
		return ""
	}
	p := (*C.char)(unsafe.Pointer(C.sqlite3_value_text(v.ptr)))
	return C.GoStringN(p, C.int(n))
}

// Blob mirrors sqlite3_value_blob/sqlite3_value_bytes, copying into a fresh
// Go slice.
func (v Value) Blob() []byte {
	n := int(C.sqlite3_value_bytes(v.ptr))
	if n == 0 {
		return nil
	}
	p := C.sqlite3_value_blob(v.ptr)
	out := make([]byte, n)
	C.memcpy(unsafe.Pointer(&out[0]), p, C.size_t(n))
	return out
}

// Context is a thin wrapper over sqlite3_context* used to report a
// function's result or an error, valid only for the callback's duration.
type Context struct{ ptr *C.sqlite3_context }

func (c Context) ResultNull()           { C.sqlite3_result_null(c.ptr) }
func (c Context) ResultInt64(v int64)   { C.sqlite3_result_int64(c.ptr, C.sqlite3_int64(v)) }
func (c Context) ResultDouble(v float64) { C.sqlite3_result_double(c.ptr, C.double(v)) }

func (c Context) ResultText(v string) {
	if v == "" {
		C.sqlite3_result_text(c.ptr, (*C.char)(unsafe.Pointer(&emptyCString)), 0, C.SQLITE_TRANSIENT)
		return
	}
	cstr := C.CString(v)
	defer C.free(unsafe.Pointer(cstr))
	C.sqlite3_result_text(c.ptr, cstr, C.int(len(v)), C.SQLITE_TRANSIENT)
}

func (c Context) ResultBlob(v []byte) {
	if len(v) == 0 {
		C.sqlite3_result_zeroblob(c.ptr, 0)
		return
	}
	C.sqlite3_result_blob(c.ptr, unsafe.Pointer(&v[0]), C.int(len(v)), C.SQLITE_TRANSIENT)
}

func (c Context) ResultError(msg string, code ResultCode) {
	cstr := C.CString(msg)
	defer C.free(unsafe.Pointer(cstr))
	C.sqlite3_result_error(c.ptr, cstr, C.int(len(msg)))
	if code != 0 {
		C.sqlite3_result_error_code(c.ptr, C.int(code))
	}
}

// AggregateContext mirrors sqlite3_aggregate_context, handing back a stable
// address the step/final callbacks can use to stash a Go-side handle for
// per-group accumulator state (as an opaque cgo.Handle value stored in the
// first 8 bytes of the reserved block).
func (c Context) AggregateContext(nBytes int) unsafe.Pointer {
	return unsafe.Pointer(C.sqlite3_aggregate_context(c.ptr, C.int(nBytes)))
}

func valuesOf(argc C.int, argv **C.sqlite3_value) []Value {
	if argc == 0 {
		return nil
	}
	slice := unsafe.Slice(argv, int(argc))
	out := make([]Value, int(argc))
	for i, p := range slice {
		out[i] = Value{ptr: p}
	}
	return out
}

// ScalarFunc implements a deterministic-or-not scalar SQL function.
type ScalarFunc func(ctx Context, args []Value)

// StepFunc is the per-row callback of an aggregate or window function.
type StepFunc func(ctx Context, args []Value)

// FinalFunc produces the aggregate's result once all rows are stepped (or,
// for a window function, once a frame closes).
type FinalFunc func(ctx Context)

// ValueFunc mirrors the window-function "xValue" callback: report the
// current frame's result without finalizing the accumulator.
type ValueFunc func(ctx Context)

// InverseFunc mirrors the window-function "xInverse" callback: remove a row
// that has left the frame.
type InverseFunc func(ctx Context, args []Value)

type aggregateBox struct {
	step    StepFunc
	final   FinalFunc
	value   ValueFunc
	inverse InverseFunc
}

// CreateScalar mirrors sqlite3_create_function_v2 for a plain scalar.
func (d *DB) CreateScalar(name string, nArg int, flags int, fn ScalarFunc) error {
	cname := C.CString(name)
	defer C.free(unsafe.Pointer(cname))
	h := cgo.NewHandle(fn)
	rc := C.wsq_create_scalar(d.ptr, cname, C.int(nArg), C.int(flags|C.SQLITE_UTF8), C.sqlite3_uint64(h))
	if rc != C.SQLITE_OK {
		h.Delete()
		return &EngineError{Code: ResultCode(rc)}
	}
	return nil
}

// CreateAggregate mirrors sqlite3_create_function_v2 with step/final.
func (d *DB) CreateAggregate(name string, nArg int, flags int, step StepFunc, final FinalFunc) error {
	cname := C.CString(name)
	defer C.free(unsafe.Pointer(cname))
	h := cgo.NewHandle(&aggregateBox{step: step, final: final})
	rc := C.wsq_create_aggregate(d.ptr, cname, C.int(nArg), C.int(flags|C.SQLITE_UTF8), C.sqlite3_uint64(h))
	if rc != C.SQLITE_OK {
		h.Delete()
		return &EngineError{Code: ResultCode(rc)}
	}
	return nil
}

// CreateWindow mirrors sqlite3_create_window_function.
func (d *DB) CreateWindow(name string, nArg int, flags int, step StepFunc, final FinalFunc, value ValueFunc, inverse InverseFunc) error {
	cname := C.CString(name)
	defer C.free(unsafe.Pointer(cname))
	h := cgo.NewHandle(&aggregateBox{step: step, final: final, value: value, inverse: inverse})
	rc := C.wsq_create_window(d.ptr, cname, C.int(nArg), C.int(flags|C.SQLITE_UTF8), C.sqlite3_uint64(h))
	if rc != C.SQLITE_OK {
		h.Delete()
		return &EngineError{Code: ResultCode(rc)}
	}
	return nil
}

//export goFuncTrampoline
func goFuncTrampoline(handle C.sqlite3_uint64, ctx *C.sqlite3_context, argc C.int, argv **C.sqlite3_value) {
	fn, ok := cgo.Handle(handle).Value().(ScalarFunc)
	if !ok || fn == nil {
		return
	}
	fn(Context{ptr: ctx}, valuesOf(argc, argv))
}

//export goStepTrampoline
func goStepTrampoline(handle C.sqlite3_uint64, ctx *C.sqlite3_context, argc C.int, argv **C.sqlite3_value) {
	box, ok := cgo.Handle(handle).Value().(*aggregateBox)
	if !ok || box == nil || box.step == nil {
		return
	}
	box.step(Context{ptr: ctx}, valuesOf(argc, argv))
}

//export goFinalTrampoline
func goFinalTrampoline(handle C.sqlite3_uint64, ctx *C.sqlite3_context) {
	box, ok := cgo.Handle(handle).Value().(*aggregateBox)
	if !ok || box == nil || box.final == nil {
		return
	}
	box.final(Context{ptr: ctx})
}

//export goValueTrampoline
func goValueTrampoline(handle C.sqlite3_uint64, ctx *C.sqlite3_context) {
	box, ok := cgo.Handle(handle).Value().(*aggregateBox)
	if !ok || box == nil || box.value == nil {
		return
	}
	box.value(Context{ptr: ctx})
}

//export goInverseTrampoline
func goInverseTrampoline(handle C.sqlite3_uint64, ctx *C.sqlite3_context, argc C.int, argv **C.sqlite3_value) {
	box, ok := cgo.Handle(handle).Value().(*aggregateBox)
	if !ok || box == nil || box.inverse == nil {
		return
	}
	box.inverse(Context{ptr: ctx}, valuesOf(argc, argv))
}
